// Package discountgroup 折扣组
//
// 多本图书共享同一个折扣组,折扣组的折扣变化需要重算所有引用它的图书。
package discountgroup

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xiebiao/bookcatalog/internal/domain/pricing"
	apperrors "github.com/xiebiao/bookcatalog/pkg/errors"
)

// DiscountGroup 折扣组实体
type DiscountGroup struct {
	ID          uint
	Name        string
	Discount    decimal.Decimal // 百分比,0-100
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

var (
	ErrDiscountGroupNotFound = apperrors.New(apperrors.ErrCodeDiscountGroupNotFound, "折扣组不存在")
	ErrNameRequired          = apperrors.New(apperrors.ErrCodeInvalidParams, "折扣组名称不能为空")
	ErrInvalidDiscount       = apperrors.New(apperrors.ErrCodeInvalidParams, "折扣必须在0-100之间")
)

// Repository 折扣组仓储接口
type Repository interface {
	Create(ctx context.Context, g *DiscountGroup) error
	FindByID(ctx context.Context, id uint) (*DiscountGroup, error)
	Update(ctx context.Context, g *DiscountGroup) error
	// Delete 删除折扣组,引用它的图书discount_group_id置空
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context) ([]*DiscountGroup, error)
}

// BookFinder 查询引用折扣组的图书
type BookFinder interface {
	FindIDsByDiscountGroup(ctx context.Context, groupID uint) ([]uint, error)
}

// ChangeListener 折扣组变更通知,bookIDs为变更时引用该折扣组的图书
type ChangeListener interface {
	OnDiscountGroupChanged(ctx context.Context, groupID uint, bookIDs []uint)
}

// Transactor 事务管理
type Transactor interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service 折扣组领域服务
type Service struct {
	repo     Repository
	books    BookFinder
	tx       Transactor
	listener ChangeListener
}

func NewService(repo Repository, books BookFinder, tx Transactor, listener ChangeListener) *Service {
	return &Service{repo: repo, books: books, tx: tx, listener: listener}
}

func validate(g *DiscountGroup) error {
	if g.Name == "" {
		return ErrNameRequired
	}
	if !pricing.ValidPercentage(g.Discount) {
		return ErrInvalidDiscount
	}
	return nil
}

// Create 新建的折扣组还没有图书引用,无需重算
func (s *Service) Create(ctx context.Context, g *DiscountGroup) (*DiscountGroup, error) {
	if err := validate(g); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*DiscountGroup, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*DiscountGroup, error) {
	return s.repo.List(ctx)
}

// Update 更新折扣组,并重算所有引用它的图书
func (s *Service) Update(ctx context.Context, g *DiscountGroup) (*DiscountGroup, error) {
	if err := validate(g); err != nil {
		return nil, err
	}

	var (
		existing *DiscountGroup
		bookIDs  []uint
	)
	err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		var err error
		if existing, err = s.repo.FindByID(ctx, g.ID); err != nil {
			return err
		}
		existing.Name = g.Name
		existing.Discount = g.Discount
		existing.Description = g.Description
		if err := s.repo.Update(ctx, existing); err != nil {
			return err
		}
		bookIDs, err = s.books.FindIDsByDiscountGroup(ctx, existing.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.listener.OnDiscountGroupChanged(ctx, existing.ID, bookIDs)
	return existing, nil
}

// Delete 删除折扣组
// 引用它的图书在删除前捕获,删除后这些图书失去折扣组折扣
func (s *Service) Delete(ctx context.Context, id uint) error {
	var bookIDs []uint
	err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		if _, err := s.repo.FindByID(ctx, id); err != nil {
			return err
		}
		var err error
		if bookIDs, err = s.books.FindIDsByDiscountGroup(ctx, id); err != nil {
			return err
		}
		return s.repo.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.listener.OnDiscountGroupChanged(ctx, id, bookIDs)
	return nil
}
