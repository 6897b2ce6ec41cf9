// Package category 图书分类
//
// 分类的BookCount/BookAveragePrice是派生字段,只由重算任务通过SaveStats写入。
package category

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xiebiao/bookcatalog/internal/domain/pricing"
	apperrors "github.com/xiebiao/bookcatalog/pkg/errors"
)

// Category 分类实体
type Category struct {
	ID               uint
	Name             string
	Description      string
	BookCount        int
	BookAveragePrice decimal.NullDecimal
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

var (
	ErrCategoryNotFound = apperrors.New(apperrors.ErrCodeCategoryNotFound, "分类不存在")
	ErrNameRequired     = apperrors.New(apperrors.ErrCodeInvalidParams, "分类名称不能为空")
	ErrNameDuplicate    = apperrors.New(apperrors.ErrCodeDuplicateEntry, "分类名称已存在")
)

// Repository 分类仓储接口
type Repository interface {
	Create(ctx context.Context, c *Category) error
	FindByID(ctx context.Context, id uint) (*Category, error)
	// Update 只更新名称与描述
	Update(ctx context.Context, c *Category) error
	// Delete 删除分类并清除与图书的关联
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context) ([]*Category, error)

	// BookPrices 分类下所有图书的售价(每本书一个元素,无售价为空)
	// 分类不存在时返回ErrCategoryNotFound
	BookPrices(ctx context.Context, id uint) ([]decimal.NullDecimal, error)

	// SaveStats 写回派生字段
	SaveStats(ctx context.Context, id uint, stats pricing.CategoryStats) error
}

// ChangeListener 分类变更通知
type ChangeListener interface {
	OnCategoryChanged(ctx context.Context, categoryID uint)
}

// Service 分类领域服务
type Service struct {
	repo     Repository
	listener ChangeListener
}

func NewService(repo Repository, listener ChangeListener) *Service {
	return &Service{repo: repo, listener: listener}
}

func (s *Service) Create(ctx context.Context, c *Category) (*Category, error) {
	if c.Name == "" {
		return nil, ErrNameRequired
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*Category, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*Category, error) {
	return s.repo.List(ctx)
}

// Update 更新分类信息后重算统计,使派生字段与当前图书保持一致
func (s *Service) Update(ctx context.Context, c *Category) (*Category, error) {
	if c.Name == "" {
		return nil, ErrNameRequired
	}
	existing, err := s.repo.FindByID(ctx, c.ID)
	if err != nil {
		return nil, err
	}

	existing.Name = c.Name
	existing.Description = c.Description
	if err := s.repo.Update(ctx, existing); err != nil {
		return nil, err
	}

	s.listener.OnCategoryChanged(ctx, existing.ID)
	return existing, nil
}

// Delete 删除分类
// 分类不再存在,无需重算;图书自身售价不受分类影响
func (s *Service) Delete(ctx context.Context, id uint) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}
