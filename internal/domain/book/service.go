package book

import (
	"context"
	"errors"
	"regexp"
)

// ChangeListener 图书变更通知
// 在图书写入提交之后调用,实现方只负责投递异步重算任务,不返回错误
type ChangeListener interface {
	// OnBookChanged 图书创建或更新,categoryIDs为变更前后分类的并集
	OnBookChanged(ctx context.Context, bookID uint, categoryIDs []uint)

	// OnBookDeleted 图书删除,categoryIDs为删除前捕获的分类
	OnBookDeleted(ctx context.Context, bookID uint, categoryIDs []uint)
}

// Transactor 事务管理(由infrastructure层实现)
// fn内通过ctx传递事务,仓储方法自动参与
type Transactor interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service 图书领域服务接口
// 设计说明:
// 1. 领域服务封装业务规则校验与变更通知
// 2. 不依赖具体的Repository实现(依赖倒置)
type Service interface {
	// CreateBook 创建图书
	// 业务规则:
	// - ISBN格式必须合法(10位或13位数字),且不能重复
	// - 原价不能为0,折扣在0-100之间
	CreateBook(ctx context.Context, book *Book) (*Book, error)

	// GetBookByID 根据ID获取图书详情
	GetBookByID(ctx context.Context, id uint) (*Book, error)

	// UpdateBook 更新图书(整体替换输入字段与分类)
	UpdateBook(ctx context.Context, book *Book) (*Book, error)

	// DeleteBook 删除图书
	DeleteBook(ctx context.Context, id uint) error

	// DeleteByAuthor 删除作者名下的全部图书(删除作者时级联)
	DeleteByAuthor(ctx context.Context, authorID uint) error

	// ListBooks 分页查询图书列表
	ListBooks(ctx context.Context, params ListParams) ([]*Book, int64, error)
}

// service 领域服务实现
type service struct {
	repo     Repository
	tx       Transactor
	listener ChangeListener
}

// NewService 创建图书领域服务
func NewService(repo Repository, tx Transactor, listener ChangeListener) Service {
	return &service{repo: repo, tx: tx, listener: listener}
}

// CreateBook 创建图书
func (s *service) CreateBook(ctx context.Context, b *Book) (*Book, error) {
	if err := s.validate(ctx, b, 0); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, b); err != nil {
		return nil, err
	}

	s.listener.OnBookChanged(ctx, b.ID, b.CategoryIDs)
	return b, nil
}

// GetBookByID 根据ID获取图书
func (s *service) GetBookByID(ctx context.Context, id uint) (*Book, error) {
	return s.repo.FindByID(ctx, id)
}

// UpdateBook 更新图书
// 旧分类与写入在同一事务内捕获:图书移出某个分类后,该分类的统计同样需要重算
// 通知在事务提交后发出,避免任务读到未提交的数据
func (s *service) UpdateBook(ctx context.Context, b *Book) (*Book, error) {
	var changed []uint
	err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		existing, err := s.repo.FindByID(ctx, b.ID)
		if err != nil {
			return err
		}

		if err := s.validate(ctx, b, b.ID); err != nil {
			return err
		}

		// 派生字段保持原值,等待重算任务覆盖
		b.DiscountTotal = existing.DiscountTotal
		b.Price = existing.Price
		b.CreatedAt = existing.CreatedAt

		if err := s.repo.Update(ctx, b); err != nil {
			return err
		}
		changed = UnionIDs(existing.CategoryIDs, b.CategoryIDs)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.listener.OnBookChanged(ctx, b.ID, changed)
	return b, nil
}

// DeleteBook 删除图书
// 分类关联在删除后即不存在,必须先捕获
func (s *service) DeleteBook(ctx context.Context, id uint) error {
	var captured []uint
	err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		existing, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		captured = append([]uint(nil), existing.CategoryIDs...)
		return s.repo.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.listener.OnBookDeleted(ctx, id, captured)
	return nil
}

// DeleteByAuthor 删除作者名下的全部图书
// 与DeleteBook相同:每本图书删除前捕获分类,提交后逐本通知
func (s *service) DeleteByAuthor(ctx context.Context, authorID uint) error {
	var ids []uint
	captured := make(map[uint][]uint)
	err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		var err error
		if ids, err = s.repo.FindIDsByAuthor(ctx, authorID); err != nil {
			return err
		}
		for _, id := range ids {
			existing, err := s.repo.FindByID(ctx, id)
			if err != nil {
				return err
			}
			captured[id] = append([]uint(nil), existing.CategoryIDs...)
			if err := s.repo.Delete(ctx, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, id := range ids {
		s.listener.OnBookDeleted(ctx, id, captured[id])
	}
	return nil
}

// ListBooks 分页查询图书列表
func (s *service) ListBooks(ctx context.Context, params ListParams) ([]*Book, int64, error) {
	return s.repo.List(ctx, params)
}

// validate 校验实体、分类去重并检查ISBN唯一性,selfID为更新时的图书自身ID
func (s *service) validate(ctx context.Context, b *Book, selfID uint) error {
	if err := b.Validate(); err != nil {
		return err
	}
	if len(b.CategoryIDs) > 1 {
		b.CategoryIDs = UnionIDs(b.CategoryIDs, nil)
	}
	if b.ISBN == "" {
		return nil
	}

	if !isValidISBN(b.ISBN) {
		return ErrInvalidISBN
	}
	existing, err := s.repo.FindByISBN(ctx, b.ISBN)
	if err == nil && existing != nil && existing.ID != selfID {
		return ErrISBNDuplicate
	}
	// 如果是ErrBookNotFound以外的错误,返回
	if err != nil && !errors.Is(err, ErrBookNotFound) {
		return err
	}
	return nil
}

var nonDigit = regexp.MustCompile(`[^0-9Xx]`)

// isValidISBN 校验ISBN格式
// 支持ISBN-10(末位可为X)与ISBN-13,允许连字符分隔
// 简化实现:只检查位数(生产环境应校验校验位)
func isValidISBN(isbn string) bool {
	clean := nonDigit.ReplaceAllString(isbn, "")
	return len(clean) == 10 || len(clean) == 13
}
