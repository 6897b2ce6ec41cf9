// Package author 作者
package author

import (
	"context"
	"strings"
	"time"

	apperrors "github.com/xiebiao/bookcatalog/pkg/errors"
)

type Author struct {
	ID         uint
	Name       string
	FamilyName string
	About      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// FullName 名+姓,姓为空时只返回名
func (a *Author) FullName() string {
	return strings.TrimSpace(a.Name + " " + a.FamilyName)
}

var (
	ErrAuthorNotFound = apperrors.New(apperrors.ErrCodeAuthorNotFound, "作者不存在")
	ErrNameRequired   = apperrors.New(apperrors.ErrCodeInvalidParams, "作者名不能为空")
	// ErrAuthorInUse 删除作者期间又有图书引用该作者
	ErrAuthorInUse = apperrors.New(apperrors.ErrCodeBusinessError, "该作者仍有关联图书,无法删除")
)

type Repository interface {
	Create(ctx context.Context, a *Author) error
	FindByID(ctx context.Context, id uint) (*Author, error)
	FindByIDs(ctx context.Context, ids []uint) ([]*Author, error)
	Update(ctx context.Context, a *Author) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context) ([]*Author, error)
}

// BookRemover 删除作者名下的图书,图书所属分类的统计随之重算
type BookRemover interface {
	DeleteByAuthor(ctx context.Context, authorID uint) error
}

type Service struct {
	repo  Repository
	books BookRemover
}

func NewService(repo Repository, books BookRemover) *Service {
	return &Service{repo: repo, books: books}
}

func (s *Service) Create(ctx context.Context, a *Author) (*Author, error) {
	if a.Name == "" {
		return nil, ErrNameRequired
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*Author, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *Service) GetMany(ctx context.Context, ids []uint) ([]*Author, error) {
	return s.repo.FindByIDs(ctx, ids)
}

func (s *Service) List(ctx context.Context) ([]*Author, error) {
	return s.repo.List(ctx)
}

func (s *Service) Update(ctx context.Context, a *Author) (*Author, error) {
	if a.Name == "" {
		return nil, ErrNameRequired
	}
	existing, err := s.repo.FindByID(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	existing.Name = a.Name
	existing.FamilyName = a.FamilyName
	existing.About = a.About
	if err := s.repo.Update(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// Delete 删除作者及其名下的图书
// 先删图书再删作者:作者删除失败时图书已删除,重试删除即可完成
func (s *Service) Delete(ctx context.Context, id uint) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return err
	}
	if err := s.books.DeleteByAuthor(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}
