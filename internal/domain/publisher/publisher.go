// Package publisher 出版社
package publisher

import (
	"context"
	"time"

	apperrors "github.com/xiebiao/bookcatalog/pkg/errors"
)

type Publisher struct {
	ID        uint
	Name      string
	About     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

var (
	ErrPublisherNotFound = apperrors.New(apperrors.ErrCodePublisherNotFound, "出版社不存在")
	ErrNameRequired      = apperrors.New(apperrors.ErrCodeInvalidParams, "出版社名称不能为空")
)

type Repository interface {
	Create(ctx context.Context, p *Publisher) error
	FindByID(ctx context.Context, id uint) (*Publisher, error)
	Update(ctx context.Context, p *Publisher) error
	// Delete 删除出版社,引用它的图书publisher_id置空
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context) ([]*Publisher, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, p *Publisher) (*Publisher, error) {
	if p.Name == "" {
		return nil, ErrNameRequired
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*Publisher, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*Publisher, error) {
	return s.repo.List(ctx)
}

func (s *Service) Update(ctx context.Context, p *Publisher) (*Publisher, error) {
	if p.Name == "" {
		return nil, ErrNameRequired
	}
	existing, err := s.repo.FindByID(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	existing.Name = p.Name
	existing.About = p.About
	if err := s.repo.Update(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

func (s *Service) Delete(ctx context.Context, id uint) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}
