// Package relation 用户与图书的关系：书签、心愿单、评分
//
// 同一用户对同一本书的同一类关系最多一条（唯一键 user_id+book_id+type）。
package relation

import (
	"context"
	"time"

	apperrors "github.com/xiebiao/bookcatalog/pkg/errors"
)

// Type 关系类型
type Type string

const (
	TypeBookmark Type = "bookmark"
	TypeWishlist Type = "wishlist"
	TypeRating   Type = "rating"
)

// 评分取值范围
const (
	MinRating = 0
	MaxRating = 4
)

func (t Type) Valid() bool {
	return t == TypeBookmark || t == TypeWishlist || t == TypeRating
}

// Relation 用户-图书关系
// Value仅评分使用
type Relation struct {
	ID        uint
	UserID    uint
	BookID    uint
	Type      Type
	Value     *int
	CreatedAt time.Time
	UpdatedAt time.Time
}

var (
	ErrRelationNotFound = apperrors.New(apperrors.ErrCodeNotFound, "记录不存在")
	ErrInvalidType      = apperrors.New(apperrors.ErrCodeInvalidParams, "关系类型不正确")
	ErrInvalidRating    = apperrors.New(apperrors.ErrCodeInvalidParams, "评分必须在0-4之间")
)

// Repository 关系仓储接口
type Repository interface {
	// Upsert 按(user_id, book_id, type)插入或更新
	Upsert(ctx context.Context, r *Relation) error
	// Delete 删除关系，不存在时返回ErrRelationNotFound
	Delete(ctx context.Context, userID, bookID uint, t Type) error
	// List 按用户查询，userID为0表示全部用户
	List(ctx context.Context, userID uint, t Type) ([]*Relation, error)
	// BookIDsOf 返回用户在bookIDs中具有指定关系的图书集合
	BookIDsOf(ctx context.Context, userID uint, t Type, bookIDs []uint) (map[uint]bool, error)
}

// BookChecker 检查图书是否存在
type BookChecker interface {
	Exists(ctx context.Context, bookID uint) (bool, error)
}

// Service 关系领域服务
type Service struct {
	repo  Repository
	books BookChecker
}

func NewService(repo Repository, books BookChecker) *Service {
	return &Service{repo: repo, books: books}
}

// Add 添加书签或心愿单（重复添加视为成功）
func (s *Service) Add(ctx context.Context, userID, bookID uint, t Type) (*Relation, error) {
	if t != TypeBookmark && t != TypeWishlist {
		return nil, ErrInvalidType
	}
	if err := s.ensureBook(ctx, bookID); err != nil {
		return nil, err
	}

	r := &Relation{UserID: userID, BookID: bookID, Type: t}
	if err := s.repo.Upsert(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Remove 移除关系
func (s *Service) Remove(ctx context.Context, userID, bookID uint, t Type) error {
	if !t.Valid() {
		return ErrInvalidType
	}
	return s.repo.Delete(ctx, userID, bookID, t)
}

// Rate 评分，重复评分覆盖旧值
func (s *Service) Rate(ctx context.Context, userID, bookID uint, value int) (*Relation, error) {
	if value < MinRating || value > MaxRating {
		return nil, ErrInvalidRating
	}
	if err := s.ensureBook(ctx, bookID); err != nil {
		return nil, err
	}

	r := &Relation{UserID: userID, BookID: bookID, Type: TypeRating, Value: &value}
	if err := s.repo.Upsert(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// List 查询关系，t为空表示全部类型
func (s *Service) List(ctx context.Context, userID uint, t Type) ([]*Relation, error) {
	if t != "" && !t.Valid() {
		return nil, ErrInvalidType
	}
	return s.repo.List(ctx, userID, t)
}

// Bookmarked 用户在bookIDs中已加入书签的图书
func (s *Service) Bookmarked(ctx context.Context, userID uint, bookIDs []uint) (map[uint]bool, error) {
	if userID == 0 || len(bookIDs) == 0 {
		return map[uint]bool{}, nil
	}
	return s.repo.BookIDsOf(ctx, userID, TypeBookmark, bookIDs)
}

func (s *Service) ensureBook(ctx context.Context, bookID uint) error {
	ok, err := s.books.Exists(ctx, bookID)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.New(apperrors.ErrCodeBookNotFound, "图书不存在")
	}
	return nil
}
