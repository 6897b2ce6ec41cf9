package dto

import (
	"time"

	"github.com/xiebiao/bookcatalog/internal/domain/relation"
)

// RegisterRequest HTTP注册请求
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email" example:"reader@example.com"`
	Password string `json:"password" binding:"required,min=8,max=20" example:"password123"`
	Nickname string `json:"nickname" binding:"max=50" example:"读者"`
}

// LoginRequest HTTP登录请求
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email" example:"reader@example.com"`
	Password string `json:"password" binding:"required" example:"password123"`
}

// RefreshRequest 刷新Token请求
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// TokenResponse 刷新Token响应
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in" example:"7200"`
}

// =========================================
// 用户-图书关系
// =========================================

// RateRequest 评分请求,0-4
type RateRequest struct {
	Value *int `json:"value" binding:"required,min=0,max=4" example:"4"`
}

// ListRelationsRequest 管理员可通过user查看其他用户
type ListRelationsRequest struct {
	Type   string `form:"type" binding:"omitempty,oneof=bookmark wishlist rating" example:"bookmark"`
	UserID uint   `form:"user" example:"1"`
}

type RelationResponse struct {
	ID        uint   `json:"id" example:"1"`
	UserID    uint   `json:"user_id" example:"1"`
	BookID    uint   `json:"book_id" example:"1"`
	Type      string `json:"type" example:"rating"`
	Value     *int   `json:"value,omitempty" example:"4"`
	CreatedAt string `json:"created_at" example:"2024-01-15 10:30:00"`
	UpdatedAt string `json:"updated_at" example:"2024-01-15 10:30:00"`
}

func NewRelationResponse(r *relation.Relation) *RelationResponse {
	return &RelationResponse{
		ID:        r.ID,
		UserID:    r.UserID,
		BookID:    r.BookID,
		Type:      string(r.Type),
		Value:     r.Value,
		CreatedAt: formatTime(r.CreatedAt),
		UpdatedAt: formatTime(r.UpdatedAt),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(TimeLayout)
}
