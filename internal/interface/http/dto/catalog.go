package dto

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/xiebiao/bookcatalog/internal/domain/author"
	"github.com/xiebiao/bookcatalog/internal/domain/category"
	"github.com/xiebiao/bookcatalog/internal/domain/discountgroup"
	"github.com/xiebiao/bookcatalog/internal/domain/publisher"
)

// =========================================
// 分类
// =========================================

// CategoryRequest 创建/更新分类请求
type CategoryRequest struct {
	Name        string `json:"name" binding:"required,max=100" example:"科幻"`
	Description string `json:"description" binding:"max=2000"`
}

func (r *CategoryRequest) ToEntity() *category.Category {
	return &category.Category{Name: r.Name, Description: r.Description}
}

// CategoryResponse book_count与book_average_price由异步任务维护,可能短暂滞后
type CategoryResponse struct {
	ID               uint                `json:"id" example:"1"`
	Name             string              `json:"name" example:"科幻"`
	Description      string              `json:"description"`
	BookCount        int                 `json:"book_count" example:"3"`
	BookAveragePrice decimal.NullDecimal `json:"book_average_price" swaggertype:"string" example:"40.00"`
	CreatedAt        string              `json:"created_at" example:"2024-01-15 10:30:00"`
	UpdatedAt        string              `json:"updated_at" example:"2024-01-15 10:30:00"`
}

func NewCategoryResponse(c *category.Category) *CategoryResponse {
	return &CategoryResponse{
		ID:               c.ID,
		Name:             c.Name,
		Description:      c.Description,
		BookCount:        c.BookCount,
		BookAveragePrice: c.BookAveragePrice,
		CreatedAt:        c.CreatedAt.Format(TimeLayout),
		UpdatedAt:        c.UpdatedAt.Format(TimeLayout),
	}
}

// =========================================
// 折扣组
// =========================================

// DiscountGroupRequest 创建/更新折扣组请求
type DiscountGroupRequest struct {
	Name        string      `json:"name" binding:"required,max=100" example:"会员日"`
	Discount    json.Number `json:"discount" binding:"required,decimal" swaggertype:"string" example:"20"`
	Description string      `json:"description" binding:"max=2000"`
}

func (r *DiscountGroupRequest) ToEntity() (*discountgroup.DiscountGroup, error) {
	d, err := decimal.NewFromString(r.Discount.String())
	if err != nil {
		return nil, err
	}
	return &discountgroup.DiscountGroup{Name: r.Name, Discount: d, Description: r.Description}, nil
}

type DiscountGroupResponse struct {
	ID          uint            `json:"id" example:"1"`
	Name        string          `json:"name" example:"会员日"`
	Discount    decimal.Decimal `json:"discount" swaggertype:"string" example:"20"`
	Description string          `json:"description"`
	CreatedAt   string          `json:"created_at" example:"2024-01-15 10:30:00"`
	UpdatedAt   string          `json:"updated_at" example:"2024-01-15 10:30:00"`
}

func NewDiscountGroupResponse(g *discountgroup.DiscountGroup) *DiscountGroupResponse {
	return &DiscountGroupResponse{
		ID:          g.ID,
		Name:        g.Name,
		Discount:    g.Discount,
		Description: g.Description,
		CreatedAt:   g.CreatedAt.Format(TimeLayout),
		UpdatedAt:   g.UpdatedAt.Format(TimeLayout),
	}
}

// =========================================
// 作者/出版社
// =========================================

type AuthorRequest struct {
	Name       string `json:"name" binding:"required,max=100" example:"Ursula"`
	FamilyName string `json:"family_name" binding:"max=100" example:"Le Guin"`
	About      string `json:"about" binding:"max=5000"`
}

func (r *AuthorRequest) ToEntity() *author.Author {
	return &author.Author{Name: r.Name, FamilyName: r.FamilyName, About: r.About}
}

type AuthorResponse struct {
	ID         uint   `json:"id" example:"1"`
	Name       string `json:"name" example:"Ursula"`
	FamilyName string `json:"family_name" example:"Le Guin"`
	FullName   string `json:"full_name" example:"Ursula Le Guin"`
	About      string `json:"about"`
}

func NewAuthorResponse(a *author.Author) *AuthorResponse {
	return &AuthorResponse{
		ID:         a.ID,
		Name:       a.Name,
		FamilyName: a.FamilyName,
		FullName:   a.FullName(),
		About:      a.About,
	}
}

type PublisherRequest struct {
	Name  string `json:"name" binding:"required,max=100" example:"译林出版社"`
	About string `json:"about" binding:"max=5000"`
}

func (r *PublisherRequest) ToEntity() *publisher.Publisher {
	return &publisher.Publisher{Name: r.Name, About: r.About}
}

type PublisherResponse struct {
	ID    uint   `json:"id" example:"1"`
	Name  string `json:"name" example:"译林出版社"`
	About string `json:"about"`
}

func NewPublisherResponse(p *publisher.Publisher) *PublisherResponse {
	return &PublisherResponse{ID: p.ID, Name: p.Name, About: p.About}
}
