package dto

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	appbook "github.com/xiebiao/bookcatalog/internal/application/book"
	"github.com/xiebiao/bookcatalog/internal/domain/book"
)

// BookRequest 创建/更新图书请求(PUT为整体替换)
// 金额字段接受数字或字符串,如 59.90 或 "59.90"
type BookRequest struct {
	Title           string       `json:"title" binding:"required,max=200" example:"地海巫师"`
	TitleOriginal   string       `json:"title_original" binding:"max=200" example:"A Wizard of Earthsea"`
	YearPublished   *int         `json:"year_published" binding:"omitempty,min=0,max=9999" example:"1968"`
	Description     string       `json:"description" binding:"max=5000"`
	ISBN            string       `json:"isbn" binding:"omitempty,max=20" example:"9787544768210"`
	CoverType       *int         `json:"cover_type" binding:"omitempty,oneof=0 1" example:"1"` // 0精装 1平装
	AuthorID        uint         `json:"author_id" binding:"required" example:"1"`
	PublisherID     *uint        `json:"publisher_id" example:"1"`
	PriceOriginal   *json.Number `json:"price_original" binding:"omitempty,nonzero_decimal" swaggertype:"string" example:"59.90"`
	Discount        *json.Number `json:"discount" binding:"omitempty,decimal" swaggertype:"string" example:"15"`
	DiscountGroupID *uint        `json:"discount_group_id" example:"1"`
	CategoryIDs     []uint       `json:"category_ids" binding:"omitempty,dive,min=1"`
}

// ToEntity 转换为领域实体(派生字段不从请求读取)
func (r *BookRequest) ToEntity() (*book.Book, error) {
	priceOriginal, err := parseNullDecimal(r.PriceOriginal)
	if err != nil {
		return nil, err
	}
	discount, err := parseNullDecimal(r.Discount)
	if err != nil {
		return nil, err
	}

	b := &book.Book{
		Title:           r.Title,
		TitleOriginal:   r.TitleOriginal,
		YearPublished:   r.YearPublished,
		Description:     r.Description,
		ISBN:            r.ISBN,
		AuthorID:        r.AuthorID,
		PublisherID:     r.PublisherID,
		PriceOriginal:   priceOriginal,
		Discount:        discount,
		DiscountGroupID: r.DiscountGroupID,
		CategoryIDs:     r.CategoryIDs,
	}
	if r.CoverType != nil {
		ct := book.CoverType(*r.CoverType)
		b.CoverType = &ct
	}
	return b, nil
}

// ListBooksRequest 图书列表请求
type ListBooksRequest struct {
	Page       int    `form:"page" binding:"omitempty,min=1" example:"1"`
	PageSize   int    `form:"page_size" binding:"omitempty,min=1,max=100" example:"20"`
	Keyword    string `form:"keyword" binding:"omitempty,max=100" example:"地海"`
	SortBy     string `form:"sort_by" binding:"omitempty,oneof=price_asc price_desc created_at_desc" example:"price_asc"`
	CategoryID uint   `form:"category" example:"1"`
	AuthorID   uint   `form:"author" example:"1"`
	Expand     bool   `form:"expand" example:"true"`
}

// BookResponse 图书响应
// PriceOriginal/Discount/DiscountGroupID只对管理员返回
// Author/Categories只在expand时返回,InBookmarks只对登录用户返回
type BookResponse struct {
	ID            uint                `json:"id" example:"1"`
	Title         string              `json:"title" example:"地海巫师"`
	TitleOriginal string              `json:"title_original" example:"A Wizard of Earthsea"`
	YearPublished *int                `json:"year_published" example:"1968"`
	Description   string              `json:"description"`
	ISBN          string              `json:"isbn" example:"9787544768210"`
	CoverType     *int                `json:"cover_type" example:"1"`
	AuthorID      uint                `json:"author_id" example:"1"`
	PublisherID   *uint               `json:"publisher_id" example:"1"`
	CategoryIDs   []uint              `json:"category_ids"`
	DiscountTotal decimal.Decimal     `json:"discount_total" swaggertype:"string" example:"15"`
	Price         decimal.NullDecimal `json:"price" swaggertype:"string" example:"50.92"`

	PriceOriginal   *decimal.NullDecimal `json:"price_original,omitempty" swaggertype:"string" example:"59.90"`
	Discount        *decimal.NullDecimal `json:"discount,omitempty" swaggertype:"string" example:"15"`
	DiscountGroupID *uint                `json:"discount_group_id,omitempty" example:"1"`

	Author      *AuthorResponse    `json:"author,omitempty"`
	Categories  []CategoryResponse `json:"categories,omitempty"`
	InBookmarks *bool              `json:"in_bookmarks,omitempty"`

	CreatedAt string `json:"created_at" example:"2024-01-15 10:30:00"`
	UpdatedAt string `json:"updated_at" example:"2024-01-15 10:30:00"`
}

// NewBookResponse staff为true时附带定价输入字段
func NewBookResponse(v *appbook.BookView, staff bool) *BookResponse {
	b := v.Book
	resp := &BookResponse{
		ID:            b.ID,
		Title:         b.Title,
		TitleOriginal: b.TitleOriginal,
		YearPublished: b.YearPublished,
		Description:   b.Description,
		ISBN:          b.ISBN,
		AuthorID:      b.AuthorID,
		PublisherID:   b.PublisherID,
		CategoryIDs:   b.CategoryIDs,
		DiscountTotal: b.DiscountTotal,
		Price:         b.Price,
		InBookmarks:   v.InBookmarks,
		CreatedAt:     b.CreatedAt.Format(TimeLayout),
		UpdatedAt:     b.UpdatedAt.Format(TimeLayout),
	}
	if resp.CategoryIDs == nil {
		resp.CategoryIDs = []uint{}
	}
	if b.CoverType != nil {
		ct := int(*b.CoverType)
		resp.CoverType = &ct
	}
	if staff {
		priceOriginal, discount := b.PriceOriginal, b.Discount
		resp.PriceOriginal = &priceOriginal
		resp.Discount = &discount
		resp.DiscountGroupID = b.DiscountGroupID
	}
	if v.Author != nil {
		resp.Author = NewAuthorResponse(v.Author)
	}
	for _, c := range v.Categories {
		resp.Categories = append(resp.Categories, *NewCategoryResponse(c))
	}
	return resp
}

// NewBookListResponse 列表响应
func NewBookListResponse(views []*appbook.BookView, staff bool) []*BookResponse {
	out := make([]*BookResponse, len(views))
	for i, v := range views {
		out[i] = NewBookResponse(v, staff)
	}
	return out
}
