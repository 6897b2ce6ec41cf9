package book

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xiebiao/bookcatalog/internal/domain/pricing"
)

// CoverType 封面类型
type CoverType int

const (
	CoverHardback  CoverType = 0 // 精装
	CoverPaperback CoverType = 1 // 平装
)

// Valid 是否为已知的封面类型
func (c CoverType) Valid() bool {
	return c == CoverHardback || c == CoverPaperback
}

// Book 图书实体(聚合根)
// DDD设计说明:
// 1. 金额使用decimal定点数(避免浮点数精度问题),原价与折扣可为空
// 2. DiscountTotal与Price是派生字段,只由异步重算任务写入,不能由客户端直接修改
// 3. 作者、出版社、折扣组、分类均以ID引用,不内嵌实体
type Book struct {
	ID            uint
	Title         string
	TitleOriginal string
	YearPublished *int
	Description   string
	ISBN          string
	CoverType     *CoverType
	AuthorID      uint
	PublisherID   *uint

	PriceOriginal   decimal.NullDecimal // 原价
	Discount        decimal.NullDecimal // 自身折扣(百分比),为空视为0
	DiscountGroupID *uint
	CategoryIDs     []uint

	DiscountTotal decimal.Decimal     // 派生:总折扣
	Price         decimal.NullDecimal // 派生:实际售价

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate 写入前的业务规则校验
// 规则:
// - 书名与作者必填
// - 原价不能为0或负数(为空允许,表示暂无定价)
// - 折扣在0-100之间
func (b *Book) Validate() error {
	if b.Title == "" {
		return ErrTitleRequired
	}
	if b.AuthorID == 0 {
		return ErrAuthorRequired
	}
	if b.PriceOriginal.Valid && !b.PriceOriginal.Decimal.IsPositive() {
		return ErrInvalidPrice
	}
	if b.Discount.Valid && !pricing.ValidPercentage(b.Discount.Decimal) {
		return ErrInvalidDiscount
	}
	if b.CoverType != nil && !b.CoverType.Valid() {
		return ErrInvalidCoverType
	}
	return nil
}

// HasCategory 图书是否属于指定分类
func (b *Book) HasCategory(categoryID uint) bool {
	for _, id := range b.CategoryIDs {
		if id == categoryID {
			return true
		}
	}
	return false
}

// PriceInputs 重算售价所需的输入(一次读取)
type PriceInputs struct {
	PriceOriginal decimal.NullDecimal
	Discount      decimal.NullDecimal
	GroupDiscount decimal.NullDecimal // 未加入折扣组时为空
}

// UnionIDs 合并两个ID集合并去重,保持首次出现的顺序
func UnionIDs(a, b []uint) []uint {
	seen := make(map[uint]struct{}, len(a)+len(b))
	out := make([]uint, 0, len(a)+len(b))
	for _, list := range [][]uint{a, b} {
		for _, id := range list {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
