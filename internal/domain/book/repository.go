package book

import (
	"context"

	"github.com/xiebiao/bookcatalog/internal/domain/pricing"
)

// Repository 图书仓储接口(依赖倒置原则)
// 设计说明:
// 1. 由domain层定义接口,infrastructure层实现
// 2. 便于Mock测试,不依赖具体数据库实现
// 3. Create/Update不写派生字段(discount_total, price),派生字段只通过SavePrice写入
type Repository interface {
	// Create 创建图书(同时写入分类关联)
	Create(ctx context.Context, book *Book) error

	// FindByID 根据ID查找图书(包含分类ID)
	FindByID(ctx context.Context, id uint) (*Book, error)

	// FindByISBN 根据ISBN查找图书
	FindByISBN(ctx context.Context, isbn string) (*Book, error)

	// Update 更新图书输入字段并替换分类关联
	Update(ctx context.Context, book *Book) error

	// Delete 删除图书(软删除,同时清除分类关联)
	Delete(ctx context.Context, id uint) error

	// List 分页查询图书列表
	List(ctx context.Context, params ListParams) ([]*Book, int64, error)

	// FindIDsByDiscountGroup 查询引用指定折扣组的所有图书ID
	FindIDsByDiscountGroup(ctx context.Context, groupID uint) ([]uint, error)

	// FindIDsByAuthor 查询指定作者的所有图书ID
	FindIDsByAuthor(ctx context.Context, authorID uint) ([]uint, error)

	// FindIDsByCategory 查询属于指定分类的所有图书ID
	FindIDsByCategory(ctx context.Context, categoryID uint) ([]uint, error)

	// LoadPriceInputs 读取重算售价所需的输入(原价、折扣、折扣组折扣)
	LoadPriceInputs(ctx context.Context, id uint) (PriceInputs, error)

	// SavePrice 写回派生字段
	SavePrice(ctx context.Context, id uint, price pricing.Price) error

	// CategoryIDs 读取图书当前所属分类
	CategoryIDs(ctx context.Context, id uint) ([]uint, error)
}

// ListParams 列表查询参数
type ListParams struct {
	Page       int    // 页码(从1开始)
	PageSize   int    // 每页数量
	Keyword    string // 搜索关键词(搜索书名、原书名)
	SortBy     string // 排序字段(price_asc, price_desc, created_at_desc)
	CategoryID uint   // 按分类过滤,0表示不过滤
	AuthorID   uint   // 按作者过滤,0表示不过滤
}

// 排序方式
const (
	SortPriceAsc      = "price_asc"
	SortPriceDesc     = "price_desc"
	SortCreatedAtDesc = "created_at_desc"
)
