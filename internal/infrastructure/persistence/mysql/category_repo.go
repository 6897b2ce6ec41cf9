package mysql

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/xiebiao/bookcatalog/internal/domain/category"
	"github.com/xiebiao/bookcatalog/internal/domain/pricing"
	apperrors "github.com/xiebiao/bookcatalog/pkg/errors"
)

// categoryRepository 分类仓储
type categoryRepository struct {
	db *gorm.DB
}

func NewCategoryRepository(db *gorm.DB) *categoryRepository {
	return &categoryRepository{db: db}
}

var _ category.Repository = (*categoryRepository)(nil)

func (r *categoryRepository) Create(ctx context.Context, c *category.Category) error {
	model := &CategoryModel{Name: c.Name, Description: c.Description}
	if err := dbFrom(ctx, r.db).Omit("book_average_price").Create(model).Error; err != nil {
		if isDuplicateError(err) {
			return category.ErrNameDuplicate
		}
		return apperrors.Wrap(err, "创建分类失败")
	}
	c.ID = model.ID
	c.BookCount = 0
	c.BookAveragePrice = decimal.NullDecimal{}
	c.CreatedAt = model.CreatedAt
	c.UpdatedAt = model.UpdatedAt
	return nil
}

func (r *categoryRepository) FindByID(ctx context.Context, id uint) (*category.Category, error) {
	var model CategoryModel
	if err := dbFrom(ctx, r.db).First(&model, id).Error; err != nil {
		if isNotFound(err) {
			return nil, category.ErrCategoryNotFound
		}
		return nil, apperrors.Wrap(err, "查询分类失败")
	}
	return toCategoryEntity(&model), nil
}

// Update 只更新名称与描述,派生字段不动
func (r *categoryRepository) Update(ctx context.Context, c *category.Category) error {
	err := dbFrom(ctx, r.db).Model(&CategoryModel{ID: c.ID}).
		Select("name", "description", "updated_at").
		Updates(&CategoryModel{Name: c.Name, Description: c.Description}).Error
	if err != nil {
		if isDuplicateError(err) {
			return category.ErrNameDuplicate
		}
		return apperrors.Wrap(err, "更新分类失败")
	}
	return nil
}

// Delete 删除分类并清除关联
func (r *categoryRepository) Delete(ctx context.Context, id uint) error {
	err := dbFrom(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("category_id = ?", id).Delete(&BookCategoryModel{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&CategoryModel{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return category.ErrCategoryNotFound
		}
		return nil
	})
	if err != nil {
		if apperrors.IsAppError(err) {
			return err
		}
		return apperrors.Wrap(err, "删除分类失败")
	}
	return nil
}

func (r *categoryRepository) List(ctx context.Context) ([]*category.Category, error) {
	var models []CategoryModel
	if err := dbFrom(ctx, r.db).Order("name").Find(&models).Error; err != nil {
		return nil, apperrors.Wrap(err, "查询分类列表失败")
	}
	out := make([]*category.Category, len(models))
	for i := range models {
		out[i] = toCategoryEntity(&models[i])
	}
	return out, nil
}

// BookPrices 分类下所有未删除图书的当前售价
// 读取的是已保存的售价,不在此处重新计算
func (r *categoryRepository) BookPrices(ctx context.Context, id uint) ([]decimal.NullDecimal, error) {
	db := dbFrom(ctx, r.db)

	var n int64
	if err := db.Model(&CategoryModel{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return nil, apperrors.Wrap(err, "查询分类失败")
	}
	if n == 0 {
		return nil, category.ErrCategoryNotFound
	}

	var prices []decimal.NullDecimal
	err := db.Model(&BookModel{}).
		Joins("JOIN book_categories bc ON bc.book_id = books.id").
		Where("bc.category_id = ?", id).
		Pluck("books.price", &prices).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "查询分类图书售价失败")
	}
	return prices, nil
}

// SaveStats 写回派生字段
func (r *categoryRepository) SaveStats(ctx context.Context, id uint, stats pricing.CategoryStats) error {
	err := dbFrom(ctx, r.db).Model(&CategoryModel{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"book_count":         stats.Count,
			"book_average_price": stats.AveragePrice,
		}).Error
	if err != nil {
		return apperrors.Wrap(err, "保存分类统计失败")
	}
	return nil
}

func toCategoryEntity(m *CategoryModel) *category.Category {
	return &category.Category{
		ID:               m.ID,
		Name:             m.Name,
		Description:      m.Description,
		BookCount:        m.BookCount,
		BookAveragePrice: m.BookAveragePrice,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}
