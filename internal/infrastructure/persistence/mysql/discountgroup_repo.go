package mysql

import (
	"context"

	"gorm.io/gorm"

	"github.com/xiebiao/bookcatalog/internal/domain/discountgroup"
	apperrors "github.com/xiebiao/bookcatalog/pkg/errors"
)

type discountGroupRepository struct {
	db *gorm.DB
}

func NewDiscountGroupRepository(db *gorm.DB) *discountGroupRepository {
	return &discountGroupRepository{db: db}
}

var _ discountgroup.Repository = (*discountGroupRepository)(nil)

func (r *discountGroupRepository) Create(ctx context.Context, g *discountgroup.DiscountGroup) error {
	model := &DiscountGroupModel{Name: g.Name, Discount: g.Discount, Description: g.Description}
	if err := dbFrom(ctx, r.db).Create(model).Error; err != nil {
		return apperrors.Wrap(err, "创建折扣组失败")
	}
	g.ID = model.ID
	g.CreatedAt = model.CreatedAt
	g.UpdatedAt = model.UpdatedAt
	return nil
}

func (r *discountGroupRepository) FindByID(ctx context.Context, id uint) (*discountgroup.DiscountGroup, error) {
	var model DiscountGroupModel
	if err := dbFrom(ctx, r.db).First(&model, id).Error; err != nil {
		if isNotFound(err) {
			return nil, discountgroup.ErrDiscountGroupNotFound
		}
		return nil, apperrors.Wrap(err, "查询折扣组失败")
	}
	return toDiscountGroupEntity(&model), nil
}

// Update 折扣可以改为0,必须用Select写入零值
func (r *discountGroupRepository) Update(ctx context.Context, g *discountgroup.DiscountGroup) error {
	err := dbFrom(ctx, r.db).Model(&DiscountGroupModel{ID: g.ID}).
		Select("name", "discount", "description", "updated_at").
		Updates(&DiscountGroupModel{Name: g.Name, Discount: g.Discount, Description: g.Description}).Error
	if err != nil {
		return apperrors.Wrap(err, "更新折扣组失败")
	}
	return nil
}

// Delete 删除折扣组,引用它的图书discount_group_id置空
func (r *discountGroupRepository) Delete(ctx context.Context, id uint) error {
	err := dbFrom(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		// Unscoped:软删除的图书同样解除引用
		if err := tx.Unscoped().Model(&BookModel{}).
			Where("discount_group_id = ?", id).
			UpdateColumn("discount_group_id", nil).Error; err != nil {
			return err
		}
		result := tx.Delete(&DiscountGroupModel{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return discountgroup.ErrDiscountGroupNotFound
		}
		return nil
	})
	if err != nil {
		if apperrors.IsAppError(err) {
			return err
		}
		return apperrors.Wrap(err, "删除折扣组失败")
	}
	return nil
}

func (r *discountGroupRepository) List(ctx context.Context) ([]*discountgroup.DiscountGroup, error) {
	var models []DiscountGroupModel
	if err := dbFrom(ctx, r.db).Order("id").Find(&models).Error; err != nil {
		return nil, apperrors.Wrap(err, "查询折扣组列表失败")
	}
	out := make([]*discountgroup.DiscountGroup, len(models))
	for i := range models {
		out[i] = toDiscountGroupEntity(&models[i])
	}
	return out, nil
}

func toDiscountGroupEntity(m *DiscountGroupModel) *discountgroup.DiscountGroup {
	return &discountgroup.DiscountGroup{
		ID:          m.ID,
		Name:        m.Name,
		Discount:    m.Discount,
		Description: m.Description,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}
