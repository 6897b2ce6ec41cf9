package mysql

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/xiebiao/bookcatalog/internal/domain/relation"
	apperrors "github.com/xiebiao/bookcatalog/pkg/errors"
)

// relationRepository 用户-图书关系仓储
type relationRepository struct {
	db *gorm.DB
}

func NewRelationRepository(db *gorm.DB) *relationRepository {
	return &relationRepository{db: db}
}

var _ relation.Repository = (*relationRepository)(nil)

// Upsert 依赖唯一索引uk_user_book_type,冲突时只更新value
// MySQL的ON DUPLICATE KEY不回填已有行的ID,写入后重新读取
func (r *relationRepository) Upsert(ctx context.Context, rel *relation.Relation) error {
	db := dbFrom(ctx, r.db)

	model := &UserBookRelationModel{
		UserID: rel.UserID,
		BookID: rel.BookID,
		Type:   string(rel.Type),
		Value:  rel.Value,
	}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "book_id"}, {Name: "type"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(model).Error
	if err != nil {
		return apperrors.Wrap(err, "保存用户图书关系失败")
	}

	var saved UserBookRelationModel
	err = db.Where("user_id = ? AND book_id = ? AND type = ?", rel.UserID, rel.BookID, string(rel.Type)).
		First(&saved).Error
	if err != nil {
		return apperrors.Wrap(err, "查询用户图书关系失败")
	}
	*rel = *toRelationEntity(&saved)
	return nil
}

func (r *relationRepository) Delete(ctx context.Context, userID, bookID uint, t relation.Type) error {
	result := dbFrom(ctx, r.db).
		Where("user_id = ? AND book_id = ? AND type = ?", userID, bookID, string(t)).
		Delete(&UserBookRelationModel{})
	if result.Error != nil {
		return apperrors.Wrap(result.Error, "删除用户图书关系失败")
	}
	if result.RowsAffected == 0 {
		return relation.ErrRelationNotFound
	}
	return nil
}

// List userID为0表示全部用户,t为空表示全部类型
func (r *relationRepository) List(ctx context.Context, userID uint, t relation.Type) ([]*relation.Relation, error) {
	query := dbFrom(ctx, r.db).Model(&UserBookRelationModel{})
	if userID > 0 {
		query = query.Where("user_id = ?", userID)
	}
	if t != "" {
		query = query.Where("type = ?", string(t))
	}

	var models []UserBookRelationModel
	if err := query.Order("created_at DESC").Order("id DESC").Find(&models).Error; err != nil {
		return nil, apperrors.Wrap(err, "查询用户图书关系失败")
	}
	out := make([]*relation.Relation, len(models))
	for i := range models {
		out[i] = toRelationEntity(&models[i])
	}
	return out, nil
}

func (r *relationRepository) BookIDsOf(ctx context.Context, userID uint, t relation.Type, bookIDs []uint) (map[uint]bool, error) {
	out := make(map[uint]bool)
	if len(bookIDs) == 0 {
		return out, nil
	}

	var ids []uint
	err := dbFrom(ctx, r.db).Model(&UserBookRelationModel{}).
		Where("user_id = ? AND type = ? AND book_id IN ?", userID, string(t), bookIDs).
		Pluck("book_id", &ids).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "查询用户图书关系失败")
	}
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

func toRelationEntity(m *UserBookRelationModel) *relation.Relation {
	return &relation.Relation{
		ID:        m.ID,
		UserID:    m.UserID,
		BookID:    m.BookID,
		Type:      relation.Type(m.Type),
		Value:     m.Value,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
