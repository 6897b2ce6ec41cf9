package mysql

import (
	"context"

	"gorm.io/gorm"

	"github.com/xiebiao/bookcatalog/internal/domain/author"
	"github.com/xiebiao/bookcatalog/internal/domain/publisher"
	apperrors "github.com/xiebiao/bookcatalog/pkg/errors"
)

// =========================================
// 作者
// =========================================

type authorRepository struct {
	db *gorm.DB
}

func NewAuthorRepository(db *gorm.DB) *authorRepository {
	return &authorRepository{db: db}
}

var _ author.Repository = (*authorRepository)(nil)

func (r *authorRepository) Create(ctx context.Context, a *author.Author) error {
	model := &AuthorModel{Name: a.Name, FamilyName: a.FamilyName, About: a.About}
	if err := dbFrom(ctx, r.db).Create(model).Error; err != nil {
		return apperrors.Wrap(err, "创建作者失败")
	}
	a.ID = model.ID
	a.CreatedAt = model.CreatedAt
	a.UpdatedAt = model.UpdatedAt
	return nil
}

func (r *authorRepository) FindByID(ctx context.Context, id uint) (*author.Author, error) {
	var model AuthorModel
	if err := dbFrom(ctx, r.db).First(&model, id).Error; err != nil {
		if isNotFound(err) {
			return nil, author.ErrAuthorNotFound
		}
		return nil, apperrors.Wrap(err, "查询作者失败")
	}
	return toAuthorEntity(&model), nil
}

// FindByIDs 批量查询(列表页展开作者信息)
func (r *authorRepository) FindByIDs(ctx context.Context, ids []uint) ([]*author.Author, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var models []AuthorModel
	if err := dbFrom(ctx, r.db).Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, apperrors.Wrap(err, "查询作者失败")
	}
	out := make([]*author.Author, len(models))
	for i := range models {
		out[i] = toAuthorEntity(&models[i])
	}
	return out, nil
}

func (r *authorRepository) Update(ctx context.Context, a *author.Author) error {
	err := dbFrom(ctx, r.db).Model(&AuthorModel{ID: a.ID}).
		Select("name", "family_name", "about", "updated_at").
		Updates(&AuthorModel{Name: a.Name, FamilyName: a.FamilyName, About: a.About}).Error
	if err != nil {
		return apperrors.Wrap(err, "更新作者失败")
	}
	return nil
}

// Delete 仍有未删除图书引用时拒绝删除
func (r *authorRepository) Delete(ctx context.Context, id uint) error {
	err := dbFrom(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&BookModel{}).Where("author_id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return author.ErrAuthorInUse
		}
		result := tx.Delete(&AuthorModel{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return author.ErrAuthorNotFound
		}
		return nil
	})
	if err != nil {
		if apperrors.IsAppError(err) {
			return err
		}
		return apperrors.Wrap(err, "删除作者失败")
	}
	return nil
}

func (r *authorRepository) List(ctx context.Context) ([]*author.Author, error) {
	var models []AuthorModel
	if err := dbFrom(ctx, r.db).Order("family_name, name").Find(&models).Error; err != nil {
		return nil, apperrors.Wrap(err, "查询作者列表失败")
	}
	out := make([]*author.Author, len(models))
	for i := range models {
		out[i] = toAuthorEntity(&models[i])
	}
	return out, nil
}

func toAuthorEntity(m *AuthorModel) *author.Author {
	return &author.Author{
		ID:         m.ID,
		Name:       m.Name,
		FamilyName: m.FamilyName,
		About:      m.About,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

// =========================================
// 出版社
// =========================================

type publisherRepository struct {
	db *gorm.DB
}

func NewPublisherRepository(db *gorm.DB) *publisherRepository {
	return &publisherRepository{db: db}
}

var _ publisher.Repository = (*publisherRepository)(nil)

func (r *publisherRepository) Create(ctx context.Context, p *publisher.Publisher) error {
	model := &PublisherModel{Name: p.Name, About: p.About}
	if err := dbFrom(ctx, r.db).Create(model).Error; err != nil {
		return apperrors.Wrap(err, "创建出版社失败")
	}
	p.ID = model.ID
	p.CreatedAt = model.CreatedAt
	p.UpdatedAt = model.UpdatedAt
	return nil
}

func (r *publisherRepository) FindByID(ctx context.Context, id uint) (*publisher.Publisher, error) {
	var model PublisherModel
	if err := dbFrom(ctx, r.db).First(&model, id).Error; err != nil {
		if isNotFound(err) {
			return nil, publisher.ErrPublisherNotFound
		}
		return nil, apperrors.Wrap(err, "查询出版社失败")
	}
	return toPublisherEntity(&model), nil
}

func (r *publisherRepository) Update(ctx context.Context, p *publisher.Publisher) error {
	err := dbFrom(ctx, r.db).Model(&PublisherModel{ID: p.ID}).
		Select("name", "about", "updated_at").
		Updates(&PublisherModel{Name: p.Name, About: p.About}).Error
	if err != nil {
		return apperrors.Wrap(err, "更新出版社失败")
	}
	return nil
}

// Delete 删除出版社,引用它的图书publisher_id置空
func (r *publisherRepository) Delete(ctx context.Context, id uint) error {
	err := dbFrom(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Model(&BookModel{}).
			Where("publisher_id = ?", id).
			UpdateColumn("publisher_id", nil).Error; err != nil {
			return err
		}
		result := tx.Delete(&PublisherModel{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return publisher.ErrPublisherNotFound
		}
		return nil
	})
	if err != nil {
		if apperrors.IsAppError(err) {
			return err
		}
		return apperrors.Wrap(err, "删除出版社失败")
	}
	return nil
}

func (r *publisherRepository) List(ctx context.Context) ([]*publisher.Publisher, error) {
	var models []PublisherModel
	if err := dbFrom(ctx, r.db).Order("name").Find(&models).Error; err != nil {
		return nil, apperrors.Wrap(err, "查询出版社列表失败")
	}
	out := make([]*publisher.Publisher, len(models))
	for i := range models {
		out[i] = toPublisherEntity(&models[i])
	}
	return out, nil
}

func toPublisherEntity(m *PublisherModel) *publisher.Publisher {
	return &publisher.Publisher{
		ID:        m.ID,
		Name:      m.Name,
		About:     m.About,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
