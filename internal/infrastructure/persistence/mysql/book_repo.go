package mysql

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/xiebiao/bookcatalog/internal/domain/book"
	"github.com/xiebiao/bookcatalog/internal/domain/pricing"
	apperrors "github.com/xiebiao/bookcatalog/pkg/errors"
)

// bookRepository 图书仓储的MySQL实现
// 1. Create/Update只写输入字段,派生字段(discount_total, price)只通过SavePrice写入
// 2. 分类关联在book_categories表中显式维护
// 3. 所有方法都通过getDB(ctx)取DB,以参与外层事务
type bookRepository struct {
	db *gorm.DB
}

// NewBookRepository 创建图书仓储实例
func NewBookRepository(db *gorm.DB) *bookRepository {
	return &bookRepository{db: db}
}

var _ book.Repository = (*bookRepository)(nil)

// inputColumns Update时写入的输入字段
var inputColumns = []string{
	"title", "title_original", "year_published", "description", "isbn", "cover_type",
	"author_id", "publisher_id", "discount_group_id", "price_original", "discount",
	"updated_at",
}

// Create 创建图书
func (r *bookRepository) Create(ctx context.Context, b *book.Book) error {
	model := toBookModel(b)

	err := r.getDB(ctx).Transaction(func(tx *gorm.DB) error {
		// 派生字段使用列默认值
		if err := tx.Omit("discount_total", "price").Create(model).Error; err != nil {
			return err
		}
		return replaceCategories(tx, model.ID, b.CategoryIDs)
	})
	switch {
	case err == nil:
	case apperrors.IsAppError(err):
		return err
	case isDuplicateError(err):
		return book.ErrISBNDuplicate
	case isForeignKeyError(err):
		return book.ErrInvalidReference
	default:
		return apperrors.Wrap(err, "创建图书失败")
	}

	b.ID = model.ID
	b.DiscountTotal = decimal.Zero
	b.Price = decimal.NullDecimal{}
	b.CreatedAt = model.CreatedAt
	b.UpdatedAt = model.UpdatedAt
	return nil
}

// FindByID 根据ID查找图书(包含分类ID)
func (r *bookRepository) FindByID(ctx context.Context, id uint) (*book.Book, error) {
	db := r.getDB(ctx)

	var model BookModel
	if err := db.First(&model, id).Error; err != nil {
		if isNotFound(err) {
			return nil, book.ErrBookNotFound
		}
		return nil, apperrors.Wrap(err, "查询图书失败")
	}

	cats, err := categoriesOf(db, []uint{model.ID})
	if err != nil {
		return nil, err
	}
	return toBookEntity(&model, cats[model.ID]), nil
}

// FindByISBN 根据ISBN查找图书
func (r *bookRepository) FindByISBN(ctx context.Context, isbn string) (*book.Book, error) {
	db := r.getDB(ctx)

	var model BookModel
	if err := db.Where("isbn = ?", isbn).First(&model).Error; err != nil {
		if isNotFound(err) {
			return nil, book.ErrBookNotFound
		}
		return nil, apperrors.Wrap(err, "查询图书失败")
	}

	cats, err := categoriesOf(db, []uint{model.ID})
	if err != nil {
		return nil, err
	}
	return toBookEntity(&model, cats[model.ID]), nil
}

// Update 更新输入字段并替换分类关联
// 使用Select显式列出字段,使零值(如清空折扣)也能写入
func (r *bookRepository) Update(ctx context.Context, b *book.Book) error {
	model := toBookModel(b)

	err := r.getDB(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&BookModel{ID: b.ID}).Select(inputColumns).Updates(model)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var n int64
			if err := tx.Model(&BookModel{}).Where("id = ?", b.ID).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return book.ErrBookNotFound
			}
		}
		return replaceCategories(tx, b.ID, b.CategoryIDs)
	})
	switch {
	case err == nil:
		return nil
	case apperrors.IsAppError(err):
		return err
	case isDuplicateError(err):
		return book.ErrISBNDuplicate
	case isForeignKeyError(err):
		return book.ErrInvalidReference
	default:
		return apperrors.Wrap(err, "更新图书失败")
	}
}

// Delete 软删除图书,同时清除分类关联
// 关联必须物理删除,否则分类统计会把已删除的图书算进去
func (r *bookRepository) Delete(ctx context.Context, id uint) error {
	err := r.getDB(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&BookModel{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return book.ErrBookNotFound
		}
		if err := tx.Where("book_id = ?", id).Delete(&BookCategoryModel{}).Error; err != nil {
			return err
		}
		return tx.Where("book_id = ?", id).Delete(&UserBookRelationModel{}).Error
	})
	if err != nil {
		if apperrors.IsAppError(err) {
			return err
		}
		return apperrors.Wrap(err, "删除图书失败")
	}
	return nil
}

// List 分页查询图书列表
func (r *bookRepository) List(ctx context.Context, params book.ListParams) ([]*book.Book, int64, error) {
	db := r.getDB(ctx)
	query := db.Model(&BookModel{})

	if params.Keyword != "" {
		keyword := "%" + params.Keyword + "%"
		query = query.Where("title LIKE ? OR title_original LIKE ?", keyword, keyword)
	}
	if params.AuthorID > 0 {
		query = query.Where("author_id = ?", params.AuthorID)
	}
	if params.CategoryID > 0 {
		sub := db.Model(&BookCategoryModel{}).Select("book_id").Where("category_id = ?", params.CategoryID)
		query = query.Where("id IN (?)", sub)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperrors.Wrap(err, "查询图书总数失败")
	}

	switch params.SortBy {
	case book.SortPriceAsc:
		// 无售价的图书排在最后
		query = query.Order("price IS NULL").Order("price ASC")
	case book.SortPriceDesc:
		query = query.Order("price IS NULL").Order("price DESC")
	default:
		query = query.Order("created_at DESC")
	}
	query = query.Order("id DESC")

	offset, limit := paginate(params.Page, params.PageSize)

	var models []BookModel
	if err := query.Offset(offset).Limit(limit).Find(&models).Error; err != nil {
		return nil, 0, apperrors.Wrap(err, "查询图书列表失败")
	}

	ids := make([]uint, len(models))
	for i := range models {
		ids[i] = models[i].ID
	}
	cats, err := categoriesOf(db, ids)
	if err != nil {
		return nil, 0, err
	}

	books := make([]*book.Book, len(models))
	for i := range models {
		books[i] = toBookEntity(&models[i], cats[models[i].ID])
	}
	return books, total, nil
}

// FindIDsByDiscountGroup 查询引用指定折扣组的所有图书ID
func (r *bookRepository) FindIDsByDiscountGroup(ctx context.Context, groupID uint) ([]uint, error) {
	var ids []uint
	err := r.getDB(ctx).Model(&BookModel{}).
		Where("discount_group_id = ?", groupID).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "查询折扣组图书失败")
	}
	return ids, nil
}

// FindIDsByAuthor 查询指定作者的所有图书ID(不含已删除图书)
func (r *bookRepository) FindIDsByAuthor(ctx context.Context, authorID uint) ([]uint, error) {
	var ids []uint
	err := r.getDB(ctx).Model(&BookModel{}).
		Where("author_id = ?", authorID).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "查询作者图书失败")
	}
	return ids, nil
}

// FindIDsByCategory 查询属于指定分类的所有图书ID(不含已删除图书)
func (r *bookRepository) FindIDsByCategory(ctx context.Context, categoryID uint) ([]uint, error) {
	var ids []uint
	err := r.getDB(ctx).Model(&BookModel{}).
		Joins("JOIN book_categories bc ON bc.book_id = books.id").
		Where("bc.category_id = ?", categoryID).
		Order("books.id").
		Pluck("books.id", &ids).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "查询分类图书失败")
	}
	return ids, nil
}

// LoadPriceInputs 一次读取原价、自身折扣与折扣组折扣
func (r *bookRepository) LoadPriceInputs(ctx context.Context, id uint) (book.PriceInputs, error) {
	var row struct {
		PriceOriginal decimal.NullDecimal
		Discount      decimal.NullDecimal
		GroupDiscount decimal.NullDecimal
	}
	err := r.getDB(ctx).Model(&BookModel{}).
		Select("books.price_original, books.discount, dg.discount AS group_discount").
		Joins("LEFT JOIN discount_groups dg ON dg.id = books.discount_group_id").
		Where("books.id = ?", id).
		Take(&row).Error
	if err != nil {
		if isNotFound(err) {
			return book.PriceInputs{}, book.ErrBookNotFound
		}
		return book.PriceInputs{}, apperrors.Wrap(err, "读取价格输入失败")
	}

	return book.PriceInputs{
		PriceOriginal: row.PriceOriginal,
		Discount:      row.Discount,
		GroupDiscount: row.GroupDiscount,
	}, nil
}

// SavePrice 写回派生字段
// UpdateColumns不触发钩子,也不更新updated_at
func (r *bookRepository) SavePrice(ctx context.Context, id uint, p pricing.Price) error {
	result := r.getDB(ctx).Model(&BookModel{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"discount_total": p.DiscountTotal,
			"price":          p.Price,
		})
	if result.Error != nil {
		return apperrors.Wrap(result.Error, "保存售价失败")
	}
	// 值未变化时MySQL同样返回0行,这里不据此判断图书是否存在
	return nil
}

// CategoryIDs 读取图书当前所属分类
func (r *bookRepository) CategoryIDs(ctx context.Context, id uint) ([]uint, error) {
	db := r.getDB(ctx)

	ok, err := r.exists(db, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, book.ErrBookNotFound
	}

	cats, err := categoriesOf(db, []uint{id})
	if err != nil {
		return nil, err
	}
	return cats[id], nil
}

// Exists 图书是否存在(未删除)
func (r *bookRepository) Exists(ctx context.Context, id uint) (bool, error) {
	return r.exists(r.getDB(ctx), id)
}

func (r *bookRepository) exists(db *gorm.DB, id uint) (bool, error) {
	var n int64
	if err := db.Model(&BookModel{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, apperrors.Wrap(err, "查询图书失败")
	}
	return n > 0, nil
}

// =========================================
// 辅助函数
// =========================================

// replaceCategories 用给定分类整体替换图书的分类关联
func replaceCategories(tx *gorm.DB, bookID uint, categoryIDs []uint) error {
	if err := tx.Where("book_id = ?", bookID).Delete(&BookCategoryModel{}).Error; err != nil {
		return err
	}
	if len(categoryIDs) == 0 {
		return nil
	}
	categoryIDs = book.UnionIDs(categoryIDs, nil)

	var found int64
	if err := tx.Model(&CategoryModel{}).Where("id IN ?", categoryIDs).Count(&found).Error; err != nil {
		return err
	}
	if int(found) != len(categoryIDs) {
		return book.ErrInvalidReference
	}

	links := make([]BookCategoryModel, len(categoryIDs))
	for i, cid := range categoryIDs {
		links[i] = BookCategoryModel{BookID: bookID, CategoryID: cid}
	}
	return tx.Create(&links).Error
}

// categoriesOf 批量读取图书的分类ID(避免N+1查询)
func categoriesOf(db *gorm.DB, bookIDs []uint) (map[uint][]uint, error) {
	out := make(map[uint][]uint, len(bookIDs))
	if len(bookIDs) == 0 {
		return out, nil
	}

	var links []BookCategoryModel
	if err := db.Where("book_id IN ?", bookIDs).Order("category_id").Find(&links).Error; err != nil {
		return nil, apperrors.Wrap(err, "查询图书分类失败")
	}
	for _, l := range links {
		out[l.BookID] = append(out[l.BookID], l.CategoryID)
	}
	return out, nil
}

// toBookModel 领域实体 → GORM模型
func toBookModel(b *book.Book) *BookModel {
	m := &BookModel{
		ID:              b.ID,
		Title:           b.Title,
		TitleOriginal:   b.TitleOriginal,
		YearPublished:   b.YearPublished,
		Description:     b.Description,
		AuthorID:        b.AuthorID,
		PublisherID:     b.PublisherID,
		DiscountGroupID: b.DiscountGroupID,
		PriceOriginal:   b.PriceOriginal,
		Discount:        b.Discount,
		DiscountTotal:   b.DiscountTotal,
		Price:           b.Price,
	}
	// 空ISBN存为NULL,避免唯一索引冲突
	if b.ISBN != "" {
		isbn := b.ISBN
		m.ISBN = &isbn
	}
	if b.CoverType != nil {
		ct := int(*b.CoverType)
		m.CoverType = &ct
	}
	return m
}

// toBookEntity GORM模型 → 领域实体
func toBookEntity(m *BookModel, categoryIDs []uint) *book.Book {
	b := &book.Book{
		ID:              m.ID,
		Title:           m.Title,
		TitleOriginal:   m.TitleOriginal,
		YearPublished:   m.YearPublished,
		Description:     m.Description,
		AuthorID:        m.AuthorID,
		PublisherID:     m.PublisherID,
		DiscountGroupID: m.DiscountGroupID,
		CategoryIDs:     categoryIDs,
		PriceOriginal:   m.PriceOriginal,
		Discount:        m.Discount,
		DiscountTotal:   m.DiscountTotal,
		Price:           m.Price,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
	if m.ISBN != nil {
		b.ISBN = *m.ISBN
	}
	if m.CoverType != nil {
		ct := book.CoverType(*m.CoverType)
		b.CoverType = &ct
	}
	return b
}

// getDB 从context获取事务DB,如果没有则使用默认DB
func (r *bookRepository) getDB(ctx context.Context) *gorm.DB {
	return dbFrom(ctx, r.db)
}
