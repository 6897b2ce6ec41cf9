package book

import (
	"context"

	"github.com/xiebiao/bookcatalog/internal/domain/author"
	"github.com/xiebiao/bookcatalog/internal/domain/book"
	"github.com/xiebiao/bookcatalog/internal/domain/category"
)

// 依赖的只读端口,由各领域服务实现
type (
	BookReader interface {
		GetBookByID(ctx context.Context, id uint) (*book.Book, error)
		ListBooks(ctx context.Context, params book.ListParams) ([]*book.Book, int64, error)
	}
	AuthorReader interface {
		GetMany(ctx context.Context, ids []uint) ([]*author.Author, error)
	}
	CategoryReader interface {
		List(ctx context.Context) ([]*category.Category, error)
	}
	BookmarkReader interface {
		Bookmarked(ctx context.Context, userID uint, bookIDs []uint) (map[uint]bool, error)
	}
)

// BookView 图书查询结果
// Author/Categories仅在Expand时填充,InBookmarks仅对登录用户填充
type BookView struct {
	*book.Book
	Author      *author.Author
	Categories  []*category.Category
	InBookmarks *bool
}

// QueryBooksUseCase 图书查询用例
// 1. 支持分页、搜索、排序、按分类/作者过滤
// 2. 展开作者与分类时批量查询,避免N+1
// 3. 登录用户附带书签状态
type QueryBooksUseCase struct {
	books      BookReader
	authors    AuthorReader
	categories CategoryReader
	bookmarks  BookmarkReader
}

func NewQueryBooksUseCase(books BookReader, authors AuthorReader, categories CategoryReader, bookmarks BookmarkReader) *QueryBooksUseCase {
	return &QueryBooksUseCase{books: books, authors: authors, categories: categories, bookmarks: bookmarks}
}

// ListBooksRequest 列表查询请求
type ListBooksRequest struct {
	Page       int
	PageSize   int
	Keyword    string
	SortBy     string
	CategoryID uint
	AuthorID   uint
	Expand     bool
	ViewerID   uint // 当前登录用户,0表示匿名
}

// ListBooksResponse 列表查询响应
type ListBooksResponse struct {
	List       []*BookView
	Total      int64
	Page       int
	PageSize   int
	TotalPages int
}

// List 执行列表查询
func (uc *QueryBooksUseCase) List(ctx context.Context, req ListBooksRequest) (*ListBooksResponse, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 {
		req.PageSize = 20 // 默认每页20条
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	books, total, err := uc.books.ListBooks(ctx, book.ListParams{
		Page:       req.Page,
		PageSize:   req.PageSize,
		Keyword:    req.Keyword,
		SortBy:     req.SortBy,
		CategoryID: req.CategoryID,
		AuthorID:   req.AuthorID,
	})
	if err != nil {
		return nil, err
	}

	views, err := uc.decorate(ctx, books, req.Expand, req.ViewerID)
	if err != nil {
		return nil, err
	}

	totalPages := int(total) / req.PageSize
	if int(total)%req.PageSize != 0 {
		totalPages++
	}
	return &ListBooksResponse{
		List:       views,
		Total:      total,
		Page:       req.Page,
		PageSize:   req.PageSize,
		TotalPages: totalPages,
	}, nil
}

// Get 查询单本图书
func (uc *QueryBooksUseCase) Get(ctx context.Context, id uint, expand bool, viewerID uint) (*BookView, error) {
	b, err := uc.books.GetBookByID(ctx, id)
	if err != nil {
		return nil, err
	}
	views, err := uc.decorate(ctx, []*book.Book{b}, expand, viewerID)
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

func (uc *QueryBooksUseCase) decorate(ctx context.Context, books []*book.Book, expand bool, viewerID uint) ([]*BookView, error) {
	views := make([]*BookView, len(books))
	ids := make([]uint, len(books))
	for i, b := range books {
		views[i] = &BookView{Book: b}
		ids[i] = b.ID
	}

	if expand && len(books) > 0 {
		if err := uc.expand(ctx, views); err != nil {
			return nil, err
		}
	}

	if viewerID > 0 {
		marked, err := uc.bookmarks.Bookmarked(ctx, viewerID, ids)
		if err != nil {
			return nil, err
		}
		for _, v := range views {
			in := marked[v.ID]
			v.InBookmarks = &in
		}
	}
	return views, nil
}

func (uc *QueryBooksUseCase) expand(ctx context.Context, views []*BookView) error {
	authorIDs := make([]uint, 0, len(views))
	for _, v := range views {
		authorIDs = append(authorIDs, v.AuthorID)
	}
	authors, err := uc.authors.GetMany(ctx, book.UnionIDs(authorIDs, nil))
	if err != nil {
		return err
	}
	authorByID := make(map[uint]*author.Author, len(authors))
	for _, a := range authors {
		authorByID[a.ID] = a
	}

	// 分类数量有限,一次全部读取
	cats, err := uc.categories.List(ctx)
	if err != nil {
		return err
	}
	catByID := make(map[uint]*category.Category, len(cats))
	for _, c := range cats {
		catByID[c.ID] = c
	}

	for _, v := range views {
		v.Author = authorByID[v.AuthorID]
		v.Categories = make([]*category.Category, 0, len(v.CategoryIDs))
		for _, cid := range v.CategoryIDs {
			if c, ok := catByID[cid]; ok {
				v.Categories = append(v.Categories, c)
			}
		}
	}
	return nil
}
