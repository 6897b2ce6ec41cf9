package handler

import (
	"github.com/gin-gonic/gin"

	appbook "github.com/xiebiao/bookcatalog/internal/application/book"
	"github.com/xiebiao/bookcatalog/internal/domain/book"
	"github.com/xiebiao/bookcatalog/internal/interface/http/dto"
	"github.com/xiebiao/bookcatalog/internal/interface/http/middleware"
	apperrors "github.com/xiebiao/bookcatalog/pkg/errors"
	"github.com/xiebiao/bookcatalog/pkg/response"
)

// BookHandler 图书HTTP处理器
type BookHandler struct {
	books   book.Service
	queries *appbook.QueryBooksUseCase
}

// NewBookHandler 创建图书处理器
func NewBookHandler(books book.Service, queries *appbook.QueryBooksUseCase) *BookHandler {
	return &BookHandler{books: books, queries: queries}
}

// ListBooks 图书列表
// @Summary      图书列表
// @Description  分页查询图书,支持关键词搜索、按分类/作者过滤与价格排序
// @Tags         图书
// @Produce      json
// @Param        page      query int    false "页码"
// @Param        page_size query int    false "每页数量"
// @Param        keyword   query string false "关键词"
// @Param        sort_by   query string false "排序" Enums(price_asc, price_desc, created_at_desc)
// @Param        category  query int    false "分类ID"
// @Param        author    query int    false "作者ID"
// @Param        expand    query bool   false "展开作者与分类"
// @Success      200 {object} response.Response{data=response.PageData{list=[]dto.BookResponse}}
// @Router       /api/v1/books [get]
func (h *BookHandler) ListBooks(c *gin.Context) {
	var req dto.ListBooksRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BindError(c, err)
		return
	}

	result, err := h.queries.List(c.Request.Context(), appbook.ListBooksRequest{
		Page:       req.Page,
		PageSize:   req.PageSize,
		Keyword:    req.Keyword,
		SortBy:     req.SortBy,
		CategoryID: req.CategoryID,
		AuthorID:   req.AuthorID,
		Expand:     req.Expand,
		ViewerID:   middleware.GetUserID(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	list := dto.NewBookListResponse(result.List, middleware.IsStaff(c))
	response.Success(c, response.NewPageData(list, result.Total, result.Page, result.PageSize))
}

// GetBook 图书详情
// @Summary      图书详情
// @Tags         图书
// @Produce      json
// @Param        id     path  int  true  "图书ID"
// @Param        expand query bool false "展开作者与分类"
// @Success      200 {object} response.Response{data=dto.BookResponse}
// @Failure      200 {object} response.Response "40402 图书不存在"
// @Router       /api/v1/books/{id} [get]
func (h *BookHandler) GetBook(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	expand := c.Query("expand") == "1" || c.Query("expand") == "true"

	view, err := h.queries.Get(c.Request.Context(), id, expand, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.NewBookResponse(view, middleware.IsStaff(c)))
}

// CreateBook 创建图书
// @Summary      创建图书
// @Description  管理员创建图书,售价由后台任务异步计算
// @Tags         图书
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body dto.BookRequest true "图书信息"
// @Success      200 {object} response.Response{data=dto.BookResponse}
// @Router       /api/v1/books [post]
func (h *BookHandler) CreateBook(c *gin.Context) {
	var req dto.BookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	b, err := req.ToEntity()
	if err != nil {
		response.BindError(c, err)
		return
	}

	created, err := h.books.CreateBook(c.Request.Context(), b)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.NewBookResponse(&appbook.BookView{Book: created}, true))
}

// UpdateBook 更新图书
// @Summary      更新图书
// @Tags         图书
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id      path int             true "图书ID"
// @Param        request body dto.BookRequest true "图书信息"
// @Success      200 {object} response.Response{data=dto.BookResponse}
// @Router       /api/v1/books/{id} [put]
func (h *BookHandler) UpdateBook(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req dto.BookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	b, err := req.ToEntity()
	if err != nil {
		response.BindError(c, err)
		return
	}
	b.ID = id

	updated, err := h.books.UpdateBook(c.Request.Context(), b)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.NewBookResponse(&appbook.BookView{Book: updated}, true))
}

// DeleteBook 删除图书
// @Summary      删除图书
// @Tags         图书
// @Security     BearerAuth
// @Param        id path int true "图书ID"
// @Success      200 {object} response.Response
// @Router       /api/v1/books/{id} [delete]
func (h *BookHandler) DeleteBook(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.books.DeleteBook(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// mustUser 需要登录的接口中取当前用户ID
func mustUser(c *gin.Context) (uint, bool) {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		response.Error(c, apperrors.ErrUnauthorized)
		return 0, false
	}
	return userID, true
}
