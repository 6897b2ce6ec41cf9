package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xiebiao/bookcatalog/internal/domain/author"
	"github.com/xiebiao/bookcatalog/internal/domain/category"
	"github.com/xiebiao/bookcatalog/internal/domain/discountgroup"
	"github.com/xiebiao/bookcatalog/internal/domain/publisher"
	"github.com/xiebiao/bookcatalog/internal/interface/http/dto"
	"github.com/xiebiao/bookcatalog/pkg/response"
)

// =========================================
// 分类
// =========================================

// CategoryHandler 分类HTTP处理器
type CategoryHandler struct {
	categories *category.Service
}

func NewCategoryHandler(categories *category.Service) *CategoryHandler {
	return &CategoryHandler{categories: categories}
}

// List 分类列表
// @Summary  分类列表
// @Tags     分类
// @Produce  json
// @Success  200 {object} response.Response{data=[]dto.CategoryResponse}
// @Router   /api/v1/categories [get]
func (h *CategoryHandler) List(c *gin.Context) {
	list, err := h.categories.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	out := make([]*dto.CategoryResponse, len(list))
	for i, cat := range list {
		out[i] = dto.NewCategoryResponse(cat)
	}
	response.Success(c, out)
}

// Get 分类详情
// @Summary  分类详情
// @Tags     分类
// @Produce  json
// @Param    id path int true "分类ID"
// @Success  200 {object} response.Response{data=dto.CategoryResponse}
// @Router   /api/v1/categories/{id} [get]
func (h *CategoryHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	cat, err := h.categories.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.NewCategoryResponse(cat))
}

// Create 创建分类
// @Summary  创建分类
// @Tags     分类
// @Accept   json
// @Produce  json
// @Security BearerAuth
// @Param    request body dto.CategoryRequest true "分类信息"
// @Success  200 {object} response.Response{data=dto.CategoryResponse}
// @Router   /api/v1/categories [post]
func (h *CategoryHandler) Create(c *gin.Context) {
	var req dto.CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	cat, err := h.categories.Create(c.Request.Context(), req.ToEntity())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.NewCategoryResponse(cat))
}

// Update 更新分类,会触发分类统计重算
// @Summary  更新分类
// @Tags     分类
// @Accept   json
// @Produce  json
// @Security BearerAuth
// @Param    id      path int                 true "分类ID"
// @Param    request body dto.CategoryRequest true "分类信息"
// @Success  200 {object} response.Response{data=dto.CategoryResponse}
// @Router   /api/v1/categories/{id} [put]
func (h *CategoryHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req dto.CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	in := req.ToEntity()
	in.ID = id

	cat, err := h.categories.Update(c.Request.Context(), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.NewCategoryResponse(cat))
}

// Delete 删除分类
// @Summary  删除分类
// @Tags     分类
// @Security BearerAuth
// @Param    id path int true "分类ID"
// @Success  200 {object} response.Response
// @Router   /api/v1/categories/{id} [delete]
func (h *CategoryHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.categories.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// =========================================
// 折扣组(仅管理员)
// =========================================

type DiscountGroupHandler struct {
	groups *discountgroup.Service
}

func NewDiscountGroupHandler(groups *discountgroup.Service) *DiscountGroupHandler {
	return &DiscountGroupHandler{groups: groups}
}

// List 折扣组列表
// @Summary  折扣组列表
// @Tags     折扣组
// @Produce  json
// @Security BearerAuth
// @Success  200 {object} response.Response{data=[]dto.DiscountGroupResponse}
// @Router   /api/v1/discount-groups [get]
func (h *DiscountGroupHandler) List(c *gin.Context) {
	list, err := h.groups.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	out := make([]*dto.DiscountGroupResponse, len(list))
	for i, g := range list {
		out[i] = dto.NewDiscountGroupResponse(g)
	}
	response.Success(c, out)
}

// Get 折扣组详情
// @Summary  折扣组详情
// @Tags     折扣组
// @Produce  json
// @Security BearerAuth
// @Param    id path int true "折扣组ID"
// @Success  200 {object} response.Response{data=dto.DiscountGroupResponse}
// @Router   /api/v1/discount-groups/{id} [get]
func (h *DiscountGroupHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	g, err := h.groups.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.NewDiscountGroupResponse(g))
}

// Create 创建折扣组
// @Summary  创建折扣组
// @Tags     折扣组
// @Accept   json
// @Produce  json
// @Security BearerAuth
// @Param    request body dto.DiscountGroupRequest true "折扣组信息"
// @Success  200 {object} response.Response{data=dto.DiscountGroupResponse}
// @Router   /api/v1/discount-groups [post]
func (h *DiscountGroupHandler) Create(c *gin.Context) {
	var req dto.DiscountGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	in, err := req.ToEntity()
	if err != nil {
		response.BindError(c, err)
		return
	}
	g, err := h.groups.Create(c.Request.Context(), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.NewDiscountGroupResponse(g))
}

// Update 更新折扣组,组内图书售价异步重算
// @Summary  更新折扣组
// @Tags     折扣组
// @Accept   json
// @Produce  json
// @Security BearerAuth
// @Param    id      path int                      true "折扣组ID"
// @Param    request body dto.DiscountGroupRequest true "折扣组信息"
// @Success  200 {object} response.Response{data=dto.DiscountGroupResponse}
// @Router   /api/v1/discount-groups/{id} [put]
func (h *DiscountGroupHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req dto.DiscountGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	in, err := req.ToEntity()
	if err != nil {
		response.BindError(c, err)
		return
	}
	in.ID = id

	g, err := h.groups.Update(c.Request.Context(), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.NewDiscountGroupResponse(g))
}

// Delete 删除折扣组,组内图书售价异步重算
// @Summary  删除折扣组
// @Tags     折扣组
// @Security BearerAuth
// @Param    id path int true "折扣组ID"
// @Success  200 {object} response.Response
// @Router   /api/v1/discount-groups/{id} [delete]
func (h *DiscountGroupHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.groups.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// =========================================
// 作者
// =========================================

type AuthorHandler struct {
	authors *author.Service
}

func NewAuthorHandler(authors *author.Service) *AuthorHandler {
	return &AuthorHandler{authors: authors}
}

// List 作者列表
// @Summary  作者列表
// @Tags     作者
// @Produce  json
// @Success  200 {object} response.Response{data=[]dto.AuthorResponse}
// @Router   /api/v1/authors [get]
func (h *AuthorHandler) List(c *gin.Context) {
	list, err := h.authors.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	out := make([]*dto.AuthorResponse, len(list))
	for i, a := range list {
		out[i] = dto.NewAuthorResponse(a)
	}
	response.Success(c, out)
}

// @Summary  作者详情
// @Tags     作者
// @Produce  json
// @Param    id path int true "作者ID"
// @Success  200 {object} response.Response{data=dto.AuthorResponse}
// @Router   /api/v1/authors/{id} [get]
func (h *AuthorHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	a, err := h.authors.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.NewAuthorResponse(a))
}

// @Summary  创建作者
// @Tags     作者
// @Accept   json
// @Produce  json
// @Security BearerAuth
// @Param    request body dto.AuthorRequest true "作者信息"
// @Success  200 {object} response.Response{data=dto.AuthorResponse}
// @Router   /api/v1/authors [post]
func (h *AuthorHandler) Create(c *gin.Context) {
	var req dto.AuthorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	a, err := h.authors.Create(c.Request.Context(), req.ToEntity())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.NewAuthorResponse(a))
}

// @Summary  更新作者
// @Tags     作者
// @Accept   json
// @Produce  json
// @Security BearerAuth
// @Param    id      path int               true "作者ID"
// @Param    request body dto.AuthorRequest true "作者信息"
// @Success  200 {object} response.Response{data=dto.AuthorResponse}
// @Router   /api/v1/authors/{id} [put]
func (h *AuthorHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req dto.AuthorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	in := req.ToEntity()
	in.ID = id
	a, err := h.authors.Update(c.Request.Context(), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.NewAuthorResponse(a))
}

// Delete 同时删除作者名下的图书
// @Summary  删除作者
// @Tags     作者
// @Security BearerAuth
// @Param    id path int true "作者ID"
// @Success  200 {object} response.Response
// @Router   /api/v1/authors/{id} [delete]
func (h *AuthorHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.authors.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// =========================================
// 出版社
// =========================================

type PublisherHandler struct {
	publishers *publisher.Service
}

func NewPublisherHandler(publishers *publisher.Service) *PublisherHandler {
	return &PublisherHandler{publishers: publishers}
}

// @Summary  出版社列表
// @Tags     出版社
// @Produce  json
// @Success  200 {object} response.Response{data=[]dto.PublisherResponse}
// @Router   /api/v1/publishers [get]
func (h *PublisherHandler) List(c *gin.Context) {
	list, err := h.publishers.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	out := make([]*dto.PublisherResponse, len(list))
	for i, p := range list {
		out[i] = dto.NewPublisherResponse(p)
	}
	response.Success(c, out)
}

// @Summary  出版社详情
// @Tags     出版社
// @Produce  json
// @Param    id path int true "出版社ID"
// @Success  200 {object} response.Response{data=dto.PublisherResponse}
// @Router   /api/v1/publishers/{id} [get]
func (h *PublisherHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	p, err := h.publishers.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.NewPublisherResponse(p))
}

// @Summary  创建出版社
// @Tags     出版社
// @Accept   json
// @Produce  json
// @Security BearerAuth
// @Param    request body dto.PublisherRequest true "出版社信息"
// @Success  200 {object} response.Response{data=dto.PublisherResponse}
// @Router   /api/v1/publishers [post]
func (h *PublisherHandler) Create(c *gin.Context) {
	var req dto.PublisherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	p, err := h.publishers.Create(c.Request.Context(), req.ToEntity())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.NewPublisherResponse(p))
}

// @Summary  更新出版社
// @Tags     出版社
// @Accept   json
// @Produce  json
// @Security BearerAuth
// @Param    id      path int                  true "出版社ID"
// @Param    request body dto.PublisherRequest true "出版社信息"
// @Success  200 {object} response.Response{data=dto.PublisherResponse}
// @Router   /api/v1/publishers/{id} [put]
func (h *PublisherHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req dto.PublisherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	in := req.ToEntity()
	in.ID = id
	p, err := h.publishers.Update(c.Request.Context(), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.NewPublisherResponse(p))
}

// @Summary  删除出版社
// @Tags     出版社
// @Security BearerAuth
// @Param    id path int true "出版社ID"
// @Success  200 {object} response.Response
// @Router   /api/v1/publishers/{id} [delete]
func (h *PublisherHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.publishers.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}
