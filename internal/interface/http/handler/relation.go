package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xiebiao/bookcatalog/internal/domain/relation"
	"github.com/xiebiao/bookcatalog/internal/interface/http/dto"
	"github.com/xiebiao/bookcatalog/internal/interface/http/middleware"
	"github.com/xiebiao/bookcatalog/pkg/response"
)

// RelationHandler 书签、心愿单与评分
type RelationHandler struct {
	relations *relation.Service
}

func NewRelationHandler(relations *relation.Service) *RelationHandler {
	return &RelationHandler{relations: relations}
}

// List 当前用户的关系记录,管理员可通过?user=查看指定用户
// @Summary  我的书签/心愿单/评分
// @Tags     用户关系
// @Produce  json
// @Security BearerAuth
// @Param    type query string false "类型" Enums(bookmark, wishlist, rating)
// @Param    user query int    false "用户ID(仅管理员)"
// @Success  200 {object} response.Response{data=[]dto.RelationResponse}
// @Router   /api/v1/relations [get]
func (h *RelationHandler) List(c *gin.Context) {
	userID, ok := mustUser(c)
	if !ok {
		return
	}
	var req dto.ListRelationsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BindError(c, err)
		return
	}
	// 普通用户忽略user参数
	if middleware.IsStaff(c) && req.UserID > 0 {
		userID = req.UserID
	}

	list, err := h.relations.List(c.Request.Context(), userID, relation.Type(req.Type))
	if err != nil {
		response.Error(c, err)
		return
	}
	out := make([]*dto.RelationResponse, len(list))
	for i, r := range list {
		out[i] = dto.NewRelationResponse(r)
	}
	response.Success(c, out)
}

// AddBookmark 加入书签
// @Summary  加入书签
// @Tags     用户关系
// @Security BearerAuth
// @Param    id path int true "图书ID"
// @Success  200 {object} response.Response{data=dto.RelationResponse}
// @Router   /api/v1/books/{id}/bookmark [post]
func (h *RelationHandler) AddBookmark(c *gin.Context) {
	h.add(c, relation.TypeBookmark)
}

// RemoveBookmark 移出书签
// @Summary  移出书签
// @Tags     用户关系
// @Security BearerAuth
// @Param    id path int true "图书ID"
// @Success  200 {object} response.Response
// @Router   /api/v1/books/{id}/bookmark [delete]
func (h *RelationHandler) RemoveBookmark(c *gin.Context) {
	h.remove(c, relation.TypeBookmark)
}

// AddWishlist 加入心愿单
// @Summary  加入心愿单
// @Tags     用户关系
// @Security BearerAuth
// @Param    id path int true "图书ID"
// @Success  200 {object} response.Response{data=dto.RelationResponse}
// @Router   /api/v1/books/{id}/wishlist [post]
func (h *RelationHandler) AddWishlist(c *gin.Context) {
	h.add(c, relation.TypeWishlist)
}

// RemoveWishlist 移出心愿单
// @Summary  移出心愿单
// @Tags     用户关系
// @Security BearerAuth
// @Param    id path int true "图书ID"
// @Success  200 {object} response.Response
// @Router   /api/v1/books/{id}/wishlist [delete]
func (h *RelationHandler) RemoveWishlist(c *gin.Context) {
	h.remove(c, relation.TypeWishlist)
}

// Rate 评分,重复评分覆盖旧值
// @Summary  图书评分
// @Tags     用户关系
// @Accept   json
// @Produce  json
// @Security BearerAuth
// @Param    id      path int             true "图书ID"
// @Param    request body dto.RateRequest true "评分0-4"
// @Success  200 {object} response.Response{data=dto.RelationResponse}
// @Router   /api/v1/books/{id}/rating [put]
func (h *RelationHandler) Rate(c *gin.Context) {
	userID, ok := mustUser(c)
	if !ok {
		return
	}
	bookID, ok := pathID(c)
	if !ok {
		return
	}
	var req dto.RateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	r, err := h.relations.Rate(c.Request.Context(), userID, bookID, *req.Value)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.NewRelationResponse(r))
}

func (h *RelationHandler) add(c *gin.Context, t relation.Type) {
	userID, ok := mustUser(c)
	if !ok {
		return
	}
	bookID, ok := pathID(c)
	if !ok {
		return
	}
	r, err := h.relations.Add(c.Request.Context(), userID, bookID, t)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.NewRelationResponse(r))
}

func (h *RelationHandler) remove(c *gin.Context, t relation.Type) {
	userID, ok := mustUser(c)
	if !ok {
		return
	}
	bookID, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.relations.Remove(c.Request.Context(), userID, bookID, t); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}
