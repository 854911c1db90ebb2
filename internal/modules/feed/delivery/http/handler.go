package handler

import (
	"net/http"

	feed "anoa.com/threadgraph/internal/modules/feed/service"
	thread "anoa.com/threadgraph/internal/modules/thread/service"
	commonDto "anoa.com/threadgraph/pkg/dto"
	"anoa.com/threadgraph/pkg/response"
	"anoa.com/threadgraph/pkg/validator"
	"github.com/gin-gonic/gin"
)

type FeedHandler struct {
	service feed.FeedService
	likes   thread.LikeStatusReader
}

func NewFeedHandler(service feed.FeedService, likes thread.LikeStatusReader) *FeedHandler {
	return &FeedHandler{service: service, likes: likes}
}

func bindCursor(c *gin.Context) (commonDto.CursorRequest, bool) {
	var req commonDto.CursorRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return req, false
	}
	return req, true
}

func (h *FeedHandler) GetPublicFeed(c *gin.Context) {
	req, ok := bindCursor(c)
	if !ok {
		return
	}

	page, err := h.service.GetPublicFeed(c.Request.Context(), req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	thread.MarkLiked(c.Request.Context(), h.likes, response.OptionalUserID(c), page.Data)
	c.JSON(http.StatusOK, page)
}

func (h *FeedHandler) GetFollowingFeed(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	req, ok := bindCursor(c)
	if !ok {
		return
	}

	page, err := h.service.GetFollowingFeed(c.Request.Context(), userID, req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	thread.MarkLiked(c.Request.Context(), h.likes, userID, page.Data)
	c.JSON(http.StatusOK, page)
}

func (h *FeedHandler) GetUserFeed(c *gin.Context) {
	req, ok := bindCursor(c)
	if !ok {
		return
	}

	page, err := h.service.GetUserFeed(c.Request.Context(), c.Param("username"), req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	thread.MarkLiked(c.Request.Context(), h.likes, response.OptionalUserID(c), page.Data)
	c.JSON(http.StatusOK, page)
}
