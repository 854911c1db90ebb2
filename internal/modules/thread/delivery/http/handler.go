package handler

import (
	"errors"
	"fmt"
	"net/http"

	threadDto "anoa.com/threadgraph/internal/modules/thread/dto"
	thread "anoa.com/threadgraph/internal/modules/thread/service"
	commonDto "anoa.com/threadgraph/pkg/dto"
	"anoa.com/threadgraph/pkg/ratelimiter"
	"anoa.com/threadgraph/pkg/response"
	"anoa.com/threadgraph/pkg/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ThreadHandler struct {
	service thread.Service
	likes   thread.LikeStatusReader
}

func NewThreadHandler(service thread.Service, likes thread.LikeStatusReader) *ThreadHandler {
	return &ThreadHandler{service: service, likes: likes}
}

func (h *ThreadHandler) CreateThread(c *gin.Context) {
	var req threadDto.CreateThreadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	created, err := h.service.CreateThread(c.Request.Context(), userID, req)
	if err != nil {
		var rateLimitErr *ratelimiter.RateLimitError
		if errors.As(err, &rateLimitErr) {
			c.Header("Retry-After", fmt.Sprintf("%.0f", rateLimitErr.RetryAfter.Seconds()))
			c.JSON(http.StatusTooManyRequests, gin.H{"error": rateLimitErr.Message})
			return
		}
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, created)
}

func (h *ThreadHandler) GetThread(c *gin.Context) {
	threadID, err := uuid.Parse(c.Param("thread_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid thread id"})
		return
	}

	result, err := h.service.GetThread(c.Request.Context(), threadID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	items := []commonDto.ThreadResponse{*result}
	thread.MarkLiked(c.Request.Context(), h.likes, response.OptionalUserID(c), items)
	c.JSON(http.StatusOK, items[0])
}

func (h *ThreadHandler) GetReplies(c *gin.Context) {
	threadID, err := uuid.Parse(c.Param("thread_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid thread id"})
		return
	}

	var req commonDto.CursorRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	page, err := h.service.GetReplies(c.Request.Context(), threadID, req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	thread.MarkLiked(c.Request.Context(), h.likes, response.OptionalUserID(c), page.Data)
	c.JSON(http.StatusOK, page)
}

func (h *ThreadHandler) DeleteThread(c *gin.Context) {
	threadID, err := uuid.Parse(c.Param("thread_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid thread id"})
		return
	}

	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	if err := h.service.DeleteThread(c.Request.Context(), userID, threadID); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "thread deleted successfully"})
}
