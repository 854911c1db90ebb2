package handler

import (
	"net/http"

	relationshipDto "anoa.com/threadgraph/internal/modules/relationship/dto"
	relationship "anoa.com/threadgraph/internal/modules/relationship/service"
	"anoa.com/threadgraph/pkg/response"
	"anoa.com/threadgraph/pkg/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

type RelationshipHandler struct {
	service relationship.RelationshipService
}

func NewRelationshipHandler(service relationship.RelationshipService) *RelationshipHandler {
	return &RelationshipHandler{service: service}
}

func (h *RelationshipHandler) ToggleFollow(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	targetID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	result, err := h.service.ToggleFollow(c.Request.Context(), userID, targetID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetFollowStatus works for anonymous callers, who always see following=false.
func (h *RelationshipHandler) GetFollowStatus(c *gin.Context) {
	targetID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	c.JSON(http.StatusOK, h.service.GetFollowStatus(c.Request.Context(), response.OptionalUserID(c), targetID))
}

func (h *RelationshipHandler) ToggleLike(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	threadID, err := uuid.Parse(c.Param("thread_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid thread id"})
		return
	}

	result, err := h.service.ToggleLike(c.Request.Context(), userID, threadID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *RelationshipHandler) GetLikeStatus(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var req relationshipDto.LikeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	threadIDs := lo.Map(req.ThreadIDs, func(id string, _ int) uuid.UUID { return uuid.MustParse(id) })
	c.JSON(http.StatusOK, relationshipDto.LikeStatusResponse{
		Statuses: h.service.GetUserLikeStatusBatch(c.Request.Context(), userID, threadIDs),
	})
}
