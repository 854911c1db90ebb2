package dto

import (
	"time"

	"anoa.com/threadgraph/internal/entity"
	commonDto "anoa.com/threadgraph/pkg/dto"
	"github.com/google/uuid"
)

type ListQuery struct {
	Cursor     string `form:"cursor"`
	Limit      int    `form:"limit" binding:"omitempty,min=1,max=50"`
	UnreadOnly bool   `form:"unread_only"`
}

type ThreadPreview struct {
	ID      uuid.UUID `json:"id"`
	Content string    `json:"content"`
}

type NotificationResponse struct {
	ID        uuid.UUID                `json:"id"`
	Type      entity.NotificationType  `json:"type"`
	Actor     commonDto.AuthorResponse `json:"actor"`
	Thread    *ThreadPreview           `json:"thread,omitempty"`
	Message   *string                  `json:"message,omitempty"`
	Read      bool                     `json:"read"`
	CreatedAt time.Time                `json:"created_at"`
}

type NotificationPageResponse struct {
	Data        []NotificationResponse `json:"data"`
	Meta        commonDto.CursorMeta   `json:"meta"`
	UnreadCount int64                  `json:"unread_count"`
}

type MarkReadResponse struct {
	Marked int `json:"marked"`
}
