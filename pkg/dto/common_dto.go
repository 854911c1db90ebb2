package dto

import (
	"time"

	"anoa.com/threadgraph/internal/entity"
	"github.com/google/uuid"
)

type AuthorResponse struct {
	UserID      uuid.UUID `json:"user_id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	AvatarURL   *string   `json:"avatar_url"`
}

func NewAuthorResponse(p *entity.Profile) AuthorResponse {
	return AuthorResponse{
		UserID:      p.UserID,
		Username:    p.Username,
		DisplayName: p.DisplayName,
		AvatarURL:   p.AvatarURL,
	}
}

// CursorMeta describes the position of a keyset page.
type CursorMeta struct {
	NextCursor *string `json:"next_cursor"`
	HasMore    bool    `json:"has_more"`
	Limit      int     `json:"limit"`
}

type CursorRequest struct {
	Cursor string `form:"cursor"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=50"`
}

type ThreadResponse struct {
	ID             uuid.UUID       `json:"id"`
	Author         *AuthorResponse `json:"author"`
	Content        string          `json:"content"`
	MediaURLs      []string        `json:"media_urls"`
	ParentThreadID *uuid.UUID      `json:"parent_thread_id,omitempty"`
	ParentReplyID  *uuid.UUID      `json:"parent_reply_id,omitempty"`
	ReplyCount     int64           `json:"reply_count"`
	LikeCount      int64           `json:"like_count"`
	Liked          bool            `json:"liked"`
	CreatedAt      time.Time       `json:"created_at"`
}

// NewThreadResponse builds the response; author may be nil when the profile is missing.
func NewThreadResponse(t *entity.Thread, author *entity.Profile) ThreadResponse {
	resp := ThreadResponse{
		ID:             t.ID,
		Content:        t.Content,
		MediaURLs:      t.MediaURLs,
		ParentThreadID: t.ParentThreadID,
		ParentReplyID:  t.ParentReplyID,
		ReplyCount:     t.ReplyCount,
		LikeCount:      t.LikeCount,
		CreatedAt:      t.CreatedAt,
	}
	if resp.MediaURLs == nil {
		resp.MediaURLs = []string{}
	}
	if author != nil {
		a := NewAuthorResponse(author)
		resp.Author = &a
	}
	return resp
}

type ThreadPageResponse struct {
	Data []ThreadResponse `json:"data"`
	Meta CursorMeta       `json:"meta"`
}
