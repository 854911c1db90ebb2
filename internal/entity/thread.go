package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const MaxThreadContent = 500

// Thread is a short post. Top-level threads have no ParentThreadID; a reply points at the
// top-level thread and, when nested, at the reply it answers.
type Thread struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	AuthorID       uuid.UUID  `gorm:"type:uuid;not null;index" json:"author_id"`
	Content        string     `gorm:"size:500;not null" json:"content"`
	MediaURLs      []string   `gorm:"serializer:json;type:jsonb" json:"media_urls"`
	ParentThreadID *uuid.UUID `gorm:"type:uuid;index" json:"parent_thread_id,omitempty"`
	ParentThread   *Thread    `gorm:"foreignKey:ParentThreadID;constraint:OnDelete:CASCADE" json:"-"`
	ParentReplyID  *uuid.UUID `gorm:"type:uuid;index" json:"parent_reply_id,omitempty"`
	ParentReply    *Thread    `gorm:"foreignKey:ParentReplyID;constraint:OnDelete:CASCADE" json:"-"`
	ReplyCount     int64      `gorm:"not null;default:0" json:"reply_count"`
	LikeCount      int64      `gorm:"not null;default:0" json:"like_count"`
	CreatedAt      time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (t *Thread) TableName() string {
	return "threads"
}

func (t *Thread) BeforeCreate(tx *gorm.DB) (err error) {
	if t.ID == uuid.Nil {
		t.ID, err = uuid.NewV7()
	}
	return
}

func (t *Thread) IsReply() bool {
	return t.ParentThreadID != nil
}
