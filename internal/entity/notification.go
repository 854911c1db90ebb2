package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotificationType string

const (
	NotificationLike    NotificationType = "like"
	NotificationFollow  NotificationType = "follow"
	NotificationReply   NotificationType = "reply"
	NotificationMention NotificationType = "mention"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationLike, NotificationFollow, NotificationReply, NotificationMention:
		return true
	}
	return false
}

type Notification struct {
	ID          uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	RecipientID uuid.UUID        `gorm:"type:uuid;not null;index:idx_notifications_recipient_created,priority:1;index:idx_notifications_recipient_read,priority:1" json:"recipient_id"`
	ActorID     uuid.UUID        `gorm:"type:uuid;not null" json:"actor_id"`
	Type        NotificationType `gorm:"type:varchar(20);not null" json:"type"`
	ThreadID    *uuid.UUID       `gorm:"type:uuid" json:"thread_id,omitempty"`
	Message     *string          `gorm:"size:100" json:"message,omitempty"`
	IsRead      bool             `gorm:"not null;default:false;index:idx_notifications_recipient_read,priority:2" json:"read"`
	CreatedAt   time.Time        `gorm:"autoCreateTime;index:idx_notifications_recipient_created,priority:2" json:"created_at"`
}

func (n *Notification) TableName() string {
	return "notifications"
}

func (n *Notification) BeforeCreate(tx *gorm.DB) (err error) {
	if n.ID == uuid.Nil {
		n.ID, err = uuid.NewV7()
	}
	return
}
