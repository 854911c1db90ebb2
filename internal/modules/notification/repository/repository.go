package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"anoa.com/threadgraph/internal/entity"
	"anoa.com/threadgraph/pkg/apperror"
	"anoa.com/threadgraph/pkg/database"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DedupKey identifies near-duplicate notifications. A nil ThreadID ignores the thread.
type DedupKey struct {
	RecipientID uuid.UUID
	ActorID     uuid.UUID
	Type        entity.NotificationType
	ThreadID    *uuid.UUID
}

type PageQuery struct {
	RecipientID uuid.UUID
	UnreadOnly  bool
	Cursor      *uuid.UUID
	Limit       int
}

type NotificationRepository interface {
	Create(ctx context.Context, notification *entity.Notification) error
	ExistsSince(ctx context.Context, key DedupKey, since time.Time) (bool, error)
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Notification, error)
	FindPage(ctx context.Context, q PageQuery) ([]*entity.Notification, error)
	FindUnreadIDs(ctx context.Context, recipientID uuid.UUID, limit int) ([]uuid.UUID, error)
	MarkAsRead(ctx context.Context, id uuid.UUID) error
	CountUnread(ctx context.Context, recipientID uuid.UUID) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, notification *entity.Notification) error {
	return database.WrapError("create notification", r.db.WithContext(ctx).Create(notification).Error)
}

func (r *notificationRepository) ExistsSince(ctx context.Context, key DedupKey, since time.Time) (bool, error) {
	query := r.db.WithContext(ctx).Model(&entity.Notification{}).
		Where("recipient_id = ? AND actor_id = ? AND type = ? AND created_at >= ?",
			key.RecipientID, key.ActorID, key.Type, since)
	if key.ThreadID != nil {
		query = query.Where("thread_id = ?", *key.ThreadID)
	}

	var ids []uuid.UUID
	if err := query.Limit(1).Pluck("id", &ids).Error; err != nil {
		return false, database.WrapError("find recent notification", err)
	}
	return len(ids) > 0, nil
}

func (r *notificationRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Notification, error) {
	var notification entity.Notification
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&notification).Error; err != nil {
		return nil, database.WrapError("find notification", err)
	}
	return &notification, nil
}

func (r *notificationRepository) FindPage(ctx context.Context, q PageQuery) ([]*entity.Notification, error) {
	query := r.db.WithContext(ctx).Where("recipient_id = ?", q.RecipientID)
	if q.UnreadOnly {
		query = query.Where("is_read = ?", false)
	}
	if q.Cursor != nil {
		var anchor entity.Notification
		err := r.db.WithContext(ctx).Select("id", "created_at").
			Where("id = ? AND recipient_id = ?", *q.Cursor, q.RecipientID).
			Take(&anchor).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("cursor %s no longer exists: %w", q.Cursor, apperror.ErrInvalidInput)
		}
		if err != nil {
			return nil, database.WrapError("resolve cursor", err)
		}
		query = query.Where("(created_at < ? OR (created_at = ? AND id < ?))", anchor.CreatedAt, anchor.CreatedAt, anchor.ID)
	}

	notifications := make([]*entity.Notification, 0, q.Limit)
	err := query.Order("created_at DESC").Order("id DESC").Limit(q.Limit).Find(&notifications).Error
	if err != nil {
		return nil, database.WrapError("find notifications", err)
	}
	return notifications, nil
}

func (r *notificationRepository) FindUnreadIDs(ctx context.Context, recipientID uuid.UUID, limit int) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, limit)
	err := r.db.WithContext(ctx).Model(&entity.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Order("created_at DESC").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, database.WrapError("find unread notifications", err)
	}
	return ids, nil
}

func (r *notificationRepository) MarkAsRead(ctx context.Context, id uuid.UUID) error {
	err := r.db.WithContext(ctx).Model(&entity.Notification{}).Where("id = ?", id).Update("is_read", true).Error
	return database.WrapError("mark notification read", err)
}

func (r *notificationRepository) CountUnread(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Count(&count).Error
	return count, database.WrapError("count unread notifications", err)
}

func (r *notificationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.Notification{})
	if result.Error != nil {
		return database.WrapError("delete notification", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("notification %s: %w", id, apperror.ErrNotFound)
	}
	return nil
}
