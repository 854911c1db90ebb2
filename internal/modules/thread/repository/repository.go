package repository

import (
	"context"
	"errors"
	"fmt"

	"anoa.com/threadgraph/internal/entity"
	"anoa.com/threadgraph/pkg/apperror"
	"anoa.com/threadgraph/pkg/database"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Query selects one keyset page of threads ordered by (created_at DESC, id DESC).
type Query struct {
	// AuthorIDs restricts to these authors when non-nil. An empty non-nil slice matches nothing.
	AuthorIDs      []uuid.UUID
	TopLevelOnly   bool
	ParentThreadID *uuid.UUID
	// Cursor is the id of the last item of the previous page.
	Cursor *uuid.UUID
	Limit  int
}

// CounterDrift is a thread whose denormalized counters disagree with the edges.
type CounterDrift struct {
	ID            uuid.UUID
	LikeCount     int64
	ReplyCount    int64
	ActualLikes   int64
	ActualReplies int64
}

type Repository interface {
	Create(ctx context.Context, thread *entity.Thread) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Thread, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*entity.Thread, error)
	FindPage(ctx context.Context, q Query) ([]*entity.Thread, error)
	Delete(ctx context.Context, id uuid.UUID) error
	AdjustLikeCount(ctx context.Context, id uuid.UUID, delta int64) (int64, error)
	AdjustReplyCount(ctx context.Context, id uuid.UUID, delta int64) (int64, error)
	FindCounterDrift(ctx context.Context, limit int) ([]CounterDrift, error)
	SetCounters(ctx context.Context, id uuid.UUID, likeCount, replyCount int64) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, thread *entity.Thread) error {
	return database.WrapError("create thread", r.db.WithContext(ctx).Create(thread).Error)
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Thread, error) {
	var thread entity.Thread
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&thread).Error; err != nil {
		return nil, database.WrapError("find thread", err)
	}
	return &thread, nil
}

func (r *repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*entity.Thread, error) {
	threads := make([]*entity.Thread, 0, len(ids))
	if len(ids) == 0 {
		return threads, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&threads).Error; err != nil {
		return nil, database.WrapError("find threads", err)
	}
	return threads, nil
}

func (r *repository) FindPage(ctx context.Context, q Query) ([]*entity.Thread, error) {
	threads := make([]*entity.Thread, 0, q.Limit)
	if q.AuthorIDs != nil && len(q.AuthorIDs) == 0 {
		return threads, nil
	}

	query := r.db.WithContext(ctx).Model(&entity.Thread{})
	if q.TopLevelOnly {
		query = query.Where("parent_thread_id IS NULL")
	}
	if q.ParentThreadID != nil {
		query = query.Where("parent_thread_id = ?", *q.ParentThreadID)
	}
	if q.AuthorIDs != nil {
		query = query.Where("author_id IN ?", q.AuthorIDs)
	}
	if q.Cursor != nil {
		var anchor entity.Thread
		err := r.db.WithContext(ctx).Select("id", "created_at").Where("id = ?", *q.Cursor).Take(&anchor).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("cursor %s no longer exists: %w", q.Cursor, apperror.ErrInvalidInput)
		}
		if err != nil {
			return nil, database.WrapError("resolve cursor", err)
		}
		query = query.Where("(created_at < ? OR (created_at = ? AND id < ?))", anchor.CreatedAt, anchor.CreatedAt, anchor.ID)
	}

	if err := query.Order("created_at DESC").Order("id DESC").Limit(q.Limit).Find(&threads).Error; err != nil {
		return nil, database.WrapError("find thread page", err)
	}
	return threads, nil
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.Thread{})
	if result.Error != nil {
		return database.WrapError("delete thread", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("thread %s: %w", id, apperror.ErrNotFound)
	}
	return nil
}

func (r *repository) AdjustLikeCount(ctx context.Context, id uuid.UUID, delta int64) (int64, error) {
	return r.adjustCounter(ctx, id, "like_count", delta)
}

func (r *repository) AdjustReplyCount(ctx context.Context, id uuid.UUID, delta int64) (int64, error) {
	return r.adjustCounter(ctx, id, "reply_count", delta)
}

// adjustCounter applies delta clamped at zero and returns the stored value.
func (r *repository) adjustCounter(ctx context.Context, id uuid.UUID, column string, delta int64) (int64, error) {
	var value int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&entity.Thread{}).
			Where("id = ?", id).
			UpdateColumn(column, gorm.Expr(fmt.Sprintf("GREATEST(%s + ?, 0)", column), delta))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Model(&entity.Thread{}).Select(column).Where("id = ?", id).Scan(&value).Error
	})
	if err != nil {
		return 0, database.WrapError("adjust "+column, err)
	}
	return value, nil
}

func (r *repository) FindCounterDrift(ctx context.Context, limit int) ([]CounterDrift, error) {
	query := `
		SELECT id, like_count, reply_count, actual_likes, actual_replies
		FROM (
			SELECT t.id, t.like_count, t.reply_count,
				(SELECT COUNT(*) FROM likes l WHERE l.thread_id = t.id) AS actual_likes,
				(SELECT COUNT(*) FROM threads c WHERE c.parent_reply_id = t.id
					OR (c.parent_thread_id = t.id AND c.parent_reply_id IS NULL)) AS actual_replies
			FROM threads t
		) counts
		WHERE like_count <> actual_likes OR reply_count <> actual_replies
		LIMIT ?
	`

	var drift []CounterDrift
	if err := r.db.WithContext(ctx).Raw(query, limit).Scan(&drift).Error; err != nil {
		return nil, database.WrapError("find counter drift", err)
	}
	return drift, nil
}

func (r *repository) SetCounters(ctx context.Context, id uuid.UUID, likeCount, replyCount int64) error {
	err := r.db.WithContext(ctx).Model(&entity.Thread{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{"like_count": likeCount, "reply_count": replyCount}).Error
	return database.WrapError("set counters", err)
}
