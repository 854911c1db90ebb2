package repository

import (
	"context"

	"anoa.com/threadgraph/internal/entity"
	"anoa.com/threadgraph/pkg/database"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FollowRepository stores directed follow edges.
type FollowRepository interface {
	Exists(ctx context.Context, followerID, followingID uuid.UUID) (bool, error)
	// Create returns an error wrapping apperror.ErrConflict when the edge already exists.
	Create(ctx context.Context, follow *entity.Follow) error
	// Delete reports whether an edge was removed.
	Delete(ctx context.Context, followerID, followingID uuid.UUID) (bool, error)
	CountFollowers(ctx context.Context, userID uuid.UUID) (int64, error)
	CountFollowing(ctx context.Context, userID uuid.UUID) (int64, error)
	FindFollowingIDs(ctx context.Context, followerID uuid.UUID) ([]uuid.UUID, error)
}

// LikeRepository stores user -> thread like edges.
type LikeRepository interface {
	Exists(ctx context.Context, userID, threadID uuid.UUID) (bool, error)
	Create(ctx context.Context, like *entity.Like) error
	Delete(ctx context.Context, userID, threadID uuid.UUID) (bool, error)
	FindLikedThreadIDs(ctx context.Context, userID uuid.UUID, threadIDs []uuid.UUID) ([]uuid.UUID, error)
}

type followRepository struct {
	db *gorm.DB
}

func NewFollowRepository(db *gorm.DB) FollowRepository {
	return &followRepository{db: db}
}

func (r *followRepository) Exists(ctx context.Context, followerID, followingID uuid.UUID) (bool, error) {
	var follows []entity.Follow
	err := r.db.WithContext(ctx).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Limit(1).
		Find(&follows).Error
	if err != nil {
		return false, database.WrapError("find follow", err)
	}
	return len(follows) > 0, nil
}

func (r *followRepository) Create(ctx context.Context, follow *entity.Follow) error {
	return database.WrapError("create follow", r.db.WithContext(ctx).Create(follow).Error)
}

func (r *followRepository) Delete(ctx context.Context, followerID, followingID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Delete(&entity.Follow{})
	if result.Error != nil {
		return false, database.WrapError("delete follow", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *followRepository) CountFollowers(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Follow{}).Where("following_id = ?", userID).Count(&count).Error
	return count, database.WrapError("count followers", err)
}

func (r *followRepository) CountFollowing(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Follow{}).Where("follower_id = ?", userID).Count(&count).Error
	return count, database.WrapError("count following", err)
}

func (r *followRepository) FindFollowingIDs(ctx context.Context, followerID uuid.UUID) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0)
	err := r.db.WithContext(ctx).Model(&entity.Follow{}).
		Where("follower_id = ?", followerID).
		Pluck("following_id", &ids).Error
	if err != nil {
		return nil, database.WrapError("find following ids", err)
	}
	return ids, nil
}

type likeRepository struct {
	db *gorm.DB
}

func NewLikeRepository(db *gorm.DB) LikeRepository {
	return &likeRepository{db: db}
}

func (r *likeRepository) Exists(ctx context.Context, userID, threadID uuid.UUID) (bool, error) {
	var likes []entity.Like
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND thread_id = ?", userID, threadID).
		Limit(1).
		Find(&likes).Error
	if err != nil {
		return false, database.WrapError("find like", err)
	}
	return len(likes) > 0, nil
}

func (r *likeRepository) Create(ctx context.Context, like *entity.Like) error {
	return database.WrapError("create like", r.db.WithContext(ctx).Create(like).Error)
}

func (r *likeRepository) Delete(ctx context.Context, userID, threadID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND thread_id = ?", userID, threadID).
		Delete(&entity.Like{})
	if result.Error != nil {
		return false, database.WrapError("delete like", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *likeRepository) FindLikedThreadIDs(ctx context.Context, userID uuid.UUID, threadIDs []uuid.UUID) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(threadIDs))
	if len(threadIDs) == 0 {
		return ids, nil
	}
	err := r.db.WithContext(ctx).Model(&entity.Like{}).
		Where("user_id = ? AND thread_id IN ?", userID, threadIDs).
		Pluck("thread_id", &ids).Error
	if err != nil {
		return nil, database.WrapError("find liked threads", err)
	}
	return ids, nil
}
