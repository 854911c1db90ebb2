package repository

import (
	"context"

	"anoa.com/threadgraph/internal/entity"
	"anoa.com/threadgraph/pkg/database"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, profile *entity.Profile) error
	FindByUserID(ctx context.Context, userID uuid.UUID) (*entity.Profile, error)
	FindByUsername(ctx context.Context, username string) (*entity.Profile, error)
	FindByUserIDs(ctx context.Context, userIDs []uuid.UUID) ([]*entity.Profile, error)
	FindByUsernames(ctx context.Context, usernames []string) ([]*entity.Profile, error)
	Update(ctx context.Context, profile *entity.Profile) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, profile *entity.Profile) error {
	return database.WrapError("create profile", r.db.WithContext(ctx).Create(profile).Error)
}

func (r *repository) FindByUserID(ctx context.Context, userID uuid.UUID) (*entity.Profile, error) {
	var profile entity.Profile
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error; err != nil {
		return nil, database.WrapError("find profile", err)
	}
	return &profile, nil
}

func (r *repository) FindByUsername(ctx context.Context, username string) (*entity.Profile, error) {
	var profile entity.Profile
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&profile).Error; err != nil {
		return nil, database.WrapError("find profile by username", err)
	}
	return &profile, nil
}

func (r *repository) FindByUserIDs(ctx context.Context, userIDs []uuid.UUID) ([]*entity.Profile, error) {
	profiles := make([]*entity.Profile, 0, len(userIDs))
	if len(userIDs) == 0 {
		return profiles, nil
	}
	if err := r.db.WithContext(ctx).Where("user_id IN ?", userIDs).Find(&profiles).Error; err != nil {
		return nil, database.WrapError("find profiles", err)
	}
	return profiles, nil
}

func (r *repository) FindByUsernames(ctx context.Context, usernames []string) ([]*entity.Profile, error) {
	profiles := make([]*entity.Profile, 0, len(usernames))
	if len(usernames) == 0 {
		return profiles, nil
	}
	if err := r.db.WithContext(ctx).Where("username IN ?", usernames).Find(&profiles).Error; err != nil {
		return nil, database.WrapError("find profiles by username", err)
	}
	return profiles, nil
}

func (r *repository) Update(ctx context.Context, profile *entity.Profile) error {
	return database.WrapError("update profile", r.db.WithContext(ctx).Save(profile).Error)
}
