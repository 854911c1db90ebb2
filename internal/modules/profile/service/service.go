package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"anoa.com/threadgraph/internal/entity"
	profileDto "anoa.com/threadgraph/internal/modules/profile/dto"
	profileRepo "anoa.com/threadgraph/internal/modules/profile/repository"
	"anoa.com/threadgraph/pkg/apperror"
	"github.com/google/uuid"
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9_]{3,30}$`)

type ProfileService interface {
	CreateProfile(ctx context.Context, userID uuid.UUID, input profileDto.CreateProfileInput) (*profileDto.ProfileResponse, error)
	GetProfileByUsername(ctx context.Context, username string) (*profileDto.ProfileResponse, error)
	GetCurrentProfile(ctx context.Context, userID uuid.UUID) (*profileDto.ProfileResponse, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, input profileDto.UpdateProfileInput) (*profileDto.ProfileResponse, error)
}

type profileService struct {
	repo profileRepo.Repository
}

func NewProfileService(repo profileRepo.Repository) ProfileService {
	return &profileService{repo: repo}
}

// NormalizeUsername lowercases and trims a handle. Usernames are stored lowercased.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(username), "@"))
}

func (s *profileService) CreateProfile(ctx context.Context, userID uuid.UUID, input profileDto.CreateProfileInput) (*profileDto.ProfileResponse, error) {
	if userID == uuid.Nil {
		return nil, apperror.ErrUnauthorized
	}

	username := NormalizeUsername(input.Username)
	if !usernamePattern.MatchString(username) {
		return nil, apperror.Invalid("username must be 3-30 letters, digits or underscores")
	}
	displayName := strings.TrimSpace(input.DisplayName)
	if displayName == "" {
		return nil, apperror.Invalid("display name is required")
	}

	profile := &entity.Profile{
		UserID:      userID,
		Username:    username,
		DisplayName: displayName,
		Bio:         normalizeOptional(input.Bio),
		AvatarURL:   normalizeOptional(input.AvatarURL),
	}
	if err := s.repo.Create(ctx, profile); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, fmt.Errorf("username taken or profile already exists: %w", err)
		}
		return nil, err
	}

	return profileDto.NewProfileResponse(profile), nil
}

func (s *profileService) GetProfileByUsername(ctx context.Context, username string) (*profileDto.ProfileResponse, error) {
	profile, err := s.repo.FindByUsername(ctx, NormalizeUsername(username))
	if err != nil {
		return nil, err
	}
	return profileDto.NewProfileResponse(profile), nil
}

func (s *profileService) GetCurrentProfile(ctx context.Context, userID uuid.UUID) (*profileDto.ProfileResponse, error) {
	profile, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return profileDto.NewProfileResponse(profile), nil
}

func (s *profileService) UpdateProfile(ctx context.Context, userID uuid.UUID, input profileDto.UpdateProfileInput) (*profileDto.ProfileResponse, error) {
	// Looked up by the principal, so only the owner can reach their own profile.
	profile, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if input.DisplayName != nil {
		name := strings.TrimSpace(*input.DisplayName)
		if name == "" {
			return nil, apperror.Invalid("display name cannot be empty")
		}
		profile.DisplayName = name
	}
	if input.Bio != nil {
		profile.Bio = normalizeOptional(input.Bio)
	}
	if input.AvatarURL != nil {
		profile.AvatarURL = normalizeOptional(input.AvatarURL)
	}

	if err := s.repo.Update(ctx, profile); err != nil {
		return nil, err
	}
	return profileDto.NewProfileResponse(profile), nil
}

func normalizeOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
