package dto

import (
	"time"

	"anoa.com/threadgraph/internal/entity"
	"github.com/google/uuid"
)

type CreateProfileInput struct {
	Username    string  `json:"username" binding:"required,min=3,max=30,alphanum_underscore"`
	DisplayName string  `json:"display_name" binding:"required,min=1,max=100"`
	Bio         *string `json:"bio" binding:"omitempty,max=300"`
	AvatarURL   *string `json:"avatar_url" binding:"omitempty,url"`
}

// UpdateProfileInput leaves a field untouched when nil; an empty string clears optional fields.
type UpdateProfileInput struct {
	DisplayName *string `json:"display_name" binding:"omitempty,min=1,max=100"`
	Bio         *string `json:"bio" binding:"omitempty,max=300"`
	AvatarURL   *string `json:"avatar_url" binding:"omitempty,url"`
}

type ProfileResponse struct {
	UserID      uuid.UUID `json:"user_id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Bio         *string   `json:"bio,omitempty"`
	AvatarURL   *string   `json:"avatar_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func NewProfileResponse(p *entity.Profile) *ProfileResponse {
	return &ProfileResponse{
		UserID:      p.UserID,
		Username:    p.Username,
		DisplayName: p.DisplayName,
		Bio:         p.Bio,
		AvatarURL:   p.AvatarURL,
		CreatedAt:   p.CreatedAt,
	}
}
