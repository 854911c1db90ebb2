package dto

import "github.com/google/uuid"

type FollowCounts struct {
	Followers int64 `json:"followers_count"`
	Following int64 `json:"following_count"`
}

type FollowStatusResponse struct {
	UserID    uuid.UUID `json:"user_id"`
	Following bool      `json:"following"`
	FollowCounts
}

type LikeResponse struct {
	ThreadID  uuid.UUID `json:"thread_id"`
	Liked     bool      `json:"liked"`
	LikeCount int64     `json:"like_count"`
}

type LikeStatusRequest struct {
	ThreadIDs []string `json:"thread_ids" binding:"required,max=100,dive,uuid"`
}

type LikeStatusResponse struct {
	Statuses map[uuid.UUID]bool `json:"statuses"`
}
