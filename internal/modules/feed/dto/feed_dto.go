package dto

import commonDto "anoa.com/threadgraph/pkg/dto"

type FollowingFeedResponse struct {
	Data           []commonDto.ThreadResponse `json:"data"`
	Meta           commonDto.CursorMeta       `json:"meta"`
	FollowingCount int                        `json:"following_count"`
}
