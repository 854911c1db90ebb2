package service

import (
	"context"
	"errors"

	"anoa.com/threadgraph/internal/entity"
	feedDto "anoa.com/threadgraph/internal/modules/feed/dto"
	profile "anoa.com/threadgraph/internal/modules/profile/service"
	threadRepo "anoa.com/threadgraph/internal/modules/thread/repository"
	thread "anoa.com/threadgraph/internal/modules/thread/service"
	"anoa.com/threadgraph/pkg/apperror"
	commonDto "anoa.com/threadgraph/pkg/dto"
	"anoa.com/threadgraph/pkg/pagination"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type ThreadPager interface {
	FindPage(ctx context.Context, q threadRepo.Query) ([]*entity.Thread, error)
}

type FollowingLister interface {
	FindFollowingIDs(ctx context.Context, followerID uuid.UUID) ([]uuid.UUID, error)
}

type ProfileLookup interface {
	thread.AuthorLookup
	FindByUsername(ctx context.Context, username string) (*entity.Profile, error)
}

// FeedService serves top-level threads newest first. It never looks at the viewer, so liked
// flags are attached by the caller.
type FeedService interface {
	GetPublicFeed(ctx context.Context, req commonDto.CursorRequest) (*commonDto.ThreadPageResponse, error)
	GetFollowingFeed(ctx context.Context, userID uuid.UUID, req commonDto.CursorRequest) (*feedDto.FollowingFeedResponse, error)
	GetUserFeed(ctx context.Context, username string, req commonDto.CursorRequest) (*commonDto.ThreadPageResponse, error)
}

type feedService struct {
	threads  ThreadPager
	follows  FollowingLister
	profiles ProfileLookup
}

func NewFeedService(threads ThreadPager, follows FollowingLister, profiles ProfileLookup) FeedService {
	return &feedService{threads: threads, follows: follows, profiles: profiles}
}

func (s *feedService) GetPublicFeed(ctx context.Context, req commonDto.CursorRequest) (*commonDto.ThreadPageResponse, error) {
	return s.page(ctx, req, nil)
}

func (s *feedService) GetFollowingFeed(ctx context.Context, userID uuid.UUID, req commonDto.CursorRequest) (*feedDto.FollowingFeedResponse, error) {
	if userID == uuid.Nil {
		return nil, apperror.ErrUnauthorized
	}

	following, err := s.follows.FindFollowingIDs(ctx, userID)
	if err != nil {
		if !errors.Is(err, apperror.ErrStorage) {
			return nil, err
		}
		log.Warn().Err(err).Str("user_id", userID.String()).Msg("following lookup failed, serving empty feed")
		following = nil
	}
	if following == nil {
		following = []uuid.UUID{}
	}

	page, err := s.page(ctx, req, following)
	if err != nil {
		return nil, err
	}
	return &feedDto.FollowingFeedResponse{
		Data:           page.Data,
		Meta:           page.Meta,
		FollowingCount: len(following),
	}, nil
}

func (s *feedService) GetUserFeed(ctx context.Context, username string, req commonDto.CursorRequest) (*commonDto.ThreadPageResponse, error) {
	author, err := s.profiles.FindByUsername(ctx, profile.NormalizeUsername(username))
	if err != nil {
		return nil, err
	}
	return s.page(ctx, req, []uuid.UUID{author.UserID})
}

// page loads one keyset page of top-level threads. A nil authors slice means everyone.
func (s *feedService) page(ctx context.Context, req commonDto.CursorRequest, authors []uuid.UUID) (*commonDto.ThreadPageResponse, error) {
	cursor, err := pagination.ParseCursor(req.Cursor)
	if err != nil {
		return nil, err
	}
	limit := pagination.NormalizeLimit(req.Limit, pagination.DefaultLimit, pagination.MaxLimit)

	rows, err := s.threads.FindPage(ctx, threadRepo.Query{
		AuthorIDs:    authors,
		TopLevelOnly: true,
		Cursor:       cursor,
		Limit:        limit + 1,
	})
	if err != nil {
		if !errors.Is(err, apperror.ErrStorage) {
			return nil, err
		}
		log.Warn().Err(err).Msg("feed query failed, serving empty page")
		rows = nil
	}

	page, nextCursor, hasMore := pagination.Trim(rows, limit, func(t *entity.Thread) uuid.UUID { return t.ID })
	return &commonDto.ThreadPageResponse{
		Data: thread.AssembleThreads(ctx, s.profiles, page),
		Meta: commonDto.CursorMeta{NextCursor: nextCursor, HasMore: hasMore, Limit: limit},
	}, nil
}
