package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"anoa.com/threadgraph/internal/entity"
	relationshipDto "anoa.com/threadgraph/internal/modules/relationship/dto"
	relationshipRepo "anoa.com/threadgraph/internal/modules/relationship/repository"
	"anoa.com/threadgraph/pkg/apperror"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

const DefaultCountCacheTTL = time.Minute

// Notifier receives best-effort activity side effects.
type Notifier interface {
	Like(ctx context.Context, recipientID, actorID, threadID uuid.UUID, preview string)
	Follow(ctx context.Context, recipientID, actorID uuid.UUID)
}

// ThreadCounter is the part of the thread store the like toggle needs.
type ThreadCounter interface {
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Thread, error)
	AdjustLikeCount(ctx context.Context, id uuid.UUID, delta int64) (int64, error)
}

type RelationshipService interface {
	ToggleFollow(ctx context.Context, followerID, followingID uuid.UUID) (*relationshipDto.FollowStatusResponse, error)
	IsFollowing(ctx context.Context, followerID, followingID uuid.UUID) bool
	GetFollowCounts(ctx context.Context, userID uuid.UUID) relationshipDto.FollowCounts
	GetFollowStatus(ctx context.Context, viewerID, userID uuid.UUID) *relationshipDto.FollowStatusResponse
	ToggleLike(ctx context.Context, userID, threadID uuid.UUID) (*relationshipDto.LikeResponse, error)
	GetUserLikeStatusBatch(ctx context.Context, userID uuid.UUID, threadIDs []uuid.UUID) map[uuid.UUID]bool
}

type Options struct {
	CountCacheTTL time.Duration
}

type relationshipService struct {
	follows     relationshipRepo.FollowRepository
	likes       relationshipRepo.LikeRepository
	threads     ThreadCounter
	notifier    Notifier
	redisClient *redis.Client
	cacheTTL    time.Duration
}

// NewRelationshipService wires the service. redisClient may be nil.
func NewRelationshipService(follows relationshipRepo.FollowRepository, likes relationshipRepo.LikeRepository, threads ThreadCounter, notifier Notifier, redisClient *redis.Client, opts Options) RelationshipService {
	if opts.CountCacheTTL <= 0 {
		opts.CountCacheTTL = DefaultCountCacheTTL
	}
	return &relationshipService{
		follows:     follows,
		likes:       likes,
		threads:     threads,
		notifier:    notifier,
		redisClient: redisClient,
		cacheTTL:    opts.CountCacheTTL,
	}
}

func (s *relationshipService) ToggleFollow(ctx context.Context, followerID, followingID uuid.UUID) (*relationshipDto.FollowStatusResponse, error) {
	if followerID == uuid.Nil {
		return nil, apperror.ErrUnauthorized
	}
	if followingID == uuid.Nil {
		return nil, apperror.Invalid("target user is required")
	}
	if followerID == followingID {
		return nil, apperror.Invalid("cannot follow yourself")
	}

	exists, err := s.follows.Exists(ctx, followerID, followingID)
	if err != nil {
		return nil, err
	}

	following := !exists
	if exists {
		if _, err := s.follows.Delete(ctx, followerID, followingID); err != nil {
			return nil, err
		}
	} else {
		err := s.follows.Create(ctx, &entity.Follow{FollowerID: followerID, FollowingID: followingID})
		switch {
		case errors.Is(err, apperror.ErrConflict):
			// A concurrent request created the edge first.
		case err != nil:
			return nil, err
		default:
			s.notifier.Follow(ctx, followingID, followerID)
		}
	}

	s.invalidateCounts(ctx, followerID, followingID)

	return &relationshipDto.FollowStatusResponse{
		UserID:       followingID,
		Following:    following,
		FollowCounts: s.GetFollowCounts(ctx, followingID),
	}, nil
}

func (s *relationshipService) IsFollowing(ctx context.Context, followerID, followingID uuid.UUID) bool {
	if followerID == uuid.Nil || followingID == uuid.Nil || followerID == followingID {
		return false
	}
	exists, err := s.follows.Exists(ctx, followerID, followingID)
	if err != nil {
		log.Warn().Err(err).
			Str("follower_id", followerID.String()).
			Str("following_id", followingID.String()).
			Msg("follow lookup failed")
		return false
	}
	return exists
}

func countsKey(userID uuid.UUID) string {
	return fmt.Sprintf("follow_counts:%s", userID.String())
}

func (s *relationshipService) GetFollowCounts(ctx context.Context, userID uuid.UUID) relationshipDto.FollowCounts {
	if counts, ok := s.cachedCounts(ctx, userID); ok {
		return counts
	}

	// Each side degrades to zero on its own.
	var counts relationshipDto.FollowCounts
	var followersErr, followingErr error
	var g errgroup.Group
	g.Go(func() error {
		counts.Followers, followersErr = s.follows.CountFollowers(ctx, userID)
		return nil
	})
	g.Go(func() error {
		counts.Following, followingErr = s.follows.CountFollowing(ctx, userID)
		return nil
	})
	_ = g.Wait()

	if followersErr != nil {
		log.Warn().Err(followersErr).Str("user_id", userID.String()).Msg("follower count unavailable")
		counts.Followers = 0
	}
	if followingErr != nil {
		log.Warn().Err(followingErr).Str("user_id", userID.String()).Msg("following count unavailable")
		counts.Following = 0
	}
	if followersErr != nil || followingErr != nil {
		return counts
	}

	s.cacheCounts(ctx, userID, counts)
	return counts
}

func (s *relationshipService) cachedCounts(ctx context.Context, userID uuid.UUID) (relationshipDto.FollowCounts, bool) {
	var counts relationshipDto.FollowCounts
	if s.redisClient == nil {
		return counts, false
	}

	val, err := s.redisClient.HGetAll(ctx, countsKey(userID)).Result()
	if err != nil {
		log.Debug().Err(err).Msg("follow count cache read failed")
		return counts, false
	}
	followers, errFollowers := strconv.ParseInt(val["followers"], 10, 64)
	following, errFollowing := strconv.ParseInt(val["following"], 10, 64)
	if errFollowers != nil || errFollowing != nil {
		return counts, false
	}
	counts.Followers = followers
	counts.Following = following
	return counts, true
}

func (s *relationshipService) cacheCounts(ctx context.Context, userID uuid.UUID, counts relationshipDto.FollowCounts) {
	if s.redisClient == nil {
		return
	}
	key := countsKey(userID)
	pipe := s.redisClient.Pipeline()
	pipe.HSet(ctx, key, "followers", counts.Followers, "following", counts.Following)
	pipe.Expire(ctx, key, s.cacheTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Debug().Err(err).Msg("follow count cache write failed")
	}
}

func (s *relationshipService) invalidateCounts(ctx context.Context, userIDs ...uuid.UUID) {
	if s.redisClient == nil {
		return
	}
	keys := lo.Map(userIDs, func(id uuid.UUID, _ int) string { return countsKey(id) })
	if err := s.redisClient.Del(ctx, keys...).Err(); err != nil {
		log.Warn().Err(err).Strs("keys", keys).Msg("follow count cache invalidation failed")
	}
}

func (s *relationshipService) GetFollowStatus(ctx context.Context, viewerID, userID uuid.UUID) *relationshipDto.FollowStatusResponse {
	status := &relationshipDto.FollowStatusResponse{UserID: userID}

	var g errgroup.Group
	g.Go(func() error {
		status.Following = s.IsFollowing(ctx, viewerID, userID)
		return nil
	})
	g.Go(func() error {
		status.FollowCounts = s.GetFollowCounts(ctx, userID)
		return nil
	})
	_ = g.Wait()

	return status
}

func (s *relationshipService) ToggleLike(ctx context.Context, userID, threadID uuid.UUID) (*relationshipDto.LikeResponse, error) {
	if userID == uuid.Nil {
		return nil, apperror.ErrUnauthorized
	}

	thread, err := s.threads.FindByID(ctx, threadID)
	if err != nil {
		return nil, err
	}

	liked, err := s.likes.Exists(ctx, userID, threadID)
	if err != nil {
		return nil, err
	}

	result := &relationshipDto.LikeResponse{ThreadID: threadID, Liked: !liked, LikeCount: thread.LikeCount}

	if liked {
		removed, err := s.likes.Delete(ctx, userID, threadID)
		if err != nil {
			return nil, err
		}
		if removed {
			result.LikeCount = s.adjustLikeCount(ctx, thread, -1)
		}
		return result, nil
	}

	err = s.likes.Create(ctx, &entity.Like{UserID: userID, ThreadID: threadID})
	if errors.Is(err, apperror.ErrConflict) {
		// Already liked by a concurrent request; that request owns the counter and the notification.
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	result.LikeCount = s.adjustLikeCount(ctx, thread, 1)
	if thread.AuthorID != userID {
		s.notifier.Like(ctx, thread.AuthorID, userID, threadID, thread.Content)
	}
	return result, nil
}

// adjustLikeCount is best-effort: the edge is already committed, so a failed counter update
// leaves drift for the reconciler and reports the locally computed value.
func (s *relationshipService) adjustLikeCount(ctx context.Context, thread *entity.Thread, delta int64) int64 {
	count, err := s.threads.AdjustLikeCount(ctx, thread.ID, delta)
	if err != nil {
		log.Error().Err(err).Str("thread_id", thread.ID.String()).Int64("delta", delta).Msg("like counter update failed")
		return max(thread.LikeCount+delta, 0)
	}
	return count
}

func (s *relationshipService) GetUserLikeStatusBatch(ctx context.Context, userID uuid.UUID, threadIDs []uuid.UUID) map[uuid.UUID]bool {
	statuses := make(map[uuid.UUID]bool, len(threadIDs))
	for _, id := range threadIDs {
		statuses[id] = false
	}
	if userID == uuid.Nil || len(threadIDs) == 0 {
		return statuses
	}

	liked, err := s.likes.FindLikedThreadIDs(ctx, userID, lo.Uniq(threadIDs))
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID.String()).Int("threads", len(threadIDs)).Msg("like status unavailable")
		return statuses
	}
	for _, id := range liked {
		statuses[id] = true
	}
	return statuses
}
