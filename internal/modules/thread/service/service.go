package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"anoa.com/threadgraph/internal/entity"
	threadDto "anoa.com/threadgraph/internal/modules/thread/dto"
	repo "anoa.com/threadgraph/internal/modules/thread/repository"
	"anoa.com/threadgraph/pkg/apperror"
	commonDto "anoa.com/threadgraph/pkg/dto"
	"anoa.com/threadgraph/pkg/pagination"
	"anoa.com/threadgraph/pkg/ratelimiter"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const maxMediaURLs = 4

// Notifier receives best-effort reply and mention side effects.
type Notifier interface {
	Reply(ctx context.Context, recipientID, actorID, threadID uuid.UUID, preview string)
	Mention(ctx context.Context, recipientID, actorID, threadID uuid.UUID, preview string)
}

type ProfileLookup interface {
	AuthorLookup
	FindByUserID(ctx context.Context, userID uuid.UUID) (*entity.Profile, error)
	FindByUsernames(ctx context.Context, usernames []string) ([]*entity.Profile, error)
}

type Service interface {
	CreateThread(ctx context.Context, userID uuid.UUID, req threadDto.CreateThreadRequest) (*commonDto.ThreadResponse, error)
	GetThread(ctx context.Context, threadID uuid.UUID) (*commonDto.ThreadResponse, error)
	GetReplies(ctx context.Context, threadID uuid.UUID, req commonDto.CursorRequest) (*commonDto.ThreadPageResponse, error)
	DeleteThread(ctx context.Context, userID uuid.UUID, threadID uuid.UUID) error
}

type service struct {
	threadRepo repo.Repository
	profiles   ProfileLookup
	notifier   Notifier
	cooldown   *ratelimiter.Cooldown
}

// NewService wires the thread service. cooldown may be nil to disable rate limiting.
func NewService(threadRepo repo.Repository, profiles ProfileLookup, notifier Notifier, cooldown *ratelimiter.Cooldown) Service {
	return &service{
		threadRepo: threadRepo,
		profiles:   profiles,
		notifier:   notifier,
		cooldown:   cooldown,
	}
}

func (s *service) CreateThread(ctx context.Context, userID uuid.UUID, req threadDto.CreateThreadRequest) (*commonDto.ThreadResponse, error) {
	if userID == uuid.Nil {
		return nil, apperror.ErrUnauthorized
	}

	content := strings.TrimSpace(req.Content)
	if content == "" && len(req.MediaURLs) == 0 {
		return nil, apperror.Invalid("thread needs content or media")
	}
	if utf8.RuneCountInString(content) > entity.MaxThreadContent {
		return nil, apperror.Invalid("content exceeds %d characters", entity.MaxThreadContent)
	}
	if len(req.MediaURLs) > maxMediaURLs {
		return nil, apperror.Invalid("at most %d media attachments", maxMediaURLs)
	}

	author, err := s.profiles.FindByUserID(ctx, userID)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, apperror.Invalid("create a profile before posting")
	}
	if err != nil {
		return nil, err
	}

	parent, parentReply, err := s.resolveParents(ctx, req)
	if err != nil {
		return nil, err
	}

	// Only top-level threads are rate limited.
	var cleanup func()
	if parent == nil {
		cleanup, err = s.acquireCooldown(ctx, userID)
		if err != nil {
			return nil, err
		}
	}

	thread := &entity.Thread{
		AuthorID:  userID,
		Content:   content,
		MediaURLs: req.MediaURLs,
	}
	if parent != nil {
		thread.ParentThreadID = &parent.ID
	}
	if parentReply != nil {
		thread.ParentReplyID = &parentReply.ID
	}

	if err := s.threadRepo.Create(ctx, thread); err != nil {
		if cleanup != nil {
			cleanup()
		}
		return nil, err
	}

	if parent != nil {
		target := parent
		if parentReply != nil {
			target = parentReply
		}
		if _, err := s.threadRepo.AdjustReplyCount(ctx, target.ID, 1); err != nil {
			log.Error().Err(err).Str("thread_id", target.ID.String()).Msg("reply counter update failed")
		}
		if target.AuthorID != userID {
			s.notifier.Reply(ctx, target.AuthorID, userID, parent.ID, content)
		}
	}

	s.notifyMentions(ctx, userID, thread)

	resp := commonDto.NewThreadResponse(thread, author)
	return &resp, nil
}

// resolveParents validates the reply target. Replies always hang off a top-level thread; a nested
// reply must answer a reply of that same thread.
func (s *service) resolveParents(ctx context.Context, req threadDto.CreateThreadRequest) (*entity.Thread, *entity.Thread, error) {
	if req.ParentThreadID == nil {
		if req.ParentReplyID != nil {
			return nil, nil, apperror.Invalid("parent_reply_id requires parent_thread_id")
		}
		return nil, nil, nil
	}

	parentID, err := uuid.Parse(*req.ParentThreadID)
	if err != nil {
		return nil, nil, apperror.Invalid("invalid parent thread id")
	}
	parent, err := s.threadRepo.FindByID(ctx, parentID)
	if err != nil {
		return nil, nil, fmt.Errorf("parent thread: %w", err)
	}
	if parent.IsReply() {
		return nil, nil, apperror.Invalid("replies must target a top-level thread")
	}

	if req.ParentReplyID == nil {
		return parent, nil, nil
	}
	replyID, err := uuid.Parse(*req.ParentReplyID)
	if err != nil {
		return nil, nil, apperror.Invalid("invalid parent reply id")
	}
	reply, err := s.threadRepo.FindByID(ctx, replyID)
	if err != nil {
		return nil, nil, fmt.Errorf("parent reply: %w", err)
	}
	if reply.ParentThreadID == nil || *reply.ParentThreadID != parent.ID {
		return nil, nil, apperror.Invalid("parent reply does not belong to parent thread")
	}
	return parent, reply, nil
}

// acquireCooldown returns a cleanup func that releases the lock when creation fails.
// A redis failure lets the caller through.
func (s *service) acquireCooldown(ctx context.Context, userID uuid.UUID) (func(), error) {
	if s.cooldown == nil {
		return nil, nil
	}

	allowed, err := s.cooldown.Acquire(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID.String()).Msg("rate limit check failed, allowing")
		return nil, nil
	}
	if !allowed {
		ttl, _ := s.cooldown.Remaining(ctx, userID)
		return nil, &ratelimiter.RateLimitError{
			Message:    fmt.Sprintf("you are posting too fast, wait %.0f seconds", ttl.Seconds()),
			RetryAfter: ttl,
		}
	}

	return func() {
		if err := s.cooldown.Release(context.WithoutCancel(ctx), userID); err != nil {
			log.Warn().Err(err).Str("user_id", userID.String()).Msg("failed to release rate limit")
		}
	}, nil
}

func (s *service) notifyMentions(ctx context.Context, actorID uuid.UUID, thread *entity.Thread) {
	usernames := ParseMentions(thread.Content)
	if len(usernames) == 0 {
		return
	}

	profiles, err := s.profiles.FindByUsernames(ctx, usernames)
	if err != nil {
		log.Warn().Err(err).Str("thread_id", thread.ID.String()).Msg("mention lookup failed")
		return
	}
	for _, p := range profiles {
		if p.UserID == actorID {
			continue
		}
		s.notifier.Mention(ctx, p.UserID, actorID, thread.ID, thread.Content)
	}
}

func (s *service) GetThread(ctx context.Context, threadID uuid.UUID) (*commonDto.ThreadResponse, error) {
	thread, err := s.threadRepo.FindByID(ctx, threadID)
	if err != nil {
		return nil, err
	}

	resp := AssembleThreads(ctx, s.profiles, []*entity.Thread{thread})[0]
	return &resp, nil
}

func (s *service) GetReplies(ctx context.Context, threadID uuid.UUID, req commonDto.CursorRequest) (*commonDto.ThreadPageResponse, error) {
	cursor, err := pagination.ParseCursor(req.Cursor)
	if err != nil {
		return nil, err
	}
	limit := pagination.NormalizeLimit(req.Limit, pagination.DefaultLimit, pagination.MaxLimit)

	if _, err := s.threadRepo.FindByID(ctx, threadID); err != nil {
		return nil, err
	}

	rows, err := s.threadRepo.FindPage(ctx, repo.Query{
		ParentThreadID: &threadID,
		Cursor:         cursor,
		Limit:          limit + 1,
	})
	if err != nil {
		return nil, err
	}
	page, nextCursor, hasMore := pagination.Trim(rows, limit, func(t *entity.Thread) uuid.UUID { return t.ID })

	return &commonDto.ThreadPageResponse{
		Data: AssembleThreads(ctx, s.profiles, page),
		Meta: commonDto.CursorMeta{NextCursor: nextCursor, HasMore: hasMore, Limit: limit},
	}, nil
}

func (s *service) DeleteThread(ctx context.Context, userID uuid.UUID, threadID uuid.UUID) error {
	thread, err := s.threadRepo.FindByID(ctx, threadID)
	if err != nil {
		return err
	}

	if thread.AuthorID != userID {
		return fmt.Errorf("unauthorized: you can only delete your own thread: %w", apperror.ErrForbidden)
	}

	if err := s.threadRepo.Delete(ctx, threadID); err != nil {
		return err
	}

	// Replies decrement whichever counter their creation incremented.
	var parentID *uuid.UUID
	switch {
	case thread.ParentReplyID != nil:
		parentID = thread.ParentReplyID
	case thread.ParentThreadID != nil:
		parentID = thread.ParentThreadID
	}
	if parentID != nil {
		if _, err := s.threadRepo.AdjustReplyCount(ctx, *parentID, -1); err != nil && !errors.Is(err, apperror.ErrNotFound) {
			log.Error().Err(err).Str("thread_id", parentID.String()).Msg("reply counter update failed")
		}
	}

	return nil
}
