package service

import (
	"context"
	"fmt"
	"time"

	"anoa.com/threadgraph/internal/entity"
	notifDto "anoa.com/threadgraph/internal/modules/notification/dto"
	notifRepo "anoa.com/threadgraph/internal/modules/notification/repository"
	"anoa.com/threadgraph/pkg/apperror"
	commonDto "anoa.com/threadgraph/pkg/dto"
	"anoa.com/threadgraph/pkg/pagination"
	"anoa.com/threadgraph/pkg/textutil"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultDedupWindow = 5 * time.Minute
	markAllBatch       = 100
)

// ProfileLookup resolves actor summaries in one batch.
type ProfileLookup interface {
	FindByUserIDs(ctx context.Context, userIDs []uuid.UUID) ([]*entity.Profile, error)
}

// ThreadLookup resolves thread previews in one batch.
type ThreadLookup interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*entity.Thread, error)
}

type CreateInput struct {
	RecipientID uuid.UUID
	ActorID     uuid.UUID
	Type        entity.NotificationType
	ThreadID    *uuid.UUID
	Message     string
}

type NotificationService interface {
	// CreateNotification returns nil without error when the notification was suppressed.
	CreateNotification(ctx context.Context, input CreateInput) (*entity.Notification, error)
	NotifyLike(ctx context.Context, recipientID, actorID, threadID uuid.UUID, preview string) error
	NotifyFollow(ctx context.Context, recipientID, actorID uuid.UUID) error
	NotifyReply(ctx context.Context, recipientID, actorID, threadID uuid.UUID, preview string) error
	NotifyMention(ctx context.Context, recipientID, actorID, threadID uuid.UUID, preview string) error
	GetNotifications(ctx context.Context, userID uuid.UUID, query notifDto.ListQuery) (*notifDto.NotificationPageResponse, error)
	GetUnreadCount(ctx context.Context, userID uuid.UUID) int64
	MarkAsRead(ctx context.Context, userID, notificationID uuid.UUID) (bool, error)
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int, error)
	DeleteNotification(ctx context.Context, userID, notificationID uuid.UUID) error
}

type Options struct {
	DedupWindow time.Duration
	Now         func() time.Time
}

type notificationService struct {
	repo        notifRepo.NotificationRepository
	profiles    ProfileLookup
	threads     ThreadLookup
	dedupWindow time.Duration
	now         func() time.Time
}

func NewNotificationService(repo notifRepo.NotificationRepository, profiles ProfileLookup, threads ThreadLookup, opts Options) NotificationService {
	if opts.DedupWindow <= 0 {
		opts.DedupWindow = DefaultDedupWindow
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &notificationService{
		repo:        repo,
		profiles:    profiles,
		threads:     threads,
		dedupWindow: opts.DedupWindow,
		now:         opts.Now,
	}
}

func (s *notificationService) CreateNotification(ctx context.Context, input CreateInput) (*entity.Notification, error) {
	if !input.Type.Valid() {
		return nil, apperror.Invalid("unknown notification type %q", input.Type)
	}
	if input.RecipientID == uuid.Nil || input.ActorID == uuid.Nil {
		return nil, apperror.Invalid("recipient and actor are required")
	}
	if input.RecipientID == input.ActorID {
		return nil, nil
	}

	now := s.now()
	duplicate, err := s.repo.ExistsSince(ctx, notifRepo.DedupKey{
		RecipientID: input.RecipientID,
		ActorID:     input.ActorID,
		Type:        input.Type,
		ThreadID:    input.ThreadID,
	}, now.Add(-s.dedupWindow))
	if err != nil {
		return nil, err
	}
	if duplicate {
		return nil, nil
	}

	notification := &entity.Notification{
		RecipientID: input.RecipientID,
		ActorID:     input.ActorID,
		Type:        input.Type,
		ThreadID:    input.ThreadID,
		CreatedAt:   now,
	}
	if msg := textutil.Preview(input.Message, textutil.PreviewLength); msg != "" {
		notification.Message = &msg
	}

	if err := s.repo.Create(ctx, notification); err != nil {
		return nil, err
	}
	return notification, nil
}

func (s *notificationService) NotifyLike(ctx context.Context, recipientID, actorID, threadID uuid.UUID, preview string) error {
	return s.notify(ctx, entity.NotificationLike, recipientID, actorID, &threadID, preview)
}

func (s *notificationService) NotifyFollow(ctx context.Context, recipientID, actorID uuid.UUID) error {
	return s.notify(ctx, entity.NotificationFollow, recipientID, actorID, nil, "")
}

func (s *notificationService) NotifyReply(ctx context.Context, recipientID, actorID, threadID uuid.UUID, preview string) error {
	return s.notify(ctx, entity.NotificationReply, recipientID, actorID, &threadID, preview)
}

func (s *notificationService) NotifyMention(ctx context.Context, recipientID, actorID, threadID uuid.UUID, preview string) error {
	return s.notify(ctx, entity.NotificationMention, recipientID, actorID, &threadID, preview)
}

func (s *notificationService) notify(ctx context.Context, kind entity.NotificationType, recipientID, actorID uuid.UUID, threadID *uuid.UUID, preview string) error {
	_, err := s.CreateNotification(ctx, CreateInput{
		RecipientID: recipientID,
		ActorID:     actorID,
		Type:        kind,
		ThreadID:    threadID,
		Message:     preview,
	})
	return err
}

func (s *notificationService) GetNotifications(ctx context.Context, userID uuid.UUID, query notifDto.ListQuery) (*notifDto.NotificationPageResponse, error) {
	if userID == uuid.Nil {
		return nil, apperror.ErrUnauthorized
	}
	cursor, err := pagination.ParseCursor(query.Cursor)
	if err != nil {
		return nil, err
	}
	limit := pagination.NormalizeLimit(query.Limit, pagination.DefaultLimit, pagination.MaxLimit)

	rows, err := s.repo.FindPage(ctx, notifRepo.PageQuery{
		RecipientID: userID,
		UnreadOnly:  query.UnreadOnly,
		Cursor:      cursor,
		Limit:       limit + 1,
	})
	if err != nil {
		return nil, err
	}
	page, nextCursor, hasMore := pagination.Trim(rows, limit, func(n *entity.Notification) uuid.UUID { return n.ID })

	actorIDs := lo.Uniq(lo.Map(page, func(n *entity.Notification, _ int) uuid.UUID { return n.ActorID }))
	threadIDs := lo.Uniq(lo.FilterMap(page, func(n *entity.Notification, _ int) (uuid.UUID, bool) {
		if n.ThreadID == nil {
			return uuid.Nil, false
		}
		return *n.ThreadID, true
	}))

	var (
		actors      map[uuid.UUID]*entity.Profile
		threads     map[uuid.UUID]*entity.Thread
		unreadCount int64
	)
	g, gctx := errgroup.WithContext(ctx)
	if len(actorIDs) > 0 {
		g.Go(func() error {
			profiles, err := s.profiles.FindByUserIDs(gctx, actorIDs)
			if err != nil {
				return fmt.Errorf("resolve actors: %w", err)
			}
			actors = lo.KeyBy(profiles, func(p *entity.Profile) uuid.UUID { return p.UserID })
			return nil
		})
	}
	if len(threadIDs) > 0 {
		g.Go(func() error {
			found, err := s.threads.FindByIDs(gctx, threadIDs)
			if err != nil {
				log.Warn().Err(err).Str("user_id", userID.String()).Msg("notification thread previews unavailable")
				return nil
			}
			threads = lo.KeyBy(found, func(t *entity.Thread) uuid.UUID { return t.ID })
			return nil
		})
	}
	g.Go(func() error {
		unreadCount = s.GetUnreadCount(gctx, userID)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	data := make([]notifDto.NotificationResponse, 0, len(page))
	for _, n := range page {
		actor, ok := actors[n.ActorID]
		if !ok {
			continue
		}
		item := notifDto.NotificationResponse{
			ID:        n.ID,
			Type:      n.Type,
			Actor:     commonDto.NewAuthorResponse(actor),
			Message:   n.Message,
			Read:      n.IsRead,
			CreatedAt: n.CreatedAt,
		}
		if n.ThreadID != nil {
			if t, ok := threads[*n.ThreadID]; ok {
				item.Thread = &notifDto.ThreadPreview{ID: t.ID, Content: textutil.Preview(t.Content, textutil.PreviewLength)}
			}
		}
		data = append(data, item)
	}

	return &notifDto.NotificationPageResponse{
		Data:        data,
		Meta:        commonDto.CursorMeta{NextCursor: nextCursor, HasMore: hasMore, Limit: limit},
		UnreadCount: unreadCount,
	}, nil
}

func (s *notificationService) GetUnreadCount(ctx context.Context, userID uuid.UUID) int64 {
	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID.String()).Msg("unread count unavailable")
		return 0
	}
	return count
}

// MarkAsRead reports whether the notification changed state.
func (s *notificationService) MarkAsRead(ctx context.Context, userID, notificationID uuid.UUID) (bool, error) {
	notification, err := s.owned(ctx, userID, notificationID)
	if err != nil {
		return false, err
	}
	if notification.IsRead {
		return false, nil
	}
	if err := s.repo.MarkAsRead(ctx, notificationID); err != nil {
		return false, err
	}
	return true, nil
}

func (s *notificationService) MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int, error) {
	ids, err := s.repo.FindUnreadIDs(ctx, userID, markAllBatch)
	if err != nil {
		return 0, err
	}

	marked := 0
	for _, id := range ids {
		if err := s.repo.MarkAsRead(ctx, id); err != nil {
			log.Warn().Err(err).Str("notification_id", id.String()).Msg("failed to mark notification read")
			continue
		}
		marked++
	}
	return marked, nil
}

func (s *notificationService) DeleteNotification(ctx context.Context, userID, notificationID uuid.UUID) error {
	if _, err := s.owned(ctx, userID, notificationID); err != nil {
		return err
	}
	return s.repo.Delete(ctx, notificationID)
}

func (s *notificationService) owned(ctx context.Context, userID, notificationID uuid.UUID) (*entity.Notification, error) {
	notification, err := s.repo.FindByID(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	if notification.RecipientID != userID {
		return nil, fmt.Errorf("unauthorized: notification belongs to another user: %w", apperror.ErrForbidden)
	}
	return notification, nil
}
