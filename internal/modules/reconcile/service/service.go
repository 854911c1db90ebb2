package service

import (
	"context"
	"errors"

	threadRepo "anoa.com/threadgraph/internal/modules/thread/repository"
	"anoa.com/threadgraph/pkg/apperror"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const DefaultBatchSize = 200

type CounterStore interface {
	FindCounterDrift(ctx context.Context, limit int) ([]threadRepo.CounterDrift, error)
	SetCounters(ctx context.Context, id uuid.UUID, likeCount, replyCount int64) error
}

// Report summarizes one reconciliation pass.
type Report struct {
	Checked  int
	Repaired int
	Failed   int
}

// ReconcileService rewrites denormalized thread counters from the like and reply edges.
type ReconcileService interface {
	Reconcile(ctx context.Context) (Report, error)
}

type reconcileService struct {
	store     CounterStore
	batchSize int
}

func NewReconcileService(store CounterStore, batchSize int) ReconcileService {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &reconcileService{store: store, batchSize: batchSize}
}

// Reconcile repairs at most one batch of drifted threads. Running it again is harmless.
func (s *reconcileService) Reconcile(ctx context.Context) (Report, error) {
	drift, err := s.store.FindCounterDrift(ctx, s.batchSize)
	if err != nil {
		return Report{}, err
	}

	report := Report{Checked: len(drift)}
	for _, d := range drift {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		err := s.store.SetCounters(ctx, d.ID, d.ActualLikes, d.ActualReplies)
		switch {
		case err == nil:
			report.Repaired++
			log.Debug().
				Str("thread_id", d.ID.String()).
				Int64("like_count", d.LikeCount).Int64("actual_likes", d.ActualLikes).
				Int64("reply_count", d.ReplyCount).Int64("actual_replies", d.ActualReplies).
				Msg("counter repaired")
		case errors.Is(err, apperror.ErrNotFound):
			// deleted since the scan
		default:
			report.Failed++
			log.Warn().Err(err).Str("thread_id", d.ID.String()).Msg("counter repair failed")
		}
	}
	return report, nil
}
