package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const deliveryTimeout = 10 * time.Second

// Dispatcher delivers activity notifications in the background. Failures are logged and never
// reach the mutation that triggered them.
type Dispatcher struct {
	svc NotificationService
	wg  sync.WaitGroup
}

func NewDispatcher(svc NotificationService) *Dispatcher {
	return &Dispatcher{svc: svc}
}

func (d *Dispatcher) Like(ctx context.Context, recipientID, actorID, threadID uuid.UUID, preview string) {
	d.dispatch(ctx, "like", recipientID, actorID, func(ctx context.Context) error {
		return d.svc.NotifyLike(ctx, recipientID, actorID, threadID, preview)
	})
}

func (d *Dispatcher) Follow(ctx context.Context, recipientID, actorID uuid.UUID) {
	d.dispatch(ctx, "follow", recipientID, actorID, func(ctx context.Context) error {
		return d.svc.NotifyFollow(ctx, recipientID, actorID)
	})
}

func (d *Dispatcher) Reply(ctx context.Context, recipientID, actorID, threadID uuid.UUID, preview string) {
	d.dispatch(ctx, "reply", recipientID, actorID, func(ctx context.Context) error {
		return d.svc.NotifyReply(ctx, recipientID, actorID, threadID, preview)
	})
}

func (d *Dispatcher) Mention(ctx context.Context, recipientID, actorID, threadID uuid.UUID, preview string) {
	d.dispatch(ctx, "mention", recipientID, actorID, func(ctx context.Context) error {
		return d.svc.NotifyMention(ctx, recipientID, actorID, threadID, preview)
	})
}

// Wait blocks until every in-flight delivery has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) dispatch(ctx context.Context, kind string, recipientID, actorID uuid.UUID, deliver func(context.Context) error) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		// The request context is cancelled once the response is written.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deliveryTimeout)
		defer cancel()

		if err := deliver(ctx); err != nil {
			log.Warn().Err(err).
				Str("kind", kind).
				Str("recipient_id", recipientID.String()).
				Str("actor_id", actorID.String()).
				Msg("notification delivery failed")
		}
	}()
}
