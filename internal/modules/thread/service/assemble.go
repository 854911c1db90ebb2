package service

import (
	"context"

	"anoa.com/threadgraph/internal/entity"
	commonDto "anoa.com/threadgraph/pkg/dto"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// AuthorLookup resolves author summaries for a page of threads in one batch.
type AuthorLookup interface {
	FindByUserIDs(ctx context.Context, userIDs []uuid.UUID) ([]*entity.Profile, error)
}

// AssembleThreads attaches author summaries with a single lookup. When the lookup fails the
// threads are returned without authors.
func AssembleThreads(ctx context.Context, authors AuthorLookup, threads []*entity.Thread) []commonDto.ThreadResponse {
	out := make([]commonDto.ThreadResponse, 0, len(threads))
	if len(threads) == 0 {
		return out
	}

	ids := lo.Uniq(lo.Map(threads, func(t *entity.Thread, _ int) uuid.UUID { return t.AuthorID }))
	profiles, err := authors.FindByUserIDs(ctx, ids)
	if err != nil {
		log.Warn().Err(err).Int("authors", len(ids)).Msg("author lookup failed, returning threads without authors")
	}
	byUser := lo.KeyBy(profiles, func(p *entity.Profile) uuid.UUID { return p.UserID })

	for _, t := range threads {
		out = append(out, commonDto.NewThreadResponse(t, byUser[t.AuthorID]))
	}
	return out
}

// LikeStatusReader reports which threads a viewer has liked.
type LikeStatusReader interface {
	GetUserLikeStatusBatch(ctx context.Context, userID uuid.UUID, threadIDs []uuid.UUID) map[uuid.UUID]bool
}

// MarkLiked fills Liked for viewerID with one batch lookup. Anonymous viewers see nothing liked.
func MarkLiked(ctx context.Context, likes LikeStatusReader, viewerID uuid.UUID, items []commonDto.ThreadResponse) {
	if viewerID == uuid.Nil || len(items) == 0 {
		return
	}
	statuses := likes.GetUserLikeStatusBatch(ctx, viewerID, lo.Map(items, func(t commonDto.ThreadResponse, _ int) uuid.UUID { return t.ID }))
	for i := range items {
		items[i].Liked = statuses[items[i].ID]
	}
}
