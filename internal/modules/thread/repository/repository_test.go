package repository_test

import (
	"context"
	"testing"
	"time"

	"anoa.com/threadgraph/internal/entity"
	"anoa.com/threadgraph/internal/modules/thread/repository"
	"anoa.com/threadgraph/internal/testutil"
	"anoa.com/threadgraph/pkg/apperror"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestFindPageKeysetWithTies(t *testing.T) {
	db := testutil.OpenTestDB(t)
	r := repository.NewRepository(db)
	ctx := context.Background()

	at := time.Now().UTC().Truncate(time.Millisecond)
	author := uuid.New()
	for i := 0; i < 45; i++ {
		require.NoError(t, r.Create(ctx, &entity.Thread{AuthorID: author, Content: "post", CreatedAt: at}))
	}

	seen := map[uuid.UUID]bool{}
	var cursor *uuid.UUID
	var sizes []int
	for {
		rows, err := r.FindPage(ctx, repository.Query{TopLevelOnly: true, Cursor: cursor, Limit: 21})
		require.NoError(t, err)
		if len(rows) > 20 {
			rows = rows[:20]
		}
		sizes = append(sizes, len(rows))
		for _, row := range rows {
			require.False(t, seen[row.ID])
			seen[row.ID] = true
		}
		if len(rows) < 20 {
			break
		}
		last := rows[len(rows)-1].ID
		cursor = &last
	}
	require.Equal(t, []int{20, 20, 5}, sizes)
	require.Len(t, seen, 45)
}

func TestFindPageFilters(t *testing.T) {
	db := testutil.OpenTestDB(t)
	r := repository.NewRepository(db)
	ctx := context.Background()

	alice, bob := uuid.New(), uuid.New()
	root := &entity.Thread{AuthorID: alice, Content: "root"}
	require.NoError(t, r.Create(ctx, root))
	require.NoError(t, r.Create(ctx, &entity.Thread{AuthorID: bob, Content: "reply", ParentThreadID: &root.ID}))
	require.NoError(t, r.Create(ctx, &entity.Thread{AuthorID: bob, Content: "bob top"}))

	rows, err := r.FindPage(ctx, repository.Query{TopLevelOnly: true, AuthorIDs: []uuid.UUID{bob}, Limit: 10})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "bob top", rows[0].Content)

	rows, err = r.FindPage(ctx, repository.Query{AuthorIDs: []uuid.UUID{}, Limit: 10})
	require.NoError(t, err)
	require.Empty(t, rows)

	rows, err = r.FindPage(ctx, repository.Query{ParentThreadID: &root.ID, Limit: 10})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	missing := uuid.New()
	_, err = r.FindPage(ctx, repository.Query{Cursor: &missing, Limit: 10})
	require.ErrorIs(t, err, apperror.ErrInvalidInput)
}

func TestAdjustCounterClampsAndDriftRepairs(t *testing.T) {
	db := testutil.OpenTestDB(t)
	r := repository.NewRepository(db)
	ctx := context.Background()

	th := &entity.Thread{AuthorID: uuid.New(), Content: "counted"}
	require.NoError(t, r.Create(ctx, th))

	n, err := r.AdjustLikeCount(ctx, th.ID, -1)
	require.NoError(t, err)
	require.Zero(t, n)

	n, err = r.AdjustLikeCount(ctx, th.ID, 3)
	require.NoError(t, err)
	require.Equal(t, int64(3), n)

	_, err = r.AdjustReplyCount(ctx, uuid.New(), 1)
	require.ErrorIs(t, err, apperror.ErrNotFound)

	drift, err := r.FindCounterDrift(ctx, 10)
	require.NoError(t, err)
	require.Len(t, drift, 1)
	require.Equal(t, th.ID, drift[0].ID)
	require.Zero(t, drift[0].ActualLikes)

	require.NoError(t, r.SetCounters(ctx, th.ID, drift[0].ActualLikes, drift[0].ActualReplies))
	drift, err = r.FindCounterDrift(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, drift)
}

func TestDeleteCascadesReplies(t *testing.T) {
	db := testutil.OpenTestDB(t)
	r := repository.NewRepository(db)
	ctx := context.Background()

	root := &entity.Thread{AuthorID: uuid.New(), Content: "root"}
	require.NoError(t, r.Create(ctx, root))
	reply := &entity.Thread{AuthorID: uuid.New(), Content: "reply", ParentThreadID: &root.ID}
	require.NoError(t, r.Create(ctx, reply))

	require.NoError(t, r.Delete(ctx, root.ID))
	_, err := r.FindByID(ctx, reply.ID)
	require.ErrorIs(t, err, apperror.ErrNotFound)
	require.ErrorIs(t, r.Delete(ctx, root.ID), apperror.ErrNotFound)
}
