package service

import (
	"context"
	"sync"
	"testing"

	"anoa.com/threadgraph/internal/entity"
	"anoa.com/threadgraph/internal/testutil"
	"anoa.com/threadgraph/pkg/apperror"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type sentNotification struct {
	kind        string
	recipientID uuid.UUID
	actorID     uuid.UUID
	threadID    uuid.UUID
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *recordingNotifier) Like(_ context.Context, recipientID, actorID, threadID uuid.UUID, _ string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{"like", recipientID, actorID, threadID})
}

func (n *recordingNotifier) Follow(_ context.Context, recipientID, actorID uuid.UUID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{kind: "follow", recipientID: recipientID, actorID: actorID})
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type fixture struct {
	svc      RelationshipService
	follows  *testutil.FollowStore
	likes    *testutil.LikeStore
	threads  *testutil.ThreadStore
	notifier *recordingNotifier
}

func newFixture() *fixture {
	f := &fixture{
		follows:  testutil.NewFollowStore(),
		likes:    testutil.NewLikeStore(),
		threads:  testutil.NewThreadStore(),
		notifier: &recordingNotifier{},
	}
	f.svc = NewRelationshipService(f.follows, f.likes, f.threads, f.notifier, nil, Options{})
	return f
}

func TestToggleLikeIsIdempotentPerToggle(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	author, liker := uuid.New(), uuid.New()
	thread := f.threads.Seed(&entity.Thread{AuthorID: author, Content: "hello"})

	want := []struct {
		liked bool
		count int64
	}{{true, 1}, {false, 0}, {true, 1}}

	for i, w := range want {
		got, err := f.svc.ToggleLike(ctx, liker, thread.ID)
		require.NoError(t, err, "toggle %d", i)
		require.Equal(t, w.liked, got.Liked, "toggle %d", i)
		require.Equal(t, w.count, got.LikeCount, "toggle %d", i)
	}

	require.Equal(t, 1, f.likes.Len())
	require.Equal(t, int64(1), f.threads.Get(thread.ID).LikeCount)
	require.Equal(t, 2, f.notifier.count())
	require.Equal(t, author, f.notifier.sent[0].recipientID)
	require.Equal(t, liker, f.notifier.sent[0].actorID)
}

func TestToggleLikeCounterNeverNegative(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	user := uuid.New()
	thread := f.threads.Seed(&entity.Thread{AuthorID: uuid.New(), Content: "drifted", LikeCount: 0})
	require.NoError(t, f.likes.Create(ctx, &entity.Like{UserID: user, ThreadID: thread.ID}))

	got, err := f.svc.ToggleLike(ctx, user, thread.ID)
	require.NoError(t, err)
	require.False(t, got.Liked)
	require.Zero(t, got.LikeCount)
	require.Zero(t, f.threads.Get(thread.ID).LikeCount)
}

func TestToggleLikeMissingThread(t *testing.T) {
	f := newFixture()
	_, err := f.svc.ToggleLike(context.Background(), uuid.New(), uuid.New())
	require.ErrorIs(t, err, apperror.ErrNotFound)
	require.Zero(t, f.likes.Calls("Create"))
}

func TestToggleLikeDuplicateKeyMeansAlreadyLiked(t *testing.T) {
	f := newFixture()
	thread := f.threads.Seed(&entity.Thread{AuthorID: uuid.New(), Content: "race", LikeCount: 1})
	f.likes.RaceOnCreate = true

	got, err := f.svc.ToggleLike(context.Background(), uuid.New(), thread.ID)
	require.NoError(t, err)
	require.True(t, got.Liked)
	require.Equal(t, int64(1), got.LikeCount)
	require.Zero(t, f.threads.Calls("AdjustLikeCount"))
	require.Zero(t, f.notifier.count())
}

func TestToggleLikeOwnThreadDoesNotNotify(t *testing.T) {
	f := newFixture()
	author := uuid.New()
	thread := f.threads.Seed(&entity.Thread{AuthorID: author, Content: "mine"})

	got, err := f.svc.ToggleLike(context.Background(), author, thread.ID)
	require.NoError(t, err)
	require.True(t, got.Liked)
	require.Zero(t, f.notifier.count())
}

func TestToggleLikeCounterFailureIsBestEffort(t *testing.T) {
	f := newFixture()
	thread := f.threads.Seed(&entity.Thread{AuthorID: uuid.New(), Content: "x", LikeCount: 4})
	f.threads.FailOn("AdjustLikeCount", testutil.StorageFailure("adjust like_count"))

	got, err := f.svc.ToggleLike(context.Background(), uuid.New(), thread.ID)
	require.NoError(t, err)
	require.True(t, got.Liked)
	require.Equal(t, int64(5), got.LikeCount)
	require.Equal(t, 1, f.likes.Len())
}

func TestToggleLikeWriteFailurePropagates(t *testing.T) {
	f := newFixture()
	thread := f.threads.Seed(&entity.Thread{AuthorID: uuid.New(), Content: "x"})
	f.likes.FailOn("Create", testutil.StorageFailure("create like"))

	_, err := f.svc.ToggleLike(context.Background(), uuid.New(), thread.ID)
	require.ErrorIs(t, err, apperror.ErrStorage)
	require.Zero(t, f.notifier.count())
}

func TestToggleLikeRequiresPrincipal(t *testing.T) {
	f := newFixture()
	_, err := f.svc.ToggleLike(context.Background(), uuid.Nil, uuid.New())
	require.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestToggleFollowRejectsSelf(t *testing.T) {
	f := newFixture()
	user := uuid.New()

	_, err := f.svc.ToggleFollow(context.Background(), user, user)
	require.ErrorIs(t, err, apperror.ErrInvalidInput)
	require.Zero(t, f.follows.Calls("Exists"))
	require.Zero(t, f.follows.Calls("Create"))
	require.Zero(t, f.follows.Len())
}

func TestToggleFollowRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	follower, target := uuid.New(), uuid.New()

	got, err := f.svc.ToggleFollow(ctx, follower, target)
	require.NoError(t, err)
	require.True(t, got.Following)
	require.Equal(t, int64(1), got.Followers)
	require.True(t, f.svc.IsFollowing(ctx, follower, target))
	require.False(t, f.svc.IsFollowing(ctx, target, follower))

	counts := f.svc.GetFollowCounts(ctx, follower)
	require.Equal(t, int64(0), counts.Followers)
	require.Equal(t, int64(1), counts.Following)

	got, err = f.svc.ToggleFollow(ctx, follower, target)
	require.NoError(t, err)
	require.False(t, got.Following)
	require.Zero(t, got.Followers)
	require.False(t, f.svc.IsFollowing(ctx, follower, target))

	require.Equal(t, 1, f.notifier.count())
	require.Equal(t, "follow", f.notifier.sent[0].kind)
	require.Equal(t, target, f.notifier.sent[0].recipientID)
}

func TestToggleFollowDuplicateKeyMeansAlreadyFollowing(t *testing.T) {
	f := newFixture()
	f.follows.RaceOnCreate = true

	got, err := f.svc.ToggleFollow(context.Background(), uuid.New(), uuid.New())
	require.NoError(t, err)
	require.True(t, got.Following)
	require.Zero(t, f.notifier.count())
}

func TestIsFollowingDegrades(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	require.False(t, f.svc.IsFollowing(ctx, uuid.Nil, uuid.New()), "anonymous viewer")
	require.Zero(t, f.follows.Calls("Exists"))

	f.follows.FailOn("Exists", testutil.StorageFailure("find follow"))
	require.False(t, f.svc.IsFollowing(ctx, uuid.New(), uuid.New()))
}

func TestGetFollowCountsDegradesToZero(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	target := uuid.New()
	_, err := f.svc.ToggleFollow(ctx, uuid.New(), target)
	require.NoError(t, err)
	_, err = f.svc.ToggleFollow(ctx, target, uuid.New())
	require.NoError(t, err)

	f.follows.FailOn("CountFollowers", testutil.StorageFailure("count followers"))
	counts := f.svc.GetFollowCounts(ctx, target)
	require.Zero(t, counts.Followers)
	require.Equal(t, int64(1), counts.Following)
}

func TestGetFollowCountsFollowingSideDegradesAlone(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	target := uuid.New()
	_, err := f.svc.ToggleFollow(ctx, uuid.New(), target)
	require.NoError(t, err)
	_, err = f.svc.ToggleFollow(ctx, target, uuid.New())
	require.NoError(t, err)

	f.follows.FailOn("CountFollowing", testutil.StorageFailure("count following"))
	counts := f.svc.GetFollowCounts(ctx, target)
	require.Equal(t, int64(1), counts.Followers)
	require.Zero(t, counts.Following)
}

func TestGetFollowStatusAnonymous(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	target := uuid.New()
	_, err := f.svc.ToggleFollow(ctx, uuid.New(), target)
	require.NoError(t, err)

	status := f.svc.GetFollowStatus(ctx, uuid.Nil, target)
	require.False(t, status.Following)
	require.Equal(t, int64(1), status.Followers)
}

func TestGetUserLikeStatusBatchUsesOneQuery(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	user := uuid.New()

	ids := make([]uuid.UUID, 20)
	for i := range ids {
		ids[i] = f.threads.Seed(&entity.Thread{AuthorID: uuid.New(), Content: "t"}).ID
	}
	for _, id := range ids[:5] {
		require.NoError(t, f.likes.Create(ctx, &entity.Like{UserID: user, ThreadID: id}))
	}

	statuses := f.svc.GetUserLikeStatusBatch(ctx, user, ids)
	require.Len(t, statuses, 20)
	for i, id := range ids {
		require.Equal(t, i < 5, statuses[id])
	}
	require.Equal(t, 1, f.likes.Calls("FindLikedThreadIDs"))
	require.Zero(t, f.likes.Calls("Exists"))
}

func TestGetUserLikeStatusBatchDegrades(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	ids := []uuid.UUID{uuid.New(), uuid.New()}

	statuses := f.svc.GetUserLikeStatusBatch(ctx, uuid.Nil, ids)
	require.Equal(t, map[uuid.UUID]bool{ids[0]: false, ids[1]: false}, statuses)
	require.Zero(t, f.likes.Calls("FindLikedThreadIDs"))

	require.Empty(t, f.svc.GetUserLikeStatusBatch(ctx, uuid.New(), nil))

	f.likes.FailOn("FindLikedThreadIDs", testutil.StorageFailure("find liked threads"))
	statuses = f.svc.GetUserLikeStatusBatch(ctx, uuid.New(), ids)
	require.False(t, statuses[ids[0]])
	require.False(t, statuses[ids[1]])
}
