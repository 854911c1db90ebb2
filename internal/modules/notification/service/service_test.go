package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"anoa.com/threadgraph/internal/entity"
	notifDto "anoa.com/threadgraph/internal/modules/notification/dto"
	"anoa.com/threadgraph/internal/testutil"
	"anoa.com/threadgraph/pkg/apperror"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	svc      NotificationService
	store    *testutil.NotificationStore
	profiles *testutil.ProfileStore
	threads  *testutil.ThreadStore
	clock    *fakeClock
}

func newFixture() *fixture {
	f := &fixture{
		store:    testutil.NewNotificationStore(),
		profiles: testutil.NewProfileStore(),
		threads:  testutil.NewThreadStore(),
		clock:    &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
	}
	f.svc = NewNotificationService(f.store, f.profiles, f.threads, Options{Now: f.clock.Now})
	return f
}

func TestCreateNotificationSkipsSelf(t *testing.T) {
	f := newFixture()
	user := uuid.New()

	n, err := f.svc.CreateNotification(context.Background(), CreateInput{
		RecipientID: user,
		ActorID:     user,
		Type:        entity.NotificationFollow,
	})
	require.NoError(t, err)
	require.Nil(t, n)
	require.Zero(t, f.store.Calls("Create"))
	require.Zero(t, f.store.Calls("ExistsSince"))
}

func TestCreateNotificationRejectsUnknownType(t *testing.T) {
	f := newFixture()
	_, err := f.svc.CreateNotification(context.Background(), CreateInput{
		RecipientID: uuid.New(),
		ActorID:     uuid.New(),
		Type:        "poke",
	})
	require.ErrorIs(t, err, apperror.ErrInvalidInput)
}

func TestCreateNotificationDedupWindow(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	recipient, actor, thread := uuid.New(), uuid.New(), uuid.New()

	require.NoError(t, f.svc.NotifyLike(ctx, recipient, actor, thread, "hello"))
	require.Len(t, f.store.All(), 1)

	f.clock.Advance(time.Minute)
	require.NoError(t, f.svc.NotifyLike(ctx, recipient, actor, thread, "hello"))
	require.Len(t, f.store.All(), 1, "duplicate inside the window is suppressed")

	require.NoError(t, f.svc.NotifyLike(ctx, recipient, actor, uuid.New(), "other thread"))
	require.Len(t, f.store.All(), 2, "a different thread is not a duplicate")

	f.clock.Advance(5 * time.Minute)
	require.NoError(t, f.svc.NotifyLike(ctx, recipient, actor, thread, "hello"))
	require.Len(t, f.store.All(), 3, "window elapsed")
}

func TestNotifyTruncatesMessage(t *testing.T) {
	f := newFixture()
	recipient, actor := uuid.New(), uuid.New()

	require.NoError(t, f.svc.NotifyReply(context.Background(), recipient, actor, uuid.New(), strings.Repeat("x", 250)))

	all := f.store.All()
	require.Len(t, all, 1)
	require.NotNil(t, all[0].Message)
	require.Len(t, *all[0].Message, 100)
	require.Equal(t, entity.NotificationReply, all[0].Type)
}

func TestNotifyFollowHasNoThread(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.svc.NotifyFollow(context.Background(), uuid.New(), uuid.New()))

	all := f.store.All()
	require.Len(t, all, 1)
	require.Nil(t, all[0].ThreadID)
	require.Nil(t, all[0].Message)
}

func TestCreateNotificationPropagatesStorageFailure(t *testing.T) {
	f := newFixture()
	f.store.FailOn("Create", testutil.StorageFailure("create notification"))

	err := f.svc.NotifyFollow(context.Background(), uuid.New(), uuid.New())
	require.ErrorIs(t, err, apperror.ErrStorage)
}

func TestMarkAsReadRequiresOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	recipient, actor, stranger := uuid.New(), uuid.New(), uuid.New()

	n, err := f.svc.CreateNotification(ctx, CreateInput{RecipientID: recipient, ActorID: actor, Type: entity.NotificationFollow})
	require.NoError(t, err)

	changed, err := f.svc.MarkAsRead(ctx, stranger, n.ID)
	require.ErrorIs(t, err, apperror.ErrForbidden)
	require.False(t, changed)
	require.False(t, f.store.All()[0].IsRead)
	require.Zero(t, f.store.Calls("MarkAsRead"))

	changed, err = f.svc.MarkAsRead(ctx, recipient, n.ID)
	require.NoError(t, err)
	require.True(t, changed)
	require.True(t, f.store.All()[0].IsRead)

	changed, err = f.svc.MarkAsRead(ctx, recipient, n.ID)
	require.NoError(t, err)
	require.False(t, changed, "already read")
	require.Equal(t, 1, f.store.Calls("MarkAsRead"))

	_, err = f.svc.MarkAsRead(ctx, recipient, uuid.New())
	require.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestDeleteNotificationRequiresOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	recipient := uuid.New()

	n, err := f.svc.CreateNotification(ctx, CreateInput{RecipientID: recipient, ActorID: uuid.New(), Type: entity.NotificationFollow})
	require.NoError(t, err)

	require.ErrorIs(t, f.svc.DeleteNotification(ctx, uuid.New(), n.ID), apperror.ErrForbidden)
	require.Len(t, f.store.All(), 1)

	require.NoError(t, f.svc.DeleteNotification(ctx, recipient, n.ID))
	require.Empty(t, f.store.All())
}

func seedNotifications(t *testing.T, f *fixture, recipient uuid.UUID, count int) []*entity.Notification {
	t.Helper()
	out := make([]*entity.Notification, 0, count)
	for i := 0; i < count; i++ {
		n, err := f.svc.CreateNotification(context.Background(), CreateInput{
			RecipientID: recipient,
			ActorID:     uuid.New(),
			Type:        entity.NotificationFollow,
		})
		require.NoError(t, err)
		out = append(out, n)
	}
	return out
}

func TestMarkAllAsReadReportsPartialSuccess(t *testing.T) {
	f := newFixture()
	recipient := uuid.New()
	seeded := seedNotifications(t, f, recipient, 3)
	f.store.FailMarkAsRead(seeded[1].ID)

	marked, err := f.svc.MarkAllAsRead(context.Background(), recipient)
	require.NoError(t, err)
	require.Equal(t, 2, marked)
	require.Equal(t, int64(1), f.svc.GetUnreadCount(context.Background(), recipient))
}

func TestMarkAllAsReadBatchesOfHundred(t *testing.T) {
	f := newFixture()
	recipient := uuid.New()
	seedNotifications(t, f, recipient, 120)

	marked, err := f.svc.MarkAllAsRead(context.Background(), recipient)
	require.NoError(t, err)
	require.Equal(t, 100, marked)
	require.Equal(t, int64(20), f.svc.GetUnreadCount(context.Background(), recipient))
}

func TestGetUnreadCountDegradesToZero(t *testing.T) {
	f := newFixture()
	recipient := uuid.New()
	seedNotifications(t, f, recipient, 2)
	f.store.FailOn("CountUnread", testutil.StorageFailure("count unread"))

	require.Zero(t, f.svc.GetUnreadCount(context.Background(), recipient))
}

func TestGetNotificationsEnrichesInBatches(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	recipient := uuid.New()
	alice, bob, ghost := uuid.New(), uuid.New(), uuid.New()
	f.profiles.Seed(alice, "alice")
	f.profiles.Seed(bob, "bob")
	thread := f.threads.Seed(&entity.Thread{AuthorID: recipient, Content: "<p>my first post</p>"})

	for _, actor := range []uuid.UUID{alice, bob, alice, ghost} {
		_, err := f.svc.CreateNotification(ctx, CreateInput{
			RecipientID: recipient,
			ActorID:     actor,
			Type:        entity.NotificationLike,
			ThreadID:    &thread.ID,
		})
		require.NoError(t, err)
		f.clock.Advance(10 * time.Minute)
	}

	page, err := f.svc.GetNotifications(ctx, recipient, notifDto.ListQuery{})
	require.NoError(t, err)

	require.Len(t, page.Data, 3, "notification from an unresolved actor is dropped")
	require.Equal(t, int64(4), page.UnreadCount)
	require.False(t, page.Meta.HasMore)
	require.Nil(t, page.Meta.NextCursor)
	for _, n := range page.Data {
		require.NotEqual(t, ghost, n.Actor.UserID)
		require.NotNil(t, n.Thread)
		require.Equal(t, "my first post", n.Thread.Content)
	}

	require.Equal(t, 1, f.profiles.Calls("FindByUserIDs"))
	require.Equal(t, 1, f.threads.Calls("FindByIDs"))
	require.Equal(t, 1, f.store.Calls("CountUnread"))
}

func TestGetNotificationsPaginatesWithEqualTimestamps(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	recipient := uuid.New()
	seeded := seedNotifications(t, f, recipient, 25)
	for _, n := range seeded {
		f.profiles.Seed(n.ActorID, "u"+n.ActorID.String()[:8])
	}

	seen := map[uuid.UUID]bool{}
	cursor := ""
	sizes := []int{}
	for {
		page, err := f.svc.GetNotifications(ctx, recipient, notifDto.ListQuery{Cursor: cursor, Limit: 10})
		require.NoError(t, err)
		sizes = append(sizes, len(page.Data))
		for _, n := range page.Data {
			require.False(t, seen[n.ID], "duplicate across pages")
			seen[n.ID] = true
		}
		if !page.Meta.HasMore {
			break
		}
		cursor = *page.Meta.NextCursor
	}
	require.Equal(t, []int{10, 10, 5}, sizes)
	require.Len(t, seen, 25)
}

func TestGetNotificationsRejectsUnknownCursor(t *testing.T) {
	f := newFixture()
	_, err := f.svc.GetNotifications(context.Background(), uuid.New(), notifDto.ListQuery{Cursor: uuid.NewString()})
	require.ErrorIs(t, err, apperror.ErrInvalidInput)
}

func TestGetNotificationsActorLookupFailure(t *testing.T) {
	f := newFixture()
	recipient := uuid.New()
	seedNotifications(t, f, recipient, 1)
	f.profiles.FailOn("FindByUserIDs", testutil.StorageFailure("find profiles"))

	_, err := f.svc.GetNotifications(context.Background(), recipient, notifDto.ListQuery{})
	require.ErrorIs(t, err, apperror.ErrStorage)
}
