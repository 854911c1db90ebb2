// Package testutil provides in-memory repositories for service tests.
//
// Every store counts calls per method and can be told to fail a method, which is how the
// service tests assert batching and degraded reads without a database.
package testutil

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"anoa.com/threadgraph/internal/entity"
	notificationRepo "anoa.com/threadgraph/internal/modules/notification/repository"
	threadRepo "anoa.com/threadgraph/internal/modules/thread/repository"
	"anoa.com/threadgraph/pkg/apperror"
	"github.com/google/uuid"
)

type recorder struct {
	mu       sync.Mutex
	calls    map[string]int
	failures map[string]error
}

func (r *recorder) record(method string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.calls == nil {
		r.calls = make(map[string]int)
	}
	r.calls[method]++
	return r.failures[method]
}

// Calls returns how many times method was invoked.
func (r *recorder) Calls(method string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[method]
}

// FailOn makes method return err until cleared with a nil err.
func (r *recorder) FailOn(method string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failures == nil {
		r.failures = make(map[string]error)
	}
	if err == nil {
		delete(r.failures, method)
		return
	}
	r.failures[method] = err
}

// ResetCalls zeroes all counters.
func (r *recorder) ResetCalls() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = make(map[string]int)
}

// StorageFailure is a convenience error shaped like a repository storage failure.
func StorageFailure(op string) error {
	return fmt.Errorf("%s: %w: connection reset", op, apperror.ErrStorage)
}

func newID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}

// newestFirst orders by created_at DESC, id DESC.
func newestFirst(aTime time.Time, aID uuid.UUID, bTime time.Time, bID uuid.UUID) bool {
	if !aTime.Equal(bTime) {
		return aTime.After(bTime)
	}
	return bytes.Compare(aID[:], bID[:]) > 0
}

func afterAnchor(t time.Time, id uuid.UUID, anchorTime time.Time, anchorID uuid.UUID) bool {
	return newestFirst(anchorTime, anchorID, t, id)
}

// ProfileStore implements the profile repository.
type ProfileStore struct {
	recorder
	data sync.Map
}

func NewProfileStore() *ProfileStore {
	return &ProfileStore{}
}

// Seed inserts a profile for userID and returns it.
func (s *ProfileStore) Seed(userID uuid.UUID, username string) *entity.Profile {
	p := &entity.Profile{ID: newID(), UserID: userID, Username: username, DisplayName: username, CreatedAt: time.Now()}
	s.data.Store(userID, p)
	return p
}

func (s *ProfileStore) all() []*entity.Profile {
	var out []*entity.Profile
	s.data.Range(func(_, v any) bool {
		out = append(out, v.(*entity.Profile))
		return true
	})
	return out
}

func (s *ProfileStore) Create(_ context.Context, profile *entity.Profile) error {
	if err := s.record("Create"); err != nil {
		return err
	}
	for _, p := range s.all() {
		if p.UserID == profile.UserID || p.Username == profile.Username {
			return fmt.Errorf("create profile: %w", apperror.ErrConflict)
		}
	}
	if profile.ID == uuid.Nil {
		profile.ID = newID()
	}
	cp := *profile
	s.data.Store(profile.UserID, &cp)
	return nil
}

func (s *ProfileStore) FindByUserID(_ context.Context, userID uuid.UUID) (*entity.Profile, error) {
	if err := s.record("FindByUserID"); err != nil {
		return nil, err
	}
	v, ok := s.data.Load(userID)
	if !ok {
		return nil, fmt.Errorf("find profile: %w", apperror.ErrNotFound)
	}
	cp := *v.(*entity.Profile)
	return &cp, nil
}

func (s *ProfileStore) FindByUsername(_ context.Context, username string) (*entity.Profile, error) {
	if err := s.record("FindByUsername"); err != nil {
		return nil, err
	}
	for _, p := range s.all() {
		if p.Username == username {
			cp := *p
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("find profile by username: %w", apperror.ErrNotFound)
}

func (s *ProfileStore) FindByUserIDs(_ context.Context, userIDs []uuid.UUID) ([]*entity.Profile, error) {
	if err := s.record("FindByUserIDs"); err != nil {
		return nil, err
	}
	out := make([]*entity.Profile, 0, len(userIDs))
	for _, id := range userIDs {
		if v, ok := s.data.Load(id); ok {
			cp := *v.(*entity.Profile)
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *ProfileStore) FindByUsernames(_ context.Context, usernames []string) ([]*entity.Profile, error) {
	if err := s.record("FindByUsernames"); err != nil {
		return nil, err
	}
	want := make(map[string]bool, len(usernames))
	for _, u := range usernames {
		want[u] = true
	}
	out := make([]*entity.Profile, 0, len(usernames))
	for _, p := range s.all() {
		if want[p.Username] {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *ProfileStore) Update(_ context.Context, profile *entity.Profile) error {
	if err := s.record("Update"); err != nil {
		return err
	}
	cp := *profile
	s.data.Store(profile.UserID, &cp)
	return nil
}

// ThreadStore implements the thread repository.
type ThreadStore struct {
	recorder
	mu      sync.Mutex
	threads map[uuid.UUID]*entity.Thread
	drift   []threadRepo.CounterDrift
}

func NewThreadStore() *ThreadStore {
	return &ThreadStore{threads: make(map[uuid.UUID]*entity.Thread)}
}

// Seed inserts a thread as-is, assigning an id when missing.
func (s *ThreadStore) Seed(t *entity.Thread) *entity.Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = newID()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	cp := *t
	s.threads[t.ID] = &cp
	return t
}

// Get returns a copy of the stored thread or nil.
func (s *ThreadStore) Get(id uuid.UUID) *entity.Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[id]
	if !ok {
		return nil
	}
	cp := *t
	return &cp
}

func (s *ThreadStore) Create(_ context.Context, thread *entity.Thread) error {
	if err := s.record("Create"); err != nil {
		return err
	}
	s.Seed(thread)
	return nil
}

func (s *ThreadStore) FindByID(_ context.Context, id uuid.UUID) (*entity.Thread, error) {
	if err := s.record("FindByID"); err != nil {
		return nil, err
	}
	t := s.Get(id)
	if t == nil {
		return nil, fmt.Errorf("find thread: %w", apperror.ErrNotFound)
	}
	return t, nil
}

func (s *ThreadStore) FindByIDs(_ context.Context, ids []uuid.UUID) ([]*entity.Thread, error) {
	if err := s.record("FindByIDs"); err != nil {
		return nil, err
	}
	out := make([]*entity.Thread, 0, len(ids))
	for _, id := range ids {
		if t := s.Get(id); t != nil {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *ThreadStore) FindPage(_ context.Context, q threadRepo.Query) ([]*entity.Thread, error) {
	if err := s.record("FindPage"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var authors map[uuid.UUID]bool
	if q.AuthorIDs != nil {
		authors = make(map[uuid.UUID]bool, len(q.AuthorIDs))
		for _, id := range q.AuthorIDs {
			authors[id] = true
		}
	}

	var anchor *entity.Thread
	if q.Cursor != nil {
		a, ok := s.threads[*q.Cursor]
		if !ok {
			return nil, fmt.Errorf("cursor %s no longer exists: %w", q.Cursor, apperror.ErrInvalidInput)
		}
		anchor = a
	}

	matched := make([]*entity.Thread, 0)
	for _, t := range s.threads {
		if q.TopLevelOnly && t.ParentThreadID != nil {
			continue
		}
		if q.ParentThreadID != nil && (t.ParentThreadID == nil || *t.ParentThreadID != *q.ParentThreadID) {
			continue
		}
		if authors != nil && !authors[t.AuthorID] {
			continue
		}
		if anchor != nil && !afterAnchor(t.CreatedAt, t.ID, anchor.CreatedAt, anchor.ID) {
			continue
		}
		cp := *t
		matched = append(matched, &cp)
	}
	sort.Slice(matched, func(i, j int) bool {
		return newestFirst(matched[i].CreatedAt, matched[i].ID, matched[j].CreatedAt, matched[j].ID)
	})
	if len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	return matched, nil
}

func (s *ThreadStore) Delete(_ context.Context, id uuid.UUID) error {
	if err := s.record("Delete"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.threads[id]; !ok {
		return fmt.Errorf("thread %s: %w", id, apperror.ErrNotFound)
	}
	delete(s.threads, id)
	for childID, t := range s.threads {
		if (t.ParentThreadID != nil && *t.ParentThreadID == id) || (t.ParentReplyID != nil && *t.ParentReplyID == id) {
			delete(s.threads, childID)
		}
	}
	return nil
}

func (s *ThreadStore) adjust(method string, id uuid.UUID, field func(*entity.Thread) *int64, delta int64) (int64, error) {
	if err := s.record(method); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[id]
	if !ok {
		return 0, fmt.Errorf("%s: %w", method, apperror.ErrNotFound)
	}
	p := field(t)
	*p += delta
	if *p < 0 {
		*p = 0
	}
	return *p, nil
}

func (s *ThreadStore) AdjustLikeCount(_ context.Context, id uuid.UUID, delta int64) (int64, error) {
	return s.adjust("AdjustLikeCount", id, func(t *entity.Thread) *int64 { return &t.LikeCount }, delta)
}

func (s *ThreadStore) AdjustReplyCount(_ context.Context, id uuid.UUID, delta int64) (int64, error) {
	return s.adjust("AdjustReplyCount", id, func(t *entity.Thread) *int64 { return &t.ReplyCount }, delta)
}

// SetDrift queues rows for the next FindCounterDrift call.
func (s *ThreadStore) SetDrift(drift []threadRepo.CounterDrift) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drift = drift
}

func (s *ThreadStore) FindCounterDrift(_ context.Context, limit int) ([]threadRepo.CounterDrift, error) {
	if err := s.record("FindCounterDrift"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.drift
	if len(out) > limit {
		out = out[:limit]
	}
	s.drift = nil
	return out, nil
}

func (s *ThreadStore) SetCounters(_ context.Context, id uuid.UUID, likeCount, replyCount int64) error {
	if err := s.record("SetCounters"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[id]
	if !ok {
		return fmt.Errorf("set counters: %w", apperror.ErrNotFound)
	}
	t.LikeCount = likeCount
	t.ReplyCount = replyCount
	return nil
}

type edgeKey struct {
	from uuid.UUID
	to   uuid.UUID
}

// EdgeStore implements both the follow and like repositories over a set of directed pairs.
type EdgeStore struct {
	recorder
	mu    sync.Mutex
	edges map[edgeKey]time.Time
	// RaceOnCreate simulates a concurrent writer inserting the same edge first.
	RaceOnCreate bool
}

func newEdgeStore() *EdgeStore {
	return &EdgeStore{edges: make(map[edgeKey]time.Time)}
}

func (s *EdgeStore) exists(from, to uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.edges[edgeKey{from, to}]
	return ok
}

func (s *EdgeStore) create(op string, from, to uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := edgeKey{from, to}
	if s.RaceOnCreate {
		s.edges[key] = time.Now()
		s.RaceOnCreate = false
	}
	if _, ok := s.edges[key]; ok {
		return fmt.Errorf("%s: %w", op, apperror.ErrConflict)
	}
	s.edges[key] = time.Now()
	return nil
}

func (s *EdgeStore) remove(from, to uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := edgeKey{from, to}
	_, ok := s.edges[key]
	delete(s.edges, key)
	return ok
}

// Len returns the number of stored edges.
func (s *EdgeStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.edges)
}

// FollowStore implements the follow repository.
type FollowStore struct{ *EdgeStore }

func NewFollowStore() *FollowStore {
	return &FollowStore{newEdgeStore()}
}

func (s *FollowStore) Exists(_ context.Context, followerID, followingID uuid.UUID) (bool, error) {
	if err := s.record("Exists"); err != nil {
		return false, err
	}
	return s.exists(followerID, followingID), nil
}

func (s *FollowStore) Create(_ context.Context, follow *entity.Follow) error {
	if err := s.record("Create"); err != nil {
		return err
	}
	return s.create("create follow", follow.FollowerID, follow.FollowingID)
}

func (s *FollowStore) Delete(_ context.Context, followerID, followingID uuid.UUID) (bool, error) {
	if err := s.record("Delete"); err != nil {
		return false, err
	}
	return s.remove(followerID, followingID), nil
}

func (s *FollowStore) CountFollowers(_ context.Context, userID uuid.UUID) (int64, error) {
	if err := s.record("CountFollowers"); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k := range s.edges {
		if k.to == userID {
			n++
		}
	}
	return n, nil
}

func (s *FollowStore) CountFollowing(_ context.Context, userID uuid.UUID) (int64, error) {
	if err := s.record("CountFollowing"); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k := range s.edges {
		if k.from == userID {
			n++
		}
	}
	return n, nil
}

func (s *FollowStore) FindFollowingIDs(_ context.Context, followerID uuid.UUID) ([]uuid.UUID, error) {
	if err := s.record("FindFollowingIDs"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]uuid.UUID, 0)
	for k := range s.edges {
		if k.from == followerID {
			ids = append(ids, k.to)
		}
	}
	return ids, nil
}

// LikeStore implements the like repository.
type LikeStore struct{ *EdgeStore }

func NewLikeStore() *LikeStore {
	return &LikeStore{newEdgeStore()}
}

func (s *LikeStore) Exists(_ context.Context, userID, threadID uuid.UUID) (bool, error) {
	if err := s.record("Exists"); err != nil {
		return false, err
	}
	return s.exists(userID, threadID), nil
}

func (s *LikeStore) Create(_ context.Context, like *entity.Like) error {
	if err := s.record("Create"); err != nil {
		return err
	}
	return s.create("create like", like.UserID, like.ThreadID)
}

func (s *LikeStore) Delete(_ context.Context, userID, threadID uuid.UUID) (bool, error) {
	if err := s.record("Delete"); err != nil {
		return false, err
	}
	return s.remove(userID, threadID), nil
}

func (s *LikeStore) FindLikedThreadIDs(_ context.Context, userID uuid.UUID, threadIDs []uuid.UUID) ([]uuid.UUID, error) {
	if err := s.record("FindLikedThreadIDs"); err != nil {
		return nil, err
	}
	out := make([]uuid.UUID, 0)
	for _, id := range threadIDs {
		if s.exists(userID, id) {
			out = append(out, id)
		}
	}
	return out, nil
}

// NotificationStore implements the notification repository.
type NotificationStore struct {
	recorder
	mu       sync.Mutex
	items    map[uuid.UUID]*entity.Notification
	failMark map[uuid.UUID]bool
}

func NewNotificationStore() *NotificationStore {
	return &NotificationStore{
		items:    make(map[uuid.UUID]*entity.Notification),
		failMark: make(map[uuid.UUID]bool),
	}
}

// FailMarkAsRead makes MarkAsRead fail for one notification only.
func (s *NotificationStore) FailMarkAsRead(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failMark[id] = true
}

// All returns copies of every stored notification, newest first.
func (s *NotificationStore) All() []*entity.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*entity.Notification, 0, len(s.items))
	for _, n := range s.items {
		cp := *n
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return newestFirst(out[i].CreatedAt, out[i].ID, out[j].CreatedAt, out[j].ID)
	})
	return out
}

func (s *NotificationStore) Create(_ context.Context, n *entity.Notification) error {
	if err := s.record("Create"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.ID == uuid.Nil {
		n.ID = newID()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	cp := *n
	s.items[n.ID] = &cp
	return nil
}

func (s *NotificationStore) ExistsSince(_ context.Context, key notificationRepo.DedupKey, since time.Time) (bool, error) {
	if err := s.record("ExistsSince"); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.items {
		if n.RecipientID != key.RecipientID || n.ActorID != key.ActorID || n.Type != key.Type {
			continue
		}
		if key.ThreadID != nil && (n.ThreadID == nil || *n.ThreadID != *key.ThreadID) {
			continue
		}
		if !n.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (s *NotificationStore) FindByID(_ context.Context, id uuid.UUID) (*entity.Notification, error) {
	if err := s.record("FindByID"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.items[id]
	if !ok {
		return nil, fmt.Errorf("find notification: %w", apperror.ErrNotFound)
	}
	cp := *n
	return &cp, nil
}

func (s *NotificationStore) FindPage(_ context.Context, q notificationRepo.PageQuery) ([]*entity.Notification, error) {
	if err := s.record("FindPage"); err != nil {
		return nil, err
	}
	all := s.All()

	var anchor *entity.Notification
	if q.Cursor != nil {
		for _, n := range all {
			if n.ID == *q.Cursor && n.RecipientID == q.RecipientID {
				anchor = n
			}
		}
		if anchor == nil {
			return nil, fmt.Errorf("cursor %s no longer exists: %w", q.Cursor, apperror.ErrInvalidInput)
		}
	}

	out := make([]*entity.Notification, 0, q.Limit)
	for _, n := range all {
		if n.RecipientID != q.RecipientID || (q.UnreadOnly && n.IsRead) {
			continue
		}
		if anchor != nil && !afterAnchor(n.CreatedAt, n.ID, anchor.CreatedAt, anchor.ID) {
			continue
		}
		out = append(out, n)
		if len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func (s *NotificationStore) FindUnreadIDs(_ context.Context, recipientID uuid.UUID, limit int) ([]uuid.UUID, error) {
	if err := s.record("FindUnreadIDs"); err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0)
	for _, n := range s.All() {
		if n.RecipientID == recipientID && !n.IsRead {
			ids = append(ids, n.ID)
			if len(ids) == limit {
				break
			}
		}
	}
	return ids, nil
}

func (s *NotificationStore) MarkAsRead(_ context.Context, id uuid.UUID) error {
	if err := s.record("MarkAsRead"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failMark[id] {
		return StorageFailure("mark notification read")
	}
	if n, ok := s.items[id]; ok {
		n.IsRead = true
	}
	return nil
}

func (s *NotificationStore) CountUnread(_ context.Context, recipientID uuid.UUID) (int64, error) {
	if err := s.record("CountUnread"); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, item := range s.items {
		if item.RecipientID == recipientID && !item.IsRead {
			n++
		}
	}
	return n, nil
}

func (s *NotificationStore) Delete(_ context.Context, id uuid.UUID) error {
	if err := s.record("Delete"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return fmt.Errorf("notification %s: %w", id, apperror.ErrNotFound)
	}
	delete(s.items, id)
	return nil
}
