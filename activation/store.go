package activation

import (
	"context"
	"strconv"
	"sync"
)

// AttemptStore tracks global per-user code attempts. Counters survive session
// restarts so reconnecting never grants fresh attempts.
type AttemptStore interface {
	Incr(ctx context.Context, userID int64) (int, error)
	Get(ctx context.Context, userID int64) (int, error)
	Reset(ctx context.Context, userID int64) error
}

// ActivatedStore holds the global set of activated users.
type ActivatedStore interface {
	Add(ctx context.Context, userID int64) error
	Contains(ctx context.Context, userID int64) (bool, error)
}

type MemAttemptStore struct {
	mu       sync.Mutex
	attempts map[int64]int
}

func NewMemAttemptStore() *MemAttemptStore {
	return &MemAttemptStore{
		attempts: make(map[int64]int),
	}
}

func (s *MemAttemptStore) Incr(ctx context.Context, userID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[userID]++
	return s.attempts[userID], nil
}

func (s *MemAttemptStore) Get(ctx context.Context, userID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts[userID], nil
}

func (s *MemAttemptStore) Reset(ctx context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attempts, userID)
	return nil
}

type MemActivatedStore struct {
	mu    sync.Mutex
	users map[int64]bool
}

func NewMemActivatedStore() *MemActivatedStore {
	return &MemActivatedStore{
		users: make(map[int64]bool),
	}
}

func (s *MemActivatedStore) Add(ctx context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = true
	return nil
}

func (s *MemActivatedStore) Contains(ctx context.Context, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[userID], nil
}

func userKey(prefix string, userID int64) string {
	return prefix + strconv.FormatInt(userID, 10)
}

var (
	_ AttemptStore   = (*MemAttemptStore)(nil)
	_ ActivatedStore = (*MemActivatedStore)(nil)
)
