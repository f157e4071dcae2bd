// Package memory keeps users and tracking logs in process memory. It backs
// local development (STORAGE_DRIVER=memory) and tests; nothing survives a restart.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hongminglow/iptrack-be/internal/models"
	"github.com/hongminglow/iptrack-be/internal/storage"
)

var _ storage.Store = (*Store)(nil)

// Store is a mutex-guarded in-memory implementation of storage.Store.
type Store struct {
	mu         sync.RWMutex
	users      []models.User
	logs       []models.TrackingRecord
	nextUserID int64
	nextLogID  int64
	now        func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{nextUserID: 1, nextLogID: 1, now: time.Now}
}

// CreateUser inserts a user, rejecting duplicate usernames or emails.
func (s *Store) CreateUser(_ context.Context, user models.User) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Username == user.Username || strings.EqualFold(existing.Email, user.Email) {
			return models.User{}, storage.ErrAlreadyExists
		}
	}
	user.ID = s.nextUserID
	s.nextUserID++
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now().UTC()
	}
	s.users = append(s.users, user)
	return user, nil
}

// FindByUsername fetches a user by username.
func (s *Store) FindByUsername(_ context.Context, username string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return models.User{}, storage.ErrNotFound
}

// FindByID fetches a user by ID.
func (s *Store) FindByID(_ context.Context, id int64) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return models.User{}, storage.ErrNotFound
}

// AppendLog stores a copy of rec under the next monotonic ID.
func (s *Store) AppendLog(_ context.Context, rec models.TrackingRecord) (models.TrackingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.ID = s.nextLogID
	s.nextLogID++
	rec.Timestamp = rec.Timestamp.UTC()
	s.logs = append(s.logs, rec)
	return rec, nil
}

// ListLogs returns a snapshot ordered by timestamp then ID, both descending.
func (s *Store) ListLogs(_ context.Context, limit int) ([]models.TrackingRecord, error) {
	s.mu.RLock()
	out := make([]models.TrackingRecord, len(s.logs))
	copy(out, s.logs)
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() {}
