package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/iptrack-be/internal/models"
	"github.com/hongminglow/iptrack-be/internal/storage"
)

func TestCreateUserRejectsDuplicates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()

	alice, err := s.CreateUser(ctx, models.User{Username: "alice", Email: "a@x.com", PasswordHash: "h"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), alice.ID)
	assert.False(t, alice.CreatedAt.IsZero())

	_, err = s.CreateUser(ctx, models.User{Username: "alice", Email: "other@x.com"})
	require.ErrorIs(t, err, storage.ErrAlreadyExists)
	_, err = s.CreateUser(ctx, models.User{Username: "bob", Email: "A@X.com"})
	require.ErrorIs(t, err, storage.ErrAlreadyExists)

	found, err := s.FindByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", found.Username)

	_, err = s.FindByUsername(ctx, "carol")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListLogsOrdering(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	for _, offset := range []time.Duration{0, 2 * time.Second, 2 * time.Second, time.Second} {
		_, err := s.AppendLog(ctx, models.TrackingRecord{IP: "10.0.0.1", Device: "ua", Timestamp: base.Add(offset)})
		require.NoError(t, err)
	}

	logs, err := s.ListLogs(ctx, 0)
	require.NoError(t, err)
	ids := make([]int64, 0, len(logs))
	for _, l := range logs {
		ids = append(ids, l.ID)
	}
	assert.Equal(t, []int64{3, 2, 4, 1}, ids)

	limited, err := s.ListLogs(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
	assert.Equal(t, int64(3), limited[0].ID)
}

func TestAppendLogConcurrentWritersGetUniqueIDs(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()

	const writers = 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.AppendLog(ctx, models.TrackingRecord{IP: fmt.Sprintf("10.0.0.%d", i), Device: "ua", Timestamp: time.Now()})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	logs, err := s.ListLogs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, logs, writers)
	seen := make(map[int64]bool, writers)
	for _, l := range logs {
		assert.False(t, seen[l.ID], "duplicate id %d", l.ID)
		seen[l.ID] = true
	}
}
