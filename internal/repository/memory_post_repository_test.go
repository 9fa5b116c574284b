package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/maheshrc27/publisher/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPost(id, owner string, status models.PostStatus, at time.Time) *models.Post {
	return &models.Post{
		ID:            id,
		OwnerID:       owner,
		Content:       "hello",
		Platforms:     []string{"facebook"},
		Status:        status,
		ScheduledDate: &at,
	}
}

func TestMemoryPostRepository_FindDueScheduled(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryPostRepository()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := repo.Insert(ctx, newPost("late", "o1", models.PostStatusScheduled, now.Add(-2*time.Minute)))
	require.NoError(t, err)
	_, err = repo.Insert(ctx, newPost("exact", "o1", models.PostStatusScheduled, now))
	require.NoError(t, err)
	_, err = repo.Insert(ctx, newPost("future", "o1", models.PostStatusScheduled, now.Add(time.Second)))
	require.NoError(t, err)
	_, err = repo.Insert(ctx, newPost("draft", "o1", models.PostStatusDraft, now.Add(-time.Hour)))
	require.NoError(t, err)

	due, err := repo.FindDueScheduled(ctx, now, 0)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "late", due[0].ID)
	assert.Equal(t, "exact", due[1].ID)

	limited, err := repo.FindDueScheduled(ctx, now, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestMemoryPostRepository_UpdateStatusIsCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryPostRepository()
	now := time.Now()
	_, err := repo.Insert(ctx, newPost("p1", "o1", models.PostStatusScheduled, now))
	require.NoError(t, err)

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.UpdateStatus(ctx, "p1", models.PostStatusScheduled, models.PostStatusPublishing, &StatusUpdate{PublishingStartedAt: &now})
			assert.NoError(t, err)
			if ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins)

	ok, err := repo.UpdateStatus(ctx, "p1", models.PostStatusScheduled, models.PostStatusCancelled, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusPublishing, got.Status)
	require.NotNil(t, got.PublishingStartedAt)
}

func TestMemoryPostRepository_StoredCopiesAreIsolated(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryPostRepository()
	p := newPost("p1", "o1", models.PostStatusScheduled, time.Now())
	_, err := repo.Insert(ctx, p)
	require.NoError(t, err)

	p.Content = "mutated"
	got, err := repo.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Content)

	got.Platforms[0] = "twitter"
	again, err := repo.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "facebook", again.Platforms[0])
}

func TestMemoryPostRepository_UpdateContentRequiresScheduledAndOwner(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryPostRepository()
	_, err := repo.Insert(ctx, newPost("p1", "o1", models.PostStatusScheduled, time.Now()))
	require.NoError(t, err)

	edit := newPost("p1", "intruder", models.PostStatusScheduled, time.Now())
	edit.Content = "edited"
	ok, err := repo.UpdateContent(ctx, edit)
	require.NoError(t, err)
	assert.False(t, ok)

	edit.OwnerID = "o1"
	ok, err = repo.UpdateContent(ctx, edit)
	require.NoError(t, err)
	assert.True(t, ok)

	got, _ := repo.GetByID(ctx, "p1")
	assert.Equal(t, "edited", got.Content)
}

func TestMemoryPostRepository_CountsAndFilters(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryPostRepository()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	inputs := []*models.Post{
		newPost("a", "o1", models.PostStatusScheduled, now.Add(time.Hour)),
		newPost("b", "o1", models.PostStatusScheduled, now.Add(8*24*time.Hour)),
		newPost("c", "o1", models.PostStatusPublished, now.Add(-time.Hour)),
		newPost("d", "o2", models.PostStatusScheduled, now.Add(time.Hour)),
	}
	inputs[2].Platforms = []string{"twitter"}
	for _, p := range inputs {
		_, err := repo.Insert(ctx, p)
		require.NoError(t, err)
	}

	counts, err := repo.CountByStatus(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, 2, counts[models.PostStatusScheduled])
	assert.Equal(t, 1, counts[models.PostStatusPublished])

	upcoming, err := repo.CountUpcoming(ctx, "o1", now, now.Add(7*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, upcoming)

	byPlatform, err := repo.FindByOwner(ctx, "o1", PostFilter{Platform: "twitter"})
	require.NoError(t, err)
	require.Len(t, byPlatform, 1)
	assert.Equal(t, "c", byPlatform[0].ID)

	byStatus, err := repo.FindByOwner(ctx, "o1", PostFilter{Status: models.PostStatusScheduled, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, byStatus, 1)
}

func TestMemoryPostRepository_DeleteScheduledIfOwned(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryPostRepository()
	_, err := repo.Insert(ctx, newPost("p1", "o1", models.PostStatusScheduled, time.Now()))
	require.NoError(t, err)
	_, err = repo.Insert(ctx, newPost("p2", "o1", models.PostStatusPublished, time.Now()))
	require.NoError(t, err)

	ok, err := repo.DeleteScheduledIfOwned(ctx, "p1", "o2")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.DeleteScheduledIfOwned(ctx, "p2", "o1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.DeleteScheduledIfOwned(ctx, "p1", "o1")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := repo.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryPostRepository_FindStuckPublishing(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryPostRepository()
	now := time.Now()
	old := now.Add(-time.Hour)
	fresh := now.Add(-time.Minute)

	for id, started := range map[string]time.Time{"old": old, "fresh": fresh} {
		_, err := repo.Insert(ctx, newPost(id, "o1", models.PostStatusScheduled, now))
		require.NoError(t, err)
		s := started
		ok, err := repo.UpdateStatus(ctx, id, models.PostStatusScheduled, models.PostStatusPublishing, &StatusUpdate{PublishingStartedAt: &s})
		require.NoError(t, err)
		require.True(t, ok)
	}

	stuck, err := repo.FindStuckPublishing(ctx, now.Add(-15*time.Minute))
	require.NoError(t, err)
	require.Len(t, stuck, 1)
	assert.Equal(t, "old", stuck[0].ID)
}
