package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maheshrc27/publisher/internal/cache"
	"github.com/maheshrc27/publisher/internal/logger"
	"github.com/maheshrc27/publisher/internal/models"
	"github.com/maheshrc27/publisher/internal/platform"
	"github.com/maheshrc27/publisher/internal/repository"
	"github.com/maheshrc27/publisher/internal/transfer"
)

const owner = "owner-1"

type stubAdapter struct {
	name      string
	analytics func(externalID string) (*platform.AnalyticsSnapshot, error)
}

func (s *stubAdapter) Name() string { return s.name }

func (s *stubAdapter) Publish(context.Context, *platform.Credentials, *platform.Content) (*platform.PublishOutcome, error) {
	return &platform.PublishOutcome{ExternalID: s.name + "-1"}, nil
}

func (s *stubAdapter) FetchAnalytics(_ context.Context, _ *platform.Credentials, externalID string) (*platform.AnalyticsSnapshot, error) {
	if s.analytics == nil {
		return nil, platform.ErrRemoteUnavailable
	}
	return s.analytics(externalID)
}

type fixture struct {
	store repository.PostRepository
	cache *cache.JobCache
	svc   PostService
	reg   *platform.Registry
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg := platform.NewRegistry(time.Second)
	for _, name := range []string{"facebook", "twitter", "instagram"} {
		reg.Register(&stubAdapter{name: name}, 0)
	}
	store := repository.NewMemoryPostRepository()
	jobs := cache.NewJobCache(store, logger.Discard())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := NewPostServiceWithClock(store, jobs, reg, logger.Discard(), func() time.Time { return now })
	return &fixture{store: store, cache: jobs, svc: svc, reg: reg, now: now}
}

func (f *fixture) creation(at time.Time, platforms ...string) *transfer.PostCreation {
	return &transfer.PostCreation{
		Content:       "spring launch",
		Hashtags:      []string{"#launch", "news"},
		Mentions:      []string{"@acme"},
		Platforms:     platforms,
		ScheduledDate: &at,
	}
}

func (f *fixture) schedule(t *testing.T, platforms ...string) *models.Post {
	t.Helper()
	p, err := f.svc.SchedulePost(context.Background(), owner, f.creation(f.now.Add(time.Hour), platforms...))
	require.NoError(t, err)
	return p
}

func (f *fixture) setStatus(t *testing.T, id string, from, to models.PostStatus) {
	t.Helper()
	ok, err := f.store.UpdateStatus(context.Background(), id, from, to, nil)
	require.NoError(t, err)
	require.True(t, ok)
}

func (f *fixture) get(t *testing.T, id string) *models.Post {
	t.Helper()
	p, err := f.store.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p
}

func TestSchedulePostAddsToCache(t *testing.T) {
	f := newFixture(t)
	p := f.schedule(t, "facebook", "twitter")

	assert.NotEmpty(t, p.ID)
	assert.Equal(t, models.PostStatusScheduled, p.Status)
	assert.Equal(t, []string{"launch", "news"}, p.Hashtags)
	assert.Equal(t, []string{"acme"}, p.Mentions)

	cached, ok := f.cache.Get(p.ID)
	require.True(t, ok)
	assert.Equal(t, p.ScheduledDate, cached.ScheduledDate)
}

func TestSchedulePostRejectsPastDate(t *testing.T) {
	f := newFixture(t)

	for _, at := range []time.Time{f.now.Add(-time.Second), f.now} {
		_, err := f.svc.SchedulePost(context.Background(), owner, f.creation(at, "facebook"))
		assert.ErrorIs(t, err, ErrInvalidScheduleTime)
		var verr *ValidationError
		assert.True(t, errors.As(err, &verr))
	}

	pc := f.creation(f.now, "facebook")
	pc.ScheduledDate = nil
	_, err := f.svc.SchedulePost(context.Background(), owner, pc)
	assert.ErrorIs(t, err, ErrInvalidScheduleTime)
	assert.Equal(t, 0, f.cache.Size())
}

func TestSchedulePostValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	at := f.now.Add(time.Hour)

	_, err := f.svc.SchedulePost(ctx, owner, f.creation(at))
	assert.ErrorIs(t, err, ErrNoTargetsSpecified)

	_, err = f.svc.SchedulePost(ctx, owner, f.creation(at, "myspace"))
	assert.ErrorIs(t, err, ErrUnknownPlatform)

	_, err = f.svc.SchedulePost(ctx, owner, f.creation(at, "facebook", "facebook"))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.SchedulePost(ctx, "", f.creation(at, "facebook"))
	assert.ErrorIs(t, err, ErrOwnerRequired)

	empty := f.creation(at, "facebook")
	empty.Content = "  "
	_, err = f.svc.SchedulePost(ctx, owner, empty)
	assert.ErrorIs(t, err, ErrEmptyPost)

	badMedia := f.creation(at, "instagram")
	badMedia.Media = []transfer.MediaInput{{Type: "audio", URL: "https://cdn.example.com/a.mp3"}}
	_, err = f.svc.SchedulePost(ctx, owner, badMedia)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Field, "Type")

	badLink := f.creation(at, "facebook")
	badLink.Link = "not a link"
	_, err = f.svc.SchedulePost(ctx, owner, badLink)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCreateDraftNeedsNoDate(t *testing.T) {
	f := newFixture(t)
	pc := f.creation(f.now, "facebook")
	pc.ScheduledDate = nil

	p, err := f.svc.CreateDraft(context.Background(), owner, pc)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusDraft, p.Status)
	assert.Nil(t, p.ScheduledDate)
	assert.Equal(t, 0, f.cache.Size())
}

func TestCancelScheduled(t *testing.T) {
	f := newFixture(t)
	p := f.schedule(t, "facebook")

	got, err := f.svc.Cancel(context.Background(), owner, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusCancelled, got.Status)
	_, ok := f.cache.Get(p.ID)
	assert.False(t, ok)

	again, err := f.svc.Cancel(context.Background(), owner, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusCancelled, again.Status)
}

func TestCancelPublishingIsTooLate(t *testing.T) {
	f := newFixture(t)
	p := f.schedule(t, "facebook")
	f.setStatus(t, p.ID, models.PostStatusScheduled, models.PostStatusPublishing)
	before := f.get(t, p.ID)

	_, err := f.svc.Cancel(context.Background(), owner, p.ID)
	assert.ErrorIs(t, err, ErrTooLate)
	assert.Equal(t, before, f.get(t, p.ID))

	f.setStatus(t, p.ID, models.PostStatusPublishing, models.PostStatusPublished)
	_, err = f.svc.Cancel(context.Background(), owner, p.ID)
	assert.ErrorIs(t, err, ErrTooLate)
}

func TestCancelOtherOwnerOrMissing(t *testing.T) {
	f := newFixture(t)
	p := f.schedule(t, "facebook")

	_, err := f.svc.Cancel(context.Background(), "someone-else", p.ID)
	assert.ErrorIs(t, err, ErrPostNotFound)
	_, err = f.svc.Cancel(context.Background(), owner, "missing")
	assert.ErrorIs(t, err, ErrPostNotFound)
	assert.Equal(t, models.PostStatusScheduled, f.get(t, p.ID).Status)
}

func TestCancelDraftIsRejected(t *testing.T) {
	f := newFixture(t)
	pc := f.creation(f.now, "facebook")
	pc.ScheduledDate = nil
	p, err := f.svc.CreateDraft(context.Background(), owner, pc)
	require.NoError(t, err)

	_, err = f.svc.Cancel(context.Background(), owner, p.ID)
	assert.ErrorIs(t, err, ErrNotCancellable)
}

func TestUpdatePostRefreshesCache(t *testing.T) {
	f := newFixture(t)
	p := f.schedule(t, "facebook")

	content := "edited"
	later := f.now.Add(3 * time.Hour)
	platforms := []string{"facebook", "twitter"}
	got, err := f.svc.UpdatePost(context.Background(), owner, p.ID, &transfer.PostUpdate{
		Content:       &content,
		Platforms:     &platforms,
		ScheduledDate: &later,
	})
	require.NoError(t, err)
	assert.Equal(t, "edited", got.Content)
	assert.Equal(t, platforms, got.Platforms)

	cached, ok := f.cache.Get(p.ID)
	require.True(t, ok)
	assert.Equal(t, "edited", cached.Content)
	assert.True(t, cached.ScheduledDate.Equal(later))
	next := f.cache.NextFor(owner)
	require.NotNil(t, next)
	assert.True(t, next.Equal(later))
}

func TestUpdatePostRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.schedule(t, "facebook")

	past := f.now.Add(-time.Minute)
	_, err := f.svc.UpdatePost(ctx, owner, p.ID, &transfer.PostUpdate{ScheduledDate: &past})
	assert.ErrorIs(t, err, ErrInvalidScheduleTime)

	none := []string{}
	_, err = f.svc.UpdatePost(ctx, owner, p.ID, &transfer.PostUpdate{Platforms: &none})
	assert.ErrorIs(t, err, ErrNoTargetsSpecified)

	f.setStatus(t, p.ID, models.PostStatusScheduled, models.PostStatusPublishing)
	content := "late"
	_, err = f.svc.UpdatePost(ctx, owner, p.ID, &transfer.PostUpdate{Content: &content})
	assert.ErrorIs(t, err, ErrTooLate)
	assert.Equal(t, "spring launch", f.get(t, p.ID).Content)
}

func TestRescheduleFailedPost(t *testing.T) {
	f := newFixture(t)
	p := f.schedule(t, "facebook")
	f.setStatus(t, p.ID, models.PostStatusScheduled, models.PostStatusPublishing)
	f.setStatus(t, p.ID, models.PostStatusPublishing, models.PostStatusFailed)

	past := f.now.Add(-time.Minute)
	_, err := f.svc.Reschedule(context.Background(), owner, p.ID, &past)
	assert.ErrorIs(t, err, ErrInvalidScheduleTime)

	at := f.now.Add(2 * time.Hour)
	got, err := f.svc.Reschedule(context.Background(), owner, p.ID, &at)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusScheduled, got.Status)
	assert.True(t, got.ScheduledDate.Equal(at))
	_, ok := f.cache.Get(p.ID)
	assert.True(t, ok)
}

func TestRescheduleCancelledIsRejected(t *testing.T) {
	f := newFixture(t)
	p := f.schedule(t, "facebook")
	_, err := f.svc.Cancel(context.Background(), owner, p.ID)
	require.NoError(t, err)

	at := f.now.Add(time.Hour)
	_, err = f.svc.Reschedule(context.Background(), owner, p.ID, &at)
	assert.ErrorIs(t, err, ErrNotEditable)
}

func TestRemove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.schedule(t, "facebook")

	assert.ErrorIs(t, f.svc.Remove(ctx, "someone-else", p.ID), ErrPostNotFound)
	require.NoError(t, f.svc.Remove(ctx, owner, p.ID))
	assert.Equal(t, 0, f.cache.Size())
	assert.ErrorIs(t, f.svc.Remove(ctx, owner, p.ID), ErrPostNotFound)

	q := f.schedule(t, "facebook")
	f.setStatus(t, q.ID, models.PostStatusScheduled, models.PostStatusPublishing)
	assert.ErrorIs(t, f.svc.Remove(ctx, owner, q.ID), ErrTooLate)
}

func TestListFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.schedule(t, "facebook")
	tw := f.schedule(t, "twitter")
	_, err := f.svc.Cancel(ctx, owner, tw.ID)
	require.NoError(t, err)

	all, err := f.svc.List(ctx, owner, repository.PostFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	cancelled, err := f.svc.List(ctx, owner, repository.PostFilter{Status: models.PostStatusCancelled})
	require.NoError(t, err)
	require.Len(t, cancelled, 1)
	assert.Equal(t, tw.ID, cancelled[0].ID)

	fb, err := f.svc.List(ctx, owner, repository.PostFilter{Platform: "facebook"})
	require.NoError(t, err)
	assert.Len(t, fb, 1)

	none, err := f.svc.List(ctx, "nobody", repository.PostFilter{})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	_, err = f.svc.List(ctx, owner, repository.PostFilter{Status: "archived"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.svc.List(ctx, owner, repository.PostFilter{Platform: "myspace"})
	assert.ErrorIs(t, err, ErrUnknownPlatform)
}

func TestNextScheduledTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	next, err := f.svc.NextScheduledTime(ctx, owner)
	require.NoError(t, err)
	assert.Nil(t, next)

	soon := f.now.Add(30 * time.Minute)
	_, err = f.svc.SchedulePost(ctx, owner, f.creation(f.now.Add(2*time.Hour), "facebook"))
	require.NoError(t, err)
	_, err = f.svc.SchedulePost(ctx, owner, f.creation(soon, "twitter"))
	require.NoError(t, err)

	next, err = f.svc.NextScheduledTime(ctx, owner)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.True(t, next.Equal(soon))
}

func TestStatsIsStable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.schedule(t, "facebook")
	_, err := f.svc.SchedulePost(ctx, owner, f.creation(f.now.Add(10*24*time.Hour), "twitter"))
	require.NoError(t, err)
	c := f.schedule(t, "twitter")
	_, err = f.svc.Cancel(ctx, owner, c.ID)
	require.NoError(t, err)

	first, err := f.svc.Stats(ctx, owner)
	require.NoError(t, err)
	second, err := f.svc.Stats(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	assert.Equal(t, 2, first.Counts[models.PostStatusScheduled])
	assert.Equal(t, 1, first.Counts[models.PostStatusCancelled])
	assert.Equal(t, 0, first.Counts[models.PostStatusPublished])
	assert.Len(t, first.Counts, len(models.AllPostStatuses))
	assert.Equal(t, 3, first.Total)
	assert.Equal(t, 1, first.Upcoming)
}
