package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/maheshrc27/publisher/configs"
	"github.com/maheshrc27/publisher/internal/logger"
	"github.com/maheshrc27/publisher/internal/models"
	"github.com/maheshrc27/publisher/internal/platform"
	"github.com/maheshrc27/publisher/internal/repository"
	"github.com/maheshrc27/publisher/pkg/utils"
)

func publishedPost(id string, publishedAt time.Time, results ...models.PostResult) *models.Post {
	return &models.Post{
		ID:            id,
		OwnerID:       owner,
		Content:       "hello",
		Platforms:     []string{"facebook", "twitter"},
		Status:        models.PostStatusPublished,
		PublishedDate: &publishedAt,
		PostResults:   results,
	}
}

func newAnalytics(t *testing.T, adapters ...platform.Adapter) (repository.PostRepository, AnalyticsService) {
	t.Helper()
	reg := platform.NewRegistry(time.Second)
	for _, a := range adapters {
		reg.Register(a, 0)
	}
	store := repository.NewMemoryPostRepository()
	creds := NewStaticCredentials(map[string]config.PlatformAccount{
		"facebook": {AccessToken: "fb"},
		"twitter":  {AccessToken: "tw"},
	})
	return store, NewAnalyticsService(store, reg, creds, logger.Discard(), 2)
}

func TestRefreshUpdatesSuccessResults(t *testing.T) {
	fb := &stubAdapter{name: "facebook", analytics: func(id string) (*platform.AnalyticsSnapshot, error) {
		return &platform.AnalyticsSnapshot{Engagement: models.Engagement{Likes: 10, Comments: 2, Views: 100}}, nil
	}}
	tw := &stubAdapter{name: "twitter"}
	store, svc := newAnalytics(t, fb, tw)
	ctx := context.Background()

	_, err := store.Insert(ctx, publishedPost("p1", time.Now(),
		models.PostResult{Platform: "facebook", Status: models.ResultStatusSuccess, ExternalID: "fb-1"},
		models.PostResult{Platform: "twitter", Status: models.ResultStatusSuccess, ExternalID: "tw-1",
			Engagement: models.Engagement{Likes: 3, Views: 50}},
	))
	require.NoError(t, err)

	got, err := svc.RefreshPost(ctx, owner, "p1")
	require.NoError(t, err)
	require.Len(t, got.PostResults, 2)
	assert.Equal(t, int64(10), got.PostResults[0].Engagement.Likes)
	assert.Equal(t, int64(3), got.PostResults[1].Engagement.Likes, "failed fetch keeps the last snapshot")
	assert.Equal(t, int64(150), got.Analytics.Reach)
	assert.Equal(t, int64(15), got.Analytics.Engagement)
	assert.Equal(t, 2, got.Analytics.SuccessCount)
	assert.Equal(t, models.PostStatusPublished, got.Status)
}

func TestRefreshPostChecks(t *testing.T) {
	store, svc := newAnalytics(t, &stubAdapter{name: "facebook"})
	ctx := context.Background()

	_, err := svc.RefreshPost(ctx, owner, "missing")
	assert.ErrorIs(t, err, ErrPostNotFound)

	at := time.Now().Add(time.Hour)
	_, err = store.Insert(ctx, &models.Post{ID: "s1", OwnerID: owner, Status: models.PostStatusScheduled, ScheduledDate: &at})
	require.NoError(t, err)
	_, err = svc.RefreshPost(ctx, owner, "s1")
	assert.ErrorIs(t, err, ErrNotPublished)
	_, err = svc.RefreshPost(ctx, "other", "s1")
	assert.ErrorIs(t, err, ErrPostNotFound)
}

func TestRefreshSinceOnlyTouchesWindow(t *testing.T) {
	calls := make(chan string, 4)
	fb := &stubAdapter{name: "facebook", analytics: func(id string) (*platform.AnalyticsSnapshot, error) {
		calls <- id
		return &platform.AnalyticsSnapshot{Engagement: models.Engagement{Shares: 1}}, nil
	}}
	store, svc := newAnalytics(t, fb)
	ctx := context.Background()
	now := time.Now()

	for id, at := range map[string]time.Time{"recent": now.Add(-time.Hour), "old": now.Add(-30 * 24 * time.Hour)} {
		_, err := store.Insert(ctx, publishedPost(id, at,
			models.PostResult{Platform: "facebook", Status: models.ResultStatusSuccess, ExternalID: id}))
		require.NoError(t, err)
	}

	n, err := svc.RefreshSince(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	close(calls)
	var ids []string
	for id := range calls {
		ids = append(ids, id)
	}
	assert.Equal(t, []string{"recent"}, ids)
}

func TestStaticAndChainCredentials(t *testing.T) {
	ctx := context.Background()
	static := NewStaticCredentials(map[string]config.PlatformAccount{
		"facebook": {AccountID: "page", AccessToken: "tok"},
	})
	creds, err := static.Credentials(ctx, owner, "facebook")
	require.NoError(t, err)
	assert.Equal(t, &platform.Credentials{AccountID: "page", AccessToken: "tok"}, creds)

	creds, err = static.Credentials(ctx, owner, "twitter")
	require.NoError(t, err)
	assert.Nil(t, creds)

	override := NewStaticCredentials(map[string]config.PlatformAccount{
		"twitter": {AccessToken: "tw"},
	})
	chain := ChainCredentials{override, static}
	creds, err = chain.Credentials(ctx, owner, "twitter")
	require.NoError(t, err)
	assert.Equal(t, "tw", creds.AccessToken)
	creds, err = chain.Credentials(ctx, owner, "facebook")
	require.NoError(t, err)
	assert.Equal(t, "tok", creds.AccessToken)
	creds, err = chain.Credentials(ctx, owner, "youtube")
	require.NoError(t, err)
	assert.Nil(t, creds)
}

type accountsStub map[string]*models.SocialAccount

func (s accountsStub) GetByOwnerAndPlatform(_ context.Context, ownerID, name string) (*models.SocialAccount, error) {
	return s[ownerID+"/"+name], nil
}

func (s accountsStub) ListByOwner(_ context.Context, ownerID string) ([]*models.SocialAccount, error) {
	var out []*models.SocialAccount
	for _, sa := range s {
		if sa.OwnerID == ownerID {
			out = append(out, sa)
		}
	}
	return out, nil
}

func TestAccountCredentialsOpensSealedTokens(t *testing.T) {
	sealer, err := utils.NewSealer([]byte("0123456789abcdef"))
	require.NoError(t, err)
	sealed, err := sealer.Seal("page-token")
	require.NoError(t, err)

	accounts := accountsStub{
		owner + "/facebook": {OwnerID: owner, Platform: "facebook", AccountID: "page-1", AccountName: "Acme", AccessToken: sealed},
		owner + "/twitter": {OwnerID: owner, Platform: "twitter", AccessToken: sealed,
			TokenExpiresAt: time.Now().Add(-time.Hour)},
	}
	provider := NewAccountCredentials(accounts, sealer, logger.Discard())
	ctx := context.Background()

	creds, err := provider.Credentials(ctx, owner, "facebook")
	require.NoError(t, err)
	assert.Equal(t, &platform.Credentials{AccountID: "page-1", AccessToken: "page-token"}, creds)

	creds, err = provider.Credentials(ctx, owner, "twitter")
	require.NoError(t, err)
	assert.Nil(t, creds, "expired token counts as missing")

	creds, err = provider.Credentials(ctx, owner, "linkedin")
	require.NoError(t, err)
	assert.Nil(t, creds)

	reg := platform.NewRegistry(time.Second)
	reg.Register(&stubAdapter{name: "facebook"}, 0)
	reg.Register(&stubAdapter{name: "twitter"}, 0)
	infos, err := NewAccountService(reg, provider, accounts, logger.Discard()).Platforms(ctx, owner)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "facebook", infos[0].Name)
	assert.True(t, infos[0].Connected)
	assert.Equal(t, "Acme", infos[0].AccountName)
	assert.False(t, infos[1].Connected)
}
