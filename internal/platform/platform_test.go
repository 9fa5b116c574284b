package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maheshrc27/publisher/internal/models"
)

func TestErrorIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("publish: %w", missingMedia("instagram"))
	assert.True(t, errors.Is(err, ErrMissingMedia))
	assert.False(t, errors.Is(err, ErrRemoteRejected))

	var pe *Error
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "instagram", pe.Platform)
	assert.Equal(t, "instagram: missing_media: at least one media item is required", pe.Error())
}

func TestClassify(t *testing.T) {
	assert.Nil(t, Classify("x", nil))

	e := Classify("twitter", context.DeadlineExceeded)
	assert.Equal(t, KindRemoteUnavailable, e.Kind)
	assert.Equal(t, "twitter", e.Platform)

	e = Classify("twitter", &Error{Kind: KindRemoteRejected, Message: "bad"})
	assert.Equal(t, KindRemoteRejected, e.Kind)
	assert.Equal(t, "twitter", e.Platform)

	e = Classify("twitter", errors.New("boom"))
	assert.Equal(t, KindRemoteUnavailable, e.Kind)
}

func TestContentText(t *testing.T) {
	c := &Content{
		Body:     "  Launch day ",
		Hashtags: []string{"go", "#release"},
		Mentions: []string{"gopher"},
		Link:     "https://example.com",
	}
	assert.Equal(t, "Launch day\n\n#go #release @gopher", c.Text(false))
	assert.Equal(t, "Launch day\n\n#go #release @gopher\n\nhttps://example.com", c.Text(true))

	empty := &Content{Link: "https://example.com"}
	assert.Equal(t, "https://example.com", empty.Text(true))
}

func TestContentFromPostCopies(t *testing.T) {
	p := &models.Post{
		Content:  "hi",
		Media:    models.MediaList{{Type: models.MediaTypeImage, URL: "https://x/a.png"}},
		Hashtags: []string{"a"},
	}
	c := ContentFromPost(p)
	c.Media[0].URL = "changed"
	c.Hashtags[0] = "b"
	assert.Equal(t, "https://x/a.png", p.Media[0].URL)
	assert.Equal(t, "a", p.Hashtags[0])
}

func TestRegistry(t *testing.T) {
	r := NewDefaultRegistry(10*time.Second, Options{})
	assert.Equal(t, []string{"facebook", "instagram", "linkedin", "tiktok", "twitter", "youtube"}, r.Names())

	a, ok := r.Get("twitter")
	require.True(t, ok)
	assert.Equal(t, "twitter", a.Name())

	_, ok = r.Get("myspace")
	assert.False(t, ok)

	assert.NoError(t, r.Validate([]string{"facebook", "youtube"}))
	assert.Error(t, r.Validate([]string{"facebook", "myspace"}))

	assert.Equal(t, 10*time.Second, r.Timeout("twitter"))
	assert.Equal(t, 40*time.Second, r.Timeout("youtube"))
}

func TestClientStatusClassification(t *testing.T) {
	cases := []struct {
		status int
		body   string
		kind   ErrorKind
		msg    string
	}{
		{http.StatusBadRequest, `{"error":{"message":"duplicate content"}}`, KindRemoteRejected, "duplicate content"},
		{http.StatusForbidden, `{"detail":"forbidden"}`, KindRemoteRejected, "forbidden"},
		{http.StatusTooManyRequests, `{"message":"slow down"}`, KindRemoteUnavailable, "slow down"},
		{http.StatusBadGateway, `upstream`, KindRemoteUnavailable, "upstream"},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c := newClient("test", srv.URL, Options{})
			err := c.getJSON(context.Background(), "/x", "tok", nil)
			var pe *Error
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tc.kind, pe.Kind)
			assert.Contains(t, pe.Message, tc.msg)
			assert.False(t, pe.Ambiguous)
		})
	}
}

func TestClientAmbiguousAfterSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": `))
	}))
	defer srv.Close()

	c := newClient("test", srv.URL, Options{})
	var out struct{ ID string }
	_, err := c.postJSON(context.Background(), "/x", "tok", map[string]string{"a": "b"}, &out)
	var pe *Error
	require.True(t, errors.As(err, &pe))
	assert.True(t, pe.Ambiguous)
	assert.Equal(t, KindRemoteUnavailable, pe.Kind)
}

func TestClientTimeoutIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := newClient("test", srv.URL, Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := c.getJSON(ctx, "/slow", "", nil)
	assert.True(t, errors.Is(err, ErrRemoteUnavailable))
}

func TestClientSendsBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newClient("test", srv.URL, Options{RateLimit: 100, Burst: 1})
	require.NoError(t, c.getJSON(context.Background(), "/", "tok", nil))
}

// countingServer fails the test if any request reaches it.
func countingServer(t *testing.T) (*httptest.Server, *int32) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestMediaRequiredAdaptersFailFast(t *testing.T) {
	srv, calls := countingServer(t)
	creds := &Credentials{AccountID: "1789", AccessToken: "tok"}
	content := &Content{Body: "no media here"}

	for _, a := range []Adapter{
		NewInstagram(Options{BaseURL: srv.URL}),
		NewTiktok(Options{BaseURL: srv.URL}),
		NewYoutube(Options{BaseURL: srv.URL}),
	} {
		_, err := a.Publish(context.Background(), creds, content)
		assert.True(t, errors.Is(err, ErrMissingMedia), a.Name())
	}
	assert.Equal(t, int32(0), atomic.LoadInt32(calls))
}

func TestLimitsRejectedLocally(t *testing.T) {
	srv, calls := countingServer(t)
	creds := &Credentials{AccountID: "acct", AccessToken: "tok"}
	opts := Options{BaseURL: srv.URL}

	img := models.Media{Type: models.MediaTypeImage, URL: "https://cdn.example.com/a.png"}
	vid := models.Media{Type: models.MediaTypeVideo, URL: "https://cdn.example.com/a.mp4"}
	gif := models.Media{Type: models.MediaTypeGIF, URL: "https://cdn.example.com/a.gif"}

	cases := []struct {
		adapter Adapter
		content *Content
	}{
		{NewTwitter(opts), &Content{Body: strings.Repeat("a", 281)}},
		{NewTwitter(opts), &Content{Body: "x", Media: []models.Media{img, img, img, img, img}}},
		{NewFacebook(opts), &Content{Body: "x", Media: []models.Media{vid}}},
		{NewInstagram(opts), &Content{Body: "x", Media: []models.Media{gif}}},
		{NewInstagram(opts), &Content{Body: strings.Repeat("a", 2201), Media: []models.Media{img}}},
		{NewLinkedIn(opts), &Content{Body: "x", Media: []models.Media{vid}}},
		{NewTiktok(opts), &Content{Body: "x", Media: []models.Media{vid, img}}},
		{NewTiktok(opts), &Content{Body: "x", Media: []models.Media{vid, vid}}},
		{NewYoutube(opts), &Content{Body: "x", Media: []models.Media{img}}},
	}
	for i, tc := range cases {
		_, err := tc.adapter.Publish(context.Background(), creds, tc.content)
		assert.True(t, errors.Is(err, ErrUnsupportedContent), "case %d (%s): %v", i, tc.adapter.Name(), err)
	}
	assert.Equal(t, int32(0), atomic.LoadInt32(calls))
}

func TestMissingCredentials(t *testing.T) {
	srv, calls := countingServer(t)
	content := &Content{Body: "hello"}
	for _, a := range []Adapter{
		NewFacebook(Options{BaseURL: srv.URL}),
		NewTwitter(Options{BaseURL: srv.URL}),
		NewLinkedIn(Options{BaseURL: srv.URL}),
	} {
		_, err := a.Publish(context.Background(), nil, content)
		assert.True(t, errors.Is(err, ErrCredentialsMissing), a.Name())
		_, err = a.Publish(context.Background(), &Credentials{}, content)
		assert.True(t, errors.Is(err, ErrCredentialsMissing), a.Name())
	}
	assert.Equal(t, int32(0), atomic.LoadInt32(calls))
}
