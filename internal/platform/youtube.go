package platform

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/maheshrc27/publisher/internal/models"
)

const (
	youtubeName       = "youtube"
	youtubeMaxTitle   = 100
	youtubeMaxText    = 5000
	youtubeCategoryID = "22"
)

type youtubeAdapter struct {
	c     *client
	media MediaSource
}

// NewYoutube uploads a single video per post through the YouTube Data API.
func NewYoutube(opts Options) Adapter {
	return &youtubeAdapter{
		c:     newClient(youtubeName, "", opts),
		media: opts.Media,
	}
}

func (y *youtubeAdapter) Name() string { return youtubeName }

func (y *youtubeAdapter) Validate(content *Content) error {
	if len(content.Media) == 0 {
		return missingMedia(youtubeName)
	}
	if len(content.Media) != 1 || content.Media[0].Type != models.MediaTypeVideo {
		return unsupported(youtubeName, "exactly one video is required")
	}
	if n := runeLen(content.Text(true)); n > youtubeMaxText {
		return unsupported(youtubeName, "description is %d characters, limit is %d", n, youtubeMaxText)
	}
	return nil
}

func (y *youtubeAdapter) service(ctx context.Context, creds *Credentials) (*youtube.Service, error) {
	base := context.WithValue(ctx, oauth2.HTTPClient, y.c.http)
	httpClient := oauth2.NewClient(base, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: creds.AccessToken}))

	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if y.c.baseURL != "" {
		opts = append(opts, option.WithEndpoint(y.c.baseURL+"/"))
	}
	svc, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, newError(youtubeName, KindRemoteUnavailable, "create client: %v", err)
	}
	return svc, nil
}

func (y *youtubeAdapter) Publish(ctx context.Context, creds *Credentials, content *Content) (*PublishOutcome, error) {
	if err := y.Validate(content); err != nil {
		return nil, err
	}
	if !creds.valid() {
		return nil, credentialsMissing(youtubeName)
	}

	svc, err := y.service(ctx, creds)
	if err != nil {
		return nil, err
	}

	body, r, mime, err := y.c.openMedia(ctx, y.media, content.Media[0].URL, models.MediaTypeVideo)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	title := firstLine(content.Body, youtubeMaxTitle)
	if title == "" {
		title = firstLine(content.Text(false), youtubeMaxTitle)
	}
	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       title,
			Description: content.Text(true),
			Tags:        content.Hashtags,
			CategoryId:  youtubeCategoryID,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus: "public",
		},
	}

	if err := y.c.wait(ctx); err != nil {
		return nil, err
	}
	resp, err := svc.Videos.Insert([]string{"snippet", "status"}, video).
		Media(r, googleapi.ContentType(mime)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, youtubeError(err)
	}
	if resp.Id == "" {
		return nil, &Error{Platform: youtubeName, Kind: KindRemoteUnavailable, Message: "no video id returned", Ambiguous: true}
	}

	return &PublishOutcome{
		ExternalID:  resp.Id,
		URL:         "https://youtu.be/" + resp.Id,
		PublishedAt: time.Now().UTC(),
	}, nil
}

func (y *youtubeAdapter) FetchAnalytics(ctx context.Context, creds *Credentials, externalID string) (*AnalyticsSnapshot, error) {
	if !creds.valid() {
		return nil, credentialsMissing(youtubeName)
	}
	svc, err := y.service(ctx, creds)
	if err != nil {
		return nil, err
	}
	if err := y.c.wait(ctx); err != nil {
		return nil, err
	}
	resp, err := svc.Videos.List([]string{"statistics"}).Id(externalID).Context(ctx).Do()
	if err != nil {
		return nil, youtubeError(err)
	}
	if len(resp.Items) == 0 || resp.Items[0].Statistics == nil {
		return nil, newError(youtubeName, KindRemoteRejected, "video %s not found", externalID)
	}
	st := resp.Items[0].Statistics
	return &AnalyticsSnapshot{
		Engagement: models.Engagement{
			Likes:    int64(st.LikeCount),
			Comments: int64(st.CommentCount),
			Views:    int64(st.ViewCount),
		},
		FetchedAt: time.Now().UTC(),
	}, nil
}

func youtubeError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		kind := KindRemoteRejected
		if gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500 {
			kind = KindRemoteUnavailable
		}
		return &Error{Platform: youtubeName, Kind: kind, Message: gerr.Message, Err: err}
	}
	return Classify(youtubeName, err)
}
