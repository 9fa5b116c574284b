package platform

import (
	"context"
	"path"
	"time"

	"github.com/maheshrc27/publisher/internal/models"
	"github.com/maheshrc27/publisher/internal/transfer"
)

const (
	twitterName     = "twitter"
	twitterAPIURL   = "https://api.x.com"
	twitterMaxText  = 280
	twitterMaxMedia = 4
)

type twitter struct {
	c     *client
	media MediaSource
}

// NewTwitter publishes tweets with an OAuth2 user token.
func NewTwitter(opts Options) Adapter {
	return &twitter{
		c:     newClient(twitterName, twitterAPIURL, opts),
		media: opts.Media,
	}
}

func (t *twitter) Name() string { return twitterName }

func (t *twitter) Publish(ctx context.Context, creds *Credentials, content *Content) (*PublishOutcome, error) {
	text := content.Text(true)
	if n := runeLen(text); n > twitterMaxText {
		return nil, unsupported(twitterName, "text is %d characters, limit is %d", n, twitterMaxText)
	}
	if len(content.Media) > twitterMaxMedia {
		return nil, unsupported(twitterName, "%d media items, limit is %d", len(content.Media), twitterMaxMedia)
	}
	if !creds.valid() {
		return nil, credentialsMissing(twitterName)
	}

	// Media must be uploaded before the tweet references it.
	var mediaIDs []string
	for _, m := range content.Media {
		id, err := t.upload(ctx, creds.AccessToken, m)
		if err != nil {
			return nil, err
		}
		mediaIDs = append(mediaIDs, id)
	}

	req := transfer.TweetRequest{Text: text}
	if len(mediaIDs) > 0 {
		req.Media = &transfer.TweetMedia{MediaIDs: mediaIDs}
	}
	var resp transfer.TweetResponse
	if _, err := t.c.postJSON(ctx, "/2/tweets", creds.AccessToken, req, &resp); err != nil {
		return nil, err
	}
	if resp.Data.ID == "" {
		return nil, &Error{Platform: twitterName, Kind: KindRemoteUnavailable, Message: "no tweet id returned", Ambiguous: true}
	}

	return &PublishOutcome{
		ExternalID:  resp.Data.ID,
		URL:         "https://x.com/i/web/status/" + resp.Data.ID,
		PublishedAt: time.Now().UTC(),
	}, nil
}

func (t *twitter) upload(ctx context.Context, token string, m models.Media) (string, error) {
	body, r, mime, err := t.c.openMedia(ctx, t.media, m.URL, m.Type)
	if err != nil {
		return "", err
	}
	defer body.Close()

	category := "tweet_image"
	switch m.Type {
	case models.MediaTypeGIF:
		category = "tweet_gif"
	case models.MediaTypeVideo:
		category = "tweet_video"
	}

	var up transfer.TwitterMediaUpload
	err = t.c.postMultipart(ctx, "/2/media/upload", token, "media", path.Base(m.URL), mime, r,
		map[string]string{"media_category": category}, &up)
	if err != nil {
		return "", err
	}
	if up.MediaIDString == "" {
		return "", newError(twitterName, KindRemoteUnavailable, "media upload returned no id")
	}
	return up.MediaIDString, nil
}

func (t *twitter) FetchAnalytics(ctx context.Context, creds *Credentials, externalID string) (*AnalyticsSnapshot, error) {
	if !creds.valid() {
		return nil, credentialsMissing(twitterName)
	}
	var resp transfer.TweetMetricsResponse
	if err := t.c.getJSON(ctx, "/2/tweets/"+externalID+"?tweet.fields=public_metrics", creds.AccessToken, &resp); err != nil {
		return nil, err
	}
	m := resp.Data.PublicMetrics
	return &AnalyticsSnapshot{
		Engagement: models.Engagement{
			Likes:    m.LikeCount,
			Comments: m.ReplyCount,
			Shares:   m.RetweetCount + m.QuoteCount,
			Views:    m.ImpressionCount,
		},
		FetchedAt: time.Now().UTC(),
	}, nil
}
