package platform

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/maheshrc27/publisher/internal/models"
	"github.com/maheshrc27/publisher/internal/transfer"
)

const (
	facebookName      = "facebook"
	facebookGraphURL  = "https://graph.facebook.com/v21.0"
	facebookMaxText   = 63206
	facebookMaxImages = 10
)

type facebook struct {
	c     *client
	media MediaSource
}

// NewFacebook publishes to a Facebook page. Credentials carry the page id and
// a page access token.
func NewFacebook(opts Options) Adapter {
	return &facebook{
		c:     newClient(facebookName, facebookGraphURL, opts),
		media: opts.Media,
	}
}

func (f *facebook) Name() string { return facebookName }

func (f *facebook) Validate(content *Content) error {
	if n := runeLen(content.Text(false)); n > facebookMaxText {
		return unsupported(facebookName, "text is %d characters, limit is %d", n, facebookMaxText)
	}
	if len(content.mediaOf(models.MediaTypeVideo)) > 0 {
		return unsupported(facebookName, "video posts are not supported")
	}
	if len(content.Media) > facebookMaxImages {
		return unsupported(facebookName, "%d images, limit is %d", len(content.Media), facebookMaxImages)
	}
	return nil
}

func (f *facebook) Publish(ctx context.Context, creds *Credentials, content *Content) (*PublishOutcome, error) {
	if err := f.Validate(content); err != nil {
		return nil, err
	}
	if !creds.valid() || creds.AccountID == "" {
		return nil, credentialsMissing(facebookName)
	}

	// Photos are uploaded unpublished and attached to the feed post.
	var photoIDs []string
	for _, m := range content.Media {
		src, err := f.c.publicURL(ctx, f.media, m.URL)
		if err != nil {
			return nil, err
		}
		form := url.Values{}
		form.Set("url", src)
		form.Set("published", "false")
		form.Set("access_token", creds.AccessToken)

		var photo transfer.FacebookID
		if err := f.c.postForm(ctx, fmt.Sprintf("/%s/photos", creds.AccountID), "", form, &photo); err != nil {
			return nil, err
		}
		photoIDs = append(photoIDs, photo.ID)
	}

	form := url.Values{}
	form.Set("message", content.Text(false))
	form.Set("access_token", creds.AccessToken)
	if content.Link != "" {
		form.Set("link", content.Link)
	}
	for i, id := range photoIDs {
		form.Set(fmt.Sprintf("attached_media[%d]", i), fmt.Sprintf(`{"media_fbid":"%s"}`, id))
	}

	var post transfer.FacebookID
	if err := f.c.postForm(ctx, fmt.Sprintf("/%s/feed", creds.AccountID), "", form, &post); err != nil {
		return nil, err
	}
	if post.ID == "" {
		return nil, &Error{Platform: facebookName, Kind: KindRemoteUnavailable, Message: "no post id returned", Ambiguous: true}
	}

	return &PublishOutcome{
		ExternalID:  post.ID,
		URL:         "https://www.facebook.com/" + post.ID,
		PublishedAt: time.Now().UTC(),
	}, nil
}

func (f *facebook) FetchAnalytics(ctx context.Context, creds *Credentials, externalID string) (*AnalyticsSnapshot, error) {
	if !creds.valid() {
		return nil, credentialsMissing(facebookName)
	}
	q := url.Values{}
	q.Set("fields", "likes.summary(true),comments.summary(true),shares")
	q.Set("access_token", creds.AccessToken)

	var stats transfer.FacebookPostStats
	if err := f.c.getJSON(ctx, "/"+externalID+"?"+q.Encode(), "", &stats); err != nil {
		return nil, err
	}
	return &AnalyticsSnapshot{
		Engagement: models.Engagement{
			Likes:    stats.LikeCount(),
			Comments: stats.CommentCount(),
			Shares:   stats.Shares.Count,
		},
		FetchedAt: time.Now().UTC(),
	}, nil
}
