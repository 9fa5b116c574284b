package platform

import (
	"context"
	"net/url"
	"time"

	"github.com/maheshrc27/publisher/internal/models"
	"github.com/maheshrc27/publisher/internal/transfer"
)

const (
	linkedinName      = "linkedin"
	linkedinAPIURL    = "https://api.linkedin.com"
	linkedinVersion   = "202410"
	linkedinMaxText   = 3000
	linkedinMaxImages = 9
)

type linkedin struct {
	c     *client
	media MediaSource
}

// NewLinkedIn publishes through the versioned Posts API. Credentials carry the
// author URN (person or organization).
func NewLinkedIn(opts Options) Adapter {
	c := newClient(linkedinName, linkedinAPIURL, opts)
	c.headers["LinkedIn-Version"] = linkedinVersion
	c.headers["X-Restli-Protocol-Version"] = "2.0.0"
	return &linkedin{c: c, media: opts.Media}
}

func (l *linkedin) Name() string { return linkedinName }

func (l *linkedin) Validate(content *Content) error {
	if n := runeLen(linkedinCommentary(content)); n > linkedinMaxText {
		return unsupported(linkedinName, "text is %d characters, limit is %d", n, linkedinMaxText)
	}
	if len(content.mediaOf(models.MediaTypeVideo)) > 0 {
		return unsupported(linkedinName, "video posts are not supported")
	}
	if len(content.Media) > linkedinMaxImages {
		return unsupported(linkedinName, "%d images, limit is %d", len(content.Media), linkedinMaxImages)
	}
	return nil
}

func (l *linkedin) Publish(ctx context.Context, creds *Credentials, content *Content) (*PublishOutcome, error) {
	if err := l.Validate(content); err != nil {
		return nil, err
	}
	if !creds.valid() || creds.AccountID == "" {
		return nil, credentialsMissing(linkedinName)
	}

	// Images are registered and uploaded before the post references them.
	images := make([]transfer.LinkedInMediaRef, 0, len(content.Media))
	for _, m := range content.Media {
		urn, err := l.uploadImage(ctx, creds, m)
		if err != nil {
			return nil, err
		}
		images = append(images, transfer.LinkedInMediaRef{ID: urn})
	}

	post := transfer.LinkedInPost{
		Author:         creds.AccountID,
		Commentary:     linkedinCommentary(content),
		Visibility:     "PUBLIC",
		Distribution:   transfer.LinkedInDistribution{FeedDistribution: "MAIN_FEED"},
		LifecycleState: "PUBLISHED",
	}
	switch {
	case len(images) == 1:
		post.Content = &transfer.LinkedInPostContent{Media: &images[0]}
	case len(images) > 1:
		post.Content = &transfer.LinkedInPostContent{MultiImage: &transfer.LinkedInMultiImage{Images: images}}
	case content.Link != "":
		post.Content = &transfer.LinkedInPostContent{Article: &transfer.LinkedInArticle{Source: content.Link}}
	}

	header, err := l.c.postJSON(ctx, "/rest/posts", creds.AccessToken, post, nil)
	if err != nil {
		return nil, err
	}
	urn := header.Get("X-Restli-Id")
	if urn == "" {
		urn = header.Get("X-LinkedIn-Id")
	}
	if urn == "" {
		return nil, &Error{Platform: linkedinName, Kind: KindRemoteUnavailable, Message: "no post urn returned", Ambiguous: true}
	}

	return &PublishOutcome{
		ExternalID:  urn,
		URL:         "https://www.linkedin.com/feed/update/" + urn,
		PublishedAt: time.Now().UTC(),
	}, nil
}

// linkedinCommentary keeps the link in the text only when it cannot become an
// article attachment.
func linkedinCommentary(content *Content) string {
	return content.Text(len(content.Media) > 0)
}

func (l *linkedin) uploadImage(ctx context.Context, creds *Credentials, m models.Media) (string, error) {
	var init transfer.LinkedInInitializeUpload
	init.InitializeUploadRequest.Owner = creds.AccountID

	var target transfer.LinkedInUploadTarget
	if _, err := l.c.postJSON(ctx, "/rest/images?action=initializeUpload", creds.AccessToken, init, &target); err != nil {
		return "", err
	}
	if target.Value.UploadURL == "" || target.Value.Image == "" {
		return "", newError(linkedinName, KindRemoteUnavailable, "image upload was not initialized")
	}

	body, r, mime, err := l.c.openMedia(ctx, l.media, m.URL, m.Type)
	if err != nil {
		return "", err
	}
	defer body.Close()

	if err := l.c.put(ctx, target.Value.UploadURL, creds.AccessToken, mime, r); err != nil {
		return "", err
	}
	return target.Value.Image, nil
}

func (l *linkedin) FetchAnalytics(ctx context.Context, creds *Credentials, externalID string) (*AnalyticsSnapshot, error) {
	if !creds.valid() {
		return nil, credentialsMissing(linkedinName)
	}
	var actions transfer.LinkedInSocialActions
	if err := l.c.getJSON(ctx, "/rest/socialActions/"+url.PathEscape(externalID), creds.AccessToken, &actions); err != nil {
		return nil, err
	}
	return &AnalyticsSnapshot{
		Engagement: models.Engagement{
			Likes:    actions.LikesSummary.TotalLikes,
			Comments: actions.CommentsSummary.AggregatedTotalComments,
		},
		FetchedAt: time.Now().UTC(),
	}, nil
}
