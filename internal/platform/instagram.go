package platform

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/maheshrc27/publisher/internal/models"
	"github.com/maheshrc27/publisher/internal/transfer"
)

const (
	instagramName     = "instagram"
	instagramGraphURL = "https://graph.instagram.com/v21.0"
	instagramMaxText  = 2200
	instagramMaxItems = 10
	instagramMaxPolls = 30
)

type instagram struct {
	c     *client
	media MediaSource
	poll  time.Duration
}

// NewInstagram publishes through the Instagram Graph API content publishing flow:
// create a container, wait for it when it holds video, then media_publish.
func NewInstagram(opts Options) Adapter {
	poll := opts.PollInterval
	if poll <= 0 {
		poll = 2 * time.Second
	}
	return &instagram{
		c:     newClient(instagramName, instagramGraphURL, opts),
		media: opts.Media,
		poll:  poll,
	}
}

func (ig *instagram) Name() string { return instagramName }

func (ig *instagram) Validate(content *Content) error {
	if len(content.Media) == 0 {
		return missingMedia(instagramName)
	}
	if n := runeLen(content.Text(true)); n > instagramMaxText {
		return unsupported(instagramName, "caption is %d characters, limit is %d", n, instagramMaxText)
	}
	if len(content.Media) > instagramMaxItems {
		return unsupported(instagramName, "%d media items, limit is %d", len(content.Media), instagramMaxItems)
	}
	if len(content.mediaOf(models.MediaTypeGIF)) > 0 {
		return unsupported(instagramName, "gif media is not supported")
	}
	return nil
}

func (ig *instagram) Publish(ctx context.Context, creds *Credentials, content *Content) (*PublishOutcome, error) {
	if err := ig.Validate(content); err != nil {
		return nil, err
	}
	if !creds.valid() || creds.AccountID == "" {
		return nil, credentialsMissing(instagramName)
	}

	caption := content.Text(true)
	var (
		containerID string
		err         error
	)
	if len(content.Media) == 1 {
		containerID, err = ig.createContainer(ctx, creds, content.Media[0], caption, false)
	} else {
		containerID, err = ig.createCarousel(ctx, creds, content.Media, caption)
	}
	if err != nil {
		return nil, err
	}

	var published transfer.InstagramID
	_, err = ig.c.postJSON(ctx, ig.path(creds, "/%s/media_publish"), creds.AccessToken,
		transfer.InstagramPublishRequest{CreationID: containerID}, &published)
	if err != nil {
		return nil, err
	}
	if published.ID == "" {
		return nil, &Error{Platform: instagramName, Kind: KindRemoteUnavailable, Message: "no media id returned", Ambiguous: true}
	}

	outcome := &PublishOutcome{
		ExternalID:  published.ID,
		PublishedAt: time.Now().UTC(),
	}
	// The post exists at this point; a failed permalink lookup only leaves the URL empty.
	var info transfer.InstagramMedia
	if err := ig.c.getJSON(ctx, "/"+published.ID+"?fields=permalink", creds.AccessToken, &info); err == nil {
		outcome.URL = info.Permalink
	}
	return outcome, nil
}

func (ig *instagram) path(creds *Credentials, format string) string {
	return fmt.Sprintf(format, creds.AccountID)
}

func (ig *instagram) createContainer(ctx context.Context, creds *Credentials, m models.Media, caption string, carouselItem bool) (string, error) {
	src, err := ig.c.publicURL(ctx, ig.media, m.URL)
	if err != nil {
		return "", err
	}

	req := transfer.InstagramContainerRequest{IsCarouselItem: carouselItem}
	if !carouselItem {
		req.Caption = caption
	}
	if m.Type == models.MediaTypeVideo {
		req.VideoURL = src
		req.MediaType = "REELS"
		if carouselItem {
			req.MediaType = "VIDEO"
		}
	} else {
		req.ImageURL = src
	}

	var container transfer.InstagramID
	if _, err := ig.c.postJSON(ctx, ig.path(creds, "/%s/media"), creds.AccessToken, req, &container); err != nil {
		return "", err
	}
	if container.ID == "" {
		return "", newError(instagramName, KindRemoteUnavailable, "no container id returned")
	}
	if m.Type == models.MediaTypeVideo {
		if err := ig.waitReady(ctx, creds, container.ID); err != nil {
			return "", err
		}
	}
	return container.ID, nil
}

func (ig *instagram) createCarousel(ctx context.Context, creds *Credentials, items []models.Media, caption string) (string, error) {
	children := make([]string, 0, len(items))
	for _, m := range items {
		id, err := ig.createContainer(ctx, creds, m, "", true)
		if err != nil {
			return "", err
		}
		children = append(children, id)
	}

	req := transfer.InstagramContainerRequest{
		MediaType: "CAROUSEL",
		Caption:   caption,
		Children:  strings.Join(children, ","),
	}
	var container transfer.InstagramID
	if _, err := ig.c.postJSON(ctx, ig.path(creds, "/%s/media"), creds.AccessToken, req, &container); err != nil {
		return "", err
	}
	if container.ID == "" {
		return "", newError(instagramName, KindRemoteUnavailable, "no carousel container id returned")
	}
	return container.ID, nil
}

// waitReady polls a video container until Instagram has finished processing it.
func (ig *instagram) waitReady(ctx context.Context, creds *Credentials, containerID string) error {
	ticker := time.NewTicker(ig.poll)
	defer ticker.Stop()

	for i := 0; i < instagramMaxPolls; i++ {
		var st transfer.InstagramContainerStatus
		if err := ig.c.getJSON(ctx, "/"+containerID+"?fields=status_code,status", creds.AccessToken, &st); err != nil {
			return err
		}
		switch st.StatusCode {
		case "FINISHED", "PUBLISHED":
			return nil
		case "ERROR", "EXPIRED":
			return newError(instagramName, KindRemoteRejected, "container %s: %s", st.StatusCode, st.Status)
		}
		select {
		case <-ctx.Done():
			return Classify(instagramName, ctx.Err())
		case <-ticker.C:
		}
	}
	return newError(instagramName, KindRemoteUnavailable, "container %s not ready", containerID)
}

func (ig *instagram) FetchAnalytics(ctx context.Context, creds *Credentials, externalID string) (*AnalyticsSnapshot, error) {
	if !creds.valid() {
		return nil, credentialsMissing(instagramName)
	}
	var info transfer.InstagramMedia
	if err := ig.c.getJSON(ctx, "/"+externalID+"?fields=like_count,comments_count", creds.AccessToken, &info); err != nil {
		return nil, err
	}
	return &AnalyticsSnapshot{
		Engagement: models.Engagement{
			Likes:    info.LikeCount,
			Comments: info.CommentsCount,
		},
		FetchedAt: time.Now().UTC(),
	}, nil
}
