package platform

import (
	"context"
	"strconv"
	"time"

	"github.com/maheshrc27/publisher/internal/models"
	"github.com/maheshrc27/publisher/internal/transfer"
)

const (
	tiktokName      = "tiktok"
	tiktokAPIURL    = "https://open.tiktokapis.com"
	tiktokMaxText   = 2200
	tiktokMaxPhotos = 35
)

type tiktok struct {
	c     *client
	media MediaSource
}

// NewTiktok publishes with the TikTok Content Posting API using PULL_FROM_URL sources.
func NewTiktok(opts Options) Adapter {
	return &tiktok{
		c:     newClient(tiktokName, tiktokAPIURL, opts),
		media: opts.Media,
	}
}

func (t *tiktok) Name() string { return tiktokName }

func (t *tiktok) Validate(content *Content) error {
	if len(content.Media) == 0 {
		return missingMedia(tiktokName)
	}
	if n := runeLen(content.Text(true)); n > tiktokMaxText {
		return unsupported(tiktokName, "caption is %d characters, limit is %d", n, tiktokMaxText)
	}
	if len(content.mediaOf(models.MediaTypeGIF)) > 0 {
		return unsupported(tiktokName, "gif media is not supported")
	}
	videos := len(content.mediaOf(models.MediaTypeVideo))
	images := len(content.mediaOf(models.MediaTypeImage))
	switch {
	case videos == 1 && images == 0:
	case videos == 0 && images <= tiktokMaxPhotos:
	default:
		return unsupported(tiktokName, "expected one video or up to %d images, got %d videos and %d images", tiktokMaxPhotos, videos, images)
	}
	return nil
}

func (t *tiktok) Publish(ctx context.Context, creds *Credentials, content *Content) (*PublishOutcome, error) {
	if err := t.Validate(content); err != nil {
		return nil, err
	}
	if !creds.valid() {
		return nil, credentialsMissing(tiktokName)
	}

	privacy, err := t.queryCreatorInfo(ctx, creds.AccessToken)
	if err != nil {
		return nil, err
	}

	var publishID string
	if vids := content.mediaOf(models.MediaTypeVideo); len(vids) == 1 {
		publishID, err = t.postVideo(ctx, creds.AccessToken, privacy, vids[0], content)
	} else {
		publishID, err = t.postPhotos(ctx, creds.AccessToken, privacy, content)
	}
	if err != nil {
		return nil, err
	}

	return &PublishOutcome{
		ExternalID:  publishID,
		PublishedAt: time.Now().UTC(),
	}, nil
}

// queryCreatorInfo must precede every direct post; it also tells which privacy
// level the creator may use.
func (t *tiktok) queryCreatorInfo(ctx context.Context, token string) (string, error) {
	var resp transfer.TiktokCreatorInfoResponse
	if _, err := t.c.postJSON(ctx, "/v2/post/publish/creator_info/query/", token, nil, &resp); err != nil {
		return "", err
	}
	if err := tiktokAPIError(resp.Error); err != nil {
		return "", err
	}
	privacy := "PUBLIC_TO_EVERYONE"
	opts := resp.Data.PrivacyLevelOptions
	if len(opts) > 0 {
		privacy = opts[0]
		for _, o := range opts {
			if o == "PUBLIC_TO_EVERYONE" {
				privacy = o
			}
		}
	}
	return privacy, nil
}

func (t *tiktok) postVideo(ctx context.Context, token, privacy string, video models.Media, content *Content) (string, error) {
	src, err := t.c.publicURL(ctx, t.media, video.URL)
	if err != nil {
		return "", err
	}
	req := transfer.VideoUploadRequest{
		PostInfo: transfer.VideoPostInfo{
			Title:                 content.Text(true),
			PrivacyLevel:          privacy,
			VideoCoverTimestampMs: 1000,
		},
		SourceInfo: transfer.VideoSourceInfo{
			Source:   "PULL_FROM_URL",
			VideoURL: src,
		},
	}
	return t.initPublish(ctx, "/v2/post/publish/video/init/", token, req)
}

func (t *tiktok) postPhotos(ctx context.Context, token, privacy string, content *Content) (string, error) {
	photos := make([]string, 0, len(content.Media))
	for _, m := range content.Media {
		src, err := t.c.publicURL(ctx, t.media, m.URL)
		if err != nil {
			return "", err
		}
		photos = append(photos, src)
	}
	req := transfer.PhotoUploadRequest{
		PostInfo: transfer.PhotoPostInfo{
			Title:        firstLine(content.Body, 90),
			Description:  content.Text(true),
			PrivacyLevel: privacy,
			AutoAddMusic: true,
		},
		SourceInfo: transfer.PhotoSourceInfo{
			Source:      "PULL_FROM_URL",
			PhotoImages: photos,
		},
		PostMode:  "DIRECT_POST",
		MediaType: "PHOTO",
	}
	return t.initPublish(ctx, "/v2/post/publish/content/init/", token, req)
}

func (t *tiktok) initPublish(ctx context.Context, path, token string, req interface{}) (string, error) {
	var resp transfer.TikTokUploadResponse
	if _, err := t.c.postJSON(ctx, path, token, req, &resp); err != nil {
		return "", err
	}
	if err := tiktokAPIError(resp.Error); err != nil {
		return "", err
	}
	if resp.Data.PublishID == "" {
		return "", &Error{Platform: tiktokName, Kind: KindRemoteUnavailable, Message: "no publish id returned", Ambiguous: true}
	}
	return resp.Data.PublishID, nil
}

func tiktokAPIError(e transfer.TiktokError) error {
	if e.Code == "" || e.Code == "ok" {
		return nil
	}
	return newError(tiktokName, KindRemoteRejected, "%s: %s", e.Code, e.Message)
}

// FetchAnalytics takes the publish id stored at publish time and resolves it
// to the public video id before querying stats.
func (t *tiktok) FetchAnalytics(ctx context.Context, creds *Credentials, externalID string) (*AnalyticsSnapshot, error) {
	if !creds.valid() {
		return nil, credentialsMissing(tiktokName)
	}
	videoID, err := t.videoID(ctx, creds.AccessToken, externalID)
	if err != nil {
		return nil, err
	}

	var req transfer.TiktokVideoQueryRequest
	req.Filters.VideoIDs = []string{videoID}

	var resp transfer.TiktokVideoQueryResponse
	if _, err := t.c.postJSON(ctx, "/v2/video/query/?fields=id,like_count,comment_count,share_count,view_count", creds.AccessToken, req, &resp); err != nil {
		return nil, err
	}
	if err := tiktokAPIError(resp.Error); err != nil {
		return nil, err
	}
	for _, v := range resp.Data.Videos {
		if v.ID == videoID {
			return &AnalyticsSnapshot{
				Engagement: models.Engagement{
					Likes:    v.LikeCount,
					Comments: v.CommentCount,
					Shares:   v.ShareCount,
					Views:    v.ViewCount,
				},
				FetchedAt: time.Now().UTC(),
			}, nil
		}
	}
	return nil, newError(tiktokName, KindRemoteRejected, "video %s not found", videoID)
}

func (t *tiktok) videoID(ctx context.Context, token, publishID string) (string, error) {
	var resp transfer.TiktokPublishStatusResponse
	req := transfer.TiktokPublishStatusRequest{PublishID: publishID}
	if _, err := t.c.postJSON(ctx, "/v2/post/publish/status/fetch/", token, req, &resp); err != nil {
		return "", err
	}
	if err := tiktokAPIError(resp.Error); err != nil {
		return "", err
	}
	if resp.Data.Status == "FAILED" {
		return "", newError(tiktokName, KindRemoteRejected, "publish %s failed: %s", publishID, resp.Data.FailReason)
	}
	if len(resp.Data.PostIDs) == 0 {
		return "", newError(tiktokName, KindRemoteUnavailable, "publish %s has no public video yet (%s)", publishID, resp.Data.Status)
	}
	return strconv.FormatInt(resp.Data.PostIDs[0], 10), nil
}
