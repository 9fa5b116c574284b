// Package platform holds one adapter per distribution channel and the
// registry that resolves them by name.
package platform

import (
	"context"
	"strings"
	"time"

	"github.com/maheshrc27/publisher/internal/models"
)

// Credentials are supplied per owner and platform by the account subsystem.
type Credentials struct {
	AccountID   string
	AccessToken string
}

func (c *Credentials) valid() bool {
	return c != nil && c.AccessToken != ""
}

// CredentialsProvider resolves the credentials an owner connected for a platform.
// It returns nil, nil when nothing is configured.
type CredentialsProvider interface {
	Credentials(ctx context.Context, ownerID, platform string) (*Credentials, error)
}

// Content is what gets published, independent of any channel.
type Content struct {
	Body     string
	Media    []models.Media
	Hashtags []string
	Mentions []string
	Link     string
}

func ContentFromPost(p *models.Post) *Content {
	return &Content{
		Body:     p.Content,
		Media:    append([]models.Media(nil), p.Media...),
		Hashtags: append([]string(nil), p.Hashtags...),
		Mentions: append([]string(nil), p.Mentions...),
		Link:     p.Link,
	}
}

// Text renders body, hashtags and mentions. The link is appended only when
// withLink is set, for channels without a native link field.
func (c *Content) Text(withLink bool) string {
	parts := []string{strings.TrimSpace(c.Body)}
	var tags []string
	for _, h := range c.Hashtags {
		tags = append(tags, "#"+strings.TrimPrefix(h, "#"))
	}
	for _, m := range c.Mentions {
		tags = append(tags, "@"+strings.TrimPrefix(m, "@"))
	}
	if len(tags) > 0 {
		parts = append(parts, strings.Join(tags, " "))
	}
	if withLink && c.Link != "" {
		parts = append(parts, c.Link)
	}
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n\n")
}

func (c *Content) mediaOf(t models.MediaType) []models.Media {
	var out []models.Media
	for _, m := range c.Media {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

type PublishOutcome struct {
	ExternalID  string
	URL         string
	PublishedAt time.Time
	Engagement  models.Engagement
}

type AnalyticsSnapshot struct {
	Engagement models.Engagement
	FetchedAt  time.Time
}

// Adapter publishes to one channel. Limits are enforced inside each adapter.
type Adapter interface {
	Name() string
	Publish(ctx context.Context, creds *Credentials, content *Content) (*PublishOutcome, error)
	FetchAnalytics(ctx context.Context, creds *Credentials, externalID string) (*AnalyticsSnapshot, error)
}

// ContentValidator is implemented by adapters that check content locally,
// before credentials are looked up or any request is made.
type ContentValidator interface {
	Validate(content *Content) error
}

func runeLen(s string) int {
	return len([]rune(s))
}

// firstLine returns the first non-empty line of s, cut to max runes.
func firstLine(s string, max int) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r := []rune(line)
		if len(r) > max {
			r = r[:max]
		}
		return string(r)
	}
	return ""
}
