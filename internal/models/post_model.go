package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

type PostStatus string

const (
	PostStatusDraft      PostStatus = "draft"
	PostStatusScheduled  PostStatus = "scheduled"
	PostStatusPublishing PostStatus = "publishing"
	PostStatusPublished  PostStatus = "published"
	PostStatusFailed     PostStatus = "failed"
	PostStatusCancelled  PostStatus = "cancelled"
)

// AllPostStatuses lists every lifecycle state in display order.
var AllPostStatuses = []PostStatus{
	PostStatusDraft,
	PostStatusScheduled,
	PostStatusPublishing,
	PostStatusPublished,
	PostStatusFailed,
	PostStatusCancelled,
}

func (s PostStatus) Valid() bool {
	for _, st := range AllPostStatuses {
		if st == s {
			return true
		}
	}
	return false
}

// Terminal reports whether the post has left the publish pipeline for good.
func (s PostStatus) Terminal() bool {
	return s == PostStatusPublished || s == PostStatusFailed || s == PostStatusCancelled
}

type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
	MediaTypeGIF   MediaType = "gif"
)

type Media struct {
	Type MediaType `json:"type" bson:"type" validate:"required,oneof=image video gif"`
	URL  string    `json:"url" bson:"url" validate:"required,url|startswith=r2://"`
}

type Post struct {
	ID                  string      `db:"id" json:"id" bson:"_id"`
	OwnerID             string      `db:"owner_id" json:"owner_id" bson:"owner_id"`
	Content             string      `db:"content" json:"content" bson:"content"`
	Media               MediaList   `db:"media" json:"media" bson:"media"`
	Hashtags            []string    `db:"hashtags" json:"hashtags" bson:"hashtags"`
	Mentions            []string    `db:"mentions" json:"mentions" bson:"mentions"`
	Link                string      `db:"link" json:"link,omitempty" bson:"link,omitempty"`
	ProductID           string      `db:"product_id" json:"product_id,omitempty" bson:"product_id,omitempty"`
	Platforms           []string    `db:"platforms" json:"platforms" bson:"platforms"`
	Status              PostStatus  `db:"status" json:"status" bson:"status"`
	ScheduledDate       *time.Time  `db:"scheduled_date" json:"scheduled_date,omitempty" bson:"scheduled_date,omitempty"`
	PublishedDate       *time.Time  `db:"published_date" json:"published_date,omitempty" bson:"published_date,omitempty"`
	PublishingStartedAt *time.Time  `db:"publishing_started_at" json:"publishing_started_at,omitempty" bson:"publishing_started_at,omitempty"`
	PostResults         PostResults `db:"post_results" json:"post_results" bson:"post_results"`
	Analytics           Analytics   `db:"analytics" json:"analytics" bson:"analytics"`
	Attempt             int         `db:"attempt" json:"attempt" bson:"attempt"`
	Note                string      `db:"note" json:"note,omitempty" bson:"note,omitempty"`
	CreatedAt           time.Time   `db:"created_at" json:"created_at" bson:"created_at"`
	UpdatedAt           time.Time   `db:"updated_at" json:"updated_at" bson:"updated_at"`
}

// Clone returns a deep copy so callers can mutate it without touching shared state.
func (p *Post) Clone() *Post {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Media = append(MediaList(nil), p.Media...)
	cp.Hashtags = append([]string(nil), p.Hashtags...)
	cp.Mentions = append([]string(nil), p.Mentions...)
	cp.Platforms = append([]string(nil), p.Platforms...)
	cp.PostResults = append(PostResults(nil), p.PostResults...)
	cp.ScheduledDate = copyTime(p.ScheduledDate)
	cp.PublishedDate = copyTime(p.PublishedDate)
	cp.PublishingStartedAt = copyTime(p.PublishingStartedAt)
	for i := range cp.PostResults {
		cp.PostResults[i].PublishedAt = copyTime(p.PostResults[i].PublishedAt)
		cp.PostResults[i].FailedAt = copyTime(p.PostResults[i].FailedAt)
	}
	return &cp
}

func (p *Post) HasPlatform(name string) bool {
	for _, pl := range p.Platforms {
		if pl == name {
			return true
		}
	}
	return false
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

type MediaList []Media

func (m MediaList) Value() (driver.Value, error) {
	if m == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(m)
}

func (m *MediaList) Scan(src interface{}) error {
	return scanJSON(src, m)
}

func scanJSON(src interface{}, dst interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return errors.New("unsupported json column type")
	}
}
