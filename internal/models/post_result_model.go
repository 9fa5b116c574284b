package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

type ResultStatus string

const (
	ResultStatusPending ResultStatus = "pending"
	ResultStatusSuccess ResultStatus = "success"
	ResultStatusFailed  ResultStatus = "failed"
)

type Engagement struct {
	Likes    int64 `json:"likes" bson:"likes"`
	Comments int64 `json:"comments" bson:"comments"`
	Shares   int64 `json:"shares" bson:"shares"`
	Views    int64 `json:"views" bson:"views"`
	Clicks   int64 `json:"clicks" bson:"clicks"`
}

// PostResult is the outcome of one publish attempt on one platform.
type PostResult struct {
	Platform    string       `json:"platform" bson:"platform"`
	Status      ResultStatus `json:"status" bson:"status"`
	AttemptID   string       `json:"attempt_id" bson:"attempt_id"`
	Attempt     int          `json:"attempt" bson:"attempt"`
	ExternalID  string       `json:"external_id,omitempty" bson:"external_id,omitempty"`
	URL         string       `json:"url,omitempty" bson:"url,omitempty"`
	PublishedAt *time.Time   `json:"published_at,omitempty" bson:"published_at,omitempty"`
	Engagement  Engagement   `json:"engagement" bson:"engagement"`
	Error       string       `json:"error,omitempty" bson:"error,omitempty"`
	ErrorKind   string       `json:"error_kind,omitempty" bson:"error_kind,omitempty"`
	Ambiguous   bool         `json:"ambiguous,omitempty" bson:"ambiguous,omitempty"`
	FailedAt    *time.Time   `json:"failed_at,omitempty" bson:"failed_at,omitempty"`
}

type PostResults []PostResult

func (r PostResults) Value() (driver.Value, error) {
	if r == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(r)
}

func (r *PostResults) Scan(src interface{}) error {
	return scanJSON(src, r)
}

// AnySuccess reports whether at least one platform accepted the post.
func (r PostResults) AnySuccess() bool {
	for _, res := range r {
		if res.Status == ResultStatusSuccess {
			return true
		}
	}
	return false
}

// Merge applies the replace policy: an entry for a platform in next supersedes
// the existing entry for that platform. Untouched platforms keep their entry.
func (r PostResults) Merge(next PostResults) PostResults {
	merged := make(PostResults, 0, len(r)+len(next))
	replaced := make(map[string]bool, len(next))
	for _, res := range next {
		replaced[res.Platform] = true
	}
	for _, res := range r {
		if !replaced[res.Platform] {
			merged = append(merged, res)
		}
	}
	return append(merged, next...)
}

// Only keeps the entries whose platform is in platforms.
func (r PostResults) Only(platforms []string) PostResults {
	keep := make(map[string]bool, len(platforms))
	for _, p := range platforms {
		keep[p] = true
	}
	out := make(PostResults, 0, len(r))
	for _, res := range r {
		if keep[res.Platform] {
			out = append(out, res)
		}
	}
	return out
}

// Analytics is derived from PostResults and never written independently.
type Analytics struct {
	Reach            int64   `json:"reach" bson:"reach"`
	Engagement       int64   `json:"engagement" bson:"engagement"`
	Clicks           int64   `json:"clicks" bson:"clicks"`
	EngagementRate   float64 `json:"engagement_rate" bson:"engagement_rate"`
	ClickThroughRate float64 `json:"click_through_rate" bson:"click_through_rate"`
	SuccessCount     int     `json:"success_count" bson:"success_count"`
	FailedCount      int     `json:"failed_count" bson:"failed_count"`
}

func (a Analytics) Value() (driver.Value, error) {
	return json.Marshal(a)
}

func (a *Analytics) Scan(src interface{}) error {
	return scanJSON(src, a)
}

func ComputeAnalytics(results PostResults) Analytics {
	var a Analytics
	for _, res := range results {
		switch res.Status {
		case ResultStatusSuccess:
			a.SuccessCount++
			a.Reach += res.Engagement.Views
			a.Engagement += res.Engagement.Likes + res.Engagement.Comments + res.Engagement.Shares
			a.Clicks += res.Engagement.Clicks
		case ResultStatusFailed:
			a.FailedCount++
		}
	}
	if a.Reach > 0 {
		a.EngagementRate = float64(a.Engagement) / float64(a.Reach)
		a.ClickThroughRate = float64(a.Clicks) / float64(a.Reach)
	}
	return a
}
