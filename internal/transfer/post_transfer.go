package transfer

import (
	"time"

	"github.com/maheshrc27/publisher/internal/models"
)

type MediaInput struct {
	Type string `json:"type" validate:"required,oneof=image video gif"`
	URL  string `json:"url" validate:"required,url|startswith=r2://"`
}

// PostCreation is the body of schedule and draft requests.
type PostCreation struct {
	Content       string       `json:"content" validate:"max=63206"`
	Media         []MediaInput `json:"media" validate:"max=35,dive"`
	Hashtags      []string     `json:"hashtags" validate:"max=30,dive,required,max=100"`
	Mentions      []string     `json:"mentions" validate:"max=50,dive,required,max=100"`
	Link          string       `json:"link" validate:"omitempty,url"`
	ProductID     string       `json:"product_id" validate:"omitempty,max=64"`
	Platforms     []string     `json:"platforms" validate:"unique,dive,required"`
	ScheduledDate *time.Time   `json:"scheduled_date"`
}

// PostUpdate carries the fields to change; nil fields are kept.
type PostUpdate struct {
	Content       *string       `json:"content" validate:"omitempty,max=63206"`
	Media         *[]MediaInput `json:"media" validate:"omitempty,max=35,dive"`
	Hashtags      *[]string     `json:"hashtags" validate:"omitempty,max=30,dive,required,max=100"`
	Mentions      *[]string     `json:"mentions" validate:"omitempty,max=50,dive,required,max=100"`
	Link          *string       `json:"link" validate:"omitempty,url"`
	Platforms     *[]string     `json:"platforms" validate:"omitempty,unique,dive,required"`
	ScheduledDate *time.Time    `json:"scheduled_date"`
}

type Reschedule struct {
	ScheduledDate *time.Time `json:"scheduled_date" validate:"required"`
}

type PostStats struct {
	Counts   map[models.PostStatus]int `json:"counts"`
	Total    int                       `json:"total"`
	Upcoming int                       `json:"upcoming_7d"`
}

type NextScheduled struct {
	NextScheduledTime *time.Time `json:"next_scheduled_time"`
}

func ToMediaList(in []MediaInput) models.MediaList {
	out := make(models.MediaList, 0, len(in))
	for _, m := range in {
		out = append(out, models.Media{Type: models.MediaType(m.Type), URL: m.URL})
	}
	return out
}

// PlatformInfo tells an owner which channels can be targeted.
type PlatformInfo struct {
	Name        string `json:"name"`
	Connected   bool   `json:"connected"`
	AccountName string `json:"account_name,omitempty"`
}
