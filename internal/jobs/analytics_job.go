package job

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/maheshrc27/publisher/internal/service"
)

// AnalyticsJob refreshes engagement for recently published posts.
type AnalyticsJob struct {
	analytics service.AnalyticsService
	log       logrus.FieldLogger
	window    time.Duration
	now       func() time.Time
}

func NewAnalyticsJob(analytics service.AnalyticsService, log logrus.FieldLogger, window time.Duration) *AnalyticsJob {
	return &AnalyticsJob{
		analytics: analytics,
		log:       log,
		window:    window,
		now:       time.Now,
	}
}

func (j *AnalyticsJob) WithClock(now func() time.Time) *AnalyticsJob {
	j.now = now
	return j
}

// Run is the cron entry point.
func (j *AnalyticsJob) Run() {
	since := j.now().Add(-j.window)
	n, err := j.analytics.RefreshSince(context.Background(), since)
	if err != nil {
		j.log.WithError(err).Error("analytics refresh failed")
		return
	}
	j.log.WithField("posts", n).Info("analytics refreshed")
}
