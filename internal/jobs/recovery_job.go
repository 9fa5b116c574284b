package job

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/maheshrc27/publisher/internal/cache"
	"github.com/maheshrc27/publisher/internal/models"
	"github.com/maheshrc27/publisher/internal/platform"
	"github.com/maheshrc27/publisher/internal/repository"
)

// RecoveryJob fails posts left in publishing by a crash or a lost result write.
type RecoveryJob struct {
	posts repository.PostRepository
	cache *cache.JobCache
	log   logrus.FieldLogger
	grace time.Duration
	now   func() time.Time
}

func NewRecoveryJob(posts repository.PostRepository, jobs *cache.JobCache, log logrus.FieldLogger, grace time.Duration) *RecoveryJob {
	return &RecoveryJob{
		posts: posts,
		cache: jobs,
		log:   log,
		grace: grace,
		now:   time.Now,
	}
}

func (r *RecoveryJob) WithClock(now func() time.Time) *RecoveryJob {
	r.now = now
	return r
}

// Run is the cron entry point.
func (r *RecoveryJob) Run() {
	if _, err := r.Sweep(context.Background()); err != nil {
		r.log.WithError(err).Error("recovery sweep failed")
	}
}

// Sweep moves every post stuck in publishing longer than the grace period to
// failed and returns how many were moved.
func (r *RecoveryJob) Sweep(ctx context.Context) (int, error) {
	now := r.now().UTC()
	stuck, err := r.posts.FindStuckPublishing(ctx, now.Add(-r.grace))
	if err != nil {
		return 0, err
	}

	moved := 0
	for _, p := range stuck {
		note := fmt.Sprintf("reconciled at %s: publishing did not finish within %s; remote posts may exist", now.Format(time.RFC3339), r.grace)
		results := markUnfinished(p, now)
		analytics := models.ComputeAnalytics(results)

		upd := &repository.StatusUpdate{Note: &note, PostResults: results, Analytics: &analytics}
		ok, err := r.posts.UpdateStatus(ctx, p.ID, models.PostStatusPublishing, models.PostStatusFailed, upd)
		if err != nil {
			r.log.WithError(err).WithField("post_id", p.ID).Error("reconcile post failed")
			continue
		}
		if !ok {
			continue
		}
		r.cache.Remove(p.ID)
		moved++
		r.log.WithFields(logrus.Fields{"post_id": p.ID, "started_at": p.PublishingStartedAt}).Warn("stuck post marked failed")
	}
	return moved, nil
}

// markUnfinished records an ambiguous failure for every target platform that
// has no result from the current attempt.
func markUnfinished(p *models.Post, now time.Time) models.PostResults {
	have := make(map[string]bool)
	for _, res := range p.PostResults {
		if res.Attempt == p.Attempt {
			have[res.Platform] = true
		}
	}
	var missing models.PostResults
	for _, name := range p.Platforms {
		if have[name] {
			continue
		}
		failedAt := now
		missing = append(missing, models.PostResult{
			Platform:  name,
			Status:    models.ResultStatusFailed,
			Attempt:   p.Attempt,
			Error:     "publish outcome unknown",
			ErrorKind: string(platform.KindRemoteUnavailable),
			Ambiguous: true,
			FailedAt:  &failedAt,
		})
	}
	return p.PostResults.Only(p.Platforms).Merge(missing)
}
