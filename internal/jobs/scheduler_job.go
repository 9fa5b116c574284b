package job

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron"
	"github.com/sirupsen/logrus"

	"github.com/maheshrc27/publisher/internal/cache"
	"github.com/maheshrc27/publisher/internal/queue"
	"github.com/maheshrc27/publisher/internal/repository"
)

// Status is the scheduler snapshot exposed to callers.
type Status struct {
	Paused    bool      `json:"paused"`
	CacheSize int       `json:"cache_size"`
	Timestamp time.Time `json:"timestamp"`
}

// Scheduler finds due posts on every tick and hands them to the dispatcher.
// Pause gates dispatching; jobs already handed off still run.
type Scheduler struct {
	posts      repository.PostRepository
	cache      *cache.JobCache
	dispatcher queue.Dispatcher
	log        logrus.FieldLogger
	interval   time.Duration
	batchSize  int
	now        func() time.Time

	paused  atomic.Bool
	running sync.Mutex
}

func NewScheduler(
	posts repository.PostRepository,
	jobs *cache.JobCache,
	dispatcher queue.Dispatcher,
	log logrus.FieldLogger,
	interval time.Duration,
	batchSize int) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Scheduler{
		posts:      posts,
		cache:      jobs,
		dispatcher: dispatcher,
		log:        log,
		interval:   interval,
		batchSize:  batchSize,
		now:        time.Now,
	}
}

func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// Start reloads the job cache so status queries are correct before the first
// tick, then registers the tick on c.
func (s *Scheduler) Start(ctx context.Context, c *cron.Cron) error {
	if err := s.cache.Reload(ctx); err != nil {
		return fmt.Errorf("initial job cache load: %w", err)
	}
	if err := c.AddFunc(every(s.interval), func() { s.Tick(context.Background()) }); err != nil {
		return fmt.Errorf("register scheduler tick: %w", err)
	}
	s.log.WithField("interval", s.interval.String()).Info("scheduler started")
	return nil
}

// Tick dispatches every due post and returns how many were handed off. It
// never blocks on job execution. Overlapping ticks are skipped.
func (s *Scheduler) Tick(ctx context.Context) int {
	if s.paused.Load() {
		s.log.Debug("scheduler paused, tick skipped")
		return 0
	}
	if !s.running.TryLock() {
		s.log.Warn("previous tick still running, tick skipped")
		return 0
	}
	defer s.running.Unlock()

	now := s.now()
	due, err := s.posts.FindDueScheduled(ctx, now, s.batchSize)
	if err != nil {
		s.log.WithError(err).Error("find due posts failed")
		return 0
	}

	dispatched := 0
	for _, p := range due {
		if p.ScheduledDate == nil || p.ScheduledDate.After(now) {
			continue
		}
		if err := s.dispatcher.Dispatch(ctx, p.ID); err != nil {
			s.log.WithError(err).WithField("post_id", p.ID).Error("dispatch failed")
			continue
		}
		dispatched++
	}
	if dispatched > 0 {
		s.log.WithField("count", dispatched).Info("dispatched due posts")
	}
	return dispatched
}

func (s *Scheduler) Pause() {
	if !s.paused.Swap(true) {
		s.log.Info("scheduler paused")
	}
}

func (s *Scheduler) Resume() {
	if s.paused.Swap(false) {
		s.log.Info("scheduler resumed")
	}
}

func (s *Scheduler) Status() Status {
	return Status{
		Paused:    s.paused.Load(),
		CacheSize: s.cache.Size(),
		Timestamp: s.now().UTC(),
	}
}

func every(d time.Duration) string {
	return "@every " + d.String()
}
