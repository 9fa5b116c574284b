// Package cache keeps a read-side index of scheduled posts. The post store
// stays authoritative; the cache only serves status and next-run queries.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/maheshrc27/publisher/internal/models"
	"github.com/maheshrc27/publisher/internal/repository"
)

type JobCache struct {
	mu    sync.RWMutex
	jobs  map[string]*models.Post
	store repository.PostRepository
	log   logrus.FieldLogger
}

func NewJobCache(store repository.PostRepository, log logrus.FieldLogger) *JobCache {
	return &JobCache{
		jobs:  make(map[string]*models.Post),
		store: store,
		log:   log,
	}
}

// Reload replaces the cache content with every scheduled post in the store.
func (c *JobCache) Reload(ctx context.Context) error {
	posts, err := c.store.FindScheduled(ctx)
	if err != nil {
		c.log.WithError(err).Error("job cache reload failed")
		return err
	}

	jobs := make(map[string]*models.Post, len(posts))
	for _, p := range posts {
		jobs[p.ID] = p.Clone()
	}

	c.mu.Lock()
	c.jobs = jobs
	c.mu.Unlock()

	c.log.WithField("size", len(jobs)).Info("job cache reloaded")
	return nil
}

// Put stores a snapshot of p when it is scheduled and drops it otherwise.
func (c *JobCache) Put(p *models.Post) {
	if p == nil {
		return
	}
	if p.Status != models.PostStatusScheduled {
		c.Remove(p.ID)
		return
	}
	snap := p.Clone()
	c.mu.Lock()
	c.jobs[p.ID] = snap
	c.mu.Unlock()
}

func (c *JobCache) Remove(id string) {
	c.mu.Lock()
	delete(c.jobs, id)
	c.mu.Unlock()
}

// Refresh re-derives one entry from the store after a mutation.
func (c *JobCache) Refresh(ctx context.Context, id string) error {
	p, err := c.store.GetByID(ctx, id)
	if err != nil {
		c.log.WithError(err).WithField("post_id", id).Warn("job cache refresh failed")
		return err
	}
	if p == nil {
		c.Remove(id)
		return nil
	}
	c.Put(p)
	return nil
}

func (c *JobCache) Get(id string) (*models.Post, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.jobs[id]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

func (c *JobCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.jobs)
}

// NextFor returns the earliest scheduled date among ownerID's cached jobs.
func (c *JobCache) NextFor(ownerID string) *time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var next *time.Time
	for _, p := range c.jobs {
		if p.OwnerID != ownerID || p.ScheduledDate == nil {
			continue
		}
		if next == nil || p.ScheduledDate.Before(*next) {
			t := *p.ScheduledDate
			next = &t
		}
	}
	return next
}
