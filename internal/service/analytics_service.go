package service

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/maheshrc27/publisher/internal/models"
	"github.com/maheshrc27/publisher/internal/platform"
	"github.com/maheshrc27/publisher/internal/repository"
)

// AnalyticsService pulls engagement snapshots for published posts and
// recomputes the post aggregates from them.
type AnalyticsService interface {
	RefreshPost(ctx context.Context, ownerID, postID string) (*models.Post, error)
	Refresh(ctx context.Context, post *models.Post) (*models.Post, error)
	RefreshSince(ctx context.Context, since time.Time) (int, error)
}

type analyticsService struct {
	pr          repository.PostRepository
	registry    *platform.Registry
	creds       platform.CredentialsProvider
	log         logrus.FieldLogger
	concurrency int
}

func NewAnalyticsService(
	pr repository.PostRepository,
	registry *platform.Registry,
	creds platform.CredentialsProvider,
	log logrus.FieldLogger,
	concurrency int) AnalyticsService {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &analyticsService{
		pr:          pr,
		registry:    registry,
		creds:       creds,
		log:         log,
		concurrency: concurrency,
	}
}

func (s *analyticsService) RefreshPost(ctx context.Context, ownerID, postID string) (*models.Post, error) {
	if ownerID == "" {
		return nil, invalid("owner_id", ErrOwnerRequired)
	}
	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post == nil || post.OwnerID != ownerID {
		return nil, ErrPostNotFound
	}
	return s.Refresh(ctx, post)
}

// Refresh fetches a snapshot for every successful result. A failed fetch
// keeps the previous engagement for that platform.
func (s *analyticsService) Refresh(ctx context.Context, post *models.Post) (*models.Post, error) {
	if post.Status != models.PostStatusPublished {
		return nil, ErrNotPublished
	}

	results := append(models.PostResults(nil), post.PostResults...)
	changed := 0
	for i := range results {
		res := &results[i]
		if res.Status != models.ResultStatusSuccess || res.ExternalID == "" {
			continue
		}
		snap, err := s.fetch(ctx, post, res)
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"post_id":  post.ID,
				"platform": res.Platform,
			}).WithError(err).Warn("analytics fetch failed")
			continue
		}
		res.Engagement = snap.Engagement
		changed++
	}
	if changed == 0 {
		return post, nil
	}

	analytics := models.ComputeAnalytics(results)
	ok, err := s.pr.UpdateStatus(ctx, post.ID, models.PostStatusPublished, models.PostStatusPublished, &repository.StatusUpdate{
		PostResults: results,
		Analytics:   &analytics,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		s.log.WithField("post_id", post.ID).Info("post changed while refreshing analytics")
	}
	return s.pr.GetByID(ctx, post.ID)
}

func (s *analyticsService) fetch(ctx context.Context, post *models.Post, res *models.PostResult) (*platform.AnalyticsSnapshot, error) {
	adapter, ok := s.registry.Get(res.Platform)
	if !ok {
		return nil, platform.ErrUnsupportedContent
	}
	creds, err := s.creds.Credentials(ctx, post.OwnerID, res.Platform)
	if err != nil {
		return nil, err
	}
	if creds == nil {
		return nil, platform.ErrCredentialsMissing
	}

	callCtx, cancel := context.WithTimeout(ctx, s.registry.Timeout(res.Platform))
	defer cancel()
	snap, err := adapter.FetchAnalytics(callCtx, creds, res.ExternalID)
	if err != nil {
		return nil, platform.Classify(res.Platform, err)
	}
	return snap, nil
}

// RefreshSince refreshes every post published at or after since and returns
// how many were updated.
func (s *analyticsService) RefreshSince(ctx context.Context, since time.Time) (int, error) {
	posts, err := s.pr.FindPublishedSince(ctx, since)
	if err != nil {
		s.log.Info(err.Error())
		return 0, err
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		refreshed int
	)
	semaphore := make(chan struct{}, s.concurrency)

	for _, post := range posts {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(post *models.Post) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if _, err := s.Refresh(ctx, post); err != nil {
				s.log.WithField("post_id", post.ID).WithError(err).Error("analytics refresh failed")
				return
			}
			mu.Lock()
			refreshed++
			mu.Unlock()
		}(post)
	}

	wg.Wait()
	return refreshed, nil
}
