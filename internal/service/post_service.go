package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/sirupsen/logrus"

	"github.com/maheshrc27/publisher/internal/cache"
	"github.com/maheshrc27/publisher/internal/models"
	"github.com/maheshrc27/publisher/internal/platform"
	"github.com/maheshrc27/publisher/internal/repository"
	"github.com/maheshrc27/publisher/internal/transfer"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
	upcomingWindow   = 7 * 24 * time.Hour
)

type PostService interface {
	SchedulePost(ctx context.Context, ownerID string, pc *transfer.PostCreation) (*models.Post, error)
	CreateDraft(ctx context.Context, ownerID string, pc *transfer.PostCreation) (*models.Post, error)
	UpdatePost(ctx context.Context, ownerID, postID string, pu *transfer.PostUpdate) (*models.Post, error)
	Reschedule(ctx context.Context, ownerID, postID string, at *time.Time) (*models.Post, error)
	Cancel(ctx context.Context, ownerID, postID string) (*models.Post, error)
	Remove(ctx context.Context, ownerID, postID string) error
	Get(ctx context.Context, ownerID, postID string) (*models.Post, error)
	List(ctx context.Context, ownerID string, filter repository.PostFilter) ([]*models.Post, error)
	NextScheduledTime(ctx context.Context, ownerID string) (*time.Time, error)
	Stats(ctx context.Context, ownerID string) (*transfer.PostStats, error)
}

type postService struct {
	pr       repository.PostRepository
	cache    *cache.JobCache
	registry *platform.Registry
	log      logrus.FieldLogger
	now      func() time.Time
}

func NewPostService(
	pr repository.PostRepository,
	jobs *cache.JobCache,
	registry *platform.Registry,
	log logrus.FieldLogger) PostService {
	return &postService{
		pr:       pr,
		cache:    jobs,
		registry: registry,
		log:      log,
		now:      time.Now,
	}
}

// NewPostServiceWithClock is NewPostService with a fixed time source.
func NewPostServiceWithClock(
	pr repository.PostRepository,
	jobs *cache.JobCache,
	registry *platform.Registry,
	log logrus.FieldLogger,
	now func() time.Time) PostService {
	s := NewPostService(pr, jobs, registry, log).(*postService)
	s.now = now
	return s
}

func (s *postService) SchedulePost(ctx context.Context, ownerID string, pc *transfer.PostCreation) (*models.Post, error) {
	post, err := s.build(ownerID, pc, true)
	if err != nil {
		s.log.Info(err.Error())
		return nil, err
	}
	at, err := s.futureDate(pc.ScheduledDate)
	if err != nil {
		s.log.Info(err.Error())
		return nil, err
	}
	post.Status = models.PostStatusScheduled
	post.ScheduledDate = at

	saved, err := s.pr.Insert(ctx, post)
	if err != nil {
		return nil, err
	}
	s.cache.Put(saved)

	s.log.WithFields(logrus.Fields{
		"post_id":        saved.ID,
		"owner_id":       ownerID,
		"platforms":      saved.Platforms,
		"scheduled_date": saved.ScheduledDate,
	}).Info("post scheduled")
	return saved, nil
}

func (s *postService) CreateDraft(ctx context.Context, ownerID string, pc *transfer.PostCreation) (*models.Post, error) {
	post, err := s.build(ownerID, pc, false)
	if err != nil {
		s.log.Info(err.Error())
		return nil, err
	}
	post.Status = models.PostStatusDraft
	if pc.ScheduledDate != nil {
		at := pc.ScheduledDate.UTC()
		post.ScheduledDate = &at
	}

	saved, err := s.pr.Insert(ctx, post)
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"post_id": saved.ID, "owner_id": ownerID}).Info("draft created")
	return saved, nil
}

func (s *postService) UpdatePost(ctx context.Context, ownerID, postID string, pu *transfer.PostUpdate) (*models.Post, error) {
	if pu == nil {
		return nil, invalid("", ErrInvalidInput)
	}
	if err := validateStruct(pu); err != nil {
		s.log.Info(err.Error())
		return nil, err
	}

	current, err := s.owned(ctx, ownerID, postID)
	if err != nil {
		return nil, err
	}
	if current.Status != models.PostStatusScheduled {
		return nil, editError(current.Status)
	}

	next := current.Clone()
	if pu.Content != nil {
		next.Content = *pu.Content
	}
	if pu.Media != nil {
		next.Media = transfer.ToMediaList(*pu.Media)
	}
	if pu.Hashtags != nil {
		next.Hashtags = normalizeTags(*pu.Hashtags, "#")
	}
	if pu.Mentions != nil {
		next.Mentions = normalizeTags(*pu.Mentions, "@")
	}
	if pu.Link != nil {
		next.Link = strings.TrimSpace(*pu.Link)
	}
	if pu.Platforms != nil {
		next.Platforms = append([]string(nil), (*pu.Platforms)...)
	}
	if pu.ScheduledDate != nil {
		at, err := s.futureDate(pu.ScheduledDate)
		if err != nil {
			s.log.Info(err.Error())
			return nil, err
		}
		next.ScheduledDate = at
	}
	if err := s.checkTargets(next.Platforms, true); err != nil {
		s.log.Info(err.Error())
		return nil, err
	}
	if strings.TrimSpace(next.Content) == "" && len(next.Media) == 0 {
		return nil, invalid("content", ErrEmptyPost)
	}

	ok, err := s.pr.UpdateContent(ctx, next)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.lostRace(ctx, ownerID, postID, editError)
	}

	if err := s.cache.Refresh(ctx, postID); err != nil {
		s.log.WithError(err).WithField("post_id", postID).Warn("job cache refresh failed")
	}
	s.log.WithField("post_id", postID).Info("post updated")
	return s.pr.GetByID(ctx, postID)
}

func (s *postService) Reschedule(ctx context.Context, ownerID, postID string, at *time.Time) (*models.Post, error) {
	date, err := s.futureDate(at)
	if err != nil {
		s.log.Info(err.Error())
		return nil, err
	}
	current, err := s.owned(ctx, ownerID, postID)
	if err != nil {
		return nil, err
	}

	switch current.Status {
	case models.PostStatusScheduled:
		return s.UpdatePost(ctx, ownerID, postID, &transfer.PostUpdate{ScheduledDate: date})
	case models.PostStatusDraft, models.PostStatusFailed:
	default:
		return nil, editError(current.Status)
	}

	if err := s.checkTargets(current.Platforms, true); err != nil {
		s.log.Info(err.Error())
		return nil, err
	}

	note := ""
	ok, err := s.pr.UpdateStatus(ctx, postID, current.Status, models.PostStatusScheduled, &repository.StatusUpdate{
		ScheduledDate: date,
		Note:          &note,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.lostRace(ctx, ownerID, postID, editError)
	}

	if err := s.cache.Refresh(ctx, postID); err != nil {
		s.log.WithError(err).WithField("post_id", postID).Warn("job cache refresh failed")
	}
	s.log.WithFields(logrus.Fields{
		"post_id":        postID,
		"from":           current.Status,
		"scheduled_date": date,
	}).Info("post rescheduled")
	return s.pr.GetByID(ctx, postID)
}

func (s *postService) Cancel(ctx context.Context, ownerID, postID string) (*models.Post, error) {
	current, err := s.owned(ctx, ownerID, postID)
	if err != nil {
		return nil, err
	}
	if current.Status == models.PostStatusCancelled {
		return current, nil
	}
	if current.Status != models.PostStatusScheduled {
		return nil, cancelError(current.Status)
	}

	ok, err := s.pr.UpdateStatus(ctx, postID, models.PostStatusScheduled, models.PostStatusCancelled, nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		latest, err := s.owned(ctx, ownerID, postID)
		if err != nil {
			return nil, err
		}
		if latest.Status == models.PostStatusCancelled {
			s.cache.Remove(postID)
			return latest, nil
		}
		s.log.WithFields(logrus.Fields{"post_id": postID, "status": latest.Status}).Info("cancel lost the race")
		return nil, cancelError(latest.Status)
	}

	s.cache.Remove(postID)
	s.log.WithField("post_id", postID).Info("post cancelled")
	return s.pr.GetByID(ctx, postID)
}

func (s *postService) Remove(ctx context.Context, ownerID, postID string) error {
	if ownerID == "" {
		return invalid("owner_id", ErrOwnerRequired)
	}
	ok, err := s.pr.DeleteScheduledIfOwned(ctx, postID, ownerID)
	if err != nil {
		return err
	}
	if !ok {
		return s.lostRace(ctx, ownerID, postID, editError)
	}
	s.cache.Remove(postID)
	s.log.WithField("post_id", postID).Info("post removed")
	return nil
}

func (s *postService) Get(ctx context.Context, ownerID, postID string) (*models.Post, error) {
	return s.owned(ctx, ownerID, postID)
}

func (s *postService) List(ctx context.Context, ownerID string, filter repository.PostFilter) ([]*models.Post, error) {
	if ownerID == "" {
		return nil, invalid("owner_id", ErrOwnerRequired)
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, invalid("status", ErrInvalidInput)
	}
	if filter.Platform != "" {
		if _, ok := s.registry.Get(filter.Platform); !ok {
			return nil, invalid("platform", ErrUnknownPlatform)
		}
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, invalid("to", ErrInvalidInput)
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}

	posts, err := s.pr.FindByOwner(ctx, ownerID, filter)
	if err != nil {
		return nil, err
	}
	if posts == nil {
		posts = []*models.Post{}
	}
	return posts, nil
}

// NextScheduledTime answers from the job cache.
func (s *postService) NextScheduledTime(ctx context.Context, ownerID string) (*time.Time, error) {
	if ownerID == "" {
		return nil, invalid("owner_id", ErrOwnerRequired)
	}
	return s.cache.NextFor(ownerID), nil
}

func (s *postService) Stats(ctx context.Context, ownerID string) (*transfer.PostStats, error) {
	if ownerID == "" {
		return nil, invalid("owner_id", ErrOwnerRequired)
	}
	counts, err := s.pr.CountByStatus(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	upcoming, err := s.pr.CountUpcoming(ctx, ownerID, now, now.Add(upcomingWindow))
	if err != nil {
		return nil, err
	}

	stats := &transfer.PostStats{
		Counts:   make(map[models.PostStatus]int, len(models.AllPostStatuses)),
		Upcoming: upcoming,
	}
	for _, st := range models.AllPostStatuses {
		stats.Counts[st] = counts[st]
		stats.Total += counts[st]
	}
	return stats, nil
}

// build validates a creation request and returns an unsaved post.
func (s *postService) build(ownerID string, pc *transfer.PostCreation, requireTargets bool) (*models.Post, error) {
	if ownerID == "" {
		return nil, invalid("owner_id", ErrOwnerRequired)
	}
	if pc == nil {
		return nil, invalid("", ErrInvalidInput)
	}
	if err := s.checkTargets(pc.Platforms, requireTargets); err != nil {
		return nil, err
	}
	if err := validateStruct(pc); err != nil {
		return nil, err
	}
	if strings.TrimSpace(pc.Content) == "" && len(pc.Media) == 0 {
		return nil, invalid("content", ErrEmptyPost)
	}

	id, err := gonanoid.New()
	if err != nil {
		return nil, err
	}
	return &models.Post{
		ID:        id,
		OwnerID:   ownerID,
		Content:   pc.Content,
		Media:     transfer.ToMediaList(pc.Media),
		Hashtags:  normalizeTags(pc.Hashtags, "#"),
		Mentions:  normalizeTags(pc.Mentions, "@"),
		Link:      strings.TrimSpace(pc.Link),
		ProductID: pc.ProductID,
		Platforms: append([]string(nil), pc.Platforms...),
	}, nil
}

func (s *postService) checkTargets(platforms []string, required bool) error {
	if len(platforms) == 0 {
		if required {
			return invalid("platforms", ErrNoTargetsSpecified)
		}
		return nil
	}
	seen := make(map[string]bool, len(platforms))
	for _, name := range platforms {
		if seen[name] {
			return invalid("platforms", ErrInvalidInput)
		}
		seen[name] = true
		if _, ok := s.registry.Get(name); !ok {
			return invalid("platforms", fmt.Errorf("%w %q", ErrUnknownPlatform, name))
		}
	}
	return nil
}

func (s *postService) futureDate(at *time.Time) (*time.Time, error) {
	if at == nil || !at.After(s.now()) {
		return nil, invalid("scheduled_date", ErrInvalidScheduleTime)
	}
	t := at.UTC()
	return &t, nil
}

// owned loads a post and hides posts of other owners.
func (s *postService) owned(ctx context.Context, ownerID, postID string) (*models.Post, error) {
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
	return post, nil
}

// lostRace re-reads a post after a CAS miss and explains why the write was refused.
func (s *postService) lostRace(ctx context.Context, ownerID, postID string, explain func(models.PostStatus) error) error {
	latest, err := s.owned(ctx, ownerID, postID)
	if err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"post_id": postID, "status": latest.Status}).Info("write refused")
	return explain(latest.Status)
}

func editError(status models.PostStatus) error {
	switch status {
	case models.PostStatusPublishing, models.PostStatusPublished:
		return ErrTooLate
	default:
		return ErrNotEditable
	}
}

func cancelError(status models.PostStatus) error {
	switch status {
	case models.PostStatusPublishing, models.PostStatusPublished, models.PostStatusFailed:
		return ErrTooLate
	default:
		return ErrNotCancellable
	}
}

func normalizeTags(tags []string, prefix string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimPrefix(strings.TrimSpace(t), prefix)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
