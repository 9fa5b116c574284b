package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/maheshrc27/publisher/internal/models"
)

type memoryPostRepository struct {
	mu    sync.Mutex
	posts map[string]*models.Post
	now   func() time.Time
}

// NewMemoryPostRepository returns a process-local store with the same CAS
// semantics as the database stores. It backs STORE_DRIVER=memory and the tests.
func NewMemoryPostRepository() PostRepository {
	return &memoryPostRepository{
		posts: make(map[string]*models.Post),
		now:   time.Now,
	}
}

func (r *memoryPostRepository) Insert(ctx context.Context, post *models.Post) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if post.ID == "" {
		return nil, errors.New("post id is required")
	}
	if _, ok := r.posts[post.ID]; ok {
		return nil, errors.New("post already exists")
	}
	stored := post.Clone()
	now := r.now()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	r.posts[stored.ID] = stored
	return stored.Clone(), nil
}

func (r *memoryPostRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[id]
	if !ok {
		return nil, nil
	}
	return p.Clone(), nil
}

func (r *memoryPostRepository) FindDueScheduled(ctx context.Context, now time.Time, limit int) ([]*models.Post, error) {
	posts := r.collect(func(p *models.Post) bool {
		return p.Status == models.PostStatusScheduled && p.ScheduledDate != nil && !p.ScheduledDate.After(now)
	})
	sortByScheduledDate(posts)
	if limit > 0 && len(posts) > limit {
		posts = posts[:limit]
	}
	return posts, nil
}

func (r *memoryPostRepository) FindScheduled(ctx context.Context) ([]*models.Post, error) {
	posts := r.collect(func(p *models.Post) bool {
		return p.Status == models.PostStatusScheduled
	})
	sortByScheduledDate(posts)
	return posts, nil
}

func (r *memoryPostRepository) FindByOwner(ctx context.Context, ownerID string, filter PostFilter) ([]*models.Post, error) {
	posts := r.collect(func(p *models.Post) bool {
		return p.OwnerID == ownerID && filter.matches(p)
	})
	sort.Slice(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
	if filter.Offset > 0 {
		if filter.Offset >= len(posts) {
			return nil, nil
		}
		posts = posts[filter.Offset:]
	}
	if filter.Limit > 0 && len(posts) > filter.Limit {
		posts = posts[:filter.Limit]
	}
	return posts, nil
}

func (r *memoryPostRepository) FindStuckPublishing(ctx context.Context, startedBefore time.Time) ([]*models.Post, error) {
	return r.collect(func(p *models.Post) bool {
		return p.Status == models.PostStatusPublishing &&
			(p.PublishingStartedAt == nil || p.PublishingStartedAt.Before(startedBefore))
	}), nil
}

func (r *memoryPostRepository) FindPublishedSince(ctx context.Context, since time.Time) ([]*models.Post, error) {
	return r.collect(func(p *models.Post) bool {
		return p.Status == models.PostStatusPublished && p.PublishedDate != nil && !p.PublishedDate.Before(since)
	}), nil
}

func (r *memoryPostRepository) UpdateStatus(ctx context.Context, id string, expected, next models.PostStatus, upd *StatusUpdate) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[id]
	if !ok || p.Status != expected {
		return false, nil
	}
	p.Status = next
	upd.apply(p)
	p.UpdatedAt = r.now()
	return true, nil
}

func (r *memoryPostRepository) UpdateContent(ctx context.Context, post *models.Post) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[post.ID]
	if !ok || p.OwnerID != post.OwnerID || p.Status != models.PostStatusScheduled {
		return false, nil
	}
	src := post.Clone()
	p.Content = src.Content
	p.Media = src.Media
	p.Hashtags = src.Hashtags
	p.Mentions = src.Mentions
	p.Link = src.Link
	p.ProductID = src.ProductID
	p.Platforms = src.Platforms
	p.ScheduledDate = src.ScheduledDate
	p.UpdatedAt = r.now()
	return true, nil
}

func (r *memoryPostRepository) CountByStatus(ctx context.Context, ownerID string) (map[models.PostStatus]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := make(map[models.PostStatus]int)
	for _, p := range r.posts {
		if p.OwnerID == ownerID {
			counts[p.Status]++
		}
	}
	return counts, nil
}

func (r *memoryPostRepository) CountUpcoming(ctx context.Context, ownerID string, from, to time.Time) (int, error) {
	posts := r.collect(func(p *models.Post) bool {
		return p.OwnerID == ownerID && p.Status == models.PostStatusScheduled && p.ScheduledDate != nil &&
			p.ScheduledDate.After(from) && !p.ScheduledDate.After(to)
	})
	return len(posts), nil
}

func (r *memoryPostRepository) DeleteScheduledIfOwned(ctx context.Context, id, ownerID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[id]
	if !ok || p.OwnerID != ownerID || p.Status != models.PostStatusScheduled {
		return false, nil
	}
	delete(r.posts, id)
	return true, nil
}

func (r *memoryPostRepository) collect(keep func(*models.Post) bool) []*models.Post {
	r.mu.Lock()
	defer r.mu.Unlock()

	var posts []*models.Post
	for _, p := range r.posts {
		if keep(p) {
			posts = append(posts, p.Clone())
		}
	}
	return posts
}

func sortByScheduledDate(posts []*models.Post) {
	sort.Slice(posts, func(i, j int) bool {
		a, b := posts[i].ScheduledDate, posts[j].ScheduledDate
		if a == nil || b == nil {
			return b != nil
		}
		return a.Before(*b)
	})
}
