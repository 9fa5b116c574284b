package queue

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/maheshrc27/publisher/internal/cache"
	"github.com/maheshrc27/publisher/internal/models"
	"github.com/maheshrc27/publisher/internal/platform"
	"github.com/maheshrc27/publisher/internal/repository"
)

const TaskTypePublishPost = "publish:post"

type PublishPostPayload struct {
	PostID string `json:"post_id"`
}

// Processor runs one job: claim it, publish to every target platform, and
// write the aggregated outcome back.
type Processor struct {
	posts         repository.PostRepository
	cache         *cache.JobCache
	registry      *platform.Registry
	creds         platform.CredentialsProvider
	log           logrus.FieldLogger
	platformLimit int
	now           func() time.Time
}

func NewProcessor(
	posts repository.PostRepository,
	jobs *cache.JobCache,
	registry *platform.Registry,
	creds platform.CredentialsProvider,
	log logrus.FieldLogger,
	platformLimit int) *Processor {
	if platformLimit <= 0 {
		platformLimit = 4
	}
	return &Processor{
		posts:         posts,
		cache:         jobs,
		registry:      registry,
		creds:         creds,
		log:           log,
		platformLimit: platformLimit,
		now:           time.Now,
	}
}

// WithClock overrides the time source.
func (p *Processor) WithClock(now func() time.Time) *Processor {
	p.now = now
	return p
}

// Process handles a single post id. A post that is no longer scheduled, not
// yet due, or claimed by someone else is skipped without error. Returned
// errors are store failures.
func (p *Processor) Process(ctx context.Context, postID string) error {
	log := p.log.WithField("post_id", postID)

	post, err := p.posts.GetByID(ctx, postID)
	if err != nil {
		log.WithError(err).Error("load post failed")
		return err
	}
	if post == nil {
		log.Debug("post not found, skipping")
		return nil
	}
	if post.Status != models.PostStatusScheduled {
		log.WithField("status", post.Status).Debug("post is not scheduled, skipping")
		return nil
	}
	startedAt := p.now().UTC()
	if post.ScheduledDate == nil || post.ScheduledDate.After(startedAt) {
		log.Debug("post is not due yet, skipping")
		return nil
	}

	attempt := post.Attempt + 1
	claimed, err := p.posts.UpdateStatus(ctx, post.ID, models.PostStatusScheduled, models.PostStatusPublishing, &repository.StatusUpdate{
		PublishingStartedAt: &startedAt,
		Attempt:             &attempt,
	})
	if err != nil {
		log.WithError(err).Error("claim post failed, it stays scheduled")
		return err
	}
	if !claimed {
		log.Debug("post already claimed")
		return nil
	}
	p.cache.Remove(post.ID)

	results := p.publishAll(ctx, post, attempt)

	merged := post.PostResults.Only(post.Platforms).Merge(results)
	analytics := models.ComputeAnalytics(merged)
	upd := &repository.StatusUpdate{
		PostResults: merged,
		Analytics:   &analytics,
	}
	next := models.PostStatusFailed
	if merged.AnySuccess() {
		next = models.PostStatusPublished
		finishedAt := p.now().UTC()
		upd.PublishedDate = &finishedAt
	}

	// Adapters may have honoured ctx; the final write must still happen.
	writeCtx := context.WithoutCancel(ctx)
	ok, err := p.posts.UpdateStatus(writeCtx, post.ID, models.PostStatusPublishing, next, upd)
	if err != nil {
		log.WithError(err).Error("persist publish results failed, post left publishing")
		return err
	}
	if !ok {
		log.Warn("post left publishing before results were written")
		return nil
	}

	log.WithFields(logrus.Fields{
		"status":    next,
		"attempt":   attempt,
		"succeeded": analytics.SuccessCount,
		"failed":    analytics.FailedCount,
	}).Info("post processed")
	return nil
}

// publishAll fans out to every target platform and joins before returning.
// Each goroutine owns one slot of the result slice.
func (p *Processor) publishAll(ctx context.Context, post *models.Post, attempt int) models.PostResults {
	content := platform.ContentFromPost(post)
	results := make(models.PostResults, len(post.Platforms))

	var g errgroup.Group
	g.SetLimit(p.platformLimit)
	for i, name := range post.Platforms {
		i, name := i, name
		g.Go(func() error {
			results[i] = p.publishOne(ctx, post, content, name, attempt)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (p *Processor) publishOne(ctx context.Context, post *models.Post, content *platform.Content, name string, attempt int) (res models.PostResult) {
	res = models.PostResult{
		Platform:  name,
		Status:    models.ResultStatusPending,
		AttemptID: uuid.NewString(),
		Attempt:   attempt,
	}
	log := p.log.WithFields(logrus.Fields{"post_id": post.ID, "platform": name, "attempt_id": res.AttemptID})

	defer func() {
		if r := recover(); r != nil {
			log.WithField("stack", string(debug.Stack())).Error("adapter panicked")
			p.fail(&res, &platform.Error{Platform: name, Kind: platform.KindRemoteUnavailable, Message: fmt.Sprintf("adapter panic: %v", r)})
		}
	}()

	adapter, ok := p.registry.Get(name)
	if !ok {
		p.fail(&res, &platform.Error{Platform: name, Kind: platform.KindUnsupportedContent, Message: "no adapter registered"})
		return res
	}

	if v, ok := adapter.(platform.ContentValidator); ok {
		if err := v.Validate(content); err != nil {
			pe := platform.Classify(name, err)
			p.fail(&res, pe)
			log.WithField("kind", pe.Kind).Warn(pe.Error())
			return res
		}
	}

	creds, err := p.creds.Credentials(ctx, post.OwnerID, name)
	if err != nil || creds == nil {
		pe := &platform.Error{Platform: name, Kind: platform.KindCredentialsMissing, Message: "no credentials configured", Err: err}
		if err != nil {
			pe.Message = "credentials lookup failed: " + err.Error()
		}
		p.fail(&res, pe)
		log.Warn(pe.Error())
		return res
	}

	callCtx, cancel := context.WithTimeout(ctx, p.registry.Timeout(name))
	defer cancel()

	out, err := adapter.Publish(callCtx, creds, content)
	if err != nil {
		pe := platform.Classify(name, err)
		p.fail(&res, pe)
		log.WithFields(logrus.Fields{"kind": pe.Kind, "ambiguous": pe.Ambiguous}).Warn(pe.Error())
		return res
	}

	publishedAt := out.PublishedAt
	if publishedAt.IsZero() {
		publishedAt = p.now().UTC()
	}
	res.Status = models.ResultStatusSuccess
	res.ExternalID = out.ExternalID
	res.URL = out.URL
	res.PublishedAt = &publishedAt
	res.Engagement = out.Engagement
	log.WithField("external_id", out.ExternalID).Info("published")
	return res
}

func (p *Processor) fail(res *models.PostResult, pe *platform.Error) {
	failedAt := p.now().UTC()
	res.Status = models.ResultStatusFailed
	res.Error = pe.Error()
	res.ErrorKind = string(pe.Kind)
	res.Ambiguous = pe.Ambiguous
	res.FailedAt = &failedAt
	res.ExternalID = ""
	res.URL = ""
	res.PublishedAt = nil
}
