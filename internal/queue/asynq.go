package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// AsynqDispatcher enqueues jobs on Redis for asynq workers, possibly in
// other processes.
type AsynqDispatcher struct {
	client *asynq.Client
	log    logrus.FieldLogger
	unique time.Duration
}

// NewAsynqDispatcher builds a dispatcher. unique suppresses re-enqueueing the
// same post within that window, normally the scheduler interval.
func NewAsynqDispatcher(client *asynq.Client, log logrus.FieldLogger, unique time.Duration) *AsynqDispatcher {
	if unique <= 0 {
		unique = time.Minute
	}
	return &AsynqDispatcher{client: client, log: log, unique: unique}
}

func NewPublishPostTask(postID string) (*asynq.Task, error) {
	payload, err := sonic.Marshal(PublishPostPayload{PostID: postID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypePublishPost, payload), nil
}

func (d *AsynqDispatcher) Dispatch(ctx context.Context, postID string) error {
	task, err := NewPublishPostTask(postID)
	if err != nil {
		return err
	}

	// Retries stay off: a failed platform is recorded, not retried.
	_, err = d.client.EnqueueContext(ctx, task, asynq.Unique(d.unique), asynq.MaxRetry(0))
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	if err != nil {
		d.log.WithError(err).WithField("post_id", postID).Error("enqueue failed")
		return fmt.Errorf("enqueue post %s: %w", postID, err)
	}

	d.log.WithField("post_id", postID).Debug("task enqueued")
	return nil
}

// HandlePublishPostTask is the asynq handler for TaskTypePublishPost.
func (p *Processor) HandlePublishPostTask(ctx context.Context, task *asynq.Task) error {
	var payload PublishPostPayload
	if err := sonic.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode %s payload: %w: %w", TaskTypePublishPost, err, asynq.SkipRetry)
	}
	if payload.PostID == "" {
		return fmt.Errorf("empty post id: %w", asynq.SkipRetry)
	}
	return p.Process(ctx, payload.PostID)
}

// NewServeMux routes publish tasks to proc.
func NewServeMux(proc *Processor) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypePublishPost, proc.HandlePublishPostTask)
	return mux
}
