package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

// Dispatcher hands a due post to worker execution without waiting for it.
type Dispatcher interface {
	Dispatch(ctx context.Context, postID string) error
}

// LocalDispatcher runs jobs on in-process goroutines, at most limit at a time.
// A post already queued or running is not queued twice.
type LocalDispatcher struct {
	proc *Processor
	log  logrus.FieldLogger
	sem  chan struct{}
	wg   sync.WaitGroup

	mu       sync.Mutex
	inflight map[string]struct{}
	closed   bool
}

var ErrDispatcherClosed = errors.New("dispatcher is closed")

func NewLocalDispatcher(proc *Processor, log logrus.FieldLogger, limit int) *LocalDispatcher {
	if limit <= 0 {
		limit = 10
	}
	return &LocalDispatcher{
		proc:     proc,
		log:      log,
		sem:      make(chan struct{}, limit),
		inflight: make(map[string]struct{}),
	}
}

func (d *LocalDispatcher) Dispatch(ctx context.Context, postID string) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrDispatcherClosed
	}
	if _, ok := d.inflight[postID]; ok {
		d.mu.Unlock()
		return nil
	}
	d.inflight[postID] = struct{}{}
	d.wg.Add(1)
	d.mu.Unlock()

	// Jobs outlive the tick that dispatched them.
	jobCtx := context.WithoutCancel(ctx)
	go func() {
		defer d.wg.Done()
		defer func() {
			d.mu.Lock()
			delete(d.inflight, postID)
			d.mu.Unlock()
		}()

		d.sem <- struct{}{}
		defer func() { <-d.sem }()

		if err := d.proc.Process(jobCtx, postID); err != nil {
			d.log.WithError(err).WithField("post_id", postID).Error("job failed")
		}
	}()
	return nil
}

// Wait blocks until every dispatched job has finished.
func (d *LocalDispatcher) Wait() {
	d.wg.Wait()
}

// Close stops accepting jobs and waits for in-flight ones.
func (d *LocalDispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}
