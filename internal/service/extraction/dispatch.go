package extraction

import (
	"context"
	"sync"

	"github.com/feichai0017/tender-processor/pkg/logger"
)

// Dispatcher hands a queued job to whatever will run Process for it.
type Dispatcher interface {
	Dispatch(ctx context.Context, jobID string) error
}

// inlineDispatcher runs jobs on goroutines of the current process.
type inlineDispatcher struct {
	run    func(ctx context.Context, jobID string) error
	logger logger.Logger
	base   context.Context
	wg     sync.WaitGroup
}

func (d *inlineDispatcher) Dispatch(_ context.Context, jobID string) error {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		// the request context ends with the HTTP call; the job must outlive it
		if err := d.run(d.base, jobID); err != nil {
			d.logger.Error("Inline job run failed",
				logger.String("jobId", jobID),
				logger.Error(err),
			)
		}
	}()
	return nil
}

func (d *inlineDispatcher) wait() {
	d.wg.Wait()
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, jobID string) error

func (f DispatcherFunc) Dispatch(ctx context.Context, jobID string) error {
	return f(ctx, jobID)
}
