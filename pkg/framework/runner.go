package framework

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/golang/glog"
)

// ErrForcedExit is returned by Runner.Wait when the stop signal is
// received a second time.
var ErrForcedExit = errors.New("forced exit")

// NamedRun gives a Runnable a name used in logs.
func NamedRun(name string, runnable Runnable) Runnable {
	return namedRun{Runnable: runnable, name: name}
}

type namedRun struct {
	Runnable
	name string
}

func (r namedRun) Name() string { return r.name }

// Runner starts Runnables in goroutines and collects their errors.
type Runner struct {
	Context context.Context

	// OnFailure is called from the goroutine of a Runnable which
	// returned an error other than context.Canceled.
	OnFailure func(name string, err error)

	wg      sync.WaitGroup
	lock    sync.Mutex
	started int
	errs    AggregatedError
	forceCh chan struct{}
}

// NewRunner creates a Runner on the background context.
func NewRunner() *Runner {
	return NewRunnerWith(context.Background())
}

// NewRunnerWith creates a Runner on ctx.
func NewRunnerWith(ctx context.Context) *Runner {
	return &Runner{Context: ctx, forceCh: make(chan struct{})}
}

// HandleSignals cancels Context on SIGINT or SIGTERM. A second signal
// makes Wait return ErrForcedExit without waiting.
func (r *Runner) HandleSignals() *Runner {
	ctx, cancel := context.WithCancel(r.Context)
	r.Context = ctx
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		glog.Infof("%v received, stopping", sig)
		cancel()
		<-sigCh
		glog.Error("stop requested again, force exit")
		close(r.forceCh)
	}()
	return r
}

// Go starts Runnables on Context.
func (r *Runner) Go(runnables ...Runnable) *Runner {
	return r.GoWith(r.Context, runnables...)
}

// GoWith starts Runnables on ctx.
func (r *Runner) GoWith(ctx context.Context, runnables ...Runnable) *Runner {
	for _, runnable := range runnables {
		r.lock.Lock()
		name := fmt.Sprintf("#%d", r.started)
		r.started++
		r.lock.Unlock()
		if named, ok := runnable.(Named); ok {
			name = named.Name()
		}
		r.wg.Add(1)
		go r.run(ctx, name, runnable)
	}
	return r
}

func (r *Runner) run(ctx context.Context, name string, runnable Runnable) {
	defer r.wg.Done()
	glog.V(4).Infof("Runner[%s] started", name)
	err := runnable.Run(ctx)
	glog.V(4).Infof("Runner[%s] stopped: %v", name, err)
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	r.lock.Lock()
	r.errs.Add(err)
	r.lock.Unlock()
	if r.OnFailure != nil {
		r.OnFailure(name, err)
	}
}

// Wait blocks until all started Runnables return, and reports their
// failures.
func (r *Runner) Wait() error {
	doneCh := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(doneCh)
	}()
	select {
	case <-doneCh:
	case <-r.forceCh:
		return ErrForcedExit
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.errs.Aggregate()
}

// RunWithContextCancel runs fn, which doesn't take a context, and calls
// onCancel if ctx is done first. It returns context.Canceled then,
// after fn returns.
func RunWithContextCancel(ctx context.Context, onCancel func(), fn func() error) error {
	errCh := make(chan error, 1)
	go func() { errCh <- fn() }()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	if onCancel != nil {
		onCancel()
	}
	<-errCh
	return context.Canceled
}

// RunWithContextCloser is RunWithContextCancel closing closer on
// cancellation, or after fn returns otherwise.
func RunWithContextCloser(ctx context.Context, closer io.Closer, fn func() error) error {
	canceled := false
	err := RunWithContextCancel(ctx, func() {
		canceled = true
		closer.Close()
	}, fn)
	if !canceled {
		closer.Close()
	}
	return err
}
