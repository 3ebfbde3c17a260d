package framework

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
)

// DefaultInterval is the cadence of a Loop unless Interval is set.
const DefaultInterval = 25 * time.Millisecond

// Loop runs controllers by priority level at a fixed cadence, and the
// Runnables feeding them in background.
//
// Controllers run on the loop goroutine only, they may keep state
// without locking.
type Loop struct {
	Interval time.Duration

	// KeepGoing keeps the loop running when a Runnable fails.
	// By default the first failing Runnable stops the loop and
	// its error is returned from Run.
	KeepGoing bool

	levels  [PriorityLevels]level
	runners []Runnable

	lock     sync.Mutex
	messages []Message

	wakeUpCh chan struct{}
	failCh   chan error

	iterations uint64
	overruns   uint64
}

// LoopAdder adds its parts to a Loop.
type LoopAdder interface {
	AddToLoop(*Loop)
}

type level struct {
	controllers []Controller

	lock      sync.Mutex
	preHooks  []Controller
	postHooks []Controller
}

type loopCtxKey struct{}

// LoopCtlFrom gets the LoopControl from the context passed to
// Runnables and controllers.
func LoopCtlFrom(ctx context.Context) LoopControl {
	return ctx.Value(loopCtxKey{}).(LoopControl)
}

// NewLoop creates a Loop.
func NewLoop() *Loop {
	return &Loop{
		Interval: DefaultInterval,
		wakeUpCh: make(chan struct{}, 1),
	}
}

// Add adds LoopAdders.
func (l *Loop) Add(adders ...LoopAdder) *Loop {
	for _, adder := range adders {
		adder.AddToLoop(l)
	}
	return l
}

// AddController adds controllers at a priority level. A controller
// which is also a Runnable is run in background as well.
func (l *Loop) AddController(priorityLevel int, ctls ...Controller) *Loop {
	lv := &l.levels[priorityLevel]
	lv.controllers = append(lv.controllers, ctls...)
	for _, ctl := range ctls {
		if runnable, ok := ctl.(Runnable); ok {
			l.runners = append(l.runners, runnable)
		}
	}
	return l
}

// AddRunnable adds Runnables.
func (l *Loop) AddRunnable(runnables ...Runnable) *Loop {
	l.runners = append(l.runners, runnables...)
	return l
}

// Iterations returns the number of iterations run so far.
func (l *Loop) Iterations() uint64 {
	return atomic.LoadUint64(&l.iterations)
}

// Overruns returns the number of iterations which took longer than
// the interval.
func (l *Loop) Overruns() uint64 {
	return atomic.LoadUint64(&l.overruns)
}

// Run implements Runnable.
// It returns when ctx is done or, unless KeepGoing is set,
// when one of the Runnables fails. All Runnables have stopped when
// it returns.
func (l *Loop) Run(ctx context.Context) error {
	if l.wakeUpCh == nil {
		l.wakeUpCh = make(chan struct{}, 1)
	}
	l.failCh = make(chan error, 1)
	interval := l.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	runCtx, cancel := context.WithCancel(context.WithValue(ctx, loopCtxKey{}, LoopControl(l)))
	runner := NewRunnerWith(runCtx)
	if !l.KeepGoing {
		runner.OnFailure = l.runnerFailed
	}
	runner.Go(l.runners...)
	defer runner.Wait()
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-l.failCh:
			return err
		case <-ticker.C:
		case <-l.wakeUpCh:
		}
		l.runIteration(runCtx, interval)
	}
}

// RunOrFail is intended to be used in main to simply run the loop.
// The process exits if the loop stops for any reason other than
// cancellation of ctx.
func (l *Loop) RunOrFail(ctx context.Context) {
	if err := l.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		glog.Exitf("loop stopped: %v", err)
	}
}

func (l *Loop) runnerFailed(name string, err error) {
	glog.Errorf("Runner[%s] failed: %v", name, err)
	select {
	case l.failCh <- err:
	default:
	}
}

// PreRunAt implements LoopControl.
func (l *Loop) PreRunAt(priorityLevel int, hooks ...Controller) {
	lv := &l.levels[priorityLevel]
	lv.lock.Lock()
	lv.preHooks = append(lv.preHooks, hooks...)
	lv.lock.Unlock()
}

// PostRunAt implements LoopControl.
func (l *Loop) PostRunAt(priorityLevel int, hooks ...Controller) {
	lv := &l.levels[priorityLevel]
	lv.lock.Lock()
	lv.postHooks = append(lv.postHooks, hooks...)
	lv.lock.Unlock()
}

// PostMessage implements LoopControl.
func (l *Loop) PostMessage(msg Message) {
	l.lock.Lock()
	l.messages = append(l.messages, msg)
	l.lock.Unlock()
}

// TriggerNext implements LoopControl.
func (l *Loop) TriggerNext() {
	select {
	case l.wakeUpCh <- struct{}{}:
	default:
	}
}

func (l *Loop) runIteration(ctx context.Context, interval time.Duration) {
	iter := &iteration{Loop: l, time: time.Now()}
	l.lock.Lock()
	iter.messages, l.messages = l.messages, nil
	l.lock.Unlock()
	iter.ctx = context.WithValue(ctx, loopCtxKey{}, LoopControl(iter))
	for n := range l.levels {
		iter.priorityLevel = n
		l.levels[n].run(iter)
	}
	atomic.AddUint64(&l.iterations, 1)
	if elapsed := time.Since(iter.time); elapsed > interval {
		atomic.AddUint64(&l.overruns, 1)
		glog.Warningf("loop iteration took %v, interval %v", elapsed, interval)
	}
}

func (lv *level) run(iter *iteration) {
	lv.lock.Lock()
	hooks := lv.preHooks
	lv.preHooks = nil
	lv.lock.Unlock()
	runControllers(iter, hooks)

	runControllers(iter, lv.controllers)

	lv.lock.Lock()
	hooks = lv.postHooks
	lv.postHooks = nil
	lv.lock.Unlock()
	runControllers(iter, hooks)
}

func runControllers(iter *iteration, ctls []Controller) {
	for _, ctl := range ctls {
		if err := ctl.Control(iter); err != nil {
			glog.Errorf("controller error: %v", err)
		}
	}
}

// iteration implements ControlContext and MessageStore.
type iteration struct {
	*Loop
	ctx           context.Context
	time          time.Time
	priorityLevel int
	messages      []Message
}

func (t *iteration) Context() context.Context { return t.ctx }
func (t *iteration) Time() time.Time          { return t.time }
func (t *iteration) PriorityLevel() int       { return t.priorityLevel }
func (t *iteration) Messages() MessageStore   { return t }

func (t *iteration) PostRun(hooks ...Controller) {
	t.PostRunAt(t.priorityLevel, hooks...)
}

// ProcessMessages implements MessageStore. Messages added while
// processing are kept after the remaining ones.
func (t *iteration) ProcessMessages(proc MessageProcessor) {
	pending := t.messages
	t.messages = nil
	var remains []Message
	for n, msg := range pending {
		mctx := &messageContext{iter: t, msg: msg}
		proc.ProcessMessage(mctx)
		if !mctx.taken {
			remains = append(remains, msg)
		}
		if mctx.stop {
			remains = append(remains, pending[n+1:]...)
			break
		}
	}
	t.messages = append(remains, t.messages...)
}

// AddMessages implements MessageStore.
func (t *iteration) AddMessages(msgs ...Message) {
	t.messages = append(t.messages, msgs...)
}

type messageContext struct {
	iter  *iteration
	msg   Message
	taken bool
	stop  bool
}

func (c *messageContext) CurrentMessage() Message     { return c.msg }
func (c *messageContext) MessageTaken()               { c.taken = true }
func (c *messageContext) StopProcessing()             { c.stop = true }
func (c *messageContext) AddMessages(msgs ...Message) { c.iter.AddMessages(msgs...) }
