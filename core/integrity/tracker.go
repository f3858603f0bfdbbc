package integrity

import (
	"context"
	"sync"
	"time"

	"github.com/trezcool/evaledge/core"
)

type Options struct {
	SessionLength time.Duration // countdown start; DefaultSessionLength when zero
	ShrinkRatio   float64       // DefaultShrinkRatio when zero
	// Debounce coalesces violations reported within this window of the last counted one.
	// Zero keeps every signal a separate violation.
	Debounce time.Duration
	Clock    Clock // RealClock when nil

	// Status enables the remote monitor poll, every PollInterval (DefaultPollInterval when zero).
	Status       StatusFunc
	PollInterval time.Duration
	Logger       core.Logger

	// OnViolation is called after each counted violation, OnTerminate once, when the session terminates.
	// Both run outside the tracker lock and must not call Stop.
	OnViolation func(kind Kind, st State)
	OnTerminate func(st State)
}

type subscription struct {
	kind Kind
	id   int
}

// Tracker owns the IntegrityState of one exam session.
type Tracker struct {
	src  Source
	opts Options

	mu                sync.Mutex
	warningCount      int
	terminated        bool
	reason            Reason
	isFullScreen      bool
	baselineViewport  *Size
	baselineContainer *Size
	timeRemaining     int
	warningVisible    bool
	suppressedKeys    int
	lastViolation     time.Time

	started  bool
	released bool
	subs     []subscription
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func NewTracker(src Source, opts Options) *Tracker {
	if opts.SessionLength <= 0 {
		opts.SessionLength = DefaultSessionLength
	}
	if opts.ShrinkRatio <= 0 {
		opts.ShrinkRatio = DefaultShrinkRatio
	}
	if opts.Clock == nil {
		opts.Clock = RealClock
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Logger == nil {
		opts.Logger = nopLogger{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Tracker{
		src:           src,
		opts:          opts,
		timeRemaining: int(opts.SessionLength / time.Second),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Start captures the viewport baseline, subscribes to every signal and starts the countdown
// (and the monitor poll when enabled). It is a no-op on a started or released tracker.
func (t *Tracker) Start(viewport Size) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started || t.released {
		return
	}
	t.started = true
	if !viewport.IsZero() {
		t.baselineViewport = &viewport
	}

	t.subscribe(KindVisibility, func(sig Signal) { t.HandleVisibility(sig.Hidden) })
	t.subscribe(KindResize, func(sig Signal) { t.HandleResize(sig.Size) })
	t.subscribe(KindFullscreen, func(sig Signal) { t.HandleFullscreen(sig.Active) })
	t.subscribe(KindContainer, func(sig Signal) { t.HandleContainer(sig.Size) })
	t.subscribe(KindKey, func(sig Signal) { t.HandleKey(sig.Key) })

	t.wg.Add(1)
	go t.countdown(t.opts.Clock.NewTicker(time.Second))

	if t.opts.Status != nil {
		t.wg.Add(1)
		go t.poll(t.opts.Clock.NewTicker(t.opts.PollInterval))
	}
}

func (t *Tracker) subscribe(kind Kind, fn HandlerFunc) {
	t.subs = append(t.subs, subscription{kind: kind, id: t.src.Subscribe(kind, fn)})
}

// release unsubscribes every handler and stops the timers. Callers hold t.mu.
func (t *Tracker) release() {
	if t.released {
		return
	}
	t.released = true
	for _, s := range t.subs {
		t.src.Unsubscribe(s.kind, s.id)
	}
	t.subs = nil
	t.cancel()
}

// Stop releases every listener and timer and waits for the tracker goroutines to exit.
// The state is kept as is: a stopped tracker ignores every further signal.
func (t *Tracker) Stop() {
	t.mu.Lock()
	t.release()
	t.mu.Unlock()
	t.wg.Wait()
}

// Done is closed once the tracker is terminated or stopped.
func (t *Tracker) Done() <-chan struct{} {
	return t.ctx.Done()
}

func (t *Tracker) countdown(ticker Ticker) {
	defer t.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-t.ctx.Done():
			return
		case <-ticker.C():
			t.Tick()
		}
	}
}

// terminate sets the absorbing state. Callers hold t.mu and have checked !t.terminated.
func (t *Tracker) terminate(reason Reason) {
	t.terminated = true
	t.reason = reason
	t.warningVisible = false
	t.release()
}

func (t *Tracker) snapshot() State {
	st := State{
		WarningCount:   t.warningCount,
		Terminated:     t.terminated,
		Reason:         t.reason,
		IsFullScreen:   t.isFullScreen,
		TimeRemaining:  t.timeRemaining,
		WarningVisible: t.warningVisible,
		OverlayVisible: !t.isFullScreen && !t.terminated,
		SuppressedKeys: t.suppressedKeys,
	}
	if t.baselineViewport != nil {
		v := *t.baselineViewport
		st.BaselineViewport = &v
	}
	if t.baselineContainer != nil {
		c := *t.baselineContainer
		st.BaselineContainer = &c
	}
	switch {
	case t.terminated:
		st.Phase = PhaseTerminated
	case t.warningVisible:
		st.Phase = PhaseWarned
	default:
		st.Phase = PhaseActive
	}
	return st
}

// State returns a snapshot of the integrity state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot()
}

// outcome carries what happened under the lock to the callbacks run after it.
type outcome struct {
	kind       Kind
	counted    bool
	terminated bool
	state      State
}

func (t *Tracker) notify(o outcome) {
	if o.counted && t.opts.OnViolation != nil {
		t.opts.OnViolation(o.kind, o.state)
	}
	if o.terminated && t.opts.OnTerminate != nil {
		t.opts.OnTerminate(o.state)
	}
}

// recordViolation counts one violation. Callers hold t.mu.
func (t *Tracker) recordViolation(kind Kind) outcome {
	o := outcome{kind: kind}
	if t.released || t.terminated {
		return o
	}

	now := t.opts.Clock.Now()
	if t.opts.Debounce > 0 && !t.lastViolation.IsZero() && now.Sub(t.lastViolation) < t.opts.Debounce {
		return o
	}

	switch {
	case t.warningCount < MaxWarnings-1:
		t.warningCount++
		t.warningVisible = true
	case t.warningCount == MaxWarnings-1:
		t.warningCount = MaxWarnings
		t.terminate(ReasonWarnings)
		o.terminated = true
	default:
		return o
	}
	t.lastViolation = now
	o.counted = true
	o.state = t.snapshot()
	return o
}

// RecordViolation counts one violation of the given kind and reports whether it was counted.
// The first two violations surface the warning modal; the third terminates the session.
func (t *Tracker) RecordViolation(kind Kind) bool {
	t.mu.Lock()
	o := t.recordViolation(kind)
	t.mu.Unlock()

	t.notify(o)
	return o.counted
}

// DismissWarning hides the warning modal.
func (t *Tracker) DismissWarning() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.terminated {
		t.warningVisible = false
	}
}

// Tick moves the countdown one second. Reaching zero terminates the session whatever the warning count.
func (t *Tracker) Tick() {
	t.mu.Lock()
	if t.released || t.terminated {
		t.mu.Unlock()
		return
	}
	if t.timeRemaining > 0 {
		t.timeRemaining--
	}
	var o outcome
	if t.timeRemaining == 0 {
		t.terminate(ReasonTime)
		o = outcome{terminated: true, state: t.snapshot()}
	}
	t.mu.Unlock()

	t.notify(o)
}

func (t *Tracker) HandleVisibility(hidden bool) {
	if hidden {
		t.RecordViolation(KindVisibility)
	}
}

// HandleResize checks the viewport against the baseline. Without a baseline the first size becomes it.
func (t *Tracker) HandleResize(viewport Size) {
	t.mu.Lock()
	var o outcome
	switch {
	case t.released || t.terminated || viewport.IsZero():
	case t.baselineViewport == nil:
		t.baselineViewport = &viewport
	case viewport.ShrunkBelow(*t.baselineViewport, t.opts.ShrinkRatio):
		o = t.recordViolation(KindResize)
	}
	t.mu.Unlock()

	t.notify(o)
}

// HandleFullscreen mirrors the fullscreen status. Only a change from fullscreen to windowed is a violation,
// so a repeated exit report counts once.
func (t *Tracker) HandleFullscreen(active bool) {
	t.mu.Lock()
	if t.released || t.terminated {
		t.mu.Unlock()
		return
	}
	wasFull := t.isFullScreen
	t.isFullScreen = active
	var o outcome
	if wasFull && !active {
		o = t.recordViolation(KindFullscreen)
	}
	t.mu.Unlock()

	t.notify(o)
}

// HandleContainer checks a sample of the exam container size. The first sample becomes the baseline.
func (t *Tracker) HandleContainer(container Size) {
	t.mu.Lock()
	var o outcome
	switch {
	case t.released || t.terminated || container.IsZero():
	case t.baselineContainer == nil:
		t.baselineContainer = &container
	case container.ShrunkBelow(*t.baselineContainer, t.opts.ShrinkRatio):
		o = t.recordViolation(KindContainer)
	}
	t.mu.Unlock()

	t.notify(o)
}

// HandleKey reports whether ev must be suppressed. It never counts a violation.
func (t *Tracker) HandleKey(ev KeyEvent) bool {
	suppress := Suppress(ev)
	if suppress {
		t.mu.Lock()
		if !t.released && !t.terminated {
			t.suppressedKeys++
		}
		t.mu.Unlock()
	}
	return suppress
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}
