// Package scheduler serializes calls into a slow, cancellable render function.
//
// A [Scheduler] accepts any number of [Scheduler.Submit] calls and keeps at
// most one render in flight. Submitting while a render runs cancels it; the
// newest source waits until the cancelled call has actually returned and then
// renders. Sources submitted while waiting replace each other, so a burst of
// submits costs at most one cancelled render plus one real one.
//
// Only surviving renders reach the callbacks, together with the source they
// rendered. A render whose context was cancelled is dropped silently,
// whatever it returned. The scheduler checks for a newer submit once more
// right before calling back, but a Submit landing between that check and the
// callback still sees the older result delivered first; the newer source is
// rendered and reported right after it.
//
// # States
//
//	Idle ──Submit──▶ Running ──done──▶ Idle
//	                   │
//	                Submit
//	                   ▼
//	               Cancelling ──cancelled render returns──▶ Running(pending)
//
// Close moves any state to Stopped, which is terminal.
package scheduler

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/modgraph/pkg/observability"
)

// RenderFunc renders graph source text into image bytes. It must return
// promptly once ctx is cancelled.
type RenderFunc func(ctx context.Context, source string) ([]byte, error)

// State is the scheduler's lifecycle state.
type State int

const (
	Idle State = iota
	Running
	Cancelling
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Cancelling:
		return "cancelling"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// job is one render attempt.
type job struct {
	seq      uint64
	source   string
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	started  time.Time
	finished bool
	timer    *time.Timer
}

// Scheduler runs renders one at a time and reports only the latest result.
type Scheduler struct {
	render    RenderFunc
	onSuccess func(source string, img []byte)
	onFailure func(source string, err error)

	logger        *log.Logger
	cancelTimeout time.Duration

	mu      sync.Mutex
	state   State
	current *job
	pending string
	seq     uint64
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger for scheduling diagnostics.
func WithLogger(l *log.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCancelTimeout bounds how long a cancelled render may keep running
// before the scheduler gives up on it. An abandoned render keeps its
// goroutine until it returns, but its result is discarded and the pending
// source starts immediately. Zero (the default) waits indefinitely.
func WithCancelTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		s.cancelTimeout = d
	}
}

// New creates an idle scheduler. onSuccess and onFailure may be nil; they are
// called from the render goroutine, never while the scheduler's lock is held,
// so they may call [Scheduler.Submit].
func New(render RenderFunc, onSuccess func(source string, img []byte), onFailure func(source string, err error), opts ...Option) *Scheduler {
	if onSuccess == nil {
		onSuccess = func(string, []byte) {}
	}
	if onFailure == nil {
		onFailure = func(string, error) {}
	}
	s := &Scheduler{
		render:    render,
		onSuccess: onSuccess,
		onFailure: onFailure,
		logger:    log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit requests a render of source. It never blocks on the render itself.
func (s *Scheduler) Submit(source string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case Idle:
		s.start(source)
	case Running:
		s.pending = source
		s.state = Cancelling
		if !s.current.finished {
			s.logger.Debug("cancelling render", "seq", s.current.seq)
			s.current.cancel()
			s.armTimeout(s.current)
		}
	case Cancelling:
		s.pending = source
	case Stopped:
		s.logger.Debug("submit after close ignored")
	}
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Close stops the scheduler. It cancels the in-flight render and waits for
// it to return (bounded by the cancel timeout, if one is set). Pending and
// later submits are dropped.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.state == Stopped {
		s.mu.Unlock()
		return
	}
	s.state = Stopped
	s.pending = ""
	j := s.current
	s.mu.Unlock()

	if j == nil {
		return
	}
	j.cancel()

	var timeout <-chan time.Time
	if s.cancelTimeout > 0 {
		t := time.NewTimer(s.cancelTimeout)
		defer t.Stop()
		timeout = t.C
	}
	select {
	case <-j.done:
	case <-timeout:
		s.logger.Warn("render ignored cancellation; closing without it", "seq", j.seq)
	}
}

// start launches a render for source. Callers hold s.mu.
func (s *Scheduler) start(source string) {
	s.seq++
	ctx, cancel := context.WithCancel(context.Background())
	j := &job{
		seq:     s.seq,
		source:  source,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		started: time.Now(),
	}
	s.current = j
	s.pending = ""
	s.state = Running

	s.logger.Debug("render started", "seq", j.seq, "bytes", len(source))
	go s.run(j)
}

func (s *Scheduler) run(j *job) {
	defer close(j.done)
	defer j.cancel()

	observability.Preview().OnRenderStart(j.ctx, len(j.source))
	img, err := s.render(j.ctx, j.source)
	s.finish(j, img, err)
}

// finish decides what happens to a completed render.
func (s *Scheduler) finish(j *job, img []byte, err error) {
	elapsed := time.Since(j.started)

	s.mu.Lock()
	j.finished = true
	if j.timer != nil {
		j.timer.Stop()
	}
	if s.current != j {
		s.mu.Unlock()
		s.logger.Debug("discarding abandoned render", "seq", j.seq)
		return
	}

	cancelled := j.ctx.Err() != nil || errors.Is(err, context.Canceled)
	switch {
	case s.state == Stopped:
		s.current = nil
		s.mu.Unlock()
		return
	case s.state == Cancelling:
		s.start(s.pending)
		s.mu.Unlock()
		observability.Preview().OnRenderCancelled(j.ctx, elapsed)
		return
	case cancelled:
		s.current = nil
		s.state = Idle
		s.mu.Unlock()
		observability.Preview().OnRenderCancelled(j.ctx, elapsed)
		return
	}
	s.mu.Unlock()

	// The job stays current while callbacks run; a Submit arriving now moves
	// to Cancelling and is started below.
	observability.Preview().OnRenderComplete(j.ctx, len(img), elapsed, err)
	switch {
	case s.superseded(j):
		s.logger.Debug("dropping superseded render", "seq", j.seq)
	case err != nil:
		s.logger.Debug("render failed", "seq", j.seq, "error", err)
		s.onFailure(j.source, err)
	default:
		s.logger.Debug("render finished", "seq", j.seq, "bytes", len(img), "elapsed", elapsed)
		s.onSuccess(j.source, img)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != j {
		return
	}
	switch s.state {
	case Cancelling:
		s.start(s.pending)
	case Running:
		s.current = nil
		s.state = Idle
	case Stopped:
		s.current = nil
	}
}

// superseded reports whether a newer submit or Close arrived since j
// finished rendering.
func (s *Scheduler) superseded(j *job) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != j || s.state != Running
}

// armTimeout abandons j if it has not returned within the cancel timeout.
// Callers hold s.mu.
func (s *Scheduler) armTimeout(j *job) {
	if s.cancelTimeout <= 0 || j.timer != nil {
		return
	}
	j.timer = time.AfterFunc(s.cancelTimeout, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.current != j || s.state != Cancelling || j.finished {
			return
		}
		s.logger.Warn("render ignored cancellation; abandoning it", "seq", j.seq, "timeout", s.cancelTimeout)
		s.start(s.pending)
	})
}
