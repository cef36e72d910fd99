package core

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

type PollOutcome string

const (
	PollSucceeded PollOutcome = "succeeded"
	PollTimedOut  PollOutcome = "timed_out"
	PollErrored   PollOutcome = "errored"
	PollCancelled PollOutcome = "cancelled"
)

type PollOptions[R any] struct {
	Interval    time.Duration
	MaxAttempts int
	IsTerminal  func(R) bool
	// OnAttempt observes every result that was not discarded by Cancel.
	OnAttempt func(PollAttempt[R])
	// Metadata is attached to the timeout error.
	Metadata map[string]any
}

type PollAttempt[R any] struct {
	SessionID   string
	Attempt     int
	MaxAttempts int
	Result      R
	Terminal    bool
}

type PollResult[R any] struct {
	SessionID string
	Value     R
	Outcome   PollOutcome
	Attempts  int
	Err       error
}

type PollSnapshot[R any] struct {
	ID         string
	Attempt    int
	LastResult R
	HasResult  bool
	LastError  error
	Active     bool
}

// PollSession is one bounded run of status checks. Attempt 0 runs
// immediately, later attempts wait for a timer that Cancel stops.
type PollSession[R any] struct {
	ID string

	mu         sync.Mutex
	attempt    int
	lastResult R
	hasResult  bool
	lastError  error
	active     bool
	cancelled  bool
	timer      *time.Timer
	result     PollResult[R]
	cancelCh   chan struct{}
	cancelOnce sync.Once
	doneCh     chan struct{}
	doneOnce   sync.Once
}

// StartPoll begins a poll run in the background.
func StartPoll[R any](ctx context.Context, check func(context.Context) (R, error), options PollOptions[R]) *PollSession[R] {
	if ctx == nil {
		ctx = context.Background()
	}
	session := &PollSession[R]{
		ID:       ulid.Make().String(),
		active:   true,
		cancelCh: make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	go session.run(ctx, check, normalizePollOptions(options))
	return session
}

// Poll runs a poll to completion.
func Poll[R any](ctx context.Context, check func(context.Context) (R, error), options PollOptions[R]) PollResult[R] {
	session := StartPoll(ctx, check, options)
	<-session.doneCh
	return session.Result()
}

func normalizePollOptions[R any](options PollOptions[R]) PollOptions[R] {
	if options.Interval <= 0 {
		options.Interval = DefaultPollInterval
	}
	if options.MaxAttempts < 0 {
		options.MaxAttempts = 0
	}
	if options.IsTerminal == nil {
		options.IsTerminal = func(R) bool { return true }
	}
	return options
}

func (s *PollSession[R]) run(ctx context.Context, check func(context.Context) (R, error), options PollOptions[R]) {
	if check == nil {
		s.finish(PollErrored, NewValidationError("check", "poll check function is required"))
		return
	}
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			s.finish(PollCancelled, err)
			return
		}

		value, err := check(ctx)

		s.mu.Lock()
		if s.cancelled {
			// in-flight result after Cancel is dropped
			s.mu.Unlock()
			return
		}
		s.attempt = attempt + 1
		if err != nil {
			s.lastError = err
			s.mu.Unlock()
			s.finish(PollErrored, err)
			return
		}
		s.lastResult = value
		s.hasResult = true
		s.lastError = nil
		s.mu.Unlock()

		terminal := options.IsTerminal(value)
		s.notify(options, PollAttempt[R]{
			SessionID:   s.ID,
			Attempt:     attempt,
			MaxAttempts: options.MaxAttempts,
			Result:      value,
			Terminal:    terminal,
		})
		if terminal {
			s.finish(PollSucceeded, nil)
			return
		}
		if attempt >= options.MaxAttempts {
			metadata := map[string]any{"session_id": s.ID}
			maps.Copy(metadata, options.Metadata)
			s.finish(PollTimedOut, NewTimeoutError(attempt+1, metadata))
			return
		}
		if !s.wait(ctx, options.Interval) {
			return
		}
	}
}

// wait blocks for the interval and reports whether the loop should go on.
func (s *PollSession[R]) wait(ctx context.Context, interval time.Duration) bool {
	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		return false
	}
	timer := time.NewTimer(interval)
	s.timer = timer
	s.mu.Unlock()

	defer func() {
		timer.Stop()
		s.mu.Lock()
		s.timer = nil
		s.mu.Unlock()
	}()

	select {
	case <-timer.C:
		return true
	case <-s.cancelCh:
		return false
	case <-ctx.Done():
		s.finish(PollCancelled, ctx.Err())
		return false
	}
}

func (s *PollSession[R]) notify(options PollOptions[R], attempt PollAttempt[R]) {
	if options.OnAttempt == nil {
		return
	}
	s.mu.Lock()
	cancelled := s.cancelled
	s.mu.Unlock()
	if cancelled {
		return
	}
	options.OnAttempt(attempt)
}

// Cancel stops scheduling further attempts. A check already in flight is not
// interrupted but its result is discarded. Cancel is not an error.
func (s *PollSession[R]) Cancel() {
	if s == nil {
		return
	}
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.cancelled = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()
	s.cancelOnce.Do(func() { close(s.cancelCh) })
	s.finish(PollCancelled, nil)
}

// Wait blocks until the run ends or ctx is done.
func (s *PollSession[R]) Wait(ctx context.Context) (PollResult[R], error) {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-s.doneCh:
		return s.Result(), nil
	case <-ctx.Done():
		return PollResult[R]{}, ctx.Err()
	}
}

func (s *PollSession[R]) Done() <-chan struct{} {
	return s.doneCh
}

func (s *PollSession[R]) Result() PollResult[R] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

func (s *PollSession[R]) Snapshot() PollSnapshot[R] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return PollSnapshot[R]{
		ID:         s.ID,
		Attempt:    s.attempt,
		LastResult: s.lastResult,
		HasResult:  s.hasResult,
		LastError:  s.lastError,
		Active:     s.active,
	}
}

func (s *PollSession[R]) finish(outcome PollOutcome, err error) {
	s.doneOnce.Do(func() {
		s.mu.Lock()
		s.active = false
		s.result = PollResult[R]{
			SessionID: s.ID,
			Value:     s.lastResult,
			Outcome:   outcome,
			Attempts:  s.attempt,
			Err:       err,
		}
		s.mu.Unlock()
		close(s.doneCh)
	})
}
