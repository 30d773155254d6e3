package link

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Control lines framing every session, and the device's acknowledgment.
const (
	CommandReset = "RESET"
	CommandFlush = "FLUSH"
	Ack          = "ACK"
)

// DefaultAckTimeout bounds the wait for each ACK.
const DefaultAckTimeout = 2 * time.Second

// SessionState is the protocol state of a Session.
type SessionState int32

const (
	StateIdle SessionState = iota
	StateDraining
	StateSending
	StateAwaitingAck
	StateFailed
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDraining:
		return "draining"
	case StateSending:
		return "sending"
	case StateAwaitingAck:
		return "awaiting_ack"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// LineWriter is the write half of a serial.Port.
type LineWriter interface {
	WriteLine(line string, newline string) error
}

// Result is the outcome of a successful session.
type Result struct {
	ID string
	// Output holds every non-ACK line seen during the session, in arrival order.
	Output []string
}

// Session drives the RESET, body, FLUSH exchange. At most one Run is active
// at a time; it is the only consumer of the queue while it runs.
type Session struct {
	sem   chan struct{}
	queue *Queue
	state atomic.Int32
	log   zerolog.Logger

	// check, when set, is consulted once the session lock is held. A non-nil
	// error aborts the session before anything is written.
	check func() error
}

func NewSession(queue *Queue, log zerolog.Logger) *Session {
	return &Session{
		sem:   make(chan struct{}, 1),
		queue: queue,
		log:   log,
	}
}

// Commands frames body with RESET and FLUSH, dropping blank lines and
// trimming the rest.
func Commands(body []string) []string {
	out := make([]string, 0, len(body)+2)
	out = append(out, CommandReset)
	for _, line := range body {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return append(out, CommandFlush)
}

// State reports what the session is doing right now.
func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

// Run sends every command and waits up to ackTimeout for each ACK. A missing
// ACK aborts the whole session with a *TimeoutError and no further command is
// sent. Output gathered before a failure is discarded.
//
// A second caller blocks until the running session finishes or its own ctx
// ends.
func (s *Session) Run(ctx context.Context, w LineWriter, body []string, ackTimeout time.Duration) (Result, error) {
	if ackTimeout <= 0 {
		ackTimeout = DefaultAckTimeout
	}
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	defer func() { <-s.sem }()

	if s.check != nil {
		if err := s.check(); err != nil {
			return Result{}, err
		}
	}

	id := uuid.NewString()
	log := s.log.With().Str("session", id).Logger()

	s.state.Store(int32(StateDraining))
	if n := s.queue.Drain(); n > 0 {
		log.Debug().Int("lines", n).Msg("discarded stale lines")
	}

	commands := Commands(body)
	var output []string
	for i, cmd := range commands {
		s.state.Store(int32(StateSending))
		if err := w.WriteLine(cmd, "\n"); err != nil {
			s.state.Store(int32(StateFailed))
			return Result{}, fmt.Errorf("send %q: %w", cmd, err)
		}
		log.Debug().Int("index", i).Str("command", cmd).Msg("command sent")

		s.state.Store(int32(StateAwaitingAck))
		lines, err := s.awaitAck(ctx, ackTimeout)
		output = append(output, lines...)
		if err != nil {
			s.state.Store(int32(StateFailed))
			if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
				err = &TimeoutError{Command: cmd, Index: i, Timeout: ackTimeout}
			}
			log.Warn().Err(err).Int("index", i).Int("discarded_output", len(output)).Msg("session aborted")
			return Result{}, err
		}
	}

	s.state.Store(int32(StateIdle))
	log.Info().Int("commands", len(commands)).Int("output_lines", len(output)).Msg("session completed")
	return Result{ID: id, Output: output}, nil
}

// awaitAck pops lines until ACK, collecting everything else.
func (s *Session) awaitAck(ctx context.Context, timeout time.Duration) ([]string, error) {
	ctx, cancel := context.WithDeadline(ctx, time.Now().Add(timeout))
	defer cancel()

	var collected []string
	for {
		line, err := s.queue.Pop(ctx)
		if err != nil {
			return collected, err
		}
		if line == Ack {
			return collected, nil
		}
		collected = append(collected, line)
	}
}
