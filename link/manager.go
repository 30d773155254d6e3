package link

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/luhtfiimanal/crowdlink/gesture"
	"github.com/luhtfiimanal/crowdlink/serial"
)

// DefaultSettle is how long the device gets after the port opens before its
// output is trusted.
const DefaultSettle = 1500 * time.Millisecond

// Options configures a Manager.
type Options struct {
	Serial serial.Config
	// Settle is the post-open delay; zero means no delay.
	Settle time.Duration
	// Opener defaults to serial.Open.
	Opener Opener
	// Counter defaults to a fresh counter.
	Counter *gesture.Counter
	// Logger defaults to a disabled logger.
	Logger *zerolog.Logger
}

// Status describes the link for status queries.
type Status struct {
	Port    string
	Baud    int
	Ready   bool
	Session SessionState
	// Err is the sticky fault, ErrNotInitialized before the port is ready, or nil.
	Err error
}

// Manager owns the connection, the reader loop, the command session and the
// sticky fault.
type Manager struct {
	cfg     serial.Config
	counter *gesture.Counter
	queue   *Queue
	fault   *stickyFault
	reader  *Reader
	session *Session
	log     zerolog.Logger

	startOnce sync.Once
	started   atomic.Bool
	closeOnce sync.Once
}

func NewManager(opts Options) *Manager {
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	open := opts.Opener
	if open == nil {
		open = serial.Open
	}
	counter := opts.Counter
	if counter == nil {
		counter = gesture.NewCounter()
	}

	queue := NewQueue()
	fault := &stickyFault{}
	session := NewSession(queue, log.With().Str("component", "session").Logger())
	session.check = fault.err
	return &Manager{
		cfg:     opts.Serial,
		counter: counter,
		queue:   queue,
		fault:   fault,
		reader:  newReader(opts.Serial, open, opts.Settle, counter, queue, fault, log.With().Str("component", "reader").Logger()),
		session: session,
		log:     log,
	}
}

// Start launches the reader loop. Calls after the first are no-ops.
func (m *Manager) Start() {
	m.startOnce.Do(func() {
		m.started.Store(true)
		go m.reader.Run()
	})
}

// WaitReady blocks until the port is ready, the link has faulted or ctx ends.
func (m *Manager) WaitReady(ctx context.Context) error {
	select {
	case <-m.reader.ready:
		return m.fault.err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the sticky fault, if any.
func (m *Manager) Err() error {
	return m.fault.err()
}

func (m *Manager) Status() Status {
	st := Status{
		Port:    m.cfg.Device,
		Baud:    m.cfg.BaudRate,
		Ready:   m.reader.Port() != nil,
		Session: m.session.State(),
		Err:     m.fault.err(),
	}
	if st.Err == nil && !st.Ready {
		st.Err = ErrNotInitialized
	}
	return st
}

// RunCommandSession runs one exclusive session on the link. The sticky fault
// is checked again once the session lock is held, so a caller that waited
// behind another session never writes to a dead link.
func (m *Manager) RunCommandSession(ctx context.Context, body []string, ackTimeout time.Duration) (Result, error) {
	if err := m.fault.err(); err != nil {
		return Result{}, err
	}
	port := m.reader.Port()
	if port == nil {
		return Result{}, ErrNotInitialized
	}
	return m.session.Run(ctx, port, body, ackTimeout)
}

// Counts returns the live gesture counts.
func (m *Manager) Counts() gesture.Counts {
	return m.counter.Snapshot()
}

// Occupancy returns the live counts, or the sticky fault when the link is
// dead and the counts can no longer be trusted.
func (m *Manager) Occupancy() (gesture.Counts, error) {
	if err := m.fault.err(); err != nil {
		return gesture.Counts{}, err
	}
	return m.counter.Snapshot(), nil
}

func (m *Manager) ResetCounts() {
	m.counter.Reset()
	m.log.Info().Msg("occupancy counters reset")
}

// Close stops the reader and closes the port, waiting for the loop to exit.
func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		err = m.reader.Close()
		if m.started.Load() {
			<-m.reader.stopped
		}
	})
	return err
}
