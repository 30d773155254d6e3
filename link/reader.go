package link

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/luhtfiimanal/crowdlink/gesture"
	"github.com/luhtfiimanal/crowdlink/serial"
)

// Opener opens the physical port. serial.Open is the production opener.
type Opener func(cfg serial.Config) (serial.Port, error)

// Reader owns the serial port and runs the single read loop.
type Reader struct {
	cfg     serial.Config
	open    Opener
	settle  time.Duration
	counter *gesture.Counter
	queue   *Queue
	fault   *stickyFault
	log     zerolog.Logger

	mu   sync.RWMutex
	port serial.Port

	closing   atomic.Bool
	quit      chan struct{}
	quitOnce  sync.Once
	ready     chan struct{}
	readyOnce sync.Once
	stopped   chan struct{}
}

func newReader(cfg serial.Config, open Opener, settle time.Duration, counter *gesture.Counter, queue *Queue, fault *stickyFault, log zerolog.Logger) *Reader {
	return &Reader{
		cfg:     cfg,
		open:    open,
		settle:  settle,
		counter: counter,
		queue:   queue,
		fault:   fault,
		log:     log,
		quit:    make(chan struct{}),
		ready:   make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Run opens the port, waits for the device to settle, discards whatever it
// printed while booting and then reads until the port fails or Close is
// called. A failure is recorded as the sticky ConnectionFault.
func (r *Reader) Run() {
	defer close(r.stopped)

	port, err := r.open(r.cfg)
	if err != nil {
		r.fail(err)
		return
	}
	r.log.Info().Str("port", r.cfg.Device).Int("baud", r.cfg.BaudRate).Dur("settle", r.settle).Msg("serial port opened")

	if r.settle > 0 {
		timer := time.NewTimer(r.settle)
		select {
		case <-timer.C:
		case <-r.quit:
			timer.Stop()
			port.Close()
			return
		}
	}
	if err := port.Flush(); err != nil {
		port.Close()
		r.fail(fmt.Errorf("discard boot output: %w", err))
		return
	}

	r.mu.Lock()
	if r.closing.Load() {
		r.mu.Unlock()
		port.Close()
		return
	}
	r.port = port
	r.mu.Unlock()
	r.markReady()
	r.log.Debug().Msg("read loop started")

	for {
		raw, err := port.ReadLine()
		if errors.Is(err, serial.ErrReadTimeout) {
			continue
		}
		if err != nil {
			if r.closing.Load() {
				r.log.Debug().Msg("read loop stopped")
				return
			}
			r.fail(err)
			return
		}
		r.dispatch(raw)
	}
}

func (r *Reader) dispatch(raw string) {
	line := gesture.Classify(raw)
	switch line.Kind {
	case gesture.Event:
		r.counter.Update(line.Code)
		r.log.Debug().Stringer("gesture", line.Code).Msg("gesture event")
	case gesture.Plain:
		r.queue.Push(line.Text)
	default:
		if line.Text != "" {
			r.log.Debug().Str("line", line.Text).Msg("dropped malformed gesture line")
		}
	}
}

func (r *Reader) fail(err error) {
	f := &ConnectionFault{Port: r.cfg.Device, Err: err}
	if r.fault.set(f) {
		r.log.Error().Err(err).Str("port", r.cfg.Device).Msg("serial link failed")
	}
	r.markReady()
}

func (r *Reader) markReady() {
	r.readyOnce.Do(func() { close(r.ready) })
}

// Port returns the open port, or nil before the device has settled and
// after Close.
func (r *Reader) Port() serial.Port {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.port
}

// Close stops the loop and closes the port. It does not record a fault.
func (r *Reader) Close() error {
	r.closing.Store(true)
	r.quitOnce.Do(func() { close(r.quit) })

	r.mu.Lock()
	port := r.port
	r.port = nil
	r.mu.Unlock()
	if port == nil {
		return nil
	}
	return port.Close()
}
