package link

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

var (
	// ErrNotInitialized is returned when the serial port has not been opened yet.
	ErrNotInitialized = errors.New("serial port not initialized")
	// ErrSessionTimeout matches every *TimeoutError.
	ErrSessionTimeout = errors.New("timed out waiting for ACK")
)

// ConnectionFault records why the link died. Once recorded it is reported by
// every later operation; the link never reconnects on its own.
type ConnectionFault struct {
	Port string
	Err  error
}

func (f *ConnectionFault) Error() string {
	return fmt.Sprintf("serial error: %v", f.Err)
}

func (f *ConnectionFault) Unwrap() error { return f.Err }

// TimeoutError reports the command whose ACK never arrived. The link stays
// usable after it.
type TimeoutError struct {
	Command string
	Index   int
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for ACK to %q (command %d)", e.Timeout, e.Command, e.Index)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrSessionTimeout }

// stickyFault keeps the first fault it is given.
type stickyFault struct {
	p atomic.Pointer[ConnectionFault]
}

func (s *stickyFault) set(f *ConnectionFault) bool {
	return s.p.CompareAndSwap(nil, f)
}

func (s *stickyFault) err() error {
	if f := s.p.Load(); f != nil {
		return f
	}
	return nil
}
