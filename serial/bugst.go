package serial

import (
	"errors"
	"fmt"
	"sync"

	bugst "go.bug.st/serial"
)

// bugstPort is the portable driver backed by go.bug.st/serial. Unlike the
// termios driver it works on every platform that library supports.
type bugstPort struct {
	port      bugst.Port
	config    Config
	buf       lineBuffer
	done      chan struct{}
	closeOnce sync.Once
}

func openBugst(cfg Config) (*bugstPort, error) {
	p, err := bugst.Open(cfg.Device, &bugst.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   bugst.NoParity,
		StopBits: bugst.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open failed: %w", err)
	}
	if err := p.SetReadTimeout(cfg.ReadTimeout); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}
	return &bugstPort{
		port:   p,
		config: cfg,
		buf:    lineBuffer{delimiter: cfg.Delimiter},
		done:   make(chan struct{}),
	}, nil
}

func (s *bugstPort) WriteLine(line string, newline string) error {
	if s.closed() {
		return ErrClosed
	}
	_, err := s.port.Write([]byte(line + newline))
	return err
}

// ReadLine performs a single timed read; a read that returns no bytes is
// reported as ErrReadTimeout.
func (s *bugstPort) ReadLine() (string, error) {
	if line, ok := s.buf.next(); ok {
		return line, nil
	}
	raw := make([]byte, 4096)
	for {
		n, err := s.port.Read(raw)
		if s.closed() {
			return "", ErrClosed
		}
		if err != nil {
			var portErr *bugst.PortError
			if errors.As(err, &portErr) && portErr.Code() == bugst.PortClosed {
				return "", ErrClosed
			}
			return "", err
		}
		if n == 0 {
			return "", ErrReadTimeout
		}
		s.buf.write(raw[:n])
		if line, ok := s.buf.next(); ok {
			return line, nil
		}
	}
}

func (s *bugstPort) Flush() error {
	s.buf.reset()
	if err := s.port.ResetInputBuffer(); err != nil {
		return fmt.Errorf("flush input: %w", err)
	}
	return nil
}

func (s *bugstPort) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.port.Close()
	})
	return err
}

func (s *bugstPort) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
