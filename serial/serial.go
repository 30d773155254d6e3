package serial

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrClosed is returned by ReadLine and WriteLine once Close has been called.
	ErrClosed = errors.New("serial: port closed")
	// ErrReadTimeout is returned by ReadLine when no complete line arrived within
	// Config.ReadTimeout. It is not a failure; callers simply retry.
	ErrReadTimeout = errors.New("serial: read timeout")
)

// Driver names accepted in Config.Driver.
const (
	DriverTermios = "termios"
	DriverBugst   = "bugst"
)

// Config holds configuration parameters for opening a serial port.
type Config struct {
	Device      string
	BaudRate    int
	Delimiter   string // default "\n"
	ReadTimeout time.Duration
	Driver      string // default DriverTermios
}

// Port is a line-oriented serial connection.
//
// ReadLine is meant to be called from a single goroutine; WriteLine may be
// called concurrently with it.
type Port interface {
	ReadLine() (string, error)
	WriteLine(line string, newline string) error
	// Flush discards bytes received but not yet consumed.
	Flush() error
	Close() error
}

// Open opens cfg.Device with the configured driver.
func Open(cfg Config) (Port, error) {
	cfg = cfg.withDefaults()
	switch cfg.Driver {
	case DriverTermios:
		p, err := openTermios(cfg)
		if err != nil {
			return nil, err
		}
		return p, nil
	case DriverBugst:
		p, err := openBugst(cfg)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown serial driver %q", cfg.Driver)
	}
}

func (c Config) withDefaults() Config {
	if c.Delimiter == "" {
		c.Delimiter = "\n"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 500 * time.Millisecond
	}
	if c.Driver == "" {
		c.Driver = DriverTermios
	}
	return c
}

// lineBuffer accumulates raw bytes and splits complete lines off the front.
// Undecodable bytes are replaced rather than rejected.
type lineBuffer struct {
	pending   []byte
	delimiter string
}

func (b *lineBuffer) write(p []byte) {
	b.pending = append(b.pending, p...)
}

func (b *lineBuffer) next() (string, bool) {
	idx := strings.Index(string(b.pending), b.delimiter)
	if idx < 0 {
		return "", false
	}
	line := strings.ToValidUTF8(string(b.pending[:idx]), "�")
	b.pending = b.pending[idx+len(b.delimiter):]
	return line, true
}

func (b *lineBuffer) reset() {
	b.pending = b.pending[:0]
}
