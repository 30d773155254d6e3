package link

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luhtfiimanal/crowdlink/serial"
)

// fakeDevice is a scripted serial.Port. Lines written by the host are passed
// to respond, whose return value is emitted back as device output.
type fakeDevice struct {
	mu      sync.Mutex
	written []string
	respond func(line string) []string

	in        chan string
	fault     chan error
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		in:     make(chan string, 256),
		fault:  make(chan error, 1),
		closed: make(chan struct{}),
	}
}

func (d *fakeDevice) ReadLine() (string, error) {
	select {
	case line := <-d.in:
		return line, nil
	case err := <-d.fault:
		return "", err
	case <-d.closed:
		return "", serial.ErrClosed
	case <-time.After(10 * time.Millisecond):
		return "", serial.ErrReadTimeout
	}
}

func (d *fakeDevice) WriteLine(line string, newline string) error {
	select {
	case <-d.closed:
		return serial.ErrClosed
	default:
	}
	d.mu.Lock()
	d.written = append(d.written, line+newline)
	respond := d.respond
	d.mu.Unlock()

	if respond != nil {
		d.emit(respond(line)...)
	}
	return nil
}

func (d *fakeDevice) Flush() error {
	for {
		select {
		case <-d.in:
		default:
			return nil
		}
	}
}

func (d *fakeDevice) Close() error {
	d.closeOnce.Do(func() { close(d.closed) })
	return nil
}

func (d *fakeDevice) emit(lines ...string) {
	for _, l := range lines {
		d.in <- l
	}
}

func (d *fakeDevice) setRespond(fn func(line string) []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.respond = fn
}

func (d *fakeDevice) Written() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.written...)
}

// ackAll acknowledges every command without extra output.
func ackAll(string) []string { return []string{Ack} }

func startManager(t *testing.T, dev *fakeDevice) *Manager {
	t.Helper()
	m := NewManager(Options{
		Serial: serial.Config{Device: "/dev/fake0", BaudRate: 230400},
		Opener: func(serial.Config) (serial.Port, error) { return dev, nil },
	})
	m.Start()
	t.Cleanup(func() { m.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.WaitReady(ctx))
	return m
}
