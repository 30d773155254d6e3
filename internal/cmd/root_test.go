package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luhtfiimanal/crowdlink/serial"
)

// echoDevice acknowledges every command; body lines are echoed back as
// occupancy rows before the ACK.
type echoDevice struct {
	mu     sync.Mutex
	in     chan string
	closed chan struct{}
	once   sync.Once
}

func newEchoDevice() *echoDevice {
	return &echoDevice{in: make(chan string, 64), closed: make(chan struct{})}
}

func (d *echoDevice) ReadLine() (string, error) {
	select {
	case l := <-d.in:
		return l, nil
	case <-d.closed:
		return "", serial.ErrClosed
	case <-time.After(10 * time.Millisecond):
		return "", serial.ErrReadTimeout
	}
}

func (d *echoDevice) WriteLine(line, _ string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch line {
	case "RESET", "FLUSH":
	default:
		d.in <- "07/24/05," + line + ",1"
		d.in <- "ERR=" + line
	}
	d.in <- "ACK"
	return nil
}

func (d *echoDevice) Flush() error { return nil }

func (d *echoDevice) Close() error {
	d.once.Do(func() { close(d.closed) })
	return nil
}

func withOpener(t *testing.T, open func(serial.Config) (serial.Port, error)) {
	t.Helper()
	orig := openPort
	openPort = open
	t.Cleanup(func() { openPort = orig })
}

func newTestRoot() (*RootCommand, *bytes.Buffer, *bytes.Buffer) {
	rc := NewRootCommand()
	var stdout, stderr bytes.Buffer
	rc.stdout = &stdout
	rc.stderr = &stderr
	return rc, &stdout, &stderr
}

func writeSettleFreeConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	content := "serial:\n  settle: 0s\npaths:\n  results_dir: " + filepath.Join(dir, "results") + "\n  data_dir: " + dir + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestVersionCommand(t *testing.T) {
	origVersion, origGOOS := runtimeVersion, runtimeGOOS
	runtimeVersion = func() string { return "go1.24.2" }
	runtimeGOOS = func() string { return "linux" }
	defer func() { runtimeVersion, runtimeGOOS = origVersion, origGOOS }()

	rc, stdout, _ := newTestRoot()
	require.NoError(t, rc.Execute([]string{"version"}))
	assert.Equal(t, "dev (go1.24.2/linux)\n", stdout.String())
}

func TestHelpListsCommands(t *testing.T) {
	rc, stdout, _ := newTestRoot()
	require.NoError(t, rc.Execute(nil))
	for _, name := range []string{"serve", "preprocess", "monitor", "stats", "version"} {
		assert.Contains(t, stdout.String(), name)
	}
}

func TestUnknownCommand(t *testing.T) {
	rc, _, stderr := newTestRoot()
	err := rc.Execute([]string{"frobnicate"})
	require.Error(t, err)
	assert.Contains(t, stderr.String(), `Unknown command "frobnicate"`)
}

func TestPreprocessCommand(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeSettleFreeConfig(t, dir)
	input := filepath.Join(dir, "flow.txt")
	require.NoError(t, os.WriteFile(input, []byte("08:00:00\n\n09:00:00\n"), 0o644))
	withOpener(t, func(serial.Config) (serial.Port, error) { return newEchoDevice(), nil })

	rc, stdout, _ := newTestRoot()
	require.NoError(t, rc.Execute([]string{"--config", cfgPath, "preprocess", input}))

	out := strings.TrimSpace(stdout.String())
	assert.Equal(t, filepath.Join(dir, "results", "flow_preprocessed.csv"), out)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "date,time,occupancy\n07/24/05,08:00:00,1\n07/24/05,09:00:00,1\n", string(data))
}

func TestPreprocessCommand_LinkFault(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeSettleFreeConfig(t, dir)
	input := filepath.Join(dir, "flow.txt")
	require.NoError(t, os.WriteFile(input, []byte("A\n"), 0o644))
	withOpener(t, func(serial.Config) (serial.Port, error) {
		return nil, errors.New("open failed: no such file or directory")
	})

	rc, _, _ := newTestRoot()
	err := rc.Execute([]string{"--config", cfgPath, "--port", "/dev/ttyACM9", "preprocess", input})
	require.ErrorContains(t, err, "serial error: open failed")
}

func TestStatsCommand(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeSettleFreeConfig(t, dir)
	csv := "date,time,occupancy\n07/24/05,08:00:00,3\n07/24/05,09:00:00,5\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "CalIt2_net_occupancy.csv"), []byte(csv), 0o644))

	rc, stdout, _ := newTestRoot()
	require.NoError(t, rc.Execute([]string{"--config", cfgPath, "stats", "-building", "calit2", "-date", "07/24/05"}))
	assert.Contains(t, stdout.String(), "Peak Occupancy: 5 at 09:00:00")
	assert.Contains(t, stdout.String(), "Total Count (Sum): 8")
}

func TestStatsCommand_RequiresFlags(t *testing.T) {
	dir := t.TempDir()
	rc, _, _ := newTestRoot()
	err := rc.Execute([]string{"--config", writeSettleFreeConfig(t, dir), "stats", "-building", "x"})
	require.ErrorContains(t, err, "-date")
}

func TestMonitorCommand(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeSettleFreeConfig(t, dir)
	dev := newEchoDevice()
	dev.in <- "GESTURE=1"
	dev.in <- "GESTURE=1"
	dev.in <- "GESTURE=0"
	withOpener(t, func(serial.Config) (serial.Port, error) { return dev, nil })

	rc, stdout, _ := newTestRoot()
	require.NoError(t, rc.Execute([]string{"--config", cfgPath, "monitor", "-interval", "50ms", "-count", "2"}))

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Current occupancy: 1 (left=1, right=2)", lines[1])
}
