package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv(EnvPort, "")
	t.Setenv(EnvBaud, "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "<defaults>", cfg.Source)
	assert.Equal(t, "/dev/ttyACM0", cfg.Serial.Port)
	assert.Equal(t, 230400, cfg.Serial.Baud)
	assert.Equal(t, "termios", cfg.Serial.Driver)
	assert.Equal(t, 500*time.Millisecond, cfg.Serial.ReadTimeout)
	assert.Equal(t, 1500*time.Millisecond, cfg.Serial.Settle)
	assert.Equal(t, 2*time.Second, cfg.Session.AckTimeout)
	assert.Equal(t, "results", cfg.Paths.ResultsDir)
}

func TestLoadExplicitMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.ErrorContains(t, err, "not found")
}

func TestLoadFromFileOverridesDefaults(t *testing.T) {
	t.Setenv(EnvPort, "")
	t.Setenv(EnvBaud, "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `serial:
  port: /dev/ttyUSB1
  baud: 115200
  driver: BUGST
  read_timeout: 250ms
  settle: 2s
session:
  ack_timeout: 5s
paths:
  data_dir: data
  results_dir: out/
api:
  listen: 0.0.0.0:9000
logging:
  level: DEBUG
  format: text
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.Source)
	assert.Equal(t, "/dev/ttyUSB1", cfg.Serial.Port)
	assert.Equal(t, 115200, cfg.Serial.Baud)
	assert.Equal(t, "bugst", cfg.Serial.Driver)
	assert.Equal(t, 250*time.Millisecond, cfg.Serial.ReadTimeout)
	assert.Equal(t, 2*time.Second, cfg.Serial.Settle)
	assert.Equal(t, 5*time.Second, cfg.Session.AckTimeout)
	assert.Equal(t, "data", cfg.Paths.DataDir)
	assert.Equal(t, "out", cfg.Paths.ResultsDir)
	assert.Equal(t, "0.0.0.0:9000", cfg.API.Listen)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)

	sp := cfg.SerialPort()
	assert.Equal(t, "/dev/ttyUSB1", sp.Device)
	assert.Equal(t, 115200, sp.BaudRate)
	assert.Equal(t, "\n", sp.Delimiter)
}

func TestLoadEnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv(EnvPort, "/dev/ttyACM3")
	t.Setenv(EnvBaud, "9600")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyACM3", cfg.Serial.Port)
	assert.Equal(t, 9600, cfg.Serial.Baud)
}

func TestLoadRejectsBadEnvBaud(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv(EnvBaud, "fast")

	_, err := Load("")
	require.ErrorContains(t, err, EnvBaud)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	bad := Default()
	bad.Serial.Driver = "usb"
	assert.ErrorContains(t, bad.Validate(), "serial.driver")

	bad = Default()
	bad.Session.AckTimeout = 0
	assert.ErrorContains(t, bad.Validate(), "ack_timeout")

	bad = Default()
	bad.Logging.Level = "verbose"
	assert.Error(t, bad.Validate())
}

func TestNormalizeFormat(t *testing.T) {
	got, err := NormalizeFormat("TEXT")
	require.NoError(t, err)
	assert.Equal(t, "console", got)

	_, err = NormalizeFormat("xml")
	assert.Error(t, err)
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent to testing.T.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { require.NoError(t, os.Chdir(prev)) })
}
