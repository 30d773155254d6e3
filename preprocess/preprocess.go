// Package preprocess turns a raw flow file into an occupancy table by pushing
// it through the device in a command session.
package preprocess

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/luhtfiimanal/crowdlink/link"
)

// Header is the first row of every generated table.
const Header = "date,time,occupancy"

// ErrInputNotFound is returned when the raw flow file does not exist.
var ErrInputNotFound = errors.New("input file not found")

// SessionRunner is the part of link.Manager a preprocessing run needs.
type SessionRunner interface {
	RunCommandSession(ctx context.Context, body []string, ackTimeout time.Duration) (link.Result, error)
}

// Options controls a Run.
type Options struct {
	ResultsDir string
	AckTimeout time.Duration
}

// ReadCommands loads the non-empty trimmed lines of path.
func ReadCommands(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrInputNotFound, path)
		}
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return lines, nil
}

// Table keeps the session output rows that look like CSV records (at least
// two commas) and are not ERR= reports, making sure the header comes first.
func Table(output []string) []string {
	rows := make([]string, 0, len(output)+1)
	for _, line := range output {
		if strings.Count(line, ",") < 2 || strings.HasPrefix(line, "ERR=") {
			continue
		}
		rows = append(rows, line)
	}
	if len(rows) == 0 || !strings.HasPrefix(rows[0], Header) {
		rows = append([]string{Header}, rows...)
	}
	return rows
}

// OutputPath is where the table for input is written.
func OutputPath(resultsDir, input string) string {
	base := filepath.Base(input)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(resultsDir, stem+"_preprocessed.csv")
}

// WriteTable writes rows newline-terminated to path, creating its directory.
func WriteTable(path string, rows []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure results directory: %w", err)
	}
	data := strings.Join(rows, "\n") + "\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		return fmt.Errorf("save output: %w", err)
	}
	return nil
}

// Outcome describes a finished preprocessing run.
type Outcome struct {
	OutputPath string
	SessionID  string
	// SessionLines counts every non-ACK line the device sent during the session.
	SessionLines int
	// Rows counts the data rows written, excluding the header.
	Rows int
}

// Run sends input through the device and saves the resulting table.
func Run(ctx context.Context, runner SessionRunner, input string, opts Options) (Outcome, error) {
	input = expandHome(input)
	commands, err := ReadCommands(input)
	if err != nil {
		return Outcome{}, err
	}

	res, err := runner.RunCommandSession(ctx, commands, opts.AckTimeout)
	if err != nil {
		return Outcome{}, fmt.Errorf("preprocessing failed: %w", err)
	}

	out := OutputPath(opts.ResultsDir, input)
	rows := Table(res.Output)
	if err := WriteTable(out, rows); err != nil {
		return Outcome{}, err
	}
	return Outcome{
		OutputPath:   out,
		SessionID:    res.ID,
		SessionLines: len(res.Output),
		Rows:         len(rows) - 1,
	}, nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
