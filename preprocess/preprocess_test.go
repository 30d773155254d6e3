package preprocess

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luhtfiimanal/crowdlink/link"
)

type stubRunner struct {
	got    []string
	output []string
	err    error
}

func (s *stubRunner) RunCommandSession(_ context.Context, body []string, _ time.Duration) (link.Result, error) {
	s.got = body
	if s.err != nil {
		return link.Result{}, s.err
	}
	return link.Result{ID: "sess-1", Output: s.output}, nil
}

func TestTable(t *testing.T) {
	tests := []struct {
		name   string
		output []string
		want   []string
	}{
		{
			name:   "inserts header",
			output: []string{"07/24/05,00:00:00,0", "07/24/05,00:30:00,2"},
			want:   []string{Header, "07/24/05,00:00:00,0", "07/24/05,00:30:00,2"},
		},
		{
			name:   "keeps device header",
			output: []string{"READY", "date,time,occupancy", "07/24/05,00:00:00,1"},
			want:   []string{"date,time,occupancy", "07/24/05,00:00:00,1"},
		},
		{
			name:   "drops errors and short lines",
			output: []string{"ERR=bad,row,here", "a,b", "OK", "07/24/05,01:00:00,4"},
			want:   []string{Header, "07/24/05,01:00:00,4"},
		},
		{
			name:   "empty output",
			output: nil,
			want:   []string{Header},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Table(tt.output))
		})
	}
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, filepath.Join("results", "flow_preprocessed.csv"), OutputPath("results", "/data/flow.txt"))
	assert.Equal(t, filepath.Join("out", "raw_preprocessed.csv"), OutputPath("out", "raw"))
}

func TestReadCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flow.txt")
	require.NoError(t, os.WriteFile(path, []byte("A\n\n  B  \r\n\t\n"), 0o644))

	lines, err := ReadCommands(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, lines)
}

func TestReadCommands_Missing(t *testing.T) {
	_, err := ReadCommands(filepath.Join(t.TempDir(), "nope.txt"))
	require.ErrorIs(t, err, ErrInputNotFound)
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "flow.txt")
	require.NoError(t, os.WriteFile(input, []byte("A\nB\n"), 0o644))
	runner := &stubRunner{output: []string{"r1", "07/24/05,00:00:00,3", "ERR=overflow,x,y"}}

	res, err := Run(context.Background(), runner, input, Options{ResultsDir: filepath.Join(dir, "results")})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "results", "flow_preprocessed.csv"), res.OutputPath)
	assert.Equal(t, "sess-1", res.SessionID)
	assert.Equal(t, 3, res.SessionLines)
	assert.Equal(t, 1, res.Rows)
	assert.Equal(t, []string{"A", "B"}, runner.got)

	data, err := os.ReadFile(res.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, "date,time,occupancy\n07/24/05,00:00:00,3\n", string(data))
}

func TestRun_SessionError(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "flow.txt")
	require.NoError(t, os.WriteFile(input, []byte("A\n"), 0o644))
	runner := &stubRunner{err: &link.TimeoutError{Command: "A", Index: 1, Timeout: 2 * time.Second}}

	_, err := Run(context.Background(), runner, input, Options{ResultsDir: dir})
	require.ErrorIs(t, err, link.ErrSessionTimeout)
	assert.NoFileExists(t, filepath.Join(dir, "flow_preprocessed.csv"))
}
