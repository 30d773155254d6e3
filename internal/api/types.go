package api

import (
	"time"

	"github.com/luhtfiimanal/crowdlink/gesture"
	"github.com/luhtfiimanal/crowdlink/link"
	"github.com/luhtfiimanal/crowdlink/occupancy"
	"github.com/luhtfiimanal/crowdlink/preprocess"
)

// Public JSON types returned by the API. They are decoupled from the link and
// occupancy types so those can change without breaking clients.

// StatusResponse is the payload for GET /v1/status. Error is null while the
// link is healthy.
type StatusResponse struct {
	Port        string  `json:"port"`
	Baud        int     `json:"baud"`
	Ready       bool    `json:"ready"`
	Session     string  `json:"session"`
	Error       *string `json:"error"`
	GeneratedAt string  `json:"generated_at"`
}

// CountsResponse is the payload for GET /v1/occupancy.
type CountsResponse struct {
	Left    uint64 `json:"left"`
	Right   uint64 `json:"right"`
	Present uint64 `json:"present"`
}

// PreprocessRequest is the body of POST /v1/preprocess.
type PreprocessRequest struct {
	InputPath string `json:"input_path"`
}

// PreprocessResponse reports where the occupancy table was written and which
// session produced it.
type PreprocessResponse struct {
	OutputPath   string `json:"output_path"`
	SessionID    string `json:"session_id"`
	SessionLines int    `json:"session_lines"`
	Rows         int    `json:"rows"`
}

// StatisticsResponse is the payload for GET /v1/statistics.
type StatisticsResponse struct {
	Building string  `json:"building"`
	Date     string  `json:"date"`
	Start    string  `json:"start_time,omitempty"`
	End      string  `json:"end_time,omitempty"`
	Total    int64   `json:"total"`
	Average  float64 `json:"average"`
	Peak     float64 `json:"peak"`
	PeakTime string  `json:"peak_time"`
	Minimum  float64 `json:"minimum"`
	Points   int     `json:"points"`
	Summary  string  `json:"summary"`
}

// APIError is a standard error payload.
type APIError struct {
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"` // RFC3339
}

// TimeNow abstracts time for tests; overridden in tests.
var TimeNow = func() time.Time { return time.Now() }

func fromStatus(st link.Status) StatusResponse {
	resp := StatusResponse{
		Port:        st.Port,
		Baud:        st.Baud,
		Ready:       st.Ready,
		Session:     st.Session.String(),
		GeneratedAt: TimeNow().UTC().Format(time.RFC3339),
	}
	if st.Err != nil {
		msg := st.Err.Error()
		resp.Error = &msg
	}
	return resp
}

func fromCounts(c gesture.Counts) CountsResponse {
	return CountsResponse{Left: c.Left, Right: c.Right, Present: c.Present}
}

func fromOutcome(o preprocess.Outcome) PreprocessResponse {
	return PreprocessResponse{
		OutputPath:   o.OutputPath,
		SessionID:    o.SessionID,
		SessionLines: o.SessionLines,
		Rows:         o.Rows,
	}
}

func fromReport(r occupancy.Report) StatisticsResponse {
	return StatisticsResponse{
		Building: r.Building,
		Date:     r.Date,
		Start:    r.Start,
		End:      r.End,
		Total:    int64(r.Total),
		Average:  r.Average,
		Peak:     r.Peak,
		PeakTime: r.PeakTime,
		Minimum:  r.Minimum,
		Points:   r.Points,
		Summary:  r.String(),
	}
}
