package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/luhtfiimanal/crowdlink/gesture"
	"github.com/luhtfiimanal/crowdlink/link"
	"github.com/luhtfiimanal/crowdlink/occupancy"
	"github.com/luhtfiimanal/crowdlink/preprocess"
)

// Constants for route prefixing. Versioning is explicit to allow non-breaking additions.
const (
	APIVersion     = "v1"
	DefaultAddress = "127.0.0.1:8787"
)

// Link is the subset of link.Manager the API exposes.
type Link interface {
	Status() link.Status
	Occupancy() (gesture.Counts, error)
	ResetCounts()
	RunCommandSession(ctx context.Context, body []string, ackTimeout time.Duration) (link.Result, error)
}

// ServerOptions configures the HTTP server.
type ServerOptions struct {
	Addr              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	// WriteTimeout must outlast a full preprocessing session.
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	DataDir    string
	ResultsDir string
	AckTimeout time.Duration

	Logger zerolog.Logger
}

// Server hosts the HTTP API for the link service.
type Server struct {
	http   *http.Server
	link   Link
	logger zerolog.Logger
	opts   ServerOptions
}

// NewServer constructs a new API server bound to the provided link.
// The server does not start listening until Serve is called.
func NewServer(l Link, opts ServerOptions) *Server {
	if l == nil {
		panic("api.NewServer: link is nil")
	}
	if opts.Addr == "" {
		opts.Addr = DefaultAddress
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 5 * time.Second
	}
	if opts.ReadHeaderTimeout == 0 {
		opts.ReadHeaderTimeout = 2 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 10 * time.Minute
	}
	if opts.IdleTimeout == 0 {
		opts.IdleTimeout = 60 * time.Second
	}
	if opts.ShutdownTimeout == 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}
	if opts.ResultsDir == "" {
		opts.ResultsDir = "results"
	}
	if opts.AckTimeout == 0 {
		opts.AckTimeout = link.DefaultAckTimeout
	}

	mux := http.NewServeMux()
	s := &Server{
		link:   l,
		logger: opts.Logger,
		opts:   opts,
		http: &http.Server{
			Addr:              opts.Addr,
			Handler:           withRequestLogging(mux, opts.Logger),
			ReadTimeout:       opts.ReadTimeout,
			ReadHeaderTimeout: opts.ReadHeaderTimeout,
			WriteTimeout:      opts.WriteTimeout,
			IdleTimeout:       opts.IdleTimeout,
			BaseContext: func(net.Listener) context.Context {
				return context.Background()
			},
		},
	}

	mux.HandleFunc("/"+APIVersion+"/healthz", s.handleHealthz)
	mux.HandleFunc("/"+APIVersion+"/status", s.handleStatus)
	mux.HandleFunc("/"+APIVersion+"/occupancy", s.handleOccupancy)
	mux.HandleFunc("/"+APIVersion+"/occupancy/reset", s.handleReset)
	mux.HandleFunc("/"+APIVersion+"/preprocess", s.handlePreprocess)
	mux.HandleFunc("/"+APIVersion+"/statistics", s.handleStatistics)

	return s
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// Serve listens until Stop is called. A graceful stop returns nil.
func (s *Server) Serve() error {
	s.logger.Info().Str("addr", s.http.Addr).Msg("api listening")
	if err := s.http.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server, waiting up to ShutdownTimeout.
func (s *Server) Stop(ctx context.Context) error {
	timeout := s.opts.ShutdownTimeout
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": TimeNow().UTC().Format(time.RFC3339),
	})
}

// handleStatus reports port, baud and the sticky fault (or null).
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, fromStatus(s.link.Status()))
}

// handleOccupancy returns the live gesture counts. A dead link yields 503.
func (s *Server) handleOccupancy(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	counts, err := s.link.Occupancy()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, fromCounts(counts))
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	s.link.ResetCounts()
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "Occupancy counters reset to zero.",
		"timestamp": TimeNow().UTC().Format(time.RFC3339),
	})
}

// handlePreprocess runs a command session over the posted file.
// Errors:
//   - 400 for malformed JSON or a missing input_path
//   - 404 when the input file does not exist
//   - 503 when the link is faulted or not yet initialized
//   - 504 when the device missed an ACK
func (s *Server) handlePreprocess(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	var req PreprocessRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.InputPath == "" {
		writeError(w, http.StatusBadRequest, "input_path is required")
		return
	}

	res, err := preprocess.Run(r.Context(), s.link, req.InputPath, preprocess.Options{
		ResultsDir: s.opts.ResultsDir,
		AckTimeout: s.opts.AckTimeout,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("input", req.InputPath).Msg("preprocess failed")
		writeError(w, preprocessStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, fromOutcome(res))
}

func preprocessStatus(err error) int {
	var fault *link.ConnectionFault
	switch {
	case errors.Is(err, preprocess.ErrInputNotFound):
		return http.StatusNotFound
	case errors.Is(err, link.ErrSessionTimeout):
		return http.StatusGatewayTimeout
	case errors.As(err, &fault), errors.Is(err, link.ErrNotInitialized):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// handleStatistics summarizes historical occupancy for one building and date.
func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	query := occupancy.Query{
		Building: q.Get("building"),
		Date:     q.Get("date"),
		Start:    q.Get("start_time"),
		End:      q.Get("end_time"),
	}
	if query.Building == "" || query.Date == "" {
		writeError(w, http.StatusBadRequest, "building and date are required")
		return
	}

	rep, err := occupancy.Statistics(s.opts.DataDir, query)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, occupancy.ErrBuildingNotFound), errors.Is(err, occupancy.ErrNoData):
			status = http.StatusNotFound
		case errors.Is(err, occupancy.ErrInvalidBuilding):
			status = http.StatusBadRequest
		case errors.Is(err, occupancy.ErrMissingColumn):
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, fromReport(rep))
}
