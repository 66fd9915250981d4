// Package http exposes live wizards over a JSON API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/netkrida/myhome-sub001/internal/logging"
	"github.com/netkrida/myhome-sub001/pkg/domain"
	"github.com/netkrida/myhome-sub001/pkg/flows"
	"github.com/netkrida/myhome-sub001/pkg/session"
	"github.com/netkrida/myhome-sub001/pkg/wizard"
)

// maxRequestBody caps step payloads.
const maxRequestBody = 1 << 20

// Server serves the wizard API.
type Server struct {
	Sessions *session.Manager
	Streams  *StreamManager

	version   string
	logger    *slog.Logger
	metrics   http.Handler
	rateLimit func(http.Handler) http.Handler
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithVersion sets the version reported by /info.
func WithVersion(version string) Option {
	return func(s *Server) {
		s.version = version
	}
}

// WithMetricsHandler mounts h (typically promhttp.Handler()) on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithRateLimit limits each client IP to rps requests per second.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		if rps > 0 {
			s.rateLimit = RateLimit(rps, burst, 0)
		}
	}
}

// NewHandler creates the HTTP handler for the wizards of mgr.
func NewHandler(mgr *session.Manager, opts ...Option) http.Handler {
	s := &Server{
		Sessions: mgr,
		version:  "dev",
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams = NewStreamManager(s.logger)

	r := chi.NewRouter()
	r.Use(enableCORS)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Group(func(r chi.Router) {
		if s.rateLimit != nil {
			r.Use(s.rateLimit)
		}
		r.Get("/flows", s.ListFlows)
		r.Get("/sessions", s.ListSessions)
		r.Get("/events", s.SubscribeEvents)

		r.Route("/sessions/{session}/wizards/{flow}", func(r chi.Router) {
			r.Post("/", s.Open)
			r.Get("/", s.GetState)
			r.Delete("/", s.Discard)
			r.Put("/steps/{step}", s.ReportStep)
			r.Post("/next", s.Next)
			r.Post("/back", s.Back)
			r.Post("/goto/{step}", s.GoTo)
			r.Post("/submit", s.Submit)
			r.Post("/reset", s.Reset)
		})
	})
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// StepView is one step as the client renders it.
type StepView struct {
	Index       int    `json:"index"`
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Valid       bool   `json:"valid"`
	Recorded    bool   `json:"recorded"`
	Reachable   bool   `json:"reachable"`
}

// WizardView is the response of every wizard endpoint.
type WizardView struct {
	Session  string              `json:"session"`
	Flow     string              `json:"flow"`
	State    *domain.State       `json:"state"`
	Steps    []StepView          `json:"steps"`
	Diff     *domain.StateDiff   `json:"diff,omitempty"`
	Fields   []domain.FieldError `json:"fields,omitempty"`
	Receipt  *domain.Receipt     `json:"receipt,omitempty"`
	Restored bool                `json:"restored,omitempty"`
}

// ErrorBody is the error envelope.
type ErrorBody struct {
	Error   string              `json:"error"`
	Missing []domain.StepRef    `json:"missing,omitempty"`
	Fields  []domain.FieldError `json:"fields,omitempty"`
	State   *domain.State       `json:"state,omitempty"`
}

// ReportRequest is the body of PUT .../steps/{step}.
type ReportRequest struct {
	Data json.RawMessage `json:"data"`
	// Valid lets the client veto a payload the server considers valid.
	Valid *bool `json:"valid,omitempty"`
}

// OpenRequest is the optional body of POST on a wizard.
type OpenRequest struct {
	// Initial maps 1-based step numbers to authoritative data (edit mode).
	Initial map[string]json.RawMessage `json:"initial,omitempty"`
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"app":     "myhome-wizard",
		"version": s.version,
	})
}

// ListFlows handles the GET /flows request.
func (s *Server) ListFlows(w http.ResponseWriter, r *http.Request) {
	type flowView struct {
		Name  string                  `json:"name"`
		Steps []domain.StepDescriptor `json:"steps"`
	}
	registry := s.Sessions.Flows()
	out := make([]flowView, 0)
	for _, name := range registry.Names() {
		def, err := registry.Get(name)
		if err != nil {
			continue
		}
		out = append(out, flowView{Name: name, Steps: def.Steps})
	}
	writeJSON(w, http.StatusOK, out)
}

// ListSessions handles the GET /sessions request.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Sessions.List(r.Context()))
}

// Open handles POST /sessions/{session}/wizards/{flow}: mount or restore.
func (s *Server) Open(w http.ResponseWriter, r *http.Request) {
	sessionID, flow := chi.URLParam(r, "session"), chi.URLParam(r, "flow")

	var body OpenRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorBody{Error: "invalid request body"})
			return
		}
	}
	initial := make(map[int]any, len(body.Initial))
	for k, v := range body.Initial {
		n, err := strconv.Atoi(k)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, ErrorBody{Error: fmt.Sprintf("invalid step number %q", k)})
			return
		}
		initial[n-1] = v
	}
	if len(initial) > 0 {
		def, err := s.Sessions.Flows().Get(flow)
		if err != nil {
			s.writeError(w, err, nil)
			return
		}
		// Initial data is recorded as valid, so it has to pass the step rules.
		for i := range def.Steps {
			raw, ok := initial[i]
			if !ok {
				continue
			}
			fields, err := def.Validate(i, raw.(json.RawMessage))
			if err != nil {
				writeJSON(w, http.StatusBadRequest, ErrorBody{Error: fmt.Sprintf("invalid initial data for step %d: %v", i+1, err)})
				return
			}
			if len(fields) > 0 {
				writeJSON(w, http.StatusUnprocessableEntity, ErrorBody{Error: fmt.Sprintf("invalid initial data for step %d", i+1), Fields: fields})
				return
			}
		}
	}

	ctl, restored, err := s.Sessions.Open(r.Context(), sessionID, flow, initial)
	if err != nil {
		s.writeError(w, err, nil)
		return
	}
	view := s.view(sessionID, flow, ctl, nil)
	view.Restored = restored
	view.Diff = domain.Diff(nil, view.State)
	writeJSON(w, http.StatusOK, view)
}

// GetState handles GET /sessions/{session}/wizards/{flow}.
func (s *Server) GetState(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(context.Context, *wizard.Controller) ([]domain.FieldError, error) {
		return nil, nil
	})
}

// Discard handles DELETE /sessions/{session}/wizards/{flow}.
func (s *Server) Discard(w http.ResponseWriter, r *http.Request) {
	sessionID, flow := chi.URLParam(r, "session"), chi.URLParam(r, "flow")
	if err := s.Sessions.Discard(r.Context(), sessionID, flow); err != nil {
		s.writeError(w, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReportStep handles PUT .../steps/{step}. The payload is checked against the
// flow's field rules; invalid payloads are still reported so the step
// validity drops, and the field errors are returned.
func (s *Server) ReportStep(w http.ResponseWriter, r *http.Request) {
	index, ok := stepIndex(w, r)
	if !ok {
		return
	}

	var body ReportRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&body); err != nil || len(body.Data) == 0 {
		writeJSON(w, http.StatusBadRequest, ErrorBody{Error: "invalid request body"})
		return
	}

	s.mutate(w, r, func(ctx context.Context, ctl *wizard.Controller) ([]domain.FieldError, error) {
		def, err := s.Sessions.Flows().Get(chi.URLParam(r, "flow"))
		if err != nil {
			return nil, err
		}
		fields, err := def.Validate(index, body.Data)
		if err != nil {
			if errors.Is(err, domain.ErrStepOutOfRange) {
				return nil, err
			}
			fields = []domain.FieldError{{Message: err.Error()}}
		}
		valid := len(fields) == 0 && (body.Valid == nil || *body.Valid)

		if err := ctl.Report(index, body.Data, valid); err != nil {
			return fields, err
		}
		ctl.Tick(ctx)
		return fields, nil
	})
}

// Next handles POST .../next. On the last step it submits.
func (s *Server) Next(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(ctx context.Context, ctl *wizard.Controller) ([]domain.FieldError, error) {
		return nil, ctl.GoNext(ctx)
	})
}

// Back handles POST .../back.
func (s *Server) Back(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(ctx context.Context, ctl *wizard.Controller) ([]domain.FieldError, error) {
		return nil, ctl.GoBack(ctx)
	})
}

// GoTo handles POST .../goto/{step}.
func (s *Server) GoTo(w http.ResponseWriter, r *http.Request) {
	index, ok := stepIndex(w, r)
	if !ok {
		return
	}
	s.mutate(w, r, func(ctx context.Context, ctl *wizard.Controller) ([]domain.FieldError, error) {
		return nil, ctl.GoTo(ctx, index)
	})
}

// Submit handles POST .../submit.
func (s *Server) Submit(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(ctx context.Context, ctl *wizard.Controller) ([]domain.FieldError, error) {
		return nil, ctl.Submit(ctx)
	})
}

// Reset handles POST .../reset.
func (s *Server) Reset(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(ctx context.Context, ctl *wizard.Controller) ([]domain.FieldError, error) {
		return nil, ctl.Reset(ctx)
	})
}

// mutate runs fn on the wizard of the request, then answers with the new
// state and broadcasts the diff to stream subscribers.
func (s *Server) mutate(w http.ResponseWriter, r *http.Request, fn func(context.Context, *wizard.Controller) ([]domain.FieldError, error)) {
	sessionID, flow := chi.URLParam(r, "session"), chi.URLParam(r, "flow")

	var (
		view   *WizardView
		before *domain.State
		fnErr  error
	)
	err := s.Sessions.Do(r.Context(), sessionID, flow, func(ctx context.Context, ctl *wizard.Controller) error {
		before = ctl.State()
		var fields []domain.FieldError
		fields, fnErr = fn(ctx, ctl)
		view = s.view(sessionID, flow, ctl, fields)
		return nil
	})
	if err != nil {
		s.writeError(w, err, nil)
		return
	}

	view.Diff = domain.Diff(before, view.State)
	if view.Diff != nil {
		if b, err := json.Marshal(view.Diff); err == nil {
			s.Streams.Broadcast(session.Namespace(sessionID, flow), string(b))
		}
	}

	if fnErr != nil {
		s.writeError(w, fnErr, view.State)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) view(sessionID, flow string, ctl *wizard.Controller, fields []domain.FieldError) *WizardView {
	state := ctl.State()
	steps := ctl.Steps()
	views := make([]StepView, len(steps))
	for i, st := range steps {
		views[i] = StepView{
			Index:       i,
			ID:          st.ID,
			Title:       st.Title,
			Description: st.Description,
			Valid:       state.Validity[i],
			Recorded:    state.Payloads.Has(domain.SlotFor(i)),
			Reachable:   i <= state.MaxVisited,
		}
	}
	return &WizardView{
		Session: sessionID,
		Flow:    flow,
		State:   state,
		Steps:   views,
		Fields:  fields,
		Receipt: ctl.Receipt(),
	}
}

// SubscribeEvents handles GET /events?session=...&flow=... (SSE of state diffs).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, ErrorBody{Error: "streaming not supported"})
		return
	}

	sessionID, flow := r.URL.Query().Get("session"), r.URL.Query().Get("flow")
	if sessionID == "" || flow == "" {
		writeJSON(w, http.StatusBadRequest, ErrorBody{Error: "session and flow are required"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.Streams.Subscribe(session.Namespace(sessionID, flow))
	defer cancel()
	s.logger.Debug("SSE: subscribed", "session", sessionID, "flow", flow)

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// writeError maps engine errors to HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error, state *domain.State) {
	body := ErrorBody{Error: err.Error(), State: state}
	status := http.StatusInternalServerError

	var (
		incomplete *domain.IncompleteError
		subErr     *domain.SubmissionError
	)
	switch {
	case errors.As(err, &incomplete):
		status = http.StatusUnprocessableEntity
		body.Missing = incomplete.Missing
	case errors.As(err, &subErr):
		body.Error = subErr.Message
		body.Fields = subErr.Fields
		status = http.StatusBadGateway
		if subErr.HasFieldErrors() {
			status = http.StatusUnprocessableEntity
		}
	case errors.Is(err, domain.ErrNavigationBlocked),
		errors.Is(err, domain.ErrCompleted),
		errors.Is(err, wizard.ErrClosed):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrStepOutOfRange),
		errors.Is(err, session.ErrInvalidSession):
		status = http.StatusBadRequest
	case errors.Is(err, flows.ErrUnknownFlow),
		errors.Is(err, domain.ErrSnapshotNotFound):
		status = http.StatusNotFound
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "status", status, "err", err)
	}
	writeJSON(w, status, body)
}

func stepIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	n, err := strconv.Atoi(chi.URLParam(r, "step"))
	if err != nil || n < 1 {
		writeJSON(w, http.StatusBadRequest, ErrorBody{Error: "step must be a positive number"})
		return 0, false
	}
	return n - 1, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
