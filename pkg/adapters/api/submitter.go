// Package api implements ports.Submitter against the platform's REST backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/netkrida/myhome-sub001/internal/logging"
	"github.com/netkrida/myhome-sub001/pkg/domain"
	"github.com/netkrida/myhome-sub001/pkg/flows"
)

// DefaultTimeout bounds one submission request.
const DefaultTimeout = 15 * time.Second

// maxBody caps how much of a response is read.
const maxBody = 1 << 20

// Submitter posts bound wizard submissions to the backend.
type Submitter struct {
	baseURL string
	flows   *flows.Registry
	client  *http.Client
	headers http.Header
	logger  *slog.Logger
}

// Option configures the Submitter.
type Option func(*Submitter)

// WithHTTPClient replaces the default client.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Submitter) {
		s.client = client
	}
}

// WithHeader adds a header to every request, e.g. an Authorization token.
func WithHeader(key, value string) Option {
	return func(s *Submitter) {
		s.headers.Add(key, value)
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Submitter) {
		s.logger = logger
	}
}

// New creates a Submitter for baseURL. registry resolves each flow's endpoint
// and binding.
func New(baseURL string, registry *flows.Registry, opts ...Option) *Submitter {
	s := &Submitter{
		baseURL: strings.TrimRight(baseURL, "/"),
		flows:   registry,
		client:  &http.Client{Timeout: DefaultTimeout},
		headers: make(http.Header),
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// errorBody is the error envelope of the backend. Field errors come either
// as a list or as a map of field to messages.
type errorBody struct {
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Errors  json.RawMessage `json:"errors"`
}

// Submit binds aggregate into the flow's typed body and posts it.
func (s *Submitter) Submit(ctx context.Context, flow string, aggregate domain.Aggregate) (json.RawMessage, error) {
	def, err := s.flows.Get(flow)
	if err != nil {
		return nil, err
	}
	body, err := def.Bind(aggregate)
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", flow, err)
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", flow, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+def.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, vs := range s.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", def.Endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	s.logger.Debug("submission response", "flow", flow, "status", resp.StatusCode)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if len(bytes.TrimSpace(raw)) == 0 || !json.Valid(raw) {
			return nil, nil
		}
		return json.RawMessage(raw), nil
	}

	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity {
		if fields := parseFieldErrors(raw); len(fields) > 0 {
			return nil, &domain.RemoteValidationError{Status: resp.StatusCode, Fields: fields}
		}
	}
	return nil, &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
}

// StatusError is a non-2xx answer without structured field detail.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend returned %d", e.Status)
	}
	return fmt.Sprintf("backend returned %d: %s", e.Status, truncate(e.Body, 200))
}

func parseFieldErrors(raw []byte) []domain.FieldError {
	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil || len(body.Errors) == 0 {
		return nil
	}

	var list []domain.FieldError
	if err := json.Unmarshal(body.Errors, &list); err == nil {
		return list
	}

	var byField map[string][]string
	if err := json.Unmarshal(body.Errors, &byField); err == nil {
		fields := make([]domain.FieldError, 0, len(byField))
		for _, name := range sortedKeys(byField) {
			for _, msg := range byField[name] {
				fields = append(fields, domain.FieldError{Field: name, Message: msg})
			}
		}
		return fields
	}

	var messages []string
	if err := json.Unmarshal(body.Errors, &messages); err == nil {
		fields := make([]domain.FieldError, 0, len(messages))
		for _, msg := range messages {
			fields = append(fields, domain.FieldError{Message: msg})
		}
		return fields
	}
	return nil
}
