package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/netkrida/myhome-sub001/pkg/adapters/memory"
	"github.com/netkrida/myhome-sub001/pkg/domain"
	"github.com/netkrida/myhome-sub001/pkg/flows"
	"github.com/netkrida/myhome-sub001/pkg/persistence"
	"github.com/netkrida/myhome-sub001/pkg/ports"
	"github.com/netkrida/myhome-sub001/pkg/session"
	"github.com/netkrida/myhome-sub001/pkg/wizard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	handler http.Handler
	backend *memory.Store
	submit  func(context.Context, string, domain.Aggregate) (json.RawMessage, error)
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		backend: memory.NewStore(),
		submit: func(context.Context, string, domain.Aggregate) (json.RawMessage, error) {
			return json.RawMessage(`{"id":"rt-1"}`), nil
		},
	}
	sub := ports.SubmitterFunc(func(ctx context.Context, flow string, agg domain.Aggregate) (json.RawMessage, error) {
		return f.submit(ctx, flow, agg)
	})
	mgr := session.NewManager(flows.Default(), persistence.NewAdapter(f.backend), sub,
		session.WithControllerOptions(wizard.WithDebounce(0)))
	f.handler = NewHandler(mgr, opts...)
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 && strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w, out
}

const base = "/sessions/s1/wizards/room-type-create"

const (
	validDetails = `{"data":{"property_id":"p-1","name":"Deluxe","size_m2":12,"capacity":2}}`
	validPricing = `{"data":{"monthly_price":1500000}}`
)

func currentIndex(t *testing.T, body map[string]any) int {
	t.Helper()
	state, ok := body["state"].(map[string]any)
	require.True(t, ok, "response carries state: %v", body)
	idx, _ := state["current_index"].(float64)
	return int(idx)
}

func TestHealthAndInfo(t *testing.T) {
	f := newFixture(t, WithVersion("1.2.3"))

	w, body := f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])

	_, body = f.do(t, http.MethodGet, "/info", "")
	assert.Equal(t, "1.2.3", body["version"])
}

func TestListFlows(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/flows", nil)
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)

	var out []struct {
		Name  string `json:"name"`
		Steps []struct {
			ID      string `json:"id"`
			Persist string `json:"persist"`
		} `json:"steps"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Len(t, out, 3)
	assert.Equal(t, flows.PropertyFlow, out[0].Name)
	assert.Equal(t, "always", out[0].Steps[2].Persist)
}

func TestWizardHappyPath(t *testing.T) {
	f := newFixture(t)

	w, body := f.do(t, http.MethodPost, base, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 0, currentIndex(t, body))
	assert.NotNil(t, body["diff"])

	w, body = f.do(t, http.MethodPut, base+"/steps/1", validDetails)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Nil(t, body["fields"])

	w, body = f.do(t, http.MethodPost, base+"/next", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, currentIndex(t, body))
	diff := body["diff"].(map[string]any)
	assert.EqualValues(t, 1, diff["current_index"])

	w, _ = f.do(t, http.MethodPut, base+"/steps/2", validPricing)
	require.Equal(t, http.StatusOK, w.Code)

	w, body = f.do(t, http.MethodPost, base+"/next", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	state := body["state"].(map[string]any)
	assert.Equal(t, "completed", state["status"])
	receipt := body["receipt"].(map[string]any)
	assert.Equal(t, map[string]any{"id": "rt-1"}, receipt["response"])

	assert.Equal(t, 0, f.backend.Len(), "snapshots cleared after success")
}

func TestReportStep_FieldErrorsBlockNext(t *testing.T) {
	f := newFixture(t)

	w, body := f.do(t, http.MethodPut, base+"/steps/1", `{"data":{"name":"","capacity":0}}`)
	require.Equal(t, http.StatusOK, w.Code)
	fields, ok := body["fields"].([]any)
	require.True(t, ok)
	assert.NotEmpty(t, fields)

	w, body = f.do(t, http.MethodPost, base+"/next", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, body["error"], "complete this step")
	assert.Equal(t, 0, currentIndex(t, body))
}

func TestReportStep_ClientVeto(t *testing.T) {
	f := newFixture(t)

	w, _ := f.do(t, http.MethodPut, base+"/steps/1", `{"data":{"property_id":"p-1","name":"Deluxe","size_m2":12,"capacity":2},"valid":false}`)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = f.do(t, http.MethodPost, base+"/next", "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestReportStep_BadRequests(t *testing.T) {
	f := newFixture(t)

	w, _ := f.do(t, http.MethodPut, base+"/steps/0", validDetails)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = f.do(t, http.MethodPut, base+"/steps/9", validDetails)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = f.do(t, http.MethodPut, base+"/steps/1", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = f.do(t, http.MethodPut, "/sessions/s1/wizards/booking-create/steps/1", validDetails)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubmit_IncompleteNamesSteps(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPut, base+"/steps/1", validDetails)

	w, body := f.do(t, http.MethodPost, base+"/submit", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	missing := body["missing"].([]any)
	require.Len(t, missing, 1)
	assert.Equal(t, "pricing", missing[0].(map[string]any)["id"])
}

func TestSubmit_BackendFailures(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPut, base+"/steps/1", validDetails)
	f.do(t, http.MethodPost, base+"/next", "")
	f.do(t, http.MethodPut, base+"/steps/2", validPricing)

	f.submit = func(context.Context, string, domain.Aggregate) (json.RawMessage, error) {
		return nil, errors.New("connection reset")
	}
	w, body := f.do(t, http.MethodPost, base+"/next", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, domain.GenericSubmissionMessage, body["error"])
	assert.Equal(t, 1, currentIndex(t, body))

	f.submit = func(context.Context, string, domain.Aggregate) (json.RawMessage, error) {
		return nil, &domain.RemoteValidationError{Status: 422, Fields: []domain.FieldError{{Field: "details.name", Message: "taken"}}}
	}
	w, body = f.do(t, http.MethodPost, base+"/next", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	fields := body["fields"].([]any)
	assert.Equal(t, "details.name", fields[0].(map[string]any)["field"])

	assert.Equal(t, 3, f.backend.Len(), "two steps and the pointer survive")
}

func TestGoToAndBack(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPut, base+"/steps/1", validDetails)
	f.do(t, http.MethodPost, base+"/next", "")

	w, body := f.do(t, http.MethodPost, base+"/goto/1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, currentIndex(t, body))

	w, _ = f.do(t, http.MethodPost, base+"/back", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w, body = f.do(t, http.MethodPost, base+"/goto/2", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, currentIndex(t, body))
}

func TestOpen_InitialData(t *testing.T) {
	f := newFixture(t)

	w, body := f.do(t, http.MethodPost, base, `{"initial":{"1":{"property_id":"p-1","name":"Deluxe","size_m2":12,"capacity":2}}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	steps := body["steps"].([]any)
	assert.Equal(t, true, steps[0].(map[string]any)["recorded"])
	assert.Equal(t, true, steps[0].(map[string]any)["valid"])

	w, _ = f.do(t, http.MethodPost, base, `{"initial":{"zero":{}}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOpen_InitialDataIsValidated(t *testing.T) {
	f := newFixture(t)

	w, body := f.do(t, http.MethodPost, base, `{"initial":{"1":{"property_id":"p-1","name":"","size_m2":12,"capacity":2}}}`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
	assert.Contains(t, body["error"], "step 1")
	assert.NotEmpty(t, body["fields"])
	assert.Equal(t, 0, f.backend.Len())

	w, _ = f.do(t, http.MethodPost, base, `{"initial":{"1":"not an object"}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = f.do(t, http.MethodPost, "/sessions/s1/wizards/nope", `{"initial":{"1":{}}}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 0, f.backend.Len())
}

func TestDiscardAndSessions(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPut, base+"/steps/1", validDetails)

	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	assert.Contains(t, w.Body.String(), `"session":"s1"`)

	w, _ = f.do(t, http.MethodDelete, base, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 0, f.backend.Len())
}

func TestInvalidSession(t *testing.T) {
	f := newFixture(t)
	w, _ := f.do(t, http.MethodGet, "/sessions/a:b/wizards/room-create", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t, WithRateLimit(1, 2))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w, _ := f.do(t, http.MethodGet, "/flows", "")
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	w, _ := f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code, "health is not limited")
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, WithMetricsHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("myhome_wizard_step_visits_total 1\n"))
	})))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	assert.Contains(t, w.Body.String(), "myhome_wizard_step_visits_total")
}

func TestSubscribeEvents_ReceivesDiffs(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wSub := httptest.NewRecorder()
	reqSub := httptest.NewRequest(http.MethodGet, "/events?session=s1&flow=room-type-create", nil).WithContext(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.handler.ServeHTTP(wSub, reqSub)
	}()

	time.Sleep(100 * time.Millisecond) // Wait for subscription to register

	w, _ := f.do(t, http.MethodPut, base+"/steps/1", validDetails)
	require.Equal(t, http.StatusOK, w.Code)

	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	output := wSub.Body.String()
	assert.Contains(t, output, "event: ping")
	assert.Contains(t, output, `"flow":"s1:room-type-create"`)
	assert.Contains(t, output, `"step1"`)
}

func TestSubscribeEvents_RequiresTarget(t *testing.T) {
	f := newFixture(t)
	w, _ := f.do(t, http.MethodGet, "/events", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
