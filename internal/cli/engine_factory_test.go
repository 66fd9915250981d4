package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/netkrida/myhome-sub001/internal/config"
	"github.com/netkrida/myhome-sub001/internal/logging"
	"github.com/netkrida/myhome-sub001/pkg/domain"
	"github.com/netkrida/myhome-sub001/pkg/flows"
	"github.com/netkrida/myhome-sub001/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func newTestApp(t *testing.T, mutate func(*config.Config)) *App {
	t.Helper()
	cfg := config.Default()
	cfg.Wizard.Debounce = 0
	if mutate != nil {
		mutate(cfg)
	}
	require.NoError(t, cfg.Validate())

	app, err := NewApp(cfg, logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

// saveRoomType reports the first room-type step for session sid and flushes it.
func saveRoomType(t *testing.T, app *App, sid string) {
	t.Helper()
	ctx := context.Background()
	ctl, _, err := app.Sessions.Open(ctx, sid, flows.RoomTypeFlow, nil)
	require.NoError(t, err)
	require.NoError(t, ctl.Report(0, flows.RoomTypeDetails{PropertyID: "p-1", Name: "Deluxe", SizeM2: 12, Capacity: 2}, true))
	ctl.Tick(ctx)
	ctl.Flush(ctx)
}

func TestNewApp_Memory(t *testing.T) {
	app := newTestApp(t, nil)
	saveRoomType(t, app, "s1")

	var out bytes.Buffer
	require.NoError(t, ListSessions(context.Background(), app, &out))
	assert.Contains(t, out.String(), "- s1 room-type-create")
}

func TestNewApp_FileWithEncryption(t *testing.T) {
	dir := t.TempDir()
	app := newTestApp(t, func(c *config.Config) {
		c.Storage.Session = config.BackendConfig{Driver: "file", Path: dir}
		c.Storage.EncryptionKey = testKey
	})
	saveRoomType(t, app, "s1")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		require.NoError(t, err)
		assert.NotContains(t, string(data), "Deluxe")
		assert.Contains(t, string(data), "__encrypted__")
	}

	// A second app over the same directory restores through decryption.
	reopened := newTestApp(t, func(c *config.Config) {
		c.Storage.Session = config.BackendConfig{Driver: "file", Path: dir}
		c.Storage.EncryptionKey = testKey
	})
	state, err := reopened.Sessions.Inspect(context.Background(), "s1", flows.RoomTypeFlow)
	require.NoError(t, err)
	assert.Contains(t, string(state.Payloads[domain.SlotFor(0)]), "Deluxe")
}

func TestNewApp_SQLiteLocalScope(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "wizard.db")
	localScope := func(c *config.Config) {
		c.Storage.Local = config.BackendConfig{Driver: "sqlite", Path: dbPath}
		c.Wizard.Scope = "local"
	}

	app := newTestApp(t, localScope)
	assert.Equal(t, persistence.ScopeLocal, app.Sessions.Scope())
	saveRoomType(t, app, "s1")

	assert.Empty(t, app.Store.Keys(ctx, "", persistence.ScopeSession), "session backend untouched")
	assert.Contains(t, app.Store.Keys(ctx, "", persistence.ScopeLocal), "s1:room-type-create-step-1")

	var out bytes.Buffer
	require.NoError(t, ListSessions(ctx, app, &out))
	assert.Contains(t, out.String(), "- s1 room-type-create")

	// A fresh process over the same database resumes the wizard.
	reopened := newTestApp(t, localScope)
	state, err := reopened.Sessions.Inspect(ctx, "s1", flows.RoomTypeFlow)
	require.NoError(t, err)
	assert.Contains(t, string(state.Payloads[domain.SlotFor(0)]), "Deluxe")

	require.NoError(t, RemoveSessions(ctx, reopened, []string{"s1"}, io.Discard))
	assert.Empty(t, reopened.Store.Keys(ctx, "", persistence.ScopeLocal))
}

func TestNewApp_RedisWithLock(t *testing.T) {
	mr := miniredis.RunT(t)
	app := newTestApp(t, func(c *config.Config) {
		c.Storage.Session = config.BackendConfig{
			Driver: "redis",
			Redis:  config.RedisConfig{Addr: mr.Addr(), Prefix: "test:", Lock: true},
		}
	})
	saveRoomType(t, app, "s1")

	assert.True(t, mr.Exists("test:s1:room-type-create-step-1"))
	assert.False(t, mr.Exists("test:lock:s1:room-type-create"), "lock released after the call")
}

func TestNewApp_RejectsBadKey(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.EncryptionKey = "short"
	_, err := NewApp(cfg, logging.NewNop())
	assert.Error(t, err)
}

func TestInspectSession(t *testing.T) {
	ctx := context.Background()
	app := newTestApp(t, nil)
	saveRoomType(t, app, "s1")

	var md bytes.Buffer
	require.NoError(t, InspectSession(ctx, app, "s1", flows.RoomTypeFlow, InspectOptions{Graph: true}, &md))
	assert.Contains(t, md.String(), "# s1 / room-type-create")
	assert.Contains(t, md.String(), "Deluxe")
	assert.Contains(t, md.String(), "```mermaid")
	assert.Contains(t, md.String(), "class step1 current;")

	var raw bytes.Buffer
	require.NoError(t, InspectSession(ctx, app, "s1", flows.RoomTypeFlow, InspectOptions{JSON: true}, &raw))
	var state domain.State
	require.NoError(t, json.Unmarshal(raw.Bytes(), &state))
	assert.True(t, state.Validity[0])

	err := InspectSession(ctx, app, "nobody", flows.RoomTypeFlow, InspectOptions{}, io.Discard)
	assert.ErrorContains(t, err, "no saved progress")

	err = InspectSession(ctx, app, "s1", "booking-create", InspectOptions{}, io.Discard)
	assert.ErrorIs(t, err, flows.ErrUnknownFlow)
}

func TestRemoveSessions(t *testing.T) {
	ctx := context.Background()
	app := newTestApp(t, nil)
	saveRoomType(t, app, "s1")
	saveRoomType(t, app, "s2")

	var out bytes.Buffer
	require.NoError(t, RemoveSessions(ctx, app, []string{"s1"}, &out))
	assert.Contains(t, out.String(), "Removed session 's1'")

	infos := app.Sessions.List(ctx)
	require.Len(t, infos, 1)
	assert.Equal(t, "s2", infos[0].Session)
}

func TestHandler_ServesHealthAndMetrics(t *testing.T) {
	app := newTestApp(t, nil)
	srv := httptest.NewServer(app.Handler("test"))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	saveRoomType(t, app, "s1")
	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "myhome_wizard_step_visits_total")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestListFlows(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, ListFlows(flows.Default(), true, &out))

	got := out.String()
	assert.Contains(t, got, "# property-create")
	assert.Contains(t, got, "Submits to `/api/rooms`.")
	assert.Contains(t, got, "persist with_draft")
	assert.Contains(t, got, "graph LR")
}

func TestServe_StopsOnCancel(t *testing.T) {
	app := newTestApp(t, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- Serve(ctx, app, "127.0.0.1:0", "test", io.Discard) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(ShutdownTimeout + time.Second):
		t.Fatal("server did not stop")
	}
}
