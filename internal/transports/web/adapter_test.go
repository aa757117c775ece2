package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"kefctl/internal/core"
	"kefctl/internal/host"
	"kefctl/internal/speaker/memory"
	"kefctl/internal/storage"
	"kefctl/internal/transports/common"
)

type fakeStore struct {
	mu    sync.Mutex
	audit []storage.AuditEvent
}

func (s *fakeStore) SaveAudit(ctx context.Context, ev storage.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, ev)
	return nil
}
func (s *fakeStore) Write(ctx context.Context, ev storage.AuditEvent) error {
	return s.SaveAudit(ctx, ev)
}
func (s *fakeStore) QueryAudit(ctx context.Context, q storage.AuditQuery) ([]storage.AuditEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]storage.AuditEvent(nil), s.audit...), nil
}
func (s *fakeStore) SaveSnapshot(ctx context.Context, snap storage.StatusSnapshot) error { return nil }
func (s *fakeStore) LatestSnapshot(ctx context.Context) (storage.StatusSnapshot, error) {
	return storage.StatusSnapshot{}, storage.ErrNotFound
}
func (s *fakeStore) Close() error { return nil }

type testEnv struct {
	adapter *Adapter
	handler http.Handler
	device  *memory.Device
	store   *fakeStore
	logs    *bytes.Buffer
}

func newTestEnv(t *testing.T, dev *memory.Device, withStore bool, clock core.Clock) *testEnv {
	t.Helper()
	d := core.NewDispatcher(dev)
	t.Cleanup(d.Close)

	logs := &bytes.Buffer{}
	env := &testEnv{device: dev, logs: logs}
	svc := &common.Service{Dispatcher: d}
	deps := Deps{
		Service: svc,
		Logger:  slog.New(slog.NewTextHandler(logs, nil)),
		Clock:   clock,
		HostInfo: func(ctx context.Context) (host.Info, error) {
			return host.Info{Hostname: "test-node"}, nil
		},
	}
	if withStore {
		env.store = &fakeStore{}
		svc.AuditSink = env.store
		deps.Store = env.store
	}
	env.adapter = NewAdapter(deps, Config{MaxRequestBody: 1024})
	env.handler = env.adapter.routes()
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	var out map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %s %s: %v (body=%q)", method, path, err, rr.Body.String())
	}
	return rr, out
}

func TestStatusEndpoint(t *testing.T) {
	env := newTestEnv(t, memory.New(), false, nil)
	rr, body := env.do(t, http.MethodGet, "/api/status", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if body["success"] != true {
		t.Fatalf("expected success, got %v", body)
	}
	if body["volume"] != 0.3 || body["source"] != "Wifi" {
		t.Fatalf("unexpected status body: %v", body)
	}
	state, ok := body["state"].(map[string]interface{})
	if !ok || state["is_on"] != true {
		t.Fatalf("unexpected state: %v", body["state"])
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected X-Request-ID header")
	}
}

func TestStatusEndpointOffline(t *testing.T) {
	env := newTestEnv(t, memory.New(memory.WithOffline()), false, nil)
	rr, body := env.do(t, http.MethodGet, "/api/status", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("offline must still be 200, got %d", rr.Code)
	}
	if body["success"] != false || body["error"] != "speaker is offline" {
		t.Fatalf("unexpected body: %v", body)
	}
	if len(body) != 2 {
		t.Fatalf("offline body must only carry success and error: %v", body)
	}
}

func TestControlSetAndGetVolume(t *testing.T) {
	env := newTestEnv(t, memory.New(), false, nil)

	_, body := env.do(t, http.MethodPost, "/api/control/set_volume", `{"value":0.5}`)
	if body["success"] != true {
		t.Fatalf("set_volume failed: %v", body)
	}
	if _, ok := body["result"]; ok {
		t.Fatalf("set_volume must not return result: %v", body)
	}

	_, body = env.do(t, http.MethodPost, "/api/control/get_volume", "")
	if body["success"] != true || body["result"] != 0.5 {
		t.Fatalf("unexpected get_volume body: %v", body)
	}

	_, body = env.do(t, http.MethodPost, "/api/control/set_volume", `{"value":"0.25"}`)
	if body["success"] != true {
		t.Fatalf("string value must be accepted: %v", body)
	}
}

func TestControlValidationMakesNoDeviceCalls(t *testing.T) {
	dev := memory.New()
	env := newTestEnv(t, dev, false, nil)

	cases := []struct {
		path, body, want string
	}{
		{"/api/control/set_volume", "", "set_volume requires a value"},
		{"/api/control/set_source", `{"value":null}`, "set_source requires a value"},
		{"/api/control/explode", "", "unknown command"},
		{"/api/control/Mute", "", "unknown command"},
		{"/api/control/set_volume", `{"value":true}`, `set_volume: invalid value "true": not a number`},
	}
	for _, tc := range cases {
		rr, body := env.do(t, http.MethodPost, tc.path, tc.body)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", tc.path, rr.Code)
		}
		if body["success"] != false || body["error"] != tc.want {
			t.Fatalf("%s: got %v, want error %q", tc.path, body, tc.want)
		}
	}
	if ops := dev.Ops(); len(ops) != 0 {
		t.Fatalf("validation failures must not reach the device, got %v", ops)
	}
}

func TestControlInvalidBody(t *testing.T) {
	env := newTestEnv(t, memory.New(), false, nil)
	_, body := env.do(t, http.MethodPost, "/api/control/set_volume", `{not json`)
	if body["success"] != false || body["error"] != "invalid request body" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestControlBodyTooLarge(t *testing.T) {
	env := newTestEnv(t, memory.New(), false, nil)
	large := `{"value":"` + strings.Repeat("a", 4096) + `"}`
	_, body := env.do(t, http.MethodPost, "/api/control/set_source", large)
	if body["success"] != false || body["error"] != "invalid request body" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestControlOffline(t *testing.T) {
	dev := memory.New(memory.WithOffline())
	env := newTestEnv(t, dev, false, nil)
	_, body := env.do(t, http.MethodPost, "/api/control/mute", "")
	if body["success"] != false || body["error"] != "speaker is offline" {
		t.Fatalf("unexpected body: %v", body)
	}
	if dev.Muted() {
		t.Fatal("offline speaker must not be muted")
	}
}

func TestRequestIDReachesAudit(t *testing.T) {
	env := newTestEnv(t, memory.New(), true, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/control/mute", nil)
	req.Header.Set("X-Request-ID", "abc-1")
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)

	if rr.Header().Get("X-Request-ID") != "abc-1" {
		t.Fatalf("request id not echoed: %q", rr.Header().Get("X-Request-ID"))
	}
	if len(env.store.audit) != 1 {
		t.Fatalf("expected 1 audit event, got %d", len(env.store.audit))
	}
	ev := env.store.audit[0]
	if ev.RequestID != "abc-1" || ev.Source != "web" || ev.Command != "mute" || ev.Status != "ok" {
		t.Fatalf("unexpected audit event: %#v", ev)
	}
}

func TestInvalidRequestIDGetsReplaced(t *testing.T) {
	env := newTestEnv(t, memory.New(), false, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "bad id with spaces")
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)

	got := rr.Header().Get("X-Request-ID")
	if got == "" || got == "bad id with spaces" {
		t.Fatalf("expected generated request id, got %q", got)
	}
}

func TestAuditEndpoint(t *testing.T) {
	env := newTestEnv(t, memory.New(), false, nil)
	rr, body := env.do(t, http.MethodGet, "/api/audit", "")
	if rr.Code != http.StatusNotFound || body["success"] != false {
		t.Fatalf("expected 404 without store, got %d %v", rr.Code, body)
	}

	env = newTestEnv(t, memory.New(), true, nil)
	env.do(t, http.MethodPost, "/api/control/set_source", `{"value":"Aux"}`)
	env.do(t, http.MethodGet, "/api/status", "")
	rr, body = env.do(t, http.MethodGet, "/api/audit?limit=10", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	items, _ := body["items"].([]interface{})
	if len(items) != 1 {
		t.Fatalf("expected only the control command in audit, got %v", body["items"])
	}
	item := items[0].(map[string]interface{})
	if item["command"] != "set_source" || item["value"] != "Aux" {
		t.Fatalf("unexpected audit item: %v", item)
	}
}

func TestHealthEndpoint(t *testing.T) {
	dev := memory.New()
	env := newTestEnv(t, dev, false, nil)
	_, body := env.do(t, http.MethodGet, "/api/health", "")
	if body["status"] != "ok" || body["online"] != true {
		t.Fatalf("unexpected health: %v", body)
	}
	hostInfo, _ := body["host"].(map[string]interface{})
	if hostInfo["hostname"] != "test-node" {
		t.Fatalf("unexpected host: %v", body["host"])
	}

	dev.SetOnline(false)
	_, body = env.do(t, http.MethodGet, "/api/health", "")
	if body["status"] != "degraded" || body["online"] != false {
		t.Fatalf("unexpected health while offline: %v", body)
	}
}

func TestCommandsEndpoint(t *testing.T) {
	env := newTestEnv(t, memory.New(), false, nil)
	_, body := env.do(t, http.MethodGet, "/api/commands", "")
	items, _ := body["commands"].([]interface{})
	if len(items) != 12 {
		t.Fatalf("expected 12 commands, got %d", len(items))
	}
	found := false
	for _, raw := range items {
		item := raw.(map[string]interface{})
		if item["name"] == "set_volume" {
			found = true
			if item["requires_value"] != true || item["value_type"] != "float" {
				t.Fatalf("unexpected set_volume entry: %v", item)
			}
		}
	}
	if !found {
		t.Fatal("set_volume missing from command list")
	}
}

func TestMetricsRoute(t *testing.T) {
	d := core.NewDispatcher(memory.New())
	t.Cleanup(d.Close)
	a := NewAdapter(Deps{
		Service: &common.Service{Dispatcher: d},
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, "kefctl_up 1\n")
		}),
	}, Config{})

	rr := httptest.NewRecorder()
	a.routes().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "kefctl_up") {
		t.Fatalf("unexpected metrics response: %d %q", rr.Code, rr.Body.String())
	}
}

func TestStatusAccessLogIsThrottled(t *testing.T) {
	var (
		mu  sync.Mutex
		now = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		now = now.Add(d)
		mu.Unlock()
	}

	env := newTestEnv(t, memory.New(), false, clock)
	for _, step := range []time.Duration{0, 10 * time.Second, 60 * time.Second} {
		advance(step)
		rr, body := env.do(t, http.MethodGet, "/api/status", "")
		if rr.Code != http.StatusOK || body["success"] != true {
			t.Fatalf("suppressed log must not suppress the query: %d %v", rr.Code, body)
		}
	}
	env.do(t, http.MethodPost, "/api/control/mute", "")
	env.do(t, http.MethodPost, "/api/control/unmute", "")

	logs := env.logs.String()
	if got := strings.Count(logs, "path=/api/status"); got != 2 {
		t.Fatalf("expected 2 status access log lines, got %d:\n%s", got, logs)
	}
	if got := strings.Count(logs, "path=/api/control/"); got != 2 {
		t.Fatalf("expected every control request logged, got %d:\n%s", got, logs)
	}
}

func TestStartStop(t *testing.T) {
	d := core.NewDispatcher(memory.New())
	t.Cleanup(d.Close)
	a := NewAdapter(Deps{
		Service: &common.Service{Dispatcher: d},
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, Config{ListenAddr: "127.0.0.1:0"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := a.Start(ctx); err == nil {
		t.Fatal("second start must fail")
	}

	resp, err := http.Get("http://" + a.Addr() + "/api/status")
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	if err := a.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
