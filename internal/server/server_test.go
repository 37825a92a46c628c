package server

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

	"github.com/sundayezeilo/repocatalog/internal/config"
	"github.com/sundayezeilo/repocatalog/internal/repository"
)

type testApp struct {
	server  *httptest.Server
	store   *repository.MemoryStore
	cleanup func()
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:            "0",
			Host:            "127.0.0.1",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		App: config.AppConfig{
			Environment: "test",
			LogLevel:    "error",
			IDVersion:   4,
		},
		Observability: config.ObservabilityConfig{
			ServiceName:    "repocatalog-test",
			ServiceVersion: "test",
		},
	}
}

// record is the response shape for records created with well-typed fields.
type record struct {
	ID    string   `json:"id"`
	Title string   `json:"title"`
	URL   string   `json:"url"`
	Techs []string `json:"techs"`
	Likes int64    `json:"likes"`
}

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// setupTestApp wires a server around an empty in-memory store.
func setupTestApp(t *testing.T) *testApp {
	t.Helper()

	logger := setupTestLogger()
	store := repository.NewMemoryStore(nil)
	handler := repository.NewHandler(repository.HandlerConfig{
		Service: repository.NewService(store),
		Logger:  logger,
	})

	srv := New(testConfig(), logger, handler, store)
	ts := httptest.NewServer(srv.Handler())

	return &testApp{
		server:  ts,
		store:   store,
		cleanup: ts.Close,
	}
}

func (a *testApp) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, a.server.URL+path, r)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &v); err != nil {
		t.Fatalf("failed to decode response %q: %v", body, err)
	}
	return v
}

func TestHealthCheck(t *testing.T) {
	app := setupTestApp(t)
	defer app.cleanup()

	app.do(t, "POST", "/repositories", `{"title":"API"}`)

	resp := app.do(t, "GET", "/x/health", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	health := decode[map[string]any](t, resp)
	if health["status"] != "ok" {
		t.Errorf("expected status 'ok', got %v", health["status"])
	}
	if health["service"] != "repocatalog-test" {
		t.Errorf("expected service 'repocatalog-test', got %v", health["service"])
	}
	if health["repositories"] != float64(1) {
		t.Errorf("expected 1 repository, got %v", health["repositories"])
	}
}

func TestRepositoryLifecycle_E2E(t *testing.T) {
	app := setupTestApp(t)
	defer app.cleanup()

	resp := app.do(t, "POST", "/repositories", `{"title":"API","url":"http://x","techs":["node"]}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create: expected status 200, got %d", resp.StatusCode)
	}
	created := decode[record](t, resp)
	if created.Likes != 0 {
		t.Errorf("create: expected 0 likes, got %d", created.Likes)
	}

	list := decode[[]record](t, app.do(t, "GET", "/repositories?title=AP", ""))
	if len(list) != 1 || list[0].ID != created.ID {
		t.Fatalf("list: expected the created record, got %+v", list)
	}

	resp = app.do(t, "POST", "/repositories/"+created.ID+"/like", "")
	if liked := decode[record](t, resp); liked.Likes != 1 {
		t.Errorf("like: expected 1 like, got %d", liked.Likes)
	}

	resp = app.do(t, "PUT", "/repositories/"+created.ID, `{"title":"API 2","url":"http://z","techs":["go"],"likes":0}`)
	updated := decode[record](t, resp)
	if updated.Title != "API 2" || updated.Likes != 1 {
		t.Errorf("update: expected title 'API 2' with 1 like, got %+v", updated)
	}

	resp = app.do(t, "DELETE", "/repositories/"+created.ID, "")
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete: expected status 204, got %d", resp.StatusCode)
	}
	if body, _ := io.ReadAll(resp.Body); len(body) != 0 {
		t.Errorf("delete: expected empty body, got %q", body)
	}

	list = decode[[]record](t, app.do(t, "GET", "/repositories", ""))
	if len(list) != 0 {
		t.Errorf("list after delete: expected empty, got %+v", list)
	}
}

func TestInvalidAndUnknownIDs_E2E(t *testing.T) {
	app := setupTestApp(t)
	defer app.cleanup()

	app.do(t, "POST", "/repositories", `{"title":"API"}`)

	const unknown = "3f2b8c1e-9d4a-4e6b-8a7c-1d2e3f4a5b6c"

	tests := []struct {
		name        string
		method      string
		path        string
		body        string
		expectedMsg string
	}{
		{"update invalid", "PUT", "/repositories/123", `{"title":"x"}`, repository.InvalidIDMessage},
		{"delete invalid", "DELETE", "/repositories/123", "", repository.InvalidIDMessage},
		{"like invalid", "POST", "/repositories/123/like", "", repository.InvalidIDMessage},
		{"update unknown", "PUT", "/repositories/" + unknown, `{"title":"x"}`, repository.NotFoundMessage},
		{"delete unknown", "DELETE", "/repositories/" + unknown, "", repository.NotFoundMessage},
		{"like unknown", "POST", "/repositories/" + unknown + "/like", "", repository.NotFoundMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := app.do(t, tt.method, tt.path, tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d", resp.StatusCode)
			}

			errResp := decode[map[string]any](t, resp)
			if errResp["error"] != tt.expectedMsg {
				t.Errorf("expected error %q, got %v", tt.expectedMsg, errResp["error"])
			}
		})
	}

	list := decode[[]record](t, app.do(t, "GET", "/repositories", ""))
	if len(list) != 1 || list[0].Title != "API" || list[0].Likes != 0 {
		t.Errorf("store changed by rejected requests: %+v", list)
	}
}

func TestMalformedBody_E2E(t *testing.T) {
	app := setupTestApp(t)
	defer app.cleanup()

	resp := app.do(t, "POST", "/repositories", `{"title":`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", resp.StatusCode)
	}
	if app.store.Len() != 0 {
		t.Errorf("expected no records, got %d", app.store.Len())
	}
}

func TestConcurrentLikes_E2E(t *testing.T) {
	app := setupTestApp(t)
	defer app.cleanup()

	created := decode[record](t, app.do(t, "POST", "/repositories", `{"title":"API"}`))

	const n = 40
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, _ := http.NewRequest("POST", app.server.URL+"/repositories/"+created.ID+"/like", nil)
			resp, err := app.server.Client().Do(req)
			if err != nil {
				t.Errorf("like failed: %v", err)
				return
			}
			resp.Body.Close()
		}()
	}
	wg.Wait()

	list := decode[[]record](t, app.do(t, "GET", "/repositories", ""))
	if len(list) != 1 || list[0].Likes != n {
		t.Errorf("expected %d likes, got %+v", n, list)
	}
}

func TestMiddleware_E2E(t *testing.T) {
	app := setupTestApp(t)
	defer app.cleanup()

	t.Run("preflight", func(t *testing.T) {
		resp := app.do(t, "OPTIONS", "/repositories", "")
		if resp.StatusCode != http.StatusNoContent {
			t.Errorf("expected status 204, got %d", resp.StatusCode)
		}
		if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
			t.Errorf("expected allow origin '*', got %q", got)
		}
	})

	t.Run("request id echoed", func(t *testing.T) {
		req, _ := http.NewRequest("GET", app.server.URL+"/repositories", nil)
		req.Header.Set("X-Request-ID", "req-42")
		resp, err := app.server.Client().Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		if got := resp.Header.Get("X-Request-ID"); got != "req-42" {
			t.Errorf("expected request id 'req-42', got %q", got)
		}
	})

	t.Run("unknown route", func(t *testing.T) {
		resp := app.do(t, "GET", "/nothing-here", "")
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", resp.StatusCode)
		}
		if errResp := decode[map[string]any](t, resp); errResp["code"] != "not_found" {
			t.Errorf("expected JSON not_found body, got %v", errResp)
		}
	})
}

func TestUnroutedRequests_E2E(t *testing.T) {
	app := setupTestApp(t)
	defer app.cleanup()

	created := decode[record](t, app.do(t, "POST", "/repositories", `{"title":"API"}`))

	tests := []struct {
		name           string
		method         string
		path           string
		expectedStatus int
		expectedCode   string
	}{
		{"get with invalid id", "GET", "/repositories/123", http.StatusBadRequest, "invalid_id"},
		{"patch with invalid id", "PATCH", "/repositories/not-a-uuid", http.StatusBadRequest, "invalid_id"},
		{"invalid id on unknown sub-path", "GET", "/repositories/123/stars", http.StatusBadRequest, "invalid_id"},
		{"get with valid id", "GET", "/repositories/" + created.ID, http.StatusMethodNotAllowed, "method_not_allowed"},
		{"valid id on unknown sub-path", "POST", "/repositories/" + created.ID + "/stars", http.StatusNotFound, "not_found"},
		{"unsupported collection method", "PATCH", "/repositories", http.StatusMethodNotAllowed, "method_not_allowed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := app.do(t, tt.method, tt.path, "{}")
			if resp.StatusCode != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, resp.StatusCode)
			}
			if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
				t.Errorf("expected JSON content type, got %q", ct)
			}

			errResp := decode[map[string]any](t, resp)
			if errResp["code"] != tt.expectedCode {
				t.Errorf("expected code %q, got %v", tt.expectedCode, errResp["code"])
			}
			if tt.expectedCode == "invalid_id" && errResp["error"] != repository.InvalidIDMessage {
				t.Errorf("expected error %q, got %v", repository.InvalidIDMessage, errResp["error"])
			}
		})
	}

	list := decode[[]record](t, app.do(t, "GET", "/repositories", ""))
	if len(list) != 1 || list[0].Likes != 0 {
		t.Errorf("store changed by unrouted requests: %+v", list)
	}
}

func TestLooselyTypedBody_E2E(t *testing.T) {
	app := setupTestApp(t)
	defer app.cleanup()

	resp := app.do(t, "POST", "/repositories", `{"title":5,"url":"u","techs":"node"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	got := decode[map[string]any](t, resp)
	if got["title"] != float64(5) || got["url"] != "u" || got["techs"] != "node" {
		t.Errorf("expected fields echoed as sent, got %v", got)
	}

	list := decode[[]map[string]any](t, app.do(t, "GET", "/repositories", ""))
	if len(list) != 1 || list[0]["techs"] != "node" {
		t.Errorf("expected stored record to keep its values, got %v", list)
	}
}

func TestPanicRecovery_E2E(t *testing.T) {
	logger := setupTestLogger()
	// A handler without a service panics on first use.
	handler := repository.NewHandler(repository.HandlerConfig{Logger: logger})
	ts := httptest.NewServer(New(testConfig(), logger, handler, nil).Handler())
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/repositories")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", resp.StatusCode)
	}

	var body bytes.Buffer
	body.ReadFrom(resp.Body)
	if !strings.Contains(body.String(), "internal_error") {
		t.Errorf("expected internal_error code, got %s", body.String())
	}

	health, err := ts.Client().Get(ts.URL + "/x/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Errorf("server unusable after panic: status %d", health.StatusCode)
	}
}

func TestStart_StopsOnContextCancel(t *testing.T) {
	logger := setupTestLogger()
	store := repository.NewMemoryStore(nil)
	handler := repository.NewHandler(repository.HandlerConfig{
		Service: repository.NewService(store),
		Logger:  logger,
	})
	srv := New(testConfig(), logger, handler, store)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after cancel")
	}
}

func TestShutdown_NotStarted(t *testing.T) {
	srv := New(testConfig(), setupTestLogger(), nil, nil)
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() on unstarted server returned %v", err)
	}
}
