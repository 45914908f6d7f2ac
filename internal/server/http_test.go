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

	"github.com/groblegark/pixelrelay/internal/capi"
	"github.com/groblegark/pixelrelay/internal/catalog"
	"github.com/groblegark/pixelrelay/internal/diaglog"
	"github.com/groblegark/pixelrelay/internal/settings"
	"github.com/groblegark/pixelrelay/internal/track"
)

const testToken = "EAAG1234567890abcdefghijklmnopqrstuvwxyz_ABCDEFGHIJKLMNOP"

// mockStore is an in-memory store.Store.
type mockStore struct {
	mu       sync.Mutex
	settings *settings.Settings
	logs     []*diaglog.Entry
	nextID   int64
}

func newMockStore() *mockStore {
	return &mockStore{settings: settings.Defaults(), nextID: 1}
}

func (m *mockStore) GetSettings(context.Context) (*settings.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings, nil
}

func (m *mockStore) SaveSettings(_ context.Context, s *settings.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = s
	return nil
}

func (m *mockStore) AppendLog(_ context.Context, e *diaglog.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = m.nextID
	m.nextID++
	m.logs = append(m.logs, e)
	return nil
}

func (m *mockStore) ListLogs(_ context.Context, limit int) ([]*diaglog.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*diaglog.Entry
	for i := len(m.logs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.logs[i])
	}
	return out, nil
}

func (m *mockStore) ListLogsBefore(_ context.Context, cutoff time.Time, limit int) ([]*diaglog.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*diaglog.Entry
	for _, e := range m.logs {
		if e.CreatedAt.Before(cutoff) && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockStore) DeleteLogsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []*diaglog.Entry
	var deleted int64
	for _, e := range m.logs {
		if e.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	m.logs = kept
	return deleted, nil
}

func (m *mockStore) Close() error { return nil }

// recordingDispatcher captures dispatched batches.
type recordingDispatcher struct {
	mu      sync.Mutex
	batches [][]*capi.Event
}

func (d *recordingDispatcher) Dispatch(_ capi.Auth, events []*capi.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.batches = append(d.batches, events)
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, b := range d.batches {
		n += len(b)
	}
	return n
}

type serverFixture struct {
	store      *mockStore
	dispatcher *recordingDispatcher
	handler    http.Handler
	upstream   *httptest.Server
}

// newFixture builds a RelayServer over in-memory fakes. upstreamHandler, when
// non-nil, backs the Conversions API endpoint used by the test connection.
func newFixture(t *testing.T, authToken string, upstreamHandler http.HandlerFunc) *serverFixture {
	t.Helper()

	st := newMockStore()
	d := &recordingDispatcher{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	baseURL := ""
	var upstream *httptest.Server
	if upstreamHandler != nil {
		upstream = httptest.NewServer(upstreamHandler)
		t.Cleanup(upstream.Close)
		baseURL = upstream.URL
	}

	apiClient := capi.NewClient(baseURL, "", nil)
	tracker := track.NewTracker(catalog.NopProvider{}, d, st, nil, logger)
	srv := NewRelayServer(tracker, apiClient, st, "https://shop.example", logger)

	return &serverFixture{
		store:      st,
		dispatcher: d,
		handler:    srv.NewHTTPHandler(authToken),
		upstream:   upstream,
	}
}

func doRequest(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshaling body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "203.0.113.7:51234"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	f := newFixture(t, "", nil)
	w := doRequest(t, f.handler, http.MethodGet, "/v1/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"ok"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestAuth_HealthExempt(t *testing.T) {
	f := newFixture(t, "secret", nil)
	w := doRequest(t, f.handler, http.MethodGet, "/v1/health", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("health should not require auth, got %d", w.Code)
	}
}

func TestAuth_MissingToken(t *testing.T) {
	f := newFixture(t, "secret", nil)
	w := doRequest(t, f.handler, http.MethodGet, "/v1/settings", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAuth_WrongToken(t *testing.T) {
	f := newFixture(t, "secret", nil)
	w := doRequest(t, f.handler, http.MethodGet, "/v1/settings", "wrong", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAuth_WrongScheme(t *testing.T) {
	f := newFixture(t, "secret", nil)
	req := httptest.NewRequest(http.MethodGet, "/v1/settings", nil)
	req.Header.Set("Authorization", "Basic secret")
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAuth_ValidToken(t *testing.T) {
	f := newFixture(t, "secret", nil)
	w := doRequest(t, f.handler, http.MethodGet, "/v1/settings", "secret", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestTrack(t *testing.T) {
	f := newFixture(t, "", nil)
	f.store.settings.PixelID = "123456789012345"
	f.store.settings.AccessToken = testToken

	env := track.Envelope{
		Page: track.PageContext{
			URL:       "https://shop.example/page",
			UserAgent: "Mozilla/5.0",
		},
		Hooks: []track.Hook{{Kind: track.HookPageRendered}},
	}

	w := doRequest(t, f.handler, http.MethodPost, "/v1/track", "", env)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		TraceID string `json:"trace_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.TraceID == "" {
		t.Error("trace_id should be assigned")
	}
	if f.dispatcher.count() != 1 {
		t.Errorf("dispatched %d events, want 1", f.dispatcher.count())
	}
}

func TestTrack_FillsClientIPFromRequest(t *testing.T) {
	f := newFixture(t, "", nil)

	env := track.Envelope{
		Page:  track.PageContext{URL: "https://shop.example", UserAgent: "Mozilla/5.0"},
		Hooks: []track.Hook{{Kind: track.HookPageRendered}},
	}
	w := doRequest(t, f.handler, http.MethodPost, "/v1/track", "", env)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d", w.Code)
	}

	f.dispatcher.mu.Lock()
	defer f.dispatcher.mu.Unlock()
	ev := f.dispatcher.batches[0][0]
	if got := ev.UserData["client_ip_address"]; got != "203.0.113.7" {
		t.Errorf("client ip = %q, want the request address", got)
	}
}

func TestTrack_BadJSON(t *testing.T) {
	f := newFixture(t, "", nil)
	req := httptest.NewRequest(http.MethodPost, "/v1/track", strings.NewReader("{nope"))
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestGetSettings_RedactsToken(t *testing.T) {
	f := newFixture(t, "", nil)
	f.store.settings.AccessToken = testToken

	w := doRequest(t, f.handler, http.MethodGet, "/v1/settings", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if strings.Contains(w.Body.String(), testToken) {
		t.Error("response leaks the full access token")
	}
}

func TestPutSettings(t *testing.T) {
	f := newFixture(t, "", nil)

	in := settings.Defaults()
	in.PixelID = "123456789012345"
	in.AccessToken = testToken
	in.DebugMode = true

	w := doRequest(t, f.handler, http.MethodPut, "/v1/settings", "", in)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	stored, _ := f.store.GetSettings(context.Background())
	if stored.PixelID != "123456789012345" || stored.AccessToken != testToken || !stored.DebugMode {
		t.Errorf("stored = %+v", stored)
	}
	if strings.Contains(w.Body.String(), testToken) {
		t.Error("response leaks the full access token")
	}
}

func TestPutSettings_EmptyTokenKeepsStored(t *testing.T) {
	f := newFixture(t, "", nil)
	f.store.settings.AccessToken = testToken

	in := settings.Defaults()
	in.PixelID = "123456789012345"
	in.AccessToken = ""

	w := doRequest(t, f.handler, http.MethodPut, "/v1/settings", "", in)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	stored, _ := f.store.GetSettings(context.Background())
	if stored.AccessToken != testToken {
		t.Errorf("stored token = %q, want the original kept", stored.AccessToken)
	}
}

func TestPutSettings_InvalidPixelID(t *testing.T) {
	f := newFixture(t, "", nil)

	in := settings.Defaults()
	in.PixelID = "not-a-pixel"

	w := doRequest(t, f.handler, http.MethodPut, "/v1/settings", "", in)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}
}

func TestPutSettings_UnknownEventName(t *testing.T) {
	f := newFixture(t, "", nil)

	in := settings.Defaults()
	in.EnabledEvents["Nonsense"] = true

	w := doRequest(t, f.handler, http.MethodPut, "/v1/settings", "", in)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}
}

func TestListLogs(t *testing.T) {
	f := newFixture(t, "", nil)
	for range 3 {
		f.store.AppendLog(context.Background(), &diaglog.Entry{
			EventName: diaglog.NameRequest,
			EventData: "{}",
			Status:    diaglog.StatusRequest,
			CreatedAt: time.Now().UTC(),
		})
	}

	w := doRequest(t, f.handler, http.MethodGet, "/v1/logs?limit=2", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Logs  []*diaglog.Entry `json:"logs"`
		Count int              `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Count != 2 || len(resp.Logs) != 2 {
		t.Errorf("count = %d, logs = %d", resp.Count, len(resp.Logs))
	}
	if resp.Logs[0].ID != 3 {
		t.Errorf("first entry id = %d, want newest first", resp.Logs[0].ID)
	}
}

func TestListLogs_InvalidLimit(t *testing.T) {
	f := newFixture(t, "", nil)
	w := doRequest(t, f.handler, http.MethodGet, "/v1/logs?limit=zero", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestCleanupLogs(t *testing.T) {
	f := newFixture(t, "", nil)
	f.store.AppendLog(context.Background(), &diaglog.Entry{
		EventName: diaglog.NameRequest,
		EventData: "{}",
		Status:    diaglog.StatusRequest,
		CreatedAt: time.Now().UTC().Add(-48 * time.Hour),
	})
	f.store.AppendLog(context.Background(), &diaglog.Entry{
		EventName: diaglog.NameRequest,
		EventData: "{}",
		Status:    diaglog.StatusRequest,
		CreatedAt: time.Now().UTC().Add(time.Hour),
	})

	w := doRequest(t, f.handler, http.MethodDelete, "/v1/logs", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Deleted int64 `json:"deleted"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Deleted != 1 {
		t.Errorf("deleted = %d, want 1", resp.Deleted)
	}
}

func TestCleanupLogs_InvalidCutoff(t *testing.T) {
	f := newFixture(t, "", nil)
	w := doRequest(t, f.handler, http.MethodDelete, "/v1/logs?before=yesterday", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestTestConnection(t *testing.T) {
	var gotBody struct {
		Data          []map[string]any `json:"data"`
		TestEventCode string           `json:"test_event_code"`
	}
	f := newFixture(t, "", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"events_received": 1}`))
	})
	f.store.settings.PixelID = "123456789012345"
	f.store.settings.AccessToken = testToken

	w := doRequest(t, f.handler, http.MethodPost, "/v1/test", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if gotBody.TestEventCode == "" {
		t.Error("test connection should force a test event code")
	}
	if len(gotBody.Data) != 1 || gotBody.Data[0]["event_name"] != "PageView" {
		t.Errorf("upstream payload = %+v", gotBody)
	}
}

func TestTestConnection_MissingCredentials(t *testing.T) {
	f := newFixture(t, "", func(w http.ResponseWriter, r *http.Request) {
		t.Error("no upstream call expected without credentials")
	})

	w := doRequest(t, f.handler, http.MethodPost, "/v1/test", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestTestConnection_UpstreamError(t *testing.T) {
	f := newFixture(t, "", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": {"message": "Invalid parameter"}}`))
	})
	f.store.settings.PixelID = "123456789012345"
	f.store.settings.AccessToken = testToken

	w := doRequest(t, f.handler, http.MethodPost, "/v1/test", "", nil)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Invalid parameter") {
		t.Errorf("body = %s", w.Body.String())
	}
}
