package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"craftline/internal/collab"
	"craftline/internal/config"
	"craftline/internal/db"
	"craftline/internal/migrate"
	"craftline/internal/workflow"
)

var fixedNow = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }

var actorHeader = map[string]string{"X-Actor-Id": "tester"}

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T, auth AuthConfig) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	w, err := workflow.New(context.Background(), conn, config.Default(), collab.NewMockSet(fixedNow))
	if err != nil {
		t.Fatalf("new workflow: %v", err)
	}
	w.Now = fixedNow
	handler, err := New(Config{Workflow: w, BasePath: "/v0", Auth: auth})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func legacyTestServer(t *testing.T) (*testServer, func()) {
	return newTestServer(t, AuthConfig{AllowLegacyActorHeader: true})
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

type errorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decodeProject(t *testing.T, data []byte) ProjectResponse {
	t.Helper()
	var p ProjectResponse
	if err := json.Unmarshal(data, &p); err != nil {
		t.Fatalf("unmarshal project: %v (%s)", err, string(data))
	}
	return p
}

func TestProjectLifecycleOverHTTP(t *testing.T) {
	srv, cleanup := legacyTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects", map[string]any{
		"customer_request": "Please install a PP650 power unit with a 50ft retractable hose.",
	}, actorHeader)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create status %d: %s", res.StatusCode, string(data))
	}
	created := decodeProject(t, data)
	if created.Status != "intake" {
		t.Fatalf("expected intake, got %s", created.Status)
	}
	base := srv.URL + "/v0/projects/" + created.ID

	steps := []struct {
		action string
		status string
	}{
		{"advance", "details_extracted"},
		{"approve", "details_approved"},
		{"advance", "quoted"},
		{"approve", "quote_approved"},
		{"advance", "availability_checked"},
		{"advance", "email_drafted"},
	}
	var last ProjectResponse
	for _, step := range steps {
		res, data := doJSON(t, client, http.MethodPost, base+"/"+step.action, nil, actorHeader)
		if res.StatusCode != http.StatusOK {
			t.Fatalf("%s status %d: %s", step.action, res.StatusCode, string(data))
		}
		last = decodeProject(t, data)
		if last.Status != step.status {
			t.Fatalf("%s: expected %s, got %s", step.action, step.status, last.Status)
		}
	}
	if last.EmailDraft == "" {
		t.Fatalf("expected final email draft")
	}
	if last.QuoteDraft["total_estimated_cost"] == nil {
		t.Fatalf("expected quote payload in response")
	}

	res, data = doJSON(t, client, http.MethodGet, base+"/events?limit=20", nil, actorHeader)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("events status %d: %s", res.StatusCode, string(data))
	}
	var evts []EventResponse
	if err := json.Unmarshal(data, &evts); err != nil {
		t.Fatalf("unmarshal events: %v", err)
	}
	if len(evts) != 7 {
		t.Fatalf("expected 7 events, got %d", len(evts))
	}
}

func TestAdvanceAtCheckpointConflict(t *testing.T) {
	srv, cleanup := legacyTestServer(t)
	defer cleanup()
	client := srv.Client()

	_, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects", map[string]any{
		"customer_request": "PP600 repair",
	}, actorHeader)
	created := decodeProject(t, data)
	base := srv.URL + "/v0/projects/" + created.ID

	res, body := doJSON(t, client, http.MethodPost, base+"/advance", nil, actorHeader)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("advance status %d: %s", res.StatusCode, string(body))
	}

	res, body = doJSON(t, client, http.MethodPost, base+"/advance", nil, actorHeader)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", res.StatusCode, string(body))
	}
	var envelope errorEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("unmarshal error: %v (%s)", err, string(body))
	}
	if envelope.Error.Code != "invalid_transition" {
		t.Fatalf("expected invalid_transition, got %q", envelope.Error.Code)
	}
}

func TestRejectOverHTTP(t *testing.T) {
	srv, cleanup := legacyTestServer(t)
	defer cleanup()
	client := srv.Client()

	_, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects", map[string]any{
		"customer_request": "PP500 tune-up",
	}, actorHeader)
	created := decodeProject(t, data)
	base := srv.URL + "/v0/projects/" + created.ID

	doJSON(t, client, http.MethodPost, base+"/advance", nil, actorHeader)
	res, body := doJSON(t, client, http.MethodPost, base+"/reject", map[string]any{
		"reason": "details incomplete",
	}, actorHeader)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("reject status %d: %s", res.StatusCode, string(body))
	}
	rejected := decodeProject(t, body)
	if rejected.Status != "intake" {
		t.Fatalf("expected intake, got %s", rejected.Status)
	}
	if rejected.ExtractedDetails != nil {
		t.Fatalf("expected extracted details cleared")
	}
}

func TestProjectNotFound(t *testing.T) {
	srv, cleanup := legacyTestServer(t)
	defer cleanup()

	res, body := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/projects/nope", nil, actorHeader)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", res.StatusCode, string(body))
	}
	var envelope errorEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if envelope.Error.Code != "not_found" {
		t.Fatalf("expected not_found, got %q", envelope.Error.Code)
	}
}

func TestCreateProjectRequiresRequest(t *testing.T) {
	srv, cleanup := legacyTestServer(t)
	defer cleanup()

	res, body := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/projects", map[string]any{
		"customer_request": "   ",
	}, actorHeader)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", res.StatusCode, string(body))
	}
}

func TestUnauthorizedWithoutCredentials(t *testing.T) {
	srv, cleanup := legacyTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, _ := doJSON(t, client, http.MethodGet, srv.URL+"/v0/projects", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.StatusCode)
	}

	// health stays open
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected open health endpoint, got %d", res.StatusCode)
	}
}

func TestLegacyHeaderDisabled(t *testing.T) {
	srv, cleanup := newTestServer(t, AuthConfig{JWTSecret: "test-secret"})
	defer cleanup()

	res, _ := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/projects", nil, actorHeader)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with legacy header disabled, got %d", res.StatusCode)
	}
}

func TestDevLoginMintsUsableToken(t *testing.T) {
	srv, cleanup := newTestServer(t, AuthConfig{JWTSecret: "test-secret", EnableDevLogin: true})
	defer cleanup()
	client := srv.Client()

	res, body := doJSON(t, client, http.MethodPost, srv.URL+"/v0/auth/dev/login", map[string]any{
		"actor_id": "dev-user",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("dev login status %d: %s", res.StatusCode, string(body))
	}
	var login struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &login); err != nil || login.Token == "" {
		t.Fatalf("expected token: %v (%s)", err, string(body))
	}

	res, body = doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects", map[string]any{
		"customer_request": "PP650 quote please",
	}, map[string]string{"Authorization": "Bearer " + login.Token})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create with jwt status %d: %s", res.StatusCode, string(body))
	}

	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/projects", nil, map[string]string{"Authorization": "Bearer bogus"})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", res.StatusCode)
	}
}

func TestPricingEndpoint(t *testing.T) {
	srv, cleanup := legacyTestServer(t)
	defer cleanup()

	res, body := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/pricing", nil, actorHeader)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("pricing status %d: %s", res.StatusCode, string(body))
	}
	var entries []PricingResponse
	if err := json.Unmarshal(body, &entries); err != nil {
		t.Fatalf("unmarshal pricing: %v", err)
	}
	if len(entries) == 0 {
		t.Fatalf("expected seeded catalog")
	}
	found := false
	for _, e := range entries {
		if e.Material == "PP650" && e.UnitCost == 1200 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected PP650 in catalog")
	}
}
