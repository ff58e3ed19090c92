package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"staffline/internal/config"
	"staffline/internal/db"
	"staffline/internal/domain"
	"staffline/internal/engine"
	"staffline/internal/migrate"
)

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T, cfg Config) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default())
	cfg.Engine = e
	cfg.BasePath = "/v0"
	cfg.Logger = zerolog.Nop()
	handler, err := New(cfg)
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
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
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

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal %s: %v", string(data), err)
	}
	return out
}

func mustStatus(t *testing.T, res *http.Response, data []byte, want int) {
	t.Helper()
	if res.StatusCode != want {
		t.Fatalf("%s %s: status %d, want %d: %s", res.Request.Method, res.Request.URL.Path, res.StatusCode, want, string(data))
	}
}

func TestGenerateAndReportOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t, Config{})
	defer cleanup()
	client := srv.Client()
	base := srv.URL + "/v0"

	res, data := doJSON(t, client, http.MethodPost, base+"/releases", map[string]any{"name": "R1"}, nil)
	mustStatus(t, res, data, http.StatusCreated)
	rel := decode[domain.Release](t, data)

	res, data = doJSON(t, client, http.MethodPut, fmt.Sprintf("%s/releases/%d/phases/functional_design", base, rel.ID),
		map[string]any{"start_date": "2024-01-01", "end_date": "2024-01-12"}, nil)
	mustStatus(t, res, data, http.StatusOK)
	phase := decode[PhaseResponse](t, data)
	if phase.StartDate != "2024-01-01" || phase.EndDate != "2024-01-12" {
		t.Fatalf("unexpected phase %+v", phase)
	}

	for _, name := range []string{"Ada", "Bob"} {
		res, data = doJSON(t, client, http.MethodPost, base+"/resources",
			map[string]any{"name": name, "skill_function": "functional_design"}, nil)
		mustStatus(t, res, data, http.StatusCreated)
	}

	res, data = doJSON(t, client, http.MethodPost, fmt.Sprintf("%s/releases/%d/scope-items", base, rel.ID), map[string]any{"name": "Login"}, nil)
	mustStatus(t, res, data, http.StatusCreated)
	item := decode[domain.ScopeItem](t, data)

	res, data = doJSON(t, client, http.MethodPost, fmt.Sprintf("%s/scope-items/%d/estimates", base, item.ID), map[string]any{
		"skill_function": "functional_design",
		"phase_type":     "functional_design",
		"effort_days":    10,
	}, nil)
	mustStatus(t, res, data, http.StatusCreated)

	res, data = doJSON(t, client, http.MethodPost, fmt.Sprintf("%s/releases/%d/allocations/generate", base, rel.ID), nil, nil)
	mustStatus(t, res, data, http.StatusOK)
	summary := decode[GenerationResponse](t, data)
	if summary.Inserted != 2 || summary.Removed != 0 || summary.Shortfalls == nil || len(summary.Shortfalls) != 0 {
		t.Fatalf("unexpected summary %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, fmt.Sprintf("%s/releases/%d/allocations", base, rel.ID), nil, nil)
	mustStatus(t, res, data, http.StatusOK)
	allocs := decode[[]AllocationResponse](t, data)
	if len(allocs) != 2 {
		t.Fatalf("expected 2 allocations, got %s", string(data))
	}
	for _, a := range allocs {
		if a.AllocationFactor != 0.5 || a.AllocationDays != 5 || a.StartDate != "2024-01-01" || a.EndDate != "2024-01-12" {
			t.Fatalf("unexpected allocation %+v", a)
		}
	}

	res, data = doJSON(t, client, http.MethodGet, fmt.Sprintf("%s/resources/%d/allocations", base, allocs[0].ResourceID), nil, nil)
	mustStatus(t, res, data, http.StatusOK)
	if got := decode[[]AllocationResponse](t, data); len(got) != 1 {
		t.Fatalf("expected one allocation for resource, got %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, base+"/conflicts", nil, nil)
	mustStatus(t, res, data, http.StatusOK)
	if strings.TrimSpace(string(data)) != "[]" {
		t.Fatalf("expected no conflicts, got %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, base+"/reports/utilization?from=2024-01-01&to=2024-01-14", nil, nil)
	mustStatus(t, res, data, http.StatusOK)
	rows := decode[[]UtilizationResponse](t, data)
	if len(rows) != 4 {
		t.Fatalf("expected 2 resources x 2 weeks, got %s", string(data))
	}
	for _, r := range rows {
		if r.AllocatedDays != 2.5 || r.CapacityDays != 4.5 || r.UtilizationPercent != 55.56 {
			t.Fatalf("unexpected utilization row %+v", r)
		}
	}

	res, data = doJSON(t, client, http.MethodGet, base+"/reports/skill-capacity?from=2024-01-01&to=2024-01-07&skill_function=functional_design", nil, nil)
	mustStatus(t, res, data, http.StatusOK)
	skill := decode[[]SkillCapacityResponse](t, data)
	if len(skill) != 1 || skill[0].Headcount != 2 || skill[0].CapacityDays != 9 || skill[0].AvailableDays != 4 {
		t.Fatalf("unexpected skill capacity %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, base+"/events?type=allocation.generated", nil, nil)
	mustStatus(t, res, data, http.StatusOK)
	if evts := decode[[]EventResponse](t, data); len(evts) != 1 || evts[0].EntityID != fmt.Sprint(rel.ID) {
		t.Fatalf("expected one generation event, got %s", string(data))
	}
}

func TestErrorEnvelope(t *testing.T) {
	srv, cleanup := newTestServer(t, Config{})
	defer cleanup()
	client := srv.Client()
	base := srv.URL + "/v0"

	res, data := doJSON(t, client, http.MethodGet, base+"/releases/999", nil, nil)
	mustStatus(t, res, data, http.StatusNotFound)
	var env struct {
		Error apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(data, &env); err != nil || env.Error.Code != "not_found" {
		t.Fatalf("expected not_found envelope, got %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, base+"/releases", map[string]any{"name": "R1"}, nil)
	mustStatus(t, res, data, http.StatusCreated)
	rel := decode[domain.Release](t, data)

	cases := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{"end before start", http.MethodPut, fmt.Sprintf("/releases/%d/phases/build", rel.ID), map[string]any{"start_date": "2024-01-12", "end_date": "2024-01-01"}},
		{"unknown phase", http.MethodPut, fmt.Sprintf("/releases/%d/phases/design", rel.ID), map[string]any{"start_date": "2024-01-01", "end_date": "2024-01-12"}},
		{"bad date", http.MethodPut, fmt.Sprintf("/releases/%d/phases/build", rel.ID), map[string]any{"start_date": "01/01/2024", "end_date": "2024-01-12"}},
		{"unknown skill", http.MethodPost, "/resources", map[string]any{"name": "Ada", "skill_function": "cooking"}},
		{"report range", http.MethodGet, "/reports/capacity?from=2024-02-01&to=2024-01-01", nil},
		{"resource ids", http.MethodGet, "/reports/utilization?from=2024-01-01&to=2024-01-07&resource_ids=a,b", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, data := doJSON(t, client, tc.method, base+tc.path, tc.body, nil)
			mustStatus(t, res, data, http.StatusBadRequest)
			var env struct {
				Error apiErrorBody `json:"error"`
			}
			if err := json.Unmarshal(data, &env); err != nil || env.Error.Code != "bad_request" {
				t.Fatalf("expected bad_request envelope, got %s", string(data))
			}
		})
	}
}

func TestDerivedPhaseEstimateRejected(t *testing.T) {
	srv, cleanup := newTestServer(t, Config{})
	defer cleanup()
	client := srv.Client()
	base := srv.URL + "/v0"

	res, data := doJSON(t, client, http.MethodPost, base+"/releases", map[string]any{"name": "R1"}, nil)
	mustStatus(t, res, data, http.StatusCreated)
	rel := decode[domain.Release](t, data)
	res, data = doJSON(t, client, http.MethodPost, fmt.Sprintf("%s/releases/%d/scope-items", base, rel.ID), map[string]any{"name": "Login"}, nil)
	mustStatus(t, res, data, http.StatusCreated)
	item := decode[domain.ScopeItem](t, data)

	res, data = doJSON(t, client, http.MethodPost, fmt.Sprintf("%s/scope-items/%d/estimates", base, item.ID), map[string]any{
		"skill_function": "test",
		"phase_type":     "uat",
		"effort_days":    3,
	}, nil)
	mustStatus(t, res, data, http.StatusBadRequest)

	res, data = doJSON(t, client, http.MethodPost, base+"/scope-items/999/estimates", map[string]any{
		"skill_function": "build",
		"phase_type":     "build",
		"effort_days":    3,
	}, nil)
	mustStatus(t, res, data, http.StatusNotFound)
}

func TestBearerAuthRecordsSubjectAsActor(t *testing.T) {
	secret := "s3cret"
	srv, cleanup := newTestServer(t, Config{Auth: AuthConfig{JWTSecret: secret, Logger: zerolog.Nop()}})
	defer cleanup()
	client := srv.Client()
	base := srv.URL + "/v0"

	res, data := doJSON(t, client, http.MethodGet, base+"/health", nil, nil)
	mustStatus(t, res, data, http.StatusOK)

	res, data = doJSON(t, client, http.MethodPost, base+"/releases", map[string]any{"name": "R1"}, nil)
	mustStatus(t, res, data, http.StatusUnauthorized)

	bad, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "mallory"}).SignedString([]byte("other"))
	if err != nil {
		t.Fatal(err)
	}
	res, data = doJSON(t, client, http.MethodPost, base+"/releases", map[string]any{"name": "R1"}, map[string]string{"Authorization": "Bearer " + bad})
	mustStatus(t, res, data, http.StatusUnauthorized)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	headers := map[string]string{"Authorization": "Bearer " + token}
	res, data = doJSON(t, client, http.MethodPost, base+"/releases", map[string]any{"name": "R1"}, headers)
	mustStatus(t, res, data, http.StatusCreated)

	res, data = doJSON(t, client, http.MethodGet, base+"/events?type=release.created", nil, headers)
	mustStatus(t, res, data, http.StatusOK)
	evts := decode[[]EventResponse](t, data)
	if len(evts) != 1 || evts[0].ActorID != "alice" {
		t.Fatalf("expected event by alice, got %s", string(data))
	}
}

func TestActorHeaderWithoutAuth(t *testing.T) {
	srv, cleanup := newTestServer(t, Config{})
	defer cleanup()
	client := srv.Client()
	base := srv.URL + "/v0"

	res, data := doJSON(t, client, http.MethodPost, base+"/resources", map[string]any{"name": "Ada", "skill_function": "build"},
		map[string]string{"X-Actor-Id": "planner-1"})
	mustStatus(t, res, data, http.StatusCreated)
	res, data = doJSON(t, client, http.MethodPost, base+"/releases", map[string]any{"name": "R1"}, nil)
	mustStatus(t, res, data, http.StatusCreated)

	res, data = doJSON(t, client, http.MethodGet, base+"/events", nil, nil)
	mustStatus(t, res, data, http.StatusOK)
	evts := decode[[]EventResponse](t, data)
	if len(evts) != 2 || evts[0].ActorID != "local-user" || evts[1].ActorID != "planner-1" {
		t.Fatalf("unexpected actors %s", string(data))
	}
}

func TestRateLimitReturns429(t *testing.T) {
	srv, cleanup := newTestServer(t, Config{RateLimit: 0.01, RateBurst: 1})
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/releases", nil, nil)
	mustStatus(t, res, data, http.StatusOK)
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/releases", nil, nil)
	mustStatus(t, res, data, http.StatusTooManyRequests)
	if !strings.Contains(string(data), "rate_limited") {
		t.Fatalf("expected rate_limited code, got %s", string(data))
	}
	// metrics live outside the API base path
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/metrics", nil, nil)
	mustStatus(t, res, data, http.StatusOK)
}

func TestOpenAPIAndResourceStatus(t *testing.T) {
	srv, cleanup := newTestServer(t, Config{})
	defer cleanup()
	client := srv.Client()
	base := srv.URL + "/v0"

	res, data := doJSON(t, client, http.MethodGet, base+"/openapi.json", nil, nil)
	mustStatus(t, res, data, http.StatusOK)
	for _, op := range []string{"generate-allocations", "list-conflicts", "skill-capacity-report"} {
		if !strings.Contains(string(data), op) {
			t.Fatalf("openapi missing %s", op)
		}
	}

	res, data = doJSON(t, client, http.MethodPost, base+"/resources", map[string]any{"name": "Ada", "skill_function": "test", "skill_sub_function": "Manual"}, nil)
	mustStatus(t, res, data, http.StatusCreated)
	created := decode[domain.Resource](t, data)
	res, data = doJSON(t, client, http.MethodPatch, fmt.Sprintf("%s/resources/%d", base, created.ID), map[string]any{"status": "inactive"}, nil)
	mustStatus(t, res, data, http.StatusOK)
	if updated := decode[domain.Resource](t, data); updated.Status != domain.ResourceInactive {
		t.Fatalf("expected inactive, got %s", string(data))
	}
	res, data = doJSON(t, client, http.MethodGet, base+"/resources?status=active", nil, nil)
	mustStatus(t, res, data, http.StatusOK)
	if strings.TrimSpace(string(data)) != "[]" {
		t.Fatalf("expected no active resources, got %s", string(data))
	}
}

func TestWebhookDeliversFilteredEvents(t *testing.T) {
	srv, cleanup := newTestServer(t, Config{})
	defer cleanup()
	ctx := context.Background()

	var (
		mu       sync.Mutex
		received []EventResponse
		sigs     []string
	)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var evt EventResponse
		_ = json.Unmarshal(body, &evt)
		mu.Lock()
		received = append(received, evt)
		sigs = append(sigs, r.Header.Get("X-Staffline-Signature"))
		mu.Unlock()
		if r.Header.Get("X-Staffline-Signature") != Signature("k", body) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer hook.Close()

	if _, err := srv.Engine.CreateRelease(ctx, engine.ReleaseCreateOptions{Name: "before"}); err != nil {
		t.Fatal(err)
	}
	d := NewWebhookDispatcher(srv.Engine, []config.WebhookConfig{{URL: hook.URL, Events: []string{"release.created"}, Secret: "k"}}, zerolog.Nop())
	d.DispatchOnce(ctx)

	if _, err := srv.Engine.CreateResource(ctx, engine.ResourceCreateOptions{Name: "Ada", SkillFunction: "build"}); err != nil {
		t.Fatal(err)
	}
	if _, err := srv.Engine.CreateRelease(ctx, engine.ReleaseCreateOptions{Name: "after"}); err != nil {
		t.Fatal(err)
	}
	d.DispatchOnce(ctx)
	d.DispatchOnce(ctx)

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 || received[0].Type != "release.created" || len(sigs[0]) == 0 {
		t.Fatalf("expected one signed release.created delivery, got %+v", received)
	}
	var payload map[string]any
	if err := json.Unmarshal(received[0].Payload, &payload); err != nil || payload["name"] != "after" {
		t.Fatalf("unexpected payload %s", string(received[0].Payload))
	}
}

func TestWriteRoutesUsePathID(t *testing.T) {
	srv, cleanup := newTestServer(t, Config{})
	defer cleanup()
	client := srv.Client()
	base := srv.URL + "/v0"

	var rel domain.Release
	for _, name := range []string{"R1", "R2"} {
		res, data := doJSON(t, client, http.MethodPost, base+"/releases", map[string]any{"name": name}, nil)
		mustStatus(t, res, data, http.StatusCreated)
		rel = decode[domain.Release](t, data)
	}

	res, data := doJSON(t, client, http.MethodPatch, fmt.Sprintf("%s/releases/%d", base, rel.ID), map[string]any{"status": "active"}, nil)
	mustStatus(t, res, data, http.StatusOK)
	if updated := decode[domain.Release](t, data); updated.ID != rel.ID || updated.Status != "active" {
		t.Fatalf("unexpected release %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodPut, fmt.Sprintf("%s/releases/%d/phases/build", base, rel.ID),
		map[string]any{"start_date": "2024-01-01", "end_date": "2024-01-12"}, nil)
	mustStatus(t, res, data, http.StatusOK)
	if phase := decode[PhaseResponse](t, data); phase.ReleaseID != rel.ID {
		t.Fatalf("phase set on wrong release: %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, fmt.Sprintf("%s/releases/%d/scope-items", base, rel.ID), map[string]any{"name": "Checkout"}, nil)
	mustStatus(t, res, data, http.StatusCreated)
	item := decode[domain.ScopeItem](t, data)
	if item.ReleaseID != rel.ID {
		t.Fatalf("scope item on wrong release: %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, fmt.Sprintf("%s/scope-items/%d/estimates", base, item.ID), map[string]any{
		"skill_function": "build",
		"phase_type":     "build",
		"effort_days":    5,
	}, nil)
	mustStatus(t, res, data, http.StatusCreated)
	if est := decode[domain.EffortEstimate](t, data); est.ScopeItemID != item.ID {
		t.Fatalf("estimate on wrong scope item: %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodPatch, base+"/releases/999", map[string]any{"status": "closed"}, nil)
	mustStatus(t, res, data, http.StatusNotFound)
}

func TestOpenAPIConcurrentFirstRequests(t *testing.T) {
	srv, cleanup := newTestServer(t, Config{})
	defer cleanup()
	url := srv.URL + "/v0/openapi.json"

	const n = 8
	bodies := make(chan string, n)
	for i := 0; i < n; i++ {
		go func() {
			res, err := http.Get(url)
			if err != nil {
				bodies <- "error: " + err.Error()
				return
			}
			defer res.Body.Close()
			data, _ := io.ReadAll(res.Body)
			bodies <- string(data)
		}()
	}
	first := <-bodies
	if !strings.Contains(first, "generate-allocations") {
		t.Fatalf("unexpected document: %.200s", first)
	}
	for i := 1; i < n; i++ {
		if got := <-bodies; got != first {
			t.Fatalf("documents differ between concurrent requests")
		}
	}
}
