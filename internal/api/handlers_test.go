package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"vrptw/internal/auth"
	"vrptw/internal/config"
	"vrptw/internal/instance"
	"vrptw/internal/model"
	"vrptw/internal/solver"
	"vrptw/internal/solver/solvertest"
	"vrptw/internal/webhooks"
)

func init() { solvertest.Register() }

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Solver.Default = solvertest.Name
	return cfg
}

func newTestServer(t *testing.T, cfg config.Config) *Server {
	t.Helper()
	s, err := NewServer(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// triangle has d01 = d02 = 10 and d12 = 15; with one vehicle the only tour costs 35.
func triangle(demand2, capacity float64) instance.Data {
	tw := instance.TimeWindow{Earliest: 0, Latest: 1000}
	return instance.Data{
		Name:        "triangle",
		Vehicles:    1,
		Capacity:    capacity,
		Nodes:       []int{0, 1, 2},
		Demand:      map[int]float64{0: 0, 1: 3, 2: demand2},
		Coords:      map[int]instance.Point{0: {X: 0, Y: 0}, 1: {X: 10, Y: 0}, 2: {X: 0, Y: 10}},
		TimeWindows: map[int]instance.TimeWindow{0: tw, 1: tw, 2: tw},
		ServiceTime: map[int]float64{0: 0, 1: 0, 2: 0},
		Distance:    [][]float64{{0, 10, 10}, {10, 0, 15}, {10, 15, 0}},
	}
}

func postSolve(t *testing.T, h http.Handler, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeRun(t *testing.T, body io.Reader) model.Run {
	t.Helper()
	var run model.Run
	if err := json.NewDecoder(body).Decode(&run); err != nil {
		t.Fatalf("decode run: %v", err)
	}
	return run
}

func TestHealthReady(t *testing.T) {
	s := newTestServer(t, testConfig())
	rr := httptest.NewRecorder()
	s.HealthHandler(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != 200 {
		t.Fatalf("health: got %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	s.ReadyHandler(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != 200 {
		t.Fatalf("ready: got %d", rr.Code)
	}
}

func TestSolveSync(t *testing.T) {
	s := newTestServer(t, testConfig())
	h := s.Routes()

	rr := postSolve(t, h, "/v1/solve", model.SolveRequest{Instance: triangle(4, 10)})
	if rr.Code != http.StatusOK {
		t.Fatalf("solve: got %d %s", rr.Code, rr.Body.String())
	}
	run := decodeRun(t, rr.Body)
	if run.State != model.RunSucceeded || run.Outcome == nil {
		t.Fatalf("run = %+v", run)
	}
	if run.Outcome.Status != solver.Optimal {
		t.Fatalf("status = %s", run.Outcome.Status)
	}
	if math.Abs(run.Outcome.Objective-35) > 1e-6 {
		t.Fatalf("objective = %v, want 35", run.Outcome.Objective)
	}
	if got := len(run.Outcome.Solution.Arcs); got != 3 {
		t.Fatalf("arcs = %v", run.Outcome.Solution.Arcs)
	}
	if run.Customers != 2 || run.Solver != solvertest.Name || run.TenantID != auth.DefaultTenant {
		t.Fatalf("run metadata = %+v", run)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/runs/"+run.ID, nil))
	if rr.Code != 200 {
		t.Fatalf("get run: got %d", rr.Code)
	}
	if got := decodeRun(t, rr.Body); got.ID != run.ID || got.State != model.RunSucceeded {
		t.Fatalf("stored run = %+v", got)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/runs?limit=10", nil))
	var page model.RunPage
	if err := json.NewDecoder(rr.Body).Decode(&page); err != nil {
		t.Fatal(err)
	}
	if len(page.Items) != 1 || page.NextCursor != "" {
		t.Fatalf("page = %+v", page)
	}
}

func TestSolveInfeasibleIsOK(t *testing.T) {
	s := newTestServer(t, testConfig())
	rr := postSolve(t, s.Routes(), "/v1/solve", model.SolveRequest{Instance: triangle(12, 10)})
	if rr.Code != http.StatusOK {
		t.Fatalf("solve: got %d %s", rr.Code, rr.Body.String())
	}
	run := decodeRun(t, rr.Body)
	if run.Outcome.Status != solver.Infeasible || run.Outcome.Solution != nil || run.Outcome.Objective != 0 {
		t.Fatalf("outcome = %+v", run.Outcome)
	}
}

func TestSolveErrors(t *testing.T) {
	s := newTestServer(t, testConfig())
	h := s.Routes()

	noDepot := triangle(4, 10)
	noDepot.Nodes = []int{1, 2}
	cases := []struct {
		name   string
		target string
		body   any
		want   int
	}{
		{"missing depot", "/v1/solve", model.SolveRequest{Instance: noDepot}, http.StatusBadRequest},
		{"zero capacity", "/v1/solve", model.SolveRequest{Instance: triangle(4, 0)}, http.StatusBadRequest},
		{"unknown field", "/v1/solve", map[string]any{"instance": triangle(4, 10), "bogus": 1}, http.StatusBadRequest},
		{"negative time limit", "/v1/solve", model.SolveRequest{Instance: triangle(4, 10), TimeLimitS: -1}, http.StatusBadRequest},
		{"callback without async", "/v1/solve", model.SolveRequest{Instance: triangle(4, 10), CallbackURL: "http://example.com/hook"}, http.StatusBadRequest},
		{"unknown solver", "/v1/solve?solver=nope", model.SolveRequest{Instance: triangle(4, 10)}, http.StatusServiceUnavailable},
		{"unknown solver async", "/v1/solve?solver=nope&async=true", model.SolveRequest{Instance: triangle(4, 10)}, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := postSolve(t, h, tc.target, tc.body)
			if rr.Code != tc.want {
				t.Fatalf("got %d, want %d: %s", rr.Code, tc.want, rr.Body.String())
			}
			var p Problem
			if err := json.NewDecoder(rr.Body).Decode(&p); err != nil || p.Status != tc.want {
				t.Fatalf("problem = %+v, err %v", p, err)
			}
		})
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/solve", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET /v1/solve: got %d", rr.Code)
	}
}

func TestSolveMaxCustomers(t *testing.T) {
	cfg := testConfig()
	cfg.Solver.MaxCustomers = 1
	s := newTestServer(t, cfg)
	h := s.Routes()

	rr := postSolve(t, h, "/v1/solve", model.SolveRequest{Instance: triangle(4, 10)})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want 400", rr.Code)
	}
	rr = postSolve(t, h, "/v1/solve?customers=1", model.SolveRequest{Instance: triangle(4, 10)})
	if rr.Code != http.StatusOK {
		t.Fatalf("truncated: got %d %s", rr.Code, rr.Body.String())
	}
	if run := decodeRun(t, rr.Body); run.Customers != 1 || math.Abs(run.Outcome.Objective-20) > 1e-6 {
		t.Fatalf("run = %+v", run)
	}
}

const lineSolomon = `LINE3

VEHICLE
NUMBER     CAPACITY
  2          10

CUSTOMER
CUST NO.  XCOORD.   YCOORD.    DEMAND   READY TIME  DUE DATE   SERVICE   TIME

    0       0          0          0          0       1000          0
    1       3          4          1          0       1000          0
    2       6          8          1          0       1000          0
`

func TestSolveSolomonText(t *testing.T) {
	s := newTestServer(t, testConfig())
	req := httptest.NewRequest(http.MethodPost, "/v1/solve", strings.NewReader(lineSolomon))
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	rr := httptest.NewRecorder()
	s.Routes().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d %s", rr.Code, rr.Body.String())
	}
	run := decodeRun(t, rr.Body)
	if run.Instance != "LINE3" || math.Abs(run.Outcome.Objective-20) > 1e-6 {
		t.Fatalf("run = %+v outcome = %+v", run, run.Outcome)
	}
}

func TestRunNotFound(t *testing.T) {
	s := newTestServer(t, testConfig())
	h := s.Routes()
	for _, path := range []string{"/v1/runs/nope", "/v1/runs/nope/events", "/v1/runs/nope/other"} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusNotFound {
			t.Fatalf("%s: got %d", path, rr.Code)
		}
	}
}

func TestRunsAreTenantScoped(t *testing.T) {
	s := newTestServer(t, testConfig())
	h := s.Routes()
	rr := postSolve(t, h, "/v1/solve", model.SolveRequest{Instance: triangle(4, 10)})
	run := decodeRun(t, rr.Body)

	req := httptest.NewRequest(http.MethodGet, "/v1/runs/"+run.ID, nil)
	req.Header.Set("Authorization", "Bearer other:admin")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("other tenant: got %d", rr.Code)
	}
}

func TestSolveAsyncStream(t *testing.T) {
	s := newTestServer(t, testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.RunWorkers(ctx) }()
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()

	b, _ := json.Marshal(model.SolveRequest{Instance: triangle(4, 10), Async: true})
	resp, err := http.Post(ts.URL+"/v1/solve", "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("async solve: got %d", resp.StatusCode)
	}
	queued := decodeRun(t, resp.Body)
	resp.Body.Close()
	if resp.Header.Get("Location") != "/v1/runs/"+queued.ID {
		t.Fatalf("location = %q", resp.Header.Get("Location"))
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err = client.Get(ts.URL + "/v1/runs/" + queued.ID + "/events")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}
	var last model.RunEvent
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		data, ok := strings.CutPrefix(sc.Text(), "data: ")
		if !ok {
			continue
		}
		if err := json.Unmarshal([]byte(data), &last); err != nil {
			t.Fatalf("event data %q: %v", data, err)
		}
	}
	if last.Run.State != model.RunSucceeded || last.Run.Outcome == nil || math.Abs(last.Run.Outcome.Objective-35) > 1e-6 {
		t.Fatalf("last event = %+v", last)
	}
}

func TestWebSocketStream(t *testing.T) {
	s := newTestServer(t, testConfig())
	h := s.Routes()
	rr := postSolve(t, h, "/v1/solve", model.SolveRequest{Instance: triangle(4, 10)})
	run := decodeRun(t, rr.Body)

	ts := httptest.NewServer(h)
	defer ts.Close()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	if err := conn.WriteJSON(wsMessage{Type: "connection_init"}); err != nil {
		t.Fatal(err)
	}
	var msg wsMessage
	if err := conn.ReadJSON(&msg); err != nil || msg.Type != "connection_ack" {
		t.Fatalf("ack = %+v, err %v", msg, err)
	}
	payload, _ := json.Marshal(subscribePayload{RunID: run.ID})
	if err := conn.WriteJSON(wsMessage{Type: "subscribe", ID: "1", Payload: payload}); err != nil {
		t.Fatal(err)
	}
	if err := conn.ReadJSON(&msg); err != nil || msg.Type != "next" || msg.ID != "1" {
		t.Fatalf("next = %+v, err %v", msg, err)
	}
	var evt model.RunEvent
	if err := json.Unmarshal(msg.Payload, &evt); err != nil {
		t.Fatal(err)
	}
	if evt.Type != snapshotEvent || evt.Run.State != model.RunSucceeded {
		t.Fatalf("event = %+v", evt)
	}
	if err := conn.ReadJSON(&msg); err != nil || msg.Type != "complete" || msg.ID != "1" {
		t.Fatalf("complete = %+v, err %v", msg, err)
	}

	payload, _ = json.Marshal(subscribePayload{RunID: "missing"})
	_ = conn.WriteJSON(wsMessage{Type: "subscribe", ID: "2", Payload: payload})
	if err := conn.ReadJSON(&msg); err != nil || msg.Type != "error" || msg.ID != "2" {
		t.Fatalf("error = %+v, err %v", msg, err)
	}
}

func TestAuthHMAC(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = config.AuthConfig{Mode: auth.ModeHMAC, HMACSecret: "s3cret"}
	s := newTestServer(t, cfg)
	h := s.Routes()

	rr := postSolve(t, h, "/v1/solve", model.SolveRequest{Instance: triangle(4, 10)})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("no token: got %d", rr.Code)
	}

	viewer, err := auth.SignHS256("s3cret", map[string]any{"tenant": "t1", "role": "viewer"})
	if err != nil {
		t.Fatal(err)
	}
	b, _ := json.Marshal(model.SolveRequest{Instance: triangle(4, 10)})
	req := httptest.NewRequest(http.MethodPost, "/v1/solve", bytes.NewReader(b))
	req.Header.Set("Authorization", "Bearer "+viewer)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("viewer solve: got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/runs", nil)
	req.Header.Set("Authorization", "Bearer "+viewer)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("viewer list: got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/runs", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: got %d", rr.Code)
	}
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateConfig{RPS: 0.001, Burst: 1}
	s := newTestServer(t, cfg)
	h := s.Routes()

	get := func(path string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		return rr
	}
	if rr := get("/v1/solvers"); rr.Code != http.StatusOK {
		t.Fatalf("first: got %d", rr.Code)
	}
	rr := get("/v1/solvers")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second: got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After")
	}
	if rr := get("/healthz"); rr.Code != http.StatusOK {
		t.Fatalf("healthz is not limited: got %d", rr.Code)
	}
}

func TestSolvers(t *testing.T) {
	s := newTestServer(t, testConfig())
	rr := httptest.NewRecorder()
	s.Routes().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/solvers", nil))
	var body struct {
		Items []model.SolverInfo `json:"items"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	found := false
	for _, it := range body.Items {
		if it.Name == solvertest.Name {
			found = it.Available && it.Default
		}
	}
	if !found {
		t.Fatalf("enumerate solver missing or not default: %+v", body.Items)
	}
}

func TestWebhookCallback(t *testing.T) {
	type delivery struct {
		eventType, signature string
		body                 []byte
	}
	got := make(chan delivery, 1)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		select {
		case got <- delivery{eventType: r.Header.Get("X-Event-Type"), signature: r.Header.Get(webhooks.SignatureHeader), body: b}:
		default:
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer hook.Close()

	cfg := testConfig()
	cfg.Webhooks.Secret = "hook-secret"
	s := newTestServer(t, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.RunWorkers(ctx) }()
	worker := s.NewWebhookWorker()
	worker.Interval = 10 * time.Millisecond
	go worker.Run(ctx)

	rr := postSolve(t, s.Routes(), "/v1/solve", model.SolveRequest{Instance: triangle(4, 10), Async: true, CallbackURL: hook.URL})
	if rr.Code != http.StatusAccepted {
		t.Fatalf("async solve: got %d %s", rr.Code, rr.Body.String())
	}

	select {
	case d := <-got:
		if d.eventType != model.EventRunFinished {
			t.Fatalf("event type = %q", d.eventType)
		}
		if !webhooks.VerifyHMAC("hook-secret", d.body, d.signature) {
			t.Fatal("bad signature")
		}
		var payload struct {
			Type string    `json:"type"`
			Data model.Run `json:"data"`
		}
		if err := json.Unmarshal(d.body, &payload); err != nil {
			t.Fatal(err)
		}
		if payload.Data.State != model.RunSucceeded {
			t.Fatalf("payload run = %+v", payload.Data)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for callback")
	}
}

func TestOpenAPI(t *testing.T) {
	s := newTestServer(t, testConfig())
	rr := httptest.NewRecorder()
	s.Routes().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))
	if rr.Code != 200 {
		t.Fatalf("openapi.json: got %d %s", rr.Code, rr.Body.String())
	}
	var doc struct {
		Paths map[string]any `json:"paths"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&doc); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{"/v1/solve", "/v1/runs", "/v1/runs/{id}/events", "/v1/ws"} {
		if _, ok := doc.Paths[p]; !ok {
			t.Fatalf("path %s missing", p)
		}
	}
}

func TestMetricsAndDebug(t *testing.T) {
	s := newTestServer(t, testConfig())
	h := s.Routes()
	postSolve(t, h, "/v1/solve", model.SolveRequest{Instance: triangle(4, 10)})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != 200 || !strings.Contains(rr.Body.String(), "vrptw_solves_total") {
		t.Fatalf("metrics: got %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/debug/info", nil))
	var info map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&info); err != nil {
		t.Fatal(err)
	}
	if _, ok := info["build"]; !ok {
		t.Fatalf("debug info = %v", info)
	}
}

func TestValidateSolveRequest(t *testing.T) {
	ok := model.SolveRequest{Async: true, CallbackURL: "https://example.com/cb", TimeLimitS: 5}
	if err := validateSolveRequest(&ok); err != nil {
		t.Fatalf("valid request: %v", err)
	}
	bad := []model.SolveRequest{
		{Customers: -1},
		{TimeLimitS: -0.5},
		{Async: true, CallbackURL: "ftp://example.com"},
		{Async: true, CallbackURL: "/relative"},
	}
	for _, req := range bad {
		if err := validateSolveRequest(&req); err == nil {
			t.Fatalf("expected error for %+v", req)
		}
	}
}

func TestRouteLabel(t *testing.T) {
	cases := map[string]string{
		"/v1/runs":            "/v1/runs",
		"/v1/runs/abc":        "/v1/runs/{id}",
		"/v1/runs/abc/events": "/v1/runs/{id}/events",
		"/v1/solve":           "/v1/solve",
	}
	for in, want := range cases {
		if got := routeLabel(in); got != want {
			t.Fatalf("routeLabel(%q) = %q, want %q", in, got, want)
		}
	}
}
