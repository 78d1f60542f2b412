package api

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shuffle-empire/shuffle/internal/app/game"
	"github.com/shuffle-empire/shuffle/internal/domain"
	"github.com/shuffle-empire/shuffle/internal/infra/catalog"
	"github.com/shuffle-empire/shuffle/internal/infra/sqlite"
)

var quietLog = slog.New(slog.NewTextHandler(io.Discard, nil))

type testEnv struct {
	engine *game.Engine
	store  *sqlite.Store
	hub    *Hub
	server *Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cat, err := catalog.New([]domain.ItemDef{
		{Key: "tech", Name: "Tech", Group: domain.GroupManual, Kind: domain.EffectFlat, BaseCost: 2, CostGrowth: 2, MaxLevel: 1, UnitProduction: 3, TierFactor: 1},
		{Key: "worker", Name: "Worker", Group: domain.GroupGenerator, Kind: domain.EffectFlat, BaseCost: 100, CostGrowth: 1.15, MaxLevel: 10, UnitProduction: 1, TierFactor: 1},
	})
	if err != nil {
		t.Fatal(err)
	}

	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	store := sqlite.NewStore(db, "test")

	eng := game.New(cat, store, game.DefaultConfig(), game.WithJournal(store), game.WithLogger(quietLog))
	if _, err := eng.LoadOrInit(context.Background()); err != nil {
		t.Fatal(err)
	}

	hub := NewHub(quietLog)
	srv := NewServer(eng, quietLog)
	srv.SetHistory(store)
	srv.SetHub(hub)
	srv.EnableMetrics()
	return &testEnv{engine: eng, store: store, hub: hub, server: srv}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

// ─── REST ───────────────────────────────────────────────────────────────────

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, "GET", "/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("GET /health = %d, want 200", w.Code)
	}
}

func TestSnapshotAndCatalog(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "GET", "/api/snapshot", "")
	var snap domain.Snapshot
	decode(t, w, &snap)
	if snap.PerActionRate != 1 || len(snap.Items) != 2 {
		t.Errorf("snapshot = %+v", snap)
	}

	w = env.do(t, "GET", "/api/catalog", "")
	var cat struct {
		Items []map[string]interface{} `json:"items"`
	}
	decode(t, w, &cat)
	if len(cat.Items) != 2 {
		t.Fatalf("catalog items = %d, want 2", len(cat.Items))
	}
	if cat.Items[1]["group"] != "generator" || cat.Items[1]["kind"] != "flat" {
		t.Errorf("catalog item = %v, want string group and kind", cat.Items[1])
	}
}

func TestAction(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		body   string
		status int
		gained float64
	}{
		{"no body", "", http.StatusOK, 1},
		{"batch", `{"count": 5}`, http.StatusOK, 5},
		{"zero", `{"count": 0}`, http.StatusBadRequest, 0},
		{"too many", `{"count": 100000}`, http.StatusBadRequest, 0},
		{"bad json", `{`, http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, "POST", "/api/action", tt.body)
			if w.Code != tt.status {
				t.Fatalf("POST /api/action = %d, want %d (%s)", w.Code, tt.status, w.Body.String())
			}
			if tt.status != http.StatusOK {
				return
			}
			var resp struct {
				Gained float64 `json:"gained"`
			}
			decode(t, w, &resp)
			if resp.Gained != tt.gained {
				t.Errorf("gained = %v, want %v", resp.Gained, tt.gained)
			}
		})
	}
	if got := env.engine.Snapshot().Balance; got != 6 {
		t.Errorf("Balance = %v, want 6", got)
	}
}

func TestAction_ChunkedEmptyBody(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest("POST", "/api/action", strings.NewReader(""))
	req.ContentLength = -1
	req.TransferEncoding = []string{"chunked"}
	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("POST /api/action (chunked, empty) = %d, want 200 (%s)", w.Code, w.Body.String())
	}
	var resp struct {
		Gained float64 `json:"gained"`
	}
	decode(t, w, &resp)
	if resp.Gained != 1 {
		t.Errorf("gained = %v, want 1", resp.Gained)
	}
}

func TestPurchase_Statuses(t *testing.T) {
	env := newTestEnv(t)

	if w := env.do(t, "POST", "/api/purchase/tech", ""); w.Code != http.StatusPaymentRequired {
		t.Errorf("purchase broke = %d, want 402", w.Code)
	}
	if w := env.do(t, "POST", "/api/purchase/nope", ""); w.Code != http.StatusNotFound {
		t.Errorf("purchase unknown = %d, want 404", w.Code)
	}

	env.do(t, "POST", "/api/action", `{"count": 2}`)
	w := env.do(t, "POST", "/api/purchase/tech", "")
	if w.Code != http.StatusOK {
		t.Fatalf("purchase = %d, want 200 (%s)", w.Code, w.Body.String())
	}
	var snap domain.Snapshot
	decode(t, w, &snap)
	if snap.Balance != 0 || snap.PerActionRate != 3 {
		t.Errorf("after purchase = %+v", snap)
	}

	env.do(t, "POST", "/api/action", `{"count": 10}`)
	if w := env.do(t, "POST", "/api/purchase/tech", ""); w.Code != http.StatusConflict {
		t.Errorf("purchase maxed = %d, want 409", w.Code)
	}
}

func TestReset_RequiresConfirm(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, "POST", "/api/action", `{"count": 3}`)

	for _, body := range []string{"", `{}`, `{"confirm": false}`} {
		if w := env.do(t, "POST", "/api/reset", body); w.Code != http.StatusBadRequest {
			t.Errorf("reset %q = %d, want 400", body, w.Code)
		}
	}
	if env.engine.Snapshot().Balance != 3 {
		t.Fatal("unconfirmed reset must not change state")
	}

	w := env.do(t, "POST", "/api/reset", `{"confirm": true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("reset = %d, want 200", w.Code)
	}
	if env.engine.Snapshot().Balance != 0 {
		t.Error("Balance should be 0 after reset")
	}
}

func TestOffline_NoneIsNoContent(t *testing.T) {
	env := newTestEnv(t)
	if w := env.do(t, "GET", "/api/offline", ""); w.Code != http.StatusNoContent {
		t.Errorf("GET /api/offline = %d, want 204", w.Code)
	}
}

func TestJournal(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, "POST", "/api/action", `{"count": 2}`)
	env.do(t, "POST", "/api/purchase/tech", "")
	if err := env.engine.Save(context.Background()); err != nil {
		t.Fatal(err)
	}

	w := env.do(t, "GET", "/api/journal?limit=10", "")
	var resp struct {
		Entries []domain.LedgerEntry `json:"entries"`
	}
	decode(t, w, &resp)
	if len(resp.Entries) != 1 || resp.Entries[0].ItemKey != "tech" || resp.Entries[0].Amount != 2 {
		t.Errorf("journal = %+v", resp.Entries)
	}

	w = env.do(t, "GET", "/api/journal/spent", "")
	var spent struct {
		Spent map[string]float64 `json:"spent"`
	}
	decode(t, w, &spent)
	if spent.Spent["tech"] != 2 || len(spent.Spent) != 1 {
		t.Errorf("spent = %v, want tech=2", spent.Spent)
	}

	w = env.do(t, "GET", "/api/offline/history", "")
	if w.Code != http.StatusOK {
		t.Errorf("GET /api/offline/history = %d, want 200", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, "GET", "/api/snapshot", "")
	w := env.do(t, "GET", "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /metrics = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `shuffle_api_requests_total{code="200",route="/api/snapshot"}`) {
		t.Error("metrics should count /api/snapshot by route pattern")
	}
}

// ─── Live Feeds ─────────────────────────────────────────────────────────────

func TestHub_PublishSubscribe(t *testing.T) {
	h := NewHub(quietLog)
	_, ch, unsub := h.Subscribe()
	if h.ClientCount() != 1 {
		t.Fatalf("ClientCount() = %d, want 1", h.ClientCount())
	}

	h.Publish("snapshot", map[string]int{"balance": 4})
	var ev Event
	if err := json.Unmarshal(<-ch, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Type != "snapshot" || ev.Timestamp == 0 {
		t.Errorf("event = %+v", ev)
	}

	unsub()
	unsub()
	if h.ClientCount() != 0 {
		t.Errorf("ClientCount() after unsub = %d, want 0", h.ClientCount())
	}
	if _, ok := <-ch; ok {
		t.Error("channel should be closed")
	}
}

func TestHub_SlowClientDoesNotBlock(t *testing.T) {
	h := NewHub(quietLog)
	_, _, unsub := h.Subscribe()
	defer unsub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			h.Publish("snapshot", i)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full client buffer")
	}
}

func TestSSE(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, "GET", ts.URL+"/api/live", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	deadline := time.Now().Add(2 * time.Second)
	for env.hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	env.hub.Publish("snapshot", env.engine.Snapshot())

	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(line, "data: ") || !strings.Contains(line, `"type":"snapshot"`) {
		t.Errorf("SSE line = %q", line)
	}
}

func TestWebSocket_Commands(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	send := func(cmd Command) Event {
		t.Helper()
		if err := conn.WriteJSON(cmd); err != nil {
			t.Fatal(err)
		}
		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatal(err)
		}
		return ev
	}

	if ev := send(Command{Type: "action"}); ev.Type != "action" {
		t.Errorf("action reply = %+v", ev)
	}
	if ev := send(Command{Type: "purchase", Key: "nope"}); ev.Type != "error" {
		t.Errorf("unknown purchase reply = %+v, want error", ev)
	}
	if ev := send(Command{Type: "reset"}); ev.Type != "error" {
		t.Errorf("unconfirmed reset reply = %+v, want error", ev)
	}
	if ev := send(Command{Type: "dance"}); ev.Type != "error" {
		t.Errorf("unknown command reply = %+v, want error", ev)
	}
	if ev := send(Command{Type: "snapshot"}); ev.Type != "snapshot" {
		t.Errorf("snapshot reply = %+v", ev)
	}
	if env.engine.Snapshot().Balance != 1 {
		t.Errorf("Balance = %v, want 1", env.engine.Snapshot().Balance)
	}
}

func TestHub_ShutdownDisconnectsWebSockets(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteJSON(Command{Type: "action"}); err != nil {
		t.Fatal(err)
	}
	var ev Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := env.hub.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() = %v", err)
	}
	if env.hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d after shutdown, want 0", env.hub.ClientCount())
	}

	// Commands sent after shutdown never reach the engine.
	conn.WriteJSON(Command{Type: "action"})
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("ReadMessage() after shutdown should fail")
	}
	if got := env.engine.Snapshot().Balance; got != 1 {
		t.Errorf("Balance = %v, want 1", got)
	}

	// New connections are refused.
	late, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		defer late.Close()
		late.SetReadDeadline(time.Now().Add(5 * time.Second))
		if _, _, err := late.ReadMessage(); err == nil {
			t.Error("connection opened after shutdown should be closed")
		}
	}
}

func TestWebSocket_EndsWithRequestContext(t *testing.T) {
	env := newTestEnv(t)
	base, cancelBase := context.WithCancel(context.Background())
	ts := httptest.NewUnstartedServer(env.server.Handler())
	ts.Config.BaseContext = func(net.Listener) context.Context { return base }
	ts.Start()
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	defer conn.Close()

	cancelBase()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err = conn.ReadMessage()
	if err == nil {
		t.Fatal("ReadMessage() should fail once the server context is cancelled")
	}
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		t.Errorf("connection stayed open after cancel: %v", err)
	}
}
