package http_test

import (
	"context"
	"encoding/json"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	router "github.com/dkeye/poker/internal/adapters/http"
	"github.com/dkeye/poker/internal/app"
	"github.com/dkeye/poker/internal/app/orch"
	"github.com/dkeye/poker/internal/config"
	"github.com/dkeye/poker/internal/core"
	"github.com/dkeye/poker/internal/core/coretest"
	"github.com/dkeye/poker/internal/events"
	"github.com/dkeye/poker/internal/metrics"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
)

func newTestServer(t *testing.T) (*httptest.Server, *orch.Orchestrator) {
	t.Helper()
	return newTestServerWith(t, nil)
}

func newTestServerWith(t *testing.T, tweak func(*config.Config)) (*httptest.Server, *orch.Orchestrator) {
	t.Helper()
	static := t.TempDir()
	if err := os.WriteFile(filepath.Join(static, "index.html"), []byte("<html>poker</html>"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{
		Mode:           "test",
		StaticPath:     static,
		ReadLimit:      4096,
		PingPeriod:     time.Second,
		PongWait:       2 * time.Second,
		WriteWait:      time.Second,
		SendBuffer:     16,
		Secret:         "test-secret",
		AllowedOrigins: []string{"https://poker.example"},
		PublicURL:      "https://poker.example/",
	}
	if tweak != nil {
		tweak(cfg)
	}
	reg := prometheus.NewRegistry()
	o := &orch.Orchestrator{
		Registry: app.NewRegistry(),
		Rooms:    core.NewDirectory(nil),
		Policy:   app.DropPolicy{},
		Events:   events.LogPublisher{},
		Metrics:  metrics.New(reg),
	}
	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(router.NewHandler(ctx, cfg, o, reg))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return srv, o
}

func get(t *testing.T, url string) (*nethttp.Response, []byte) {
	t.Helper()
	resp, err := nethttp.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, body
}

func TestIndexAndSessionCookie(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, body := get(t, srv.URL+"/")
	if resp.StatusCode != nethttp.StatusOK || !strings.Contains(string(body), "poker") {
		t.Fatalf("GET / = %d %s", resp.StatusCode, body)
	}
	found := false
	for _, c := range resp.Cookies() {
		if c.Name == "PokerSessions" && c.HttpOnly {
			found = true
		}
	}
	if !found {
		t.Error("session cookie not set")
	}
}

func TestHealthz(t *testing.T) {
	srv, o := newTestServer(t)
	_, _ = o.Rooms.Create("ABCD", "Alice", coretest.NewConn("a"), core.RevealStrict)

	resp, body := get(t, srv.URL+"/healthz")
	if resp.StatusCode != nethttp.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var h struct {
		Status string `json:"status"`
		Rooms  int    `json:"rooms"`
	}
	if err := json.Unmarshal(body, &h); err != nil || h.Status != "ok" || h.Rooms != 1 {
		t.Errorf("healthz = %s (%v)", body, err)
	}
}

func TestRoomEndpoints(t *testing.T) {
	srv, o := newTestServer(t)
	alice := coretest.NewConn("alice")
	bob := coretest.NewConn("bob")
	o.Connect(alice, "t1", nil)
	o.Connect(bob, "t2", nil)
	o.CreateRoom(alice, "Alice", "ABCD")
	o.JoinRoom(bob, "Bob", "ABCD")
	o.Vote(bob, "ABCD", "13")

	t.Run("list", func(t *testing.T) {
		_, body := get(t, srv.URL+"/api/rooms")
		var list []core.RoomInfo
		if err := json.Unmarshal(body, &list); err != nil {
			t.Fatal(err)
		}
		if len(list) != 1 || list[0].Code != "ABCD" || list[0].Participants != 2 {
			t.Errorf("list = %+v", list)
		}
	})

	t.Run("state is redacted", func(t *testing.T) {
		resp, body := get(t, srv.URL+"/api/rooms/abcd")
		if resp.StatusCode != nethttp.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		if strings.Contains(string(body), `"13"`) {
			t.Errorf("unrevealed state leaks vote: %s", body)
		}
		var st core.RoomState
		if err := json.Unmarshal(body, &st); err != nil {
			t.Fatal(err)
		}
		if st.Admin != "Alice" || len(st.Players) != 2 || !st.Players[1].Vote.Hidden {
			t.Errorf("state = %+v", st)
		}
	})

	t.Run("unknown room", func(t *testing.T) {
		resp, _ := get(t, srv.URL+"/api/rooms/NOPE")
		if resp.StatusCode != nethttp.StatusNotFound {
			t.Errorf("status = %d", resp.StatusCode)
		}
		resp, _ = get(t, srv.URL+"/api/rooms/NOPE/qr")
		if resp.StatusCode != nethttp.StatusNotFound {
			t.Errorf("qr status = %d", resp.StatusCode)
		}
	})

	t.Run("qr", func(t *testing.T) {
		resp, body := get(t, srv.URL+"/api/rooms/ABCD/qr?size=128")
		if resp.StatusCode != nethttp.StatusOK || resp.Header.Get("Content-Type") != "image/png" {
			t.Fatalf("qr = %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
		}
		if !strings.HasPrefix(string(body), "\x89PNG") {
			t.Error("body is not a PNG")
		}
		resp, _ = get(t, srv.URL+"/api/rooms/ABCD/qr?size=5")
		if resp.StatusCode != nethttp.StatusBadRequest {
			t.Errorf("bad size status = %d", resp.StatusCode)
		}
	})

	t.Run("new code", func(t *testing.T) {
		resp, err := nethttp.Post(srv.URL+"/api/rooms/code", "application/json", nil)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		var out struct {
			RoomCode string `json:"roomCode"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || len(out.RoomCode) != core.CodeLen {
			t.Errorf("code = %q (%v)", out.RoomCode, err)
		}
	})
}

func TestMetricsEndpoint(t *testing.T) {
	srv, o := newTestServer(t)
	c := coretest.NewConn("a")
	o.Connect(c, "t", nil)
	o.CreateRoom(c, "Alice", "ABCD")

	_, body := get(t, srv.URL+"/metrics")
	for _, want := range []string{"poker_rooms_active 1", `poker_intents_total{type="createRoom"} 1`} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func preflight(t *testing.T, srv *httptest.Server, origin string) nethttp.Header {
	t.Helper()
	req, _ := nethttp.NewRequest(nethttp.MethodOptions, srv.URL+"/api/rooms", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", "GET")
	resp, err := nethttp.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	return resp.Header
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t)
	h := preflight(t, srv, "https://poker.example")
	if got := h.Get("Access-Control-Allow-Origin"); got != "https://poker.example" {
		t.Errorf("allow origin = %q", got)
	}
	if got := h.Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("listed origin should get credentials, got %q", got)
	}
}

func TestCORSWildcardOmitsCredentials(t *testing.T) {
	srv, _ := newTestServerWith(t, func(cfg *config.Config) {
		cfg.AllowedOrigins = []string{"*"}
	})
	h := preflight(t, srv, "https://evil.example")
	if got := h.Get("Access-Control-Allow-Origin"); got != "*" && got != "https://evil.example" {
		t.Errorf("allow origin = %q", got)
	}
	if got := h.Get("Access-Control-Allow-Credentials"); got != "" {
		t.Errorf("wildcard origins must not allow credentials, got %q", got)
	}
}

type client struct {
	t  *testing.T
	ws *websocket.Conn
}

func dial(t *testing.T, srv *httptest.Server) *client {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = ws.Close() })
	return &client{t: t, ws: ws}
}

func (c *client) send(v any) {
	c.t.Helper()
	if err := c.ws.WriteJSON(v); err != nil {
		c.t.Fatalf("write: %v", err)
	}
}

// expect reads frames until one of type typ arrives.
func (c *client) expect(typ string, v any) {
	c.t.Helper()
	_ = c.ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.t.Fatalf("waiting for %s: %v", typ, err)
		}
		var env struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &env); err != nil || env.Type != typ {
			continue
		}
		if v != nil {
			if err := json.Unmarshal(data, v); err != nil {
				c.t.Fatalf("decode %s: %v", typ, err)
			}
		}
		return
	}
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestWebSocketRound(t *testing.T) {
	srv, o := newTestServer(t)
	alice := dial(t, srv)
	bob := dial(t, srv)

	alice.send(map[string]any{"type": "ping"})
	alice.expect(core.TypePong, nil)

	alice.send(map[string]any{"type": "createRoom", "userName": "Alice", "roomCode": "abcd"})
	var ack core.RoomAck
	alice.expect(core.TypeRoomCreated, &ack)
	if ack.RoomCode != "ABCD" || ack.Admin != "Alice" {
		t.Fatalf("ack = %+v", ack)
	}

	bob.send(map[string]any{"type": "joinRoom", "userName": "Alice", "roomCode": "ABCD"})
	var e core.ErrorMessage
	bob.expect(core.TypeError, &e)
	if e.Message != orch.MsgAdminName {
		t.Fatalf("error = %q", e.Message)
	}

	bob.send(map[string]any{"type": "joinRoom", "userName": "Bob", "roomCode": "ABCD"})
	bob.expect(core.TypeRoomJoined, nil)
	var st core.RoomState
	alice.expect(core.TypeRoomState, &st)
	for len(st.Players) != 2 {
		alice.expect(core.TypeRoomState, &st)
	}

	bob.send(map[string]any{"type": "vote", "roomCode": "ABCD", "vote": 5})
	alice.expect(core.TypeRoomState, &st)
	if !st.Players[1].Vote.Hidden {
		t.Fatalf("vote not hidden: %+v", st.Players[1])
	}

	alice.send(map[string]any{"type": "revealCards", "roomCode": "ABCD"})
	var revealed core.CardsRevealed
	bob.expect(core.TypeCardsRevealed, &revealed)
	if revealed.Votes["Bob"] != "5" {
		t.Fatalf("revealed = %v", revealed.Votes)
	}

	alice.send(map[string]any{"type": "resetRoom", "roomCode": "ABCD"})
	bob.expect(core.TypeRoomReset, nil)

	bob.send("not an object")
	bob.expect(core.TypeError, &e)
	if e.Message != orch.MsgMalformed {
		t.Errorf("malformed error = %q", e.Message)
	}

	_ = bob.ws.Close()
	for {
		alice.expect(core.TypeRoomState, &st)
		if len(st.Players) == 1 {
			break
		}
	}
	if st.Players[0].Name != "Alice" {
		t.Errorf("players after bob left = %+v", st.Players)
	}

	_ = alice.ws.Close()
	eventually(t, func() bool {
		_, ok := o.Rooms.Get("ABCD")
		return !ok && o.Registry.Len() == 0
	})
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	srv, _ := newTestServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws"
	hdr := nethttp.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, hdr)
	if err == nil {
		t.Fatal("dial from foreign origin should fail")
	}
	if resp == nil || resp.StatusCode != nethttp.StatusForbidden {
		t.Errorf("response = %v", resp)
	}
}
