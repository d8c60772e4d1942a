package observer

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"astra.mc/internal/observerproto"
	"astra.mc/internal/sim/world"
	"astra.mc/internal/sim/world/terrain/gen"
)

type fakeSource struct{ m world.WorldMetrics }

func (f fakeSource) Config() world.WorldConfig {
	return world.WorldConfig{WorldSeed: 12345, Mode: gen.Complex, Height: 128, ViewDistance: 4, MaxPlayers: 8, TickRateHz: 20, DayLength: 24000}
}

func (f fakeSource) CurrentTick() uint32         { return f.m.Tick }
func (f fakeSource) Metrics() world.WorldMetrics { return f.m }

func TestObserver_StreamsTicks(t *testing.T) {
	s := NewServer(fakeSource{}, nil)
	hs := httptest.NewServer(s.Handler())
	defer hs.Close()

	url := "ws" + strings.TrimPrefix(hs.URL, "http") + "/v1/observe"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	for i := 0; s.Clients() == 0 && i < 200; i++ {
		time.Sleep(5 * time.Millisecond)
	}
	if s.Clients() != 1 {
		t.Fatalf("clients=%d", s.Clients())
	}

	_ = s.WriteAudit(world.AuditEntry{Tick: 3, Actor: 1, Cause: "player", Pos: [3]int{1, 1, 1}, To: "stone"})
	s.ObserveTick(world.TickLogEntry{Tick: 3, WorldTime: 30, BlockChanges: 1, Players: 1})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg observerproto.TickMsg
	if err := json.Unmarshal(b, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Type != observerproto.TypeTick || msg.Tick != 3 || msg.BlockChanges != 1 || len(msg.Audit) != 1 {
		t.Fatalf("msg=%+v", msg)
	}

	s.ObserveTick(world.TickLogEntry{Tick: 4})
	_, b, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	msg = observerproto.TickMsg{}
	_ = json.Unmarshal(b, &msg)
	if msg.Tick != 4 || len(msg.Audit) != 0 {
		t.Fatalf("audit not reset between ticks: %+v", msg)
	}
}

func TestObserver_MetricsAndBootstrap(t *testing.T) {
	src := fakeSource{m: world.WorldMetrics{Tick: 42, Players: 2, MaxPlayers: 8, Totals: world.MetricTotals{Rejected: 5}}}
	hs := httptest.NewServer(NewServer(src, nil).Handler())
	defer hs.Close()

	body := get(t, hs.URL+"/metrics")
	for _, want := range []string{
		"astra_world_tick 42",
		"astra_world_players 2",
		`astra_world_events_total{event="rejected"} 5`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q:\n%s", want, body)
		}
	}

	var boot observerproto.BootstrapResponse
	if err := json.Unmarshal([]byte(get(t, hs.URL+"/v1/bootstrap")), &boot); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if boot.WorldParams.Seed != 12345 || boot.WorldParams.Worldgen != "complex" || boot.Tick != 42 {
		t.Fatalf("bootstrap=%+v", boot)
	}
	if len(boot.BlockPalette) == 0 || boot.BlockPalette[int(gen.Stone)] != gen.Stone.String() {
		t.Fatalf("palette=%v", boot.BlockPalette)
	}

	if get(t, hs.URL+"/healthz") != "ok" {
		t.Fatalf("healthz")
	}
}

func get(t *testing.T, url string) string {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get %s: %d %s", url, resp.StatusCode, b)
	}
	return string(b)
}

func TestSendLatest_DropsOldest(t *testing.T) {
	ch := make(chan []byte, 2)
	if !sendLatest(ch, []byte("1")) || !sendLatest(ch, []byte("2")) {
		t.Fatalf("expected room for two")
	}
	if sendLatest(ch, []byte("3")) {
		t.Fatalf("expected a drop")
	}
	if a, b := string(<-ch), string(<-ch); a != "2" || b != "3" {
		t.Fatalf("got %s %s", a, b)
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:5000": true,
		"[::1]:5000":     true,
		"10.0.0.2:5000":  false,
		"example:80":     false,
	}
	for addr, want := range cases {
		if got := isLoopbackRemote(addr); got != want {
			t.Fatalf("%s: got %v want %v", addr, got, want)
		}
	}
}
