// Package observer serves read-only views of a running world over HTTP:
// health, Prometheus metrics, a bootstrap document and a websocket stream
// of per-tick summaries. Only loopback clients may observe.
package observer

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"astra.mc/internal/observerproto"
	"astra.mc/internal/sim/world"
	"astra.mc/internal/sim/world/terrain/gen"
)

// Source is the part of the world the observer reads.
type Source interface {
	Config() world.WorldConfig
	CurrentTick() uint32
	Metrics() world.WorldMetrics
}

type Server struct {
	src Source
	log *log.Logger

	upgrader  websocket.Upgrader
	clientBuf int

	nextID  atomic.Uint64
	dropped atomic.Uint64

	mu      sync.Mutex
	clients map[uint64]chan []byte

	// audit collects the current tick's entries; only the world goroutine
	// touches it, through WriteAudit and ObserveTick.
	audit []world.AuditEntry
}

func NewServer(src Source, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Server{
		src:       src,
		log:       logger,
		clientBuf: 8,
		clients:   map[uint64]chan []byte{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // loopback only, see isLoopbackRemote
		},
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", s.MetricsHandler())
	mux.HandleFunc("/v1/bootstrap", s.BootstrapHandler())
	mux.HandleFunc("/v1/observe", s.WSHandler())
	return mux
}

// WriteAudit implements world.AuditLogger.
func (s *Server) WriteAudit(e world.AuditEntry) error {
	s.audit = append(s.audit, e)
	return nil
}

// ObserveTick implements world.TickObserver. It never blocks: a client
// that falls behind loses its oldest queued ticks.
func (s *Server) ObserveTick(e world.TickLogEntry) {
	audit := s.audit
	s.audit = s.audit[:0]

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.clients) == 0 {
		return
	}
	b, err := json.Marshal(observerproto.NewTickMsg(e, audit))
	if err != nil {
		s.log.Printf("[observer] encode tick %d: %v", e.Tick, err)
		return
	}
	for _, ch := range s.clients {
		if !sendLatest(ch, b) {
			s.dropped.Add(1)
		}
	}
}

func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		cfg := s.src.Config()
		resp := observerproto.BootstrapResponse{
			ProtocolVersion: observerproto.Version,
			Tick:            s.src.CurrentTick(),
			WorldParams: observerproto.WorldParams{
				TickRateHz:   cfg.TickRateHz,
				ChunkSize:    [3]int{gen.ChunkSize, gen.ChunkSize, cfg.Height},
				Height:       cfg.Height,
				Seed:         cfg.WorldSeed,
				Worldgen:     cfg.Mode.String(),
				ViewDistance: cfg.ViewDistance,
				MaxPlayers:   cfg.MaxPlayers,
				DayLength:    cfg.DayLength,
			},
			BlockPalette: gen.Palette(),
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) MetricsHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		m := s.src.Metrics()

		gauge := func(name, help string, format string, v any) {
			fmt.Fprintf(rw, "# HELP astra_%s %s\n", name, help)
			fmt.Fprintf(rw, "# TYPE astra_%s gauge\n", name)
			fmt.Fprintf(rw, "astra_%s "+format+"\n", name, v)
		}
		gauge("world_tick", "Current world tick.", "%d", m.Tick)
		gauge("world_time", "Time of day in ticks.", "%d", m.WorldTime)
		gauge("world_players", "Players online.", "%d", m.Players)
		gauge("world_max_players", "Player registry capacity.", "%d", m.MaxPlayers)
		gauge("world_mobs", "Live mobs.", "%d", m.Mobs)
		gauge("world_edits", "Blocks differing from generated terrain.", "%d", m.WorldEdits)
		gauge("world_step_ms", "Last tick step duration in milliseconds.", "%.3f", m.StepMS)
		gauge("observer_clients", "Connected observer websockets.", "%d", s.Clients())

		fmt.Fprintf(rw, "# HELP astra_world_queue_depth Queue backlog depth.\n")
		fmt.Fprintf(rw, "# TYPE astra_world_queue_depth gauge\n")
		fmt.Fprintf(rw, "astra_world_queue_depth{queue=%q} %d\n", "inbox", m.QueueDepths.Inbox)
		fmt.Fprintf(rw, "astra_world_queue_depth{queue=%q} %d\n", "ledger", m.QueueDepths.Ledger)

		t := m.Totals
		fmt.Fprintf(rw, "# HELP astra_world_events_total Counters since start.\n")
		fmt.Fprintf(rw, "# TYPE astra_world_events_total counter\n")
		for _, c := range []struct {
			name string
			v    uint64
		}{
			{"intents", t.Intents},
			{"rejected", t.Rejected},
			{"stale", t.Stale},
			{"block_changes", t.BlockChanges},
			{"chunks_generated", t.ChunksGenerated},
			{"gen_failures", t.GenFailures},
			{"mob_errors", t.MobErrors},
			{"deliver_failures", t.DeliverFailures},
			{"registry_full", t.RegistryFull},
			{"timeouts", t.Timeouts},
			{"observer_dropped", s.dropped.Load()},
		} {
			fmt.Fprintf(rw, "astra_world_events_total{event=%q} %d\n", c.name, c.v)
		}
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		id := s.nextID.Add(1)
		out := make(chan []byte, s.clientBuf)
		s.mu.Lock()
		s.clients[id] = out
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			delete(s.clients, id)
			s.mu.Unlock()
		}()

		// The stream is one-way; reading only notices the client going away.
		gone := make(chan struct{})
		go func() {
			defer close(gone)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-gone:
				return
			case b := <-out:
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					return
				}
			}
		}
	}
}

// sendLatest queues b, dropping the oldest queued message when ch is full.
// It reports whether nothing had to be dropped.
func sendLatest(ch chan []byte, b []byte) bool {
	select {
	case ch <- b:
		return true
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
	return false
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
