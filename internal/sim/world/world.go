package world

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"

	"astra.mc/internal/sim/world/ledger"
	"astra.mc/internal/sim/world/logic/mathx"
	"astra.mc/internal/sim/world/registry"
	"astra.mc/internal/sim/world/terrain/gen"
	"astra.mc/internal/sim/world/terrain/store"
)

var (
	ErrModeLocked   = errors.New("world: worldgen mode is fixed for the lifetime of the world")
	ErrInboxFull    = errors.New("world: inbox full")
	ErrServerFull   = errors.New("world: server full")
	ErrStopped      = errors.New("world: stopped")
	ErrInvalidBlock = errors.New("world: invalid block")
	ErrBadBehavior  = errors.New("world: invalid behavior state")
)

// World is a single-threaded authoritative simulation.
// All state must be accessed only from the world loop goroutine; other
// goroutines talk to it through Submit and read Metrics.
type World struct {
	cfg    WorldConfig
	gen    gen.Generator
	column func(cx, cz int) (gen.Column, error)
	blocks *store.Overlay
	ledger *ledger.Ledger

	players *registry.Arena[PlayerData]
	mobs    *registry.Arena[MobData]
	rng     *mathx.Rand

	dispatcher  Dispatcher
	logger      *log.Logger
	yielder     Yielder
	tickLogger  TickLogger
	auditLogger AuditLogger
	observer    TickObserver

	inbox    chan Intent
	stop     chan struct{}
	stopOnce sync.Once
	stopped  atomic.Bool

	tick      atomic.Uint32
	worldTime atomic.Uint32
	phase     atomic.Uint32

	metrics atomic.Value
	totals  MetricTotals

	hashedSeed int64

	// Per-tick scratch. Reused across ticks; never shared outside Step.
	genCursor int
	order     []registry.Handle
	generated []ChunkData
	genIndex  map[int64]int
	sends     []chunkSend
	editBuf   []store.Edit
	removed   []int32
	failed    []registry.Handle
	delta     Delta
	welcome   Welcome
	timeMsg   TimeUpdate
	entry     TickLogEntry
}

type chunkSend struct {
	player registry.Handle
	idx    int
}

func New(cfg WorldConfig, d Dispatcher, logger *log.Logger) (*World, error) {
	if d == nil {
		return nil, errors.New("world: nil dispatcher")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	cfg.applyDefaults()
	if cfg.Height > gen.MaxHeight || cfg.Border > gen.MaxBorder {
		return nil, fmt.Errorf("world: height %d or border %d exceeds %d/%d", cfg.Height, cfg.Border, gen.MaxHeight, gen.MaxBorder)
	}
	if cfg.TickRateHz > MaxTickRateHz {
		return nil, fmt.Errorf("world: tick rate %d exceeds %d", cfg.TickRateHz, MaxTickRateHz)
	}
	if cfg.MaxPlayers > registry.MaxCapacity || cfg.MaxMobs > registry.MaxCapacity {
		return nil, fmt.Errorf("world: capacity exceeds %d", registry.MaxCapacity)
	}
	g := gen.Generator{Seed: cfg.WorldSeed, Mode: cfg.Mode, Height: cfg.Height, Border: cfg.Border}
	// Probe the generator once so a bad mode or height fails at startup.
	if _, err := g.Block(0, 0, 0); err != nil {
		return nil, fmt.Errorf("world: %w", err)
	}

	w := &World{
		cfg:        cfg,
		gen:        g,
		column:     g.Column,
		blocks:     store.NewOverlay(g, cfg.MaxWorldEdits),
		ledger:     ledger.New(cfg.MaxBlockChanges),
		players:    registry.New[PlayerData](cfg.MaxPlayers),
		mobs:       registry.New[MobData](cfg.MaxMobs),
		rng:        mathx.NewRand(cfg.RngSeed),
		dispatcher: d,
		logger:     logger,
		yielder:    NopYielder{},
		inbox:      make(chan Intent, cfg.InboxSize),
		stop:       make(chan struct{}),
		hashedSeed: hashSeed(cfg.WorldSeed),
		order:      make([]registry.Handle, 0, cfg.MaxPlayers),
		genIndex:   make(map[int64]int, cfg.GenBudget),
		generated:  make([]ChunkData, 0, cfg.GenBudget),
		sends:      make([]chunkSend, 0, cfg.GenBudget*2),
		removed:    make([]int32, 0, cfg.MaxPlayers+cfg.MaxMobs),
		failed:     make([]registry.Handle, 0, cfg.MaxPlayers),
	}
	w.metrics.Store(WorldMetrics{
		MaxPlayers:  cfg.MaxPlayers,
		QueueDepths: QueueDepths{InboxCap: cfg.InboxSize},
	})
	return w, nil
}

func (w *World) SetYielder(y Yielder) {
	if y == nil {
		y = NopYielder{}
	}
	w.yielder = y
}

func (w *World) SetTickLogger(l TickLogger)   { w.tickLogger = l }
func (w *World) SetAuditLogger(l AuditLogger) { w.auditLogger = l }
func (w *World) SetObserver(o TickObserver)   { w.observer = o }

// SetWorldgenMode enforces the mode lock: a live world accepts only the mode
// it was built with and rejects any other with ErrModeLocked.
func (w *World) SetWorldgenMode(m gen.Mode) error {
	if m != w.cfg.Mode {
		return fmt.Errorf("%w: running %s, requested %s", ErrModeLocked, w.cfg.Mode, m)
	}
	return nil
}

func (w *World) Config() WorldConfig { return w.cfg }

func (w *World) CurrentTick() uint32 { return w.tick.Load() }

func (w *World) WorldTime() uint16 { return uint16(w.worldTime.Load()) }

func (w *World) Phase() Phase { return Phase(w.phase.Load()) }

// Submit enqueues an intent without blocking.
func (w *World) Submit(in Intent) error {
	if w.stopped.Load() {
		return ErrStopped
	}
	select {
	case w.inbox <- in:
		return nil
	default:
		return ErrInboxFull
	}
}

// Join submits a join request. The outcome arrives on req.Resp after the
// next Reconciling phase.
func (w *World) Join(req JoinRequest) error {
	if req.Resp == nil || cap(req.Resp) == 0 {
		return errors.New("world: join response channel must be buffered")
	}
	return w.Submit(Intent{Kind: IntentJoin, Join: &req})
}

// Wire entity ids: players take 1+index, mobs follow after every player slot.
func (w *World) playerEntityID(h registry.Handle) int32 { return 1 + int32(h.Index) }

func (w *World) mobEntityID(h registry.Handle) int32 {
	return 1 + int32(w.cfg.MaxPlayers) + int32(h.Index)
}

// entitySlot maps a wire entity id back to its bit in PlayerData.known.
func entitySlot(id int32) int { return int(id - 1) }

func hashSeed(seed uint32) int64 {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(seed))
	sum := sha256.Sum256(b[:])
	return int64(binary.BigEndian.Uint64(sum[:8]))
}
