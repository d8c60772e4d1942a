package world

import (
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"astra.mc/internal/sim/world/ledger"
	"astra.mc/internal/sim/world/registry"
	"astra.mc/internal/sim/world/terrain/gen"
	"astra.mc/internal/sim/world/terrain/store"
)

func TestScenario_PlaceBlockReachesViewerAndLedgerDrains(t *testing.T) {
	w, rec := newTestWorld(t, WorldConfig{WorldSeed: 12345, Mode: gen.Simple, ViewDistance: 2})
	h := joinPlayer(t, w, "alice", 1, mgl64.Vec3{0, 0, 0})

	submit(t, w, Intent{Kind: IntentPlaceBlock, Player: h, Target: store.BlockPos{X: 1, Y: 1, Z: 1}, Content: gen.Glass})
	w.Step()

	d := rec.last(t, 1)
	if d.Tick != w.CurrentTick() {
		t.Fatalf("last delta is from tick %d, world at %d", d.Tick, w.CurrentTick())
	}
	if len(d.Blocks) != 1 {
		t.Fatalf("expected exactly one block change, got %+v", d.Blocks)
	}
	c := d.Blocks[0]
	if c.Pos != (store.BlockPos{X: 1, Y: 1, Z: 1}) || c.Block != gen.Glass || c.Cause != ledger.CausePlayer {
		t.Fatalf("unexpected change %+v", c)
	}
	if w.ledger.Len() != 0 {
		t.Fatalf("ledger not drained: %d", w.ledger.Len())
	}
	if b, _ := w.blocks.Get(1, 1, 1); b != gen.Glass {
		t.Fatalf("edit not applied: %s", b)
	}
}

func TestVisibility_ChebyshevChunkDistance(t *testing.T) {
	w, rec := newTestWorld(t, testConfig())
	h := joinPlayer(t, w, "alice", 1, mgl64.Vec3{0, 0, 0})

	targets := []store.BlockPos{
		{X: 32, Y: 1, Z: 0},   // chunk (2,0)
		{X: 48, Y: 1, Z: 0},   // chunk (3,0)
		{X: 40, Y: 1, Z: 40},  // chunk (2,2)
		{X: -33, Y: 1, Z: 0},  // chunk (-3,0)
		{X: -32, Y: 1, Z: 47}, // chunk (-2,2)
	}
	for _, p := range targets {
		submit(t, w, Intent{Kind: IntentPlaceBlock, Player: h, Target: p, Content: gen.Glass})
	}
	w.Step()

	d := rec.last(t, 1)
	got := map[store.BlockPos]bool{}
	for _, c := range d.Blocks {
		got[c.Pos] = true
	}
	want := map[store.BlockPos]bool{targets[0]: true, targets[2]: true, targets[4]: true}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for p := range want {
		if !got[p] {
			t.Fatalf("missing visible change at %+v", p)
		}
	}
}

func TestVisible_Table(t *testing.T) {
	p := &PlayerData{ViewDistance: 2}
	cases := []struct {
		x, z int
		want bool
	}{
		{0, 0, true},
		{47, 0, true},
		{48, 0, false},
		{-32, -32, true},
		{-33, 0, false},
		{20, 47, true},
		{20, 48, false},
	}
	for _, tc := range cases {
		if got := visible(p, tc.x, tc.z); got != tc.want {
			t.Fatalf("visible(%d,%d)=%v want %v", tc.x, tc.z, got, tc.want)
		}
	}
}

func TestLedger_FIFOWithinTick(t *testing.T) {
	w, rec := newTestWorld(t, testConfig())
	h := joinPlayer(t, w, "alice", 1, mgl64.Vec3{0, 0, 0})

	pos := store.BlockPos{X: 3, Y: 50, Z: 3}
	submit(t, w, Intent{Kind: IntentPlaceBlock, Player: h, Target: pos, Content: gen.Planks})
	submit(t, w, Intent{Kind: IntentBreakBlock, Player: h, Target: pos})
	submit(t, w, Intent{Kind: IntentPlaceBlock, Player: h, Target: pos, Content: gen.Glass})
	w.Step()

	d := rec.last(t, 1)
	want := []gen.BlockID{gen.Planks, gen.Air, gen.Glass}
	if len(d.Blocks) != len(want) {
		t.Fatalf("blocks=%+v", d.Blocks)
	}
	for i, b := range want {
		if d.Blocks[i].Block != b {
			t.Fatalf("entry %d: got %s want %s", i, d.Blocks[i].Block, b)
		}
	}
	if b, _ := w.blocks.Get(pos.X, pos.Y, pos.Z); b != gen.Glass {
		t.Fatalf("final block %s", b)
	}
}

func TestLedgerFull_RejectsWithoutPartialState(t *testing.T) {
	cfg := testConfig()
	cfg.MaxBlockChanges = 2
	w, rec := newTestWorld(t, cfg)
	h := joinPlayer(t, w, "alice", 1, mgl64.Vec3{0, 0, 0})

	for x := 1; x <= 3; x++ {
		submit(t, w, Intent{Kind: IntentPlaceBlock, Player: h, Target: store.BlockPos{X: x, Y: 2, Z: 0}, Content: gen.Glass})
	}
	w.Step()

	d := rec.last(t, 1)
	if len(d.Blocks) != 2 {
		t.Fatalf("blocks=%+v", d.Blocks)
	}
	if len(d.Corrections) != 1 || d.Corrections[0].Pos.X != 3 {
		t.Fatalf("corrections=%+v", d.Corrections)
	}
	generated, _ := w.gen.Block(3, 2, 0)
	if got, _ := w.blocks.Get(3, 2, 0); got != generated {
		t.Fatalf("rejected edit leaked into the world: %s", got)
	}
	if d.Corrections[0].Block != generated {
		t.Fatalf("correction carries %s, want %s", d.Corrections[0].Block, generated)
	}
	if m := w.Metrics(); m.Totals.Rejected != 1 {
		t.Fatalf("rejected=%d", m.Totals.Rejected)
	}

	// Capacity is back after the drain.
	submit(t, w, Intent{Kind: IntentPlaceBlock, Player: h, Target: store.BlockPos{X: 3, Y: 2, Z: 0}, Content: gen.Glass})
	w.Step()
	if d := rec.last(t, 1); len(d.Blocks) != 1 {
		t.Fatalf("after drain blocks=%+v", d.Blocks)
	}
}

func TestEdit_OutOfBoundsRejected(t *testing.T) {
	cfg := testConfig()
	cfg.Border = 100
	w, _ := newTestWorld(t, cfg)
	h := joinPlayer(t, w, "alice", 1, mgl64.Vec3{0, 0, 0})

	submit(t, w, Intent{Kind: IntentPlaceBlock, Player: h, Target: store.BlockPos{X: 0, Y: 64, Z: 0}, Content: gen.Glass})
	submit(t, w, Intent{Kind: IntentBreakBlock, Player: h, Target: store.BlockPos{X: 101, Y: 5, Z: 0}})
	submit(t, w, Intent{Kind: IntentMove, Player: h, Pos: mgl64.Vec3{500, 10, 0}})
	w.Step()

	m := w.Metrics()
	if m.Totals.Rejected != 3 || m.QueueDepths.Ledger != 0 || m.WorldEdits != 0 {
		t.Fatalf("metrics=%+v", m)
	}
	p, _ := w.players.Get(h)
	if p.Pos.X() != 0 {
		t.Fatalf("out of border move applied: %v", p.Pos)
	}
}

func TestJoin_RegistryFull(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPlayers = 1
	w, _ := newTestWorld(t, cfg)
	joinPlayer(t, w, "alice", 1, mgl64.Vec3{0, 0, 0})

	resp := make(chan JoinResponse, 1)
	if err := w.Join(JoinRequest{Name: "bob", Conn: 2, Resp: resp}); err != nil {
		t.Fatal(err)
	}
	w.Step()
	r := <-resp
	if !errors.Is(r.Err, ErrServerFull) || !errors.Is(r.Err, registry.ErrFull) {
		t.Fatalf("expected server full, got %v", r.Err)
	}
	if w.players.Len() != 1 {
		t.Fatalf("players=%d", w.players.Len())
	}
}

func TestStaleHandleIntentIsDropped(t *testing.T) {
	w, _ := newTestWorld(t, testConfig())
	ha := joinPlayer(t, w, "alice", 1, mgl64.Vec3{0, 0, 0})
	submit(t, w, Intent{Kind: IntentLeave, Player: ha})
	w.Step()

	hb := joinPlayer(t, w, "bob", 2, mgl64.Vec3{5, 40, 5})
	if hb.Index != ha.Index || hb == ha {
		t.Fatalf("expected slot reuse with new generation: %s vs %s", ha, hb)
	}

	submit(t, w, Intent{Kind: IntentMove, Player: ha, Pos: mgl64.Vec3{200, 40, 200}})
	submit(t, w, Intent{Kind: IntentPlaceBlock, Player: ha, Target: store.BlockPos{X: 1, Y: 1, Z: 1}, Content: gen.Glass})
	w.Step()

	b, err := w.players.Get(hb)
	if err != nil {
		t.Fatal(err)
	}
	if b.Pos != (mgl64.Vec3{5, 40, 5}) {
		t.Fatalf("stale move reached new occupant: %v", b.Pos)
	}
	if got, _ := w.blocks.Get(1, 1, 1); got == gen.Glass {
		t.Fatalf("stale edit applied")
	}
	if m := w.Metrics(); m.Totals.Stale != 2 {
		t.Fatalf("stale=%d", m.Totals.Stale)
	}
}

func TestTick_MonotonicAndWorldTimeWraps(t *testing.T) {
	cfg := testConfig()
	cfg.DayLength = 5
	w, _ := newTestWorld(t, cfg)

	wantTime := []uint16{1, 2, 3, 4, 0, 1, 2}
	for i, wt := range wantTime {
		w.Step()
		if got := w.CurrentTick(); got != uint32(i+1) {
			t.Fatalf("step %d: tick=%d", i, got)
		}
		if got := w.WorldTime(); got != wt {
			t.Fatalf("step %d: world time=%d want %d", i, got, wt)
		}
	}

	w.tick.Store(math.MaxUint32)
	w.Step()
	if w.CurrentTick() != 0 {
		t.Fatalf("tick did not wrap: %d", w.CurrentTick())
	}
}

func TestWorldTime_FullDayLength(t *testing.T) {
	cfg := testConfig()
	cfg.DayLength = 1 << 16
	cfg.TimeStep = 1 << 15
	w, _ := newTestWorld(t, cfg)
	w.Step()
	if w.WorldTime() != 1<<15 {
		t.Fatalf("time=%d", w.WorldTime())
	}
	w.Step()
	if w.WorldTime() != 0 {
		t.Fatalf("time=%d", w.WorldTime())
	}
}

func TestYielder_CalledAtEveryPhaseBoundary(t *testing.T) {
	w, _ := newTestWorld(t, testConfig())
	var got []Phase
	w.SetYielder(YieldFunc(func(done Phase) {
		if w.Phase() != done {
			t.Fatalf("yield for %s while in %s", done, w.Phase())
		}
		got = append(got, done)
	}))
	w.Step()

	want := []Phase{PhaseGenerating, PhaseReconciling, PhaseBroadcasting, PhaseYielding}
	if len(got) != len(want) {
		t.Fatalf("phases=%v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("phases=%v", got)
		}
	}
	if w.Phase() != PhaseIdle {
		t.Fatalf("phase after step: %s", w.Phase())
	}
}

func TestWorldgenModeLocked(t *testing.T) {
	w, _ := newTestWorld(t, testConfig())
	if err := w.SetWorldgenMode(gen.Simple); err != nil {
		t.Fatalf("same mode: %v", err)
	}
	if err := w.SetWorldgenMode(gen.Complex); !errors.Is(err, ErrModeLocked) {
		t.Fatalf("expected ErrModeLocked, got %v", err)
	}
}

func TestNew_RejectsLimits(t *testing.T) {
	cases := []struct {
		name string
		mut  func(*WorldConfig)
	}{
		{"height", func(c *WorldConfig) { c.Height = gen.MaxHeight + 1 }},
		{"border", func(c *WorldConfig) { c.Border = gen.MaxBorder + 1 }},
		{"tick rate", func(c *WorldConfig) { c.TickRateHz = MaxTickRateHz + 1 }},
	}
	for _, tc := range cases {
		cfg := testConfig()
		tc.mut(&cfg)
		if _, err := New(cfg, newRecorder(), nil); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
	cfg := testConfig()
	cfg.Height, cfg.Border, cfg.TickRateHz = gen.MaxHeight, gen.MaxBorder, MaxTickRateHz
	if _, err := New(cfg, newRecorder(), nil); err != nil {
		t.Fatalf("limits themselves: %v", err)
	}
}

func TestMetrics_BeforeFirstStep(t *testing.T) {
	w, _ := newTestWorld(t, testConfig())
	m := w.Metrics()
	if m.MaxPlayers != 4 || m.QueueDepths.InboxCap != 64 || m.Tick != 0 {
		t.Fatalf("metrics=%+v", m)
	}
}

func TestSubmit_InboxFull(t *testing.T) {
	cfg := testConfig()
	cfg.InboxSize = 2
	w, _ := newTestWorld(t, cfg)
	for i := 0; i < 2; i++ {
		if err := w.Submit(Intent{Kind: IntentKeepAlive}); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Submit(Intent{Kind: IntentKeepAlive}); !errors.Is(err, ErrInboxFull) {
		t.Fatalf("expected ErrInboxFull, got %v", err)
	}
	w.Step()
	if err := w.Submit(Intent{Kind: IntentKeepAlive}); err != nil {
		t.Fatalf("inbox not drained: %v", err)
	}
}
