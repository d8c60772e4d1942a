package world

import (
	"errors"
	"slices"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"astra.mc/internal/sim/world/registry"
	"astra.mc/internal/sim/world/terrain/gen"
)

// recordingDispatcher keeps a deep copy of every delivered delta.
type recordingDispatcher struct {
	deltas map[ConnID][]Delta
	closed map[ConnID]string
	fail   map[ConnID]bool
}

func newRecorder() *recordingDispatcher {
	return &recordingDispatcher{
		deltas: map[ConnID][]Delta{},
		closed: map[ConnID]string{},
		fail:   map[ConnID]bool{},
	}
}

func (r *recordingDispatcher) Deliver(c ConnID, d *Delta) error {
	if r.fail[c] {
		return errors.New("outbox full")
	}
	r.deltas[c] = append(r.deltas[c], cloneDelta(d))
	return nil
}

func (r *recordingDispatcher) Close(c ConnID, reason string) { r.closed[c] = reason }

func (r *recordingDispatcher) last(t *testing.T, c ConnID) Delta {
	t.Helper()
	ds := r.deltas[c]
	if len(ds) == 0 {
		t.Fatalf("no deltas for conn %d", c)
	}
	return ds[len(ds)-1]
}

func cloneDelta(d *Delta) Delta {
	c := *d
	if d.Welcome != nil {
		v := *d.Welcome
		c.Welcome = &v
	}
	if d.Time != nil {
		v := *d.Time
		c.Time = &v
	}
	c.Unload = slices.Clone(d.Unload)
	c.Chunks = slices.Clone(d.Chunks)
	c.Blocks = slices.Clone(d.Blocks)
	c.Corrections = slices.Clone(d.Corrections)
	c.Entities = slices.Clone(d.Entities)
	c.Removed = slices.Clone(d.Removed)
	return c
}

func testConfig() WorldConfig {
	return WorldConfig{
		WorldSeed:          12345,
		RngSeed:            7,
		Mode:               gen.Simple,
		Height:             64,
		ViewDistance:       2,
		MaxPlayers:         4,
		MaxMobs:            8,
		MaxBlockChanges:    16,
		MaxWorldEdits:      64,
		InboxSize:          64,
		SpawnIntervalTicks: 1_000_000,
	}
}

func newTestWorld(t *testing.T, cfg WorldConfig) (*World, *recordingDispatcher) {
	t.Helper()
	rec := newRecorder()
	w, err := New(cfg, rec, nil)
	if err != nil {
		t.Fatalf("new world: %v", err)
	}
	return w, rec
}

// joinPlayer joins a player at spawn and runs the tick that admits it.
func joinPlayer(t *testing.T, w *World, name string, conn ConnID, spawn mgl64.Vec3) registry.Handle {
	t.Helper()
	resp := make(chan JoinResponse, 1)
	if err := w.Join(JoinRequest{Name: name, Conn: conn, Spawn: &spawn, Resp: resp}); err != nil {
		t.Fatalf("join %s: %v", name, err)
	}
	w.Step()
	select {
	case r := <-resp:
		if r.Err != nil {
			t.Fatalf("join %s: %v", name, r.Err)
		}
		return r.Handle
	default:
		t.Fatalf("join %s: no response", name)
	}
	return registry.Handle{}
}

func submit(t *testing.T, w *World, in Intent) {
	t.Helper()
	if err := w.Submit(in); err != nil {
		t.Fatalf("submit %s: %v", in.Kind, err)
	}
}
