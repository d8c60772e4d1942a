package world

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"astra.mc/internal/sim/world/registry"
)

const (
	mobHealth      = 20
	chaseRange     = 16.0
	wanderRange    = 8
	wanderSpeed    = 0.08
	chaseSpeed     = 0.15
	idleTicksMin   = 20
	idleTicksRange = 60
)

// spawnMobs runs the periodic spawn check: one attempt near a random player.
func (w *World) spawnMobs() {
	tick := w.tick.Load()
	if tick%uint32(w.cfg.SpawnIntervalTicks) != 0 {
		return
	}
	n := w.players.Len()
	if n == 0 {
		return
	}
	pick := w.rng.Intn(n)
	var anchor *PlayerData
	i := 0
	for _, p := range w.players.All() {
		if i == pick {
			anchor = p
			break
		}
		i++
	}
	if anchor == nil {
		return
	}

	span := anchor.ViewDistance * 16
	x := blockCoord(anchor.Pos.X()) + w.rng.Intn(2*span+1) - span
	z := blockCoord(anchor.Pos.Z()) + w.rng.Intn(2*span+1) - span
	y, err := w.gen.SurfaceY(x, z)
	if err != nil {
		return
	}
	kind := MobPig + MobKind(w.rng.Intn(2))
	if w.night() {
		kind = MobZombie + MobKind(w.rng.Intn(2))
	}
	h, m, err := w.mobs.Register(MobData{
		Kind:       kind,
		Pos:        mgl64.Vec3{float64(x) + 0.5, float64(y + 1), float64(z) + 0.5},
		Health:     mobHealth,
		State:      BehaviorIdle,
		StateTicks: idleTicksMin,
		SpawnTick:  tick,
	})
	if err != nil {
		if errors.Is(err, registry.ErrFull) {
			w.totals.RegistryFull++
		}
		return
	}
	m.EntityID = w.mobEntityID(h)
	m.moved = true
	w.entry.Spawned++
}

// stepMobs advances every mob's behaviour. A mob whose update fails is
// logged and left as it was; the rest of the tick carries on.
func (w *World) stepMobs() {
	for h, m := range w.mobs.All() {
		if m.Health <= 0 {
			w.despawn(h, m)
			continue
		}
		if d := w.nearestPlayerChunks(m.Pos.X(), m.Pos.Z()); d < 0 || d > w.cfg.MobDespawnChunks {
			w.despawn(h, m)
			continue
		}
		if err := w.stepMob(m); err != nil {
			w.entry.MobErrors++
			w.totals.MobErrors++
			w.logger.Printf("[world] tick %d: mob %d skipped: %v", w.tick.Load(), m.EntityID, err)
		}
	}
}

func (w *World) despawn(h registry.Handle, m *MobData) {
	w.removed = append(w.removed, m.EntityID)
	w.entry.Despawned++
	_ = w.mobs.Unregister(h)
}

func (w *World) stepMob(m *MobData) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	switch m.State {
	case BehaviorIdle:
		if m.Kind.Hostile() {
			if t, ok := w.chaseTarget(m.Pos); ok {
				m.State, m.Target = BehaviorChase, t
				return nil
			}
		}
		m.StateTicks--
		if m.StateTicks > 0 {
			return nil
		}
		m.State = BehaviorWander
		m.Target = mgl64.Vec3{
			m.Pos.X() + float64(w.rng.Intn(2*wanderRange+1)-wanderRange),
			m.Pos.Y(),
			m.Pos.Z() + float64(w.rng.Intn(2*wanderRange+1)-wanderRange),
		}
	case BehaviorWander:
		if w.walk(m, m.Target, wanderSpeed) {
			w.idle(m)
		}
	case BehaviorChase:
		t, ok := w.chaseTarget(m.Pos)
		if !ok {
			w.idle(m)
			return nil
		}
		m.Target = t
		w.walk(m, t, chaseSpeed)
	default:
		return fmt.Errorf("%w: %d", ErrBadBehavior, m.State)
	}
	return nil
}

func (w *World) idle(m *MobData) {
	m.State = BehaviorIdle
	m.StateTicks = idleTicksMin + w.rng.Intn(idleTicksRange)
}

func (w *World) chaseTarget(from mgl64.Vec3) (mgl64.Vec3, bool) {
	var best mgl64.Vec3
	bestD := math.Inf(1)
	for _, p := range w.players.All() {
		d := p.Pos.Sub(from).Len()
		if d <= chaseRange && d < bestD {
			best, bestD = p.Pos, d
		}
	}
	return best, !math.IsInf(bestD, 1)
}

// walk moves m horizontally toward target, keeping it on the generated
// surface. It reports whether the target was reached.
func (w *World) walk(m *MobData, target mgl64.Vec3, speed float64) bool {
	d := mgl64.Vec3{target.X() - m.Pos.X(), 0, target.Z() - m.Pos.Z()}
	dist := d.Len()
	if dist < speed {
		return true
	}
	step := d.Mul(speed / dist)
	next := m.Pos.Add(step)
	y, err := w.gen.SurfaceY(blockCoord(next.X()), blockCoord(next.Z()))
	if err != nil {
		return true
	}
	next[1] = float64(y + 1)
	m.Pos = next
	m.Yaw = float32(math.Atan2(-d.X(), d.Z()) * 180 / math.Pi)
	m.moved = true
	return false
}
