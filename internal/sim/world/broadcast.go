package world

import (
	"astra.mc/internal/sim/world/ledger"
	"astra.mc/internal/sim/world/logic/mathx"
	"astra.mc/internal/sim/world/registry"
)

// visible reports whether a block or entity at block coordinates (x, z)
// lies within p's view distance. Distance is Chebyshev in chunk units, y ignored.
func visible(p *PlayerData, x, z int) bool {
	return mathx.Chebyshev(mathx.ChunkOf(x), mathx.ChunkOf(z), p.centerX, p.centerZ) <= p.ViewDistance
}

func (p *PlayerData) knows(id int32) bool {
	s := entitySlot(id)
	return p.known[s/64]&(1<<(s%64)) != 0
}

func (p *PlayerData) setKnown(id int32, on bool) {
	s := entitySlot(id)
	if on {
		p.known[s/64] |= 1 << (s % 64)
	} else {
		p.known[s/64] &^= 1 << (s % 64)
	}
}

// broadcast builds and delivers one delta per player. A failed delivery
// drops that player's whole delta; the player is removed in Yielding.
func (w *World) broadcast() {
	tick := w.tick.Load()
	pending := w.ledger.Pending()
	for h, p := range w.players.All() {
		d := &w.delta
		d.reset(tick)
		w.fill(d, h, p, tick, pending)
		if d.Empty() {
			continue
		}
		if err := w.dispatcher.Deliver(p.Conn, d); err != nil {
			w.entry.DeliverFailures++
			w.totals.DeliverFailures++
			w.logger.Printf("[world] tick %d: deliver to %s failed: %v", tick, p.Name, err)
			w.failed = append(w.failed, h)
			continue
		}
		p.welcomed = true
		p.unload = p.unload[:0]
		p.nCorrections = 0
	}
	w.removed = w.removed[:0]
}

func (w *World) fill(d *Delta, h registry.Handle, p *PlayerData, tick uint32, pending []ledger.BlockChange) {
	if !p.welcomed {
		w.welcome = Welcome{
			EntityID:     p.EntityID,
			Spawn:        p.Pos,
			ViewDistance: p.ViewDistance,
			MaxPlayers:   w.cfg.MaxPlayers,
			HashedSeed:   w.hashedSeed,
			Mode:         w.cfg.Mode,
			Height:       w.cfg.Height,
		}
		d.Welcome = &w.welcome
	}
	if !p.welcomed || tick%uint32(w.cfg.TimeSyncTicks) == 0 {
		w.timeMsg = TimeUpdate{Ticks: tick, WorldTime: uint16(w.worldTime.Load())}
		d.Time = &w.timeMsg
	}
	if since := tick - p.JoinedTick; since > 0 && since%uint32(w.cfg.KeepAliveTicks) == 0 {
		d.KeepAlive = int64(tick)
	}

	for _, k := range p.unload {
		cx, cz := mathx.UnpackChunk(k)
		d.Unload = append(d.Unload, ChunkPos{CX: cx, CZ: cz})
	}
	d.Chunks = w.chunkSendsFor(h, p, d.Chunks)
	for _, c := range pending {
		if visible(p, c.Pos.X, c.Pos.Z) {
			d.Blocks = append(d.Blocks, c)
		}
	}
	d.Corrections = append(d.Corrections, p.corrections[:p.nCorrections]...)

	for _, id := range w.removed {
		if p.knows(id) {
			p.setKnown(id, false)
			d.Removed = append(d.Removed, id)
		}
	}
	for _, o := range w.players.All() {
		if o == p {
			continue
		}
		w.track(d, p, EntityUpdate{
			ID: o.EntityID, Kind: EntityPlayer, Name: o.Name, UUID: o.UUID,
			Pos: o.Pos, Yaw: o.Yaw, Pitch: o.Pitch,
		}, o.moved)
	}
	for _, m := range w.mobs.All() {
		w.track(d, p, EntityUpdate{
			ID: m.EntityID, Kind: EntityMob, Mob: m.Kind,
			Pos: m.Pos, Yaw: m.Yaw,
		}, m.moved)
	}
}

// track appends u to d if p should hear about it: a spawn when the entity
// comes into view, a move while in view, a removal when it leaves.
func (w *World) track(d *Delta, p *PlayerData, u EntityUpdate, moved bool) {
	in := visible(p, blockCoord(u.Pos.X()), blockCoord(u.Pos.Z()))
	known := p.knows(u.ID)
	switch {
	case in && !known:
		p.setKnown(u.ID, true)
		u.Spawn = true
		d.Entities = append(d.Entities, u)
	case in && moved:
		d.Entities = append(d.Entities, u)
	case !in && known:
		p.setKnown(u.ID, false)
		d.Removed = append(d.Removed, u.ID)
	}
}
