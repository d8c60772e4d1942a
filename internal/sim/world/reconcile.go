package world

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"astra.mc/internal/sim/world/ledger"
	"astra.mc/internal/sim/world/logic/mathx"
	"astra.mc/internal/sim/world/registry"
	"astra.mc/internal/sim/world/terrain/gen"
	"astra.mc/internal/sim/world/terrain/store"
)

// applyIntents applies everything queued before the phase began, in
// arrival order. Intents submitted meanwhile wait for the next tick.
func (w *World) applyIntents() {
	n := len(w.inbox)
	for i := 0; i < n; i++ {
		in := <-w.inbox
		w.entry.Intents++
		w.totals.Intents++
		if err := w.apply(in); err != nil {
			w.entry.Rejected++
			w.totals.Rejected++
			if errors.Is(err, registry.ErrStaleHandle) {
				w.entry.Stale++
				w.totals.Stale++
			}
		}
	}
}

func (w *World) apply(in Intent) error {
	if in.Kind == IntentJoin {
		return w.join(in.Join)
	}
	p, err := w.players.Get(in.Player)
	if err != nil {
		return err
	}
	switch in.Kind {
	case IntentLeave:
		w.removePlayer(in.Player, p)
		return nil
	case IntentMove:
		return w.move(p, in)
	case IntentPlaceBlock:
		if in.Content == gen.Air || !in.Content.Valid() {
			return ErrInvalidBlock
		}
		return w.edit(p, in.Target, in.Content)
	case IntentBreakBlock:
		return w.edit(p, in.Target, gen.Air)
	case IntentViewDistance:
		old := p.ViewDistance
		p.ViewDistance = w.clampView(in.ViewDistance)
		w.recenter(p, old)
		return nil
	case IntentKeepAlive:
		p.LastAckTick = w.tick.Load()
		return nil
	}
	return fmt.Errorf("world: unknown intent kind %d", in.Kind)
}

func (w *World) clampView(vd int) int {
	if vd <= 0 || vd > w.cfg.ViewDistance {
		return w.cfg.ViewDistance
	}
	return vd
}

func (w *World) join(req *JoinRequest) error {
	if req == nil {
		return errors.New("world: join without request")
	}
	respond := func(r JoinResponse) {
		select {
		case req.Resp <- r:
		default:
		}
	}

	spawn, err := w.spawnPoint(req.Spawn)
	if err != nil {
		respond(JoinResponse{Err: err})
		return err
	}
	now := w.tick.Load()
	h, p, err := w.players.Register(PlayerData{
		Name:         req.Name,
		UUID:         req.UUID,
		Conn:         req.Conn,
		Pos:          spawn,
		OnGround:     true,
		ViewDistance: w.clampView(req.ViewDistance),
		LastAckTick:  now,
		JoinedTick:   now,
	})
	if err != nil {
		w.totals.RegistryFull++
		err = fmt.Errorf("%w: %w", ErrServerFull, err)
		respond(JoinResponse{Err: err})
		return err
	}
	p.EntityID = w.playerEntityID(h)
	w.initView(p)

	w.entry.Joins = append(w.entry.Joins, RecordedJoin{Name: p.Name, EntityID: p.EntityID})
	w.logger.Printf("[world] join %s as entity %d (%s)", p.Name, p.EntityID, h)
	respond(JoinResponse{Handle: h, EntityID: p.EntityID, Spawn: spawn})
	return nil
}

func (w *World) spawnPoint(override *mgl64.Vec3) (mgl64.Vec3, error) {
	if override != nil {
		v := *override
		if !w.gen.InBounds(blockCoord(v.X()), 0, blockCoord(v.Z())) {
			return v, fmt.Errorf("%w: spawn %v", gen.ErrOutOfBounds, v)
		}
		return v, nil
	}
	y, err := w.gen.SurfaceY(0, 0)
	if err != nil {
		return mgl64.Vec3{}, err
	}
	return mgl64.Vec3{0.5, float64(y + 1), 0.5}, nil
}

// removePlayer unregisters the handle and queues the entity removal for
// every other client. Deltas for h stop immediately.
func (w *World) removePlayer(h registry.Handle, p *PlayerData) {
	w.removed = append(w.removed, p.EntityID)
	w.entry.Leaves = append(w.entry.Leaves, p.Name)
	w.logger.Printf("[world] leave %s (%s)", p.Name, h)
	_ = w.players.Unregister(h)
}

func (w *World) move(p *PlayerData, in Intent) error {
	x, z := blockCoord(in.Pos.X()), blockCoord(in.Pos.Z())
	if !w.gen.InBounds(x, 0, z) {
		return fmt.Errorf("%w: move to (%d,%d)", gen.ErrOutOfBounds, x, z)
	}
	p.Pos = in.Pos
	p.Yaw, p.Pitch = in.Yaw, in.Pitch
	p.OnGround = in.OnGround
	p.moved = true
	w.recenter(p, p.ViewDistance)
	return nil
}

// edit applies one block change. A rejected edit leaves the world and the
// ledger untouched and echoes the authoritative block back to the player.
func (w *World) edit(p *PlayerData, pos store.BlockPos, b gen.BlockID) error {
	if !w.gen.InBounds(pos.X, pos.Y, pos.Z) {
		return fmt.Errorf("%w: (%d,%d,%d)", gen.ErrOutOfBounds, pos.X, pos.Y, pos.Z)
	}
	if w.ledger.Full() {
		w.correct(p, pos)
		return ledger.ErrFull
	}
	changed, err := w.blocks.Set(pos.X, pos.Y, pos.Z, b)
	if err != nil {
		w.correct(p, pos)
		return err
	}
	if !changed {
		return nil
	}
	return w.ledger.Record(ledger.BlockChange{
		Pos:   pos,
		Block: b,
		Cause: ledger.CausePlayer,
		Actor: p.EntityID,
	})
}

func (w *World) correct(p *PlayerData, pos store.BlockPos) {
	if p.nCorrections == len(p.corrections) {
		return
	}
	cur, err := w.blocks.Get(pos.X, pos.Y, pos.Z)
	if err != nil {
		return
	}
	p.corrections[p.nCorrections] = ledger.BlockChange{Pos: pos, Block: cur, Cause: ledger.CauseWorld}
	p.nCorrections++
}

// expirePlayers drops players that stopped acknowledging keep-alives.
func (w *World) expirePlayers() {
	now := w.tick.Load()
	for h, p := range w.players.All() {
		if now-p.LastAckTick <= uint32(w.cfg.TimeoutTicks) {
			continue
		}
		w.totals.Timeouts++
		conn := p.Conn
		w.removePlayer(h, p)
		w.dispatcher.Close(conn, "Timed out")
	}
}

// nearestPlayerChunks reports the Chebyshev chunk distance from (x, z) to the
// closest player, or -1 when nobody is online.
func (w *World) nearestPlayerChunks(x, z float64) int {
	cx, cz := mathx.ChunkOf(blockCoord(x)), mathx.ChunkOf(blockCoord(z))
	best := -1
	for _, p := range w.players.All() {
		d := mathx.Chebyshev(cx, cz, p.centerX, p.centerZ)
		if best < 0 || d < best {
			best = d
		}
	}
	return best
}
