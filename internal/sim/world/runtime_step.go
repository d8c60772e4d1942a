package world

import (
	"time"
)

// finishTick is the Yielding phase: drain the ledger, drop players whose
// delivery failed, reset per-tick flags and publish the tick's record.
func (w *World) finishTick(start time.Time) {
	tick := w.tick.Load()
	drained := w.ledger.Drain()
	w.entry.BlockChanges = len(drained)
	w.totals.BlockChanges += uint64(len(drained))
	if w.auditLogger != nil {
		for _, c := range drained {
			_ = w.auditLogger.WriteAudit(AuditEntry{
				Tick:  tick,
				Actor: c.Actor,
				Cause: c.Cause.String(),
				Pos:   [3]int{c.Pos.X, c.Pos.Y, c.Pos.Z},
				To:    c.Block.String(),
			})
		}
	}

	for _, h := range w.failed {
		p, err := w.players.Get(h)
		if err != nil {
			continue
		}
		conn := p.Conn
		w.removePlayer(h, p)
		w.dispatcher.Close(conn, "Connection lost")
	}
	w.failed = w.failed[:0]

	for _, p := range w.players.All() {
		p.moved = false
	}
	for _, m := range w.mobs.All() {
		m.moved = false
	}

	stepMS := float64(time.Since(start).Microseconds()) / 1000
	e := &w.entry
	e.Tick = tick
	e.WorldTime = uint16(w.worldTime.Load())
	e.Players = w.players.Len()
	e.Mobs = w.mobs.Len()
	e.StepMS = stepMS
	if w.tickLogger != nil {
		if err := w.tickLogger.WriteTick(*e); err != nil {
			w.logger.Printf("[world] tick %d: tick log: %v", tick, err)
		}
	}
	if w.observer != nil {
		w.observer.ObserveTick(*e)
	}
	w.publishMetrics(stepMS)
}
