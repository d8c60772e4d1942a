package world

import (
	"context"
	"time"
)

// Run drives the tick loop until ctx is done or Stop is called. Waiting on
// the ticker is the Idle phase. On return every connected player is closed.
func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer w.shutdown()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case <-ticker.C:
			w.Step()
		}
	}
}

func (w *World) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
}

func (w *World) shutdown() {
	w.stopped.Store(true)
	for _, p := range w.players.All() {
		w.dispatcher.Close(p.Conn, "Server closed")
	}
	w.logger.Printf("[world] stopped at tick %d with %d players", w.tick.Load(), w.players.Len())
}

// Step runs one full tick synchronously. It must be called from the
// goroutine that owns the world; Run calls it once per timer tick.
func (w *World) Step() {
	start := time.Now()
	w.beginEntry()

	w.enter(PhaseGenerating)
	w.advanceClock()
	w.generateChunks()
	w.spawnMobs()
	w.yielder.Yield(PhaseGenerating)

	w.enter(PhaseReconciling)
	w.applyIntents()
	w.stepMobs()
	w.expirePlayers()
	w.yielder.Yield(PhaseReconciling)

	w.enter(PhaseBroadcasting)
	w.broadcast()
	w.yielder.Yield(PhaseBroadcasting)

	w.enter(PhaseYielding)
	w.finishTick(start)
	w.yielder.Yield(PhaseYielding)

	w.enter(PhaseIdle)
}

func (w *World) enter(p Phase) { w.phase.Store(uint32(p)) }

func (w *World) advanceClock() {
	w.tick.Add(1)
	t := (int(w.worldTime.Load()) + w.cfg.TimeStep) % w.cfg.DayLength
	w.worldTime.Store(uint32(t))
}

// night is true for the last part of the day cycle, scaled to DayLength.
func (w *World) night() bool {
	t := int(w.worldTime.Load()) * 24000 / w.cfg.DayLength
	return t >= 13000 && t < 23000
}

func (w *World) beginEntry() {
	e := &w.entry
	joins, leaves := e.Joins[:0], e.Leaves[:0]
	*e = TickLogEntry{Joins: joins, Leaves: leaves}
}
