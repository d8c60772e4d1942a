// Package ledger holds block changes awaiting broadcast.
//
// The ledger is a fixed-capacity FIFO. Entries are never coalesced: when two
// changes hit the same position within one drain cycle both are broadcast in
// order, so the last one wins on every client.
package ledger

import (
	"errors"

	"astra.mc/internal/sim/world/terrain/gen"
	"astra.mc/internal/sim/world/terrain/store"
)

// ErrFull is returned by Record once the ledger holds Cap entries. The
// change is rejected; the ledger is never flushed early.
var ErrFull = errors.New("ledger: full")

type Cause uint8

const (
	CausePlayer Cause = iota + 1
	CauseMob
	CauseWorld
)

func (c Cause) String() string {
	switch c {
	case CausePlayer:
		return "player"
	case CauseMob:
		return "mob"
	case CauseWorld:
		return "world"
	}
	return "unknown"
}

type BlockChange struct {
	Pos   store.BlockPos
	Block gen.BlockID
	Cause Cause
	// Actor is the wire entity id of whoever caused the change, 0 for the world.
	Actor int32
}

type Ledger struct {
	entries []BlockChange
}

func New(capacity int) *Ledger {
	return &Ledger{entries: make([]BlockChange, 0, capacity)}
}

func (l *Ledger) Record(c BlockChange) error {
	if len(l.entries) == cap(l.entries) {
		return ErrFull
	}
	l.entries = append(l.entries, c)
	return nil
}

func (l *Ledger) Len() int   { return len(l.entries) }
func (l *Ledger) Cap() int   { return cap(l.entries) }
func (l *Ledger) Full() bool { return len(l.entries) == cap(l.entries) }

// Pending returns the recorded changes in insertion order. The slice must not
// be modified and is only valid until the next Record or Drain.
func (l *Ledger) Pending() []BlockChange { return l.entries }

// Drain empties the ledger and returns what it held, in insertion order.
// The result shares the ledger's storage and is overwritten by the next Record.
func (l *Ledger) Drain() []BlockChange {
	out := l.entries
	l.entries = l.entries[:0]
	return out
}
