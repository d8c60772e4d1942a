package world

import (
	"errors"
	"fmt"
	"math"

	"github.com/brentp/intintmap"

	"astra.mc/internal/sim/world/logic/mathx"
	"astra.mc/internal/sim/world/registry"
	"astra.mc/internal/sim/world/terrain/gen"
)

func blockCoord(v float64) int { return int(math.Floor(v)) }

func viewArea(vd int) int { return (2*vd + 1) * (2*vd + 1) }

// initView allocates the per-player view state for the server-wide maximum
// radius so later view changes never grow it.
func (w *World) initView(p *PlayerData) {
	area := viewArea(w.cfg.ViewDistance)
	p.loaded = intintmap.New(area, 0.6)
	p.pending = make([]int64, 0, area)
	p.unload = make([]int64, 0, area)
	p.known = make([]uint64, (w.cfg.MaxPlayers+w.cfg.MaxMobs+63)/64)
	p.centerX = mathx.ChunkOf(blockCoord(p.Pos.X()))
	p.centerZ = mathx.ChunkOf(blockCoord(p.Pos.Z()))
	w.rebuildPending(p)
}

// recenter moves the player's view to the chunk it now stands in, queueing
// unloads for chunks that fell out of range.
func (w *World) recenter(p *PlayerData, oldVD int) {
	cx := mathx.ChunkOf(blockCoord(p.Pos.X()))
	cz := mathx.ChunkOf(blockCoord(p.Pos.Z()))
	if cx == p.centerX && cz == p.centerZ && oldVD == p.ViewDistance {
		return
	}
	// Every loaded chunk lies inside the old view square.
	for x := p.centerX - oldVD; x <= p.centerX+oldVD; x++ {
		for z := p.centerZ - oldVD; z <= p.centerZ+oldVD; z++ {
			if mathx.Chebyshev(x, z, cx, cz) <= p.ViewDistance {
				continue
			}
			k := mathx.PackChunk(x, z)
			if _, ok := p.loaded.Get(k); !ok {
				continue
			}
			p.loaded.Del(k)
			if len(p.unload) < cap(p.unload) {
				p.unload = append(p.unload, k)
			}
		}
	}
	p.centerX, p.centerZ = cx, cz
	w.rebuildPending(p)
}

// rebuildPending lists the chunks in view that were never sent, nearest
// ring first.
func (w *World) rebuildPending(p *PlayerData) {
	p.pending = p.pending[:0]
	for r := 0; r <= p.ViewDistance; r++ {
		for x := p.centerX - r; x <= p.centerX+r; x++ {
			for z := p.centerZ - r; z <= p.centerZ+r; z++ {
				if mathx.Chebyshev(x, z, p.centerX, p.centerZ) != r {
					continue
				}
				k := mathx.PackChunk(x, z)
				if _, ok := p.loaded.Get(k); ok {
					continue
				}
				p.pending = append(p.pending, k)
			}
		}
	}
}

// generateChunks spends this tick's generation budget on pending chunks,
// one chunk per player per round, starting with a different player each
// tick. A chunk wanted by several players is generated once.
func (w *World) generateChunks() {
	w.generated = w.generated[:0]
	w.sends = w.sends[:0]
	w.editBuf = w.editBuf[:0]
	clear(w.genIndex)

	w.order = w.order[:0]
	for h := range w.players.All() {
		w.order = append(w.order, h)
	}
	n := len(w.order)
	if n == 0 {
		return
	}
	w.genCursor = (w.genCursor + 1) % n

	budget := w.cfg.GenBudget
	for budget > 0 {
		progress := false
		for i := 0; i < n && budget > 0; i++ {
			h := w.order[(w.genCursor+i)%n]
			p, err := w.players.Get(h)
			if err != nil || len(p.pending) == 0 {
				continue
			}
			k := p.pending[0]
			copy(p.pending, p.pending[1:])
			p.pending = p.pending[:len(p.pending)-1]
			progress = true

			idx, ok := w.genIndex[k]
			if !ok {
				budget--
				idx, err = w.generateChunk(k)
				if err != nil {
					w.entry.GenFailures++
					w.totals.GenFailures++
					if !errors.Is(err, gen.ErrOutOfBounds) {
						w.logger.Printf("[world] tick %d: skip chunk: %v", w.tick.Load(), err)
					}
					continue
				}
			}
			p.loaded.Put(k, 1)
			w.sends = append(w.sends, chunkSend{player: h, idx: idx})
		}
		if !progress {
			break
		}
	}
}

func (w *World) generateChunk(k int64) (int, error) {
	cx, cz := mathx.UnpackChunk(k)
	col, err := w.safeColumn(cx, cz)
	if err != nil {
		return 0, err
	}
	start := len(w.editBuf)
	w.editBuf = w.blocks.AppendChunk(w.editBuf, cx, cz)
	w.generated = append(w.generated, ChunkData{Column: col, Edits: w.editBuf[start:len(w.editBuf):len(w.editBuf)]})
	idx := len(w.generated) - 1
	w.genIndex[k] = idx
	w.entry.ChunksGenerated++
	w.totals.ChunksGenerated++
	return idx, nil
}

// safeColumn turns a generator panic into ErrGenerationFailure.
func (w *World) safeColumn(cx, cz int) (col gen.Column, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: chunk (%d,%d): %v", gen.ErrGenerationFailure, cx, cz, r)
		}
	}()
	return w.column(cx, cz)
}

// chunkSendsFor lists the chunks generated for h this tick that are still
// loaded. A move during Reconciling may already have unloaded some of them.
func (w *World) chunkSendsFor(h registry.Handle, p *PlayerData, dst []ChunkData) []ChunkData {
	for _, s := range w.sends {
		if s.player != h {
			continue
		}
		c := w.generated[s.idx]
		if _, ok := p.loaded.Get(mathx.PackChunk(c.Column.CX, c.Column.CZ)); !ok {
			continue
		}
		dst = append(dst, c)
	}
	return dst
}
