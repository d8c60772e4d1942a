package store

import (
	"errors"

	"astra.mc/internal/sim/world/terrain/gen"
)

// ErrFull is returned when the overlay holds its maximum number of edits.
var ErrFull = errors.New("store: edit overlay full")

type ChunkKey struct {
	CX int
	CZ int
}

type BlockPos struct {
	X, Y, Z int
}

func (p BlockPos) Chunk() ChunkKey {
	return ChunkKey{CX: p.X >> 4, CZ: p.Z >> 4}
}

// Edit is a block that differs from generated terrain.
type Edit struct {
	Pos   BlockPos
	Block gen.BlockID
}

// Overlay records player and world edits on top of the seeded generator.
// Its capacity is fixed at construction; it never holds more than max edits.
type Overlay struct {
	Gen gen.Generator

	max    int
	n      int
	chunks map[ChunkKey]map[BlockPos]gen.BlockID
}

func NewOverlay(g gen.Generator, max int) *Overlay {
	return &Overlay{
		Gen:    g,
		max:    max,
		chunks: make(map[ChunkKey]map[BlockPos]gen.BlockID),
	}
}

func (o *Overlay) Len() int { return o.n }
func (o *Overlay) Cap() int { return o.max }
