package gen

import (
	"github.com/segmentio/fasthash/fnv1a"

	"astra.mc/internal/sim/world/logic/mathx"
)

// simpleCell is the lattice spacing of the simple height field.
const simpleCell = 8

func simpleLattice(seed uint32, ix, iz int) int {
	h := fnv1a.HashUint64(uint64(seed))
	h = fnv1a.AddUint64(h, uint64(uint32(int32(ix))))
	h = fnv1a.AddUint64(h, uint64(uint32(int32(iz))))
	return int(h % 12)
}

func (g Generator) simpleHeight(x, z int) int {
	ix, iz := mathx.FloorDiv(x, simpleCell), mathx.FloorDiv(z, simpleCell)
	fx, fz := mathx.Mod(x, simpleCell), mathx.Mod(z, simpleCell)

	a := simpleLattice(g.Seed, ix, iz)
	b := simpleLattice(g.Seed, ix+1, iz)
	c := simpleLattice(g.Seed, ix, iz+1)
	d := simpleLattice(g.Seed, ix+1, iz+1)

	// Bilinear in units of 1/(cell*cell).
	top := a*(simpleCell-fx) + b*fx
	bot := c*(simpleCell-fx) + d*fx
	v := (top*(simpleCell-fz) + bot*fz) / (simpleCell * simpleCell)

	h := g.SeaLevel() - 4 + v
	return mathx.Clamp(h, 1, g.Height-2)
}

func (g Generator) simpleSurface(h int) BlockID {
	if h <= g.SeaLevel()+1 {
		return Sand
	}
	return Grass
}

func (g Generator) simpleBlock(x, y, z int) BlockID {
	if y == 0 {
		return Bedrock
	}
	h := g.simpleHeight(x, z)
	switch {
	case y < h-3:
		return Stone
	case y < h:
		if h <= g.SeaLevel()+1 {
			return Sand
		}
		return Dirt
	case y == h:
		return g.simpleSurface(h)
	case y <= g.SeaLevel():
		return Water
	}
	return Air
}
