package gen

import (
	"errors"
	"fmt"
	"strings"

	"astra.mc/internal/sim/world/logic/mathx"
)

// ChunkSize is the horizontal edge of a chunk column in blocks.
const ChunkSize = 16

// Limits of the wire position encoding: y is 12 signed bits and x/z are 26.
// MaxBorder keeps a whole border chunk addressable.
const (
	MaxHeight = 2048
	MaxBorder = 1<<25 - 1 - ChunkSize
)

var (
	ErrOutOfBounds       = errors.New("gen: coordinate out of bounds")
	ErrGenerationFailure = errors.New("gen: generation failure")
	ErrUnknownMode       = errors.New("gen: unknown worldgen mode")
)

// Mode selects the terrain algorithm. It is fixed for the lifetime of a world.
type Mode uint8

const (
	Simple Mode = iota
	Complex
)

func (m Mode) String() string {
	switch m {
	case Simple:
		return "simple"
	case Complex:
		return "complex"
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "simple", "0":
		return Simple, nil
	case "complex", "1":
		return Complex, nil
	}
	return Simple, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Generator maps (seed, mode, coordinate) to terrain. It holds no mutable
// state; every method is a pure function of its fields and arguments.
type Generator struct {
	Seed   uint32
	Mode   Mode
	Height int // blocks, y in [0, Height)
	Border int // |x| and |z| must not exceed Border
}

// Column is the generated summary of one chunk: per column surface height,
// surface block and biome, indexed x + z*16.
type Column struct {
	CX, CZ  int
	Heights [ChunkSize * ChunkSize]int16
	Surface [ChunkSize * ChunkSize]BlockID
	Biomes  [ChunkSize * ChunkSize]Biome
}

func (g Generator) SeaLevel() int { return g.Height / 4 }

func (g Generator) check() error {
	if g.Height < 16 || g.Height > MaxHeight {
		return fmt.Errorf("%w: height %d out of range", ErrGenerationFailure, g.Height)
	}
	switch g.Mode {
	case Simple, Complex:
		return nil
	}
	return fmt.Errorf("%w: %d", ErrUnknownMode, uint8(g.Mode))
}

// InBounds reports whether a block coordinate lies inside the world.
func (g Generator) InBounds(x, y, z int) bool {
	if y < 0 || y >= g.Height {
		return false
	}
	return g.inBorder(x, z)
}

func (g Generator) inBorder(x, z int) bool {
	if g.Border <= 0 {
		return true
	}
	return mathx.AbsInt(x) <= g.Border && mathx.AbsInt(z) <= g.Border
}

// Block returns the generated block at (x, y, z).
func (g Generator) Block(x, y, z int) (BlockID, error) {
	if err := g.check(); err != nil {
		return Air, err
	}
	if !g.InBounds(x, y, z) {
		return Air, fmt.Errorf("%w: (%d,%d,%d)", ErrOutOfBounds, x, y, z)
	}
	if g.Mode == Complex {
		return g.complexBlock(x, y, z), nil
	}
	return g.simpleBlock(x, y, z), nil
}

// SurfaceY returns the y of the topmost generated terrain block (water and
// trees excluded) of the column at (x, z).
func (g Generator) SurfaceY(x, z int) (int, error) {
	if err := g.check(); err != nil {
		return 0, err
	}
	if !g.inBorder(x, z) {
		return 0, fmt.Errorf("%w: column (%d,%d)", ErrOutOfBounds, x, z)
	}
	if g.Mode == Complex {
		return g.complexHeight(x, z), nil
	}
	return g.simpleHeight(x, z), nil
}

// Column generates the summary of chunk (cx, cz). A chunk that is not fully
// inside the border fails with ErrOutOfBounds.
func (g Generator) Column(cx, cz int) (Column, error) {
	col := Column{CX: cx, CZ: cz}
	if err := g.check(); err != nil {
		return col, err
	}
	x0, z0 := cx*ChunkSize, cz*ChunkSize
	if !g.inBorder(x0, z0) || !g.inBorder(x0+ChunkSize-1, z0+ChunkSize-1) {
		return col, fmt.Errorf("%w: chunk (%d,%d)", ErrOutOfBounds, cx, cz)
	}
	for lz := 0; lz < ChunkSize; lz++ {
		for lx := 0; lx < ChunkSize; lx++ {
			i := lx + lz*ChunkSize
			x, z := x0+lx, z0+lz
			if g.Mode == Complex {
				h := g.complexHeight(x, z)
				b := g.complexBiome(x, z, h)
				col.Heights[i] = int16(h)
				col.Biomes[i] = b
				col.Surface[i] = g.complexSurface(x, z, h, b)
				continue
			}
			h := g.simpleHeight(x, z)
			col.Heights[i] = int16(h)
			col.Biomes[i] = Plains
			col.Surface[i] = g.simpleSurface(h)
		}
	}
	return col, nil
}
