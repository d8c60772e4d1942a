package gen

import "astra.mc/internal/sim/world/logic/mathx"

const (
	saltBase = iota + 1
	saltRidge
	saltTemp
	saltHumid
	saltCave
	saltOre
	saltTree
	saltFloor
)

func (g Generator) complexHeight(x, z int) int {
	base := fbm2(g.Seed, saltBase, x, z)
	ridge := valueNoise2(g.Seed, saltRidge, x, z, 256)

	amp := 8
	if ridge > 600 {
		amp += (ridge - 600) * 48 / (unit - 1 - 600)
	}
	h := g.SeaLevel() + 2 + (base-unit/2)*amp/(unit/2)
	// Leave headroom for trees.
	return mathx.Clamp(h, 1, g.Height-8)
}

func (g Generator) complexBiome(x, z, h int) Biome {
	if h > g.SeaLevel()+28 {
		return Mountains
	}
	temp := valueNoise2(g.Seed, saltTemp, x, z, 512)
	humid := valueNoise2(g.Seed, saltHumid, x, z, 384)
	switch {
	case temp < 300:
		return Snowy
	case temp > 700 && humid < 450:
		return Desert
	case humid > 600:
		return Forest
	}
	return Plains
}

func (g Generator) complexSurface(x, z, h int, b Biome) BlockID {
	sea := g.SeaLevel()
	if h < sea {
		if lattice2(g.Seed, saltFloor, x, z)&1 == 0 {
			return Gravel
		}
		return Sand
	}
	switch b {
	case Desert:
		return Sand
	case Snowy:
		return Snow
	case Mountains:
		if h > sea+40 {
			return Snow
		}
		return Stone
	}
	if h <= sea+1 {
		return Sand
	}
	return Grass
}

func (g Generator) subsurface(b Biome, surface BlockID) BlockID {
	switch {
	case b == Desert:
		return Sandstone
	case b == Mountains:
		return Stone
	case surface == Sand || surface == Gravel:
		return surface
	}
	return Dirt
}

func (g Generator) hasTree(x, z, h int, b Biome) bool {
	if h <= g.SeaLevel()+1 {
		return false
	}
	r := lattice2(g.Seed, saltTree, x, z)
	switch b {
	case Forest:
		return r < 60
	case Snowy:
		return r < 10
	case Plains:
		return r < 4
	}
	return false
}

func (g Generator) treeHeight(x, z int) int {
	return 4 + lattice2(g.Seed, saltTree+100, x, z)%3
}

// treeBlock resolves trunks and leaf caps of trees rooted in this column or
// one of its eight neighbours.
func (g Generator) treeBlock(x, y, z int) BlockID {
	out := Air
	for dz := -1; dz <= 1; dz++ {
		for dx := -1; dx <= 1; dx++ {
			tx, tz := x+dx, z+dz
			th := g.complexHeight(tx, tz)
			if !g.hasTree(tx, tz, th, g.complexBiome(tx, tz, th)) {
				continue
			}
			top := th + g.treeHeight(tx, tz)
			if dx == 0 && dz == 0 && y > th && y <= top {
				return Log
			}
			if y >= top-1 && y <= top+1 {
				out = Leaves
			}
		}
	}
	return out
}

func (g Generator) cave(x, y, z int) bool {
	return valueNoise3(g.Seed, saltCave, x, y, z, 8) < 150
}

func (g Generator) complexBlock(x, y, z int) BlockID {
	if y == 0 {
		return Bedrock
	}
	sea := g.SeaLevel()
	h := g.complexHeight(x, z)
	if y > h {
		if b := g.treeBlock(x, y, z); b != Air {
			return b
		}
		if y <= sea {
			if y == sea && g.complexBiome(x, z, h) == Snowy {
				return Ice
			}
			return Water
		}
		return Air
	}

	b := g.complexBiome(x, z, h)
	surface := g.complexSurface(x, z, h, b)
	if y == h {
		return surface
	}
	if y > 4 && y < h-4 && g.cave(x, y, z) {
		return Air
	}
	if y >= h-3 {
		return g.subsurface(b, surface)
	}
	r := lattice3(g.Seed, saltOre, x, y, z)
	switch {
	case r < 10:
		return CoalOre
	case r < 16 && y < sea-10:
		return IronOre
	}
	return Stone
}
