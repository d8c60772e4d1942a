package gen

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"

	"astra.mc/internal/sim/world/logic/mathx"
)

// Noise is integer fixed point throughout: lattice values are in [0, 1024)
// and interpolation weights in [0, 1024]. Floats are avoided so that every
// platform (including ones that fuse multiply-add) generates the same terrain.
const unit = 1024

func lattice2(seed uint32, salt, ix, iz int) int {
	var buf [16]byte
	binary.LittleEndian.PutUint32(buf[0:], seed)
	binary.LittleEndian.PutUint32(buf[4:], uint32(int32(salt)))
	binary.LittleEndian.PutUint32(buf[8:], uint32(int32(ix)))
	binary.LittleEndian.PutUint32(buf[12:], uint32(int32(iz)))
	return int(xxhash.Sum64(buf[:]) & (unit - 1))
}

func lattice3(seed uint32, salt, ix, iy, iz int) int {
	var buf [20]byte
	binary.LittleEndian.PutUint32(buf[0:], seed)
	binary.LittleEndian.PutUint32(buf[4:], uint32(int32(salt)))
	binary.LittleEndian.PutUint32(buf[8:], uint32(int32(ix)))
	binary.LittleEndian.PutUint32(buf[12:], uint32(int32(iy)))
	binary.LittleEndian.PutUint32(buf[16:], uint32(int32(iz)))
	return int(xxhash.Sum64(buf[:]) & (unit - 1))
}

// smooth maps t in [0, cell) to a smoothstep weight in [0, unit].
func smooth(t, cell int) int {
	s := int64(t) * unit / int64(cell)
	return int(s * s * (3*unit - 2*s) / (unit * unit))
}

func lerp(a, b, w int) int {
	return a + (b-a)*w/unit
}

func valueNoise2(seed uint32, salt, x, z, cell int) int {
	ix, iz := mathx.FloorDiv(x, cell), mathx.FloorDiv(z, cell)
	wx := smooth(mathx.Mod(x, cell), cell)
	wz := smooth(mathx.Mod(z, cell), cell)

	top := lerp(lattice2(seed, salt, ix, iz), lattice2(seed, salt, ix+1, iz), wx)
	bot := lerp(lattice2(seed, salt, ix, iz+1), lattice2(seed, salt, ix+1, iz+1), wx)
	return lerp(top, bot, wz)
}

func valueNoise3(seed uint32, salt, x, y, z, cell int) int {
	ix, iy, iz := mathx.FloorDiv(x, cell), mathx.FloorDiv(y, cell), mathx.FloorDiv(z, cell)
	wx := smooth(mathx.Mod(x, cell), cell)
	wy := smooth(mathx.Mod(y, cell), cell)
	wz := smooth(mathx.Mod(z, cell), cell)

	plane := func(jy int) int {
		top := lerp(lattice3(seed, salt, ix, jy, iz), lattice3(seed, salt, ix+1, jy, iz), wx)
		bot := lerp(lattice3(seed, salt, ix, jy, iz+1), lattice3(seed, salt, ix+1, jy, iz+1), wx)
		return lerp(top, bot, wz)
	}
	return lerp(plane(iy), plane(iy+1), wy)
}

// octaves are (cell size, weight) pairs summed by fbm2.
var octaves = [...][2]int{{128, 8}, {64, 4}, {32, 2}, {16, 1}}

func fbm2(seed uint32, salt, x, z int) int {
	sum, total := 0, 0
	for i, o := range octaves {
		sum += valueNoise2(seed, salt+i*31, x, z, o[0]) * o[1]
		total += o[1]
	}
	return sum / total
}
