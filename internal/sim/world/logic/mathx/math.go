package mathx

// ChunkShift converts block coordinates to chunk coordinates (16 blocks per chunk).
const ChunkShift = 4

func FloorDiv(a, b int) int {
	// b > 0
	q := a / b
	r := a % b
	if r < 0 {
		q--
	}
	return q
}

func Mod(a, b int) int {
	// b > 0
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

func AbsInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ChunkOf returns the chunk coordinate containing block coordinate v.
func ChunkOf(v int) int { return v >> ChunkShift }

// Chebyshev is the chessboard distance between two chunk positions.
func Chebyshev(ax, az, bx, bz int) int {
	dx := AbsInt(ax - bx)
	dz := AbsInt(az - bz)
	if dx > dz {
		return dx
	}
	return dz
}

// PackChunk folds a chunk position into a single int64 key.
func PackChunk(cx, cz int) int64 {
	return int64(uint64(uint32(int32(cx)))<<32 | uint64(uint32(int32(cz))))
}

func UnpackChunk(k int64) (cx, cz int) {
	return int(int32(uint32(uint64(k) >> 32))), int(int32(uint32(uint64(k))))
}

// Rand is a xorshift32 generator. The zero state is remapped so the
// sequence never collapses to all zeroes.
type Rand struct {
	state uint32
}

func NewRand(seed uint32) *Rand {
	if seed == 0 {
		seed = 0x9e3779b9
	}
	return &Rand{state: seed}
}

func (r *Rand) Uint32() uint32 {
	x := r.state
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	r.state = x
	return x
}

// Intn returns a value in [0, n). n must be > 0.
func (r *Rand) Intn(n int) int {
	return int(r.Uint32() % uint32(n))
}
