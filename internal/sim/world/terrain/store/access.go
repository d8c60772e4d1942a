package store

import (
	"sort"

	"astra.mc/internal/sim/world/terrain/gen"
)

// Get returns the effective block: the edit if one exists, otherwise the
// generated block.
func (o *Overlay) Get(x, y, z int) (gen.BlockID, error) {
	p := BlockPos{X: x, Y: y, Z: z}
	if m := o.chunks[p.Chunk()]; m != nil {
		if b, ok := m[p]; ok {
			return b, nil
		}
	}
	return o.Gen.Block(x, y, z)
}

// Set makes b the effective block at (x, y, z). Setting a block back to its
// generated value frees the edit slot. On error nothing is modified.
func (o *Overlay) Set(x, y, z int, b gen.BlockID) (changed bool, err error) {
	generated, err := o.Gen.Block(x, y, z)
	if err != nil {
		return false, err
	}
	p := BlockPos{X: x, Y: y, Z: z}
	k := p.Chunk()
	m := o.chunks[k]
	prev, edited := m[p]
	if !edited {
		prev = generated
	}
	if prev == b {
		return false, nil
	}

	if b == generated {
		delete(m, p)
		o.n--
		if len(m) == 0 {
			delete(o.chunks, k)
		}
		return true, nil
	}
	if !edited {
		if o.n >= o.max {
			return false, ErrFull
		}
		if m == nil {
			m = make(map[BlockPos]gen.BlockID)
			o.chunks[k] = m
		}
		o.n++
	}
	m[p] = b
	return true, nil
}

// AppendChunk appends the edits inside chunk (cx, cz) to dst in y, z, x order.
func (o *Overlay) AppendChunk(dst []Edit, cx, cz int) []Edit {
	m := o.chunks[ChunkKey{CX: cx, CZ: cz}]
	start := len(dst)
	for p, b := range m {
		dst = append(dst, Edit{Pos: p, Block: b})
	}
	added := dst[start:]
	sort.Slice(added, func(i, j int) bool {
		a, b := added[i].Pos, added[j].Pos
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		if a.Z != b.Z {
			return a.Z < b.Z
		}
		return a.X < b.X
	})
	return dst
}

// ChunkEdits reports the number of edits inside chunk (cx, cz).
func (o *Overlay) ChunkEdits(cx, cz int) int {
	return len(o.chunks[ChunkKey{CX: cx, CZ: cz}])
}
