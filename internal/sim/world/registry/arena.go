// Package registry provides fixed-capacity entity storage addressed by
// generation-tagged handles.
package registry

import (
	"errors"
	"fmt"
	"iter"
)

var (
	ErrFull        = errors.New("registry: full")
	ErrStaleHandle = errors.New("registry: stale handle")
)

// MaxCapacity is the largest arena a uint16 index can address.
const MaxCapacity = 1<<16 - 1

// Handle refers to one occupancy of a slot. The zero Handle never resolves.
type Handle struct {
	Index uint16
	Gen   uint16
}

func (h Handle) IsZero() bool { return h.Gen == 0 }

func (h Handle) String() string { return fmt.Sprintf("%d#%d", h.Index, h.Gen) }

type slot[T any] struct {
	gen  uint16
	live bool
	val  T
}

// Arena stores up to Cap values of T. Storage is allocated once; Register
// fails with ErrFull instead of growing.
type Arena[T any] struct {
	slots []slot[T]
	free  []uint16
	n     int
}

func New[T any](capacity int) *Arena[T] {
	if capacity < 0 {
		capacity = 0
	}
	if capacity > MaxCapacity {
		capacity = MaxCapacity
	}
	a := &Arena[T]{
		slots: make([]slot[T], capacity),
		free:  make([]uint16, capacity),
	}
	for i := range a.slots {
		a.slots[i].gen = 1
		// Pop order is ascending index.
		a.free[i] = uint16(capacity - 1 - i)
	}
	return a
}

func (a *Arena[T]) Len() int { return a.n }
func (a *Arena[T]) Cap() int { return len(a.slots) }

// Register stores v in a free slot and returns its handle and a pointer to
// the stored value. The pointer stays valid until the handle is unregistered.
func (a *Arena[T]) Register(v T) (Handle, *T, error) {
	if len(a.free) == 0 {
		return Handle{}, nil, ErrFull
	}
	idx := a.free[len(a.free)-1]
	a.free = a.free[:len(a.free)-1]

	s := &a.slots[idx]
	s.live = true
	s.val = v
	a.n++
	return Handle{Index: idx, Gen: s.gen}, &s.val, nil
}

// Unregister frees the slot behind h. The slot value is zeroed and its
// generation bumped, so h and every copy of it become stale.
func (a *Arena[T]) Unregister(h Handle) error {
	s, err := a.lookup(h)
	if err != nil {
		return err
	}
	var zero T
	s.val = zero
	s.live = false
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}
	a.free = append(a.free, h.Index)
	a.n--
	return nil
}

func (a *Arena[T]) Get(h Handle) (*T, error) {
	s, err := a.lookup(h)
	if err != nil {
		return nil, err
	}
	return &s.val, nil
}

// Valid reports whether h still refers to a live entity.
func (a *Arena[T]) Valid(h Handle) bool {
	_, err := a.lookup(h)
	return err == nil
}

func (a *Arena[T]) lookup(h Handle) (*slot[T], error) {
	if h.IsZero() || int(h.Index) >= len(a.slots) {
		return nil, fmt.Errorf("%w: %s", ErrStaleHandle, h)
	}
	s := &a.slots[h.Index]
	if !s.live || s.gen != h.Gen {
		return nil, fmt.Errorf("%w: %s", ErrStaleHandle, h)
	}
	return s, nil
}

// All yields live entries in slot order. It is lazy and can be ranged over
// repeatedly. Unregistering the yielded handle during iteration is allowed.
func (a *Arena[T]) All() iter.Seq2[Handle, *T] {
	return func(yield func(Handle, *T) bool) {
		for i := range a.slots {
			s := &a.slots[i]
			if !s.live {
				continue
			}
			if !yield(Handle{Index: uint16(i), Gen: s.gen}, &s.val) {
				return
			}
		}
	}
}
