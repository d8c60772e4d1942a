package registry

import (
	"errors"
	"testing"
)

type player struct {
	name string
	x    int
}

func TestRegister_FullIsRecoverable(t *testing.T) {
	a := New[player](2)
	h1, _, err := a.Register(player{name: "a"})
	if err != nil {
		t.Fatalf("register a: %v", err)
	}
	if _, _, err := a.Register(player{name: "b"}); err != nil {
		t.Fatalf("register b: %v", err)
	}
	for i := 0; i < 5; i++ {
		if _, _, err := a.Register(player{name: "c"}); !errors.Is(err, ErrFull) {
			t.Fatalf("expected ErrFull, got %v", err)
		}
	}
	if a.Len() != 2 {
		t.Fatalf("len=%d", a.Len())
	}
	p, err := a.Get(h1)
	if err != nil || p.name != "a" {
		t.Fatalf("existing slot overwritten: %+v %v", p, err)
	}
}

func TestStaleHandleAfterReuse(t *testing.T) {
	a := New[player](1)
	h1, p1, _ := a.Register(player{name: "first", x: 42})
	p1.x = 99

	if err := a.Unregister(h1); err != nil {
		t.Fatalf("unregister: %v", err)
	}
	h2, p2, err := a.Register(player{name: "second"})
	if err != nil {
		t.Fatalf("register second: %v", err)
	}
	if h2.Index != h1.Index {
		t.Fatalf("expected slot reuse, got %s vs %s", h1, h2)
	}
	if h2 == h1 {
		t.Fatalf("generation not bumped: %s", h2)
	}
	if p2.x != 0 {
		t.Fatalf("stale state leaked into new occupant: x=%d", p2.x)
	}

	if _, err := a.Get(h1); !errors.Is(err, ErrStaleHandle) {
		t.Fatalf("stale Get: expected ErrStaleHandle, got %v", err)
	}
	if err := a.Unregister(h1); !errors.Is(err, ErrStaleHandle) {
		t.Fatalf("stale Unregister: expected ErrStaleHandle, got %v", err)
	}
	if got, err := a.Get(h2); err != nil || got.name != "second" {
		t.Fatalf("h2 resolve: %+v %v", got, err)
	}
}

func TestZeroHandleNeverResolves(t *testing.T) {
	a := New[player](4)
	_, _, _ = a.Register(player{name: "x"})
	if _, err := a.Get(Handle{}); !errors.Is(err, ErrStaleHandle) {
		t.Fatalf("expected ErrStaleHandle, got %v", err)
	}
	if _, err := a.Get(Handle{Index: 9, Gen: 1}); !errors.Is(err, ErrStaleHandle) {
		t.Fatalf("out of range index: %v", err)
	}
}

func TestAll_SkipsFreedAndRestarts(t *testing.T) {
	a := New[player](4)
	var hs []Handle
	for _, n := range []string{"a", "b", "c"} {
		h, _, _ := a.Register(player{name: n})
		hs = append(hs, h)
	}
	_ = a.Unregister(hs[1])

	for pass := 0; pass < 2; pass++ {
		var names []string
		for _, p := range a.All() {
			names = append(names, p.name)
		}
		if len(names) != 2 || names[0] != "a" || names[1] != "c" {
			t.Fatalf("pass %d: %v", pass, names)
		}
	}

	// Removal while iterating.
	for h := range a.All() {
		_ = a.Unregister(h)
	}
	if a.Len() != 0 {
		t.Fatalf("len=%d", a.Len())
	}
}
