package gen

import (
	"errors"
	"testing"
)

func testGen(mode Mode) Generator {
	return Generator{Seed: 12345, Mode: mode, Height: 128, Border: 1 << 16}
}

func TestBlock_Deterministic(t *testing.T) {
	for _, mode := range []Mode{Simple, Complex} {
		g1 := testGen(mode)
		g2 := testGen(mode)
		for x := -40; x <= 40; x += 7 {
			for z := -40; z <= 40; z += 5 {
				for y := 0; y < g1.Height; y += 9 {
					a, err := g1.Block(x, y, z)
					if err != nil {
						t.Fatalf("%s block: %v", mode, err)
					}
					// Interleave unrelated calls to prove there is no hidden state.
					_, _ = g2.Block(z, y, x)
					b, _ := g2.Block(x, y, z)
					if a != b {
						t.Fatalf("%s (%d,%d,%d): %s vs %s", mode, x, y, z, a, b)
					}
				}
			}
		}
	}
}

func TestBlock_OutOfBounds(t *testing.T) {
	g := testGen(Simple)
	cases := [][3]int{
		{0, -1, 0},
		{0, g.Height, 0},
		{g.Border + 1, 10, 0},
		{0, 10, -g.Border - 1},
	}
	for _, c := range cases {
		if _, err := g.Block(c[0], c[1], c[2]); !errors.Is(err, ErrOutOfBounds) {
			t.Fatalf("%v: expected ErrOutOfBounds, got %v", c, err)
		}
	}
	if _, err := g.SurfaceY(g.Border+1, 0); !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("SurfaceY: expected ErrOutOfBounds, got %v", err)
	}
	if _, err := g.Column(g.Border/ChunkSize, 0); !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("Column: expected ErrOutOfBounds, got %v", err)
	}
}

func TestBlock_BedrockFloorAndSurface(t *testing.T) {
	for _, mode := range []Mode{Simple, Complex} {
		g := testGen(mode)
		for x := -20; x < 20; x += 3 {
			b, _ := g.Block(x, 0, x)
			if b != Bedrock {
				t.Fatalf("%s: y=0 must be bedrock, got %s", mode, b)
			}
			h, err := g.SurfaceY(x, -x)
			if err != nil {
				t.Fatalf("SurfaceY: %v", err)
			}
			if h < 1 || h >= g.Height {
				t.Fatalf("%s: surface %d out of range", mode, h)
			}
			if s, _ := g.Block(x, h, -x); !s.Solid() {
				t.Fatalf("%s: surface block at y=%d is %s", mode, h, s)
			}
		}
	}
}

func TestColumn_MatchesPointQueries(t *testing.T) {
	for _, mode := range []Mode{Simple, Complex} {
		g := testGen(mode)
		col, err := g.Column(-2, 3)
		if err != nil {
			t.Fatalf("Column: %v", err)
		}
		for lz := 0; lz < ChunkSize; lz += 5 {
			for lx := 0; lx < ChunkSize; lx += 3 {
				i := lx + lz*ChunkSize
				x, z := -2*ChunkSize+lx, 3*ChunkSize+lz
				h, _ := g.SurfaceY(x, z)
				if int(col.Heights[i]) != h {
					t.Fatalf("%s: height mismatch at (%d,%d): %d vs %d", mode, x, z, col.Heights[i], h)
				}
				b, _ := g.Block(x, h, z)
				if col.Surface[i] != b {
					t.Fatalf("%s: surface mismatch at (%d,%d): %s vs %s", mode, x, z, col.Surface[i], b)
				}
			}
		}
	}
}

func TestSeedsAndModesDiffer(t *testing.T) {
	a := testGen(Complex)
	b := a
	b.Seed++
	same := true
	for x := 0; x < 256 && same; x += 4 {
		ha, _ := a.SurfaceY(x, x*3)
		hb, _ := b.SurfaceY(x, x*3)
		same = ha == hb
	}
	if same {
		t.Fatalf("different seeds produced identical terrain")
	}
}

func TestUnknownMode(t *testing.T) {
	g := Generator{Seed: 1, Mode: Mode(9), Height: 64}
	if _, err := g.Block(0, 1, 0); !errors.Is(err, ErrUnknownMode) {
		t.Fatalf("expected ErrUnknownMode, got %v", err)
	}
	if _, err := ParseMode("fractal"); !errors.Is(err, ErrUnknownMode) {
		t.Fatalf("ParseMode: expected ErrUnknownMode, got %v", err)
	}
	if m, err := ParseMode(" Complex "); err != nil || m != Complex {
		t.Fatalf("ParseMode complex: %v %v", m, err)
	}
}

func TestTooShortWorld(t *testing.T) {
	g := Generator{Seed: 1, Mode: Simple, Height: 4}
	if _, err := g.Column(0, 0); !errors.Is(err, ErrGenerationFailure) {
		t.Fatalf("expected ErrGenerationFailure, got %v", err)
	}
}
