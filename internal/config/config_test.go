package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"astra.mc/internal/sim/world/terrain/gen"
)

func TestDefaults(t *testing.T) {
	c := Defaults()
	if c.Port != 25565 || c.ViewDistance != 2 || c.MOTD != "An astra server" || c.Brand != "astra" {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if c.Mode() != gen.Simple {
		t.Fatalf("default mode %s", c.Mode())
	}
	if !*c.SendBrand {
		t.Fatalf("send_brand should default on")
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Port != DefaultPort {
		t.Fatalf("port=%d", c.Port)
	}
}

func TestLoad_YAML(t *testing.T) {
	p := filepath.Join(t.TempDir(), "server.yaml")
	raw := "port: 25570\nmotd: hello\nworldgen: complex\nworld_seed: 12345\nview_distance: 4\nsend_brand: false\n"
	if err := os.WriteFile(p, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Port != 25570 || c.MOTD != "hello" || c.WorldSeed != 12345 || c.ViewDistance != 4 {
		t.Fatalf("unexpected: %+v", c)
	}
	if c.Mode() != gen.Complex {
		t.Fatalf("mode=%s", c.Mode())
	}
	if *c.SendBrand {
		t.Fatalf("send_brand override ignored")
	}
	if c.MaxPlayers != 16 {
		t.Fatalf("defaults not applied: max_players=%d", c.MaxPlayers)
	}
}

func TestLoad_TOML(t *testing.T) {
	p := filepath.Join(t.TempDir(), "server.toml")
	raw := "port = 25580\nmax_block_changes = 32\nworldgen = \"simple\"\nrng_seed = 99\n"
	if err := os.WriteFile(p, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Port != 25580 || c.MaxBlockChanges != 32 || c.RngSeed != 99 {
		t.Fatalf("unexpected: %+v", c)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		mut  func(*Config)
		want string
	}{
		{"mode", func(c *Config) { c.Worldgen = "fractal" }, "worldgen mode"},
		{"day", func(c *Config) { c.DayLength = 70000 }, "day_length"},
		{"view", func(c *Config) { c.ViewDistance = 64 }, "view_distance"},
		{"height", func(c *Config) { c.WorldHeight = 4096 }, "world_height"},
		{"height min", func(c *Config) { c.WorldHeight = 8 }, "world_height"},
		{"border", func(c *Config) { c.WorldBorder = 1 << 25 }, "world_border"},
		{"tick rate", func(c *Config) { c.TickRateHz = 5000 }, "tick_rate_hz"},
		{"tick rate min", func(c *Config) { c.TickRateHz = 0 }, "tick_rate_hz"},
		{"motd", func(c *Config) { c.MOTD = strings.Repeat("x", 300) }, "motd"},
		{"timeout", func(c *Config) { c.TimeoutTicks = c.KeepAliveTicks }, "timeout_ticks"},
		{"index", func(c *Config) { c.IndexBackend = "postgres" }, "index_backend"},
	}
	for _, tc := range cases {
		c := Defaults()
		tc.mut(&c)
		err := c.Validate()
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: expected error containing %q, got %v", tc.name, tc.want, err)
		}
	}
}

func TestLoad_ShippedConfigMatchesDefaults(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "server.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if want := Defaults(); !reflect.DeepEqual(c, want) {
		t.Fatalf("server.yaml drifted from defaults:\n got %+v\nwant %+v", c, want)
	}
}
