package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml"
	"gopkg.in/yaml.v3"

	"astra.mc/internal/sim/world/terrain/gen"
)

// DefaultPort is the standard port of this protocol family.
const DefaultPort = 25565

// Config is the server configuration. Zero values are replaced by defaults.
type Config struct {
	Port      int    `yaml:"port" toml:"port"`
	MOTD      string `yaml:"motd" toml:"motd"`
	Brand     string `yaml:"brand" toml:"brand"`
	SendBrand *bool  `yaml:"send_brand" toml:"send_brand"`

	WorldSeed    uint32 `yaml:"world_seed" toml:"world_seed"`
	RngSeed      uint32 `yaml:"rng_seed" toml:"rng_seed"`
	Worldgen     string `yaml:"worldgen" toml:"worldgen"`
	WorldHeight  int    `yaml:"world_height" toml:"world_height"`
	WorldBorder  int    `yaml:"world_border" toml:"world_border"`
	ViewDistance int    `yaml:"view_distance" toml:"view_distance"`

	MaxPlayers      int `yaml:"max_players" toml:"max_players"`
	MaxMobs         int `yaml:"max_mobs" toml:"max_mobs"`
	MaxBlockChanges int `yaml:"max_block_changes" toml:"max_block_changes"`
	MaxWorldEdits   int `yaml:"max_world_edits" toml:"max_world_edits"`

	TickRateHz      int `yaml:"tick_rate_hz" toml:"tick_rate_hz"`
	DayLength       int `yaml:"day_length" toml:"day_length"`
	TimeStep        int `yaml:"time_step" toml:"time_step"`
	YieldIntervalMs int `yaml:"yield_interval_ms" toml:"yield_interval_ms"`
	YieldTicks      int `yaml:"yield_ticks" toml:"yield_ticks"`

	GenBudgetSimple    int `yaml:"gen_budget_simple" toml:"gen_budget_simple"`
	GenBudgetComplex   int `yaml:"gen_budget_complex" toml:"gen_budget_complex"`
	SpawnIntervalTicks int `yaml:"spawn_interval_ticks" toml:"spawn_interval_ticks"`
	MobDespawnChunks   int `yaml:"mob_despawn_chunks" toml:"mob_despawn_chunks"`

	KeepAliveTicks int `yaml:"keepalive_ticks" toml:"keepalive_ticks"`
	TimeoutTicks   int `yaml:"timeout_ticks" toml:"timeout_ticks"`

	InboxSize         int `yaml:"inbox_size" toml:"inbox_size"`
	OutboxSize        int `yaml:"outbox_size" toml:"outbox_size"`
	PlayerPacketRate  int `yaml:"player_packet_rate" toml:"player_packet_rate"`
	PlayerPacketBurst int `yaml:"player_packet_burst" toml:"player_packet_burst"`

	// ObserverAddr "off" disables the observer listener.
	ObserverAddr string `yaml:"observer_addr" toml:"observer_addr"`
	DataDir      string `yaml:"data_dir" toml:"data_dir"`
	IndexBackend string `yaml:"index_backend" toml:"index_backend"`
}

func Defaults() Config {
	var c Config
	c.ApplyDefaults()
	return c
}

func (c *Config) ApplyDefaults() {
	if c.Port <= 0 {
		c.Port = DefaultPort
	}
	if c.MOTD == "" {
		c.MOTD = "An astra server"
	}
	if c.Brand == "" {
		c.Brand = "astra"
	}
	if c.SendBrand == nil {
		on := true
		c.SendBrand = &on
	}
	if c.WorldSeed == 0 {
		c.WorldSeed = 0xA103DE6C
	}
	if c.RngSeed == 0 {
		c.RngSeed = 0xE2B9419
	}
	if c.Worldgen == "" {
		c.Worldgen = "simple"
	}
	if c.WorldHeight <= 0 {
		c.WorldHeight = 256
	}
	if c.WorldBorder <= 0 {
		c.WorldBorder = 30_000_000
	}
	if c.ViewDistance <= 0 {
		c.ViewDistance = 2
	}
	if c.MaxPlayers <= 0 {
		c.MaxPlayers = 16
	}
	if c.MaxMobs <= 0 {
		c.MaxMobs = 64
	}
	if c.MaxBlockChanges <= 0 {
		c.MaxBlockChanges = 512
	}
	if c.MaxWorldEdits <= 0 {
		c.MaxWorldEdits = 20000
	}
	if c.TickRateHz <= 0 {
		c.TickRateHz = 20
	}
	if c.DayLength <= 0 {
		c.DayLength = 24000
	}
	if c.TimeStep <= 0 {
		c.TimeStep = 1
	}
	if c.YieldIntervalMs <= 0 {
		c.YieldIntervalMs = 1000
	}
	if c.YieldTicks <= 0 {
		c.YieldTicks = 1
	}
	if c.GenBudgetSimple <= 0 {
		c.GenBudgetSimple = 16
	}
	if c.GenBudgetComplex <= 0 {
		c.GenBudgetComplex = 2
	}
	if c.SpawnIntervalTicks <= 0 {
		c.SpawnIntervalTicks = 100
	}
	if c.MobDespawnChunks <= 0 {
		c.MobDespawnChunks = 6
	}
	if c.KeepAliveTicks <= 0 {
		c.KeepAliveTicks = 200
	}
	if c.TimeoutTicks <= 0 {
		c.TimeoutTicks = 600
	}
	if c.InboxSize <= 0 {
		c.InboxSize = 1024
	}
	if c.OutboxSize <= 0 {
		c.OutboxSize = 64
	}
	if c.PlayerPacketRate <= 0 {
		c.PlayerPacketRate = 200
	}
	if c.PlayerPacketBurst <= 0 {
		c.PlayerPacketBurst = 2 * c.PlayerPacketRate
	}
	if c.ObserverAddr == "" {
		c.ObserverAddr = "127.0.0.1:8091"
	}
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
	if c.IndexBackend == "" {
		c.IndexBackend = "sqlite"
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if len(c.MOTD) > 255 {
		errs = append(errs, errors.New("motd longer than 255 bytes"))
	}
	if len(c.Brand) > 255 {
		errs = append(errs, errors.New("brand longer than 255 bytes"))
	}
	if _, err := gen.ParseMode(c.Worldgen); err != nil {
		errs = append(errs, err)
	}
	if c.WorldHeight < 16 || c.WorldHeight > gen.MaxHeight {
		errs = append(errs, fmt.Errorf("world_height %d out of range [16,%d]", c.WorldHeight, gen.MaxHeight))
	}
	if c.WorldBorder > gen.MaxBorder {
		errs = append(errs, fmt.Errorf("world_border %d exceeds %d", c.WorldBorder, gen.MaxBorder))
	}
	if c.TickRateHz < 1 || c.TickRateHz > 1000 {
		errs = append(errs, fmt.Errorf("tick_rate_hz %d out of range [1,1000]", c.TickRateHz))
	}
	if c.ViewDistance < 1 || c.ViewDistance > 32 {
		errs = append(errs, fmt.Errorf("view_distance %d out of range [1,32]", c.ViewDistance))
	}
	if c.DayLength > 1<<16 {
		errs = append(errs, fmt.Errorf("day_length %d does not fit the 16-bit world time", c.DayLength))
	}
	if c.MaxPlayers > 1<<12 || c.MaxMobs > 1<<14 {
		errs = append(errs, fmt.Errorf("entity capacity too large (players=%d mobs=%d)", c.MaxPlayers, c.MaxMobs))
	}
	if c.TimeoutTicks <= c.KeepAliveTicks {
		errs = append(errs, fmt.Errorf("timeout_ticks %d must exceed keepalive_ticks %d", c.TimeoutTicks, c.KeepAliveTicks))
	}
	switch strings.ToLower(c.IndexBackend) {
	case "sqlite", "none", "off", "disabled":
	default:
		errs = append(errs, fmt.Errorf("unsupported index_backend: %s", c.IndexBackend))
	}
	return errors.Join(errs...)
}

// Load reads a yaml or toml config picked by file extension. A missing file
// yields the defaults.
func Load(path string) (Config, error) {
	var c Config
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Defaults(), nil
		}
		return c, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(raw, &c); err != nil {
			return c, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
	default:
		if err := yaml.Unmarshal(raw, &c); err != nil {
			return c, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
	}
	c.ApplyDefaults()
	return c, c.Validate()
}

// Mode returns the parsed worldgen mode. Validate must have passed.
func (c Config) Mode() gen.Mode {
	m, _ := gen.ParseMode(c.Worldgen)
	return m
}
