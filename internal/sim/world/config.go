package world

import "astra.mc/internal/sim/world/terrain/gen"

// MaxTickRateHz bounds TickRateHz; faster loops leave no room for a step.
const MaxTickRateHz = 1000

type WorldConfig struct {
	WorldSeed uint32
	RngSeed   uint32
	Mode      gen.Mode
	Height    int
	Border    int

	// ViewDistance is the server-wide radius in chunks. Players may lower
	// their own radius but never raise it above this one.
	ViewDistance int

	// Capacity bounds. Storage for all of them is allocated in New.
	MaxPlayers      int
	MaxMobs         int
	MaxBlockChanges int
	MaxWorldEdits   int
	InboxSize       int

	TickRateHz int
	DayLength  int
	TimeStep   int

	// GenBudget is the number of chunk columns generated per tick.
	// Zero picks a default for Mode.
	GenBudget          int
	SpawnIntervalTicks int
	MobDespawnChunks   int

	KeepAliveTicks int
	TimeoutTicks   int
	TimeSyncTicks  int
}

func (c *WorldConfig) applyDefaults() {
	if c.Height <= 0 {
		c.Height = 256
	}
	if c.Border <= 0 {
		c.Border = 30_000_000
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
	if c.InboxSize <= 0 {
		c.InboxSize = 1024
	}
	if c.TickRateHz <= 0 {
		c.TickRateHz = 20
	}
	if c.DayLength <= 0 || c.DayLength > 1<<16 {
		c.DayLength = 24000
	}
	if c.TimeStep <= 0 {
		c.TimeStep = 1
	}
	if c.GenBudget <= 0 {
		c.GenBudget = 16
		if c.Mode == gen.Complex {
			c.GenBudget = 2
		}
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
	if c.TimeoutTicks <= c.KeepAliveTicks {
		c.TimeoutTicks = 3 * c.KeepAliveTicks
	}
	if c.TimeSyncTicks <= 0 {
		c.TimeSyncTicks = 20
	}
}
