package gen

// BlockID is the server-side block palette. Ids go on the wire unchanged.
type BlockID uint8

const (
	Air BlockID = iota
	Bedrock
	Stone
	Dirt
	Grass
	Sand
	Sandstone
	Gravel
	Water
	Ice
	Snow
	Log
	Leaves
	CoalOre
	IronOre
	Cobblestone
	Planks
	Glass

	blockCount
)

var blockNames = [blockCount]string{
	Air:         "air",
	Bedrock:     "bedrock",
	Stone:       "stone",
	Dirt:        "dirt",
	Grass:       "grass_block",
	Sand:        "sand",
	Sandstone:   "sandstone",
	Gravel:      "gravel",
	Water:       "water",
	Ice:         "ice",
	Snow:        "snow_block",
	Log:         "oak_log",
	Leaves:      "oak_leaves",
	CoalOre:     "coal_ore",
	IronOre:     "iron_ore",
	Cobblestone: "cobblestone",
	Planks:      "oak_planks",
	Glass:       "glass",
}

func (b BlockID) String() string {
	if b < blockCount {
		return blockNames[b]
	}
	return "unknown"
}

// Valid reports whether b is part of the palette.
func (b BlockID) Valid() bool { return b < blockCount }

// Solid reports whether players and mobs can stand on b.
func (b BlockID) Solid() bool {
	switch b {
	case Air, Water:
		return false
	}
	return b.Valid()
}

// Palette lists block names indexed by BlockID.
func Palette() []string {
	out := make([]string, len(blockNames))
	copy(out, blockNames[:])
	return out
}

// BlockByName resolves a palette name; ok is false for unknown names.
func BlockByName(name string) (BlockID, bool) {
	for i, n := range blockNames {
		if n == name {
			return BlockID(i), true
		}
	}
	return Air, false
}

// Biome is decided per column.
type Biome uint8

const (
	Plains Biome = iota
	Desert
	Forest
	Mountains
	Snowy
)

func (b Biome) String() string {
	switch b {
	case Plains:
		return "PLAINS"
	case Desert:
		return "DESERT"
	case Forest:
		return "FOREST"
	case Mountains:
		return "MOUNTAINS"
	case Snowy:
		return "SNOWY"
	}
	return "UNKNOWN"
}
