package observerproto

import "astra.mc/internal/sim/world"

// Version is the observer protocol version (separate from the game protocol).
const Version = "1.0"

const TypeTick = "TICK"

// HTTP response for GET /v1/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string      `json:"protocol_version"`
	Tick            uint32      `json:"tick"`
	WorldParams     WorldParams `json:"world_params"`
	BlockPalette    []string    `json:"block_palette"`
}

type WorldParams struct {
	TickRateHz   int    `json:"tick_rate_hz"`
	ChunkSize    [3]int `json:"chunk_size"`
	Height       int    `json:"height"`
	Seed         uint32 `json:"seed"`
	Worldgen     string `json:"worldgen"`
	ViewDistance int    `json:"view_distance"`
	MaxPlayers   int    `json:"max_players"`
	DayLength    int    `json:"day_length"`
}

// Server -> Client. Sent every tick.
type TickMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint32 `json:"tick"`
	WorldTime       uint16 `json:"world_time"`

	Joins  []JoinInfo `json:"joins,omitempty"`
	Leaves []string   `json:"leaves,omitempty"`

	Intents         int `json:"intents"`
	Rejected        int `json:"rejected"`
	Stale           int `json:"stale"`
	BlockChanges    int `json:"block_changes"`
	ChunksGenerated int `json:"chunks_generated"`

	Players int     `json:"players"`
	Mobs    int     `json:"mobs"`
	StepMS  float64 `json:"step_ms"`

	Audit []AuditEntry `json:"audit,omitempty"`
}

type JoinInfo struct {
	Name     string `json:"name"`
	EntityID int32  `json:"entity_id"`
}

type AuditEntry struct {
	Tick  uint32 `json:"tick"`
	Actor int32  `json:"actor"`
	Cause string `json:"cause"`
	Pos   [3]int `json:"pos"`
	To    string `json:"to"`
}

// NewTickMsg copies e (and the tick's audit entries) into a message that
// outlives the world's reused buffers.
func NewTickMsg(e world.TickLogEntry, audit []world.AuditEntry) TickMsg {
	m := TickMsg{
		Type:            TypeTick,
		ProtocolVersion: Version,
		Tick:            e.Tick,
		WorldTime:       e.WorldTime,
		Intents:         e.Intents,
		Rejected:        e.Rejected,
		Stale:           e.Stale,
		BlockChanges:    e.BlockChanges,
		ChunksGenerated: e.ChunksGenerated,
		Players:         e.Players,
		Mobs:            e.Mobs,
		StepMS:          e.StepMS,
	}
	if len(e.Joins) > 0 {
		m.Joins = make([]JoinInfo, len(e.Joins))
		for i, j := range e.Joins {
			m.Joins[i] = JoinInfo{Name: j.Name, EntityID: j.EntityID}
		}
	}
	if len(e.Leaves) > 0 {
		m.Leaves = append([]string(nil), e.Leaves...)
	}
	if len(audit) > 0 {
		m.Audit = make([]AuditEntry, len(audit))
		for i, a := range audit {
			m.Audit[i] = AuditEntry(a)
		}
	}
	return m
}
