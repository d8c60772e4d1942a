package world

import (
	"github.com/brentp/intintmap"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"astra.mc/internal/sim/world/ledger"
	"astra.mc/internal/sim/world/registry"
	"astra.mc/internal/sim/world/terrain/gen"
	"astra.mc/internal/sim/world/terrain/store"
)

// ConnID identifies a transport connection. It is assigned by the transport.
type ConnID uint32

// maxCorrections bounds the per-player list of rejected edits echoed back.
const maxCorrections = 16

type PlayerData struct {
	Name     string
	UUID     uuid.UUID
	Conn     ConnID
	EntityID int32

	Pos      mgl64.Vec3
	Yaw      float32
	Pitch    float32
	OnGround bool

	ViewDistance int
	LastAckTick  uint32
	JoinedTick   uint32

	welcomed bool
	moved    bool

	// View tracking. loaded holds every chunk that was sent and not unloaded
	// since; pending holds chunks in view that still need generating.
	centerX, centerZ int
	loaded           *intintmap.Map
	pending          []int64
	unload           []int64

	// known has one bit per wire entity id slot the client has been told about.
	known []uint64

	corrections  [maxCorrections]ledger.BlockChange
	nCorrections int
}

type MobKind uint8

const (
	MobZombie MobKind = iota + 1
	MobSkeleton
	MobPig
	MobSheep
)

func (k MobKind) String() string {
	switch k {
	case MobZombie:
		return "zombie"
	case MobSkeleton:
		return "skeleton"
	case MobPig:
		return "pig"
	case MobSheep:
		return "sheep"
	}
	return "unknown"
}

func (k MobKind) Hostile() bool { return k == MobZombie || k == MobSkeleton }

type BehaviorState uint8

const (
	BehaviorIdle BehaviorState = iota
	BehaviorWander
	BehaviorChase
)

type MobData struct {
	Kind     MobKind
	EntityID int32
	Pos      mgl64.Vec3
	Yaw      float32
	Health   int

	State      BehaviorState
	Target     mgl64.Vec3
	StateTicks int
	SpawnTick  uint32

	moved bool
}

type IntentKind uint8

const (
	IntentJoin IntentKind = iota + 1
	IntentLeave
	IntentMove
	IntentPlaceBlock
	IntentBreakBlock
	IntentViewDistance
	IntentKeepAlive
)

func (k IntentKind) String() string {
	switch k {
	case IntentJoin:
		return "join"
	case IntentLeave:
		return "leave"
	case IntentMove:
		return "move"
	case IntentPlaceBlock:
		return "place_block"
	case IntentBreakBlock:
		return "break_block"
	case IntentViewDistance:
		return "view_distance"
	case IntentKeepAlive:
		return "keep_alive"
	}
	return "unknown"
}

// Intent is a decoded client request. Intents are applied in the order they
// were submitted, during the Reconciling phase of the next tick.
type Intent struct {
	Kind   IntentKind
	Player registry.Handle

	Join *JoinRequest

	Pos      mgl64.Vec3
	Yaw      float32
	Pitch    float32
	OnGround bool

	Target  store.BlockPos
	Content gen.BlockID

	ViewDistance int
	KeepAliveID  int64
}

type JoinRequest struct {
	Name string
	UUID uuid.UUID
	Conn ConnID
	// ViewDistance is the client's requested radius; 0 means the server default.
	ViewDistance int
	// Spawn overrides the spawn position when non-nil.
	Spawn *mgl64.Vec3
	// Resp must be buffered; the world never blocks on it.
	Resp chan JoinResponse
}

type JoinResponse struct {
	Handle   registry.Handle
	EntityID int32
	Spawn    mgl64.Vec3
	Err      error
}

// Welcome is delivered once, in the first delta after a join.
type Welcome struct {
	EntityID     int32
	Spawn        mgl64.Vec3
	ViewDistance int
	MaxPlayers   int
	HashedSeed   int64
	Mode         gen.Mode
	Height       int
}

type TimeUpdate struct {
	Ticks     uint32
	WorldTime uint16
}

// ChunkData is one generated column plus the edits inside it.
type ChunkData struct {
	Column gen.Column
	Edits  []store.Edit
}

type EntityKind uint8

const (
	EntityPlayer EntityKind = iota + 1
	EntityMob
)

type EntityUpdate struct {
	ID    int32
	Kind  EntityKind
	Mob   MobKind
	Name  string
	UUID  uuid.UUID
	Pos   mgl64.Vec3
	Yaw   float32
	Pitch float32
	// Spawn is set the first time the receiving player hears of this entity.
	Spawn bool
}

type ChunkPos struct {
	CX, CZ int
}

// Delta is everything one player receives for one tick. It is built in
// reused buffers: a Dispatcher must finish with it before Deliver returns.
type Delta struct {
	Tick      uint32
	Welcome   *Welcome
	Time      *TimeUpdate
	KeepAlive int64 // 0 when no keep-alive is due

	Unload      []ChunkPos
	Chunks      []ChunkData
	Blocks      []ledger.BlockChange
	Corrections []ledger.BlockChange // authoritative blocks where the player's own edit was rejected
	Entities    []EntityUpdate
	Removed     []int32
}

func (d *Delta) reset(tick uint32) {
	d.Tick = tick
	d.Welcome = nil
	d.Time = nil
	d.KeepAlive = 0
	d.Unload = d.Unload[:0]
	d.Chunks = d.Chunks[:0]
	d.Blocks = d.Blocks[:0]
	d.Corrections = d.Corrections[:0]
	d.Entities = d.Entities[:0]
	d.Removed = d.Removed[:0]
}

// Empty reports whether the delta carries nothing worth sending.
func (d *Delta) Empty() bool {
	return d.Welcome == nil && d.Time == nil && d.KeepAlive == 0 &&
		len(d.Unload) == 0 && len(d.Chunks) == 0 && len(d.Blocks) == 0 &&
		len(d.Corrections) == 0 && len(d.Entities) == 0 && len(d.Removed) == 0
}

// Dispatcher encodes deltas for the transport. Deliver must be all or
// nothing: on error nothing of d may reach the client.
type Dispatcher interface {
	Deliver(conn ConnID, d *Delta) error
	Close(conn ConnID, reason string)
}

// TickObserver receives every tick's log entry after the tick completes.
// It must not block or keep the entry's slices.
type TickObserver interface {
	ObserveTick(entry TickLogEntry)
}

// Optional loggers (may be nil). Implemented in internal/persistence/*.
type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

type TickLogEntry struct {
	Tick      uint32 `json:"tick"`
	WorldTime uint16 `json:"world_time"`

	Joins  []RecordedJoin `json:"joins,omitempty"`
	Leaves []string       `json:"leaves,omitempty"`

	Intents         int `json:"intents"`
	Rejected        int `json:"rejected"`
	Stale           int `json:"stale"`
	BlockChanges    int `json:"block_changes"`
	ChunksGenerated int `json:"chunks_generated"`
	GenFailures     int `json:"gen_failures,omitempty"`
	MobErrors       int `json:"mob_errors,omitempty"`
	DeliverFailures int `json:"deliver_failures,omitempty"`
	Spawned         int `json:"spawned,omitempty"`
	Despawned       int `json:"despawned,omitempty"`

	Players int     `json:"players"`
	Mobs    int     `json:"mobs"`
	StepMS  float64 `json:"step_ms"`
}

type RecordedJoin struct {
	Name     string `json:"name"`
	EntityID int32  `json:"entity_id"`
}

// AuditEntry is one applied block change.
type AuditEntry struct {
	Tick  uint32 `json:"tick"`
	Actor int32  `json:"actor"`
	Cause string `json:"cause"`
	Pos   [3]int `json:"pos"`
	To    string `json:"to"`
}
