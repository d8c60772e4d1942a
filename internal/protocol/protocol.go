// Package protocol maps the block game wire protocol onto world intents and
// deltas. Framing (VarInt length prefix, compression) is go-mc's; this
// package only knows packet ids and payload layouts.
//
// Handshake, status and login follow release 1.20.1 (protocol 763). Play
// packets reuse that release's ids, but chunk and entity payloads are this
// server's compact layouts, not the vanilla ones.
package protocol

// Version is the protocol number reported in status responses.
const (
	Version     = 763
	VersionName = "1.20.1"
)

// State is the connection state selected by the handshake.
type State int32

const (
	StateHandshake State = 0
	StateStatus    State = 1
	StateLogin     State = 2
	StatePlay      State = 3
)

func (s State) String() string {
	switch s {
	case StateHandshake:
		return "handshake"
	case StateStatus:
		return "status"
	case StateLogin:
		return "login"
	case StatePlay:
		return "play"
	}
	return "unknown"
}

// Serverbound packet ids.
const (
	Handshake int32 = 0x00

	StatusRequest int32 = 0x00
	StatusPing    int32 = 0x01

	LoginStart int32 = 0x00

	PlayConfirmTeleport   int32 = 0x00
	PlayChatMessage       int32 = 0x05
	PlayClientInformation int32 = 0x08
	PlayPluginMessageIn   int32 = 0x0D
	PlayKeepAliveIn       int32 = 0x12
	PlaySetPosition       int32 = 0x14
	PlaySetPositionAndRot int32 = 0x15
	PlaySetRotation       int32 = 0x16
	PlayPlayerAction      int32 = 0x1D
	PlaySetHeldItem       int32 = 0x28
	PlayUseItemOn         int32 = 0x31
)

// Clientbound packet ids.
const (
	StatusResponse int32 = 0x00
	StatusPong     int32 = 0x01

	LoginDisconnect int32 = 0x00
	LoginSuccess    int32 = 0x02

	PlaySpawnEntity    int32 = 0x01
	PlaySpawnPlayer    int32 = 0x03
	PlayBlockUpdate    int32 = 0x0A
	PlayPluginMessage  int32 = 0x17
	PlayDisconnect     int32 = 0x1A
	PlayUnloadChunk    int32 = 0x1E
	PlayKeepAlive      int32 = 0x23
	PlayChunkData      int32 = 0x24
	PlayJoinGame       int32 = 0x28
	PlayRemoveEntities int32 = 0x3E
	PlayUpdateTime     int32 = 0x5E
	PlayTeleportEntity int32 = 0x68
)

// BrandChannel carries the server brand in a plugin message.
const BrandChannel = "minecraft:brand"

// MaxNameLen bounds player names at login.
const MaxNameLen = 16
