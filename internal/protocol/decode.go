package protocol

import (
	"fmt"
	"math"

	pk "github.com/Tnze/go-mc/net/packet"
	"github.com/go-gl/mathgl/mgl64"

	"astra.mc/internal/sim/world"
	"astra.mc/internal/sim/world/registry"
	"astra.mc/internal/sim/world/terrain/gen"
	"astra.mc/internal/sim/world/terrain/store"
)

// Hotbar maps held item slots to the block a player places.
var Hotbar = [9]gen.BlockID{
	gen.Stone, gen.Dirt, gen.Grass, gen.Planks, gen.Cobblestone,
	gen.Glass, gen.Log, gen.Sand, gen.Sandstone,
}

// Player action statuses that remove a block.
const (
	actionStartDigging  = 0
	actionFinishDigging = 2
)

// PlayDecoder turns serverbound play packets of one session into intents.
// Rotation-only and position-only packets are merged with the last known
// pose, so it keeps per-session state and is not safe for concurrent use.
type PlayDecoder struct {
	Handle registry.Handle

	pos   mgl64.Vec3
	yaw   float32
	pitch float32
	held  int
}

func NewPlayDecoder(h registry.Handle, spawn mgl64.Vec3) *PlayDecoder {
	return &PlayDecoder{Handle: h, pos: spawn}
}

// Decode returns the intent carried by p. Packets with no world meaning
// return ErrUnknownIntent and should be dropped by the caller.
func (d *PlayDecoder) Decode(p pk.Packet) (world.Intent, error) {
	in := world.Intent{Player: d.Handle}
	switch p.ID {
	case PlayKeepAliveIn:
		var id pk.Long
		if err := p.Scan(&id); err != nil {
			return in, badPacket("keep alive", err)
		}
		in.Kind = world.IntentKeepAlive
		in.KeepAliveID = int64(id)
		return in, nil

	case PlaySetPosition:
		var (
			x, y, z pk.Double
			ground  pk.Boolean
		)
		if err := p.Scan(&x, &y, &z, &ground); err != nil {
			return in, badPacket("set position", err)
		}
		return d.move(in, mgl64.Vec3{float64(x), float64(y), float64(z)}, d.yaw, d.pitch, bool(ground))

	case PlaySetPositionAndRot:
		var (
			x, y, z    pk.Double
			yaw, pitch pk.Float
			ground     pk.Boolean
		)
		if err := p.Scan(&x, &y, &z, &yaw, &pitch, &ground); err != nil {
			return in, badPacket("set position and rotation", err)
		}
		return d.move(in, mgl64.Vec3{float64(x), float64(y), float64(z)}, float32(yaw), float32(pitch), bool(ground))

	case PlaySetRotation:
		var (
			yaw, pitch pk.Float
			ground     pk.Boolean
		)
		if err := p.Scan(&yaw, &pitch, &ground); err != nil {
			return in, badPacket("set rotation", err)
		}
		return d.move(in, d.pos, float32(yaw), float32(pitch), bool(ground))

	case PlayPlayerAction:
		var (
			status pk.VarInt
			pos    pk.Position
			face   pk.Byte
			seq    pk.VarInt
		)
		if err := p.Scan(&status, &pos, &face, &seq); err != nil {
			return in, badPacket("player action", err)
		}
		if status != actionStartDigging && status != actionFinishDigging {
			return in, ErrUnknownIntent
		}
		in.Kind = world.IntentBreakBlock
		in.Target = store.BlockPos{X: pos.X, Y: pos.Y, Z: pos.Z}
		return in, nil

	case PlayUseItemOn:
		var (
			hand       pk.VarInt
			pos        pk.Position
			face       pk.VarInt
			cx, cy, cz pk.Float
			inside     pk.Boolean
			seq        pk.VarInt
		)
		if err := p.Scan(&hand, &pos, &face, &cx, &cy, &cz, &inside, &seq); err != nil {
			return in, badPacket("use item on", err)
		}
		target, ok := offsetByFace(store.BlockPos{X: pos.X, Y: pos.Y, Z: pos.Z}, int(face))
		if !ok {
			return in, fmt.Errorf("%w: block face %d", ErrBadPacket, face)
		}
		in.Kind = world.IntentPlaceBlock
		in.Target = target
		in.Content = Hotbar[d.held]
		return in, nil

	case PlayClientInformation:
		var (
			locale pk.String
			vd     pk.Byte
		)
		if err := p.Scan(&locale, &vd); err != nil {
			return in, badPacket("client information", err)
		}
		in.Kind = world.IntentViewDistance
		in.ViewDistance = int(vd)
		return in, nil

	case PlaySetHeldItem:
		var slot pk.Short
		if err := p.Scan(&slot); err != nil {
			return in, badPacket("set held item", err)
		}
		if slot < 0 || int(slot) >= len(Hotbar) {
			return in, fmt.Errorf("%w: held slot %d", ErrBadPacket, slot)
		}
		d.held = int(slot)
		return in, ErrUnknownIntent
	}
	return in, ErrUnknownIntent
}

func (d *PlayDecoder) move(in world.Intent, pos mgl64.Vec3, yaw, pitch float32, ground bool) (world.Intent, error) {
	if !finite(pos.X()) || !finite(pos.Y()) || !finite(pos.Z()) {
		return in, fmt.Errorf("%w: non-finite position", ErrBadPacket)
	}
	d.pos, d.yaw, d.pitch = pos, yaw, pitch
	in.Kind = world.IntentMove
	in.Pos = pos
	in.Yaw = yaw
	in.Pitch = pitch
	in.OnGround = ground
	return in, nil
}

// offsetByFace returns the block adjacent to p across face, numbered
// bottom, top, north, south, west, east.
func offsetByFace(p store.BlockPos, face int) (store.BlockPos, bool) {
	switch face {
	case 0:
		p.Y--
	case 1:
		p.Y++
	case 2:
		p.Z--
	case 3:
		p.Z++
	case 4:
		p.X--
	case 5:
		p.X++
	default:
		return p, false
	}
	return p, true
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func badPacket(what string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrBadPacket, what, err)
}
