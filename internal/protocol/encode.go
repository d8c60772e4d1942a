package protocol

import (
	"io"
	"math"
	"strconv"

	pk "github.com/Tnze/go-mc/net/packet"
	"github.com/google/uuid"

	"astra.mc/internal/sim/world"
	"astra.mc/internal/sim/world/ledger"
	"astra.mc/internal/sim/world/terrain/gen"
	"astra.mc/internal/sim/world/terrain/store"
)

// EncodeDelta appends the packets for d to dst. Packet order within a
// delta is fixed: join, time, keep-alive, unloads, chunks, block updates,
// corrections, entity removals, entity spawns and moves.
func EncodeDelta(dst []pk.Packet, d *world.Delta, brand string) []pk.Packet {
	if w := d.Welcome; w != nil {
		dst = append(dst, marshalJoinGame(w))
		if brand != "" {
			dst = append(dst, MarshalBrand(brand))
		}
	}
	if t := d.Time; t != nil {
		dst = append(dst, pk.Marshal(PlayUpdateTime, pk.Long(t.Ticks), pk.Long(t.WorldTime)))
	}
	if d.KeepAlive != 0 {
		dst = append(dst, pk.Marshal(PlayKeepAlive, pk.Long(d.KeepAlive)))
	}
	for _, c := range d.Unload {
		dst = append(dst, pk.Marshal(PlayUnloadChunk, pk.Int(c.CX), pk.Int(c.CZ)))
	}
	for i := range d.Chunks {
		c := &d.Chunks[i]
		dst = append(dst, pk.Marshal(PlayChunkData,
			pk.Int(c.Column.CX),
			pk.Int(c.Column.CZ),
			&ChunkPayload{Column: c.Column, Edits: c.Edits},
		))
	}
	for _, b := range d.Blocks {
		dst = append(dst, marshalBlock(b))
	}
	for _, b := range d.Corrections {
		dst = append(dst, marshalBlock(b))
	}
	if len(d.Removed) > 0 {
		fields := make([]pk.FieldEncoder, 0, len(d.Removed)+1)
		fields = append(fields, pk.VarInt(len(d.Removed)))
		for _, id := range d.Removed {
			fields = append(fields, pk.VarInt(id))
		}
		dst = append(dst, pk.Marshal(PlayRemoveEntities, fields...))
	}
	for i := range d.Entities {
		dst = append(dst, marshalEntity(&d.Entities[i]))
	}
	return dst
}

func marshalJoinGame(w *world.Welcome) pk.Packet {
	return pk.Marshal(PlayJoinGame,
		pk.Int(w.EntityID),
		pk.Boolean(false), // hardcore
		pk.VarInt(w.MaxPlayers),
		pk.VarInt(w.ViewDistance),
		pk.Long(w.HashedSeed),
		pk.String(w.Mode.String()),
		pk.VarInt(w.Height),
		pk.Double(w.Spawn.X()),
		pk.Double(w.Spawn.Y()),
		pk.Double(w.Spawn.Z()),
	)
}

func MarshalBrand(brand string) pk.Packet {
	return pk.Marshal(PlayPluginMessage,
		pk.Identifier(BrandChannel),
		pk.PluginMessageData(pk.Marshal(0, pk.String(brand)).Data),
	)
}

func MarshalDisconnect(reason string) pk.Packet {
	return pk.Marshal(PlayDisconnect, pk.String(reasonJSON(reason)))
}

func marshalBlock(b ledger.BlockChange) pk.Packet {
	return pk.Marshal(PlayBlockUpdate,
		pk.Position{X: b.Pos.X, Y: b.Pos.Y, Z: b.Pos.Z},
		pk.VarInt(b.Block),
	)
}

func marshalEntity(u *world.EntityUpdate) pk.Packet {
	x, y, z := pk.Double(u.Pos.X()), pk.Double(u.Pos.Y()), pk.Double(u.Pos.Z())
	yaw, pitch := toAngle(u.Yaw), toAngle(u.Pitch)
	switch {
	case u.Spawn && u.Kind == world.EntityPlayer:
		return pk.Marshal(PlaySpawnPlayer, pk.VarInt(u.ID), pk.UUID(u.UUID), x, y, z, yaw, pitch)
	case u.Spawn:
		return pk.Marshal(PlaySpawnEntity,
			pk.VarInt(u.ID),
			pk.UUID(MobUUID(u.ID)),
			pk.VarInt(u.Mob),
			x, y, z, yaw, pitch,
		)
	}
	return pk.Marshal(PlayTeleportEntity, pk.VarInt(u.ID), x, y, z, yaw, pitch, pk.Boolean(true))
}

// MobUUID is stable for a wire entity id.
func MobUUID(id int32) uuid.UUID {
	return uuid.NewMD5(uuid.NameSpaceOID, []byte("astra:mob:"+strconv.Itoa(int(id))))
}

// toAngle packs degrees into 1/256 turns.
func toAngle(deg float32) pk.Angle {
	turns := float64(deg) / 360
	turns -= math.Floor(turns)
	return pk.Angle(int8(uint8(turns * 256)))
}

// FromAngle is the inverse of the packing used for entity rotations.
func FromAngle(a pk.Angle) float32 {
	return float32(uint8(a)) * 360 / 256
}

// ChunkPayload is the chunk data body after the coordinates: per column
// height, surface block and biome in x-major order, then the edits.
type ChunkPayload struct {
	Column gen.Column
	Edits  []store.Edit
}

func (c *ChunkPayload) WriteTo(w io.Writer) (int64, error) {
	var total int64
	put := func(f pk.FieldEncoder) error {
		n, err := f.WriteTo(w)
		total += n
		return err
	}
	for i := range c.Column.Heights {
		if err := put(pk.VarInt(c.Column.Heights[i])); err != nil {
			return total, err
		}
		if err := put(pk.UnsignedByte(c.Column.Surface[i])); err != nil {
			return total, err
		}
		if err := put(pk.UnsignedByte(c.Column.Biomes[i])); err != nil {
			return total, err
		}
	}
	if err := put(pk.VarInt(len(c.Edits))); err != nil {
		return total, err
	}
	for _, e := range c.Edits {
		if err := put(pk.Position{X: e.Pos.X, Y: e.Pos.Y, Z: e.Pos.Z}); err != nil {
			return total, err
		}
		if err := put(pk.VarInt(e.Block)); err != nil {
			return total, err
		}
	}
	return total, nil
}

func (c *ChunkPayload) ReadFrom(r io.Reader) (int64, error) {
	var total int64
	get := func(f pk.FieldDecoder) error {
		n, err := f.ReadFrom(r)
		total += n
		return err
	}
	var (
		h       pk.VarInt
		surface pk.UnsignedByte
		biome   pk.UnsignedByte
	)
	for i := range c.Column.Heights {
		if err := get(&h); err != nil {
			return total, err
		}
		if err := get(&surface); err != nil {
			return total, err
		}
		if err := get(&biome); err != nil {
			return total, err
		}
		c.Column.Heights[i] = int16(h)
		c.Column.Surface[i] = gen.BlockID(surface)
		c.Column.Biomes[i] = gen.Biome(biome)
	}
	var n pk.VarInt
	if err := get(&n); err != nil {
		return total, err
	}
	if n < 0 || int(n) > gen.ChunkSize*gen.ChunkSize*4096 {
		return total, ErrBadPacket
	}
	c.Edits = c.Edits[:0]
	var (
		pos   pk.Position
		block pk.VarInt
	)
	for range int(n) {
		if err := get(&pos); err != nil {
			return total, err
		}
		if err := get(&block); err != nil {
			return total, err
		}
		c.Edits = append(c.Edits, store.Edit{
			Pos:   store.BlockPos{X: pos.X, Y: pos.Y, Z: pos.Z},
			Block: gen.BlockID(block),
		})
	}
	return total, nil
}
