package protocol

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/Tnze/go-mc/chat"
	pk "github.com/Tnze/go-mc/net/packet"
	"github.com/google/uuid"
)

type HandshakeMsg struct {
	ProtocolVersion int32
	Address         string
	Port            uint16
	Next            State
}

func ReadHandshake(p pk.Packet) (HandshakeMsg, error) {
	var (
		version pk.VarInt
		addr    pk.String
		port    pk.UnsignedShort
		next    pk.VarInt
	)
	if p.ID != Handshake {
		return HandshakeMsg{}, fmt.Errorf("%w: id 0x%02x in handshake", ErrUnexpected, p.ID)
	}
	if err := p.Scan(&version, &addr, &port, &next); err != nil {
		return HandshakeMsg{}, fmt.Errorf("%w: handshake: %v", ErrBadPacket, err)
	}
	h := HandshakeMsg{ProtocolVersion: int32(version), Address: string(addr), Port: uint16(port), Next: State(next)}
	if h.Next != StateStatus && h.Next != StateLogin {
		return h, fmt.Errorf("%w: next state %d", ErrBadPacket, h.Next)
	}
	return h, nil
}

func MarshalHandshake(h HandshakeMsg) pk.Packet {
	return pk.Marshal(Handshake,
		pk.VarInt(h.ProtocolVersion),
		pk.String(h.Address),
		pk.UnsignedShort(h.Port),
		pk.VarInt(h.Next),
	)
}

// StatusMsg is the server list response body.
type StatusMsg struct {
	Version     StatusVersion `json:"version"`
	Players     StatusPlayers `json:"players"`
	Description chat.Message  `json:"description"`
}

type StatusVersion struct {
	Name     string `json:"name"`
	Protocol int    `json:"protocol"`
}

type StatusPlayers struct {
	Max    int `json:"max"`
	Online int `json:"online"`
}

func NewStatus(motd string, online, max int) StatusMsg {
	return StatusMsg{
		Version:     StatusVersion{Name: VersionName, Protocol: Version},
		Players:     StatusPlayers{Max: max, Online: online},
		Description: chat.Text(motd),
	}
}

func MarshalStatus(s StatusMsg) (pk.Packet, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return pk.Packet{}, err
	}
	return pk.Marshal(StatusResponse, pk.String(b)), nil
}

// ReadPing returns the payload of a status ping so it can be echoed.
func ReadPing(p pk.Packet) (int64, error) {
	var v pk.Long
	if p.ID != StatusPing {
		return 0, fmt.Errorf("%w: id 0x%02x in status", ErrUnexpected, p.ID)
	}
	if err := p.Scan(&v); err != nil {
		return 0, fmt.Errorf("%w: ping: %v", ErrBadPacket, err)
	}
	return int64(v), nil
}

func MarshalPong(v int64) pk.Packet { return pk.Marshal(StatusPong, pk.Long(v)) }

// ReadLoginStart returns the player name from a login start packet.
// Anything after the name (the optional client uuid) is ignored; offline
// mode derives the uuid from the name.
func ReadLoginStart(p pk.Packet) (string, error) {
	var name pk.String
	if p.ID != LoginStart {
		return "", fmt.Errorf("%w: id 0x%02x in login", ErrUnexpected, p.ID)
	}
	if err := p.Scan(&name); err != nil {
		return "", fmt.Errorf("%w: login start: %v", ErrBadPacket, err)
	}
	if err := ValidateName(string(name)); err != nil {
		return "", err
	}
	return string(name), nil
}

func ValidateName(name string) error {
	n := utf8.RuneCountInString(name)
	if n == 0 || n > MaxNameLen {
		return fmt.Errorf("%w: %q", ErrBadName, name)
	}
	for _, r := range name {
		ok := r == '_' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		if !ok {
			return fmt.Errorf("%w: %q", ErrBadName, name)
		}
	}
	return nil
}

// OfflineUUID is the name-derived uuid offline-mode servers assign.
func OfflineUUID(name string) uuid.UUID {
	return uuid.NewMD5(uuid.Nil, []byte("OfflinePlayer:"+name))
}

func MarshalLoginSuccess(id uuid.UUID, name string) pk.Packet {
	return pk.Marshal(LoginSuccess,
		pk.UUID(id),
		pk.String(name),
		pk.VarInt(0), // no profile properties
	)
}

func MarshalLoginDisconnect(reason string) pk.Packet {
	return pk.Marshal(LoginDisconnect, pk.String(reasonJSON(reason)))
}

func reasonJSON(reason string) string {
	b, err := json.Marshal(chat.Text(reason))
	if err != nil {
		return `{"text":""}`
	}
	return string(b)
}
