package protocol

import "errors"

var (
	ErrBadPacket     = errors.New("protocol: malformed packet")
	ErrUnexpected    = errors.New("protocol: unexpected packet for state")
	ErrBadName       = errors.New("protocol: invalid player name")
	ErrOutboxFull    = errors.New("protocol: outbox full")
	ErrUnknownConn   = errors.New("protocol: unknown connection")
	ErrUnknownIntent = errors.New("protocol: packet carries no intent")
)

// Disconnect reasons shown to players.
const (
	ReasonServerFull   = "Server is full"
	ReasonServerClosed = "Server closed"
	ReasonTimedOut     = "Timed out"
	ReasonRateLimited  = "Sending packets too fast"
	ReasonBadPacket    = "Malformed packet"
	ReasonBadName      = "Invalid player name"
	ReasonJoinTimeout  = "World did not answer"
)

var knownReasons = map[string]struct{}{
	ReasonServerFull:   {},
	ReasonServerClosed: {},
	ReasonTimedOut:     {},
	ReasonRateLimited:  {},
	ReasonBadPacket:    {},
	ReasonBadName:      {},
	ReasonJoinTimeout:  {},
}

// IsKnownReason reports whether reason is one of this package's disconnect
// messages. The world closes connections with its own reasons too.
func IsKnownReason(reason string) bool {
	_, ok := knownReasons[reason]
	return ok
}
