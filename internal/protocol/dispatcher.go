package protocol

import (
	"fmt"

	pk "github.com/Tnze/go-mc/net/packet"

	"astra.mc/internal/sim/world"
)

// Sink is one connection's outbound side.
type Sink interface {
	// Send queues a whole batch or nothing. It must not block; a full
	// queue returns ErrOutboxFull.
	Send(batch []pk.Packet) error
	// Kick sends a disconnect with reason and closes the connection.
	Kick(reason string)
}

type Sessions interface {
	Lookup(conn world.ConnID) (Sink, bool)
}

type DispatcherOptions struct {
	// Brand is announced after the join packet. Empty sends nothing.
	Brand string
}

// Dispatcher implements world.Dispatcher on top of a session table.
// Each delta is encoded into a fresh batch, so the world may reuse its
// buffers as soon as Deliver returns.
type Dispatcher struct {
	sessions Sessions
	opts     DispatcherOptions
}

func NewDispatcher(s Sessions, opts DispatcherOptions) *Dispatcher {
	return &Dispatcher{sessions: s, opts: opts}
}

func (d *Dispatcher) Deliver(conn world.ConnID, delta *world.Delta) error {
	sink, ok := d.sessions.Lookup(conn)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownConn, conn)
	}
	if delta.Empty() {
		return nil
	}
	batch := EncodeDelta(make([]pk.Packet, 0, packetCount(delta)), delta, d.opts.Brand)
	return sink.Send(batch)
}

func (d *Dispatcher) Close(conn world.ConnID, reason string) {
	if sink, ok := d.sessions.Lookup(conn); ok {
		sink.Kick(reason)
	}
}

func packetCount(d *world.Delta) int {
	n := len(d.Unload) + len(d.Chunks) + len(d.Blocks) + len(d.Corrections) + len(d.Entities)
	if d.Welcome != nil {
		n += 2
	}
	if d.Time != nil {
		n++
	}
	if d.KeepAlive != 0 {
		n++
	}
	if len(d.Removed) > 0 {
		n++
	}
	return n
}
