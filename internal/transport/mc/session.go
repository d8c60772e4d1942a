package mc

import (
	"net"
	"sync"
	"time"

	mcnet "github.com/Tnze/go-mc/net"
	pk "github.com/Tnze/go-mc/net/packet"

	"astra.mc/internal/protocol"
	"astra.mc/internal/sim/world"
)

// session is one logged-in connection. The world talks to it only through
// Send and Kick; both are safe to call from the tick goroutine.
type session struct {
	id   world.ConnID
	name string
	raw  net.Conn
	conn *mcnet.Conn

	out    chan []pk.Packet
	closed chan struct{}
	once   sync.Once
	reason string // written once, before closed is closed
}

func newSession(id world.ConnID, name string, raw net.Conn, conn *mcnet.Conn, outbox int) *session {
	return &session{
		id:     id,
		name:   name,
		raw:    raw,
		conn:   conn,
		out:    make(chan []pk.Packet, outbox),
		closed: make(chan struct{}),
	}
}

func (s *session) Send(batch []pk.Packet) error {
	select {
	case <-s.closed:
		return protocol.ErrUnknownConn
	default:
	}
	select {
	case s.out <- batch:
		return nil
	default:
		return protocol.ErrOutboxFull
	}
}

func (s *session) Kick(reason string) {
	s.once.Do(func() {
		s.reason = reason
		close(s.closed)
	})
}

func (s *session) done() <-chan struct{} { return s.closed }

// writeLoop drains the outbox until the session is kicked, then sends the
// disconnect reason and closes the socket so the reader unblocks.
func (s *session) writeLoop(timeout time.Duration) {
	defer s.raw.Close()
	for {
		select {
		case <-s.closed:
			if s.reason != "" {
				_ = s.raw.SetWriteDeadline(time.Now().Add(time.Second))
				_ = s.conn.WritePacket(protocol.MarshalDisconnect(s.reason))
			}
			return
		case batch := <-s.out:
			_ = s.raw.SetWriteDeadline(time.Now().Add(timeout))
			for _, p := range batch {
				if err := s.conn.WritePacket(p); err != nil {
					s.Kick("")
					return
				}
			}
		}
	}
}
