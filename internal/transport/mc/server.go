// Package mc accepts block game clients over TCP, runs the handshake,
// status and login exchanges, and then shuttles play packets between the
// socket and the world.
package mc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync/atomic"
	"time"

	mcnet "github.com/Tnze/go-mc/net"
	pk "github.com/Tnze/go-mc/net/packet"
	"github.com/remeh/sizedwaitgroup"
	"github.com/sasha-s/go-deadlock"
	"golang.org/x/time/rate"

	"astra.mc/internal/protocol"
	"astra.mc/internal/sim/world"
)

// World is what the transport needs from the simulation.
type World interface {
	Join(req world.JoinRequest) error
	Submit(in world.Intent) error
	Metrics() world.WorldMetrics
}

type Config struct {
	Motd string
	// MaxConns bounds connections in any state, including status pings.
	MaxConns   int
	OutboxSize int

	PacketsPerSecond float64
	PacketBurst      int

	LoginTimeout time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.Motd == "" {
		c.Motd = "An astra server"
	}
	if c.MaxConns <= 0 {
		c.MaxConns = 64
	}
	if c.OutboxSize <= 0 {
		c.OutboxSize = 64
	}
	if c.PacketsPerSecond <= 0 {
		c.PacketsPerSecond = 200
	}
	if c.PacketBurst <= 0 {
		c.PacketBurst = 400
	}
	if c.LoginTimeout <= 0 {
		c.LoginTimeout = 5 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
}

type Server struct {
	cfg   Config
	world World
	log   *log.Logger

	nextID atomic.Uint32

	mu       deadlock.RWMutex
	sessions map[world.ConnID]*session
}

// NewServer returns a server with an empty session table. The table is the
// protocol.Sessions a dispatcher needs, so the usual order is NewServer,
// protocol.NewDispatcher(srv), world.New, then Serve.
func NewServer(cfg Config, logger *log.Logger) *Server {
	cfg.applyDefaults()
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Server{cfg: cfg, log: logger, sessions: map[world.ConnID]*session{}}
}

func (s *Server) Lookup(id world.ConnID) (protocol.Sink, bool) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return sess, true
}

func (s *Server) Online() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Serve accepts connections until ctx is done, then kicks every session and
// waits for the connection goroutines to exit.
func (s *Server) Serve(ctx context.Context, ln net.Listener, w World) error {
	s.world = w
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	swg := sizedwaitgroup.New(s.cfg.MaxConns)
	var err error
	for {
		if e := swg.AddWithContext(ctx); e != nil {
			break
		}
		raw, e := ln.Accept()
		if e != nil {
			swg.Done()
			if ctx.Err() == nil {
				err = e
			}
			break
		}
		go func() {
			defer swg.Done()
			s.handle(ctx, raw)
		}()
	}

	s.mu.RLock()
	for _, sess := range s.sessions {
		sess.Kick(protocol.ReasonServerClosed)
	}
	s.mu.RUnlock()
	swg.Wait()
	return err
}

func (s *Server) handle(ctx context.Context, raw net.Conn) {
	defer raw.Close()
	conn := mcnet.WrapConn(raw)
	_ = raw.SetReadDeadline(time.Now().Add(s.cfg.LoginTimeout))

	var p pk.Packet
	if err := conn.ReadPacket(&p); err != nil {
		return
	}
	hs, err := protocol.ReadHandshake(p)
	if err != nil {
		s.log.Printf("[mc] %s: %v", raw.RemoteAddr(), err)
		return
	}
	switch hs.Next {
	case protocol.StateStatus:
		s.status(conn)
	case protocol.StateLogin:
		s.login(ctx, raw, conn)
	}
}

func (s *Server) status(conn *mcnet.Conn) {
	var p pk.Packet
	if err := conn.ReadPacket(&p); err != nil || p.ID != protocol.StatusRequest {
		return
	}
	m := s.world.Metrics()
	resp, err := protocol.MarshalStatus(protocol.NewStatus(s.cfg.Motd, m.Players, m.MaxPlayers))
	if err != nil {
		return
	}
	if err := conn.WritePacket(resp); err != nil {
		return
	}
	if err := conn.ReadPacket(&p); err != nil {
		return
	}
	if v, err := protocol.ReadPing(p); err == nil {
		_ = conn.WritePacket(protocol.MarshalPong(v))
	}
}

func (s *Server) login(ctx context.Context, raw net.Conn, conn *mcnet.Conn) {
	var p pk.Packet
	if err := conn.ReadPacket(&p); err != nil {
		return
	}
	name, err := protocol.ReadLoginStart(p)
	if err != nil {
		reason := protocol.ReasonBadPacket
		if errors.Is(err, protocol.ErrBadName) {
			reason = protocol.ReasonBadName
		}
		_ = conn.WritePacket(protocol.MarshalLoginDisconnect(reason))
		return
	}
	id := protocol.OfflineUUID(name)

	// The session must be in the table before the world applies the join:
	// the first delta is delivered in the same tick.
	sess := newSession(world.ConnID(s.nextID.Add(1)), name, raw, conn, s.cfg.OutboxSize)
	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()
	defer s.drop(sess)

	resp, err := s.join(ctx, world.JoinRequest{Name: name, UUID: id, Conn: sess.id})
	if err != nil {
		s.log.Printf("[mc] login %s refused: %v", name, err)
		_ = conn.WritePacket(protocol.MarshalLoginDisconnect(refusal(err)))
		return
	}
	if err := conn.WritePacket(protocol.MarshalLoginSuccess(id, name)); err != nil {
		_ = s.world.Submit(world.Intent{Kind: world.IntentLeave, Player: resp.Handle})
		return
	}
	s.log.Printf("[mc] %s logged in from %s (conn %d)", name, raw.RemoteAddr(), sess.id)

	written := make(chan struct{})
	go func() {
		defer close(written)
		sess.writeLoop(s.cfg.WriteTimeout)
	}()
	s.readLoop(sess, protocol.NewPlayDecoder(resp.Handle, resp.Spawn))

	sess.Kick("")
	<-written
	if err := s.world.Submit(world.Intent{Kind: world.IntentLeave, Player: resp.Handle}); err != nil {
		// The world notices on its next delivery to a missing session.
		s.log.Printf("[mc] leave for %s not queued: %v", name, err)
	}
}

func (s *Server) join(ctx context.Context, req world.JoinRequest) (world.JoinResponse, error) {
	req.Resp = make(chan world.JoinResponse, 1)
	if err := s.world.Join(req); err != nil {
		return world.JoinResponse{}, err
	}
	timer := time.NewTimer(s.cfg.LoginTimeout)
	defer timer.Stop()
	select {
	case resp := <-req.Resp:
		return resp, resp.Err
	case <-timer.C:
		return world.JoinResponse{}, errJoinTimeout
	case <-ctx.Done():
		return world.JoinResponse{}, world.ErrStopped
	}
}

var errJoinTimeout = errors.New("mc: join not answered")

func refusal(err error) string {
	switch {
	case errors.Is(err, world.ErrServerFull):
		return protocol.ReasonServerFull
	case errors.Is(err, errJoinTimeout), errors.Is(err, world.ErrInboxFull):
		return protocol.ReasonJoinTimeout
	case errors.Is(err, world.ErrStopped):
		return protocol.ReasonServerClosed
	}
	return fmt.Sprintf("Join refused: %v", err)
}

func (s *Server) readLoop(sess *session, dec *protocol.PlayDecoder) {
	limiter := rate.NewLimiter(rate.Limit(s.cfg.PacketsPerSecond), s.cfg.PacketBurst)
	var p pk.Packet
	for {
		select {
		case <-sess.done():
			return
		default:
		}
		_ = sess.raw.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		if err := sess.conn.ReadPacket(&p); err != nil {
			return
		}
		if !limiter.Allow() {
			s.log.Printf("[mc] %s rate limited", sess.name)
			sess.Kick(protocol.ReasonRateLimited)
			return
		}
		in, err := dec.Decode(p)
		switch {
		case errors.Is(err, protocol.ErrUnknownIntent):
			continue
		case err != nil:
			s.log.Printf("[mc] %s: %v", sess.name, err)
			sess.Kick(protocol.ReasonBadPacket)
			return
		}
		if err := s.world.Submit(in); err != nil {
			if errors.Is(err, world.ErrStopped) {
				return
			}
			// Inbox full: drop, clients resend pose every tick.
		}
	}
}

func (s *Server) drop(sess *session) {
	s.mu.Lock()
	if s.sessions[sess.id] == sess {
		delete(s.sessions, sess.id)
	}
	s.mu.Unlock()
}
