package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"seedsift.ai/internal/protocol"
)

// Session describes the search observers are attached to.
type Session struct {
	SearchID  string
	WorldType string
	Query     string
}

type client struct {
	id  string
	out chan []byte

	mu  sync.Mutex
	sub protocol.SubscribeMsg
}

func (c *client) subscription() protocol.SubscribeMsg {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sub
}

func (c *client) setSubscription(sub protocol.SubscribeMsg) {
	c.mu.Lock()
	c.sub = sub
	c.mu.Unlock()
}

// Server streams HIT and PROGRESS messages to loopback websocket clients.
// Publishing never blocks: a client whose queue is full misses messages.
type Server struct {
	log *log.Logger

	upgrader   websocket.Upgrader
	nextID     atomic.Uint64
	queueSize  int
	maxClients int
	dropped    atomic.Uint64

	mu      sync.Mutex
	session Session
	clients map[string]*client
}

func NewServer(session Session, logger *log.Logger) *Server {
	return &Server{
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // loopback only anyway
		},
		queueSize:  256,
		maxClients: 32,
		session:    session,
		clients:    map[string]*client{},
	}
}

func (s *Server) logf(format string, args ...any) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}

// SetSession changes what new observers are welcomed with.
func (s *Server) SetSession(session Session) {
	s.mu.Lock()
	s.session = session
	s.mu.Unlock()
}

func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Dropped counts messages discarded because a client queue was full.
func (s *Server) Dropped() uint64 { return s.dropped.Load() }

func (s *Server) PublishHit(hit protocol.HitMsg) {
	b, err := json.Marshal(hit)
	if err != nil {
		s.logf("observer: encode hit: %v", err)
		return
	}
	s.broadcast(b, func(sub protocol.SubscribeMsg) bool { return sub.WantsHit(hit) })
}

func (s *Server) PublishProgress(p protocol.ProgressMsg) {
	b, err := json.Marshal(p)
	if err != nil {
		s.logf("observer: encode progress: %v", err)
		return
	}
	s.broadcast(b, func(sub protocol.SubscribeMsg) bool { return sub.Progress || p.Done })
}

func (s *Server) broadcast(b []byte, want func(protocol.SubscribeMsg) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.clients {
		if !want(c.subscription()) {
			continue
		}
		select {
		case c.out <- b:
		default:
			s.dropped.Add(1)
		}
	}
}

func (s *Server) join(sub protocol.SubscribeMsg) (*client, Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.clients) >= s.maxClients {
		return nil, Session{}, false
	}
	c := &client{
		id:  fmt.Sprintf("O%d", s.nextID.Add(1)),
		out: make(chan []byte, s.queueSize),
		sub: sub,
	}
	s.clients[c.id] = c
	return c, s.session, true
}

func (s *Server) leave(id string) {
	s.mu.Lock()
	delete(s.clients, id)
	s.mu.Unlock()
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		sub, code, reason := decodeSubscribe(msg)
		if code != "" {
			refuse(conn, code, reason, websocket.ClosePolicyViolation)
			return
		}

		c, session, ok := s.join(sub)
		if !ok {
			refuse(conn, protocol.ErrSearchBusy, "too many observers", websocket.CloseTryAgainLater)
			return
		}
		defer s.leave(c.id)

		welcome := protocol.WelcomeMsg{
			Type:            protocol.TypeWelcome,
			ProtocolVersion: protocol.Version,
			SessionID:       c.id,
			SearchID:        session.SearchID,
			WorldType:       session.WorldType,
			Query:           session.Query,
		}
		if err := writeJSON(conn, welcome); err != nil {
			return
		}
		s.logf("observer %s joined from %s", c.id, r.RemoteAddr)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		writeDone := make(chan struct{})
		go func() {
			defer close(writeDone)
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-c.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop: SUBSCRIBE updates only.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			sub, code, reason := decodeSubscribe(msg)
			if code != "" {
				if b, err := json.Marshal(protocol.NewError(code, reason)); err == nil {
					select {
					case c.out <- b:
					default:
						s.dropped.Add(1)
					}
				}
				continue
			}
			c.setSubscription(sub)
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeDone:
		case <-time.After(500 * time.Millisecond):
		}
		s.logf("observer %s left", c.id)
	}
}

// decodeSubscribe returns a non-empty error code when msg is not a valid
// SUBSCRIBE for this protocol version.
func decodeSubscribe(msg []byte) (protocol.SubscribeMsg, string, string) {
	var sub protocol.SubscribeMsg
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return sub, protocol.ErrProtoBadRequest, "invalid json"
	}
	if base.Type != protocol.TypeSubscribe {
		return sub, protocol.ErrProtoUnsupported, "expected SUBSCRIBE, got " + base.Type
	}
	if base.ProtocolVersion != protocol.Version {
		return sub, protocol.ErrProtoVersion, "protocol_version must be " + protocol.Version
	}
	if err := protocol.ValidateJSON("subscribe.schema.json", msg); err != nil {
		return sub, protocol.ErrProtoBadRequest, err.Error()
	}
	if err := json.Unmarshal(msg, &sub); err != nil {
		return sub, protocol.ErrProtoBadRequest, err.Error()
	}
	return sub, "", ""
}

func refuse(conn *websocket.Conn, code, reason string, closeCode int) {
	_ = writeJSON(conn, protocol.NewError(code, reason))
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(closeCode, code), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
