package gqlws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"bbdist/internal/events"
	"bbdist/internal/token"
)

// Close codes used by graphql-transport-ws.
const (
	closeForbidden         = 4403
	closeInitTimeout       = 4408
	closeSubscriberExists  = 4409
	closeTooManyInitialise = 4429
	closeBadRequest        = 4400
)

type Authenticator interface {
	Parse(raw string) (*token.Claims, error)
}

type Source interface {
	Subscribe(topic string, buffer int) (<-chan events.Event, func())
}

// Handler serves subscriptions whose root field names an event topic.
type Handler struct {
	auth   Authenticator
	source Source
	topics map[string]bool

	upgrader    websocket.Upgrader
	InitTimeout time.Duration
	KeepAlive   time.Duration
	Buffer      int
}

func NewHandler(auth Authenticator, source Source, topics []string) *Handler {
	h := &Handler{
		auth:        auth,
		source:      source,
		topics:      make(map[string]bool, len(topics)),
		InitTimeout: 10 * time.Second,
		KeepAlive:   15 * time.Second,
		Buffer:      16,
	}
	for _, t := range topics {
		h.topics[t] = true
	}
	h.upgrader = websocket.Upgrader{
		Subprotocols: []string{ProtocolTransport, ProtocolLegacy},
		CheckOrigin:  func(r *http.Request) bool { return true },
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var claims *token.Claims
	if header := r.Header.Get("Authorization"); header != "" {
		raw, ok := token.FromBearer(header)
		if !ok {
			http.Error(w, "invalid token format", http.StatusUnauthorized)
			return
		}
		c, err := h.auth.Parse(raw)
		if err != nil {
			http.Error(w, "invalid or expired token", http.StatusUnauthorized)
			return
		}
		claims = c
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}

	protocol := conn.Subprotocol()
	if protocol == "" {
		protocol = ProtocolLegacy
	}
	s := &session{
		h:        h,
		conn:     conn,
		protocol: protocol,
		claims:   claims,
		subs:     make(map[string]func()),
		log:      slog.With("remote", r.RemoteAddr, "protocol", protocol),
	}
	s.run(r.Context())
}

type session struct {
	h        *Handler
	conn     *websocket.Conn
	protocol string
	claims   *token.Claims
	log      *slog.Logger

	wmu  sync.Mutex
	smu  sync.Mutex
	subs map[string]func()
}

func (s *session) run(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	g, ctx := errgroup.WithContext(ctx)
	defer func() {
		cancel()
		s.stopAll()
		_ = g.Wait()
		_ = s.conn.Close()
	}()

	if !s.handshake() {
		return
	}
	s.log.Info("subscription client connected", "sub", s.claims.Subject)

	if s.protocol == ProtocolLegacy && s.h.KeepAlive > 0 {
		g.Go(func() error {
			t := time.NewTicker(s.h.KeepAlive)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-t.C:
					if err := s.send("", TypeKeepAlive, nil); err != nil {
						return nil
					}
				}
			}
		})
	}

	for {
		msg, err := s.read()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("read ended", "error", err)
			}
			return
		}

		switch msg.Type {
		case TypeStart, TypeSubscribe:
			if !s.start(g, msg) {
				return
			}
		case TypeStop, TypeComplete:
			s.stop(msg.ID)
		case TypePing:
			_ = s.send("", TypePong, nil)
		case TypePong:
		case TypeConnectionTerminate:
			return
		case TypeConnectionInit:
			s.closeWith(closeTooManyInitialise, "Too many initialisation requests")
			return
		default:
			s.log.Warn("unexpected frame", "type", msg.Type)
			if s.protocol == ProtocolTransport {
				s.closeWith(closeBadRequest, "Invalid message received")
				return
			}
		}
	}
}

// handshake waits for connection_init and authenticates the client.
func (s *session) handshake() bool {
	_ = s.conn.SetReadDeadline(time.Now().Add(s.h.InitTimeout))
	msg, err := s.read()
	_ = s.conn.SetReadDeadline(time.Time{})
	if err != nil {
		s.closeWith(closeInitTimeout, "Connection initialisation timeout")
		return false
	}
	if msg.Type != TypeConnectionInit {
		s.reject("expected connection_init, got " + msg.Type)
		return false
	}

	if raw, ok := initToken(msg.Payload); ok {
		claims, err := s.h.auth.Parse(raw)
		if err != nil {
			s.reject("invalid or expired token")
			return false
		}
		s.claims = claims
	}
	if s.claims == nil {
		s.reject("unauthorized")
		return false
	}
	return s.send("", TypeConnectionAck, nil) == nil
}

func (s *session) reject(reason string) {
	s.log.Warn("connection rejected", "reason", reason)
	if s.protocol == ProtocolTransport {
		s.closeWith(closeForbidden, "Forbidden")
		return
	}
	_ = s.send("", TypeConnectionError, map[string]string{"message": reason})
	s.closeWith(websocket.CloseNormalClosure, "")
}

func initToken(payload json.RawMessage) (string, bool) {
	if len(payload) == 0 {
		return "", false
	}
	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		return "", false
	}
	for k, v := range fields {
		if !strings.EqualFold(k, "authorization") {
			continue
		}
		header, _ := v.(string)
		if raw, ok := token.FromBearer(header); ok {
			return raw, true
		}
		return header, header != ""
	}
	return "", false
}

func (s *session) start(g *errgroup.Group, msg Message) bool {
	if msg.ID == "" {
		s.subError("", "subscription id required")
		return true
	}
	var req Request
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		s.subError(msg.ID, "malformed payload")
		return true
	}
	field := RootField(req.Query)
	if !s.h.topics[field] {
		s.subError(msg.ID, fmt.Sprintf("unknown subscription field %q", field))
		return true
	}

	s.smu.Lock()
	if _, dup := s.subs[msg.ID]; dup {
		s.smu.Unlock()
		if s.protocol == ProtocolTransport {
			s.closeWith(closeSubscriberExists, "Subscriber for "+msg.ID+" already exists")
			return false
		}
		s.subError(msg.ID, "subscription id already in use")
		return true
	}
	ch, cancel := s.h.source.Subscribe(field, s.h.Buffer)
	s.subs[msg.ID] = cancel
	s.smu.Unlock()

	s.log.Debug("subscription started", "id", msg.ID, "field", field)
	id := msg.ID
	g.Go(func() error {
		for ev := range ch {
			payload := map[string]any{"data": map[string]any{field: ev.Payload}}
			if err := s.send(id, dataType(s.protocol), payload); err != nil {
				s.log.Debug("dropping subscription after write failure", "id", id, "error", err)
				s.stop(id)
			}
		}
		return nil
	})
	return true
}

func (s *session) subError(id, message string) {
	var payload any = map[string]string{"message": message}
	if s.protocol == ProtocolTransport {
		payload = []GraphQLError{{Message: message}}
	}
	_ = s.send(id, TypeError, payload)
}

func (s *session) stop(id string) {
	s.smu.Lock()
	cancel, ok := s.subs[id]
	delete(s.subs, id)
	s.smu.Unlock()
	if !ok {
		return
	}
	cancel()
	if s.protocol == ProtocolLegacy {
		_ = s.send(id, TypeComplete, nil)
	}
}

func (s *session) stopAll() {
	s.smu.Lock()
	subs := s.subs
	s.subs = make(map[string]func())
	s.smu.Unlock()
	for _, cancel := range subs {
		cancel()
	}
}

func (s *session) send(id, typ string, payload any) error {
	msg, err := newMessage(id, typ, payload)
	if err != nil {
		return err
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return s.conn.WriteJSON(msg)
}

func (s *session) read() (Message, error) {
	var msg Message
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		return msg, err
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, fmt.Errorf("malformed frame: %w", err)
	}
	return msg, nil
}

func (s *session) closeWith(code int, reason string) {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
}
