package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/victornm/quizroom/internal/domain"
	"github.com/victornm/quizroom/internal/errors"
	"github.com/victornm/quizroom/internal/event"
	"github.com/victornm/quizroom/internal/metrics"
	"github.com/victornm/quizroom/internal/session"
)

const (
	defaultSendQueue    = 256
	defaultPingInterval = 54 * time.Second
	defaultReadTimeout  = 60 * time.Second
	defaultWriteTimeout = 10 * time.Second
	defaultReadLimit    = 4096
)

type Authenticator interface {
	ResolveUser(ctx context.Context, token string) (*domain.User, error)
}

type RoomGetter interface {
	GetRoom(ctx context.Context, id string) (*domain.Room, error)
}

type Membership interface {
	Join(roomID, userID string) int
	Leave(roomID, userID string) int
}

type Config struct {
	Auth       Authenticator
	Rooms      RoomGetter
	Membership Membership
	Sessions   *session.Registry
	EventBus   *event.Bus

	SendQueue    int
	PingInterval time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	ReadLimit    int64

	// CheckOrigin is passed to the upgrader. Nil accepts every origin.
	CheckOrigin func(r *http.Request) bool
}

// Gateway is the realtime entry point. It authenticates websocket connections,
// routes their frames to the room and session services and fans the results
// out to the room's subscribers.
type Gateway struct {
	auth       Authenticator
	rooms      RoomGetter
	presence   *presence
	sessions   *session.Registry
	eb         *event.Bus

	hub      *Hub
	upgrader websocket.Upgrader
	handlers map[string]handlerFunc
	seq      atomic.Uint64

	queue int
	t     timeouts
}

type handlerFunc func(ctx context.Context, c *client, data json.RawMessage) error

func New(c Config) *Gateway {
	if c.SendQueue <= 0 {
		c.SendQueue = defaultSendQueue
	}
	if c.PingInterval <= 0 {
		c.PingInterval = defaultPingInterval
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = defaultReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = defaultReadLimit
	}
	if c.CheckOrigin == nil {
		c.CheckOrigin = func(*http.Request) bool { return true }
	}

	g := &Gateway{
		auth:       c.Auth,
		rooms:      c.Rooms,
		presence:   newPresence(c.Membership),
		sessions:   c.Sessions,
		eb:         c.EventBus,
		hub:        NewHub(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     c.CheckOrigin,
		},
		queue: c.SendQueue,
		t: timeouts{
			ping:      c.PingInterval,
			read:      c.ReadTimeout,
			write:     c.WriteTimeout,
			readLimit: c.ReadLimit,
		},
	}

	g.handlers = map[string]handlerFunc{
		EventJoinRoom:       g.joinRoom,
		EventLeaveRoom:      g.leaveRoom,
		EventStartQuiz:      g.startQuiz,
		EventNextQuestion:   g.nextQuestion,
		EventSubmitAnswer:   g.submitAnswer,
		EventGetLeaderboard: g.getLeaderboard,
	}

	return g
}

// Hub exposes the subscriber registry, mostly for inspection.
func (g *Gateway) Hub() *Hub { return g.hub }

// ServeHTTP authenticates the request and upgrades it. The token comes from the
// "token" query parameter or a bearer Authorization header.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	u, err := g.auth.ResolveUser(ctx, token(r))
	if err != nil {
		e := errors.Convert(err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(e.HTTPStatusCode())
		_ = json.NewEncoder(w).Encode(map[string]string{"code": e.Code.String(), "message": e.Message})
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already replied.
		slog.WarnContext(ctx, "gateway: upgrade failed", "user", u.ID, "error", err)
		return
	}

	c := newClient(g.seq.Add(1), conn, *u, g.queue)
	metrics.Connections.Inc()
	defer metrics.Connections.Dec()

	slog.InfoContext(ctx, "gateway: connected", "conn", c.id, "user", u.ID)

	go c.writePump(g.t)
	c.readPump(ctx, g.t, g.handle)

	g.disconnect(ctx, c)
	c.close()

	slog.InfoContext(ctx, "gateway: disconnected", "conn", c.id, "user", u.ID)
}

func token(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}

	h := r.Header.Get("Authorization")
	if t, ok := strings.CutPrefix(h, "Bearer "); ok {
		return strings.TrimSpace(t)
	}

	return ""
}

// handle runs one inbound frame. Failures are reported to the sender only.
func (g *Gateway) handle(ctx context.Context, c *client, msg []byte) {
	var f Frame
	if err := json.Unmarshal(msg, &f); err != nil {
		g.fail(ctx, c, "", errors.InvalidInput("malformed frame: %v", err))
		metrics.Frames.WithLabelValues("malformed", errors.CodeInvalidArgument.String()).Inc()
		return
	}

	h, ok := g.handlers[f.Event]
	if !ok {
		g.fail(ctx, c, f.Event, errors.InvalidInput("unknown event: %q", f.Event))
		metrics.Frames.WithLabelValues("unknown", errors.CodeInvalidArgument.String()).Inc()
		return
	}

	code := "ok"
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%v, stack: %s", r, debug.Stack())
			slog.ErrorContext(ctx, "gateway: handler panic", "event", f.Event, "error", err)
			g.fail(ctx, c, f.Event, errors.Internal(err))
			code = errors.CodeInternal.String()
		}

		metrics.Frames.WithLabelValues(f.Event, code).Inc()
	}()

	if err := h(ctx, c, f.Data); err != nil {
		g.fail(ctx, c, f.Event, err)
		code = errors.Convert(err).Code.String()
	}
}

func (g *Gateway) fail(ctx context.Context, c *client, ev string, err error) {
	e := errors.Convert(err)
	if e.Code == errors.CodeInternal {
		slog.ErrorContext(ctx, "gateway: handle event failed", "event", ev, "conn", c.id, "user", c.user.ID, "error", err)
	} else {
		slog.InfoContext(ctx, "gateway: event rejected", "event", ev, "conn", c.id, "user", c.user.ID, "error", err)
	}

	g.send(ctx, c, EventError, ErrorNotice{
		Event:   ev,
		Code:    e.Code.String(),
		Message: e.Message,
	})
}

func encode(ev string, data any) ([]byte, error) {
	b, err := json.Marshal(Notification{Event: ev, Data: data})
	if err != nil {
		return nil, fmt.Errorf("gateway: marshal %s: %w", ev, err)
	}

	return b, nil
}

// send queues a notification for one connection.
func (g *Gateway) send(ctx context.Context, c *client, ev string, data any) {
	b, err := encode(ev, data)
	if err != nil {
		slog.ErrorContext(ctx, "gateway: send failed", "event", ev, "error", err)
		return
	}

	c.enqueue(b)
}

// broadcast queues a notification for every subscriber of the room.
func (g *Gateway) broadcast(ctx context.Context, roomID, ev string, data any) {
	b, err := encode(ev, data)
	if err != nil {
		slog.ErrorContext(ctx, "gateway: broadcast failed", "event", ev, "room", roomID, "error", err)
		return
	}

	n := g.hub.Broadcast(roomID, b)
	slog.DebugContext(ctx, "gateway: broadcast", "event", ev, "room", roomID, "subscribers", n)
}

func (g *Gateway) publish(ctx context.Context, e event.Event) {
	if g.eb == nil {
		return
	}

	g.eb.Publish(ctx, e)
}
