package observer

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"golemcraft.ai/internal/observerproto"
	"golemcraft.ai/internal/sim/geom"
	"golemcraft.ai/internal/sim/world"
)

const (
	defaultRadius = 32
	maxRadius     = 256
)

// Server streams seal records and per-tick state to read-only observers.
type Server struct {
	world *world.World
	log   *log.Logger

	// AllowRemote lifts the loopback-only restriction (tests, trusted networks).
	AllowRemote bool

	upgrader websocket.Upgrader
}

func NewServer(w *world.World, logger *log.Logger) *Server {
	return &Server{
		world: w,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) allowed(r *http.Request) bool {
	return s.AllowRemote || IsLoopback(r.RemoteAddr)
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !s.allowed(r) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		resp := observerproto.BootstrapResponse{
			ProtocolVersion: observerproto.Version,
			WorldID:         s.world.ID(),
			Tick:            s.world.CurrentTick(),
			TickRateHz:      s.world.TickRateHz(),
			SealTypes:       s.world.SealTypes(),
			BlockPalette:    s.world.BlockPalette(),
		}

		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.allowed(r) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		sub, ok := decodeSubscribe(msg)
		if !ok {
			closeWith(conn, websocket.ClosePolicyViolation, "expected SUBSCRIBE")
			return
		}

		sess := &session{
			id:   "O-" + uuid.NewString(),
			conn: conn,
			tick: make(chan []byte, 8),
			data: make(chan []byte, 4096),
		}
		if !s.join(sess, sub) {
			closeWith(conn, websocket.CloseTryAgainLater, "server busy")
			return
		}
		defer s.leave(sess.id)

		ctx, cancel := context.WithCancel(r.Context())
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := sess.pump(ctx); err != nil && ctx.Err() == nil {
				s.log.Printf("observer %s: write: %v", sess.id, err)
			}
		}()

		s.readSubscriptions(sess)

		cancel()
		closeWith(conn, websocket.CloseNormalClosure, "bye")
		select {
		case <-done:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// session is one observer connection. The world loop owns the send side of
// tick and data and closes them on leave.
type session struct {
	id   string
	conn *websocket.Conn
	tick chan []byte
	data chan []byte
}

func (s *Server) join(sess *session, sub observerproto.SubscribeMsg) bool {
	req := world.ObserverJoinRequest{
		SessionID: sess.id,
		TickOut:   sess.tick,
		DataOut:   sess.data,
		Center:    geom.FromArray(sub.Center),
		Radius:    sub.Radius,
	}
	select {
	case s.world.ObserverJoin() <- req:
		return true
	case <-time.After(time.Second):
		return false
	}
}

func (s *Server) leave(id string) {
	select {
	case s.world.ObserverLeave() <- id:
	case <-time.After(time.Second):
	}
}

// readSubscriptions applies SUBSCRIBE updates until the connection drops.
// Updates are dropped when the world is busy; the client may resend.
func (s *Server) readSubscriptions(sess *session) {
	for {
		_ = sess.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		_, msg, err := sess.conn.ReadMessage()
		if err != nil {
			return
		}
		sub, ok := decodeSubscribe(msg)
		if !ok {
			continue
		}
		select {
		case s.world.ObserverSubscribe() <- world.ObserverSubscribeRequest{
			SessionID: sess.id,
			Center:    geom.FromArray(sub.Center),
			Radius:    sub.Radius,
		}:
		default:
		}
	}
}

// pump writes seal records and tick summaries until ctx ends or the world
// closes the session. Seal records go first so a TICK never precedes the
// records it refers to.
func (sess *session) pump(ctx context.Context) error {
	for {
		var b []byte
		var ok bool
		select {
		case <-ctx.Done():
			return nil
		case b, ok = <-sess.data:
		default:
			select {
			case <-ctx.Done():
				return nil
			case b, ok = <-sess.data:
			case b, ok = <-sess.tick:
			}
		}
		if !ok {
			return nil
		}
		_ = sess.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := sess.conn.WriteMessage(websocket.TextMessage, b); err != nil {
			return err
		}
	}
}

func closeWith(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(time.Second))
}

func decodeSubscribe(msg []byte) (observerproto.SubscribeMsg, bool) {
	var sub observerproto.SubscribeMsg
	if err := json.Unmarshal(msg, &sub); err != nil {
		return sub, false
	}
	if sub.Type != observerproto.TypeSubscribe || sub.ProtocolVersion != observerproto.Version {
		return sub, false
	}
	if sub.Radius <= 0 {
		sub.Radius = defaultRadius
	}
	sub.Radius = min(sub.Radius, maxRadius)
	return sub, true
}

// IsLoopback reports whether remoteAddr (host:port or bare host) is a loopback address.
func IsLoopback(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
