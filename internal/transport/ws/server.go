package ws

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"golemcraft.ai/internal/protocol"
	"golemcraft.ai/internal/sim/world"
)

const (
	outQueue       = 64
	commandTimeout = 10 * time.Second
)

// Server speaks the control protocol: HELLO/WELCOME, then seal and golem
// commands answered with ACK or ERROR, and QUERY answered with QUERY_RESULT.
// Commands from one connection are applied in the order they were sent.
type Server struct {
	world     *world.World
	log       *log.Logger
	validator *protocol.Validator
	digests   protocol.CatalogDigests

	upgrader websocket.Upgrader
}

func NewServer(w *world.World, logger *log.Logger) (*Server, error) {
	v, err := protocol.NewValidator()
	if err != nil {
		return nil, err
	}
	cats := w.Catalogs()
	tb, _ := json.Marshal(w.Tuning())
	sum := sha256.Sum256(tb)
	s := &Server{
		world:     w,
		log:       logger,
		validator: v,
		digests: protocol.CatalogDigests{
			BlockPalette:    protocol.DigestRef{Digest: cats.Blocks.PaletteDigest, Count: len(cats.Blocks.Palette)},
			ItemPalette:     protocol.DigestRef{Digest: cats.Items.PaletteDigest, Count: len(cats.Items.Palette)},
			CreaturesDigest: cats.Creatures.Digest,
			TuningDigest:    hex.EncodeToString(sum[:]),
		},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	return s, nil
}

func (s *Server) logf(format string, args ...any) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		clientID := s.handshake(conn)
		if clientID == "" {
			return
		}
		s.logf("client %s connected from %s", clientID, r.RemoteAddr)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		out := make(chan []byte, outQueue)

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		send := func(v any) {
			b, err := json.Marshal(v)
			if err != nil {
				return
			}
			select {
			case out <- b:
			case <-ctx.Done():
			}
		}

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			if reply := s.dispatch(ctx, clientID, msg); reply != nil {
				send(reply)
			}
			if ctx.Err() != nil {
				break
			}
		}
		s.logf("client %s disconnected", clientID)
	}
}

// dispatch handles one inbound frame and returns the reply to send.
func (s *Server) dispatch(ctx context.Context, clientID string, msg []byte) any {
	base, err := s.validator.Validate(msg)
	if err != nil {
		return errorMsg(base.RequestID, protocol.ErrProtoBadRequest, err.Error())
	}
	if base.ProtocolVersion != "" && base.ProtocolVersion != protocol.Version {
		return errorMsg(base.RequestID, protocol.ErrProtoVersion, "unsupported protocol_version "+base.ProtocolVersion)
	}

	cctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	switch base.Type {
	case protocol.TypeHello:
		return errorMsg(base.RequestID, protocol.ErrBadRequest, "already greeted")
	case protocol.TypeQuery:
		var q protocol.QueryMsg
		if err := json.Unmarshal(msg, &q); err != nil {
			return errorMsg(base.RequestID, protocol.ErrProtoBadRequest, err.Error())
		}
		res, err := answerQuery(cctx, s.world, q)
		if err != nil {
			return errorMsg(base.RequestID, codeFor(err), err.Error())
		}
		return res
	}

	cmd, err := decodeCommand(clientID, base.Type, msg)
	if err != nil {
		return errorMsg(base.RequestID, protocol.ErrBadRequest, err.Error())
	}
	res, err := s.world.Submit(cctx, cmd)
	if err == nil {
		err = res.Err
	}
	if err != nil {
		return errorMsg(base.RequestID, codeFor(err), err.Error())
	}
	return protocol.AckMsg{
		Type:            protocol.TypeAck,
		ProtocolVersion: protocol.Version,
		RequestID:       base.RequestID,
		Tick:            res.Tick,
		ID:              res.ID,
	}
}

func errorMsg(requestID, code, message string) protocol.ErrorMsg {
	return protocol.ErrorMsg{
		Type:            protocol.TypeError,
		ProtocolVersion: protocol.Version,
		RequestID:       requestID,
		Code:            code,
		Message:         message,
	}
}

// handshake reads HELLO and answers WELCOME. It returns the client id, or ""
// when the connection should be closed.
func (s *Server) handshake(conn *websocket.Conn) string {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return ""
	}

	base, err := s.validator.Validate(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return ""
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return ""
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return ""
	}

	clientID := hello.ClientID
	if clientID == "" {
		clientID = uuid.NewString()
	}
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		ClientID:        clientID,
		WorldID:         s.world.ID(),
		Tick:            s.world.CurrentTick(),
		TickRateHz:      s.world.TickRateHz(),
		SealTypes:       s.world.SealTypes(),
		Catalogs:        s.digests,
	}
	if err := writeJSON(conn, welcome); err != nil {
		return ""
	}
	return clientID
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	}
	return nil
}
