package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"golemcraft.ai/internal/protocol"
	"golemcraft.ai/internal/sim/catalogs"
	"golemcraft.ai/internal/sim/tuning"
	"golemcraft.ai/internal/sim/world"
)

func startWorld(t *testing.T) *world.World {
	t.Helper()
	tun := tuning.Defaults()
	cfg := world.ConfigFromTuning("ws-test", tun)
	cfg.TickRateHz = 100
	w, err := world.New(cfg, catalogs.Default(), tun, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return w
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, v any, out any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(v))
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, b, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, out), string(b))
}

func TestServer_HandshakeAndCommands(t *testing.T) {
	w := startWorld(t)
	s, err := NewServer(w, nil)
	require.NoError(t, err)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dial(t, srv)

	var welcome protocol.WelcomeMsg
	roundTrip(t, conn, protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, ClientName: "tester"}, &welcome)
	require.Equal(t, protocol.TypeWelcome, welcome.Type)
	require.NotEmpty(t, welcome.ClientID)
	require.Equal(t, "ws-test", welcome.WorldID)
	require.Contains(t, welcome.SealTypes, "PICKUP")
	require.NotEmpty(t, welcome.Catalogs.BlockPalette.Digest)

	var ack protocol.AckMsg
	roundTrip(t, conn, protocol.SetBlockMsg{Type: protocol.TypeSetBlock, RequestID: "b1", Pos: [3]int{2, 0, 2}, Block: "STONE"}, &ack)
	require.Equal(t, protocol.TypeAck, ack.Type)
	require.Equal(t, "b1", ack.RequestID)

	place := protocol.PlaceSealMsg{Type: protocol.TypePlaceSeal, RequestID: "p1", Pos: [3]int{2, 0, 2}, Face: "UP", SealType: "PICKUP"}
	roundTrip(t, conn, place, &ack)
	require.Equal(t, protocol.TypeAck, ack.Type)
	require.Equal(t, "2,0,2/UP", ack.ID)

	var perr protocol.ErrorMsg
	place.RequestID = "p2"
	roundTrip(t, conn, place, &perr)
	require.Equal(t, protocol.TypeError, perr.Type)
	require.Equal(t, "p2", perr.RequestID)
	require.Equal(t, protocol.ErrConflict, perr.Code)

	roundTrip(t, conn, protocol.PlaceSealMsg{Type: protocol.TypePlaceSeal, Pos: [3]int{9, 9, 9}, Face: "UP", SealType: "NOT_A_SEAL"}, &perr)
	require.Equal(t, protocol.ErrUnknownType, perr.Code)

	roundTrip(t, conn, protocol.RemoveGolemMsg{Type: protocol.TypeRemoveGolem, GolemID: "nobody"}, &perr)
	require.Equal(t, protocol.ErrNotFound, perr.Code)

	roundTrip(t, conn, map[string]any{"type": "PLACE_SEAL", "pos": []int{1}, "face": "UP", "seal_type": "PICKUP"}, &perr)
	require.Equal(t, protocol.ErrProtoBadRequest, perr.Code)

	var res protocol.QueryResultMsg
	roundTrip(t, conn, protocol.QueryMsg{Type: protocol.TypeQuery, RequestID: "q1", What: protocol.QuerySeals}, &res)
	require.Equal(t, protocol.TypeResult, res.Type)
	require.Len(t, res.Seals, 1)
	require.Equal(t, welcome.ClientID, res.Seals[0].Owner)
	require.Equal(t, "PICKUP", res.Seals[0].Type)
}

func TestServer_LockedSealRejectsOtherClients(t *testing.T) {
	w := startWorld(t)
	s, err := NewServer(w, nil)
	require.NoError(t, err)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	owner := dial(t, srv)
	var welcome protocol.WelcomeMsg
	roundTrip(t, owner, protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, ClientName: "owner", ClientID: "owner-1"}, &welcome)
	require.Equal(t, "owner-1", welcome.ClientID)

	var ack protocol.AckMsg
	roundTrip(t, owner, protocol.SetBlockMsg{Type: protocol.TypeSetBlock, Pos: [3]int{0, 0, 0}, Block: "STONE"}, &ack)
	roundTrip(t, owner, protocol.PlaceSealMsg{Type: protocol.TypePlaceSeal, Pos: [3]int{0, 0, 0}, Face: "UP", SealType: "LUMBER"}, &ack)
	require.Equal(t, protocol.TypeAck, ack.Type)
	locked := true
	roundTrip(t, owner, protocol.ConfigureSealMsg{Type: protocol.TypeConfigureSeal, Pos: [3]int{0, 0, 0}, Face: "UP", Locked: &locked}, &ack)
	require.Equal(t, protocol.TypeAck, ack.Type)

	other := dial(t, srv)
	roundTrip(t, other, protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, ClientName: "other"}, &welcome)
	var perr protocol.ErrorMsg
	roundTrip(t, other, protocol.RemoveSealMsg{Type: protocol.TypeRemoveSeal, Pos: [3]int{0, 0, 0}, Face: "UP"}, &perr)
	require.Equal(t, protocol.ErrNoPermission, perr.Code)
}

func TestServer_RejectsMissingHello(t *testing.T) {
	w := startWorld(t)
	s, err := NewServer(w, nil)
	require.NoError(t, err)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dial(t, srv)
	require.NoError(t, conn.WriteJSON(protocol.QueryMsg{Type: protocol.TypeQuery, What: protocol.QueryStats}))
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err = conn.ReadMessage()
	var ce *websocket.CloseError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, websocket.ClosePolicyViolation, ce.Code)
}
