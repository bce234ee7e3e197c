package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"golemcraft.ai/internal/protocol"
)

// A demo client: builds a small pickup site next to the origin, spawns a
// hauler and polls stats until interrupted.
func main() {
	var (
		url   = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name  = flag.String("name", "bot", "client name")
		x     = flag.Int("x", 2, "site x")
		z     = flag.Int("z", 2, "site z")
		watch = flag.Duration("watch", 10*time.Second, "how long to poll stats (0 = until interrupted)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ClientName:      *name,
	}); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}
	var welcome protocol.WelcomeMsg
	if err := conn.ReadJSON(&welcome); err != nil {
		logger.Fatalf("read WELCOME: %v", err)
	}
	if welcome.Type != protocol.TypeWelcome {
		logger.Fatalf("expected WELCOME, got %s", welcome.Type)
	}
	logger.Printf("WELCOME client_id=%s world=%s tick=%d seals=%v", welcome.ClientID, welcome.WorldID, welcome.Tick, welcome.SealTypes)

	ground := [3]int{*x, 0, *z}
	above := [3]int{*x, 1, *z}
	script := []any{
		protocol.SetBlockMsg{Type: protocol.TypeSetBlock, Pos: ground, Block: "STONE"},
		protocol.PlaceSealMsg{Type: protocol.TypePlaceSeal, Pos: ground, Face: "UP", SealType: "PICKUP", Priority: 2},
		protocol.SpawnItemMsg{Type: protocol.TypeSpawnItem, Pos: above, Item: protocol.StackSpec{Item: "COAL", Count: 8}},
		protocol.SpawnGolemMsg{Type: protocol.TypeSpawnGolem, Name: *name + "-hauler", Pos: [3]int{0, 1, 0}, Traits: []string{"HAULER"}},
	}
	for i, m := range script {
		id := fmt.Sprintf("r%d", i+1)
		if err := send(conn, m, id); err != nil {
			logger.Fatalf("send %s: %v", id, err)
		}
		reply, err := readReply(conn)
		if err != nil {
			logger.Fatalf("read %s: %v", id, err)
		}
		logger.Printf("%s -> %s", id, reply)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	var deadline <-chan time.Time
	if *watch > 0 {
		deadline = time.After(*watch)
	}

	n := 0
	for {
		select {
		case <-stop:
			return
		case <-deadline:
			return
		case <-ticker.C:
		}
		n++
		if err := send(conn, protocol.QueryMsg{Type: protocol.TypeQuery, What: protocol.QueryStats}, fmt.Sprintf("q%d", n)); err != nil {
			logger.Printf("send QUERY: %v", err)
			return
		}
		reply, err := readReply(conn)
		if err != nil {
			logger.Printf("read: %v", err)
			return
		}
		logger.Printf("stats %s", reply)
	}
}

// send stamps the protocol version and request id onto m.
func send(conn *websocket.Conn, m any, requestID string) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	var obj map[string]any
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	obj["protocol_version"] = protocol.Version
	obj["request_id"] = requestID
	return conn.WriteJSON(obj)
}

func readReply(conn *websocket.Conn) (string, error) {
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", err
	}
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return "", err
	}
	switch base.Type {
	case protocol.TypeAck:
		var a protocol.AckMsg
		if err := json.Unmarshal(msg, &a); err != nil {
			return "", err
		}
		return fmt.Sprintf("ACK tick=%d id=%s", a.Tick, a.ID), nil
	case protocol.TypeError:
		var e protocol.ErrorMsg
		if err := json.Unmarshal(msg, &e); err != nil {
			return "", err
		}
		return fmt.Sprintf("ERROR %s: %s", e.Code, e.Message), nil
	default:
		return string(msg), nil
	}
}
