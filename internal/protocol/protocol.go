package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeAck     = "ACK"
	TypeError   = "ERROR"
	TypeResult  = "QUERY_RESULT"

	TypePlaceSeal     = "PLACE_SEAL"
	TypeRemoveSeal    = "REMOVE_SEAL"
	TypeConfigureSeal = "CONFIGURE_SEAL"
	TypeSpawnGolem    = "SPAWN_GOLEM"
	TypeRemoveGolem   = "REMOVE_GOLEM"
	TypeSetBlock      = "SET_BLOCK"
	TypeSpawnItem     = "SPAWN_ITEM"
	TypeSpawnCreature = "SPAWN_CREATURE"
	TypeStock         = "STOCK"
	TypeQuery         = "QUERY"
)

// Query subjects.
const (
	QuerySeals    = "SEALS"
	QueryGolems   = "GOLEMS"
	QueryTasks    = "TASKS"
	QueryRequests = "REQUESTS"
	QueryStats    = "STATS"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
	RequestID       string `json:"request_id,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
