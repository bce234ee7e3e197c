// Package observerproto is the read-only replication protocol spoken on the
// observer websocket. It is versioned separately from the control protocol.
package observerproto

const Version = "1.0"

const (
	TypeSubscribe   = "SUBSCRIBE"
	TypeSeal        = "SEAL"
	TypeSealRemoved = "SEAL_REMOVED"
	TypeTick        = "TICK"
)

// Client -> Server. First message on the connection; may be re-sent to move
// the watched range, which triggers a fresh sync of every seal in range.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Center          [3]int `json:"center"`
	Radius          int    `json:"radius"`
}

// HTTP response for GET /admin/v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string   `json:"protocol_version"`
	WorldID         string   `json:"world_id"`
	Tick            uint64   `json:"tick"`
	TickRateHz      int      `json:"tick_rate_hz"`
	SealTypes       []string `json:"seal_types"`
	BlockPalette    []string `json:"block_palette"`
}

// Server -> Client. Full record of a seal that was placed, reconfigured or
// synced.
type SealMsg struct {
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version"`
	Tick            uint64    `json:"tick"`
	Seal            SealState `json:"seal"`
}

// Server -> Client. Tombstone for a removed seal.
type SealRemovedMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	Pos             [3]int `json:"pos"`
	Face            string `json:"face"`
}

type SealState struct {
	Pos      [3]int          `json:"pos"`
	Face     string          `json:"face"`
	Type     string          `json:"type"`
	Priority int             `json:"priority"`
	Color    int             `json:"color,omitempty"`
	Locked   bool            `json:"locked,omitempty"`
	Inhibit  bool            `json:"inhibit,omitempty"`
	Owner    string          `json:"owner,omitempty"`
	Area     *[3]int         `json:"area,omitempty"`
	Filter   *FilterState    `json:"filter,omitempty"`
	Toggles  map[string]bool `json:"toggles,omitempty"`
}

type FilterState struct {
	Slots      []FilterSlot `json:"slots"`
	Whitelist  bool         `json:"whitelist,omitempty"`
	StrictMeta bool         `json:"strict_meta,omitempty"`
	StrictData bool         `json:"strict_data,omitempty"`
	MatchTags  bool         `json:"match_tags,omitempty"`
	MatchGroup bool         `json:"match_group,omitempty"`
}

type FilterSlot struct {
	Item     string `json:"item,omitempty"`
	Meta     int    `json:"meta,omitempty"`
	Data     string `json:"data,omitempty"`
	Quantity int    `json:"quantity,omitempty"`
}

// Server -> Client. Sent every tick.
type TickMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`

	Tasks  TaskCounts   `json:"tasks"`
	Golems []GolemState `json:"golems"`
	Audits []AuditEntry `json:"audits,omitempty"`
	Events []TaskEvent  `json:"events,omitempty"`
}

type TaskCounts struct {
	Live     int `json:"live"`
	Pending  int `json:"pending"`
	Reserved int `json:"reserved"`
	Requests int `json:"requests"`
}

type GolemState struct {
	ID     string   `json:"id"`
	Name   string   `json:"name,omitempty"`
	Pos    [3]int   `json:"pos"`
	Traits []string `json:"traits,omitempty"`
	TaskID uint64   `json:"task_id,omitempty"`
	Target [3]int   `json:"target,omitempty"`
}

type AuditEntry struct {
	Tick   uint64 `json:"tick"`
	Actor  string `json:"actor,omitempty"`
	Action string `json:"action"`
	Pos    [3]int `json:"pos"`
	Face   string `json:"face"`
	Type   string `json:"type"`
	Reason string `json:"reason,omitempty"`
}

// TaskEvent is a task leaving the queue.
type TaskEvent struct {
	TaskID uint64 `json:"task_id"`
	Origin [3]int `json:"origin"`
	Reason string `json:"reason"`
	Worker string `json:"worker,omitempty"`
}
