package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ClientName      string `json:"client_name"`
	// ClientID resumes an earlier identity (seal ownership). Empty asks the
	// server to allocate one.
	ClientID string `json:"client_id,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	ClientID        string         `json:"client_id"`
	WorldID         string         `json:"world_id"`
	Tick            uint64         `json:"tick"`
	TickRateHz      int            `json:"tick_rate_hz"`
	SealTypes       []string       `json:"seal_types"`
	Catalogs        CatalogDigests `json:"catalogs"`
}

type CatalogDigests struct {
	BlockPalette    DigestRef `json:"block_palette"`
	ItemPalette     DigestRef `json:"item_palette"`
	CreaturesDigest string    `json:"creatures_digest"`
	TuningDigest    string    `json:"tuning_digest,omitempty"`
}

type DigestRef struct {
	Digest string `json:"digest"`
	Count  int    `json:"count"`
}

// Every command below carries an optional request_id that is echoed in the
// ACK or ERROR answering it.

type PlaceSealMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version,omitempty"`
	RequestID       string  `json:"request_id,omitempty"`
	Pos             [3]int  `json:"pos"`
	Face            string  `json:"face"`
	SealType        string  `json:"seal_type"`
	Priority        int     `json:"priority,omitempty"`
	Color           int     `json:"color,omitempty"`
	Area            *[3]int `json:"area,omitempty"`
}

type RemoveSealMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
	RequestID       string `json:"request_id,omitempty"`
	Pos             [3]int `json:"pos"`
	Face            string `json:"face"`
}

// CONFIGURE_SEAL: nil fields are left unchanged.
type ConfigureSealMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version,omitempty"`
	RequestID       string          `json:"request_id,omitempty"`
	Pos             [3]int          `json:"pos"`
	Face            string          `json:"face"`
	Priority        *int            `json:"priority,omitempty"`
	Color           *int            `json:"color,omitempty"`
	Locked          *bool           `json:"locked,omitempty"`
	Inhibit         *bool           `json:"inhibit,omitempty"`
	Area            *[3]int         `json:"area,omitempty"`
	Filter          *FilterSpec     `json:"filter,omitempty"`
	Toggles         map[string]bool `json:"toggles,omitempty"`
}

type FilterSpec struct {
	Slots      []FilterSlot `json:"slots"`
	Whitelist  bool         `json:"whitelist,omitempty"`
	StrictMeta bool         `json:"strict_meta,omitempty"`
	StrictData bool         `json:"strict_data,omitempty"`
	MatchTags  bool         `json:"match_tags,omitempty"`
	MatchGroup bool         `json:"match_group,omitempty"`
}

// FilterSlot with an empty Item is an empty slot.
type FilterSlot struct {
	Item     string `json:"item,omitempty"`
	Meta     int    `json:"meta,omitempty"`
	Data     string `json:"data,omitempty"`
	Quantity int    `json:"quantity,omitempty"`
}

type StackSpec struct {
	Item  string `json:"item"`
	Meta  int    `json:"meta,omitempty"`
	Data  string `json:"data,omitempty"`
	Count int    `json:"count"`
}

type SpawnGolemMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version,omitempty"`
	RequestID       string   `json:"request_id,omitempty"`
	Name            string   `json:"name"`
	Pos             [3]int   `json:"pos"`
	Traits          []string `json:"traits,omitempty"`
	HomeRadius      int      `json:"home_radius,omitempty"`
}

type RemoveGolemMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
	RequestID       string `json:"request_id,omitempty"`
	GolemID         string `json:"golem_id"`
}

type SetBlockMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
	RequestID       string `json:"request_id,omitempty"`
	Pos             [3]int `json:"pos"`
	Block           string `json:"block"`
}

type SpawnItemMsg struct {
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version,omitempty"`
	RequestID       string    `json:"request_id,omitempty"`
	Pos             [3]int    `json:"pos"`
	Item            StackSpec `json:"item"`
}

type SpawnCreatureMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
	RequestID       string `json:"request_id,omitempty"`
	Pos             [3]int `json:"pos"`
	Species         string `json:"species"`
	Adult           bool   `json:"adult,omitempty"`
}

// STOCK inserts items into the container at pos.
type StockMsg struct {
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version,omitempty"`
	RequestID       string    `json:"request_id,omitempty"`
	Pos             [3]int    `json:"pos"`
	Item            StackSpec `json:"item"`
}

type QueryMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
	RequestID       string `json:"request_id,omitempty"`
	What            string `json:"what"`
}

// ACK (server -> client). ID is whatever the command created or addressed.
type AckMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RequestID       string `json:"request_id,omitempty"`
	Tick            uint64 `json:"tick"`
	ID              string `json:"id,omitempty"`
}

type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RequestID       string `json:"request_id,omitempty"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}

// QUERY_RESULT (server -> client). Exactly one of the slices (or Stats) is set,
// matching What.
type QueryResultMsg struct {
	Type            string        `json:"type"`
	ProtocolVersion string        `json:"protocol_version"`
	RequestID       string        `json:"request_id,omitempty"`
	What            string        `json:"what"`
	Seals           []SealInfo    `json:"seals,omitempty"`
	Golems          []GolemInfo   `json:"golems,omitempty"`
	Tasks           []TaskInfo    `json:"tasks,omitempty"`
	Requests        []RequestInfo `json:"requests,omitempty"`
	Stats           any           `json:"stats,omitempty"`
}

type SealInfo struct {
	Pos      [3]int          `json:"pos"`
	Face     string          `json:"face"`
	Type     string          `json:"seal_type"`
	Priority int             `json:"priority"`
	Color    int             `json:"color,omitempty"`
	Locked   bool            `json:"locked,omitempty"`
	Inhibit  bool            `json:"inhibit,omitempty"`
	Owner    string          `json:"owner,omitempty"`
	Toggles  map[string]bool `json:"toggles,omitempty"`
}

type GolemInfo struct {
	ID     string      `json:"id"`
	Name   string      `json:"name"`
	Pos    [3]int      `json:"pos"`
	Traits []string    `json:"traits,omitempty"`
	Items  []StackSpec `json:"items,omitempty"`
}

type TaskInfo struct {
	ID       uint64 `json:"id"`
	Origin   [3]int `json:"origin"`
	Face     string `json:"face"`
	Target   string `json:"target"`
	Priority int    `json:"priority"`
	State    string `json:"state"`
	Worker   string `json:"worker,omitempty"`
	Lifespan int    `json:"lifespan"`
}

type RequestInfo struct {
	ID    uint64    `json:"id"`
	Item  StackSpec `json:"item"`
	Dest  string    `json:"dest"`
	At    [3]int    `json:"at"`
	Color int       `json:"color,omitempty"`
	State string    `json:"state"`
	Task  uint64    `json:"task,omitempty"`
}
