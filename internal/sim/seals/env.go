package seals

import (
	"io"
	"log"

	"golemcraft.ai/internal/sim/catalogs"
	"golemcraft.ai/internal/sim/filter"
	"golemcraft.ai/internal/sim/geom"
	"golemcraft.ai/internal/sim/items"
	"golemcraft.ai/internal/sim/provision"
	"golemcraft.ai/internal/sim/tasks"
	"golemcraft.ai/internal/sim/traits"
	"golemcraft.ai/internal/sim/tuning"
)

// Block is one world cell. Age is per-block state (crop growth, lever on/off).
type Block struct {
	ID  string
	Age int
}

func (b Block) IsAir() bool { return b.ID == "" || b.ID == "AIR" }

type EntityKind string

const (
	EntityItem     EntityKind = "ITEM"
	EntityCreature EntityKind = "CREATURE"
	EntityGolem    EntityKind = "GOLEM"
)

type Entity struct {
	ID      string
	Kind    EntityKind
	Species string
	Class   catalogs.CreatureClass
	Pos     geom.Vec3i
	Item    items.Stack
	HP      int
	Adult   bool
	Owner   string
}

// Access is the world surface seals need. Implementations must be safe to call
// from the simulation goroutine only.
type Access interface {
	Block(p geom.Vec3i) Block
	SetBlock(p geom.Vec3i, b Block)
	// BreakBlock turns p into air and returns what the block drops. The drops
	// are not spawned; the caller decides where they go.
	BreakBlock(p geom.Vec3i) ([]items.Stack, bool)

	Entity(id string) (Entity, bool)
	// EntitiesIn lists entities inside box ordered by id.
	EntitiesIn(box geom.Box) []Entity
	RemoveEntity(id string) bool
	SetEntityItem(id string, s items.Stack) bool
	SpawnItem(p geom.Vec3i, s items.Stack) string
	// Damage hurts an entity and reports whether it died.
	Damage(id string, amount int) bool

	InventoryAt(p geom.Vec3i) (items.Inventory, bool)
	// Interact clicks the block at p holding held; it returns what is left of
	// held and whether anything happened.
	Interact(p geom.Vec3i, held items.Stack, secondary, crouch bool) (items.Stack, bool)
}

// Worker is a golem as seen by seal behaviors.
type Worker interface {
	ID() string
	Pos() geom.Vec3i
	Traits() traits.Set
	Inventory() items.Inventory
	Held() items.Stack
	SetHeld(s items.Stack)
	// Pursue binds the worker's movement target (entity targets are followed).
	Pursue(t tasks.Target)
	// Chain hands the worker a task it already holds the reservation for; it is
	// started as soon as the current task completes.
	Chain(taskID uint64)
}

// Config is the slice of tuning seals read.
type Config struct {
	MaxTasksPerTick    int
	CacheSweepEvery    int
	ValidityCheckEvery int
	FilterSize         int
	ProvisionRange     int
	ProvisionTimeout   int
	PvPAllowed         bool
	ButcherThreshold   int
	BreakerStep        int
	ReplantTTL         int
}

func ConfigFromTuning(t tuning.Tuning) Config {
	return Config{
		MaxTasksPerTick:    t.MaxTasksPerSealTick,
		CacheSweepEvery:    t.CacheSweepEveryTicks,
		ValidityCheckEvery: t.ValidityCheckEveryTicks,
		FilterSize:         t.FilterSize,
		ProvisionRange:     t.ProvisionRange,
		ProvisionTimeout:   t.ProvisionTimeoutTicks,
		PvPAllowed:         t.PvPAllowed,
		ButcherThreshold:   t.ButcherThreshold,
		BreakerStep:        t.BreakerStep,
		ReplantTTL:         t.ReplantTTLTicks,
	}
}

// Env is handed to every behavior callback.
type Env struct {
	Tick    uint64
	World   Access
	Queue   *tasks.Queue
	Board   *provision.Board
	Catalog *catalogs.Catalogs
	Config  Config
	Logger  *log.Logger
	// Workers resolves a golem by id; provision requests may name one as
	// their destination.
	Workers func(id string) (Worker, bool)
}

// Worker looks up a golem by id. It reports false without a resolver.
func (e *Env) Worker(id string) (Worker, bool) {
	if e.Workers == nil {
		return nil, false
	}
	return e.Workers(id)
}

// Tagger returns the catalog as a filter.Tagger, or nil without a catalog.
func (e *Env) Tagger() filter.Tagger {
	if e.Catalog == nil {
		return nil
	}
	return e.Catalog
}

// SweepDue reports whether per-seal caches should be swept this tick.
func (e *Env) SweepDue() bool {
	n := e.Config.CacheSweepEvery
	return n > 0 && e.Tick%uint64(n) == 0
}

// Budget is the number of tasks a seal may emit in one tick.
func (e *Env) Budget() int {
	if e.Config.MaxTasksPerTick <= 0 {
		return 1
	}
	return e.Config.MaxTasksPerTick
}

func discardLogger(l *log.Logger) *log.Logger {
	if l == nil {
		return log.New(io.Discard, "", 0)
	}
	return l
}
