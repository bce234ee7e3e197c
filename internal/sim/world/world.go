// Package world runs one simulation: the world store, the seals and their task
// queue, the provisioning board and the golems, stepped by a single goroutine.
package world

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sync/atomic"

	"golemcraft.ai/internal/persistence/snapshot"
	"golemcraft.ai/internal/sim/catalogs"
	"golemcraft.ai/internal/sim/golem"
	"golemcraft.ai/internal/sim/provision"
	"golemcraft.ai/internal/sim/seals"
	"golemcraft.ai/internal/sim/seals/kinds"
	"golemcraft.ai/internal/sim/tasks"
	"golemcraft.ai/internal/sim/tuning"
	"golemcraft.ai/internal/sim/world/store"
)

type WorldConfig struct {
	ID                 string
	TickRateHz         int
	SnapshotEveryTicks int
	// ProvisionSweepEvery is the cadence of the provision board sweep.
	ProvisionSweepEvery int
	CropGrowEvery       int
}

// ConfigFromTuning fills the runtime cadences from the tuning file.
func ConfigFromTuning(id string, t tuning.Tuning) WorldConfig {
	return WorldConfig{
		ID:                  id,
		TickRateHz:          t.TickRateHz,
		SnapshotEveryTicks:  t.SnapshotEveryTicks,
		ProvisionSweepEvery: t.ProvisionSweepEveryTicks,
		CropGrowEvery:       t.CropGrowEveryTicks,
	}
}

// World is a single-threaded authoritative simulation.
// All state must be accessed only from the world loop goroutine.
type World struct {
	cfg      WorldConfig
	tun      tuning.Tuning
	catalogs *catalogs.Catalogs
	logger   *log.Logger

	tick atomic.Uint64

	store  *store.Store
	queue  *tasks.Queue
	board  *provision.Board
	env    *seals.Env
	seals  *seals.Manager
	golems *golem.Dispatcher

	sealTypes []string

	control       chan ControlRequest
	query         chan func()
	observerJoin  chan ObserverJoinRequest
	observerSub   chan ObserverSubscribeRequest
	observerLeave chan string
	stop          chan struct{}

	observers map[string]*observerClient

	// Optional loggers (may be nil). Implemented in internal/persistence/*.
	tickLogger  TickLogger
	auditLogger AuditLogger

	// Optional snapshot sink (may be nil). Snapshot writing should be off-thread.
	snapshotSink chan<- snapshot.SnapshotV1

	// Per-tick buffers, reset by step.
	audits      []AuditEntry
	taskEvents  []TaskEvent
	lastCreated uint64

	metrics atomic.Value
}

var ErrEmptyWorld = errors.New("world: import needs an empty world")

func componentLogger(base *log.Logger, name string) *log.Logger {
	return log.New(base.Writer(), "["+name+"] ", base.Flags())
}

func New(cfg WorldConfig, cats *catalogs.Catalogs, tun tuning.Tuning, logger *log.Logger) (*World, error) {
	if cats == nil {
		return nil, fmt.Errorf("world: nil catalogs")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if cfg.TickRateHz <= 0 {
		cfg.TickRateHz = 5
	}

	w := &World{
		cfg:           cfg,
		tun:           tun,
		catalogs:      cats,
		logger:        logger,
		store:         store.New(cats),
		queue:         tasks.NewQueue(tun.TaskLifespanTicks),
		board:         provision.NewBoard(),
		control:       make(chan ControlRequest, 1024),
		query:         make(chan func(), 64),
		observerJoin:  make(chan ObserverJoinRequest, 64),
		observerSub:   make(chan ObserverSubscribeRequest, 64),
		observerLeave: make(chan string, 64),
		stop:          make(chan struct{}),
		observers:     map[string]*observerClient{},
	}

	sealLog := componentLogger(logger, "seals")
	reg := seals.NewRegistry(sealLog)
	if n := kinds.RegisterDefaults(reg, sealLog); n == 0 {
		return nil, fmt.Errorf("world: no seal behaviors registered")
	}
	w.sealTypes = reg.Keys()

	w.env = &seals.Env{
		World:   w.store,
		Queue:   w.queue,
		Board:   w.board,
		Catalog: cats,
		Config:  seals.ConfigFromTuning(tun),
		Logger:  sealLog,
	}
	w.seals = seals.NewManager(reg, w.env, sealLog)
	w.seals.SetAuditHook(w.onAudit)
	w.seals.Subscribe(w.onSealRecord)
	w.queue.SetOnRemove(w.onTaskRemoved)
	w.golems = golem.NewDispatcher(w.seals, golem.ConfigFromTuning(tun), componentLogger(logger, "golems"))
	return w, nil
}

func (w *World) ID() string {
	if w == nil {
		return ""
	}
	return w.cfg.ID
}

func (w *World) Config() WorldConfig { return w.cfg }

func (w *World) Tuning() tuning.Tuning { return w.tun }

func (w *World) TickRateHz() int {
	if w == nil {
		return 0
	}
	return w.cfg.TickRateHz
}

func (w *World) CurrentTick() uint64 { return w.tick.Load() }

func (w *World) Catalogs() *catalogs.Catalogs { return w.catalogs }

// SealTypes lists the registered behavior keys in registration order.
func (w *World) SealTypes() []string {
	out := make([]string, len(w.sealTypes))
	copy(out, w.sealTypes)
	return out
}

func (w *World) BlockPalette() []string {
	if w == nil || w.catalogs == nil {
		return nil
	}
	p := w.catalogs.Blocks.Palette
	out := make([]string, len(p))
	copy(out, p)
	return out
}

func (w *World) SetTickLogger(l TickLogger)                    { w.tickLogger = l }
func (w *World) SetAuditLogger(l AuditLogger)                  { w.auditLogger = l }
func (w *World) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { w.snapshotSink = ch }

func (w *World) Control() chan<- ControlRequest { return w.control }

func (w *World) ObserverJoin() chan<- ObserverJoinRequest           { return w.observerJoin }
func (w *World) ObserverSubscribe() chan<- ObserverSubscribeRequest { return w.observerSub }
func (w *World) ObserverLeave() chan<- string                       { return w.observerLeave }

// onTaskRemoved chains the seal cleanup hook and records the event.
func (w *World) onTaskRemoved(t tasks.Task, reason tasks.RemoveReason) {
	w.seals.OnTaskRemoved(t, reason)
	w.taskEvents = append(w.taskEvents, TaskEvent{
		TaskID: t.ID,
		Origin: t.Origin.Pos.Array(),
		Face:   t.Origin.Face.String(),
		Target: t.Target.String(),
		Reason: string(reason),
		Worker: t.Worker,
	})
}

func (w *World) onAudit(a seals.Audit) {
	w.audits = append(w.audits, AuditEntry{
		Tick:   a.Tick,
		Actor:  a.Actor,
		Action: string(a.Action),
		Pos:    a.Anchor.Pos.Array(),
		Face:   a.Anchor.Face.String(),
		Type:   a.Type,
		Reason: a.Reason,
	})
}

// validTask is the queue validity check: the origin seal must still exist and
// an entity target must still be in the world.
func (w *World) validTask(t *tasks.Task) bool {
	if _, ok := w.seals.Get(t.Origin); !ok {
		return false
	}
	if t.Target.IsEntity() {
		_, ok := w.store.Entity(t.Target.EntityID)
		return ok
	}
	return true
}
