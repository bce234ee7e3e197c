package golem

import (
	"io"
	"log"
	"sort"

	"golemcraft.ai/internal/sim/geom"
	"golemcraft.ai/internal/sim/seals"
	"golemcraft.ai/internal/sim/tasks"
	"golemcraft.ai/internal/sim/tuning"
)

type Config struct {
	// Reach is the Chebyshev distance at which a golem can work on a target.
	Reach int
	// Step is how many blocks a golem moves per tick.
	Step int
}

func ConfigFromTuning(t tuning.Tuning) Config {
	return Config{Reach: t.GolemReach, Step: t.GolemStepPerTick}
}

// Stats counts dispatcher events for one tick.
type Stats struct {
	Started   int `json:"started"`
	Worked    int `json:"worked"`
	Completed int `json:"completed"`
	Abandoned int `json:"abandoned"`
	Busy      int `json:"busy"`
}

// Dispatcher matches golems to queued tasks and drives them through their
// work. It must only be used from the simulation goroutine.
type Dispatcher struct {
	mgr    *seals.Manager
	cfg    Config
	logger *log.Logger

	golems map[string]*Golem
}

func NewDispatcher(mgr *seals.Manager, cfg Config, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if cfg.Reach <= 0 {
		cfg.Reach = 2
	}
	if cfg.Step <= 0 {
		cfg.Step = 1
	}
	d := &Dispatcher{mgr: mgr, cfg: cfg, logger: logger, golems: map[string]*Golem{}}
	mgr.Env().Workers = d.worker
	return d
}

func (d *Dispatcher) worker(id string) (seals.Worker, bool) {
	g, ok := d.golems[id]
	if !ok {
		return nil, false
	}
	return g, true
}

func (d *Dispatcher) queue() *tasks.Queue { return d.mgr.Env().Queue }

func (d *Dispatcher) Add(g *Golem) { d.golems[g.ID()] = g }

func (d *Dispatcher) Get(id string) (*Golem, bool) {
	g, ok := d.golems[id]
	return g, ok
}

func (d *Dispatcher) Len() int { return len(d.golems) }

// All returns the golems ordered by id.
func (d *Dispatcher) All() []*Golem {
	out := make([]*Golem, 0, len(d.golems))
	for _, g := range d.golems {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Remove takes a golem out of service and hands its reservations back.
func (d *Dispatcher) Remove(id string) bool {
	g, ok := d.golems[id]
	if !ok {
		return false
	}
	q := d.queue()
	if g.task != 0 {
		q.Release(g.task, g.id)
	}
	if g.chained != 0 {
		q.Release(g.chained, g.id)
	}
	delete(d.golems, id)
	return true
}

// Reset drops every golem without touching the queue.
func (d *Dispatcher) Reset() { d.golems = map[string]*Golem{} }

// locate resolves a task target to a position. Entity targets follow the
// entity or golem; a vanished entity cannot be located.
func (d *Dispatcher) locate(t tasks.Target) (geom.Vec3i, bool) {
	if !t.IsEntity() {
		return t.Pos, true
	}
	if g, ok := d.golems[t.EntityID]; ok {
		return g.pos, true
	}
	e, ok := d.mgr.Env().World.Entity(t.EntityID)
	if !ok {
		return geom.Vec3i{}, false
	}
	return e.Pos, true
}

// Tick runs one step for every golem in id order: busy golems move toward
// their target and work on it once in reach; idle golems claim the best
// eligible task.
func (d *Dispatcher) Tick(now uint64) Stats {
	var st Stats
	for _, g := range d.All() {
		idle := g.task == 0
		if !idle {
			idle = d.work(g, &st)
		}
		if idle {
			d.claim(g, &st)
		}
		if g.task != 0 {
			st.Busy++
		}
	}
	return st
}

// work advances g on its current task. It returns true when g ended the step
// idle and may claim new work in the same tick.
func (d *Dispatcher) work(g *Golem, st *Stats) bool {
	q := d.queue()
	t, ok := q.HeldBy(g.task, g.id)
	if !ok {
		g.clear()
		return true
	}
	if !d.mgr.CanPerform(g, t) {
		d.abandon(g, t.ID, st)
		return false
	}
	dest, ok := d.locate(t.Target)
	if !ok {
		d.abandon(g, t.ID, st)
		return false
	}
	if geom.Chebyshev(g.pos, dest) > d.cfg.Reach {
		g.pos = geom.StepToward(g.pos, dest, d.cfg.Step)
		if geom.Chebyshev(g.pos, dest) > d.cfg.Reach {
			return false
		}
	}
	st.Worked++
	done, ok := d.mgr.Complete(g, t)
	if !ok {
		d.abandon(g, t.ID, st)
		return false
	}
	if !done {
		return false
	}
	q.Complete(t.ID)
	st.Completed++
	g.clear()
	d.startChained(g, st)
	return false
}

func (d *Dispatcher) abandon(g *Golem, id uint64, st *Stats) {
	d.queue().Suspend(id)
	g.clear()
	st.Abandoned++
}

func (d *Dispatcher) startChained(g *Golem, st *Stats) {
	id := g.chained
	g.chained = 0
	if id == 0 {
		return
	}
	t, ok := d.queue().HeldBy(id, g.id)
	if !ok {
		return
	}
	g.task = id
	d.mgr.Start(g, t)
	st.Started++
}

func (d *Dispatcher) claim(g *Golem, st *Stats) {
	q := d.queue()
	cands := q.Candidates(g.pos, tasks.CandidateOpts{Locate: d.locate})
	for _, t := range cands {
		if !d.mgr.Eligible(g, t) {
			continue
		}
		if pos, ok := d.locate(t.Target); !ok || !g.InHome(pos) {
			continue
		}
		if !d.mgr.CanPerform(g, t) {
			continue
		}
		if !q.Reserve(t.ID, g.id) {
			continue
		}
		g.task = t.ID
		d.mgr.Start(g, t)
		st.Started++
		return
	}
}
