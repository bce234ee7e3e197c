package seals

import (
	"fmt"
	"log"
	"sort"
	"sync"

	"golemcraft.ai/internal/persistence/snapshot"
	"golemcraft.ai/internal/sim/filter"
	"golemcraft.ai/internal/sim/geom"
	"golemcraft.ai/internal/sim/tasks"
)

type AuditAction string

const (
	AuditPlace     AuditAction = "PLACE"
	AuditRemove    AuditAction = "REMOVE"
	AuditConfigure AuditAction = "CONFIGURE"
	AuditDrop      AuditAction = "DROP"
	AuditInvalid   AuditAction = "INVALID"
	AuditPanic     AuditAction = "PANIC"
)

// Audit describes a seal lifecycle event for the audit log.
type Audit struct {
	Tick   uint64
	Action AuditAction
	Anchor geom.Anchor
	Type   string
	Actor  string
	Reason string
}

type PlaceOpts struct {
	Owner    string
	Priority int
	Color    int
	Area     *geom.Vec3i
}

// Update is a partial configuration change; nil fields are left alone.
type Update struct {
	Priority *int
	Color    *int
	Locked   *bool
	Inhibit  *bool
	Area     *geom.Vec3i
	Filter   *filter.Filter
	Toggles  map[string]bool
	Config   []byte
}

// Manager owns the live seals of one world.
type Manager struct {
	reg    *Registry
	env    *Env
	logger *log.Logger

	mu    sync.RWMutex
	seals map[geom.Anchor]*Seal

	subMu   sync.Mutex
	nextSub int
	subs    map[int]func(snapshot.SealV1)

	onAudit func(Audit)
}

func NewManager(reg *Registry, env *Env, logger *log.Logger) *Manager {
	logger = discardLogger(logger)
	if env.Logger == nil {
		env.Logger = logger
	}
	return &Manager{
		reg:    reg,
		env:    env,
		logger: logger,
		seals:  map[geom.Anchor]*Seal{},
		subs:   map[int]func(snapshot.SealV1){},
	}
}

func (m *Manager) Env() *Env { return m.env }

func (m *Manager) Registry() *Registry { return m.reg }

func (m *Manager) SetAuditHook(fn func(Audit)) { m.onAudit = fn }

func (m *Manager) audit(a Audit) {
	a.Tick = m.env.Tick
	if m.onAudit != nil {
		m.onAudit(a)
	}
}

// Place creates a seal of type key at a. Placement fails without side effects
// when the anchor is taken or the behavior rejects the spot.
func (m *Manager) Place(key string, a geom.Anchor, opts PlaceOpts) (*Seal, error) {
	if !a.Face.Valid() {
		return nil, fmt.Errorf("%w: bad facing", ErrCannotPlace)
	}
	b, err := m.reg.New(key)
	if err != nil {
		return nil, err
	}
	if !b.CanPlaceAt(m.env, a) {
		return nil, fmt.Errorf("%w: %s at %s", ErrCannotPlace, key, a)
	}
	s := &Seal{
		Anchor:     a,
		Behavior:   b,
		Priority:   opts.Priority,
		Color:      opts.Color,
		Owner:      opts.Owner,
		PlacedTick: m.env.Tick,
	}
	if ar, ok := b.(Areal); ok {
		s.Area = clampArea(ar.DefaultArea())
		if opts.Area != nil {
			s.Area = clampArea(*opts.Area)
		}
	}
	if f, ok := b.(Filtered); ok {
		s.Filter = f.NewFilter(m.env.Config.FilterSize)
		if adj, ok := b.(FilterAdjuster); ok {
			adj.AdjustFilter(s.Filter)
		}
	}

	m.mu.Lock()
	if _, ok := m.seals[a]; ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrOccupied, a)
	}
	m.seals[a] = s
	m.mu.Unlock()

	m.audit(Audit{Action: AuditPlace, Anchor: a, Type: key, Actor: opts.Owner})
	m.publish(m.Record(s))
	return s, nil
}

// Remove destroys the seal at a and suspends its outstanding tasks.
func (m *Manager) Remove(a geom.Anchor, actor, reason string) bool {
	return m.remove(a, AuditRemove, actor, reason)
}

func (m *Manager) remove(a geom.Anchor, action AuditAction, actor, reason string) bool {
	m.mu.Lock()
	s, ok := m.seals[a]
	if ok {
		delete(m.seals, a)
	}
	m.mu.Unlock()
	if !ok {
		return false
	}
	n := m.env.Queue.SuspendOrigin(a)
	if action != AuditRemove {
		m.logger.Printf("seal %s %s removed (%s): %s; %d task(s) suspended", s.Key(), a, action, reason, n)
	}
	m.audit(Audit{Action: action, Anchor: a, Type: s.Key(), Actor: actor, Reason: reason})
	m.publish(Tombstone(a))
	return true
}

func (m *Manager) Get(a geom.Anchor) (*Seal, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.seals[a]
	return s, ok
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.seals)
}

// All returns the live seals ordered by anchor.
func (m *Manager) All() []*Seal {
	m.mu.RLock()
	out := make([]*Seal, 0, len(m.seals))
	for _, s := range m.seals {
		out = append(out, s)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Anchor.Less(out[j].Anchor) })
	return out
}

// InRange returns seals whose anchor is within radius (Chebyshev) of center.
func (m *Manager) InRange(center geom.Vec3i, radius int) []*Seal {
	var out []*Seal
	for _, s := range m.All() {
		if geom.Chebyshev(center, s.Anchor.Pos) <= radius {
			out = append(out, s)
		}
	}
	return out
}

// Configure applies u to the seal at a. A locked seal only accepts changes from
// its owner (or from the server itself, actor "").
func (m *Manager) Configure(a geom.Anchor, actor string, u Update) error {
	s, ok := m.Get(a)
	if !ok {
		return ErrNotFound
	}
	s.mu.Lock()
	err := m.configureLocked(s, actor, u)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if u.Inhibit != nil && *u.Inhibit {
		m.env.Queue.SuspendOrigin(a)
	}
	m.audit(Audit{Action: AuditConfigure, Anchor: a, Type: s.Key(), Actor: actor})
	m.publish(m.Record(s))
	return nil
}

func (m *Manager) configureLocked(s *Seal, actor string, u Update) error {
	if s.Locked && actor != "" && actor != s.Owner {
		return ErrLocked
	}
	b := s.Behavior
	if u.Area != nil && !s.Areal() {
		return fmt.Errorf("%w: %s has no working area", ErrBadConfig, s.Key())
	}
	if u.Filter != nil {
		if _, ok := b.(Filtered); !ok {
			return fmt.Errorf("%w: %s has no filter", ErrBadConfig, s.Key())
		}
	}
	var tg Toggled
	if len(u.Toggles) > 0 {
		var ok bool
		if tg, ok = b.(Toggled); !ok {
			return fmt.Errorf("%w: %s has no toggles", ErrBadConfig, s.Key())
		}
		cur := tg.Toggles()
		for name := range u.Toggles {
			if _, ok := cur[name]; !ok {
				return fmt.Errorf("%w: unknown toggle %q", ErrBadConfig, name)
			}
		}
	}
	if len(u.Config) > 0 {
		if err := b.UnmarshalConfig(u.Config); err != nil {
			return fmt.Errorf("%w: %v", ErrBadConfig, err)
		}
	}

	if u.Priority != nil {
		s.Priority = *u.Priority
	}
	if u.Color != nil {
		s.Color = *u.Color
	}
	if u.Locked != nil {
		s.Locked = *u.Locked
	}
	if u.Inhibit != nil {
		s.Inhibit = *u.Inhibit
	}
	if u.Area != nil {
		s.Area = clampArea(*u.Area)
	}
	if u.Filter != nil {
		f := u.Filter.Clone()
		size := len(s.Filter.Slots)
		if size == 0 {
			size = m.env.Config.FilterSize
		}
		f.Resize(size)
		if adj, ok := b.(FilterAdjuster); ok {
			adj.AdjustFilter(f)
		}
		s.Filter = f
	}
	for name, v := range u.Toggles {
		tg.SetToggle(name, v)
	}
	return nil
}

// Tick runs one step for every seal: inhibited seals suspend their tasks,
// seals failing the periodic validity check are removed, and a seal whose
// behavior panics is removed.
func (m *Manager) Tick(now uint64) {
	m.env.Tick = now
	every := m.env.Config.ValidityCheckEvery
	check := every > 0 && now%uint64(every) == 0

	for _, s := range m.All() {
		if s.Inhibit {
			m.env.Queue.SuspendOrigin(s.Anchor)
			continue
		}
		valid := true
		ok := m.guard(s, "tick", func() {
			if check && !s.Behavior.CanPlaceAt(m.env, s.Anchor) {
				valid = false
				return
			}
			s.Behavior.Tick(m.env, s)
		})
		if ok && !valid {
			m.remove(s.Anchor, AuditInvalid, "", "placement no longer valid")
		}
	}
}

// guard runs fn under the seal lock. A panic removes the seal and yields false.
func (m *Manager) guard(s *Seal, what string, fn func()) (ok bool) {
	var perr any
	func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		defer func() { perr = recover() }()
		fn()
	}()
	if perr == nil {
		return true
	}
	m.remove(s.Anchor, AuditPanic, "", fmt.Sprintf("%s: %v", what, perr))
	return false
}

// OnTaskRemoved is the queue removal hook. Suspended, expired and dropped tasks
// run the seal's OnSuspend cleanup, and any provision request riding on them
// expires.
func (m *Manager) OnTaskRemoved(t tasks.Task, reason tasks.RemoveReason) {
	if reason == tasks.ReasonCompleted {
		return
	}
	if t.LinkedRequest != 0 && m.env.Board != nil {
		m.env.Board.Expire(t.LinkedRequest)
	}
	s, ok := m.Get(t.Origin)
	if !ok {
		return
	}
	m.guard(s, "suspend", func() { s.Behavior.OnSuspend(m.env, s, t) })
}

// Eligible checks the worker's traits against the behavior of t's seal.
func (m *Manager) Eligible(w Worker, t *tasks.Task) bool {
	s, ok := m.Get(t.Origin)
	if !ok {
		return false
	}
	return w.Traits().Satisfies(s.Behavior.Required(), s.Behavior.Forbidden())
}

// CanPerform re-validates t for w. A task whose seal is gone is not performable.
func (m *Manager) CanPerform(w Worker, t *tasks.Task) bool {
	s, ok := m.Get(t.Origin)
	if !ok {
		return false
	}
	if !w.Traits().Satisfies(s.Behavior.Required(), s.Behavior.Forbidden()) {
		return false
	}
	res := false
	m.guard(s, "validate", func() { res = s.Behavior.CanWorkerPerform(m.env, s, w, t) })
	return res
}

func (m *Manager) Start(w Worker, t *tasks.Task) {
	s, ok := m.Get(t.Origin)
	if !ok {
		return
	}
	m.guard(s, "start", func() { s.Behavior.OnStart(m.env, s, w, t) })
}

// Complete performs one step of t. It returns done=true once the task is
// finished, and ok=false when the task can no longer be worked on.
func (m *Manager) Complete(w Worker, t *tasks.Task) (done, ok bool) {
	s, found := m.Get(t.Origin)
	if !found {
		return false, false
	}
	ok = m.guard(s, "complete", func() { done = s.Behavior.OnComplete(m.env, s, w, t) })
	return done, ok
}
