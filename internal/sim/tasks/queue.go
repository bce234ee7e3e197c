package tasks

import (
	"sort"
	"sync"

	"golemcraft.ai/internal/sim/geom"
)

const DefaultLifespan = 300

// Counters are cumulative lifecycle totals since the queue was created.
type Counters struct {
	Created   uint64 `json:"created"`
	Reserved  uint64 `json:"reserved"`
	Released  uint64 `json:"released"`
	Completed uint64 `json:"completed"`
	Expired   uint64 `json:"expired"`
	Suspended uint64 `json:"suspended"`
	Removed   uint64 `json:"removed"`
}

type Stats struct {
	Live     int      `json:"live"`
	Pending  int      `json:"pending"`
	Reserved int      `json:"reserved"`
	Totals   Counters `json:"totals"`
}

// RemoveFunc is called (outside the queue lock) for every task leaving the queue.
type RemoveFunc func(t Task, reason RemoveReason)

// Queue is the per-world table of live tasks. All state transitions happen under
// one lock, so Reserve is atomic with respect to concurrent callers and to Tick.
type Queue struct {
	mu sync.Mutex

	next     uint64
	lifespan int
	tasks    map[uint64]*Task
	onRemove RemoveFunc
	totals   Counters
}

func NewQueue(defaultLifespan int) *Queue {
	if defaultLifespan <= 0 {
		defaultLifespan = DefaultLifespan
	}
	return &Queue{lifespan: defaultLifespan, tasks: map[uint64]*Task{}}
}

func (q *Queue) SetOnRemove(fn RemoveFunc) {
	q.mu.Lock()
	q.onRemove = fn
	q.mu.Unlock()
}

// NextID is the last allocated id (for snapshot counters).
func (q *Queue) NextID() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.next
}

// SetNextID moves the id counter forward; it never moves backwards.
func (q *Queue) SetNextID(n uint64) {
	q.mu.Lock()
	if n > q.next {
		q.next = n
	}
	q.mu.Unlock()
}

// Insert stores a copy of t as Pending with a fresh id and returns that id.
func (q *Queue) Insert(t Task) uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.next++
	t.ID = q.next
	t.State = Pending
	t.Worker = ""
	if t.Lifespan <= 0 {
		t.Lifespan = q.lifespan
	}
	q.tasks[t.ID] = &t
	q.totals.Created++
	return t.ID
}

// Get returns the live record. The queue mutates State, Worker and Lifespan
// under its lock, so the record may only be read from the simulation
// goroutine; other goroutines use StateOf, WorkerOf or All.
func (q *Queue) Get(id uint64) (*Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.tasks[id]
	return t, ok
}

// Exists reports whether id is still in the queue and not suspended.
func (q *Queue) Exists(id uint64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.tasks[id]
	return ok && t.Live()
}

func (q *Queue) StateOf(id uint64) (State, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.tasks[id]
	if !ok {
		return 0, false
	}
	return t.State, true
}

// WorkerOf returns the worker holding id's reservation.
func (q *Queue) WorkerOf(id uint64) (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.tasks[id]
	if !ok || t.State != Reserved {
		return "", false
	}
	return t.Worker, true
}

// HeldBy returns the live record of id when worker holds its reservation. The
// check runs under the queue lock.
func (q *Queue) HeldBy(id uint64, worker string) (*Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.tasks[id]
	if !ok || t.State != Reserved || t.Worker != worker {
		return nil, false
	}
	return t, true
}

type CandidateOpts struct {
	// Origin restricts results to tasks created by one seal.
	Origin *geom.Anchor
	// Locate resolves a target to a position. Entity targets that cannot be
	// located are skipped. Nil means entity targets sort by their origin.
	Locate func(Target) (geom.Vec3i, bool)
	// Accept is an extra filter run under the queue lock; keep it cheap.
	Accept func(*Task) bool
}

// Candidates returns Pending tasks ordered by priority (high first), then by
// distance from `from` (near first), then by id.
func (q *Queue) Candidates(from geom.Vec3i, opts CandidateOpts) []*Task {
	type cand struct {
		t    *Task
		dist int
	}
	q.mu.Lock()
	list := make([]cand, 0, len(q.tasks))
	for _, t := range q.tasks {
		if t.State != Pending {
			continue
		}
		if opts.Origin != nil && t.Origin != *opts.Origin {
			continue
		}
		if opts.Accept != nil && !opts.Accept(t) {
			continue
		}
		list = append(list, cand{t: t})
	}
	q.mu.Unlock()

	out := list[:0]
	for _, c := range list {
		pos, ok := c.t.Target.Pos, true
		if c.t.Target.IsEntity() {
			if opts.Locate != nil {
				pos, ok = opts.Locate(c.t.Target)
			} else {
				pos = c.t.Origin.Front()
			}
		}
		if !ok {
			continue
		}
		c.dist = geom.DistSq(from, pos)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.t.Priority != b.t.Priority {
			return a.t.Priority > b.t.Priority
		}
		if a.dist != b.dist {
			return a.dist < b.dist
		}
		return a.t.ID < b.t.ID
	})
	res := make([]*Task, len(out))
	for i, c := range out {
		res[i] = c.t
	}
	return res
}

// Reserve claims a Pending task for worker. Only one caller can ever win.
func (q *Queue) Reserve(id uint64, worker string) bool {
	if worker == "" {
		return false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.tasks[id]
	if !ok || t.State != Pending {
		return false
	}
	t.State = Reserved
	t.Worker = worker
	q.totals.Reserved++
	return true
}

// Release hands a reserved task back to the pool. worker must hold it.
func (q *Queue) Release(id uint64, worker string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.tasks[id]
	if !ok || t.State != Reserved || t.Worker != worker {
		return false
	}
	t.State = Pending
	t.Worker = ""
	q.totals.Released++
	return true
}

// Suspend marks a live task for removal on the next Tick.
func (q *Queue) Suspend(id uint64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.tasks[id]
	if !ok || !t.Live() {
		return false
	}
	t.State = Suspended
	return true
}

// SuspendOrigin suspends every live task created by the seal at a.
func (q *Queue) SuspendOrigin(a geom.Anchor) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, t := range q.tasks {
		if t.Origin == a && t.Live() {
			t.State = Suspended
			n++
		}
	}
	return n
}

// Complete finalizes and removes a task.
func (q *Queue) Complete(id uint64) bool {
	return q.take(id, ReasonCompleted)
}

// Remove drops a task without completing it.
func (q *Queue) Remove(id uint64) bool {
	return q.take(id, ReasonRemoved)
}

func (q *Queue) take(id uint64, reason RemoveReason) bool {
	q.mu.Lock()
	t, ok := q.tasks[id]
	if !ok {
		q.mu.Unlock()
		return false
	}
	delete(q.tasks, id)
	if reason == ReasonCompleted {
		t.State = Completed
	}
	q.count(reason)
	fn := q.onRemove
	snap := *t
	q.mu.Unlock()

	if fn != nil {
		fn(snap, reason)
	}
	return true
}

func (q *Queue) count(reason RemoveReason) {
	switch reason {
	case ReasonCompleted:
		q.totals.Completed++
	case ReasonExpired:
		q.totals.Expired++
	case ReasonSuspended:
		q.totals.Suspended++
	default:
		q.totals.Removed++
	}
}

type removal struct {
	t      Task
	reason RemoveReason
}

// Tick runs once per time step:
//   - tasks suspended since the last Tick are removed;
//   - every remaining task loses one tick of lifespan, and is removed at zero;
//   - tasks failing validate are suspended (removed on the next Tick).
//
// Removal callbacks run after the lock is released, in id order.
func (q *Queue) Tick(validate func(*Task) bool) []Task {
	q.mu.Lock()
	ids := make([]uint64, 0, len(q.tasks))
	for id := range q.tasks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var gone []removal
	var check []*Task
	for _, id := range ids {
		t := q.tasks[id]
		if t.State == Suspended {
			delete(q.tasks, id)
			q.count(ReasonSuspended)
			gone = append(gone, removal{t: *t, reason: ReasonSuspended})
			continue
		}
		t.Lifespan--
		if t.Lifespan <= 0 {
			delete(q.tasks, id)
			q.count(ReasonExpired)
			gone = append(gone, removal{t: *t, reason: ReasonExpired})
			continue
		}
		check = append(check, t)
	}
	fn := q.onRemove
	q.mu.Unlock()

	if validate != nil {
		for _, t := range check {
			if validate(t) {
				continue
			}
			q.Suspend(t.ID)
		}
	}

	out := make([]Task, 0, len(gone))
	for _, r := range gone {
		if fn != nil {
			fn(r.t, r.reason)
		}
		out = append(out, r.t)
	}
	return out
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	st := Stats{Live: len(q.tasks), Totals: q.totals}
	for _, t := range q.tasks {
		switch t.State {
		case Pending:
			st.Pending++
		case Reserved:
			st.Reserved++
		}
	}
	return st
}

// All returns copies of every task ordered by id.
func (q *Queue) All() []Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Task, 0, len(q.tasks))
	for _, t := range q.tasks {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ByOrigin returns copies of the live tasks created by the seal at a.
func (q *Queue) ByOrigin(a geom.Anchor) []Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []Task
	for _, t := range q.tasks {
		if t.Origin == a && t.Live() {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
