// Package provision implements the request/fulfillment handshake between seals:
// a consumer posts a Request for an item it lacks, a provider links a two-phase
// task to it (pick up, then deliver), and delivery closes it.
package provision

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"golemcraft.ai/internal/sim/geom"
	"golemcraft.ai/internal/sim/items"
)

var (
	ErrNotLinkable = errors.New("provision: request cannot take another link")
	ErrDuplicate   = errors.New("provision: equivalent request already open")
	ErrNotFound    = errors.New("provision: unknown request")
	ErrBadRequest  = errors.New("provision: empty item or destination")
)

type State uint8

const (
	Open State = iota
	Matched
	Relinked
	Fulfilled
	Expired
)

func (s State) String() string {
	switch s {
	case Open:
		return "OPEN"
	case Matched:
		return "MATCHED"
	case Relinked:
		return "RELINKED"
	case Fulfilled:
		return "FULFILLED"
	case Expired:
		return "EXPIRED"
	}
	return fmt.Sprintf("STATE(%d)", uint8(s))
}

func (s State) Terminal() bool { return s == Fulfilled || s == Expired }

type DestKind uint8

const (
	DestSeal DestKind = iota
	DestEntity
	DestPos
)

// Destination is where the requested items must end up.
type Destination struct {
	Kind     DestKind
	Seal     geom.Anchor
	EntityID string
	Pos      geom.Vec3i
}

func ToSeal(a geom.Anchor) Destination { return Destination{Kind: DestSeal, Seal: a} }
func ToEntity(id string) Destination   { return Destination{Kind: DestEntity, EntityID: id} }
func ToPos(p geom.Vec3i) Destination   { return Destination{Kind: DestPos, Pos: p} }

func (d Destination) String() string {
	switch d.Kind {
	case DestSeal:
		return "seal:" + d.Seal.String()
	case DestEntity:
		return "entity:" + d.EntityID
	default:
		return "pos:" + d.Pos.String()
	}
}

type Request struct {
	ID   uint64
	Item items.Stack
	Dest Destination
	// At is where the request is posted from; providers match on range to it.
	At    geom.Vec3i
	Color int

	LinkedTask uint64
	// Timeout is the absolute tick after which the request expires.
	Timeout uint64
	State   State
	Links   int
}

// Invalid reports whether the request reached a terminal state.
func (r *Request) Invalid() bool { return r.State.Terminal() }

// TimedOut reports whether the request's deadline passed at tick now.
func (r *Request) TimedOut(now uint64) bool { return r.Timeout != 0 && now >= r.Timeout }

// lapse expires a live request whose deadline passed and reports whether r is
// terminal afterwards.
func lapse(r *Request, now uint64) bool {
	if !r.Invalid() && r.TimedOut(now) {
		r.State = Expired
	}
	return r.Invalid()
}

// Board holds every request of one world.
type Board struct {
	mu   sync.Mutex
	next uint64
	reqs map[uint64]*Request
}

func NewBoard() *Board {
	return &Board{reqs: map[uint64]*Request{}}
}

// Add posts a request. A still-valid request for the same destination and item
// kind is not duplicated; its id is returned with ErrDuplicate.
func (b *Board) Add(r Request) (uint64, error) {
	if r.Item.IsEmpty() {
		return 0, ErrBadRequest
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, cur := range b.reqs {
		if cur.Invalid() || cur.Dest != r.Dest || !cur.Item.SameKind(r.Item) {
			continue
		}
		return cur.ID, ErrDuplicate
	}
	b.next++
	r.ID = b.next
	r.State = Open
	r.LinkedTask = 0
	r.Links = 0
	b.reqs[r.ID] = &r
	return r.ID, nil
}

// Get returns a copy of the request.
func (b *Board) Get(id uint64) (Request, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.reqs[id]
	if !ok {
		return Request{}, false
	}
	return *r, true
}

// Open lists unmatched, valid requests posted within radius (Chebyshev) of
// center, ordered by id. Requests past their deadline at now are expired
// instead of listed.
func (b *Board) Open(center geom.Vec3i, radius int, now uint64) []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Request
	for _, r := range b.reqs {
		if lapse(r, now) || r.State != Open {
			continue
		}
		if geom.Chebyshev(center, r.At) > radius {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// OpenFor lists valid requests delivering to dest (any non-terminal state).
func (b *Board) OpenFor(dest Destination, now uint64) []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Request
	for _, r := range b.reqs {
		if r.Dest != dest || lapse(r, now) {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Link attaches a task: Open -> Matched (phase 0), Matched -> Relinked (phase 1).
// A request past its deadline expires and takes no link.
func (b *Board) Link(id, taskID, now uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.reqs[id]
	if !ok {
		return ErrNotFound
	}
	lapse(r, now)
	switch r.State {
	case Open:
		r.State = Matched
	case Matched:
		r.State = Relinked
	default:
		return fmt.Errorf("%w: state=%s", ErrNotLinkable, r.State)
	}
	r.LinkedTask = taskID
	r.Links++
	return nil
}

// Fulfill closes a matched/relinked request after delivery. A request whose
// deadline passed at now expires instead and Fulfill reports false.
func (b *Board) Fulfill(id, now uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.reqs[id]
	if !ok || lapse(r, now) {
		return false
	}
	r.State = Fulfilled
	return true
}

// Expire closes a request that can no longer be satisfied.
func (b *Board) Expire(id uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.reqs[id]
	if !ok || r.Invalid() {
		return false
	}
	r.State = Expired
	return true
}

// ExpireLinked expires the request linked to taskID, if any.
func (b *Board) ExpireLinked(taskID uint64) bool {
	if taskID == 0 {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range b.reqs {
		if r.LinkedTask == taskID && !r.Invalid() {
			r.State = Expired
			return true
		}
	}
	return false
}

// Sweep expires timed out requests and requests whose linked task is gone, then
// removes every terminal request. It returns the removed requests by id.
func (b *Board) Sweep(nowTick uint64, taskExists func(uint64) bool) []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Request
	for id, r := range b.reqs {
		if !lapse(r, nowTick) && r.LinkedTask != 0 && taskExists != nil && !taskExists(r.LinkedTask) {
			r.State = Expired
		}
		if r.Invalid() {
			out = append(out, *r)
			delete(b.reqs, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (b *Board) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.reqs)
}

// All returns copies of every request ordered by id.
func (b *Board) All() []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Request, 0, len(b.reqs))
	for _, r := range b.reqs {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// NextID is the last allocated id (for snapshot counters).
func (b *Board) NextID() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.next
}

// SetNextID moves the id counter forward; it never moves backwards.
func (b *Board) SetNextID(n uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n > b.next {
		b.next = n
	}
}
