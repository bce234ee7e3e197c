package world

import (
	"encoding/json"
	"sort"

	"golemcraft.ai/internal/observerproto"
	"golemcraft.ai/internal/persistence/snapshot"
	"golemcraft.ai/internal/sim/geom"
	"golemcraft.ai/internal/sim/tasks"
)

const (
	defaultObserverRadius = 32
	maxObserverRadius     = 256
)

// ObserverJoinRequest registers a read-only observer session that receives:
// - seal records and tombstones inside its range (DataOut)
// - per-tick global state (TickOut)
//
// All observer state is maintained by the world loop goroutine.
type ObserverJoinRequest struct {
	SessionID string
	TickOut   chan []byte
	DataOut   chan []byte

	Center geom.Vec3i
	Radius int
}

// ObserverSubscribeRequest moves an existing session's range. The session is
// re-synced with every seal in the new range.
type ObserverSubscribeRequest struct {
	SessionID string
	Center    geom.Vec3i
	Radius    int
}

type observerClient struct {
	id      string
	tickOut chan []byte
	dataOut chan []byte

	center geom.Vec3i
	radius int

	// resync is set when a data message was dropped; the next tick sends a
	// full sync instead.
	resync bool
}

func clampRadius(r int) int {
	if r <= 0 {
		return defaultObserverRadius
	}
	return min(r, maxObserverRadius)
}

func (c *observerClient) covers(p geom.Vec3i) bool {
	return geom.Chebyshev(c.center, p) <= c.radius
}

func (w *World) handleObserverJoin(req ObserverJoinRequest) {
	if req.SessionID == "" || req.TickOut == nil || req.DataOut == nil {
		return
	}
	// Replace existing session id if any.
	if old := w.observers[req.SessionID]; old != nil {
		close(old.tickOut)
		close(old.dataOut)
	}
	c := &observerClient{
		id:      req.SessionID,
		tickOut: req.TickOut,
		dataOut: req.DataOut,
		center:  req.Center,
		radius:  clampRadius(req.Radius),
	}
	w.observers[req.SessionID] = c
	w.syncObserver(c)
}

func (w *World) handleObserverSubscribe(req ObserverSubscribeRequest) {
	c := w.observers[req.SessionID]
	if c == nil {
		return
	}
	c.center = req.Center
	c.radius = clampRadius(req.Radius)
	w.syncObserver(c)
}

func (w *World) handleObserverLeave(sessionID string) {
	c := w.observers[sessionID]
	if c == nil {
		return
	}
	delete(w.observers, sessionID)
	close(c.tickOut)
	close(c.dataOut)
}

// syncObserver sends a full SEAL record for every seal in c's range.
func (w *World) syncObserver(c *observerClient) {
	c.resync = false
	for _, rec := range w.seals.SyncRange(c.center, c.radius) {
		if !w.sendData(c, sealMsg(w.env.Tick, rec)) {
			return
		}
	}
}

func (w *World) sendData(c *observerClient, v any) bool {
	b, err := json.Marshal(v)
	if err != nil {
		return true
	}
	select {
	case c.dataOut <- b:
		return true
	default:
		c.resync = true
		return false
	}
}

// onSealRecord replicates a seal change to every observer whose range covers it.
func (w *World) onSealRecord(rec snapshot.SealV1) {
	if len(w.observers) == 0 {
		return
	}
	pos := geom.FromArray(rec.Pos)
	var msg any
	if rec.Type == "" {
		msg = observerproto.SealRemovedMsg{
			Type:            observerproto.TypeSealRemoved,
			ProtocolVersion: observerproto.Version,
			Tick:            w.env.Tick,
			Pos:             rec.Pos,
			Face:            rec.Face,
		}
	} else {
		msg = sealMsg(w.env.Tick, rec)
	}
	for _, id := range w.observerIDs() {
		c := w.observers[id]
		if c.resync || !c.covers(pos) {
			continue
		}
		w.sendData(c, msg)
	}
}

func (w *World) observerIDs() []string {
	ids := make([]string, 0, len(w.observers))
	for id := range w.observers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (w *World) stepObservers(nowTick uint64, stats tasks.Stats) {
	if len(w.observers) == 0 {
		return
	}
	msg := observerproto.TickMsg{
		Type:            observerproto.TypeTick,
		ProtocolVersion: observerproto.Version,
		Tick:            nowTick,
		Tasks: observerproto.TaskCounts{
			Live:     stats.Live,
			Pending:  stats.Pending,
			Reserved: stats.Reserved,
			Requests: w.board.Len(),
		},
	}
	for _, g := range w.golems.All() {
		gs := observerproto.GolemState{
			ID:     g.ID(),
			Name:   g.Name,
			Pos:    g.Pos().Array(),
			Traits: g.Traits().Sorted(),
			TaskID: g.Task(),
		}
		if g.Task() != 0 {
			if p, ok := w.targetPos(g.Target()); ok {
				gs.Target = p.Array()
			}
		}
		msg.Golems = append(msg.Golems, gs)
	}
	for _, a := range w.audits {
		msg.Audits = append(msg.Audits, observerproto.AuditEntry(a))
	}
	for _, e := range w.taskEvents {
		msg.Events = append(msg.Events, observerproto.TaskEvent{
			TaskID: e.TaskID,
			Origin: e.Origin,
			Reason: e.Reason,
			Worker: e.Worker,
		})
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	for _, id := range w.observerIDs() {
		c := w.observers[id]
		if c.resync {
			w.syncObserver(c)
		}
		sendLatest(c.tickOut, b)
	}
}

func (w *World) targetPos(t tasks.Target) (geom.Vec3i, bool) {
	if !t.IsEntity() {
		return t.Pos, true
	}
	e, ok := w.store.Entity(t.EntityID)
	return e.Pos, ok
}

func sealMsg(tick uint64, rec snapshot.SealV1) observerproto.SealMsg {
	st := observerproto.SealState{
		Pos:      rec.Pos,
		Face:     rec.Face,
		Type:     rec.Type,
		Priority: rec.Priority,
		Color:    rec.Color,
		Locked:   rec.Locked,
		Inhibit:  rec.Inhibit,
		Owner:    rec.Owner,
		Area:     rec.Area,
		Toggles:  rec.Toggles,
	}
	if f := rec.Filter; f != nil {
		fs := &observerproto.FilterState{
			Whitelist:  f.Whitelist,
			StrictMeta: f.StrictMeta,
			StrictData: f.StrictData,
			MatchTags:  f.MatchTags,
			MatchGroup: f.MatchGroup,
		}
		for _, s := range f.Slots {
			fs.Slots = append(fs.Slots, observerproto.FilterSlot{
				Item:     s.Template.Item,
				Meta:     s.Template.Meta,
				Data:     s.Template.Data,
				Quantity: s.Quantity,
			})
		}
		st.Filter = fs
	}
	return observerproto.SealMsg{
		Type:            observerproto.TypeSeal,
		ProtocolVersion: observerproto.Version,
		Tick:            tick,
		Seal:            st,
	}
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
