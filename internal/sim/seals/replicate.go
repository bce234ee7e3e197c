package seals

import (
	"sort"

	"golemcraft.ai/internal/persistence/snapshot"
	"golemcraft.ai/internal/sim/geom"
)

// Subscribe registers fn to receive every seal record pushed on placement,
// configuration, import and removal (tombstones). fn runs synchronously on the
// caller's goroutine and must not block.
func (m *Manager) Subscribe(fn func(snapshot.SealV1)) int {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	m.nextSub++
	m.subs[m.nextSub] = fn
	return m.nextSub
}

func (m *Manager) Unsubscribe(id int) {
	m.subMu.Lock()
	delete(m.subs, id)
	m.subMu.Unlock()
}

func (m *Manager) publish(rec snapshot.SealV1) {
	m.subMu.Lock()
	ids := make([]int, 0, len(m.subs))
	for id := range m.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(snapshot.SealV1), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, m.subs[id])
	}
	m.subMu.Unlock()
	for _, fn := range fns {
		fn(rec)
	}
}

// SyncRange returns full records for every seal near center, for an observer
// that just joined or moved.
func (m *Manager) SyncRange(center geom.Vec3i, radius int) []snapshot.SealV1 {
	ss := m.InRange(center, radius)
	out := make([]snapshot.SealV1, 0, len(ss))
	for _, s := range ss {
		out = append(out, m.Record(s))
	}
	return out
}
