package seals

import (
	"fmt"

	"golemcraft.ai/internal/persistence/snapshot"
	"golemcraft.ai/internal/sim/filter"
	"golemcraft.ai/internal/sim/geom"
	"golemcraft.ai/internal/sim/items"
)

// Tombstone is the replicated record for a removed seal.
func Tombstone(a geom.Anchor) snapshot.SealV1 {
	return snapshot.SealV1{Pos: a.Pos.Array(), Face: a.Face.String()}
}

// Record serializes s.
func (m *Manager) Record(s *Seal) snapshot.SealV1 {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := recordOf(s)
	if err != nil {
		m.logger.Printf("seal %s %s: marshal config: %v", s.Key(), s.Anchor, err)
	}
	return rec
}

func recordOf(s *Seal) (snapshot.SealV1, error) {
	rec := snapshot.SealV1{
		Pos:      s.Anchor.Pos.Array(),
		Face:     s.Anchor.Face.String(),
		Type:     s.Key(),
		Priority: s.Priority,
		Color:    s.Color,
		Locked:   s.Locked,
		Inhibit:  s.Inhibit,
		Owner:    s.Owner,
	}
	if s.Areal() {
		area := s.Area.Array()
		rec.Area = &area
	}
	if s.Filter != nil {
		rec.Filter = FilterToV1(s.Filter)
	}
	if tg, ok := s.Behavior.(Toggled); ok {
		rec.Toggles = map[string]bool{}
		for k, v := range tg.Toggles() {
			rec.Toggles[k] = v
		}
	}
	cfg, err := s.Behavior.MarshalConfig()
	if err != nil {
		return rec, err
	}
	rec.Config = cfg
	return rec, nil
}

// Export serializes every seal ordered by anchor.
func (m *Manager) Export() []snapshot.SealV1 {
	all := m.All()
	out := make([]snapshot.SealV1, 0, len(all))
	for _, s := range all {
		out = append(out, m.Record(s))
	}
	return out
}

// Import restores seals from records. Records with an unknown type or corrupt
// configuration are skipped with a warning; the rest still load.
func (m *Manager) Import(recs []snapshot.SealV1) (loaded, skipped int) {
	for _, rec := range recs {
		s, err := m.restore(rec)
		if err != nil {
			skipped++
			m.logger.Printf("seal import: skipping %s at %v/%s: %v", rec.Type, rec.Pos, rec.Face, err)
			m.audit(Audit{Action: AuditDrop, Anchor: anchorOf(rec), Type: rec.Type, Reason: err.Error()})
			continue
		}
		loaded++
		m.publish(m.Record(s))
	}
	return loaded, skipped
}

func anchorOf(rec snapshot.SealV1) geom.Anchor {
	face, _ := geom.ParseFacing(rec.Face)
	return geom.Anchor{Pos: geom.FromArray(rec.Pos), Face: face}
}

func (m *Manager) restore(rec snapshot.SealV1) (*Seal, error) {
	face, ok := geom.ParseFacing(rec.Face)
	if !ok {
		return nil, fmt.Errorf("%w: facing %q", ErrBadConfig, rec.Face)
	}
	b, err := m.reg.New(rec.Type)
	if err != nil {
		return nil, err
	}
	if len(rec.Config) > 0 {
		if err := b.UnmarshalConfig(rec.Config); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadConfig, err)
		}
	}
	s := &Seal{
		Anchor:     geom.Anchor{Pos: geom.FromArray(rec.Pos), Face: face},
		Behavior:   b,
		Priority:   rec.Priority,
		Color:      rec.Color,
		Locked:     rec.Locked,
		Inhibit:    rec.Inhibit,
		Owner:      rec.Owner,
		PlacedTick: m.env.Tick,
	}
	if ar, ok := b.(Areal); ok {
		s.Area = clampArea(ar.DefaultArea())
		if rec.Area != nil {
			s.Area = clampArea(geom.FromArray(*rec.Area))
		}
	}
	if f, ok := b.(Filtered); ok {
		if rec.Filter != nil {
			s.Filter = FilterFromV1(rec.Filter)
		} else {
			s.Filter = f.NewFilter(m.env.Config.FilterSize)
		}
		if adj, ok := b.(FilterAdjuster); ok {
			adj.AdjustFilter(s.Filter)
		}
	}
	if tg, ok := b.(Toggled); ok {
		for k, v := range rec.Toggles {
			tg.SetToggle(k, v)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seals[s.Anchor]; ok {
		return nil, ErrOccupied
	}
	m.seals[s.Anchor] = s
	return s, nil
}

func StackToV1(s items.Stack) snapshot.StackV1 {
	return snapshot.StackV1{Item: s.Item, Meta: s.Meta, Data: s.Data, Count: s.Count}
}

func StackFromV1(s snapshot.StackV1) items.Stack {
	return items.Stack{Item: s.Item, Meta: s.Meta, Data: s.Data, Count: s.Count}
}

func FilterToV1(f *filter.Filter) *snapshot.FilterV1 {
	out := &snapshot.FilterV1{
		Slots:      make([]snapshot.FilterSlotV1, len(f.Slots)),
		Whitelist:  f.Whitelist,
		StrictMeta: f.StrictMeta,
		StrictData: f.StrictData,
		MatchTags:  f.MatchTags,
		MatchGroup: f.MatchGroup,
	}
	for i, sl := range f.Slots {
		out.Slots[i] = snapshot.FilterSlotV1{Template: StackToV1(sl.Template), Quantity: sl.Quantity}
	}
	return out
}

func FilterFromV1(v *snapshot.FilterV1) *filter.Filter {
	f := &filter.Filter{
		Slots:      make([]filter.Slot, len(v.Slots)),
		Whitelist:  v.Whitelist,
		StrictMeta: v.StrictMeta,
		StrictData: v.StrictData,
		MatchTags:  v.MatchTags,
		MatchGroup: v.MatchGroup,
	}
	for i, sl := range v.Slots {
		f.Slots[i] = filter.Slot{Template: StackFromV1(sl.Template), Quantity: sl.Quantity}
	}
	return f
}
