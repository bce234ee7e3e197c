package kinds

import (
	"encoding/json"
	"errors"

	"golemcraft.ai/internal/sim/geom"
	"golemcraft.ai/internal/sim/items"
	"golemcraft.ai/internal/sim/provision"
	"golemcraft.ai/internal/sim/seals"
	"golemcraft.ai/internal/sim/tasks"
	"golemcraft.ai/internal/sim/traits"
	"golemcraft.ai/internal/sim/ttlcache"
)

const (
	KeyHarvest = "HARVEST"

	harvestReap  = 0
	harvestPlant = 1
)

// Harvest reaps mature crops in its volume and, with replant on, remembers the
// spot and plants the seed again once it is empty.
type Harvest struct {
	base
	switches
	working *tracker[geom.Vec3i]
	// replant maps an emptied position to the seed that belongs there.
	replant *ttlcache.Map[geom.Vec3i, string]
	pending []replantRecord
}

type replantRecord struct {
	Pos  [3]int `json:"pos"`
	Seed string `json:"seed"`
}

func NewHarvest() *Harvest {
	return &Harvest{
		switches: newSwitches(map[string]bool{"replant": true, "provision": false}),
		working:  newTracker[geom.Vec3i](),
	}
}

func (*Harvest) Key() string             { return KeyHarvest }
func (*Harvest) New() seals.Behavior     { return NewHarvest() }
func (*Harvest) DefaultArea() geom.Vec3i { return geom.Vec3i{X: 2, Y: 0, Z: 2} }
func (*Harvest) Forbidden() traits.Set   { return traits.Of(traits.Clumsy) }

func (h *Harvest) CanPlaceAt(env *seals.Env, a geom.Anchor) bool { return solidAnchor(env, a) }

func (h *Harvest) records(env *seals.Env) *ttlcache.Map[geom.Vec3i, string] {
	if h.replant == nil {
		ttl := env.Config.ReplantTTL
		if ttl <= 0 {
			ttl = 6000
		}
		h.replant = ttlcache.New[geom.Vec3i, string](uint64(ttl))
		for _, r := range h.pending {
			h.replant.Put(geom.FromArray(r.Pos), r.Seed, env.Tick)
		}
		h.pending = nil
	}
	return h.replant
}

func (h *Harvest) mature(env *seals.Env, p geom.Vec3i) bool {
	if env.Catalog == nil {
		return false
	}
	b := env.World.Block(p)
	def, ok := env.Catalog.Block(b.ID)
	return ok && def.Crop != nil && b.Age >= def.Crop.MaxAge
}

func (h *Harvest) plantable(env *seals.Env, p geom.Vec3i) (string, bool) {
	seed, ok := h.records(env).Get(p)
	if !ok || !env.World.Block(p).IsAir() {
		return "", false
	}
	return seed, true
}

func (h *Harvest) Tick(env *seals.Env, s *seals.Seal) {
	h.working.sweep(env)
	rec := h.records(env)
	if env.SweepDue() {
		rec.Expire(env.Tick)
	}
	budget := env.Budget()
	s.Box().Each(func(p geom.Vec3i) bool {
		if h.working.has(p) {
			return true
		}
		switch {
		case h.mature(env, p):
			id := s.Emit(env, tasks.AtPos(p), harvestReap)
			h.working.add(id, p, env.Tick)
			budget--
		case h.on("replant"):
			if _, ok := h.plantable(env, p); ok {
				id := s.Emit(env, tasks.AtPos(p), harvestPlant)
				h.working.add(id, p, env.Tick)
				budget--
			}
		}
		return budget > 0
	})
}

func (h *Harvest) CanWorkerPerform(env *seals.Env, s *seals.Seal, w seals.Worker, t *tasks.Task) bool {
	p := t.Target.Pos
	if t.Data == harvestReap {
		return h.mature(env, p)
	}
	seed, ok := h.plantable(env, p)
	if !ok {
		return false
	}
	if items.Count(w.Inventory(), func(x items.Stack) bool { return x.Item == seed }) > 0 {
		return true
	}
	if h.on("provision") && env.Board != nil {
		_, err := env.Board.Add(provision.Request{
			Item:    items.Of(seed, 1),
			Dest:    provision.ToEntity(w.ID()),
			At:      s.Anchor.Pos,
			Color:   s.Color,
			Timeout: env.Tick + uint64(env.Config.ProvisionTimeout),
		})
		if err != nil && !errors.Is(err, provision.ErrDuplicate) && env.Logger != nil {
			env.Logger.Printf("harvest %s: seed request: %v", s.Anchor, err)
		}
	}
	return false
}

func (h *Harvest) OnComplete(env *seals.Env, s *seals.Seal, w seals.Worker, t *tasks.Task) bool {
	h.working.drop(t.ID)
	p := t.Target.Pos
	if t.Data == harvestReap {
		crop := env.World.Block(p).ID
		drops, ok := env.World.BreakBlock(p)
		if !ok {
			return true
		}
		giveOrDrop(env, w, p, drops)
		if h.on("replant") && env.Catalog != nil {
			if def, ok := env.Catalog.Block(crop); ok && def.Crop != nil {
				h.records(env).Put(p, def.Crop.Seed, env.Tick)
			}
		}
		return true
	}
	seed, ok := h.plantable(env, p)
	if !ok || env.Catalog == nil {
		return true
	}
	got := items.ExtractMatching(w.Inventory(), 1, func(x items.Stack) bool { return x.Item == seed }, false)
	if got.IsEmpty() {
		return true
	}
	if crop, ok := env.Catalog.CropBySeed(seed); ok {
		env.World.SetBlock(p, seals.Block{ID: crop})
		h.records(env).Delete(p)
	}
	return true
}

func (h *Harvest) OnSuspend(_ *seals.Env, _ *seals.Seal, t tasks.Task) { h.working.drop(t.ID) }

// MarshalConfig persists outstanding replant records.
func (h *Harvest) MarshalConfig() ([]byte, error) {
	var recs []replantRecord
	if h.replant != nil {
		for _, p := range h.replant.Keys(func(a, b geom.Vec3i) bool { return (geom.Anchor{Pos: a}).Less(geom.Anchor{Pos: b}) }) {
			seed, _ := h.replant.Get(p)
			recs = append(recs, replantRecord{Pos: p.Array(), Seed: seed})
		}
	} else {
		recs = h.pending
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return json.Marshal(recs)
}

func (h *Harvest) UnmarshalConfig(b []byte) error {
	var recs []replantRecord
	if err := json.Unmarshal(b, &recs); err != nil {
		return err
	}
	h.pending = recs
	h.replant = nil
	return nil
}
