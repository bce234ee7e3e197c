package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"golemcraft.ai/internal/persistence/snapshot"
	"golemcraft.ai/internal/protocol"
	"golemcraft.ai/internal/sim/filter"
	"golemcraft.ai/internal/sim/geom"
	"golemcraft.ai/internal/sim/items"
	"golemcraft.ai/internal/sim/seals"
	"golemcraft.ai/internal/sim/traits"
	"golemcraft.ai/internal/sim/world"
)

var errBadFace = errors.New("bad face")

func anchorOf(pos [3]int, face string) (geom.Anchor, error) {
	f, ok := geom.ParseFacing(face)
	if !ok {
		return geom.Anchor{}, fmt.Errorf("%w: %q", errBadFace, face)
	}
	return geom.Anchor{Pos: geom.FromArray(pos), Face: f}, nil
}

func stackOf(s protocol.StackSpec) items.Stack {
	return items.Stack{Item: s.Item, Meta: s.Meta, Data: s.Data, Count: s.Count}
}

func filterOf(spec *protocol.FilterSpec) *filter.Filter {
	f := filter.New(len(spec.Slots))
	for i, sl := range spec.Slots {
		if sl.Item == "" {
			continue
		}
		f.Set(i, items.Stack{Item: sl.Item, Meta: sl.Meta, Data: sl.Data, Count: 1}, sl.Quantity)
	}
	f.Whitelist = spec.Whitelist
	f.StrictMeta = spec.StrictMeta
	f.StrictData = spec.StrictData
	f.MatchTags = spec.MatchTags
	f.MatchGroup = spec.MatchGroup
	return f
}

// decodeCommand turns a validated control message into a world command issued
// on behalf of actor.
func decodeCommand(actor string, typ string, raw []byte) (world.Command, error) {
	switch typ {
	case protocol.TypePlaceSeal:
		var m protocol.PlaceSealMsg
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		a, err := anchorOf(m.Pos, m.Face)
		if err != nil {
			return nil, err
		}
		cmd := world.PlaceSeal{Actor: actor, Type: m.SealType, Anchor: a, Priority: m.Priority, Color: m.Color}
		if m.Area != nil {
			area := geom.FromArray(*m.Area)
			cmd.Area = &area
		}
		return cmd, nil

	case protocol.TypeRemoveSeal:
		var m protocol.RemoveSealMsg
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		a, err := anchorOf(m.Pos, m.Face)
		if err != nil {
			return nil, err
		}
		return world.RemoveSeal{Actor: actor, Anchor: a}, nil

	case protocol.TypeConfigureSeal:
		var m protocol.ConfigureSealMsg
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		a, err := anchorOf(m.Pos, m.Face)
		if err != nil {
			return nil, err
		}
		u := seals.Update{
			Priority: m.Priority,
			Color:    m.Color,
			Locked:   m.Locked,
			Inhibit:  m.Inhibit,
			Toggles:  m.Toggles,
		}
		if m.Area != nil {
			area := geom.FromArray(*m.Area)
			u.Area = &area
		}
		if m.Filter != nil {
			u.Filter = filterOf(m.Filter)
		}
		return world.ConfigureSeal{Actor: actor, Anchor: a, Update: u}, nil

	case protocol.TypeSpawnGolem:
		var m protocol.SpawnGolemMsg
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		return world.SpawnGolem{Name: m.Name, Pos: geom.FromArray(m.Pos), Traits: traits.Parse(m.Traits), HomeRadius: m.HomeRadius}, nil

	case protocol.TypeRemoveGolem:
		var m protocol.RemoveGolemMsg
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		return world.RemoveGolem{ID: m.GolemID}, nil

	case protocol.TypeSetBlock:
		var m protocol.SetBlockMsg
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		return world.SetBlock{Pos: geom.FromArray(m.Pos), Block: m.Block}, nil

	case protocol.TypeSpawnItem:
		var m protocol.SpawnItemMsg
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		return world.SpawnItem{Pos: geom.FromArray(m.Pos), Stack: stackOf(m.Item)}, nil

	case protocol.TypeSpawnCreature:
		var m protocol.SpawnCreatureMsg
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		return world.SpawnCreature{Species: m.Species, Pos: geom.FromArray(m.Pos), Adult: m.Adult}, nil

	case protocol.TypeStock:
		var m protocol.StockMsg
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		return world.Stock{Pos: geom.FromArray(m.Pos), Stack: stackOf(m.Item)}, nil
	}
	return nil, fmt.Errorf("no command for %s", typ)
}

// codeFor maps world and seal errors onto protocol error codes.
func codeFor(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, errBadFace), errors.Is(err, world.ErrBadCommand), errors.Is(err, seals.ErrBadConfig):
		return protocol.ErrBadRequest
	case errors.Is(err, seals.ErrUnknownType):
		return protocol.ErrUnknownType
	case errors.Is(err, seals.ErrOccupied):
		return protocol.ErrConflict
	case errors.Is(err, seals.ErrCannotPlace):
		return protocol.ErrInvalidTarget
	case errors.Is(err, seals.ErrLocked):
		return protocol.ErrNoPermission
	case errors.Is(err, seals.ErrNotFound), errors.Is(err, world.ErrGolemNotFound):
		return protocol.ErrNotFound
	case errors.Is(err, world.ErrStopped), errors.Is(err, context.DeadlineExceeded):
		return protocol.ErrWorldBusy
	default:
		return protocol.ErrInternal
	}
}

func specOf(s snapshot.StackV1) protocol.StackSpec {
	return protocol.StackSpec{Item: s.Item, Meta: s.Meta, Data: s.Data, Count: s.Count}
}

// answerQuery runs a QUERY against the world loop.
func answerQuery(ctx context.Context, w *world.World, m protocol.QueryMsg) (protocol.QueryResultMsg, error) {
	res := protocol.QueryResultMsg{
		Type:            protocol.TypeResult,
		ProtocolVersion: protocol.Version,
		RequestID:       m.RequestID,
		What:            m.What,
	}
	switch m.What {
	case protocol.QuerySeals:
		recs, err := w.Seals(ctx)
		if err != nil {
			return res, err
		}
		res.Seals = make([]protocol.SealInfo, 0, len(recs))
		for _, r := range recs {
			res.Seals = append(res.Seals, protocol.SealInfo{
				Pos: r.Pos, Face: r.Face, Type: r.Type,
				Priority: r.Priority, Color: r.Color,
				Locked: r.Locked, Inhibit: r.Inhibit,
				Owner: r.Owner, Toggles: r.Toggles,
			})
		}

	case protocol.QueryGolems:
		recs, err := w.Golems(ctx)
		if err != nil {
			return res, err
		}
		res.Golems = make([]protocol.GolemInfo, 0, len(recs))
		for _, g := range recs {
			info := protocol.GolemInfo{ID: g.ID, Name: g.Name, Pos: g.Pos, Traits: g.Traits}
			for _, s := range g.Inventory {
				if s.Item != "" && s.Count > 0 {
					info.Items = append(info.Items, specOf(s))
				}
			}
			res.Golems = append(res.Golems, info)
		}

	case protocol.QueryTasks:
		ts, err := w.Tasks(ctx)
		if err != nil {
			return res, err
		}
		res.Tasks = make([]protocol.TaskInfo, 0, len(ts))
		for _, t := range ts {
			res.Tasks = append(res.Tasks, protocol.TaskInfo{
				ID:       t.ID,
				Origin:   t.Origin.Pos.Array(),
				Face:     t.Origin.Face.String(),
				Target:   t.Target.String(),
				Priority: t.Priority,
				State:    t.State.String(),
				Worker:   t.Worker,
				Lifespan: t.Lifespan,
			})
		}

	case protocol.QueryRequests:
		rs, err := w.Requests(ctx)
		if err != nil {
			return res, err
		}
		res.Requests = make([]protocol.RequestInfo, 0, len(rs))
		for _, r := range rs {
			res.Requests = append(res.Requests, protocol.RequestInfo{
				ID:    r.ID,
				Item:  protocol.StackSpec{Item: r.Item.Item, Meta: r.Item.Meta, Data: r.Item.Data, Count: r.Item.Count},
				Dest:  r.Dest.String(),
				At:    r.At.Array(),
				Color: r.Color,
				State: r.State.String(),
				Task:  r.LinkedTask,
			})
		}

	case protocol.QueryStats:
		res.Stats = w.Metrics()

	default:
		return res, fmt.Errorf("%w: unknown query %q", world.ErrBadCommand, m.What)
	}
	return res, nil
}
