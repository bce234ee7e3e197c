package main

import (
	"fmt"
	"io"

	"golemcraft.ai/internal/persistence/offsite"
	"golemcraft.ai/internal/sim/world"
)

// writeMetrics renders m in the Prometheus text exposition format.
func writeMetrics(out io.Writer, worldID string, m world.WorldMetrics) {
	gauge := func(name, help string, v any) {
		fmt.Fprintf(out, "# HELP golemcraft_%s %s\n", name, help)
		fmt.Fprintf(out, "# TYPE golemcraft_%s gauge\n", name)
		fmt.Fprintf(out, "golemcraft_%s{world=%q} %v\n", name, worldID, v)
	}
	gauge("world_tick", "Current world tick.", m.Tick)
	gauge("world_seals", "Live seals.", m.Seals)
	gauge("world_golems", "Golems in the world.", m.Golems)
	gauge("world_busy_golems", "Golems holding a task.", m.BusyGolems)
	gauge("world_observers", "Connected observer sessions.", m.Observers)
	gauge("world_entities", "Loose items and creatures.", m.Entities)
	gauge("provision_requests", "Provision requests on the board.", m.Requests)
	gauge("tasks_live", "Pending plus reserved tasks.", m.Tasks.Live)
	gauge("tasks_pending", "Pending tasks.", m.Tasks.Pending)
	gauge("tasks_reserved", "Reserved tasks.", m.Tasks.Reserved)
	fmt.Fprintf(out, "golemcraft_world_step_ms{world=%q} %.3f\n", worldID, m.StepMS)

	fmt.Fprintf(out, "# HELP golemcraft_tasks_total Task lifecycle transitions since start.\n")
	fmt.Fprintf(out, "# TYPE golemcraft_tasks_total counter\n")
	t := m.Tasks.Totals
	for _, kv := range []struct {
		event string
		n     uint64
	}{
		{"created", t.Created},
		{"reserved", t.Reserved},
		{"released", t.Released},
		{"completed", t.Completed},
		{"expired", t.Expired},
		{"suspended", t.Suspended},
		{"removed", t.Removed},
	} {
		fmt.Fprintf(out, "golemcraft_tasks_total{world=%q,event=%q} %d\n", worldID, kv.event, kv.n)
	}

	fmt.Fprintf(out, "# HELP golemcraft_world_queue_depth Channel backlog depth.\n")
	fmt.Fprintf(out, "# TYPE golemcraft_world_queue_depth gauge\n")
	fmt.Fprintf(out, "golemcraft_world_queue_depth{world=%q,queue=%q} %d\n", worldID, "control", m.QueueDepths.Control)
	fmt.Fprintf(out, "golemcraft_world_queue_depth{world=%q,queue=%q} %d\n", worldID, "query", m.QueueDepths.Query)
	fmt.Fprintf(out, "golemcraft_world_queue_depth{world=%q,queue=%q} %d\n", worldID, "observer", m.QueueDepths.Observer)
}

func writeOffsiteMetrics(out io.Writer, worldID string, s offsite.Stats) {
	fmt.Fprintf(out, "# HELP golemcraft_offsite_snapshots_total Snapshot copies by outcome.\n")
	fmt.Fprintf(out, "# TYPE golemcraft_offsite_snapshots_total counter\n")
	for _, kv := range []struct {
		outcome string
		n       uint64
	}{
		{"queued", s.Queued},
		{"dropped", s.Dropped},
		{"uploaded", s.Uploaded},
		{"failed", s.Failed},
	} {
		fmt.Fprintf(out, "golemcraft_offsite_snapshots_total{world=%q,outcome=%q} %d\n", worldID, kv.outcome, kv.n)
	}
	fmt.Fprintf(out, "golemcraft_offsite_last_tick{world=%q} %d\n", worldID, s.LastTick)
}
