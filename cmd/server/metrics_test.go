package main

import (
	"strings"
	"testing"

	"golemcraft.ai/internal/persistence/offsite"
	"golemcraft.ai/internal/sim/tasks"
	"golemcraft.ai/internal/sim/world"
)

func TestWriteMetrics(t *testing.T) {
	var b strings.Builder
	writeMetrics(&b, "w1", world.WorldMetrics{
		Tick:   42,
		Seals:  3,
		Golems: 2,
		Tasks:  tasks.Stats{Live: 5, Totals: tasks.Counters{Created: 9, Completed: 4}},
		StepMS: 1.5,
	})
	out := b.String()
	for _, want := range []string{
		`golemcraft_world_tick{world="w1"} 42`,
		`golemcraft_world_seals{world="w1"} 3`,
		`golemcraft_tasks_live{world="w1"} 5`,
		`golemcraft_tasks_total{world="w1",event="completed"} 4`,
		`golemcraft_world_step_ms{world="w1"} 1.500`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestWriteOffsiteMetrics(t *testing.T) {
	var b strings.Builder
	writeOffsiteMetrics(&b, "w1", offsite.Stats{Queued: 3, Uploaded: 2, Failed: 1, LastTick: 300})
	out := b.String()
	for _, want := range []string{
		`golemcraft_offsite_snapshots_total{world="w1",outcome="uploaded"} 2`,
		`golemcraft_offsite_snapshots_total{world="w1",outcome="failed"} 1`,
		`golemcraft_offsite_last_tick{world="w1"} 300`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}
