package world

import (
	"golemcraft.ai/internal/sim/golem"
	"golemcraft.ai/internal/sim/tasks"
)

// WorldMetrics is a thread-safe read-only view of key world runtime signals.
// It is updated from the world loop goroutine and read from HTTP handlers/tests.
type WorldMetrics struct {
	Tick uint64 `json:"tick"`

	Seals      int `json:"seals"`
	Golems     int `json:"golems"`
	BusyGolems int `json:"busy_golems"`
	Requests   int `json:"requests"`
	Observers  int `json:"observers"`
	Entities   int `json:"entities"`
	Containers int `json:"containers"`

	Tasks    tasks.Stats `json:"tasks"`
	Dispatch golem.Stats `json:"dispatch"`

	QueueDepths QueueDepths `json:"queue_depths"`

	StepMS float64 `json:"step_ms"`
}

type QueueDepths struct {
	Control  int `json:"control"`
	Query    int `json:"query"`
	Observer int `json:"observer"`
}

func (w *World) storeMetrics(tick uint64, stats tasks.Stats, d golem.Stats, stepMS float64) {
	_, containers, entities := w.store.Counts()
	w.metrics.Store(WorldMetrics{
		Tick:       tick,
		Seals:      w.seals.Len(),
		Golems:     w.golems.Len(),
		BusyGolems: d.Busy,
		Requests:   w.board.Len(),
		Observers:  len(w.observers),
		Entities:   entities,
		Containers: containers,
		Tasks:      stats,
		Dispatch:   d,
		QueueDepths: QueueDepths{
			Control:  len(w.control),
			Query:    len(w.query),
			Observer: len(w.observerJoin) + len(w.observerSub) + len(w.observerLeave),
		},
		StepMS: stepMS,
	})
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	v := w.metrics.Load()
	if v == nil {
		return WorldMetrics{}
	}
	m, ok := v.(WorldMetrics)
	if !ok {
		return WorldMetrics{}
	}
	return m
}
