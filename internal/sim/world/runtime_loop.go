package world

import (
	"context"
	"time"
)

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pending []ControlRequest

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.control:
			pending = append(pending, req)
		case fn := <-w.query:
			fn()
		case req := <-w.observerJoin:
			w.handleObserverJoin(req)
		case req := <-w.observerSub:
			w.handleObserverSubscribe(req)
		case id := <-w.observerLeave:
			w.handleObserverLeave(id)
		case <-ticker.C:
			w.step(pending)
			pending = pending[:0]
		}
	}
}

func (w *World) Stop() { close(w.stop) }

// StepOnce applies cmds and advances the world by a single tick using the same
// ordering as the loop. It is meant for tests and tools that drive the world
// without Run.
func (w *World) StepOnce(cmds ...Command) []Result {
	reqs := make([]ControlRequest, len(cmds))
	for i, c := range cmds {
		reqs[i] = ControlRequest{Cmd: c, Resp: make(chan Result, 1)}
	}
	w.step(reqs)
	out := make([]Result, len(reqs))
	for i, r := range reqs {
		out[i] = <-r.Resp
	}
	return out
}

// step runs one tick:
// commands -> seals -> golems -> queue -> provision sweep -> crops -> logs,
// observers -> snapshot.
func (w *World) step(cmds []ControlRequest) {
	stepStart := time.Now()
	nowTick := w.tick.Load()
	w.env.Tick = nowTick

	w.audits = w.audits[:0]
	w.taskEvents = w.taskEvents[:0]

	for _, req := range cmds {
		res := req.Cmd.apply(w)
		res.Tick = nowTick
		if req.Resp != nil {
			req.Resp <- res
		}
	}

	w.seals.Tick(nowTick)
	dispatch := w.golems.Tick(nowTick)
	w.queue.Tick(w.validTask)

	if every := w.cfg.ProvisionSweepEvery; every > 0 && nowTick%uint64(every) == 0 {
		if gone := w.board.Sweep(nowTick, w.queue.Exists); len(gone) > 0 {
			w.logger.Printf("provision sweep: %d request(s) dropped", len(gone))
		}
	}
	if every := w.cfg.CropGrowEvery; every > 0 && nowTick != 0 && nowTick%uint64(every) == 0 {
		w.store.GrowCrops()
	}

	stats := w.queue.Stats()
	entry := TickLogEntry{
		Tick:     nowTick,
		Created:  stats.Totals.Created - w.lastCreated,
		Removed:  append([]TaskEvent(nil), w.taskEvents...),
		Dispatch: dispatch,
		Live:     stats.Live,
		Requests: w.board.Len(),
	}
	w.lastCreated = stats.Totals.Created
	if w.tickLogger != nil && !entry.quiet() {
		_ = w.tickLogger.WriteTick(entry)
	}
	if w.auditLogger != nil {
		for _, a := range w.audits {
			_ = w.auditLogger.WriteAudit(a)
		}
	}

	w.stepObservers(nowTick, stats)

	// Snapshot every N ticks, starting after tick 0.
	if w.snapshotSink != nil && nowTick != 0 && w.cfg.SnapshotEveryTicks > 0 {
		if nowTick%uint64(w.cfg.SnapshotEveryTicks) == 0 {
			snap := w.ExportSnapshot(nowTick)
			select {
			case w.snapshotSink <- snap:
			default:
				w.logger.Printf("snapshot sink busy; skipped tick %d", nowTick)
			}
		}
	}

	stepMS := float64(time.Since(stepStart).Microseconds()) / 1000.0
	nextTick := w.tick.Add(1)
	w.storeMetrics(nextTick, stats, dispatch, stepMS)
}
