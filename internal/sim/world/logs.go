package world

import "golemcraft.ai/internal/sim/golem"

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

// TickLogEntry summarizes the task lifecycle of one tick. Quiet ticks are not
// logged.
type TickLogEntry struct {
	Tick     uint64      `json:"tick"`
	Created  uint64      `json:"created"`
	Removed  []TaskEvent `json:"removed,omitempty"`
	Dispatch golem.Stats `json:"dispatch"`
	Live     int         `json:"live"`
	Requests int         `json:"requests"`
}

func (e TickLogEntry) quiet() bool {
	d := e.Dispatch
	return e.Created == 0 && len(e.Removed) == 0 && d.Started == 0 && d.Completed == 0 && d.Abandoned == 0
}

// TaskEvent is a task leaving the queue.
type TaskEvent struct {
	TaskID uint64 `json:"task_id"`
	Origin [3]int `json:"origin"`
	Face   string `json:"face"`
	Target string `json:"target"`
	Reason string `json:"reason"`
	Worker string `json:"worker,omitempty"`
}

// AuditEntry records a seal lifecycle event (PLACE, REMOVE, CONFIGURE, DROP,
// INVALID, PANIC).
type AuditEntry struct {
	Tick   uint64 `json:"tick"`
	Actor  string `json:"actor"`
	Action string `json:"action"`
	Pos    [3]int `json:"pos"`
	Face   string `json:"face"`
	Type   string `json:"type"`
	Reason string `json:"reason,omitempty"`
}
