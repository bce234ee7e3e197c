package tasks

import (
	"fmt"

	"golemcraft.ai/internal/sim/geom"
)

type State uint8

const (
	Pending State = iota
	Reserved
	// Suspended is terminal: the task is dropped on the next queue sweep.
	Suspended
	Completed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "PENDING"
	case Reserved:
		return "RESERVED"
	case Suspended:
		return "SUSPENDED"
	case Completed:
		return "COMPLETED"
	}
	return fmt.Sprintf("STATE(%d)", uint8(s))
}

type TargetKind uint8

const (
	TargetPos TargetKind = iota
	TargetEntity
)

// Target is either a fixed block position or a live entity reference.
type Target struct {
	Kind     TargetKind
	Pos      geom.Vec3i
	EntityID string
}

func AtPos(p geom.Vec3i) Target { return Target{Kind: TargetPos, Pos: p} }
func OnEntity(id string) Target { return Target{Kind: TargetEntity, EntityID: id} }
func (t Target) IsEntity() bool { return t.Kind == TargetEntity }

func (t Target) String() string {
	if t.IsEntity() {
		return "entity:" + t.EntityID
	}
	return "pos:" + t.Pos.String()
}

// Task is one unit of work produced by a seal.
type Task struct {
	ID     uint64
	Origin geom.Anchor
	Target Target

	Priority int
	Lifespan int
	State    State

	// Data is scratch space owned by the originating seal behavior.
	Data int
	// LinkedRequest is a provision request id (0 = none).
	LinkedRequest uint64

	// Worker is the golem holding the reservation ("" unless Reserved).
	Worker      string
	CreatedTick uint64
}

func (t *Task) Live() bool { return t.State == Pending || t.State == Reserved }

type RemoveReason string

const (
	ReasonCompleted RemoveReason = "COMPLETED"
	ReasonExpired   RemoveReason = "EXPIRED"
	ReasonSuspended RemoveReason = "SUSPENDED"
	ReasonRemoved   RemoveReason = "REMOVED"
)
