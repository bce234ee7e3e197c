package tasks

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"golemcraft.ai/internal/sim/geom"
)

var origin = geom.Anchor{Pos: geom.Vec3i{X: 0, Y: 64, Z: 0}, Face: geom.Up}

func TestQueue_InsertAllocatesMonotonicIDs(t *testing.T) {
	q := NewQueue(0)
	a := q.Insert(Task{Origin: origin, Target: AtPos(geom.Vec3i{X: 1})})
	b := q.Insert(Task{Origin: origin, Target: AtPos(geom.Vec3i{X: 2})})
	if a != 1 || b != 2 {
		t.Fatalf("ids=%d,%d want 1,2", a, b)
	}
	got, ok := q.Get(a)
	if !ok || got.State != Pending || got.Lifespan != DefaultLifespan {
		t.Fatalf("inserted task=%+v ok=%v", got, ok)
	}
	q.SetNextID(10)
	if c := q.Insert(Task{Origin: origin}); c != 11 {
		t.Fatalf("after SetNextID(10) id=%d want 11", c)
	}
	q.SetNextID(5)
	if q.NextID() != 11 {
		t.Fatalf("SetNextID moved backwards")
	}
}

func TestQueue_ReserveExclusivity(t *testing.T) {
	q := NewQueue(0)
	id := q.Insert(Task{Origin: origin})

	const workers = 64
	var wins atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			if q.Reserve(id, fmt.Sprintf("G%d", i)) {
				wins.Add(1)
			}
		}(i)
	}
	close(start)
	wg.Wait()
	if wins.Load() != 1 {
		t.Fatalf("reserve winners=%d want=1", wins.Load())
	}
	if q.Reserve(id, "late") {
		t.Fatalf("reserved task must not be reservable")
	}
}

func TestQueue_ReleaseRequiresHolder(t *testing.T) {
	q := NewQueue(0)
	id := q.Insert(Task{Origin: origin})
	if !q.Reserve(id, "G1") {
		t.Fatalf("reserve failed")
	}
	if q.Release(id, "G2") {
		t.Fatalf("non-holder released task")
	}
	if !q.Release(id, "G1") {
		t.Fatalf("holder could not release")
	}
	if st, _ := q.StateOf(id); st != Pending {
		t.Fatalf("state after release=%s", st)
	}
	if !q.Reserve(id, "G2") {
		t.Fatalf("released task should be re-offered")
	}
}

func TestQueue_HolderAccessors(t *testing.T) {
	q := NewQueue(0)
	id := q.Insert(Task{Origin: origin})
	if w, ok := q.WorkerOf(id); ok {
		t.Fatalf("pending task held by %q", w)
	}
	if _, ok := q.HeldBy(id, "G1"); ok {
		t.Fatalf("pending task reported as held")
	}
	q.Reserve(id, "G1")
	if w, ok := q.WorkerOf(id); !ok || w != "G1" {
		t.Fatalf("worker=%q ok=%v want G1", w, ok)
	}
	if _, ok := q.HeldBy(id, "G2"); ok {
		t.Fatalf("task held by the wrong worker")
	}
	if got, ok := q.HeldBy(id, "G1"); !ok || got.ID != id {
		t.Fatalf("held=%+v ok=%v", got, ok)
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				q.WorkerOf(id)
				q.StateOf(id)
			}
		}
	}()
	for i := 0; i < 100; i++ {
		q.Release(id, "G1")
		q.Reserve(id, "G1")
	}
	close(stop)
	wg.Wait()

	q.Suspend(id)
	if _, ok := q.WorkerOf(id); ok {
		t.Fatalf("suspended task still held")
	}
}

func TestQueue_LifespanMonotonicity(t *testing.T) {
	q := NewQueue(0)
	id := q.Insert(Task{Origin: origin, Lifespan: 4})

	var removed []RemoveReason
	q.SetOnRemove(func(task Task, reason RemoveReason) { removed = append(removed, reason) })

	prev := 4
	for i := 0; i < 3; i++ {
		q.Tick(nil)
		task, ok := q.Get(id)
		if !ok {
			t.Fatalf("task vanished early at tick %d", i)
		}
		if task.Lifespan >= prev {
			t.Fatalf("lifespan did not decrease: %d -> %d", prev, task.Lifespan)
		}
		prev = task.Lifespan
	}
	q.Tick(nil)
	if _, ok := q.Get(id); ok {
		t.Fatalf("expired task still present")
	}
	if len(removed) != 1 || removed[0] != ReasonExpired {
		t.Fatalf("removals=%v", removed)
	}
}

func TestQueue_InvalidTasksAreSuspendedThenSwept(t *testing.T) {
	q := NewQueue(0)
	good := q.Insert(Task{Origin: origin, Data: 1})
	bad := q.Insert(Task{Origin: origin, Data: 2})

	var reasons = map[uint64]RemoveReason{}
	q.SetOnRemove(func(task Task, reason RemoveReason) { reasons[task.ID] = reason })

	q.Tick(func(task *Task) bool { return task.Data == 1 })
	if st, ok := q.StateOf(bad); !ok || st != Suspended {
		t.Fatalf("bad task state=%v ok=%v", st, ok)
	}
	if q.Reserve(bad, "G1") {
		t.Fatalf("suspended task must not be reservable")
	}
	q.Tick(nil)
	if _, ok := q.Get(bad); ok {
		t.Fatalf("suspended task survived sweep")
	}
	if reasons[bad] != ReasonSuspended {
		t.Fatalf("reason=%q", reasons[bad])
	}
	if !q.Exists(good) {
		t.Fatalf("valid task removed")
	}
}

func TestQueue_CandidatesOrdering(t *testing.T) {
	q := NewQueue(0)
	far := q.Insert(Task{Origin: origin, Target: AtPos(geom.Vec3i{X: 10}), Priority: 0})
	near := q.Insert(Task{Origin: origin, Target: AtPos(geom.Vec3i{X: 1}), Priority: 0})
	urgent := q.Insert(Task{Origin: origin, Target: AtPos(geom.Vec3i{X: 50}), Priority: 5})
	other := geom.Anchor{Pos: geom.Vec3i{X: 9}, Face: geom.Up}
	foreign := q.Insert(Task{Origin: other, Target: AtPos(geom.Vec3i{X: 0})})
	ent := q.Insert(Task{Origin: origin, Target: OnEntity("E1")})
	lost := q.Insert(Task{Origin: origin, Target: OnEntity("E404")})
	taken := q.Insert(Task{Origin: origin, Target: AtPos(geom.Vec3i{})})
	q.Reserve(taken, "G9")

	locate := func(tg Target) (geom.Vec3i, bool) {
		if tg.EntityID == "E1" {
			return geom.Vec3i{X: 5}, true
		}
		return geom.Vec3i{}, false
	}
	got := q.Candidates(geom.Vec3i{}, CandidateOpts{Locate: locate})
	want := []uint64{urgent, foreign, near, ent, far}
	if len(got) != len(want) {
		t.Fatalf("got %d candidates want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ID != want[i] {
			t.Fatalf("candidate[%d]=%d want=%d", i, got[i].ID, want[i])
		}
	}
	_ = lost

	onlyOrigin := q.Candidates(geom.Vec3i{}, CandidateOpts{Origin: &other, Locate: locate})
	if len(onlyOrigin) != 1 || onlyOrigin[0].ID != foreign {
		t.Fatalf("origin filter returned %d", len(onlyOrigin))
	}
}

func TestQueue_SuspendOriginAndComplete(t *testing.T) {
	q := NewQueue(0)
	a := q.Insert(Task{Origin: origin})
	b := q.Insert(Task{Origin: origin})
	q.Reserve(b, "G1")
	if n := q.SuspendOrigin(origin); n != 2 {
		t.Fatalf("suspended=%d want=2", n)
	}
	if q.Suspend(a) {
		t.Fatalf("double suspend reported success")
	}

	c := q.Insert(Task{Origin: origin})
	var got RemoveReason
	q.SetOnRemove(func(task Task, reason RemoveReason) {
		if task.ID == c {
			got = reason
		}
	})
	if !q.Complete(c) || got != ReasonCompleted {
		t.Fatalf("complete reason=%q", got)
	}
	if q.Complete(c) {
		t.Fatalf("completing twice must fail")
	}
	st := q.Stats()
	if st.Totals.Completed != 1 || st.Totals.Created != 3 {
		t.Fatalf("stats=%+v", st)
	}
}
