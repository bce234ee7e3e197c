package items

import "testing"

func TestSlotInventory_InsertMergesThenFills(t *testing.T) {
	inv := NewSlotInventory(2)
	inv.MaxStack = 10
	if rest := inv.Insert(Of("STONE", 7), false); !rest.IsEmpty() {
		t.Fatalf("unexpected rest %v", rest)
	}
	rest := inv.Insert(Of("STONE", 8), false)
	if !rest.IsEmpty() {
		t.Fatalf("unexpected rest %v", rest)
	}
	if inv.Slot(0).Count != 10 || inv.Slot(1).Count != 5 {
		t.Fatalf("slots=%v", inv.Slots)
	}
	rest = inv.Insert(Of("STONE", 9), false)
	if rest.Count != 4 {
		t.Fatalf("rest=%d want=4", rest.Count)
	}
	if rest2 := inv.Insert(Of("DIRT", 1), false); rest2.Count != 1 {
		t.Fatalf("full inventory must reject other kinds, rest=%v", rest2)
	}
}

func TestSlotInventory_SimulateDoesNotMutate(t *testing.T) {
	inv := NewSlotInventory(1)
	inv.Insert(Of("LOG", 3), false)
	_ = inv.Insert(Of("LOG", 5), true)
	got := inv.Extract(0, 2, true)
	if got.Count != 2 || inv.Slot(0).Count != 3 {
		t.Fatalf("simulate mutated inventory: %v", inv.Slots)
	}
	if Capacity(inv, Of("LOG", 1), 100) != 61 {
		t.Fatalf("capacity=%d want=61", Capacity(inv, Of("LOG", 1), 100))
	}
}

func TestExtractMatching(t *testing.T) {
	inv := NewSlotInventory(3)
	inv.Slots[0] = Of("DIRT", 4)
	inv.Slots[1] = Of("SEEDS", 2)
	inv.Slots[2] = Of("SEEDS", 5)
	got := ExtractMatching(inv, 6, func(s Stack) bool { return s.Item == "SEEDS" }, false)
	if got.Item != "SEEDS" || got.Count != 6 {
		t.Fatalf("got=%v", got)
	}
	if Count(inv, func(s Stack) bool { return s.Item == "SEEDS" }) != 1 {
		t.Fatalf("expected one seed left, slots=%v", inv.Slots)
	}
}
