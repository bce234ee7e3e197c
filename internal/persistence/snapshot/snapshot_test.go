package snapshot

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteReadSnapshot(t *testing.T) {
	dir := t.TempDir()
	area := [3]int{2, 1, 2}
	snap := SnapshotV1{
		Header:   Header{WorldID: "w1", Tick: 42},
		TickRate: 5,
		Seals: []SealV1{{
			Pos: [3]int{1, 2, 3}, Face: "UP", Type: "PICKUP", Priority: 3, Owner: "u-1",
			Area:    &area,
			Filter:  &FilterV1{Slots: []FilterSlotV1{{Template: StackV1{Item: "LOG", Count: 1}, Quantity: 4}}, Whitelist: true},
			Toggles: map[string]bool{"pickup_all": true},
			Config:  []byte(`{"k":1}`),
		}},
		Golems:   []GolemV1{{ID: "g1", Traits: []string{"HAULER"}, Held: StackV1{Item: "COAL", Count: 2}}},
		Counters: CountersV1{NextTask: 9},
	}
	path := filepath.Join(dir, FileName(42))
	if err := WriteSnapshot(path, snap); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
	got, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Header.Version != Version || got.Header.Tick != 42 {
		t.Fatalf("header=%+v", got.Header)
	}
	s := got.Seals[0]
	if s.Type != "PICKUP" || s.Area == nil || *s.Area != area || !s.Toggles["pickup_all"] || string(s.Config) != `{"k":1}` {
		t.Fatalf("seal=%+v", s)
	}
	if s.Filter == nil || !s.Filter.Whitelist || s.Filter.Slots[0].Quantity != 4 {
		t.Fatalf("filter=%+v", s.Filter)
	}
	if got.Counters.NextTask != 9 || got.Golems[0].Held.Count != 2 {
		t.Fatalf("snapshot=%+v", got)
	}

	h, err := ReadHeader(path)
	if err != nil || h.WorldID != "w1" {
		t.Fatalf("header=%+v err=%v", h, err)
	}
}

func TestLatest(t *testing.T) {
	dir := t.TempDir()
	if _, _, err := Latest(filepath.Join(dir, "missing")); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("err=%v", err)
	}
	for _, tick := range []uint64{100, 3000, 900} {
		if err := WriteSnapshot(filepath.Join(dir, FileName(tick)), SnapshotV1{Header: Header{Tick: tick}}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	_ = os.WriteFile(filepath.Join(dir, "junk.snap.zst"), []byte("x"), 0o644)
	path, tick, err := Latest(dir)
	if err != nil || tick != 3000 || filepath.Base(path) != "3000.snap.zst" {
		t.Fatalf("latest=%s tick=%d err=%v", path, tick, err)
	}
}
