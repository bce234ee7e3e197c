package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Tick    uint64 `json:"tick"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	TickRate           int `json:"tick_rate_hz"`
	SnapshotEveryTicks int `json:"snapshot_every_ticks,omitempty"`

	Seals      []SealV1      `json:"seals"`
	Golems     []GolemV1     `json:"golems"`
	Blocks     []BlockV1     `json:"blocks"`
	Entities   []EntityV1    `json:"entities"`
	Containers []ContainerV1 `json:"containers"`

	Counters CountersV1 `json:"counters"`
}

type CountersV1 struct {
	NextTask    uint64 `json:"next_task"`
	NextEntity  uint64 `json:"next_entity"`
	NextRequest uint64 `json:"next_request"`
}

type StackV1 struct {
	Item  string `json:"item"`
	Meta  int    `json:"meta,omitempty"`
	Data  string `json:"data,omitempty"`
	Count int    `json:"count"`
}

type FilterSlotV1 struct {
	Template StackV1 `json:"template"`
	Quantity int     `json:"quantity,omitempty"`
}

type FilterV1 struct {
	Slots      []FilterSlotV1 `json:"slots"`
	Whitelist  bool           `json:"whitelist,omitempty"`
	StrictMeta bool           `json:"strict_meta,omitempty"`
	StrictData bool           `json:"strict_data,omitempty"`
	MatchTags  bool           `json:"match_tags,omitempty"`
	MatchGroup bool           `json:"match_group,omitempty"`
}

// SealV1 is the persisted and replicated form of a placed seal. A record with an
// empty Type is a removal tombstone for its anchor.
type SealV1 struct {
	Pos  [3]int `json:"pos"`
	Face string `json:"face"`
	Type string `json:"type,omitempty"`

	Priority int    `json:"priority"`
	Color    int    `json:"color,omitempty"`
	Locked   bool   `json:"locked,omitempty"`
	Inhibit  bool   `json:"inhibit,omitempty"`
	Owner    string `json:"owner,omitempty"`

	Area    *[3]int         `json:"area,omitempty"`
	Filter  *FilterV1       `json:"filter,omitempty"`
	Toggles map[string]bool `json:"toggles,omitempty"`
	// Config is behavior-specific state in the behavior's own encoding.
	Config []byte `json:"config,omitempty"`
}

type GolemV1 struct {
	ID         string    `json:"id"`
	Name       string    `json:"name,omitempty"`
	Pos        [3]int    `json:"pos"`
	Home       [3]int    `json:"home"`
	HomeRadius int       `json:"home_radius"`
	Traits     []string  `json:"traits"`
	Inventory  []StackV1 `json:"inventory"`
	Held       StackV1   `json:"held"`
}

type BlockV1 struct {
	Pos [3]int `json:"pos"`
	ID  string `json:"id"`
	Age int    `json:"age,omitempty"`
}

type EntityV1 struct {
	ID      string  `json:"id"`
	Kind    string  `json:"kind"`
	Species string  `json:"species,omitempty"`
	Pos     [3]int  `json:"pos"`
	Item    StackV1 `json:"item,omitempty"`
	HP      int     `json:"hp,omitempty"`
	Adult   bool    `json:"adult,omitempty"`
	Owner   string  `json:"owner,omitempty"`
}

type ContainerV1 struct {
	Pos   [3]int    `json:"pos"`
	Slots []StackV1 `json:"slots"`
}

func WriteSnapshot(path string, snap SnapshotV1) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	if snap.Header.Version == 0 {
		snap.Header.Version = Version
	}
	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// Header line is informational; gob carries it too.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("snapshot header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("snapshot version %d not supported", snap.Header.Version)
	}
	return snap, nil
}

// ReadHeader decodes only the leading JSON header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()
	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, err
	}
	err = json.Unmarshal(line, &h)
	return h, err
}

var ErrNoSnapshot = errors.New("snapshot: none found")

// FileName is the canonical name for a snapshot taken at tick.
func FileName(tick uint64) string {
	return strconv.FormatUint(tick, 10) + ".snap.zst"
}

// Latest returns the path of the snapshot with the highest tick in dir.
func Latest(dir string) (string, uint64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", 0, ErrNoSnapshot
		}
		return "", 0, err
	}
	type cand struct {
		name string
		tick uint64
	}
	var list []cand
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".snap.zst") {
			continue
		}
		n, err := strconv.ParseUint(strings.TrimSuffix(e.Name(), ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		list = append(list, cand{name: e.Name(), tick: n})
	}
	if len(list) == 0 {
		return "", 0, ErrNoSnapshot
	}
	sort.Slice(list, func(i, j int) bool { return list[i].tick > list[j].tick })
	return filepath.Join(dir, list[0].name), list[0].tick, nil
}
