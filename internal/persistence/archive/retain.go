// Package archive bounds the snapshot directory of a world. The newest
// snapshots stay in place; older ones are either copied into
// worldDir/archives/ (milestones) or deleted.
package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"golemcraft.ai/internal/persistence/snapshot"
)

type Policy struct {
	// Keep is how many of the newest snapshots are left untouched. <= 0 disables pruning.
	Keep int
	// MilestoneEvery archives a snapshot whose tick+1 is a multiple of it before
	// it is pruned. 0 disables archiving.
	MilestoneEvery uint64
}

type Meta struct {
	WorldID   string `json:"world_id"`
	Tick      uint64 `json:"tick"`
	Snapshot  string `json:"snapshot"`
	Seals     int    `json:"seals"`
	Golems    int    `json:"golems"`
	CreatedAt string `json:"created_at"`
}

type Result struct {
	Archived []string
	Deleted  []string
}

// IsMilestone reports whether a snapshot taken at tick closes a milestone
// window. Snapshots carry the last executed tick, so the window [0, every)
// closes at every-1.
func (p Policy) IsMilestone(tick uint64) bool {
	return p.MilestoneEvery > 0 && (tick+1)%p.MilestoneEvery == 0
}

// Retain applies p to snapDir. Archive copies go to worldDir/archives/tick_<N>/
// together with a meta.json read from the snapshot header.
func Retain(worldDir, snapDir string, p Policy) (Result, error) {
	var res Result
	if p.Keep <= 0 {
		return res, nil
	}
	snaps, err := list(snapDir)
	if err != nil {
		return res, err
	}
	if len(snaps) <= p.Keep {
		return res, nil
	}
	for _, s := range snaps[:len(snaps)-p.Keep] {
		if p.IsMilestone(s.tick) {
			dst, err := archiveOne(worldDir, s.path)
			if err != nil {
				return res, fmt.Errorf("archive %s: %w", filepath.Base(s.path), err)
			}
			res.Archived = append(res.Archived, dst)
		}
		if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
			return res, err
		}
		res.Deleted = append(res.Deleted, s.path)
	}
	return res, nil
}

// Archives lists archived snapshots under worldDir, oldest first.
func Archives(worldDir string) ([]Meta, error) {
	entries, err := os.ReadDir(filepath.Join(worldDir, "archives"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []Meta
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		b, err := os.ReadFile(filepath.Join(worldDir, "archives", e.Name(), "meta.json"))
		if err != nil {
			continue
		}
		var m Meta
		if json.Unmarshal(b, &m) == nil {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tick < out[j].Tick })
	return out, nil
}

type entry struct {
	path string
	tick uint64
}

func list(dir string) ([]entry, error) {
	des, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []entry
	for _, e := range des {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		t, err := strconv.ParseUint(strings.TrimSuffix(name, ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		out = append(out, entry{path: filepath.Join(dir, name), tick: t})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].tick < out[j].tick })
	return out, nil
}

func archiveOne(worldDir, src string) (string, error) {
	snap, err := snapshot.ReadSnapshot(src)
	if err != nil {
		return "", err
	}
	dir := filepath.Join(worldDir, "archives", fmt.Sprintf("tick_%012d", snap.Header.Tick))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	dst := filepath.Join(dir, filepath.Base(src))
	if err := copyFile(src, dst); err != nil {
		return "", err
	}
	meta := Meta{
		WorldID:   snap.Header.WorldID,
		Tick:      snap.Header.Tick,
		Snapshot:  filepath.Base(dst),
		Seals:     len(snap.Seals),
		Golems:    len(snap.Golems),
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", err
	}
	return dst, os.WriteFile(filepath.Join(dir, "meta.json"), b, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
