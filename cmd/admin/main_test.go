package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"golemcraft.ai/internal/persistence/archive"
	persistlog "golemcraft.ai/internal/persistence/log"
	"golemcraft.ai/internal/persistence/snapshot"
	"golemcraft.ai/internal/sim/world"
)

func runAdmin(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(viper.New())
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeTestWorld(t *testing.T) string {
	t.Helper()
	data := t.TempDir()
	worldDir := filepath.Join(data, "worlds", "w1")
	snapDir := filepath.Join(worldDir, "snapshots")
	require.NoError(t, os.MkdirAll(snapDir, 0o755))

	snap := snapshot.SnapshotV1{
		Header:   snapshot.Header{Version: snapshot.Version, WorldID: "w1", Tick: 40},
		TickRate: 5,
		Seals: []snapshot.SealV1{
			{Pos: [3]int{1, 0, 0}, Face: "UP", Type: "PICKUP", Priority: 2, Owner: "c1", Locked: true},
			{Pos: [3]int{4, 0, 0}, Face: "UP", Type: "GUARD", Priority: 1},
		},
		Golems: []snapshot.GolemV1{{
			ID: "g1", Name: "alpha", Traits: []string{"HAULER"},
			Inventory: []snapshot.StackV1{{Item: "COAL", Count: 3}},
		}},
	}
	require.NoError(t, snapshot.WriteSnapshot(filepath.Join(snapDir, snapshot.FileName(40)), snap))

	snap.Header.Tick = 20
	snap.Seals = snap.Seals[:1]
	require.NoError(t, snapshot.WriteSnapshot(filepath.Join(snapDir, snapshot.FileName(20)), snap))

	tl := persistlog.NewTickLogger(worldDir)
	require.NoError(t, tl.WriteTick(world.TickLogEntry{Tick: 3, Created: 1}))
	require.NoError(t, tl.WriteTick(world.TickLogEntry{Tick: 9, Removed: []world.TaskEvent{{TaskID: 1, Reason: "COMPLETED", Worker: "g1"}}}))
	require.NoError(t, tl.Close())
	return data
}

func TestSnapshotInspectLatest(t *testing.T) {
	data := writeTestWorld(t)
	out, err := runAdmin(t, "--data", data, "--world", "w1", "snapshot", "inspect")
	require.NoError(t, err)

	var s summary
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	require.Equal(t, uint64(40), s.Header.Tick)
	require.Equal(t, 2, s.Seals)
	require.Equal(t, 1, s.Golems)
	require.Equal(t, map[string]int{"PICKUP": 1, "GUARD": 1}, s.SealTypes)
}

func TestSnapshotInspectExplicitPath(t *testing.T) {
	data := writeTestWorld(t)
	path := filepath.Join(data, "worlds", "w1", "snapshots", snapshot.FileName(20))
	out, err := runAdmin(t, "snapshot", "inspect", path)
	require.NoError(t, err)
	require.Contains(t, out, `"seals": 1`)
}

func TestSealsAndGolemsListing(t *testing.T) {
	data := writeTestWorld(t)
	out, err := runAdmin(t, "--data", data, "--world", "w1", "snapshot", "seals")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	require.Contains(t, lines[1], "PICKUP")
	require.Contains(t, lines[1], "L")
	require.Contains(t, lines[2], "GUARD")

	out, err = runAdmin(t, "--data", data, "--world", "w1", "snapshot", "golems")
	require.NoError(t, err)
	require.Contains(t, out, "alpha")
	require.Contains(t, out, "g1")
}

func TestLogsTicksFilters(t *testing.T) {
	data := writeTestWorld(t)
	out, err := runAdmin(t, "--data", data, "--world", "w1", "logs", "ticks")
	require.NoError(t, err)
	require.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 2)

	out, err = runAdmin(t, "--data", data, "--world", "w1", "logs", "ticks", "--reason", "COMPLETED")
	require.NoError(t, err)
	require.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 1)
	require.Contains(t, out, `"worker":"g1"`)

	out, err = runAdmin(t, "--data", data, "--world", "w1", "logs", "ticks", "--limit", "1")
	require.NoError(t, err)
	require.Contains(t, out, `"tick":3`)
	require.NotContains(t, out, `"tick":9`)
}

func TestWorldFromEnvironment(t *testing.T) {
	data := writeTestWorld(t)
	t.Setenv("GC_DATA", data)
	t.Setenv("GC_WORLD", "w1")
	out, err := runAdmin(t, "snapshot", "inspect")
	require.NoError(t, err)
	require.Contains(t, out, `"world_id": "w1"`)

	out, err = runAdmin(t, "worlds")
	require.NoError(t, err)
	require.Equal(t, "w1\n", out)
}

func TestMissingWorldFails(t *testing.T) {
	_, err := runAdmin(t, "--data", t.TempDir(), "--world", "nope", "snapshot", "inspect")
	require.Error(t, err)
}

func TestSnapshotArchives(t *testing.T) {
	data := writeTestWorld(t)
	worldDir := filepath.Join(data, "worlds", "w1")
	_, err := archive.Retain(worldDir, filepath.Join(worldDir, "snapshots"), archive.Policy{Keep: 1, MilestoneEvery: 21})
	require.NoError(t, err)

	out, err := runAdmin(t, "--data", data, "--world", "w1", "snapshot", "archives")
	require.NoError(t, err)
	var metas []archive.Meta
	require.NoError(t, json.Unmarshal([]byte(out), &metas))
	require.Len(t, metas, 1)
	require.Equal(t, uint64(20), metas[0].Tick)
	require.Equal(t, 1, metas[0].Seals)
}
