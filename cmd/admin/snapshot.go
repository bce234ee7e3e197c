package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"golemcraft.ai/internal/persistence/archive"
	"golemcraft.ai/internal/persistence/snapshot"
)

func snapshotCmd(env *adminEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Inspect snapshot files (default: the latest one of --world)",
	}

	load := func(args []string) (string, snapshot.SnapshotV1, error) {
		path := ""
		if len(args) == 1 {
			path = args[0]
		} else {
			p, _, err := snapshot.Latest(env.snapshotDir())
			if err != nil {
				return "", snapshot.SnapshotV1{}, fmt.Errorf("%s: %w", env.snapshotDir(), err)
			}
			path = p
		}
		snap, err := snapshot.ReadSnapshot(path)
		return path, snap, err
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "inspect [path]",
		Short: "Print header and object counts",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, snap, err := load(args)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), snapshotSummary(path, snap))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "seals [path]",
		Short: "List seals",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, snap, err := load(args)
			if err != nil {
				return err
			}
			sort.Slice(snap.Seals, func(i, j int) bool { return sealKey(snap.Seals[i]) < sealKey(snap.Seals[j]) })
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "POS\tFACE\tTYPE\tPRIORITY\tCOLOR\tOWNER\tFLAGS")
			for _, s := range snap.Seals {
				flags := ""
				if s.Locked {
					flags += "L"
				}
				if s.Inhibit {
					flags += "I"
				}
				fmt.Fprintf(tw, "%d,%d,%d\t%s\t%s\t%d\t%d\t%s\t%s\n", s.Pos[0], s.Pos[1], s.Pos[2], s.Face, s.Type, s.Priority, s.Color, s.Owner, flags)
			}
			return tw.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "golems [path]",
		Short: "List golems and what they carry",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, snap, err := load(args)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tPOS\tTRAITS\tCARRIED")
			for _, g := range snap.Golems {
				carried := 0
				for _, s := range g.Inventory {
					carried += s.Count
				}
				fmt.Fprintf(tw, "%s\t%s\t%d,%d,%d\t%v\t%d\n", g.ID, g.Name, g.Pos[0], g.Pos[1], g.Pos[2], g.Traits, carried)
			}
			return tw.Flush()
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "archives",
		Short: "List archived milestone snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			metas, err := archive.Archives(env.worldDir())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), metas)
		},
	})
	return cmd
}

type summary struct {
	Path       string              `json:"path"`
	Header     snapshot.Header     `json:"header"`
	TickRate   int                 `json:"tick_rate_hz"`
	Seals      int                 `json:"seals"`
	SealTypes  map[string]int      `json:"seal_types"`
	Golems     int                 `json:"golems"`
	Blocks     int                 `json:"blocks"`
	Entities   int                 `json:"entities"`
	Containers int                 `json:"containers"`
	Counters   snapshot.CountersV1 `json:"counters"`
}

func snapshotSummary(path string, snap snapshot.SnapshotV1) summary {
	s := summary{
		Path:       path,
		Header:     snap.Header,
		TickRate:   snap.TickRate,
		Seals:      len(snap.Seals),
		SealTypes:  map[string]int{},
		Golems:     len(snap.Golems),
		Blocks:     len(snap.Blocks),
		Entities:   len(snap.Entities),
		Containers: len(snap.Containers),
		Counters:   snap.Counters,
	}
	for _, r := range snap.Seals {
		s.SealTypes[r.Type]++
	}
	return s
}

func sealKey(s snapshot.SealV1) string {
	return fmt.Sprintf("%08d/%08d/%08d/%s", s.Pos[0], s.Pos[1], s.Pos[2], s.Face)
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
