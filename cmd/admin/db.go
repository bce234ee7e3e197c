package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"golemcraft.ai/internal/persistence/indexdb"
)

func dbCmd(env *adminEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Query the sqlite index of a world",
	}

	open := func() (*indexdb.Reader, error) {
		return indexdb.OpenReader(filepath.Join(env.worldDir(), "index", "world.sqlite"))
	}

	var evq indexdb.TaskEventQuery
	events := &cobra.Command{
		Use:   "events",
		Short: "Task removals (completed, expired, suspended, removed)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := open()
			if err != nil {
				return err
			}
			defer r.Close()
			rows, err := r.TaskEvents(cmd.Context(), evq)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), rows)
		},
	}
	events.Flags().StringVar(&evq.Worker, "worker", "", "golem id")
	events.Flags().StringVar(&evq.Reason, "reason", "", "removal reason")
	events.Flags().Uint64Var(&evq.Since, "since", 0, "first tick")
	events.Flags().IntVar(&evq.Limit, "limit", 100, "max rows")

	var auq indexdb.AuditQuery
	audits := &cobra.Command{
		Use:   "audits",
		Short: "Seal audit trail",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := open()
			if err != nil {
				return err
			}
			defer r.Close()
			rows, err := r.Audits(cmd.Context(), auq)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), rows)
		},
	}
	audits.Flags().StringVar(&auq.Actor, "actor", "", "client id")
	audits.Flags().StringVar(&auq.Action, "action", "", "PLACE, REMOVE, CONFIGURE, DROP, INVALID, PANIC")
	audits.Flags().Uint64Var(&auq.Since, "since", 0, "first tick")
	audits.Flags().IntVar(&auq.Limit, "limit", 100, "max rows")

	var snapLimit int
	snaps := &cobra.Command{
		Use:   "snapshots",
		Short: "Recorded snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := open()
			if err != nil {
				return err
			}
			defer r.Close()
			rows, err := r.Snapshots(cmd.Context(), snapLimit)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), rows)
		},
	}
	snaps.Flags().IntVar(&snapLimit, "limit", 20, "max rows")

	var from, to uint64
	throughput := &cobra.Command{
		Use:   "throughput",
		Short: "Task totals over a tick range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := open()
			if err != nil {
				return err
			}
			defer r.Close()
			tp, err := r.Throughput(cmd.Context(), from, to)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), tp)
		},
	}
	throughput.Flags().Uint64Var(&from, "from", 0, "first tick")
	throughput.Flags().Uint64Var(&to, "to", 1<<62, "last tick")

	var metaCmd = &cobra.Command{
		Use:   "meta",
		Short: "Index metadata",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := open()
			if err != nil {
				return err
			}
			defer r.Close()
			m, err := r.Meta(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), m)
		},
	}

	cmd.AddCommand(events, audits, snaps, throughput, metaCmd)
	return cmd
}
