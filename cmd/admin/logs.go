package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	persistlog "golemcraft.ai/internal/persistence/log"
	"golemcraft.ai/internal/sim/world"
)

var errStop = errors.New("stop")

func logsCmd(env *adminEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Dump the compressed tick and audit logs as JSON lines",
	}

	var since uint64
	var limit int
	var reason string

	ticks := &cobra.Command{
		Use:   "ticks",
		Short: "Dump tick entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n := 0
			err := persistlog.ReadTicks(env.worldDir(), func(e world.TickLogEntry) error {
				if e.Tick < since {
					return nil
				}
				if reason != "" && !hasReason(e, reason) {
					return nil
				}
				if err := writeLine(cmd.OutOrStdout(), e); err != nil {
					return err
				}
				n++
				if limit > 0 && n >= limit {
					return errStop
				}
				return nil
			})
			if errors.Is(err, errStop) {
				return nil
			}
			return err
		},
	}
	ticks.Flags().StringVar(&reason, "reason", "", "only ticks with a task removed for this reason (COMPLETED, EXPIRED, SUSPENDED, REMOVED)")

	audit := &cobra.Command{
		Use:   "audit",
		Short: "Dump seal audit entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n := 0
			err := persistlog.ReadAudits(env.worldDir(), func(e world.AuditEntry) error {
				if e.Tick < since {
					return nil
				}
				if err := writeLine(cmd.OutOrStdout(), e); err != nil {
					return err
				}
				n++
				if limit > 0 && n >= limit {
					return errStop
				}
				return nil
			})
			if errors.Is(err, errStop) {
				return nil
			}
			return err
		},
	}

	for _, c := range []*cobra.Command{ticks, audit} {
		c.Flags().Uint64Var(&since, "since", 0, "skip entries before this tick")
		c.Flags().IntVar(&limit, "limit", 0, "stop after this many entries (0 = all)")
		cmd.AddCommand(c)
	}
	return cmd
}

func hasReason(e world.TickLogEntry, reason string) bool {
	for _, r := range e.Removed {
		if r.Reason == reason {
			return true
		}
	}
	return false
}

func writeLine(out io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "%s\n", b)
	return err
}
