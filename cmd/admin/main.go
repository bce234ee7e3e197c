package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCmd(viper.New()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRootCmd builds the admin CLI. Flags are bound through v so GC_DATA and
// GC_WORLD override the defaults.
func newRootCmd(v *viper.Viper) *cobra.Command {
	root := &cobra.Command{
		Use:           "golemcraft-admin",
		Short:         "Offline inspection of golemcraft world data",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("data", "./data", "runtime data directory")
	root.PersistentFlags().String("world", "world_1", "world id")
	_ = v.BindPFlag("data", root.PersistentFlags().Lookup("data"))
	_ = v.BindPFlag("world", root.PersistentFlags().Lookup("world"))
	v.SetEnvPrefix("GC")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	env := &adminEnv{v: v}
	root.AddCommand(
		worldsCmd(env),
		snapshotCmd(env),
		logsCmd(env),
		dbCmd(env),
	)
	return root
}

type adminEnv struct {
	v *viper.Viper
}

func (e *adminEnv) dataDir() string { return e.v.GetString("data") }

func (e *adminEnv) worldDir() string {
	return filepath.Join(e.dataDir(), "worlds", e.v.GetString("world"))
}

func (e *adminEnv) snapshotDir() string { return filepath.Join(e.worldDir(), "snapshots") }

func worldsCmd(env *adminEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "worlds",
		Short: "List worlds in the data directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := os.ReadDir(filepath.Join(env.dataDir(), "worlds"))
			if err != nil {
				return err
			}
			for _, e := range entries {
				if e.IsDir() {
					fmt.Fprintln(cmd.OutOrStdout(), e.Name())
				}
			}
			return nil
		},
	}
}
