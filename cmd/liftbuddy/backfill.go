package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/liftbuddy/config"
	srv "github.com/mohammad-safakhou/liftbuddy/internal/server"
)

func backfillCMD(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "backfill",
		Short: "Run one embedding backfill pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			deps, err := srv.NewDeps(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer deps.Close()

			bf, err := deps.Backfill(cfg.Backfill)
			if err != nil {
				return err
			}
			stats, err := bf.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			if stats.Skipped {
				fmt.Fprintln(cmd.OutOrStdout(), "another replica holds the backfill lock, nothing done")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "embedded sets=%d definitions=%d failed=%d\n", stats.Sets, stats.Definitions, stats.Failed)
			return nil
		},
	}
}
