// Package statscmder provides the stats command reporting per-backend counts.
package statscmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/llmpagina/avamem/cmd/avamem/cmdutil"
	memoryutils "github.com/llmpagina/avamem/pkg/memory/utils"
)

func NewStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <session>",
		Short: "Report memory counts for a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := cmdutil.Setup(cmd)
			if err != nil {
				return err
			}
			defer log.Sync()

			system, err := memoryutils.NewSystem(cfg, log)
			if err != nil {
				return fmt.Errorf("initializing memory system: %w", err)
			}
			defer system.Close()

			stats, err := system.Manager.Stats(context.Background(), args[0])
			if err != nil {
				return err
			}

			fmt.Printf("session %s: %d memories\n", stats.SessionID, stats.Total)
			for name, bs := range stats.Backends {
				fmt.Printf("  %s: %d\n", name, bs.Memories)
				for detail, count := range bs.Details {
					fmt.Printf("    %s: %d\n", detail, count)
				}
			}

			return nil
		},
	}
}
