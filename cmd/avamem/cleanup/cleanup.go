// Package cleanupcmder provides the cleanup command applying the retention window.
package cleanupcmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/llmpagina/avamem/cmd/avamem/cmdutil"
	memoryutils "github.com/llmpagina/avamem/pkg/memory/utils"
)

func NewCleanupCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete conversations older than the retention window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := cmdutil.Setup(cmd)
			if err != nil {
				return err
			}
			defer log.Sync()

			if days <= 0 {
				days = cfg.Memory.RetentionDays
			}

			system, err := memoryutils.NewSystem(cfg, log)
			if err != nil {
				return fmt.Errorf("initializing memory system: %w", err)
			}
			defer system.Close()

			if system.Multimodal == nil {
				return fmt.Errorf("multimodal backend unavailable")
			}

			deleted, err := system.Multimodal.CleanupOldMemories(context.Background(), days)
			if err != nil {
				return err
			}

			fmt.Printf("deleted %d conversations older than %d days\n", deleted, days)
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "Retention window in days (default: from config)")

	return cmd
}
