// Package clearcmder provides the clear command removing a session's memories.
package clearcmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/llmpagina/avamem/cmd/avamem/cmdutil"
	memoryutils "github.com/llmpagina/avamem/pkg/memory/utils"
)

func NewClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <session>",
		Short: "Remove all memories for a session",
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

			results, err := system.Manager.Clear(context.Background(), args[0])
			if err != nil {
				return err
			}

			for backend, result := range results {
				if result.OK {
					fmt.Printf("%s: cleared\n", backend)
				} else {
					fmt.Printf("%s: %s\n", backend, result.Err)
				}
			}

			return nil
		},
	}
}
