// Package storecmder provides the store command for persisting a memory.
package storecmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/llmpagina/avamem/cmd/avamem/cmdutil"
	"github.com/llmpagina/avamem/pkg/memory"
	memoryutils "github.com/llmpagina/avamem/pkg/memory/utils"
)

type storeCommander struct {
	memoryType string
	tags       []string
	importance float64
}

const storeLongDesc string = `Store a memory for a session across every configured backend.

The entry fans out best-effort: a backend failure is reported in the
result map but does not block the others.

Example:
  avamem store ana@example.com nombre "mi nombre es Ana"
  avamem store ana@example.com pedido "dos empanadas" --type order --tags food`

func NewStoreCmd() *cobra.Command {
	cmder := &storeCommander{}

	cmd := &cobra.Command{
		Use:   "store <session> <key> <content>",
		Short: "Store a memory",
		Long:  storeLongDesc,
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd, args[0], args[1], args[2])
		},
	}

	cmd.Flags().StringVar(&cmder.memoryType, "type", "conversation", "Memory type")
	cmd.Flags().StringSliceVar(&cmder.tags, "tags", nil, "Tags attached to the memory")
	cmd.Flags().Float64Var(&cmder.importance, "importance", 0, "Importance override in [0,1]")

	return cmd
}

func (c *storeCommander) run(cmd *cobra.Command, session, key, content string) error {
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

	results, err := system.Manager.Store(context.Background(), memory.Entry{
		SessionID:  session,
		Key:        key,
		Data:       content,
		MemoryType: c.memoryType,
		Tags:       c.tags,
		Importance: c.importance,
	})
	if err != nil {
		return err
	}

	for backend, result := range results {
		if result.OK {
			fmt.Printf("%s: ok\n", backend)
		} else {
			fmt.Printf("%s: %s\n", backend, result.Err)
		}
	}

	return nil
}
