// Package searchcmder provides the search command for querying memories.
package searchcmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/llmpagina/avamem/cmd/avamem/cmdutil"
	"github.com/llmpagina/avamem/pkg/memory"
	memoryutils "github.com/llmpagina/avamem/pkg/memory/utils"
)

type searchCommander struct {
	limit     int
	threshold float64
}

const searchLongDesc string = `Search a session's memories across all backends.

Backends are queried in priority order (semantic, multimodal, jsonfile);
results are deduplicated by key and merged by score.

Example:
  avamem search ana@example.com "nombre"
  avamem search ana@example.com "empanadas" --limit 10 --threshold 0.4`

func NewSearchCmd() *cobra.Command {
	cmder := &searchCommander{}

	cmd := &cobra.Command{
		Use:   "search <session> <query>",
		Short: "Search memories",
		Long:  searchLongDesc,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd, args[0], args[1])
		},
	}

	cmd.Flags().IntVarP(&cmder.limit, "limit", "n", memory.DefaultSearchLimit, "Maximum number of results")
	cmd.Flags().Float64Var(&cmder.threshold, "threshold", 0, "Minimum score")

	return cmd
}

func (c *searchCommander) run(cmd *cobra.Command, session, query string) error {
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

	records, err := system.Manager.Search(context.Background(), memory.SearchRequest{
		SessionID:      session,
		Query:          query,
		Limit:          c.limit,
		ScoreThreshold: c.threshold,
	})
	if err != nil {
		return err
	}

	if len(records) == 0 {
		fmt.Println("no memories found")
		return nil
	}

	for i, r := range records {
		fmt.Printf("%d. [%.3f] (%s/%s) %s: %s\n",
			i+1, r.Score, r.Backend, r.SearchType, r.Key, r.Content)
	}

	return nil
}
