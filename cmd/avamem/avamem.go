// Package avamemcmder
package avamemcmder

import (
	"github.com/spf13/cobra"

	cleanupcmder "github.com/llmpagina/avamem/cmd/avamem/cleanup"
	clearcmder "github.com/llmpagina/avamem/cmd/avamem/clear"
	searchcmder "github.com/llmpagina/avamem/cmd/avamem/search"
	servecmder "github.com/llmpagina/avamem/cmd/avamem/serve"
	statscmder "github.com/llmpagina/avamem/cmd/avamem/stats"
	storecmder "github.com/llmpagina/avamem/cmd/avamem/store"
	validatecmder "github.com/llmpagina/avamem/cmd/avamem/validate"
)

const avamemLongDesc string = `Avamem is the unified memory subsystem of the Ava assistant.

Memories fan out across a semantic vector index, a relational multimodal
store and a flat-file fallback, and are searched back in priority order.

Common operations:
  avamem store <session> <key> <content>   Store a memory
  avamem search <session> <query>          Search memories
  avamem serve                             Run the diagnostic API server`

const avamemShortDesc string = "Avamem - Unified conversational memory"

func NewAvamemCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "avamem",
		Short: avamemShortDesc,
		Long:  avamemLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("data-dir", "", "Data directory (default: ./data)")

	// Add subcommands
	cmd.AddCommand(storecmder.NewStoreCmd())
	cmd.AddCommand(searchcmder.NewSearchCmd())
	cmd.AddCommand(statscmder.NewStatsCmd())
	cmd.AddCommand(clearcmder.NewClearCmd())
	cmd.AddCommand(cleanupcmder.NewCleanupCmd())
	cmd.AddCommand(validatecmder.NewValidateCmd())
	cmd.AddCommand(servecmder.NewServeCmd())

	return cmd
}
