// Package cmdutil holds the shared bootstrap for avamem subcommands.
package cmdutil

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/llmpagina/avamem/pkg/config"
	"github.com/llmpagina/avamem/pkg/logger"
)

// Setup reads the global flags and materializes the logger and config.
func Setup(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	debug, err := cmd.Flags().GetBool("debug")
	if err != nil {
		return nil, nil, fmt.Errorf("could not get debug flag: %v", err)
	}
	dataDir, err := cmd.Flags().GetString("data-dir")
	if err != nil {
		return nil, nil, fmt.Errorf("could not get data-dir flag: %v", err)
	}

	log := logger.NewLogger(debug)

	v, err := config.InitViper(dataDir)
	if err != nil {
		return nil, nil, err
	}
	if dataDir != "" {
		v.Set("data_dir", dataDir)
	}

	return config.FromViper(v), log, nil
}
