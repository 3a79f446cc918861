// Package servecmder provides the serve command running the diagnostic API.
package servecmder

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/llmpagina/avamem/api"
	"github.com/llmpagina/avamem/cmd/avamem/cmdutil"
	memoryutils "github.com/llmpagina/avamem/pkg/memory/utils"
)

const serveLongDesc string = `Run the avamem diagnostic API server.

The server is read-only: it exposes backend status, per-session stats,
recent context and system validation over HTTP.`

func NewServeCmd() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the diagnostic API server",
		Long:  serveLongDesc,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := cmdutil.Setup(cmd)
			if err != nil {
				return err
			}
			defer log.Sync()

			if listen != "" {
				cfg.API.Listen = listen
			}

			system, err := memoryutils.NewSystem(cfg, log)
			if err != nil {
				return fmt.Errorf("initializing memory system: %w", err)
			}
			defer system.Close()

			server := api.NewServer(api.Config{
				ListenAddr: cfg.API.Listen,
			}, system.Manager, system.Multimodal, log)

			errChan := make(chan error, 1)
			go func() {
				if err := server.Run(); err != nil {
					errChan <- fmt.Errorf("api server error: %w", err)
				}
			}()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errChan:
				return err
			case sig := <-sigChan:
				log.Info("shutting down", zap.String("signal", sig.String()))
				return server.Shutdown()
			}
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "Address to listen on (default: from config)")

	return cmd
}
