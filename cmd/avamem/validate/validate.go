// Package validatecmder provides the validate command checking system health.
package validatecmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/llmpagina/avamem/cmd/avamem/cmdutil"
	memoryutils "github.com/llmpagina/avamem/pkg/memory/utils"
)

func NewValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the memory system components",
		RunE: func(cmd *cobra.Command, _ []string) error {
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

			if system.Multimodal == nil {
				return fmt.Errorf("multimodal backend unavailable")
			}

			report := system.Multimodal.Validate(context.Background())
			for _, check := range report.Components {
				status := "ok"
				if !check.OK {
					status = "FAIL"
					if check.Detail != "" {
						status += " (" + check.Detail + ")"
					}
				}
				fmt.Printf("%-20s %s\n", check.Name, status)
			}
			fmt.Printf("%d/%d checks passed (%.0f%%)\n",
				report.Passed, report.Total, report.SuccessRate*100)

			if !report.Ready {
				return fmt.Errorf("memory system is not operational")
			}
			fmt.Println("memory system is operational")
			return nil
		},
	}
}
