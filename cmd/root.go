package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/priorart-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "priorart",
	Short: "Prior-art claims fetch and novelty matrix pipeline",
	Long:  "Fetches patent claims for recalled prior-art documents across jurisdiction-routed portals, merges manual evidence, and builds a claims-first feature-by-document novelty matrix.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
