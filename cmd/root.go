package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/civicgraph/orgscope/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "orgscope",
	Short: "Research aggregation pipeline for political organizations",
	Long:  "Searches the web across multiple providers, fetches and cleans pages, extracts structured facts via Claude, and reconciles them into stored organization profiles.",
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
