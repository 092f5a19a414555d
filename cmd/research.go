package main

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var researchCmd = &cobra.Command{
	Use:   "research <organization name>",
	Short: "Run an aggregation run for one organization",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		name := strings.TrimSpace(strings.Join(args, " "))

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Pipeline.Run(ctx, name)
		if err != nil {
			return eris.Wrap(err, "aggregation run")
		}

		if result.Degraded {
			zap.L().Warn("run degraded, stored profile unchanged",
				zap.String("organization", name),
				zap.String("run_id", result.RunID),
			)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	rootCmd.AddCommand(researchCmd)
}
