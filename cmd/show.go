package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/civicgraph/orgscope/internal/pipeline"
)

var showReport bool

var showCmd = &cobra.Command{
	Use:   "show <organization name>",
	Short: "Print a stored organization profile",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		name := strings.TrimSpace(strings.Join(args, " "))

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return err
		}

		profile, err := st.GetProfile(ctx, name)
		if err != nil {
			return err
		}
		if profile == nil {
			return fmt.Errorf("no profile stored for %q", name)
		}

		if showReport {
			fmt.Print(pipeline.RenderReport(profile))
			return nil
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(profile)
	},
}

func init() {
	showCmd.Flags().BoolVar(&showReport, "report", false, "render a Markdown research report instead of JSON")
	rootCmd.AddCommand(showCmd)
}
