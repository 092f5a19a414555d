package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/civicgraph/orgscope/internal/store"
)

var (
	listQuery  string
	listLimit  int
	listOffset int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored organization profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return err
		}

		profiles, err := st.ListProfiles(ctx, store.ListFilter{
			Query:  listQuery,
			Limit:  listLimit,
			Offset: listOffset,
		})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(profiles)
	},
}

func init() {
	listCmd.Flags().StringVar(&listQuery, "query", "", "filter by name substring")
	listCmd.Flags().IntVar(&listLimit, "limit", 50, "maximum profiles returned")
	listCmd.Flags().IntVar(&listOffset, "offset", 0, "pagination offset")
	rootCmd.AddCommand(listCmd)
}
