package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var presenceCmd = &cobra.Command{
	Use:     "presence",
	Short:   "Show who has been editing diagrams recently",
	GroupID: "views",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		pid := projectID
		if all {
			pid = ""
		}
		entries, err := apiClient.GetPresence(cmd.Context(), pid)
		if err != nil {
			return fmt.Errorf("getting presence: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), entries)
		}
		printPresence(cmd.OutOrStdout(), entries)
		return nil
	},
}

func init() {
	presenceCmd.Flags().Bool("all", false, "include every project")
}
