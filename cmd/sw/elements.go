package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/storyweb/internal/client"
)

var elementsCmd = &cobra.Command{
	Use:     "elements",
	Short:   "List and add world elements",
	GroupID: "world",
}

var elementsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a project's world elements",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, err := requireProject()
		if err != nil {
			return err
		}
		categories, _ := cmd.Flags().GetStringSlice("category")
		els, err := apiClient.ListElements(cmd.Context(), pid, categories...)
		if err != nil {
			return fmt.Errorf("listing elements: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), els)
		}
		printElements(cmd.OutOrStdout(), els)
		return nil
	},
}

var elementsAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a world element",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, err := requireProject()
		if err != nil {
			return err
		}
		category, _ := cmd.Flags().GetString("category")
		description, _ := cmd.Flags().GetString("description")
		id, _ := cmd.Flags().GetString("id")

		el, err := apiClient.CreateElement(cmd.Context(), pid, &client.CreateElementRequest{
			ID:          id,
			Name:        args[0],
			Category:    category,
			Description: description,
		})
		if err != nil {
			return fmt.Errorf("adding element: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), el)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added %s %s (%s)\n", el.Category, el.Name, el.ID)
		return nil
	},
}

func init() {
	elementsListCmd.Flags().StringSlice("category", nil, "only these categories (repeatable)")

	elementsAddCmd.Flags().StringP("category", "c", "character", "element category")
	elementsAddCmd.Flags().StringP("description", "d", "", "description")
	elementsAddCmd.Flags().String("id", "", "explicit UUID (generated when empty)")

	elementsCmd.AddCommand(elementsListCmd)
	elementsCmd.AddCommand(elementsAddCmd)
}
