package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/storyweb/internal/client"
	"github.com/alfredjeanlab/storyweb/internal/model"
)

var relCmd = &cobra.Command{
	Use:     "rel",
	Short:   "View and edit relationship diagrams",
	GroupID: "diagrams",
}

var relListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a project's relationship diagrams",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, err := requireProject()
		if err != nil {
			return err
		}
		rels, err := apiClient.ListRelationships(cmd.Context(), pid)
		if err != nil {
			return fmt.Errorf("listing relationships: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), rels)
		}
		printRelationships(cmd.OutOrStdout(), rels)
		return nil
	},
}

var relShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a relationship diagram's nodes and connections",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rel, err := graphClient.GetRelationship(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("getting relationship: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), rel)
		}
		printRelationship(cmd.OutOrStdout(), rel)
		return nil
	},
}

var relCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a relationship diagram",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, err := requireProject()
		if err != nil {
			return err
		}
		kind, _ := cmd.Flags().GetString("kind")
		rel, err := apiClient.CreateRelationship(cmd.Context(), pid, &client.CreateRelationshipRequest{
			Name: args[0],
			Kind: kind,
		})
		if err != nil {
			return fmt.Errorf("creating relationship: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), rel)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created %s %q (%s)\n", rel.Kind, rel.Name, rel.ID)
		return nil
	},
}

var relDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a relationship diagram",
	Long: `Delete a relationship diagram.

The diagram's event history is kept. Direct relationship records are not
affected.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := apiClient.DeleteRelationship(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("deleting relationship: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
		return nil
	},
}

var relRenderCmd = &cobra.Command{
	Use:   "render <id>",
	Short: "Render a relationship diagram as SVG",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svg, err := apiClient.RenderRelationship(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("rendering relationship: %w", err)
		}
		output, _ := cmd.Flags().GetString("output")
		return writeOutput(cmd.OutOrStdout(), output, svg)
	},
}

var relRoutesCmd = &cobra.Command{
	Use:   "routes <id>",
	Short: "Show the computed connection curves of a diagram",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		routes, err := apiClient.GetRoutes(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("getting routes: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), routes)
		}
		printRoutes(cmd.OutOrStdout(), routes)
		return nil
	},
}

var relEventsCmd = &cobra.Command{
	Use:   "events <id>",
	Short: "Show the create and save history of a diagram",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		evs, err := apiClient.GetEvents(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("getting events: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), evs)
		}
		printEvents(cmd.OutOrStdout(), evs)
		return nil
	},
}

var relEditorsCmd = &cobra.Command{
	Use:   "editors <id>",
	Short: "Show who is currently editing a diagram",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := apiClient.GetEditors(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("getting editors: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), entries)
		}
		printPresence(cmd.OutOrStdout(), entries)
		return nil
	},
}

// writeOutput writes data to path, or to w when path is empty or "-".
func writeOutput(w io.Writer, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := w.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func init() {
	relCreateCmd.Flags().String("kind", string(model.KindWeb), "diagram kind (web or pair)")
	relRenderCmd.Flags().StringP("output", "o", "", "write the SVG to a file")

	relCmd.AddCommand(relListCmd)
	relCmd.AddCommand(relShowCmd)
	relCmd.AddCommand(relCreateCmd)
	relCmd.AddCommand(relDeleteCmd)
	relCmd.AddCommand(relConnectCmd)
	relCmd.AddCommand(relDisconnectCmd)
	relCmd.AddCommand(relStyleCmd)
	relCmd.AddCommand(relAddNodeCmd)
	relCmd.AddCommand(relRemoveNodeCmd)
	relCmd.AddCommand(relMoveCmd)
	relCmd.AddCommand(relRenderCmd)
	relCmd.AddCommand(relRoutesCmd)
	relCmd.AddCommand(relEventsCmd)
	relCmd.AddCommand(relEditorsCmd)
}
