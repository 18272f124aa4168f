package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:     "graph",
	Short:   "Project-wide views of character relationships",
	GroupID: "views",
}

var graphEdgesCmd = &cobra.Command{
	Use:   "edges",
	Short: "List every relationship between the project's characters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, err := requireProject()
		if err != nil {
			return err
		}
		latest, _ := cmd.Flags().GetBool("latest")
		g, err := graphClient.GetGraph(cmd.Context(), pid, latest)
		if err != nil {
			return fmt.Errorf("getting graph: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), g)
		}
		printEdges(cmd.OutOrStdout(), g)
		return nil
	},
}

var graphOverviewCmd = &cobra.Command{
	Use:   "overview",
	Short: "Show the circular overview layout",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, err := requireProject()
		if err != nil {
			return err
		}
		width, _ := cmd.Flags().GetFloat64("width")
		height, _ := cmd.Flags().GetFloat64("height")
		l, err := graphClient.GetOverview(cmd.Context(), pid, width, height)
		if err != nil {
			return fmt.Errorf("getting overview: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), l)
		}
		printOverview(cmd.OutOrStdout(), l)
		return nil
	},
}

var graphMatrixCmd = &cobra.Command{
	Use:   "matrix",
	Short: "Show which characters are related",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, err := requireProject()
		if err != nil {
			return err
		}
		m, err := graphClient.GetMatrix(cmd.Context(), pid)
		if err != nil {
			return fmt.Errorf("getting matrix: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), m)
		}
		printMatrix(cmd.OutOrStdout(), m)
		return nil
	},
}

var graphSVGCmd = &cobra.Command{
	Use:   "svg",
	Short: "Render the overview as SVG",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, err := requireProject()
		if err != nil {
			return err
		}
		width, _ := cmd.Flags().GetFloat64("width")
		height, _ := cmd.Flags().GetFloat64("height")
		svg, err := apiClient.RenderOverview(cmd.Context(), pid, width, height)
		if err != nil {
			return fmt.Errorf("rendering overview: %w", err)
		}
		output, _ := cmd.Flags().GetString("output")
		return writeOutput(cmd.OutOrStdout(), output, svg)
	},
}

func init() {
	graphEdgesCmd.Flags().Bool("latest", false, "keep only the most recent edge per character pair")

	for _, c := range []*cobra.Command{graphOverviewCmd, graphSVGCmd} {
		c.Flags().Float64("width", 800, "viewport width")
		c.Flags().Float64("height", 600, "viewport height")
	}
	graphSVGCmd.Flags().StringP("output", "o", "", "write the SVG to a file")

	graphCmd.AddCommand(graphEdgesCmd)
	graphCmd.AddCommand(graphOverviewCmd)
	graphCmd.AddCommand(graphMatrixCmd)
	graphCmd.AddCommand(graphSVGCmd)
}
