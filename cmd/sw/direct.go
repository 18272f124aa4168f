package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/storyweb/internal/model"
)

var directCmd = &cobra.Command{
	Use:     "direct",
	Short:   "List and add direct character relationships",
	GroupID: "world",
}

var directListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a project's direct relationship records",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, err := requireProject()
		if err != nil {
			return err
		}
		recs, err := apiClient.ListDirectRelationships(cmd.Context(), pid)
		if err != nil {
			return fmt.Errorf("listing direct relationships: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), recs)
		}
		printDirect(cmd.OutOrStdout(), recs)
		return nil
	},
}

var directAddCmd = &cobra.Command{
	Use:   "add <a> <b>",
	Short: "Record a relationship between two characters",
	Long: `Record a relationship between two characters.

Each side is a character id, or a name when --by-name is set. Names are
resolved against the project's characters when the graph is read.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, err := requireProject()
		if err != nil {
			return err
		}
		byName, _ := cmd.Flags().GetBool("by-name")
		typ, _ := cmd.Flags().GetString("type")
		description, _ := cmd.Flags().GetString("description")
		rawScores, _ := cmd.Flags().GetStringToString("score")

		scores, err := parseScores(rawScores)
		if err != nil {
			return err
		}
		rec := &model.DirectRelationshipRecord{
			A:           characterRef(args[0], byName),
			B:           characterRef(args[1], byName),
			Type:        model.RelationshipType(typ),
			Scores:      scores,
			Description: description,
		}
		out, err := apiClient.CreateDirectRelationship(cmd.Context(), pid, rec)
		if err != nil {
			return fmt.Errorf("adding direct relationship: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), out)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s: %s - %s (%s)\n", out.Type, refLabel(out.A), refLabel(out.B), out.ID)
		return nil
	},
}

func characterRef(v string, byName bool) model.CharacterRef {
	if byName {
		return model.CharacterRef{Names: []string{v}}
	}
	return model.CharacterRef{IDs: []string{v}}
}

// parseScores converts trait=value pairs, clamping each value to [0, 10].
func parseScores(raw map[string]string) (map[string]float64, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	scores := make(map[string]float64, len(raw))
	for k, v := range raw {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("score %s: %q is not a number", k, v)
		}
		scores[strings.TrimSpace(k)] = model.ClampScore(f)
	}
	return scores, nil
}

func init() {
	directAddCmd.Flags().StringP("type", "t", string(model.RelNeutral), "relationship type")
	directAddCmd.Flags().Bool("by-name", false, "treat arguments as character names")
	directAddCmd.Flags().StringToString("score", nil, "trait scores, e.g. --score trust=7,tension=3")
	directAddCmd.Flags().StringP("description", "d", "", "description")

	directCmd.AddCommand(directListCmd)
	directCmd.AddCommand(directAddCmd)
}
