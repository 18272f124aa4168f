package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/storyweb/internal/client"
	"github.com/alfredjeanlab/storyweb/internal/diagram"
	"github.com/alfredjeanlab/storyweb/internal/geometry"
	"github.com/alfredjeanlab/storyweb/internal/model"
)

// nodeGap is the horizontal space left between an appended node and the
// rightmost node already on the canvas.
const nodeGap = 60.0

// editDiagram loads a relationship, applies edit to its diagram and saves
// the resulting snapshot. Nothing is saved when edit fails.
func editDiagram(ctx context.Context, id string, edit func(*model.Relationship, *diagram.Diagram) error) (*model.Relationship, error) {
	rel, err := graphClient.GetRelationship(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting relationship: %w", err)
	}
	d := diagram.FromSnapshot(rel.Snapshot)
	if err := edit(rel, d); err != nil {
		return nil, err
	}
	warnOtherEditors(ctx, id)
	saved, err := graphClient.SaveSnapshot(ctx, id, d.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("saving relationship: %w", err)
	}
	return saved, nil
}

// warnOtherEditors logs when someone other than the current actor saved the
// diagram recently. Saves are last-write-wins, so this is only a hint.
func warnOtherEditors(ctx context.Context, id string) {
	entries, err := apiClient.GetEditors(ctx, id)
	if err != nil {
		slog.Debug("presence lookup failed", "relationship", id, "error", err)
		return
	}
	for _, e := range entries {
		if e.Actor != actor {
			slog.Warn("diagram was recently saved by another editor; your save replaces theirs",
				"relationship", id, "editor", e.Actor, "last_seen", e.LastSeen)
		}
	}
}

// findNode resolves a node by id, or by case-insensitive name when the name
// is unique on the diagram.
func findNode(d *diagram.Diagram, ref string) (model.DiagramNode, error) {
	if n, ok := d.Node(ref); ok {
		return n, nil
	}
	var matches []model.DiagramNode
	for _, n := range d.Nodes() {
		if strings.EqualFold(n.Name, ref) {
			matches = append(matches, n)
		}
	}
	switch len(matches) {
	case 0:
		return model.DiagramNode{}, fmt.Errorf("no node %q on the diagram", ref)
	case 1:
		return matches[0], nil
	default:
		return model.DiagramNode{}, fmt.Errorf("%d nodes are named %q; use the node id", len(matches), ref)
	}
}

// nextNodePosition places a new node to the right of the existing ones.
func nextNodePosition(d *diagram.Diagram) geometry.Point {
	nodes := d.Nodes()
	if len(nodes) == 0 {
		return geometry.Point{}
	}
	var p geometry.Point
	for i, n := range nodes {
		if right := n.X + n.Width + nodeGap; i == 0 || right > p.X {
			p = geometry.Point{X: right, Y: n.Y}
		}
	}
	return p
}

// connectionPatch builds a patch from the style flags the user set.
func connectionPatch(cmd *cobra.Command) (diagram.ConnectionPatch, error) {
	var p diagram.ConnectionPatch
	f := cmd.Flags()
	if f.Changed("type") {
		v, _ := f.GetString("type")
		t := model.RelationshipType(v)
		if !t.IsValid() {
			return p, fmt.Errorf("invalid relationship type %q", v)
		}
		p.Type = &t
	}
	if f.Changed("label") {
		v, _ := f.GetString("label")
		p.Label = &v
	}
	if f.Changed("color") {
		v, _ := f.GetString("color")
		p.Color = &v
	}
	if f.Changed("arrow") {
		v, _ := f.GetBool("arrow")
		p.HasArrow = &v
	}
	if f.Changed("reverse-arrow") {
		v, _ := f.GetBool("reverse-arrow")
		p.HasReverseArrow = &v
	}
	if f.Changed("dashed") {
		v, _ := f.GetBool("dashed")
		dash := ""
		if v {
			dash = "6 4"
		}
		p.StrokeDasharray = &dash
	}
	return p, nil
}

func addStyleFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("type", "t", "", "relationship type (friend, family, rival, ...)")
	cmd.Flags().StringP("label", "l", "", "connection label")
	cmd.Flags().String("color", "", "stroke color, e.g. #dc2626")
	cmd.Flags().Bool("arrow", true, "draw an arrow at the target end")
	cmd.Flags().Bool("reverse-arrow", false, "draw an arrow at the source end")
	cmd.Flags().Bool("dashed", false, "draw a dashed line")
}

var relConnectCmd = &cobra.Command{
	Use:   "connect <id> <from> <to>",
	Short: "Connect two nodes of a diagram",
	Long: `Connect two nodes of a diagram.

Nodes are given by id or by name. New connections are neutral and directed
unless style flags say otherwise.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		patch, err := connectionPatch(cmd)
		if err != nil {
			return err
		}
		var connID string
		_, err = editDiagram(cmd.Context(), args[0], func(_ *model.Relationship, d *diagram.Diagram) error {
			from, err := findNode(d, args[1])
			if err != nil {
				return err
			}
			to, err := findNode(d, args[2])
			if err != nil {
				return err
			}
			id, ok := d.AddConnection(from.ID, to.ID)
			if !ok {
				return fmt.Errorf("cannot connect %s to %s", from.Name, to.Name)
			}
			d.UpdateConnection(id, patch)
			connID = id
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Connected %s -> %s (%s)\n", args[1], args[2], connID)
		return nil
	},
}

var relStyleCmd = &cobra.Command{
	Use:   "style <id> <connection-id>",
	Short: "Change a connection's type, label or look",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		patch, err := connectionPatch(cmd)
		if err != nil {
			return err
		}
		if patch == (diagram.ConnectionPatch{}) {
			return errors.New("nothing to change: pass at least one style flag")
		}
		_, err = editDiagram(cmd.Context(), args[0], func(_ *model.Relationship, d *diagram.Diagram) error {
			if !d.UpdateConnection(args[1], patch) {
				return fmt.Errorf("no connection %q on the diagram", args[1])
			}
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated connection %s\n", args[1])
		return nil
	},
}

var relDisconnectCmd = &cobra.Command{
	Use:   "disconnect <id> <connection-id>",
	Short: "Remove a connection from a diagram",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := editDiagram(cmd.Context(), args[0], func(_ *model.Relationship, d *diagram.Diagram) error {
			if !d.RemoveConnection(args[1]) {
				return fmt.Errorf("no connection %q on the diagram", args[1])
			}
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed connection %s\n", args[1])
		return nil
	},
}

var relAddNodeCmd = &cobra.Command{
	Use:   "add-node <id> <element-id>",
	Short: "Place a world element on a diagram",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		xSet, ySet := cmd.Flags().Changed("x"), cmd.Flags().Changed("y")
		x, _ := cmd.Flags().GetFloat64("x")
		y, _ := cmd.Flags().GetFloat64("y")

		ctx := cmd.Context()
		_, err := editDiagram(ctx, args[0], func(rel *model.Relationship, d *diagram.Diagram) error {
			if d.HasNode(args[1]) {
				return fmt.Errorf("element %s is already on the diagram", args[1])
			}
			el, err := apiClient.GetElement(ctx, args[1])
			var apiErr *client.APIError
			switch {
			case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound:
				return fmt.Errorf("no element %q in project %s", args[1], rel.ProjectID)
			case err != nil:
				return fmt.Errorf("getting element: %w", err)
			case el.ProjectID != rel.ProjectID:
				return fmt.Errorf("no element %q in project %s", args[1], rel.ProjectID)
			}
			pos := nextNodePosition(d)
			if xSet {
				pos.X = x
			}
			if ySet {
				pos.Y = y
			}
			d.AddNode(el.Stub(), pos)
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added node %s\n", args[1])
		return nil
	},
}

var relRemoveNodeCmd = &cobra.Command{
	Use:   "remove-node <id> <node>",
	Short: "Remove a node and its connections from a diagram",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var removed model.DiagramNode
		_, err := editDiagram(cmd.Context(), args[0], func(_ *model.Relationship, d *diagram.Diagram) error {
			n, err := findNode(d, args[1])
			if err != nil {
				return err
			}
			d.RemoveNode(n.ID)
			removed = n
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed node %s (%s)\n", removed.Name, removed.ID)
		return nil
	},
}

var relMoveCmd = &cobra.Command{
	Use:   "move <id> <node> <x> <y>",
	Short: "Move a node to a position, or by an offset with --by",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		x, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			return fmt.Errorf("x: %q is not a number", args[2])
		}
		y, err := strconv.ParseFloat(args[3], 64)
		if err != nil {
			return fmt.Errorf("y: %q is not a number", args[3])
		}
		relative, _ := cmd.Flags().GetBool("by")

		var moved model.DiagramNode
		_, err = editDiagram(cmd.Context(), args[0], func(_ *model.Relationship, d *diagram.Diagram) error {
			n, err := findNode(d, args[1])
			if err != nil {
				return err
			}
			if relative {
				d.MoveNode(n.ID, x, y)
			} else {
				d.SetNodePosition(n.ID, x, y)
			}
			moved, _ = d.Node(n.ID)
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Moved %s to (%g, %g)\n", moved.Name, moved.X, moved.Y)
		return nil
	},
}

func init() {
	addStyleFlags(relConnectCmd)
	addStyleFlags(relStyleCmd)

	relAddNodeCmd.Flags().Float64("x", 0, "left edge (default: right of the existing nodes)")
	relAddNodeCmd.Flags().Float64("y", 0, "top edge")

	relMoveCmd.Flags().Bool("by", false, "treat x and y as an offset")
}
