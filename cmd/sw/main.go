package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/storyweb/internal/client"
	"github.com/alfredjeanlab/storyweb/internal/ui"
)

var (
	serverURL  string
	grpcAddr   string
	authToken  string
	actor      string
	projectID  string
	jsonOutput bool
	noColor    bool
	debug      bool

	// apiClient serves every command; graphClient serves diagram loads,
	// saves and graph views and is gRPC when --grpc is set.
	apiClient   client.Client
	graphClient client.GraphClient
	grpcClient  *client.GRPCClient
)

func defaultActor() string {
	if s := os.Getenv("STORYWEB_ACTOR"); s != "" {
		return s
	}
	out, err := exec.Command("git", "config", "user.name").Output()
	if err == nil {
		name := strings.TrimSpace(string(out))
		if name != "" {
			return name
		}
	}
	return "unknown"
}

func envOr(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

func defaultServer() string {
	if s := os.Getenv("STORYWEB_SERVER"); s != "" {
		return s
	}
	if u := activeRemoteURL(); u != "" {
		return u
	}
	return "http://localhost:8080"
}

var rootCmd = &cobra.Command{
	Use:           "sw <command>",
	Short:         "CLI for the storyweb relationship service",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging(debug)
		ui.Setup(noColor || jsonOutput)

		c := client.NewHTTPClient(serverURL, authToken)
		c.SetActor(actor)
		apiClient = c
		graphClient = c

		if grpcAddr != "" {
			gc, err := client.NewGRPCClient(grpcAddr, authToken)
			if err != nil {
				return fmt.Errorf("failed to connect to server: %w", err)
			}
			gc.SetActor(actor)
			grpcClient = gc
			graphClient = gc
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if grpcClient != nil {
			grpcClient.Close()
		}
		if apiClient != nil {
			apiClient.Close()
		}
	},
}

// localPreRun replaces the root pre-run for commands that never talk to a
// server.
func localPreRun(cmd *cobra.Command, args []string) error {
	setupLogging(debug)
	ui.Setup(noColor || jsonOutput)
	return nil
}

// requireProject returns the selected project or an error naming the ways
// to select one.
func requireProject() (string, error) {
	if projectID == "" {
		return "", errors.New("no project selected: pass --project, set STORYWEB_PROJECT, or add one to the active remote")
	}
	return projectID, nil
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&serverURL, "server", defaultServer(), "HTTP server URL")
	flags.StringVar(&grpcAddr, "grpc", envOr("STORYWEB_GRPC", activeRemoteGRPCAddr()), "gRPC server address for diagram and graph calls")
	flags.StringVar(&authToken, "token", envOr("STORYWEB_TOKEN", activeRemoteToken()), "bearer token")
	flags.StringVar(&actor, "actor", defaultActor(), "editor name recorded on saves")
	flags.StringVarP(&projectID, "project", "p", envOr("STORYWEB_PROJECT", activeRemoteProject()), "project id")
	flags.BoolVar(&jsonOutput, "json", false, "output as JSON")
	flags.BoolVar(&noColor, "no-color", false, "disable colored output")
	flags.BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddGroup(
		&cobra.Group{ID: "diagrams", Title: "Diagrams:"},
		&cobra.Group{ID: "world", Title: "World:"},
		&cobra.Group{ID: "views", Title: "Views:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(colorizedHelpFunc())

	// Diagrams
	rootCmd.AddCommand(relCmd)

	// World
	rootCmd.AddCommand(elementsCmd)
	rootCmd.AddCommand(directCmd)

	// Views
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(presenceCmd)
	rootCmd.AddCommand(watchCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(remoteCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
