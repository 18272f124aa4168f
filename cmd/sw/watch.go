package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/storyweb/internal/events"
	"github.com/alfredjeanlab/storyweb/internal/ui"
)

// watchEvent is one change notification, whichever transport carried it.
type watchEvent struct {
	Topic string          `json:"topic"`
	Data  json.RawMessage `json:"data"`
}

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Follow relationship changes as they happen",
	GroupID: "views",
	Long: `Follow relationship changes as they happen.

Events come from NATS when a NATS URL is configured (--nats,
STORYWEB_NATS_URL or the active remote) and from the server's event
stream otherwise. --project limits output to one project.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		topics, _ := cmd.Flags().GetStringSlice("topics")
		natsURL, _ := cmd.Flags().GetString("nats")
		if natsURL == "" {
			natsURL = envOr("STORYWEB_NATS_URL", activeRemoteNATSURL())
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		var (
			ch  <-chan watchEvent
			err error
		)
		if natsURL != "" {
			ch, err = watchNATS(ctx, natsURL, topics)
		} else {
			ch, err = watchSSE(ctx, projectID, topics)
		}
		if err != nil {
			return err
		}
		return printWatch(ctx, cmd.OutOrStdout(), ch, projectID)
	},
}

// watchNATS subscribes to each topic on NATS. Subscriptions end when ctx
// does.
func watchNATS(ctx context.Context, natsURL string, topics []string) (<-chan watchEvent, error) {
	sub, err := events.NewNATSSubscriber(natsURL,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats: disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			slog.Info("nats: reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}

	out := make(chan watchEvent, 16)
	var cancels []func()
	for _, topic := range topics {
		ch, cancel, err := sub.Subscribe(topic)
		if err != nil {
			for _, c := range cancels {
				c()
			}
			sub.Close()
			return nil, fmt.Errorf("subscribing to %s: %w", topic, err)
		}
		cancels = append(cancels, cancel)
		go func(topic string, ch <-chan []byte) {
			for data := range ch {
				select {
				case out <- watchEvent{Topic: topic, Data: data}:
				case <-ctx.Done():
					return
				}
			}
		}(topic, ch)
	}

	go func() {
		<-ctx.Done()
		for _, c := range cancels {
			c()
		}
		sub.Close()
	}()
	return out, nil
}

// watchSSE follows the server's event stream. The server applies the
// project and topic filters.
func watchSSE(ctx context.Context, projectID string, topics []string) (<-chan watchEvent, error) {
	stream, err := apiClient.StreamEvents(ctx, projectID, topics...)
	if err != nil {
		return nil, fmt.Errorf("opening event stream: %w", err)
	}
	out := make(chan watchEvent, 16)
	go func() {
		defer close(out)
		for ev := range stream {
			select {
			case out <- watchEvent{Topic: ev.Topic, Data: ev.Data}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// printWatch writes one line per event until ctx ends or ch closes.
func printWatch(ctx context.Context, w io.Writer, ch <-chan watchEvent, projectID string) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			var change events.RelationshipChanged
			if err := json.Unmarshal(ev.Data, &change); err != nil {
				slog.Debug("skipping undecodable event", "topic", ev.Topic, "error", err)
				continue
			}
			if projectID != "" && change.ProjectID != projectID {
				continue
			}
			if jsonOutput {
				data, _ := json.Marshal(ev)
				fmt.Fprintln(w, string(data))
				continue
			}
			fmt.Fprintln(w, formatChange(time.Now(), ev.Topic, change))
		}
	}
}

func formatChange(at time.Time, topic string, change events.RelationshipChanged) string {
	verb := topic[strings.LastIndex(topic, ".")+1:]
	return fmt.Sprintf("%s  %-8s %s %s",
		ui.RenderMuted(at.Format("15:04:05")),
		verb,
		change.RelationshipID,
		ui.RenderMuted("project="+change.ProjectID),
	)
}

func init() {
	watchCmd.Flags().StringSlice("topics",
		[]string{events.TopicRelationshipCreated, events.TopicRelationshipUpdated, events.TopicRelationshipDeleted},
		"topics to follow (NATS wildcards allowed)")
	watchCmd.Flags().String("nats", "", "NATS URL (default: STORYWEB_NATS_URL or the active remote)")
}
