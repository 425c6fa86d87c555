package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"imageConverter/internal/events"
)

type eventSource interface {
	Consume(ctx context.Context, topic string, fn events.Handler) error
	Close() error
}

func newWatchCmd(a *app) *cobra.Command {
	var (
		brokers    string
		topic      string
		group      string
		fromOldest bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream job lifecycle events from Kafka",
		Args:  cobra.NoArgs,
		// reads Kafka only
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			source := a.events
			if source == nil {
				if brokers == "" {
					return fmt.Errorf("--brokers or KAFKA_BROKERS is required")
				}
				sub, err := events.NewSubscriber(strings.Split(brokers, ","), group, fromOldest, a.logger)
				if err != nil {
					return err
				}
				source = sub
			}
			defer source.Close()

			out := cmd.OutOrStdout()
			return source.Consume(ctx, topic, func(_ context.Context, e events.Event) error {
				if a.asJSON {
					return printJSON(cmd, e)
				}
				line := fmt.Sprintf("%s  %s  %s", e.At.Format("2006-01-02T15:04:05Z07:00"), e.JobID, e.Status)
				if e.Error != "" {
					line += fmt.Sprintf("  error=%q", e.Error)
				}
				_, err := fmt.Fprintln(out, line)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&brokers, "brokers", os.Getenv("KAFKA_BROKERS"), "Comma separated Kafka brokers")
	cmd.Flags().StringVar(&topic, "topic", envOr("KAFKA_TOPIC", events.DefaultTopic), "Lifecycle event topic")
	cmd.Flags().StringVar(&group, "group", "jobctl-watch", "Consumer group id")
	cmd.Flags().BoolVar(&fromOldest, "from-beginning", false, "Start from the oldest retained event")
	return cmd
}
