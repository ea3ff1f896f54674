package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"courier-driver/internal/general/config"
	"courier-driver/internal/general/logger"
	"courier-driver/internal/general/rabbitmq"
)

func NewJournalCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect the driver activity journal",
	}

	var (
		configPath string
		prefetch   int
	)
	tail := &cobra.Command{
		Use:     "tail",
		Short:   "Print presence and delivery events as they are published",
		Args:    cobra.NoArgs,
		Example: `  courier-driver journal tail --config=./config/config.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadFromFile(configPath)
			if err != nil {
				return err
			}
			log := logger.New("driver-journal")
			client, err := rabbitmq.ConnectRabbitMQ(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer client.Close()

			out := cmd.OutOrStdout()
			return client.ConsumeJournal(cmd.Context(), rabbitmq.ConsumeOptions{
				ConsumerTag: "courier-journal-tail",
				Prefetch:    prefetch,
			}, func(_ context.Context, e rabbitmq.JournalEntry) error {
				return PrintJournalEntry(out, e)
			})
		},
	}
	tail.Flags().StringVar(&configPath, "config", "./config/config.yaml", "Path to the YAML config")
	tail.Flags().IntVar(&prefetch, "prefetch", 8, "Consumer prefetch count")

	cmd.AddCommand(tail)
	return cmd
}

// PrintJournalEntry writes one journal entry as a single readable line.
func PrintJournalEntry(w io.Writer, e rabbitmq.JournalEntry) error {
	var line string
	switch {
	case e.Presence != nil:
		line = fmt.Sprintf("%s %-28s driver=%s status=%s",
			e.Presence.Timestamp.UTC().Format("15:04:05"), e.RoutingKey, e.Presence.DriverID, e.Presence.Status)
	case e.Delivery != nil:
		m := e.Delivery
		line = fmt.Sprintf("%s %-28s driver=%s status=%s delivery=%s",
			m.Timestamp.UTC().Format("15:04:05"), e.RoutingKey, m.DriverID, m.Status, m.DeliveryID)
		if m.ProofType != "" {
			line += " proof=" + m.ProofType
		}
	default:
		return fmt.Errorf("journal entry %q has no payload", e.RoutingKey)
	}
	_, err := fmt.Fprintln(w, line)
	return err
}
