package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"expensecalc/internal/amqp"
	"expensecalc/internal/azurequeue"
	"expensecalc/internal/config"
	"expensecalc/internal/log"
	"expensecalc/internal/worker"
)

func newEventsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "Consume calculator events from the broker or queue and keep per-widget tallies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap("")
			if err != nil {
				return err
			}
			ctx, stop := ShutdownContext(cmd.Context())
			defer stop()
			return runEvents(ctx, cfg, logger)
		},
	}
}

func runEvents(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	var (
		consumer worker.Consumer
		queue    string
	)
	switch {
	case cfg.AMQPEnabled():
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			return fmt.Errorf("events: %w", err)
		}
		defer client.Close()
		consumer, queue = client, cfg.AMQPQueue
	case cfg.AzureQueueEnabled():
		sink, err := azurequeue.NewSink(ctx, cfg.AzureQueueServiceURL, cfg.AzureQueueName, logger)
		if err != nil {
			return fmt.Errorf("events: %w", err)
		}
		consumer, queue = sink, cfg.AzureQueueName
	default:
		return errors.New("events: neither AMQP_URL nor AZURE_QUEUE_SERVICE_URL is set")
	}

	w := worker.NewEventWorker(logger)
	logger.Info("Starting event consumer", "queue", queue)

	err := w.Run(ctx, consumer)
	if errors.Is(err, context.Canceled) {
		logger.Info("Event consumer stopped", "widgets", w.Widgets())
		return nil
	}
	return err
}
