package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"expensecalc/internal/amqp"
	"expensecalc/internal/azurequeue"
	"expensecalc/internal/cache"
	"expensecalc/internal/config"
	"expensecalc/internal/events"
	apphttp "expensecalc/internal/http"
	"expensecalc/internal/log"
)

const shutdownTimeout = 30 * time.Second

func newServeCommand() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the calculator page and its htmx endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap(port)
			if err != nil {
				return err
			}
			ctx, stop := ShutdownContext(cmd.Context())
			defer stop()
			return runServe(ctx, cfg, logger)
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "listen port (overrides PORT)")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	sink, closeSink, err := newEventSink(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSink()

	publisher := events.NewPublisher(sink, cfg.EventBufferSize, logger)

	srv := apphttp.NewServer(apphttp.Config{
		Addr:               ":" + cfg.Port,
		SessionTTL:         cfg.SessionTTL,
		MaxSessions:        cfg.MaxSessions,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	}, apphttp.WithLogger(logger), apphttp.WithEventPublisher(publisher))
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	caches := cache.NewManager(logger)
	caches.Register(srv.Sessions())
	caches.StartCleanup(cfg.SessionCleanupInterval)
	defer caches.Stop()

	logger.Info("Starting expense calculator",
		"port", cfg.Port,
		"version", versionString(),
		"amqp", cfg.AMQPEnabled(),
		"azure_queue", cfg.AzureQueueEnabled())

	if err := runLifecycle(ctx, srv, publisher, logger); err != nil {
		logger.Error("Server stopped with error", log.FieldError, err, "port", cfg.Port)
		return err
	}
	logger.Info("Server stopped gracefully")
	return nil
}

type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

type eventRunner interface {
	Run(ctx context.Context) error
}

// runLifecycle serves until ctx is done or the server fails, then shuts the
// server down and only afterwards stops the publisher, so events from
// requests finishing during graceful shutdown are still delivered.
func runLifecycle(ctx context.Context, srv httpServer, publisher eventRunner, logger *log.Logger) error {
	g, gctx := errgroup.WithContext(ctx)

	pubCtx, stopPublisher := context.WithCancel(context.Background())
	defer stopPublisher()

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return publisher.Run(pubCtx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received", log.FieldReason, context.Cause(gctx))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		stopPublisher()
		if err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
			return err
		}
		return nil
	})

	return g.Wait()
}

// newEventSink returns the AMQP client when a broker is configured, the Azure
// queue when that is configured instead, and the log sink otherwise.
func newEventSink(ctx context.Context, cfg *config.Config, logger *log.Logger) (events.Sink, func(), error) {
	switch {
	case cfg.AzureQueueEnabled():
		sink, err := azurequeue.NewSink(ctx, cfg.AzureQueueServiceURL, cfg.AzureQueueName, logger)
		if err != nil {
			logger.Error("Failed to initialize Azure queue", log.FieldError, err)
			return nil, nil, err
		}
		logger.Info("Azure queue initialized", "queue", cfg.AzureQueueName)
		return sink, func() {}, nil
	case !cfg.AMQPEnabled():
		logger.Info("No broker configured, calculator events go to the log")
		return events.LogSink{Logger: logger.WithComponent(log.ComponentEvents)}, func() {}, nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		return nil, nil, err
	}
	logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return client, func() { _ = client.Close() }, nil
}
