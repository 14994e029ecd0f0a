package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/lucidcount/dashboard/internal/company/config"
	"github.com/lucidcount/dashboard/internal/company/controller"
	"github.com/lucidcount/dashboard/internal/company/directory"
	"github.com/lucidcount/dashboard/internal/company/events"
	"github.com/lucidcount/dashboard/internal/company/gateway"
	"github.com/lucidcount/dashboard/internal/company/handlers"
	"github.com/lucidcount/dashboard/internal/company/messages"
	"go.uber.org/zap"
)

func main() {
	logger := initLogger()
	defer func(logger *zap.Logger) {
		_ = logger.Sync()
	}(logger)

	cfg, err := config.Load(config.DefaultPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend := gateway.NewClient(cfg.BackendURL, cfg.BackendTimeout, logger)
	dir := directory.New(backend, logger)

	// A nil *Producer must not reach the service as a non-nil interface.
	var producer controller.EventProducer
	var consumer *events.Consumer
	if cfg.KafkaEnabled() {
		p, err := events.NewProducer(ctx, cfg.KafkaBrokers, cfg.Topic, logger)
		if err != nil {
			logger.Fatal("failed to initialize Kafka producer", zap.Error(err))
		}
		defer p.Close()
		producer = p

		// Every replica reads every event to keep its own directory current.
		groupID := cfg.GroupID + "-" + uuid.NewString()
		consumer = events.NewConsumer(cfg.KafkaBrokers, groupID, cfg.Topic, logger)
	}

	companySvc := controller.NewCompanyService(backend, dir, producer, logger,
		controller.WithSessionTTL(cfg.SessionTTL),
		controller.WithPrinter(messages.NewPrinter(cfg.Locale)),
	)
	go companySvc.RunSweeper(ctx, cfg.SweepInterval)

	if consumer != nil {
		consumer.RegisterHandler(companySvc.HandleEvent)
		consumer.Start(ctx)
		defer func() {
			cancel()
			consumer.Close()
			<-consumer.Done()
		}()
	}

	companyHandler := handlers.NewCompanyHandler(companySvc, logger, cfg.MaxUploadBytes)
	router := handlers.NewRouter(companyHandler, handlers.RouterConfig{
		JWTSecret:      cfg.JWTSecret,
		RequestTimeout: cfg.RequestTimeout,
		RateLimit:      cfg.RateLimit,
		Production:     cfg.IsProduction(),
	}, logger)

	server := handlers.NewServer(cfg.GRPCPort, cfg.HTTPPort, logger)
	server.RegisterHTTPHandler(router)

	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal("Failed to start servers", zap.Error(err))
		}
	}()

	waitForShutdown(server, logger)
}

// initLogger initializes a Zap production logger.
func initLogger() *zap.Logger {
	logger, _ := zap.NewProduction()
	return logger
}

// waitForShutdown blocks until an interrupt or SIGTERM is received, then shuts down servers.
func waitForShutdown(server *handlers.Server, logger *zap.Logger) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	server.Stop()
	logger.Info("Servers stopped properly")
}
