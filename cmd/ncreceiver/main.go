package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ncreceiver/internal/api"
	"ncreceiver/internal/config"
	"ncreceiver/internal/dispatch"
	"ncreceiver/internal/ingest"
	"ncreceiver/internal/logging"
	"ncreceiver/internal/metrics"
	"ncreceiver/internal/model"
	"ncreceiver/internal/outcomes"
	"ncreceiver/internal/relay"
	"ncreceiver/internal/render"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to YAML or JSON config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	path := config.ResolvePath(*configPath)
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	renderer := render.New(render.Options{
		Color:     cfg.Dispatch.EmbedColor,
		FooterURL: cfg.Dispatch.FooterURL,
		Username:  cfg.Dispatch.Username,
	})
	dispatcher := dispatch.New(cfg.Dispatch, logger)
	for _, dest := range []model.Destination{model.DestinationDiscord, model.DestinationTeams} {
		if !dispatcher.Configured(dest) {
			logger.Warn("webhook not configured", "destination", dest)
		}
	}

	metricsStore := metrics.NewStore()
	outcomeStore := outcomes.NewStore(cfg.History.StoreLimit)
	processor := relay.New(renderer, dispatcher, cfg.Location(), metricsStore, outcomeStore, logger)

	if _, err := ingest.StartREST(ctx, cfg.Receiver, processor, dispatcher, logger); err != nil {
		logger.Error("start receiver", "err", err)
		os.Exit(1)
	}
	ingest.StartKafka(ctx, cfg.Kafka, processor, logger)
	api.Start(ctx, api.NewServer(cfg, path, metricsStore, outcomeStore, dispatcher, logger, version))

	logger.Info("ncreceiver started", "version", version, "config", path)
	<-ctx.Done()
	logger.Info("shutting down")
}
