package main

import (
	"context"
	"fmt"
	damnrich "github.com/HikaRiwwww/damn-rich"
	"github.com/HikaRiwwww/damn-rich/binance"
	"github.com/HikaRiwwww/damn-rich/daemon"
	"github.com/HikaRiwwww/damn-rich/logrus"
	"github.com/HikaRiwwww/damn-rich/postgres"
	"github.com/HikaRiwwww/damn-rich/pubsub"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, cancelCtx := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer cancelCtx()

	config, err := readConfig()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "could not read config: [%v]", err)
		os.Exit(1)
	}

	logger := logrus.ConfigureStandardLogger(
		config.Logging.Format,
		config.Logging.Level,
	)

	postgresClient, err := connectPostgres(ctx, logger, &config.Database)
	if err != nil {
		logger.Fatalf("could not connect postgres: [%v]", err)
	}

	exchangeRepository := postgres.NewExchangeRepository(postgresClient)
	symbolRepository := postgres.NewSymbolRepository(postgresClient)
	candleRepository := postgres.NewCandleRepository(postgresClient)

	sourceRegistry := damnrich.NewSourceRegistry()
	sourceRegistry.Register("binance", binance.NewCandleService(
		config.Exchange.ApiKey,
		config.Exchange.SecretKey,
		config.Exchange.Testnet,
	))

	syncConfig := damnrich.DefaultSyncConfig(config.Exchange.Name)
	syncConfig.Timeframe = damnrich.Timeframe(config.Sync.Timeframe)
	syncConfig.RecentFetchLimit = config.Sync.RecentFetchLimit
	syncConfig.BackfillPageLimit = config.Sync.BackfillPageLimit
	syncConfig.BackfillHorizon = config.Sync.BackfillHorizon
	syncConfig.CompleteCandleCount = config.Sync.CompleteCandleCount

	source, err := sourceRegistry.Source(syncConfig.Exchange)
	if err != nil {
		logger.Fatalf("could not resolve candle source: [%v]", err)
	}

	catalogInitializer := damnrich.NewCatalogInitializer(
		exchangeRepository,
		symbolRepository,
		logger,
	)

	err = catalogInitializer.EnsureCatalog(
		[]string{config.Exchange.Name},
		config.Exchange.Pairs,
	)
	if err != nil {
		logger.Fatalf("could not ensure catalog: [%v]", err)
	}

	var eventService damnrich.EventService
	if len(config.Pubsub.Project) > 0 {
		pubsubClient, err := pubsub.NewClient(
			ctx,
			config.Pubsub.Project,
			config.Pubsub.SyncReportsTopic,
		)
		if err != nil {
			logger.Fatalf("could not create pubsub client: [%v]", err)
		}

		eventService = pubsub.NewEventService(pubsubClient, logger)
	}

	syncTask, err := damnrich.NewSyncTask(
		syncConfig,
		source,
		exchangeRepository,
		symbolRepository,
		candleRepository,
		eventService,
		logger,
	)
	if err != nil {
		logger.Fatalf("could not create sync task: [%v]", err)
	}

	daemon.RunSyncDaemon(ctx, logger, syncTask, config.Sync.Interval)

	<-ctx.Done()
}

func connectPostgres(
	ctx context.Context,
	logger damnrich.Logger,
	config *Database,
) (*postgres.Client, error) {
	if err := postgres.RunMigration(
		logger,
		(*postgres.Config)(config),
	); err != nil {
		return nil, fmt.Errorf(
			"could not run postgres migration: [%v]",
			err,
		)
	}

	client, err := postgres.NewClient(
		ctx,
		(*postgres.Config)(config),
	)
	if err != nil {
		return nil, fmt.Errorf(
			"could not create postgres client: [%v]",
			err,
		)
	}

	return client, nil
}
