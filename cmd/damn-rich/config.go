package main

import (
	damnrich "github.com/HikaRiwwww/damn-rich"
	"github.com/sherifabdlnaby/configuro"
	"time"
)

// Config values can be set using either environment variables with `CONFIG_`
// prefix or config.yml file placed in working directory.
// See https://github.com/sherifabdlnaby/configuro.
type Config struct {
	Logging  Logging
	Database Database
	Exchange Exchange
	Sync     Sync
	Pubsub   Pubsub
}

type Logging struct {
	Level  string
	Format string
}

type Database struct {
	Address      string
	User         string
	Password     string
	Name         string
	SSLMode      string
	MigrationDir string
}

type Exchange struct {
	Name      string
	ApiKey    string
	SecretKey string
	Testnet   bool
	Pairs     []string
}

type Sync struct {
	Timeframe           string
	Interval            time.Duration
	RecentFetchLimit    int
	BackfillPageLimit   int
	BackfillHorizon     time.Duration
	CompleteCandleCount int
}

type Pubsub struct {
	Project          string
	SyncReportsTopic string
}

func readConfig() (*Config, error) {
	loader, err := configuro.NewConfig()
	if err != nil {
		return nil, err
	}

	// Default config values.
	config := &Config{
		Logging: Logging{
			Level: "info",
		},
		Database: Database{
			Address:      "localhost:5432",
			User:         "postgres",
			Password:     "postgres",
			Name:         "postgres",
			SSLMode:      "disable",
			MigrationDir: "database/migrations",
		},
		Exchange: Exchange{
			Name:  "binance",
			Pairs: []string{"BTC/USDT", "ETH/USDT"},
		},
		Sync: Sync{
			Timeframe:           damnrich.DefaultTimeframe.String(),
			Interval:            4 * time.Hour,
			RecentFetchLimit:    damnrich.DefaultRecentFetchLimit,
			BackfillPageLimit:   damnrich.DefaultBackfillPageLimit,
			BackfillHorizon:     damnrich.DefaultBackfillHorizon,
			CompleteCandleCount: damnrich.DefaultCompleteCandleCount,
		},
	}

	err = loader.Load(config)
	if err != nil {
		return nil, err
	}

	err = loader.Validate(config)
	if err != nil {
		return nil, err
	}

	return config, nil
}
