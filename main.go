package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dwhitlockii/ebay-sold-scrapper-sub000/analytics"
	"github.com/dwhitlockii/ebay-sold-scrapper-sub000/config"
	"github.com/dwhitlockii/ebay-sold-scrapper-sub000/httputil"
	"github.com/dwhitlockii/ebay-sold-scrapper-sub000/logging"
	"github.com/dwhitlockii/ebay-sold-scrapper-sub000/models"
	"github.com/dwhitlockii/ebay-sold-scrapper-sub000/scheduler"
	"github.com/dwhitlockii/ebay-sold-scrapper-sub000/scraper"
	"github.com/dwhitlockii/ebay-sold-scrapper-sub000/services"
	"github.com/dwhitlockii/ebay-sold-scrapper-sub000/storage"
	"github.com/dwhitlockii/ebay-sold-scrapper-sub000/workers"
)

var (
	queryFlag = flag.String("query", "", "Scrape one query, print the result, and exit")
	jsonFlag  = flag.Bool("json", false, "With -query, print the full result as JSON")
)

func main() {
	flag.Parse()

	logFile, err := logging.Setup(envOr("LOG_PATH", "tracker.log"))
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting sold-listings tracker...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Printf("Watchlist: %d queries", len(cfg.Watchlist.Queries))

	clients := httputil.NewClients(cfg.ProxyURL)
	if cfg.ProxyURL != "" {
		log.Printf("Proxy: %s", cfg.ProxyURL)
	}

	ctx := context.Background()

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	engine := analytics.NewEngine()
	engine.RecentWindowDays = cfg.Analytics.RecentWindowDays
	aggregator := services.NewAggregator(store, engine, cfg.Analytics.WindowDays)

	fetcher := scraper.NewFetcher(clients.Scraping, scraper.FetchConfig{
		BaseURL:        cfg.Fetch.BaseURL,
		Attempts:       cfg.Fetch.Attempts,
		AttemptTimeout: cfg.Fetch.AttemptTimeout,
		BackoffBase:    cfg.Fetch.BackoffBase,
		ResultsPerPage: cfg.Fetch.ResultsPerPage,
	})
	pipeline := scraper.NewPipeline(fetcher, store, aggregator)

	if *queryFlag != "" {
		runOnce(ctx, pipeline, *queryFlag, *jsonFlag)
		return
	}

	// Daemon mode
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sched := scheduler.New(cfg, pipeline, store)

	recomputeWorker := workers.NewRecomputeWorker(store, aggregator)
	recomputeWorker.SetLogger(storeLogger(ctx, store))
	go recomputeWorker.Run(ctx, cfg.Analytics.RecomputeEvery)

	if cfg.Export.Enabled {
		exporter, err := storage.NewSnapshotExporter(ctx, storage.S3Config{
			Bucket:          cfg.Export.Bucket,
			Region:          cfg.Export.Region,
			Endpoint:        cfg.Export.Endpoint,
			AccessKeyID:     cfg.Export.AccessKeyID,
			SecretAccessKey: cfg.Export.SecretAccessKey,
			Prefix:          cfg.Export.Prefix,
		})
		if err != nil {
			log.Fatalf("Failed to init snapshot exporter: %v", err)
		}
		exportWorker := workers.NewExportWorker(store, exporter, cfg.Analytics.WindowDays)
		exportWorker.SetLogger(storeLogger(ctx, store))
		go exportWorker.Run(ctx, cfg.Export.Every)
		sched.SetExportWorker(exportWorker)
	}

	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	sched.Stop()
	log.Println("Goodbye!")
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	if cfg.Postgres.URL != "" {
		store, err := storage.NewPostgresStore(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, err
		}
		log.Printf("Connected to Postgres: %s", maskConnectionString(cfg.Postgres.URL))
		return store, nil
	}
	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	log.Printf("SQLite database: %s", cfg.DBPath)
	return store, nil
}

func runOnce(ctx context.Context, pipeline *scraper.Pipeline, query string, asJSON bool) {
	result, err := pipeline.Run(ctx, query)
	if err != nil {
		var blocked *scraper.BlockedError
		switch {
		case errors.As(err, &blocked):
			log.Fatalf("Blocked by the marketplace: %v", err)
		case errors.Is(err, scraper.ErrEmptyPage), errors.Is(err, scraper.ErrNoResults):
			log.Fatalf("No sold listings found for %q", query)
		default:
			log.Fatalf("Scrape failed: %v", err)
		}
	}

	if asJSON {
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			log.Fatalf("Marshal result: %v", err)
		}
		os.Stdout.Write(append(out, '\n'))
		return
	}

	log.Printf("Scraped %d items for %q (%d rejected)", len(result.Items), query, result.Rejected)
	if result.Summary != nil {
		s := result.Summary
		log.Printf("Summary: avg $%.2f (min $%.2f / max $%.2f), trend %+.1f%%, demand %.1f/day, confidence %.0f%%",
			s.AvgPrice, s.MinPrice, s.MaxPrice, s.PriceTrendPct, s.DemandScore, s.ConfidenceScore*100)
	}
}

func storeLogger(ctx context.Context, store storage.Store) workers.LogFunc {
	return func(level models.LogLevel, query, message string) {
		if err := store.Log(ctx, nil, level, message, query); err != nil {
			log.Printf("store log: %v", err)
		}
	}
}

func envOr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// maskConnectionString masks password in connection string for logging
func maskConnectionString(connStr string) string {
	start := 0
	for i := 0; i < len(connStr)-3; i++ {
		if connStr[i:i+3] == "://" {
			start = i + 3
			break
		}
	}
	if start == 0 {
		return connStr
	}

	colonIdx := -1
	atIdx := -1
	for i := start; i < len(connStr); i++ {
		if connStr[i] == ':' && colonIdx == -1 {
			colonIdx = i
		}
		if connStr[i] == '@' {
			atIdx = i
			break
		}
	}

	if colonIdx > 0 && atIdx > colonIdx {
		return connStr[:colonIdx+1] + "****" + connStr[atIdx:]
	}
	return connStr
}
