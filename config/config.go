package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Scheduler SchedulerConfig
	Fetch     FetchConfig
	Analytics AnalyticsConfig
	Postgres  PostgresConfig
	Export    ExportConfig
	DBPath    string
	LogPath   string
	ProxyURL  string
	Watchlist *Watchlist
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
	// RunTimeout bounds one scheduled scrape; past it the scheduler falls
	// back to the stored snapshot. Zero disables the deadline.
	RunTimeout time.Duration
}

type FetchConfig struct {
	Attempts       int
	AttemptTimeout time.Duration
	BackoffBase    time.Duration
	ResultsPerPage int
	BaseURL        string
}

type AnalyticsConfig struct {
	WindowDays       int
	RecentWindowDays int
	RecomputeEvery   time.Duration
}

type PostgresConfig struct {
	URL string // empty means SQLite only
}

type ExportConfig struct {
	Enabled         bool
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
	Every           time.Duration
}

// Watchlist is the set of queries the daemon tracks on schedule, loaded from
// config/watchlist.yaml.
type Watchlist struct {
	Queries []WatchQuery `yaml:"queries"`
}

type WatchQuery struct {
	Query string `yaml:"query"`
	// Cron overrides the global schedule for this query when set.
	Cron string `yaml:"cron"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Scheduler: SchedulerConfig{
			Cron:       os.Getenv("SCRAPE_CRON"),
			RunTimeout: getEnvDuration("SCRAPE_RUN_TIMEOUT", 2*time.Minute),
		},
		Fetch: FetchConfig{
			Attempts:       getEnvInt("FETCH_ATTEMPTS", 3),
			AttemptTimeout: getEnvDuration("FETCH_TIMEOUT", 10*time.Second),
			BackoffBase:    getEnvDuration("FETCH_BACKOFF", 2*time.Second),
			ResultsPerPage: getEnvInt("FETCH_RESULTS_PER_PAGE", 60),
			BaseURL:        getEnv("SEARCH_BASE_URL", ""),
		},
		Analytics: AnalyticsConfig{
			WindowDays:       getEnvInt("ANALYTICS_WINDOW_DAYS", 90),
			RecentWindowDays: getEnvInt("ANALYTICS_RECENT_DAYS", 7),
			RecomputeEvery:   getEnvDuration("ANALYTICS_RECOMPUTE_EVERY", 6*time.Hour),
		},
		Postgres: PostgresConfig{
			URL: os.Getenv("POSTGRES_URL"),
		},
		Export: ExportConfig{
			Enabled:         os.Getenv("EXPORT_ENABLED") == "true",
			Bucket:          os.Getenv("EXPORT_S3_BUCKET"),
			Region:          getEnv("EXPORT_S3_REGION", "us-east-1"),
			Endpoint:        os.Getenv("EXPORT_S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("EXPORT_S3_ACCESS_KEY"),
			SecretAccessKey: os.Getenv("EXPORT_S3_SECRET_KEY"),
			Prefix:          getEnv("EXPORT_S3_PREFIX", "exports"),
			Every:           getEnvDuration("EXPORT_EVERY", 24*time.Hour),
		},
		DBPath:   getEnv("DB_PATH", "tracker.db"),
		LogPath:  getEnv("LOG_PATH", "tracker.log"),
		ProxyURL: os.Getenv("PROXY_URL"),
	}

	if interval := os.Getenv("SCRAPE_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err == nil {
			cfg.Scheduler.Interval = d
		}
	}

	watchlist, err := loadWatchlist(getEnv("WATCHLIST_PATH", "config/watchlist.yaml"))
	if err != nil {
		return nil, err
	}
	cfg.Watchlist = watchlist

	return cfg, nil
}

func loadWatchlist(path string) (*Watchlist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Watchlist{}, nil
		}
		return nil, err
	}

	var wl Watchlist
	if err := yaml.Unmarshal(data, &wl); err != nil {
		return nil, fmt.Errorf("parse watchlist %s: %w", path, err)
	}
	return &wl, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
