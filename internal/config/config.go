package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

type AppConfig struct {
	AppEnv   string
	LogLevel slog.Level
	Port     string

	// Station API.
	CWAAPIKey    string
	CWABaseURL   string
	StationID    string
	FetchLimit   int
	FetchTimeout time.Duration

	// FetchSchedule is a five-field cron expression evaluated in Timezone.
	FetchSchedule string
	FetchOnStart  bool
	Timezone      *time.Location

	StoreDriver    string
	RealtimeDBPath string
	ClimateDBPath  string

	// RecentWindow is how far back realtime reads go when no range is given.
	RecentWindow   time.Duration
	CSVDayFallback bool
	UploadMaxBytes int
}

// Load reads configuration from the environment (after an optional .env file)
// with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from environment variables only.
func FromEnv() (*AppConfig, error) {
	cfg := &AppConfig{}

	cfg.AppEnv = getenvDefault("APP_ENV", "dev")
	switch cfg.AppEnv {
	case "dev", "prod":
	default:
		return nil, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", cfg.AppEnv)
	}

	level, err := parseLogLevel(getenvDefault("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level
	cfg.Port = getenvDefault("PORT", "8080")

	cfg.CWAAPIKey = strings.TrimSpace(os.Getenv("CWA_API_KEY"))
	cfg.CWABaseURL = getenvDefault("CWA_BASE_URL", "https://opendata.cwa.gov.tw/api/v1/rest/datastore/O-A0001-001")
	cfg.StationID = getenvDefault("CWA_STATION_ID", "C0D680")
	if cfg.FetchLimit, err = getenvInt("CWA_FETCH_LIMIT", 1000); err != nil {
		return nil, err
	}

	if cfg.FetchTimeout, err = getenvDuration("FETCH_TIMEOUT", "20s"); err != nil {
		return nil, err
	}

	cfg.FetchSchedule = getenvDefault("FETCH_SCHEDULE", "10 * * * *")
	if cfg.FetchOnStart, err = getenvBool("FETCH_ON_START", true); err != nil {
		return nil, err
	}

	tz := getenvDefault("SCHEDULER_TIMEZONE", "Asia/Taipei")
	cfg.Timezone, err = time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_TIMEZONE %q: %w", tz, err)
	}

	cfg.StoreDriver = getenvDefault("STORE_DRIVER", DriverSQLite)
	switch cfg.StoreDriver {
	case DriverSQLite, DriverMemory:
	default:
		return nil, fmt.Errorf("invalid STORE_DRIVER %q (allowed: sqlite, memory)", cfg.StoreDriver)
	}
	cfg.RealtimeDBPath = getenvDefault("REALTIME_DB_PATH", "data/realtime.db")
	cfg.ClimateDBPath = getenvDefault("CLIMATE_DB_PATH", "data/climate.db")

	// Ten days of hourly observations by default.
	if cfg.RecentWindow, err = getenvDuration("RECENT_WINDOW", "240h"); err != nil {
		return nil, err
	}
	if cfg.CSVDayFallback, err = getenvBool("CSV_DAY_FALLBACK", false); err != nil {
		return nil, err
	}
	if cfg.UploadMaxBytes, err = getenvInt("UPLOAD_MAX_BYTES", 10<<20); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}

func getenvDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func getenvDuration(key, def string) (time.Duration, error) {
	raw := getenvDefault(key, def)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getenvBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return b, nil
}
