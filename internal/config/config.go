package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
)

type AppConfig struct {
	HTTPAddr  string
	WatchAddr string

	StoreBackend string
	RedisURL     string
	DatabaseURL  string

	StockfishPath  string
	EngineProvider string
	EnginePoolSize int
	EngineMoveMs   int
	PlayStyle      string
	BookFile       string

	DefaultTimeControl string
	ListLimit          int
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		HTTPAddr:           ":8080",
		WatchAddr:          ":8081",
		StoreBackend:       "memory",
		EngineProvider:     "stockfish",
		EnginePoolSize:     2,
		EngineMoveMs:       4000,
		PlayStyle:          "book",
		DefaultTimeControl: "none",
		ListLimit:          20,
	}

	if v := strings.TrimSpace(os.Getenv("HTTP_ADDR")); v != "" {
		cfg.HTTPAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("WATCH_ADDR")); v != "" {
		cfg.WatchAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("STORE_BACKEND")); v != "" {
		cfg.StoreBackend = strings.ToLower(v)
	}
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))

	cfg.StockfishPath = strings.TrimSpace(os.Getenv("STOCKFISH_PATH"))
	if v := strings.TrimSpace(os.Getenv("ENGINE_PROVIDER")); v != "" {
		cfg.EngineProvider = v
	}
	if v := strings.TrimSpace(os.Getenv("ENGINE_POOL_SIZE")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EnginePoolSize = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("ENGINE_MOVE_TIME_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EngineMoveMs = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("PLAY_STYLE")); v != "" {
		cfg.PlayStyle = v
	}
	cfg.BookFile = strings.TrimSpace(os.Getenv("OPENING_BOOK_FILE"))

	if v := strings.TrimSpace(os.Getenv("DEFAULT_TIME_CONTROL")); v != "" {
		cfg.DefaultTimeControl = v
	}
	if v := strings.TrimSpace(os.Getenv("GAME_LIST_LIMIT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ListLimit = n
		}
	}

	if cfg.StockfishPath == "" {
		return nil, errors.New("STOCKFISH_PATH is required")
	}
	switch cfg.StoreBackend {
	case "memory":
	case "redis":
		if cfg.RedisURL == "" {
			return nil, errors.New("STORE_BACKEND=redis requires REDIS_URL")
		}
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, errors.New("STORE_BACKEND=postgres requires DATABASE_URL")
		}
	default:
		return nil, errors.New("STORE_BACKEND must be memory, redis or postgres")
	}

	return cfg, nil
}
