package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	appcfg "chessmate/internal/config"
	"chessmate/internal/engine"
	"chessmate/internal/engine/openingbook"
	"chessmate/internal/httpapi"
	"chessmate/internal/obslog"
	"chessmate/internal/session"
	"chessmate/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()

	gameStore, err := buildStore(cfg)
	if err != nil {
		logger.Fatal("store init failed", zap.Error(err))
	}

	orch, err := buildOrchestrator(cfg)
	if err != nil {
		logger.Fatal("engine init failed", zap.Error(err))
	}

	hub := httpapi.NewHub()
	mgr := session.NewManager(session.Config{
		Store:    gameStore,
		Engine:   orch,
		Notifier: hub,
	})

	api := httpapi.NewServer(mgr, cfg.ListLimit)
	httpServer := &fasthttp.Server{
		Handler:      api.Handler(),
		Name:         "chessmate",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	go func() {
		logger.Info("http api listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(cfg.HTTPAddr); err != nil {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	watchServer := &http.Server{
		Addr:    cfg.WatchAddr,
		Handler: httpapi.NewWatchServer(mgr, hub),
	}
	go func() {
		logger.Info("watch endpoint listening", zap.String("addr", cfg.WatchAddr))
		if err := watchServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("watch server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = watchServer.Shutdown(shutdownCtx)
	_ = httpServer.ShutdownWithContext(shutdownCtx)
	if err := orch.Dispose(); err != nil {
		logger.Warn("engine dispose", zap.Error(err))
	}
	_ = gameStore.Close()
	_ = logger.Sync()
}

func buildStore(cfg *appcfg.AppConfig) (store.GameStore, error) {
	switch cfg.StoreBackend {
	case "redis":
		return store.NewRedisStore(cfg.RedisURL)
	case "postgres":
		return store.NewPostgresStore(cfg.DatabaseURL)
	default:
		return store.NewMemoryStore(), nil
	}
}

func buildOrchestrator(cfg *appcfg.AppConfig) (*engine.Orchestrator, error) {
	var book *openingbook.Book
	if cfg.BookFile != "" {
		loaded, err := openingbook.Load(cfg.BookFile)
		if err != nil {
			return nil, err
		}
		book = loaded
	}
	style, err := engine.NewStyle(cfg.PlayStyle, book)
	if err != nil {
		return nil, err
	}

	orch := engine.NewOrchestrator(engine.OrchestratorConfig{
		PoolSize: cfg.EnginePoolSize,
		MoveTime: time.Duration(cfg.EngineMoveMs) * time.Millisecond,
		Style:    style,
	})
	stockfish, err := engine.NewStockfishProvider(cfg.StockfishPath)
	if err != nil {
		return nil, err
	}
	orch.RegisterProvider(stockfish)
	if cfg.EngineProvider != stockfish.Name() {
		if err := orch.SwitchProvider(cfg.EngineProvider); err != nil {
			return nil, err
		}
	}
	return orch, nil
}
