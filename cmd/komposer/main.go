package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/komposer/komposer/internal/api"
	"github.com/komposer/komposer/internal/config"
	"github.com/komposer/komposer/internal/db"
	"github.com/komposer/komposer/internal/execute"
	"github.com/komposer/komposer/internal/logging"
	"github.com/komposer/komposer/internal/media"
	"github.com/komposer/komposer/internal/plan"
	"github.com/komposer/komposer/internal/store"
	"github.com/komposer/komposer/internal/ui"
	"github.com/komposer/komposer/internal/watcher"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	for _, dir := range []string{cfg.DataDir(), cfg.WorkDir(), cfg.InboxDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting komposer agent", "version", config.Version, "data_dir", cfg.DataDir())

	database, err := db.New(cfg.DBPath(), logging.WithComponent(logger, "db"))
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := plan.NewRepository(database.Conn())

	authToken, err := ensureAuthToken(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║                   KOMPOSER AGENT v0.1.0                   ║")
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-27d ║\n", cfg.Port())
	fmt.Printf("║  Auth Token: %-45s ║\n", authToken)
	fmt.Printf("║  Inbox:      %-45s ║\n", logging.SanitizePath(cfg.InboxDir()))
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	files := store.NewSQLiteFileStore(database.Conn())
	engine := media.NewFFmpegEngine(cfg.FFmpegPath(), cfg.FFprobePath(), cfg.ProbeTimeout(),
		logging.WithComponent(logger, "media"))

	planner := plan.NewService(repo, files, engine, cfg.MaxSegmentSeconds(),
		cfg.OutputWidth(), cfg.OutputHeight(), logging.WithComponent(logger, "planner"))
	executor := execute.NewExecutor(engine, cfg.WorkDir(), cfg.ExtractionWorkers(),
		logging.WithComponent(logger, "executor"))
	runner := plan.NewRunner(repo, executor, cfg.RunnerPollInterval(), cfg.RenderTimeout(),
		logging.WithComponent(logger, "runner"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go runner.Start(ctx)

	inbox := watcher.NewInbox(cfg.InboxDir(), planner, cfg.InboxPollInterval(), false,
		logging.WithComponent(logger, "inbox"))
	go inbox.Start(ctx)

	apiServer := api.NewServer(api.ServerConfig{
		Port:       cfg.Port(),
		Planner:    planner,
		Repository: repo,
		Files:      files,
		Engine:     engine,
		Runner:     runner,
		Logger:     logging.WithComponent(logger, "api"),
		StartTime:  startTime,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	quitCh := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			close(quitCh)
		case <-quitCh:
		}
	}()

	if cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray := ui.NewTray(ui.TrayConfig{
			Planner: planner,
			Runner:  runner,
			Logger:  logging.WithComponent(logger, "tray"),
			OnOpenInbox: func() error {
				logger.Info("inbox folder", "path", cfg.InboxDir())
				return nil
			},
			OnQuit: func() {
				close(quitCh)
			},
		})
		go tray.Run()
	}

	<-quitCh

	logger.Info("initiating graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func ensureAuthToken(repo plan.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "auth_token")
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, "auth_token", token); err != nil {
		return "", err
	}

	return token, nil
}
