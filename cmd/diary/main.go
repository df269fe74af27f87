package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/heimdex/clipdiary/internal/api"
	"github.com/heimdex/clipdiary/internal/config"
	"github.com/heimdex/clipdiary/internal/crop"
	"github.com/heimdex/clipdiary/internal/db"
	"github.com/heimdex/clipdiary/internal/diary"
	"github.com/heimdex/clipdiary/internal/events"
	"github.com/heimdex/clipdiary/internal/logging"
	"github.com/heimdex/clipdiary/internal/pipeline"
	"github.com/heimdex/clipdiary/internal/playback"
	"github.com/heimdex/clipdiary/internal/render"
	"github.com/heimdex/clipdiary/internal/ui"
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

	for _, dir := range []string{cfg.DataDir(), cfg.DocumentsDir(), cfg.ThumbnailsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting clip diary", "version", config.Version, "data_dir", logging.SanitizePath(cfg.DataDir()))

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	settings := db.NewSettings(database.Conn())
	deviceID, err := settings.EnsureSecret(ctx, "device_id", 16)
	if err != nil {
		return fmt.Errorf("failed to ensure device ID: %w", err)
	}
	authToken, err := settings.EnsureSecret(ctx, api.AuthTokenKey, 32)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Printf("║                    CLIP DIARY v%-26s ║\n", config.Version)
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-27d ║\n", cfg.Port())
	fmt.Printf("║  Auth Token: %-45s ║\n", authToken)
	fmt.Printf("║  Device ID:  %-45s ║\n", deviceID[:16]+"...")
	fmt.Printf("║  Renderer:   %-45s ║\n", cfg.RenderBackend())
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	var ffmpeg pipeline.FFmpeg
	if exec := pipeline.NewExecFFmpeg(cfg.FFmpegPath(), cfg.FFprobePath(), logger); exec.Available() {
		ffmpeg = exec
	} else {
		logger.Warn("ffmpeg not found, thumbnails and trimming are disabled",
			"ffmpeg", cfg.FFmpegPath(), "ffprobe", cfg.FFprobePath())
		ffmpeg = pipeline.NewStubFFmpeg(logger)
	}

	videos := diary.NewService(diary.NewStore(database.Conn()), diary.DefaultCaches(), ffmpeg, cfg.ThumbnailsDir(), logger)

	renderer, err := render.NewFromConfig(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize render client: %w", err)
	}

	var publisher events.Publisher
	if cfg.NATSURL() != "" {
		np, err := events.NewNATSPublisher(cfg.NATSURL(), cfg.NATSSubject(), logger)
		if err != nil {
			logger.Warn("nats unavailable, crop events go to the log", "error", err)
			publisher = events.NewLogPublisher(logger)
		} else {
			publisher = np
		}
	} else {
		publisher = events.NewLogPublisher(logger)
	}
	defer publisher.Close()

	orch := crop.NewOrchestrator(renderer, ffmpeg, videos, publisher, cfg.DocumentsDir(), crop.Options{
		PollInterval:    cfg.PollInterval(),
		PollMaxAttempts: cfg.PollMaxAttempts(),
		TransferRetries: cfg.TransferRetries(),
		RetryBackoff:    crop.DefaultOptions.RetryBackoff,
	}, logger)
	jobs := crop.NewJobs(orch, crop.NewJobStore(database.Conn()), videos, logger)

	apiServer := api.NewServer(api.ServerConfig{
		Port:          cfg.Port(),
		Videos:        videos,
		Crops:         jobs,
		Playback:      playback.NewServer(logger),
		Settings:      settings,
		CORSOrigins:   cfg.CORSOrigins(),
		RenderBackend: cfg.RenderBackend(),
		Logger:        logger,
		StartTime:     startTime,
		DeviceID:      deviceID,
		Version:       config.Version,
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
			Videos: videos,
			Crops:  jobs,
			Logger: logger,
			OnOpen: func() {
				logger.Info("open requested from tray", "url", fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Port()))
			},
			OnQuit: func() {
				close(quitCh)
			},
		})
		go tray.Run()
	}

	<-quitCh

	logger.Info("initiating graceful shutdown", "crops_running", jobs.InFlight())
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}
	if err := jobs.Shutdown(shutdownCtx); err != nil {
		logger.Error("crops did not stop in time", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}
