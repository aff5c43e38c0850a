package main

import (
	"context"
	"log"
	"log/slog"

	"github.com/kingpromise/promeals/internal/analyzer"
	claudeanalyzer "github.com/kingpromise/promeals/internal/analyzer/claude"
	"github.com/kingpromise/promeals/internal/analyzer/webhook"
	"github.com/kingpromise/promeals/internal/camera"
	"github.com/kingpromise/promeals/internal/camera/simulated"
	"github.com/kingpromise/promeals/internal/capture"
	"github.com/kingpromise/promeals/internal/config"
	"github.com/kingpromise/promeals/internal/db"
	"github.com/kingpromise/promeals/internal/ledger"
	"github.com/kingpromise/promeals/internal/logging"
	locamedia "github.com/kingpromise/promeals/internal/mediastore/local"
	"github.com/kingpromise/promeals/internal/session"
	"github.com/kingpromise/promeals/internal/store"
	"github.com/kingpromise/promeals/internal/web"
)

func main() {
	cfg := config.Load()

	logger, cleanup, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer cleanup()

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		return
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	blobs := store.NewBlobStore(database)
	led := ledger.New(blobs, logger)
	led.Load(context.Background())

	media, err := locamedia.NewLocalMediaStore(cfg.MediaPath)
	if err != nil {
		logger.Error("failed to initialize media store", "error", err)
		return
	}

	az := newAnalyzer(cfg, logger)
	if az == nil {
		return
	}

	source := capture.NewSource(newCameraProvider(cfg, logger), logger)
	sess := session.New(source, az, led, media, logger)
	defer sess.Close()

	server := web.NewServer(sess, led, media, logger)
	if err := server.ListenAndServe(cfg.ListenAddr); err != nil {
		logger.Error("server error", "error", err)
	}
}

func newAnalyzer(cfg *config.Config, logger *slog.Logger) analyzer.Client {
	switch cfg.AnalyzerBackend {
	case "claude":
		if cfg.ClaudeAPIKey == "" {
			logger.Error("CLAUDE_API_KEY is required when ANALYZER_BACKEND=claude")
			return nil
		}
		logger.Info("using Claude analyzer backend", "model", cfg.ClaudeModel)
		return claudeanalyzer.New(cfg.ClaudeAPIKey, cfg.ClaudeModel)
	default:
		logger.Info("using webhook analyzer backend")
		return webhook.New(cfg.AnalyzerURL)
	}
}

func newCameraProvider(cfg *config.Config, logger *slog.Logger) camera.Provider {
	switch cfg.CameraBackend {
	case "simulated":
		logger.Info("using simulated camera", "path", cfg.CameraPath)
		return simulated.NewProvider(cfg.CameraPath, cfg.CameraWarmup)
	default:
		logger.Info("no capture device configured; uploads only")
		return camera.None()
	}
}
