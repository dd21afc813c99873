// Package main provides the room bot binary: it joins one room through the
// gateway and runs until SIGINT or SIGTERM.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/roomlink/internal/bot"
	"github.com/cory-johannsen/roomlink/internal/config"
	"github.com/cory-johannsen/roomlink/internal/observability"
	"github.com/cory-johannsen/roomlink/internal/server"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	scriptsDir := flag.String("scripts", "", "directory of Lua behaviour scripts; overrides scripting.dir")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if *scriptsDir != "" {
		cfg.Scripting.Dir = *scriptsDir
	}

	logger, err := observability.NewLogger(cfg.Logging, "bot")
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer func() { _ = observability.Flush(logger) }()

	ctx := context.Background()

	b, err := bot.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("building bot", zap.Error(err))
	}

	logger.Info("starting bot",
		zap.String("endpoint", cfg.Gateway.Endpoint),
		zap.String("room_id", cfg.Bot.RoomID),
		zap.Strings("intents", cfg.Bot.Intents),
		zap.Bool("cache", cfg.Bot.Cache),
		zap.Bool("journal", cfg.Journal.Enabled),
		zap.String("scripts", cfg.Scripting.Dir),
		zap.Duration("startup", time.Since(start)),
	)

	lc := server.NewLifecycle(logger)
	lc.Add("bot", &server.FuncService{
		StartFn: b.Run,
		StopFn:  b.Close,
	})
	if err := lc.Run(ctx); err != nil {
		logger.Error("bot exited with error", zap.Error(err))
		_ = observability.Flush(logger)
		log.Fatalf("bot: %v", err)
	}
}
