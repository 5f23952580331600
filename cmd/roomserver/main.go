// Package main provides the room server binary: a WebSocket endpoint for
// room-scoped world synchronization plus the HTTP listing, simulator and
// static file surface.
package main

import (
	"context"
	"flag"
	"log"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/roomsync/internal/api"
	"github.com/cory-johannsen/roomsync/internal/broadcast"
	"github.com/cory-johannsen/roomsync/internal/config"
	"github.com/cory-johannsen/roomsync/internal/gameserver"
	"github.com/cory-johannsen/roomsync/internal/observability"
	"github.com/cory-johannsen/roomsync/internal/scripting"
	"github.com/cory-johannsen/roomsync/internal/server"
	"github.com/cory-johannsen/roomsync/internal/session"
	"github.com/cory-johannsen/roomsync/internal/transport/ws"
	"github.com/cory-johannsen/roomsync/internal/world"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file; empty uses defaults and environment only")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	roster := world.DefaultRoster()
	if cfg.World.RosterFile != "" {
		roster, err = world.LoadRosterFromFile(cfg.World.RosterFile)
		if err != nil {
			logger.Fatal("loading room roster", zap.String("path", cfg.World.RosterFile), zap.Error(err))
		}
	}
	rooms, err := world.BuildDirectory(roster, world.BuildOptions{
		DefaultCapacity: cfg.World.DefaultCapacity,
		ChatHistory:     cfg.World.ChatHistory,
		Seed:            cfg.World.Seed,
	})
	if err != nil {
		logger.Fatal("building rooms", zap.Error(err))
	}
	logger.Info("rooms ready", zap.Int("count", rooms.Len()))

	registry := session.NewRegistry()
	router := broadcast.NewRouter(registry, logger)
	handler := gameserver.NewHandler(registry, rooms, router, world.NewCryptoSource(), gameserver.Limits{
		NameMax:     cfg.World.NameMaxLength,
		ChatMax:     cfg.World.ChatMaxLength,
		ColorMax:    cfg.World.ColorMaxLength,
		ChatTail:    cfg.World.ChatTail,
		DefaultName: cfg.World.DefaultName,
	}, logger)

	realtime := ws.NewServer(handler, cfg.Transport, logger)
	simulator := scripting.NewSimulator(cfg.Scripting.InstructionLimit, logger)
	httpAPI := api.New(rooms, handler, simulator, logger)

	ln, err := net.Listen("tcp", cfg.Server.Addr())
	if err != nil {
		logger.Fatal("binding listener", zap.String("addr", cfg.Server.Addr()), zap.Error(err))
	}
	httpSvc := server.NewHTTPService(ln, httpAPI.Handler(realtime, cfg.Server.StaticDir), cfg.Server.ShutdownTimeout, logger)

	lifecycle := server.NewLifecycle(logger)
	lifecycle.Add("realtime", server.NewRealtimeService(realtime, logger))
	lifecycle.Add("http", httpSvc)

	logger.Info("room server initialized",
		zap.String("addr", httpSvc.Addr()),
		zap.Duration("startup", time.Since(start)),
	)

	if err := lifecycle.Run(context.Background()); err != nil {
		logger.Error("room server stopped with error", zap.Error(err))
	}
}
