package main

import (
	"context"
	"time"

	"github.com/peercode-live/peercode-go-collab-server/internal/annotation"
	"github.com/peercode-live/peercode-go-collab-server/internal/cache"
	"github.com/peercode-live/peercode-go-collab-server/internal/config"
	"github.com/peercode-live/peercode-go-collab-server/internal/coordinator"
	"github.com/peercode-live/peercode-go-collab-server/internal/database"
	"github.com/peercode-live/peercode-go-collab-server/internal/event"
	"github.com/peercode-live/peercode-go-collab-server/internal/logger"
	"github.com/peercode-live/peercode-go-collab-server/internal/registry"
	"github.com/peercode-live/peercode-go-collab-server/internal/server"
	"github.com/peercode-live/peercode-go-collab-server/internal/session"
	"github.com/peercode-live/peercode-go-collab-server/internal/user"
	"github.com/peercode-live/peercode-go-collab-server/internal/utils"
)

func main() {
	cfg, err := config.Load("config")
	if err != nil {
		logger.FatalF("Error occured while reading config %v", err)
		return
	}
	loggerCallback := logger.Init(cfg.DebugMode)
	logger.Debug("Application initializing...")
	cleaner := event.NewCleaner()
	cleaner.Init(loggerCallback)

	if err := database.ConnectDatabase(); err != nil {
		logger.FatalF("Error occured while initializing database, details: %v", err)
		return
	}

	store := database.NewDatabaseStore()
	cacheTTL := utils.ParseStringTime(cfg.Cache.TTL)
	cacheBackend := cache.NewLRUCache(cfg.Cache.Size, cacheTTL)

	annotations := annotation.NewService(store, cacheBackend, cacheTTL)
	sessions := session.NewService(store, cacheBackend, cacheTTL, annotations, cfg.Session.DefaultMaxParticipants)
	users := user.NewStoreService(store)

	reg := registry.NewRegistry()
	hub := server.NewHub()
	coord := coordinator.New(reg, sessions, annotations, users, hub)

	startSweeper(sessions, cfg)

	srv := server.NewServer(hub, coord, utils.ParseStringTime(cfg.Session.HeartbeatInterval))
	if err := srv.Start(cfg.AppPort); err != nil {
		logger.FatalF("Error occured while running server, details: %v", err)
	}
	cleaner.Clean()
}

// startSweeper completes idle sessions in the background. The sweep is
// the only enforcement of the inactivity timeout; there is no per-session
// timer.
func startSweeper(sessions *session.Service, cfg config.Config) {
	interval := utils.ParseStringTime(cfg.Session.SweepInterval)
	timeout := utils.ParseStringTime(cfg.Session.InactivityTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	event.NewCleaner().Add(event.CallableFunc(func(context.Context) error {
		cancel()
		return nil
	}))

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				swept, err := sessions.SweepExpired(ctx, timeout)
				if err != nil {
					logger.ErrorF("Session sweep failed, details: %v", err)
					continue
				}
				if swept > 0 {
					logger.InfoF("Session sweep completed: swept=%d", swept)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}
