package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/nchavez4/monster-arena-backend/internal/auth"
	"github.com/nchavez4/monster-arena-backend/internal/battle"
	"github.com/nchavez4/monster-arena-backend/internal/config"
	"github.com/nchavez4/monster-arena-backend/internal/httpapi"
	"github.com/nchavez4/monster-arena-backend/internal/hub"
	"github.com/nchavez4/monster-arena-backend/internal/lobby"
	"github.com/nchavez4/monster-arena-backend/internal/match"
	"github.com/nchavez4/monster-arena-backend/internal/roster"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := buildLogger(cfg.Debug)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		rosters  roster.Provider
		recorder match.Recorder = match.NopRecorder{}
		users    *auth.UserStore
	)
	if cfg.DatabaseURL != "" {
		db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
		if err != nil {
			log.Fatal("database connection failed", zap.Error(err))
		}
		rosters = roster.NewDBProvider(db)
		recorder = match.NewDBRecorder(db)
		users = auth.NewUserStore(db)
		log.Info("database connected")
	} else {
		static := roster.NewStaticProvider()
		static.SeedDefault(roster.StarterRoster())
		rosters = static
		log.Warn("no DATABASE_URL set; auth is unavailable, serving the starter roster from memory")
	}

	tokens := auth.NewService(cfg.JWTSecret, 24*time.Hour)

	h := hub.NewHub(ctx, log, rosters, recorder, hub.Options{
		Lobby:  lobby.Options{CountdownSeconds: cfg.LobbyCountdownSec},
		Battle: battle.Options{TurnDeadline: cfg.TurnDeadline, PacingDelay: cfg.PacingDelay},
	})

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: httpapi.SetupRoutes(h, users, tokens, cfg.CORSOrigin, log),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		h.Inbox() <- hub.ShutdownHub{}
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func buildLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
