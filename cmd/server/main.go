package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vedran77/relay/internal/config"
	"github.com/vedran77/relay/internal/database"
	"github.com/vedran77/relay/internal/metrics"
	"github.com/vedran77/relay/internal/repository"
	"github.com/vedran77/relay/internal/repository/badgerdb"
	postgresrepo "github.com/vedran77/relay/internal/repository/postgres"
	"github.com/vedran77/relay/internal/service"
	"github.com/vedran77/relay/internal/transport/http/handlers"
	"github.com/vedran77/relay/internal/transport/http/middleware"
	"github.com/vedran77/relay/internal/transport/ws"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logs.GetLoggerFromString(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Store
	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	m := metrics.New(prometheus.DefaultRegisterer)
	hub := ws.NewHub(log, m, cfg.HubBufferSize)

	// Services
	sessionService := service.NewSessionService(store.Sessions, store.Groups, store.Participants, log, m)
	sessionService.SetVerifyMembers(cfg.GroupVerifyMembers)
	services := handlers.Services{
		Sessions: sessionService,
		Messages: service.NewMessageService(store.Sessions, sessionService, hub, log, m),
		Unread:   service.NewUnreadService(store.Sessions, store.Friends, store.Participants, hub, log, m),
		Groups:   service.NewGroupService(store.Groups, hub, log, m),
		Friends:  service.NewFriendService(store.Friends, store.Participants),
	}

	// Routes
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "ok"}`))
	})
	mux.Handle("GET /metrics", promhttp.Handler())
	// Rooms are checked only when identities come from tokens.
	var guard ws.RoomGuard
	if cfg.AuthEnabled() {
		guard = sessionService
	}
	mux.HandleFunc("GET /ws", ws.ServeWS(hub, store.Participants, guard, cfg.JWTSecret, cfg.AllowedOrigin))
	handlers.Register(mux, services, middleware.Auth(cfg.JWTSecret), log)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: middleware.Logging(log, m)(middleware.CORS(cfg.AllowedOrigin)(mux)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return hub.Run(gctx)
	})
	g.Go(func() error {
		log.Info("Starting server", "addr", srv.Addr, "store", cfg.StoreDriver, "auth", cfg.AuthEnabled())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (*repository.Store, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverBadger:
		db, err := badgerdb.Open(cfg.BadgerPath)
		if err != nil {
			return nil, nil, err
		}
		log.Info("Opened badger store", "path", cfg.BadgerPath)
		return badgerdb.NewStore(db), func() { _ = db.Close() }, nil
	default:
		pool, err := database.Connect(ctx, cfg.DatabaseURL())
		if err != nil {
			return nil, nil, err
		}
		if err := database.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		log.Info("Connected to database")
		return postgresrepo.NewStore(pool), pool.Close, nil
	}
}
