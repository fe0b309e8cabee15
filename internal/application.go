package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/scribbogame/scribbo-backend/internal/broadcast"
	"github.com/scribbogame/scribbo-backend/internal/config"
	"github.com/scribbogame/scribbo-backend/internal/entity"
	"github.com/scribbogame/scribbo-backend/internal/metrics"
	"github.com/scribbogame/scribbo-backend/internal/repository"
	"github.com/scribbogame/scribbo-backend/internal/repository/storage"
	"github.com/scribbogame/scribbo-backend/internal/session"
	"github.com/scribbogame/scribbo-backend/internal/usecase"
	"github.com/scribbogame/scribbo-backend/transport/rest"
	"github.com/scribbogame/scribbo-backend/transport/websocket"
)

const metricsNamespace = "scribbo"

var ErrAddrNotFound = errors.New("redis address string is empty")

// RunApp - runs the application.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info("Received signal, shutting down", "signal", sig)
		cancel()
	}()

	redisAddrString := conf.Redis.GetRedisAddr()
	if redisAddrString == "" {
		return ErrAddrNotFound
	}

	redisStorage, err := storage.New(ctx, redisAddrString)
	if err != nil {
		return fmt.Errorf("could not connect to redis storage: %w", err)
	}

	defer func() {
		if err = redisStorage.Close(); err != nil {
			log.Error("could not close redis storage", "error", err)
		}
	}()

	playerRepo := repository.NewPlayerRepository(redisStorage)
	gameRepo := repository.NewGameRepository(redisStorage)

	registry := session.NewManager()

	dispatcher := broadcast.NewDispatcher(logger, registry)
	dispatcher.Start()
	defer dispatcher.Stop()

	promRegistry := prometheus.NewRegistry()
	gameMetrics := metrics.New(metricsNamespace, promRegistry)
	metrics.RegisterQueueDepth(metricsNamespace, promRegistry, dispatcher.QueueDepth)

	game := entity.NewGame(uuid.NewString())
	coordinator := usecase.NewGameCoordinator(logger, game, registry, dispatcher, gameRepo, playerRepo, gameMetrics)

	log.Info("Game created", "gameID", game.ID)

	// run HTTP server
	httpErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)
		if httpErr := rest.Start(ctx, conf.HTTPPort, promRegistry); httpErr != nil {
			log.Error("HTTP server error", "error", httpErr)
			httpErrCh <- httpErr
		}
	}()

	// run Websocket server
	wsErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting WebSocket server", "addr", conf.GetSocketAddr())
		wsServer := websocket.New(logger, coordinator, gameMetrics)
		if wsErr := wsServer.Start(ctx, conf.GetSocketAddr()); wsErr != nil {
			log.Error("WebSocket server error", "error", wsErr)
			wsErrCh <- wsErr
		}
	}()

	select {
	case err = <-httpErrCh:
		return fmt.Errorf("HTTP server error: %w", err)
	case err = <-wsErrCh:
		return fmt.Errorf("WebSocket server error: %w", err)
	case <-ctx.Done():
		log.Info("Application context canceled, shutting down")
		return nil
	}
}
