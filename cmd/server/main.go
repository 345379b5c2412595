package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/euterpe-music/euterpe/admin"
	"github.com/euterpe-music/euterpe/admin/statestore"
	"github.com/euterpe-music/euterpe/internal/config"
	"github.com/euterpe-music/euterpe/server"
	"github.com/euterpe-music/euterpe/spotify"
	"github.com/euterpe-music/euterpe/token/postgres"
	"github.com/euterpe-music/euterpe/token/refresh"
	"github.com/euterpe-music/euterpe/vault"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatalf("Error running server: %s\n", err)
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Printf("Server stopped\n")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	if err := config.Validate(c); err != nil {
		return err
	}
	displayAppname(c.GetAppName())

	logger := newLogger(c)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, c.GetDatabaseURL())
	if err != nil {
		return fmt.Errorf("pgxpool.New: %w", err)
	}
	defer pool.Close()

	repo := postgres.NewRepo(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("repo.EnsureSchema: %w", err)
	}

	v, err := vault.New(c.GetEncryptionKey())
	if err != nil {
		return fmt.Errorf("vault.New: %w", err)
	}

	exchanger := spotify.NewExchanger(c)

	coordinator, err := refresh.NewCoordinator(repo, v, exchanger,
		refresh.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("refresh.NewCoordinator: %w", err)
	}

	states, err := newStateStore(c, logger)
	if err != nil {
		return err
	}

	gate, err := admin.NewGate(c, c, exchanger, v, repo, states,
		admin.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("admin.NewGate: %w", err)
	}

	httpServer := &http.Server{
		Addr:              c.GetPort(),
		Handler:           server.New(c, gate, coordinator, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go listenAndServe(httpServer, logger)
	waitForStopSignal()
	returnError = shutdown(httpServer)
	return returnError
}

// newStateStore picks Redis when REDIS_URL is set, so connect flows survive
// restarts and work across instances; otherwise falls back to memory.
func newStateStore(c config.Config, logger zerolog.Logger) (statestore.Repo, error) {
	redisURL := c.GetRedisURL()
	if redisURL == "" {
		logger.Info().Msg("REDIS_URL not set, using in-memory connect-state store")
		return statestore.NewInMemoryRepo(), nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL: %w", err)
	}
	return statestore.NewRedisRepo(redis.NewClient(opts)), nil
}

func newLogger(c config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if c.GetEnv() == "DEV" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}
	return logger
}

func listenAndServe(httpServer *http.Server, logger zerolog.Logger) {
	logger.Info().Str("addr", httpServer.Addr).Msg("server listening")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("server.ListenAndServe")
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(httpServer *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
