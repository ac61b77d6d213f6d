// Package app wires configuration to the shared backends and components so
// the CLI commands stay thin.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mkarlsen/relayd/internal/caller"
	"github.com/mkarlsen/relayd/internal/clock"
	"github.com/mkarlsen/relayd/internal/config"
	"github.com/mkarlsen/relayd/internal/db"
	"github.com/mkarlsen/relayd/internal/dispatcher"
	"github.com/mkarlsen/relayd/internal/executor"
	"github.com/mkarlsen/relayd/internal/lease"
	"github.com/mkarlsen/relayd/internal/monitor"
	"github.com/mkarlsen/relayd/internal/queue"
	"github.com/mkarlsen/relayd/internal/repo"
)

// App holds the wired components for one relayd process or one-shot command.
type App struct {
	Cfg    config.Config
	Log    *slog.Logger
	DB     *sql.DB
	Redis  *redis.Client
	Store  *repo.ScheduleRepo
	Queue  *queue.Queue
	Leases *lease.Manager
	Clock  clock.Clock
}

// New loads config and connects the shared backends.
func New(ctx context.Context) (*App, error) {
	cfg := config.Load()
	log := NewLogger(cfg.LogFormat)
	slog.SetDefault(log)

	database, err := db.Connect(
		cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DBUser, cfg.DBPass,
		cfg.DBMaxOpenConns, cfg.DBMaxIdleConns,
	)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		database.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	return &App{
		Cfg:    cfg,
		Log:    log,
		DB:     database,
		Redis:  rdb,
		Store:  repo.NewScheduleRepo(database),
		Queue:  queue.New(rdb, cfg.QueueName),
		Leases: lease.NewManager(rdb),
		Clock:  clock.System(),
	}, nil
}

// Close releases the shared backends.
func (a *App) Close() {
	a.Redis.Close()
	a.DB.Close()
}

// Dispatcher builds the tick dispatcher.
func (a *App) Dispatcher() *dispatcher.Dispatcher {
	return dispatcher.New(a.Store, a.Queue, a.Clock, a.Log, a.Cfg.DefaultTimezone)
}

// Monitor builds the health monitor.
func (a *App) Monitor() *monitor.Monitor {
	return monitor.New(a.Store, a.Clock, a.Log)
}

// Executor builds the worker pool against the configured call-execution
// service.
func (a *App) Executor() *executor.Pool {
	timeout := time.Duration(a.Cfg.ExecutionTimeoutSec) * time.Second
	client := caller.New(a.Cfg.RunnerURL, timeout+10*time.Second)
	return executor.NewPool(a.Store, client, a.Queue, a.Leases, a.Clock, a.Log, executor.Config{
		Workers:       a.Cfg.Workers,
		Tries:         a.Cfg.ExecutionTries,
		Timeout:       timeout,
		RatePerMinute: a.Cfg.CallRatePerMin,
	})
}

// NewLogger builds the process logger: text for dev, json when configured.
func NewLogger(format string) *slog.Logger {
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}
