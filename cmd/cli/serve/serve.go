package serve

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/mkarlsen/relayd/cmd/cli/root"
	"github.com/mkarlsen/relayd/internal/app"
	"github.com/mkarlsen/relayd/internal/middleware"
)

func init() {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler daemon",
		Long:  "Runs the dispatcher tick loop, the monitor sweep loop, the execution worker pool, the delayed-task mover, and the ops HTTP server.",
		RunE:  runServe,
	}

	root.RootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	pool := a.Executor()
	pool.Start(ctx)

	d := a.Dispatcher()
	go tickLoop(ctx, time.Duration(a.Cfg.DispatchIntervalSec)*time.Second, func() {
		if _, err := d.Tick(ctx); err != nil {
			a.Log.Error("dispatch tick", "err", err)
		}
	})

	m := a.Monitor()
	go tickLoop(ctx, time.Duration(a.Cfg.MonitorIntervalSec)*time.Second, func() {
		m.Sweep(ctx)
		if ready, delayed, err := a.Queue.Depth(ctx); err != nil {
			a.Log.Error("read queue depth", "err", err)
		} else {
			a.Log.Info("queue depth", "ready", ready, "delayed", delayed)
		}
	})

	// Delayed retries sit in the ZSET until their not-before passes.
	go tickLoop(ctx, 5*time.Second, func() {
		if moved, err := a.Queue.MoveDue(ctx, a.Clock.Now()); err != nil {
			a.Log.Error("move due delayed tasks", "err", err)
		} else if moved > 0 {
			a.Log.Debug("moved delayed tasks to ready", "moved", moved)
		}
	})

	srv := &http.Server{
		Addr:    ":" + a.Cfg.Port,
		Handler: opsRouter(),
	}
	go func() {
		a.Log.Info("ops server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Log.Error("ops server", "err", err)
		}
	}()

	a.Log.Info("relayd started",
		"dispatch_interval_sec", a.Cfg.DispatchIntervalSec,
		"monitor_interval_sec", a.Cfg.MonitorIntervalSec,
		"workers", a.Cfg.Workers)

	<-ctx.Done()
	a.Log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
	pool.Wait()
	return nil
}

func tickLoop(ctx context.Context, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

func opsRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestLog)
	r.Use(middleware.Prometheus)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}
