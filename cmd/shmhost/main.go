// Command shmhost publishes a shared data map and serves its metrics and
// health until interrupted.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/srediag/plugin-shmdata/adapter"
	"github.com/srediag/plugin-shmdata/pkg/shm"
)

const handle shm.Handle = 1

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "shmhost:", err)
		os.Exit(1)
	}
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run() error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg.LogDev)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	sink, err := adapter.NewAsyncSink(adapter.NewZapSink(log.Named("region")), cfg.LogWorkers)
	if err != nil {
		return err
	}
	defer func() { _ = sink.Close(time.Second) }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	table := shm.NewTable(shm.Config{ReservedSize: cfg.ReservedSize, Sink: sink})
	if err := table.Create(ctx, cfg.ProcessID, cfg.Identity, handle); err != nil {
		return err
	}
	defer table.CloseAll()

	if err := table.Get(handle).SetPID(0, int32(os.Getpid())); err != nil {
		return err
	}
	table.Log(handle, "host started")
	log.Info("shared memory published",
		zap.String("name", shm.RegionName(cfg.ProcessID, cfg.Identity)),
		zap.Int("total_size", table.TotalSize(handle)),
		zap.Int("reserved_size", table.ReservedSize(handle)))

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		adapter.NewCollector(table),
	)
	health := adapter.NewHealthHandler(table, handle)
	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	http.Handle("/live", health)
	http.Handle("/ready", health)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.DebugPort),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Info("debug server listening", zap.String("addr", srv.Addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error("debug server failed", zap.Error(err))
		}
	}

	table.Log(handle, "host stopping")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
