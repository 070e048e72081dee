package main

import (
	"context"
	"flag"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"docsample/internal/config"
	"docsample/internal/database/memory"
	"docsample/internal/http-server/api"
	"docsample/internal/lib/logger"
	"docsample/internal/lib/sl"
)

const shutdownTimeout = 10 * time.Second

func main() {

	configPath := flag.String("conf", "config.yml", "path to config file")
	logPath := flag.String("log", "/var/log/", "path to log file directory")
	flag.Parse()

	conf := config.MustLoad(*configPath)
	lg := logger.SetupLogger(conf.Env, *logPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := memory.New()
	server := api.New(conf, lg, store)

	errc := make(chan error, 1)
	go func() {
		errc <- server.ListenAndServe()
	}()

	lg.Info("emulator started",
		slog.String("bind_ip", conf.Emulator.BindIP),
		slog.String("port", conf.Emulator.Port),
		slog.String("env", conf.Env),
	)

	select {
	case err := <-errc:
		if err != nil {
			lg.Error("api server", sl.Err(err))
		}
		return
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		lg.Error("api server shutdown", sl.Err(err))
	}
	lg.Info("emulator stopped", slog.Any("databases", store.Databases()))
}
