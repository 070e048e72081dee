package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"docsample/bot"
	"docsample/impl/core"
	"docsample/internal/config"
	"docsample/internal/lib/logger"
	"docsample/internal/lib/sl"
)

func main() {

	configPath := flag.String("conf", "config.yml", "path to config file")
	logPath := flag.String("log", "/var/log/", "path to log file directory")
	flag.Parse()

	conf := config.MustLoad(*configPath)
	lg := logger.SetupLogger(conf.Env, *logPath)

	defer func() {
		if r := recover(); r != nil {
			lg.Error("top level error", slog.String("panic", fmt.Sprint(r)))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), conf.Timeout)
	defer cancel()

	if conf.Telegram.Enabled {
		lg = withTelegram(ctx, conf, lg)
	}

	lg.Info("starting docsample",
		slog.String("config", *configPath),
		slog.String("env", conf.Env),
		slog.String("backend", conf.Backend),
	)
	lg.Debug("debug messages enabled")

	client, err := newClient(ctx, conf, lg)
	if err != nil {
		lg.Error("backend client", slog.String("backend", conf.Backend), sl.Err(err))
		return
	}
	defer func() {
		if err := client.Close(context.Background()); err != nil {
			lg.Warn("closing client", sl.Err(err))
		}
	}()

	handler := core.New(lg, core.SettingsFromConfig(conf), os.Stdout)
	handler.SetClient(client)

	if err = handler.Run(ctx); err != nil {
		lg.Debug("run finished with error", sl.Err(err))
		return
	}
	lg.Info("run finished")
}

func withTelegram(ctx context.Context, conf *config.Config, lg *slog.Logger) *slog.Logger {
	level, err := bot.ParseLevel(conf.Telegram.Level)
	if err != nil {
		lg.Error("telegram level", sl.Err(err))
		return lg
	}
	tgBot, err := bot.NewTgBot(conf.Telegram.ApiKey, conf.Telegram.AdminId, level, lg)
	if err != nil {
		lg.Error("failed to initialize telegram bot", sl.Err(err))
		return lg
	}

	go func() {
		if err := tgBot.Start(ctx); err != nil {
			lg.Error("telegram bot error", sl.Err(err))
		}
	}()

	lg = logger.SetupTelegramHandler(lg, tgBot, level)
	lg.Info("telegram bot initialized", slog.String("admins", conf.Telegram.AdminId))
	return lg
}
