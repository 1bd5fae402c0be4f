package main

import (
	"context"
	"flag"
	"log/slog"
	"time"

	"moiport/impl/core"
	"moiport/internal/auth"
	"moiport/internal/config"
	repository "moiport/internal/database"
	"moiport/internal/http-server/api"
	"moiport/internal/ingest"
	"moiport/internal/lib/logger"
	"moiport/internal/lib/sl"
	"moiport/internal/notify"
	"moiport/internal/scheduler"
	"moiport/internal/service/meta"
	"moiport/internal/ws"
)

func main() {

	configPath := flag.String("conf", "config.yml", "path to config file")
	logPath := flag.String("log", "/var/log/", "path to log file directory")
	flag.Parse()

	conf := config.MustLoad(*configPath)
	lg := logger.SetupLogger(conf.Env, *logPath)

	lg.Info("starting moiport", slog.String("config", *configPath), slog.String("env", conf.Env))
	lg.Debug("debug messages enabled")

	db, err := repository.NewMongoClient(conf, lg)
	if err != nil {
		lg.With(
			sl.Err(err),
		).Error("mongo client")
		return
	}
	if err := db.EnsureIndexes(); err != nil {
		lg.With(
			sl.Err(err),
		).Error("ensure indexes")
	}
	lg.With(
		slog.String("host", conf.Mongo.Host),
		slog.String("port", conf.Mongo.Port),
		slog.String("database", conf.Mongo.Database),
	).Info("mongo client initialized")

	tokens := auth.NewTokenService(conf.Auth.JwtSecret, conf.Auth.TokenTTLHours, db, lg)

	graphClient := meta.NewClient(conf.WhatsApp.GraphBaseURL, lg)

	handler := core.New(lg)
	handler.SetRepository(db)
	handler.SetChannelSender(graphClient)

	hub := ws.NewHub(lg)
	hub.SetHandler(handler)
	handler.SetRealtime(hub)
	go hub.Run()

	ingestor := ingest.New(db, graphClient, hub, lg)

	var notifier scheduler.Notifier
	if conf.Telegram.Enabled {
		tg, err := notify.NewTelegramNotifier(conf.Telegram.ApiKey, conf.Telegram.ChatId, lg)
		if err != nil {
			lg.Error("failed to initialize telegram notifier", sl.Err(err))
			notifier = notify.NewLogNotifier(lg)
		} else {
			lg.Info("telegram notifier initialized")
			notifier = tg
		}
	} else {
		notifier = notify.NewLogNotifier(lg)
	}

	sched := scheduler.New(
		db,
		notifier,
		time.Duration(conf.Scheduler.IntervalSeconds)*time.Second,
		time.Duration(conf.Scheduler.BufferSeconds)*time.Second,
		lg,
	)
	go sched.Run(context.Background())

	// *** blocking start with http server ***
	err = api.New(conf, lg, tokens, handler, ingestor, hub)
	if err != nil {
		lg.Error("server start", sl.Err(err))
		return
	}
	lg.Error("service stopped")
}
