package main

import (
	"context"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"staybook-server/services/chat-api/internal/config"
	"staybook-server/services/chat-api/internal/domain/chat"
	authvalidator "staybook-server/services/chat-api/internal/infrastructure/auth"
	"staybook-server/services/chat-api/internal/infrastructure/crontab"
	"staybook-server/services/chat-api/internal/infrastructure/database"
	"staybook-server/services/chat-api/internal/infrastructure/logger"
	"staybook-server/services/chat-api/internal/infrastructure/metrics"
	chatrepo "staybook-server/services/chat-api/internal/infrastructure/repository/chat"
	"staybook-server/services/chat-api/internal/interfaces/httpserver"
	"staybook-server/services/chat-api/internal/interfaces/httpserver/handlers/chathandler"
	v1 "staybook-server/services/chat-api/internal/interfaces/httpserver/routes/v1"
	chatroute "staybook-server/services/chat-api/internal/interfaces/httpserver/routes/v1/chat"
)

type Application struct {
	httpServer    *httpserver.HttpServer
	crontab       *crontab.Crontab
	metricsServer *metrics.Server
}

func (application *Application) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var eg errgroup.Group
	eg.Go(func() error {
		err := application.metricsServer.Run(ctx)
		if err != nil {
			cancel()
		}
		return err
	})
	eg.Go(func() error {
		err := application.crontab.Run(ctx)
		if err != nil {
			cancel()
		}
		return err
	})
	eg.Go(func() error {
		err := application.httpServer.Run()
		if err != nil {
			cancel()
		}
		return err
	})

	return eg.Wait()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bootLog := logger.GetLogger()

	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatal().Err(err).Msg("load config")
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		bootLog.Fatal().Err(err).Msg("initialize logger")
	}

	db, err := database.Connect(database.Config{DSN: cfg.DatabaseURL})
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}

	if cfg.AutoMigrate {
		if err := database.AutoMigrate(ctx, db, log); err != nil {
			log.Fatal().Err(err).Msg("run migrations")
		}
	}

	validator, err := authvalidator.NewTokenValidator(ctx, cfg.JWKSURL, cfg.Issuer, cfg.Audience, cfg.RefreshJWKSInterval, cfg.ClockSkew, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize token validator")
	}

	convRepo := chatrepo.NewConversationRepository(db)
	msgRepo := chatrepo.NewMessageRepository(db)
	chatService := chat.NewChatService(convRepo, msgRepo, chat.NewGate(), log)

	chatHandler := chathandler.NewChatHandler(chatService, cfg.PollInterval, log)
	v1Route := v1.NewV1Route(chatroute.NewChatRoute(chatHandler))

	application := &Application{
		httpServer:    httpserver.NewHttpServer(v1Route, validator, db, log, cfg),
		crontab:       crontab.NewCrontab(chatService),
		metricsServer: metrics.NewServer(cfg.MetricsPort),
	}

	log.Info().Int("http_port", cfg.HTTPPort).Int("metrics_port", cfg.MetricsPort).Msg("chat-api starting")

	if err := application.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}
