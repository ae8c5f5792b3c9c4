package main

import (
	"context"
	"log"

	"chase_bot/internal/modules/chase"
	"chase_bot/internal/modules/config"
	"chase_bot/internal/modules/gateway"
	"chase_bot/internal/modules/health"
	"chase_bot/internal/modules/httpapi"
	"chase_bot/internal/modules/indicator"
	"chase_bot/internal/modules/kite"
	"chase_bot/internal/modules/metrics"
	"chase_bot/internal/modules/postgres"
	"chase_bot/internal/modules/ticker"
	"chase_bot/internal/notify"
	"chase_bot/internal/storage"
	"chase_bot/pkg/logger"
	"chase_bot/pkg/tracing"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

const serviceName = "chase_bot"

func main() {
	// .env для локальной разработки; в проде переменные приходят из окружения
	_ = godotenv.Load()

	logger.SetServiceName(serviceName)
	if err := logger.Init(); err != nil {
		log.Fatal(err)
	}

	tracing.SetServiceName(serviceName)

	app := fx.New(
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
		),
		config.Module(),
		postgres.Module(),
		storage.Module(),
		metrics.Module(),
		health.Module(),
		kite.Module(),
		ticker.Module(),
		indicator.Module(),
		gateway.Module(),
		notify.Module(),
		chase.Module(),
		httpapi.Module(),
		fx.Invoke(runTracer),
	)
	if err := app.Start(context.Background()); err != nil {
		logger.Fatal("app start: %v", err)
	}
	<-app.Done()
	if err := app.Stop(context.Background()); err != nil {
		logger.Fatal("app stop: %v", err)
	}
}

func runTracer(lc fx.Lifecycle, cfg *config.Config) {
	var closeTracer func()
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			_, closer, err := tracing.InitTracer(tracing.Config{
				Host: cfg.Jaeger.Host,
				Port: cfg.Jaeger.Port,
			})
			if err != nil {
				return err
			}
			closeTracer = closer
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if closeTracer != nil {
				closeTracer()
			}
			return nil
		},
	})
}
