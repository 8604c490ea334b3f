// @title                       Electricity Records API
// @version                     1.0
// @description                 Meter reading submission, billing and payment tracking.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
// @description                 Type "Bearer" followed by a space and the JWT.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"

	"github.com/powerbill/electricity-records/internal/infrastructure/config"
)

const lifecycleTimeout = 30 * time.Second

func main() {
	if err := godotenv.Load(); err == nil {
		fmt.Println("loaded environment from .env")
	}

	app := fx.New(
		fx.NopLogger,
		fx.Provide(
			loadConfig,
			newLogger,
			provideMongo,
			provideRedis,
			provideAccountRepository,
			provideRecordRepository,
			provideIdempotencyStore,
			provideBillStore,
			provideEventPublisher,
			provideDispatcher,
			provideAnomalyDetector,
			provideAuthService,
			provideRecordService,
			provideRouter,
		),
		fx.Invoke(ensureIndexes, bootstrapAdmin, startServer),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	startCtx, startCancel := context.WithTimeout(context.Background(), lifecycleTimeout)
	defer startCancel()
	if err := app.Start(startCtx); err != nil {
		fmt.Fprintln(os.Stderr, "failed to start:", err)
		os.Exit(1)
	}

	<-ctx.Done()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), lifecycleTimeout)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil {
		fmt.Fprintln(os.Stderr, "error stopping app:", err)
	}
}

func loadConfig() (*config.Config, error) {
	return config.Load(context.Background())
}
