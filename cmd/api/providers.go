package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/fx"

	"github.com/powerbill/electricity-records/internal/api"
	"github.com/powerbill/electricity-records/internal/api/handler"
	"github.com/powerbill/electricity-records/internal/core/anomaly"
	"github.com/powerbill/electricity-records/internal/core/ports"
	"github.com/powerbill/electricity-records/internal/core/service"
	"github.com/powerbill/electricity-records/internal/infrastructure/config"
	"github.com/powerbill/electricity-records/internal/infrastructure/db/mongo"
	"github.com/powerbill/electricity-records/internal/infrastructure/db/redis"
	"github.com/powerbill/electricity-records/internal/infrastructure/mq"
	"github.com/powerbill/electricity-records/internal/infrastructure/queue"
	"github.com/powerbill/electricity-records/internal/infrastructure/storage"
	"github.com/powerbill/electricity-records/pkg/logger"
)

const serviceName = "electricity-records"

// eventPublisher is implemented by both the AMQP and the log-only publisher.
type eventPublisher interface {
	ports.EventPublisher
	Close() error
}

func newLogger(cfg *config.Config) zerolog.Logger {
	return logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: serviceName,
	})
}

func provideMongo(lc fx.Lifecycle, cfg *config.Config, log zerolog.Logger) (*mongodriver.Database, error) {
	client, db, err := mongo.Connect(context.Background(), mongo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		return nil, err
	}
	log.Info().Str("database", cfg.Mongo.Database).Msg("connected to mongodb")

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Disconnect(ctx)
		},
	})
	return db, nil
}

func provideRedis(lc fx.Lifecycle, cfg *config.Config, log zerolog.Logger) (*goredis.Client, error) {
	client, err := redis.Connect(context.Background(), redis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err != nil {
		return nil, err
	}
	log.Info().Str("addr", cfg.Redis.Addr).Msg("connected to redis")

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

func provideAccountRepository(db *mongodriver.Database) *mongo.AccountRepository {
	return mongo.NewAccountRepository(db)
}

func provideRecordRepository(db *mongodriver.Database) *mongo.RecordRepository {
	return mongo.NewRecordRepository(db)
}

func provideIdempotencyStore(client *goredis.Client, cfg *config.Config) *redis.IdempotencyStore {
	return redis.NewIdempotencyStore(client, cfg.Redis.IdempotencyTTL)
}

func provideBillStore(cfg *config.Config) (*storage.BillStore, error) {
	return storage.NewBillStore(cfg.Upload.Dir, cfg.Upload.MaxBytes)
}

// provideEventPublisher dials RabbitMQ when AMQP_URL is set and otherwise
// falls back to logging events.
func provideEventPublisher(lc fx.Lifecycle, cfg *config.Config, log zerolog.Logger) (eventPublisher, error) {
	var pub eventPublisher
	if cfg.Events.AMQPURL == "" {
		log.Warn().Msg("AMQP_URL not set, record events are only logged")
		pub = mq.NewLogPublisher(log)
	} else {
		p, err := mq.Dial(cfg.Events.AMQPURL, cfg.Events.Exchange, log)
		if err != nil {
			return nil, err
		}
		log.Info().Str("exchange", cfg.Events.Exchange).Msg("connected to rabbitmq")
		pub = p
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return pub.Close()
		},
	})
	return pub, nil
}

func provideDispatcher(lc fx.Lifecycle, cfg *config.Config, pub eventPublisher, log zerolog.Logger) *queue.Dispatcher {
	d := queue.NewDispatcher(cfg.Events.Workers, pub, log)

	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			d.Start(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			d.Stop()
			cancel()
			return nil
		},
	})
	return d
}

func provideAnomalyDetector(cfg *config.Config) *anomaly.Detector {
	return anomaly.NewDetector(cfg.Anomaly.SpikeThreshold, cfg.Anomaly.MinDataPoints)
}

func provideAuthService(accounts *mongo.AccountRepository, cfg *config.Config, log zerolog.Logger) *service.AuthService {
	return service.NewAuthService(accounts, cfg.JWTSecret, cfg.TokenTTL, log)
}

func provideRecordService(
	records *mongo.RecordRepository,
	accounts *mongo.AccountRepository,
	idem *redis.IdempotencyStore,
	images *storage.BillStore,
	dispatcher *queue.Dispatcher,
	detector *anomaly.Detector,
	cfg *config.Config,
	log zerolog.Logger,
) *service.RecordService {
	return service.NewRecordService(records, accounts,
		service.RecordServiceConfig{
			DefaultRatePerUnit: cfg.Billing.DefaultRatePerUnit,
			AnomalyWindow:      cfg.Anomaly.Window,
		},
		log,
		service.WithIdempotencyStore(idem),
		service.WithBillImageStore(images),
		service.WithEventSink(dispatcher),
		service.WithAnomalyDetector(detector),
	)
}

func provideRouter(
	cfg *config.Config,
	auth *service.AuthService,
	records *service.RecordService,
	images *storage.BillStore,
	db *mongodriver.Database,
	rdb *goredis.Client,
	log zerolog.Logger,
) *echo.Echo {
	return api.NewRouter(api.RouterConfig{
		JWTSecret:      cfg.JWTSecret,
		CORSOrigins:    cfg.HTTP.CORSOrigins,
		AuthRateLimit:  cfg.HTTP.AuthRateLimit,
		UploadDir:      images.Dir(),
		UploadMaxBytes: cfg.Upload.MaxBytes,
	}, api.RouterDeps{
		Auth:    auth,
		Records: records,
		HealthChecks: map[string]handler.DependencyCheck{
			"mongodb": func(ctx context.Context) error { return db.Client().Ping(ctx, nil) },
			"redis":   func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		},
	}, log)
}

func ensureIndexes(accounts *mongo.AccountRepository, records *mongo.RecordRepository) error {
	return mongo.EnsureIndexes(context.Background(), accounts, records)
}

func bootstrapAdmin(cfg *config.Config, auth *service.AuthService, log zerolog.Logger) error {
	if cfg.Bootstrap.AdminEmail == "" || cfg.Bootstrap.AdminPassword == "" {
		return nil
	}
	err := auth.EnsureAdmin(context.Background(), ports.AdminSeed{
		Name:     cfg.Bootstrap.AdminName,
		Email:    cfg.Bootstrap.AdminEmail,
		Password: cfg.Bootstrap.AdminPassword,
	})
	if err != nil {
		return err
	}
	log.Info().Str("email", cfg.Bootstrap.AdminEmail).Msg("bootstrap admin ensured")
	return nil
}

func startServer(lc fx.Lifecycle, e *echo.Echo, cfg *config.Config, log zerolog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				log.Info().Str("port", cfg.Port).Msg("http server listening")
				if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal().Err(err).Msg("http server failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("shutting down http server")
			return e.Shutdown(ctx)
		},
	})
}
