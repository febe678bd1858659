package main

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"todohabit/internal/config"
	"todohabit/internal/httpserver"
	"todohabit/internal/identity"
	"todohabit/internal/model"
	"todohabit/internal/notify"
	"todohabit/internal/repository"
	"todohabit/internal/service/store"
	"todohabit/internal/session"
	"todohabit/pkg/circuitbreaker"
	"todohabit/pkg/db"
	"todohabit/pkg/logger"
	"todohabit/pkg/mq"
	"todohabit/pkg/otel"
	"todohabit/pkg/redis"
	"todohabit/pkg/util"
)

// app is the wired process: config, logger, stores and the session registry.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	postgres *repository.PostgresDocumentStore
	adapter  *store.Adapter
	registry *session.Registry
	ready    []httpserver.ReadinessCheck

	closers []func()
}

func loadApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configEnv, configDir)
	if err != nil {
		return nil, err
	}
	log, err := logger.NewLogger(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &app{cfg: cfg, log: log}
	if err := a.wire(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// close runs closers in reverse order.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	_ = a.log.Sync()
}

func (a *app) wire(ctx context.Context) error {
	cfg, log := a.cfg, a.log

	shutdownOtel, err := otel.Init(cfg.Otel, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	a.onClose(shutdownOtel)

	remote, err := a.openRemote(ctx)
	if err != nil {
		return err
	}
	fallback, err := a.openFallback(ctx)
	if err != nil {
		return err
	}

	breaker := circuitbreaker.NewCircuitBreaker(breakerConfig(cfg),
		circuitbreaker.WithStateChange(func(from, to circuitbreaker.State) {
			log.Warn("Remote store breaker state changed",
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		}),
	)
	a.adapter = store.NewAdapter(remote, fallback, log,
		store.WithBreaker(breaker),
		store.WithCollection(cfg.Remote.Collection),
		store.WithTimeout(cfg.Remote.Timeout),
	)

	deps := session.Deps{
		Store:            a.adapter,
		Location:         cfg.Location(),
		ReminderInterval: cfg.Reminder.Interval,
		WriteTimeout:     cfg.Remote.Timeout,
		LoadTimeout:      3 * cfg.Remote.Timeout,
		Logger:           log,
	}
	if cfg.Reminder.Dedup {
		rdb, err := redis.NewRedisClient(ctx, cfg.Reminder.Redis)
		if err != nil {
			return fmt.Errorf("connect reminder dedup redis: %w", err)
		}
		a.onClose(func() { rdb.Close() })
		deps.Dedup = util.NewDeduper(rdb, cfg.Reminder.DedupTTL, log)
	}

	sinks, err := a.sinkFactory()
	if err != nil {
		return err
	}
	a.registry = session.NewRegistry(deps, sinks)
	return nil
}

func (a *app) openRemote(ctx context.Context) (store.DocumentStore, error) {
	cfg, log := a.cfg, a.log
	switch cfg.Remote.Driver {
	case config.RemoteMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Remote.Mongo.URI))
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		a.onClose(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(ctx)
		})
		repo := repository.NewMongoDocumentStore(client.Database(cfg.Remote.Mongo.Database), log)
		a.ready = append(a.ready, httpserver.ReadinessCheck{Name: "mongo", Check: repo.Ping})
		log.Info("Remote store: mongo", zap.String("database", cfg.Remote.Mongo.Database))
		return repo, nil
	default:
		pool, err := db.NewConnection(ctx, cfg.Remote.DB, log)
		if err != nil {
			return nil, err
		}
		a.onClose(pool.Close)
		a.postgres = repository.NewPostgresDocumentStore(pool, log)
		a.ready = append(a.ready, httpserver.ReadinessCheck{Name: "db", Check: a.postgres.Ping})
		log.Info("Remote store: postgres", zap.String("host", cfg.Remote.DB.Host))
		return a.postgres, nil
	}
}

func (a *app) openFallback(ctx context.Context) (store.FallbackStore, error) {
	cfg, log := a.cfg, a.log
	switch cfg.Fallback.Driver {
	case config.FallbackRedis:
		rdb, err := redis.NewRedisClient(ctx, cfg.Fallback.Redis)
		if err != nil {
			return nil, fmt.Errorf("connect fallback redis: %w", err)
		}
		a.onClose(func() { rdb.Close() })
		log.Info("Fallback store: redis", zap.String("addr", cfg.Fallback.Redis.Addr))
		return repository.NewRedisFallbackStore(rdb, log), nil
	default:
		fs, err := repository.OpenSQLiteFallbackStore(cfg.Fallback.SQLite.Path, log)
		if err != nil {
			return nil, err
		}
		a.onClose(func() { fs.Close() })
		log.Info("Fallback store: sqlite", zap.String("path", cfg.Fallback.SQLite.Path))
		return fs, nil
	}
}

func (a *app) sinkFactory() (notify.SinkFactory, error) {
	cfg, log := a.cfg, a.log
	permission, err := notify.ParsePermission(cfg.Notifications.Permission)
	if err != nil {
		return nil, err
	}

	if cfg.Notifications.Sink != config.SinkMQ {
		return func(uid string) notify.Sink {
			return notify.NewLogSink(uid, permission, log)
		}, nil
	}

	publisher, err := mq.NewPublisher(cfg.MQ.URL, cfg.MQ.Exchange)
	if err != nil {
		return nil, fmt.Errorf("connect notification publisher: %w", err)
	}
	a.onClose(publisher.Close)
	a.ready = append(a.ready, httpserver.ReadinessCheck{Name: "mq", Check: func(context.Context) error {
		if !publisher.IsConnected() {
			return fmt.Errorf("publisher disconnected")
		}
		return nil
	}})
	return func(uid string) notify.Sink {
		return notify.NewMQSink(uid, publisher, permission, log)
	}, nil
}

func (a *app) jwtProvider() *identity.JWTProvider {
	return identity.NewJWTProvider(a.cfg.JWT.Secret, a.cfg.JWT.Issuer)
}

// openSession loads uid's session for offline commands.
func (a *app) openSession(ctx context.Context, uid string) (*session.Session, error) {
	if uid == "" {
		return nil, fmt.Errorf("--user is required")
	}
	s, err := a.registry.Ensure(ctx, model.Identity{ID: uid})
	if err != nil {
		return nil, err
	}
	if state, loadErr := s.State(); state == session.StateDegraded {
		a.log.Warn("Working on local fallback data", zap.String("banner", s.Banner()), zap.Error(loadErr))
	}
	return s, nil
}

func breakerConfig(cfg *config.Config) circuitbreaker.Config {
	bc := circuitbreaker.DefaultConfig()
	if cfg.Breaker.FailureThreshold > 0 {
		bc.FailureThreshold = cfg.Breaker.FailureThreshold
	}
	if cfg.Breaker.SuccessThreshold > 0 {
		bc.SuccessThreshold = cfg.Breaker.SuccessThreshold
	}
	if cfg.Breaker.Timeout > 0 {
		bc.Timeout = cfg.Breaker.Timeout
	}
	if cfg.Breaker.HalfOpenMaxRequests > 0 {
		bc.HalfOpenMaxRequests = cfg.Breaker.HalfOpenMaxRequests
	}
	return bc
}
