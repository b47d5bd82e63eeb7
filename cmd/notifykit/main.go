package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/notifykit/pkg/config"
	"github.com/dmitrymomot/notifykit/pkg/email"
	"github.com/dmitrymomot/notifykit/pkg/httpserver"
	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/mongo"
	"github.com/dmitrymomot/notifykit/pkg/queue"
	"github.com/dmitrymomot/notifykit/pkg/redis"
	"github.com/dmitrymomot/notifykit/pkg/telegram"
	"github.com/dmitrymomot/notifykit/svc/notification"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// queueStorage is what the process needs from a queue backend.
type queueStorage interface {
	queue.EnqueuerRepository
	queue.WorkerRepository
	queue.PrunerRepository
}

func run() error {
	var app appConfig
	if err := config.Load(&app); err != nil {
		return err
	}
	if err := app.validate(); err != nil {
		return err
	}

	log := logger.New(
		logger.WithEnvironment(app.Env, app.ServiceName),
		logger.WithContextValue("request_id", middleware.RequestIDKey),
	)
	logger.SetAsDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, configStore, closeStore, err := openStorage(ctx, app, log)
	if err != nil {
		return err
	}
	defer closeStore()

	var queueCfg queue.Config
	if err := config.Load(&queueCfg); err != nil {
		return err
	}

	storage, closeQueue, err := openQueue(ctx, app, queueCfg, log)
	if err != nil {
		return err
	}
	defer closeQueue()

	resolver := notification.NewConfigResolver(configStore)
	g, ctx := errgroup.WithContext(ctx)

	if app.runsAPI() {
		handler, err := buildAPI(app, queueCfg, storage, repo, resolver, configStore, log)
		if err != nil {
			return err
		}
		var httpCfg httpserver.Config
		if err := config.Load(&httpCfg); err != nil {
			return err
		}
		server := httpserver.NewFromConfig(httpCfg, httpserver.WithLogger(log.With(logger.Component("http"))))
		g.Go(server.RunFunc(ctx, handler))
	}

	if app.runsWorker() {
		worker, pruner, err := buildWorker(app, queueCfg, storage, repo, resolver, log)
		if err != nil {
			return err
		}
		g.Go(worker.Run(ctx))
		g.Go(pruner.Run(ctx))
	}

	log.Info("notifykit started",
		slog.String("role", app.Role),
		slog.String("storage", app.StorageBackend),
		slog.String("queue", app.QueueBackend),
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("notifykit stopped")
	return nil
}

func openStorage(ctx context.Context, app appConfig, log *slog.Logger) (notification.Repository, notification.ConfigStore, func(), error) {
	seed, err := loadOwnerSeed(app.OwnerConfigFile)
	if err != nil {
		return nil, nil, nil, err
	}

	if app.StorageBackend == backendMemory {
		log.Warn("using in-memory notification storage; data is lost on restart")
		return notification.NewMemoryRepository(), notification.NewMemoryConfigStore(seed...), func() {}, nil
	}

	var mongoCfg mongo.Config
	if err := config.Load(&mongoCfg); err != nil {
		return nil, nil, nil, err
	}
	db, err := mongo.NewWithDatabase(ctx, mongoCfg)
	if err != nil {
		return nil, nil, nil, err
	}
	closeFn := func() {
		if err := db.Client().Disconnect(context.Background()); err != nil {
			log.Error("failed to disconnect from mongodb", logger.Error(err))
		}
	}

	repo := notification.NewMongoRepository(db)
	if err := repo.EnsureIndexes(ctx); err != nil {
		closeFn()
		return nil, nil, nil, err
	}
	store := notification.NewMongoConfigStore(db)
	if err := store.Seed(ctx, seed...); err != nil {
		closeFn()
		return nil, nil, nil, err
	}
	return repo, store, closeFn, nil
}

func loadOwnerSeed(path string) ([]*notification.OwnerConfig, error) {
	if path == "" {
		return nil, nil
	}
	return notification.LoadConfigsYAMLFile(path)
}

func openQueue(ctx context.Context, app appConfig, queueCfg queue.Config, log *slog.Logger) (queueStorage, func(), error) {
	if app.QueueBackend == backendMemory {
		ms := queue.NewMemoryStorage()
		return ms, func() { _ = ms.Close() }, nil
	}

	var redisCfg redis.Config
	if err := config.Load(&redisCfg); err != nil {
		return nil, nil, err
	}

	client, err := redis.Connect(ctx, redisCfg)
	if err != nil {
		return nil, nil, err
	}
	rs, err := queue.NewRedisStorage(client, queueCfg.RedisKeyPrefix)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return rs, func() {
		if err := client.Close(); err != nil {
			log.Error("failed to close redis client", logger.Error(err))
		}
	}, nil
}

func buildAPI(
	app appConfig,
	queueCfg queue.Config,
	storage queueStorage,
	repo notification.Repository,
	resolver *notification.ConfigResolver,
	configStore notification.ConfigStore,
	log *slog.Logger,
) (http.Handler, error) {
	enqueuer, err := queue.NewEnqueuer(storage,
		queue.WithDefaultQueue(app.QueueName),
		queue.WithDefaultMaxAttempts(queueCfg.MaxAttempts),
	)
	if err != nil {
		return nil, err
	}

	svc := notification.NewService(repo, resolver, notification.NewTaskQueue(enqueuer, ""),
		notification.WithServiceLogger(log.With(logger.Component("service"))),
	)
	h := notification.NewHTTPHandler(svc, notification.NewConfigManager(configStore),
		notification.WithHTTPLogger(log.With(logger.Component("http"))),
	)
	return h.Routes(), nil
}

func buildWorker(
	app appConfig,
	queueCfg queue.Config,
	storage queueStorage,
	repo notification.Repository,
	resolver *notification.ConfigResolver,
	log *slog.Logger,
) (*queue.Worker, *queue.Pruner, error) {
	var emailCfg email.Config
	if err := config.Load(&emailCfg); err != nil {
		return nil, nil, err
	}
	var tgCfg telegram.Config
	if err := config.Load(&tgCfg); err != nil {
		return nil, nil, err
	}

	dispatcher, err := notification.NewDispatcher(repo, resolver,
		[]notification.Deliverer{
			notification.NewEmailChannel(email.NewSenderFactory(emailCfg), notification.WithEmailTimeout(emailCfg.Timeout)),
			notification.NewTelegramChannel(telegram.NewClient(tgCfg)),
		},
		notification.WithDispatcherLogger(log.With(logger.Component("dispatcher"))),
	)
	if err != nil {
		return nil, nil, err
	}

	worker, err := queue.NewWorker(storage,
		queue.WithQueues(app.QueueName),
		queue.WithWorkerConfig(queueCfg),
		queue.WithWorkerLogger(log.With(logger.Component("worker"))),
	)
	if err != nil {
		return nil, nil, err
	}
	if err := worker.RegisterHandler(dispatcher.Handler()); err != nil {
		return nil, nil, err
	}

	pruner, err := queue.NewPruner(storage, queueCfg.PruneSchedule,
		queue.WithRetention(queueCfg.Retention),
		queue.WithPrunerLogger(log.With(logger.Component("pruner"))),
	)
	if err != nil {
		return nil, nil, err
	}
	return worker, pruner, nil
}
