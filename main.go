package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/yeremiapane/table-service/config"
	"github.com/yeremiapane/table-service/database"
	"github.com/yeremiapane/table-service/events"
	"github.com/yeremiapane/table-service/kds"
	"github.com/yeremiapane/table-service/models"
	"github.com/yeremiapane/table-service/router"
	"github.com/yeremiapane/table-service/services"
	"github.com/yeremiapane/table-service/storage"
	"github.com/yeremiapane/table-service/utils"
)

func main() {
	if err := run(); err != nil {
		utils.ErrorLogger.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return err
	}
	utils.InitLogger(cfg.Log.Level)
	utils.SetJWTSecret(cfg.JWT.Secret)
	if cfg.Server.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer closeStore()

	seeded, err := storage.SeedIfEmpty(ctx, store)
	if err != nil {
		return err
	}
	if seeded {
		utils.InfoLogger.Info("Seeded default tables")
	}

	hub := kds.NewHub()
	defer hub.Close()

	sinks := []events.Sink{hub}
	if cfg.Kafka.Enabled {
		publisher := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer publisher.Close()
		sinks = append(sinks, publisher)
		utils.InfoLogger.Infof("Publishing table events to kafka topic %s", cfg.Kafka.Topic)
	}

	dispatcher := services.NewEventDispatcher(256, sinks...)
	dispatcher.Start()
	defer dispatcher.Stop()

	opts := []services.Option{
		services.WithEvents(dispatcher),
		services.WithMaxRetries(cfg.Store.MaxRetries),
	}
	if cfg.Serializer.Kind == "actor" {
		actors := services.NewActorSerializer(nil)
		defer actors.Stop()
		opts = append(opts, services.WithSerializer(actors))
	}
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		opts = append(opts, services.WithLocker(services.NewRedisLocker(client, cfg.Redis.LockTTL)))
		utils.InfoLogger.Infof("Using redis table locks at %s", cfg.Redis.Addr)
	}

	manager := services.NewTableManager(store, opts...)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router.SetupRouter(manager, hub, cfg.Server),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		utils.InfoLogger.Printf("Listening on %s (store=%s, serializer=%s)", srv.Addr, cfg.Store.Driver, cfg.Serializer.Kind)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	utils.InfoLogger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openStore builds the table store for the configured driver. The returned
// close func is never nil.
func openStore(ctx context.Context, cfg config.StoreConfig) (storage.TableStore, func(), error) {
	noop := func() {}

	switch cfg.Driver {
	case config.DriverMemory:
		return storage.NewMemoryStore(models.DefaultTables), noop, nil

	case config.DriverFile:
		s, err := storage.NewFileStore(cfg.Path, models.DefaultTables)
		if err != nil {
			return nil, nil, err
		}
		return s, noop, nil

	case config.DriverMySQL, config.DriverSQLite:
		db, err := config.InitDB(cfg)
		if err != nil {
			return nil, nil, err
		}
		if err := database.Migrate(db); err != nil {
			return nil, nil, fmt.Errorf("failed to migrate: %w", err)
		}
		closeDB := func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
		return storage.NewGormStore(db, models.DefaultTables), closeDB, nil

	case config.DriverMongo:
		s, err := storage.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection, models.DefaultTables)
		if err != nil {
			return nil, nil, err
		}
		closeMongo := func() {
			c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = s.Close(c)
		}
		return s, closeMongo, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}
