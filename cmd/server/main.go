package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"deenice_finds/config"
	"deenice_finds/internal/delivery"
	grpcHealth "deenice_finds/internal/delivery/grpc"
	"deenice_finds/internal/events"
	"deenice_finds/internal/notify"
	"deenice_finds/internal/repository"
	"deenice_finds/internal/usecase"
	"deenice_finds/pkg/db"
	"deenice_finds/pkg/logger"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

type stores struct {
	orders     repository.Snapshotter
	revisions  repository.Snapshotter
	categories repository.Snapshotter
}

// revisionFile sits next to the orders file: data/orders.json -> data/orders.revision.json.
func revisionFile(ordersFile string) string {
	return strings.TrimSuffix(ordersFile, filepath.Ext(ordersFile)) + ".revision.json"
}

// openStores returns the persistence backends plus a cleanup func for whatever
// connection they share.
func openStores(ctx context.Context, cfg *config.ServerConfig, log *logrus.Logger) (stores, func(), error) {
	noop := func() {}
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		database, err := db.ConnectPostgres(cfg.DatabaseURL, log)
		if err != nil {
			return stores{}, noop, err
		}
		cleanup := func() {
			if err := database.Close(); err != nil {
				log.Errorf("Error closing database connection: %v", err)
			} else {
				log.Info("Database connection closed.")
			}
		}
		var s stores
		for name, dst := range map[string]*repository.Snapshotter{"orders": &s.orders, "orders_revision": &s.revisions, "categories": &s.categories} {
			if *dst, err = repository.NewPostgresSnapshotter(ctx, database, name, log); err != nil {
				return stores{}, cleanup, err
			}
		}
		return s, cleanup, nil

	case config.BackendMySQL:
		gdb, err := db.ConnectMySQL(cfg.MySQLDSN, log)
		if err != nil {
			return stores{}, noop, err
		}
		cleanup := noop
		if sqlDB, err := gdb.DB(); err == nil {
			cleanup = func() { _ = sqlDB.Close() }
		}
		var s stores
		for name, dst := range map[string]*repository.Snapshotter{"orders": &s.orders, "orders_revision": &s.revisions, "categories": &s.categories} {
			if *dst, err = repository.NewGormSnapshotter(gdb, name, log); err != nil {
				return stores{}, cleanup, err
			}
		}
		return s, cleanup, nil

	case config.BackendDynamoDB:
		var opts []func(*awsconfig.LoadOptions) error
		if cfg.AWSRegion != "" {
			opts = append(opts, awsconfig.WithRegion(cfg.AWSRegion))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return stores{}, noop, err
		}
		client := dynamodb.NewFromConfig(awsCfg)
		return stores{
			orders:     repository.NewDynamoSnapshotter(client, cfg.DynamoDBTable, "orders", log),
			revisions:  repository.NewDynamoSnapshotter(client, cfg.DynamoDBTable, "orders_revision", log),
			categories: repository.NewDynamoSnapshotter(client, cfg.DynamoDBTable, "categories", log),
		}, noop, nil

	default:
		return stores{
			orders:     repository.NewFileSnapshotter(cfg.OrdersFile, log),
			revisions:  repository.NewFileSnapshotter(revisionFile(cfg.OrdersFile), log),
			categories: repository.NewFileSnapshotter(cfg.CategoriesFile, log),
		}, noop, nil
	}
}

func main() {
	log := logger.Setup("info", "json")
	cfg := config.LoadServerConfig(log)
	log = logger.Setup(cfg.LogLevel, cfg.LogFormat)
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	log.Info("Starting Deenice Finds order service...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStores(ctx, cfg, log)
	if err != nil {
		log.Fatalf("Failed to initialize %s storage: %v", cfg.StoreBackend, err)
	}
	defer closeStore()

	orderRepo := repository.NewOrderRepository(store.orders, log, repository.WithRevisionStore(store.revisions))
	if err := orderRepo.Load(ctx); err != nil {
		// memory stays authoritative; the next save overwrites the unreadable snapshot
		log.Errorf("Failed to load orders, starting empty: %v", err)
	}
	categoryRepo := repository.NewCategoryRepository(store.categories, log)
	if err := categoryRepo.Load(ctx); err != nil {
		log.Errorf("Failed to load categories, starting empty: %v", err)
	}
	log.Info("Repositories initialized.")

	passwordHash := cfg.AdminPasswordHash
	if passwordHash == "" {
		if passwordHash, err = usecase.HashPassword(cfg.AdminPassword); err != nil {
			log.Fatalf("Failed to hash admin password: %v", err)
		}
	}

	bus := events.NewBus()
	stopKafka := func(context.Context) error { return nil }
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		forwarder := events.NewKafkaForwarder(events.NewKafkaWriter(brokers, cfg.KafkaTopic), log)
		stopKafka = forwarder.Start(bus)
		log.Infof("Publishing order events to Kafka topic %s", cfg.KafkaTopic)
	}

	notifyOpts := notify.DefaultOptions()
	notifyOpts.StoreName = cfg.StoreName
	notifyOpts.DefaultCurrency = cfg.StoreCurrency

	orderUseCase := usecase.NewOrderUseCase(orderRepo, bus, notifyOpts, log)
	categoryUseCase := usecase.NewCategoryUseCase(categoryRepo, log)
	authUseCase := usecase.NewAuthUseCase(usecase.AuthConfig{
		Username:     cfg.AdminUsername,
		PasswordHash: passwordHash,
		Secret:       []byte(cfg.JWTSecret),
		TokenTTL:     cfg.TokenTTL,
		IdleTimeout:  cfg.SessionIdleTimeout,
	}, log)
	log.Info("Use cases initialized.")

	router := delivery.NewRouter(delivery.RouterConfig{
		Orders:       orderUseCase,
		Categories:   categoryUseCase,
		Auth:         authUseCase,
		MaxBodyBytes: cfg.MaxBodyBytes,
		Log:          log,
	})
	srv := &http.Server{
		Addr:              cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	saveDone := make(chan struct{})
	go func() {
		usecase.RunAutoSave(ctx, orderUseCase, cfg.AutosaveInterval, log)
		close(saveDone)
	}()

	var health *grpcHealth.HealthServer
	if cfg.GrpcPort != "" {
		lis, err := net.Listen("tcp", cfg.GrpcPort)
		if err != nil {
			log.Fatalf("Failed to listen on port %s: %v", cfg.GrpcPort, err)
		}
		health = grpcHealth.NewHealthServer(log)
		go func() {
			if err := health.Serve(lis); err != nil {
				log.Errorf("gRPC health server stopped: %v", err)
			}
		}()
		log.Infof("gRPC health server listening on %s", cfg.GrpcPort)
	}

	go func() {
		log.Infof("Starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("Failed to start server on port %s: %v", cfg.Port, err)
			stop()
		}
	}()
	if health != nil {
		health.SetServing(true)
	}
	log.Infof("Admin user %q, %d orders loaded", cfg.AdminUsername, orderUseCase.Count())

	<-ctx.Done()
	log.Warn("Shutdown signal received...")
	if health != nil {
		health.SetServing(false)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("HTTP server shutdown failed: %v", err)
	}
	if health != nil {
		health.Stop()
	}

	// RunAutoSave does the final save once ctx is done
	<-saveDone

	// events from the last in-flight requests are queued by now
	flushCtx, cancelFlush := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelFlush()
	if err := stopKafka(flushCtx); err != nil {
		log.Errorf("Kafka forwarder shutdown failed: %v", err)
	}
	log.Info("Order service shut down gracefully.")
}
