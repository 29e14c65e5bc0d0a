package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Alecwce/tienda-AR/internal/cart"
	"github.com/Alecwce/tienda-AR/internal/catalog"
	"github.com/Alecwce/tienda-AR/internal/domain"
	h "github.com/Alecwce/tienda-AR/internal/http"
	"github.com/Alecwce/tienda-AR/internal/loader"
	"github.com/Alecwce/tienda-AR/internal/offline"
	"github.com/Alecwce/tienda-AR/internal/poller"
	"github.com/Alecwce/tienda-AR/internal/promo"
	"github.com/Alecwce/tienda-AR/internal/publisher"
	"github.com/Alecwce/tienda-AR/internal/repository"
	"github.com/Alecwce/tienda-AR/internal/storage"
	"github.com/Alecwce/tienda-AR/internal/user"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the gRPC health service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return serve(cfg, zap.L())
		},
	}
}

func serve(cfg *Config, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo, err := repository.NewRepository(repository.Config{Driver: cfg.DBDriver, DSN: cfg.DBDSN})
	if err != nil {
		return err
	}
	defer repo.Close()
	if err := repo.RunMigrations(cfg.MigrationsPath); err != nil {
		return err
	}
	logger.Info("product database ready", zap.String("driver", cfg.DBDriver))

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	resolver := promo.Default()
	if cfg.PromoFile != "" {
		if resolver, err = promo.LoadFile(cfg.PromoFile); err != nil {
			return err
		}
	}
	logger.Info("promo codes loaded", zap.Int("codes", len(resolver.Codes())))

	queue := offline.NewQueue(store, logger.Named("offline"))
	productLoader := loader.New(repo, loader.WithLogger(logger.Named("loader")))
	catalogStore := catalog.NewStore(productLoader, store, logger.Named("catalog"))
	cartEngine := cart.NewEngine(store, resolver, queue, logger.Named("cart"))
	userStore := user.NewStore(store, logger.Named("user"))

	for name, restore := range map[string]func(context.Context) error{
		"cart":    cartEngine.Restore,
		"catalog": catalogStore.Restore,
		"user":    userStore.Restore,
	} {
		if err := restore(ctx); err != nil {
			return fmt.Errorf("failed to restore %s state: %w", name, err)
		}
	}

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	catalogStore.OnLoad(func([]domain.Product) {
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	})

	go func() {
		if err := catalogStore.Load(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("initial catalog load failed", zap.Error(err))
		}
	}()

	var flusher h.Flusher
	if len(cfg.KafkaBrokers) > 0 {
		syncPublisher := publisher.NewSyncPublisher(queue, cfg.SyncInterval, logger.Named("publisher"), cfg.KafkaBrokers...)
		defer syncPublisher.Close()
		go syncPublisher.Run(ctx)
		flusher = syncPublisher

		catalogPoller := poller.NewPoller(catalogStore, logger.Named("poller"), cfg.KafkaBrokers...)
		defer catalogPoller.Close()
		go catalogPoller.Run(ctx)

		logger.Info("kafka sync enabled", zap.Strings("brokers", cfg.KafkaBrokers))
	} else {
		logger.Info("kafka sync disabled, cart actions stay queued locally")
	}

	router := h.NewRouter(h.Handlers{
		Products: h.NewProductHandler(catalogStore),
		Catalog:  h.NewCatalogHandler(catalogStore, cfg.RequestTimeout),
		Cart:     h.NewCartHandler(cartEngine, catalogStore, cfg.RequestTimeout),
		User:     h.NewUserHandler(userStore, cfg.RequestTimeout),
		Sync:     h.NewSyncHandler(queue, flusher, cfg.RequestTimeout),
	}, logger.Named("http"), cfg.RequestTimeout)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("failed to listen on grpc port: %w", err)
	}
	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	errCh := make(chan error, 2)
	go func() {
		logger.Info("grpc health service listening", zap.String("port", cfg.GRPCPort))
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc server error: %w", err)
		}
	}()
	go func() {
		logger.Info("http api listening", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.Error("server failed, shutting down", zap.Error(err))
	}

	healthServer.Shutdown()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server forced to shutdown", zap.Error(err))
	}
	grpcServer.GracefulStop()

	logger.Info("server exited")
	return nil
}

// openStore connects the key-value backend that cart, catalog view, profile
// and offline queue write through to.
func openStore(ctx context.Context, cfg *Config, logger *zap.Logger) (storage.Store, func(), error) {
	switch cfg.StoreBackend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("redis connection failed: %w", err)
		}
		logger.Info("state store: redis", zap.String("addr", cfg.RedisAddr))
		return storage.NewRedisStore(client, "tienda", 0), func() { client.Close() }, nil
	case "mongo":
		db, err := storage.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("state store: mongo", zap.String("database", cfg.MongoDBName))
		return storage.NewMongoStore(db), func() {
			if err := db.Client().Disconnect(context.Background()); err != nil {
				logger.Warn("mongo disconnect failed", zap.Error(err))
			}
		}, nil
	default:
		logger.Info("state store: memory")
		return storage.NewMemoryStore(), func() {}, nil
	}
}
