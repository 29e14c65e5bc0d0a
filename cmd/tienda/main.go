package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type Config struct {
	HTTPPort        string
	GRPCPort        string
	DBDriver        string
	DBDSN           string
	MigrationsPath  string
	StoreBackend    string
	RedisAddr       string
	RedisPassword   string
	MongoURI        string
	MongoDBName     string
	KafkaBrokers    []string
	PromoFile       string
	SyncInterval    time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

func loadConfig() (*Config, error) {
	cfg := &Config{
		HTTPPort:       getEnv("HTTP_PORT", "8080"),
		GRPCPort:       getEnv("GRPC_PORT", "50051"),
		DBDriver:       getEnv("DB_DRIVER", "sqlite"),
		DBDSN:          getEnv("DB_DSN", "./tienda.db"),
		MigrationsPath: getEnv("MIGRATIONS_PATH", "./internal/repository/migrations"),
		StoreBackend:   getEnv("STORE_BACKEND", "memory"),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		MongoURI:       getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:    getEnv("MONGO_DB_NAME", "tienda"),
		KafkaBrokers:   splitBrokers(getEnv("KAFKA_BROKERS", "")),
		PromoFile:      getEnv("PROMO_FILE", ""),
	}

	var err error
	if cfg.SyncInterval, err = getDuration("SYNC_INTERVAL", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = getDuration("REQUEST_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = getDuration("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}

	switch cfg.StoreBackend {
	case "memory", "redis", "mongo":
	default:
		return nil, fmt.Errorf("invalid STORE_BACKEND %q: want memory, redis or mongo", cfg.StoreBackend)
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: want a positive duration such as 5s", key, value)
	}
	return d, nil
}

func splitBrokers(v string) []string {
	var brokers []string
	for _, b := range strings.Split(v, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tienda",
		Short:         "Virtual Vogue commerce core: catalog, cart, promotions and profile API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newMigrateCmd(), newSeedCmd())
	return root
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck
	zap.ReplaceGlobals(logger)

	if err := newRootCmd().Execute(); err != nil {
		logger.Error("command failed", zap.Error(err))
		logger.Sync() //nolint:errcheck
		os.Exit(1)
	}
}
