package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Alecwce/tienda-AR/internal/domain"
	"github.com/Alecwce/tienda-AR/internal/poller"
	"github.com/Alecwce/tienda-AR/internal/repository"
	"github.com/segmentio/kafka-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var errEmptySeed = errors.New("seed file has no products")

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply product database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			repo, err := repository.NewRepository(repository.Config{Driver: cfg.DBDriver, DSN: cfg.DBDSN})
			if err != nil {
				return err
			}
			defer repo.Close()

			if err := repo.RunMigrations(cfg.MigrationsPath); err != nil {
				return err
			}
			zap.L().Info("migrations applied", zap.String("driver", cfg.DBDriver), zap.String("path", cfg.MigrationsPath))
			return nil
		},
	}
}

func newSeedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert products from a YAML file and announce the catalog change",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return seed(cmd.Context(), cfg, file, zap.L())
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "configs/products.yaml", "YAML file with a top-level products list")
	return cmd
}

type seedFile struct {
	Products []domain.RawProduct `yaml:"products"`
}

func readSeedFile(path string) ([]domain.RawProduct, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	if len(f.Products) == 0 {
		return nil, errEmptySeed
	}
	for i, p := range f.Products {
		if p.ID == "" {
			return nil, fmt.Errorf("seed product #%d: %w", i+1, domain.ErrMissingProductID)
		}
	}
	return f.Products, nil
}

func seed(ctx context.Context, cfg *Config, path string, logger *zap.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	products, err := readSeedFile(path)
	if err != nil {
		return err
	}

	repo, err := repository.NewRepository(repository.Config{Driver: cfg.DBDriver, DSN: cfg.DBDSN})
	if err != nil {
		return err
	}
	defer repo.Close()
	if err := repo.RunMigrations(cfg.MigrationsPath); err != nil {
		return err
	}
	if err := repo.UpsertProducts(ctx, products); err != nil {
		return err
	}
	logger.Info("products seeded", zap.Int("count", len(products)), zap.String("file", path))

	if len(cfg.KafkaBrokers) == 0 {
		return nil
	}
	return announceCatalogChange(ctx, cfg.KafkaBrokers)
}

// announceCatalogChange tells running servers to reload their catalog.
func announceCatalogChange(ctx context.Context, brokers []string) error {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  poller.CatalogTopic,
		AllowAutoTopicCreation: true,
	}
	defer writer.Close()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	msg := kafka.Message{Value: []byte(`{"event":"` + poller.EventProductsUpdated + `"}`)}
	if err := writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish catalog event: %w", err)
	}
	return nil
}
