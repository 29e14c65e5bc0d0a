// Package repository is the SQL product source read by the catalog loader.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/Alecwce/tienda-AR/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrUnsupportedDriver = errors.New("unsupported database driver")
)

type Config struct {
	Driver string
	DSN    string
}

type Repository struct {
	db     *sql.DB
	driver string
}

const productColumns = `id, name, brand, description, price, original_price, category, images,
		ar_overlay_url, model_3d_url, has_ar, is_new, is_featured, rating, review_count, stock,
		sizes, colors, tags, created_at`

func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Driver != DriverSQLite && cfg.Driver != DriverPostgres {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, cfg.Driver)
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if cfg.Driver == DriverSQLite {
		// sqlite allows a single writer
		db.SetMaxOpenConns(1)
	}

	return &Repository{db: db, driver: cfg.Driver}, nil
}

// RunMigrations applies the migrations found under migrationsPath/<driver>.
func (r *Repository) RunMigrations(migrationsPath string) error {
	var (
		driver database.Driver
		err    error
	)
	switch r.driver {
	case DriverSQLite:
		driver, err = sqlite.WithInstance(r.db, &sqlite.Config{})
	case DriverPostgres:
		driver, err = postgres.WithInstance(r.db, &postgres.Config{})
	}
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", filepath.Join(migrationsPath, r.driver)),
		r.driver,
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

// FetchProducts returns every product record ordered by id.
func (r *Repository) FetchProducts(ctx context.Context) ([]domain.RawProduct, error) {
	query := `SELECT ` + productColumns + ` FROM products ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.RawProduct, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return products, nil
}

func (r *Repository) GetProduct(ctx context.Context, id string) (domain.RawProduct, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	p, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RawProduct{}, fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	if err != nil {
		return domain.RawProduct{}, err
	}
	return p, nil
}

// UpsertProducts inserts or replaces the given records in one transaction.
func (r *Repository) UpsertProducts(ctx context.Context, products []domain.RawProduct) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			brand = excluded.brand,
			description = excluded.description,
			price = excluded.price,
			original_price = excluded.original_price,
			category = excluded.category,
			images = excluded.images,
			ar_overlay_url = excluded.ar_overlay_url,
			model_3d_url = excluded.model_3d_url,
			has_ar = excluded.has_ar,
			is_new = excluded.is_new,
			is_featured = excluded.is_featured,
			rating = excluded.rating,
			review_count = excluded.review_count,
			stock = excluded.stock,
			sizes = excluded.sizes,
			colors = excluded.colors,
			tags = excluded.tags,
			created_at = excluded.created_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, p := range products {
		args, err := productArgs(p)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to upsert product %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.RawProduct, error) {
	var (
		p                            domain.RawProduct
		description, arURL, modelURL sql.NullString
		originalPrice, rating        sql.NullFloat64
		hasAR, isNew, isFeatured     sql.NullBool
		reviewCount, stock           sql.NullInt64
		images, sizes, colors, tags  string
	)
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Brand,
		&description,
		&p.Price,
		&originalPrice,
		&p.Category,
		&images,
		&arURL,
		&modelURL,
		&hasAR,
		&isNew,
		&isFeatured,
		&rating,
		&reviewCount,
		&stock,
		&sizes,
		&colors,
		&tags,
		&p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return p, err
	}
	if err != nil {
		return p, fmt.Errorf("failed to scan product: %w", err)
	}

	p.Description = nullable(description.String, description.Valid)
	p.AROverlayURL = nullable(arURL.String, arURL.Valid)
	p.Model3DURL = nullable(modelURL.String, modelURL.Valid)
	p.OriginalPrice = nullable(originalPrice.Float64, originalPrice.Valid)
	p.Rating = nullable(rating.Float64, rating.Valid)
	p.HasAR = nullable(hasAR.Bool, hasAR.Valid)
	p.IsNew = nullable(isNew.Bool, isNew.Valid)
	p.IsFeatured = nullable(isFeatured.Bool, isFeatured.Valid)
	if reviewCount.Valid {
		v := int(reviewCount.Int64)
		p.ReviewCount = &v
	}
	if stock.Valid {
		v := int(stock.Int64)
		p.Stock = &v
	}

	lists := []struct {
		column string
		raw    string
		dest   any
	}{
		{"images", images, &p.Images},
		{"sizes", sizes, &p.Sizes},
		{"colors", colors, &p.Colors},
		{"tags", tags, &p.Tags},
	}
	for _, l := range lists {
		if err := json.Unmarshal([]byte(l.raw), l.dest); err != nil {
			return p, fmt.Errorf("failed to decode %s of product %s: %w", l.column, p.ID, err)
		}
	}

	return p, nil
}

func productArgs(p domain.RawProduct) ([]any, error) {
	images, err := encodeList(p.Images)
	if err != nil {
		return nil, err
	}
	sizes, err := encodeList(p.Sizes)
	if err != nil {
		return nil, err
	}
	colors, err := encodeList(p.Colors)
	if err != nil {
		return nil, err
	}
	tags, err := encodeList(p.Tags)
	if err != nil {
		return nil, err
	}

	return []any{
		p.ID,
		p.Name,
		p.Brand,
		p.Description,
		p.Price,
		p.OriginalPrice,
		p.Category,
		images,
		p.AROverlayURL,
		p.Model3DURL,
		p.HasAR,
		p.IsNew,
		p.IsFeatured,
		p.Rating,
		p.ReviewCount,
		p.Stock,
		sizes,
		colors,
		tags,
		p.CreatedAt,
	}, nil
}

func encodeList[T any](values []T) (string, error) {
	if values == nil {
		values = []T{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("failed to encode list: %w", err)
	}
	return string(data), nil
}

func nullable[T any](v T, valid bool) *T {
	if !valid {
		return nil
	}
	return &v
}
