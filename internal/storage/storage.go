package storage

import (
	"context"
	"errors"
)

// Store is the key-value persistence adapter the state holders write through to.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// ErrNotFound is returned by Get when nothing is stored under the key.
var ErrNotFound = errors.New("key not found")

// Keys used by the commerce core.
const (
	CartKey         = "virtual-vogue-cart"
	UserKey         = "virtual-vogue-user"
	OfflineQueueKey = "virtual-vogue-offline-queue"
	CatalogViewKey  = "virtual-vogue-catalog-view"
)
