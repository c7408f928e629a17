// Package localstore holds the keyed byte stores behind the shopper's local order cache.
// No store offers a bulk clear, and order-namespace keys cannot be deleted.
package localstore

import (
	"errors"
	"strings"
)

var ErrProtectedKey = errors.New("localstore: key is in the order namespace and cannot be deleted")

type Store interface {
	// Get returns ok=false when the key is absent.
	Get(key string) (value []byte, ok bool, err error)
	Put(key string, value []byte) error
	Delete(key string) error
	Keys() ([]string, error)
}

// IsProtectedKey matches orders, orders_*, *_orders, order:* and the legacy *Orders keys.
func IsProtectedKey(key string) bool {
	k := strings.ToLower(key)
	return k == "orders" ||
		strings.HasPrefix(k, "orders_") ||
		strings.HasSuffix(k, "_orders") ||
		strings.HasPrefix(k, "order:") ||
		strings.HasSuffix(k, "orders")
}
