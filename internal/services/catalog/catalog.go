// Package catalog serves the product catalog keyed by detector class id.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/mcoot/smartkiosk/internal/model"
	"github.com/mcoot/smartkiosk/internal/storage"
)

// snapshot is immutable once published
type snapshot struct {
	byClass  map[int]model.Product
	products []model.Product
}

// Catalog is a read-mostly view over stored products. Lookups read an
// immutable snapshot without locking; Reload swaps in a new one wholesale.
type Catalog struct {
	storage storage.Storage
	current atomic.Pointer[snapshot]
	logger  *slog.Logger
}

// New creates an empty catalog; call Reload to populate it
func New(store storage.Storage, logger *slog.Logger) *Catalog {
	c := &Catalog{
		storage: store,
		logger:  logger.With(slog.String("component", "catalog")),
	}
	c.current.Store(&snapshot{byClass: map[int]model.Product{}})
	return c
}

// Reload replaces the snapshot with the full product list from storage
func (c *Catalog) Reload(ctx context.Context) error {
	products, err := c.storage.ListProducts(ctx)
	if err != nil {
		return fmt.Errorf("%w: list products: %v", model.ErrPersistence, err)
	}

	next := &snapshot{
		byClass:  make(map[int]model.Product, len(products)),
		products: make([]model.Product, 0, len(products)),
	}
	for _, p := range products {
		if existing, dup := next.byClass[p.ClassID]; dup {
			c.logger.Warn("duplicate class id in catalog, keeping first",
				slog.Int("class_id", p.ClassID),
				slog.String("kept", string(existing.ID)),
				slog.String("ignored", string(p.ID)),
			)
			continue
		}
		next.byClass[p.ClassID] = *p
		next.products = append(next.products, *p)
	}
	c.current.Store(next)

	c.logger.Info("catalog loaded", slog.Int("products", len(next.products)))
	return nil
}

// Resolve returns the product mapped to a detector class
func (c *Catalog) Resolve(classID int) (model.Product, bool) {
	p, ok := c.current.Load().byClass[classID]
	return p, ok
}

// Products returns the current snapshot ordered by class id
func (c *Catalog) Products() []model.Product {
	snap := c.current.Load()
	out := make([]model.Product, len(snap.products))
	copy(out, snap.products)
	return out
}

// Len returns the number of products in the snapshot
func (c *Catalog) Len() int {
	return len(c.current.Load().products)
}
