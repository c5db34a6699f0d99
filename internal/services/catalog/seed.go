package catalog

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mcoot/smartkiosk/internal/model"
)

// seedFile is the on-disk product seed format:
//
//	products:
//	  - id: prod001
//	    name: 元翠茶
//	    price: 150
//	    class_id: 0
//	    class_name: yuancui_tea
type seedFile struct {
	Products []seedProduct `yaml:"products"`
}

type seedProduct struct {
	ID        string  `yaml:"id"`
	Name      string  `yaml:"name"`
	Price     float64 `yaml:"price"`
	ClassID   *int    `yaml:"class_id"`
	ClassName string  `yaml:"class_name"`
}

// DefaultProducts is the seed used when no seed file is configured
func DefaultProducts() []model.Product {
	return []model.Product{
		{ID: "prod001", Name: "元翠茶", Price: 150, ClassID: 0, ClassName: "yuancui_tea"},
		{ID: "prod002", Name: "分解茶", Price: 200, ClassID: 1, ClassName: "fenjie_tea"},
	}
}

// ParseSeed reads a YAML product seed
func ParseSeed(r io.Reader) ([]model.Product, error) {
	var f seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse catalog seed: %w", err)
	}

	products := make([]model.Product, 0, len(f.Products))
	for i, sp := range f.Products {
		switch {
		case sp.ID == "" || sp.Name == "":
			return nil, fmt.Errorf("catalog seed entry %d: id and name are required", i)
		case sp.ClassID == nil:
			return nil, fmt.Errorf("catalog seed entry %d: class_id is required", i)
		case sp.Price < 0:
			return nil, fmt.Errorf("catalog seed entry %d: price must not be negative", i)
		}
		products = append(products, model.Product{
			ID:        model.ProductID(sp.ID),
			Name:      sp.Name,
			Price:     sp.Price,
			ClassID:   *sp.ClassID,
			ClassName: sp.ClassName,
		})
	}
	return products, nil
}

// LoadSeedFile reads a YAML product seed from path
func LoadSeedFile(path string) ([]model.Product, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseSeed(f)
}

// Seed stores every product whose class id is not yet in storage and
// returns how many were inserted. Existing products are never modified.
func (c *Catalog) Seed(ctx context.Context, products []model.Product, now time.Time) (int, error) {
	existing, err := c.storage.ListProducts(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: list products: %v", model.ErrPersistence, err)
	}
	taken := make(map[int]bool, len(existing))
	for _, p := range existing {
		taken[p.ClassID] = true
	}

	inserted := 0
	for _, p := range products {
		if taken[p.ClassID] {
			continue
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		if err := c.storage.SaveProduct(ctx, &p); err != nil {
			return inserted, fmt.Errorf("%w: save product %s: %v", model.ErrPersistence, p.ID, err)
		}
		taken[p.ClassID] = true
		inserted++
	}
	return inserted, nil
}
