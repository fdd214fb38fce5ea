// seed loads a small demo catalog into an empty database.
// It does nothing when any product (active or deleted) already exists.
//
// Usage: go run ./cmd/seed
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"shop-admin/internal/config"
	"shop-admin/internal/core"
	"shop-admin/internal/db"
	"shop-admin/internal/logger"
)

type seedProduct struct {
	name     string
	price    string
	cost     string
	quantity int
	barcode  string
	desc     string
}

var catalog = []seedProduct{
	{"Ceramic Mug", "12.50", "4.10", 40, "4006381333931", "350ml glazed stoneware mug"},
	{"Linen Tote Bag", "18.00", "6.75", 25, "4006381333948", "Natural linen, reinforced handles"},
	{"Scented Candle", "22.00", "7.20", 30, "4006381333955", "Soy wax, cedar and amber"},
	{"Notebook A5", "9.90", "2.80", 60, "4006381333962", "Dotted pages, lay-flat binding"},
	{"Wool Scarf", "35.00", "14.00", 12, "4006381333979", "Merino blend, charcoal"},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(logger.Options{
		ServiceName: "shop-admin-seed",
		Format:      "console",
		Output:      os.Stderr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DB.URL)
	if err != nil {
		log.Error(ctx, "failed to connect", err)
		os.Exit(1)
	}
	defer pool.Close()

	var existing int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM products").Scan(&existing); err != nil {
		log.Error(ctx, "failed to count products", err)
		os.Exit(1)
	}
	if existing > 0 {
		log.Info(log.WithField(ctx, "products", existing), "catalog not empty, nothing to seed")
		return
	}

	inventory := core.NewInventoryService(pool, core.NewHistoryLog(pool))
	for _, sp := range catalog {
		qty := sp.quantity
		p, err := inventory.CreateProduct(ctx, core.ProductInput{
			Name:        sp.name,
			Price:       decimal.NewNullDecimal(decimal.RequireFromString(sp.price)),
			CostPrice:   decimal.NewNullDecimal(decimal.RequireFromString(sp.cost)),
			Quantity:    &qty,
			Description: sp.desc,
			Barcode:     sp.barcode,
		})
		if err != nil {
			log.Error(log.WithField(ctx, "product", sp.name), "failed to seed product", err)
			os.Exit(1)
		}
		log.Info(log.WithFields(ctx, map[string]any{"id": p.ID, "product": p.Name}), "seeded")
	}
}
