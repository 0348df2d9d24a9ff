package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/aquapure/waterbot/core/logger"
)

// seedProduct is a catalog row inserted on first start.
type seedProduct struct {
	Name         string
	VolumeLiters float64
	Price        int64
	Stock        int
}

// defaultProducts is the starter catalog. Prices are minor units.
var defaultProducts = []seedProduct{
	{Name: "Water 19L", VolumeLiters: 19, Price: 25000, Stock: 100},
	{Name: "Water 10L", VolumeLiters: 10, Price: 15000, Stock: 100},
	{Name: "Water 5L", VolumeLiters: 5, Price: 8000, Stock: 200},
	{Name: "Water 1.5L (pack of 6)", VolumeLiters: 9, Price: 12000, Stock: 150},
}

// SeedProducts inserts the starter catalog when the products table is empty.
func SeedProducts(ctx context.Context, db *sqlx.DB) error {
	var count int
	if err := db.GetContext(ctx, &count, `SELECT COUNT(*) FROM products`); err != nil {
		return fmt.Errorf("seed products: count: %w", err)
	}
	if count > 0 {
		return nil
	}
	for _, p := range defaultProducts {
		_, err := db.ExecContext(ctx, `
			INSERT INTO products (name, volume_liters, price, stock, active)
			VALUES ($1, $2, $3, $4, true)`,
			p.Name, p.VolumeLiters, p.Price, p.Stock)
		if err != nil {
			return fmt.Errorf("seed products: insert %q: %w", p.Name, err)
		}
	}
	logger.Info(ctx, "seed", "products.seeded",
		slog.String("status", "ok"),
		slog.Int("count", len(defaultProducts)),
	)
	return nil
}
