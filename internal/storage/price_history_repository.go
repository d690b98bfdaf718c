package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/portfolio-engine/internal/models"
)

// PriceHistoryRepository stores and serves daily price series from ClickHouse
type PriceHistoryRepository struct {
	db *ClickHouseDB
}

// NewPriceHistoryRepository creates a new price history repository
func NewPriceHistoryRepository(db *ClickHouseDB) *PriceHistoryRepository {
	return &PriceHistoryRepository{db: db}
}

// GetHistory returns up to days+1 daily points for assetID, most recent first
func (r *PriceHistoryRepository) GetHistory(ctx context.Context, assetID string, days int) ([]models.PricePoint, error) {
	query := `
		SELECT ts, argMax(price, inserted_at) AS price
		FROM price_history
		WHERE asset_id = ? AND ts >= ?
		GROUP BY ts
		ORDER BY ts DESC
	`

	since := time.Now().UTC().AddDate(0, 0, -days).Truncate(24 * time.Hour)
	rows, err := r.db.Conn().Query(ctx, query, assetID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query price history: %w", err)
	}
	defer rows.Close()

	var points []models.PricePoint
	for rows.Next() {
		var p models.PricePoint
		if err := rows.Scan(&p.Timestamp, &p.Price); err != nil {
			return nil, fmt.Errorf("failed to scan price point: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// InsertHistory appends points for assetID in one batch
func (r *PriceHistoryRepository) InsertHistory(ctx context.Context, assetID string, points []models.PricePoint) error {
	if len(points) == 0 {
		return nil
	}

	batch, err := r.db.Conn().PrepareBatch(ctx, "INSERT INTO price_history (asset_id, ts, price)")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, p := range points {
		if err := batch.Append(assetID, p.Timestamp.UTC(), p.Price); err != nil {
			return fmt.Errorf("failed to append price point: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}
