package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/foxxcyber/property-listing/internal/models"
)

const locationColumns = `id, name, type, parent, property_count`

func scanLocation(row pgx.Row) (models.Location, error) {
	var l models.Location
	var t string
	if err := row.Scan(&l.ID, &l.Name, &t, &l.Parent, &l.PropertyCount); err != nil {
		return models.Location{}, err
	}
	lt, err := models.ParseLocationType(t)
	if err != nil {
		return models.Location{}, fmt.Errorf("location %q: %w", l.ID, err)
	}
	l.Type = lt
	return l, nil
}

// ListLocations returns every location in dataset order
func (db *DB) ListLocations(ctx context.Context) ([]models.Location, error) {
	rows, err := db.Pool.Query(ctx, `SELECT `+locationColumns+` FROM locations ORDER BY position ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locations []models.Location
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		locations = append(locations, l)
	}

	return locations, rows.Err()
}

// ReplaceLocations swaps the table contents for locations in one transaction
func (db *DB) ReplaceLocations(ctx context.Context, locations []models.Location) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM locations`); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for i, l := range locations {
		batch.Queue(`
			INSERT INTO locations (id, position, name, type, parent, property_count)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, l.ID, i, l.Name, string(l.Type), l.Parent, l.PropertyCount)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert locations: %w", err)
	}

	return tx.Commit(ctx)
}
