package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/foxxcyber/property-listing/internal/models"
)

const propertyColumns = `
	id, title, address, city, state, zip, type, price, price_type,
	bedrooms, bathrooms, square_meters, images, status, featured, verified,
	date_added, description, latitude, longitude, neighborhood,
	agent_name, agent_phone, agent_email, agent_image, amenities, year_built`

func scanProperty(row pgx.Row) (models.Property, error) {
	var p models.Property
	var lat, lng *float64
	err := row.Scan(
		&p.ID,
		&p.Title,
		&p.Address,
		&p.City,
		&p.State,
		&p.Zip,
		&p.Type,
		&p.Price,
		&p.PriceType,
		&p.Bedrooms,
		&p.Bathrooms,
		&p.SquareMeters,
		&p.Images,
		&p.Status,
		&p.Featured,
		&p.Verified,
		&p.DateAdded,
		&p.Description,
		&lat,
		&lng,
		&p.Neighborhood,
		&p.Agent.Name,
		&p.Agent.Phone,
		&p.Agent.Email,
		&p.Agent.Image,
		&p.Amenities,
		&p.YearBuilt,
	)
	if err != nil {
		return models.Property{}, err
	}
	if lat != nil && lng != nil {
		p.Coordinates = &models.Coordinates{Lat: *lat, Lng: *lng}
	}
	p.DateAdded = p.DateAdded.UTC()
	return p, nil
}

// ListProperties returns every property in dataset order
func (db *DB) ListProperties(ctx context.Context) ([]models.Property, error) {
	rows, err := db.Pool.Query(ctx, `SELECT `+propertyColumns+` FROM properties ORDER BY position ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var properties []models.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		properties = append(properties, p)
	}

	return properties, rows.Err()
}

// ReplaceProperties swaps the table contents for properties in one transaction
func (db *DB) ReplaceProperties(ctx context.Context, properties []models.Property) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM properties`); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for i, p := range properties {
		var lat, lng *float64
		if p.Coordinates != nil {
			lat, lng = &p.Coordinates.Lat, &p.Coordinates.Lng
		}
		batch.Queue(`
			INSERT INTO properties (
				id, position, title, address, city, state, zip, type, price, price_type,
				bedrooms, bathrooms, square_meters, images, status, featured, verified,
				date_added, description, latitude, longitude, neighborhood,
				agent_name, agent_phone, agent_email, agent_image, amenities, year_built
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
				$11, $12, $13, $14, $15, $16, $17,
				$18, $19, $20, $21, $22,
				$23, $24, $25, $26, $27, $28
			)
		`,
			p.ID, i, p.Title, p.Address, p.City, p.State, p.Zip, p.Type, p.Price, p.PriceType,
			p.Bedrooms, p.Bathrooms, p.SquareMeters, p.Images, p.Status, p.Featured, p.Verified,
			p.DateAdded, p.Description, lat, lng, p.Neighborhood,
			p.Agent.Name, p.Agent.Phone, p.Agent.Email, p.Agent.Image, p.Amenities, p.YearBuilt,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert properties: %w", err)
	}

	return tx.Commit(ctx)
}
