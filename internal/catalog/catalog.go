// Package catalog ingests the static location and property datasets.
//
// Source documents may omit optional fields; they are validated against the
// embedded JSON schemas and normalized once into the strict models, so the
// search code never deals with missing values.
package catalog

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/foxxcyber/property-listing/internal/models"
)

//go:embed data/locations.json
var embeddedLocations []byte

//go:embed data/properties.json
var embeddedProperties []byte

const (
	DefaultStatus    = "Available"
	DefaultPriceType = "month"
)

var ErrDuplicateID = errors.New("duplicate id")

// Epoch is the date assigned to properties with a missing or unreadable date
var Epoch = time.Unix(0, 0).UTC()

// Catalog is the immutable dataset served by the API
type Catalog struct {
	Locations  []models.Location
	Properties []models.Property

	propertyIdx map[int]int
}

// New builds a catalog and rejects duplicate identifiers
func New(locations []models.Location, properties []models.Property) (*Catalog, error) {
	seen := make(map[string]bool, len(locations))
	for _, l := range locations {
		if seen[l.ID] {
			return nil, fmt.Errorf("location %q: %w", l.ID, ErrDuplicateID)
		}
		seen[l.ID] = true
	}

	idx := make(map[int]int, len(properties))
	for i, p := range properties {
		if _, ok := idx[p.ID]; ok {
			return nil, fmt.Errorf("property %d: %w", p.ID, ErrDuplicateID)
		}
		idx[p.ID] = i
	}

	return &Catalog{Locations: locations, Properties: properties, propertyIdx: idx}, nil
}

// Property returns the property with the given id
func (c *Catalog) Property(id int) (models.Property, bool) {
	i, ok := c.propertyIdx[id]
	if !ok {
		return models.Property{}, false
	}
	return c.Properties[i], true
}

// Snapshot renders the catalog as a snapshot document
func (c *Catalog) Snapshot() ([]byte, error) {
	return json.MarshalIndent(snapshotDoc{Locations: c.Locations, Properties: c.Properties}, "", "  ")
}

type snapshotDoc struct {
	Locations  any `json:"locations"`
	Properties any `json:"properties"`
}

// LoadEmbedded returns the dataset compiled into the binary
func LoadEmbedded() (*Catalog, error) {
	locations, err := ParseLocations(embeddedLocations)
	if err != nil {
		return nil, fmt.Errorf("embedded locations: %w", err)
	}
	properties, err := ParseProperties(embeddedProperties)
	if err != nil {
		return nil, fmt.Errorf("embedded properties: %w", err)
	}
	return New(locations, properties)
}

// LoadFile reads a snapshot document from disk
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return ParseSnapshot(data)
}

// SnapshotOpener opens stored snapshot documents
type SnapshotOpener interface {
	OpenSnapshot(ctx context.Context, key string) (io.ReadCloser, error)
}

// LoadObject reads a snapshot document from object storage
func LoadObject(ctx context.Context, opener SnapshotOpener, key string) (*Catalog, error) {
	r, err := opener.OpenSnapshot(ctx, key)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", key, err)
	}
	return ParseSnapshot(data)
}

// Repository lists catalog rows from a database
type Repository interface {
	ListLocations(ctx context.Context) ([]models.Location, error)
	ListProperties(ctx context.Context) ([]models.Property, error)
}

// LoadRepository reads the catalog from a database
func LoadRepository(ctx context.Context, repo Repository) (*Catalog, error) {
	locations, err := repo.ListLocations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	properties, err := repo.ListProperties(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list properties: %w", err)
	}
	for i := range properties {
		normalizeProperty(&properties[i])
	}
	return New(locations, properties)
}

// ParseSnapshot decodes a {"locations": [...], "properties": [...]} document
func ParseSnapshot(data []byte) (*Catalog, error) {
	if err := validate(schemaSnapshot, data); err != nil {
		return nil, err
	}

	var doc struct {
		Locations  []rawLocation `json:"locations"`
		Properties []rawProperty `json:"properties"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	locations, err := convertLocations(doc.Locations)
	if err != nil {
		return nil, err
	}
	return New(locations, convertProperties(doc.Properties))
}

// ParseLocations decodes a location array
func ParseLocations(data []byte) ([]models.Location, error) {
	if err := validate(schemaLocations, data); err != nil {
		return nil, err
	}

	var raw []rawLocation
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode locations: %w", err)
	}
	return convertLocations(raw)
}

// ParseProperties decodes a property array
func ParseProperties(data []byte) ([]models.Property, error) {
	if err := validate(schemaProperties, data); err != nil {
		return nil, err
	}

	var raw []rawProperty
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode properties: %w", err)
	}
	return convertProperties(raw), nil
}

type rawLocation struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Type          string  `json:"type"`
	Parent        *string `json:"parent"`
	PropertyCount *int    `json:"property_count"`
}

type rawProperty struct {
	ID           int                 `json:"id"`
	Title        string              `json:"title"`
	Address      *string             `json:"address"`
	City         *string             `json:"city"`
	State        *string             `json:"state"`
	Zip          *string             `json:"zip"`
	Type         *string             `json:"type"`
	Price        *float64            `json:"price"`
	PriceType    *string             `json:"price_type"`
	Bedrooms     *int                `json:"bedrooms"`
	Bathrooms    *float64            `json:"bathrooms"`
	SquareMeters *float64            `json:"square_meters"`
	Images       []string            `json:"images"`
	Status       *string             `json:"status"`
	Featured     *bool               `json:"featured"`
	Verified     *bool               `json:"verified"`
	DateAdded    *string             `json:"date_added"`
	Description  *string             `json:"description"`
	Coordinates  *models.Coordinates `json:"coordinates"`
	Neighborhood *string             `json:"neighborhood"`
	Agent        *models.Agent       `json:"agent"`
	Amenities    []string            `json:"amenities"`
	YearBuilt    *int                `json:"year_built"`
}

func convertLocations(raw []rawLocation) ([]models.Location, error) {
	out := make([]models.Location, 0, len(raw))
	for _, r := range raw {
		t, err := models.ParseLocationType(r.Type)
		if err != nil {
			return nil, fmt.Errorf("location %q: %w", r.ID, err)
		}
		loc := models.Location{ID: r.ID, Name: r.Name, Type: t, PropertyCount: r.PropertyCount}
		if r.Parent != nil && *r.Parent != "" {
			parent := *r.Parent
			loc.Parent = &parent
		}
		out = append(out, loc)
	}
	return out, nil
}

func convertProperties(raw []rawProperty) []models.Property {
	out := make([]models.Property, 0, len(raw))
	for _, r := range raw {
		p := models.Property{
			ID:           r.ID,
			Title:        r.Title,
			Address:      str(r.Address),
			City:         str(r.City),
			State:        str(r.State),
			Zip:          str(r.Zip),
			Type:         str(r.Type),
			Price:        num(r.Price),
			PriceType:    str(r.PriceType),
			Bathrooms:    num(r.Bathrooms),
			SquareMeters: num(r.SquareMeters),
			Images:       r.Images,
			Status:       str(r.Status),
			Featured:     r.Featured != nil && *r.Featured,
			Verified:     r.Verified != nil && *r.Verified,
			DateAdded:    ParseDate(str(r.DateAdded)),
			Description:  str(r.Description),
			Coordinates:  r.Coordinates,
			Neighborhood: str(r.Neighborhood),
			Amenities:    r.Amenities,
			YearBuilt:    r.YearBuilt,
		}
		if r.Bedrooms != nil {
			p.Bedrooms = *r.Bedrooms
		}
		if r.Agent != nil {
			p.Agent = *r.Agent
		}
		normalizeProperty(&p)
		out = append(out, p)
	}
	return out
}

// normalizeProperty fills the defaults of fields that were left empty
func normalizeProperty(p *models.Property) {
	if p.Status == "" {
		p.Status = DefaultStatus
	}
	if p.PriceType == "" {
		p.PriceType = DefaultPriceType
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	if p.Amenities == nil {
		p.Amenities = []string{}
	}
	if p.DateAdded.IsZero() {
		p.DateAdded = Epoch
	}
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate accepts RFC 3339 timestamps and plain dates. Anything else
// yields Epoch.
func ParseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return Epoch
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return Epoch
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func num(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
