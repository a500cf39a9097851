package models

import (
	"strconv"
	"time"
)

// PlaceholderImage is served as the main image of a property without images
const PlaceholderImage = "/placeholder.svg"

// Coordinates is a WGS84 point
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Agent is the listing contact
type Agent struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
	Image string `json:"image"`
}

// Property is a listing in the catalog. Optional source fields are resolved
// to their defaults at ingestion time.
type Property struct {
	ID           int          `json:"id"`
	Title        string       `json:"title"`
	Address      string       `json:"address"`
	City         string       `json:"city"`
	State        string       `json:"state"`
	Zip          string       `json:"zip"`
	Type         string       `json:"type"`
	Price        float64      `json:"price"`
	PriceType    string       `json:"price_type"`
	Bedrooms     int          `json:"bedrooms"`
	Bathrooms    float64      `json:"bathrooms"`
	SquareMeters float64      `json:"square_meters"`
	Images       []string     `json:"images"`
	Status       string       `json:"status"`
	Featured     bool         `json:"featured"`
	Verified     bool         `json:"verified"`
	DateAdded    time.Time    `json:"date_added"`
	Description  string       `json:"description"`
	Coordinates  *Coordinates `json:"coordinates,omitempty"`
	Neighborhood string       `json:"neighborhood"`
	Agent        Agent        `json:"agent"`
	Amenities    []string     `json:"amenities"`
	YearBuilt    *int         `json:"year_built,omitempty"`
}

// Key returns the property id in the string form used by favorite sets
func (p Property) Key() string {
	return strconv.Itoa(p.ID)
}

// MainImage returns the first image or the placeholder
func (p Property) MainImage() string {
	if len(p.Images) == 0 || p.Images[0] == "" {
		return PlaceholderImage
	}
	return p.Images[0]
}

// IsStudio reports whether the property has no separate bedroom
func (p Property) IsStudio() bool {
	return p.Bedrooms == 0
}

// PropertyDetails is the detail page payload
type PropertyDetails struct {
	Property
	MainImage      string `json:"main_image"`
	IsFavorite     bool   `json:"is_favorite"`
	ContactMessage string `json:"contact_message"`
}

// NearbyProperty is a property with its distance from a reference point
type NearbyProperty struct {
	Property
	DistanceKm float64 `json:"distance_km"`
}

// FilterOptions describes the values available in the search filter panel
type FilterOptions struct {
	Types       []string `json:"types"`
	MinPrice    float64  `json:"min_price"`
	MaxPrice    float64  `json:"max_price"`
	MaxBedrooms int      `json:"max_bedrooms"`
	Total       int      `json:"total"`
}

// InquiryRequest is the body of a contact form submission
type InquiryRequest struct {
	Name    string `json:"name" validate:"required,max=200"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone" validate:"omitempty,max=40"`
	Message string `json:"message" validate:"max=2000"`
}

// Inquiry is an accepted contact form submission
type Inquiry struct {
	PropertyID int       `json:"property_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone,omitempty"`
	Message    string    `json:"message"`
	AgentEmail string    `json:"agent_email"`
	ReceivedAt time.Time `json:"received_at"`
}
