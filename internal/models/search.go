package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// PageSize is the fixed number of properties per result page
const PageSize = 12

// TypeAll disables the property type filter
const TypeAll = "all"

// SortKey selects the result ordering
type SortKey string

const (
	SortFeatured  SortKey = "featured"
	SortPriceLow  SortKey = "price-low"
	SortPriceHigh SortKey = "price-high"
	SortSize      SortKey = "size"
	SortNewest    SortKey = "newest"
)

// ParseSortKey converts a query value into a SortKey. Empty means featured.
func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(strings.TrimSpace(s)); k {
	case "":
		return SortFeatured, nil
	case SortFeatured, SortPriceLow, SortPriceHigh, SortSize, SortNewest:
		return k, nil
	default:
		return "", fmt.Errorf("unknown sort key %q", s)
	}
}

// BedroomFilter is "all", an exact count, or "4+" (four or more)
type BedroomFilter struct {
	Any     bool
	AtLeast bool
	Count   int
}

// AnyBedrooms disables the bedroom filter
var AnyBedrooms = BedroomFilter{Any: true}

// ParseBedroomFilter parses "all", "4+" or a non-negative integer.
// An empty string is treated as "all".
func ParseBedroomFilter(s string) (BedroomFilter, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "", "all":
		return AnyBedrooms, nil
	case "4+":
		return BedroomFilter{AtLeast: true, Count: 4}, nil
	}

	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return BedroomFilter{}, fmt.Errorf("invalid bedroom filter %q", s)
	}
	return BedroomFilter{Count: n}, nil
}

// Matches reports whether a bedroom count passes the filter
func (f BedroomFilter) Matches(bedrooms int) bool {
	switch {
	case f.Any:
		return true
	case f.AtLeast:
		return bedrooms >= f.Count
	default:
		return bedrooms == f.Count
	}
}

// String returns the query form of the filter
func (f BedroomFilter) String() string {
	switch {
	case f.Any:
		return "all"
	case f.AtLeast:
		return strconv.Itoa(f.Count) + "+"
	default:
		return strconv.Itoa(f.Count)
	}
}

// ParsePriceBound parses a non-negative price filter value. Empty means no
// bound; fractional values are truncated to whole currency units.
func ParsePriceBound(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("invalid price %q", s)
	}
	if v < 0 {
		return nil, fmt.Errorf("price %q must not be negative", s)
	}
	v = math.Trunc(v)
	return &v, nil
}

// SearchCriteria is the transient state of the search form
type SearchCriteria struct {
	LocationQuery string
	Location      *Location
	Type          string
	MinPrice      *float64
	MaxPrice      *float64
	Bedrooms      BedroomFilter
	FavoritesOnly bool
	SortBy        SortKey
	Page          int
}

// DefaultCriteria returns criteria with every filter disabled
func DefaultCriteria() SearchCriteria {
	return SearchCriteria{
		Type:     TypeAll,
		Bedrooms: AnyBedrooms,
		SortBy:   SortFeatured,
		Page:     1,
	}
}

// SearchResult is one page of the filtered and sorted catalog
type SearchResult struct {
	Items      []Property `json:"items"`
	TotalCount int        `json:"total_count"`
	TotalPages int        `json:"total_pages"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
}

// SearchParams are the raw query parameters of a property search
type SearchParams struct {
	LocationID    string `query:"location_id" validate:"omitempty,max=100"`
	Query         string `query:"q" validate:"max=200"`
	Type          string `query:"type" validate:"omitempty,max=50"`
	MinPrice      string `query:"min_price" validate:"omitempty,numeric"`
	MaxPrice      string `query:"max_price" validate:"omitempty,numeric"`
	Bedrooms      string `query:"bedrooms" validate:"omitempty,max=4"`
	FavoritesOnly bool   `query:"favorites"`
	Sort          string `query:"sort" validate:"omitempty,oneof=featured price-low price-high size newest"`
	Page          int    `query:"page" validate:"gte=0"`
}

// MapMarker is a property pin on the search map
type MapMarker struct {
	PropertyID int     `json:"property_id"`
	Title      string  `json:"title"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	Geohash    string  `json:"geohash"`
	Label      string  `json:"label"`
	Featured   bool    `json:"featured"`
	Image      string  `json:"image"`
}

// Bounds is a lat/lng bounding box
type Bounds struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

// MapView is the map representation of a search
type MapView struct {
	Markers []MapMarker `json:"markers"`
	Bounds  Bounds      `json:"bounds"`
	Center  Coordinates `json:"center"`
	Skipped int         `json:"skipped"`
}
