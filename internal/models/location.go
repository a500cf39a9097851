package models

import (
	"fmt"
	"time"
)

// LocationType is a level of the location hierarchy
type LocationType string

const (
	LocationCountry   LocationType = "country"
	LocationState     LocationType = "state"
	LocationCity      LocationType = "city"
	LocationArea      LocationType = "area"
	LocationCommunity LocationType = "community"
)

// Rank orders location types from largest (country) to smallest (community).
// Unknown types sort after every known type.
func (t LocationType) Rank() int {
	switch t {
	case LocationCountry:
		return 0
	case LocationState:
		return 1
	case LocationCity:
		return 2
	case LocationArea:
		return 3
	case LocationCommunity:
		return 4
	default:
		return 5
	}
}

// Valid reports whether t is one of the known hierarchy levels
func (t LocationType) Valid() bool {
	return t.Rank() < 5
}

// ParseLocationType converts a raw type string into a LocationType
func ParseLocationType(s string) (LocationType, error) {
	t := LocationType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown location type %q", s)
	}
	return t, nil
}

// Location is an entry of the static location hierarchy.
// Parent references another location by name, not by id.
type Location struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Type          LocationType `json:"type"`
	Parent        *string      `json:"parent,omitempty"`
	PropertyCount *int         `json:"property_count,omitempty"`
}

// ParentName returns the parent name or an empty string
func (l Location) ParentName() string {
	if l.Parent == nil {
		return ""
	}
	return *l.Parent
}

// Highlight splits a display string around the first occurrence of a query
type Highlight struct {
	Before string `json:"before"`
	Match  string `json:"match"`
	After  string `json:"after"`
}

// LocationSuggestion is a location returned by autocomplete together with
// its highlighted name
type LocationSuggestion struct {
	Location
	Highlight *Highlight `json:"highlight,omitempty"`
}

// LocationSearchResult is the autocomplete response body
type LocationSearchResult struct {
	Query       string               `json:"query"`
	Popular     bool                 `json:"popular"`
	Locations   []LocationSuggestion `json:"locations"`
	DidYouMean  []Location           `json:"did_you_mean,omitempty"`
	GeneratedAt time.Time            `json:"generated_at"`
}
