package services

import (
	"math"
	"sort"

	"github.com/golang/geo/s2"
	"github.com/mmcloughlin/geohash"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/foxxcyber/property-listing/internal/models"
)

const (
	earthRadiusKm = 6371.0088

	// markerGeohashPrecision gives cells of roughly 150m
	markerGeohashPrecision = 7

	DefaultNearbyRadiusKm = 5.0
	MaxNearbyRadiusKm     = 50.0
)

// DefaultMapCenter is used when no property on the map has coordinates
var DefaultMapCenter = models.Coordinates{Lat: 39.8283, Lng: -98.5795}

// DistanceKm returns the great-circle distance between two points
func DistanceKm(a, b models.Coordinates) float64 {
	pa := s2.LatLngFromDegrees(a.Lat, a.Lng)
	pb := s2.LatLngFromDegrees(b.Lat, b.Lng)
	return pa.Distance(pb).Radians() * earthRadiusKm
}

// NearbyProperties returns catalog entries within radiusKm of origin,
// nearest first. The origin itself and entries without coordinates are
// skipped.
func NearbyProperties(catalog []models.Property, origin models.Property, radiusKm float64, limit int) []models.NearbyProperty {
	if origin.Coordinates == nil || radiusKm <= 0 {
		return []models.NearbyProperty{}
	}

	out := []models.NearbyProperty{}
	for _, p := range catalog {
		if p.ID == origin.ID || p.Coordinates == nil {
			continue
		}
		d := DistanceKm(*origin.Coordinates, *p.Coordinates)
		if d <= radiusKm {
			out = append(out, models.NearbyProperty{Property: p, DistanceKm: math.Round(d*100) / 100})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceKm < out[j].DistanceKm })

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// BuildMapView turns an already filtered and sorted property list into map
// markers with their bounding box
func BuildMapView(props []models.Property) models.MapView {
	view := models.MapView{Markers: []models.MapMarker{}}
	printer := message.NewPrinter(language.English)

	for _, p := range props {
		if p.Coordinates == nil || (p.Coordinates.Lat == 0 && p.Coordinates.Lng == 0) {
			view.Skipped++
			continue
		}

		lat, lng := p.Coordinates.Lat, p.Coordinates.Lng
		view.Markers = append(view.Markers, models.MapMarker{
			PropertyID: p.ID,
			Title:      p.Title,
			Lat:        lat,
			Lng:        lng,
			Geohash:    geohash.EncodeWithPrecision(lat, lng, markerGeohashPrecision),
			Label:      printer.Sprintf("$%d/%s", int64(math.Round(p.Price)), p.PriceType),
			Featured:   p.Featured,
			Image:      p.MainImage(),
		})

		if len(view.Markers) == 1 {
			view.Bounds = models.Bounds{South: lat, West: lng, North: lat, East: lng}
			continue
		}
		view.Bounds.South = math.Min(view.Bounds.South, lat)
		view.Bounds.North = math.Max(view.Bounds.North, lat)
		view.Bounds.West = math.Min(view.Bounds.West, lng)
		view.Bounds.East = math.Max(view.Bounds.East, lng)
	}

	if len(view.Markers) == 0 {
		view.Center = DefaultMapCenter
		view.Bounds = models.Bounds{
			South: DefaultMapCenter.Lat, West: DefaultMapCenter.Lng,
			North: DefaultMapCenter.Lat, East: DefaultMapCenter.Lng,
		}
		return view
	}

	view.Center = models.Coordinates{
		Lat: (view.Bounds.South + view.Bounds.North) / 2,
		Lng: (view.Bounds.West + view.Bounds.East) / 2,
	}
	return view
}
