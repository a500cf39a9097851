package models

// FavoritesKey is the persisted key of a favorite set
const FavoritesKey = "propertyFavorites"

// FavoriteToggle is the outcome of toggling a property
type FavoriteToggle struct {
	PropertyID string `json:"property_id"`
	IsFavorite bool   `json:"is_favorite"`
	Count      int    `json:"count"`
}

// FavoritesSnapshot is the state of a favorite set at a point in time
type FavoritesSnapshot struct {
	IDs   []string `json:"ids"`
	Count int      `json:"count"`
}
