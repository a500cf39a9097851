package handlers

import "github.com/gofiber/fiber/v2"

// Register mounts the API routes. clientID identifies the caller for the
// routes that read or change favorites.
func Register(app *fiber.App, h *Handler, clientID fiber.Handler) {
	api := app.Group("/api")

	// Location routes
	locations := api.Group("/locations")
	locations.Get("/search", h.SearchLocations)
	locations.Get("/popular", h.PopularLocations)
	locations.Get("/:id", h.GetLocation)

	// Property routes
	properties := api.Group("/properties", clientID)
	properties.Get("/", h.SearchProperties)
	properties.Get("/filters", h.PropertyFilters)
	properties.Get("/recent", h.RecentProperties)
	properties.Get("/map", h.PropertyMap)
	properties.Get("/:id", h.GetProperty)
	properties.Get("/:id/nearby", h.NearbyProperties)
	properties.Post("/:id/inquiries", h.CreateInquiry)

	// Favorites routes
	favorites := api.Group("/favorites", clientID)
	favorites.Get("/", h.ListFavorites)
	favorites.Get("/events", h.FavoriteEvents)
	favorites.Post("/:id/toggle", h.ToggleFavorite)
}
