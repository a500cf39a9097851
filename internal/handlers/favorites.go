package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/foxxcyber/property-listing/internal/middleware"
	"github.com/foxxcyber/property-listing/internal/models"
)

// keepAliveInterval spaces SSE comments that keep idle proxies from
// dropping the stream
const keepAliveInterval = 15 * time.Second

// ListFavorites returns the caller's favorite ids and count
func (h *Handler) ListFavorites(c *fiber.Ctx) error {
	snap, err := h.favorites.Snapshot(c.UserContext(), middleware.GetClientID(c))
	if err != nil {
		return h.favoritesError(c, err)
	}

	return Success(c, snap)
}

// ToggleFavorite adds or removes a property from the caller's favorites
func (h *Handler) ToggleFavorite(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid property id")
	}
	p, ok := h.catalog.Property(id)
	if !ok {
		return Error(c, fiber.StatusNotFound, "property not found")
	}

	result, err := h.favorites.Toggle(c.UserContext(), middleware.GetClientID(c), p.Key())
	if err != nil {
		h.logger.Error("failed to toggle favorite", "client_id", middleware.GetClientID(c), "property_id", id, "error", err)
		return Error(c, fiber.StatusInternalServerError, "failed to update favorites")
	}

	return Success(c, result)
}

// FavoriteEvents streams the caller's favorites as server-sent events: the
// current state first, then one event per change made from any view
func (h *Handler) FavoriteEvents(c *fiber.Ctx) error {
	clientID := middleware.GetClientID(c)
	favorites, release, err := h.favorites.Acquire(c.UserContext(), clientID)
	if err != nil {
		return h.favoritesError(c, err)
	}

	updates, cancel := favorites.Listen()
	initial := favorites.Snapshot()

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer release()
		defer cancel()

		if err := writeFavoritesEvent(w, initial); err != nil {
			return
		}

		ticker := time.NewTicker(keepAliveInterval)
		defer ticker.Stop()

		for {
			select {
			case snap, ok := <-updates:
				if !ok {
					return
				}
				if err := writeFavoritesEvent(w, snap); err != nil {
					h.logger.Debug("favorites stream closed", "client_id", clientID, "error", err)
					return
				}
			case <-ticker.C:
				if _, err := w.WriteString(": keep-alive\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					h.logger.Debug("favorites stream closed", "client_id", clientID, "error", err)
					return
				}
			}
		}
	}))

	return nil
}

// writeFavoritesEvent writes one "favorites" event and flushes it
func writeFavoritesEvent(w *bufio.Writer, snap models.FavoritesSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: favorites\ndata: %s\n\n", data); err != nil {
		return err
	}
	return w.Flush()
}

// favoritesError logs a favorites store failure and maps it to a 500
func (h *Handler) favoritesError(c *fiber.Ctx, err error) error {
	h.logger.Error("failed to load favorites", "client_id", middleware.GetClientID(c), "error", err)
	return fiber.NewError(fiber.StatusInternalServerError, "failed to load favorites")
}
