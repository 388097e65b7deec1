package handler

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/store-rating/internal/repository"
)

// StoreHandler serves store browsing for guests and users plus the
// owner's own-store listing.
type StoreHandler struct {
	Stores  *repository.StoreRepo
	Ratings *repository.RatingRepo
}

func NewStoreHandler(stores *repository.StoreRepo, ratings *repository.RatingRepo) *StoreHandler {
	if stores == nil || ratings == nil {
		panic("nil repository passed to NewStoreHandler")
	}
	return &StoreHandler{Stores: stores, Ratings: ratings}
}

// pageQueryFrom reads ?page and ?limit, leaving clamping to the
// repository's Normalize.
func pageQueryFrom(c echo.Context) repository.PageQuery {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	return repository.PageQuery{Page: page, Limit: limit}
}

// List handles GET /v1/stores. Public: guests browse stores with
// pagination and a case-insensitive search over name, email and
// address. Sits behind the Redis response cache.
func (h *StoreHandler) List(c echo.Context) error {
	q := repository.StoreQuery{
		Search: c.QueryParam("search"),
		Page:   pageQueryFrom(c),
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	stores, total, err := h.Stores.List(ctx, q)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"stores":     stores,
		"pagination": repository.NewPagination(q.Page.Normalize(), total),
	})
}

// Get handles GET /v1/stores/:id. Authenticated: the response also
// carries the caller's own rating for the store when one exists.
func (h *StoreHandler) Get(c echo.Context) error {
	storeID, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid store id"})
	}
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	store, err := h.Stores.GetByID(ctx, storeID)
	if err != nil {
		if err == repository.ErrStoreNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "store not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	resp := echo.Map{
		"id":           store.ID,
		"name":         store.Name,
		"email":        store.Email,
		"address":      store.Address,
		"avg_rating":   store.AvgRating,
		"rating_count": store.RatingCount,
		"created_at":   store.CreatedAt,
	}
	if rt, err := h.Ratings.GetByUserAndStore(ctx, userID, storeID); err == nil {
		resp["my_rating"] = echo.Map{
			"id":         rt.ID,
			"score":      rt.Score,
			"comment":    rt.Comment,
			"created_at": rt.CreatedAt,
			"updated_at": rt.UpdatedAt,
		}
	} else if err != sql.ErrNoRows {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, resp)
}

// MyRating handles GET /v1/stores/:id/my-rating. Returns the caller's
// rating for the store, or 404 when they have not rated it.
func (h *StoreHandler) MyRating(c echo.Context) error {
	storeID, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid store id"})
	}
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Stores.GetByID(ctx, storeID); err != nil {
		if err == repository.ErrStoreNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "store not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	rt, err := h.Ratings.GetByUserAndStore(ctx, userID, storeID)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "rating not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"id":         rt.ID,
		"score":      rt.Score,
		"comment":    rt.Comment,
		"created_at": rt.CreatedAt,
		"updated_at": rt.UpdatedAt,
	})
}

// ListMine handles GET /v1/owner/stores. Returns the caller's stores
// newest first with their current aggregates.
func (h *StoreHandler) ListMine(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	stores, err := h.Stores.ListByOwner(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"stores": stores})
}
