package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/store-rating/internal/model"
	"github.com/iliyamo/store-rating/internal/queue"
	"github.com/iliyamo/store-rating/internal/repository"
	queue_publisher "github.com/iliyamo/store-rating/internal/service"
)

// RatingHandler owns the rating submission protocol and the
// owner/admin read side. Submission is the one multi-step
// read-modify-write in the system: everything it touches (store
// aggregate, rating row, audit row) lives in a single transaction,
// with the store row locked for the duration.
type RatingHandler struct {
	Stores  *repository.StoreRepo
	Ratings *repository.RatingRepo
	Audit   *repository.AuditRepo
	Users   *repository.UserRepo
}

// NewRatingHandler constructs a RatingHandler with the provided
// repositories. All dependencies must be non-nil.
func NewRatingHandler(stores *repository.StoreRepo, ratings *repository.RatingRepo, audit *repository.AuditRepo, users *repository.UserRepo) *RatingHandler {
	if stores == nil || ratings == nil || audit == nil || users == nil {
		panic("nil repository passed to NewRatingHandler")
	}
	return &RatingHandler{Stores: stores, Ratings: ratings, Audit: audit, Users: users}
}

type submitRatingReq struct {
	Score   int     `json:"score"`
	Comment *string `json:"comment"`
}

type ratingResp struct {
	ID        uint64           `json:"id"`
	StoreID   uint64           `json:"store_id"`
	Score     int              `json:"score"`
	Comment   *string          `json:"comment,omitempty"`
	User      model.PublicUser `json:"user"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Submit handles POST /v1/stores/:id/ratings. A user's first rating
// for a store is inserted; a repeat submission updates the existing
// row in place. Either way the store's (avg_rating, rating_count)
// pair is recomputed from values read under the row lock and written
// before commit, so the stored aggregate always matches the live
// rating set. Returns 201 on create, 200 on update.
func (h *RatingHandler) Submit(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	storeID, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid store id"})
	}
	var req submitRatingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if !model.ValidScore(req.Score) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "score must be an integer between 1 and 5"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	tx, err := h.Stores.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	// Lock the store row first. Concurrent submissions for the same
	// store queue up here, so the aggregate below is never stale.
	store, err := h.Stores.GetForUpdateTx(ctx, tx, storeID)
	if err != nil {
		if err == repository.ErrStoreNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "store not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if store.OwnedBy(userID) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "you cannot rate your own store"})
	}

	existing, err := h.Ratings.GetByUserAndStoreTx(ctx, tx, userID, storeID)
	switch {
	case err == nil:
		// Repeat submission: update in place, count unchanged.
		oldScore := existing.Score
		rating, err := h.Ratings.UpdateTx(ctx, tx, existing.ID, req.Score, req.Comment)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update rating failed"})
		}
		newAvg := repository.AverageAfterUpdate(store.AvgRating, store.RatingCount, oldScore, req.Score)
		if err := h.Stores.UpdateAggregateTx(ctx, tx, storeID, newAvg, store.RatingCount); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update aggregate failed"})
		}
		if err := h.Audit.CreateTx(ctx, tx, userID, model.AuditActionUpdate, model.AuditEntityRating, rating.ID,
			repository.RatingAuditDetails{StoreID: storeID, Score: req.Score, Comment: req.Comment, OldScore: &oldScore}); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "audit write failed"})
		}
		if err := tx.Commit(); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
		}
		committed = true
		h.publishSubmitted(ctx, rating, &oldScore)
		return c.JSON(http.StatusOK, h.ratingResponse(ctx, rating))

	case err == sql.ErrNoRows:
		// First rating for this (user, store) pair.
		rating, err := h.Ratings.CreateTx(ctx, tx, userID, storeID, req.Score, req.Comment)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create rating failed"})
		}
		newAvg, newCount := repository.AverageAfterInsert(store.AvgRating, store.RatingCount, req.Score)
		if err := h.Stores.UpdateAggregateTx(ctx, tx, storeID, newAvg, newCount); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update aggregate failed"})
		}
		if err := h.Audit.CreateTx(ctx, tx, userID, model.AuditActionCreate, model.AuditEntityRating, rating.ID,
			repository.RatingAuditDetails{StoreID: storeID, Score: req.Score, Comment: req.Comment}); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "audit write failed"})
		}
		if err := tx.Commit(); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
		}
		committed = true
		h.publishSubmitted(ctx, rating, nil)
		return c.JSON(http.StatusCreated, h.ratingResponse(ctx, rating))

	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
}

// ratingResponse attaches the rater's public identity to a persisted
// rating. A failed lookup still returns the rating; the identity is
// display data.
func (h *RatingHandler) ratingResponse(ctx context.Context, rt model.Rating) ratingResp {
	resp := ratingResp{
		ID: rt.ID, StoreID: rt.StoreID, Score: rt.Score, Comment: rt.Comment,
		CreatedAt: rt.CreatedAt, UpdatedAt: rt.UpdatedAt,
	}
	if u, err := h.Users.GetByID(ctx, rt.UserID); err == nil {
		resp.User = u.Public()
	} else {
		resp.User = model.PublicUser{ID: rt.UserID}
	}
	return resp
}

// publishSubmitted fires the rating.submitted event after commit.
// Publish failures are logged by the publisher and ignored here; the
// rating is already durable.
func (h *RatingHandler) publishSubmitted(ctx context.Context, rt model.Rating, oldScore *int) {
	action := model.AuditActionCreate
	if oldScore != nil {
		action = model.AuditActionUpdate
	}
	_ = queue_publisher.PublishRatingSubmitted(ctx, queue.RatingSubmittedEvent{
		RatingID:    rt.ID,
		StoreID:     rt.StoreID,
		UserID:      rt.UserID,
		Score:       rt.Score,
		OldScore:    oldScore,
		Action:      action,
		SubmittedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

// authorizeStoreRead loads a store and enforces the read-side rule:
// the requester must be ADMIN or the store's owner.
func (h *RatingHandler) authorizeStoreRead(c echo.Context, ctx context.Context, storeID uint64) (model.Store, bool) {
	store, err := h.Stores.GetByID(ctx, storeID)
	if err != nil {
		if err == repository.ErrStoreNotFound {
			_ = c.JSON(http.StatusNotFound, echo.Map{"error": "store not found"})
		} else {
			_ = c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
		return model.Store{}, false
	}
	userID, err := getUserID(c)
	if err != nil {
		_ = c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
		return model.Store{}, false
	}
	if getRole(c) != model.RoleAdmin && !store.OwnedBy(userID) {
		_ = c.JSON(http.StatusForbidden, echo.Map{"error": "you can only view ratings for your own stores"})
		return model.Store{}, false
	}
	return store, true
}

// ListForStore handles GET /v1/stores/:id/ratings. Ratings are
// returned newest first, each carrying the rater's public identity.
func (h *RatingHandler) ListForStore(c echo.Context) error {
	storeID, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid store id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	store, ok := h.authorizeStoreRead(c, ctx, storeID)
	if !ok {
		return nil
	}
	ratings, err := h.Ratings.ListByStore(ctx, storeID, 0)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"store":   echo.Map{"id": store.ID, "name": store.Name},
		"ratings": ratings,
	})
}

// Summary handles GET /v1/stores/:id/ratings/summary with the same
// authorization rule as ListForStore.
func (h *RatingHandler) Summary(c echo.Context) error {
	storeID, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid store id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	store, ok := h.authorizeStoreRead(c, ctx, storeID)
	if !ok {
		return nil
	}
	return c.JSON(http.StatusOK, echo.Map{
		"store":        echo.Map{"id": store.ID, "name": store.Name},
		"avg_rating":   store.AvgRating,
		"rating_count": store.RatingCount,
	})
}
