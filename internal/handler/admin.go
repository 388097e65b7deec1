package handler

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/store-rating/internal/config"
	"github.com/iliyamo/store-rating/internal/model"
	"github.com/iliyamo/store-rating/internal/repository"
	"github.com/iliyamo/store-rating/internal/utils"
)

// AdminHandler groups the platform management endpoints. All routes
// using it sit behind RequireRole(ADMIN).
type AdminHandler struct {
	Cfg     config.Config
	Users   *repository.UserRepo
	Stores  *repository.StoreRepo
	Ratings *repository.RatingRepo
	Audit   *repository.AuditRepo
}

func NewAdminHandler(cfg config.Config, users *repository.UserRepo, stores *repository.StoreRepo, ratings *repository.RatingRepo, audit *repository.AuditRepo) *AdminHandler {
	if users == nil || stores == nil || ratings == nil || audit == nil {
		panic("nil repository passed to NewAdminHandler")
	}
	return &AdminHandler{Cfg: cfg, Users: users, Stores: stores, Ratings: ratings, Audit: audit}
}

// Dashboard handles GET /v1/admin/dashboard: platform-wide counts.
func (h *AdminHandler) Dashboard(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	users, err := h.Users.Count(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	stores, err := h.Stores.Count(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	ratings, err := h.Ratings.Count(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"total_users":   users,
		"total_stores":  stores,
		"total_ratings": ratings,
	})
}

type createUserReq struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Address  string `json:"address"`
	Password string `json:"password"` // optional; generated when empty
	Role     string `json:"role"`
}

// CreateUser handles POST /v1/admin/users. Unlike signup, the role is
// explicit. When no password is supplied a random temporary password
// is generated and returned exactly once in the response.
func (h *AdminHandler) CreateUser(c echo.Context) error {
	adminID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createUserReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Role = strings.ToUpper(strings.TrimSpace(req.Role))
	if req.Name == "" || req.Email == "" || !strings.Contains(req.Email, "@") {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name and valid email required"})
	}
	if !model.ValidRole(req.Role) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "role must be ADMIN, STORE_OWNER or USER"})
	}
	tempPassword := ""
	if req.Password == "" {
		tempPassword, err = utils.RandomHex(8)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "generate password failed"})
		}
		req.Password = tempPassword
	} else if len(req.Password) < 8 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password must be at least 8 characters"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	tx, err := h.Users.DB.BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	uid, err := h.Users.CreateTx(ctx, tx, req.Name, req.Email, req.Address, req.Password, req.Role, h.Cfg.BcryptCost)
	if err != nil {
		if err == repository.ErrEmailExists {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
	}
	if err := h.Audit.CreateTx(ctx, tx, adminID, model.AuditActionCreate, model.AuditEntityUser, uid, echo.Map{
		"name": req.Name, "email": req.Email, "role": req.Role,
	}); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "audit write failed"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true

	resp := echo.Map{
		"user": userPart{ID: uid, Name: req.Name, Email: req.Email, Address: req.Address, Role: req.Role},
	}
	if tempPassword != "" {
		resp["temporary_password"] = tempPassword
	}
	return c.JSON(http.StatusCreated, resp)
}

// ListUsers handles GET /v1/admin/users with pagination, search and
// an optional ?role filter.
func (h *AdminHandler) ListUsers(c echo.Context) error {
	role := strings.ToUpper(strings.TrimSpace(c.QueryParam("role")))
	if role != "" && !model.ValidRole(role) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown role filter"})
	}
	q := repository.UserQuery{
		Search: c.QueryParam("search"),
		Role:   role,
		Page:   pageQueryFrom(c),
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	users, total, err := h.Users.List(ctx, q)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"users":      users,
		"pagination": repository.NewPagination(q.Page.Normalize(), total),
	})
}

// GetUser handles GET /v1/admin/users/:id.
func (h *AdminHandler) GetUser(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	user, err := h.Users.GetDetail(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	stores, err := h.Stores.ListByOwner(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"user": user, "owned_stores": stores})
}

type createStoreReq struct {
	Name    string  `json:"name"`
	Email   string  `json:"email"`
	Address string  `json:"address"`
	OwnerID *uint64 `json:"owner_id"`
}

// CreateStore handles POST /v1/admin/stores. The owner is optional;
// when given it must reference an existing user.
func (h *AdminHandler) CreateStore(c echo.Context) error {
	adminID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createStoreReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if req.OwnerID != nil {
		if _, err := h.Users.GetByID(ctx, *req.OwnerID); err != nil {
			if err == sql.ErrNoRows {
				return c.JSON(http.StatusNotFound, echo.Map{"error": "store owner not found"})
			}
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
		}
	}

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

	store, err := h.Stores.CreateTx(ctx, tx, req.Name, req.Email, req.Address, req.OwnerID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create store failed"})
	}
	if err := h.Audit.CreateTx(ctx, tx, adminID, model.AuditActionCreate, model.AuditEntityStore, store.ID, echo.Map{
		"name": store.Name, "email": store.Email, "owner_id": req.OwnerID,
	}); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "audit write failed"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true

	return c.JSON(http.StatusCreated, echo.Map{
		"id":           store.ID,
		"name":         store.Name,
		"email":        store.Email,
		"address":      store.Address,
		"owner_id":     store.OwnerID,
		"avg_rating":   store.AvgRating,
		"rating_count": store.RatingCount,
		"created_at":   store.CreatedAt,
	})
}

// ListStores handles GET /v1/admin/stores with pagination and search.
func (h *AdminHandler) ListStores(c echo.Context) error {
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

// GetStore handles GET /v1/admin/stores/:id: the store plus its
// latest 10 ratings.
func (h *AdminHandler) GetStore(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid store id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	store, err := h.Stores.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrStoreNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "store not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	ratings, err := h.Ratings.ListByStore(ctx, id, 10)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"id":           store.ID,
		"name":         store.Name,
		"email":        store.Email,
		"address":      store.Address,
		"owner_id":     store.OwnerID,
		"avg_rating":   store.AvgRating,
		"rating_count": store.RatingCount,
		"created_at":   store.CreatedAt,
		"updated_at":   store.UpdatedAt,
		"ratings":      ratings,
	})
}
