package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/store-rating/internal/handler"    // handlers that implement business logic
	"github.com/iliyamo/store-rating/internal/middleware" // middleware for JWT authentication and role enforcement
)

// RegisterRoutes registers routes that do not require authentication
// on the provided Echo instance. Currently it exposes only a health
// check, used by load balancers to verify the service is up.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the authentication endpoints under /v1/auth.
// None of them require an existing session; all sit behind the rate
// limiter so credential stuffing and signup abuse are slowed at the
// edge.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, limit echo.MiddlewareFunc) {
	g := e.Group("/v1/auth", limit)
	g.POST("/signup", a.Signup)
	g.POST("/login", a.Login)
	// Refresh rotates the token: the presented refresh token is
	// consumed and a new pair returned.
	g.POST("/refresh", a.Refresh)
	// Logout deletes the presented refresh token; calling it again
	// with the same token still succeeds.
	g.POST("/logout", a.Logout)
}

// RegisterPublic registers the guest-facing store listing. The
// response cache middleware sits in front so repeated browsing of the
// same pages is served from Redis.
func RegisterPublic(e *echo.Echo, s *handler.StoreHandler, cache echo.MiddlewareFunc) {
	e.GET("/v1/stores", s.List, cache)
}

// RegisterUser registers endpoints available to any authenticated
// principal plus the USER-only rating endpoints.
func RegisterUser(e *echo.Echo, u *handler.UserHandler, s *handler.StoreHandler, r *handler.RatingHandler, jwtSecret string) {
	// Any authenticated role: own profile and store detail.
	auth := e.Group("/v1", middleware.JWTAuth(jwtSecret))
	auth.GET("/me", u.Me)
	auth.PATCH("/me/password", u.UpdatePassword)
	auth.GET("/stores/:id", s.Get)

	// USER role: submitting ratings and reading back one's own.
	user := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("USER"),
	)
	user.POST("/stores/:id/ratings", r.Submit)
	user.GET("/stores/:id/my-rating", s.MyRating)
}

// RegisterOwner registers STORE_OWNER and ADMIN read endpoints over
// ratings. Ownership of the specific store is enforced inside the
// handlers; the role middleware only narrows who may ask.
func RegisterOwner(e *echo.Echo, s *handler.StoreHandler, r *handler.RatingHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("STORE_OWNER", "ADMIN"),
	)
	g.GET("/stores/:id/ratings", r.ListForStore)
	g.GET("/stores/:id/ratings/summary", r.Summary)

	owner := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("STORE_OWNER"),
	)
	owner.GET("/owner/stores", s.ListMine)
}

// RegisterAdmin registers the platform management endpoints under
// /v1/admin. ADMIN only.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, jwtSecret string) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("ADMIN"),
	)
	g.GET("/dashboard", a.Dashboard)
	g.POST("/users", a.CreateUser)
	g.GET("/users", a.ListUsers)
	g.GET("/users/:id", a.GetUser)
	g.POST("/stores", a.CreateStore)
	g.GET("/stores", a.ListStores)
	g.GET("/stores/:id", a.GetStore)
}
