package main // Entry point package

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/store-rating/internal/config"
	"github.com/iliyamo/store-rating/internal/database"
	"github.com/iliyamo/store-rating/internal/handler"
	"github.com/iliyamo/store-rating/internal/middleware"
	"github.com/iliyamo/store-rating/internal/queue"
	"github.com/iliyamo/store-rating/internal/repository"
	"github.com/iliyamo/store-rating/internal/router"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer func() { _ = db.Close() }()

	// Redis is optional: a nil client disables caching and rate
	// limiting without affecting the rest of the service.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable; cache and rate limiting disabled")
	}

	users := repository.NewUserRepo(db)
	stores := repository.NewStoreRepo(db)
	ratings := repository.NewRatingRepo(db)
	tokens := repository.NewTokenRepo(db)
	audit := repository.NewAuditRepo(db)

	authH := handler.NewAuthHandler(cfg, users, tokens)
	userH := handler.NewUserHandler(cfg, users)
	storeH := handler.NewStoreHandler(stores, ratings)
	ratingH := handler.NewRatingHandler(stores, ratings, audit, users)
	adminH := handler.NewAdminHandler(cfg, users, stores, ratings, audit)

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterAuth(e, authH, middleware.NewRateLimit(config.LoadRateLimitConfig(), rdb))
	router.RegisterPublic(e, storeH, middleware.NewResponseCache(config.LoadCacheConfig(), rdb))
	router.RegisterUser(e, userH, storeH, ratingH, cfg.JWTSecret)
	router.RegisterOwner(e, storeH, ratingH, cfg.JWTSecret)
	router.RegisterAdmin(e, adminH, cfg.JWTSecret)

	// Expired refresh tokens are pruned hourly. Rotation checks
	// expires_at itself, so this is housekeeping, not enforcement.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := tokens.DeleteExpired(ctx); err != nil {
				log.Printf("refresh token cleanup: %v", err)
			}
			cancel()
		}
	}()

	// Background consumer appends committed rating events to
	// logs/ratings.log. It reconnects forever on broker failures.
	go func() {
		if err := queue.StartRatingConsumer(); err != nil {
			log.Printf("rating consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
