package main

import (
	"context"
	"log"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/vidtube/backend/internal/client"
	"github.com/vidtube/backend/internal/config"
	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/handler"
	"github.com/vidtube/backend/internal/service"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx := context.Background()

	pool, err := db.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatalf("postgres init failed: %v", err)
	}
	defer pool.Close()

	store := db.New(pool)
	if err := store.EnsureUserSchema(ctx); err != nil {
		log.Fatalf("schema bootstrap failed: %v", err)
	}

	tokens, err := service.NewTokenService(store, cfg.Auth)
	if err != nil {
		log.Fatalf("token service init failed: %v", err)
	}

	media := client.NewMediaClient(cfg.Media)
	if !media.IsConfigured() {
		log.Printf("media store not configured; uploads will fail")
	}

	users := service.NewUserService(store, tokens, media)

	userHandler, err := handler.NewUserHandler(users, tokens, cfg)
	if err != nil {
		log.Fatalf("handler init failed: %v", err)
	}

	router := gin.Default()
	router.MaxMultipartMemory = 16 << 20

	if cfg.Server.CORSOrigins != "" {
		router.Use(handler.CORSMiddleware(strings.Split(cfg.Server.CORSOrigins, ",")))
	}

	router.GET("/", handler.Root)
	router.GET("/ping", handler.Ping)
	router.GET("/openapi.json", handler.OpenAPIDoc)
	router.Static("/public", cfg.Server.StaticDir)

	authRequired := handler.AuthMiddleware(tokens, store)

	api := router.Group("/api/v1/users")
	{
		api.POST("/register", userHandler.Register)
		api.POST("/login", userHandler.Login)
		api.POST("/refresh-token", userHandler.Refresh)

		api.POST("/logout", authRequired, userHandler.Logout)
		api.POST("/change-password", authRequired, userHandler.ChangePassword)
		api.GET("/me", authRequired, userHandler.Me)
		api.PATCH("/me", authRequired, userHandler.UpdateProfile)
		api.PATCH("/avatar", authRequired, userHandler.UpdateAvatar)
		api.PATCH("/cover-image", authRequired, userHandler.UpdateCoverImage)
	}

	if err := router.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
