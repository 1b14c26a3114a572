package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/AbhiraajV/brainlm-backend/internal/handlers"
	"github.com/AbhiraajV/brainlm-backend/internal/middleware"
)

type RouterConfig struct {
	AuthHandler    *handlers.AuthHandler
	AuthMiddleware *middleware.AuthMiddleware
	UserHandler    *handlers.UserHandler
	EventHandler   *handlers.EventHandler
	PatternHandler *handlers.PatternHandler
	InsightHandler *handlers.InsightHandler
	ReviewHandler  *handlers.ReviewHandler
	JobHandler     *handlers.JobHandler
	AllowOrigins   []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// Public
	router.GET("/healthcheck", handlers.HealthCheck)
	router.POST("/register", cfg.AuthHandler.Register)
	router.POST("/login", cfg.AuthHandler.Login)

	// Protected
	protected := router.Group("/")
	protected.Use(cfg.AuthMiddleware.RequireAuth())
	// Auth
	protected.POST("/refresh", cfg.AuthHandler.Refresh)
	protected.POST("/logout", cfg.AuthHandler.Logout)
	// User
	protected.GET("/user", cfg.UserHandler.GetMe)
	// Events
	protected.POST("/events", cfg.EventHandler.Ingest)
	protected.GET("/events", cfg.EventHandler.List)
	// Patterns
	protected.GET("/patterns", cfg.PatternHandler.ListActive)
	protected.GET("/patterns/:id", cfg.PatternHandler.GetDetail)
	protected.GET("/patterns/lineage/:id", cfg.PatternHandler.GetLineage)
	protected.POST("/patterns/backfill", cfg.PatternHandler.TriggerBackfill)
	// Insights
	protected.GET("/insights", cfg.InsightHandler.List)
	protected.POST("/insights/build", cfg.InsightHandler.TriggerBuild)
	// Reviews
	protected.GET("/reviews", cfg.ReviewHandler.List)
	protected.POST("/reviews/build", cfg.ReviewHandler.TriggerBuild)
	// Jobs
	protected.GET("/jobs/:id", cfg.JobHandler.Get)

	return router
}
