package handlers

import (
	"groundstation/internal/middleware"
	"groundstation/internal/models"
	"groundstation/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Router bundles everything the HTTP surface needs.
type Router struct {
	Telemetry *TelemetryHandler
	Ingest    *IngestHandler
	Auth      *AuthHandler
	System    *SystemHandler

	AuthService   service.AuthService
	IngestLimiter *rate.Limiter
	LoginLimiter  *middleware.IPRateLimiter
	Logger        *zap.Logger
}

// Register mounts all routes on r. Device ingestion stays at the root so
// existing receivers keep working; everything else lives under /api.
func (rt *Router) Register(r *gin.Engine) {
	ingest := r.Group("/")
	if rt.IngestLimiter != nil {
		ingest.Use(middleware.RateLimitMiddleware(rt.IngestLimiter, rt.Logger))
	}
	ingest.POST("/data", rt.Ingest.PostData)
	ingest.POST("/upload", rt.Ingest.PostUpload)

	api := r.Group("/api")

	api.GET("/telemetry", rt.Telemetry.GetSnapshot)
	api.GET("/telemetry/history", rt.Telemetry.GetTelemetryHistory)
	api.GET("/telemetry/export", rt.Telemetry.ExportTelemetry)
	api.GET("/logs", rt.Telemetry.GetLogs)
	api.GET("/gyro", rt.Telemetry.GetGyro)

	api.GET("/health", rt.System.Health)
	api.GET("/system/stats", rt.System.Stats)

	login := api.Group("/login")
	if rt.LoginLimiter != nil {
		login.Use(middleware.IPRateLimitMiddleware(rt.LoginLimiter, rt.Logger))
	}
	login.POST("", rt.Auth.Login)

	users := api.Group("/users")
	admin := middleware.RequireRole(rt.AuthService, models.RoleSuperadmin)
	users.GET("", admin, rt.Auth.ListUsers)
	users.POST("", admin, rt.Auth.CreateUser)
	users.DELETE("/:name", admin, rt.Auth.DeleteUser)
	users.PUT("/:name/password", middleware.RequireRole(rt.AuthService), rt.Auth.UpdatePassword)
}
