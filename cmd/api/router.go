package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"pharmacy-backend/internal/shared/middleware"
	"pharmacy-backend/pkg/container"
)

func SetupRouter(c *container.Container) *gin.Engine {
	router := gin.New()

	// Global middlewares
	router.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.CORS(),
	)

	v1 := router.Group("/api/v1")
	{
		// Health check
		v1.GET("/health", healthCheckHandler(c))

		setupVoucherRoutes(v1, c)
		setupAdminVoucherRoutes(v1, c)
	}

	return router
}

// ========================================
// VOUCHER ROUTES (PUBLIC)
// ========================================
func setupVoucherRoutes(v1 *gin.RouterGroup, c *container.Container) {
	vouchers := v1.Group("/vouchers")

	// Validate/apply work for guests too; a Bearer token, when present,
	// enables per-user limit checks and the usage ledger.
	vouchers.Use(middleware.OptionalAuthMiddleware(c.JWTManager))
	{
		vouchers.GET("", c.VoucherPublicHandler.ListAvailableVouchers)
		vouchers.GET("/available", c.VoucherPublicHandler.ListAvailableVouchers)
		vouchers.GET("/check", c.VoucherPublicHandler.CheckVoucher)
		vouchers.POST("/calculate", c.VoucherPublicHandler.CalculateDiscount)
		vouchers.POST("/apply", c.VoucherPublicHandler.ApplyVoucher)
	}

	// Authenticated-only voucher routes
	authed := v1.Group("/vouchers")
	authed.Use(middleware.AuthMiddleware(c.JWTManager))
	{
		authed.GET("/my", c.VoucherPublicHandler.ListMyVouchers)
		authed.POST("/claim", c.VoucherPublicHandler.ClaimVoucher)
	}

	// Detail by code last so /check, /my, /claim... match their own
	// routes first.
	detail := v1.Group("/vouchers")
	detail.Use(middleware.OptionalAuthMiddleware(c.JWTManager))
	{
		detail.GET("/:code", c.VoucherPublicHandler.GetVoucherByCode)
	}
}

// ========================================
// ADMIN VOUCHER ROUTES
// ========================================
func setupAdminVoucherRoutes(v1 *gin.RouterGroup, c *container.Container) {
	admin := v1.Group("/admin/vouchers")
	admin.Use(
		middleware.AuthMiddleware(c.JWTManager),
		middleware.AdminMiddleware(),
	)
	{
		admin.POST("", c.VoucherAdminHandler.CreateVoucher)
		admin.GET("", c.VoucherAdminHandler.ListVouchers)
		admin.POST("/generate-code", c.VoucherAdminHandler.GenerateCode)
		admin.GET("/:id", c.VoucherAdminHandler.GetVoucher)
		admin.PUT("/:id", c.VoucherAdminHandler.UpdateVoucher)
		admin.DELETE("/:id", c.VoucherAdminHandler.DeactivateVoucher)
	}
}

// ========================================
// HEALTH CHECK HANDLER
// ========================================
func healthCheckHandler(appCtx *container.Container) gin.HandlerFunc {
	return func(c *gin.Context) {
		health := gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
			"version":   appCtx.Config.App.Version,
			"services":  gin.H{},
		}

		// Check database
		dbStatus := "ok"
		if appCtx.DB == nil || appCtx.DB.Pool == nil {
			dbStatus = "disconnected"
			health["status"] = "degraded"
		} else {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()

			if err := appCtx.DB.HealthCheck(ctx); err != nil {
				dbStatus = fmt.Sprintf("error: %v", err)
				health["status"] = "degraded"
			}
		}

		// Check redis
		redisStatus := "ok"
		if appCtx.Cache == nil {
			redisStatus = "disconnected"
		} else {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()

			if err := appCtx.Cache.Ping(ctx); err != nil {
				redisStatus = fmt.Sprintf("error: %v", err)
			}
		}

		health["services"] = gin.H{
			"database": dbStatus,
			"redis":    redisStatus,
		}

		statusCode := http.StatusOK
		if dbStatus != "ok" {
			statusCode = http.StatusServiceUnavailable
		}

		c.JSON(statusCode, health)
	}
}
