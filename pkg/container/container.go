package container

import (
	"context"
	"fmt"
	"log"
	"time"

	"pharmacy-backend/internal/config"
	infraCache "pharmacy-backend/internal/infrastructure/cache"
	"pharmacy-backend/internal/infrastructure/database"
	"pharmacy-backend/pkg/cache"
	"pharmacy-backend/pkg/jwt"

	// Voucher domain imports
	voucherHandler "pharmacy-backend/internal/domains/voucher/handler"
	voucherRepo "pharmacy-backend/internal/domains/voucher/repository"
	voucherService "pharmacy-backend/internal/domains/voucher/service"
)

// ========================================
// CONTAINER STRUCT
// ========================================

// Container chứa TẤT CẢ dependencies của application.
// Struct này là "root" của dependency graph.
type Container struct {
	// ========================================
	// INFRASTRUCTURE LAYER
	// ========================================
	// Shared across all domains, singleton lifecycle

	Config     *config.Config
	DB         *database.PostgresDB
	Cache      cache.Cache
	JWTManager *jwt.Manager

	// ========================================
	// REPOSITORY LAYER (DATA ACCESS)
	// ========================================

	VoucherRepo voucherRepo.VoucherRepository

	// ========================================
	// SERVICE LAYER (BUSINESS LOGIC)
	// ========================================

	VoucherService voucherService.ServiceInterface

	// ========================================
	// HANDLER LAYER (HTTP)
	// ========================================

	VoucherPublicHandler *voucherHandler.PublicHandler
	VoucherAdminHandler  *voucherHandler.AdminHandler
}

// ========================================
// CONSTRUCTOR: BUILD CONTAINER
// ========================================

// NewContainer tạo và initialize toàn bộ dependency graph.
//
// QUAN TRỌNG: Thứ tự initialization:
// 1. Config (không phụ thuộc gì)
// 2. Infrastructure (DB, Cache) - phụ thuộc Config
// 3. Repositories - phụ thuộc Infrastructure
// 4. Services - phụ thuộc Repositories
// 5. Handlers - phụ thuộc Services
func NewContainer() (*Container, error) {
	log.Println("🔧 Initializing DI Container...")

	c := &Container{}

	// ========================================
	// STEP 1: LOAD CONFIGURATION
	// ========================================
	log.Println("📋 Loading configuration...")

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	c.Config = cfg
	log.Printf("✅ Config loaded (Environment: %s)", cfg.App.Environment)

	// ========================================
	// STEP 2: INITIALIZE DATABASE
	// ========================================
	log.Println("🗄️  Connecting to PostgreSQL...")

	dbConfig, err := config.LoadDatabaseConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load database config: %w", err)
	}

	db := database.NewPostgresDB(dbConfig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.HealthCheck(context.Background()); err != nil {
		return nil, fmt.Errorf("database health check failed: %w", err)
	}

	c.DB = db
	log.Println("✅ Database connected")

	// ========================================
	// STEP 3: INITIALIZE CACHE
	// ========================================
	log.Println("🔴 Connecting to Redis...")

	redisCache := infraCache.NewRedisCache(
		cfg.Redis.Host,
		cfg.Redis.Password,
		cfg.Redis.DB,
	)

	// Redis failure không critical: vouchers chỉ cache listing,
	// counters luôn đọc từ PostgreSQL.
	if rc, ok := redisCache.(*infraCache.RedisCache); ok {
		if err := rc.Connect(context.Background()); err != nil {
			log.Printf("⚠️  Redis connection failed (non-critical): %v", err)
		} else {
			log.Println("✅ Redis connected")
		}
	}

	c.Cache = redisCache

	c.JWTManager = jwt.NewManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpiry)

	// ========================================
	// STEP 4: INITIALIZE REPOSITORIES
	// ========================================
	log.Println("📦 Initializing repositories...")

	c.VoucherRepo = voucherRepo.NewPostgresRepository(c.DB.Pool)

	log.Println("✅ Repositories initialized")

	// ========================================
	// STEP 5: INITIALIZE SERVICES
	// ========================================
	log.Println("⚙️  Initializing services...")

	c.VoucherService = voucherService.NewVoucherService(
		c.VoucherRepo,
		c.Cache,
		time.Duration(cfg.Voucher.ListingCacheTTL)*time.Second,
		cfg.Voucher.MaxCodegenRetry,
	)

	log.Println("✅ Services initialized")

	// ========================================
	// STEP 6: INITIALIZE HANDLERS
	// ========================================
	log.Println("🎯 Initializing handlers...")

	c.VoucherPublicHandler = voucherHandler.NewPublicHandler(c.VoucherService)
	c.VoucherAdminHandler = voucherHandler.NewAdminHandler(c.VoucherService)

	log.Println("✅ Handlers initialized")

	log.Println("🎉 DI Container initialized successfully")
	return c, nil
}

// ========================================
// CLEANUP
// ========================================

// Cleanup dọn dẹp resources khi shutdown.
// Gọi trong graceful shutdown của server.
func (c *Container) Cleanup() {
	log.Println("🧹 Cleaning up container resources...")

	if c.DB != nil && c.DB.Pool != nil {
		c.DB.Pool.Close()
		log.Println("✅ Database connections closed")
	}

	if c.Cache != nil {
		if rc, ok := c.Cache.(*infraCache.RedisCache); ok {
			if err := rc.Close(); err != nil {
				log.Printf("⚠️  Failed to close Redis: %v", err)
			} else {
				log.Println("✅ Redis connections closed")
			}
		}
	}

	log.Println("✅ Container cleanup completed")
}
