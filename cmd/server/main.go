package main

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/websocket/v2"
	"github.com/joho/godotenv"
	"github.com/pulsegrid/notify-backend/internal/cache"
	"github.com/pulsegrid/notify-backend/internal/handlers"
	"github.com/pulsegrid/notify-backend/internal/handlers/ws"
	"github.com/pulsegrid/notify-backend/internal/middleware"
	"github.com/pulsegrid/notify-backend/internal/models"
	"github.com/pulsegrid/notify-backend/internal/repository"
	"github.com/pulsegrid/notify-backend/internal/service"
	"github.com/pulsegrid/notify-backend/internal/storage"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName: "Pulse Notify Backend",
	})

	// Middleware
	app.Use(requestid.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     os.Getenv("ALLOWED_ORIGINS"),
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, PUT, DELETE, OPTIONS",
		AllowCredentials: true,
	}))

	// Initialize database connection
	db, err := repository.InitDB()
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Initialize Redis cache
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	redisPassword := os.Getenv("REDIS_PASSWORD")
	redisDB := 0
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if parsedDB, err := strconv.Atoi(dbStr); err == nil {
			redisDB = parsedDB
		}
	}

	redisCache := cache.NewRedisCache(redisAddr, redisPassword, redisDB)
	if err := redisCache.Ping(); err != nil {
		log.Printf("WARNING: Redis connection failed: %v. Running without cache.", err)
		redisCache = nil
	} else {
		log.Println("Redis cache connected successfully")
	}

	notificationCache := cache.NewNotificationCache(redisCache)
	presenceCache := cache.NewPresenceCache(redisCache)

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	deliveryRepo := repository.NewDeliveryRecordRepository(db)

	// Initialize services
	authService := service.NewAuthService(userRepo)
	notificationService := service.NewNotificationService(notificationRepo, deliveryRepo, userRepo, notificationCache)

	// Bootstrap admin account (best-effort; skipped when env is unset)
	if err := authService.EnsureAdmin(
		os.Getenv("ADMIN_USERNAME"),
		os.Getenv("ADMIN_EMAIL"),
		os.Getenv("ADMIN_PASSWORD"),
	); err != nil {
		log.Printf("WARNING: Failed to bootstrap admin account: %v", err)
	}

	// Initialize the hub and wire it into the delivery engine
	hub := ws.NewHub()
	notificationService.SetTransport(hub)

	// Initialize S3/MinIO archive sink (best-effort; cleanup runs without it)
	if cfg, err := storage.LoadS3ConfigFromEnv(); err != nil {
		log.Printf("WARNING: S3 archive not configured: %v", err)
	} else if archive, err := storage.NewArchiveStorage(cfg); err != nil {
		log.Printf("WARNING: Failed to initialize S3 archive: %v", err)
	} else {
		notificationService.SetArchiver(archive)
		log.Printf("S3 archive initialized successfully (bucket=%s)", cfg.Bucket)
	}

	// Periodic cleanup of expired, fully-settled notifications
	cleanupInterval := time.Hour
	if s := os.Getenv("CLEANUP_INTERVAL"); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			cleanupInterval = d
		}
	}
	notificationService.StartCleanupSweeper(cleanupInterval)

	// Initialize handlers
	wsHandler := handlers.NewWebSocketHandler(notificationService, hub, presenceCache)
	authHandler := handlers.NewAuthHandler(authService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)

	// Public routes
	api := app.Group("/api", middleware.OriginAllowed())
	auth := api.Group("/auth", limiter.New(limiter.Config{
		Max:        20,
		Expiration: time.Minute,
	}))
	auth.Post("/login", authHandler.Login)

	// Protected routes
	protected := api.Group("/", middleware.AuthRequired())
	protected.Get("/notifications", notificationHandler.GetNotifications)
	protected.Get("/notifications/unread-count", notificationHandler.GetUnreadCount)
	protected.Post("/notifications/:id/read", notificationHandler.MarkRead)

	// Producer/admin routes
	admin := protected.Group("/", middleware.RequireRole(models.RoleAdmin))
	admin.Post("/notifications", notificationHandler.SendNotification)
	admin.Post("/notifications/broadcast", notificationHandler.BroadcastNotification)
	admin.Post("/admin/alerts", notificationHandler.SendAdminAlert)
	admin.Get("/admin/notifications/stats", notificationHandler.GetStats)
	admin.Post("/admin/notifications/cleanup", notificationHandler.Cleanup)

	// WebSocket route (websocket upgrade needs special handling)
	app.Use(
		"/ws",
		middleware.OriginAllowed(),
		middleware.AuthRequired(),
		func(c *fiber.Ctx) error {
			// Upgrade to WebSocket
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		},
	)
	app.Get("/ws", websocket.New(wsHandler.HandleWebSocket))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":       "ok",
			"connections":  hub.Count(),
			"online_users": presenceCache.OnlineCount(),
		})
	})

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s...", port)
	if err := app.Listen(":" + port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
