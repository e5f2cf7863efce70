package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"advice-moderation-server/config"
	"advice-moderation-server/database"
	"advice-moderation-server/jobs"
	"advice-moderation-server/middleware"
	"advice-moderation-server/routes"
	"advice-moderation-server/services"
	ws "advice-moderation-server/websocket"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	if err := config.Load(); err != nil {
		log.Fatal("Failed to load configuration:", err)
	}
	cfg := config.AppConfig

	if err := database.Initialize(cfg.Database); err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	db := database.GetDB()

	if cfg.Server.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	// Live socket hub for users, experts and operators
	hub := ws.NewHub()
	go hub.Run()

	// Notification channels; each one is optional
	notifyOpts := []services.NotificationOption{
		services.WithLivePusher(hub),
		services.WithPushSender(services.NewExpoPusher(cfg.Notification.ExpoPushURL)),
	}
	var redisPub *services.RedisPublisher
	if cfg.Notification.RedisAddr != "" {
		redisPub = services.NewRedisPublisher(cfg.Notification.RedisAddr, cfg.Notification.RedisPassword, cfg.Notification.RedisChannel)
		notifyOpts = append(notifyOpts, services.WithEventPublisher(redisPub))
		log.Printf("📡 Publishing notifications to redis channel %s", cfg.Notification.RedisChannel)
	}
	if cfg.Notification.SendGridKey != "" && cfg.Notification.EmailFrom != "" {
		notifyOpts = append(notifyOpts, services.WithEmailSender(
			services.NewSendGridMailer(cfg.Notification.SendGridKey, cfg.Notification.EmailFrom, cfg.Notification.EmailFromName)))
		log.Println("📧 E-mail notifications enabled")
	}
	notifications := services.NewNotificationService(db, notifyOpts...)

	experts := services.NewGormExpertDirectory(db)
	moderation := services.NewModerationService(
		services.NewGormRequestStore(db),
		experts,
		notifications,
		services.WithCommissionRates(services.CommissionRates{
			Default:   cfg.Moderation.DefaultCommission,
			Exclusive: cfg.Moderation.ExclusiveCommission,
		}),
		services.WithOperatorBroadcaster(hub),
	)

	jwtService := services.NewJWTService(db, cfg.JWT.Secret,
		time.Duration(cfg.JWT.ExpiryHours)*time.Hour,
		time.Duration(cfg.JWT.RefreshDays)*24*time.Hour)
	authService := services.NewAuthService(db)

	handler := &routes.Handler{
		Moderation:    moderation,
		Bulk:          services.NewBulkCoordinator(moderation, cfg.Moderation.BulkConcurrency),
		Experts:       experts,
		Notifications: notifications,
		Auth:          authService,
		JWT:           jwtService,
		UploadFolder:  cfg.Cloudinary.Folder,
		Hub:           hub,
	}
	if cfg.Cloudinary.URL != "" {
		uploader, err := services.NewCloudinaryUploader(cfg.Cloudinary.URL)
		if err != nil {
			log.Printf("⚠️ Cloudinary disabled: %v", err)
		} else {
			handler.Uploader = uploader
		}
	}

	limiter := middleware.NewRateLimiter()

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false

	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.Server.CORSOrigins))
	router.Use(middleware.InputValidationMiddleware())
	router.Use(limiter.RateLimitMiddleware())
	router.Use(middleware.AuditLogMiddleware())

	routes.RegisterRoutes(router, handler, middleware.NewAuthenticator(jwtService, authService))

	scheduler := jobs.NewScheduler(db, jwtService, limiter)
	if err := scheduler.Register(cfg.Jobs); err != nil {
		log.Fatal("Failed to schedule jobs:", err)
	}
	scheduler.Start()

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("❌ Server forced to shutdown: %v", err)
	}

	scheduler.Stop()
	// let in-flight notifications finish before the connections go away
	moderation.Drain()
	hub.Stop()
	if redisPub != nil {
		if err := redisPub.Close(); err != nil {
			log.Printf("⚠️ Redis close: %v", err)
		}
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	log.Println("✅ Server exited")
}
