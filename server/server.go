package server

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/clarahq/clara-backend/config"
	"github.com/clarahq/clara-backend/docs"
	downloadHandler "github.com/clarahq/clara-backend/internal/handler/download_extension"
	extensionUserHandler "github.com/clarahq/clara-backend/internal/handler/extension_user"
	insightsHandler "github.com/clarahq/clara-backend/internal/handler/insights"
	notificationHandler "github.com/clarahq/clara-backend/internal/handler/notification"
	reportHandler "github.com/clarahq/clara-backend/internal/handler/report"
	trackerHandler "github.com/clarahq/clara-backend/internal/handler/tracker"
	userHandler "github.com/clarahq/clara-backend/internal/handler/user"
	"github.com/clarahq/clara-backend/internal/repository"
	extensionUserService "github.com/clarahq/clara-backend/internal/service/extension_user"
	"github.com/clarahq/clara-backend/internal/service/insights"
	"github.com/clarahq/clara-backend/internal/service/notification"
	"github.com/clarahq/clara-backend/internal/service/redis"
	"github.com/clarahq/clara-backend/internal/service/report"
	"github.com/clarahq/clara-backend/internal/service/tracker"
	"github.com/clarahq/clara-backend/internal/service/user"
	"github.com/clarahq/clara-backend/middleware"
	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

type RouterHandler struct {
	userHandler          *userHandler.UserHandler
	extensionUserHandler *extensionUserHandler.ExtensionUserHandler
	trackerHandler       *trackerHandler.TrackerHandler
	reportHandler        *reportHandler.ReportHandler
	notificationHandler  *notificationHandler.NotificationHandler
	insightsHandler      *insightsHandler.InsightsHandler
	downloadHandler      *downloadHandler.ExtensionHandler
	extensionUserService extensionUserService.ExtensionUserService
	redisService         redis.ServiceInterface
	swaggerHost          string
}

func RunServer(config *config.Config) {
	env := config.Env
	switch env {
	case "prod", "production":
		gin.SetMode(gin.ReleaseMode)
		log.Println("🚀 Starting server in PRODUCTION mode")
	case "dev", "development":
		gin.SetMode(gin.DebugMode)
		log.Println("🔧 Starting server in DEVELOPMENT mode")
	default:
		gin.SetMode(gin.DebugMode)
		log.Println("🔧 Starting server in DEVELOPMENT mode (default)")
	}

	db, err := repository.NewRepository(config.DB)
	if err != nil {
		log.Fatal("❌ Failed to connect to database:", err)
	}
	defer db.Close()

	loc, err := time.LoadLocation(config.Tracker.Timezone)
	if err != nil {
		log.Printf("⚠️ Unknown timezone %q, falling back to UTC", config.Tracker.Timezone)
		loc = time.UTC
	}

	var redisService redis.ServiceInterface
	if srv := redis.NewRedisService(redis.RedisConfig(config.Redis)); srv != nil {
		redisService = srv
	} else {
		log.Println("⚠️ Redis unavailable, caching and rate limiting disabled")
	}

	userRepo := repository.NewUserRepository(db)
	extensionUserRepo := repository.NewExtensionUserRepository(db)
	stateRepo := repository.NewStateRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	userSrv := user.NewUserService(userRepo)
	extensionUserSrv := extensionUserService.NewExtensionUserService(extensionUserRepo)
	notificationSrv := notification.NewNotificationService(notificationRepo)

	var marker tracker.Marker
	if redisService != nil {
		marker = redisService
	}
	manager := tracker.NewManager(stateRepo, notificationSrv, marker, nil, loc,
		config.Tracker.DigestWeekday, config.Tracker.DigestHour)
	reportSrv := report.NewReportService(manager, stateRepo, redisService, loc, config.Server.Version)
	manager.SetDigestBuilder(reportSrv)

	insightsSrv := insights.NewInsightsService(config.OpenAIKey)

	routerHandler := &RouterHandler{
		userHandler:          userHandler.NewUserHandler(userSrv),
		extensionUserHandler: extensionUserHandler.NewExtensionUserHandler(extensionUserSrv),
		trackerHandler:       trackerHandler.NewTrackerHandler(manager, redisService),
		reportHandler:        reportHandler.NewReportHandler(reportSrv),
		notificationHandler:  notificationHandler.NewNotificationHandler(notificationSrv),
		insightsHandler:      insightsHandler.NewInsightsHandler(insightsSrv, reportSrv),
		downloadHandler:      downloadHandler.NewExtensionHandler(userRepo),
		extensionUserService: extensionUserSrv,
		redisService:         redisService,
		swaggerHost:          config.Server.SwaggerHost,
	}

	r := setupRouter(routerHandler)

	srv := &http.Server{
		Addr:    ":" + config.Server.Port,
		Handler: r,
	}

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go manager.Run(runCtx)

	go func() {
		log.Printf("✅ Server starting on port %s", config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Failed to start server: %v", err)
		}
	}()

	// Graceful shutdown
	gracefulShutdown(srv, cancel)
}

func gracefulShutdown(srv *http.Server, cancel context.CancelFunc) {
	quit := make(chan os.Signal, 1)

	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	log.Println("🔄 Shutting down server...")
	cancel()

	ctx, cancelTimeout := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelTimeout()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("❌ Server forced to shutdown: %v", err)
		return
	}

	select {
	case <-ctx.Done():
		log.Println("⚠️ Server shutdown timeout exceeded")
	default:
		log.Println("✅ Server gracefully stopped")
	}
}

func setupRouter(routerHandler *RouterHandler) *gin.Engine {
	r := gin.Default()
	r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if origin != "" && (strings.HasPrefix(origin, "http://localhost:") ||
			strings.HasPrefix(origin, "http://127.0.0.1:") ||
			strings.HasPrefix(origin, "chrome-extension://") ||
			strings.HasPrefix(origin, "moz-extension://")) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else if origin == "https://clara-app.space" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, X-API-Key, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().Unix(),
			"service":   "clara-backend",
		})
	})

	docs.SwaggerInfo.Host = routerHandler.swaggerHost
	docs.SwaggerInfo.Schemes = []string{"http", "https"}
	docs.SwaggerInfo.Title = "C.L.A.R.A. API"
	docs.SwaggerInfo.Description = "AI usage tracking backend for the C.L.A.R.A. browser extension"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.BasePath = "/api/v1"

	r.GET("/swagger/*any", middleware.SwaggerHostMiddleware(routerHandler.swaggerHost), ginSwagger.WrapHandler(swaggerFiles.Handler))

	publicRoutes := r.Group("/api/v1/clara")
	{
		extensionRoutes := publicRoutes.Group("")
		extensionRoutes.Use(middleware.APIKeyMiddleware(routerHandler.extensionUserService))
		{
			extensionRoutes.GET("/users/auth", routerHandler.extensionUserHandler.ValidateAPIKey)

			trackerRoutes := extensionRoutes.Group("/tracker")
			{
				trackerRoutes.POST("/events",
					middleware.RateLimitMiddleware(routerHandler.redisService, "events", 120, time.Minute),
					routerHandler.trackerHandler.BatchEvents)
				trackerRoutes.GET("/state", routerHandler.trackerHandler.GetState)
				trackerRoutes.GET("/badge", routerHandler.trackerHandler.GetBadge)
				trackerRoutes.POST("/pause", routerHandler.trackerHandler.Pause)
				trackerRoutes.POST("/pause/today", routerHandler.trackerHandler.PauseToday)
				trackerRoutes.POST("/resume", routerHandler.trackerHandler.Resume)
				trackerRoutes.POST("/tracking", routerHandler.trackerHandler.SetTracking)
				trackerRoutes.POST("/rules", routerHandler.trackerHandler.AddRule)
				trackerRoutes.DELETE("/rules", routerHandler.trackerHandler.RemoveRule)
				trackerRoutes.POST("/rules/reset", routerHandler.trackerHandler.ResetRules)
				trackerRoutes.POST("/badge-mode", routerHandler.trackerHandler.SetBadgeMode)
				trackerRoutes.POST("/reset-today", routerHandler.trackerHandler.ResetToday)
				trackerRoutes.POST("/clear", routerHandler.trackerHandler.ClearData)
				trackerRoutes.GET("/backup", routerHandler.trackerHandler.ExportBackup)
				trackerRoutes.POST("/backup", routerHandler.trackerHandler.ImportBackup)
			}

			prefsRoutes := extensionRoutes.Group("/prefs")
			{
				prefsRoutes.GET("/notifications", routerHandler.trackerHandler.GetNotifyPrefs)
				prefsRoutes.PUT("/notifications", routerHandler.trackerHandler.SetNotifyPrefs)
				prefsRoutes.PUT("/portfolio", routerHandler.trackerHandler.SetPortfolioPrefs)
				prefsRoutes.GET("/settings", routerHandler.trackerHandler.GetSettings)
				prefsRoutes.PUT("/settings", routerHandler.trackerHandler.SetSettings)
				prefsRoutes.GET("/ui-flags", routerHandler.trackerHandler.GetUIFlags)
				prefsRoutes.PUT("/ui-flags", routerHandler.trackerHandler.SetUIFlags)
			}

			extensionRoutes.GET("/reports/week", routerHandler.reportHandler.GetWeek)

			exportRoutes := extensionRoutes.Group("/exports")
			{
				exportRoutes.GET("/portfolio", routerHandler.reportHandler.ExportPortfolio)
				exportRoutes.GET("/portfolio/weekly", routerHandler.reportHandler.ExportWeeklyPortfolio)
				exportRoutes.GET("/attachment", routerHandler.reportHandler.ExportAttachment)
				exportRoutes.GET("/analytics", routerHandler.reportHandler.ExportAnalytics)
				exportRoutes.GET("/csv", routerHandler.reportHandler.ExportCSV)
				exportRoutes.GET("/labels", routerHandler.reportHandler.GetFriendlyLabels)
			}

			notificationRoutes := extensionRoutes.Group("/notifications")
			{
				notificationRoutes.GET("", routerHandler.notificationHandler.List)
				notificationRoutes.POST("/read", routerHandler.notificationHandler.MarkRead)
				notificationRoutes.GET("/unread-count", routerHandler.notificationHandler.UnreadCount)
			}

			extensionRoutes.GET("/insights/weekly",
				middleware.RateLimitMiddleware(routerHandler.redisService, "insights", 10, time.Minute),
				routerHandler.insightsHandler.GetWeeklyInsight)
		}
	}

	extensionDist := r.Group("/api/v1/extension")
	{
		extensionDist.GET("/info", routerHandler.downloadHandler.GetExtensionInfo)
		extensionDist.GET("/health", routerHandler.downloadHandler.GetExtensionHealth)
		extensionDist.GET("/download", routerHandler.downloadHandler.DownloadExtension)
		extensionDist.GET("/verify-admin", routerHandler.downloadHandler.VerifyAdmin)
	}

	publicAdminRoutes := r.Group("/api/v1/admin")
	{
		publicAdminRoutes.POST("/users/auth", routerHandler.userHandler.CreateOrAuthUserWithPassword)
	}

	privateRoutes := r.Group("/api/v1/admin")
	privateRoutes.Use(middleware.AuthenticationMiddleware())
	{
		privateRoutes.GET("/users/profile", routerHandler.userHandler.GetUserById)
		privateRoutes.GET("/users", routerHandler.userHandler.GetAllUsers)
		privateRoutes.POST("/users/logout", routerHandler.userHandler.Logout)
		privateRoutes.POST("/extension/deploy", routerHandler.downloadHandler.DeployExtension)

		extensionRoutes := privateRoutes.Group("/extension")
		{
			extensionRoutes.POST("/users/generate", routerHandler.extensionUserHandler.CreateExtensionUser)
			extensionRoutes.GET("/users", routerHandler.extensionUserHandler.GetAllExtensionUsers)
			extensionRoutes.GET("/users/stats", routerHandler.extensionUserHandler.GetExtensionUserStats)
			extensionRoutes.GET("/users/by-username/:username", routerHandler.extensionUserHandler.GetExtensionUserByUsername)
			extensionRoutes.GET("/users/:id", routerHandler.extensionUserHandler.GetExtensionUserByID)
			extensionRoutes.PUT("/users/:id", routerHandler.extensionUserHandler.UpdateExtensionUser)
			extensionRoutes.POST("/users/:id/regenerate-key", routerHandler.extensionUserHandler.RegenerateAPIKey)
			extensionRoutes.DELETE("/users/:id", routerHandler.extensionUserHandler.DeleteExtensionUser)
		}
	}

	return r
}
