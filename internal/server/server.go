package server

import (
	"context"
	"net/http"
	"time"

	"anoa.com/threadgraph/internal/config"
	"anoa.com/threadgraph/internal/middleware"

	feedHttp "anoa.com/threadgraph/internal/modules/feed/delivery/http"
	feedService "anoa.com/threadgraph/internal/modules/feed/service"

	notifHttp "anoa.com/threadgraph/internal/modules/notification/delivery/http"
	notifRepo "anoa.com/threadgraph/internal/modules/notification/repository"
	notifService "anoa.com/threadgraph/internal/modules/notification/service"

	profileHttp "anoa.com/threadgraph/internal/modules/profile/delivery/http"
	profileRepo "anoa.com/threadgraph/internal/modules/profile/repository"
	profileService "anoa.com/threadgraph/internal/modules/profile/service"

	reconcileService "anoa.com/threadgraph/internal/modules/reconcile/service"

	relationshipHttp "anoa.com/threadgraph/internal/modules/relationship/delivery/http"
	relationshipRepo "anoa.com/threadgraph/internal/modules/relationship/repository"
	relationshipService "anoa.com/threadgraph/internal/modules/relationship/service"

	threadHttp "anoa.com/threadgraph/internal/modules/thread/delivery/http"
	threadRepo "anoa.com/threadgraph/internal/modules/thread/repository"
	threadService "anoa.com/threadgraph/internal/modules/thread/service"

	"anoa.com/threadgraph/pkg/ratelimiter"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type Server struct {
	engine      *gin.Engine
	db          *gorm.DB
	redisClient *redis.Client
	dispatcher  *notifService.Dispatcher
	reconciler  reconcileService.ReconcileService
}

// NewServer wires every module. redisClient may be nil.
func NewServer(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) *Server {
	profileRepository := profileRepo.NewRepository(db)
	threadRepository := threadRepo.NewRepository(db)
	followRepository := relationshipRepo.NewFollowRepository(db)
	likeRepository := relationshipRepo.NewLikeRepository(db)
	notificationRepository := notifRepo.NewNotificationRepository(db)

	// Notification Module
	notificationSvc := notifService.NewNotificationService(notificationRepository, profileRepository, threadRepository, notifService.Options{
		DedupWindow: cfg.NotificationDedupWindow,
	})
	dispatcher := notifService.NewDispatcher(notificationSvc)
	notificationHandler := notifHttp.NewNotificationHandler(notificationSvc)

	profileSvc := profileService.NewProfileService(profileRepository)
	profileHandler := profileHttp.NewProfileHandler(profileSvc)

	relationshipSvc := relationshipService.NewRelationshipService(followRepository, likeRepository, threadRepository, dispatcher, redisClient, relationshipService.Options{
		CountCacheTTL: cfg.FollowCountCacheTTL,
	})
	relationshipHandler := relationshipHttp.NewRelationshipHandler(relationshipSvc)

	var cooldown *ratelimiter.Cooldown
	if redisClient != nil {
		cooldown = ratelimiter.NewCooldown(redisClient, "create_thread", cfg.RateLimitThread)
	}
	threadSvc := threadService.NewService(threadRepository, profileRepository, dispatcher, cooldown)
	threadHandler := threadHttp.NewThreadHandler(threadSvc, relationshipSvc)

	feedSvc := feedService.NewFeedService(threadRepository, followRepository, profileRepository)
	feedHandler := feedHttp.NewFeedHandler(feedSvc, relationshipSvc)

	router := gin.New()

	setupCORS(router, cfg.AllowedOrigins)

	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz"},
	}))

	s := &Server{
		engine:      router,
		db:          db,
		redisClient: redisClient,
		dispatcher:  dispatcher,
		reconciler:  reconcileService.NewReconcileService(threadRepository, cfg.ReconcileBatch),
	}

	router.GET("/healthz", s.health)

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWTSecret)

	api := router.Group("/api")

	// Public routes (anonymous callers allowed)
	public := api.Group("")
	public.Use(authMiddleware.OptionalAuth())
	{
		public.GET("/feed", feedHandler.GetPublicFeed)
		public.GET("/threads/:thread_id", threadHandler.GetThread)
		public.GET("/threads/:thread_id/replies", threadHandler.GetReplies)
		public.GET("/profiles/:username", profileHandler.GetProfileByUsername)
		public.GET("/profiles/:username/threads", feedHandler.GetUserFeed)
		public.GET("/users/:user_id/follow-status", relationshipHandler.GetFollowStatus)
	}

	// Protected routes (apply auth middleware explicitly)
	protected := api.Group("")
	protected.Use(authMiddleware.RequireAuth())
	{
		protected.GET("/feed/following", feedHandler.GetFollowingFeed)

		// Thread routes
		protected.POST("/threads", threadHandler.CreateThread)
		protected.DELETE("/threads/:thread_id", threadHandler.DeleteThread)
		protected.POST("/threads/:thread_id/like", relationshipHandler.ToggleLike)
		protected.POST("/likes/status", relationshipHandler.GetLikeStatus)

		protected.POST("/users/:user_id/follow", relationshipHandler.ToggleFollow)

		// Profile routes
		protected.POST("/profile", profileHandler.CreateProfile)
		protected.GET("/profile/me", profileHandler.GetCurrentProfile)
		protected.PUT("/profile", profileHandler.UpdateProfile)

		// Notification routes
		protected.GET("/notifications", notificationHandler.GetNotifications)
		protected.GET("/notifications/unread-count", notificationHandler.GetUnreadCount)
		protected.PUT("/notifications/read-all", notificationHandler.MarkAllAsRead)
		protected.PUT("/notifications/:id/read", notificationHandler.MarkAsRead)
		protected.DELETE("/notifications/:id", notificationHandler.DeleteNotification)
	}

	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Reconciler exposes the counter repair job so the caller can schedule it.
func (s *Server) Reconciler() reconcileService.ReconcileService {
	return s.reconciler
}

// Drain waits for in-flight notification deliveries.
func (s *Server) Drain(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		s.dispatcher.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		log.Warn().Msg("shutdown deadline reached with notifications still in flight")
	}
}

func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := gin.H{"database": "ok", "redis": "disabled"}
	code := http.StatusOK

	if sqlDB, err := s.db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		status["database"] = "unavailable"
		code = http.StatusServiceUnavailable
	}
	if s.redisClient != nil {
		status["redis"] = "ok"
		if err := s.redisClient.Ping(ctx).Err(); err != nil {
			// redis only backs caches and rate limits
			status["redis"] = "degraded"
		}
	}

	c.JSON(code, status)
}

func setupCORS(router *gin.Engine, origins []string) {
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
}
