package router

import (
	"time"

	"github.com/serverestaa/instagram-client/internal/api"
	"github.com/serverestaa/instagram-client/internal/ws"
	"github.com/serverestaa/instagram-client/pkg/config"
	"github.com/serverestaa/instagram-client/pkg/di"
	"github.com/serverestaa/instagram-client/pkg/errors"
	"github.com/serverestaa/instagram-client/pkg/logger"
	"github.com/serverestaa/instagram-client/pkg/middleware"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Router is the main router for the application
type Router struct {
	Engine    *gin.Engine
	Container *di.Container
	Logger    *logger.Logger
	Config    *config.Config
}

// New creates a new router with the given container
func New(container *di.Container, cfg *config.Config) *Router {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	engine.Use(logger.Middleware(container.Logger))
	engine.Use(errors.ErrorHandler())
	engine.Use(errors.RecoveryWithLogger())

	rlOpts := middleware.DefaultRateLimiterOptions()
	rlOpts.Limit = rate.Limit(cfg.Security.RateLimit)
	rlOpts.Burst = cfg.Security.RateLimitBurst
	rateLimiter := middleware.NewRateLimiter(container.Logger, rlOpts)
	engine.Use(rateLimiter.Middleware())

	return &Router{
		Engine:    engine,
		Container: container,
		Logger:    container.Logger,
		Config:    cfg,
	}
}

// SetupRoutes registers all application routes
func (r *Router) SetupRoutes() {
	r.Engine.Use(corsMiddleware(r.Config.Security.AllowedOrigins))

	jwtAuth := middleware.JWTAuth(r.Container.JWTService, r.Logger)

	authHandler := api.NewAuthHandler(r.Container.UserService, r.Logger)
	chatHandler := api.NewChatHandler(r.Container.ChatService, r.Config.Chat.DefaultPageSize, r.Logger)
	wsHandler := ws.NewHandler(r.Container.Registry, r.Container.ChatService, r.Container.JWTService, r.Config.Chat.MaxMessageSize, r.Logger)

	r.Engine.GET("/health", r.healthCheckHandler())

	authRoutes := r.Engine.Group("/auth")
	{
		authRoutes.POST("/signup", authHandler.Signup)
		authRoutes.POST("/login", authHandler.Login)
		authRoutes.GET("/me", jwtAuth, authHandler.Me)
	}

	chatRoutes := r.Engine.Group("/chat")
	{
		chatRoutes.GET("/user_chats", jwtAuth, chatHandler.ListUserChats)
		chatRoutes.GET("/:chat_id/messages", jwtAuth, chatHandler.GetChatMessages)

		// The streaming endpoint authenticates inside the handshake, not via
		// the header middleware: websockets cannot carry per-message headers
		chatRoutes.GET("/ws/:user_id", wsHandler.ServeWs)
	}
}

// healthCheckHandler returns a simple health check handler
func (r *Router) healthCheckHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
			"env":    r.Config.Server.Env,
			"time":   time.Now().Format(time.RFC3339),
		})
	}
}

// corsMiddleware answers preflights and stamps CORS headers. A "*" entry in
// allowedOrigins echoes any origin; otherwise only listed origins are allowed.
func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	allowAll := false
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		_, ok := allowed[origin]
		if origin != "" && (allowAll || ok) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else if allowAll {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept, Accept-Encoding, Authorization, Origin, Upgrade, Connection, Cache-Control")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Upgrade, Connection")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
