package di

import (
	"github.com/serverestaa/instagram-client/internal/service"
	"github.com/serverestaa/instagram-client/internal/ws"
	"github.com/serverestaa/instagram-client/pkg/config"
	"github.com/serverestaa/instagram-client/pkg/jwt"
	"github.com/serverestaa/instagram-client/pkg/logger"

	"gorm.io/gorm"
)

// Container holds all the dependencies for the application. The connection
// registry lives here so it is constructed exactly once and handed to the
// websocket handler by reference.
type Container struct {
	DB          *gorm.DB
	Logger      *logger.Logger
	JWTService  *jwt.Service
	UserService *service.UserService
	ChatService *service.ChatService
	Registry    *ws.Registry
}

// New creates a new dependency injection container
func New(db *gorm.DB, cfg *config.Config, log *logger.Logger) *Container {
	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.Expiry)

	return &Container{
		DB:          db,
		Logger:      log,
		JWTService:  jwtService,
		UserService: service.NewUserService(db, jwtService),
		ChatService: service.NewChatService(db),
		Registry:    ws.NewRegistry(),
	}
}
