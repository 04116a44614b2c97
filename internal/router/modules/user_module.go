package modules

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/finflow-api/config"
	handlers "github.com/oksasatya/finflow-api/internal/interface/http"
	"github.com/oksasatya/finflow-api/internal/interface/middleware"
)

// UserModule wires user HTTP handlers and the auth chain into routes
// Public: POST /users/register, POST /users/login
// Protected: GET|PATCH /users/me, POST /users/me/deactivate, GET /users,
// GET /users/search, GET /users/:user_id
// All routes are registered under the given RouterGroup (the API prefix)
type UserModule struct {
	Handler *handlers.UserHandler
	JWT     middleware.SubjectExtractor
	Users   middleware.ProfileLoader
	Redis   *redis.Client
	Cfg     *config.Config
	Logger  *logrus.Logger
}

func NewUserModule(h *handlers.UserHandler, jwt middleware.SubjectExtractor, users middleware.ProfileLoader, rdb *redis.Client, cfg *config.Config, logger *logrus.Logger) *UserModule {
	return &UserModule{Handler: h, JWT: jwt, Users: users, Redis: rdb, Cfg: cfg, Logger: logger}
}

func (m *UserModule) Register(rg *gin.RouterGroup) {
	var bypass middleware.AllowFunc
	if m.Cfg.RateLimitBypassPrivate {
		bypass = middleware.AllowPrivateIP()
	}
	authLimiter := middleware.RateLimit(m.Redis, m.Cfg.RateLimitAuth, time.Minute, middleware.KeyByIPAndPath(), bypass)
	searchLimiter := middleware.RateLimit(m.Redis, m.Cfg.RateLimitSearch, time.Minute, middleware.KeyByUserID(), bypass)

	users := rg.Group("/users")
	users.POST("/register", authLimiter, m.Handler.Register)
	users.POST("/login", authLimiter, m.Handler.Login)

	// Protected
	auth := users.Group("")
	auth.Use(middleware.Auth(m.JWT, m.Users, m.Logger)...)
	{
		auth.GET("/me", m.Handler.Me)
		auth.PATCH("/me", m.Handler.UpdateMe)
		auth.POST("/me/deactivate", m.Handler.DeactivateMe)
		auth.GET("", m.Handler.List)
		auth.GET("/search", searchLimiter, m.Handler.Search)
		auth.GET("/:user_id", m.Handler.GetByID)
	}
}
