package router

import (
	"context"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	userapp "github.com/oksasatya/finflow-api/internal/application"
	"github.com/oksasatya/finflow-api/internal/container"
	esinfra "github.com/oksasatya/finflow-api/internal/infrastructure/elasticsearch"
	handlers "github.com/oksasatya/finflow-api/internal/interface/http"
	"github.com/oksasatya/finflow-api/internal/interface/middleware"
	"github.com/oksasatya/finflow-api/internal/router/modules"
	"github.com/oksasatya/finflow-api/pkg/helpers"
	mailtpl "github.com/oksasatya/finflow-api/pkg/mailer/templates"
)

type UserModuleDeps struct {
	Service *userapp.Service
	Handler *handlers.UserHandler
}

func buildUserDeps(c *container.Container) UserModuleDeps {
	cfg := c.Config
	service := userapp.NewService(c.Store, c.Hasher, c.JWT, c.Logger)
	service.Redis = c.Redis
	if cfg.ProfileCacheTTL > 0 {
		service.ProfileTTL = cfg.ProfileCacheTTL
	}
	if c.ES != nil {
		idx := esinfra.NewUserIndex(c.ES, cfg.ESUsersIndex)
		if err := idx.EnsureIndex(context.Background()); err != nil {
			helpers.LogWarn(c.Logger, "elasticsearch index setup failed", err, logrus.Fields{"index": cfg.ESUsersIndex})
		}
		service.Index = idx
	}
	if c.RabbitPub != nil && cfg.MailSendEnabled {
		service.Emails = c.RabbitPub
	}
	service.Branding = mailtpl.Branding{CompanyName: cfg.CompanyName, AppName: cfg.AppName, SupportURL: cfg.SupportURL}

	return UserModuleDeps{
		Service: service,
		Handler: handlers.NewUserHandler(service, c.Logger, c.Metrics),
	}
}

func healthChecks(c *container.Container) map[string]handlers.Pinger {
	checks := map[string]handlers.Pinger{}
	if c.PGPool != nil {
		checks["postgres"] = c.PGPool
	}
	if c.Redis != nil {
		rdb := c.Redis
		checks["redis"] = handlers.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}
	if c.ES != nil {
		es := c.ES
		checks["elasticsearch"] = handlers.PingFunc(func(ctx context.Context) error { return helpers.PingES(ctx, es) })
	}
	return checks
}

// InitModules initializes all application modules and registers them with the router registry
// This function should be called once during application startup to wire up all modules
func InitModules(r *Registry, c *container.Container) {
	userDeps := buildUserDeps(c)
	r.Add(modules.NewUserModule(userDeps.Handler, c.JWT, userDeps.Service, c.Redis, c.Config, c.Logger))
	r.AddRoot(modules.NewHealthModule(handlers.NewHealthHandler(healthChecks(c))))
	if c.Metrics != nil {
		r.AddRoot(modules.NewMetricsModule(c.Metrics))
	}
}

// NewEngine builds the gin engine with the global middleware stack and every module.
func NewEngine(c *container.Container) *gin.Engine {
	cfg := c.Config
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.RealIP())
	if cfg.HTTPLogEnabled {
		r.Use(middleware.AccessLog(c.Logger))
	}
	if c.Metrics != nil {
		r.Use(c.Metrics.Middleware())
	}
	r.Use(middleware.SecureHeaders(cfg.Env == "production"))
	r.Use(cors.New(corsConfig(cfg.CORSOrigins())))

	reg := NewRegistry(r, cfg.APIPrefix)
	InitModules(reg, c)
	reg.RegisterAll()
	return r
}
