// Package container builds the process-wide handles once in main and hands
// them to the router. Nothing here is global.
package container

import (
	"context"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/finflow-api/config"
	"github.com/oksasatya/finflow-api/internal/domain/repository"
	"github.com/oksasatya/finflow-api/internal/infrastructure/memory"
	pginfra "github.com/oksasatya/finflow-api/internal/infrastructure/postgres"
	"github.com/oksasatya/finflow-api/internal/interface/middleware"
	"github.com/oksasatya/finflow-api/pkg/helpers"
)

// Container holds the constructed infrastructure. Optional handles are nil
// when their configuration is empty.
type Container struct {
	Config *config.Config
	Logger *logrus.Logger

	Store  repository.UserStore
	PGPool *pgxpool.Pool

	Redis     *redis.Client
	ES        *elasticsearch.Client
	RabbitPub *helpers.RabbitPublisher

	JWT     *helpers.JWTManager
	Hasher  *helpers.PasswordHasher
	Metrics *middleware.Metrics
}

// Build connects everything cfg asks for. On error, whatever was opened is closed.
func Build(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (c *Container, err error) {
	c = &Container{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			c.Close()
			c = nil
		}
	}()

	c.JWT, err = helpers.NewJWTManager(cfg.JWTSecret, cfg.JWTAlgorithm, cfg.AccessTTL)
	if err != nil {
		return c, fmt.Errorf("jwt: %w", err)
	}
	c.Hasher = helpers.NewPasswordHasher(cfg.BcryptCost)
	if cfg.MetricsEnabled {
		c.Metrics = middleware.NewMetrics("finflow")
	}

	switch cfg.StorageDriver {
	case "memory":
		logger.Warn("using in-memory storage; data is lost on restart")
		c.Store = memory.NewUserStore()
	default:
		if err = pginfra.RunMigrations(cfg.PostgresDSN(), cfg.MigrationsDir, logger); err != nil {
			return c, fmt.Errorf("migrations: %w", err)
		}
		c.PGPool, err = pginfra.NewPool(ctx, cfg.PostgresDSN(), cfg.DBMaxConns, cfg.DBMinConns, cfg.DBMaxConnLife)
		if err != nil {
			return c, fmt.Errorf("postgres: %w", err)
		}
		c.Store = pginfra.NewUserStore(c.PGPool)
	}

	if cfg.RedisAddr != "" {
		c.Redis, err = helpers.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return c, err
		}
	}

	if addrs := cfg.ESAddrs(); len(addrs) > 0 {
		c.ES, err = helpers.NewESClient(addrs, cfg.ElasticsearchUser, cfg.ElasticsearchPass)
		if err != nil {
			return c, fmt.Errorf("elasticsearch: %w", err)
		}
		// Search degrades to empty results; do not block start-up on it.
		if perr := helpers.PingES(ctx, c.ES); perr != nil {
			helpers.LogWarn(logger, "elasticsearch unreachable at start-up", perr, nil)
		}
	}

	// Email jobs are optional; a broker outage must not keep the API down.
	if cfg.RabbitMQURL != "" {
		pub, perr := helpers.NewRabbitPublisher(cfg.RabbitMQURL, cfg.RabbitMQEmailQueue)
		if perr != nil {
			helpers.LogWarn(logger, "rabbitmq unavailable; email jobs disabled", perr, nil)
		} else {
			c.RabbitPub = pub
		}
	}
	return c, nil
}

// Close releases every open handle. Safe to call on a partially built container.
func (c *Container) Close() {
	if c == nil {
		return
	}
	if c.RabbitPub != nil {
		c.RabbitPub.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	if c.PGPool != nil {
		c.PGPool.Close()
	}
}
