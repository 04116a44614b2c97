package main

import (
	"context"
	"flag"
	"log"

	"github.com/joho/godotenv"

	"github.com/oksasatya/finflow-api/config"
	userapp "github.com/oksasatya/finflow-api/internal/application"
	"github.com/oksasatya/finflow-api/internal/container"
	"github.com/oksasatya/finflow-api/internal/domain/apperror"
	"github.com/oksasatya/finflow-api/pkg/helpers"
)

// seed registers a demo user through the same service the API uses, so the
// row gets a proper hash and defaults.
func main() {
	_ = godotenv.Load()

	email := flag.String("email", "demo@finflow.local", "demo user email")
	password := flag.String("password", "password123", "demo user password")
	first := flag.String("first", "Demo", "first name")
	last := flag.String("last", "User", "last name")
	flag.Parse()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	// Seeding must not send email.
	cfg.MailSendEnabled = false
	cfg.RabbitMQURL = ""
	logger := helpers.NewLogger(cfg.AppName+"-seed", cfg.Env)

	ctx := context.Background()
	c, err := container.Build(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	defer c.Close()

	svc := userapp.NewService(c.Store, c.Hasher, c.JWT, logger)
	u, err := svc.Register(ctx, userapp.RegisterInput{Email: *email, FirstName: *first, LastName: *last, Password: *password})
	switch {
	case apperror.IsKind(err, apperror.KindAlreadyExists):
		logger.WithField("email", *email).Info("demo user already exists")
	case err != nil:
		log.Fatalf("failed to seed user: %v", err)
	default:
		logger.WithField("user_id", u.UserID.String()).WithField("email", u.Email).Info("seeded demo user")
	}
}
