// Command seed creates the first ADMIN account.  Registration never hands
// out the ADMIN role, so a fresh database needs this once.
package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/jogofacil/field-booking/internal/config"
	"github.com/jogofacil/field-booking/internal/database"
	"github.com/jogofacil/field-booking/internal/logging"
	"github.com/jogofacil/field-booking/internal/model"
	"github.com/jogofacil/field-booking/internal/repository"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logging.Setup(cfg.LogLevel, cfg.IsDev())

	email, password := os.Getenv("SEED_ADMIN_EMAIL"), os.Getenv("SEED_ADMIN_PASSWORD")
	if email == "" || password == "" {
		log.Fatal().Msg("SEED_ADMIN_EMAIL and SEED_ADMIN_PASSWORD are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}

	users := repository.NewUserRepo(db)
	u, err := users.Create(ctx, repository.NewUser{
		Name:         "Administrador",
		Email:        email,
		Password:     password,
		Role:         model.RoleAdmin,
		Subscription: model.PlanFree,
	}, nil, cfg.BcryptCost)
	switch {
	case errors.Is(err, repository.ErrEmailExists):
		log.Info().Str("email", email).Msg("admin already exists, nothing to do")
	case err != nil:
		log.Fatal().Err(err).Msg("create admin")
	default:
		log.Info().Str("id", u.ID).Str("email", u.Email).Msg("admin created")
	}
}
