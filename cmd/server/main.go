package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"github.com/jogofacil/field-booking/internal/ai"
	"github.com/jogofacil/field-booking/internal/config"
	"github.com/jogofacil/field-booking/internal/database"
	"github.com/jogofacil/field-booking/internal/handler"
	"github.com/jogofacil/field-booking/internal/logging"
	"github.com/jogofacil/field-booking/internal/middleware"
	"github.com/jogofacil/field-booking/internal/plans"
	"github.com/jogofacil/field-booking/internal/queue"
	"github.com/jogofacil/field-booking/internal/repository"
	"github.com/jogofacil/field-booking/internal/router"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg := config.Load()
	logging.Setup(cfg.LogLevel, cfg.IsDev())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()
	if cfg.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			log.Fatal().Err(err).Msg("migrate")
		}
	}

	catalog, err := plans.Load(cfg.PlansFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.PlansFile).Msg("load plans")
	}

	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
	}
	cacheCfg := config.LoadCacheConfig()

	aiCfg := config.LoadAIConfig()
	verifier := ai.New(aiCfg.Endpoint, aiCfg.APIKey, aiCfg.Model)
	if aiCfg.APIKey == "" {
		log.Warn().Msg("AI_API_KEY not set, receipts will not be verified automatically")
	}

	var events queue.Publisher = queue.NopPublisher{}
	qCfg := config.LoadQueueConfig()
	if qCfg.Enabled {
		pub := queue.NewAMQPPublisher(qCfg.URL)
		defer pub.Close()
		events = pub
		if qCfg.RunConsumer {
			go func() {
				if err := queue.StartBookingConsumer(ctx, qCfg.URL, qCfg.ConsumerLogPath); err != nil && !errors.Is(err, context.Canceled) {
					log.Error().Err(err).Msg("booking consumer stopped")
				}
			}()
		}
	}

	clock := clockwork.NewRealClock()
	users := repository.NewUserRepo(db)
	fields := repository.NewFieldRepo(db)
	slots := repository.NewSlotRepo(db)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{AllowOrigins: cfg.CORSOrigins}))
	e.Use(echomw.BodyLimit(bodyLimit(cfg.ReceiptMaxMB)))
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, clock))

	purgeFields := func(ctx context.Context) error {
		return middleware.PurgeCache(ctx, rdb, cacheCfg.Prefix)
	}
	router.Register(e, router.Handlers{
		Auth:   handler.NewAuthHandler(cfg, users, repository.NewTokenRepo(db), purgeFields),
		Users:  handler.NewUserHandler(users, catalog, clock),
		Plans:  &handler.PlansHandler{Catalog: catalog},
		Fields: handler.NewFieldHandler(fields, purgeFields),
		Slots: &handler.SlotHandler{
			Slots:           slots,
			Fields:          fields,
			Users:           users,
			Verifier:        verifier,
			Events:          events,
			Clock:           clock,
			ReceiptMaxBytes: int64(cfg.ReceiptMaxMB) << 20,
			Location:        cfg.Location(),
		},
		Health: handler.Health(db),
	}, router.Guards{
		JWT:           middleware.JWTAuth(cfg.JWTSecret),
		AuthRateLimit: middleware.NewTokenBucket(config.LoadAuthRateLimitConfig(), rdb, clock),
		Cache:         middleware.NewRedisCache(cacheCfg, rdb),
		Subscription:  middleware.RequireSubscription(users, clock),
	})

	addr := ":" + cfg.Port
	go func() {
		log.Info().Str("addr", addr).Str("env", cfg.Env).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
}

// bodyLimit leaves room for the multipart envelope around a receipt.
func bodyLimit(receiptMB int) string {
	if receiptMB < 1 {
		receiptMB = 1
	}
	return strconv.Itoa(receiptMB+1) + "M"
}
