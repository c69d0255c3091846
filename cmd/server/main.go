package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"bakery_ops_backend/internal/config"
	"bakery_ops_backend/internal/database"
	"bakery_ops_backend/internal/events"
	"bakery_ops_backend/internal/metrics"
	"bakery_ops_backend/internal/repositories"
	"bakery_ops_backend/internal/router"
	"bakery_ops_backend/internal/units"
	"bakery_ops_backend/pkg/utils"
)

func main() {
	cfg, err := config.Load(utils.Getenv("CONFIG_FILE", "config.yaml"))
	if err != nil {
		utils.InitLogger("info", true)
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize Logger
	utils.InitLogger(cfg.Log.Level, cfg.Log.Pretty)
	utils.ConfigureJWT(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	gin.SetMode(cfg.Server.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize Database
	db, dialect, err := database.InitDB(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if cfg.Database.SeedUnits {
		n, err := repositories.SeedUnitConversions(ctx, db, repositories.NewUnitConversionRepository(dialect), units.DefaultConversions())
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to seed unit conversions")
		}
		utils.LogInfo("Unit conversions seeded", map[string]interface{}{"inserted": n})
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}
	hub := events.NewHub(128)
	hub.OnSubscriberChange(m.FeedSubscribers)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(utils.GinLogger())
	engine.Use(m.GinMiddleware())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.CORSAllowedOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	corsConfig.AllowCredentials = true
	engine.Use(cors.New(corsConfig))

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	if m != nil {
		engine.GET(cfg.Metrics.Path, gin.WrapH(m.Handler()))
	}

	// Setup all application routes
	err = router.Setup(ctx, engine, router.Dependencies{
		DB:             db,
		Dialect:        dialect,
		TxRetries:      cfg.Database.TxRetries,
		Metrics:        m,
		Events:         hub,
		AllowedOrigins: cfg.Server.CORSAllowedOrigins,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up routes")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		utils.LogInfo("Server starting", map[string]interface{}{"port": cfg.Server.Port, "driver": string(dialect)})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	utils.LogInfo("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.LogError(err, "Server forced to shut down")
	}
}
