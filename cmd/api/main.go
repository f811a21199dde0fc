package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/trnhan/paperscore/config"
	"github.com/trnhan/paperscore/internal/controller"
	"github.com/trnhan/paperscore/internal/database"
	"github.com/trnhan/paperscore/internal/logger"
	"github.com/trnhan/paperscore/internal/model"
	"github.com/trnhan/paperscore/internal/repository"
	"github.com/trnhan/paperscore/internal/storage"
	"github.com/trnhan/paperscore/internal/worker"
)

func main() {
	logger.Init()

	app := fx.New(
		fx.Provide(
			config.NewConfig,
			database.NewDatabase,
			NewGinEngine,
		),

		fx.Provide(
			repository.NewSchemeRepository,
			repository.NewSheetRepository,
			repository.NewResultRepository,
		),

		fx.Provide(
			storage.NewObjectStore,
			worker.NewEnqueuer,
		),

		fx.Provide(
			controller.NewSchemeController,
			controller.NewSheetController,
			controller.NewEvaluationController,
		),

		fx.Invoke(RegisterRoutesAndStartServer),
		fx.Invoke(AutoMigrateDB),
	)

	if err := app.Start(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}

	<-app.Done()
	log.Info().Msg("Application shutting down gracefully...")
}

func NewGinEngine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		log.Info().
			Str("client_ip", param.ClientIP).
			Str("method", param.Method).
			Str("path", param.Path).
			Int("status_code", param.StatusCode).
			Dur("latency", param.Latency).
			Str("error_message", param.ErrorMessage).
			Msg("gin_request")
		return ""
	}))
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	return r
}

// RegisterRoutesAndStartServer configures API routes and manages server lifecycle.
func RegisterRoutesAndStartServer(
	lc fx.Lifecycle,
	router *gin.Engine,
	cfg *config.Config,
	schemeCtrl *controller.SchemeController,
	sheetCtrl *controller.SheetController,
	evalCtrl *controller.EvaluationController,
) {
	api := router.Group("/api/v1")
	{
		schemes := api.Group("/schemes")
		schemes.POST("", schemeCtrl.CreateScheme)
		schemes.GET("", schemeCtrl.ListSchemes)
		schemes.GET("/:scheme_id", schemeCtrl.GetScheme)
		schemes.GET("/:scheme_id/statistics", schemeCtrl.GetStatistics)
		schemes.GET("/:scheme_id/results", evalCtrl.ListResults)
		schemes.DELETE("/:scheme_id", schemeCtrl.DeleteScheme)
		schemes.POST("/:scheme_id/sheets", sheetCtrl.UploadSheet)
		schemes.POST("/:scheme_id/sheets/bulk", sheetCtrl.BulkUploadSheets)

		sheets := api.Group("/sheets")
		sheets.GET("", sheetCtrl.ListSheets)
		sheets.GET("/:sheet_id", sheetCtrl.GetSheet)
		sheets.DELETE("/:sheet_id", sheetCtrl.DeleteSheet)

		api.POST("/evaluate/:sheet_id", evalCtrl.Evaluate)
		api.POST("/evaluate/bulk", evalCtrl.EvaluateBulk)
		api.GET("/results/:sheet_id", evalCtrl.GetResult)
	}

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info().Msgf("Grading API server starting on port %s", cfg.Server.Port)
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal().Err(err).Msg("Server ListenAndServe failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("Server shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	})
}

func AutoMigrateDB(db *gorm.DB) error {
	log.Info().Msg("Running database migrations...")
	err := db.AutoMigrate(
		&model.GradingScheme{},
		&model.AnswerSheet{},
		&model.Result{},
	)
	if err != nil {
		log.Error().Err(err).Msg("Database migration failed")
		return err
	}
	log.Info().Msg("Database migration completed successfully.")
	return nil
}
