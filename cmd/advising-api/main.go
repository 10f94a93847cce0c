package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/advising-api/api/swagger"
	"github.com/noah-isme/advising-api/internal/handler"
	"github.com/noah-isme/advising-api/internal/middleware"
	"github.com/noah-isme/advising-api/internal/models"
	"github.com/noah-isme/advising-api/internal/repository"
	"github.com/noah-isme/advising-api/internal/service"
	"github.com/noah-isme/advising-api/pkg/cache"
	"github.com/noah-isme/advising-api/pkg/config"
	"github.com/noah-isme/advising-api/pkg/database"
	"github.com/noah-isme/advising-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/advising-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/advising-api/pkg/middleware/requestid"
)

// @title Advising API
// @version 1.0.0
// @description Academic advising, eligibility and section allocation engine
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx := context.Background()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.EnsureSchema(ctx, db, logr); err != nil {
			logr.Fatal("failed to apply schema", zap.Error(err))
		}
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, advising cache disabled", zap.Error(err))
		redisClient = nil
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	metrics := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Advising.CacheTTL, logr, cfg.Advising.CacheEnabled && redisClient != nil)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics, "/metrics"))
	r.Use(middleware.WithResponseMeta())

	stop := registerRoutes(ctx, r, cfg, db, cacheSvc, metrics, logr)
	defer stop()

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env, "capacity_backend", cfg.Advising.CapacityBackend)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

// registerRoutes wires repositories and services onto r and returns a function that stops
// background workers.
func registerRoutes(ctx context.Context, r *gin.Engine, cfg *config.Config, db *sqlx.DB, cacheSvc *service.CacheService, metrics *service.MetricsService, logr *zap.Logger) func() {
	validate := validator.New()
	defaults := models.Quota{MaxRegular: cfg.Advising.DefaultMaxRegular, MaxIrregular: cfg.Advising.DefaultMaxIrregular}

	students := repository.NewStudentRepository(db)
	subjects := repository.NewSubjectRepository(db)
	sections := repository.NewSectionRepository(db)
	grades := repository.NewGradeRepository(db)
	enrollments := repository.NewEnrollmentRepository(db)

	var ledger service.CapacityLedger
	switch cfg.Advising.CapacityBackend {
	case config.CapacityBackendMemory:
		ledger = service.NewMemoryCapacityLedger(sections, enrollments, defaults, logr)
	default:
		ledger = repository.NewCapacityRepository(db, defaults)
	}

	releases := service.NewSeatReleaseRetrier(ledger, metrics, service.SeatReleaseConfig{
		Workers:    cfg.Advising.ReleaseWorkers,
		MaxRetries: cfg.Advising.ReleaseMaxRetries,
		RetryDelay: cfg.Advising.ReleaseRetryDelay,
	}, logr)
	releases.Start(ctx)

	evaluator := service.NewEligibilityEvaluator(cfg.Advising.PassingGrade, service.NewCourseMatcher(cfg.Advising.CourseEquivalences))
	advisingSvc := service.NewAdvisingService(students, subjects, grades, evaluator, cacheSvc, validate, logr)
	allocationSvc := service.NewAllocationService(service.AllocationDeps{
		Students:    students,
		Sections:    sections,
		Catalog:     subjects,
		Grades:      grades,
		Enrollments: enrollments,
		Ledger:      ledger,
		Evaluator:   evaluator,
		Cache:       cacheSvc,
		Metrics:     metrics,
		Releases:    releases,
	}, validate, logr)
	exportSvc := service.NewExportService(cfg.Exports.Enabled, logr, nil, nil)
	authSvc := service.NewAuthService(logr, service.AuthConfig{AccessTokenSecret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})

	metricsHandler := handler.NewMetricsHandler(metrics, db)
	advisingHandler := handler.NewAdvisingHandler(advisingSvc)
	allocationHandler := handler.NewAllocationHandler(allocationSvc, exportSvc)

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(authSvc))

	studentsGroup := api.Group("/students/:id", middleware.StaffOrSelf())
	studentsGroup.GET("/eligibility", advisingHandler.Eligibility)
	studentsGroup.POST("/eligibility/check", advisingHandler.CheckEligibility)
	studentsGroup.GET("/gwa", advisingHandler.Gwa)
	studentsGroup.GET("/grades/report", advisingHandler.GradeReport)
	studentsGroup.GET("/study-load", allocationHandler.StudyLoad)

	api.POST("/allocations", allocationHandler.Allocate)
	api.POST("/enrollments/:id/cancel", allocationHandler.CancelEnrollment)
	api.GET("/sections/:id/capacity", middleware.RequireRoles(models.RoleAdmin, models.RoleRegistrar, models.RoleAdviser), allocationHandler.SectionCapacity)

	return releases.Stop
}
