package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/exam-proctor-api/api/swagger"
	"github.com/noah-isme/exam-proctor-api/internal/handler"
	"github.com/noah-isme/exam-proctor-api/internal/middleware"
	"github.com/noah-isme/exam-proctor-api/internal/models"
	"github.com/noah-isme/exam-proctor-api/internal/repository"
	"github.com/noah-isme/exam-proctor-api/internal/service"
	"github.com/noah-isme/exam-proctor-api/pkg/cache"
	"github.com/noah-isme/exam-proctor-api/pkg/config"
	"github.com/noah-isme/exam-proctor-api/pkg/database"
	"github.com/noah-isme/exam-proctor-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/exam-proctor-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/exam-proctor-api/pkg/middleware/requestid"
)

// @title Exam Proctor API
// @version 0.1.0
// @description Proctor assignment and swap engine
// @BasePath /
// @schemes http

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, roster cache disabled", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Repositories.
	proctorRepo := repository.NewProctorRepository(db)
	examRepo := repository.NewExamRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	swapRepo := repository.NewSwapRepository(db)
	constraintRepo := repository.NewConstraintRepository(db)
	workloadRepo := repository.NewWorkloadRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(cfg.JWT, logr)
	workloadSvc := service.NewWorkloadService(workloadRepo, cfg.Workload, logr)
	eligibilitySvc := service.NewEligibilityService(constraintRepo, assignmentRepo, workloadSvc, cfg.Engine, logr)
	notificationSvc := service.NewNotificationService(cfg.Notifications, nil, logr,
		service.WithUpcomingDuties(assignmentRepo))
	notificationSvc.Start(ctx)
	defer notificationSvc.Stop()

	plannerSvc := service.NewPlannerService(
		db, examRepo, proctorRepo, assignmentRepo, eligibilitySvc, workloadSvc, cfg.Engine, logr,
		service.WithPlannerAudit(auditRepo),
		service.WithPlannerNotifier(notificationSvc),
		service.WithPlannerRosterCache(cacheRepo),
		service.WithPlannerMetrics(metricsSvc),
	)
	swapSvc := service.NewSwapService(
		db, swapRepo, assignmentRepo, examRepo, proctorRepo, eligibilitySvc, workloadSvc, logr,
		service.WithSwapAudit(auditRepo),
		service.WithSwapNotifier(notificationSvc),
		service.WithSwapRosterCache(cacheRepo),
		service.WithSwapMetrics(metricsSvc),
	)
	examSvc := service.NewExamService(examRepo, assignmentRepo, logr)
	proctorSvc := service.NewProctorService(
		proctorRepo, constraintRepo, assignmentRepo, cacheRepo, workloadSvc,
		examRepo, eligibilitySvc, metricsSvc, cfg.Roster, logr,
	)

	// Handlers.
	examHandler := handler.NewExamHandler(examSvc)
	assignmentHandler := handler.NewAssignmentHandler(plannerSvc)
	swapHandler := handler.NewSwapHandler(swapSvc, proctorSvc)
	proctorHandler := handler.NewProctorHandler(proctorSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(authSvc))
	{
		staff := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleStaff)
		anyRole := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleStaff, models.RoleInstructor, models.RoleProctor)

		exams := api.Group("/exams")
		{
			exams.GET("", anyRole, examHandler.List)
			exams.GET("/:id", anyRole, examHandler.Get)
			exams.GET("/:id/assignments", anyRole, examHandler.Assignments)
			exams.POST("", staff, examHandler.Create)
			exams.POST("/:id/plan", staff, assignmentHandler.Plan)
		}

		api.GET("/assignments/:id/history", anyRole, examHandler.AssignmentHistory)

		swaps := api.Group("/swaps")
		{
			swaps.GET("", anyRole, swapHandler.List)
			swaps.GET("/available", anyRole, swapHandler.Available)
			swaps.GET("/:id", anyRole, swapHandler.Get)
			swaps.POST("", anyRole, swapHandler.Create)
			swaps.POST("/:id/claim", anyRole, swapHandler.Claim)
			swaps.POST("/:id/force", staff, swapHandler.Force)
			swaps.DELETE("/:id", anyRole, swapHandler.Cancel)
		}

		proctors := api.Group("/proctors")
		{
			proctors.GET("", anyRole, proctorHandler.List)
			proctors.GET("/:id", anyRole, proctorHandler.Get)
			proctors.GET("/:id/roster", anyRole, proctorHandler.Roster)
			proctors.GET("/:id/workload", anyRole, proctorHandler.Workload)
			proctors.GET("/:id/eligibility", staff, proctorHandler.Eligibility)
			proctors.GET("/:id/constraints", staff, proctorHandler.Constraints)
			proctors.POST("/:id/constraints", staff,
				middleware.Audit(auditRepo, "constraint_created", "proctor_constraints"),
				proctorHandler.AddConstraint)
			proctors.DELETE("/:id/constraints/:constraintId", staff, proctorHandler.RemoveConstraint)
		}

		api.GET("/me/roster", anyRole, proctorHandler.MyRoster)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
