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
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/lingowow-api/api/swagger"
	"github.com/noah-isme/lingowow-api/internal/handler"
	"github.com/noah-isme/lingowow-api/internal/middleware"
	"github.com/noah-isme/lingowow-api/internal/repository"
	"github.com/noah-isme/lingowow-api/internal/service"
	"github.com/noah-isme/lingowow-api/pkg/cache"
	"github.com/noah-isme/lingowow-api/pkg/config"
	"github.com/noah-isme/lingowow-api/pkg/database"
	"github.com/noah-isme/lingowow-api/pkg/jobs"
	"github.com/noah-isme/lingowow-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/lingowow-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/lingowow-api/pkg/middleware/requestid"
	"github.com/noah-isme/lingowow-api/pkg/storage"
	"github.com/noah-isme/lingowow-api/pkg/validation"
)

// @title Lingowow API
// @version 1.0.0
// @description Enrollments, class bookings, attendance, payroll and credits for Lingowow
// @BasePath /api/v1
// @schemes http https
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, running without cache, shared rate limits and booking locks", zap.Error(err))
	} else {
		defer redisClient.Close()
	}

	metrics := service.NewMetricsService()
	validate := validation.New()

	users := repository.NewUserRepository(db)
	periodsRepo := repository.NewAcademicPeriodRepository(db)
	courses := repository.NewCourseRepository(db)
	enrollmentsRepo := repository.NewEnrollmentRepository(db)
	schedules := repository.NewScheduleRepository(db)
	bookingsRepo := repository.NewBookingRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	payrollRepo := repository.NewPayrollRepository(db)
	exportsRepo := repository.NewPayrollExportRepository(db)
	creditsRepo := repository.NewCreditRepository(db)
	couponsRepo := repository.NewCouponRepository(db)
	checkoutRepo := repository.NewCheckoutRepository(db)

	cacheSvc := service.NewCacheService(repository.NewCacheRepository(redisClient), metrics, cfg.Periods.CacheTTL, logr, cfg.Periods.CacheEnabled && redisClient != nil)
	authSvc := service.NewAuthService(users, validate, logr, service.AuthConfig{
		Secret: cfg.JWT.Secret,
		Expiry: cfg.JWT.Expiration,
		Issuer: cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(users)
	periodSvc := service.NewAcademicPeriodService(periodsRepo, cacheSvc, validate, cfg.Periods.CacheTTL, logr)
	enrollmentSvc := service.NewEnrollmentService(service.EnrollmentServiceDeps{
		Repo:      enrollmentsRepo,
		Users:     users,
		Courses:   courses,
		Periods:   periodsRepo,
		Schedules: schedules,
		Bookings:  bookingsRepo,
		Tx:        db,
		Validator: validate,
		Logger:    logr,
	})
	bookingSvc := service.NewBookingService(service.BookingServiceDeps{
		Enrollments: enrollmentsRepo,
		Periods:     periodsRepo,
		Schedules:   schedules,
		Bookings:    bookingsRepo,
		Locker:      cache.NewLocker(redisClient),
		Tx:          db,
		Metrics:     metrics,
		Validator:   validate,
		Logger:      logr,
		LockTTL:     cfg.Booking.LockTTL,
	})
	attendanceSvc := service.NewAttendanceService(attendanceRepo, bookingsRepo, metrics, validate, logr)
	payrollSvc := service.NewPayrollService(payrollRepo)
	creditSvc := service.NewCreditService(creditsRepo, db, metrics, validate, logr, cfg.Credits.MaxTransactionAmount)
	couponSvc := service.NewCouponService(couponsRepo, checkoutRepo, metrics, validate, logr)
	checkoutSvc := service.NewCheckoutService(service.CheckoutServiceDeps{
		Repo:          checkoutRepo,
		Coupons:       couponSvc,
		Credits:       creditSvc,
		Gateway:       service.NewSandboxGateway(cfg.Payments.ReturnURL),
		Tx:            db,
		Validator:     validate,
		Logger:        logr,
		Currency:      cfg.Payments.Currency,
		WebhookSecret: cfg.Payments.WebhookSecret,
	})

	files, err := storage.NewLocalStorage(cfg.Payroll.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare export storage", zap.Error(err))
	}
	exportSvc := service.NewPayrollExportService(exportsRepo, payrollRepo, files,
		storage.NewSigner(cfg.Payroll.SignedURLSecret, cfg.Payroll.SignedURLTTL), validate, logr,
		service.PayrollExportConfig{APIPrefix: cfg.APIPrefix, ResultTTL: cfg.Payroll.SignedURLTTL})

	var exportPool *jobs.Pool
	if cfg.Payroll.ExportsEnabled {
		exportPool = jobs.NewPool("payroll-export", exportSvc.Process, jobs.Config{
			Workers:    cfg.Payroll.WorkerConcurrency,
			MaxRetries: cfg.Payroll.WorkerRetries,
			Logger:     logr,
			OnGiveUp:   exportSvc.GiveUp,
		})
		exportPool.Start(ctx)
		exportSvc.SetQueue(exportPool)
		exportSvc.RecoverQueued(ctx)
		exportSvc.StartCleanup(ctx, cfg.Payroll.CleanupInterval)
	}

	var advancer *service.BookingAdvancer
	if cfg.Booking.AdvancerEnabled {
		advancer, err = service.NewBookingAdvancer(bookingSvc, cfg.Booking.AdvancerSpec, cfg.Booking.AdvancerTimeout, logr)
		if err != nil {
			logr.Fatal("invalid booking advancer schedule", zap.Error(err))
		}
		advancer.Start()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	checks := map[string]handler.Pinger{"postgres": db}
	if redisClient != nil {
		checks["redis"] = handler.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}
	health := handler.NewHealthHandler(checks, metrics.Handler())
	r.GET("/health", health.Health)
	r.GET("/ready", health.Ready)
	r.GET("/metrics", health.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	guards := handler.RouteGuards{Auth: middleware.JWT(authSvc)}
	if cfg.RateLimit.Enabled {
		counter := rateLimitCounter(redisClient)
		api.Use(middleware.RateLimit(counter, metrics, logr, middleware.RateLimitConfig{
			Name: "global", Limit: cfg.RateLimit.GlobalLimit, Window: cfg.RateLimit.Window,
		}))
		guards.LoginLimit = middleware.RateLimit(counter, metrics, logr, middleware.RateLimitConfig{
			Name: "login", Limit: cfg.RateLimit.LoginLimit, Window: cfg.RateLimit.Window,
		})
		guards.CouponLimit = middleware.RateLimit(counter, metrics, logr, middleware.RateLimitConfig{
			Name: "coupons", Limit: cfg.RateLimit.CouponLimit, Window: cfg.RateLimit.Window,
		})
	}

	handler.Register(api, handler.Handlers{
		Auth:       handler.NewAuthHandler(authSvc),
		Users:      handler.NewUserHandler(userSvc),
		Periods:    handler.NewAcademicPeriodHandler(periodSvc),
		Enroll:     handler.NewEnrollmentHandler(enrollmentSvc),
		Bookings:   handler.NewBookingHandler(bookingSvc),
		Attendance: handler.NewAttendanceHandler(attendanceSvc),
		Payroll:    handler.NewPayrollHandler(payrollSvc, exportSvc),
		Coupons:    handler.NewCouponHandler(couponSvc),
		Credits:    handler.NewCreditHandler(creditSvc),
		Checkout:   handler.NewCheckoutHandler(checkoutSvc),
	}, guards)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("http shutdown", zap.Error(err))
	}
	if advancer != nil {
		advancer.Stop(shutdownCtx)
	}
	if exportPool != nil {
		exportPool.Stop()
	}
}

// rateLimitCounter keeps the limiter interface nil when Redis is down so requests pass.
func rateLimitCounter(client *redis.Client) middleware.HitCounter {
	if client == nil {
		return nil
	}
	return cache.NewWindowCounter(client, "ratelimit")
}
