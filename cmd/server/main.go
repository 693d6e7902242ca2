package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	admincontroller "agentbench/internal/admin/controller"
	adminservice "agentbench/internal/admin/service"
	benchcontroller "agentbench/internal/benchmark/controller"
	benchrepo "agentbench/internal/benchmark/repository"
	benchservice "agentbench/internal/benchmark/service"
	chcontroller "agentbench/internal/challenge/controller"
	chrepo "agentbench/internal/challenge/repository"
	chservice "agentbench/internal/challenge/service"
	"agentbench/internal/common/cache"
	"agentbench/internal/common/db"
	commonmw "agentbench/internal/common/http/middleware"
	"agentbench/internal/common/storage"
	"agentbench/internal/eval"
	evalstore "agentbench/internal/eval/store"
	subcontroller "agentbench/internal/submission/controller"
	subrepo "agentbench/internal/submission/repository"
	subservice "agentbench/internal/submission/service"
	usercontroller "agentbench/internal/user/controller"
	userrepo "agentbench/internal/user/repository"
	userservice "agentbench/internal/user/service"
	"agentbench/pkg/utils/logger"
)

const defaultConfigPath = "configs/server.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		return
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	mysqlDB, err := db.NewMySQLWithConfig(&appCfg.Database)
	if err != nil {
		logger.Error(context.Background(), "init database failed", zap.Error(err))
		return
	}
	defer func() {
		_ = mysqlDB.Close()
	}()

	redisCache, err := cache.NewRedisCacheWithConfig(&appCfg.Redis)
	if err != nil {
		logger.Error(context.Background(), "init redis failed", zap.Error(err))
		return
	}
	defer func() {
		_ = redisCache.Close()
	}()

	objStorage, err := storage.NewMinIOStorage(appCfg.MinIO)
	if err != nil {
		logger.Error(context.Background(), "init minio failed", zap.Error(err))
		return
	}

	userRepo := userrepo.NewUserRepository(mysqlDB)
	apiKeyRepo := userrepo.NewAPIKeyRepository(mysqlDB)
	submissionRepo := subrepo.NewSubmissionRepository(mysqlDB, redisCache)
	benchmarkRepo := benchrepo.NewBenchmarkRepository(mysqlDB)
	challengeRepo := chrepo.NewChallengeRepository(mysqlDB, redisCache)

	queue, err := buildQueue(appCfg.Eval, submissionRepo, userRepo, challengeRepo)
	if err != nil {
		logger.Error(context.Background(), "init evaluation queue failed", zap.Error(err))
		return
	}
	if err := queue.Start(); err != nil {
		logger.Error(context.Background(), "start evaluation queue failed", zap.Error(err))
		return
	}
	defer queue.Stop()

	authService, err := userservice.NewAuthService(userservice.AuthServiceConfig{
		Users:     userRepo,
		APIKeys:   apiKeyRepo,
		JWTSecret: appCfg.Auth.JWTSecret,
		TokenTTL:  appCfg.Auth.TokenTTL,
	})
	if err != nil {
		logger.Error(context.Background(), "init auth service failed", zap.Error(err))
		return
	}
	apiKeyService, err := userservice.NewAPIKeyService(apiKeyRepo)
	if err != nil {
		logger.Error(context.Background(), "init api key service failed", zap.Error(err))
		return
	}
	submissionService, err := subservice.NewSubmissionService(subservice.SubmissionServiceConfig{
		Submissions: submissionRepo,
		Benchmarks:  benchmarkRepo,
		Users:       userRepo,
		Database:    mysqlDB,
		Queue:       queue,
		Cache:       redisCache,
	})
	if err != nil {
		logger.Error(context.Background(), "init submission service failed", zap.Error(err))
		return
	}
	artifactService, err := subservice.NewArtifactService(subservice.ArtifactServiceConfig{
		Storage:    objStorage,
		Bucket:     appCfg.Artifact.Bucket,
		MaxBytes:   appCfg.Artifact.MaxBytes,
		PresignTTL: appCfg.Artifact.PresignTTL,
	})
	if err != nil {
		logger.Error(context.Background(), "init artifact service failed", zap.Error(err))
		return
	}
	benchmarkService, err := benchservice.NewBenchmarkService(benchmarkRepo)
	if err != nil {
		logger.Error(context.Background(), "init benchmark service failed", zap.Error(err))
		return
	}
	challengeService, err := chservice.NewChallengeService(challengeRepo)
	if err != nil {
		logger.Error(context.Background(), "init challenge service failed", zap.Error(err))
		return
	}
	adminService, err := adminservice.NewAdminService(adminservice.AdminServiceConfig{
		Submissions: submissionRepo,
		Users:       userRepo,
		Queue:       queue,
	})
	if err != nil {
		logger.Error(context.Background(), "init admin service failed", zap.Error(err))
		return
	}

	router := buildRouter(routerDeps{
		auth:        authService,
		authCtrl:    usercontroller.NewAuthController(authService, apiKeyService),
		subCtrl:     subcontroller.NewSubmissionController(submissionService, artifactService),
		watchCtrl:   subcontroller.NewWatchController(submissionService),
		benchCtrl:   benchcontroller.NewBenchmarkController(benchmarkService),
		chCtrl:      chcontroller.NewChallengeController(challengeService),
		adminCtrl:   admincontroller.NewAdminController(adminService, submissionService, benchmarkService, challengeService),
		db:          mysqlDB,
		cacheClient: redisCache,
	})

	httpServer := &http.Server{
		Addr:         appCfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  appCfg.Server.ReadTimeout,
		WriteTimeout: appCfg.Server.WriteTimeout,
		IdleTimeout:  appCfg.Server.IdleTimeout,
	}
	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		logger.Error(context.Background(), "init http listener failed", zap.Error(err))
		return
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(context.Background(), "http server started", zap.String("addr", appCfg.Server.Addr))
		errCh <- httpServer.Serve(listener)
	}()

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "http server stopped", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Info(context.Background(), "shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error(context.Background(), "http server shutdown failed", zap.Error(err))
	}
}

func buildQueue(
	cfg EvalConfig,
	submissionRepo subrepo.SubmissionRepository,
	userRepo userrepo.UserRepository,
	challengeRepo chrepo.ChallengeRepository,
) (*eval.Queue, error) {
	store, err := evalstore.New(evalstore.Config{
		Submissions: submissionRepo,
		Users:       userRepo,
		Challenges:  challengeRepo,
	})
	if err != nil {
		return nil, err
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	judge, err := eval.NewJudge(eval.JudgeConfig{
		Source:      eval.NewRandomSource(seed),
		SuccessRate: cfg.SuccessRate,
	})
	if err != nil {
		return nil, err
	}

	return eval.NewQueue(eval.QueueConfig{
		Store:        store,
		Executor:     eval.NewSimulatedExecutor(seed),
		Judge:        judge,
		Badges:       eval.NewBadgeEngine(),
		Deadline:     cfg.Deadline,
		StoreTimeout: cfg.StoreTimeout,
	})
}

type routerDeps struct {
	auth        *userservice.AuthService
	authCtrl    *usercontroller.AuthController
	subCtrl     *subcontroller.SubmissionController
	watchCtrl   *subcontroller.WatchController
	benchCtrl   *benchcontroller.BenchmarkController
	chCtrl      *chcontroller.ChallengeController
	adminCtrl   *admincontroller.AdminController
	db          db.Database
	cacheClient cache.Cache
}

func buildRouter(deps routerDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(commonmw.TraceContextMiddleware())
	router.Use(requestLogger())

	authn := &authenticatorAdapter{auth: deps.auth}
	requireUser := commonmw.AuthMiddleware(authn, commonmw.AuthPolicy{})
	requireAdmin := commonmw.AuthMiddleware(authn, commonmw.AuthPolicy{Roles: []string{"admin"}})

	router.GET("/healthz", func(c *gin.Context) {
		if err := deps.db.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "component": "database"})
			return
		}
		if err := deps.cacheClient.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "component": "cache"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")

	auth := api.Group("/auth")
	auth.POST("/register", deps.authCtrl.Register)
	auth.POST("/login", deps.authCtrl.Login)

	users := api.Group("/users", requireUser)
	users.GET("/me", deps.authCtrl.Profile)
	users.POST("/me/api_keys", deps.authCtrl.CreateAPIKey)
	users.GET("/me/api_keys", deps.authCtrl.ListAPIKeys)
	users.DELETE("/me/api_keys/:id", deps.authCtrl.DeleteAPIKey)

	benchmarks := api.Group("/benchmarks")
	benchmarks.GET("", deps.benchCtrl.List)
	benchmarks.GET("/:id", deps.benchCtrl.Get)
	benchmarks.POST("", requireUser, deps.benchCtrl.Propose)

	api.GET("/leaderboard", deps.subCtrl.Leaderboard)
	api.GET("/challenges/active", deps.chCtrl.GetActive)

	submissions := api.Group("/submissions", requireUser)
	submissions.POST("", deps.subCtrl.Create)
	submissions.GET("", deps.subCtrl.List)
	submissions.GET("/:id", deps.subCtrl.Get)
	submissions.GET("/:id/watch", deps.watchCtrl.Watch)
	submissions.POST("/artifacts", deps.subCtrl.UploadArtifact)
	submissions.GET("/artifacts/url", deps.subCtrl.ArtifactURL)

	admin := api.Group("/admin", requireAdmin)
	admin.GET("/stats", deps.adminCtrl.Stats)
	admin.GET("/jobs", deps.adminCtrl.RecentJobs)
	admin.POST("/submissions/:id/flag", deps.adminCtrl.FlagSubmission)
	admin.GET("/benchmarks/pending", deps.adminCtrl.PendingBenchmarks)
	admin.POST("/benchmarks/:id/approve", deps.adminCtrl.ApproveBenchmark)
	admin.POST("/benchmarks/:id/reject", deps.adminCtrl.RejectBenchmark)
	admin.POST("/challenges/reset", deps.adminCtrl.ResetChallenge)

	return router
}

// authenticatorAdapter bridges the auth service to the shared middleware
// without the middleware importing user packages.
type authenticatorAdapter struct {
	auth *userservice.AuthService
}

func (a *authenticatorAdapter) Authenticate(ctx context.Context, credential string) (commonmw.Identity, error) {
	info, err := a.auth.Authenticate(ctx, credential)
	if err != nil {
		return commonmw.Identity{}, err
	}
	return commonmw.Identity{UserID: info.UserID, Role: info.Role}, nil
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		logger.Info(
			c.Request.Context(),
			"request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
