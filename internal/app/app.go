package app

import (
	"context"
	"log"
	"mock_interview_backend/internal/config"
	"mock_interview_backend/internal/controller"
	"mock_interview_backend/internal/interview"
	"mock_interview_backend/internal/repository"
	"mock_interview_backend/internal/service"
	"mock_interview_backend/pkg/configwatcher"
	"mock_interview_backend/pkg/database"
	"mock_interview_backend/pkg/logger"
	"mock_interview_backend/pkg/monitoring"
	"mock_interview_backend/pkg/security"
	"mock_interview_backend/pkg/tracing"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const evictionInterval = time.Minute

type App struct {
	Config          *config.Config
	ConfigPath      string
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	tracer          *sdktrace.TracerProvider
	cancel          context.CancelFunc
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user      *repository.UserRepository
	interview *repository.InterviewRepository
}

type services struct {
	ai        *service.AIService
	storage   *service.StorageService
	voiceHub  *service.VoiceHub
	interview *service.InterviewService
}

type controllers struct {
	interview *controller.InterviewController
	health    *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *repositories {
	return &repositories{
		user:      repository.NewUserRepository(db),
		interview: repository.NewInterviewRepository(db, rdb, cfg.Session.ReportCacheTTL()),
	}
}

func (a *App) initServices(ctx context.Context, repos *repositories, cfg *config.Config, rdb *redis.Client) (*services, error) {
	s := &services{}

	ai, err := service.NewAIService(ctx, cfg.AI)
	if err != nil {
		return nil, err
	}
	s.ai = ai

	storage, err := service.NewStorageService(cfg)
	if err != nil {
		return nil, err
	}
	s.storage = storage

	s.voiceHub = service.NewVoiceHub(rdb, cfg.Voice)

	normalizer := interview.NewFeedbackNormalizer(s.ai,
		interview.WithNormalizerLogger(logger.For("feedback")),
		interview.WithFeedbackObserver(func(t interview.InterviewType, outcome interview.FeedbackOutcome, elapsed time.Duration) {
			monitoring.FeedbackOutcomes.WithLabelValues(string(t), string(outcome)).Inc()
			monitoring.FeedbackDuration.WithLabelValues(string(t)).Observe(elapsed.Seconds())
		}),
	)
	s.interview = service.NewInterviewService(repos.interview, s.voiceHub, normalizer, s.storage, cfg.Session)
	s.voiceHub.SetEventHandler(s.interview.HandleProviderEvent)

	// AI 配置热更新
	a.RegisterConfigCallback(func(newCfg *config.Config) {
		if err := s.ai.Reload(context.Background(), newCfg.AI); err != nil {
			logger.Log.Error("Failed to reload AI config", zap.Error(err))
		}
	})

	return s, nil
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	health := controller.NewHealthController(db, rdb)
	health.AIReady = s.ai.Configured
	health.LiveSessions = s.interview.LiveCount
	return &controllers{
		interview: controller.NewInterviewController(s.interview, s.voiceHub),
		health:    health,
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func (a *App) startBackgroundTasks(ctx context.Context, s *services) {
	go s.voiceHub.Run()
	go s.interview.RunEviction(ctx, evictionInterval)

	go func() {
		err := configwatcher.WatchConfig(ctx, a.ConfigPath, func(newCfg *config.Config) {
			for _, cb := range a.configCallbacks {
				cb(newCfg)
			}
		})
		if err != nil {
			logger.Log.Warn("Config watcher stopped", zap.Error(err))
		}
	}()
}

func NewApp(cfg *config.Config, configDir string) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	migrate := cfg.Server.Mode == "debug" || cfg.ForceMigrate
	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode == "debug", migrate)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	app := &App{
		Config:     cfg,
		ConfigPath: filepath.Join(configDir, "config.yaml"),
		DB:         db,
	}
	if cfg.MigrateOnly {
		return app
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
		log.Fatalf("Failed to initialize redis: %v", err)
	}
	app.Redis = rdb

	ctx, cancel := context.WithCancel(context.Background())
	app.cancel = cancel

	repos := app.initRepositories(db, rdb, cfg)
	services, err := app.initServices(ctx, repos, cfg, rdb)
	if err != nil {
		logger.Log.Fatal("Failed to initialize services", zap.Error(err))
	}
	app.services = services
	controllers := app.initControllers(services, db, rdb)

	// 监控初始化
	monitoring.Init()

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(cfg.Tracing.ServiceName, cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	gin.SetMode(cfg.Server.Mode)
	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, repos, cfg)

	if cfg.Storage.Type == "local" {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	app.startBackgroundTasks(ctx, services)

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// 清理语音连接和 Redis 在线状态
	if a.services != nil && a.services.voiceHub != nil {
		a.services.voiceHub.Stop()
	}
	if a.cancel != nil {
		a.cancel()
	}

	// 关闭服务
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}

	log.Println("Server exiting")
}
