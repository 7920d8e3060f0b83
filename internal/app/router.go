package app

import (
	"mock_interview_backend/docs"
	"mock_interview_backend/internal/config"
	"mock_interview_backend/internal/middleware"
	"mock_interview_backend/pkg/monitoring"
	"mock_interview_backend/pkg/security"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
	}

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(
		middleware.AuthMiddleware(cfg),
		middleware.IdentityMiddleware(repos.user),
		security.RateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute),
	)
	{
		a.registerInterviewRoutes(authGroup, c)
	}
}

func (a *App) registerInterviewRoutes(rg *gin.RouterGroup, c *controllers) {
	interviews := rg.Group("/interviews")
	{
		interviews.POST("", c.interview.StartInterview)
		interviews.GET("", c.interview.ListInterviews)
		interviews.GET("/:id", c.interview.GetInterview)

		// 通话控制
		interviews.POST("/:id/call", c.interview.BeginCall)
		interviews.DELETE("/:id/call", c.interview.EndCall)
		interviews.POST("/:id/mute", c.interview.Mute)
		interviews.POST("/:id/unmute", c.interview.Unmute)
		interviews.GET("/:id/transcript", c.interview.GetTranscript)

		// 报告
		interviews.GET("/:id/report", c.interview.GetReport)
		interviews.POST("/:id/report/retry", c.interview.RetryReport)

		// 浏览器语音桥
		interviews.GET("/:id/ws", c.interview.HandleWS)
	}
}
