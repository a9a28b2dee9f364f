package controller

import (
	"context"
	"net/http"

	"classqa/internal/auth"
	"classqa/internal/classroom/service"
	commonmw "classqa/internal/common/http/middleware"
	"classqa/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// RouterConfig carries everything the HTTP surface depends on.
type RouterConfig struct {
	Lifecycle   *service.LifecycleService
	Aggregation *service.AggregationService
	Students    *service.StudentService
	Auth        *auth.AuthService

	// RateLimiter may be nil, which disables student rate limiting.
	RateLimiter   *commonmw.RateLimiter
	StudentLimit  commonmw.RateLimitPolicy
	LoginLimit    commonmw.RateLimitPolicy
	CORS          commonmw.CORSConfig
	HealthChecker func(ctx context.Context) error
}

// NewRouter builds the gin engine with middleware and all /api/v1 routes.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(commonmw.TraceContextMiddleware())
	router.Use(commonmw.RequestLogger())
	router.Use(commonmw.CORSMiddleware(cfg.CORS))

	router.GET("/health", func(c *gin.Context) {
		if cfg.HealthChecker != nil {
			if err := cfg.HealthChecker(c.Request.Context()); err != nil {
				response.Error(c, err)
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")

	authController := NewAuthController(cfg.Auth)
	api.POST("/auth/login",
		commonmw.RateLimitMiddleware(cfg.RateLimiter, "auth-login", cfg.LoginLimit),
		authController.Login)

	teacher := api.Group("", auth.RequireTeacher(cfg.Auth))
	questionController := NewQuestionController(cfg.Lifecycle)
	aggregationController := NewAggregationController(cfg.Aggregation)
	teacher.POST("/questions", questionController.Create)
	teacher.GET("/questions", questionController.List)
	teacher.POST("/questions/search", aggregationController.Search)
	teacher.GET("/questions/:id", questionController.Get)
	teacher.DELETE("/questions/:id", questionController.Delete)
	teacher.PATCH("/questions/:id/close", questionController.Close)
	teacher.GET("/questions/:id/answers", questionController.Answers)
	teacher.POST("/questions/:id/summary", aggregationController.Summarize)
	// Alias for older browser clients.
	teacher.POST("/smart-search", aggregationController.Search)

	answers := api.Group("/answers", commonmw.RateLimitMiddleware(cfg.RateLimiter, "answers", cfg.StudentLimit))
	answerController := NewAnswerController(cfg.Lifecycle)
	answers.POST("/question/:access_code", answerController.OpenQuestion)
	answers.POST("/submit", answerController.Submit)

	studentController := NewStudentController(cfg.Students)
	api.GET("/students", studentController.List)
	api.GET("/students/:id", studentController.Get)

	return router
}
