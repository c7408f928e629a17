package delivery

import (
	"net/http"
	"time"

	"deenice_finds/internal/domain"
	"deenice_finds/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const defaultMaxBodyBytes = 1 << 20

type RouterConfig struct {
	Orders       domain.OrderUseCase
	Categories   domain.CategoryUseCase
	Auth         domain.AuthUseCase
	MaxBodyBytes int64
	Log          *logrus.Logger
}

// NewRouter builds the /api engine with every handler mounted.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	router := gin.New()
	router.Use(
		middleware.RequestID(),
		middleware.RequestLogger(cfg.Log),
		middleware.Recovery(cfg.Log),
		middleware.MaxBodyBytes(cfg.MaxBodyBytes),
	)

	admin := middleware.AdminAuth(cfg.Auth, cfg.Log)
	api := router.Group("/api")

	NewOrderHandler(cfg.Orders, cfg.Log).RegisterRoutes(api, admin)
	NewCategoryHandler(cfg.Categories, cfg.Log).RegisterRoutes(api, admin)
	NewAuthHandler(cfg.Auth, cfg.Log).RegisterRoutes(api, admin)

	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"ordersCount": cfg.Orders.Count(),
			"timestamp":   time.Now().UTC(),
		})
	})

	router.NoRoute(func(c *gin.Context) {
		ErrorResponse(c, http.StatusNotFound, "Route not found")
	})
	return router
}
