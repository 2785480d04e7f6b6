package routes

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-food-search/internal/app/domain/search"
)

// Setup registers the public API surface on the router.
func Setup(r *gin.Engine, handler *search.Handler, logger *zap.Logger) {
	r.GET("/healthz", handler.Health)

	api := r.Group("/api/v1")
	handler.RegisterRoutes(api)

	logger.Info("routes registered",
		zap.Strings("endpoints", []string{
			"POST /api/v1/search",
			"GET /api/v1/search/:requestId/result",
			"DELETE /api/v1/search/:requestId",
			"GET /healthz",
		}))
}
