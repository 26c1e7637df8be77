package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/clinicsearch/logger"
	"github.com/meghashyamc/clinicsearch/services/index"
)

// SetupIndex registers the index endpoints. Refreshes run on ctx, not on the
// request that triggered them.
func SetupIndex(ctx context.Context, router *gin.Engine, logger logger.Logger, service *index.Service) {
	router.POST("/index/medicines/refresh", handleRefreshMedicines(ctx, service, logger))
	router.GET("/index/status", handleGetIndexStatus(service))
}

func handleRefreshMedicines(ctx context.Context, service *index.Service, logger logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		go func() {
			if err := service.RefreshMedicines(ctx); err != nil {
				logger.Warn("requested medicines refresh failed", "err", err.Error())
			}
		}()

		writeResponse(c, nil, http.StatusAccepted, nil)
	}
}

func handleGetIndexStatus(service *index.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		writeResponse(c, service.Status(), http.StatusOK, nil)
	}
}
