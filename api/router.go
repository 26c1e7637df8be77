package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/clinicsearch/api/handlers"
)

func setupRoutes(ctx context.Context, router *gin.Engine, s *server) {
	router.GET("/health", health())

	handlers.SetupSearch(router, s.logger, s.search, s.validator)
	handlers.SetupIndex(ctx, router, s.logger, s.index)
	handlers.SetupHighlight(router, s.logger, s.highlight, s.validator)
}

func health() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	}
}

func newRouter() *gin.Engine {
	router := gin.Default()
	router.UseRawPath = true
	router.Use(_CORSMiddleware())
	router.Use(gin.Recovery())
	router.Use(authMiddleware())

	return router
}
