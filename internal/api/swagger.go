package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "vision-annotator-go/docs"
)

func (s *Server) setupSwagger() {
	s.router.GET("/api/info", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"title":       "Vision Annotator API",
			"version":     s.config.Version,
			"description": "Real-time video annotation worker: frame capture, object detection overlay and recording",
			"swagger_ui":  "/docs/index.html",
			"endpoints": gin.H{
				"health":    "/health",
				"models":    "/models",
				"source":    "/source",
				"settings":  "/settings",
				"status":    "/status",
				"stats":     "/stats",
				"detection": "/detection",
				"recording": "/recording",
			},
			"worker_id": s.config.WorkerID,
			"port":      s.config.Port,
		})
	})

	s.router.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	s.router.GET("/docs", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/docs/index.html")
	})
}
