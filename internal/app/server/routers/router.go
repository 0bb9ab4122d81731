package routers

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mca/agentd/internal/app/server/handlers/job"
	"mca/agentd/internal/app/server/middlewares"
	"mca/agentd/pkg/logger"
)

// SetupRoutes 配置所有路由（MIP-003 端点布局）
func SetupRoutes(jobHandler *job.JobHandler, log logger.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.Use(middlewares.CORS())
	r.Use(middlewares.Logger(log))
	r.Use(middlewares.ErrorHandler())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "agentd",
			"message": "Service is running",
		})
	})

	r.POST("/start_job", jobHandler.Start)
	r.GET("/status", jobHandler.Status)
	r.GET("/availability", jobHandler.Availability)
	r.GET("/input_schema", jobHandler.InputSchema)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}
