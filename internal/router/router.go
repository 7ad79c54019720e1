package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"k8s-simplify/internal/handler"
)

type Handlers struct {
	SSH     *handler.SSHHandler
	Cluster *handler.ClusterHandler
	Task    *handler.TaskHandler
}

func RegisterRoutes(r *gin.Engine, h Handlers, gatherer prometheus.Gatherer) {
	api := r.Group("/api")
	{
		ssh := api.Group("/ssh")
		{
			ssh.POST("/test", h.SSH.TestConnection)
		}

		cluster := api.Group("/cluster")
		{
			cluster.POST("/install", h.Cluster.Install)
			cluster.POST("/update", h.Cluster.Update)
			cluster.POST("/rollback", h.Cluster.Rollback)
		}

		tasks := api.Group("/tasks")
		{
			tasks.GET("/:taskId", h.Task.Progress)
			tasks.GET("/:taskId/stream", h.Task.Stream)
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
}
