package router

import (
	"hubresolver/internal/handlers"

	"github.com/gin-gonic/gin"
)

func NewRouter(h *handlers.Handler) *gin.Engine {
	r := gin.Default()

	r.POST("task", h.CreateTask)
	r.GET("task/:id", h.GetTask)
	r.GET("tasks", h.ListTasks)
	r.POST("task/:id/resolve", h.ResolveTask)
	r.POST("task/:id/retry", h.RetryTask)

	r.GET("fetch", h.FetchPage)
	r.GET("health", h.Health)

	return r
}
