package api

import (
	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all API routes
func SetupRoutes(r *gin.Engine, h *Handler) {
	api := r.Group("/api")
	{
		api.GET("/test", h.TestCredentials)
		api.GET("/dashboard", h.GetDashboard)
		api.GET("/view", h.GetView)

		devices := api.Group("/devices")
		{
			devices.GET("", h.GetDevices)
			devices.GET("/:id/datamap", h.GetDeviceDataMap)
			devices.GET("/:id/latest", h.GetDeviceLatest)
			devices.GET("/:id/history", h.GetDeviceHistory)
			devices.GET("/:id/alarms", h.GetDeviceAlarms)
			devices.GET("/:id/logs", h.GetDeviceLogs)
		}

		cache := api.Group("/cache")
		{
			cache.GET("/stats", h.GetCacheStats)
		}
	}
}
