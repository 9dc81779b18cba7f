package server

import (
	"github.com/gin-gonic/gin"
)

// registerRoutes sets up all API routes on the gin router.
func registerRoutes(router *gin.Engine, h *handler) {
	router.GET("/health", h.health)

	agents := router.Group("/api/agents")
	{
		agents.GET("", h.listAgents)
		agents.GET("/:code", h.getAgent)
		agents.POST("/:code/login", h.loginAgent)
		agents.POST("/:code/logout", h.logoutAgent)
		agents.PATCH("/:code/status", h.updateStatus)
		agents.POST("/:code/calls", h.recordCall)
		agents.DELETE("/:code", h.deleteAgent)
	}

	messages := router.Group("/api/messages")
	{
		messages.POST("", h.sendMessage)
		messages.GET("", h.listMessages)
		messages.GET("/agent/:code", h.agentMessages)
		messages.PUT("/:id/read", h.markRead)
	}

	dash := router.Group("/api/dashboard")
	{
		dash.GET("/stats", h.dashboardStats)
		dash.GET("/agents/performance", h.performance)
		dash.GET("/activity/recent", h.recentActivity)
		dash.GET("/activity/history", h.activityHistory)
	}

	router.GET("/api/events", h.streamSSE)
	router.GET("/ws", h.streamWebSocket)

	router.NoRoute(h.notFound)
}
