package api

import (
	"net/http"

	"chatflow/internal/webhook"

	"github.com/gin-gonic/gin"
)

// NewRouter mounts the webhook, the automation operations and the probes.
// A nil metrics handler leaves /metrics unmounted.
func NewRouter(webhookHandler *webhook.Handler, automationHandler *AutomationHandler, metrics http.Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}

	// Webhook Routes
	r.GET("/webhook", webhookHandler.VerifyWebhook)
	r.POST("/webhook/:userId", webhookHandler.HandleMessage)

	apiGroup := r.Group("/api/automation")
	{
		apiGroup.GET("/rules", automationHandler.GetRules)
		apiGroup.POST("/rules/:id/toggle", automationHandler.ToggleRule)
		apiGroup.GET("/logs", automationHandler.GetLogs)
		apiGroup.GET("/analytics", automationHandler.GetAnalytics)

		apiGroup.POST("/scheduler/run", automationHandler.RunScheduler)
		apiGroup.GET("/scheduled", automationHandler.GetScheduled)
		apiGroup.POST("/scheduled/:id/cancel", automationHandler.CancelScheduled)
		apiGroup.GET("/contacts/:id/messages", automationHandler.GetContactMessages)

		apiGroup.GET("/bot", automationHandler.GetBotStatus)
		apiGroup.PUT("/bot", automationHandler.SetBotStatus)
	}

	return r
}
