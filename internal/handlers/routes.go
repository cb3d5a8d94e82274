package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers groups every handler mounted on the router
type Handlers struct {
	Pages    *PageHandler
	Lessons  *LessonHandler
	Accounts *AccountHandler
	Reports  *ReportHandler
	Webhook  *WebhookHandler
	Health   *HealthHandler
	Admin    *AdminAuthHandler // nil disables POST /admin/login
	Audits   *AuditHandler     // nil disables GET /admin/audits
}

// RegisterRoutes mounts the API on the router. reportAuth, when not nil,
// protects the two reporting endpoints. The audit lookup is only mounted
// behind reportAuth.
func RegisterRoutes(router *gin.Engine, h Handlers, reportAuth gin.HandlerFunc) {
	router.GET("/health", h.Health.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Browser client
	router.GET("/", h.Pages.Page("index.html"))
	router.GET("/lessons", h.Pages.Page("lessons.html"))
	router.GET("/account-update/:customer_id", h.Pages.Page("account-update.html"))
	router.GET("/config", h.Pages.Config)

	// Sign-up and lesson payments
	router.POST("/lessons", h.Lessons.Register)
	router.POST("/schedule-lesson", h.Lessons.ScheduleLesson)
	router.POST("/complete-lesson-payment", h.Lessons.CompleteLessonPayment)
	router.POST("/refund-lesson", h.Lessons.RefundLesson)

	// Account management
	router.GET("/payment-methods/:id", h.Accounts.GetBilledPaymentMethod)
	router.GET("/payment-method/:customer_id", h.Accounts.GetFirstPaymentMethod)
	router.POST("/update-payment-details/:customer_id", h.Accounts.UpdatePaymentDetails)
	router.POST("/delete-account/:customer_id", h.Accounts.DeleteAccount)

	// Reporting
	reports := router.Group("")
	if reportAuth != nil {
		reports.Use(reportAuth)
	}
	reports.GET("/calculate-lesson-total", h.Reports.CalculateLessonTotal)
	reports.GET("/find-customers-with-failed-payments", h.Reports.FindCustomersWithFailedPayments)

	router.POST("/webhook", h.Webhook.Receive)

	if h.Admin != nil {
		router.POST("/admin/login", h.Admin.Login)
	}
	if h.Audits != nil && reportAuth != nil {
		router.GET("/admin/audits", reportAuth, h.Audits.List)
	}

	router.NoRoute(h.Pages.NotFound)
}
