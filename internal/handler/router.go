package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

// SetupRouter mounts the API at the root and under /api/v1. A nil auth leaves every
// route open.
func SetupRouter(h *Handler, auth *Authenticator) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(MetricsMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	registerRoutes(r.Group(""), h, auth)
	registerRoutes(r.Group("/api/v1"), h, auth)

	return r
}

func registerRoutes(api *gin.RouterGroup, h *Handler, auth *Authenticator) {
	if auth != nil {
		api.Use(auth.Middleware())
	}

	wallet := api.Group("/wallet")
	{
		wallet.GET("", h.GetWallet)
		wallet.PATCH("", h.AdjustWallet)
		wallet.POST("/credit", h.CreditWallet)
		wallet.GET("/payments", h.ListPayments)
	}

	transactions := api.Group("/transactions")
	{
		transactions.GET("", h.ListTransactions)
		transactions.POST("", h.CreateTransaction)
		transactions.GET("/:transactionNo", h.GetTransaction)
	}

	donations := api.Group("/donations")
	{
		donations.GET("", h.ListDonations)
		donations.POST("", h.Donate)
	}
}

// WithCORS lets browsers on allowedOrigins call the API. An empty list allows any origin.
func WithCORS(next http.Handler, allowedOrigins []string) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Authorization", requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader},
		AllowCredentials: true,
	}).Handler(next)
}
