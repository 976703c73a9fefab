package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"ReviewScanner/internal/session"
)

const sessionKey = "session"

// NewServer creates the command service with all routes configured.
// The caller picks the gin mode.
func NewServer(handler *Handler, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	r := gin.New()
	r.Use(requestLogger(logger))
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("panic in handler", "path", c.Request.URL.Path, "panic", recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}))

	// The extension popup calls from its own origin.
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})
	r.Use(bearerSession(handler.now))

	setupRoutes(r, handler)
	return r
}

func setupRoutes(r *gin.Engine, h *Handler) {
	r.GET("/health", h.Health)
	r.POST("/command", h.Command)

	scans := r.Group("/scans")
	{
		scans.GET("/current", h.CurrentScan)
		scans.GET("/:id", h.GetScan)
		scans.GET("/:id/page", h.ScanPage)
		scans.GET("/:id/report.md", h.ScanReportMarkdown)
		scans.GET("/:id/report.csv", h.ScanReportCSV)
		scans.GET("/:id/reviews/:rid/explain", h.Explain)
	}

	r.POST("/login", h.Login)
	r.POST("/logout", h.Logout)
	r.POST("/feedback", h.Feedback)
	r.POST("/report", h.Report)
	r.POST("/rate_review", h.Rate)

	r.GET("/settings", h.GetSettings)
	r.PUT("/settings", h.PutSettings)
	r.GET("/profile", h.GetProfile)
	r.PUT("/profile", h.PutProfile)
	r.GET("/history", h.History)
}

// bearerSession attaches a session built from an inbound bearer token.
// Requests without one fall back to the process session.
func bearerSession(now func() time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok && strings.TrimSpace(token) != "" {
			c.Set(sessionKey, session.New(token, now()))
		}
		c.Next()
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "error", c.Errors.String())
		}
		logger.Info("request", attrs...)
	}
}
