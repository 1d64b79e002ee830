package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mgmeyers/pdfmarkers/logging"
)

// Config holds the HTTP front end settings
type Config struct {
	Addr          string
	MaxUploadSize int64
	TempDir       string
}

func SetupRoutes(r *gin.Engine, config *Config, sink logging.Sink) {
	apiGroup := r.Group("/api")
	{
		apiGroup.POST("/markers", func(c *gin.Context) { HandleMarkers(c, config, sink) })
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "pdfmarkers",
		})
	})
}

// NewServer builds the HTTP server with the routes and timeouts set.
func NewServer(config *Config, sink logging.Sink) *http.Server {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(sink))

	SetupRoutes(r, config, sink)

	return &http.Server{
		Addr:         config.Addr,
		Handler:      r,
		ReadTimeout:  ServerReadTimeout,
		WriteTimeout: ServerWriteTimeout,
		IdleTimeout:  ServerIdleTimeout,
	}
}

func requestLogger(sink logging.Sink) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		logging.Infof(sink, "%s %s %d (%s)",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), c.ClientIP())
	}
}
