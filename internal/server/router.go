package server

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Brownie44l1/banana-detector/internal/config"
	"github.com/Brownie44l1/banana-detector/internal/handlers"
	"github.com/Brownie44l1/banana-detector/internal/web"
)

const requestIDHeader = "X-Request-ID"

// NewRouter builds the gin engine with recovery, request ids, access logging
// and CORS, and mounts h on it.
func NewRouter(h *handlers.Handler, cfg config.ServerConfig) *gin.Engine {
	if cfg.Mode == gin.DebugMode {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestID())
	router.Use(accessLog())
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", requestIDHeader},
		ExposeHeaders: []string{"Content-Length", requestIDHeader},
		MaxAge:        12 * time.Hour,
	}))
	router.MaxMultipartMemory = cfg.MaxUploadBytes

	router.SetHTMLTemplate(web.Templates)
	h.Register(router)
	return router
}

// requestID propagates a client X-Request-ID only when it is a UUID, so
// arbitrary header text never reaches the logs.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if parsed, err := uuid.Parse(id); err == nil {
			id = parsed.String()
		} else {
			id = uuid.NewString()
		}
		c.Set(handlers.RequestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logrus.WithFields(logrus.Fields{
			handlers.RequestIDKey: c.GetString(handlers.RequestIDKey),
			"method":              c.Request.Method,
			"path":                c.Request.URL.Path,
			"status":              c.Writer.Status(),
			"duration":            time.Since(start),
			"client_ip":           c.ClientIP(),
		})
		if c.Writer.Status() >= 500 {
			entry.Error("request")
			return
		}
		entry.Info("request")
	}
}
