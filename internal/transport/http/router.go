// Package http exposes the authoring REST API and the live session sockets.
package http

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Handlers groups the handler instances mounted by NewRouter.
type Handlers struct {
	Authoring *AuthoringHandler
	Sessions  *SessionHandler
	WS        *WSHandler
}

type RouterOptions struct {
	AllowedOrigins []string
	Logger         zerolog.Logger
}

// NewRouter mounts every route on a new gin engine.
func NewRouter(h Handlers, opts RouterOptions) *gin.Engine {
	SetupValidator()

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(opts.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = opts.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Content-Disposition"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(RequestIDMiddleware())
	router.Use(requestLogger(opts.Logger))

	router.GET("/healthz", func(c *gin.Context) {
		Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	if h.Authoring != nil {
		api.POST("/slides", h.Authoring.UploadSlides)
		api.POST("/slides/variations", h.Authoring.SlideVariations)
		api.POST("/extract", h.Authoring.Extract)
		api.POST("/questions/generate", h.Authoring.GenerateQuestions)
		api.POST("/questions/regenerate", h.Authoring.RegenerateQuestion)
		api.POST("/decks", h.Authoring.SaveDeck)
		api.GET("/decks/:id", h.Authoring.GetDeck)
	}
	if h.Sessions != nil {
		api.POST("/sessions", h.Sessions.Create)
		api.DELETE("/sessions/:id", h.Sessions.End)
		api.POST("/sessions/:id/finals", h.Sessions.Finals)
		api.GET("/sessions/:id/report.pdf", h.Sessions.Report)
	}
	if h.WS != nil {
		ws := router.Group("/ws/sessions/:id")
		ws.GET("/host", h.WS.Host)
		ws.GET("/student", h.WS.Student)
	}
	return router
}

func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	log = log.With().Str("component", "http").Logger()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		} else if status >= http.StatusBadRequest {
			event = log.Warn()
		}
		event.
			Str("request_id", c.GetString(ContextKeyRequestID)).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}
