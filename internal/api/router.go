package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/rs/cors"

	"contentfactory/internal/app"
	"contentfactory/internal/avatar"
	"contentfactory/internal/model"
	"contentfactory/internal/settings"
)

const userHeader = "X-User-ID"

type Handler struct {
	videos   *app.Service
	avatars  *avatar.Manager
	settings *settings.Service
}

func NewHandler(videos *app.Service, avatars *avatar.Manager, s *settings.Service) *Handler {
	return &Handler{videos: videos, avatars: avatars, settings: s}
}

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("video_style", func(fl validator.FieldLevel) bool {
			return model.Style(fl.Field().String()).Valid()
		})
	}
}

// NewRouter registers every route on a fresh gin engine.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api", requireUser())
	{
		api.POST("/videos", h.createVideo)
		api.GET("/videos", h.listVideos)
		api.GET("/videos/:id", h.getVideo)
		api.POST("/videos/:id/retry", h.retryVideo)
		api.GET("/videos/:id/status", h.videoStatus)
		api.DELETE("/videos/:id", h.deleteVideo)
		api.POST("/videos/:id/publish", h.publishVideo)
		api.POST("/scripts", h.generateScript)

		api.GET("/avatars", h.listAvatars)
		api.POST("/avatars", h.createAvatar)
		api.POST("/avatars/sync", h.syncAvatars)
		api.POST("/avatars/:id/default", h.setDefaultAvatar)
		api.DELETE("/avatars/:id", h.deleteAvatar)

		api.GET("/settings/:key", h.getSetting)
		api.PUT("/settings/:key", h.putSetting)

		api.GET("/preferences", h.getPreferences)
		api.PUT("/preferences", h.putPreferences)
	}
	return r
}

// WithCORS wraps the router for browser clients on the given origins.
func WithCORS(handler http.Handler, origins []string) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders:   []string{"Content-Type", "Authorization", userHeader},
		AllowCredentials: true,
	}).Handler(handler)
}

func requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader(userHeader) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing " + userHeader + " header"})
			return
		}
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func userID(c *gin.Context) string {
	return c.GetHeader(userHeader)
}
