package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"contentfactory/internal/model"
	"contentfactory/internal/settings"
)

type preferencesRequest struct {
	VoiceID          string `json:"voice_id"`
	OutputResolution string `json:"output_resolution" binding:"omitempty,oneof=720p 1080p"`
	AspectRatio      string `json:"aspect_ratio" binding:"omitempty,oneof=9:16 16:9 1:1"`
}

type settingRequest struct {
	Value string `json:"value" binding:"required"`
}

func (h *Handler) getSetting(c *gin.Context) {
	key := c.Param("key")

	var value string
	if key == settings.KeyVideoProvider {
		value = string(h.settings.Provider(c.Request.Context()))
	} else {
		value = h.settings.Get(c.Request.Context(), key, "")
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "value": value})
}

func (h *Handler) putSetting(c *gin.Context) {
	var req settingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	key := c.Param("key")
	if err := h.settings.Set(c.Request.Context(), key, req.Value); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "value": req.Value})
}

func (h *Handler) getPreferences(c *gin.Context) {
	prefs, err := h.videos.Preferences(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, prefs)
}

func (h *Handler) putPreferences(c *gin.Context) {
	var req preferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	prefs, err := h.videos.SavePreferences(c.Request.Context(), model.UserPreferences{
		UserID:           userID(c),
		VoiceID:          req.VoiceID,
		OutputResolution: req.OutputResolution,
		AspectRatio:      req.AspectRatio,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, prefs)
}
