package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"contentfactory/internal/app"
	"contentfactory/internal/model"
)

type createVideoRequest struct {
	Topic       string `json:"topic" binding:"required,max=500"`
	Script      string `json:"script"`
	Style       string `json:"style" binding:"omitempty,video_style"`
	Duration    int    `json:"duration" binding:"omitempty,min=1,max=600"`
	AvatarID    string `json:"avatar_id"`
	TemplateID  string `json:"template_id"`
	AspectRatio string `json:"aspect_ratio" binding:"omitempty,oneof=9:16 16:9 1:1"`
	PlanItemID  string `json:"plan_item_id"`
}

type publishRequest struct {
	Title       string   `json:"title" binding:"max=100"`
	Description string   `json:"description" binding:"max=5000"`
	Tags        []string `json:"tags"`
	Privacy     string   `json:"privacy" binding:"omitempty,oneof=private unlisted public"`
}

type scriptRequest struct {
	Topic    string `json:"topic" binding:"required"`
	Style    string `json:"style" binding:"omitempty,video_style"`
	Duration int    `json:"duration" binding:"omitempty,min=1,max=600"`
}

type scriptResponse struct {
	Script     string `json:"script"`
	WasTrimmed bool   `json:"was_trimmed"`
	MaxWords   int    `json:"max_words"`
	WordCount  int    `json:"word_count"`
}

func (h *Handler) createVideo(c *gin.Context) {
	var req createVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	video, err := h.videos.RequestManualVideo(c.Request.Context(), app.Request{
		UserID:      userID(c),
		Topic:       req.Topic,
		Script:      req.Script,
		Style:       model.Style(req.Style),
		Duration:    req.Duration,
		AvatarID:    req.AvatarID,
		TemplateID:  req.TemplateID,
		AspectRatio: req.AspectRatio,
		PlanItemID:  req.PlanItemID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, video)
}

func (h *Handler) listVideos(c *gin.Context) {
	videos, err := h.videos.List(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if videos == nil {
		videos = []model.Video{}
	}
	c.JSON(http.StatusOK, videos)
}

func (h *Handler) getVideo(c *gin.Context) {
	video, err := h.videos.Get(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, video)
}

func (h *Handler) retryVideo(c *gin.Context) {
	video, err := h.videos.Retry(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, video)
}

func (h *Handler) videoStatus(c *gin.Context) {
	result, err := h.videos.RefreshStatus(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) deleteVideo(c *gin.Context) {
	if err := h.videos.Delete(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) publishVideo(c *gin.Context) {
	var req publishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.videos.Publish(c.Request.Context(), userID(c), c.Param("id"), app.Publication{
		Title:       req.Title,
		Description: req.Description,
		Tags:        req.Tags,
		Privacy:     req.Privacy,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": resp.ID, "url": resp.URL, "platform": resp.Platform})
}

func (h *Handler) generateScript(c *gin.Context) {
	var req scriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	style := model.Style(req.Style)
	if style == "" {
		style = model.StyleCasual
	}
	limited, err := h.videos.GenerateScript(c.Request.Context(), req.Topic, style, req.Duration)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, scriptResponse{
		Script:     limited.Text,
		WasTrimmed: limited.WasTrimmed,
		MaxWords:   limited.MaxWords,
		WordCount:  limited.WordCount,
	})
}
