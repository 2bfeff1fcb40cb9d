package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"contentfactory/internal/avatar"
	"contentfactory/internal/model"
)

const maxPhotoBytes = 10 << 20

type createAvatarRequest struct {
	Name             string `json:"name" form:"name" binding:"required,max=100"`
	ProviderAvatarID string `json:"heygen_avatar_id" form:"heygen_avatar_id"`
	IsPhoto          bool   `json:"is_photo" form:"is_photo"`
	SetDefault       bool   `json:"set_default" form:"set_default"`
}

func (h *Handler) listAvatars(c *gin.Context) {
	avatars, err := h.avatars.List(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if avatars == nil {
		avatars = []model.Avatar{}
	}
	c.JSON(http.StatusOK, avatars)
}

// createAvatar accepts JSON to register a provider avatar, or a multipart form with a
// "photo" file to upload a talking photo.
func (h *Handler) createAvatar(c *gin.Context) {
	var req createAvatarRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	create := avatar.CreateRequest{
		UserID:           userID(c),
		Name:             req.Name,
		ProviderAvatarID: req.ProviderAvatarID,
		IsPhoto:          req.IsPhoto,
		SetDefault:       req.SetDefault,
	}

	if file, err := c.FormFile("photo"); err == nil {
		if file.Size > maxPhotoBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "photo exceeds " + strconv.Itoa(maxPhotoBytes>>20) + "MB"})
			return
		}
		f, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		defer func() { _ = f.Close() }()

		create.Photo, err = io.ReadAll(f)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		create.ContentType = file.Header.Get("Content-Type")
	}

	a, err := h.avatars.Create(c.Request.Context(), create)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (h *Handler) syncAvatars(c *gin.Context) {
	result, err := h.avatars.Sync(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"imported": result.Imported, "updated": result.Updated})
}

func (h *Handler) setDefaultAvatar(c *gin.Context) {
	if err := h.avatars.SetDefault(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) deleteAvatar(c *gin.Context) {
	if err := h.avatars.Delete(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
