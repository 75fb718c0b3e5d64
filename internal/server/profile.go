package server

import (
	"net/http"

	"github.com/agoraforum/agora/backend/internal/forum"
	"github.com/agoraforum/agora/backend/internal/realtime"
	"github.com/gin-gonic/gin"
)

type addProfilePayload struct {
	Username string `json:"username"`
	Title    string `json:"title"`
	Bio      string `json:"bio"`
}

func (h *httpHandler) handleAddProfile(c *gin.Context) {
	var payload addProfilePayload
	if err := c.ShouldBindJSON(&payload); err != nil || payload.Username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username is required"})
		return
	}

	profile, err := h.forum.AddProfile(c.Request.Context(), forum.ProfileInput{
		Username: payload.Username,
		Title:    payload.Title,
		Bio:      payload.Bio,
	})
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	h.broadcaster.Publish(realtime.Event{Type: realtime.EventProfileUpdate, Payload: *profile})
	c.JSON(http.StatusOK, profile)
}

func (h *httpHandler) handleGetProfile(c *gin.Context) {
	view, err := h.forum.ProfileByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// handleUpdateProfile edits title and bio only; at least one must be given.
func (h *httpHandler) handleUpdateProfile(c *gin.Context) {
	var title, bio *string
	if value, ok := c.GetQuery("title"); ok {
		title = &value
	}
	if value, ok := c.GetQuery("bio"); ok {
		bio = &value
	}
	if title == nil && bio == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one of title or bio is required"})
		return
	}

	view, err := h.forum.UpdateProfile(c.Request.Context(), c.Param("username"), title, bio)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	h.broadcaster.Publish(realtime.Event{Type: realtime.EventProfileUpdate, Payload: *view})
	c.JSON(http.StatusOK, view)
}
