package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *httpHandler) handleListNotifications(c *gin.Context) {
	notifications, err := h.notifications.ListForUser(c.Request.Context(), c.Param("userId"))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, notifications)
}

func (h *httpHandler) handleMarkNotificationRead(c *gin.Context) {
	notification, err := h.notifications.MarkRead(c.Request.Context(), c.Param("notificationId"))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, notification)
}
