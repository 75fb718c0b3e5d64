package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/agoraforum/agora/backend/internal/forum"
	"github.com/agoraforum/agora/backend/internal/notify"
	"github.com/agoraforum/agora/backend/internal/realtime"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type commentBodyPayload struct {
	Text            string    `json:"text"`
	CommentBy       string    `json:"commentBy"`
	CommentDateTime time.Time `json:"commentDateTime"`
}

type addCommentPayload struct {
	ID      string             `json:"id"`
	Type    string             `json:"type"`
	Comment commentBodyPayload `json:"comment"`
}

func (h *httpHandler) handleAddComment(c *gin.Context) {
	var payload addCommentPayload
	if err := c.ShouldBindJSON(&payload); err != nil || payload.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id, type and comment are required"})
		return
	}
	parentType, err := forum.ParseDocumentType(payload.Type)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type must be question or answer"})
		return
	}
	if payload.Comment.Text == "" || payload.Comment.CommentBy == "" || payload.Comment.CommentDateTime.IsZero() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid comment body"})
		return
	}

	attachment, err := h.forum.AddComment(c.Request.Context(), payload.ID, parentType, forum.CommentInput{
		Text:            payload.Comment.Text,
		CommentBy:       payload.Comment.CommentBy,
		CommentDateTime: payload.Comment.CommentDateTime,
	})
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	h.broadcaster.Publish(realtime.Event{
		Type: realtime.EventCommentUpdate,
		Payload: realtime.CommentUpdatePayload{
			Question: attachment.Question,
			Answer:   attachment.Answer,
			Type:     attachment.Type,
		},
	})

	h.emitCommentNotification(c, attachment)

	c.JSON(http.StatusOK, attachment.Comment)
}

// emitCommentNotification notifies the parent document's author about the
// new comment. Failures are logged only; the comment is already committed.
func (h *httpHandler) emitCommentNotification(c *gin.Context, attachment *forum.CommentAttachment) {
	var recipient, message string
	switch attachment.Type {
	case forum.DocumentTypeQuestion:
		recipient = attachment.Question.AskedBy
		message = fmt.Sprintf("%s commented on your question %q", attachment.Comment.CommentBy, attachment.Question.Title)
	case forum.DocumentTypeAnswer:
		recipient = attachment.Answer.AnsBy
		question, err := h.forum.Question(c.Request.Context(), attachment.Answer.QuestionID)
		if err != nil {
			h.logger.Warn("comment notification lookup failed", zap.Error(err), zap.String("answer_id", attachment.Answer.ID))
			return
		}
		message = fmt.Sprintf("%s commented on your answer to %q", attachment.Comment.CommentBy, question.Title)
	default:
		return
	}

	notification, err := h.notifications.Create(c.Request.Context(), notify.CreateInput{
		UserID:    recipient,
		Actor:     attachment.Comment.CommentBy,
		Type:      notify.TypeReply,
		Message:   message,
		RelatedID: attachment.Comment.ID,
	})
	if err != nil {
		h.logger.Warn("comment notification failed", zap.Error(err))
		return
	}
	if notification != nil {
		h.broadcaster.Publish(realtime.Event{Type: realtime.EventNotificationUpdate, Payload: *notification})
	}
}
