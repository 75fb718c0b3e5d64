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

type answerBodyPayload struct {
	Text        string    `json:"text"`
	AnsBy       string    `json:"ansBy"`
	AnsDateTime time.Time `json:"ansDateTime"`
}

type addAnswerPayload struct {
	Qid string            `json:"qid"`
	Ans answerBodyPayload `json:"ans"`
}

type answerVotePayload struct {
	Aid      string `json:"aid"`
	Username string `json:"username"`
}

func (h *httpHandler) handleAddAnswer(c *gin.Context) {
	var payload addAnswerPayload
	if err := c.ShouldBindJSON(&payload); err != nil || payload.Qid == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "qid and ans are required"})
		return
	}
	if payload.Ans.Text == "" || payload.Ans.AnsBy == "" || payload.Ans.AnsDateTime.IsZero() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid answer"})
		return
	}

	// Question is fetched first so the reply notification can name it.
	question, err := h.forum.Question(c.Request.Context(), payload.Qid)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	answer, err := h.forum.AddAnswer(c.Request.Context(), payload.Qid, forum.AnswerInput{
		Text:        payload.Ans.Text,
		AnsBy:       payload.Ans.AnsBy,
		AnsDateTime: payload.Ans.AnsDateTime,
	})
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	h.broadcaster.Publish(realtime.Event{
		Type: realtime.EventAnswerUpdate,
		Payload: realtime.AnswerUpdatePayload{
			Qid:    payload.Qid,
			Answer: *answer,
		},
	})

	notification, err := h.notifications.Create(c.Request.Context(), notify.CreateInput{
		UserID:    question.AskedBy,
		Actor:     answer.AnsBy,
		Type:      notify.TypeReply,
		Message:   fmt.Sprintf("%s answered your question %q", answer.AnsBy, question.Title),
		RelatedID: payload.Qid,
	})
	if err != nil {
		h.logger.Warn("reply notification failed", zap.Error(err), zap.String("question_id", payload.Qid))
	}
	if notification != nil {
		h.broadcaster.Publish(realtime.Event{Type: realtime.EventNotificationUpdate, Payload: *notification})
	}

	c.JSON(http.StatusOK, answer)
}

// voteAnswer builds the shared handler for the answer vote endpoints.
func (h *httpHandler) voteAnswer(voteType forum.VoteType) gin.HandlerFunc {
	return func(c *gin.Context) {
		var payload answerVotePayload
		if err := c.ShouldBindJSON(&payload); err != nil || payload.Aid == "" || payload.Username == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "aid and username are required"})
			return
		}

		result, err := h.forum.ToggleVote(c.Request.Context(), payload.Aid, forum.DocumentTypeAnswer, payload.Username, voteType)
		if err != nil {
			h.respondServiceError(c, err)
			return
		}

		answer, err := h.forum.Answer(c.Request.Context(), payload.Aid)
		if err != nil {
			h.respondServiceError(c, err)
			return
		}

		h.broadcaster.Publish(realtime.Event{
			Type: realtime.EventAnswerVoteUpdate,
			Payload: realtime.AnswerVoteUpdatePayload{
				Aid:       payload.Aid,
				Qid:       answer.QuestionID,
				UpVotes:   result.UpVotes,
				DownVotes: result.DownVotes,
			},
		})

		if voteType == forum.VoteTypeUpvote && h.notifications.MilestoneReached(len(result.UpVotes)) {
			h.emitAnswerMilestone(c, answer, payload.Username, len(result.UpVotes))
		}

		c.JSON(http.StatusOK, result)
	}
}

func (h *httpHandler) emitAnswerMilestone(c *gin.Context, answer *forum.Answer, voter string, upvoteCount int) {
	question, err := h.forum.Question(c.Request.Context(), answer.QuestionID)
	if err != nil {
		h.logger.Warn("milestone lookup failed", zap.Error(err), zap.String("answer_id", answer.ID))
		return
	}

	plural := "s"
	if upvoteCount == 1 {
		plural = ""
	}
	notification, err := h.notifications.Create(c.Request.Context(), notify.CreateInput{
		UserID:    answer.AnsBy,
		Actor:     voter,
		Type:      notify.TypeVote,
		Message:   fmt.Sprintf("Congratulations! Your answer to %q has reached %d upvote%s!", question.Title, upvoteCount, plural),
		RelatedID: answer.ID,
	})
	if err != nil {
		h.logger.Warn("milestone notification failed", zap.Error(err), zap.String("answer_id", answer.ID))
		return
	}
	if notification != nil {
		h.broadcaster.Publish(realtime.Event{Type: realtime.EventNotificationUpdate, Payload: *notification})
	}
}
