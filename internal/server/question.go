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

type addQuestionPayload struct {
	Title       string    `json:"title"`
	Text        string    `json:"text"`
	Tags        []string  `json:"tags"`
	AskedBy     string    `json:"askedBy"`
	AskDateTime time.Time `json:"askDateTime"`
}

type votePayload struct {
	Qid      string `json:"qid"`
	Username string `json:"username"`
}

func (h *httpHandler) handleListQuestions(c *gin.Context) {
	order := forum.QuestionOrder(c.DefaultQuery("order", string(forum.OrderNewest)))
	askedBy := c.Query("askedBy")

	questions, err := h.forum.ListQuestions(c.Request.Context(), order, askedBy)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, questions)
}

// handleQuestionByID returns the populated question and records the viewer.
// The fetch writes: the viewer joins the view set, so a viewsUpdate event
// goes out on every successful read.
func (h *httpHandler) handleQuestionByID(c *gin.Context) {
	qid := c.Param("qid")
	username := c.Query("username")
	if username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username is required"})
		return
	}

	question, err := h.forum.QuestionByID(c.Request.Context(), qid, username)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	h.broadcaster.Publish(realtime.Event{Type: realtime.EventViewsUpdate, Payload: *question})
	c.JSON(http.StatusOK, question)
}

func (h *httpHandler) handleAddQuestion(c *gin.Context) {
	var payload addQuestionPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid question body"})
		return
	}

	question, err := h.forum.AddQuestion(c.Request.Context(), forum.QuestionInput{
		Title:       payload.Title,
		Text:        payload.Text,
		TagNames:    payload.Tags,
		AskedBy:     payload.AskedBy,
		AskDateTime: payload.AskDateTime,
	})
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	h.broadcaster.Publish(realtime.Event{Type: realtime.EventQuestionUpdate, Payload: *question})

	notification, err := h.notifications.Create(c.Request.Context(), notify.CreateInput{
		UserID:    question.AskedBy,
		Actor:     question.AskedBy,
		Type:      notify.TypeQuestion,
		Message:   fmt.Sprintf("Your question %q has been posted successfully", question.Title),
		RelatedID: question.ID,
	})
	if err != nil {
		h.logger.Warn("question notification failed", zap.Error(err), zap.String("question_id", question.ID))
	}
	if notification != nil {
		h.broadcaster.Publish(realtime.Event{Type: realtime.EventNotificationUpdate, Payload: *notification})
	}

	c.JSON(http.StatusOK, question)
}

// voteQuestion builds the shared handler for the up and down vote endpoints.
func (h *httpHandler) voteQuestion(voteType forum.VoteType) gin.HandlerFunc {
	return func(c *gin.Context) {
		var payload votePayload
		if err := c.ShouldBindJSON(&payload); err != nil || payload.Qid == "" || payload.Username == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "qid and username are required"})
			return
		}

		result, err := h.forum.ToggleVote(c.Request.Context(), payload.Qid, forum.DocumentTypeQuestion, payload.Username, voteType)
		if err != nil {
			h.respondServiceError(c, err)
			return
		}

		h.broadcaster.Publish(realtime.Event{
			Type: realtime.EventVoteUpdate,
			Payload: realtime.VoteUpdatePayload{
				Qid:       payload.Qid,
				UpVotes:   result.UpVotes,
				DownVotes: result.DownVotes,
			},
		})

		if voteType == forum.VoteTypeUpvote && h.notifications.MilestoneReached(len(result.UpVotes)) {
			h.emitQuestionMilestone(c, payload.Qid, payload.Username, len(result.UpVotes))
		}

		c.JSON(http.StatusOK, result)
	}
}

// emitQuestionMilestone notifies the asker that their question hit an upvote
// threshold. Failures are logged, never surfaced: the vote already succeeded.
func (h *httpHandler) emitQuestionMilestone(c *gin.Context, questionID, voter string, upvoteCount int) {
	question, err := h.forum.Question(c.Request.Context(), questionID)
	if err != nil {
		h.logger.Warn("milestone lookup failed", zap.Error(err), zap.String("question_id", questionID))
		return
	}

	plural := "s"
	if upvoteCount == 1 {
		plural = ""
	}
	notification, err := h.notifications.Create(c.Request.Context(), notify.CreateInput{
		UserID:    question.AskedBy,
		Actor:     voter,
		Type:      notify.TypeVote,
		Message:   fmt.Sprintf("Congratulations! Your question %q has reached %d upvote%s!", question.Title, upvoteCount, plural),
		RelatedID: questionID,
	})
	if err != nil {
		h.logger.Warn("milestone notification failed", zap.Error(err), zap.String("question_id", questionID))
		return
	}
	if notification != nil {
		h.broadcaster.Publish(realtime.Event{Type: realtime.EventNotificationUpdate, Payload: *notification})
	}
}
