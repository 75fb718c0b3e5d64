package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/agoraforum/agora/backend/internal/auth"
	"github.com/agoraforum/agora/backend/internal/forum"
	"github.com/agoraforum/agora/backend/internal/notify"
	"github.com/agoraforum/agora/backend/internal/realtime"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	errMissingForumService        = errors.New("forum service dependency required")
	errMissingNotificationService = errors.New("notification service dependency required")
	errMissingBroadcaster         = errors.New("broadcaster dependency required")
	errMissingSessionIssuer       = errors.New("session issuer dependency required")
)

// Dependencies wires the HTTP layer to the services it fronts.
type Dependencies struct {
	Forum         *forum.Service
	Notifications *notify.Service
	Broadcaster   *realtime.Broadcaster
	Sessions      *auth.SessionIssuer
	Logger        *zap.Logger
}

// NewHTTPHandler builds the full route table.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Forum == nil {
		return nil, errMissingForumService
	}
	if deps.Notifications == nil {
		return nil, errMissingNotificationService
	}
	if deps.Broadcaster == nil {
		return nil, errMissingBroadcaster
	}
	if deps.Sessions == nil {
		return nil, errMissingSessionIssuer
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		forum:         deps.Forum,
		notifications: deps.Notifications,
		broadcaster:   deps.Broadcaster,
		sessions:      deps.Sessions,
		logger:        logger,
	}

	router.POST("/auth/session", handler.handleCreateSession)
	router.GET("/socket", handler.handleSocket)

	question := router.Group("/question")
	question.GET("/getQuestion", handler.handleListQuestions)
	question.GET("/getQuestionById/:qid", handler.handleQuestionByID)
	question.POST("/addQuestion", handler.handleAddQuestion)
	question.POST("/upvoteQuestion", handler.voteQuestion(forum.VoteTypeUpvote))
	question.POST("/downvoteQuestion", handler.voteQuestion(forum.VoteTypeDownvote))

	answer := router.Group("/answer")
	answer.POST("/addAnswer", handler.handleAddAnswer)
	answer.POST("/upvoteAnswer", handler.voteAnswer(forum.VoteTypeUpvote))
	answer.POST("/downvoteAnswer", handler.voteAnswer(forum.VoteTypeDownvote))

	comment := router.Group("/comment")
	comment.POST("/addComment", handler.handleAddComment)

	profile := router.Group("/profile")
	profile.POST("/addProfile", handler.handleAddProfile)
	profile.GET("/getProfile/:username", handler.handleGetProfile)
	profile.POST("/updateProfile/:username", handler.handleUpdateProfile)

	router.GET("/notifications/:userId", handler.handleListNotifications)
	router.PATCH("/notifications/:notificationId/read", handler.handleMarkNotificationRead)

	return router, nil
}

type httpHandler struct {
	forum         *forum.Service
	notifications *notify.Service
	broadcaster   *realtime.Broadcaster
	sessions      *auth.SessionIssuer
	logger        *zap.Logger
}

// respondServiceError maps service failures onto HTTP statuses: missing
// documents are 404, rejected input is 400, everything else is 500. A sync
// failure after a committed primary write also lands here as 500; the
// primary effect stands.
func (h *httpHandler) respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, forum.ErrQuestionNotFound),
		errors.Is(err, forum.ErrAnswerNotFound),
		errors.Is(err, forum.ErrProfileNotFound),
		errors.Is(err, notify.ErrNotificationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, forum.ErrInvalidQuestion),
		errors.Is(err, forum.ErrInvalidAnswer),
		errors.Is(err, forum.ErrInvalidComment),
		errors.Is(err, forum.ErrInvalidDocumentID),
		errors.Is(err, forum.ErrInvalidUsername),
		errors.Is(err, forum.ErrInvalidDocumentType),
		errors.Is(err, forum.ErrInvalidVoteType),
		errors.Is(err, forum.ErrProfileExists),
		errors.Is(err, notify.ErrInvalidNotification):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

type sessionRequestPayload struct {
	UID      string `json:"uid"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

type sessionResponsePayload struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// handleCreateSession exchanges the identity asserted by the external auth
// provider for a backend session token used on the socket endpoint.
func (h *httpHandler) handleCreateSession(c *gin.Context) {
	var request sessionRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || request.Username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	token, expiresIn, err := h.sessions.IssueSessionToken(c.Request.Context(), auth.Identity{
		UID:      request.UID,
		Email:    request.Email,
		Username: request.Username,
	})
	if err != nil {
		h.logger.Error("failed to issue session token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}

	c.JSON(http.StatusOK, sessionResponsePayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
	})
}
