package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/agoraforum/agora/backend/internal/auth"
	"github.com/agoraforum/agora/backend/internal/forum"
	"github.com/agoraforum/agora/backend/internal/notify"
	"github.com/agoraforum/agora/backend/internal/realtime"
	"github.com/agoraforum/agora/backend/internal/server"
	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const jsonContentType = "application/json"

// TestForumLifecycleFlow drives the whole system over HTTP: profiles are
// created, a question is asked and answered, votes land, and the asker's
// profile reflects the accumulated statistics and notifications at the end.
func TestForumLifecycleFlow(testContext *testing.T) {
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:forum_integration_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&forum.Question{}, &forum.Answer{}, &forum.Comment{}, &forum.Tag{}, &forum.Profile{}, &notify.Notification{}); err != nil {
		testContext.Fatalf("failed to migrate: %v", err)
	}

	forumService, err := forum.NewService(forum.ServiceConfig{
		Database:   db,
		IDProvider: forum.NewUUIDProvider(),
		Logger:     zap.NewNop(),
	})
	if err != nil {
		testContext.Fatalf("failed to build forum service: %v", err)
	}
	notificationService, err := notify.NewService(notify.ServiceConfig{
		Database:   db,
		IDProvider: forum.NewUUIDProvider(),
		Logger:     zap.NewNop(),
		Thresholds: []int{1, 5, 20},
	})
	if err != nil {
		testContext.Fatalf("failed to build notification service: %v", err)
	}
	sessionIssuer := auth.NewSessionIssuer(auth.SessionIssuerConfig{
		SigningSecret: []byte("integration-secret"),
		Issuer:        "agora-auth",
		Audience:      "agora-api",
		TokenTTL:      time.Hour,
	})

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Forum:         forumService,
		Notifications: notificationService,
		Broadcaster:   realtime.NewBroadcaster(),
		Sessions:      sessionIssuer,
		Logger:        zap.NewNop(),
	})
	if err != nil {
		testContext.Fatalf("failed to build handler: %v", err)
	}

	testServer := httptest.NewServer(handler)
	defer testServer.Close()

	for _, username := range []string{"sana", "hamkalo", "azad"} {
		postJSON(testContext, testServer.URL+"/profile/addProfile", map[string]string{"username": username}, http.StatusOK)
	}

	questionBody := postJSON(testContext, testServer.URL+"/question/addQuestion", map[string]any{
		"title":       "How do I cancel a context?",
		"text":        "The worker keeps running after the request ends.",
		"tags":        []string{"go", "context"},
		"askedBy":     "sana",
		"askDateTime": "2026-01-10T09:00:00Z",
	}, http.StatusOK)
	var question struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(questionBody, &question); err != nil {
		testContext.Fatalf("failed to decode question: %v", err)
	}
	if question.ID == "" {
		testContext.Fatalf("expected question id in response")
	}

	answerBody := postJSON(testContext, testServer.URL+"/answer/addAnswer", map[string]any{
		"qid": question.ID,
		"ans": map[string]string{
			"text":        "Derive it with context.WithCancel and defer the cancel.",
			"ansBy":       "hamkalo",
			"ansDateTime": "2026-01-10T10:00:00Z",
		},
	}, http.StatusOK)
	var answer struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(answerBody, &answer); err != nil {
		testContext.Fatalf("failed to decode answer: %v", err)
	}

	for _, voter := range []string{"hamkalo", "azad"} {
		postJSON(testContext, testServer.URL+"/question/upvoteQuestion", map[string]string{
			"qid":      question.ID,
			"username": voter,
		}, http.StatusOK)
	}
	postJSON(testContext, testServer.URL+"/answer/upvoteAnswer", map[string]string{
		"aid":      answer.ID,
		"username": "azad",
	}, http.StatusOK)

	postJSON(testContext, testServer.URL+"/comment/addComment", map[string]any{
		"id":   question.ID,
		"type": "question",
		"comment": map[string]string{
			"text":            "Same problem here.",
			"commentBy":       "azad",
			"commentDateTime": "2026-01-10T11:00:00Z",
		},
	}, http.StatusOK)

	profileResp, err := http.Get(testServer.URL + "/profile/getProfile/sana")
	if err != nil {
		testContext.Fatalf("profile request failed: %v", err)
	}
	defer profileResp.Body.Close()
	if profileResp.StatusCode != http.StatusOK {
		testContext.Fatalf("unexpected profile status: %d", profileResp.StatusCode)
	}
	var profile struct {
		Username       string `json:"username"`
		Reputation     int    `json:"reputation"`
		QuestionsAsked []struct {
			ID       string   `json:"id"`
			UpVotes  []string `json:"upVotes"`
			Comments []struct {
				Text string `json:"text"`
			} `json:"comments"`
		} `json:"questionsAsked"`
		TopTags []struct {
			Name string `json:"name"`
		} `json:"topTags"`
	}
	if err := json.NewDecoder(profileResp.Body).Decode(&profile); err != nil {
		testContext.Fatalf("failed to decode profile: %v", err)
	}
	if profile.Reputation != 2 {
		testContext.Fatalf("expected reputation 2 from two upvotes, got %d", profile.Reputation)
	}
	if len(profile.QuestionsAsked) != 1 || len(profile.QuestionsAsked[0].UpVotes) != 2 {
		testContext.Fatalf("unexpected questionsAsked state: %#v", profile.QuestionsAsked)
	}
	if len(profile.QuestionsAsked[0].Comments) != 1 {
		testContext.Fatalf("expected one comment on the question, got %#v", profile.QuestionsAsked[0].Comments)
	}
	if len(profile.TopTags) != 2 {
		testContext.Fatalf("expected two top tags, got %#v", profile.TopTags)
	}

	// sana gets the posted confirmation, the first-upvote milestone, and the
	// comment notification; the second upvote lands on no threshold.
	notificationsResp, err := http.Get(testServer.URL + "/notifications/sana")
	if err != nil {
		testContext.Fatalf("notifications request failed: %v", err)
	}
	defer notificationsResp.Body.Close()
	var notifications []struct {
		ID      string `json:"id"`
		Type    string `json:"type"`
		Read    bool   `json:"read"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(notificationsResp.Body).Decode(&notifications); err != nil {
		testContext.Fatalf("failed to decode notifications: %v", err)
	}
	counts := map[string]int{}
	for _, notification := range notifications {
		counts[notification.Type]++
		if notification.Read {
			testContext.Fatalf("expected all notifications unread, got %#v", notification)
		}
	}
	if counts["question"] != 1 || counts["vote"] != 1 || counts["reply"] != 2 {
		testContext.Fatalf("unexpected notification mix: %#v", counts)
	}

	markReq, _ := http.NewRequest(http.MethodPatch, testServer.URL+"/notifications/"+notifications[0].ID+"/read", nil)
	markResp, err := http.DefaultClient.Do(markReq)
	if err != nil {
		testContext.Fatalf("mark read request failed: %v", err)
	}
	defer markResp.Body.Close()
	if markResp.StatusCode != http.StatusOK {
		testContext.Fatalf("unexpected mark read status: %d", markResp.StatusCode)
	}

	// The voters' profiles mirror what they upvoted.
	mirror, err := forumService.ProfileByUsername(context.Background(), "azad")
	if err != nil {
		testContext.Fatalf("failed to load voter profile: %v", err)
	}
	if len(mirror.QuestionsUpvoted) != 1 || mirror.QuestionsUpvoted[0] != question.ID {
		testContext.Fatalf("unexpected questionsUpvoted mirror: %#v", mirror.QuestionsUpvoted)
	}
	if len(mirror.AnswersUpvoted) != 1 || mirror.AnswersUpvoted[0] != answer.ID {
		testContext.Fatalf("unexpected answersUpvoted mirror: %#v", mirror.AnswersUpvoted)
	}
}

func postJSON(testContext *testing.T, url string, payload any, wantStatus int) []byte {
	testContext.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		testContext.Fatalf("failed to encode payload: %v", err)
	}
	resp, err := http.Post(url, jsonContentType, bytes.NewReader(body))
	if err != nil {
		testContext.Fatalf("request to %s failed: %v", url, err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		testContext.Fatalf("failed to read response from %s: %v", url, err)
	}
	if resp.StatusCode != wantStatus {
		testContext.Fatalf("unexpected status %d from %s: %s", resp.StatusCode, url, buf.String())
	}
	return buf.Bytes()
}
