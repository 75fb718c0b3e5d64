package forum

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// staticIDGenerator hands out the configured ids first, then falls back to a
// sequential scheme so tag creation never exhausts a test's id budget.
type staticIDGenerator struct {
	ids  []string
	next int
}

func (g *staticIDGenerator) NewID() (string, error) {
	if g.next < len(g.ids) {
		id := g.ids[g.next]
		g.next++
		return id, nil
	}
	g.next++
	return fmt.Sprintf("generated-%04d", g.next), nil
}

type failingIDGenerator struct{}

func (failingIDGenerator) NewID() (string, error) {
	return "", errors.New("id generation unavailable")
}

func newTestService(t *testing.T, ids []string) (*Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:forum_test_%s_%d?mode=memory&cache=shared", t.Name(), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Question{}, &Answer{}, &Comment{}, &Tag{}, &Profile{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	generator := &staticIDGenerator{ids: ids}
	clock := func() time.Time { return time.Unix(1767400000, 0).UTC() }

	service, err := NewService(ServiceConfig{
		Database:   db,
		Clock:      clock,
		IDProvider: generator,
	})
	if err != nil {
		t.Fatalf("failed to construct forum service: %v", err)
	}

	return service, db
}

func mustAddProfile(t *testing.T, service *Service, username string) {
	t.Helper()
	if _, err := service.AddProfile(context.Background(), ProfileInput{Username: username}); err != nil {
		t.Fatalf("failed to add profile %q: %v", username, err)
	}
}

func mustAddQuestion(t *testing.T, service *Service, title, askedBy string, askedAt time.Time) *PopulatedQuestion {
	t.Helper()
	question, err := service.AddQuestion(context.Background(), QuestionInput{
		Title:       title,
		Text:        "body of " + title,
		TagNames:    []string{"go"},
		AskedBy:     askedBy,
		AskDateTime: askedAt,
	})
	if err != nil {
		t.Fatalf("failed to add question %q: %v", title, err)
	}
	return question
}

func mustProfileRow(t *testing.T, db *gorm.DB, username string) Profile {
	t.Helper()
	var profile Profile
	if err := db.Where("username = ?", username).Take(&profile).Error; err != nil {
		t.Fatalf("failed to fetch profile %q: %v", username, err)
	}
	return profile
}
