package forum

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestToggleSetsKeepsSetsDisjoint(t *testing.T) {
	tests := []struct {
		name          string
		upVotes       StringList
		downVotes     StringList
		voteType      VoteType
		wantUpVotes   []string
		wantDownVotes []string
	}{
		{
			name:          "upvote from clean state",
			upVotes:       StringList{},
			downVotes:     StringList{},
			voteType:      VoteTypeUpvote,
			wantUpVotes:   []string{"hamkalo"},
			wantDownVotes: []string{},
		},
		{
			name:          "upvote again cancels",
			upVotes:       StringList{"hamkalo"},
			downVotes:     StringList{},
			voteType:      VoteTypeUpvote,
			wantUpVotes:   []string{},
			wantDownVotes: []string{},
		},
		{
			name:          "upvote while downvoted switches sets",
			upVotes:       StringList{},
			downVotes:     StringList{"hamkalo"},
			voteType:      VoteTypeUpvote,
			wantUpVotes:   []string{"hamkalo"},
			wantDownVotes: []string{},
		},
		{
			name:          "downvote while upvoted switches sets",
			upVotes:       StringList{"hamkalo", "sana"},
			downVotes:     StringList{},
			voteType:      VoteTypeDownvote,
			wantUpVotes:   []string{"sana"},
			wantDownVotes: []string{"hamkalo"},
		},
		{
			name:          "downvote again cancels",
			upVotes:       StringList{},
			downVotes:     StringList{"hamkalo"},
			voteType:      VoteTypeDownvote,
			wantUpVotes:   []string{},
			wantDownVotes: []string{},
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			upVotes, downVotes := toggleSets(testCase.upVotes, testCase.downVotes, "hamkalo", testCase.voteType)
			assertSameMembers(t, "upVotes", upVotes, testCase.wantUpVotes)
			assertSameMembers(t, "downVotes", downVotes, testCase.wantDownVotes)
			for _, member := range upVotes {
				if downVotes.Contains(member) {
					t.Fatalf("user %q present in both vote sets", member)
				}
			}
		})
	}
}

func TestToggleVoteUpvoteThenCancelMirrorsProfile(t *testing.T) {
	service, db := newTestService(t, nil)
	ctx := context.Background()

	mustAddProfile(t, service, "sana")
	mustAddProfile(t, service, "hamkalo")
	question := mustAddQuestion(t, service, "First question", "sana", time.Unix(1767300000, 0).UTC())

	result, err := service.ToggleVote(ctx, question.ID, DocumentTypeQuestion, "hamkalo", VoteTypeUpvote)
	if err != nil {
		t.Fatalf("unexpected error on upvote: %v", err)
	}
	if result.Message != "question upvoted successfully" {
		t.Fatalf("unexpected message: %q", result.Message)
	}
	assertSameMembers(t, "upVotes", result.UpVotes, []string{"hamkalo"})
	assertSameMembers(t, "downVotes", result.DownVotes, []string{})

	profile := mustProfileRow(t, db, "hamkalo")
	if !profile.QuestionsUpvoted.Contains(question.ID) {
		t.Fatalf("expected question id in questionsUpvoted mirror, got %v", profile.QuestionsUpvoted)
	}

	result, err = service.ToggleVote(ctx, question.ID, DocumentTypeQuestion, "hamkalo", VoteTypeUpvote)
	if err != nil {
		t.Fatalf("unexpected error on cancel: %v", err)
	}
	if result.Message != "Upvote cancelled successfully" {
		t.Fatalf("unexpected cancellation message: %q", result.Message)
	}
	assertSameMembers(t, "upVotes", result.UpVotes, []string{})

	profile = mustProfileRow(t, db, "hamkalo")
	if profile.QuestionsUpvoted.Contains(question.ID) {
		t.Fatalf("expected mirror entry removed after cancellation, got %v", profile.QuestionsUpvoted)
	}
}

func TestToggleVoteSwitchesDirection(t *testing.T) {
	service, db := newTestService(t, nil)
	ctx := context.Background()

	mustAddProfile(t, service, "sana")
	mustAddProfile(t, service, "hamkalo")
	question := mustAddQuestion(t, service, "Switching votes", "sana", time.Unix(1767300000, 0).UTC())

	if _, err := service.ToggleVote(ctx, question.ID, DocumentTypeQuestion, "hamkalo", VoteTypeUpvote); err != nil {
		t.Fatalf("unexpected error on upvote: %v", err)
	}
	result, err := service.ToggleVote(ctx, question.ID, DocumentTypeQuestion, "hamkalo", VoteTypeDownvote)
	if err != nil {
		t.Fatalf("unexpected error on downvote: %v", err)
	}
	if result.Message != "question downvoted successfully" {
		t.Fatalf("unexpected message: %q", result.Message)
	}
	assertSameMembers(t, "upVotes", result.UpVotes, []string{})
	assertSameMembers(t, "downVotes", result.DownVotes, []string{"hamkalo"})

	profile := mustProfileRow(t, db, "hamkalo")
	if profile.QuestionsUpvoted.Contains(question.ID) {
		t.Fatalf("expected upvote mirror cleared after switching to downvote")
	}
}

func TestToggleVoteSequenceReturnsToBaseline(t *testing.T) {
	service, db := newTestService(t, nil)
	ctx := context.Background()

	mustAddProfile(t, service, "sana")
	mustAddProfile(t, service, "hamkalo")
	question := mustAddQuestion(t, service, "Vote churn", "sana", time.Unix(1767300000, 0).UTC())

	steps := []VoteType{VoteTypeUpvote, VoteTypeDownvote, VoteTypeDownvote}
	var result *VoteResult
	for _, voteType := range steps {
		var err error
		result, err = service.ToggleVote(ctx, question.ID, DocumentTypeQuestion, "hamkalo", voteType)
		if err != nil {
			t.Fatalf("unexpected error on %s: %v", voteType, err)
		}
		for _, member := range result.UpVotes {
			if StringList(result.DownVotes).Contains(member) {
				t.Fatalf("user %q present in both vote sets after %s", member, voteType)
			}
		}
	}

	if result.Message != "Downvote cancelled successfully" {
		t.Fatalf("unexpected final message: %q", result.Message)
	}
	assertSameMembers(t, "upVotes", result.UpVotes, []string{})
	assertSameMembers(t, "downVotes", result.DownVotes, []string{})

	profile := mustProfileRow(t, db, "hamkalo")
	if len(profile.QuestionsUpvoted) != 0 {
		t.Fatalf("expected empty upvote mirror after churn, got %v", profile.QuestionsUpvoted)
	}
}

func TestToggleVoteOnAnswerMirrorsAnswersUpvoted(t *testing.T) {
	service, db := newTestService(t, nil)
	ctx := context.Background()

	mustAddProfile(t, service, "sana")
	mustAddProfile(t, service, "hamkalo")
	question := mustAddQuestion(t, service, "Answer voting", "sana", time.Unix(1767300000, 0).UTC())
	answer, err := service.AddAnswer(ctx, question.ID, AnswerInput{
		Text:        "use a channel",
		AnsBy:       "hamkalo",
		AnsDateTime: time.Unix(1767301000, 0).UTC(),
	})
	if err != nil {
		t.Fatalf("unexpected error adding answer: %v", err)
	}

	result, err := service.ToggleVote(ctx, answer.ID, DocumentTypeAnswer, "sana", VoteTypeUpvote)
	if err != nil {
		t.Fatalf("unexpected error on answer upvote: %v", err)
	}
	if result.Message != "answer upvoted successfully" {
		t.Fatalf("unexpected message: %q", result.Message)
	}

	profile := mustProfileRow(t, db, "sana")
	if !profile.AnswersUpvoted.Contains(answer.ID) {
		t.Fatalf("expected answer id in answersUpvoted mirror, got %v", profile.AnswersUpvoted)
	}
	if len(profile.QuestionsUpvoted) != 0 {
		t.Fatalf("answer vote must not touch questionsUpvoted, got %v", profile.QuestionsUpvoted)
	}
}

func TestToggleVoteMissingDocument(t *testing.T) {
	service, _ := newTestService(t, nil)
	mustAddProfile(t, service, "hamkalo")

	_, err := service.ToggleVote(context.Background(), "absent", DocumentTypeQuestion, "hamkalo", VoteTypeUpvote)
	if !errors.Is(err, ErrQuestionNotFound) {
		t.Fatalf("expected ErrQuestionNotFound, got %v", err)
	}

	_, err = service.ToggleVote(context.Background(), "absent", DocumentTypeAnswer, "hamkalo", VoteTypeDownvote)
	if !errors.Is(err, ErrAnswerNotFound) {
		t.Fatalf("expected ErrAnswerNotFound, got %v", err)
	}
}

func TestToggleVoteRejectsBadInput(t *testing.T) {
	service, _ := newTestService(t, nil)

	if _, err := service.ToggleVote(context.Background(), " ", DocumentTypeQuestion, "hamkalo", VoteTypeUpvote); !errors.Is(err, ErrInvalidDocumentID) {
		t.Fatalf("expected ErrInvalidDocumentID, got %v", err)
	}
	if _, err := service.ToggleVote(context.Background(), "q1", DocumentTypeQuestion, "", VoteTypeUpvote); !errors.Is(err, ErrInvalidUsername) {
		t.Fatalf("expected ErrInvalidUsername, got %v", err)
	}
	if _, err := service.ToggleVote(context.Background(), "q1", DocumentTypeQuestion, "hamkalo", VoteType("sideways")); !errors.Is(err, ErrInvalidVoteType) {
		t.Fatalf("expected ErrInvalidVoteType, got %v", err)
	}
}

func TestToggleVoteWithoutProfileReportsSyncFailure(t *testing.T) {
	service, db := newTestService(t, nil)
	ctx := context.Background()

	mustAddProfile(t, service, "sana")
	question := mustAddQuestion(t, service, "Ghost voter", "sana", time.Unix(1767300000, 0).UTC())

	_, err := service.ToggleVote(ctx, question.ID, DocumentTypeQuestion, "ghost", VoteTypeUpvote)
	if !errors.Is(err, ErrProfileSync) {
		t.Fatalf("expected ErrProfileSync, got %v", err)
	}

	// The vote itself stays committed even though the mirror failed.
	var stored Question
	if err := db.Where("question_id = ?", question.ID).Take(&stored).Error; err != nil {
		t.Fatalf("failed to fetch question: %v", err)
	}
	if !stored.UpVotes.Contains("ghost") {
		t.Fatalf("expected committed vote to survive mirror failure, got %v", stored.UpVotes)
	}
}

func TestRepairProfileMirrorsRebuildsFromVoteSets(t *testing.T) {
	service, db := newTestService(t, nil)
	ctx := context.Background()

	mustAddProfile(t, service, "sana")
	mustAddProfile(t, service, "hamkalo")
	question := mustAddQuestion(t, service, "Drifted state", "sana", time.Unix(1767300000, 0).UTC())
	answer, err := service.AddAnswer(ctx, question.ID, AnswerInput{
		Text:        "reconcile it",
		AnsBy:       "sana",
		AnsDateTime: time.Unix(1767301000, 0).UTC(),
	})
	if err != nil {
		t.Fatalf("unexpected error adding answer: %v", err)
	}
	if _, err := service.ToggleVote(ctx, question.ID, DocumentTypeQuestion, "hamkalo", VoteTypeUpvote); err != nil {
		t.Fatalf("unexpected error on vote: %v", err)
	}
	if _, err := service.ToggleVote(ctx, answer.ID, DocumentTypeAnswer, "hamkalo", VoteTypeUpvote); err != nil {
		t.Fatalf("unexpected error on vote: %v", err)
	}

	// Simulate drift: the process died between vote commit and mirror write.
	err = db.Model(&Profile{}).Where("username = ?", "hamkalo").Updates(map[string]interface{}{
		"questions_upvoted": StringList{"stale-question"},
		"answers_upvoted":   StringList{},
	}).Error
	if err != nil {
		t.Fatalf("failed to corrupt mirror: %v", err)
	}

	if err := service.RepairProfileMirrors(ctx, "hamkalo"); err != nil {
		t.Fatalf("unexpected error repairing mirrors: %v", err)
	}

	profile := mustProfileRow(t, db, "hamkalo")
	assertSameMembers(t, "questionsUpvoted", profile.QuestionsUpvoted.Strings(), []string{question.ID})
	assertSameMembers(t, "answersUpvoted", profile.AnswersUpvoted.Strings(), []string{answer.ID})
}

func TestRepairProfileMirrorsMissingProfile(t *testing.T) {
	service, _ := newTestService(t, nil)
	err := service.RepairProfileMirrors(context.Background(), "nobody")
	if !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
}

func assertSameMembers(t *testing.T, label string, got []string, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: expected %v, got %v", label, want, got)
	}
	for _, member := range want {
		if !StringList(got).Contains(member) {
			t.Fatalf("%s: expected member %q in %v", label, member, got)
		}
	}
}
