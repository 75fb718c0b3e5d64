package forum

import (
	"context"
	"time"
)

// Seed populates the database with a small set of sample profiles,
// questions, answers and votes for local development.
func Seed(ctx context.Context, service *Service) error {
	base := time.Date(2026, time.January, 10, 9, 0, 0, 0, time.UTC)

	profiles := []ProfileInput{
		{Username: "sana", Title: "Frontend developer", Bio: "React and design systems."},
		{Username: "hamkalo", Title: "Backend engineer", Bio: "Databases and queues."},
		{Username: "azad", Title: "Student", Bio: "Learning web development."},
	}
	for _, input := range profiles {
		if _, err := service.AddProfile(ctx, input); err != nil {
			return err
		}
	}

	type seedAnswer struct {
		input AnswerInput
		votes []string
	}
	type seedQuestion struct {
		input   QuestionInput
		votes   []string
		answers []seedAnswer
		comment *CommentInput
	}

	questions := []seedQuestion{
		{
			input: QuestionInput{
				Title:       "Programmatically navigate using React router",
				Text:        "The meaning of webpack's CommonsChunkPlugin and how to use it with the React router correctly.",
				TagNames:    []string{"react", "javascript"},
				AskedBy:     "sana",
				AskDateTime: base,
			},
			votes: []string{"hamkalo", "azad"},
			answers: []seedAnswer{
				{
					input: AnswerInput{
						Text:        "React Router is mostly a wrapper around the history library. Use the useNavigate hook.",
						AnsBy:       "hamkalo",
						AnsDateTime: base.Add(2 * time.Hour),
					},
					votes: []string{"sana"},
				},
				{
					input: AnswerInput{
						Text:        "On a historical note, earlier versions exposed withRouter for the same purpose.",
						AnsBy:       "azad",
						AnsDateTime: base.Add(5 * time.Hour),
					},
				},
			},
			comment: &CommentInput{
				Text:            "Does this still apply to v6?",
				CommentBy:       "azad",
				CommentDateTime: base.Add(6 * time.Hour),
			},
		},
		{
			input: QuestionInput{
				Title:       "android studio save string shared preference, start activity and load the saved string",
				Text:        "I am using bottom navigation view but am using custom navigation, so my fragments are not recreated every time i switch to a different view.",
				TagNames:    []string{"android-studio", "shared-preferences"},
				AskedBy:     "azad",
				AskDateTime: base.Add(24 * time.Hour),
			},
			votes: []string{"sana"},
			answers: []seedAnswer{
				{
					input: AnswerInput{
						Text:        "Store a reference to the fragment and reuse it instead of recreating it in onNavigationItemSelected.",
						AnsBy:       "sana",
						AnsDateTime: base.Add(26 * time.Hour),
					},
				},
			},
		},
		{
			input: QuestionInput{
				Title:       "Object storage for a web application",
				Text:        "I am currently working on a website where, roughly 40 million documents and images should be served to its users. I need suggestions on which method is the best for storing content with subject to these requirements.",
				TagNames:    []string{"storage", "website"},
				AskedBy:     "hamkalo",
				AskDateTime: base.Add(48 * time.Hour),
			},
		},
	}

	for _, seed := range questions {
		question, err := service.AddQuestion(ctx, seed.input)
		if err != nil {
			return err
		}
		for _, voter := range seed.votes {
			if _, err := service.ToggleVote(ctx, question.ID, DocumentTypeQuestion, voter, VoteTypeUpvote); err != nil {
				return err
			}
		}
		for _, seedAns := range seed.answers {
			answer, err := service.AddAnswer(ctx, question.ID, seedAns.input)
			if err != nil {
				return err
			}
			for _, voter := range seedAns.votes {
				if _, err := service.ToggleVote(ctx, answer.ID, DocumentTypeAnswer, voter, VoteTypeUpvote); err != nil {
					return err
				}
			}
		}
		if seed.comment != nil {
			if _, err := service.AddComment(ctx, question.ID, DocumentTypeQuestion, *seed.comment); err != nil {
				return err
			}
		}
	}

	return nil
}
