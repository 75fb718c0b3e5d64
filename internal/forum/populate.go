package forum

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PopulatedQuestion is a question with every stored reference resolved into
// its full sub-document. Stored rows hold ids only; this is the populated
// side of that split, and the shape the HTTP and broadcast layers emit.
type PopulatedQuestion struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Text        string            `json:"text"`
	Tags        []Tag             `json:"tags"`
	AskedBy     string            `json:"askedBy"`
	AskDateTime time.Time         `json:"askDateTime"`
	Answers     []PopulatedAnswer `json:"answers"`
	Views       []string          `json:"views"`
	UpVotes     []string          `json:"upVotes"`
	DownVotes   []string          `json:"downVotes"`
	Comments    []Comment         `json:"comments"`
}

// PopulatedAnswer is an answer with its comments resolved.
type PopulatedAnswer struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	AnsBy       string    `json:"ansBy"`
	AnsDateTime time.Time `json:"ansDateTime"`
	QuestionID  string    `json:"question"`
	Comments    []Comment `json:"comments"`
	UpVotes     []string  `json:"upVotes"`
	DownVotes   []string  `json:"downVotes"`
}

// ProfileView is a populated profile plus the derived statistics computed on
// every read.
type ProfileView struct {
	Username         string              `json:"username"`
	Title            string              `json:"title"`
	Bio              string              `json:"bio"`
	AnswersGiven     []PopulatedAnswer   `json:"answersGiven"`
	QuestionsAsked   []PopulatedQuestion `json:"questionsAsked"`
	QuestionsUpvoted []string            `json:"questionsUpvoted"`
	AnswersUpvoted   []string            `json:"answersUpvoted"`
	JoinedWhen       time.Time           `json:"joinedWhen"`
	Following        []string            `json:"following"`
	TopTags          []TagScore          `json:"topTags"`
	BadgeCount       BadgeCount          `json:"badgeCount"`
	Reputation       int                 `json:"reputation"`
}

// populateQuestion resolves a question's tags, answers and comments.
func (s *Service) populateQuestion(ctx context.Context, questionID string) (*PopulatedQuestion, error) {
	db := s.db.WithContext(ctx)

	var question Question
	err := db.Where("question_id = ?", questionID).Take(&question).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, newServiceError(opQuestionByID, "question_missing", ErrQuestionNotFound)
	}
	if err != nil {
		return nil, newServiceError(opQuestionByID, "query_failed", err)
	}

	tags, err := s.tagsByIDs(db, question.Tags)
	if err != nil {
		return nil, newServiceError(opQuestionByID, "tag_populate_failed", err)
	}
	comments, err := s.commentsByIDs(db, question.Comments)
	if err != nil {
		return nil, newServiceError(opQuestionByID, "comment_populate_failed", err)
	}

	answers := make([]PopulatedAnswer, 0, len(question.Answers))
	for _, answerID := range question.Answers {
		answer, err := s.populateAnswerWith(db, answerID)
		if err != nil {
			return nil, err
		}
		answers = append(answers, *answer)
	}

	return &PopulatedQuestion{
		ID:          question.ID,
		Title:       question.Title,
		Text:        question.Text,
		Tags:        tags,
		AskedBy:     question.AskedBy,
		AskDateTime: question.AskDateTime,
		Answers:     answers,
		Views:       question.Views.Strings(),
		UpVotes:     question.UpVotes.Strings(),
		DownVotes:   question.DownVotes.Strings(),
		Comments:    comments,
	}, nil
}

// populateAnswer resolves an answer's comments.
func (s *Service) populateAnswer(ctx context.Context, answerID string) (*PopulatedAnswer, error) {
	return s.populateAnswerWith(s.db.WithContext(ctx), answerID)
}

func (s *Service) populateAnswerWith(db *gorm.DB, answerID string) (*PopulatedAnswer, error) {
	var answer Answer
	err := db.Where("answer_id = ?", answerID).Take(&answer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, newServiceError(opAddAnswer, "answer_missing", ErrAnswerNotFound)
	}
	if err != nil {
		return nil, newServiceError(opAddAnswer, "query_failed", err)
	}

	comments, err := s.commentsByIDs(db, answer.Comments)
	if err != nil {
		return nil, newServiceError(opAddAnswer, "comment_populate_failed", err)
	}

	return &PopulatedAnswer{
		ID:          answer.ID,
		Text:        answer.Text,
		AnsBy:       answer.AnsBy,
		AnsDateTime: answer.AnsDateTime,
		QuestionID:  answer.QuestionID,
		Comments:    comments,
		UpVotes:     answer.UpVotes.Strings(),
		DownVotes:   answer.DownVotes.Strings(),
	}, nil
}

// ProfileByUsername fetches a profile, resolves its authored documents and
// computes the derived statistics. Stats are recomputed on every read; the
// domain is one user's authored content, so no caching is warranted.
func (s *Service) ProfileByUsername(ctx context.Context, username string) (*ProfileView, error) {
	username, err := ValidateUsername(username)
	if err != nil {
		return nil, newServiceError(opGetProfile, "invalid_username", err)
	}

	var profile Profile
	err = s.db.WithContext(ctx).Where("username = ?", username).Take(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, newServiceError(opGetProfile, "profile_missing", ErrProfileNotFound)
	}
	if err != nil {
		s.logError(opGetProfile, "query_failed", err, zap.String("username", username))
		return nil, newServiceError(opGetProfile, "query_failed", err)
	}

	questions := make([]PopulatedQuestion, 0, len(profile.QuestionsAsked))
	for _, questionID := range profile.QuestionsAsked {
		question, err := s.populateQuestion(ctx, questionID)
		if err != nil {
			// A dangling reference is drift, not a fatal read error.
			if errors.Is(err, ErrQuestionNotFound) {
				continue
			}
			return nil, err
		}
		questions = append(questions, *question)
	}

	answers := make([]PopulatedAnswer, 0, len(profile.AnswersGiven))
	for _, answerID := range profile.AnswersGiven {
		answer, err := s.populateAnswer(ctx, answerID)
		if err != nil {
			if errors.Is(err, ErrAnswerNotFound) {
				continue
			}
			return nil, err
		}
		answers = append(answers, *answer)
	}

	return &ProfileView{
		Username:         profile.Username,
		Title:            profile.Title,
		Bio:              profile.Bio,
		AnswersGiven:     answers,
		QuestionsAsked:   questions,
		QuestionsUpvoted: profile.QuestionsUpvoted.Strings(),
		AnswersUpvoted:   profile.AnswersUpvoted.Strings(),
		JoinedWhen:       profile.JoinedWhen,
		Following:        profile.Following.Strings(),
		TopTags:          TagScores(questions),
		BadgeCount:       BadgeCounts(questions, answers),
		Reputation:       Reputation(questions, answers),
	}, nil
}

func (s *Service) tagsByIDs(db *gorm.DB, ids StringList) ([]Tag, error) {
	tags := make([]Tag, 0, len(ids))
	for _, tagID := range ids {
		var tag Tag
		err := db.Where("tag_id = ?", tagID).Take(&tag).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

func (s *Service) commentsByIDs(db *gorm.DB, ids StringList) ([]Comment, error) {
	comments := make([]Comment, 0, len(ids))
	for _, commentID := range ids {
		var comment Comment
		err := db.Where("comment_id = ?", commentID).Take(&comment).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		comments = append(comments, comment)
	}
	return comments, nil
}
