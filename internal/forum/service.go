package forum

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()
)

const (
	opServiceNew    = "forum.service.new"
	opAddQuestion   = "forum.add_question"
	opQuestionByID  = "forum.question_by_id"
	opListQuestions = "forum.list_questions"
	opAddAnswer     = "forum.add_answer"
	opAddComment    = "forum.add_comment"
	opAddProfile    = "forum.add_profile"
	opGetProfile    = "forum.get_profile"
	opUpdateProfile = "forum.update_profile"
)

// QuestionOrder selects the sort applied to question listings.
type QuestionOrder string

const (
	// OrderNewest sorts by ask time descending.
	OrderNewest QuestionOrder = "newest"
	// OrderActive sorts by most recent answer time descending.
	OrderActive QuestionOrder = "active"
	// OrderUnanswered keeps only questions without answers, newest first.
	OrderUnanswered QuestionOrder = "unanswered"
	// OrderMostViewed sorts by view count descending.
	OrderMostViewed QuestionOrder = "mostViewed"
)

// ServiceConfig describes the dependencies for the forum service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Service implements the document store operations for questions, answers,
// comments, tags and profiles.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

// NewService validates dependencies and constructs the forum service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// AddQuestion persists a new question, lazily creating any unseen tags, and
// mirrors the question id into the asker's profile. The returned document is
// fully populated.
func (s *Service) AddQuestion(ctx context.Context, input QuestionInput) (*PopulatedQuestion, error) {
	if err := input.validate(); err != nil {
		return nil, newServiceError(opAddQuestion, "invalid_body", err)
	}

	questionID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opAddQuestion, "id_generation_failed", err)
		return nil, newServiceError(opAddQuestion, "id_generation_failed", err)
	}

	question := Question{
		ID:          questionID,
		Title:       strings.TrimSpace(input.Title),
		Text:        input.Text,
		AskedBy:     strings.TrimSpace(input.AskedBy),
		AskDateTime: input.AskDateTime.UTC(),
		Tags:        StringList{},
		Answers:     StringList{},
		Views:       StringList{},
		UpVotes:     StringList{},
		DownVotes:   StringList{},
		Comments:    StringList{},
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tagIDs, err := s.processTags(tx, input.TagNames)
		if err != nil {
			return err
		}
		question.Tags = tagIDs
		return tx.Create(&question).Error
	})
	if txErr != nil {
		s.logError(opAddQuestion, "question_save_failed", txErr, zap.String("asked_by", question.AskedBy))
		return nil, newServiceError(opAddQuestion, "question_save_failed", txErr)
	}

	// Mirror write; the question is committed even if this fails.
	if err := s.appendToProfileList(ctx, question.AskedBy, "questions_asked", question.ID); err != nil {
		s.logError(opAddQuestion, "profile_mirror_failed", err, zap.String("username", question.AskedBy))
		return nil, newServiceError(opAddQuestion, "profile_mirror_failed", ErrProfileSync)
	}

	return s.populateQuestion(ctx, question.ID)
}

// QuestionByID fetches a question and records the viewer in its view set.
// The set-add is idempotent, so repeat views by the same user do not grow the
// set, but each fetch still issues the write.
func (s *Service) QuestionByID(ctx context.Context, questionID, username string) (*PopulatedQuestion, error) {
	questionID, err := ValidateDocumentID(questionID)
	if err != nil {
		return nil, newServiceError(opQuestionByID, "invalid_question_id", err)
	}
	username, err = ValidateUsername(username)
	if err != nil {
		return nil, newServiceError(opQuestionByID, "invalid_username", err)
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var question Question
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("question_id = ?", questionID).
			Take(&question).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrQuestionNotFound
		}
		if err != nil {
			return err
		}
		question.Views = question.Views.Add(username)
		return tx.Save(&question).Error
	})
	if errors.Is(txErr, ErrQuestionNotFound) {
		return nil, newServiceError(opQuestionByID, "question_missing", ErrQuestionNotFound)
	}
	if txErr != nil {
		s.logError(opQuestionByID, "view_update_failed", txErr, zap.String("question_id", questionID))
		return nil, newServiceError(opQuestionByID, "view_update_failed", txErr)
	}

	return s.populateQuestion(ctx, questionID)
}

// Question fetches a question without touching its view set.
func (s *Service) Question(ctx context.Context, questionID string) (*Question, error) {
	var question Question
	err := s.db.WithContext(ctx).Where("question_id = ?", questionID).Take(&question).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, newServiceError(opQuestionByID, "question_missing", ErrQuestionNotFound)
	}
	if err != nil {
		return nil, newServiceError(opQuestionByID, "query_failed", err)
	}
	return &question, nil
}

// Answer fetches an answer by id.
func (s *Service) Answer(ctx context.Context, answerID string) (*Answer, error) {
	var answer Answer
	err := s.db.WithContext(ctx).Where("answer_id = ?", answerID).Take(&answer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, newServiceError(opAddAnswer, "answer_missing", ErrAnswerNotFound)
	}
	if err != nil {
		return nil, newServiceError(opAddAnswer, "query_failed", err)
	}
	return &answer, nil
}

// ListQuestions returns populated questions in the requested order, optionally
// restricted to a single asker.
func (s *Service) ListQuestions(ctx context.Context, order QuestionOrder, askedBy string) ([]PopulatedQuestion, error) {
	query := s.db.WithContext(ctx).Model(&Question{})
	if askedBy != "" {
		query = query.Where("asked_by = ?", askedBy)
	}

	var rows []Question
	if err := query.Find(&rows).Error; err != nil {
		s.logError(opListQuestions, "query_failed", err)
		return nil, newServiceError(opListQuestions, "query_failed", err)
	}

	populated := make([]PopulatedQuestion, 0, len(rows))
	for _, row := range rows {
		question, err := s.populateQuestion(ctx, row.ID)
		if err != nil {
			return nil, err
		}
		populated = append(populated, *question)
	}

	sortQuestions(populated, order)
	if order == OrderUnanswered {
		unanswered := populated[:0]
		for _, question := range populated {
			if len(question.Answers) == 0 {
				unanswered = append(unanswered, question)
			}
		}
		populated = unanswered
	}
	return populated, nil
}

// AddAnswer persists a new answer, prepends its id to the question's answer
// list and mirrors it into the author's profile.
func (s *Service) AddAnswer(ctx context.Context, questionID string, input AnswerInput) (*PopulatedAnswer, error) {
	questionID, err := ValidateDocumentID(questionID)
	if err != nil {
		return nil, newServiceError(opAddAnswer, "invalid_question_id", err)
	}
	if err := input.validate(); err != nil {
		return nil, newServiceError(opAddAnswer, "invalid_body", err)
	}

	answerID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opAddAnswer, "id_generation_failed", err)
		return nil, newServiceError(opAddAnswer, "id_generation_failed", err)
	}

	answer := Answer{
		ID:          answerID,
		Text:        input.Text,
		AnsBy:       strings.TrimSpace(input.AnsBy),
		AnsDateTime: input.AnsDateTime.UTC(),
		QuestionID:  questionID,
		Comments:    StringList{},
		UpVotes:     StringList{},
		DownVotes:   StringList{},
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var question Question
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("question_id = ?", questionID).
			Take(&question).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrQuestionNotFound
		}
		if err != nil {
			return err
		}
		if err := tx.Create(&answer).Error; err != nil {
			return err
		}
		question.Answers = question.Answers.Prepend(answer.ID)
		return tx.Save(&question).Error
	})
	if errors.Is(txErr, ErrQuestionNotFound) {
		return nil, newServiceError(opAddAnswer, "question_missing", ErrQuestionNotFound)
	}
	if txErr != nil {
		s.logError(opAddAnswer, "answer_save_failed", txErr, zap.String("question_id", questionID))
		return nil, newServiceError(opAddAnswer, "answer_save_failed", txErr)
	}

	if err := s.appendToProfileList(ctx, answer.AnsBy, "answers_given", answer.ID); err != nil {
		s.logError(opAddAnswer, "profile_mirror_failed", err, zap.String("username", answer.AnsBy))
		return nil, newServiceError(opAddAnswer, "profile_mirror_failed", ErrProfileSync)
	}

	return s.populateAnswer(ctx, answer.ID)
}

// CommentAttachment reports the stored comment and the repopulated parent.
type CommentAttachment struct {
	Comment  Comment
	Type     DocumentType
	Question *PopulatedQuestion
	Answer   *PopulatedAnswer
}

// AddComment persists a comment and appends its id to the parent question or
// answer. No other document's comment list is touched.
func (s *Service) AddComment(ctx context.Context, parentID string, parentType DocumentType, input CommentInput) (*CommentAttachment, error) {
	parentID, err := ValidateDocumentID(parentID)
	if err != nil {
		return nil, newServiceError(opAddComment, "invalid_parent_id", err)
	}
	if err := input.validate(); err != nil {
		return nil, newServiceError(opAddComment, "invalid_body", err)
	}

	commentID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opAddComment, "id_generation_failed", err)
		return nil, newServiceError(opAddComment, "id_generation_failed", err)
	}

	comment := Comment{
		ID:              commentID,
		Text:            input.Text,
		CommentBy:       strings.TrimSpace(input.CommentBy),
		CommentDateTime: input.CommentDateTime.UTC(),
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		switch parentType {
		case DocumentTypeQuestion:
			var question Question
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("question_id = ?", parentID).
				Take(&question).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrQuestionNotFound
			}
			if err != nil {
				return err
			}
			if err := tx.Create(&comment).Error; err != nil {
				return err
			}
			question.Comments = question.Comments.Add(comment.ID)
			return tx.Save(&question).Error
		case DocumentTypeAnswer:
			var answer Answer
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("answer_id = ?", parentID).
				Take(&answer).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAnswerNotFound
			}
			if err != nil {
				return err
			}
			if err := tx.Create(&comment).Error; err != nil {
				return err
			}
			answer.Comments = answer.Comments.Add(comment.ID)
			return tx.Save(&answer).Error
		default:
			return ErrInvalidDocumentType
		}
	})
	if errors.Is(txErr, ErrQuestionNotFound) || errors.Is(txErr, ErrAnswerNotFound) {
		return nil, newServiceError(opAddComment, "parent_missing", txErr)
	}
	if txErr != nil {
		s.logError(opAddComment, "comment_save_failed", txErr,
			zap.String("parent_id", parentID),
			zap.String("parent_type", string(parentType)))
		return nil, newServiceError(opAddComment, "comment_save_failed", txErr)
	}

	attachment := &CommentAttachment{Comment: comment, Type: parentType}
	if parentType == DocumentTypeQuestion {
		attachment.Question, err = s.populateQuestion(ctx, parentID)
	} else {
		attachment.Answer, err = s.populateAnswer(ctx, parentID)
	}
	if err != nil {
		return nil, err
	}
	return attachment, nil
}

// AddProfile persists a new profile keyed by username.
func (s *Service) AddProfile(ctx context.Context, input ProfileInput) (*Profile, error) {
	username, err := ValidateUsername(input.Username)
	if err != nil {
		return nil, newServiceError(opAddProfile, "invalid_username", err)
	}

	profile := Profile{
		Username:         username,
		Title:            strings.TrimSpace(input.Title),
		Bio:              strings.TrimSpace(input.Bio),
		AnswersGiven:     StringList{},
		QuestionsAsked:   StringList{},
		QuestionsUpvoted: StringList{},
		AnswersUpvoted:   StringList{},
		JoinedWhen:       s.clock().UTC(),
		Following:        StringList{},
	}

	var existing Profile
	err = s.db.WithContext(ctx).Where("username = ?", username).Take(&existing).Error
	if err == nil {
		return nil, newServiceError(opAddProfile, "duplicate_username", ErrProfileExists)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logError(opAddProfile, "query_failed", err, zap.String("username", username))
		return nil, newServiceError(opAddProfile, "query_failed", err)
	}

	if err := s.db.WithContext(ctx).Create(&profile).Error; err != nil {
		s.logError(opAddProfile, "profile_save_failed", err, zap.String("username", username))
		return nil, newServiceError(opAddProfile, "profile_save_failed", err)
	}
	return &profile, nil
}

// UpdateProfile changes the title and bio fields only.
func (s *Service) UpdateProfile(ctx context.Context, username string, title, bio *string) (*ProfileView, error) {
	username, err := ValidateUsername(username)
	if err != nil {
		return nil, newServiceError(opUpdateProfile, "invalid_username", err)
	}
	updates := map[string]interface{}{}
	if title != nil {
		updates["title"] = strings.TrimSpace(*title)
	}
	if bio != nil {
		updates["bio"] = strings.TrimSpace(*bio)
	}
	if len(updates) == 0 {
		return nil, newServiceError(opUpdateProfile, "empty_update", errors.New("at least one of title or bio is required"))
	}

	result := s.db.WithContext(ctx).Model(&Profile{}).Where("username = ?", username).Updates(updates)
	if result.Error != nil {
		s.logError(opUpdateProfile, "profile_update_failed", result.Error, zap.String("username", username))
		return nil, newServiceError(opUpdateProfile, "profile_update_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, newServiceError(opUpdateProfile, "profile_missing", ErrProfileNotFound)
	}
	return s.ProfileByUsername(ctx, username)
}

// processTags deduplicates tag names and creates any that do not exist yet,
// returning tag ids in first-seen order.
func (s *Service) processTags(tx *gorm.DB, names []string) (StringList, error) {
	ids := StringList{}
	seen := map[string]bool{}
	for _, rawName := range names {
		name := strings.ToLower(strings.TrimSpace(rawName))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		var tag Tag
		err := tx.Where("name = ?", name).Take(&tag).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			tagID, idErr := s.idProvider.NewID()
			if idErr != nil {
				return nil, idErr
			}
			tag = Tag{ID: tagID, Name: name}
			if err := tx.Create(&tag).Error; err != nil {
				return nil, err
			}
		} else if err != nil {
			return nil, err
		}
		ids = append(ids, tag.ID)
	}
	if len(ids) == 0 {
		return nil, ErrInvalidQuestion
	}
	return ids, nil
}

// appendToProfileList records a document reference on the named profile array.
func (s *Service) appendToProfileList(ctx context.Context, username, column, documentID string) error {
	return s.mutateProfileList(ctx, username, column, func(list StringList) StringList {
		return list.Add(documentID)
	})
}

func (s *Service) mutateProfileList(ctx context.Context, username, column string, mutate func(StringList) StringList) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var profile Profile
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("username = ?", username).
			Take(&profile).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProfileNotFound
		}
		if err != nil {
			return err
		}
		switch column {
		case "questions_asked":
			profile.QuestionsAsked = mutate(profile.QuestionsAsked)
		case "answers_given":
			profile.AnswersGiven = mutate(profile.AnswersGiven)
		case "questions_upvoted":
			profile.QuestionsUpvoted = mutate(profile.QuestionsUpvoted)
		case "answers_upvoted":
			profile.AnswersUpvoted = mutate(profile.AnswersUpvoted)
		default:
			return errors.New("forum: unknown profile list column " + column)
		}
		return tx.Save(&profile).Error
	})
}

func sortQuestions(questions []PopulatedQuestion, order QuestionOrder) {
	byNewest := func(i, j int) bool {
		return questions[i].AskDateTime.After(questions[j].AskDateTime)
	}
	switch order {
	case OrderActive:
		recent := make(map[string]time.Time, len(questions))
		for _, question := range questions {
			for _, answer := range question.Answers {
				if answer.AnsDateTime.After(recent[question.ID]) {
					recent[question.ID] = answer.AnsDateTime
				}
			}
		}
		sort.SliceStable(questions, byNewest)
		sort.SliceStable(questions, func(i, j int) bool {
			a, aOK := recent[questions[i].ID]
			b, bOK := recent[questions[j].ID]
			if !aOK {
				return false
			}
			if !bOK {
				return true
			}
			return a.After(b)
		})
	case OrderMostViewed:
		sort.SliceStable(questions, byNewest)
		sort.SliceStable(questions, func(i, j int) bool {
			return len(questions[i].Views) > len(questions[j].Views)
		})
	default:
		sort.SliceStable(questions, byNewest)
	}
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("forum service error", attrs...)
}
