package forum

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DocumentType identifies which collection a vote or comment targets.
type DocumentType string

const (
	// DocumentTypeQuestion targets the questions collection.
	DocumentTypeQuestion DocumentType = "question"
	// DocumentTypeAnswer targets the answers collection.
	DocumentTypeAnswer DocumentType = "answer"
)

// VoteType enumerates the two vote directions.
type VoteType string

const (
	// VoteTypeUpvote adds the voter to the upvote set.
	VoteTypeUpvote VoteType = "upvote"
	// VoteTypeDownvote adds the voter to the downvote set.
	VoteTypeDownvote VoteType = "downvote"
)

const maxIdentifierLength = 190

var (
	// ErrInvalidDocumentID indicates an empty or oversized document identifier.
	ErrInvalidDocumentID = errors.New("forum: invalid document id")
	// ErrInvalidUsername indicates an empty or oversized username.
	ErrInvalidUsername = errors.New("forum: invalid username")
	// ErrInvalidDocumentType indicates an unrecognized document type.
	ErrInvalidDocumentType = errors.New("forum: invalid document type")
	// ErrInvalidVoteType indicates an unrecognized vote type.
	ErrInvalidVoteType = errors.New("forum: invalid vote type")
)

// ParseDocumentType validates raw input against the known document types.
func ParseDocumentType(raw string) (DocumentType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(DocumentTypeQuestion):
		return DocumentTypeQuestion, nil
	case string(DocumentTypeAnswer):
		return DocumentTypeAnswer, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDocumentType, raw)
	}
}

// ValidateDocumentID checks identifier bounds for any persisted entity id.
func ValidateDocumentID(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidDocumentID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidDocumentID, maxIdentifierLength)
	}
	return trimmed, nil
}

// ValidateUsername checks identifier bounds for a username.
func ValidateUsername(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidUsername)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidUsername, maxIdentifierLength)
	}
	return trimmed, nil
}

// StringList is an ordered collection of strings persisted as a JSON text
// column. Membership helpers give it set semantics where callers need them;
// the upvote and downvote columns rely on Add never introducing duplicates.
type StringList []string

// Value serializes the list for storage. An empty list stores as "[]".
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	encoded, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(encoded), nil
}

// Scan deserializes the stored JSON column back into the list.
func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = StringList{}
		return nil
	}
	var raw []byte
	switch typed := value.(type) {
	case []byte:
		raw = typed
	case string:
		raw = []byte(typed)
	default:
		return fmt.Errorf("forum: cannot scan %T into StringList", value)
	}
	if len(raw) == 0 {
		*l = StringList{}
		return nil
	}
	var decoded []string
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return err
	}
	*l = decoded
	return nil
}

// Contains reports membership.
func (l StringList) Contains(value string) bool {
	for _, member := range l {
		if member == value {
			return true
		}
	}
	return false
}

// Add appends the value unless it is already present.
func (l StringList) Add(value string) StringList {
	if l.Contains(value) {
		return l
	}
	return append(l, value)
}

// Prepend inserts the value at the front unless it is already present.
func (l StringList) Prepend(value string) StringList {
	if l.Contains(value) {
		return l
	}
	return append(StringList{value}, l...)
}

// Remove drops every occurrence of the value.
func (l StringList) Remove(value string) StringList {
	filtered := make(StringList, 0, len(l))
	for _, member := range l {
		if member != value {
			filtered = append(filtered, member)
		}
	}
	return filtered
}

// Strings exposes the underlying slice, never nil.
func (l StringList) Strings() []string {
	if l == nil {
		return []string{}
	}
	return []string(l)
}

// Question is one persisted question document. Reference-valued fields hold
// identifiers; Populate resolves them into full sub-documents.
type Question struct {
	ID          string     `gorm:"column:question_id;primaryKey;size:190;not null"`
	Title       string     `gorm:"column:title;type:text;not null"`
	Text        string     `gorm:"column:text;type:text;not null"`
	Tags        StringList `gorm:"column:tags;type:text;not null"`
	AskedBy     string     `gorm:"column:asked_by;size:190;not null;index"`
	AskDateTime time.Time  `gorm:"column:ask_date_time;not null"`
	Answers     StringList `gorm:"column:answers;type:text;not null"`
	Views       StringList `gorm:"column:views;type:text;not null"`
	UpVotes     StringList `gorm:"column:up_votes;type:text;not null"`
	DownVotes   StringList `gorm:"column:down_votes;type:text;not null"`
	Comments    StringList `gorm:"column:comments;type:text;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Question) TableName() string {
	return "questions"
}

// Answer is one persisted answer document, back-referencing its question.
type Answer struct {
	ID          string     `gorm:"column:answer_id;primaryKey;size:190;not null"`
	Text        string     `gorm:"column:text;type:text;not null"`
	AnsBy       string     `gorm:"column:ans_by;size:190;not null;index"`
	AnsDateTime time.Time  `gorm:"column:ans_date_time;not null"`
	QuestionID  string     `gorm:"column:question_id;size:190;not null;index"`
	Comments    StringList `gorm:"column:comments;type:text;not null"`
	UpVotes     StringList `gorm:"column:up_votes;type:text;not null"`
	DownVotes   StringList `gorm:"column:down_votes;type:text;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Answer) TableName() string {
	return "answers"
}

// Comment is immutable once created and attached to exactly one parent.
type Comment struct {
	ID              string    `gorm:"column:comment_id;primaryKey;size:190;not null"`
	Text            string    `gorm:"column:text;type:text;not null"`
	CommentBy       string    `gorm:"column:comment_by;size:190;not null"`
	CommentDateTime time.Time `gorm:"column:comment_date_time;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Comment) TableName() string {
	return "comments"
}

// Tag is created lazily on first use and deduplicated by name.
type Tag struct {
	ID          string `gorm:"column:tag_id;primaryKey;size:190;not null"`
	Name        string `gorm:"column:name;size:190;not null;uniqueIndex"`
	Description string `gorm:"column:description;type:text"`
}

// TableName provides the explicit table binding for GORM.
func (Tag) TableName() string {
	return "tags"
}

// Profile is keyed by username. The upvoted arrays mirror the corresponding
// vote sets on questions and answers; the mirror is best effort, not
// transactional with the vote itself.
type Profile struct {
	Username         string     `gorm:"column:username;primaryKey;size:190;not null"`
	Title            string     `gorm:"column:title;size:320"`
	Bio              string     `gorm:"column:bio;type:text"`
	AnswersGiven     StringList `gorm:"column:answers_given;type:text;not null"`
	QuestionsAsked   StringList `gorm:"column:questions_asked;type:text;not null"`
	QuestionsUpvoted StringList `gorm:"column:questions_upvoted;type:text;not null"`
	AnswersUpvoted   StringList `gorm:"column:answers_upvoted;type:text;not null"`
	JoinedWhen       time.Time  `gorm:"column:joined_when;not null"`
	Following        StringList `gorm:"column:following;type:text;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Profile) TableName() string {
	return "profiles"
}

// QuestionInput carries a new question submission.
type QuestionInput struct {
	Title       string
	Text        string
	TagNames    []string
	AskedBy     string
	AskDateTime time.Time
}

func (in QuestionInput) validate() error {
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Text) == "" {
		return fmt.Errorf("%w: title and text are required", ErrInvalidQuestion)
	}
	if len(in.TagNames) == 0 {
		return fmt.Errorf("%w: at least one tag is required", ErrInvalidQuestion)
	}
	if strings.TrimSpace(in.AskedBy) == "" {
		return fmt.Errorf("%w: askedBy is required", ErrInvalidQuestion)
	}
	if in.AskDateTime.IsZero() {
		return fmt.Errorf("%w: askDateTime is required", ErrInvalidQuestion)
	}
	return nil
}

// AnswerInput carries a new answer submission.
type AnswerInput struct {
	Text        string
	AnsBy       string
	AnsDateTime time.Time
}

func (in AnswerInput) validate() error {
	if strings.TrimSpace(in.Text) == "" || strings.TrimSpace(in.AnsBy) == "" || in.AnsDateTime.IsZero() {
		return fmt.Errorf("%w: text, ansBy and ansDateTime are required", ErrInvalidAnswer)
	}
	return nil
}

// CommentInput carries a new comment submission.
type CommentInput struct {
	Text            string
	CommentBy       string
	CommentDateTime time.Time
}

func (in CommentInput) validate() error {
	if strings.TrimSpace(in.Text) == "" || strings.TrimSpace(in.CommentBy) == "" || in.CommentDateTime.IsZero() {
		return fmt.Errorf("%w: text, commentBy and commentDateTime are required", ErrInvalidComment)
	}
	return nil
}

// ProfileInput carries a new profile submission.
type ProfileInput struct {
	Username string
	Title    string
	Bio      string
}
