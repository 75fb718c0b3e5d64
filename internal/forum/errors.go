package forum

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidQuestion indicates a question submission missing required fields.
	ErrInvalidQuestion = errors.New("forum: invalid question")
	// ErrInvalidAnswer indicates an answer submission missing required fields.
	ErrInvalidAnswer = errors.New("forum: invalid answer")
	// ErrInvalidComment indicates a comment submission missing required fields.
	ErrInvalidComment = errors.New("forum: invalid comment")
	// ErrQuestionNotFound indicates the referenced question does not exist.
	ErrQuestionNotFound = errors.New("forum: question not found")
	// ErrAnswerNotFound indicates the referenced answer does not exist.
	ErrAnswerNotFound = errors.New("forum: answer not found")
	// ErrProfileNotFound indicates the referenced profile does not exist.
	ErrProfileNotFound = errors.New("forum: profile not found")
	// ErrProfileExists indicates a duplicate profile submission.
	ErrProfileExists = errors.New("forum: profile already exists")
	// ErrProfileSync indicates the profile mirror write failed after the
	// primary vote already committed. The vote is not rolled back.
	ErrProfileSync = errors.New("forum: profile mirror out of sync")
)

// ServiceError wraps a failure with a dotted operation code such as
// forum.toggle_vote.document_missing.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Code returns the dotted operation code.
func (e *ServiceError) Code() string {
	return e.code
}

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}
