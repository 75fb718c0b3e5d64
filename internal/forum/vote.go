package forum

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	opToggleVote    = "forum.toggle_vote"
	opRepairMirrors = "forum.repair_profile_mirrors"
)

// VoteResult reports the vote sets after a toggle, plus a human-readable
// status distinguishing a vote from a cancellation.
type VoteResult struct {
	Message   string   `json:"msg"`
	UpVotes   []string `json:"upVotes"`
	DownVotes []string `json:"downVotes"`
}

// ToggleVote applies one vote toggle to a question or answer.
//
// The membership change runs inside a row-locking transaction on the target
// document, so two concurrent voters cannot lose each other's writes. A user
// already in the target set is removed (toggle off); otherwise the user is
// added to the target set and removed from the opposite set in the same
// update, which keeps the sets disjoint at all times.
//
// After the vote commits, the voter's profile mirror array is updated in a
// second, independent write. A failure there returns ErrProfileSync and the
// vote stays committed; RepairProfileMirrors is the repair path.
func (s *Service) ToggleVote(ctx context.Context, docID string, docType DocumentType, username string, voteType VoteType) (*VoteResult, error) {
	docID, err := ValidateDocumentID(docID)
	if err != nil {
		return nil, newServiceError(opToggleVote, "invalid_document_id", err)
	}
	username, err = ValidateUsername(username)
	if err != nil {
		return nil, newServiceError(opToggleVote, "invalid_username", err)
	}
	if voteType != VoteTypeUpvote && voteType != VoteTypeDownvote {
		return nil, newServiceError(opToggleVote, "invalid_vote_type", fmt.Errorf("%w: %q", ErrInvalidVoteType, voteType))
	}

	var upVotes, downVotes StringList
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		switch docType {
		case DocumentTypeQuestion:
			var question Question
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("question_id = ?", docID).
				Take(&question).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrQuestionNotFound
			}
			if err != nil {
				return err
			}
			question.UpVotes, question.DownVotes = toggleSets(question.UpVotes, question.DownVotes, username, voteType)
			upVotes, downVotes = question.UpVotes, question.DownVotes
			return tx.Save(&question).Error
		case DocumentTypeAnswer:
			var answer Answer
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("answer_id = ?", docID).
				Take(&answer).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAnswerNotFound
			}
			if err != nil {
				return err
			}
			answer.UpVotes, answer.DownVotes = toggleSets(answer.UpVotes, answer.DownVotes, username, voteType)
			upVotes, downVotes = answer.UpVotes, answer.DownVotes
			return tx.Save(&answer).Error
		default:
			return fmt.Errorf("%w: %q", ErrInvalidDocumentType, docType)
		}
	})
	if errors.Is(txErr, ErrQuestionNotFound) || errors.Is(txErr, ErrAnswerNotFound) {
		return nil, newServiceError(opToggleVote, "document_missing", txErr)
	}
	if txErr != nil {
		s.logError(opToggleVote, "vote_update_failed", txErr,
			zap.String("document_id", docID),
			zap.String("document_type", string(docType)))
		return nil, newServiceError(opToggleVote, "vote_update_failed", txErr)
	}

	result := &VoteResult{
		Message:   voteMessage(docType, voteType, upVotes.Contains(username), downVotes.Contains(username)),
		UpVotes:   upVotes.Strings(),
		DownVotes: downVotes.Strings(),
	}

	// Second leg of the saga: mirror into the voter's profile. The vote
	// above is already committed and is not rolled back on failure here.
	if err := s.mirrorVoteToProfile(ctx, docID, docType, username, upVotes.Contains(username)); err != nil {
		s.logError(opToggleVote, "profile_mirror_failed", err,
			zap.String("document_id", docID),
			zap.String("username", username))
		return nil, newServiceError(opToggleVote, "profile_mirror_failed", ErrProfileSync)
	}

	return result, nil
}

// toggleSets applies the membership toggle to a pair of vote sets.
func toggleSets(upVotes, downVotes StringList, username string, voteType VoteType) (StringList, StringList) {
	if voteType == VoteTypeUpvote {
		if upVotes.Contains(username) {
			return upVotes.Remove(username), downVotes
		}
		return upVotes.Add(username), downVotes.Remove(username)
	}
	if downVotes.Contains(username) {
		return upVotes, downVotes.Remove(username)
	}
	return upVotes.Remove(username), downVotes.Add(username)
}

func voteMessage(docType DocumentType, voteType VoteType, inUpVotes, inDownVotes bool) string {
	if voteType == VoteTypeUpvote {
		if inUpVotes {
			return fmt.Sprintf("%s upvoted successfully", docType)
		}
		return "Upvote cancelled successfully"
	}
	if inDownVotes {
		return fmt.Sprintf("%s downvoted successfully", docType)
	}
	return "Downvote cancelled successfully"
}

// mirrorVoteToProfile keeps the voter's upvoted arrays consistent with the
// document's upvote set: present after an upvote lands, absent otherwise.
func (s *Service) mirrorVoteToProfile(ctx context.Context, docID string, docType DocumentType, username string, upvoted bool) error {
	column := "questions_upvoted"
	if docType == DocumentTypeAnswer {
		column = "answers_upvoted"
	}
	return s.mutateProfileList(ctx, username, column, func(list StringList) StringList {
		if upvoted {
			return list.Add(docID)
		}
		return list.Remove(docID)
	})
}

// RepairProfileMirrors rebuilds one profile's upvoted arrays from the vote
// sets on questions and answers. It is idempotent and safe to run at any
// time; it exists because the vote write and the mirror write are separate
// transactions that can drift if the process dies between them.
func (s *Service) RepairProfileMirrors(ctx context.Context, username string) error {
	username, err := ValidateUsername(username)
	if err != nil {
		return newServiceError(opRepairMirrors, "invalid_username", err)
	}

	db := s.db.WithContext(ctx)

	var questions []Question
	if err := db.Find(&questions).Error; err != nil {
		return newServiceError(opRepairMirrors, "question_scan_failed", err)
	}
	var answers []Answer
	if err := db.Find(&answers).Error; err != nil {
		return newServiceError(opRepairMirrors, "answer_scan_failed", err)
	}

	questionsUpvoted := StringList{}
	for _, question := range questions {
		if question.UpVotes.Contains(username) {
			questionsUpvoted = append(questionsUpvoted, question.ID)
		}
	}
	answersUpvoted := StringList{}
	for _, answer := range answers {
		if answer.UpVotes.Contains(username) {
			answersUpvoted = append(answersUpvoted, answer.ID)
		}
	}

	result := db.Model(&Profile{}).Where("username = ?", username).Updates(map[string]interface{}{
		"questions_upvoted": questionsUpvoted,
		"answers_upvoted":   answersUpvoted,
	})
	if result.Error != nil {
		return newServiceError(opRepairMirrors, "profile_update_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return newServiceError(opRepairMirrors, "profile_missing", ErrProfileNotFound)
	}
	return nil
}
