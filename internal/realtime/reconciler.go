package realtime

import (
	"encoding/json"

	"github.com/agoraforum/agora/backend/internal/forum"
	"github.com/agoraforum/agora/backend/internal/notify"
)

// AnswerUpdatePayload carries a newly attached answer.
type AnswerUpdatePayload struct {
	Qid    string                `json:"qid"`
	Answer forum.PopulatedAnswer `json:"answer"`
}

// VoteUpdatePayload carries a question's vote tallies after a toggle.
type VoteUpdatePayload struct {
	Qid       string   `json:"qid"`
	UpVotes   []string `json:"upVotes"`
	DownVotes []string `json:"downVotes"`
}

// AnswerVoteUpdatePayload carries an answer's vote tallies after a toggle.
type AnswerVoteUpdatePayload struct {
	Aid       string   `json:"aid"`
	Qid       string   `json:"qid"`
	UpVotes   []string `json:"upVotes"`
	DownVotes []string `json:"downVotes"`
}

// CommentUpdatePayload carries the fully repopulated parent of a new comment.
// On the wire the parent travels under "result" regardless of its type.
type CommentUpdatePayload struct {
	Question *forum.PopulatedQuestion `json:"-"`
	Answer   *forum.PopulatedAnswer   `json:"-"`
	Type     forum.DocumentType       `json:"type"`
}

func (p CommentUpdatePayload) MarshalJSON() ([]byte, error) {
	frame := struct {
		Result any                `json:"result"`
		Type   forum.DocumentType `json:"type"`
	}{Type: p.Type}
	switch {
	case p.Question != nil:
		frame.Result = p.Question
	case p.Answer != nil:
		frame.Result = p.Answer
	}
	return json.Marshal(frame)
}

// Reconciler models how a connected client folds broadcast events into its
// local view of the question list and notification feed. Applying the same
// event twice must leave the state unchanged: events can be replayed, and
// arrival order is only guaranteed per document.
type Reconciler struct {
	Username      string
	Questions     []forum.PopulatedQuestion
	Notifications []notify.Notification
}

// NewReconciler builds a reconciler for one client session.
func NewReconciler(username string, initial []forum.PopulatedQuestion) *Reconciler {
	questions := make([]forum.PopulatedQuestion, len(initial))
	copy(questions, initial)
	return &Reconciler{Username: username, Questions: questions}
}

// Apply folds one event into the local state.
func (r *Reconciler) Apply(event Event) {
	switch event.Type {
	case EventQuestionUpdate, EventViewsUpdate:
		if question, ok := event.Payload.(forum.PopulatedQuestion); ok {
			r.upsertQuestion(question)
		}
	case EventAnswerUpdate:
		if payload, ok := event.Payload.(AnswerUpdatePayload); ok {
			r.appendAnswer(payload.Qid, payload.Answer)
		}
	case EventVoteUpdate:
		if payload, ok := event.Payload.(VoteUpdatePayload); ok {
			r.replaceVotes(payload.Qid, payload.UpVotes, payload.DownVotes)
		}
	case EventAnswerVoteUpdate:
		if payload, ok := event.Payload.(AnswerVoteUpdatePayload); ok {
			r.replaceAnswerVotes(payload.Qid, payload.Aid, payload.UpVotes, payload.DownVotes)
		}
	case EventCommentUpdate:
		if payload, ok := event.Payload.(CommentUpdatePayload); ok {
			r.applyComment(payload)
		}
	case EventNotificationUpdate:
		if notification, ok := event.Payload.(notify.Notification); ok {
			// Broadcast is global; only the matching client surfaces it.
			if notification.UserID == r.Username {
				r.upsertNotification(notification)
			}
		}
	}
}

// upsertQuestion replaces the question when its id is known, otherwise
// prepends it.
func (r *Reconciler) upsertQuestion(question forum.PopulatedQuestion) {
	for index, existing := range r.Questions {
		if existing.ID == question.ID {
			r.Questions[index] = question
			return
		}
	}
	r.Questions = append([]forum.PopulatedQuestion{question}, r.Questions...)
}

// appendAnswer adds the answer to the matching question unless an answer with
// the same id is already present.
func (r *Reconciler) appendAnswer(questionID string, answer forum.PopulatedAnswer) {
	for index, question := range r.Questions {
		if question.ID != questionID {
			continue
		}
		for _, existing := range question.Answers {
			if existing.ID == answer.ID {
				return
			}
		}
		r.Questions[index].Answers = append(r.Questions[index].Answers, answer)
		return
	}
}

func (r *Reconciler) replaceVotes(questionID string, upVotes, downVotes []string) {
	for index, question := range r.Questions {
		if question.ID == questionID {
			r.Questions[index].UpVotes = upVotes
			r.Questions[index].DownVotes = downVotes
			return
		}
	}
}

func (r *Reconciler) replaceAnswerVotes(questionID, answerID string, upVotes, downVotes []string) {
	for questionIndex, question := range r.Questions {
		if question.ID != questionID {
			continue
		}
		for answerIndex, answer := range question.Answers {
			if answer.ID == answerID {
				r.Questions[questionIndex].Answers[answerIndex].UpVotes = upVotes
				r.Questions[questionIndex].Answers[answerIndex].DownVotes = downVotes
				return
			}
		}
		return
	}
}

func (r *Reconciler) applyComment(payload CommentUpdatePayload) {
	switch payload.Type {
	case forum.DocumentTypeQuestion:
		if payload.Question != nil {
			r.upsertQuestion(*payload.Question)
		}
	case forum.DocumentTypeAnswer:
		if payload.Answer == nil {
			return
		}
		for questionIndex, question := range r.Questions {
			if question.ID != payload.Answer.QuestionID {
				continue
			}
			for answerIndex, answer := range question.Answers {
				if answer.ID == payload.Answer.ID {
					r.Questions[questionIndex].Answers[answerIndex] = *payload.Answer
					return
				}
			}
			return
		}
	}
}

func (r *Reconciler) upsertNotification(notification notify.Notification) {
	for index, existing := range r.Notifications {
		if existing.ID == notification.ID {
			r.Notifications[index] = notification
			return
		}
	}
	r.Notifications = append([]notify.Notification{notification}, r.Notifications...)
}
