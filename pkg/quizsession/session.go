package quizsession

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	v1 "github.com/exordiom/talent-training/pkg/apis/training/v1"
	hferrors "github.com/exordiom/talent-training/pkg/errors"
)

// Result is the outcome of one submitted attempt.
type Result struct {
	Score         int  `json:"score"`
	Passed        bool `json:"passed"`
	AttemptNumber int  `json:"attempt_number"`
}

// View is a snapshot of where a user is in the quiz.
type View struct {
	State         v1.SessionState  `json:"state"`
	AttemptNumber int              `json:"attempt_number"`
	Index         int              `json:"index"`
	Total         int              `json:"total"`
	Answered      int              `json:"answered"`
	Question      *v1.QuizQuestion `json:"question,omitempty"`
	Selected      v1.AnswerOption  `json:"selected,omitempty"`
	Result        *Result          `json:"result,omitempty"`
}

// Session is one user's attempt at the quiz. It belongs to that user alone; all methods
// are serialised on the session's lock.
type Session struct {
	mu sync.Mutex

	manager       *Manager
	user          string
	questions     []v1.QuizQuestion
	answers       []*v1.UserQuizAnswer
	index         int
	state         v1.SessionState
	attemptNumber int
	startedAt     time.Time
	result        *Result
}

// Score is the share of correct answers as a percentage, rounded half up.
func Score(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return (200*correct + total) / (2 * total)
}

func (s *Session) User() string {
	return s.user
}

func (s *Session) State() v1.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) AttemptNumber() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attemptNumber
}

// Questions returns the questions in the order they are asked.
func (s *Session) Questions() []v1.QuizQuestion {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]v1.QuizQuestion, len(s.questions))
	copy(out, s.questions)
	return out
}

// Answers returns the answers recorded so far, in question order.
func (s *Session) Answers() []v1.UserQuizAnswer {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []v1.UserQuizAnswer
	for _, a := range s.answers {
		if a != nil {
			out = append(out, *a)
		}
	}
	return out
}

func (s *Session) Current() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() View {
	v := View{
		State:         s.state,
		AttemptNumber: s.attemptNumber,
		Index:         s.index,
		Total:         len(s.questions),
		Answered:      s.answeredLocked(),
		Result:        s.result,
	}
	if s.state == v1.SessionStateInProgress && s.index < len(s.questions) {
		q := s.questions[s.index]
		v.Question = &q
		if a := s.answers[s.index]; a != nil {
			v.Selected = a.SelectedAnswer
		}
	}
	return v
}

func (s *Session) answeredLocked() int {
	n := 0
	for _, a := range s.answers {
		if a != nil {
			n++
		}
	}
	return n
}

// Answer records selected for the current question and moves on. Answering the last
// question submits the attempt, in which case the result is returned.
func (s *Session) Answer(ctx context.Context, selected v1.AnswerOption) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != v1.SessionStateInProgress {
		return nil, hferrors.NewConflict(fmt.Sprintf("quiz is %s, not in progress", s.state))
	}
	if selected == "" {
		return nil, hferrors.NewValidation("no answer selected")
	}
	if !selected.Valid() {
		return nil, hferrors.NewValidation(fmt.Sprintf("invalid answer %q", selected))
	}

	q := s.questions[s.index]
	s.answers[s.index] = &v1.UserQuizAnswer{
		QuestionId:     q.Id,
		SelectedAnswer: selected,
		Correct:        selected == q.CorrectAnswer,
	}

	if s.index < len(s.questions)-1 {
		s.index++
		return nil, nil
	}
	return s.submitLocked(ctx)
}

// Previous steps back one question for review. Recorded answers are kept.
func (s *Session) Previous() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != v1.SessionStateInProgress {
		return hferrors.NewConflict(fmt.Sprintf("quiz is %s, not in progress", s.state))
	}
	if s.index > 0 {
		s.index--
	}
	return nil
}

func (s *Session) Submit(ctx context.Context) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != v1.SessionStateInProgress {
		return nil, hferrors.NewConflict(fmt.Sprintf("quiz is %s, not in progress", s.state))
	}
	return s.submitLocked(ctx)
}

func (s *Session) submitLocked(ctx context.Context) (*Result, error) {
	answered := s.answeredLocked()
	if answered < len(s.questions) {
		return nil, hferrors.NewValidation(fmt.Sprintf("%d of %d questions answered", answered, len(s.questions)))
	}

	correct := 0
	for _, a := range s.answers {
		if a.Correct {
			correct++
		}
	}
	score := Score(correct, len(s.questions))
	completedAt := s.manager.clock.Now()

	attempt := &v1.QuizAttempt{
		UserId:        s.user,
		Score:         score,
		Passed:        score == 100,
		AttemptNumber: s.attemptNumber,
		StartedAt:     s.startedAt,
		CompletedAt:   &completedAt,
	}
	if err := s.manager.ledger.Append(ctx, attempt); err != nil {
		glog.Errorf("error recording quiz attempt for user %s: %v", s.user, err)
		return nil, errors.Wrap(err, "quiz attempt was not recorded")
	}

	s.attemptNumber = attempt.AttemptNumber
	s.result = &Result{Score: score, Passed: attempt.Passed, AttemptNumber: attempt.AttemptNumber}
	if attempt.Passed {
		s.state = v1.SessionStateSubmittedPassed
		s.manager.notifyPassed(ctx, s.user, attempt)
	} else {
		s.state = v1.SessionStateSubmittedFailed
	}

	glog.V(2).Infof("user %s submitted attempt %d: %d/%d correct, score %d",
		s.user, attempt.AttemptNumber, correct, len(s.questions), score)
	r := *s.result
	return &r, nil
}

// Retake starts the next attempt on a fresh shuffle of the same questions.
func (s *Session) Retake() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.Submitted() {
		return hferrors.NewConflict(fmt.Sprintf("quiz is %s, only a submitted quiz can be retaken", s.state))
	}
	if s.state == v1.SessionStateSubmittedPassed {
		glog.V(2).Infof("user %s is retaking a passed quiz", s.user)
	}

	s.manager.shuffle(s.questions)
	s.answers = make([]*v1.UserQuizAnswer, len(s.questions))
	s.index = 0
	s.attemptNumber++
	s.startedAt = s.manager.clock.Now()
	s.result = nil
	s.state = v1.SessionStateInProgress
	return nil
}
