package quizserver

import (
	v1 "github.com/exordiom/talent-training/pkg/apis/training/v1"
	"github.com/exordiom/talent-training/pkg/quizsession"
)

type PreparedSession struct {
	State         v1.SessionState     `json:"state"`
	AttemptNumber int                 `json:"attempt_number"`
	Index         int                 `json:"index"`
	Total         int                 `json:"total"`
	Answered      int                 `json:"answered"`
	Question      *PreparedQuestion   `json:"question,omitempty"`
	Result        *quizsession.Result `json:"result,omitempty"`
	Review        []PreparedReview    `json:"review,omitempty"`
	Passed        bool                `json:"passed"`
}

type PreparedQuestion struct {
	Id       string           `json:"id"`
	Question string           `json:"question"`
	Answers  []PreparedAnswer `json:"answers"`
	Selected v1.AnswerOption  `json:"selected,omitempty"`
}

type PreparedAnswer struct {
	Id      v1.AnswerOption `json:"id"`
	Title   string          `json:"title"`
	Correct *bool           `json:"correct,omitempty"`
}

// PreparedReview shows a submitted answer next to the correct one.
type PreparedReview struct {
	QuestionId     string          `json:"question_id"`
	Question       string          `json:"question"`
	SelectedAnswer v1.AnswerOption `json:"selected_answer"`
	CorrectAnswer  v1.AnswerOption `json:"correct_answer"`
	Correct        bool            `json:"correct"`
}

type answerRequest struct {
	Answer v1.AnswerOption `json:"answer"`
}

// NewPreparedQuestion renders q. The correct answer is only marked when showCorrect is set.
func NewPreparedQuestion(q v1.QuizQuestion, selected v1.AnswerOption, showCorrect bool) *PreparedQuestion {
	prepared := &PreparedQuestion{
		Id:       q.Id,
		Question: q.Question,
		Selected: selected,
		Answers:  make([]PreparedAnswer, 0, len(v1.AnswerOptions)),
	}
	for _, o := range v1.AnswerOptions {
		a := PreparedAnswer{Id: o, Title: q.Option(o)}
		if showCorrect {
			correct := o == q.CorrectAnswer
			a.Correct = &correct
		}
		prepared.Answers = append(prepared.Answers, a)
	}
	return prepared
}

func NewPreparedSession(s *quizsession.Session) PreparedSession {
	view := s.Current()
	prepared := PreparedSession{
		State:         view.State,
		AttemptNumber: view.AttemptNumber,
		Index:         view.Index,
		Total:         view.Total,
		Answered:      view.Answered,
		Result:        view.Result,
		Passed:        view.State == v1.SessionStateSubmittedPassed,
	}
	if view.Question != nil {
		prepared.Question = NewPreparedQuestion(*view.Question, view.Selected, false)
	}
	if view.State.Submitted() {
		questions := map[string]v1.QuizQuestion{}
		for _, q := range s.Questions() {
			questions[q.Id] = q
		}
		for _, a := range s.Answers() {
			q := questions[a.QuestionId]
			prepared.Review = append(prepared.Review, PreparedReview{
				QuestionId:     a.QuestionId,
				Question:       q.Question,
				SelectedAnswer: a.SelectedAnswer,
				CorrectAnswer:  q.CorrectAnswer,
				Correct:        a.Correct,
			})
		}
	}
	return prepared
}
