package v1

import (
	"time"
)

type SectionStatus string
type AnswerOption string
type SessionState string

const (
	SectionStatusLocked    SectionStatus = "locked"
	SectionStatusAvailable SectionStatus = "available"
	SectionStatusCompleted SectionStatus = "completed"
)

const (
	AnswerOptionA AnswerOption = "A"
	AnswerOptionB AnswerOption = "B"
	AnswerOptionC AnswerOption = "C"
	AnswerOptionD AnswerOption = "D"
)

var AnswerOptions = []AnswerOption{AnswerOptionA, AnswerOptionB, AnswerOptionC, AnswerOptionD}

func (o AnswerOption) Valid() bool {
	for _, opt := range AnswerOptions {
		if o == opt {
			return true
		}
	}
	return false
}

const (
	SessionStateNotStarted      SessionState = "not_started"
	SessionStateInProgress      SessionState = "in_progress"
	SessionStateSubmittedPassed SessionState = "submitted_passed"
	SessionStateSubmittedFailed SessionState = "submitted_failed"
)

func (s SessionState) Submitted() bool {
	return s == SessionStateSubmittedPassed || s == SessionStateSubmittedFailed
}

const (
	ProfilesTable         = "profiles"
	TrainingProgressTable = "training_progress"
	QuizAttemptsTable     = "quiz_attempts"
	QuizQuestionsTable    = "quiz_questions"
)

// Record is anything the record store can persist. Field json tags double as column names.
type Record interface {
	TableName() string
	GetId() string
	SetId(id string)
}

type Profile struct {
	Id        string    `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	FirstName string    `gorm:"column:first_name" json:"first_name"`
	LastName  string    `gorm:"column:last_name" json:"last_name"`
	Email     string    `gorm:"column:email;not null;uniqueIndex" json:"email"`
	IsAdmin   bool      `gorm:"column:is_admin;not null;default:false" json:"is_admin"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Profile) TableName() string  { return ProfilesTable }
func (p *Profile) GetId() string   { return p.Id }
func (p *Profile) SetId(id string) { p.Id = id }

func (p Profile) DisplayName() string {
	switch {
	case p.FirstName != "" && p.LastName != "":
		return p.FirstName + " " + p.LastName
	case p.FirstName != "":
		return p.FirstName
	default:
		return p.LastName
	}
}

// Section is one unit of training content. Sections are static catalog data and are
// gated in catalog order.
type Section struct {
	Id          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	VideoUrl    string        `json:"video_url"`
	Duration    time.Duration `json:"duration"`
}

type SectionProgress struct {
	Id             string     `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserId         string     `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_user_section" json:"user_id"`
	SectionId      string     `gorm:"column:section_id;not null;uniqueIndex:idx_user_section" json:"section_id"`
	Completed      bool       `gorm:"column:completed;not null;default:false" json:"completed"`
	CompletionDate *time.Time `gorm:"column:completion_date" json:"completion_date"`
	CreatedAt      time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

func (SectionProgress) TableName() string  { return TrainingProgressTable }
func (p *SectionProgress) GetId() string   { return p.Id }
func (p *SectionProgress) SetId(id string) { p.Id = id }

type QuizAttempt struct {
	Id            string     `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserId        string     `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_user_attempt" json:"user_id"`
	Score         int        `gorm:"column:score;not null" json:"score"`
	Passed        bool       `gorm:"column:passed;not null;default:false" json:"passed"`
	AttemptNumber int        `gorm:"column:attempt_number;not null;uniqueIndex:idx_user_attempt" json:"attempt_number"`
	StartedAt     time.Time  `gorm:"column:started_at" json:"started_at"`
	CompletedAt   *time.Time `gorm:"column:completed_at" json:"completed_at"`
}

func (QuizAttempt) TableName() string  { return QuizAttemptsTable }
func (a *QuizAttempt) GetId() string   { return a.Id }
func (a *QuizAttempt) SetId(id string) { a.Id = id }

type QuizQuestion struct {
	Id            string       `gorm:"column:id;primaryKey" json:"id"`
	Question      string       `gorm:"column:question;type:text;not null" json:"question"`
	OptionA       string       `gorm:"column:option_a;not null" json:"option_a"`
	OptionB       string       `gorm:"column:option_b;not null" json:"option_b"`
	OptionC       string       `gorm:"column:option_c;not null" json:"option_c"`
	OptionD       string       `gorm:"column:option_d;not null" json:"option_d"`
	CorrectAnswer AnswerOption `gorm:"column:correct_answer;type:varchar(1);not null" json:"correct_answer"`
}

func (QuizQuestion) TableName() string  { return QuizQuestionsTable }
func (q *QuizQuestion) GetId() string   { return q.Id }
func (q *QuizQuestion) SetId(id string) { q.Id = id }

// Option returns the text for the given option tag.
func (q QuizQuestion) Option(o AnswerOption) string {
	switch o {
	case AnswerOptionA:
		return q.OptionA
	case AnswerOptionB:
		return q.OptionB
	case AnswerOptionC:
		return q.OptionC
	case AnswerOptionD:
		return q.OptionD
	}
	return ""
}

// UserQuizAnswer lives only as long as the quiz session that captured it.
type UserQuizAnswer struct {
	QuestionId     string       `json:"question_id"`
	SelectedAnswer AnswerOption `json:"selected_answer"`
	Correct        bool         `json:"correct"`
}
