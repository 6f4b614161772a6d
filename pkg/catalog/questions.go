package catalog

import (
	"context"
	"encoding/json"
	"os"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	v1 "github.com/exordiom/talent-training/pkg/apis/training/v1"
	hferrors "github.com/exordiom/talent-training/pkg/errors"
	"github.com/exordiom/talent-training/pkg/store"
)

var questionColumns = []string{"question", "option_a", "option_b", "option_c", "option_d", "correct_answer"}

func LoadQuestionFile(path string) ([]v1.QuizQuestion, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading question bank %s", path)
	}
	return ParseQuestions(data)
}

func ParseQuestions(data []byte) ([]v1.QuizQuestion, error) {
	if err := validate(questionsSchema, data); err != nil {
		return nil, errors.Wrap(err, "invalid question bank")
	}
	var questions []v1.QuizQuestion
	if err := json.Unmarshal(data, &questions); err != nil {
		return nil, hferrors.NewValidation(err.Error())
	}
	return questions, nil
}

// SeedQuestions writes questions into the question bank, replacing the text of any
// question that already exists with the same id.
func SeedQuestions(ctx context.Context, s store.Store, questions []v1.QuizQuestion) error {
	for i := range questions {
		q := questions[i]
		if err := s.Upsert(ctx, &q, store.OnConflict{Keys: []string{"id"}, Update: questionColumns}); err != nil {
			return errors.Wrapf(err, "error seeding question %s", q.Id)
		}
	}
	glog.V(2).Infof("seeded %d quiz questions", len(questions))
	return nil
}

// Questions returns the full question bank.
func Questions(ctx context.Context, s store.Store) ([]v1.QuizQuestion, error) {
	var questions []v1.QuizQuestion
	if err := s.Query(ctx, store.Filter{}.Asc("id"), &questions); err != nil {
		return nil, errors.Wrap(err, "error reading question bank")
	}
	return questions, nil
}
