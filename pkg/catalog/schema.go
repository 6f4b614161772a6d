package catalog

import (
	"fmt"
	"strings"

	"github.com/peterhellberg/duration"
	"github.com/xeipuuv/gojsonschema"

	hferrors "github.com/exordiom/talent-training/pkg/errors"
)

const sectionsSchema = `{
  "type": "array",
  "minItems": 1,
  "items": {
    "type": "object",
    "required": ["id", "title"],
    "properties": {
      "id":          {"type": "string", "minLength": 1},
      "title":       {"type": "string", "minLength": 1},
      "description": {"type": "string"},
      "video_url":   {"type": "string"},
      "duration":    {"type": "string", "format": "duration"}
    }
  }
}`

const questionsSchema = `{
  "type": "array",
  "minItems": 1,
  "items": {
    "type": "object",
    "required": ["id", "question", "option_a", "option_b", "option_c", "option_d", "correct_answer"],
    "properties": {
      "id":             {"type": "string", "minLength": 1},
      "question":       {"type": "string", "minLength": 1},
      "option_a":       {"type": "string", "minLength": 1},
      "option_b":       {"type": "string", "minLength": 1},
      "option_c":       {"type": "string", "minLength": 1},
      "option_d":       {"type": "string", "minLength": 1},
      "correct_answer": {"type": "string", "enum": ["A", "B", "C", "D"]}
    }
  }
}`

type durationChecker struct{}

func (checker durationChecker) IsFormat(value interface{}) bool {
	v, ok := value.(string)
	if !ok {
		return true
	}

	_, err := duration.Parse(v)
	return err == nil
}

func init() {
	gojsonschema.FormatCheckers.Add("duration", durationChecker{})
}

func validate(schema string, data []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return hferrors.NewValidation(err.Error())
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, len(result.Errors()))
	for i, e := range result.Errors() {
		msgs[i] = e.String()
	}
	return hferrors.NewValidation(fmt.Sprintf("document does not match schema: %s", strings.Join(msgs, "; ")))
}
