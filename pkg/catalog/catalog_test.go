package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/exordiom/talent-training/pkg/apis/training/v1"
	hferrors "github.com/exordiom/talent-training/pkg/errors"
	"github.com/exordiom/talent-training/pkg/store/memstore"
)

func TestDefault(t *testing.T) {
	c := Default()
	require.Equal(t, 3, c.Total())

	ids := []string{}
	for _, s := range c.Sections() {
		ids = append(ids, s.Id)
	}
	assert.Equal(t, []string{"section1", "section2", "section3"}, ids)
	assert.Equal(t, "", c.Previous("section1"))
	assert.Equal(t, "section2", c.Previous("section3"))

	_, ok := c.Get("section4")
	assert.False(t, ok)
}

func TestNewRejectsBadCatalogs(t *testing.T) {
	testCases := []struct {
		name     string
		sections []v1.Section
	}{
		{"empty", nil},
		{"missing id", []v1.Section{{Title: "x"}}},
		{"duplicate id", []v1.Section{{Id: "a"}, {Id: "a"}}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.sections)
			assert.True(t, hferrors.IsValidation(err))
		})
	}
}

func TestParse(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		valid    bool
		duration time.Duration
	}{
		{
			name:     "iso duration",
			input:    `[{"id":"intro","title":"Intro","duration":"PT3M30S"}]`,
			valid:    true,
			duration: 3*time.Minute + 30*time.Second,
		},
		{
			name:  "no duration",
			input: `[{"id":"intro","title":"Intro"}]`,
			valid: true,
		},
		{
			name:  "bad duration",
			input: `[{"id":"intro","title":"Intro","duration":"3 minutes"}]`,
		},
		{
			name:  "missing title",
			input: `[{"id":"intro"}]`,
		},
		{
			name:  "empty list",
			input: `[]`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := Parse([]byte(tc.input))
			if !tc.valid {
				assert.True(t, hferrors.IsValidation(err), "got %v", err)
				return
			}
			require.NoError(t, err)
			s, ok := c.Get("intro")
			require.True(t, ok)
			assert.Equal(t, tc.duration, s.Duration)
		})
	}
}

const bank = `[
  {"id":"q1","question":"First?","option_a":"a","option_b":"b","option_c":"c","option_d":"d","correct_answer":"A"},
  {"id":"q2","question":"Second?","option_a":"a","option_b":"b","option_c":"c","option_d":"d","correct_answer":"C"}
]`

func TestParseQuestions(t *testing.T) {
	questions, err := ParseQuestions([]byte(bank))
	require.NoError(t, err)
	require.Len(t, questions, 2)
	assert.Equal(t, v1.AnswerOptionC, questions[1].CorrectAnswer)

	_, err = ParseQuestions([]byte(`[{"id":"q1","question":"?","option_a":"a","option_b":"b","option_c":"c","option_d":"d","correct_answer":"E"}]`))
	assert.True(t, hferrors.IsValidation(err))
}

func TestSeedQuestionsIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	questions, err := ParseQuestions([]byte(bank))
	require.NoError(t, err)

	require.NoError(t, SeedQuestions(ctx, s, questions))
	questions[0].Question = "First, reworded?"
	require.NoError(t, SeedQuestions(ctx, s, questions))

	got, err := Questions(ctx, s)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "First, reworded?", got[0].Question)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sections.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
  {"id":"s1","title":"One","duration":"PT2M"},
  {"id":"s2","title":"Two"},
  {"id":"s3","title":"Three","duration":"PT1H5M"}
]`), 0o600))

	c, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, c.Total())

	want := map[string]time.Duration{"s1": 2 * time.Minute, "s2": 0, "s3": time.Hour + 5*time.Minute}
	for id, d := range want {
		s, ok := c.Get(id)
		require.True(t, ok, id)
		assert.Equal(t, d, s.Duration, id)
	}
	assert.Equal(t, "s2", c.Previous("s3"))

	_, err = LoadFile(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}
