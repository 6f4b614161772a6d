package quizserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"

	v1 "github.com/exordiom/talent-training/pkg/apis/training/v1"
	"github.com/exordiom/talent-training/pkg/authclient"
	"github.com/exordiom/talent-training/pkg/catalog"
	"github.com/exordiom/talent-training/pkg/gate"
	"github.com/exordiom/talent-training/pkg/ledger"
	"github.com/exordiom/talent-training/pkg/notify"
	"github.com/exordiom/talent-training/pkg/quizsession"
	"github.com/exordiom/talent-training/pkg/store/memstore"
)

type envelope struct {
	Type    string          `json:"type"`
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Content json.RawMessage `json:"content"`
}

type countingSink struct {
	events []notify.Event
}

func (c *countingSink) Notify(ctx context.Context, e notify.Event) error {
	c.events = append(c.events, e)
	return nil
}

type testServer struct {
	router  *mux.Router
	store   *memstore.MemStore
	token   string
	answers map[string]v1.AnswerOption
	sink    *countingSink
}

func newTestServer(t *testing.T, sectionsDone int) *testServer {
	t.Helper()
	ctx := context.Background()
	s := memstore.New()
	clk := clocktesting.NewFakePassiveClock(time.Now())

	profile := v1.Profile{Id: "u1", FirstName: "Quinn", Email: "quinn@example.com"}
	require.NoError(t, s.Insert(ctx, &profile))
	for _, sec := range catalog.DefaultSections()[:sectionsDone] {
		require.NoError(t, s.Insert(ctx, &v1.SectionProgress{UserId: "u1", SectionId: sec.Id, Completed: true}))
	}

	answers := map[string]v1.AnswerOption{}
	var bank []v1.QuizQuestion
	for i := 0; i < 3; i++ {
		q := v1.QuizQuestion{
			Id:            fmt.Sprintf("q%d", i),
			Question:      fmt.Sprintf("Question %d", i),
			OptionA:       "a",
			OptionB:       "b",
			OptionC:       "c",
			OptionD:       "d",
			CorrectAnswer: v1.AnswerOptions[i+1],
		}
		answers[q.Id] = q.CorrectAnswer
		bank = append(bank, q)
	}
	require.NoError(t, catalog.SeedQuestions(ctx, s, bank))

	auth, err := authclient.NewAuthClient(s, "secret", clk)
	require.NoError(t, err)
	token, err := auth.GenerateJWT(profile)
	require.NoError(t, err)

	sink := &countingSink{}
	l := ledger.New(s)
	g := gate.New(s, catalog.Default())
	registry := quizsession.NewRegistry(quizsession.NewManager(s, l, sink, clk))

	r := mux.NewRouter()
	NewQuizServer(auth, g, l, registry).SetupRoutes(r)
	return &testServer{router: r, store: s, token: token, answers: answers, sink: sink}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+ts.token)
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&env))
	return w.Code, env
}

func decodeSession(t *testing.T, env envelope) PreparedSession {
	t.Helper()
	var s PreparedSession
	require.NoError(t, json.Unmarshal(env.Content, &s))
	return s
}

func TestQuizLockedUntilAllSectionsDone(t *testing.T) {
	ts := newTestServer(t, 2)
	code, _ := ts.do(t, http.MethodPost, "/quiz/session", nil)
	assert.Equal(t, http.StatusForbidden, code)
}

func TestQuizFlow(t *testing.T) {
	ts := newTestServer(t, 3)

	code, env := ts.do(t, http.MethodPost, "/quiz/session", nil)
	require.Equal(t, http.StatusCreated, code)
	session := decodeSession(t, env)
	assert.Equal(t, v1.SessionStateInProgress, session.State)
	assert.Equal(t, 1, session.AttemptNumber)
	assert.Equal(t, 3, session.Total)
	require.NotNil(t, session.Question)
	for _, a := range session.Question.Answers {
		assert.Nil(t, a.Correct, "correct answer must not be exposed")
	}

	code, env = ts.do(t, http.MethodPost, "/quiz/session/answer", map[string]string{"answer": ""})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "no answer selected", env.Message)

	code, _ = ts.do(t, http.MethodPost, "/quiz/session/submit", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	// first question wrong, the rest right
	first := true
	for session.State == v1.SessionStateInProgress {
		answer := ts.answers[session.Question.Id]
		if first {
			answer = v1.AnswerOptionA
			first = false
		}
		code, env = ts.do(t, http.MethodPost, "/quiz/session/answer", map[string]v1.AnswerOption{"answer": answer})
		require.Equal(t, http.StatusOK, code, env.Message)
		session = decodeSession(t, env)
	}
	assert.Equal(t, v1.SessionStateSubmittedFailed, session.State)
	require.NotNil(t, session.Result)
	assert.Equal(t, 67, session.Result.Score)
	assert.Len(t, session.Review, 3)
	assert.Empty(t, ts.sink.events)

	code, env = ts.do(t, http.MethodPost, "/quiz/session/retake", nil)
	require.Equal(t, http.StatusOK, code)
	session = decodeSession(t, env)
	assert.Equal(t, 2, session.AttemptNumber)

	for session.State == v1.SessionStateInProgress {
		code, env = ts.do(t, http.MethodPost, "/quiz/session/answer", map[string]v1.AnswerOption{"answer": ts.answers[session.Question.Id]})
		require.Equal(t, http.StatusOK, code)
		session = decodeSession(t, env)
	}
	assert.Equal(t, v1.SessionStateSubmittedPassed, session.State)
	assert.Equal(t, &quizsession.Result{Score: 100, Passed: true, AttemptNumber: 2}, session.Result)
	assert.Len(t, ts.sink.events, 1)

	code, env = ts.do(t, http.MethodGet, "/quiz/attempts", nil)
	require.Equal(t, http.StatusOK, code)
	var attempts []v1.QuizAttempt
	require.NoError(t, json.Unmarshal(env.Content, &attempts))
	require.Len(t, attempts, 2)
	assert.Equal(t, 2, attempts[0].AttemptNumber)
	assert.True(t, attempts[0].Passed)
}

func TestPreviousAndGet(t *testing.T) {
	ts := newTestServer(t, 3)

	code, env := ts.do(t, http.MethodGet, "/quiz/session", nil)
	require.Equal(t, http.StatusOK, code)
	idle := decodeSession(t, env)
	assert.Equal(t, v1.SessionStateNotStarted, idle.State)
	assert.False(t, idle.Passed)
	assert.Nil(t, idle.Question)

	code, _ = ts.do(t, http.MethodPost, "/quiz/session/previous", nil)
	assert.Equal(t, http.StatusNotFound, code)

	_, env = ts.do(t, http.MethodPost, "/quiz/session", nil)
	firstId := decodeSession(t, env).Question.Id

	_, _ = ts.do(t, http.MethodPost, "/quiz/session/answer", map[string]string{"answer": "C"})
	code, env = ts.do(t, http.MethodPost, "/quiz/session/previous", nil)
	require.Equal(t, http.StatusOK, code)
	session := decodeSession(t, env)
	assert.Equal(t, firstId, session.Question.Id)
	assert.Equal(t, v1.AnswerOptionC, session.Question.Selected)

	code, env = ts.do(t, http.MethodGet, "/quiz/session", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, decodeSession(t, env).Answered)
}

func TestPassedQuizIsClosed(t *testing.T) {
	ts := newTestServer(t, 3)

	_, env := ts.do(t, http.MethodPost, "/quiz/session", nil)
	session := decodeSession(t, env)
	for session.State == v1.SessionStateInProgress {
		_, env = ts.do(t, http.MethodPost, "/quiz/session/answer", map[string]v1.AnswerOption{"answer": ts.answers[session.Question.Id]})
		session = decodeSession(t, env)
	}
	require.Equal(t, v1.SessionStateSubmittedPassed, session.State)
	assert.True(t, session.Passed)

	code, env := ts.do(t, http.MethodPost, "/quiz/session/retake", nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "quiz already passed", env.Message)

	// a fresh session would open the door to a failing attempt after the pass
	code, _ = ts.do(t, http.MethodPost, "/quiz/session", nil)
	assert.Equal(t, http.StatusConflict, code)

	code, env = ts.do(t, http.MethodGet, "/quiz/session", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, v1.SessionStateSubmittedPassed, decodeSession(t, env).State)

	_, env = ts.do(t, http.MethodGet, "/quiz/attempts", nil)
	var attempts []v1.QuizAttempt
	require.NoError(t, json.Unmarshal(env.Content, &attempts))
	require.Len(t, attempts, 1)
	assert.True(t, attempts[0].Passed)
	assert.Equal(t, 100, attempts[0].Score)
}

func TestPassInLedgerClosesRetake(t *testing.T) {
	ts := newTestServer(t, 3)

	_, env := ts.do(t, http.MethodPost, "/quiz/session", nil)
	session := decodeSession(t, env)
	for session.State == v1.SessionStateInProgress {
		_, env = ts.do(t, http.MethodPost, "/quiz/session/answer", map[string]v1.AnswerOption{"answer": v1.AnswerOptionA})
		session = decodeSession(t, env)
	}
	require.Equal(t, v1.SessionStateSubmittedFailed, session.State)

	// a pass recorded elsewhere, e.g. from another device
	done := time.Now()
	require.NoError(t, ts.store.Insert(context.Background(), &v1.QuizAttempt{
		UserId: "u1", Score: 100, Passed: true, AttemptNumber: 2, CompletedAt: &done,
	}))

	code, _ := ts.do(t, http.MethodPost, "/quiz/session/retake", nil)
	assert.Equal(t, http.StatusConflict, code)

	code, env = ts.do(t, http.MethodGet, "/quiz/session", nil)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, decodeSession(t, env).Passed)
}

func TestRetakeWhileInProgressConflicts(t *testing.T) {
	ts := newTestServer(t, 3)
	_, _ = ts.do(t, http.MethodPost, "/quiz/session", nil)
	code, _ := ts.do(t, http.MethodPost, "/quiz/session/retake", nil)
	assert.Equal(t, http.StatusConflict, code)
}

func TestUnauthenticated(t *testing.T) {
	ts := newTestServer(t, 3)
	ts.token = "bogus"
	for _, path := range []string{"/quiz/session", "/quiz/attempts"} {
		code, _ := ts.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusUnauthorized, code, path)
	}
}
