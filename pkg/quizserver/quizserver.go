package quizserver

import (
	"encoding/json"
	"net/http"

	"github.com/golang/glog"
	"github.com/gorilla/mux"

	v1 "github.com/exordiom/talent-training/pkg/apis/training/v1"
	"github.com/exordiom/talent-training/pkg/authclient"
	"github.com/exordiom/talent-training/pkg/gate"
	"github.com/exordiom/talent-training/pkg/ledger"
	"github.com/exordiom/talent-training/pkg/quizsession"
	"github.com/exordiom/talent-training/pkg/util"
)

type QuizServer struct {
	auth     *authclient.AuthClient
	gate     *gate.Gate
	ledger   *ledger.Ledger
	sessions *quizsession.Registry
}

func NewQuizServer(authClient *authclient.AuthClient, g *gate.Gate, l *ledger.Ledger, sessions *quizsession.Registry) QuizServer {
	return QuizServer{
		auth:     authClient,
		gate:     g,
		ledger:   l,
		sessions: sessions,
	}
}

func (qs QuizServer) SetupRoutes(r *mux.Router) {
	// session
	r.HandleFunc("/quiz/session", qs.StartFunc).Methods("POST")
	r.HandleFunc("/quiz/session", qs.GetFunc).Methods("GET")
	r.HandleFunc("/quiz/session/answer", qs.AnswerFunc).Methods("POST")
	r.HandleFunc("/quiz/session/previous", qs.PreviousFunc).Methods("POST")
	r.HandleFunc("/quiz/session/submit", qs.SubmitFunc).Methods("POST")
	r.HandleFunc("/quiz/session/retake", qs.RetakeFunc).Methods("POST")
	// ledger
	r.HandleFunc("/quiz/attempts", qs.ListAttemptsFunc).Methods("GET")
	glog.V(2).Infof("set up routes for quiz server")
}

func (qs QuizServer) StartFunc(w http.ResponseWriter, r *http.Request) {
	user, err := qs.auth.AuthN(w, r)
	if err != nil {
		util.ReturnHTTPMessage(w, r, 401, "unauthorized", "authentication failed")
		return
	}

	if !qs.gate.QuizAvailable(r.Context(), user.Id) {
		util.ReturnHTTPMessage(w, r, 403, "forbidden", "complete all training sections before taking the quiz")
		return
	}

	passed, err := qs.ledger.HasPassed(r.Context(), user.Id)
	if err != nil {
		util.ReturnHTTPError(w, r, err)
		return
	}
	if passed {
		util.ReturnHTTPMessage(w, r, 409, "conflict", "quiz already passed")
		return
	}

	session, err := qs.sessions.Start(r.Context(), user.Id)
	if err != nil {
		util.ReturnHTTPError(w, r, err)
		return
	}

	util.ReturnHTTPObject(w, r, 201, "created", NewPreparedSession(session))
	glog.V(2).Infof("started quiz attempt %d for user %s", session.AttemptNumber(), user.Id)
}

func (qs QuizServer) session(w http.ResponseWriter, r *http.Request) (*quizsession.Session, bool) {
	user, err := qs.auth.AuthN(w, r)
	if err != nil {
		util.ReturnHTTPMessage(w, r, 401, "unauthorized", "authentication failed")
		return nil, false
	}
	session, ok := qs.sessions.Get(user.Id)
	if !ok {
		util.ReturnHTTPMessage(w, r, 404, "notfound", "no quiz session in progress")
		return nil, false
	}
	return session, true
}

// GetFunc returns the active session. Without one it reports not_started, with passed
// set when the ledger already holds a passing attempt.
func (qs QuizServer) GetFunc(w http.ResponseWriter, r *http.Request) {
	user, err := qs.auth.AuthN(w, r)
	if err != nil {
		util.ReturnHTTPMessage(w, r, 401, "unauthorized", "authentication failed")
		return
	}

	passed, err := qs.ledger.HasPassed(r.Context(), user.Id)
	if err != nil {
		util.ReturnHTTPError(w, r, err)
		return
	}

	prepared := PreparedSession{State: v1.SessionStateNotStarted}
	if session, ok := qs.sessions.Get(user.Id); ok {
		prepared = NewPreparedSession(session)
	}
	prepared.Passed = passed
	util.ReturnHTTPObject(w, r, 200, "success", prepared)
}

func (qs QuizServer) AnswerFunc(w http.ResponseWriter, r *http.Request) {
	session, ok := qs.session(w, r)
	if !ok {
		return
	}

	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		util.ReturnHTTPMessage(w, r, 400, "badrequest", "invalid request body")
		return
	}

	if _, err := session.Answer(r.Context(), req.Answer); err != nil {
		util.ReturnHTTPError(w, r, err)
		return
	}
	util.ReturnHTTPObject(w, r, 200, "success", NewPreparedSession(session))
}

func (qs QuizServer) PreviousFunc(w http.ResponseWriter, r *http.Request) {
	session, ok := qs.session(w, r)
	if !ok {
		return
	}
	if err := session.Previous(); err != nil {
		util.ReturnHTTPError(w, r, err)
		return
	}
	util.ReturnHTTPObject(w, r, 200, "success", NewPreparedSession(session))
}

func (qs QuizServer) SubmitFunc(w http.ResponseWriter, r *http.Request) {
	session, ok := qs.session(w, r)
	if !ok {
		return
	}
	if _, err := session.Submit(r.Context()); err != nil {
		util.ReturnHTTPError(w, r, err)
		return
	}
	util.ReturnHTTPObject(w, r, 200, "success", NewPreparedSession(session))
}

// RetakeFunc starts the next attempt of a submitted session. Once any attempt passed the
// quiz is closed and retakes are refused.
func (qs QuizServer) RetakeFunc(w http.ResponseWriter, r *http.Request) {
	session, ok := qs.session(w, r)
	if !ok {
		return
	}

	passed := session.State() == v1.SessionStateSubmittedPassed
	if !passed {
		var err error
		passed, err = qs.ledger.HasPassed(r.Context(), session.User())
		if err != nil {
			util.ReturnHTTPError(w, r, err)
			return
		}
	}
	if passed {
		util.ReturnHTTPMessage(w, r, 409, "conflict", "quiz already passed")
		return
	}

	if err := session.Retake(); err != nil {
		util.ReturnHTTPError(w, r, err)
		return
	}
	util.ReturnHTTPObject(w, r, 200, "success", NewPreparedSession(session))
	glog.V(2).Infof("user %s retaking quiz as attempt %d", session.User(), session.AttemptNumber())
}

func (qs QuizServer) ListAttemptsFunc(w http.ResponseWriter, r *http.Request) {
	user, err := qs.auth.AuthN(w, r)
	if err != nil {
		util.ReturnHTTPMessage(w, r, 401, "unauthorized", "authentication failed")
		return
	}

	attempts, err := qs.ledger.List(r.Context(), user.Id)
	if err != nil {
		util.ReturnHTTPError(w, r, err)
		return
	}
	util.ReturnHTTPObject(w, r, 200, "success", attempts)
}
