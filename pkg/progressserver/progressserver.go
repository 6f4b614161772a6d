package progressserver

import (
	"encoding/json"
	"net/http"

	"github.com/golang/glog"
	"github.com/gorilla/mux"

	v1 "github.com/exordiom/talent-training/pkg/apis/training/v1"
	"github.com/exordiom/talent-training/pkg/authclient"
	"github.com/exordiom/talent-training/pkg/gate"
	"github.com/exordiom/talent-training/pkg/progress"
	"github.com/exordiom/talent-training/pkg/util"
)

type ProgressServer struct {
	auth    *authclient.AuthClient
	gate    *gate.Gate
	tracker *progress.Tracker
}

type PreparedSections struct {
	Sections      []gate.SectionState `json:"sections"`
	Completed     int                 `json:"completed"`
	Total         int                 `json:"total"`
	Percent       int                 `json:"percent"`
	NextSection   string              `json:"next_section,omitempty"`
	QuizAvailable bool                `json:"quiz_available"`
}

type AdminPreparedProgress struct {
	UserId   string               `json:"user_id"`
	Progress []v1.SectionProgress `json:"progress"`
	PreparedSections
}

type completeRequest struct {
	Watched float64 `json:"watched"`
}

func NewProgressServer(authClient *authclient.AuthClient, g *gate.Gate, t *progress.Tracker) (*ProgressServer, error) {
	return &ProgressServer{auth: authClient, gate: g, tracker: t}, nil
}

func (s ProgressServer) SetupRoutes(r *mux.Router) {
	r.HandleFunc("/training/sections", s.ListSectionsFunc).Methods("GET")
	r.HandleFunc("/training/quiz/available", s.QuizAvailableFunc).Methods("GET")
	r.HandleFunc("/training/sections/{id}/complete", s.CompleteFunc).Methods("POST")
	r.HandleFunc("/a/progress/user/{id}", s.ListByUserFunc).Methods("GET")
	glog.V(2).Infof("set up routes for ProgressServer")
}

func (s ProgressServer) prepare(progress []v1.SectionProgress) PreparedSections {
	sections := s.gate.Catalog().Sections()
	return PreparedSections{
		Sections:      gate.Classify(sections, progress),
		Completed:     gate.CompletedCount(sections, progress),
		Total:         len(sections),
		Percent:       gate.CompletionPercent(sections, progress),
		NextSection:   gate.NextSection(sections, progress),
		QuizAvailable: gate.QuizAvailable(sections, progress),
	}
}

func (s ProgressServer) ListSectionsFunc(w http.ResponseWriter, r *http.Request) {
	user, err := s.auth.AuthN(w, r)
	if err != nil {
		util.ReturnHTTPMessage(w, r, 403, "forbidden", "no access to list sections")
		return
	}

	prepared := s.prepare(s.gate.Progress(r.Context(), user.Id))
	util.ReturnHTTPObject(w, r, 200, "success", prepared)
	glog.V(2).Infof("listed sections for user %s", user.Id)
}

func (s ProgressServer) QuizAvailableFunc(w http.ResponseWriter, r *http.Request) {
	user, err := s.auth.AuthN(w, r)
	if err != nil {
		util.ReturnHTTPMessage(w, r, 403, "forbidden", "no access to quiz")
		return
	}

	util.ReturnHTTPObject(w, r, 200, "success", map[string]bool{
		"available": s.gate.QuizAvailable(r.Context(), user.Id),
	})
}

/*
	Complete Section
		Vars:
		- id : The section id
		Body:
		- watched : share of the video watched, 0..1
*/
func (s ProgressServer) CompleteFunc(w http.ResponseWriter, r *http.Request) {
	user, err := s.auth.AuthN(w, r)
	if err != nil {
		util.ReturnHTTPMessage(w, r, 403, "forbidden", "no access to update progress")
		return
	}

	id := mux.Vars(r)["id"]
	if len(id) == 0 {
		util.ReturnHTTPMessage(w, r, 400, "badrequest", "no id passed in")
		return
	}

	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		util.ReturnHTTPMessage(w, r, 400, "badrequest", "invalid request body")
		return
	}

	p, err := s.tracker.CompleteSection(r.Context(), user.Id, id, req.Watched)
	if err != nil {
		util.ReturnHTTPError(w, r, err)
		return
	}

	util.ReturnHTTPObject(w, r, 200, "updated", p)
	glog.V(4).Infof("completed section %s for user %s", id, user.Id)
}

/*
	List Progress by User
		Vars:
		- id : The user id
*/
func (s ProgressServer) ListByUserFunc(w http.ResponseWriter, r *http.Request) {
	_, err := s.auth.AuthNAdmin(w, r)
	if err != nil {
		util.ReturnHTTPMessage(w, r, 403, "forbidden", "no access to list progress")
		return
	}

	id := mux.Vars(r)["id"]
	if len(id) == 0 {
		util.ReturnHTTPMessage(w, r, 400, "badrequest", "no id passed in")
		return
	}

	p, err := s.tracker.List(r.Context(), id)
	if err != nil {
		glog.Errorf("error while retrieving progress %v", err)
		util.ReturnHTTPMessage(w, r, 500, "error", "no progress found")
		return
	}

	util.ReturnHTTPObject(w, r, 200, "success", AdminPreparedProgress{
		UserId:           id,
		Progress:         p,
		PreparedSections: s.prepare(p),
	})
	glog.V(2).Infof("listed progress for user %s", id)
}
