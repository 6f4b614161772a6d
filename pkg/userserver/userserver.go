package userserver

import (
	"net/http"
	"strings"

	"github.com/golang/glog"
	"github.com/gorilla/mux"
	"k8s.io/utils/clock"

	v1 "github.com/exordiom/talent-training/pkg/apis/training/v1"
	"github.com/exordiom/talent-training/pkg/authclient"
	"github.com/exordiom/talent-training/pkg/gate"
	"github.com/exordiom/talent-training/pkg/ledger"
	"github.com/exordiom/talent-training/pkg/store"
	"github.com/exordiom/talent-training/pkg/util"
)

type UserServer struct {
	auth   *authclient.AuthClient
	store  store.Store
	gate   *gate.Gate
	ledger *ledger.Ledger
	clock  clock.PassiveClock
}

type PreparedProfile struct {
	v1.Profile
	Progress      []gate.SectionState `json:"progress"`
	Percent       int                 `json:"percent"`
	QuizAvailable bool                `json:"quiz_available"`
	Attempts      []v1.QuizAttempt    `json:"attempts"`
	Passed        bool                `json:"passed"`
}

func NewUserServer(authClient *authclient.AuthClient, s store.Store, g *gate.Gate, l *ledger.Ledger, c clock.PassiveClock) (*UserServer, error) {
	return &UserServer{auth: authClient, store: s, gate: g, ledger: l, clock: c}, nil
}

func (u UserServer) SetupRoutes(r *mux.Router) {
	r.HandleFunc("/user/profile", u.GetFunc).Methods("GET")
	r.HandleFunc("/user/profile", u.UpdateFunc).Methods("POST")
	glog.V(2).Infof("set up routes for UserServer")
}

func (u UserServer) GetFunc(w http.ResponseWriter, r *http.Request) {
	user, err := u.auth.AuthN(w, r)
	if err != nil {
		util.ReturnHTTPMessage(w, r, 403, "forbidden", "no access to profile")
		return
	}

	sections := u.gate.Catalog().Sections()
	progress := u.gate.Progress(r.Context(), user.Id)

	// a failed read shows an empty history rather than failing the page
	attempts, err := u.ledger.List(r.Context(), user.Id)
	if err != nil {
		glog.Errorf("error listing attempts for profile %s: %v", user.Id, err)
		attempts = []v1.QuizAttempt{}
	}
	passed, err := u.ledger.HasPassed(r.Context(), user.Id)
	if err != nil {
		glog.Errorf("error reading pass status for profile %s: %v", user.Id, err)
	}

	util.ReturnHTTPObject(w, r, 200, "success", PreparedProfile{
		Profile:       user,
		Progress:      gate.Classify(sections, progress),
		Percent:       gate.CompletionPercent(sections, progress),
		QuizAvailable: gate.QuizAvailable(sections, progress),
		Attempts:      attempts,
		Passed:        passed,
	})
}

func (u UserServer) UpdateFunc(w http.ResponseWriter, r *http.Request) {
	user, err := u.auth.AuthN(w, r)
	if err != nil {
		util.ReturnHTTPMessage(w, r, 403, "forbidden", "no access to update profile")
		return
	}

	patch := map[string]interface{}{}
	if firstName := strings.TrimSpace(r.PostFormValue("first_name")); firstName != "" {
		patch["first_name"] = firstName
	}
	if lastName := strings.TrimSpace(r.PostFormValue("last_name")); lastName != "" {
		patch["last_name"] = lastName
	}
	if len(patch) == 0 {
		util.ReturnHTTPMessage(w, r, 400, "badrequest", "nothing to update")
		return
	}
	patch["updated_at"] = u.clock.Now()

	if err := u.store.Update(r.Context(), &v1.Profile{}, user.Id, patch); err != nil {
		glog.Errorf("error updating profile %s: %v", user.Id, err)
		util.ReturnHTTPMessage(w, r, 500, "error", "error attempting to update")
		return
	}

	util.ReturnHTTPMessage(w, r, 200, "updated", "")
	glog.V(4).Infof("updated profile %s", user.Id)
}
