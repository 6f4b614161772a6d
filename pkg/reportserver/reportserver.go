package reportserver

import (
	"net/http"

	"github.com/golang/glog"
	"github.com/gorilla/mux"
	"k8s.io/utils/clock"

	"github.com/exordiom/talent-training/pkg/authclient"
	"github.com/exordiom/talent-training/pkg/report"
	"github.com/exordiom/talent-training/pkg/util"
)

type ReportServer struct {
	auth    *authclient.AuthClient
	builder *report.Builder
	clock   clock.PassiveClock
}

func NewReportServer(authClient *authclient.AuthClient, b *report.Builder, c clock.PassiveClock) *ReportServer {
	return &ReportServer{auth: authClient, builder: b, clock: c}
}

func (s ReportServer) SetupRoutes(r *mux.Router) {
	r.HandleFunc("/a/report", s.GetFunc).Methods("GET")
	glog.V(2).Infof("set up routes for ReportServer")
}

/*
	Admin training report
		Query:
		- search : matched against name and email
		- tab : all | completed | in-progress
		- sort : name | email | progress | completion | attempts
		- dir : asc | desc
*/
func (s ReportServer) GetFunc(w http.ResponseWriter, r *http.Request) {
	_, err := s.auth.AuthNAdmin(w, r)
	if err != nil {
		util.ReturnHTTPMessage(w, r, 403, "forbidden", "no access to report")
		return
	}

	q := r.URL.Query()
	opts, err := report.ParseOptions(q.Get("search"), q.Get("tab"), q.Get("sort"), q.Get("dir"))
	if err != nil {
		util.ReturnHTTPError(w, r, err)
		return
	}

	contentType, encode := report.EncoderFor(r.Header.Get("Accept"))
	if encode == nil {
		util.ReturnHTTPMessage(w, r, 406, "notacceptable", "report is available as application/json or application/yaml")
		return
	}

	rep := s.builder.Build(r.Context(), s.clock.Now(), opts)
	body, err := encode(rep)
	if err != nil {
		glog.Errorf("error encoding report: %v", err)
		util.ReturnHTTPMessage(w, r, 500, "error", "error encoding report")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(200)
	w.Write(body)
	glog.V(2).Infof("served report with %d of %d users", len(rep.Rows), rep.Total)
}
