package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/spf13/viper"
	"k8s.io/utils/clock"

	"github.com/exordiom/talent-training/pkg/authclient"
	"github.com/exordiom/talent-training/pkg/catalog"
	"github.com/exordiom/talent-training/pkg/config"
	"github.com/exordiom/talent-training/pkg/gate"
	"github.com/exordiom/talent-training/pkg/ledger"
	"github.com/exordiom/talent-training/pkg/notify"
	"github.com/exordiom/talent-training/pkg/progress"
	"github.com/exordiom/talent-training/pkg/progressserver"
	"github.com/exordiom/talent-training/pkg/quizserver"
	"github.com/exordiom/talent-training/pkg/quizsession"
	"github.com/exordiom/talent-training/pkg/report"
	"github.com/exordiom/talent-training/pkg/reportserver"
	"github.com/exordiom/talent-training/pkg/signals"
	"github.com/exordiom/talent-training/pkg/store"
	"github.com/exordiom/talent-training/pkg/store/gormstore"
	"github.com/exordiom/talent-training/pkg/store/memstore"
	"github.com/exordiom/talent-training/pkg/userserver"
	"github.com/exordiom/talent-training/pkg/util"
)

var (
	corsHeaders = handlers.AllowedHeaders([]string{"Authorization", "Content-Type"})
	corsMethods = handlers.AllowedMethods([]string{"GET", "POST", "PUT", "HEAD", "OPTIONS", "DELETE"})
)

func main() {
	stopCh := signals.SetupSignalHandler()

	fs := config.Flags()
	fs.AddGoFlagSet(flag.CommandLine)
	if err := config.Load(fs, os.Args[1:]); err != nil {
		glog.Fatalf("error loading configuration: %v", err)
	}
	// glog reads the standard flag set
	flag.CommandLine.Parse([]string{})

	glog.V(2).Infof("Starting")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clk := clock.RealClock{}

	s, closeStore := openStore(ctx)
	defer closeStore()

	cat := catalog.Default()
	if path := viper.GetString(config.CatalogFile); path != "" {
		var err error
		cat, err = catalog.LoadFile(path)
		if err != nil {
			glog.Fatalf("error loading catalog: %v", err)
		}
	}
	if path := viper.GetString(config.QuestionFile); path != "" {
		questions, err := catalog.LoadQuestionFile(path)
		if err != nil {
			glog.Fatalf("error loading question bank: %v", err)
		}
		if err := catalog.SeedQuestions(ctx, s, questions); err != nil {
			glog.Fatal(err)
		}
	}

	auth, err := authclient.NewAuthClient(s, viper.GetString(config.JWTSigningKey), clk)
	if err != nil {
		glog.Fatal(err)
	}

	g := gate.New(s, cat)
	l := ledger.New(s)
	tracker := progress.NewTracker(s, g, clk, viper.GetFloat64(config.CompletionThreshold))
	sessions := quizsession.NewRegistry(quizsession.NewManager(s, l, notifier(), clk))

	r := mux.NewRouter()

	ps, err := progressserver.NewProgressServer(auth, g, tracker)
	if err != nil {
		glog.Fatal(err)
	}
	ps.SetupRoutes(r)

	quizserver.NewQuizServer(auth, g, l, sessions).SetupRoutes(r)

	us, err := userserver.NewUserServer(auth, s, g, l, clk)
	if err != nil {
		glog.Fatal(err)
	}
	us.SetupRoutes(r)

	reportserver.NewReportServer(auth, report.NewBuilder(s, l, cat), clk).SetupRoutes(r)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		util.ReturnHTTPMessage(w, r, 200, "success", "ok")
	}).Methods("GET")

	corsOrigins := handlers.AllowedOrigins(viper.GetStringSlice(config.CORSOrigins))
	handler := handlers.CORS(corsHeaders, corsOrigins, corsMethods)(r)
	handler = handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(handler)
	handler = handlers.CombinedLoggingHandler(os.Stderr, handler)

	srv := &http.Server{
		Addr:              viper.GetString(config.ListenAddr),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		glog.Infof("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			glog.Fatal(err)
		}
	}()

	<-stopCh
	glog.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		glog.Errorf("error shutting down server: %v", err)
	}
	glog.Flush()
}

func openStore(ctx context.Context) (store.Store, func()) {
	switch driver := viper.GetString(config.StoreDriver); driver {
	case config.DriverMemory:
		glog.Warningf("using in-memory record store, data is lost on restart")
		return memstore.New(), func() {}
	case config.DriverPostgres:
		gs, err := gormstore.Open(gormstore.Config{
			Host:     viper.GetString(config.DBHost),
			Port:     viper.GetString(config.DBPort),
			User:     viper.GetString(config.DBUser),
			Password: viper.GetString(config.DBPassword),
			Name:     viper.GetString(config.DBName),
			SSLMode:  viper.GetString(config.DBSSLMode),
		})
		if err != nil {
			glog.Fatal(err)
		}
		if err := gs.Ping(ctx); err != nil {
			glog.Fatalf("database not reachable: %v", err)
		}
		if err := gs.Migrate(); err != nil {
			glog.Fatal(err)
		}
		return gs, func() {
			if err := gs.Close(); err != nil {
				glog.Errorf("error closing database: %v", err)
			}
		}
	default:
		glog.Fatalf("unknown store driver %q", driver)
	}
	return nil, nil
}

func notifier() notify.Sink {
	sinks := []notify.Sink{notify.NewMailLogSink(viper.GetString(config.AdminRecipient), nil)}
	if url := viper.GetString(config.NotifyWebhookURL); url != "" {
		sinks = append(sinks, notify.NewWebhookSink(url, nil))
	}
	return notify.Multi(sinks...)
}
