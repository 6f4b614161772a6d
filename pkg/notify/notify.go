package notify

import (
	"context"
	"time"

	"github.com/golang/glog"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
)

// Event is sent once a user passes the quiz.
type Event struct {
	FirstName      string    `json:"firstName"`
	LastName       string    `json:"lastName"`
	Email          string    `json:"email"`
	AttemptCount   int       `json:"attemptCount"`
	CompletionDate time.Time `json:"completionDate"`
}

func (e Event) Name() string {
	switch {
	case e.FirstName != "" && e.LastName != "":
		return e.FirstName + " " + e.LastName
	case e.FirstName != "":
		return e.FirstName
	default:
		return e.LastName
	}
}

type Sink interface {
	Notify(ctx context.Context, event Event) error
}

type noop struct{}

func (noop) Notify(ctx context.Context, event Event) error {
	glog.V(4).Infof("no notification sink configured, dropping completion of %s", event.Email)
	return nil
}

// Noop discards every event.
var Noop Sink = noop{}

type multi []Sink

// Multi sends each event to every sink. All sinks are tried; their errors are aggregated.
func Multi(sinks ...Sink) Sink {
	return multi(sinks)
}

func (m multi) Notify(ctx context.Context, event Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return utilerrors.NewAggregate(errs)
}
