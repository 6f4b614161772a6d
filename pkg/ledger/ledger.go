package ledger

import (
	"context"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/util/retry"

	v1 "github.com/exordiom/talent-training/pkg/apis/training/v1"
	hferrors "github.com/exordiom/talent-training/pkg/errors"
	"github.com/exordiom/talent-training/pkg/store"
)

const (
	userIdColumn        = "user_id"
	passedColumn        = "passed"
	attemptNumberColumn = "attempt_number"
)

// AppendBackoff bounds how often an append is re-numbered after losing a race for an
// attempt number.
var AppendBackoff = wait.Backoff{
	Steps:    5,
	Duration: 10 * time.Millisecond,
	Factor:   2.0,
	Jitter:   0.1,
}

// Ledger is the append-only history of quiz attempts. Attempts are never updated or
// deleted.
type Ledger struct {
	store store.Store
}

func New(s store.Store) *Ledger {
	return &Ledger{store: s}
}

// Append inserts attempt. The store holds a unique (user_id, attempt_number) index; if
// another append already took attempt.AttemptNumber the attempt is renumbered to
// latest+1 and retried, so numbers stay contiguous and never repeat. The attempt number
// actually written is left in attempt.AttemptNumber.
func (l *Ledger) Append(ctx context.Context, attempt *v1.QuizAttempt) error {
	if attempt.UserId == "" {
		return hferrors.NewValidation("attempt has no user")
	}
	if attempt.AttemptNumber < 1 {
		latest, err := l.LatestAttemptNumber(ctx, attempt.UserId)
		if err != nil {
			return err
		}
		attempt.AttemptNumber = latest + 1
	}

	first := true
	err := retry.OnError(AppendBackoff, hferrors.IsAlreadyExists, func() error {
		if !first {
			latest, err := l.LatestAttemptNumber(ctx, attempt.UserId)
			if err != nil {
				return err
			}
			glog.V(4).Infof("attempt %d for user %s was taken, renumbering to %d",
				attempt.AttemptNumber, attempt.UserId, latest+1)
			attempt.AttemptNumber = latest + 1
			attempt.Id = ""
		}
		first = false
		return l.store.Insert(ctx, attempt)
	})
	if err != nil {
		return errors.Wrapf(err, "error appending attempt for user %s", attempt.UserId)
	}

	glog.V(4).Infof("appended attempt %d for user %s (score %d, passed %t)",
		attempt.AttemptNumber, attempt.UserId, attempt.Score, attempt.Passed)
	return nil
}

// LatestAttemptNumber returns the highest attempt number recorded for user, or 0.
func (l *Ledger) LatestAttemptNumber(ctx context.Context, user string) (int, error) {
	var attempts []v1.QuizAttempt
	err := l.store.Query(ctx, store.Where(userIdColumn, user).Desc(attemptNumberColumn).First(1), &attempts)
	if err != nil {
		return 0, errors.Wrapf(err, "error reading latest attempt for user %s", user)
	}
	if len(attempts) == 0 {
		return 0, nil
	}
	return attempts[0].AttemptNumber, nil
}

// HasPassed reports whether any attempt by user passed.
func (l *Ledger) HasPassed(ctx context.Context, user string) (bool, error) {
	var attempts []v1.QuizAttempt
	err := l.store.Query(ctx, store.Where(userIdColumn, user).And(passedColumn, true).First(1), &attempts)
	if err != nil {
		return false, errors.Wrapf(err, "error reading passed attempts for user %s", user)
	}
	return len(attempts) > 0, nil
}

// List returns user's attempts, most recent first.
func (l *Ledger) List(ctx context.Context, user string) ([]v1.QuizAttempt, error) {
	var attempts []v1.QuizAttempt
	err := l.store.Query(ctx, store.Where(userIdColumn, user).Desc(attemptNumberColumn), &attempts)
	if err != nil {
		return nil, errors.Wrapf(err, "error listing attempts for user %s", user)
	}
	return attempts, nil
}

// ListAll returns every attempt of every user ordered by attempt number descending.
func (l *Ledger) ListAll(ctx context.Context) ([]v1.QuizAttempt, error) {
	var attempts []v1.QuizAttempt
	err := l.store.Query(ctx, store.Filter{}.Desc(attemptNumberColumn), &attempts)
	if err != nil {
		return nil, errors.Wrap(err, "error listing attempts")
	}
	return attempts, nil
}
