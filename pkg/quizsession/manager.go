package quizsession

import (
	"context"
	"math/rand"
	"sync"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"k8s.io/utils/clock"

	v1 "github.com/exordiom/talent-training/pkg/apis/training/v1"
	"github.com/exordiom/talent-training/pkg/catalog"
	hferrors "github.com/exordiom/talent-training/pkg/errors"
	"github.com/exordiom/talent-training/pkg/ledger"
	"github.com/exordiom/talent-training/pkg/notify"
	"github.com/exordiom/talent-training/pkg/store"
)

// ShuffleFunc reorders questions in place.
type ShuffleFunc func(questions []v1.QuizQuestion)

func RandomShuffle(questions []v1.QuizQuestion) {
	rand.Shuffle(len(questions), func(i, j int) {
		questions[i], questions[j] = questions[j], questions[i]
	})
}

type Manager struct {
	store    store.Store
	ledger   *ledger.Ledger
	notifier notify.Sink
	clock    clock.PassiveClock
	shuffle  ShuffleFunc
}

func NewManager(s store.Store, l *ledger.Ledger, n notify.Sink, c clock.PassiveClock) *Manager {
	if n == nil {
		n = notify.Noop
	}
	return &Manager{
		store:    s,
		ledger:   l,
		notifier: n,
		clock:    c,
		shuffle:  RandomShuffle,
	}
}

// WithShuffle replaces the question shuffle, e.g. with a fixed order.
func (m *Manager) WithShuffle(f ShuffleFunc) *Manager {
	m.shuffle = f
	return m
}

// StartSession loads the question bank and opens a session for the user's next attempt.
// A user who already passed may still start one.
func (m *Manager) StartSession(ctx context.Context, user string) (*Session, error) {
	if user == "" {
		return nil, hferrors.NewValidation("no user given")
	}
	questions, err := catalog.Questions(ctx, m.store)
	if err != nil {
		return nil, err
	}
	latest, err := m.ledger.LatestAttemptNumber(ctx, user)
	if err != nil {
		return nil, err
	}
	return m.NewSession(user, questions, latest+1)
}

// NewSession opens a session over questions without touching the store.
func (m *Manager) NewSession(user string, questions []v1.QuizQuestion, attemptNumber int) (*Session, error) {
	if len(questions) == 0 {
		return nil, hferrors.NewValidation("question bank is empty")
	}
	if attemptNumber < 1 {
		attemptNumber = 1
	}
	qs := make([]v1.QuizQuestion, len(questions))
	copy(qs, questions)
	m.shuffle(qs)

	glog.V(4).Infof("user %s started attempt %d with %d questions", user, attemptNumber, len(qs))
	return &Session{
		manager:       m,
		user:          user,
		questions:     qs,
		answers:       make([]*v1.UserQuizAnswer, len(qs)),
		state:         v1.SessionStateInProgress,
		attemptNumber: attemptNumber,
		startedAt:     m.clock.Now(),
	}, nil
}

// notifyPassed tells the sink about a passing attempt. Failures are logged only.
func (m *Manager) notifyPassed(ctx context.Context, user string, attempt *v1.QuizAttempt) {
	event := notify.Event{
		AttemptCount:   attempt.AttemptNumber,
		CompletionDate: *attempt.CompletedAt,
	}
	profile := &v1.Profile{}
	if err := m.store.GetByID(ctx, user, profile); err != nil {
		glog.Errorf("error loading profile %s for completion notice: %v", user, err)
	} else {
		event.FirstName = profile.FirstName
		event.LastName = profile.LastName
		event.Email = profile.Email
	}

	if err := m.notifier.Notify(ctx, event); err != nil {
		glog.Errorf("error sending completion notice for user %s: %v", user, errors.Cause(err))
	}
}

// Registry holds the active session of each user.
type Registry struct {
	mu       sync.Mutex
	manager  *Manager
	sessions map[string]*Session
}

func NewRegistry(m *Manager) *Registry {
	return &Registry{manager: m, sessions: map[string]*Session{}}
}

// Start opens a new session for user, replacing any active one.
func (r *Registry) Start(ctx context.Context, user string) (*Session, error) {
	s, err := r.manager.StartSession(ctx, user)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.sessions[user] = s
	r.mu.Unlock()
	return s, nil
}

func (r *Registry) Get(user string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[user]
	return s, ok
}

func (r *Registry) Drop(user string) {
	r.mu.Lock()
	delete(r.sessions, user)
	r.mu.Unlock()
}
