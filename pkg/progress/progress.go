package progress

import (
	"context"
	"fmt"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"k8s.io/utils/clock"

	v1 "github.com/exordiom/talent-training/pkg/apis/training/v1"
	hferrors "github.com/exordiom/talent-training/pkg/errors"
	"github.com/exordiom/talent-training/pkg/gate"
	"github.com/exordiom/talent-training/pkg/store"
)

// DefaultCompletionThreshold is the share of a section video that has to be watched
// before the section counts as completed.
const DefaultCompletionThreshold = 0.95

var progressKey = []string{"user_id", "section_id"}

type Tracker struct {
	store     store.Store
	gate      *gate.Gate
	clock     clock.PassiveClock
	threshold float64
}

func NewTracker(s store.Store, g *gate.Gate, c clock.PassiveClock, threshold float64) *Tracker {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultCompletionThreshold
	}
	return &Tracker{store: s, gate: g, clock: c, threshold: threshold}
}

func (t *Tracker) Threshold() float64 {
	return t.threshold
}

// CompleteSection marks a section completed for user once enough of its video was
// watched. Completing a section twice keeps the first completion date.
func (t *Tracker) CompleteSection(ctx context.Context, user, sectionId string, watched float64) (*v1.SectionProgress, error) {
	if user == "" {
		return nil, hferrors.NewValidation("no user given")
	}
	if _, ok := t.gate.Catalog().Get(sectionId); !ok {
		return nil, hferrors.NewValidation(fmt.Sprintf("unknown section %s", sectionId))
	}
	if watched < t.threshold {
		return nil, hferrors.NewValidation(fmt.Sprintf("section %s watched %.0f%%, need %.0f%%",
			sectionId, watched*100, t.threshold*100))
	}

	progress, err := t.List(ctx, user)
	if err != nil {
		return nil, err
	}
	for i := range progress {
		if progress[i].SectionId == sectionId && progress[i].Completed {
			glog.V(4).Infof("section %s already completed by user %s", sectionId, user)
			return &progress[i], nil
		}
	}

	if gate.StatusOf(t.gate.Catalog().Sections(), progress, sectionId) == v1.SectionStatusLocked {
		return nil, hferrors.NewConflict(fmt.Sprintf("section %s is locked", sectionId))
	}

	now := t.clock.Now()
	p := &v1.SectionProgress{
		UserId:         user,
		SectionId:      sectionId,
		Completed:      true,
		CompletionDate: &now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	// a concurrent completion may have landed since the read; its date is kept
	err = t.store.Upsert(ctx, p, store.OnConflict{
		Keys:   progressKey,
		Update: []string{"completed", "updated_at"},
		Keep:   []string{"completion_date"},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "error completing section %s for user %s", sectionId, user)
	}
	glog.V(4).Infof("user %s completed section %s", user, sectionId)
	return p, nil
}

// List returns the user's progress rows. Unlike the gate, a failed read is returned.
func (t *Tracker) List(ctx context.Context, user string) ([]v1.SectionProgress, error) {
	var progress []v1.SectionProgress
	if err := t.store.Query(ctx, store.Where("user_id", user).Asc("section_id"), &progress); err != nil {
		return nil, errors.Wrapf(err, "error listing progress for user %s", user)
	}
	return progress, nil
}
