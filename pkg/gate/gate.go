package gate

import (
	"context"
	"time"

	"github.com/golang/glog"
	"k8s.io/apimachinery/pkg/util/sets"

	v1 "github.com/exordiom/talent-training/pkg/apis/training/v1"
	"github.com/exordiom/talent-training/pkg/catalog"
	"github.com/exordiom/talent-training/pkg/store"
)

// SectionState is a section together with the status it has for one user.
type SectionState struct {
	v1.Section
	Status         v1.SectionStatus `json:"status"`
	CompletionDate string           `json:"completion_date,omitempty"`
}

// completedSet returns the ids of sections with a completed progress row.
func completedSet(progress []v1.SectionProgress) sets.String {
	done := sets.NewString()
	for _, p := range progress {
		if p.Completed {
			done.Insert(p.SectionId)
		}
	}
	return done
}

// Classify assigns a status to every section. The first section is never locked, a
// later section is available once the one before it is completed, and a completed
// section stays completed no matter what precedes it.
func Classify(sections []v1.Section, progress []v1.SectionProgress) []SectionState {
	done := completedSet(progress)
	dates := map[string]string{}
	for _, p := range progress {
		if p.Completed && p.CompletionDate != nil {
			dates[p.SectionId] = p.CompletionDate.UTC().Format(time.RFC3339)
		}
	}

	out := make([]SectionState, len(sections))
	for i, s := range sections {
		out[i] = SectionState{Section: s, Status: classify(i, sections, done)}
		if out[i].Status == v1.SectionStatusCompleted {
			out[i].CompletionDate = dates[s.Id]
		}
	}
	return out
}

func classify(i int, sections []v1.Section, done sets.String) v1.SectionStatus {
	switch {
	case done.Has(sections[i].Id):
		return v1.SectionStatusCompleted
	case i == 0:
		return v1.SectionStatusAvailable
	case done.Has(sections[i-1].Id):
		return v1.SectionStatusAvailable
	default:
		return v1.SectionStatusLocked
	}
}

// StatusOf returns the status of a single section. Unknown ids are locked.
func StatusOf(sections []v1.Section, progress []v1.SectionProgress, id string) v1.SectionStatus {
	done := completedSet(progress)
	for i := range sections {
		if sections[i].Id == id {
			return classify(i, sections, done)
		}
	}
	return v1.SectionStatusLocked
}

// CompletedCount counts distinct defined sections that are completed. Progress rows for
// ids outside the catalog are ignored.
func CompletedCount(sections []v1.Section, progress []v1.SectionProgress) int {
	done := completedSet(progress)
	n := 0
	for _, s := range sections {
		if done.Has(s.Id) {
			n++
		}
	}
	return n
}

func QuizAvailable(sections []v1.Section, progress []v1.SectionProgress) bool {
	return len(sections) > 0 && CompletedCount(sections, progress) == len(sections)
}

// CompletionPercent is the share of completed sections, rounded half up.
func CompletionPercent(sections []v1.Section, progress []v1.SectionProgress) int {
	if len(sections) == 0 {
		return 0
	}
	return (200*CompletedCount(sections, progress) + len(sections)) / (2 * len(sections))
}

// NextSection returns the first available, not yet completed section, or "".
func NextSection(sections []v1.Section, progress []v1.SectionProgress) string {
	for _, s := range Classify(sections, progress) {
		if s.Status == v1.SectionStatusAvailable {
			return s.Id
		}
	}
	return ""
}

// Gate evaluates section access for a user against the record store. Every call reads
// the store, nothing is cached between calls.
type Gate struct {
	store   store.Store
	catalog *catalog.Catalog
}

func New(s store.Store, c *catalog.Catalog) *Gate {
	return &Gate{store: s, catalog: c}
}

func (g *Gate) Catalog() *catalog.Catalog {
	return g.catalog
}

// Progress returns the user's progress rows. A failed read is logged and treated as
// no progress at all.
func (g *Gate) Progress(ctx context.Context, user string) []v1.SectionProgress {
	var progress []v1.SectionProgress
	if err := g.store.Query(ctx, store.Where("user_id", user), &progress); err != nil {
		glog.Errorf("error reading training progress for user %s: %v", user, err)
		return []v1.SectionProgress{}
	}
	return progress
}

func (g *Gate) SectionStatus(ctx context.Context, user, sectionId string) v1.SectionStatus {
	return StatusOf(g.catalog.Sections(), g.Progress(ctx, user), sectionId)
}

func (g *Gate) Sections(ctx context.Context, user string) []SectionState {
	return Classify(g.catalog.Sections(), g.Progress(ctx, user))
}

func (g *Gate) QuizAvailable(ctx context.Context, user string) bool {
	return QuizAvailable(g.catalog.Sections(), g.Progress(ctx, user))
}
