package report

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/golang/glog"
	"golang.org/x/sync/errgroup"

	v1 "github.com/exordiom/talent-training/pkg/apis/training/v1"
	"github.com/exordiom/talent-training/pkg/catalog"
	hferrors "github.com/exordiom/talent-training/pkg/errors"
	"github.com/exordiom/talent-training/pkg/gate"
	"github.com/exordiom/talent-training/pkg/ledger"
	"github.com/exordiom/talent-training/pkg/store"
)

type Tab string

const (
	TabAll        Tab = "all"
	TabCompleted  Tab = "completed"
	TabInProgress Tab = "in-progress"
)

type SortKey string

const (
	SortName       SortKey = "name"
	SortEmail      SortKey = "email"
	SortProgress   SortKey = "progress"
	SortCompletion SortKey = "completion"
	SortAttempts   SortKey = "attempts"
)

type Options struct {
	Search     string
	Tab        Tab
	Sort       SortKey
	Descending bool
}

// ParseOptions reads report options from query values. Empty values fall back to all
// users sorted by name ascending.
func ParseOptions(search, tab, sortKey, direction string) (Options, error) {
	o := Options{Search: search, Tab: TabAll, Sort: SortName}
	switch Tab(tab) {
	case "", TabAll:
	case TabCompleted:
		o.Tab = TabCompleted
	case TabInProgress, "incomplete":
		o.Tab = TabInProgress
	default:
		return o, hferrors.NewValidation(fmt.Sprintf("unknown tab %q", tab))
	}
	switch SortKey(sortKey) {
	case "":
	case SortName, SortEmail, SortProgress, SortCompletion, SortAttempts:
		o.Sort = SortKey(sortKey)
	default:
		return o, hferrors.NewValidation(fmt.Sprintf("unknown sort key %q", sortKey))
	}
	switch direction {
	case "", "asc":
	case "desc":
		o.Descending = true
	default:
		return o, hferrors.NewValidation(fmt.Sprintf("unknown sort direction %q", direction))
	}
	return o, nil
}

// Row is one user's line in the admin report.
type Row struct {
	UserId            string     `json:"user_id"`
	Name              string     `json:"name"`
	Email             string     `json:"email"`
	CompletedSections int        `json:"completed_sections"`
	TotalSections     int        `json:"total_sections"`
	Progress          int        `json:"progress"`
	Attempts          int        `json:"attempts"`
	LastAttempt       *time.Time `json:"last_attempt,omitempty"`
	Passed            bool       `json:"passed"`
	CompletionDate    *time.Time `json:"completion_date,omitempty"`
	RegisteredAt      time.Time  `json:"registered_at"`
}

type Report struct {
	GeneratedAt time.Time `json:"generated_at"`
	Total       int       `json:"total"`
	Completed   int       `json:"completed"`
	Rows        []Row     `json:"rows"`
}

type Builder struct {
	store   store.Store
	ledger  *ledger.Ledger
	catalog *catalog.Catalog
}

func NewBuilder(s store.Store, l *ledger.Ledger, c *catalog.Catalog) *Builder {
	return &Builder{store: s, ledger: l, catalog: c}
}

type data struct {
	profiles []v1.Profile
	progress []v1.SectionProgress
	attempts []v1.QuizAttempt
}

// load reads the three tables in parallel. A table that cannot be read is reported empty.
func (b *Builder) load(ctx context.Context) data {
	var d data
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := b.store.Query(gctx, store.Filter{}.Desc("created_at"), &d.profiles); err != nil {
			glog.Errorf("error reading profiles for report: %v", err)
			d.profiles = nil
		}
		return nil
	})
	g.Go(func() error {
		if err := b.store.Query(gctx, store.Filter{}, &d.progress); err != nil {
			glog.Errorf("error reading training progress for report: %v", err)
			d.progress = nil
		}
		return nil
	})
	g.Go(func() error {
		attempts, err := b.ledger.ListAll(gctx)
		if err != nil {
			glog.Errorf("error reading quiz attempts for report: %v", err)
			return nil
		}
		d.attempts = attempts
		return nil
	})
	_ = g.Wait()
	return d
}

func (b *Builder) Build(ctx context.Context, now time.Time, opts Options) *Report {
	d := b.load(ctx)
	sections := b.catalog.Sections()

	progressByUser := map[string][]v1.SectionProgress{}
	for _, p := range d.progress {
		progressByUser[p.UserId] = append(progressByUser[p.UserId], p)
	}
	attemptsByUser := map[string][]v1.QuizAttempt{}
	for _, a := range d.attempts {
		attemptsByUser[a.UserId] = append(attemptsByUser[a.UserId], a)
	}

	r := &Report{GeneratedAt: now, Rows: []Row{}}
	for _, p := range d.profiles {
		row := buildRow(p, sections, progressByUser[p.Id], attemptsByUser[p.Id])
		r.Total++
		if row.Passed {
			r.Completed++
		}
		if opts.matches(row) {
			r.Rows = append(r.Rows, row)
		}
	}
	sortRows(r.Rows, opts)
	return r
}

func buildRow(p v1.Profile, sections []v1.Section, progress []v1.SectionProgress, attempts []v1.QuizAttempt) Row {
	row := Row{
		UserId:            p.Id,
		Name:              p.DisplayName(),
		Email:             p.Email,
		CompletedSections: gate.CompletedCount(sections, progress),
		TotalSections:     len(sections),
		Progress:          gate.CompletionPercent(sections, progress),
		Attempts:          len(attempts),
		RegisteredAt:      p.CreatedAt,
	}
	for i := range attempts {
		a := attempts[i]
		if a.CompletedAt != nil && (row.LastAttempt == nil || a.CompletedAt.After(*row.LastAttempt)) {
			row.LastAttempt = a.CompletedAt
		}
		if a.Passed {
			row.Passed = true
			if a.CompletedAt != nil && (row.CompletionDate == nil || a.CompletedAt.Before(*row.CompletionDate)) {
				row.CompletionDate = a.CompletedAt
			}
		}
	}
	return row
}

func (o Options) matches(row Row) bool {
	if o.Search != "" {
		haystack := strings.ToLower(row.Name + " " + row.Email)
		if !strings.Contains(haystack, strings.ToLower(o.Search)) {
			return false
		}
	}
	switch o.Tab {
	case TabCompleted:
		return row.Passed
	case TabInProgress:
		return !row.Passed
	}
	return true
}

func sortRows(rows []Row, o Options) {
	cmp := func(a, b Row) int {
		switch o.Sort {
		case SortEmail:
			return strings.Compare(a.Email, b.Email)
		case SortProgress:
			return a.Progress - b.Progress
		case SortAttempts:
			return a.Attempts - b.Attempts
		case SortCompletion:
			if a.Passed != b.Passed {
				if a.Passed {
					return 1
				}
				return -1
			}
			return compareTimes(a.CompletionDate, b.CompletionDate)
		default:
			return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		c := cmp(rows[i], rows[j])
		if o.Descending {
			return c > 0
		}
		return c < 0
	})
}

func compareTimes(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	case a.Before(*b):
		return -1
	case a.After(*b):
		return 1
	}
	return 0
}
