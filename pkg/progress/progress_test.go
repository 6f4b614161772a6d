package progress

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"

	v1 "github.com/exordiom/talent-training/pkg/apis/training/v1"
	"github.com/exordiom/talent-training/pkg/catalog"
	hferrors "github.com/exordiom/talent-training/pkg/errors"
	"github.com/exordiom/talent-training/pkg/gate"
	"github.com/exordiom/talent-training/pkg/store"
	"github.com/exordiom/talent-training/pkg/store/memstore"
)

var start = time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC)

func newTracker() (*Tracker, *gate.Gate, *clocktesting.FakePassiveClock) {
	s := memstore.New()
	g := gate.New(s, catalog.Default())
	clk := clocktesting.NewFakePassiveClock(start)
	return NewTracker(s, g, clk, 0), g, clk
}

func TestCompleteSection(t *testing.T) {
	ctx := context.Background()
	tr, g, _ := newTracker()

	p, err := tr.CompleteSection(ctx, "u1", "section1", 1)
	require.NoError(t, err)
	assert.True(t, p.Completed)
	assert.True(t, start.Equal(*p.CompletionDate))

	assert.Equal(t, v1.SectionStatusCompleted, g.SectionStatus(ctx, "u1", "section1"))
	assert.Equal(t, v1.SectionStatusAvailable, g.SectionStatus(ctx, "u1", "section2"))
}

func TestCompleteSectionRejects(t *testing.T) {
	ctx := context.Background()

	testCases := []struct {
		name     string
		user     string
		section  string
		watched  float64
		conflict bool
	}{
		{name: "no user", section: "section1", watched: 1},
		{name: "unknown section", user: "u1", section: "section9", watched: 1},
		{name: "not watched enough", user: "u1", section: "section1", watched: 0.5},
		{name: "locked section", user: "u1", section: "section2", watched: 1, conflict: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tr, _, _ := newTracker()
			_, err := tr.CompleteSection(ctx, tc.user, tc.section, tc.watched)
			require.Error(t, err)
			if tc.conflict {
				assert.True(t, hferrors.IsConflict(err), "got %v", err)
			} else {
				assert.True(t, hferrors.IsValidation(err), "got %v", err)
			}
		})
	}
}

func TestCompleteSectionKeepsFirstDate(t *testing.T) {
	ctx := context.Background()
	tr, _, clk := newTracker()

	_, err := tr.CompleteSection(ctx, "u1", "section1", 0.96)
	require.NoError(t, err)

	clk.SetTime(start.Add(48 * time.Hour))
	p, err := tr.CompleteSection(ctx, "u1", "section1", 1)
	require.NoError(t, err)
	assert.True(t, start.Equal(*p.CompletionDate))

	rows, err := tr.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, start.Equal(*rows[0].CompletionDate))
}

// racingStore lands another completion of the same section between the tracker's read
// and its write.
type racingStore struct {
	*memstore.MemStore
	earlier *v1.SectionProgress
}

func (r *racingStore) Upsert(ctx context.Context, rec v1.Record, on store.OnConflict) error {
	if r.earlier != nil {
		if err := r.MemStore.Insert(ctx, r.earlier); err != nil {
			return err
		}
		r.earlier = nil
	}
	return r.MemStore.Upsert(ctx, rec, on)
}

func TestCompleteSectionConcurrentKeepsFirstDate(t *testing.T) {
	ctx := context.Background()
	earlierDate := start.Add(-time.Minute)
	earlier := &v1.SectionProgress{UserId: "u1", SectionId: "section1", Completed: true, CompletionDate: &earlierDate}
	s := &racingStore{MemStore: memstore.New(), earlier: earlier}
	tr := NewTracker(s, gate.New(s, catalog.Default()), clocktesting.NewFakePassiveClock(start), 0)

	p, err := tr.CompleteSection(ctx, "u1", "section1", 1)
	require.NoError(t, err)
	assert.True(t, earlierDate.Equal(*p.CompletionDate), "got %v", p.CompletionDate)
	assert.Equal(t, earlier.Id, p.Id)

	rows, err := tr.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, earlierDate.Equal(*rows[0].CompletionDate))
}

type unreadableStore struct {
	*memstore.MemStore
}

func (unreadableStore) Query(ctx context.Context, filter store.Filter, out interface{}) error {
	return hferrors.NewStorage("connection reset")
}

func TestCompleteSectionSurfacesReadFailure(t *testing.T) {
	s := unreadableStore{memstore.New()}
	tr := NewTracker(s, gate.New(s, catalog.Default()), clocktesting.NewFakePassiveClock(start), 0)

	for _, section := range []string{"section1", "section2"} {
		_, err := tr.CompleteSection(context.Background(), "u1", section, 1)
		require.Error(t, err)
		assert.True(t, hferrors.IsStorage(err), "got %v", err)
		assert.False(t, hferrors.IsConflict(err))
	}
}

func TestThreshold(t *testing.T) {
	tr, _, _ := newTracker()
	assert.Equal(t, DefaultCompletionThreshold, tr.Threshold())

	s := memstore.New()
	custom := NewTracker(s, gate.New(s, catalog.Default()), clocktesting.NewFakePassiveClock(start), 0.5)
	_, err := custom.CompleteSection(context.Background(), "u1", "section1", 0.5)
	assert.NoError(t, err)
}
