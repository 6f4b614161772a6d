package ledger

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/exordiom/talent-training/pkg/apis/training/v1"
	hferrors "github.com/exordiom/talent-training/pkg/errors"
	"github.com/exordiom/talent-training/pkg/store"
	"github.com/exordiom/talent-training/pkg/store/memstore"
)

func TestAppendNumbersSequentially(t *testing.T) {
	ctx := context.Background()
	l := New(memstore.New())

	latest, err := l.LatestAttemptNumber(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, latest)

	for want := 1; want <= 3; want++ {
		a := &v1.QuizAttempt{UserId: "u1", Score: 50}
		require.NoError(t, l.Append(ctx, a))
		assert.Equal(t, want, a.AttemptNumber)

		latest, err := l.LatestAttemptNumber(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, want, latest)
	}

	other, err := l.LatestAttemptNumber(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, 0, other)
}

func TestAppendRenumbersTakenAttempt(t *testing.T) {
	ctx := context.Background()
	l := New(memstore.New())

	require.NoError(t, l.Append(ctx, &v1.QuizAttempt{UserId: "u1", AttemptNumber: 1}))
	stale := &v1.QuizAttempt{UserId: "u1", AttemptNumber: 1}
	require.NoError(t, l.Append(ctx, stale))
	assert.Equal(t, 2, stale.AttemptNumber)
}

func TestConcurrentAppendsNeverShareANumber(t *testing.T) {
	ctx := context.Background()
	l := New(memstore.New())

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- l.Append(ctx, &v1.QuizAttempt{UserId: "u1", AttemptNumber: 1})
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
		}
	}

	attempts, err := l.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, attempts, succeeded)
	seen := map[int]bool{}
	for _, a := range attempts {
		assert.False(t, seen[a.AttemptNumber], "attempt %d recorded twice", a.AttemptNumber)
		seen[a.AttemptNumber] = true
	}
}

func TestAppendRequiresUser(t *testing.T) {
	err := New(memstore.New()).Append(context.Background(), &v1.QuizAttempt{})
	assert.True(t, hferrors.IsValidation(err))
}

func TestHasPassedAndList(t *testing.T) {
	ctx := context.Background()
	l := New(memstore.New())

	passed, err := l.HasPassed(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, passed)

	require.NoError(t, l.Append(ctx, &v1.QuizAttempt{UserId: "u1", Score: 90}))
	require.NoError(t, l.Append(ctx, &v1.QuizAttempt{UserId: "u1", Score: 100, Passed: true}))
	require.NoError(t, l.Append(ctx, &v1.QuizAttempt{UserId: "u2", Score: 60}))

	passed, err = l.HasPassed(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, passed)

	passed, err = l.HasPassed(ctx, "u2")
	require.NoError(t, err)
	assert.False(t, passed)

	attempts, err := l.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.Equal(t, 2, attempts[0].AttemptNumber)
	assert.Equal(t, 1, attempts[1].AttemptNumber)

	all, err := l.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

type failingStore struct {
	store.Store
}

func (failingStore) Query(ctx context.Context, filter store.Filter, out interface{}) error {
	return hferrors.NewStorage("connection refused")
}

func (failingStore) Insert(ctx context.Context, rec v1.Record) error {
	return hferrors.NewStorage("connection refused")
}

func TestAppendSurfacesStorageErrors(t *testing.T) {
	l := New(failingStore{})
	err := l.Append(context.Background(), &v1.QuizAttempt{UserId: "u1", AttemptNumber: 1})
	require.Error(t, err)
	assert.True(t, hferrors.IsStorage(err))

	_, err = l.LatestAttemptNumber(context.Background(), "u1")
	assert.True(t, hferrors.IsStorage(err))
}
