package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/inkwell-press/inkwell/internal/authz"
)

type stubPurger struct {
	removed int64
	err     error
	calls   int
}

func (s *stubPurger) PurgeExpiredTemporaryPermissions(ctx context.Context) (int64, error) {
	s.calls++
	return s.removed, s.err
}

type stubCatalog struct {
	err         error
	invalidated int
}

func (s *stubCatalog) Get(ctx context.Context) (map[string]authz.Permission, error) {
	return nil, nil
}

func (s *stubCatalog) Invalidate(ctx context.Context) error {
	s.invalidated++
	return s.err
}

type recordingJobObserver struct {
	seen []string
}

func (r *recordingJobObserver) ObserveJob(task, status string) {
	r.seen = append(r.seen, task+":"+status)
}

func TestHandlePurgeGrants(t *testing.T) {
	ctx := context.Background()
	purger := &stubPurger{removed: 3}
	observer := &recordingJobObserver{}
	tasks := &Tasks{Authz: purger, Observer: observer}

	require.NoError(t, tasks.HandlePurgeGrants(ctx, NewPurgeGrantsTask()))
	require.Equal(t, 1, purger.calls)
	require.Equal(t, []string{TaskTypePurgeGrants + ":ok"}, observer.seen)
}

func TestHandlePurgeGrantsReportsFailure(t *testing.T) {
	ctx := context.Background()
	purger := &stubPurger{err: errors.New("database down")}
	observer := &recordingJobObserver{}
	tasks := &Tasks{Authz: purger, Observer: observer}

	require.Error(t, tasks.HandlePurgeGrants(ctx, NewPurgeGrantsTask()))
	require.Equal(t, []string{TaskTypePurgeGrants + ":error"}, observer.seen)
}

func TestHandleWarmCatalog(t *testing.T) {
	ctx := context.Background()
	catalog := &stubCatalog{}
	observer := &recordingJobObserver{}
	tasks := &Tasks{Catalog: catalog, Observer: observer}

	require.NoError(t, tasks.HandleWarmCatalog(ctx, NewWarmCatalogTask()))
	require.Equal(t, 1, catalog.invalidated)
	require.Equal(t, []string{TaskTypeWarmCatalog + ":ok"}, observer.seen)
}

func TestHandleWarmCatalogWithoutCache(t *testing.T) {
	ctx := context.Background()
	tasks := &Tasks{}

	// A deployment running without the Redis catalog has nothing to warm.
	require.NoError(t, tasks.HandleWarmCatalog(ctx, NewWarmCatalogTask()))
}
