// Package jobs contains the background task definitions and the Asynq
// worker runtime.
package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/inkwell-press/inkwell/internal/authz"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypePurgeGrants removes expired temporary permission grants.
	TaskTypePurgeGrants = "authz:purge_grants"
	// TaskTypeWarmCatalog rebuilds the permission catalog cache.
	TaskTypeWarmCatalog = "authz:warm_catalog"
)

// JobObserver counts job runs for metrics. A nil observer disables it.
type JobObserver interface {
	ObserveJob(task, status string)
}

// GrantPurger is the slice of the authorization engine the purge task
// needs. *authz.Service implements it.
type GrantPurger interface {
	PurgeExpiredTemporaryPermissions(ctx context.Context) (int64, error)
}

// Tasks bundles the handlers with their dependencies.
type Tasks struct {
	Authz    GrantPurger
	Catalog  authz.Catalog
	Logger   *slog.Logger
	Observer JobObserver
}

// NewPurgeGrantsTask constructs the purge task. It carries no payload.
func NewPurgeGrantsTask() *asynq.Task {
	return asynq.NewTask(TaskTypePurgeGrants, nil)
}

// NewWarmCatalogTask constructs the catalog warmup task.
func NewWarmCatalogTask() *asynq.Task {
	return asynq.NewTask(TaskTypeWarmCatalog, nil)
}

// HandlePurgeGrants deletes all expired temporary grants.
func (t *Tasks) HandlePurgeGrants(ctx context.Context, task *asynq.Task) error {
	removed, err := t.Authz.PurgeExpiredTemporaryPermissions(ctx)
	if err != nil {
		t.observe(TaskTypePurgeGrants, "error")
		return err
	}
	if t.Logger != nil {
		t.Logger.Info("purged expired grants",
			slog.String("job", TaskTypePurgeGrants),
			slog.Int64("removed", removed))
	}
	t.observe(TaskTypePurgeGrants, "ok")
	return nil
}

// HandleWarmCatalog refreshes the permission catalog so the first
// request after a deploy does not pay the rebuild.
func (t *Tasks) HandleWarmCatalog(ctx context.Context, task *asynq.Task) error {
	if t.Catalog == nil {
		return nil
	}
	if err := t.Catalog.Invalidate(ctx); err != nil {
		t.observe(TaskTypeWarmCatalog, "error")
		return err
	}
	if t.Logger != nil {
		t.Logger.Info("permission catalog warmed", slog.String("job", TaskTypeWarmCatalog))
	}
	t.observe(TaskTypeWarmCatalog, "ok")
	return nil
}

func (t *Tasks) observe(task, status string) {
	if t.Observer != nil {
		t.Observer.ObserveJob(task, status)
	}
}
