package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/ledgercore/ledgercore/internal/coordinator"
	"github.com/ledgercore/ledgercore/internal/inventory"
	jobmetrics "github.com/ledgercore/ledgercore/internal/jobs"
)

// ReorderScanner lists low items and audits each one.
type ReorderScanner interface {
	ScanReorder(ctx context.Context, actor coordinator.Actor) ([]inventory.Item, error)
}

// ReorderScanJob flags items at or below their reorder point.
type ReorderScanJob struct {
	Scanner     ReorderScanner
	Tenants     TenantLister
	SystemActor uuid.UUID
	Logger      *slog.Logger
	Metrics     *jobmetrics.Metrics
}

// NewReorderScanJob initialises the reorder scan handler. systemActor is
// recorded as the actor of the audit entries unless the task names one.
func NewReorderScanJob(scanner ReorderScanner, tenants TenantLister, systemActor uuid.UUID, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReorderScanJob {
	return &ReorderScanJob{Scanner: scanner, Tenants: tenants, SystemActor: systemActor, Logger: logger, Metrics: metrics}
}

// Handle scans every requested tenant.
func (j *ReorderScanJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Scanner == nil {
		return errors.New("reorder scan: handler not configured")
	}
	tracker := j.Metrics.Track(TaskInventoryReorderScan)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	payload, tenants, err := resolveTenants(ctx, t, j.Tenants)
	if err != nil {
		return err
	}
	actor := payload.ActorID
	if actor == uuid.Nil {
		actor = j.SystemActor
	}
	if actor == uuid.Nil {
		return errors.Join(errors.New("reorder scan: no actor configured"), asynq.SkipRetry)
	}
	logger := jobLogger(j.Logger).With(slog.String("job", TaskInventoryReorderScan))

	var errs []error
	for _, tenant := range tenants {
		items, err := j.Scanner.ScanReorder(ctx, coordinator.Actor{TenantID: tenant, ActorID: actor})
		if err != nil {
			logger.Error("reorder scan failed", slog.String("tenant_id", tenant.String()), slog.Any("error", err))
			errs = append(errs, err)
			continue
		}
		for _, item := range items {
			logger.Warn("item below reorder point",
				slog.String("tenant_id", tenant.String()),
				slog.String("sku", item.SKU),
				slog.String("on_hand", item.StockQty.String()),
				slog.String("reorder_point", item.ReorderPoint.String()),
			)
		}
		j.Metrics.AddFindings("below_reorder", tenant, len(items))
	}
	return errors.Join(errs...)
}
