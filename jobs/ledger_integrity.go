package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/ledgercore/ledgercore/internal/accounting"
	jobmetrics "github.com/ledgercore/ledgercore/internal/jobs"
)

// IntegrityChecker runs the ledger integrity report for a tenant.
type IntegrityChecker interface {
	CheckIntegrity(ctx context.Context, tenantID uuid.UUID) ([]accounting.IntegrityIssue, error)
}

// LedgerIntegrityJob reports ledger inconsistencies per tenant.
type LedgerIntegrityJob struct {
	Checker IntegrityChecker
	Tenants TenantLister
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewLedgerIntegrityJob initialises the integrity handler.
func NewLedgerIntegrityJob(checker IntegrityChecker, tenants TenantLister, logger *slog.Logger, metrics *jobmetrics.Metrics) *LedgerIntegrityJob {
	return &LedgerIntegrityJob{Checker: checker, Tenants: tenants, Logger: logger, Metrics: metrics}
}

// Handle checks every requested tenant. A failing tenant does not stop the
// others; all failures are returned together.
func (j *LedgerIntegrityJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Checker == nil {
		return errors.New("ledger integrity: handler not configured")
	}
	tracker := j.Metrics.Track(TaskLedgerIntegrity)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	_, tenants, err := resolveTenants(ctx, t, j.Tenants)
	if err != nil {
		return err
	}
	logger := jobLogger(j.Logger).With(slog.String("job", TaskLedgerIntegrity))

	var errs []error
	findings := 0
	for _, tenant := range tenants {
		issues, err := j.Checker.CheckIntegrity(ctx, tenant)
		if err != nil {
			logger.Error("integrity check failed", slog.String("tenant_id", tenant.String()), slog.Any("error", err))
			errs = append(errs, err)
			continue
		}
		byKind := make(map[string]int)
		for _, issue := range issues {
			logger.Warn("ledger integrity issue",
				slog.String("tenant_id", tenant.String()),
				slog.String("kind", issue.Kind),
				slog.String("entry", issue.Number),
				slog.String("detail", issue.Detail),
			)
			byKind[issue.Kind]++
		}
		for kind, n := range byKind {
			j.Metrics.AddFindings(kind, tenant, n)
		}
		findings += len(issues)
	}
	logger.Info("ledger integrity completed", slog.Int("tenants", len(tenants)), slog.Int("issues", findings))
	return errors.Join(errs...)
}

func jobLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
