package jobs

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerIntegrity scans posted entries for imbalance and numbering gaps.
	TaskLedgerIntegrity = "ledger:integrity"
	// TaskInventoryReorderScan flags items at or below their reorder point.
	TaskInventoryReorderScan = "inventory:reorder-scan"
)

// TenantPayload scopes a job run. A nil TenantID runs for every tenant; a nil
// ActorID falls back to the job's system actor.
type TenantPayload struct {
	TenantID uuid.UUID `json:"tenant_id"`
	ActorID  uuid.UUID `json:"actor_id"`
}

// NewLedgerIntegrityTask constructs an integrity check task.
func NewLedgerIntegrityTask(payload TenantPayload) (*asynq.Task, error) {
	return newTenantTask(TaskLedgerIntegrity, payload)
}

// NewReorderScanTask constructs a reorder scan task.
func NewReorderScanTask(payload TenantPayload) (*asynq.Task, error) {
	return newTenantTask(TaskInventoryReorderScan, payload)
}

func newTenantTask(taskType string, payload TenantPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, body, asynq.Queue(QueueDefault)), nil
}

// TenantLister enumerates tenants for jobs that run across all of them.
type TenantLister interface {
	ListTenants(ctx context.Context) ([]uuid.UUID, error)
}

// resolveTenants decodes the payload and expands a nil tenant to all tenants.
// A malformed payload is not retried.
func resolveTenants(ctx context.Context, t *asynq.Task, lister TenantLister) (TenantPayload, []uuid.UUID, error) {
	var payload TenantPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return TenantPayload{}, nil, asynq.SkipRetry
		}
	}
	if payload.TenantID != uuid.Nil {
		return payload, []uuid.UUID{payload.TenantID}, nil
	}
	if lister == nil {
		return payload, nil, nil
	}
	tenants, err := lister.ListTenants(ctx)
	if err != nil {
		return TenantPayload{}, nil, err
	}
	return payload, tenants, nil
}
