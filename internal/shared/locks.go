package shared

import (
	"fmt"
	"hash/fnv"

	"github.com/google/uuid"
)

// SequenceLockKey names the critical section for a document counter.
func SequenceLockKey(tenantID uuid.UUID, kind string, year int) string {
	return fmt.Sprintf("sequence:%s:%s:%d", tenantID, kind, year)
}

// AdvisoryLockID maps a lock key onto a Postgres advisory lock id.
func AdvisoryLockID(key string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return int64(h.Sum64())
}
