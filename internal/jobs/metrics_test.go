package jobmetrics

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue next
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestTrackerRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	require.NoError(t, m.Track("ledger:integrity").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("ledger:integrity").End(boom), boom)

	require.Equal(t, float64(1), counterValue(t, reg, "ledgercore_jobs_total", map[string]string{"job": "ledger:integrity", "status": "success"}))
	require.Equal(t, float64(1), counterValue(t, reg, "ledgercore_jobs_failures_total", map[string]string{"job": "ledger:integrity"}))
}

func TestFindingsIgnoreEmptyCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	tenant := uuid.New()

	m.AddFindings("unbalanced", tenant, 0)
	m.AddFindings("unbalanced", tenant, 2)
	require.Equal(t, float64(2), counterValue(t, reg, "ledgercore_job_findings_total", map[string]string{"kind": "unbalanced", "tenant": tenant.String()}))

	var nilMetrics *Metrics
	nilMetrics.AddFindings("unbalanced", tenant, 1)
	require.NoError(t, nilMetrics.Track("x").End(nil))
}
