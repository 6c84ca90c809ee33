package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ledgercore/ledgercore/internal/accounting"
	"github.com/ledgercore/ledgercore/jobs"
)

type stubLedger struct {
	tb     accounting.TrialBalance
	issues []accounting.IntegrityIssue
	err    error
	asOf   time.Time
}

func (s *stubLedger) TrialBalance(_ context.Context, _ uuid.UUID, asOf time.Time) (accounting.TrialBalance, error) {
	s.asOf = asOf
	return s.tb, s.err
}

func (s *stubLedger) CheckIntegrity(context.Context, uuid.UUID) ([]accounting.IntegrityIssue, error) {
	return s.issues, s.err
}

func TestIntegrityCommandJSONFindings(t *testing.T) {
	ledger := &stubLedger{issues: []accounting.IntegrityIssue{
		{Kind: accounting.IssueDuplicateNumber, Number: "JE-2025-0004", Detail: "used by 2 entries"},
	}}
	cli, err := NewLedgerCLI(ledger)
	require.NoError(t, err)

	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	tenant := uuid.New()
	code := cli.IntegrityCommand(context.Background(), LedgerOptions{TenantID: tenant.String(), JSONOutput: true, Stdout: stdout, Stderr: stderr})
	require.Equal(t, ExitFindings, code)
	require.Empty(t, stderr.String())

	var summary IntegritySummary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	require.False(t, summary.OK)
	require.Equal(t, tenant, summary.TenantID)
	require.Equal(t, "JE-2025-0004", summary.Issues[0].Number)
}

func TestIntegrityCommandCleanLedger(t *testing.T) {
	cli, err := NewLedgerCLI(&stubLedger{})
	require.NoError(t, err)

	stdout := new(bytes.Buffer)
	code := cli.IntegrityCommand(context.Background(), LedgerOptions{TenantID: uuid.NewString(), Stdout: stdout, Stderr: new(bytes.Buffer)})
	require.Equal(t, ExitOK, code)
	require.Contains(t, stdout.String(), "No issues found.")
}

func TestIntegrityCommandErrors(t *testing.T) {
	cli, err := NewLedgerCLI(&stubLedger{err: errors.New("tenant not found")})
	require.NoError(t, err)

	stderr := new(bytes.Buffer)
	require.Equal(t, ExitError, cli.IntegrityCommand(context.Background(), LedgerOptions{TenantID: "acme", Stdout: new(bytes.Buffer), Stderr: stderr}))
	require.Contains(t, stderr.String(), "invalid tenant")

	stderr.Reset()
	require.Equal(t, ExitError, cli.IntegrityCommand(context.Background(), LedgerOptions{TenantID: uuid.NewString(), Stdout: new(bytes.Buffer), Stderr: stderr}))
	require.Contains(t, stderr.String(), "tenant not found")
}

func TestTrialBalanceCommand(t *testing.T) {
	amount := decimal.RequireFromString("93.6")
	ledger := &stubLedger{tb: accounting.TrialBalance{
		Rows: []accounting.AccountBalance{
			{Code: "1100", Name: "Receivables", Debit: amount, Credit: decimal.Zero},
			{Code: "4000", Name: "Revenue", Debit: decimal.Zero, Credit: amount},
		},
		TotalDebit:  amount,
		TotalCredit: amount,
	}}
	cli, err := NewLedgerCLI(ledger)
	require.NoError(t, err)

	stdout := new(bytes.Buffer)
	code := cli.TrialBalanceCommand(context.Background(), LedgerOptions{TenantID: uuid.NewString(), AsOf: "2025-03-31", Stdout: stdout, Stderr: new(bytes.Buffer)})
	require.Equal(t, ExitOK, code)
	require.Equal(t, "2025-03-31", ledger.asOf.Format(time.DateOnly))
	require.Contains(t, stdout.String(), "93.60")

	ledger.tb.TotalCredit = decimal.Zero
	code = cli.TrialBalanceCommand(context.Background(), LedgerOptions{TenantID: uuid.NewString(), Stdout: new(bytes.Buffer), Stderr: new(bytes.Buffer)})
	require.Equal(t, ExitFindings, code)

	stderr := new(bytes.Buffer)
	code = cli.TrialBalanceCommand(context.Background(), LedgerOptions{TenantID: uuid.NewString(), AsOf: "31/03/2025", Stdout: new(bytes.Buffer), Stderr: stderr})
	require.Equal(t, ExitError, code)
	require.Contains(t, stderr.String(), "invalid date")
}

func TestBuildTask(t *testing.T) {
	tenant := uuid.New()
	task, err := BuildTask(jobs.TaskLedgerIntegrity, tenant)
	require.NoError(t, err)
	require.Equal(t, jobs.TaskLedgerIntegrity, task.Type())

	var payload jobs.TenantPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.Equal(t, tenant, payload.TenantID)

	_, err = BuildTask("fx:backfill", uuid.Nil)
	require.Error(t, err)
}

func TestNewLedgerCLIRequiresReader(t *testing.T) {
	_, err := NewLedgerCLI(nil)
	require.Error(t, err)
}
