package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ledgercore/ledgercore/internal/accounting"
)

// Exit codes shared by the ledger commands.
const (
	ExitOK       = 0
	ExitError    = 1
	ExitFindings = 10
)

// LedgerReader is the read side of the coordinator.
type LedgerReader interface {
	TrialBalance(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (accounting.TrialBalance, error)
	CheckIntegrity(ctx context.Context, tenantID uuid.UUID) ([]accounting.IntegrityIssue, error)
}

// LedgerCLI prints ledger reports for operators.
type LedgerCLI struct {
	ledger LedgerReader
	now    func() time.Time
}

// NewLedgerCLI constructs the helper.
func NewLedgerCLI(ledger LedgerReader) (*LedgerCLI, error) {
	if ledger == nil {
		return nil, errors.New("ledger cli: reader is required")
	}
	return &LedgerCLI{ledger: ledger, now: time.Now}, nil
}

// LedgerOptions are the flags shared by ledger commands.
type LedgerOptions struct {
	TenantID   string
	AsOf       string
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

func (o *LedgerOptions) defaults() {
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
}

// IntegritySummary is the JSON output of the integrity command.
type IntegritySummary struct {
	TenantID uuid.UUID        `json:"tenant_id"`
	OK       bool             `json:"ok"`
	Issues   []IntegrityIssue `json:"issues"`
}

// IntegrityIssue is one reported inconsistency.
type IntegrityIssue struct {
	Kind   string `json:"kind"`
	Number string `json:"number"`
	Detail string `json:"detail"`
}

// IntegrityCommand runs the integrity report. It exits with ExitFindings when
// any issue is found.
func (c *LedgerCLI) IntegrityCommand(ctx context.Context, opts LedgerOptions) int {
	opts.defaults()
	tenantID, err := uuid.Parse(strings.TrimSpace(opts.TenantID))
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "integrity: invalid tenant %q\n", opts.TenantID)
		return ExitError
	}
	issues, err := c.ledger.CheckIntegrity(ctx, tenantID)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "integrity: %v\n", err)
		return ExitError
	}
	summary := IntegritySummary{TenantID: tenantID, OK: len(issues) == 0, Issues: make([]IntegrityIssue, 0, len(issues))}
	for _, issue := range issues {
		summary.Issues = append(summary.Issues, IntegrityIssue{Kind: issue.Kind, Number: issue.Number, Detail: issue.Detail})
	}
	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(summary); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "integrity: encode json: %v\n", err)
			return ExitError
		}
	} else {
		_, _ = fmt.Fprintf(opts.Stdout, "Ledger integrity for tenant %s\n", tenantID)
		if summary.OK {
			_, _ = fmt.Fprintln(opts.Stdout, "No issues found.")
		}
		for _, issue := range summary.Issues {
			_, _ = fmt.Fprintf(opts.Stdout, " - [%s] %s: %s\n", issue.Kind, issue.Number, issue.Detail)
		}
	}
	if !summary.OK {
		return ExitFindings
	}
	return ExitOK
}

// TrialBalanceCommand prints account totals up to the end of AsOf (YYYY-MM-DD,
// today when empty). It exits with ExitFindings when the sides disagree.
func (c *LedgerCLI) TrialBalanceCommand(ctx context.Context, opts LedgerOptions) int {
	opts.defaults()
	tenantID, err := uuid.Parse(strings.TrimSpace(opts.TenantID))
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "trial-balance: invalid tenant %q\n", opts.TenantID)
		return ExitError
	}
	asOf := c.now().UTC()
	if opts.AsOf != "" {
		day, err := time.Parse(time.DateOnly, strings.TrimSpace(opts.AsOf))
		if err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "trial-balance: invalid date %q (expected YYYY-MM-DD)\n", opts.AsOf)
			return ExitError
		}
		asOf = day.Add(24*time.Hour - time.Nanosecond)
	}
	tb, err := c.ledger.TrialBalance(ctx, tenantID, asOf)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "trial-balance: %v\n", err)
		return ExitError
	}
	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(tb); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "trial-balance: encode json: %v\n", err)
			return ExitError
		}
	} else {
		_, _ = fmt.Fprintf(opts.Stdout, "Trial balance for tenant %s as of %s\n", tenantID, asOf.Format(time.DateOnly))
		for _, row := range tb.Rows {
			_, _ = fmt.Fprintf(opts.Stdout, "%-8s %-32s %14s %14s\n", row.Code, row.Name, row.Debit.StringFixed(2), row.Credit.StringFixed(2))
		}
		_, _ = fmt.Fprintf(opts.Stdout, "%-8s %-32s %14s %14s\n", "", "TOTAL", tb.TotalDebit.StringFixed(2), tb.TotalCredit.StringFixed(2))
	}
	if !tb.Balanced() {
		return ExitFindings
	}
	return ExitOK
}
