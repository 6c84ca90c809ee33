package accounting

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgercore/ledgercore/internal/numbering"
)

// TrialBalance lists account totals up to a date.
type TrialBalance struct {
	TenantID    uuid.UUID
	AsOf        time.Time
	Rows        []AccountBalance
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
}

// Balanced reports whether both sides agree.
func (tb TrialBalance) Balanced() bool {
	return tb.TotalDebit.Equal(tb.TotalCredit)
}

// BuildTrialBalance aggregates posted lines per account.
func BuildTrialBalance(ctx context.Context, tx TxRepository, tenantID uuid.UUID, asOf time.Time) (TrialBalance, error) {
	rows, err := tx.AccountTotals(ctx, tenantID, asOf)
	if err != nil {
		return TrialBalance{}, err
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Code < rows[j].Code })
	tb := TrialBalance{TenantID: tenantID, AsOf: asOf, Rows: rows, TotalDebit: decimal.Zero, TotalCredit: decimal.Zero}
	for _, row := range rows {
		tb.TotalDebit = tb.TotalDebit.Add(row.Debit)
		tb.TotalCredit = tb.TotalCredit.Add(row.Credit)
	}
	return tb, nil
}

// Integrity issue kinds.
const (
	IssueUnbalanced      = "unbalanced"
	IssueTooFewLines     = "too_few_lines"
	IssueMalformedNumber = "malformed_number"
	IssueDuplicateNumber = "duplicate_number"
)

// IntegrityIssue describes one ledger inconsistency.
type IntegrityIssue struct {
	Kind    string
	EntryID uuid.UUID
	Number  string
	Detail  string
}

// CheckIntegrity scans posted entries for imbalance and numbering defects.
func CheckIntegrity(ctx context.Context, tx TxRepository, tenantID uuid.UUID) ([]IntegrityIssue, error) {
	totals, err := tx.ListEntryTotals(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	var issues []IntegrityIssue
	seen := make(map[string]uuid.UUID, len(totals))
	for _, t := range totals {
		if !t.Debit.Equal(t.Credit) {
			issues = append(issues, IntegrityIssue{Kind: IssueUnbalanced, EntryID: t.EntryID, Number: t.Number,
				Detail: fmt.Sprintf("debit %s credit %s", t.Debit.StringFixed(2), t.Credit.StringFixed(2))})
		}
		if t.Lines < 2 {
			issues = append(issues, IntegrityIssue{Kind: IssueTooFewLines, EntryID: t.EntryID, Number: t.Number,
				Detail: fmt.Sprintf("%d lines", t.Lines)})
		}
		if kind, _, _, err := numbering.Parse(t.Number); err != nil || kind != numbering.KindJournalEntry {
			issues = append(issues, IntegrityIssue{Kind: IssueMalformedNumber, EntryID: t.EntryID, Number: t.Number})
		}
		if other, ok := seen[t.Number]; ok {
			issues = append(issues, IntegrityIssue{Kind: IssueDuplicateNumber, EntryID: t.EntryID, Number: t.Number,
				Detail: "also used by " + other.String()})
		}
		seen[t.Number] = t.EntryID
	}
	return issues, nil
}
