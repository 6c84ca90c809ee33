package coordinator

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ledgercore/ledgercore/internal/accounting"
	"github.com/ledgercore/ledgercore/internal/audit"
	"github.com/ledgercore/ledgercore/internal/store"
)

const (
	entityJournalEntry = "JournalEntry"
	entityAccount      = "Account"
)

// PostManualEntry posts a hand-written balanced entry.
func (c *Coordinator) PostManualEntry(ctx context.Context, cmd PostManualEntry) (accounting.JournalEntry, error) {
	var posted accounting.JournalEntry
	err := c.execute(ctx, "PostManualEntry", func(r *run) error {
		if err := r.begin(cmd, cmd.Actor); err != nil {
			return err
		}
		source := cmd.Reference
		if source == uuid.Nil {
			source = uuid.New()
		}
		lines := make([]accounting.PostingLine, 0, len(cmd.Lines))
		for _, l := range cmd.Lines {
			lines = append(lines, accounting.PostingLine{AccountID: l.AccountID, Debit: l.Debit, Credit: l.Credit, Memo: l.Memo})
		}

		if err := r.enter(StepPosting); err != nil {
			return err
		}
		entry, err := c.poster.Post(r.ctx, r.scope.Ledger, r.scope.Sequences, accounting.PostingInput{
			TenantID:   cmd.TenantID,
			SourceType: accounting.SourceManual,
			SourceID:   source,
			Date:       cmd.Date,
			Memo:       cmd.Memo,
			ActorID:    cmd.ActorID,
			Lines:      lines,
		})
		if err != nil {
			return err
		}
		posted = entry
		debit, _ := entry.Totals()
		return r.record(auditEntry(cmd.Actor, "journal.posted", entityJournalEntry, entry.ID, map[string]any{
			"number": entry.Number,
			"amount": money(debit),
			"memo":   entry.Memo,
		}))
	})
	if err != nil {
		return accounting.JournalEntry{}, err
	}
	return posted, nil
}

// ReverseEntry posts the mirror image of an entry. An entry can be reversed
// once.
func (c *Coordinator) ReverseEntry(ctx context.Context, cmd ReverseEntry) (accounting.JournalEntry, error) {
	var reversal accounting.JournalEntry
	err := c.execute(ctx, "ReverseEntry", func(r *run) error {
		if err := r.begin(cmd, cmd.Actor); err != nil {
			return err
		}
		if err := r.enter(StepPosting); err != nil {
			return err
		}
		entry, err := c.poster.Reverse(r.ctx, r.scope.Ledger, r.scope.Sequences, accounting.ReverseInput{
			TenantID: cmd.TenantID,
			EntryID:  cmd.EntryID,
			ActorID:  cmd.ActorID,
			Date:     cmd.Date,
			Memo:     cmd.Memo,
		})
		if err != nil {
			return err
		}
		reversal = entry
		record := auditEntry(cmd.Actor, "journal.reversed", entityJournalEntry, cmd.EntryID, map[string]any{
			"reversal": entry.Number,
		})
		record.Severity = audit.SeverityWarning
		return r.record(record)
	})
	if err != nil {
		return accounting.JournalEntry{}, err
	}
	return reversal, nil
}

// CreateAccount adds an account to the tenant's chart.
func (c *Coordinator) CreateAccount(ctx context.Context, cmd CreateAccount) (accounting.Account, error) {
	var account accounting.Account
	err := c.execute(ctx, "CreateAccount", func(r *run) error {
		if err := r.begin(cmd, cmd.Actor); err != nil {
			return err
		}
		if err := r.enter(StepMutating); err != nil {
			return err
		}
		created, err := c.chart.CreateAccount(r.ctx, r.scope.Ledger, accounting.CreateAccountInput{
			TenantID: cmd.TenantID,
			Code:     cmd.Code,
			Name:     cmd.Name,
			Type:     cmd.Type,
			ParentID: cmd.ParentID,
		})
		if err != nil {
			return err
		}
		account = created
		return r.record(auditEntry(cmd.Actor, "account.created", entityAccount, account.ID, map[string]any{
			"code": account.Code,
			"type": string(account.Type),
		}))
	})
	if err != nil {
		return accounting.Account{}, err
	}
	return account, nil
}

// ChangeAccountType retypes an account that has no postings yet.
func (c *Coordinator) ChangeAccountType(ctx context.Context, cmd ChangeAccountType) (accounting.Account, error) {
	var account accounting.Account
	err := c.execute(ctx, "ChangeAccountType", func(r *run) error {
		if err := r.begin(cmd, cmd.Actor); err != nil {
			return err
		}
		if err := r.enter(StepMutating); err != nil {
			return err
		}
		changed, err := c.chart.ChangeAccountType(r.ctx, r.scope.Ledger, cmd.TenantID, cmd.AccountID, cmd.Type)
		if err != nil {
			return err
		}
		account = changed
		return r.record(auditEntry(cmd.Actor, "account.retyped", entityAccount, account.ID, map[string]any{
			"type": string(account.Type),
		}))
	})
	if err != nil {
		return accounting.Account{}, err
	}
	return account, nil
}

// MapAccount points a posting-rule key at an account.
func (c *Coordinator) MapAccount(ctx context.Context, cmd MapAccount) error {
	return c.execute(ctx, "MapAccount", func(r *run) error {
		if err := r.begin(cmd, cmd.Actor); err != nil {
			return err
		}
		if err := r.enter(StepMutating); err != nil {
			return err
		}
		if err := c.chart.MapAccount(r.ctx, r.scope.Ledger, cmd.TenantID, cmd.Key, cmd.AccountID); err != nil {
			return err
		}
		return r.record(auditEntry(cmd.Actor, "account.mapped", entityAccount, cmd.AccountID, map[string]any{"key": cmd.Key}))
	})
}

// TrialBalance sums posted lines per account up to asOf.
func (c *Coordinator) TrialBalance(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (accounting.TrialBalance, error) {
	var tb accounting.TrialBalance
	err := c.read(ctx, "TrialBalance", func(ctx context.Context, scope store.Scope) error {
		var err error
		tb, err = accounting.BuildTrialBalance(ctx, scope.Ledger, tenantID, asOf)
		return err
	})
	return tb, err
}

// CheckIntegrity lists posted entries that are unbalanced, too short or
// badly numbered.
func (c *Coordinator) CheckIntegrity(ctx context.Context, tenantID uuid.UUID) ([]accounting.IntegrityIssue, error) {
	var issues []accounting.IntegrityIssue
	err := c.read(ctx, "CheckIntegrity", func(ctx context.Context, scope store.Scope) error {
		var err error
		issues, err = accounting.CheckIntegrity(ctx, scope.Ledger, tenantID)
		return err
	})
	return issues, err
}

// AuditTimeline pages through a tenant's audit log, newest first.
func (c *Coordinator) AuditTimeline(ctx context.Context, tenantID uuid.UUID, filters audit.TimelineFilters) (audit.TimelinePage, error) {
	var page audit.TimelinePage
	err := c.read(ctx, "AuditTimeline", func(ctx context.Context, scope store.Scope) error {
		var err error
		page, err = audit.Timeline(ctx, scope.Audit, tenantID, filters)
		return err
	})
	return page, err
}
