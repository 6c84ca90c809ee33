package accounting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ledgercore/ledgercore/internal/numbering"
	"github.com/ledgercore/ledgercore/internal/shared"
)

// Poster validates and persists journal entries inside a caller-owned transaction.
type Poster struct {
	numbers *numbering.Generator
	now     func() time.Time
}

// NewPoster constructs the ledger poster.
func NewPoster(numbers *numbering.Generator) *Poster {
	if numbers == nil {
		numbers = numbering.NewGenerator()
	}
	return &Poster{numbers: numbers, now: time.Now}
}

// WithNow overrides the clock for testing.
func (p *Poster) WithNow(now func() time.Time) {
	if now != nil {
		p.now = now
		p.numbers.WithNow(now)
	}
}

// Post writes a balanced entry with a fresh JE number. Nothing is written when
// validation fails or the source reference already has an entry.
func (p *Poster) Post(ctx context.Context, tx TxRepository, seq numbering.TxRepository, in PostingInput) (JournalEntry, error) {
	if err := in.Validate(); err != nil {
		return JournalEntry{}, err
	}
	if err := p.ensureAccounts(ctx, tx, in); err != nil {
		return JournalEntry{}, err
	}
	existing, found, err := tx.FindEntryBySource(ctx, in.TenantID, in.SourceType, in.SourceID)
	if err != nil {
		return JournalEntry{}, err
	}
	if found {
		return JournalEntry{}, &shared.DuplicatePostingError{SourceType: in.SourceType, SourceID: in.SourceID, EntryID: existing.ID}
	}

	date := in.Date
	if date.IsZero() {
		date = p.now()
	}
	number, err := p.numbers.Next(ctx, seq, in.TenantID, numbering.KindJournalEntry)
	if err != nil {
		return JournalEntry{}, err
	}
	entry := JournalEntry{
		ID:         uuid.New(),
		TenantID:   in.TenantID,
		Number:     number,
		Date:       date,
		SourceType: in.SourceType,
		SourceID:   in.SourceID,
		Memo:       in.Memo,
		CreatedBy:  in.ActorID,
		CreatedAt:  p.now(),
	}
	entry.Lines = toJournalLines(entry.ID, in.Lines)
	if err := tx.InsertJournalEntry(ctx, entry); err != nil {
		if errors.Is(err, ErrSourceConflict) {
			return JournalEntry{}, &shared.DuplicatePostingError{SourceType: in.SourceType, SourceID: in.SourceID}
		}
		return JournalEntry{}, err
	}
	if err := tx.InsertJournalLines(ctx, in.TenantID, entry.ID, entry.Lines); err != nil {
		return JournalEntry{}, err
	}
	if err := tx.MarkPosted(ctx, in.TenantID, entry.ID); err != nil {
		return JournalEntry{}, err
	}
	entry.Posted = true
	return entry, nil
}

// Reverse posts the mirror image of an entry and links the original to it.
func (p *Poster) Reverse(ctx context.Context, tx TxRepository, seq numbering.TxRepository, in ReverseInput) (JournalEntry, error) {
	if in.EntryID == uuid.Nil {
		return JournalEntry{}, shared.Invalid("entry_id", "required")
	}
	original, err := tx.GetJournalEntry(ctx, in.TenantID, in.EntryID)
	if err != nil {
		return JournalEntry{}, err
	}
	if original.ReversedBy != nil {
		return JournalEntry{}, &shared.DuplicatePostingError{SourceType: SourceReversal, SourceID: original.ID, EntryID: *original.ReversedBy}
	}
	date := in.Date
	if date.IsZero() {
		date = p.now()
	}
	reversal, err := p.Post(ctx, tx, seq, PostingInput{
		TenantID:   in.TenantID,
		SourceType: SourceReversal,
		SourceID:   original.ID,
		Date:       date,
		Memo:       defaultReversalMemo(in.Memo, original.Number),
		ActorID:    in.ActorID,
		Lines:      reverseLines(original.Lines),
	})
	if err != nil {
		return JournalEntry{}, err
	}
	if err := tx.MarkReversed(ctx, in.TenantID, original.ID, reversal.ID); err != nil {
		return JournalEntry{}, err
	}
	return reversal, nil
}

func (p *Poster) ensureAccounts(ctx context.Context, tx TxRepository, in PostingInput) error {
	seen := make(map[uuid.UUID]struct{}, len(in.Lines))
	for _, line := range in.Lines {
		if _, ok := seen[line.AccountID]; ok {
			continue
		}
		seen[line.AccountID] = struct{}{}
		account, err := tx.GetAccount(ctx, in.TenantID, line.AccountID)
		if err != nil {
			return err
		}
		if !account.IsActive {
			return shared.Invalid("account_id", "account %s is inactive", account.Code)
		}
	}
	return nil
}

func toJournalLines(entryID uuid.UUID, lines []PostingLine) []JournalLine {
	out := make([]JournalLine, 0, len(lines))
	for idx, line := range lines {
		out = append(out, JournalLine{
			ID:        uuid.New(),
			EntryID:   entryID,
			LineNo:    idx + 1,
			AccountID: line.AccountID,
			Debit:     shared.RoundMoney(line.Debit),
			Credit:    shared.RoundMoney(line.Credit),
			Memo:      line.Memo,
		})
	}
	return out
}

func reverseLines(lines []JournalLine) []PostingLine {
	out := make([]PostingLine, 0, len(lines))
	for _, line := range lines {
		out = append(out, PostingLine{
			AccountID: line.AccountID,
			Debit:     line.Credit,
			Credit:    line.Debit,
			Memo:      line.Memo,
		})
	}
	return out
}

func defaultReversalMemo(memo, number string) string {
	if memo != "" {
		return memo
	}
	return fmt.Sprintf("Reversal of %s", number)
}

// Chart maintains the chart of accounts and account mappings.
type Chart struct {
	now func() time.Time
}

// NewChart constructs Chart.
func NewChart() *Chart {
	return &Chart{now: time.Now}
}

// WithNow overrides the clock for testing.
func (c *Chart) WithNow(now func() time.Time) {
	if now != nil {
		c.now = now
	}
}

// CreateAccount inserts a new account. Codes are unique per tenant and a
// parent must belong to the same tenant.
func (c *Chart) CreateAccount(ctx context.Context, tx TxRepository, in CreateAccountInput) (Account, error) {
	code := strings.TrimSpace(in.Code)
	switch {
	case in.TenantID == uuid.Nil:
		return Account{}, shared.Invalid("tenant_id", "required")
	case code == "":
		return Account{}, shared.Invalid("code", "required")
	case strings.TrimSpace(in.Name) == "":
		return Account{}, shared.Invalid("name", "required")
	case !in.Type.Valid():
		return Account{}, shared.Invalid("type", "unknown account type %q", in.Type)
	}
	if _, found, err := tx.FindAccountByCode(ctx, in.TenantID, code); err != nil {
		return Account{}, err
	} else if found {
		return Account{}, shared.Invalid("code", "account code %s already exists", code)
	}
	if in.ParentID != nil {
		if _, err := tx.GetAccount(ctx, in.TenantID, *in.ParentID); err != nil {
			return Account{}, err
		}
	}
	account := Account{
		ID:        uuid.New(),
		TenantID:  in.TenantID,
		Code:      code,
		Name:      strings.TrimSpace(in.Name),
		Type:      in.Type,
		ParentID:  in.ParentID,
		IsActive:  true,
		CreatedAt: c.now(),
	}
	if err := tx.InsertAccount(ctx, account); err != nil {
		return Account{}, err
	}
	return account, nil
}

// ChangeAccountType is only allowed while the account has no postings.
func (c *Chart) ChangeAccountType(ctx context.Context, tx TxRepository, tenantID, accountID uuid.UUID, to AccountType) (Account, error) {
	if !to.Valid() {
		return Account{}, shared.Invalid("type", "unknown account type %q", to)
	}
	account, err := tx.GetAccount(ctx, tenantID, accountID)
	if err != nil {
		return Account{}, err
	}
	if account.Type == to {
		return account, nil
	}
	used, err := tx.AccountHasLines(ctx, tenantID, accountID)
	if err != nil {
		return Account{}, err
	}
	if used {
		return Account{}, shared.Invalid("type", "account %s already has postings", account.Code)
	}
	if err := tx.UpdateAccountType(ctx, tenantID, accountID, to); err != nil {
		return Account{}, err
	}
	account.Type = to
	return account, nil
}

// MapAccount points a posting-rule key at an account of the tenant.
func (c *Chart) MapAccount(ctx context.Context, tx TxRepository, tenantID uuid.UUID, key string, accountID uuid.UUID) error {
	if !knownMappingKey(key) {
		return shared.Invalid("key", "unknown mapping key %q", key)
	}
	if _, err := tx.GetAccount(ctx, tenantID, accountID); err != nil {
		return err
	}
	return tx.UpsertMapping(ctx, tenantID, key, accountID)
}
