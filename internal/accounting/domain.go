package accounting

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgercore/ledgercore/internal/shared"
)

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// DebitNormal reports whether balances of this type grow with debits.
func (t AccountType) DebitNormal() bool {
	return t == AccountTypeAsset || t == AccountTypeExpense
}

// Source types recorded on journal entries.
const (
	SourceSalesOrder      = "SalesOrder"
	SourceGoodsReceipt    = "GoodsReceipt"
	SourcePayment         = "Payment"
	SourceStockAdjustment = "StockAdjustment"
	SourceManual          = "Manual"
	SourceReversal        = "Reversal"
)

// Account models a chart of accounts node.
type Account struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Code      string
	Name      string
	Type      AccountType
	ParentID  *uuid.UUID
	IsActive  bool
	CreatedAt time.Time
}

// JournalEntry captures posting metadata.
type JournalEntry struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	Number     string
	Date       time.Time
	SourceType string
	SourceID   uuid.UUID
	Memo       string
	Posted     bool
	ReversedBy *uuid.UUID
	CreatedBy  uuid.UUID
	CreatedAt  time.Time
	Lines      []JournalLine
}

// Totals sums the debit and credit sides.
func (e JournalEntry) Totals() (decimal.Decimal, decimal.Decimal) {
	debit, credit := decimal.Zero, decimal.Zero
	for _, l := range e.Lines {
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	return debit, credit
}

// JournalLine stores debit or credit amount for an account.
type JournalLine struct {
	ID        uuid.UUID
	EntryID   uuid.UUID
	LineNo    int
	AccountID uuid.UUID
	Debit     decimal.Decimal
	Credit    decimal.Decimal
	Memo      string
}

// PostingLine describes a journal line for a posting request.
type PostingLine struct {
	AccountID uuid.UUID
	Debit     decimal.Decimal
	Credit    decimal.Decimal
	Memo      string
}

// Debit builds a debit line.
func Debit(accountID uuid.UUID, amount decimal.Decimal, memo string) PostingLine {
	return PostingLine{AccountID: accountID, Debit: amount, Memo: memo}
}

// Credit builds a credit line.
func Credit(accountID uuid.UUID, amount decimal.Decimal, memo string) PostingLine {
	return PostingLine{AccountID: accountID, Credit: amount, Memo: memo}
}

// PostingInput groups fields required to create a journal entry.
type PostingInput struct {
	TenantID   uuid.UUID
	SourceType string
	SourceID   uuid.UUID
	Date       time.Time
	Memo       string
	ActorID    uuid.UUID
	Lines      []PostingLine
}

// ReverseInput wraps parameters for reversal.
type ReverseInput struct {
	TenantID uuid.UUID
	EntryID  uuid.UUID
	ActorID  uuid.UUID
	Date     time.Time
	Memo     string
}

// CreateAccountInput describes a new chart of accounts node.
type CreateAccountInput struct {
	TenantID uuid.UUID
	Code     string
	Name     string
	Type     AccountType
	ParentID *uuid.UUID
}

var (
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = errors.New("accounting: journal requires at least two lines")
	// ErrSourceConflict is returned by repositories when the source unique key trips.
	ErrSourceConflict = errors.New("accounting: source link conflict")
	// ErrMappingNotFound indicates account mapping missing.
	ErrMappingNotFound = errors.New("accounting: account mapping not found")
)

// Validate checks the posting shape and balance. Amounts are compared after
// half-up rounding to money precision.
func (in PostingInput) Validate() error {
	if in.TenantID == uuid.Nil {
		return shared.Invalid("tenant_id", "required")
	}
	if in.ActorID == uuid.Nil {
		return shared.Invalid("actor_id", "required")
	}
	if in.SourceType == "" {
		return shared.Invalid("source_type", "required")
	}
	if in.SourceID == uuid.Nil {
		return shared.Invalid("source_id", "required")
	}
	if len(in.Lines) < 2 {
		return fmt.Errorf("%w: %w", shared.ErrValidation, ErrTooFewLines)
	}
	debit, credit := decimal.Zero, decimal.Zero
	for idx, line := range in.Lines {
		field := fmt.Sprintf("lines[%d]", idx)
		if line.AccountID == uuid.Nil {
			return shared.Invalid(field, "missing account")
		}
		d, c := shared.RoundMoney(line.Debit), shared.RoundMoney(line.Credit)
		if d.IsNegative() || c.IsNegative() {
			return shared.Invalid(field, "negative amount")
		}
		if d.IsPositive() == c.IsPositive() {
			return shared.Invalid(field, "exactly one of debit or credit must be positive")
		}
		debit = debit.Add(d)
		credit = credit.Add(c)
	}
	if !debit.Equal(credit) {
		return &shared.UnbalancedEntryError{Debits: debit, Credits: credit}
	}
	return nil
}

// AccountBalance aggregates postings for one account.
type AccountBalance struct {
	AccountID uuid.UUID
	Code      string
	Name      string
	Type      AccountType
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// Balance is signed on the account's normal side.
func (b AccountBalance) Balance() decimal.Decimal {
	if b.Type.DebitNormal() {
		return b.Debit.Sub(b.Credit)
	}
	return b.Credit.Sub(b.Debit)
}

// EntryTotals summarises one posted entry for integrity checks.
type EntryTotals struct {
	EntryID uuid.UUID
	Number  string
	Debit   decimal.Decimal
	Credit  decimal.Decimal
	Lines   int
}
