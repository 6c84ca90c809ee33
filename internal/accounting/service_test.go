package accounting

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ledgercore/ledgercore/internal/numbering"
	"github.com/ledgercore/ledgercore/internal/shared"
)

type stubTx struct {
	accounts map[uuid.UUID]Account
	mappings map[string]uuid.UUID
	entries  map[uuid.UUID]JournalEntry
	order    []uuid.UUID
	numbers  []string
}

func newStubTx() *stubTx {
	return &stubTx{accounts: map[uuid.UUID]Account{}, mappings: map[string]uuid.UUID{}, entries: map[uuid.UUID]JournalEntry{}}
}

func (tx *stubTx) GetAccount(ctx context.Context, tenantID, accountID uuid.UUID) (Account, error) {
	a, ok := tx.accounts[accountID]
	if !ok || a.TenantID != tenantID {
		return Account{}, shared.NewNotFound("account", accountID)
	}
	return a, nil
}

func (tx *stubTx) FindAccountByCode(ctx context.Context, tenantID uuid.UUID, code string) (Account, bool, error) {
	for _, a := range tx.accounts {
		if a.TenantID == tenantID && a.Code == code {
			return a, true, nil
		}
	}
	return Account{}, false, nil
}

func (tx *stubTx) InsertAccount(ctx context.Context, a Account) error {
	tx.accounts[a.ID] = a
	return nil
}

func (tx *stubTx) UpdateAccountType(ctx context.Context, tenantID, accountID uuid.UUID, t AccountType) error {
	a := tx.accounts[accountID]
	a.Type = t
	tx.accounts[accountID] = a
	return nil
}

func (tx *stubTx) AccountHasLines(ctx context.Context, tenantID, accountID uuid.UUID) (bool, error) {
	for _, e := range tx.entries {
		for _, l := range e.Lines {
			if l.AccountID == accountID {
				return true, nil
			}
		}
	}
	return false, nil
}

func (tx *stubTx) ResolveMapping(ctx context.Context, tenantID uuid.UUID, key string) (uuid.UUID, error) {
	id, ok := tx.mappings[tenantID.String()+key]
	if !ok {
		return uuid.Nil, ErrMappingNotFound
	}
	return id, nil
}

func (tx *stubTx) UpsertMapping(ctx context.Context, tenantID uuid.UUID, key string, accountID uuid.UUID) error {
	tx.mappings[tenantID.String()+key] = accountID
	return nil
}

func (tx *stubTx) FindEntryBySource(ctx context.Context, tenantID uuid.UUID, sourceType string, sourceID uuid.UUID) (JournalEntry, bool, error) {
	for _, e := range tx.entries {
		if e.TenantID == tenantID && e.SourceType == sourceType && e.SourceID == sourceID {
			return e, true, nil
		}
	}
	return JournalEntry{}, false, nil
}

func (tx *stubTx) InsertJournalEntry(ctx context.Context, e JournalEntry) error {
	e.Lines = nil
	tx.entries[e.ID] = e
	tx.order = append(tx.order, e.ID)
	return nil
}

func (tx *stubTx) InsertJournalLines(ctx context.Context, tenantID, entryID uuid.UUID, lines []JournalLine) error {
	e := tx.entries[entryID]
	e.Lines = append(e.Lines, lines...)
	tx.entries[entryID] = e
	return nil
}

func (tx *stubTx) MarkPosted(ctx context.Context, tenantID, entryID uuid.UUID) error {
	e := tx.entries[entryID]
	e.Posted = true
	tx.entries[entryID] = e
	return nil
}

func (tx *stubTx) GetJournalEntry(ctx context.Context, tenantID, entryID uuid.UUID) (JournalEntry, error) {
	e, ok := tx.entries[entryID]
	if !ok || e.TenantID != tenantID {
		return JournalEntry{}, shared.NewNotFound("journal entry", entryID)
	}
	return e, nil
}

func (tx *stubTx) MarkReversed(ctx context.Context, tenantID, entryID, reversalID uuid.UUID) error {
	e := tx.entries[entryID]
	e.ReversedBy = &reversalID
	tx.entries[entryID] = e
	return nil
}

func (tx *stubTx) AccountTotals(ctx context.Context, tenantID uuid.UUID, asOf time.Time) ([]AccountBalance, error) {
	byAccount := map[uuid.UUID]*AccountBalance{}
	for _, id := range tx.order {
		e := tx.entries[id]
		if e.TenantID != tenantID || !e.Posted || e.Date.After(asOf) {
			continue
		}
		for _, l := range e.Lines {
			b, ok := byAccount[l.AccountID]
			if !ok {
				a := tx.accounts[l.AccountID]
				b = &AccountBalance{AccountID: a.ID, Code: a.Code, Name: a.Name, Type: a.Type}
				byAccount[l.AccountID] = b
			}
			b.Debit = b.Debit.Add(l.Debit)
			b.Credit = b.Credit.Add(l.Credit)
		}
	}
	out := make([]AccountBalance, 0, len(byAccount))
	for _, b := range byAccount {
		out = append(out, *b)
	}
	return out, nil
}

func (tx *stubTx) ListEntryTotals(ctx context.Context, tenantID uuid.UUID) ([]EntryTotals, error) {
	var out []EntryTotals
	for _, id := range tx.order {
		e := tx.entries[id]
		if e.TenantID != tenantID || !e.Posted {
			continue
		}
		d, c := e.Totals()
		out = append(out, EntryTotals{EntryID: e.ID, Number: e.Number, Debit: d, Credit: c, Lines: len(e.Lines)})
	}
	return out, nil
}

func (tx *stubTx) LockSequence(ctx context.Context, tenantID uuid.UUID, kind numbering.Kind, year int) error {
	return nil
}

func (tx *stubTx) ListNumbers(ctx context.Context, tenantID uuid.UUID, kind numbering.Kind, year int) ([]string, error) {
	return tx.numbers, nil
}

func (tx *stubTx) InsertNumber(ctx context.Context, tenantID uuid.UUID, kind numbering.Kind, year int, number string) error {
	tx.numbers = append(tx.numbers, number)
	return nil
}

type fixture struct {
	tx       *stubTx
	poster   *Poster
	tenant   uuid.UUID
	actor    uuid.UUID
	accounts map[string]uuid.UUID
}

var testNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{tx: newStubTx(), poster: NewPoster(nil), tenant: uuid.New(), actor: uuid.New(), accounts: map[string]uuid.UUID{}}
	f.poster.WithNow(func() time.Time { return testNow })
	chart := NewChart()
	for _, def := range []struct {
		code string
		typ  AccountType
		key  string
	}{
		{"1100", AccountTypeAsset, KeyCashBank},
		{"1200", AccountTypeAsset, KeySalesReceivable},
		{"1300", AccountTypeAsset, KeyInventoryAsset},
		{"2100", AccountTypeLiability, KeyPurchasePayable},
		{"2200", AccountTypeLiability, KeySalesTax},
		{"4100", AccountTypeRevenue, KeySalesRevenue},
		{"5100", AccountTypeExpense, KeyCostOfSales},
	} {
		a, err := chart.CreateAccount(context.Background(), f.tx, CreateAccountInput{TenantID: f.tenant, Code: def.code, Name: def.code, Type: def.typ})
		require.NoError(t, err)
		require.NoError(t, chart.MapAccount(context.Background(), f.tx, f.tenant, def.key, a.ID))
		f.accounts[def.code] = a.ID
	}
	return f
}

func (f *fixture) input(lines ...PostingLine) PostingInput {
	return PostingInput{TenantID: f.tenant, SourceType: SourceManual, SourceID: uuid.New(), ActorID: f.actor, Lines: lines}
}

func TestPostBalancedEntry(t *testing.T) {
	f := newFixture(t)
	entry, err := f.poster.Post(context.Background(), f.tx, f.tx, f.input(
		Debit(f.accounts["1100"], decimal.RequireFromString("100.005"), "cash"),
		Credit(f.accounts["4100"], decimal.RequireFromString("100.01"), "sale"),
	))
	require.NoError(t, err)
	require.True(t, entry.Posted)
	require.Equal(t, "JE-2025-0001", entry.Number)
	require.Len(t, entry.Lines, 2)
	require.Equal(t, "100.01", entry.Lines[0].Debit.StringFixed(2))

	stored := f.tx.entries[entry.ID]
	require.True(t, stored.Posted)
	d, c := stored.Totals()
	require.True(t, d.Equal(c))
}

func TestPostRandomBalancedSetsAlwaysSumEqual(t *testing.T) {
	f := newFixture(t)
	rng := rand.New(rand.NewSource(42))
	codes := []string{"1100", "1200", "1300", "2100", "2200", "4100", "5100"}
	for i := 0; i < 200; i++ {
		n := 1 + rng.Intn(5)
		var lines []PostingLine
		total := decimal.Zero
		for j := 0; j < n; j++ {
			amount := decimal.New(int64(1+rng.Intn(1_000_000)), -2)
			total = total.Add(amount)
			lines = append(lines, Debit(f.accounts[codes[rng.Intn(len(codes))]], amount, ""))
		}
		remaining := total
		for remaining.IsPositive() {
			part := decimal.New(int64(1+rng.Intn(1_000_000)), -2)
			if part.GreaterThan(remaining) {
				part = remaining
			}
			remaining = remaining.Sub(part)
			lines = append(lines, Credit(f.accounts[codes[rng.Intn(len(codes))]], part, ""))
		}
		entry, err := f.poster.Post(context.Background(), f.tx, f.tx, f.input(lines...))
		require.NoError(t, err)
		d, c := entry.Totals()
		require.True(t, d.Equal(c), "entry %s: %s != %s", entry.Number, d, c)
	}
	issues, err := CheckIntegrity(context.Background(), f.tx, f.tenant)
	require.NoError(t, err)
	require.Empty(t, issues)
}

func TestPostRejectsUnbalancedWithoutWriting(t *testing.T) {
	f := newFixture(t)
	_, err := f.poster.Post(context.Background(), f.tx, f.tx, f.input(
		Debit(f.accounts["1100"], decimal.RequireFromString("10.00"), ""),
		Credit(f.accounts["4100"], decimal.RequireFromString("9.99"), ""),
	))
	require.ErrorIs(t, err, shared.ErrUnbalancedEntry)
	var unbalanced *shared.UnbalancedEntryError
	require.True(t, errors.As(err, &unbalanced))
	require.Equal(t, "10.00", unbalanced.Debits.StringFixed(2))
	require.Equal(t, "9.99", unbalanced.Credits.StringFixed(2))
	require.Empty(t, f.tx.entries)
	require.Empty(t, f.tx.numbers)
}

func TestPostValidatesLines(t *testing.T) {
	f := newFixture(t)
	ten := decimal.NewFromInt(10)
	cases := map[string]PostingInput{
		"single line": f.input(Debit(f.accounts["1100"], ten, "")),
		"both sides": f.input(
			PostingLine{AccountID: f.accounts["1100"], Debit: ten, Credit: ten},
			Credit(f.accounts["4100"], ten, ""),
		),
		"zero line": f.input(
			Debit(f.accounts["1100"], ten, ""),
			Credit(f.accounts["4100"], ten, ""),
			Debit(f.accounts["1200"], decimal.Zero, ""),
		),
		"negative": f.input(Debit(f.accounts["1100"], ten.Neg(), ""), Credit(f.accounts["4100"], ten.Neg(), "")),
	}
	noActor := f.input(Debit(f.accounts["1100"], ten, ""), Credit(f.accounts["4100"], ten, ""))
	noActor.ActorID = uuid.Nil
	cases["missing actor"] = noActor

	for name, in := range cases {
		_, err := f.poster.Post(context.Background(), f.tx, f.tx, in)
		require.ErrorIs(t, err, shared.ErrValidation, name)
	}

	_, err := f.poster.Post(context.Background(), f.tx, f.tx, f.input(
		Debit(uuid.New(), ten, ""),
		Credit(f.accounts["4100"], ten, ""),
	))
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Empty(t, f.tx.entries)
}

func TestPostRejectsDuplicateSource(t *testing.T) {
	f := newFixture(t)
	in := f.input(
		Debit(f.accounts["1200"], decimal.NewFromInt(50), ""),
		Credit(f.accounts["4100"], decimal.NewFromInt(50), ""),
	)
	first, err := f.poster.Post(context.Background(), f.tx, f.tx, in)
	require.NoError(t, err)

	_, err = f.poster.Post(context.Background(), f.tx, f.tx, in)
	require.ErrorIs(t, err, shared.ErrDuplicatePosting)
	var dup *shared.DuplicatePostingError
	require.True(t, errors.As(err, &dup))
	require.Equal(t, first.ID, dup.EntryID)
	require.Len(t, f.tx.entries, 1)
}

func TestReverseSwapsSidesOnce(t *testing.T) {
	f := newFixture(t)
	original, err := f.poster.Post(context.Background(), f.tx, f.tx, f.input(
		Debit(f.accounts["1200"], decimal.RequireFromString("35.10"), ""),
		Credit(f.accounts["4100"], decimal.RequireFromString("30.00"), ""),
		Credit(f.accounts["2200"], decimal.RequireFromString("5.10"), ""),
	))
	require.NoError(t, err)

	reversal, err := f.poster.Reverse(context.Background(), f.tx, f.tx, ReverseInput{TenantID: f.tenant, EntryID: original.ID, ActorID: f.actor})
	require.NoError(t, err)
	require.Equal(t, SourceReversal, reversal.SourceType)
	require.Equal(t, original.ID, reversal.SourceID)
	require.Equal(t, "Reversal of "+original.Number, reversal.Memo)
	require.True(t, reversal.Lines[0].Credit.Equal(original.Lines[0].Debit))
	require.True(t, reversal.Lines[1].Debit.Equal(original.Lines[1].Credit))
	require.Equal(t, reversal.ID, *f.tx.entries[original.ID].ReversedBy)

	_, err = f.poster.Reverse(context.Background(), f.tx, f.tx, ReverseInput{TenantID: f.tenant, EntryID: original.ID, ActorID: f.actor})
	require.ErrorIs(t, err, shared.ErrDuplicatePosting)

	tb, err := BuildTrialBalance(context.Background(), f.tx, f.tenant, testNow)
	require.NoError(t, err)
	require.True(t, tb.Balanced())
	for _, row := range tb.Rows {
		require.True(t, row.Balance().IsZero(), row.Code)
	}
}

func TestChartRules(t *testing.T) {
	f := newFixture(t)
	chart := NewChart()
	ctx := context.Background()

	_, err := chart.CreateAccount(ctx, f.tx, CreateAccountInput{TenantID: f.tenant, Code: "1100", Name: "dup", Type: AccountTypeAsset})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = chart.CreateAccount(ctx, f.tx, CreateAccountInput{TenantID: f.tenant, Code: "9000", Name: "bad", Type: "OTHER"})
	require.ErrorIs(t, err, shared.ErrValidation)

	foreign := uuid.New()
	other, err := chart.CreateAccount(ctx, f.tx, CreateAccountInput{TenantID: foreign, Code: "1000", Name: "other tenant", Type: AccountTypeAsset})
	require.NoError(t, err)
	_, err = chart.CreateAccount(ctx, f.tx, CreateAccountInput{TenantID: f.tenant, Code: "1110", Name: "child", Type: AccountTypeAsset, ParentID: &other.ID})
	require.ErrorIs(t, err, shared.ErrNotFound)

	parent := f.accounts["1100"]
	child, err := chart.CreateAccount(ctx, f.tx, CreateAccountInput{TenantID: f.tenant, Code: "1110", Name: "Petty cash", Type: AccountTypeAsset, ParentID: &parent})
	require.NoError(t, err)

	changed, err := chart.ChangeAccountType(ctx, f.tx, f.tenant, child.ID, AccountTypeExpense)
	require.NoError(t, err)
	require.Equal(t, AccountTypeExpense, changed.Type)

	_, err = f.poster.Post(ctx, f.tx, f.tx, f.input(
		Debit(child.ID, decimal.NewFromInt(5), ""),
		Credit(f.accounts["1100"], decimal.NewFromInt(5), ""),
	))
	require.NoError(t, err)
	_, err = chart.ChangeAccountType(ctx, f.tx, f.tenant, child.ID, AccountTypeAsset)
	require.ErrorIs(t, err, shared.ErrValidation)

	require.ErrorIs(t, chart.MapAccount(ctx, f.tx, f.tenant, "nope", child.ID), shared.ErrValidation)
}

func TestSaleRuleSplitsRevenueAndTax(t *testing.T) {
	f := newFixture(t)
	rules := NewRules(f.tx, f.tenant)
	lines, err := rules.Sale(context.Background(), SaleAmounts{
		Net:   decimal.RequireFromString("30.00"),
		Tax:   decimal.RequireFromString("5.10"),
		Total: decimal.RequireFromString("35.10"),
		Cost:  decimal.RequireFromString("12.00"),
	}, false)
	require.NoError(t, err)
	require.Len(t, lines, 3)
	require.Equal(t, f.accounts["1200"], lines[0].AccountID)
	require.Equal(t, "35.10", lines[0].Debit.StringFixed(2))
	require.Equal(t, f.accounts["4100"], lines[1].AccountID)
	require.Equal(t, f.accounts["2200"], lines[2].AccountID)

	withCost, err := rules.Sale(context.Background(), SaleAmounts{
		Net: decimal.NewFromInt(30), Tax: decimal.Zero, Total: decimal.NewFromInt(30), Cost: decimal.NewFromInt(12),
	}, true)
	require.NoError(t, err)
	require.Len(t, withCost, 4)

	free, err := rules.Sale(context.Background(), SaleAmounts{Cost: decimal.NewFromInt(12)}, false)
	require.NoError(t, err)
	require.Empty(t, free)

	freeWithCost, err := rules.Sale(context.Background(), SaleAmounts{Cost: decimal.NewFromInt(12)}, true)
	require.NoError(t, err)
	require.Len(t, freeWithCost, 2)
	require.True(t, freeWithCost[0].Debit.Equal(decimal.NewFromInt(12)))

	_, err = rules.StockAdjustment(context.Background(), decimal.NewFromInt(5))
	require.ErrorIs(t, err, ErrMappingNotFound)

	none, err := rules.StockAdjustment(context.Background(), decimal.Zero)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestCheckIntegrityFlagsDefects(t *testing.T) {
	f := newFixture(t)
	bad := JournalEntry{ID: uuid.New(), TenantID: f.tenant, Number: "JE-2025-0001", Posted: true, Lines: []JournalLine{
		{AccountID: f.accounts["1100"], Debit: decimal.NewFromInt(10)},
		{AccountID: f.accounts["4100"], Credit: decimal.NewFromInt(9)},
	}}
	dup := JournalEntry{ID: uuid.New(), TenantID: f.tenant, Number: "JE-2025-0001", Posted: true, Lines: []JournalLine{
		{AccountID: f.accounts["1100"], Debit: decimal.NewFromInt(1)},
	}}
	malformed := JournalEntry{ID: uuid.New(), TenantID: f.tenant, Number: "JE-x", Posted: true, Lines: []JournalLine{
		{AccountID: f.accounts["1100"], Debit: decimal.NewFromInt(1)},
		{AccountID: f.accounts["4100"], Credit: decimal.NewFromInt(1)},
	}}
	for _, e := range []JournalEntry{bad, dup, malformed} {
		f.tx.entries[e.ID] = e
		f.tx.order = append(f.tx.order, e.ID)
	}

	issues, err := CheckIntegrity(context.Background(), f.tx, f.tenant)
	require.NoError(t, err)
	kinds := map[string]int{}
	for _, issue := range issues {
		kinds[issue.Kind]++
	}
	require.Equal(t, 2, kinds[IssueUnbalanced])
	require.Equal(t, 1, kinds[IssueTooFewLines])
	require.Equal(t, 1, kinds[IssueDuplicateNumber])
	require.Equal(t, 1, kinds[IssueMalformedNumber])
}
