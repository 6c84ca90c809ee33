package accounting

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ledgercore/ledgercore/internal/platform/db"
	"github.com/ledgercore/ledgercore/internal/shared"
)

// TxRepository exposes transactional operations.
type TxRepository interface {
	GetAccount(ctx context.Context, tenantID, accountID uuid.UUID) (Account, error)
	FindAccountByCode(ctx context.Context, tenantID uuid.UUID, code string) (Account, bool, error)
	InsertAccount(ctx context.Context, account Account) error
	UpdateAccountType(ctx context.Context, tenantID, accountID uuid.UUID, t AccountType) error
	AccountHasLines(ctx context.Context, tenantID, accountID uuid.UUID) (bool, error)
	ResolveMapping(ctx context.Context, tenantID uuid.UUID, key string) (uuid.UUID, error)
	UpsertMapping(ctx context.Context, tenantID uuid.UUID, key string, accountID uuid.UUID) error
	FindEntryBySource(ctx context.Context, tenantID uuid.UUID, sourceType string, sourceID uuid.UUID) (JournalEntry, bool, error)
	InsertJournalEntry(ctx context.Context, entry JournalEntry) error
	InsertJournalLines(ctx context.Context, tenantID, entryID uuid.UUID, lines []JournalLine) error
	MarkPosted(ctx context.Context, tenantID, entryID uuid.UUID) error
	GetJournalEntry(ctx context.Context, tenantID, entryID uuid.UUID) (JournalEntry, error)
	MarkReversed(ctx context.Context, tenantID, entryID, reversalID uuid.UUID) error
	AccountTotals(ctx context.Context, tenantID uuid.UUID, asOf time.Time) ([]AccountBalance, error)
	ListEntryTotals(ctx context.Context, tenantID uuid.UUID) ([]EntryTotals, error)
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository binds the ledger queries to an open transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

const accountColumns = `id, tenant_id, code, name, type, parent_id, is_active, created_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.TenantID, &a.Code, &a.Name, &a.Type, &a.ParentID, &a.IsActive, &a.CreatedAt)
	return a, err
}

func (r *txRepository) GetAccount(ctx context.Context, tenantID, accountID uuid.UUID) (Account, error) {
	a, err := scanAccount(r.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE tenant_id=$1 AND id=$2`, tenantID, accountID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, shared.NewNotFound("account", accountID)
	}
	return a, err
}

func (r *txRepository) FindAccountByCode(ctx context.Context, tenantID uuid.UUID, code string) (Account, bool, error) {
	a, err := scanAccount(r.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE tenant_id=$1 AND code=$2`, tenantID, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, false, nil
	}
	if err != nil {
		return Account{}, false, err
	}
	return a, true, nil
}

func (r *txRepository) InsertAccount(ctx context.Context, a Account) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO accounts (id, tenant_id, code, name, type, parent_id, is_active, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`, a.ID, a.TenantID, a.Code, a.Name, string(a.Type), a.ParentID, a.IsActive, a.CreatedAt)
	if db.IsUniqueViolation(err, "uq_accounts_code") {
		return shared.Invalid("code", "account code %s already exists", a.Code)
	}
	return err
}

func (r *txRepository) UpdateAccountType(ctx context.Context, tenantID, accountID uuid.UUID, t AccountType) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE accounts SET type=$3 WHERE tenant_id=$1 AND id=$2`, tenantID, accountID, string(t))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.NewNotFound("account", accountID)
	}
	return nil
}

func (r *txRepository) AccountHasLines(ctx context.Context, tenantID, accountID uuid.UUID) (bool, error) {
	var used bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM journal_lines WHERE tenant_id=$1 AND account_id=$2)`, tenantID, accountID).Scan(&used)
	return used, err
}

func (r *txRepository) ResolveMapping(ctx context.Context, tenantID uuid.UUID, key string) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.tx.QueryRow(ctx, `SELECT account_id FROM account_mappings WHERE tenant_id=$1 AND key=$2`, tenantID, key).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, ErrMappingNotFound
	}
	return id, err
}

func (r *txRepository) UpsertMapping(ctx context.Context, tenantID uuid.UUID, key string, accountID uuid.UUID) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO account_mappings (tenant_id, key, account_id) VALUES ($1,$2,$3)
ON CONFLICT (tenant_id, key) DO UPDATE SET account_id=EXCLUDED.account_id`, tenantID, key, accountID)
	return err
}

const entryColumns = `id, tenant_id, number, date, source_type, source_id, memo, posted, reversed_by, created_by, created_at`

func scanEntry(row pgx.Row) (JournalEntry, error) {
	var e JournalEntry
	err := row.Scan(&e.ID, &e.TenantID, &e.Number, &e.Date, &e.SourceType, &e.SourceID, &e.Memo, &e.Posted, &e.ReversedBy, &e.CreatedBy, &e.CreatedAt)
	return e, err
}

func (r *txRepository) FindEntryBySource(ctx context.Context, tenantID uuid.UUID, sourceType string, sourceID uuid.UUID) (JournalEntry, bool, error) {
	e, err := scanEntry(r.tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE tenant_id=$1 AND source_type=$2 AND source_id=$3`, tenantID, sourceType, sourceID))
	if errors.Is(err, pgx.ErrNoRows) {
		return JournalEntry{}, false, nil
	}
	if err != nil {
		return JournalEntry{}, false, err
	}
	return e, true, nil
}

func (r *txRepository) InsertJournalEntry(ctx context.Context, e JournalEntry) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO journal_entries (id, tenant_id, number, date, source_type, source_id, memo, posted, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,FALSE,$8,$9)`, e.ID, e.TenantID, e.Number, e.Date, e.SourceType, e.SourceID, e.Memo, e.CreatedBy, e.CreatedAt)
	if db.IsUniqueViolation(err, "uq_journal_source") {
		return ErrSourceConflict
	}
	return db.MapError(err, "journal_entries")
}

func (r *txRepository) InsertJournalLines(ctx context.Context, tenantID, entryID uuid.UUID, lines []JournalLine) error {
	batch := &pgx.Batch{}
	for _, l := range lines {
		batch.Queue(`INSERT INTO journal_lines (id, tenant_id, entry_id, line_no, account_id, debit, credit, memo)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`, l.ID, tenantID, entryID, l.LineNo, l.AccountID, l.Debit, l.Credit, l.Memo)
	}
	return r.tx.SendBatch(ctx, batch).Close()
}

func (r *txRepository) MarkPosted(ctx context.Context, tenantID, entryID uuid.UUID) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET posted=TRUE WHERE tenant_id=$1 AND id=$2`, tenantID, entryID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.NewNotFound("journal entry", entryID)
	}
	return nil
}

func (r *txRepository) GetJournalEntry(ctx context.Context, tenantID, entryID uuid.UUID) (JournalEntry, error) {
	e, err := scanEntry(r.tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE tenant_id=$1 AND id=$2 FOR UPDATE`, tenantID, entryID))
	if errors.Is(err, pgx.ErrNoRows) {
		return JournalEntry{}, shared.NewNotFound("journal entry", entryID)
	}
	if err != nil {
		return JournalEntry{}, db.MapError(err, "journal_entries")
	}
	rows, err := r.tx.Query(ctx, `SELECT id, entry_id, line_no, account_id, debit, credit, memo
FROM journal_lines WHERE tenant_id=$1 AND entry_id=$2 ORDER BY line_no`, tenantID, entryID)
	if err != nil {
		return JournalEntry{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var l JournalLine
		if err := rows.Scan(&l.ID, &l.EntryID, &l.LineNo, &l.AccountID, &l.Debit, &l.Credit, &l.Memo); err != nil {
			return JournalEntry{}, err
		}
		e.Lines = append(e.Lines, l)
	}
	return e, rows.Err()
}

func (r *txRepository) MarkReversed(ctx context.Context, tenantID, entryID, reversalID uuid.UUID) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET reversed_by=$3 WHERE tenant_id=$1 AND id=$2 AND reversed_by IS NULL`, tenantID, entryID, reversalID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return &shared.DuplicatePostingError{SourceType: SourceReversal, SourceID: entryID}
	}
	return nil
}

func (r *txRepository) AccountTotals(ctx context.Context, tenantID uuid.UUID, asOf time.Time) ([]AccountBalance, error) {
	rows, err := r.tx.Query(ctx, `SELECT a.id, a.code, a.name, a.type, COALESCE(SUM(l.debit),0), COALESCE(SUM(l.credit),0)
FROM accounts a
JOIN journal_lines l ON l.account_id = a.id AND l.tenant_id = a.tenant_id
JOIN journal_entries e ON e.id = l.entry_id AND e.posted
WHERE a.tenant_id=$1 AND e.date <= $2
GROUP BY a.id, a.code, a.name, a.type
ORDER BY a.code`, tenantID, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AccountBalance
	for rows.Next() {
		var b AccountBalance
		if err := rows.Scan(&b.AccountID, &b.Code, &b.Name, &b.Type, &b.Debit, &b.Credit); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *txRepository) ListEntryTotals(ctx context.Context, tenantID uuid.UUID) ([]EntryTotals, error) {
	rows, err := r.tx.Query(ctx, `SELECT e.id, e.number, COALESCE(SUM(l.debit),0), COALESCE(SUM(l.credit),0), COUNT(l.id)
FROM journal_entries e
LEFT JOIN journal_lines l ON l.entry_id = e.id
WHERE e.tenant_id=$1 AND e.posted
GROUP BY e.id, e.number
ORDER BY e.number`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []EntryTotals
	for rows.Next() {
		var t EntryTotals
		if err := rows.Scan(&t.EntryID, &t.Number, &t.Debit, &t.Credit, &t.Lines); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
