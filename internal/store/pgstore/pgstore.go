// Package pgstore is the PostgreSQL ledger store. Every Update runs in one
// READ COMMITTED transaction; rows read inside it are taken FOR UPDATE and the
// sequence counter is advanced with a single upsert that locks its row until
// commit, so concurrent postings serialize per (document type, year).
package pgstore

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/store"
)

//go:embed schema.sql
var schema string

const uniqueViolation = "23505"

// Store is a pgx-backed store.Store.
type Store struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

// Open connects to dsn and applies the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing database dsn: %w", err)
	}
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping failed: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Pool exposes the underlying pool, used by tests to reset state.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Update runs fn in a read-write transaction, committing only if fn succeeds.
func (s *Store) Update(ctx context.Context, fn func(store.Tx) error) error {
	return s.run(ctx, pgx.ReadWrite, " FOR UPDATE", fn)
}

// View runs fn in a read-only transaction.
func (s *Store) View(ctx context.Context, fn func(store.Tx) error) error {
	return s.run(ctx, pgx.ReadOnly, "", fn)
}

func (s *Store) run(ctx context.Context, mode pgx.TxAccessMode, lock string, fn func(store.Tx) error) error {
	ptx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: mode})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer ptx.Rollback(ctx)

	if err := fn(&tx{ctx: ctx, ptx: ptx, lock: lock}); err != nil {
		return err
	}
	if err := ptx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type tx struct {
	ctx  context.Context
	ptx  pgx.Tx
	lock string
}

func integrity(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return &model.IntegrityError{Op: op, Detail: pgErr.Detail}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func fromNullTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}

func nullDecimal(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return d.Decimal.String()
}

// Accounts.

const accountColumns = `code, name, type, normal_side, header, active, description`

func scanAccount(row pgx.Row) (model.Account, error) {
	var a model.Account
	err := row.Scan(&a.Code, &a.Name, &a.Type, &a.NormalSide, &a.Header, &a.Active, &a.Description)
	return a, err
}

func (t *tx) Account(code string) (model.Account, error) {
	a, err := scanAccount(t.ptx.QueryRow(t.ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE code = $1`+t.lock, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Account{}, model.NotFound("account", code)
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("failed to get account: %w", err)
	}
	return a, nil
}

func (t *tx) Accounts() ([]model.Account, error) {
	rows, err := t.ptx.Query(t.ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY code`+t.lock)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var out []model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account row: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (t *tx) PutAccount(a model.Account) error {
	_, err := t.ptx.Exec(t.ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (code) DO UPDATE SET
			name = EXCLUDED.name, type = EXCLUDED.type, normal_side = EXCLUDED.normal_side,
			header = EXCLUDED.header, active = EXCLUDED.active, description = EXCLUDED.description
	`, a.Code, a.Name, a.Type, a.NormalSide, a.Header, a.Active, a.Description)
	if err != nil {
		return integrity("put account", err)
	}
	return nil
}

func (t *tx) AccountInUse(code string) (bool, error) {
	var used bool
	err := t.ptx.QueryRow(t.ctx, `
		SELECT EXISTS (
			SELECT 1 FROM journal_entries e
			JOIN transactions x ON x.id = e.transaction_id
			WHERE e.account_code = $1 AND x.status <> $2
		)`, code, model.TransactionDraft).Scan(&used)
	if err != nil {
		return false, fmt.Errorf("failed to check account usage: %w", err)
	}
	return used, nil
}

// Templates.

func (t *tx) templateLines(id string) ([]model.TemplateLine, error) {
	rows, err := t.ptx.Query(t.ctx, `
		SELECT account_code, side, formula, line_order, description
		FROM journal_template_lines WHERE template_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load template lines: %w", err)
	}
	defer rows.Close()

	var lines []model.TemplateLine
	for rows.Next() {
		var l model.TemplateLine
		if err := rows.Scan(&l.AccountCode, &l.Side, &l.Formula, &l.Order, &l.Description); err != nil {
			return nil, fmt.Errorf("failed to scan template line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

const templateColumns = `id, name, description, document_type, active, version, updated_at`

func scanTemplate(row pgx.Row) (model.JournalTemplate, error) {
	var jt model.JournalTemplate
	var updated *time.Time
	err := row.Scan(&jt.ID, &jt.Name, &jt.Description, &jt.DocumentType, &jt.Active, &jt.Version, &updated)
	jt.UpdatedAt = fromNullTime(updated)
	return jt, err
}

func (t *tx) Template(id string) (model.JournalTemplate, error) {
	jt, err := scanTemplate(t.ptx.QueryRow(t.ctx,
		`SELECT `+templateColumns+` FROM journal_templates WHERE id = $1`+t.lock, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.JournalTemplate{}, model.NotFound("template", id)
	}
	if err != nil {
		return model.JournalTemplate{}, fmt.Errorf("failed to get template: %w", err)
	}
	if jt.Lines, err = t.templateLines(id); err != nil {
		return model.JournalTemplate{}, err
	}
	return jt, nil
}

func (t *tx) Templates() ([]model.JournalTemplate, error) {
	rows, err := t.ptx.Query(t.ctx, `SELECT `+templateColumns+` FROM journal_templates ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	var out []model.JournalTemplate
	for rows.Next() {
		jt, err := scanTemplate(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan template row: %w", err)
		}
		out = append(out, jt)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		if out[i].Lines, err = t.templateLines(out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (t *tx) PutTemplate(jt model.JournalTemplate) error {
	_, err := t.ptx.Exec(t.ctx, `
		INSERT INTO journal_templates (`+templateColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, description = EXCLUDED.description,
			document_type = EXCLUDED.document_type, active = EXCLUDED.active,
			version = EXCLUDED.version, updated_at = EXCLUDED.updated_at
	`, jt.ID, jt.Name, jt.Description, jt.DocumentType, jt.Active, jt.Version, nullTime(jt.UpdatedAt))
	if err != nil {
		return integrity("put template", err)
	}

	if _, err := t.ptx.Exec(t.ctx, `DELETE FROM journal_template_lines WHERE template_id = $1`, jt.ID); err != nil {
		return fmt.Errorf("failed to clear template lines: %w", err)
	}
	for i, l := range jt.Lines {
		_, err := t.ptx.Exec(t.ctx, `
			INSERT INTO journal_template_lines (template_id, position, account_code, side, formula, line_order, description)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, jt.ID, i, l.AccountCode, l.Side, l.Formula, l.Order, l.Description)
		if err != nil {
			return integrity("put template line", err)
		}
	}
	return nil
}

// Sequences.

func (t *tx) NextSequence(docType string, year int) (int64, error) {
	var n int64
	err := t.ptx.QueryRow(t.ctx, `
		INSERT INTO transaction_sequences (document_type, year, last_number)
		VALUES ($1, $2, 1)
		ON CONFLICT (document_type, year)
		DO UPDATE SET last_number = transaction_sequences.last_number + 1
		RETURNING last_number
	`, docType, year).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to advance sequence %s/%d: %w", docType, year, err)
	}
	return n, nil
}

func (t *tx) CurrentSequence(docType string, year int) (int64, error) {
	var n int64
	err := t.ptx.QueryRow(t.ctx,
		`SELECT last_number FROM transaction_sequences WHERE document_type = $1 AND year = $2`,
		docType, year).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read sequence %s/%d: %w", docType, year, err)
	}
	return n, nil
}

// Transactions.

const transactionColumns = `id, COALESCE(document_number, ''), document_type, template_id, template_version,
	txn_date, amount::text, description, status, void_reason, void_notes, voided_at, posted_at, reconciliation_id`

func scanTransaction(row pgx.Row) (model.Transaction, error) {
	var (
		x              model.Transaction
		voided, posted *time.Time
	)
	err := row.Scan(&x.ID, &x.DocumentNumber, &x.DocumentType, &x.TemplateID, &x.TemplateVersion,
		&x.Date, &x.Amount, &x.Description, &x.Status, &x.VoidReason, &x.VoidNotes, &voided, &posted,
		&x.ReconciliationID)
	x.Date = model.Day(x.Date)
	x.VoidedAt = fromNullTime(voided)
	x.PostedAt = fromNullTime(posted)
	return x, err
}

func (t *tx) loadLines(txns []model.Transaction) error {
	if len(txns) == 0 {
		return nil
	}
	ids := make([]string, len(txns))
	index := make(map[string]int, len(txns))
	for i, x := range txns {
		ids[i] = x.ID
		index[x.ID] = i
	}

	rows, err := t.ptx.Query(t.ctx, `
		SELECT transaction_id, line_no, account_code, debit::text, credit::text, entry_date, document_number, description
		FROM journal_entries WHERE transaction_id = ANY($1) ORDER BY transaction_id, line_no`, ids)
	if err != nil {
		return fmt.Errorf("failed to load journal entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e model.JournalEntry
		if err := rows.Scan(&e.TransactionID, &e.LineNo, &e.AccountCode, &e.Debit, &e.Credit,
			&e.Date, &e.DocumentNumber, &e.Description); err != nil {
			return fmt.Errorf("failed to scan journal entry: %w", err)
		}
		e.Date = model.Day(e.Date)
		i := index[e.TransactionID]
		txns[i].Lines = append(txns[i].Lines, e)
	}
	return rows.Err()
}

func (t *tx) Transaction(id string) (model.Transaction, error) {
	x, err := scanTransaction(t.ptx.QueryRow(t.ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1`+t.lock, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Transaction{}, model.NotFound("transaction", id)
	}
	if err != nil {
		return model.Transaction{}, fmt.Errorf("failed to get transaction: %w", err)
	}
	out := []model.Transaction{x}
	if err := t.loadLines(out); err != nil {
		return model.Transaction{}, err
	}
	return out[0], nil
}

func (t *tx) insertLines(x model.Transaction) error {
	for _, e := range x.Lines {
		_, err := t.ptx.Exec(t.ctx, `
			INSERT INTO journal_entries (transaction_id, line_no, account_code, debit, credit, entry_date, document_number, description)
			VALUES ($1,$2,$3,$4::numeric,$5::numeric,$6,$7,$8)
		`, x.ID, e.LineNo, e.AccountCode, e.Debit.String(), e.Credit.String(), e.Date, e.DocumentNumber, e.Description)
		if err != nil {
			return integrity("insert journal entry", err)
		}
	}
	return nil
}

func documentNumber(x model.Transaction) any {
	if x.DocumentNumber == "" {
		return nil
	}
	return x.DocumentNumber
}

func (t *tx) InsertTransaction(x model.Transaction) error {
	_, err := t.ptx.Exec(t.ctx, `
		INSERT INTO transactions (id, document_number, document_type, template_id, template_version,
			txn_date, amount, description, status, void_reason, void_notes, voided_at, posted_at, reconciliation_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7::numeric,$8,$9,$10,$11,$12,$13,$14)
	`, x.ID, documentNumber(x), x.DocumentType, x.TemplateID, x.TemplateVersion,
		x.Date, x.Amount.String(), x.Description, x.Status, x.VoidReason, x.VoidNotes,
		nullTime(x.VoidedAt), nullTime(x.PostedAt), x.ReconciliationID)
	if err != nil {
		return integrity("insert transaction", err)
	}
	return t.insertLines(x)
}

func (t *tx) UpdateTransaction(x model.Transaction) error {
	existing, err := t.Transaction(x.ID)
	if err != nil {
		return err
	}
	if existing.DocumentNumber != "" && existing.DocumentNumber != x.DocumentNumber {
		return &model.IntegrityError{
			Op:     "update transaction",
			Detail: fmt.Sprintf("document number of %s cannot change from %s", x.ID, existing.DocumentNumber),
		}
	}

	_, err = t.ptx.Exec(t.ctx, `
		UPDATE transactions SET document_number = $2, document_type = $3, template_id = $4,
			template_version = $5, txn_date = $6, amount = $7::numeric, description = $8, status = $9,
			void_reason = $10, void_notes = $11, voided_at = $12, posted_at = $13, reconciliation_id = $14
		WHERE id = $1
	`, x.ID, documentNumber(x), x.DocumentType, x.TemplateID, x.TemplateVersion,
		x.Date, x.Amount.String(), x.Description, x.Status, x.VoidReason, x.VoidNotes,
		nullTime(x.VoidedAt), nullTime(x.PostedAt), x.ReconciliationID)
	if err != nil {
		return integrity("update transaction", err)
	}

	if existing.Status != model.TransactionDraft {
		return nil
	}
	if _, err := t.ptx.Exec(t.ctx, `DELETE FROM journal_entries WHERE transaction_id = $1`, x.ID); err != nil {
		return fmt.Errorf("failed to clear draft lines: %w", err)
	}
	return t.insertLines(x)
}

func (t *tx) DeleteTransaction(id string) error {
	existing, err := t.Transaction(id)
	if err != nil {
		return err
	}
	if existing.Status != model.TransactionDraft {
		return &model.StateError{Entity: "transaction", ID: id, Current: string(existing.Status), Expected: string(model.TransactionDraft)}
	}
	if _, err := t.ptx.Exec(t.ctx, `DELETE FROM transactions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	return nil
}

func (t *tx) Transactions(f store.TransactionFilter) ([]model.Transaction, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if !f.From.IsZero() {
		where = append(where, "txn_date >= "+arg(model.Day(f.From)))
	}
	if !f.To.IsZero() {
		where = append(where, "txn_date <= "+arg(model.Day(f.To)))
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		where = append(where, "status = ANY("+arg(statuses)+")")
	}
	if f.AccountCode != "" {
		where = append(where, "EXISTS (SELECT 1 FROM journal_entries e WHERE e.transaction_id = transactions.id AND e.account_code = "+arg(f.AccountCode)+")")
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += t.lock

	rows, err := t.ptx.Query(t.ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	var out []model.Transaction
	for rows.Next() {
		x, err := scanTransaction(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan transaction row: %w", err)
		}
		out = append(out, x)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := t.loadLines(out); err != nil {
		return nil, err
	}
	store.SortTransactions(out)
	return out, nil
}

// Statements.

func (t *tx) Statement(id string) (model.BankStatement, error) {
	var (
		st       model.BankStatement
		imported *time.Time
	)
	err := t.ptx.QueryRow(t.ctx, `
		SELECT id, account_code, period_start, period_end, opening_balance::text, closing_balance::text, source_file, imported_at
		FROM bank_statements WHERE id = $1`+t.lock, id).
		Scan(&st.ID, &st.AccountCode, &st.PeriodStart, &st.PeriodEnd, &st.OpeningBalance, &st.ClosingBalance, &st.SourceFile, &imported)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.BankStatement{}, model.NotFound("statement", id)
	}
	if err != nil {
		return model.BankStatement{}, fmt.Errorf("failed to get statement: %w", err)
	}
	st.PeriodStart = model.Day(st.PeriodStart)
	st.PeriodEnd = model.Day(st.PeriodEnd)
	st.ImportedAt = fromNullTime(imported)

	rows, err := t.ptx.Query(t.ctx, `
		SELECT id, line_no, item_date, description, reference, debit::text, credit::text, running_balance::text,
			match_status, match_type, matched_transaction_id
		FROM bank_statement_items WHERE statement_id = $1 ORDER BY line_no`+t.lock, id)
	if err != nil {
		return model.BankStatement{}, fmt.Errorf("failed to load statement items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it model.BankStatementItem
		if err := rows.Scan(&it.ID, &it.LineNo, &it.Date, &it.Description, &it.Reference, &it.Debit, &it.Credit,
			&it.RunningBalance, &it.MatchStatus, &it.MatchType, &it.MatchedTransactionID); err != nil {
			return model.BankStatement{}, fmt.Errorf("failed to scan statement item: %w", err)
		}
		it.Date = model.Day(it.Date)
		st.Items = append(st.Items, it)
	}
	return st, rows.Err()
}

func (t *tx) InsertStatement(st model.BankStatement) error {
	_, err := t.ptx.Exec(t.ctx, `
		INSERT INTO bank_statements (id, account_code, period_start, period_end, opening_balance, closing_balance, source_file, imported_at)
		VALUES ($1,$2,$3,$4,$5::numeric,$6::numeric,$7,$8)
	`, st.ID, st.AccountCode, st.PeriodStart, st.PeriodEnd, st.OpeningBalance.String(), st.ClosingBalance.String(),
		st.SourceFile, nullTime(st.ImportedAt))
	if err != nil {
		return integrity("insert statement", err)
	}
	for _, it := range st.Items {
		_, err := t.ptx.Exec(t.ctx, `
			INSERT INTO bank_statement_items (id, statement_id, line_no, item_date, description, reference,
				debit, credit, running_balance, match_status, match_type, matched_transaction_id)
			VALUES ($1,$2,$3,$4,$5,$6,$7::numeric,$8::numeric,$9::numeric,$10,$11,$12)
		`, it.ID, st.ID, it.LineNo, it.Date, it.Description, it.Reference, it.Debit.String(), it.Credit.String(),
			nullDecimal(it.RunningBalance), it.MatchStatus, it.MatchType, it.MatchedTransactionID)
		if err != nil {
			return integrity("insert statement item", err)
		}
	}
	return nil
}

func (t *tx) UpdateStatementItem(statementID string, it model.BankStatementItem) error {
	tag, err := t.ptx.Exec(t.ctx, `
		UPDATE bank_statement_items SET match_status = $3, match_type = $4, matched_transaction_id = $5
		WHERE statement_id = $1 AND id = $2
	`, statementID, it.ID, it.MatchStatus, it.MatchType, it.MatchedTransactionID)
	if err != nil {
		return fmt.Errorf("failed to update statement item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NotFound("statement item", it.ID)
	}
	return nil
}

// Reconciliations.

const reconciliationColumns = `id, statement_id, account_code, period_start, period_end, status,
	bank_balance::text, book_balance::text, notes, created_at, completed_at`

func scanReconciliation(row pgx.Row) (model.BankReconciliation, error) {
	var (
		r                  model.BankReconciliation
		created, completed *time.Time
	)
	err := row.Scan(&r.ID, &r.StatementID, &r.AccountCode, &r.PeriodStart, &r.PeriodEnd, &r.Status,
		&r.BankBalance, &r.BookBalance, &r.Notes, &created, &completed)
	r.PeriodStart = model.Day(r.PeriodStart)
	r.PeriodEnd = model.Day(r.PeriodEnd)
	r.CreatedAt = fromNullTime(created)
	r.CompletedAt = fromNullTime(completed)
	return r, err
}

func (t *tx) reconciliationItems(id string) ([]model.ReconciliationItem, error) {
	rows, err := t.ptx.Query(t.ctx, `
		SELECT id, statement_item_id, transaction_id, status, match_type,
			bank_amount::text, book_amount::text, discrepancy::text, notes, created_at
		FROM bank_reconciliation_items WHERE reconciliation_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load reconciliation items: %w", err)
	}
	defer rows.Close()

	var items []model.ReconciliationItem
	for rows.Next() {
		var (
			it      model.ReconciliationItem
			created *time.Time
		)
		if err := rows.Scan(&it.ID, &it.StatementItemID, &it.TransactionID, &it.Status, &it.MatchType,
			&it.BankAmount, &it.BookAmount, &it.Discrepancy, &it.Notes, &created); err != nil {
			return nil, fmt.Errorf("failed to scan reconciliation item: %w", err)
		}
		it.CreatedAt = fromNullTime(created)
		items = append(items, it)
	}
	return items, rows.Err()
}

func (t *tx) Reconciliation(id string) (model.BankReconciliation, error) {
	r, err := scanReconciliation(t.ptx.QueryRow(t.ctx,
		`SELECT `+reconciliationColumns+` FROM bank_reconciliations WHERE id = $1`+t.lock, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.BankReconciliation{}, model.NotFound("reconciliation", id)
	}
	if err != nil {
		return model.BankReconciliation{}, fmt.Errorf("failed to get reconciliation: %w", err)
	}
	if r.Items, err = t.reconciliationItems(id); err != nil {
		return model.BankReconciliation{}, err
	}
	return r, nil
}

func (t *tx) Reconciliations(statementID string) ([]model.BankReconciliation, error) {
	query := `SELECT ` + reconciliationColumns + ` FROM bank_reconciliations`
	var args []any
	if statementID != "" {
		query += ` WHERE statement_id = $1`
		args = append(args, statementID)
	}
	query += ` ORDER BY created_at, id`

	rows, err := t.ptx.Query(t.ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reconciliations: %w", err)
	}
	var out []model.BankReconciliation
	for rows.Next() {
		r, err := scanReconciliation(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan reconciliation row: %w", err)
		}
		out = append(out, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		if out[i].Items, err = t.reconciliationItems(out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (t *tx) InsertReconciliation(r model.BankReconciliation) error {
	_, err := t.ptx.Exec(t.ctx, `
		INSERT INTO bank_reconciliations (id, statement_id, account_code, period_start, period_end, status,
			bank_balance, book_balance, notes, created_at, completed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7::numeric,$8::numeric,$9,$10,$11)
	`, r.ID, r.StatementID, r.AccountCode, r.PeriodStart, r.PeriodEnd, r.Status,
		r.BankBalance.String(), r.BookBalance.String(), r.Notes, nullTime(r.CreatedAt), nullTime(r.CompletedAt))
	if err != nil {
		return integrity("insert reconciliation", err)
	}
	return t.insertReconciliationItems(r)
}

func (t *tx) insertReconciliationItems(r model.BankReconciliation) error {
	for i, it := range r.Items {
		_, err := t.ptx.Exec(t.ctx, `
			INSERT INTO bank_reconciliation_items (id, reconciliation_id, position, statement_item_id, transaction_id,
				status, match_type, bank_amount, book_amount, discrepancy, notes, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8::numeric,$9::numeric,$10::numeric,$11,$12)
		`, it.ID, r.ID, i, it.StatementItemID, it.TransactionID, it.Status, it.MatchType,
			it.BankAmount.String(), it.BookAmount.String(), it.Discrepancy.String(), it.Notes, nullTime(it.CreatedAt))
		if err != nil {
			return integrity("insert reconciliation item", err)
		}
	}
	return nil
}

func (t *tx) UpdateReconciliation(r model.BankReconciliation) error {
	tag, err := t.ptx.Exec(t.ctx, `
		UPDATE bank_reconciliations SET status = $2, bank_balance = $3::numeric, book_balance = $4::numeric,
			notes = $5, completed_at = $6
		WHERE id = $1
	`, r.ID, r.Status, r.BankBalance.String(), r.BookBalance.String(), r.Notes, nullTime(r.CompletedAt))
	if err != nil {
		return fmt.Errorf("failed to update reconciliation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NotFound("reconciliation", r.ID)
	}
	if _, err := t.ptx.Exec(t.ctx, `DELETE FROM bank_reconciliation_items WHERE reconciliation_id = $1`, r.ID); err != nil {
		return fmt.Errorf("failed to clear reconciliation items: %w", err)
	}
	return t.insertReconciliationItems(r)
}
