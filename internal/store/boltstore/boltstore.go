// Package boltstore is the embedded ledger store. bbolt admits one writer at
// a time, so every Update holds the whole ledger exclusively until commit;
// that is the exclusive scope for sequence allocation and per-entity
// serialization.
package boltstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/store"
)

// Bucket names.
const (
	BucketAccounts        = "accounts"
	BucketAccountUsage    = "account_usage"
	BucketTemplates       = "journal_templates"
	BucketSequences       = "transaction_sequences"
	BucketTransactions    = "transactions"
	BucketDocumentNumbers = "document_numbers"
	BucketStatements      = "bank_statements"
	BucketReconciliations = "bank_reconciliations"
)

var allBuckets = []string{
	BucketAccounts, BucketAccountUsage, BucketTemplates, BucketSequences,
	BucketTransactions, BucketDocumentNumbers, BucketStatements, BucketReconciliations,
}

// Store is a bbolt-backed store.Store.
type Store struct {
	db *bolt.DB
}

var _ store.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path and initializes buckets.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening ledger database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("creating bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Update runs fn in a read-write bbolt transaction.
func (s *Store) Update(ctx context.Context, fn func(store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(btx *bolt.Tx) error {
		return fn(&tx{btx: btx})
	})
}

// View runs fn in a read-only bbolt transaction.
func (s *Store) View(ctx context.Context, fn func(store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(btx *bolt.Tx) error {
		return fn(&tx{btx: btx})
	})
}

type tx struct {
	btx *bolt.Tx
}

func (t *tx) bucket(name string) *bolt.Bucket {
	return t.btx.Bucket([]byte(name))
}

func (t *tx) get(bucket, key string, v any) (bool, error) {
	data := t.bucket(bucket).Get([]byte(key))
	if data == nil {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decoding %s/%s: %w", bucket, key, err)
	}
	return true, nil
}

func (t *tx) put(bucket, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s/%s: %w", bucket, key, err)
	}
	return t.bucket(bucket).Put([]byte(key), data)
}

func forEach[T any](t *tx, bucket string, fn func(T) error) error {
	return t.bucket(bucket).ForEach(func(k, v []byte) error {
		var rec T
		if err := json.Unmarshal(v, &rec); err != nil {
			return fmt.Errorf("decoding %s/%s: %w", bucket, k, err)
		}
		return fn(rec)
	})
}

// Accounts.

func (t *tx) Account(code string) (model.Account, error) {
	var a model.Account
	ok, err := t.get(BucketAccounts, code, &a)
	if err != nil {
		return model.Account{}, err
	}
	if !ok {
		return model.Account{}, model.NotFound("account", code)
	}
	return a, nil
}

func (t *tx) Accounts() ([]model.Account, error) {
	var out []model.Account
	err := forEach(t, BucketAccounts, func(a model.Account) error {
		out = append(out, a)
		return nil
	})
	return out, err
}

func (t *tx) PutAccount(a model.Account) error {
	return t.put(BucketAccounts, a.Code, a)
}

func (t *tx) AccountInUse(code string) (bool, error) {
	return t.bucket(BucketAccountUsage).Get([]byte(code)) != nil, nil
}

// Templates.

func (t *tx) Template(id string) (model.JournalTemplate, error) {
	var jt model.JournalTemplate
	ok, err := t.get(BucketTemplates, id, &jt)
	if err != nil {
		return model.JournalTemplate{}, err
	}
	if !ok {
		return model.JournalTemplate{}, model.NotFound("template", id)
	}
	return jt, nil
}

func (t *tx) Templates() ([]model.JournalTemplate, error) {
	var out []model.JournalTemplate
	err := forEach(t, BucketTemplates, func(jt model.JournalTemplate) error {
		out = append(out, jt)
		return nil
	})
	return out, err
}

func (t *tx) PutTemplate(jt model.JournalTemplate) error {
	return t.put(BucketTemplates, jt.ID, jt)
}

// Sequences.

func sequenceKey(docType string, year int) []byte {
	return []byte(docType + "/" + strconv.Itoa(year))
}

func (t *tx) CurrentSequence(docType string, year int) (int64, error) {
	data := t.bucket(BucketSequences).Get(sequenceKey(docType, year))
	if data == nil {
		return 0, nil
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("corrupt sequence %s/%d", docType, year)
	}
	return int64(binary.BigEndian.Uint64(data)), nil
}

func (t *tx) NextSequence(docType string, year int) (int64, error) {
	cur, err := t.CurrentSequence(docType, year)
	if err != nil {
		return 0, err
	}
	next := cur + 1
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(next))
	if err := t.bucket(BucketSequences).Put(sequenceKey(docType, year), buf); err != nil {
		return 0, fmt.Errorf("writing sequence %s/%d: %w", docType, year, err)
	}
	return next, nil
}

// Transactions.

func (t *tx) Transaction(id string) (model.Transaction, error) {
	var txn model.Transaction
	ok, err := t.get(BucketTransactions, id, &txn)
	if err != nil {
		return model.Transaction{}, err
	}
	if !ok {
		return model.Transaction{}, model.NotFound("transaction", id)
	}
	return txn, nil
}

func (t *tx) claimDocumentNumber(txn model.Transaction) error {
	if txn.DocumentNumber == "" {
		return nil
	}
	idx := t.bucket(BucketDocumentNumbers)
	if owner := idx.Get([]byte(txn.DocumentNumber)); owner != nil && string(owner) != txn.ID {
		return &model.IntegrityError{
			Op:     "insert transaction",
			Detail: fmt.Sprintf("document number %s already assigned to %s", txn.DocumentNumber, owner),
		}
	}
	return idx.Put([]byte(txn.DocumentNumber), []byte(txn.ID))
}

func (t *tx) markAccountsUsed(txn model.Transaction) error {
	if txn.Status == model.TransactionDraft {
		return nil
	}
	usage := t.bucket(BucketAccountUsage)
	for _, l := range txn.Lines {
		if err := usage.Put([]byte(l.AccountCode), []byte{1}); err != nil {
			return err
		}
	}
	return nil
}

func (t *tx) InsertTransaction(txn model.Transaction) error {
	if t.bucket(BucketTransactions).Get([]byte(txn.ID)) != nil {
		return &model.IntegrityError{Op: "insert transaction", Detail: fmt.Sprintf("transaction %s already exists", txn.ID)}
	}
	if err := t.claimDocumentNumber(txn); err != nil {
		return err
	}
	if err := t.markAccountsUsed(txn); err != nil {
		return err
	}
	return t.put(BucketTransactions, txn.ID, txn)
}

func (t *tx) UpdateTransaction(txn model.Transaction) error {
	existing, err := t.Transaction(txn.ID)
	if err != nil {
		return err
	}
	if existing.DocumentNumber != "" && existing.DocumentNumber != txn.DocumentNumber {
		return &model.IntegrityError{
			Op:     "update transaction",
			Detail: fmt.Sprintf("document number of %s cannot change from %s", txn.ID, existing.DocumentNumber),
		}
	}
	if existing.Status != model.TransactionDraft {
		txn.Lines = existing.Lines
	}
	if err := t.claimDocumentNumber(txn); err != nil {
		return err
	}
	if err := t.markAccountsUsed(txn); err != nil {
		return err
	}
	return t.put(BucketTransactions, txn.ID, txn)
}

func (t *tx) DeleteTransaction(id string) error {
	existing, err := t.Transaction(id)
	if err != nil {
		return err
	}
	if existing.Status != model.TransactionDraft {
		return &model.StateError{Entity: "transaction", ID: id, Current: string(existing.Status), Expected: string(model.TransactionDraft)}
	}
	return t.bucket(BucketTransactions).Delete([]byte(id))
}

func (t *tx) Transactions(f store.TransactionFilter) ([]model.Transaction, error) {
	var out []model.Transaction
	err := forEach(t, BucketTransactions, func(txn model.Transaction) error {
		if f.Match(txn) {
			out = append(out, txn)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	store.SortTransactions(out)
	return out, nil
}

// Statements.

func (t *tx) Statement(id string) (model.BankStatement, error) {
	var st model.BankStatement
	ok, err := t.get(BucketStatements, id, &st)
	if err != nil {
		return model.BankStatement{}, err
	}
	if !ok {
		return model.BankStatement{}, model.NotFound("statement", id)
	}
	return st, nil
}

func (t *tx) InsertStatement(st model.BankStatement) error {
	if t.bucket(BucketStatements).Get([]byte(st.ID)) != nil {
		return &model.IntegrityError{Op: "insert statement", Detail: fmt.Sprintf("statement %s already exists", st.ID)}
	}
	return t.put(BucketStatements, st.ID, st)
}

func (t *tx) UpdateStatementItem(statementID string, item model.BankStatementItem) error {
	st, err := t.Statement(statementID)
	if err != nil {
		return err
	}
	for i := range st.Items {
		if st.Items[i].ID == item.ID {
			st.Items[i] = item
			return t.put(BucketStatements, st.ID, st)
		}
	}
	return model.NotFound("statement item", item.ID)
}

// Reconciliations.

func (t *tx) Reconciliation(id string) (model.BankReconciliation, error) {
	var r model.BankReconciliation
	ok, err := t.get(BucketReconciliations, id, &r)
	if err != nil {
		return model.BankReconciliation{}, err
	}
	if !ok {
		return model.BankReconciliation{}, model.NotFound("reconciliation", id)
	}
	return r, nil
}

func (t *tx) Reconciliations(statementID string) ([]model.BankReconciliation, error) {
	var out []model.BankReconciliation
	err := forEach(t, BucketReconciliations, func(r model.BankReconciliation) error {
		if statementID == "" || r.StatementID == statementID {
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

func (t *tx) InsertReconciliation(r model.BankReconciliation) error {
	if t.bucket(BucketReconciliations).Get([]byte(r.ID)) != nil {
		return &model.IntegrityError{Op: "insert reconciliation", Detail: fmt.Sprintf("reconciliation %s already exists", r.ID)}
	}
	return t.put(BucketReconciliations, r.ID, r)
}

func (t *tx) UpdateReconciliation(r model.BankReconciliation) error {
	if t.bucket(BucketReconciliations).Get([]byte(r.ID)) == nil {
		return model.NotFound("reconciliation", r.ID)
	}
	return t.put(BucketReconciliations, r.ID, r)
}
