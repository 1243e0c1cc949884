/*
Package sqlite persists income history and audit records in SQLite.

PURPOSE:
  The engine itself is pure: it never reads or writes storage. This package
  keeps the two things callers need across evaluations: the monthly income
  history per person and relationship, and the legal audit trail produced by
  each evaluated case.

KEY TABLES:
  income_history: one row per (person, relationship, from); later saves
                  for the same key replace the amounts
  audit_records:  append-only trail of determinations, grouped by case id

APPEND-ONLY ENFORCEMENT:
  Audit records are never updated or deleted. Re-evaluating a case appends
  the new batch after the existing records of the same case id.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety, as SQLite allows one writer at a time.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) so readers do not block the
  single writer.

USAGE:
  store, err := sqlite.New("./data/sickpay.db")
  if err != nil {
      return err
  }
  defer store.Close()

  incomes, err := store.IncomeHistory(ctx, "p-42")
  out, err := payment.Build(payment.Input{Incomes: incomes, ...})

SEE ALSO:
  - payment/income.go: IncomeTable returned by IncomeHistory
  - audit/audit.go: Record persisted by SaveAuditRecords
*/
package sqlite

import (
	"context"
	"database/sql"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/warp/sickpay-engine/audit"
	"github.com/warp/sickpay-engine/generic"
	"github.com/warp/sickpay-engine/payment"
)

// Store is the SQLite persistence layer.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open database")
	}
	// Each connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "sqlite: migrate")
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS income_history (
		id TEXT PRIMARY KEY,
		person_id TEXT NOT NULL,
		relationship_id TEXT NOT NULL,
		effective_from TEXT NOT NULL,
		monthly TEXT NOT NULL,
		refund_monthly TEXT,
		created_at TEXT NOT NULL,
		UNIQUE(person_id, relationship_id, effective_from)
	);

	CREATE INDEX IF NOT EXISTS idx_income_history_person
		ON income_history(person_id, relationship_id, effective_from);

	-- Append-only legal trail
	CREATE TABLE IF NOT EXISTS audit_records (
		id TEXT PRIMARY KEY,
		case_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		statute TEXT NOT NULL,
		input_json TEXT NOT NULL,
		output_json TEXT NOT NULL,
		context_json TEXT,
		created_at TEXT NOT NULL,
		UNIQUE(case_id, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_audit_records_case
		ON audit_records(case_id, seq);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// INCOME HISTORY
// =============================================================================

// SaveIncome stores an income entry for a person. An entry with the same
// relationship and date replaces the stored amounts.
func (s *Store) SaveIncome(ctx context.Context, personID string, e payment.IncomeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var refund sql.NullString
	if e.RefundMonthly != nil {
		refund = sql.NullString{String: e.RefundMonthly.String(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO income_history
		(id, person_id, relationship_id, effective_from, monthly, refund_monthly, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(person_id, relationship_id, effective_from)
		DO UPDATE SET monthly = excluded.monthly, refund_monthly = excluded.refund_monthly
	`,
		uuid.New().String(),
		personID,
		e.Relationship,
		e.From.String(),
		e.Monthly.String(),
		refund,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save income for %s", personID)
	}
	return nil
}

// IncomeHistory loads every stored entry for a person. A person without
// entries yields an empty table.
func (s *Store) IncomeHistory(ctx context.Context, personID string) (*payment.IncomeTable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT relationship_id, effective_from, monthly, refund_monthly
		FROM income_history
		WHERE person_id = ?
		ORDER BY relationship_id, effective_from
	`, personID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: query incomes for %s", personID)
	}
	defer rows.Close()

	table := payment.NewIncomeTable()
	for rows.Next() {
		var (
			e             payment.IncomeEntry
			from, monthly string
			refund        sql.NullString
		)
		if err := rows.Scan(&e.Relationship, &from, &monthly, &refund); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan income")
		}
		if e.From, err = generic.ParseDay(from); err != nil {
			return nil, eris.Wrapf(err, "sqlite: income date %q", from)
		}
		if e.Monthly, err = decimal.NewFromString(monthly); err != nil {
			return nil, eris.Wrapf(err, "sqlite: income amount %q", monthly)
		}
		if refund.Valid {
			r, err := decimal.NewFromString(refund.String)
			if err != nil {
				return nil, eris.Wrapf(err, "sqlite: refund amount %q", refund.String)
			}
			e.RefundMonthly = &r
		}
		table.Add(e)
	}
	return table, eris.Wrap(rows.Err(), "sqlite: iterate incomes")
}

// =============================================================================
// AUDIT RECORDS
// =============================================================================

// SaveAuditRecords appends the records of one evaluated case in a single
// transaction. Record order is kept.
func (s *Store) SaveAuditRecords(ctx context.Context, caseID string, records []audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin audit batch")
	}
	defer tx.Rollback()

	var base int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM audit_records WHERE case_id = ?`, caseID,
	).Scan(&base); err != nil {
		return eris.Wrapf(err, "sqlite: next audit seq for %s", caseID)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for i, r := range records {
		input, err := json.Marshal(r.Input)
		if err != nil {
			return eris.Wrap(err, "sqlite: encode audit input")
		}
		output, err := json.Marshal(r.Output)
		if err != nil {
			return eris.Wrap(err, "sqlite: encode audit output")
		}
		var recordCtx sql.NullString
		if len(r.Context) > 0 {
			b, err := json.Marshal(r.Context)
			if err != nil {
				return eris.Wrap(err, "sqlite: encode audit context")
			}
			recordCtx = sql.NullString{String: string(b), Valid: true}
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO audit_records
			(id, case_id, seq, statute, input_json, output_json, context_json, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, uuid.New().String(), caseID, base+i+1, string(r.Statute), string(input), string(output), recordCtx, now); err != nil {
			return eris.Wrapf(err, "sqlite: insert audit record %d of %s", i, caseID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit audit batch")
}

// AuditRecords returns the records stored for a case in insertion order.
// Numbers inside Input and Output come back as float64.
func (s *Store) AuditRecords(ctx context.Context, caseID string) ([]audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT statute, input_json, output_json, context_json
		FROM audit_records
		WHERE case_id = ?
		ORDER BY seq
	`, caseID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: query audit records for %s", caseID)
	}
	defer rows.Close()

	var out []audit.Record
	for rows.Next() {
		var (
			r                      audit.Record
			statute, input, output string
			recordCtx              sql.NullString
		)
		if err := rows.Scan(&statute, &input, &output, &recordCtx); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan audit record")
		}
		r.Statute = audit.Statute(statute)
		if err := json.Unmarshal([]byte(input), &r.Input); err != nil {
			return nil, eris.Wrap(err, "sqlite: decode audit input")
		}
		if err := json.Unmarshal([]byte(output), &r.Output); err != nil {
			return nil, eris.Wrap(err, "sqlite: decode audit output")
		}
		if recordCtx.Valid {
			if err := json.Unmarshal([]byte(recordCtx.String), &r.Context); err != nil {
				return nil, eris.Wrap(err, "sqlite: decode audit context")
			}
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate audit records")
}

// CaseExists reports whether any audit record was stored under caseID.
func (s *Store) CaseExists(ctx context.Context, caseID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audit_records WHERE case_id = ?`, caseID,
	).Scan(&n)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: count audit records for %s", caseID)
	}
	return n > 0, nil
}
