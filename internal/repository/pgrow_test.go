package repository

import (
	"context"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"
)

// pgValue - значение колонки с OID типа Postgres.
type pgValue struct {
	oid   uint32
	value any
}

func pgText(v string) pgValue { return pgValue{pgtype.TextOID, v} }

func pgUUID(v string) pgValue {
	return pgValue{pgtype.UUIDOID, pgtype.UUID{Bytes: uuid.MustParse(v), Valid: true}}
}

// pgNumeric(90000, -2) - это 900.00
func pgNumeric(unscaled int64, exp int32) pgValue {
	return pgValue{pgtype.NumericOID, pgtype.Numeric{Int: big.NewInt(unscaled), Exp: exp, Valid: true}}
}

func pgTimestamptz(v time.Time) pgValue {
	return pgValue{pgtype.TimestamptzOID, pgtype.Timestamptz{Time: v, Valid: true}}
}

func pgDate(v time.Time) pgValue { return pgValue{pgtype.DateOID, pgtype.Date{Time: v, Valid: true}} }

func pgBool(v bool) pgValue { return pgValue{pgtype.BoolOID, v} }

func pgBytea(v []byte) pgValue { return pgValue{pgtype.ByteaOID, v} }

func pgTextArray(v ...string) pgValue { return pgValue{pgtype.TextArrayOID, v} }

func pgNull(oid uint32) pgValue { return pgValue{oid, nil} }

// pgRow кодирует колонки в бинарный формат и сканирует их тем же pgtype.Map,
// которым pgx разбирает ответ сервера.
type pgRow []pgValue

func (r pgRow) Scan(dest ...any) error {
	if len(dest) != len(r) {
		return fmt.Errorf("row has %d columns, got %d destinations", len(r), len(dest))
	}
	m := pgtype.NewMap()
	for i, col := range r {
		// непустой буфер, иначе пустая строка неотличима от NULL
		src, err := m.Encode(col.oid, pgtype.BinaryFormatCode, col.value, make([]byte, 0, 32))
		if err != nil {
			return fmt.Errorf("encode column %d: %w", i, err)
		}
		if err = m.Scan(col.oid, pgtype.BinaryFormatCode, src, dest[i]); err != nil {
			return fmt.Errorf("scan column %d: %w", i, err)
		}
	}
	return nil
}

type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }

type pgRows struct {
	pgx.Rows
	rows []pgRow
	pos  int
}

func (r *pgRows) Next() bool {
	if r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

func (r *pgRows) Scan(dest ...any) error { return r.rows[r.pos-1].Scan(dest...) }

func (r *pgRows) Err() error { return nil }

func (r *pgRows) Close() {}

// pgCall - ожидаемый запрос: фрагмент SQL и ответ на него.
type pgCall struct {
	contains string
	rows     []pgRow
	tag      string
	err      error
}

type pgExec struct {
	sql  string
	args []any
}

// fakeDB отвечает на запросы строго по списку calls и записывает всё выполненное.
type fakeDB struct {
	t        *testing.T
	calls    []pgCall
	executed []pgExec
}

func newFakeDB(t *testing.T, calls ...pgCall) *fakeDB {
	return &fakeDB{t: t, calls: calls}
}

func (db *fakeDB) next(sql string, args []any) pgCall {
	db.t.Helper()
	db.executed = append(db.executed, pgExec{sql: sql, args: args})
	require.NotEmpty(db.t, db.calls, "unexpected query: %s", sql)
	call := db.calls[0]
	db.calls = db.calls[1:]
	require.Contains(db.t, sql, call.contains)
	return call
}

func (db *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	call := db.next(sql, args)
	if call.err != nil {
		return pgconn.CommandTag{}, call.err
	}
	if call.tag == "" {
		call.tag = "UPDATE 1"
	}
	return pgconn.NewCommandTag(call.tag), nil
}

func (db *fakeDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	call := db.next(sql, args)
	if call.err != nil {
		return nil, call.err
	}
	return &pgRows{rows: call.rows}, nil
}

func (db *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	call := db.next(sql, args)
	switch {
	case call.err != nil:
		return errRow{call.err}
	case len(call.rows) == 0:
		return errRow{pgx.ErrNoRows}
	}
	return call.rows[0]
}

func (db *fakeDB) Begin(context.Context) (pgx.Tx, error) {
	db.executed = append(db.executed, pgExec{sql: "BEGIN"})
	return &fakeTx{db: db}, nil
}

// statements возвращает выполненный SQL по порядку.
func (db *fakeDB) statements() []string {
	out := make([]string, 0, len(db.executed))
	for _, e := range db.executed {
		out = append(out, e.sql)
	}
	return out
}

func (db *fakeDB) requireDone() {
	db.t.Helper()
	require.Empty(db.t, db.calls, "expected queries were not executed")
}

type fakeTx struct {
	pgx.Tx
	db   *fakeDB
	done bool
}

func (tx *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return tx.db.Exec(ctx, sql, args...)
}

func (tx *fakeTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return tx.db.Query(ctx, sql, args...)
}

func (tx *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return tx.db.QueryRow(ctx, sql, args...)
}

func (tx *fakeTx) Commit(context.Context) error {
	return tx.finish("COMMIT")
}

func (tx *fakeTx) Rollback(context.Context) error {
	return tx.finish("ROLLBACK")
}

func (tx *fakeTx) finish(stmt string) error {
	if tx.done {
		return pgx.ErrTxClosed
	}
	tx.done = true
	tx.db.executed = append(tx.db.executed, pgExec{sql: stmt})
	return nil
}

var _ DBTX = (*fakeDB)(nil)
