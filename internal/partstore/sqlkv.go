// The SQL-backed partstore implementation stores partition metadata
// as a two-column (key, value) table in any database/sql driver.
//
// Grounded on pkg/sorted/sqlkv's KeyValue{DB *sql.DB, PlaceHolderFunc,
// TablePrefix} design: one generic implementation parametrized per
// dialect rather than one file per driver. Registers three dialects —
// modernc.org/sqlite, github.com/lib/pq, github.com/go-sql-driver/mysql —
// matching the teacher's pkg/sorted/{sqlite,postgres,mysql} trio.
package partstore

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"sync"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const ddl = `CREATE TABLE IF NOT EXISTS partstore (k VARCHAR(255) PRIMARY KEY, v TEXT)`

func init() {
	RegisterBackend("sqlite", func(cfg Config) (KeyValue, error) { return newSQLKV(cfg, "sqlite", questionPlaceholders) })
	RegisterBackend("postgres", func(cfg Config) (KeyValue, error) { return newSQLKV(cfg, "postgres", dollarPlaceholders) })
	RegisterBackend("mysql", func(cfg Config) (KeyValue, error) { return newSQLKV(cfg, "mysql", questionPlaceholders) })
}

// placeholderFunc rewrites a query written with `?` placeholders into
// a dialect's native placeholder syntax.
type placeholderFunc func(query string) string

func questionPlaceholders(q string) string { return q }

func dollarPlaceholders(q string) string {
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func newSQLKV(cfg Config, driver string, ph placeholderFunc) (KeyValue, error) {
	dsn, err := cfg.RequiredString("dsn")
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("partstore: opening %s: %w", driver, err)
	}
	if _, err := db.Exec(ddl); err != nil {
		db.Close()
		return nil, fmt.Errorf("partstore: creating table: %w", err)
	}
	return &sqlKV{db: db, ph: ph, serial: driver == "sqlite"}, nil
}

// sqlKV implements KeyValue over an *sql.DB. Serial gates Get, Set,
// Delete and CommitBatch through one mutex for SQLite, whose driver
// returns "database is locked" under concurrent writers; Find does not
// take the mutex.
type sqlKV struct {
	db     *sql.DB
	ph     placeholderFunc
	serial bool
	mu     sync.Mutex
}

func (kv *sqlKV) withLock(fn func() error) error {
	if kv.serial {
		kv.mu.Lock()
		defer kv.mu.Unlock()
	}
	return fn()
}

func (kv *sqlKV) q(query string) string { return kv.ph(query) }

func (kv *sqlKV) Get(key string) (string, error) {
	var v string
	err := kv.withLock(func() error {
		row := kv.db.QueryRow(kv.q(`SELECT v FROM partstore WHERE k = ?`), key)
		return row.Scan(&v)
	})
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return v, err
}

func (kv *sqlKV) Set(key, value string) error {
	return kv.withLock(func() error {
		return kv.upsert(kv.db, key, value)
	})
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func (kv *sqlKV) upsert(x execer, key, value string) error {
	if _, err := x.Exec(kv.q(`DELETE FROM partstore WHERE k = ?`), key); err != nil {
		return err
	}
	_, err := x.Exec(kv.q(`INSERT INTO partstore (k, v) VALUES (?, ?)`), key, value)
	return err
}

func (kv *sqlKV) Delete(key string) error {
	return kv.withLock(func() error {
		_, err := kv.db.Exec(kv.q(`DELETE FROM partstore WHERE k = ?`), key)
		return err
	})
}

func (kv *sqlKV) BeginBatch() BatchMutation { return NewBatchMutation() }

func (kv *sqlKV) CommitBatch(b BatchMutation) error {
	return kv.withLock(func() error {
		tx, err := kv.db.Begin()
		if err != nil {
			return err
		}
		for _, mu := range Mutations(b) {
			if mu.IsDelete() {
				if _, err := tx.Exec(kv.q(`DELETE FROM partstore WHERE k = ?`), mu.Key()); err != nil {
					tx.Rollback()
					return err
				}
				continue
			}
			if err := kv.upsert(tx, mu.Key(), mu.Value()); err != nil {
				tx.Rollback()
				return err
			}
		}
		return tx.Commit()
	})
}

func (kv *sqlKV) Find(key string) Iterator {
	rows, err := kv.db.Query(kv.q(`SELECT k, v FROM partstore WHERE k >= ? ORDER BY k`), key)
	if err != nil {
		return &errIterator{err: err}
	}
	return &sqlIter{rows: rows}
}

func (kv *sqlKV) Close() error { return kv.db.Close() }

type sqlIter struct {
	rows    *sql.Rows
	k, v    string
	lastErr error
}

func (it *sqlIter) Next() bool {
	if !it.rows.Next() {
		return false
	}
	it.lastErr = it.rows.Scan(&it.k, &it.v)
	return it.lastErr == nil
}

func (it *sqlIter) Key() string   { return it.k }
func (it *sqlIter) Value() string { return it.v }
func (it *sqlIter) Close() error {
	it.rows.Close()
	if it.lastErr != nil {
		return it.lastErr
	}
	return it.rows.Err()
}

type errIterator struct{ err error }

func (it *errIterator) Next() bool     { return false }
func (it *errIterator) Key() string    { return "" }
func (it *errIterator) Value() string  { return "" }
func (it *errIterator) Close() error   { return it.err }
