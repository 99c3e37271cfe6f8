package beaker

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Execer is the subset of database/sql shared by *sql.DB and *sql.Tx, so
// items can be added inside a caller's transaction.
type Execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// beaker names become table names, so they are restricted to identifiers.
var validName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// SQLite is a Beaker backed by a table in a shared SQLite database. Each
// beaker gets its own table of (uuid, data) rows with items stored as JSON.
type SQLite struct {
	name    string
	factory Factory
	db      *sql.DB
}

// NewSQLite creates (if needed) the beaker's table and returns the store.
// The *sql.DB is shared with the owning pipeline and is not closed here.
func NewSQLite(db *sql.DB, name string, factory Factory) (*SQLite, error) {
	if !validName.MatchString(name) {
		return nil, fmt.Errorf("invalid beaker name %q", name)
	}
	_, err := db.Exec(
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (uuid TEXT PRIMARY KEY, data JSON)", name),
	)
	if err != nil {
		return nil, fmt.Errorf("create table %s: %w", name, err)
	}
	return &SQLite{name: name, factory: factory, db: db}, nil
}

func (b *SQLite) Name() string { return b.name }

func (b *SQLite) NewItem() any { return b.factory() }

func (b *SQLite) Len() (int, error) {
	var n int
	err := b.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", b.name)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", b.name, err)
	}
	return n, nil
}

func (b *SQLite) AddItem(item any, id string) (string, error) {
	return b.AddItemIn(b.db, item, id)
}

// AddItemIn stores an item through e, which may be a transaction on the
// beaker's database.
func (b *SQLite) AddItemIn(e Execer, item any, id string) (string, error) {
	if id == "" {
		id = newID()
	}
	data, err := json.Marshal(item)
	if err != nil {
		return "", fmt.Errorf("marshal item for %s: %w", b.name, err)
	}
	_, err = e.Exec(
		fmt.Sprintf("INSERT INTO %s (uuid, data) VALUES (?, ?)", b.name),
		id, data,
	)
	if err != nil {
		if isConstraint(err) {
			return "", fmt.Errorf("%s in %s: %w", id, b.name, ErrDuplicateID)
		}
		return "", fmt.Errorf("insert into %s: %w", b.name, err)
	}
	return id, nil
}

func isConstraint(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY ||
		se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

func (b *SQLite) GetItem(id string) (any, error) {
	var data []byte
	err := b.db.QueryRow(
		fmt.Sprintf("SELECT data FROM %s WHERE uuid = ?", b.name), id,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%s in %s: %w", id, b.name, ErrItemNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select from %s: %w", b.name, err)
	}
	return b.decode(data)
}

func (b *SQLite) Items(fn func(id string, item any) error) error {
	rows, err := b.db.Query(
		fmt.Sprintf("SELECT uuid, data FROM %s ORDER BY rowid", b.name),
	)
	if err != nil {
		return fmt.Errorf("select from %s: %w", b.name, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var data []byte
		if err := rows.Scan(&id, &data); err != nil {
			return fmt.Errorf("scan %s: %w", b.name, err)
		}
		item, err := b.decode(data)
		if err != nil {
			return err
		}
		if err := fn(id, item); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (b *SQLite) IDSet() (map[string]struct{}, error) {
	rows, err := b.db.Query(fmt.Sprintf("SELECT uuid FROM %s", b.name))
	if err != nil {
		return nil, fmt.Errorf("select ids from %s: %w", b.name, err)
	}
	defer rows.Close()

	ids := map[string]struct{}{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan %s: %w", b.name, err)
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

func (b *SQLite) Reset() error {
	if _, err := b.db.Exec(fmt.Sprintf("DELETE FROM %s", b.name)); err != nil {
		return fmt.Errorf("reset %s: %w", b.name, err)
	}
	return nil
}

func (b *SQLite) decode(data []byte) (any, error) {
	item := b.factory()
	if err := json.Unmarshal(data, item); err != nil {
		return nil, fmt.Errorf("unmarshal item from %s: %w", b.name, err)
	}
	return item, nil
}
