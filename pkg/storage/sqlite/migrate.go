package sqlite

import (
	"fmt"
	"slices"

	"github.com/jmoiron/sqlx"
)

// migration is one step of the schema history. Steps run in order, each in its own
// transaction, and the reached version is stored in PRAGMA user_version.
type migration struct {
	version int
	name    string
	apply   func(tx *sqlx.Tx) error
}

var migrations = []migration{
	{version: 1, name: "base tables", apply: execQuery("schema_base.sql")},
	{version: 2, name: "thread columns", apply: addColumns("tweets", column{"conversation_id", "TEXT"}, column{"parent_tweet_id", "TEXT"})},
	{version: 3, name: "images and retrieval log", apply: execQuery("schema_retrieval.sql")},
	{version: 4, name: "conversation index", apply: execQuery("schema_indexes.sql")},
}

// SchemaVersion is the version a freshly opened database ends up at.
var SchemaVersion = migrations[len(migrations)-1].version

type column struct {
	Name string
	Type string
}

func execQuery(name string) func(tx *sqlx.Tx) error {
	return func(tx *sqlx.Tx) error {
		query, err := getQuery(name)
		if err != nil {
			return err
		}
		_, err = tx.Exec(query)
		return err
	}
}

// addColumns adds the columns missing from table. Databases created by the bookmark
// exporter already have the table without them; fresh ones may have them already.
func addColumns(table string, cols ...column) func(tx *sqlx.Tx) error {
	return func(tx *sqlx.Tx) error {
		query, err := getQuery("table_columns.sql")
		if err != nil {
			return err
		}
		var existing []string
		if err := tx.Select(&existing, query, table); err != nil {
			return fmt.Errorf("failed to list columns of %s: %w", table, err)
		}
		for _, c := range cols {
			if slices.Contains(existing, c.Name) {
				continue
			}
			alter, err := getParsedQuery("add_column.sql.tpl", struct {
				Table  string
				Column string
				Type   string
			}{Table: table, Column: c.Name, Type: c.Type})
			if err != nil {
				return err
			}
			if _, err := tx.Exec(alter); err != nil {
				return fmt.Errorf("failed to add column %s.%s: %w", table, c.Name, err)
			}
		}
		return nil
	}
}

// Version returns the schema version stored in the database.
func (db *DB) Version() (int, error) {
	var v int
	if err := db.Conn.Get(&v, "PRAGMA user_version"); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return v, nil
}

// migrate applies every step newer than the stored version.
func (db *DB) migrate() error {
	current, err := db.Version()
	if err != nil {
		return err
	}
	if current > SchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", current, SchemaVersion)
	}
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := db.Conn.Beginx()
		if err != nil {
			return fmt.Errorf("failed to begin schema step %d: %w", m.version, err)
		}
		if err := m.apply(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("schema step %d (%s): %w", m.version, m.name, err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record schema version %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit schema step %d: %w", m.version, err)
		}
	}
	return nil
}
