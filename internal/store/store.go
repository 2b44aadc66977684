package store

import (
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/deduce/internal/querysql"
)

//go:embed schema.sql
var schemaSQL string

// currentSchemaVersion is the user_version of a fully migrated journal.
// Version 0 journals hold only the statements table.
const currentSchemaVersion = 1

// migrations[v] upgrades a journal from user_version v to v+1.
var migrations = [currentSchemaVersion]func(*sql.DB) error{
	addProgramsTable,
}

// journalPragmas are applied to every connection before the schema.
var journalPragmas = []string{
	// Readers of a journal (deduce query, replay) can run while an engine appends.
	"PRAGMA journal_mode = WAL",
	// An append survives a process crash; a power loss may drop the tail.
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 5000",
}

// Store is a SQLite statement journal shared by any number of engines.
// Rows are keyed by (engine_id, seq) and never updated.
type Store struct {
	db       *sql.DB
	compiler *querysql.SQLCompiler
}

// Open opens the journal at path, creating the file when it is missing,
// and brings its schema up to date. Opening a journal written by a newer
// schema fails rather than guessing at its layout.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}

	// Engines serialize their own appends; one connection keeps SQLite
	// from returning SQLITE_BUSY between them.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, compiler: querysql.NewSQLCompiler()}, nil
}

// Close releases the journal. Closing a zero Store is a no-op.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the journal database for ad-hoc SQL, such as running the
// output of querysql directly.
func (s *Store) DB() *sql.DB {
	return s.db
}

func applyPragmas(db *sql.DB) error {
	for _, pragma := range journalPragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("journal pragma %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates missing tables and indexes, then migrates.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("journal schema: %w", err)
	}
	return runMigrations(db)
}

// runMigrations steps user_version up one migration at a time, recording
// each step so an interrupted upgrade resumes where it stopped.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read journal version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("journal schema v%d is newer than supported v%d", version, currentSchemaVersion)
	}

	for v := version; v < currentSchemaVersion; v++ {
		if err := migrations[v](db); err != nil {
			return fmt.Errorf("migrate journal v%d to v%d: %w", v, v+1, err)
		}
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", v+1)); err != nil {
			return fmt.Errorf("record journal version v%d: %w", v+1, err)
		}
	}
	return nil
}

// addProgramsTable adds the program run summaries written by WriteProgram.
func addProgramsTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS programs (
			id         TEXT    PRIMARY KEY,
			engine_id  TEXT    NOT NULL,
			name       TEXT    NOT NULL,
			applied    INTEGER NOT NULL,
			changed    INTEGER NOT NULL,
			failures   INTEGER NOT NULL,
			last_seq   INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_programs_engine
			ON programs(engine_id, last_seq)
	`)
	return err
}

// pragma reads the current value of a journal pragma.
func (s *Store) pragma(name string) (string, error) {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return "", fmt.Errorf("read pragma %s: %w", name, err)
	}
	return value, nil
}
