package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the project registry's storage engine: an in-memory SQLite
// database holding every extracted and resolved fact about the project.
// Nothing is persisted to disk -- the DSN is always ":memory:" -- but the
// relational schema, transactional cascading deletes, and prepared-statement
// CRUD are otherwise identical in shape to an on-disk store.
type Store struct {
	db *sql.DB
}

// NewStore opens a fresh in-memory project registry. Each Store is an
// independent SQLite connection; closing it discards all state, which is
// the only kind of state this engine ever has.
func NewStore() (*Store, error) {
	db, err := sql.Open("sqlite3", "file::memory:?_journal_mode=MEMORY&_foreign_keys=ON")
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	// A single in-memory SQLite connection per Store; a connection pool would
	// give every goroutine its own throwaway database, so keep this to one.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping store: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS files (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	path TEXT NOT NULL UNIQUE,
	language TEXT NOT NULL,
	hash TEXT NOT NULL,
	partial INTEGER NOT NULL DEFAULT 0,
	last_indexed INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_files_language ON files(language);

CREATE TABLE IF NOT EXISTS scopes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	file_id INTEGER NOT NULL,
	kind TEXT NOT NULL,
	start_line INTEGER NOT NULL,
	start_col INTEGER NOT NULL,
	end_line INTEGER NOT NULL,
	end_col INTEGER NOT NULL,
	parent_scope_id INTEGER
);
CREATE INDEX IF NOT EXISTS idx_scopes_file ON scopes(file_id);
CREATE INDEX IF NOT EXISTS idx_scopes_parent ON scopes(parent_scope_id);

CREATE TABLE IF NOT EXISTS symbols (
	id TEXT PRIMARY KEY,
	file_id INTEGER NOT NULL,
	scope_id INTEGER NOT NULL,
	name TEXT NOT NULL,
	kind TEXT NOT NULL,
	visibility TEXT NOT NULL DEFAULT 'public',
	is_exported INTEGER NOT NULL DEFAULT 0,
	is_static INTEGER NOT NULL DEFAULT 0,
	owner_class TEXT NOT NULL DEFAULT '',
	source_module TEXT NOT NULL DEFAULT '',
	imported_name TEXT NOT NULL DEFAULT '',
	is_namespace INTEGER NOT NULL DEFAULT 0,
	inferred_type TEXT NOT NULL DEFAULT '',
	signature_hash TEXT NOT NULL DEFAULT '',
	start_line INTEGER NOT NULL,
	start_col INTEGER NOT NULL,
	end_line INTEGER NOT NULL,
	end_col INTEGER NOT NULL,
	has_enclosing INTEGER NOT NULL DEFAULT 0,
	enc_start_line INTEGER NOT NULL DEFAULT 0,
	enc_start_col INTEGER NOT NULL DEFAULT 0,
	enc_end_line INTEGER NOT NULL DEFAULT 0,
	enc_end_col INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_symbols_file ON symbols(file_id);
CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name);
CREATE INDEX IF NOT EXISTS idx_symbols_owner ON symbols(owner_class);
CREATE INDEX IF NOT EXISTS idx_symbols_scope ON symbols(scope_id);

CREATE TABLE IF NOT EXISTS references_ (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	file_id INTEGER NOT NULL,
	scope_id INTEGER NOT NULL,
	name TEXT NOT NULL,
	kind TEXT NOT NULL,
	start_line INTEGER NOT NULL,
	start_col INTEGER NOT NULL,
	end_line INTEGER NOT NULL,
	end_col INTEGER NOT NULL,
	receiver_chain TEXT NOT NULL DEFAULT '',
	receiver_is_self INTEGER NOT NULL DEFAULT 0,
	call_arity INTEGER NOT NULL DEFAULT 0,
	has_call_arity INTEGER NOT NULL DEFAULT 0,
	is_construction INTEGER NOT NULL DEFAULT 0,
	callback_arg_to TEXT NOT NULL DEFAULT '',
	call_arg_index INTEGER NOT NULL DEFAULT 0,
	has_call_arg_index INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_refs_file ON references_(file_id);
CREATE INDEX IF NOT EXISTS idx_refs_name ON references_(name);
CREATE INDEX IF NOT EXISTS idx_refs_scope ON references_(scope_id);

CREATE TABLE IF NOT EXISTS imports (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	file_id INTEGER NOT NULL,
	source TEXT NOT NULL,
	kind TEXT NOT NULL,
	bindings TEXT NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_imports_file ON imports(file_id);
CREATE INDEX IF NOT EXISTS idx_imports_source ON imports(source);

CREATE TABLE IF NOT EXISTS exports (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	file_id INTEGER NOT NULL,
	exported_name TEXT NOT NULL,
	local_symbol_id TEXT NOT NULL DEFAULT '',
	source_module TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_exports_file ON exports(file_id);
CREATE INDEX IF NOT EXISTS idx_exports_name ON exports(exported_name);

CREATE TABLE IF NOT EXISTS resolved_references (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	reference_id INTEGER NOT NULL,
	target_symbol_id TEXT NOT NULL,
	resolution_kind TEXT NOT NULL,
	confidence REAL NOT NULL DEFAULT 1.0,
	ambiguous INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_resolved_ref ON resolved_references(reference_id);
CREATE INDEX IF NOT EXISTS idx_resolved_target ON resolved_references(target_symbol_id);

CREATE TABLE IF NOT EXISTS diagnostics (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	file_id INTEGER NOT NULL,
	reference_id INTEGER,
	category TEXT NOT NULL,
	message TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_diag_file ON diagnostics(file_id);

CREATE TABLE IF NOT EXISTS call_graph (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	caller_symbol_id TEXT NOT NULL,
	callee_symbol_id TEXT,
	reference_id INTEGER,
	file_id INTEGER NOT NULL,
	line INTEGER NOT NULL,
	col INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_callgraph_caller ON call_graph(caller_symbol_id);
CREATE INDEX IF NOT EXISTS idx_callgraph_callee ON call_graph(callee_symbol_id);
CREATE INDEX IF NOT EXISTS idx_callgraph_file ON call_graph(file_id);

CREATE TABLE IF NOT EXISTS implementations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	file_id INTEGER NOT NULL DEFAULT 0,
	type_symbol_id TEXT NOT NULL,
	parent_symbol_id TEXT NOT NULL,
	kind TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_impl_type ON implementations(type_symbol_id);
CREATE INDEX IF NOT EXISTS idx_impl_parent ON implementations(parent_symbol_id);
CREATE INDEX IF NOT EXISTS idx_impl_file ON implementations(file_id);

CREATE TABLE IF NOT EXISTS reexports (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	file_id INTEGER NOT NULL,
	original_symbol_id TEXT NOT NULL,
	exported_name TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reexport_file ON reexports(file_id);
`

// DeleteFileData removes every row owned by or derived from a file: its
// symbols, scopes, references, imports, exports, diagnostics, and any
// resolution rows (resolved_references, call_graph, implementations,
// reexports) that reference those symbols or originate from this file.
// Mirrors the cascading-delete transaction shape used for on-disk stores,
// adapted to the symbol-id-as-text schema.
func (s *Store) DeleteFileData(fileID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("delete file data: begin: %w", err)
	}
	defer tx.Rollback()

	symRows, err := tx.Query("SELECT id FROM symbols WHERE file_id = ?", fileID)
	if err != nil {
		return fmt.Errorf("delete file data: load symbols: %w", err)
	}
	var symIDs []string
	for symRows.Next() {
		var id string
		if err := symRows.Scan(&id); err != nil {
			symRows.Close()
			return fmt.Errorf("delete file data: scan symbol: %w", err)
		}
		symIDs = append(symIDs, id)
	}
	symRows.Close()

	for _, id := range symIDs {
		if _, err := tx.Exec("DELETE FROM resolved_references WHERE target_symbol_id = ?", id); err != nil {
			return fmt.Errorf("delete file data: resolved_references: %w", err)
		}
		if _, err := tx.Exec("DELETE FROM call_graph WHERE caller_symbol_id = ? OR callee_symbol_id = ?", id, id); err != nil {
			return fmt.Errorf("delete file data: call_graph: %w", err)
		}
		if _, err := tx.Exec("DELETE FROM implementations WHERE type_symbol_id = ? OR parent_symbol_id = ?", id, id); err != nil {
			return fmt.Errorf("delete file data: implementations: %w", err)
		}
		if _, err := tx.Exec("DELETE FROM reexports WHERE original_symbol_id = ?", id); err != nil {
			return fmt.Errorf("delete file data: reexports: %w", err)
		}
	}

	if _, err := tx.Exec(
		`DELETE FROM resolved_references WHERE reference_id IN (SELECT id FROM references_ WHERE file_id = ?)`, fileID,
	); err != nil {
		return fmt.Errorf("delete file data: resolved_references by file: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM call_graph WHERE file_id = ?", fileID); err != nil {
		return fmt.Errorf("delete file data: call_graph by file: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM reexports WHERE file_id = ?", fileID); err != nil {
		return fmt.Errorf("delete file data: reexports by file: %w", err)
	}

	for _, stmt := range []string{
		"DELETE FROM diagnostics WHERE file_id = ?",
		"DELETE FROM exports WHERE file_id = ?",
		"DELETE FROM imports WHERE file_id = ?",
		"DELETE FROM references_ WHERE file_id = ?",
		"DELETE FROM symbols WHERE file_id = ?",
		"DELETE FROM scopes WHERE file_id = ?",
	} {
		if _, err := tx.Exec(stmt, fileID); err != nil {
			return fmt.Errorf("delete file data: %s: %w", stmt, err)
		}
	}

	return tx.Commit()
}
