package store

import (
	"database/sql"
	"fmt"
)

// --- Files ---

func (s *Store) InsertFile(f *File) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO files (path, language, hash, partial, last_indexed) VALUES (?, ?, ?, ?, ?)",
		f.Path, f.Language, f.Hash, f.Partial, f.LastIndexed,
	)
	if err != nil {
		return 0, fmt.Errorf("insert file: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	f.ID = id
	return id, nil
}

const fileCols = `id, path, language, hash, partial, last_indexed`

func scanFile(row interface{ Scan(...any) error }) (*File, error) {
	f := &File{}
	if err := row.Scan(&f.ID, &f.Path, &f.Language, &f.Hash, &f.Partial, &f.LastIndexed); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Store) FileByPath(path string) (*File, error) {
	f, err := scanFile(s.db.QueryRow("SELECT "+fileCols+" FROM files WHERE path = ?", path))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by path: %w", err)
	}
	return f, nil
}

func (s *Store) FileByID(id int64) (*File, error) {
	f, err := scanFile(s.db.QueryRow("SELECT "+fileCols+" FROM files WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by id: %w", err)
	}
	return f, nil
}

func (s *Store) AllFiles() ([]*File, error) {
	rows, err := s.db.Query("SELECT " + fileCols + " FROM files")
	if err != nil {
		return nil, fmt.Errorf("all files: %w", err)
	}
	defer rows.Close()
	var files []*File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func (s *Store) DeleteFileRecord(id int64) error {
	_, err := s.db.Exec("DELETE FROM files WHERE id = ?", id)
	return err
}

// --- Scopes ---

func (s *Store) InsertScope(sc *Scope) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO scopes (file_id, kind, start_line, start_col, end_line, end_col, parent_scope_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sc.FileID, sc.Kind, sc.StartLine, sc.StartCol, sc.EndLine, sc.EndCol, sc.ParentScopeID,
	)
	if err != nil {
		return 0, fmt.Errorf("insert scope: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	sc.ID = id
	return id, nil
}

func scanScope(row interface{ Scan(...any) error }) (*Scope, error) {
	sc := &Scope{}
	if err := row.Scan(&sc.ID, &sc.FileID, &sc.Kind, &sc.StartLine, &sc.StartCol, &sc.EndLine, &sc.EndCol, &sc.ParentScopeID); err != nil {
		return nil, err
	}
	return sc, nil
}

const scopeCols = `id, file_id, kind, start_line, start_col, end_line, end_col, parent_scope_id`

func (s *Store) ScopesByFile(fileID int64) ([]*Scope, error) {
	rows, err := s.db.Query("SELECT "+scopeCols+" FROM scopes WHERE file_id = ? ORDER BY id", fileID)
	if err != nil {
		return nil, fmt.Errorf("scopes by file: %w", err)
	}
	defer rows.Close()
	var scopes []*Scope
	for rows.Next() {
		sc, err := scanScope(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scope: %w", err)
		}
		scopes = append(scopes, sc)
	}
	return scopes, rows.Err()
}

func (s *Store) AllScopes() ([]*Scope, error) {
	rows, err := s.db.Query("SELECT " + scopeCols + " FROM scopes ORDER BY file_id, id")
	if err != nil {
		return nil, fmt.Errorf("all scopes: %w", err)
	}
	defer rows.Close()
	var scopes []*Scope
	for rows.Next() {
		sc, err := scanScope(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scope: %w", err)
		}
		scopes = append(scopes, sc)
	}
	return scopes, rows.Err()
}

func (s *Store) ScopeByID(id int64) (*Scope, error) {
	sc, err := scanScope(s.db.QueryRow("SELECT "+scopeCols+" FROM scopes WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return sc, err
}

// --- Symbols ---

func (s *Store) InsertSymbol(sym *Symbol) error {
	_, err := s.db.Exec(
		`INSERT INTO symbols (id, file_id, scope_id, name, kind, visibility, is_exported, is_static,
			owner_class, source_module, imported_name, is_namespace, inferred_type, signature_hash,
			start_line, start_col, end_line, end_col,
			has_enclosing, enc_start_line, enc_start_col, enc_end_line, enc_end_col)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sym.ID, sym.FileID, sym.ScopeID, sym.Name, sym.Kind, sym.Visibility, sym.IsExported, sym.IsStatic,
		sym.OwnerClass, sym.SourceModule, sym.ImportedName, sym.IsNamespace, sym.InferredType, sym.SignatureHash,
		sym.StartLine, sym.StartCol, sym.EndLine, sym.EndCol,
		sym.HasEnclosing, sym.EncStartLine, sym.EncStartCol, sym.EncEndLine, sym.EncEndCol,
	)
	if err != nil {
		return fmt.Errorf("insert symbol: %w", err)
	}
	return nil
}

const symbolCols = `id, file_id, scope_id, name, kind, visibility, is_exported, is_static,
	owner_class, source_module, imported_name, is_namespace, inferred_type, signature_hash,
	start_line, start_col, end_line, end_col,
	has_enclosing, enc_start_line, enc_start_col, enc_end_line, enc_end_col`

func scanSymbol(row interface{ Scan(...any) error }) (*Symbol, error) {
	sym := &Symbol{}
	err := row.Scan(
		&sym.ID, &sym.FileID, &sym.ScopeID, &sym.Name, &sym.Kind, &sym.Visibility, &sym.IsExported, &sym.IsStatic,
		&sym.OwnerClass, &sym.SourceModule, &sym.ImportedName, &sym.IsNamespace, &sym.InferredType, &sym.SignatureHash,
		&sym.StartLine, &sym.StartCol, &sym.EndLine, &sym.EndCol,
		&sym.HasEnclosing, &sym.EncStartLine, &sym.EncStartCol, &sym.EncEndLine, &sym.EncEndCol,
	)
	if err != nil {
		return nil, err
	}
	return sym, nil
}

func (s *Store) querySymbols(query string, args ...any) ([]*Symbol, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Symbol
	for rows.Next() {
		sym, err := scanSymbol(rows)
		if err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}

func (s *Store) SymbolByID(id string) (*Symbol, error) {
	sym, err := scanSymbol(s.db.QueryRow("SELECT "+symbolCols+" FROM symbols WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return sym, err
}

func (s *Store) SymbolsByFile(fileID int64) ([]*Symbol, error) {
	return s.querySymbols("SELECT "+symbolCols+" FROM symbols WHERE file_id = ?", fileID)
}

func (s *Store) SymbolsByName(name string) ([]*Symbol, error) {
	return s.querySymbols("SELECT "+symbolCols+" FROM symbols WHERE name = ? ORDER BY file_id, start_line", name)
}

func (s *Store) SymbolsByOwnerClass(ownerClassID string) ([]*Symbol, error) {
	return s.querySymbols("SELECT "+symbolCols+" FROM symbols WHERE owner_class = ? ORDER BY file_id, start_line", ownerClassID)
}

func (s *Store) SymbolsByKindAndName(kind, name string) ([]*Symbol, error) {
	return s.querySymbols("SELECT "+symbolCols+" FROM symbols WHERE kind = ? AND name = ? ORDER BY file_id, start_line", kind, name)
}

func (s *Store) AllSymbols() ([]*Symbol, error) {
	return s.querySymbols("SELECT " + symbolCols + " FROM symbols ORDER BY file_id, start_line")
}

// --- References ---

func (s *Store) InsertReference(ref *Reference) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO references_ (file_id, scope_id, name, kind, start_line, start_col, end_line, end_col,
			receiver_chain, receiver_is_self, call_arity, has_call_arity, is_construction,
			callback_arg_to, call_arg_index, has_call_arg_index)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ref.FileID, ref.ScopeID, ref.Name, ref.Kind, ref.StartLine, ref.StartCol, ref.EndLine, ref.EndCol,
		ref.ReceiverChain, ref.ReceiverIsSelf, ref.CallArity, ref.HasCallArity, ref.IsConstruction,
		ref.CallbackArgTo, ref.CallArgIndex, ref.HasCallArgIndex,
	)
	if err != nil {
		return 0, fmt.Errorf("insert reference: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	ref.ID = id
	return id, nil
}

const refCols = `id, file_id, scope_id, name, kind, start_line, start_col, end_line, end_col,
	receiver_chain, receiver_is_self, call_arity, has_call_arity, is_construction,
	callback_arg_to, call_arg_index, has_call_arg_index`

func scanRef(row interface{ Scan(...any) error }) (*Reference, error) {
	r := &Reference{}
	err := row.Scan(
		&r.ID, &r.FileID, &r.ScopeID, &r.Name, &r.Kind, &r.StartLine, &r.StartCol, &r.EndLine, &r.EndCol,
		&r.ReceiverChain, &r.ReceiverIsSelf, &r.CallArity, &r.HasCallArity, &r.IsConstruction,
		&r.CallbackArgTo, &r.CallArgIndex, &r.HasCallArgIndex,
	)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Store) queryRefs(query string, args ...any) ([]*Reference, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Reference
	for rows.Next() {
		r, err := scanRef(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reference: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) ReferencesByFile(fileID int64) ([]*Reference, error) {
	return s.queryRefs("SELECT "+refCols+" FROM references_ WHERE file_id = ? ORDER BY id", fileID)
}

func (s *Store) AllReferences() ([]*Reference, error) {
	return s.queryRefs("SELECT " + refCols + " FROM references_ ORDER BY file_id, id")
}

func (s *Store) ReferencesByName(name string) ([]*Reference, error) {
	return s.queryRefs("SELECT "+refCols+" FROM references_ WHERE name = ?", name)
}

func (s *Store) ReferenceByID(id int64) (*Reference, error) {
	r, err := scanRef(s.db.QueryRow("SELECT "+refCols+" FROM references_ WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

// --- Imports ---

func (s *Store) InsertImport(imp *Import) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO imports (file_id, source, kind, bindings) VALUES (?, ?, ?, ?)",
		imp.FileID, imp.Source, imp.Kind, imp.Bindings,
	)
	if err != nil {
		return 0, fmt.Errorf("insert import: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	imp.ID = id
	return id, nil
}

const importCols = `id, file_id, source, kind, bindings`

func scanImport(row interface{ Scan(...any) error }) (*Import, error) {
	imp := &Import{}
	if err := row.Scan(&imp.ID, &imp.FileID, &imp.Source, &imp.Kind, &imp.Bindings); err != nil {
		return nil, err
	}
	return imp, nil
}

func (s *Store) ImportsByFile(fileID int64) ([]*Import, error) {
	rows, err := s.db.Query("SELECT "+importCols+" FROM imports WHERE file_id = ?", fileID)
	if err != nil {
		return nil, fmt.Errorf("imports by file: %w", err)
	}
	defer rows.Close()
	var out []*Import
	for rows.Next() {
		imp, err := scanImport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, imp)
	}
	return out, rows.Err()
}

func (s *Store) AllImports() ([]*Import, error) {
	rows, err := s.db.Query("SELECT " + importCols + " FROM imports")
	if err != nil {
		return nil, fmt.Errorf("all imports: %w", err)
	}
	defer rows.Close()
	var out []*Import
	for rows.Next() {
		imp, err := scanImport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, imp)
	}
	return out, rows.Err()
}

func (s *Store) ImportsBySource(source string) ([]*Import, error) {
	rows, err := s.db.Query("SELECT "+importCols+" FROM imports WHERE source = ?", source)
	if err != nil {
		return nil, fmt.Errorf("imports by source: %w", err)
	}
	defer rows.Close()
	var out []*Import
	for rows.Next() {
		imp, err := scanImport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, imp)
	}
	return out, rows.Err()
}

// --- Exports ---

func (s *Store) InsertExport(ex *Export) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO exports (file_id, exported_name, local_symbol_id, source_module) VALUES (?, ?, ?, ?)",
		ex.FileID, ex.ExportedName, ex.LocalSymbolID, ex.SourceModule,
	)
	if err != nil {
		return 0, fmt.Errorf("insert export: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	ex.ID = id
	return id, nil
}

const exportCols = `id, file_id, exported_name, local_symbol_id, source_module`

func scanExport(row interface{ Scan(...any) error }) (*Export, error) {
	ex := &Export{}
	if err := row.Scan(&ex.ID, &ex.FileID, &ex.ExportedName, &ex.LocalSymbolID, &ex.SourceModule); err != nil {
		return nil, err
	}
	return ex, nil
}

func (s *Store) ExportsByFile(fileID int64) ([]*Export, error) {
	rows, err := s.db.Query("SELECT "+exportCols+" FROM exports WHERE file_id = ?", fileID)
	if err != nil {
		return nil, fmt.Errorf("exports by file: %w", err)
	}
	defer rows.Close()
	var out []*Export
	for rows.Next() {
		ex, err := scanExport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ex)
	}
	return out, rows.Err()
}

func (s *Store) AllExports() ([]*Export, error) {
	rows, err := s.db.Query("SELECT " + exportCols + " FROM exports")
	if err != nil {
		return nil, fmt.Errorf("all exports: %w", err)
	}
	defer rows.Close()
	var out []*Export
	for rows.Next() {
		ex, err := scanExport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ex)
	}
	return out, rows.Err()
}

func (s *Store) ExportByName(fileID int64, name string) (*Export, error) {
	ex, err := scanExport(s.db.QueryRow(
		"SELECT "+exportCols+" FROM exports WHERE file_id = ? AND exported_name = ?", fileID, name,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return ex, err
}

// --- Diagnostics ---

func (s *Store) InsertDiagnostic(d *Diagnostic) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO diagnostics (file_id, reference_id, category, message) VALUES (?, ?, ?, ?)",
		d.FileID, d.ReferenceID, d.Category, d.Message,
	)
	if err != nil {
		return 0, fmt.Errorf("insert diagnostic: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	d.ID = id
	return id, nil
}

func (s *Store) DiagnosticsByFile(fileID int64) ([]*Diagnostic, error) {
	rows, err := s.db.Query(
		"SELECT id, file_id, reference_id, category, message FROM diagnostics WHERE file_id = ?", fileID,
	)
	if err != nil {
		return nil, fmt.Errorf("diagnostics by file: %w", err)
	}
	defer rows.Close()
	var out []*Diagnostic
	for rows.Next() {
		d := &Diagnostic{}
		if err := rows.Scan(&d.ID, &d.FileID, &d.ReferenceID, &d.Category, &d.Message); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
