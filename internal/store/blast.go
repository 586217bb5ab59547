package store

import "fmt"

// FilesReferencingSymbols returns file IDs that have resolved_references targeting any of the given symbols.
func (s *Store) FilesReferencingSymbols(symbolIDs []string) ([]int64, error) {
	if len(symbolIDs) == 0 {
		return nil, nil
	}
	placeholders := placeholderList(len(symbolIDs))
	query := `SELECT DISTINCT r.file_id
		FROM resolved_references rr
		JOIN references_ r ON r.id = rr.reference_id
		WHERE rr.target_symbol_id IN (` + placeholders + `)`
	rows, err := s.db.Query(query, stringsToArgs(symbolIDs)...)
	if err != nil {
		return nil, fmt.Errorf("files referencing symbols: %w", err)
	}
	defer rows.Close()
	var fileIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan file id: %w", err)
		}
		fileIDs = append(fileIDs, id)
	}
	return fileIDs, rows.Err()
}

// FilesImportingSource returns file IDs that import the given module/package source.
func (s *Store) FilesImportingSource(source string) ([]int64, error) {
	rows, err := s.db.Query("SELECT DISTINCT file_id FROM imports WHERE source = ?", source)
	if err != nil {
		return nil, fmt.Errorf("files importing source: %w", err)
	}
	defer rows.Close()
	var fileIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan file id: %w", err)
		}
		fileIDs = append(fileIDs, id)
	}
	return fileIDs, rows.Err()
}

// DeleteResolutionDataForSymbols removes all resolution data targeting or
// originating from the given symbols: resolved_references, call_graph,
// implementations, reexports.
func (s *Store) DeleteResolutionDataForSymbols(symbolIDs []string) error {
	if len(symbolIDs) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	placeholders := placeholderList(len(symbolIDs))
	args := stringsToArgs(symbolIDs)

	queries := []struct {
		sql  string
		args []any
	}{
		{"DELETE FROM resolved_references WHERE target_symbol_id IN (" + placeholders + ")", args},
		{"DELETE FROM call_graph WHERE caller_symbol_id IN (" + placeholders + ") OR callee_symbol_id IN (" + placeholders + ")", repeatArgs(args, 2)},
		{"DELETE FROM implementations WHERE type_symbol_id IN (" + placeholders + ") OR parent_symbol_id IN (" + placeholders + ")", repeatArgs(args, 2)},
		{"DELETE FROM reexports WHERE original_symbol_id IN (" + placeholders + ")", args},
	}

	for _, q := range queries {
		if _, err := tx.Exec(q.sql, q.args...); err != nil {
			return fmt.Errorf("delete resolution data for symbols: %w", err)
		}
	}

	return tx.Commit()
}

// DeleteResolutionDataForFiles removes all resolution data originating from
// the given files: resolved_references whose reference comes from those
// files, call_graph/implementations/reexports with file_id in the set.
func (s *Store) DeleteResolutionDataForFiles(fileIDs []int64) error {
	if len(fileIDs) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	placeholders := placeholderList(len(fileIDs))
	args := int64sToArgs(fileIDs)

	if _, err := tx.Exec(
		`DELETE FROM resolved_references WHERE reference_id IN (
			SELECT id FROM references_ WHERE file_id IN (`+placeholders+`)
		)`, args...); err != nil {
		return fmt.Errorf("delete resolved refs for files: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM call_graph WHERE file_id IN ("+placeholders+")", args...); err != nil {
		return fmt.Errorf("delete call graph for files: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM implementations WHERE file_id IN ("+placeholders+")", args...); err != nil {
		return fmt.Errorf("delete implementations for files: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM reexports WHERE file_id IN ("+placeholders+")", args...); err != nil {
		return fmt.Errorf("delete reexports for files: %w", err)
	}
	if _, err := tx.Exec(
		`DELETE FROM diagnostics WHERE file_id IN (`+placeholders+`) AND category LIKE 'unresolved_%'`, args...,
	); err != nil {
		return fmt.Errorf("delete unresolved diagnostics for files: %w", err)
	}

	return tx.Commit()
}
