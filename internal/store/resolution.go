package store

import "fmt"

// --- ResolvedReference ---

func (s *Store) InsertResolvedReference(rr *ResolvedReference) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO resolved_references (reference_id, target_symbol_id, resolution_kind, confidence, ambiguous)
		 VALUES (?, ?, ?, ?, ?)`,
		rr.ReferenceID, rr.TargetSymbolID, rr.ResolutionKind, rr.Confidence, rr.Ambiguous,
	)
	if err != nil {
		return 0, fmt.Errorf("insert resolved reference: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	rr.ID = id
	return id, nil
}

const resolvedCols = `id, reference_id, target_symbol_id, resolution_kind, confidence, ambiguous`

func scanResolved(row interface{ Scan(...any) error }) (*ResolvedReference, error) {
	rr := &ResolvedReference{}
	if err := row.Scan(&rr.ID, &rr.ReferenceID, &rr.TargetSymbolID, &rr.ResolutionKind, &rr.Confidence, &rr.Ambiguous); err != nil {
		return nil, err
	}
	return rr, nil
}

func (s *Store) queryResolved(query string, args ...any) ([]*ResolvedReference, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*ResolvedReference
	for rows.Next() {
		rr, err := scanResolved(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rr)
	}
	return out, rows.Err()
}

func (s *Store) ResolvedReferencesByRef(referenceID int64) ([]*ResolvedReference, error) {
	return s.queryResolved("SELECT "+resolvedCols+" FROM resolved_references WHERE reference_id = ?", referenceID)
}

func (s *Store) ResolvedReferencesByTarget(symbolID string) ([]*ResolvedReference, error) {
	return s.queryResolved("SELECT "+resolvedCols+" FROM resolved_references WHERE target_symbol_id = ?", symbolID)
}

func (s *Store) AllResolvedReferences() ([]*ResolvedReference, error) {
	return s.queryResolved("SELECT " + resolvedCols + " FROM resolved_references")
}

// --- CallEdge ---

func (s *Store) InsertCallEdge(edge *CallEdge) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO call_graph (caller_symbol_id, callee_symbol_id, reference_id, file_id, line, col) VALUES (?, ?, ?, ?, ?, ?)",
		edge.CallerSymbolID, edge.CalleeSymbolID, edge.ReferenceID, edge.FileID, edge.Line, edge.Col,
	)
	if err != nil {
		return 0, fmt.Errorf("insert call edge: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	edge.ID = id
	return id, nil
}

const callEdgeCols = `id, caller_symbol_id, callee_symbol_id, reference_id, file_id, line, col`

func scanCallEdge(row interface{ Scan(...any) error }) (*CallEdge, error) {
	e := &CallEdge{}
	if err := row.Scan(&e.ID, &e.CallerSymbolID, &e.CalleeSymbolID, &e.ReferenceID, &e.FileID, &e.Line, &e.Col); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Store) AllCallEdges() ([]*CallEdge, error) {
	rows, err := s.db.Query("SELECT " + callEdgeCols + " FROM call_graph")
	if err != nil {
		return nil, fmt.Errorf("all call edges: %w", err)
	}
	defer rows.Close()
	var out []*CallEdge
	for rows.Next() {
		e, err := scanCallEdge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) CallEdgesByCallee(symbolID string) ([]*CallEdge, error) {
	rows, err := s.db.Query("SELECT "+callEdgeCols+" FROM call_graph WHERE callee_symbol_id = ?", symbolID)
	if err != nil {
		return nil, fmt.Errorf("call edges by callee: %w", err)
	}
	defer rows.Close()
	var out []*CallEdge
	for rows.Next() {
		e, err := scanCallEdge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// --- Implementation ---

func (s *Store) InsertImplementation(impl *Implementation) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO implementations (file_id, type_symbol_id, parent_symbol_id, kind) VALUES (?, ?, ?, ?)",
		impl.FileID, impl.TypeSymbolID, impl.ParentSymbolID, impl.Kind,
	)
	if err != nil {
		return 0, fmt.Errorf("insert implementation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	impl.ID = id
	return id, nil
}

const implCols = `id, file_id, type_symbol_id, parent_symbol_id, kind`

func scanImpl(row interface{ Scan(...any) error }) (*Implementation, error) {
	impl := &Implementation{}
	if err := row.Scan(&impl.ID, &impl.FileID, &impl.TypeSymbolID, &impl.ParentSymbolID, &impl.Kind); err != nil {
		return nil, err
	}
	return impl, nil
}

func (s *Store) ImplementationsByType(typeSymbolID string) ([]*Implementation, error) {
	rows, err := s.db.Query("SELECT "+implCols+" FROM implementations WHERE type_symbol_id = ?", typeSymbolID)
	if err != nil {
		return nil, fmt.Errorf("implementations by type: %w", err)
	}
	defer rows.Close()
	var out []*Implementation
	for rows.Next() {
		impl, err := scanImpl(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, impl)
	}
	return out, rows.Err()
}

func (s *Store) AllImplementations() ([]*Implementation, error) {
	rows, err := s.db.Query("SELECT " + implCols + " FROM implementations")
	if err != nil {
		return nil, fmt.Errorf("all implementations: %w", err)
	}
	defer rows.Close()
	var out []*Implementation
	for rows.Next() {
		impl, err := scanImpl(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, impl)
	}
	return out, rows.Err()
}

// --- Reexport ---

func (s *Store) InsertReexport(re *Reexport) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO reexports (file_id, original_symbol_id, exported_name) VALUES (?, ?, ?)",
		re.FileID, re.OriginalSymbolID, re.ExportedName,
	)
	if err != nil {
		return 0, fmt.Errorf("insert reexport: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	re.ID = id
	return id, nil
}

func (s *Store) ReexportsByFile(fileID int64) ([]*Reexport, error) {
	rows, err := s.db.Query("SELECT id, file_id, original_symbol_id, exported_name FROM reexports WHERE file_id = ?", fileID)
	if err != nil {
		return nil, fmt.Errorf("reexports by file: %w", err)
	}
	defer rows.Close()
	var out []*Reexport
	for rows.Next() {
		re := &Reexport{}
		if err := rows.Scan(&re.ID, &re.FileID, &re.OriginalSymbolID, &re.ExportedName); err != nil {
			return nil, err
		}
		out = append(out, re)
	}
	return out, rows.Err()
}
