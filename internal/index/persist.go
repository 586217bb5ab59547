package index

import (
	"encoding/json"
	"fmt"

	"github.com/CRJFisher/ariadne-sub017/internal/lang"
	"github.com/CRJFisher/ariadne-sub017/internal/store"
)

// Persist writes a FileIndex's scopes, symbols, references, imports, and
// exports into st under fileID, translating local scope handles into the
// store's autoincrement scope ids. The caller is responsible for inserting
// (or re-inserting) the File row and clearing any prior data for fileID
// first -- Persist only adds rows.
func Persist(st *store.Store, fileID int64, fi *FileIndex) error {
	scopeIDs := make([]int64, len(fi.Scopes))
	for _, sc := range fi.Scopes {
		row := &store.Scope{
			FileID:    fileID,
			Kind:      sc.Kind,
			StartLine: sc.Range.StartLine,
			StartCol:  sc.Range.StartCol,
			EndLine:   sc.Range.EndLine,
			EndCol:    sc.Range.EndCol,
		}
		if sc.ParentLocalID != -1 {
			parentID := scopeIDs[sc.ParentLocalID]
			row.ParentScopeID = &parentID
		}
		id, err := st.InsertScope(row)
		if err != nil {
			return fmt.Errorf("persist scope %d: %w", sc.LocalID, err)
		}
		scopeIDs[sc.LocalID] = id
	}

	resolveScope := func(local int) int64 {
		if local < 0 || local >= len(scopeIDs) {
			return 0
		}
		return scopeIDs[local]
	}

	for _, d := range fi.Defs {
		sym := &store.Symbol{
			ID:            d.SymbolID,
			FileID:        fileID,
			ScopeID:       resolveScope(d.ScopeLocalID),
			Name:          d.Name,
			Kind:          d.Kind,
			Visibility:    d.Visibility,
			IsExported:    d.IsExported,
			IsStatic:      d.IsStatic,
			OwnerClass:    d.OwnerClassID,
			SourceModule:  d.SourceModule,
			ImportedName:  d.ImportedName,
			IsNamespace:   d.IsNamespace,
			InferredType:  d.InferredType,
			StartLine:     d.Range.StartLine,
			StartCol:      d.Range.StartCol,
			EndLine:       d.Range.EndLine,
			EndCol:        d.Range.EndCol,
			HasEnclosing:  d.HasEnclosing,
			EncStartLine:  d.EnclosingRange.StartLine,
			EncStartCol:   d.EnclosingRange.StartCol,
			EncEndLine:    d.EnclosingRange.EndLine,
			EncEndCol:     d.EnclosingRange.EndCol,
		}
		sym.SignatureHash = store.ComputeSignatureHash(sym)
		if err := st.InsertSymbol(sym); err != nil {
			return fmt.Errorf("persist symbol %s: %w", d.SymbolID, err)
		}
	}

	for _, r := range fi.Refs {
		chainJSON, err := json.Marshal(r.ReceiverChain)
		if err != nil {
			return fmt.Errorf("marshal receiver chain: %w", err)
		}
		ref := &store.Reference{
			FileID:          fileID,
			ScopeID:         resolveScope(r.ScopeLocalID),
			Name:            r.Name,
			Kind:            r.Kind,
			StartLine:       r.Range.StartLine,
			StartCol:        r.Range.StartCol,
			EndLine:         r.Range.EndLine,
			EndCol:          r.Range.EndCol,
			ReceiverChain:   string(chainJSON),
			ReceiverIsSelf:  r.ReceiverIsSelf,
			CallArity:       r.CallArity,
			HasCallArity:    r.HasCallArity,
			IsConstruction:  r.IsConstruction,
			CallbackArgTo:   r.CallbackArgTo,
			CallArgIndex:    r.CallArgIndex,
			HasCallArgIndex: r.HasCallArgIndex,
		}
		if _, err := st.InsertReference(ref); err != nil {
			return fmt.Errorf("persist reference at %d:%d: %w", r.Range.StartLine, r.Range.StartCol, err)
		}
	}

	for _, imp := range fi.Imports {
		bindingsJSON, err := marshalBindingList(imp.Bindings)
		if err != nil {
			return fmt.Errorf("marshal import bindings: %w", err)
		}
		row := &store.Import{FileID: fileID, Source: imp.Source, Kind: imp.Kind, Bindings: bindingsJSON}
		if _, err := st.InsertImport(row); err != nil {
			return fmt.Errorf("persist import %s: %w", imp.Source, err)
		}
	}

	for _, ex := range fi.Exports {
		row := &store.Export{
			FileID:        fileID,
			ExportedName:  ex.ExportedName,
			LocalSymbolID: ex.LocalSymbolID,
			SourceModule:  ex.SourceModule,
		}
		if _, err := st.InsertExport(row); err != nil {
			return fmt.Errorf("persist export %s: %w", ex.ExportedName, err)
		}
	}

	for _, d := range fi.Diagnostics {
		row := &store.Diagnostic{FileID: fileID, Category: d.Category, Message: d.Message}
		if _, err := st.InsertDiagnostic(row); err != nil {
			return fmt.Errorf("persist diagnostic: %w", err)
		}
	}

	return nil
}

// bindingJSON mirrors store's own unexported binding wire shape; duplicated
// here (rather than exported from store) to keep the store package free of
// a dependency on internal/lang's ImportBinding type.
type bindingJSON struct {
	ImportedName string `json:"imported_name,omitempty"`
	LocalName    string `json:"local_name"`
	IsTypeOnly   bool   `json:"is_type_only,omitempty"`
}

func marshalBindingList(bindings []lang.ImportBinding) (string, error) {
	if len(bindings) == 0 {
		return "[]", nil
	}
	out := make([]bindingJSON, len(bindings))
	for i, b := range bindings {
		out[i] = bindingJSON{ImportedName: b.ImportedName, LocalName: b.LocalName, IsTypeOnly: b.IsTypeOnly}
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
