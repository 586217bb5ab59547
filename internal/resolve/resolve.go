// Package resolve implements the reference resolver (C5) and the receiver /
// method resolver (C6): given a frozen registry.Snapshot, it binds every
// Reference to zero or more candidate Symbols, ranked per §4.5, and folds
// resolved call references into call_graph edges for C7.
package resolve

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/CRJFisher/ariadne-sub017/internal/registry"
	"github.com/CRJFisher/ariadne-sub017/internal/store"
)

// Candidate is one resolved target for a Reference, §4.5's ranked outcome.
type Candidate struct {
	SymbolID string
	Kind     string // local|parameter|closure|module|named_import|namespace_member|wildcard_reexport|ambiguous
}

// Project re-resolves every reference in fileIDs (or the whole project when
// fileIDs is nil) against a fresh snapshot of st, replacing their prior
// resolution data. Implementation and reexport rows are project-wide since
// inheritance and wildcard re-exports can span any file, not just the dirty
// set; call_graph/resolved_references/diagnostics are scoped to fileIDs.
func Project(st *store.Store, fileIDs []int64) error {
	snap, err := registry.Load(st)
	if err != nil {
		return fmt.Errorf("resolve: load snapshot: %w", err)
	}

	var targets []int64
	if fileIDs == nil {
		for id := range snap.Files {
			targets = append(targets, id)
		}
	} else {
		targets = fileIDs
	}
	if err := st.DeleteResolutionDataForFiles(targets); err != nil {
		return fmt.Errorf("resolve: clear prior data: %w", err)
	}

	r := &resolver{st: st, snap: snap, implParents: make(map[string][]string)}
	r.resolveInheritance(targets)
	if err := r.loadImplParents(); err != nil {
		return fmt.Errorf("resolve: load implementations: %w", err)
	}
	r.resolveReexports()
	r.resolveReferences(targets)
	return r.err
}

type resolver struct {
	st          *store.Store
	snap        *registry.Snapshot
	implParents map[string][]string
	err         error
}

// loadImplParents rebuilds the child->parent adjacency used by the receiver
// resolver's ancestor walk (§4.6 step 3) from every implementations row
// written so far, including any from files outside this pass's fileIDs.
func (r *resolver) loadImplParents() error {
	impls, err := r.st.AllImplementations()
	if err != nil {
		return err
	}
	for _, impl := range impls {
		r.implParents[impl.TypeSymbolID] = append(r.implParents[impl.TypeSymbolID], impl.ParentSymbolID)
	}
	return nil
}

func (r *resolver) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

// resolveInheritance handles base_class (TS/Python extends) and trait_impl
// (Rust `impl Trait for Type`) references: these name a parent type rather
// than a callable, so they are written to the implementations table (§4.6
// step 3's "walk the inheritance chain") instead of resolved_references.
func (r *resolver) resolveInheritance(fileIDs []int64) {
	for _, fileID := range fileIDs {
		f := r.snap.Files[fileID]
		if f == nil {
			continue
		}
		for _, ref := range r.snap.RefsByFile(fileID) {
			if ref.Kind != "base_class" && ref.Kind != "trait_impl" {
				continue
			}
			var childID string
			if ref.Kind == "trait_impl" {
				// ReceiverChain carries the implementing type's own name (rust.go).
				if cands := r.resolveSimpleName(f.Path, ref.ScopeID, chainHead(ref)); len(cands) > 0 {
					childID = cands[0].SymbolID
				}
			} else {
				if owner := r.snap.EnclosingDef(fileID, registry.ClassLikeKinds, ref.StartLine, ref.StartCol); owner != nil {
					childID = owner.ID
				}
			}
			if childID == "" {
				continue
			}
			parentCands := r.resolveChain(f.Path, fileID, ref)
			for _, pc := range parentCands {
				impl := &store.Implementation{FileID: fileID, TypeSymbolID: childID, ParentSymbolID: pc.SymbolID, Kind: implKind(ref.Kind)}
				if _, err := r.st.InsertImplementation(impl); err != nil {
					r.fail(fmt.Errorf("insert implementation: %w", err))
				}
			}
		}
	}
}

func implKind(refKind string) string {
	if refKind == "trait_impl" {
		return "trait_impl"
	}
	return "extends"
}

func chainHead(ref *store.Reference) string {
	chain := unmarshalChain(ref.ReceiverChain)
	if len(chain) == 0 {
		return ""
	}
	return chain[0]
}

// resolveReexports walks every wildcard re-export edge once and records the
// transitive binding (§4.4, additive per SPEC_FULL §12).
func (r *resolver) resolveReexports() {
	for _, f := range r.snap.Files {
		for name, ex := range r.snap.ExportsOf(f.Path) {
			if ex.LocalSymbolID == "" {
				continue
			}
			owningFile := r.snap.Files[ex.FileID]
			if owningFile == nil || owningFile.Path == f.Path {
				continue // not actually re-exported, just this file's own export
			}
			re := &store.Reexport{FileID: f.ID, OriginalSymbolID: ex.LocalSymbolID, ExportedName: name}
			if _, err := r.st.InsertReexport(re); err != nil {
				r.fail(fmt.Errorf("insert reexport: %w", err))
			}
		}
	}
}

func (r *resolver) resolveReferences(fileIDs []int64) {
	for _, fileID := range fileIDs {
		f := r.snap.Files[fileID]
		if f == nil {
			continue
		}
		for _, ref := range r.snap.RefsByFile(fileID) {
			switch ref.Kind {
			case "base_class", "trait_impl":
				continue // handled by resolveInheritance
			}
			if ref.Name == "" {
				continue // callback_arg bookkeeping refs carry no resolvable name
			}

			cands := r.resolveChain(f.Path, fileID, ref)
			r.writeResolution(fileID, ref, cands)
		}
	}
}

func (r *resolver) writeResolution(fileID int64, ref *store.Reference, cands []Candidate) {
	var callerID string
	if ref.Kind == "call" {
		if caller := r.snap.EnclosingDef(fileID, registry.CallableKinds, ref.StartLine, ref.StartCol); caller != nil {
			callerID = caller.ID
		}
	}
	if len(cands) == 0 {
		category := diagnosticCategory(ref)
		if _, err := r.st.InsertDiagnostic(&store.Diagnostic{
			FileID: fileID, ReferenceID: &ref.ID, Category: category,
		}); err != nil {
			r.fail(fmt.Errorf("insert diagnostic: %w", err))
		}
		if ref.Kind == "call" && callerID != "" {
			// Dangling edge: the call site is real, its callee is not (§4.7).
			refID := ref.ID
			edge := &store.CallEdge{CallerSymbolID: callerID, CalleeSymbolID: nil, ReferenceID: &refID, FileID: fileID, Line: ref.StartLine, Col: ref.StartCol}
			if _, err := r.st.InsertCallEdge(edge); err != nil {
				r.fail(fmt.Errorf("insert call edge: %w", err))
			}
		}
		return
	}
	ambiguous := len(cands) > 1
	confidence := 1.0
	if ambiguous {
		confidence = 1.0 / float64(len(cands))
	}
	for _, c := range cands {
		rr := &store.ResolvedReference{
			ReferenceID: ref.ID, TargetSymbolID: c.SymbolID, ResolutionKind: c.Kind,
			Confidence: confidence, Ambiguous: ambiguous,
		}
		if _, err := r.st.InsertResolvedReference(rr); err != nil {
			r.fail(fmt.Errorf("insert resolved reference: %w", err))
			continue
		}
		if ref.Kind != "call" || callerID == "" {
			continue
		}
		target := r.snap.Symbols[c.SymbolID]
		if target == nil || !registry.CallableKinds[target.Kind] {
			continue
		}
		calleeID := c.SymbolID
		refID := ref.ID
		edge := &store.CallEdge{CallerSymbolID: callerID, CalleeSymbolID: &calleeID, ReferenceID: &refID, FileID: fileID, Line: ref.StartLine, Col: ref.StartCol}
		if _, err := r.st.InsertCallEdge(edge); err != nil {
			r.fail(fmt.Errorf("insert call edge: %w", err))
		}
	}
}

func diagnosticCategory(ref *store.Reference) string {
	if len(unmarshalChain(ref.ReceiverChain)) > 1 {
		return "unresolved_external"
	}
	return "unresolved_unbound"
}

// resolveChain dispatches a reference to either plain scope resolution (C5)
// or receiver-chain resolution (C6) depending on whether it carries a
// multi-segment receiver chain.
func (r *resolver) resolveChain(path string, fileID int64, ref *store.Reference) []Candidate {
	chain := unmarshalChain(ref.ReceiverChain)
	if len(chain) <= 1 {
		return r.resolveSimpleName(path, ref.ScopeID, ref.Name)
	}
	return r.resolveReceiverChain(path, fileID, ref, chain)
}

// resolveSimpleName is the reference resolver proper (§4.5): walk scopes
// outward from scopeID, then fall through to the module's imports.
func (r *resolver) resolveSimpleName(path string, scopeID int64, name string) []Candidate {
	if name == "" {
		return nil
	}
	current := scopeID
	crossedClosure := false
	for current != 0 {
		sc := r.snap.Scopes[current]
		if sc == nil {
			break
		}
		if defs := r.snap.SymbolsInScope(current, name); len(defs) > 0 {
			kind := rankOf(sc.Kind, defs, crossedClosure)
			return r.expandImportBindings(path, defs, kind)
		}
		if sc.Kind == "function" || sc.Kind == "method" {
			crossedClosure = true
		}
		if sc.ParentScopeID == nil {
			break
		}
		current = *sc.ParentScopeID
	}
	return nil
}

func rankOf(scopeKind string, defs []*store.Symbol, crossedClosure bool) string {
	if scopeKind == "module" {
		return "module"
	}
	allParams := true
	for _, d := range defs {
		if d.Kind != "parameter" {
			allParams = false
			break
		}
	}
	if allParams {
		return "parameter"
	}
	if crossedClosure {
		return "closure"
	}
	return "local"
}

// expandImportBindings redirects any import_binding match through the
// project registry (§4.5 step 2/3): named imports resolve to the foreign
// definition; namespace bindings (and named imports whose target turned out
// to be a submodule, §9a) remain a handle, contributing no candidate of
// their own when used as a bare reference.
func (r *resolver) expandImportBindings(path string, defs []*store.Symbol, kind string) []Candidate {
	var out []Candidate
	for _, d := range defs {
		if d.Kind != "import_binding" {
			out = append(out, Candidate{SymbolID: d.ID, Kind: kind})
			continue
		}
		target, namespaceLike := r.snap.ResolveImportTarget(path, d)
		if namespaceLike || target == "" {
			continue // a namespace handle resolves only through member access (C6)
		}
		exports := r.snap.ExportsOf(target)
		ex, ok := exports[d.ImportedName]
		if !ok || ex.LocalSymbolID == "" {
			continue
		}
		out = append(out, Candidate{SymbolID: ex.LocalSymbolID, Kind: "named_import"})
	}
	return dedupeCandidates(out)
}

func dedupeCandidates(in []Candidate) []Candidate {
	seen := make(map[string]bool, len(in))
	out := make([]Candidate, 0, len(in))
	for _, c := range in {
		if seen[c.SymbolID] {
			continue
		}
		seen[c.SymbolID] = true
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SymbolID < out[j].SymbolID })
	return out
}

func unmarshalChain(raw string) []string {
	if raw == "" || raw == "null" || raw == "[]" {
		return nil
	}
	var chain []string
	if err := json.Unmarshal([]byte(raw), &chain); err != nil {
		return nil
	}
	return chain
}
