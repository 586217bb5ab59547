// Package registry implements the project registry (spec component C4): a
// process-wide, read-only projection over *store.Store that the resolver
// (C5/C6) and call-graph assembler (C7) walk without touching SQLite again
// mid-pass. A Snapshot is loaded once per resolution/query pass and never
// mutated -- exactly the "immutable view" §4.4 and §5 require so a reader
// never observes a torn write.
package registry

import (
	"sort"
	"strings"

	"github.com/CRJFisher/ariadne-sub017/internal/store"
)

// Snapshot is the spec's §3 "Project registry" struct, realized as bulk-
// loaded in-memory indexes over one Store's current rows.
type Snapshot struct {
	Files       map[int64]*store.File
	FileByPath  map[string]*store.File

	Symbols     map[string]*store.Symbol
	symbolsByFile map[int64][]*store.Symbol
	symbolsByScopeName map[int64]map[string][]*store.Symbol // scope_id -> name -> defs in that exact scope

	Scopes      map[int64]*store.Scope
	scopesByFile map[int64][]*store.Scope

	refsByFile  map[int64][]*store.Reference

	importsByFile map[int64][]*store.Import

	// exports_by_file: path -> exported name -> Export, the spec's C4 export table.
	exportsByFile map[string]map[string]*store.Export
	exportsByFileID map[int64][]*store.Export

	// class_by_qualified_name: name -> [SymbolId], class-like definitions keyed by their own name.
	ClassByName map[string][]*store.Symbol

	// constructor_to_class: constructor SymbolId -> owning class SymbolId.
	ConstructorToClass map[string]string

	// member_index: class SymbolId -> member name -> every method/property/
	// constructor Symbol sharing that name, sorted file-path-lexicographic
	// then line number (§4.6 tie-break order). More than one entry means
	// the name is overloaded across separate impl/class bodies and must
	// resolve to all of them, marked ambiguous.
	MemberIndex map[string]map[string][]*store.Symbol
	memberOrder map[string][]string

	// containerMembers maps a "::"-qualified container path (Rust module
	// nesting, e.g. "m" or "m::sub") to its direct children by name. Rust's
	// `mod` has no file-vs-item distinction the way TS/Python imports do --
	// `use crate::m::g` names a symbol's own qualified path, not a file --
	// so namespace/member resolution for Rust walks this map instead of
	// ExportsOf's file table. Populated from every symbol's own qualified
	// name whenever its immediate container is reached via "::" rather than
	// "#" (i.e. a module, not a class/struct/trait member).
	containerMembers map[string]map[string]*store.Symbol
}

// cratePrefix tags a Snapshot.ExportsOf path as a Rust module qualified path
// (see containerMembers) rather than an indexed file path.
const cratePrefix = "crate-module:"

var containerKinds = map[string]bool{
	"class": true, "struct": true, "enum": true, "trait": true, "interface": true, "module": true,
}

var classLikeKinds = map[string]bool{
	"class": true, "struct": true, "trait": true, "interface": true, "enum": true,
}

// Load bulk-loads every table in st into one immutable Snapshot.
func Load(st *store.Store) (*Snapshot, error) {
	files, err := st.AllFiles()
	if err != nil {
		return nil, err
	}
	symbols, err := st.AllSymbols()
	if err != nil {
		return nil, err
	}
	scopes, err := st.AllScopes()
	if err != nil {
		return nil, err
	}
	refs, err := st.AllReferences()
	if err != nil {
		return nil, err
	}
	imports, err := st.AllImports()
	if err != nil {
		return nil, err
	}
	exports, err := st.AllExports()
	if err != nil {
		return nil, err
	}

	s := &Snapshot{
		Files:              make(map[int64]*store.File, len(files)),
		FileByPath:         make(map[string]*store.File, len(files)),
		Symbols:            make(map[string]*store.Symbol, len(symbols)),
		symbolsByFile:      make(map[int64][]*store.Symbol),
		symbolsByScopeName: make(map[int64]map[string][]*store.Symbol),
		Scopes:             make(map[int64]*store.Scope, len(scopes)),
		scopesByFile:       make(map[int64][]*store.Scope),
		refsByFile:         make(map[int64][]*store.Reference),
		importsByFile:      make(map[int64][]*store.Import),
		exportsByFile:      make(map[string]map[string]*store.Export),
		exportsByFileID:    make(map[int64][]*store.Export),
		ClassByName:        make(map[string][]*store.Symbol),
		ConstructorToClass: make(map[string]string),
		MemberIndex:        make(map[string]map[string][]*store.Symbol),
		memberOrder:        make(map[string][]string),
		containerMembers:   make(map[string]map[string]*store.Symbol),
	}

	for _, f := range files {
		s.Files[f.ID] = f
		s.FileByPath[f.Path] = f
	}
	for _, sc := range scopes {
		s.Scopes[sc.ID] = sc
		s.scopesByFile[sc.FileID] = append(s.scopesByFile[sc.FileID], sc)
	}
	for _, sym := range symbols {
		s.Symbols[sym.ID] = sym
		s.symbolsByFile[sym.FileID] = append(s.symbolsByFile[sym.FileID], sym)
		if s.symbolsByScopeName[sym.ScopeID] == nil {
			s.symbolsByScopeName[sym.ScopeID] = make(map[string][]*store.Symbol)
		}
		s.symbolsByScopeName[sym.ScopeID][sym.Name] = append(s.symbolsByScopeName[sym.ScopeID][sym.Name], sym)

		if classLikeKinds[sym.Kind] {
			s.ClassByName[sym.Name] = append(s.ClassByName[sym.Name], sym)
		}
		if sym.Kind == "constructor" && sym.OwnerClass != "" {
			s.ConstructorToClass[sym.ID] = sym.OwnerClass
		}
		if (sym.Kind == "method" || sym.Kind == "constructor" || sym.Kind == "property") && sym.OwnerClass != "" {
			if s.MemberIndex[sym.OwnerClass] == nil {
				s.MemberIndex[sym.OwnerClass] = make(map[string][]*store.Symbol)
			}
			if _, exists := s.MemberIndex[sym.OwnerClass][sym.Name]; !exists {
				s.memberOrder[sym.OwnerClass] = append(s.memberOrder[sym.OwnerClass], sym.Name)
			}
			s.MemberIndex[sym.OwnerClass][sym.Name] = append(s.MemberIndex[sym.OwnerClass][sym.Name], sym)
		}

		if f := s.Files[sym.FileID]; f != nil {
			if qn := qualifiedNameOf(sym.ID, f.Path); qn != "" {
				if container, member, sep := splitQualified(qn); sep == "::" {
					if s.containerMembers[container] == nil {
						s.containerMembers[container] = make(map[string]*store.Symbol)
					}
					s.containerMembers[container][member] = sym
				}
			}
		}
	}
	for _, r := range refs {
		s.refsByFile[r.FileID] = append(s.refsByFile[r.FileID], r)
	}
	for _, imp := range imports {
		s.importsByFile[imp.FileID] = append(s.importsByFile[imp.FileID], imp)
	}
	for _, ex := range exports {
		s.exportsByFileID[ex.FileID] = append(s.exportsByFileID[ex.FileID], ex)
		f := s.Files[ex.FileID]
		if f == nil {
			continue
		}
		if s.exportsByFile[f.Path] == nil {
			s.exportsByFile[f.Path] = make(map[string]*store.Export)
		}
		s.exportsByFile[f.Path][ex.ExportedName] = ex
	}

	// Stable iteration order for ambiguous-candidate tie-breaks (§4.6):
	// file-path lexicographic then line number.
	for _, list := range s.symbolsByFile {
		sort.Slice(list, func(i, j int) bool { return list[i].StartLine < list[j].StartLine })
	}
	for fp, names := range s.ClassByName {
		sort.Slice(names, func(i, j int) bool {
			a, b := names[i], names[j]
			fa, fb := s.Files[a.FileID], s.Files[b.FileID]
			pa, pb := "", ""
			if fa != nil {
				pa = fa.Path
			}
			if fb != nil {
				pb = fb.Path
			}
			if pa != pb {
				return pa < pb
			}
			return a.StartLine < b.StartLine
		})
		s.ClassByName[fp] = names
	}
	for _, byName := range s.MemberIndex {
		for name, members := range byName {
			sort.Slice(members, func(i, j int) bool {
				a, b := members[i], members[j]
				fa, fb := s.Files[a.FileID], s.Files[b.FileID]
				pa, pb := "", ""
				if fa != nil {
					pa = fa.Path
				}
				if fb != nil {
					pb = fb.Path
				}
				if pa != pb {
					return pa < pb
				}
				return a.StartLine < b.StartLine
			})
			byName[name] = members
		}
	}

	return s, nil
}

// SymbolsInScope returns the definitions named name declared directly in
// scopeID (not its ancestors) -- one step of the C5 scope-chain walk.
func (s *Snapshot) SymbolsInScope(scopeID int64, name string) []*store.Symbol {
	return s.symbolsByScopeName[scopeID][name]
}

func (s *Snapshot) SymbolsByFile(fileID int64) []*store.Symbol { return s.symbolsByFile[fileID] }
func (s *Snapshot) ScopesByFile(fileID int64) []*store.Scope   { return s.scopesByFile[fileID] }
func (s *Snapshot) RefsByFile(fileID int64) []*store.Reference { return s.refsByFile[fileID] }
func (s *Snapshot) ImportsByFile(fileID int64) []*store.Import { return s.importsByFile[fileID] }
func (s *Snapshot) ExportsByFileID(fileID int64) []*store.Export { return s.exportsByFileID[fileID] }

// ExportsOf returns the exports table (name -> Export) for the file at path,
// following wildcard re-exports transitively, short-circuiting cycles after
// one full traversal (§4.4). A cratePrefix-tagged path is a Rust module's
// qualified name rather than a file: its "exports" are containerMembers'
// direct children, wrapped as pseudo-Export rows so every caller (C5/C6) can
// use the same map shape regardless of which language named the namespace.
func (s *Snapshot) ExportsOf(path string) map[string]*store.Export {
	if qn, ok := strings.CutPrefix(path, cratePrefix); ok {
		members := s.containerMembers[qn]
		out := make(map[string]*store.Export, len(members))
		for name, sym := range members {
			out[name] = &store.Export{ExportedName: name, LocalSymbolID: sym.ID}
		}
		return out
	}
	return s.exportsOf(path, make(map[string]bool))
}

// ModuleNamespaceOf returns the ExportsOf-style namespace path for a Rust
// module symbol (cratePrefix-tagged qualified name), or "" if sym is nil or
// not a module -- lets the receiver resolver (C6) keep walking a chain like
// `m::sub::fn()` across nested `mod` boundaries instead of treating a
// nested module as a class to resolve members against.
func (s *Snapshot) ModuleNamespaceOf(sym *store.Symbol) string {
	if sym == nil || sym.Kind != "module" {
		return ""
	}
	f := s.Files[sym.FileID]
	if f == nil {
		return ""
	}
	qn := qualifiedNameOf(sym.ID, f.Path)
	if qn == "" {
		return ""
	}
	return cratePrefix + qn
}

func (s *Snapshot) exportsOf(path string, visiting map[string]bool) map[string]*store.Export {
	if visiting[path] {
		return nil
	}
	visiting[path] = true
	direct := s.exportsByFile[path]
	merged := make(map[string]*store.Export, len(direct))
	for name, ex := range direct {
		if ex.ExportedName == "*" {
			continue
		}
		merged[name] = ex
	}
	for _, ex := range direct {
		if ex.ExportedName != "*" || ex.SourceModule == "" {
			continue
		}
		target := s.ResolveModulePath(path, ex.SourceModule)
		if target == "" {
			continue
		}
		for name, foreign := range s.exportsOf(target, visiting) {
			if _, exists := merged[name]; !exists {
				merged[name] = foreign
			}
		}
	}
	return merged
}

// MembersOf returns a class's own member_index entries in definition order,
// one per distinct name. When a name is overloaded across separate
// impl/class bodies, its first (file-path-lexicographic, then line) symbol
// represents it here -- callers that need every overload should consult
// MemberIndex directly.
func (s *Snapshot) MembersOf(classID string) []*store.Symbol {
	order := s.memberOrder[classID]
	out := make([]*store.Symbol, 0, len(order))
	for _, name := range order {
		if members := s.MemberIndex[classID][name]; len(members) > 0 {
			out = append(out, members[0])
		}
	}
	return out
}

// EnclosingDef finds the smallest definition in fileID whose kind is in
// kinds and whose enclosing_range contains the point (line, col). Used to
// resolve self/this/cls/super heads (§4.6 step 1) against the enclosing
// class, to attribute base-class/trait-impl references to the type that
// declares them, and to find a call reference's caller (§4.7 edges).
func (s *Snapshot) EnclosingDef(fileID int64, kinds map[string]bool, line, col int) *store.Symbol {
	var best *store.Symbol
	bestSize := -1
	for _, sym := range s.symbolsByFile[fileID] {
		if !kinds[sym.Kind] || !sym.HasEnclosing {
			continue
		}
		if !pointInEnc(sym, line, col) {
			continue
		}
		size := (sym.EncEndLine-sym.EncStartLine)*100000 + (sym.EncEndCol - sym.EncStartCol)
		if best == nil || size < bestSize {
			best = sym
			bestSize = size
		}
	}
	return best
}

// ClassLikeKinds is the definition-kind set EnclosingDef uses to find a
// self/this/cls/super reference's owning type.
var ClassLikeKinds = classLikeKinds

// CallableKinds is the definition-kind set EnclosingDef uses to find a call
// reference's caller.
var CallableKinds = map[string]bool{"function": true, "method": true, "constructor": true}

func pointInEnc(sym *store.Symbol, line, col int) bool {
	afterStart := line > sym.EncStartLine || (line == sym.EncStartLine && col >= sym.EncStartCol)
	beforeEnd := line < sym.EncEndLine || (line == sym.EncEndLine && col < sym.EncEndCol)
	return afterStart && beforeEnd
}

// ResolveModulePath maps an import/reexport source string to an indexed
// file's path, relative to fromPath's directory, trying the supported
// source extensions and index-file conventions. Returns "" if no indexed
// file matches (an external/unresolvable module).
func (s *Snapshot) ResolveModulePath(fromPath, source string) string {
	if f, ok := s.FileByPath[source]; ok {
		return f.Path
	}
	base := dirOf(fromPath)
	candidate := joinPath(base, source)
	if f, ok := s.FileByPath[candidate]; ok {
		return f.Path
	}
	exts := []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs", ".py", ".rs"}
	for _, ext := range exts {
		if f, ok := s.FileByPath[candidate+ext]; ok {
			return f.Path
		}
		indexPath := joinPath(candidate, "index"+ext)
		if f, ok := s.FileByPath[indexPath]; ok {
			return f.Path
		}
		initPath := joinPath(candidate, "__init__"+ext)
		if f, ok := s.FileByPath[initPath]; ok {
			return f.Path
		}
	}
	// No candidate matched. Bare package-style sources ("pkg.sub",
	// "crate::m") are not matched against indexed files by base name here;
	// they also end up at this empty result.
	return ""
}

// ResolveImportTarget follows an import_binding symbol to the file it names.
// namespaceLike is true when member access on this binding should resolve
// through that file's export table rather than treating the binding itself
// as a value -- either because the binding is an explicit namespace import,
// or (§9(a), §4.1 Python note) because a named import's target turned out
// to be a submodule rather than a name defined in the package's __init__.
func (s *Snapshot) ResolveImportTarget(fromPath string, bind *store.Symbol) (targetPath string, namespaceLike bool) {
	target := s.ResolveModulePath(fromPath, bind.SourceModule)
	if target == "" {
		return s.resolveRustModulePath(bind)
	}
	if bind.IsNamespace {
		return target, true
	}
	if exports := s.ExportsOf(target); exports != nil {
		if _, ok := exports[bind.ImportedName]; ok {
			return target, false
		}
	}
	if sub := s.ResolveModulePath(target, "./"+bind.ImportedName); sub != "" {
		return sub, true
	}
	return target, false
}

// resolveRustModulePath handles a `use` binding whose source never names an
// indexed file: Rust's grammar has no file-vs-item distinction in a `use`
// path, so `crate::m::g` names a symbol's own qualified name directly
// (§4.6's "Namespace member access" generalized to an in-file `mod`, rather
// than a cross-file import like TS/Python). A namespace binding (the `self`
// leaf of `use a::b::{self, ...}`) resolves to the module's own qualified
// path; any other binding's source already includes the leaf item's own
// name, so only its container need be found -- the caller then looks up
// bind.ImportedName (== the leaf) within it, same as any named import.
func (s *Snapshot) resolveRustModulePath(bind *store.Symbol) (string, bool) {
	qn, ok := rustQualifiedName(bind.SourceModule)
	if !ok {
		return "", false
	}
	if bind.IsNamespace {
		if _, exists := s.containerMembers[qn]; exists {
			return cratePrefix + qn, true
		}
		return "", false
	}
	container, _, _ := splitQualified(qn)
	if _, exists := s.containerMembers[container]; exists {
		return cratePrefix + container, false
	}
	return "", false
}

// rustQualifiedName strips a `crate::`/`self::`/`super::` prefix from a
// Rust `use` source, if present. "::" is the tell that source names a
// module-qualified path rather than a TS/Python-style file path (those never
// contain "::"), so any "::"-bearing source is treated as Rust-qualified
// even without one of the three keyword prefixes (a path relative to the
// current module, e.g. a sibling `mod`'s own path).
func rustQualifiedName(source string) (string, bool) {
	if !strings.Contains(source, "::") {
		return "", false
	}
	for _, p := range []string{"crate::", "self::", "super::"} {
		if rest, ok := strings.CutPrefix(source, p); ok {
			return rest, true
		}
	}
	return source, true
}

// qualifiedNameOf extracts the qualified-name portion of a SymbolId,
// "<file_path>#<qualified_name>@<line>:<col>", given the owning file's own
// path (so the split is exact even if the qualified name itself contains
// '#' or '@', which it never does, but file paths are treated as opaque).
func qualifiedNameOf(id, filePath string) string {
	prefix := filePath + "#"
	if !strings.HasPrefix(id, prefix) {
		return ""
	}
	rest := id[len(prefix):]
	if idx := strings.LastIndex(rest, "@"); idx >= 0 {
		return rest[:idx]
	}
	return rest
}

// splitQualified splits a qualified name at its last separator, returning
// the container path, the leaf member name, and which separator was used:
// "::" for nested modules/namespaces, "#" for a class/struct member (per
// spec §3's SymbolId format). A qualified name with no separator names a
// top-level definition and has no container.
func splitQualified(qn string) (container, member, sep string) {
	iModule := strings.LastIndex(qn, "::")
	iMember := strings.LastIndex(qn, "#")
	switch {
	case iModule < 0 && iMember < 0:
		return "", qn, ""
	case iModule > iMember:
		return qn[:iModule], qn[iModule+2:], "::"
	default:
		return qn[:iMember], qn[iMember+1:], "#"
	}
}

func dirOf(p string) string {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' {
			return p[:i]
		}
	}
	return ""
}

func joinPath(dir, rel string) string {
	cleaned := rel
	for {
		switch {
		case len(cleaned) >= 2 && cleaned[:2] == "./":
			cleaned = cleaned[2:]
		case len(cleaned) >= 3 && cleaned[:3] == "../":
			cleaned = cleaned[3:]
			dir = dirOf(dir)
		default:
			if dir == "" {
				return cleaned
			}
			return dir + "/" + cleaned
		}
	}
}
