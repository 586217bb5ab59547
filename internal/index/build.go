// Package index implements the scope tree builder (C2) and single-file
// indexer (C3): it turns one source buffer's lang.Profile.Extract events
// into a FileIndex -- scopes, definitions, references, imports, exports --
// with every SymbolId computed and every reference assigned to exactly one
// scope.
package index

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/CRJFisher/ariadne-sub017/internal/lang"
)

// MaxFileBytes is the spec's size limit: files larger than this are indexed
// as partial, per §6.
const MaxFileBytes = 32 * 1024

// Scope is one lexical region of a FileIndex, addressed by its position in
// FileIndex.Scopes (its LocalID).
type Scope struct {
	LocalID       int
	Kind          string
	Range         lang.Range
	ParentLocalID int // -1 for the root module scope
}

// Definition is one semantic binding: a Symbol not yet assigned a FileID by
// the store.
type Definition struct {
	SymbolID        string
	ScopeLocalID    int
	Name            string
	Kind            string
	Visibility      string
	IsExported      bool
	IsStatic        bool
	OwnerClassID    string
	SourceModule    string
	ImportedName    string
	IsNamespace     bool
	InferredType    string
	Range           lang.Range
	HasEnclosing    bool
	EnclosingRange  lang.Range
}

// Reference is one name use, scope-assigned and deduped by location.
type Reference struct {
	ScopeLocalID    int
	Name            string
	Kind            string
	Range           lang.Range
	ReceiverChain   []string
	ReceiverIsSelf  bool
	CallArity       int
	HasCallArity    bool
	IsConstruction  bool
	CallbackArgTo   string
	CallArgIndex    int
	HasCallArgIndex bool
}

// Import is one import statement.
type Import struct {
	Source   string
	Kind     string
	Bindings []lang.ImportBinding
}

// Export is one exported name.
type Export struct {
	ExportedName   string
	LocalSymbolID  string
	SourceModule   string
}

// Diagnostic is a parse-level failure recorded against the file as a whole.
type Diagnostic struct {
	Category string
	Message  string
}

// FileIndex is the pure, store-independent result of indexing one file. It
// mirrors the spec's FileIndex data model exactly; persist.go maps it onto
// *store.Store rows.
type FileIndex struct {
	Path        string
	Language    string
	Fingerprint string
	Partial     bool
	Scopes      []Scope
	Defs        []Definition
	Refs        []Reference
	Imports     []Import
	Exports     []Export
	Diagnostics []Diagnostic
}

// containerKinds are definition kinds that can own nested definitions for
// qualified-name purposes (class-likes and modules/namespaces).
var containerKinds = map[string]bool{
	"class": true, "struct": true, "enum": true, "trait": true,
	"interface": true, "module": true,
}

// Build parses src with profile's grammar and folds its Extract() events
// into a FileIndex. It never returns an error for a broken or oversized
// file -- per §7's failure model, those are recorded as Partial plus a
// Diagnostic, and the caller still receives a usable (possibly empty) index.
func Build(path, language string, src []byte, profile lang.Profile) *FileIndex {
	fi := &FileIndex{
		Path:        path,
		Language:    language,
		Fingerprint: fingerprint(src),
	}

	oversized := len(src) > MaxFileBytes
	if oversized {
		fi.Partial = true
		fi.Diagnostics = append(fi.Diagnostics, Diagnostic{
			Category: "partial_parse",
			Message:  fmt.Sprintf("file exceeds %d byte limit", MaxFileBytes),
		})
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(profile.Language())

	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil || tree == nil || tree.RootNode() == nil {
		fi.Partial = true
		fi.Diagnostics = append(fi.Diagnostics, Diagnostic{
			Category: "parse_error",
			Message:  fmt.Sprintf("tree-sitter produced no usable root: %v", err),
		})
		return fi
	}
	if tree.RootNode().HasError() {
		fi.Partial = true
		fi.Diagnostics = append(fi.Diagnostics, Diagnostic{
			Category: "partial_parse",
			Message:  "parse tree contains error nodes",
		})
	}

	events, err := profile.Extract(tree, src)
	if err != nil {
		fi.Partial = true
		fi.Diagnostics = append(fi.Diagnostics, Diagnostic{
			Category: "parse_error",
			Message:  fmt.Sprintf("query extraction failed: %v", err),
		})
		return fi
	}

	b := &builder{path: path, events: events}
	b.buildScopes()
	b.assignAndCompute()

	fi.Scopes = b.scopes
	fi.Defs = b.defs
	fi.Refs = b.dedupeRefs()
	fi.Imports = b.imports
	fi.Exports = b.exports
	return fi
}

func fingerprint(src []byte) string {
	sum := sha256.Sum256(src)
	return fmt.Sprintf("%x", sum)
}

type builder struct {
	path   string
	events []lang.Event

	scopes []Scope
	defs   []Definition
	refs   []Reference
	imports []Import
	exports []Export
}

// buildScopes assigns LocalIDs to every scope event and nests them by range
// containment: the spec's scopes nest strictly, so sorting by (start asc,
// size desc) and maintaining a containment stack recovers the tree without
// needing document order across merged query patterns.
func (b *builder) buildScopes() {
	type scopeEv struct {
		idx int
		ev  lang.Event
	}
	var scopeEvs []scopeEv
	for i, ev := range b.events {
		if ev.Kind == lang.EvScope {
			scopeEvs = append(scopeEvs, scopeEv{idx: i, ev: ev})
		}
	}
	sort.SliceStable(scopeEvs, func(i, j int) bool {
		a, c := scopeEvs[i].ev.Range, scopeEvs[j].ev.Range
		if a.StartLine != c.StartLine {
			return a.StartLine < c.StartLine
		}
		if a.StartCol != c.StartCol {
			return a.StartCol < c.StartCol
		}
		// Larger (outer) range first when two scopes start at the same point.
		return rangeSize(a) > rangeSize(c)
	})

	b.scopes = make([]Scope, 0, len(scopeEvs))
	var stack []int // indices into b.scopes
	for _, se := range scopeEvs {
		localID := len(b.scopes)
		for len(stack) > 0 && !contains(b.scopes[stack[len(stack)-1]].Range, se.ev.Range) {
			stack = stack[:len(stack)-1]
		}
		parent := -1
		if len(stack) > 0 {
			parent = stack[len(stack)-1]
		}
		b.scopes = append(b.scopes, Scope{
			LocalID:       localID,
			Kind:          se.ev.ScopeKind,
			Range:         se.ev.Range,
			ParentLocalID: parent,
		})
		stack = append(stack, localID)
	}
}

func rangeSize(r lang.Range) int {
	return (r.EndLine-r.StartLine)*100000 + (r.EndCol - r.StartCol)
}

// contains reports whether outer strictly contains inner (inner != outer).
func contains(outer, inner lang.Range) bool {
	startsBefore := outer.StartLine < inner.StartLine ||
		(outer.StartLine == inner.StartLine && outer.StartCol <= inner.StartCol)
	endsAfter := outer.EndLine > inner.EndLine ||
		(outer.EndLine == inner.EndLine && outer.EndCol >= inner.EndCol)
	return startsBefore && endsAfter && outer != inner
}

func pointIn(r lang.Range, p lang.Range) bool {
	afterStart := p.StartLine > r.StartLine || (p.StartLine == r.StartLine && p.StartCol >= r.StartCol)
	beforeEnd := p.StartLine < r.EndLine || (p.StartLine == r.EndLine && p.StartCol < r.EndCol)
	return afterStart && beforeEnd
}

// innermostScope returns the LocalID of the deepest scope whose range
// contains loc, defaulting to the root module scope (LocalID 0) if none
// more specific matches.
func (b *builder) innermostScope(loc lang.Range) int {
	best := -1
	bestSize := -1
	for _, sc := range b.scopes {
		if !pointIn(sc.Range, loc) {
			continue
		}
		size := rangeSize(sc.Range)
		if best == -1 || size < bestSize {
			best = sc.LocalID
			bestSize = size
		}
	}
	if best == -1 && len(b.scopes) > 0 {
		return 0
	}
	return best
}

// assignAndCompute walks the non-scope events, assigns each to its
// innermost scope, computes owner relationships and SymbolIds for
// definitions, and resolves export-to-definition bindings.
func (b *builder) assignAndCompute() {
	var defEvents []lang.Event
	for _, ev := range b.events {
		switch ev.Kind {
		case lang.EvDefinition:
			defEvents = append(defEvents, ev)
		}
	}

	owner := make([]int, len(defEvents))
	for i := range owner {
		owner[i] = -1
		best := -1
		bestSize := -1
		for j, candidate := range defEvents {
			if i == j || !containerKinds[candidate.DefKind] {
				continue
			}
			if !candidate.HasEnclosing {
				continue
			}
			if !contains(candidate.EnclosingRange, defEvents[i].Range) {
				continue
			}
			size := rangeSize(candidate.EnclosingRange)
			if best == -1 || size < bestSize {
				best = j
				bestSize = size
			}
		}
		owner[i] = best
	}

	qualified := make([]string, len(defEvents))
	var qualify func(i int) string
	qualify = func(i int) string {
		if qualified[i] != "" {
			return qualified[i]
		}
		base := strings.TrimPrefix(defEvents[i].QualifiedSuffix, "#")
		if base == "" {
			base = defEvents[i].Name
		}
		if owner[i] == -1 {
			qualified[i] = base
			return base
		}
		sep := "::"
		if defEvents[i].OwnerIsClass {
			sep = "#"
		}
		q := qualify(owner[i]) + sep + base
		qualified[i] = q
		return q
	}

	symbolIDs := make([]string, len(defEvents))
	for i, ev := range defEvents {
		qn := qualify(i)
		symbolIDs[i] = fmt.Sprintf("%s#%s@%d:%d", b.path, qn, ev.Range.StartLine, ev.Range.StartCol)
	}

	b.defs = make([]Definition, len(defEvents))
	for i, ev := range defEvents {
		ownerID := ""
		if owner[i] != -1 && ev.OwnerIsClass {
			ownerID = symbolIDs[owner[i]]
		}
		b.defs[i] = Definition{
			SymbolID:       symbolIDs[i],
			ScopeLocalID:   b.innermostScope(ev.Range),
			Name:           ev.Name,
			Kind:           ev.DefKind,
			Visibility:     ev.Visibility,
			IsExported:     ev.IsExported,
			IsStatic:       ev.IsStatic,
			OwnerClassID:   ownerID,
			SourceModule:   ev.SourceModule,
			ImportedName:   ev.ImportedName,
			IsNamespace:    ev.IsNamespace,
			InferredType:   ev.ConstructedClass,
			Range:          ev.Range,
			HasEnclosing:   ev.HasEnclosing,
			EnclosingRange: ev.EnclosingRange,
		}
	}

	for _, ev := range b.events {
		switch ev.Kind {
		case lang.EvReference:
			b.refs = append(b.refs, Reference{
				ScopeLocalID:    b.innermostScope(ev.Range),
				Name:            ev.Name,
				Kind:            ev.RefKind,
				Range:           ev.Range,
				ReceiverChain:   ev.ReceiverChain,
				ReceiverIsSelf:  ev.ReceiverIsSelf,
				CallArity:       ev.CallArity,
				HasCallArity:    ev.HasCallArity,
				IsConstruction:  ev.IsConstruction,
			})
		case lang.EvCallbackArg:
			b.refs = append(b.refs, Reference{
				ScopeLocalID:    b.innermostScope(ev.Range),
				Name:            "",
				Kind:            "callback_arg",
				Range:           ev.Range,
				CallbackArgTo:   ev.CallbackArgTo,
				CallArgIndex:    ev.CallArgIndex,
				HasCallArgIndex: ev.HasCallArgIndex,
			})
		case lang.EvImport:
			b.imports = append(b.imports, Import{Source: ev.Source, Kind: ev.ImportKind, Bindings: ev.Bindings})
		case lang.EvExport:
			b.exports = append(b.exports, Export{
				ExportedName: exportNameOf(ev),
				SourceModule: ev.ReexportSource,
			})
		}
	}

	// Bind exports to local definitions by name now that SymbolIds exist.
	byName := map[string]string{}
	for i, ev := range defEvents {
		if owner[i] == -1 {
			byName[ev.Name] = symbolIDs[i]
		}
	}
	for i := range b.exports {
		ex := &b.exports[i]
		if ex.SourceModule != "" {
			continue // re-export: no local symbol
		}
		if id, ok := byName[ex.ExportedName]; ok {
			ex.LocalSymbolID = id
		}
	}
	// Definitions named in a named-export clause are exported even if the
	// declaration itself wasn't prefixed with `export`.
	for _, ex := range b.exports {
		if ex.LocalSymbolID == "" {
			continue
		}
		for i := range b.defs {
			if b.defs[i].SymbolID == ex.LocalSymbolID {
				b.defs[i].IsExported = true
			}
		}
	}
}

func exportNameOf(ev lang.Event) string {
	if ev.IsStar {
		return "*"
	}
	if ev.ExportedName != "" {
		return ev.ExportedName
	}
	return ev.LocalName
}

// dedupeRefs drops duplicate references captured at the same location by
// more than one query pattern, per §4.3 step 3.
func (b *builder) dedupeRefs() []Reference {
	seen := make(map[string]bool, len(b.refs))
	out := make([]Reference, 0, len(b.refs))
	for _, r := range b.refs {
		key := fmt.Sprintf("%d:%d:%d:%d:%s:%s", r.Range.StartLine, r.Range.StartCol, r.Range.EndLine, r.Range.EndCol, r.Kind, r.Name)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}
