// Package lang implements the per-language profiles (spec component C1):
// a tree-sitter grammar binding, a fixed query set, a capture-name-to-handler
// table, a receiver-chain extractor, and a test-file detector, for each of
// TypeScript/JavaScript, Python, and Rust.
//
// The rest of the engine is polymorphic over the Profile interface in this
// file. No package outside internal/lang ever switches on a tree-sitter node
// kind name; all grammar-specific decisions live behind a profile's capture
// handlers and ReceiverChain.
package lang

import (
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// Range is a source span in the spec's 1-based-line / 0-based-column,
// end-exclusive-column convention.
type Range struct {
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}

func RangeOfNode(n *sitter.Node) Range {
	sp, ep := n.StartPoint(), n.EndPoint()
	return Range{
		StartLine: int(sp.Row) + 1,
		StartCol:  int(sp.Column),
		EndLine:   int(ep.Row) + 1,
		EndCol:    int(ep.Column),
	}
}

func NodeText(n *sitter.Node, src []byte) string {
	if n == nil {
		return ""
	}
	return n.Content(src)
}

// EventKind tags the single flat Event type emitted by every profile.
type EventKind string

const (
	EvScope           EventKind = "scope"
	EvDefinition      EventKind = "definition"
	EvReference       EventKind = "reference"
	EvImport          EventKind = "import"
	EvExport          EventKind = "export"
	EvPropertyAssign  EventKind = "property_assign"
	EvCallbackArg     EventKind = "callback_arg"
)

// ImportBinding is one name bound by an import statement.
type ImportBinding struct {
	ImportedName string
	LocalName    string
	IsTypeOnly   bool
}

// Event is the one data shape every language handler emits. The generic
// pipeline (scope builder, single-file indexer) only ever reads these
// fields; it never inspects a tree-sitter node directly.
type Event struct {
	Kind  EventKind
	Range Range

	// scope
	ScopeKind string // module|function|method|class|block|trait|impl

	// definition
	DefKind          string // function|method|constructor|class|interface|type_alias|struct|enum|trait|module|variable|parameter|property|import_binding
	Name             string
	QualifiedSuffix  string // the name segment to append to the enclosing qualifier, using :: for nesting and # for methods
	Visibility       string
	IsExported       bool
	IsStatic         bool
	OwnerIsClass     bool   // true if this definition must attach owner_class once the enclosing class is known
	HasEnclosing     bool   // enclosing_range is set (function|method|constructor|class|interface|struct|enum|trait|module defs)
	EnclosingRange   Range
	ConstructedClass string // for variable/property defs initialized as `x = Foo(...)`: the class name "Foo"
	SourceModule     string // import_binding definitions only
	ImportedName     string
	IsNamespace      bool

	// reference
	RefKind         string // call|base_class|trait_impl
	ReceiverChain   []string
	ReceiverIsSelf  bool
	CallArity       int
	HasCallArity    bool
	IsConstruction  bool
	CallbackArgTo   string
	CallArgIndex    int
	HasCallArgIndex bool

	// import
	ImportKind string // TS/JS: named|namespace|default|side_effect; Python: module|from|wildcard; Rust: path|alias|wildcard
	Source     string
	Bindings   []ImportBinding

	// export
	ExportedName   string
	LocalName      string
	ReexportSource string
	IsStar         bool

	// property_assign: `self.attr = Foo(...)` inside a constructor
	PropertyName  string
	InferredClass string
}

// Profile is the polymorphism contract every language implements.
type Profile interface {
	Name() string
	Extensions() []string
	Language() *sitter.Language

	// Extract runs the profile's query set over tree in a single pass and
	// returns the ordered events the generic pipeline folds into a FileIndex.
	Extract(tree *sitter.Tree, src []byte) ([]Event, error)

	// ReceiverChain flattens `a.b.c` / `a::b::c` into an ordered identifier
	// list, classifying the head per the spec's self/this/cls/super rules.
	ReceiverChain(node *sitter.Node, src []byte) ([]string, bool)

	SignatureText(node *sitter.Node, src []byte) string
	Docstring(node *sitter.Node, src []byte) string
	IsTestFile(path string) bool
}

var byExtension = map[string]Profile{}

func Register(p Profile) {
	for _, ext := range p.Extensions() {
		byExtension[ext] = p
	}
}

// ForPath returns the profile registered for path's extension.
func ForPath(path string) (Profile, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	p, ok := byExtension[ext]
	return p, ok
}

// ForName returns the profile with the given language name ("typescript", "python", "rust").
func ForName(name string) (Profile, bool) {
	for _, p := range byExtension {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}

// SupportedExtensions lists every extension any registered profile claims.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(byExtension))
	for ext := range byExtension {
		exts = append(exts, ext)
	}
	return exts
}
