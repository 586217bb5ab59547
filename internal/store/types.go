// Package store holds the SQLite-backed project registry: every File,
// Scope, Symbol (definition), Reference, Import, and Export extracted from
// source, plus the resolution tables (ResolvedReference, CallEdge,
// Implementation, Reexport) written by the resolver.
package store

// File is one indexed source file.
type File struct {
	ID          int64
	Path        string
	Language    string
	Hash        string
	Partial     bool
	LastIndexed int64
}

// Scope is a lexical region: module, function, method, class, block,
// trait, or impl. The module scope is the root (ParentScopeID nil).
type Scope struct {
	ID            int64
	FileID        int64
	Kind          string
	StartLine     int
	StartCol      int
	EndLine       int
	EndCol        int
	ParentScopeID *int64
}

// Symbol is a Definition. ID is the spec's SymbolId string, not an
// auto-increment surrogate: "<file_path>#<qualified_name>@<start_line>:<start_col>".
type Symbol struct {
	ID            string
	FileID        int64
	ScopeID       int64
	Name          string
	Kind          string // function|method|constructor|class|interface|type_alias|struct|enum|trait|module|variable|parameter|property|import_binding
	Visibility    string // public|private|protected
	IsExported    bool
	IsStatic      bool
	OwnerClass    string // SymbolId of the owning class, methods/properties only
	SourceModule  string // import_binding only
	ImportedName  string // import_binding only
	IsNamespace   bool   // import_binding only
	InferredType  string // variable/property: qualified class name from constructor assignment
	SignatureHash string
	StartLine     int
	StartCol      int
	EndLine       int
	EndCol        int
	HasEnclosing  bool
	EncStartLine  int
	EncStartCol   int
	EncEndLine    int
	EncEndCol     int
}

// Reference is a name use: call, base_class, trait_impl, or callback_arg.
type Reference struct {
	ID              int64
	FileID          int64
	ScopeID         int64
	Name            string
	Kind            string
	StartLine       int
	StartCol        int
	EndLine         int
	EndCol          int
	ReceiverChain   string // JSON array of idents, empty if not a chained access
	ReceiverIsSelf  bool
	CallArity       int
	HasCallArity    bool
	IsConstruction  bool
	CallbackArgTo   string // SymbolId of the call this ref is passed into as a callback, if any
	CallArgIndex    int
	HasCallArgIndex bool
}

// Import is one import statement's record; Bindings is a JSON-encoded list
// of {imported_name, local_name, is_type_only}.
type Import struct {
	ID       int64
	FileID   int64
	Source   string
	Kind     string // TS/JS: named|namespace|default|side_effect; Python: module|from|wildcard; Rust: path|alias|wildcard
	Bindings string
}

// Export is one exported name, possibly a re-export of a foreign symbol.
type Export struct {
	ID            int64
	FileID        int64
	ExportedName  string
	LocalSymbolID string // SymbolId, empty for pure re-exports
	SourceModule  string // set when this export re-exports from another module
}

// ResolvedReference is one candidate resolution of a Reference, ranked by
// ResolutionKind per the spec's §4.5 rank order.
type ResolvedReference struct {
	ID             int64
	ReferenceID    int64
	TargetSymbolID string
	ResolutionKind string // local|parameter|closure|module|named_import|namespace_member|wildcard_reexport|ambiguous
	Confidence     float64
	Ambiguous      bool
}

// Diagnostic records a per-file or per-reference failure that the engine
// never raises as an error (ParseError, PartialParse, UnresolvedReference,
// FileIoError categories).
type Diagnostic struct {
	ID          int64
	FileID      int64
	ReferenceID *int64
	Category    string // parse_error|partial_parse|unresolved_unbound|unresolved_external|unresolved_ambiguous|file_io_error
	Message     string
}

// CallEdge is one call-reference: an edge in the call graph. CalleeSymbolID
// is nil for a call site that resolved to nothing -- the edge is kept as a
// dangling node with callee = None rather than dropped, per §4.7, with
// ReferenceID linking it back to the diagnostic row the resolver also wrote.
type CallEdge struct {
	ID             int64
	CallerSymbolID string
	CalleeSymbolID *string
	ReferenceID    *int64
	FileID         int64
	Line           int
	Col            int
}

// Implementation records a class-to-interface/parent relationship used to
// walk the inheritance chain in receiver resolution (C6 step 3).
type Implementation struct {
	ID             int64
	FileID         int64
	TypeSymbolID   string
	ParentSymbolID string
	Kind           string // extends|implements|trait_impl
}

// Reexport records a wildcard re-export's transitive binding.
type Reexport struct {
	ID               int64
	FileID           int64
	OriginalSymbolID string
	ExportedName     string
}
