package codeintel

import (
	"context"
	"fmt"
	"os"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/CRJFisher/ariadne-sub017/internal/lang"
	"github.com/CRJFisher/ariadne-sub017/internal/store"
)

// FileIndexView is the spec's §3 FileIndex, assembled on demand from the
// registry's current rows for get_index_single_file.
type FileIndexView struct {
	Path     string
	Language string
	Partial  bool
	Scopes   []*store.Scope
	Defs     []*store.Symbol
	Refs     []*store.Reference
	Imports  []*store.Import
	Exports  []*store.Export
	// MemberIndex: class SymbolId -> member name -> property/method Symbol,
	// as required by the invariant in §3 ("member_index[C] contains every
	// method and property with owner_class == C").
	MemberIndex map[string]map[string]*store.Symbol
}

// GetIndexSingleFile implements get_index_single_file(path): returns nil if
// path was never indexed.
func (e *Engine) GetIndexSingleFile(path string) (*FileIndexView, error) {
	f, err := e.store.FileByPath(path)
	if err != nil {
		return nil, fmt.Errorf("codeintel: lookup file: %w", err)
	}
	if f == nil {
		return nil, nil
	}
	scopes, err := e.store.ScopesByFile(f.ID)
	if err != nil {
		return nil, err
	}
	defs, err := e.store.SymbolsByFile(f.ID)
	if err != nil {
		return nil, err
	}
	refs, err := e.store.ReferencesByFile(f.ID)
	if err != nil {
		return nil, err
	}
	imports, err := e.store.ImportsByFile(f.ID)
	if err != nil {
		return nil, err
	}
	exports, err := e.store.ExportsByFile(f.ID)
	if err != nil {
		return nil, err
	}

	memberIndex := make(map[string]map[string]*store.Symbol)
	for _, d := range defs {
		if d.OwnerClass == "" {
			continue
		}
		if d.Kind != "method" && d.Kind != "constructor" && d.Kind != "property" {
			continue
		}
		if memberIndex[d.OwnerClass] == nil {
			memberIndex[d.OwnerClass] = make(map[string]*store.Symbol)
		}
		memberIndex[d.OwnerClass][d.Name] = d
	}

	return &FileIndexView{
		Path: f.Path, Language: f.Language, Partial: f.Partial,
		Scopes: scopes, Defs: defs, Refs: refs, Imports: imports, Exports: exports,
		MemberIndex: memberIndex,
	}, nil
}

// GetDefinition implements get_definition(symbol_id): nil, nil if unknown.
func (e *Engine) GetDefinition(symbolID string) (*store.Symbol, error) {
	sym, err := e.store.SymbolByID(symbolID)
	if err != nil {
		return nil, fmt.Errorf("codeintel: lookup symbol: %w", err)
	}
	return sym, nil
}

// GetSourceCode implements get_source_code(def, file_path?): it extracts the
// exact source text spanning def's enclosing range (or its bare location, for
// definitions with no enclosing range, e.g. variables/properties). filePath
// overrides the definition's own file when set, matching the spec's optional
// file_path parameter for definitions moved or diffed against another copy.
func (e *Engine) GetSourceCode(def *store.Symbol, filePath string) (string, error) {
	src, _, err := e.readDefSource(def, filePath)
	if err != nil {
		return "", err
	}
	startLine, startCol, endLine, endCol := defRange(def)
	return sliceRange(src, startLine, startCol, endLine, endCol), nil
}

// SourceContext is the spec's get_source_with_context(...) result.
type SourceContext struct {
	Source     string
	Docstring  string
	Decorators []string
}

// GetSourceWithContext implements get_source_with_context(def, file_path?,
// context_lines?): the same span as GetSourceCode, widened by contextLines of
// surrounding source on each side, plus the definition's docstring and any
// decorators/attributes attached to it, recovered by re-parsing the file and
// asking the owning language profile (§4.1's signature_text/docstring
// obligations).
func (e *Engine) GetSourceWithContext(def *store.Symbol, filePath string, contextLines int) (*SourceContext, error) {
	src, _, err := e.readDefSource(def, filePath)
	if err != nil {
		return nil, err
	}
	startLine, startCol, endLine, endCol := defRange(def)

	lines := strings.Split(string(src), "\n")
	lo := clampLine(startLine-1-contextLines, len(lines))
	hi := clampLine(endLine-1+contextLines, len(lines)-1)
	windowed := strings.Join(lines[lo:hi+1], "\n")

	ctx := &SourceContext{Source: windowed}
	if contextLines == 0 {
		ctx.Source = sliceRange(src, startLine, startCol, endLine, endCol)
	}

	f, err := e.store.FileByID(def.FileID)
	if err != nil || f == nil {
		return ctx, nil
	}
	profile, ok := lang.ForName(f.Language)
	if !ok {
		return ctx, nil
	}
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(profile.Language())
	tree, perr := parser.ParseCtx(context.Background(), nil, src)
	if perr != nil || tree == nil || tree.RootNode() == nil {
		return ctx, nil
	}
	node := lang.FindNodeAtRange(tree.RootNode(), lang.Range{
		StartLine: startLine, StartCol: startCol, EndLine: endLine, EndCol: endCol,
	})
	if node == nil {
		return ctx, nil
	}
	ctx.Docstring = profile.Docstring(node, src)
	ctx.Decorators = lang.Decorators(node, src)
	return ctx, nil
}

func defRange(def *store.Symbol) (startLine, startCol, endLine, endCol int) {
	if def.HasEnclosing {
		return def.EncStartLine, def.EncStartCol, def.EncEndLine, def.EncEndCol
	}
	return def.StartLine, def.StartCol, def.EndLine, def.EndCol
}

func (e *Engine) readDefSource(def *store.Symbol, filePath string) (src []byte, path string, err error) {
	path = filePath
	if path == "" {
		f, ferr := e.store.FileByID(def.FileID)
		if ferr != nil {
			return nil, "", fmt.Errorf("codeintel: lookup file: %w", ferr)
		}
		if f == nil {
			return nil, "", fmt.Errorf("codeintel: definition's file no longer indexed")
		}
		path = f.Path
	}
	src, err = os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("codeintel: read source: %w", err)
	}
	return src, path, nil
}

// sliceRange extracts the text spanning [startLine:startCol, endLine:endCol)
// in the spec's 1-based-line/0-based-column/end-exclusive-column convention.
func sliceRange(src []byte, startLine, startCol, endLine, endCol int) string {
	lines := strings.Split(string(src), "\n")
	if startLine < 1 || startLine > len(lines) {
		return ""
	}
	if endLine < startLine || endLine > len(lines) {
		endLine = len(lines)
	}
	if startLine == endLine {
		line := lines[startLine-1]
		return sliceCols(line, startCol, endCol)
	}
	var b strings.Builder
	b.WriteString(sliceColsFrom(lines[startLine-1], startCol))
	for l := startLine; l < endLine-1; l++ {
		b.WriteString("\n")
		b.WriteString(lines[l])
	}
	b.WriteString("\n")
	b.WriteString(sliceColsTo(lines[endLine-1], endCol))
	return b.String()
}

func sliceCols(line string, startCol, endCol int) string {
	if startCol < 0 {
		startCol = 0
	}
	if endCol > len(line) {
		endCol = len(line)
	}
	if startCol > endCol {
		return ""
	}
	return line[startCol:endCol]
}

func sliceColsFrom(line string, startCol int) string {
	if startCol < 0 || startCol > len(line) {
		return ""
	}
	return line[startCol:]
}

func sliceColsTo(line string, endCol int) string {
	if endCol > len(line) {
		endCol = len(line)
	}
	if endCol < 0 {
		return ""
	}
	return line[:endCol]
}

func clampLine(i, max int) int {
	if i < 0 {
		return 0
	}
	if i > max {
		return max
	}
	return i
}
