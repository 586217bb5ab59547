package codeintel

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CRJFisher/ariadne-sub017/internal/store"
)

// receiverChain decodes a Reference's JSON-encoded ReceiverChain column.
func receiverChain(t *testing.T, ref *store.Reference) []string {
	t.Helper()
	if ref.ReceiverChain == "" {
		return nil
	}
	var chain []string
	require.NoError(t, json.Unmarshal([]byte(ref.ReceiverChain), &chain))
	return chain
}

// newTestEngine creates an Engine backed by a fresh in-memory store, closed
// automatically at the end of the test.
func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New()
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

// writeFiles writes each path/contents pair under a fresh temp directory and
// returns the directory root plus the absolute path of each file in order.
func writeFiles(t *testing.T, files map[string]string) (root string, abs map[string]string) {
	t.Helper()
	root = t.TempDir()
	abs = make(map[string]string, len(files))
	for rel, contents := range files {
		p := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(contents), 0o644))
		abs[rel] = p
	}
	return root, abs
}

func resolvedTargets(t *testing.T, e *Engine, ref *store.Reference) []string {
	t.Helper()
	rrs, err := e.Store().ResolvedReferencesByRef(ref.ID)
	require.NoError(t, err)
	var out []string
	for _, rr := range rrs {
		out = append(out, rr.TargetSymbolID)
	}
	return out
}

func findRef(t *testing.T, refs []*store.Reference, name string) *store.Reference {
	t.Helper()
	for _, r := range refs {
		if r.Name == name && r.Kind == "call" {
			return r
		}
	}
	t.Fatalf("no call reference named %q among %d refs", name, len(refs))
	return nil
}

func findSymbol(t *testing.T, syms []*store.Symbol, name, kind string) *store.Symbol {
	t.Helper()
	for _, s := range syms {
		if s.Name == name && s.Kind == kind {
			return s
		}
	}
	t.Fatalf("no %s symbol named %q among %d symbols", kind, name, len(syms))
	return nil
}

// Scenario seed 1 (spec §8.1): a.ts exports class Foo with method bar; b.ts
// imports Foo by name and calls new Foo().bar(). The call must resolve to
// Foo#bar defined in a.ts, and that method must have exactly one inbound edge
// (so it is not an entry point, P6).
func TestScenario_TSNamedImportMethodCall(t *testing.T) {
	e := newTestEngine(t)
	_, abs := writeFiles(t, map[string]string{
		"a.ts": "export class Foo {\n  bar() {}\n}\n",
		"b.ts": "import { Foo } from './a';\nnew Foo().bar();\n",
	})

	for _, rel := range []string{"a.ts", "b.ts"} {
		src, err := os.ReadFile(abs[rel])
		require.NoError(t, err)
		require.NoError(t, e.UpdateFile(abs[rel], src))
	}
	require.NoError(t, e.Resolve())

	aFile, err := e.Store().FileByPath(abs["a.ts"])
	require.NoError(t, err)
	aSyms, err := e.Store().SymbolsByFile(aFile.ID)
	require.NoError(t, err)
	bar := findSymbol(t, aSyms, "bar", "method")

	bFile, err := e.Store().FileByPath(abs["b.ts"])
	require.NoError(t, err)
	bRefs, err := e.Store().ReferencesByFile(bFile.ID)
	require.NoError(t, err)
	barCall := findRef(t, bRefs, "bar")

	targets := resolvedTargets(t, e, barCall)
	assert.Contains(t, targets, bar.ID)

	g, err := e.CallGraph()
	require.NoError(t, err)
	barNode := g.Node(bar.ID)
	require.NotNil(t, barNode)
	callers, _ := g.TransitiveCallers(bar.ID, 10)
	assert.Len(t, callers, 1)

	entryPoints := g.EntryPoints()
	var entryNames []string
	for _, n := range entryPoints {
		entryNames = append(entryNames, n.Symbol.ID)
	}
	assert.NotContains(t, entryNames, bar.ID)
}

// Scenario seed 2 (spec §8.2): b.py constructs self.greeter = Greeter() in its
// constructor, then calls self.greeter.greet() from another method. The
// resolver must infer self.greeter's type from the constructor assignment and
// follow it to Greeter#greet, without any type hint.
func TestScenario_PythonInstanceAttributeChain(t *testing.T) {
	e := newTestEngine(t)
	_, abs := writeFiles(t, map[string]string{
		"a.py": "class Greeter:\n    def greet(self):\n        pass\n",
		"b.py": "from a import Greeter\n\n\nclass App:\n    def __init__(self):\n        self.greeter = Greeter()\n\n    def run(self):\n        self.greeter.greet()\n",
	})

	for _, rel := range []string{"a.py", "b.py"} {
		src, err := os.ReadFile(abs[rel])
		require.NoError(t, err)
		require.NoError(t, e.UpdateFile(abs[rel], src))
	}
	require.NoError(t, e.Resolve())

	aFile, err := e.Store().FileByPath(abs["a.py"])
	require.NoError(t, err)
	aSyms, err := e.Store().SymbolsByFile(aFile.ID)
	require.NoError(t, err)
	greet := findSymbol(t, aSyms, "greet", "method")

	bFile, err := e.Store().FileByPath(abs["b.py"])
	require.NoError(t, err)
	bRefs, err := e.Store().ReferencesByFile(bFile.ID)
	require.NoError(t, err)
	greetCall := findRef(t, bRefs, "greet")
	assert.True(t, greetCall.ReceiverIsSelf)

	targets := resolvedTargets(t, e, greetCall)
	assert.Contains(t, targets, greet.ID)
}

// Scenario seed 5 (spec §8.5): a self-attribute accessed with no constructor
// assignment to infer a type from must be left unresolved and recorded as an
// external diagnostic rather than guessed at.
func TestScenario_SelfAttributeWithoutTypeHintIsUnresolvedExternal(t *testing.T) {
	e := newTestEngine(t)
	_, abs := writeFiles(t, map[string]string{
		"b.py": "class App:\n    def run(self):\n        self.widget.render()\n",
	})
	src, err := os.ReadFile(abs["b.py"])
	require.NoError(t, err)
	require.NoError(t, e.UpdateFile(abs["b.py"], src))
	require.NoError(t, e.Resolve())

	f, err := e.Store().FileByPath(abs["b.py"])
	require.NoError(t, err)
	refs, err := e.Store().ReferencesByFile(f.ID)
	require.NoError(t, err)
	renderCall := findRef(t, refs, "render")

	targets := resolvedTargets(t, e, renderCall)
	assert.Empty(t, targets)

	diags, err := e.Store().DiagnosticsByFile(f.ID)
	require.NoError(t, err)
	var sawUnresolved bool
	for _, d := range diags {
		if d.Category == "unresolved_external" || d.Category == "unresolved_unbound" {
			sawUnresolved = true
		}
	}
	assert.True(t, sawUnresolved, "expected an unresolved diagnostic for self.widget.render(), got %+v", diags)
}

// Scenario seed 3 (spec §8.3): lib.rs nests `pub fn g` inside `pub mod m`;
// main.rs imports it two ways from the same use tree -- `use crate::m::{self,
// g as gg};` binds both the module itself and an aliased import of g. Calling
// gg() and calling m::g() must both resolve to the same g, which ends up with
// two inbound call edges.
func TestScenario_RustNestedUseTreeCrossFile(t *testing.T) {
	e := newTestEngine(t)
	_, abs := writeFiles(t, map[string]string{
		"lib.rs":  "pub mod m {\n    pub fn g() {}\n}\n",
		"main.rs": "use crate::m::{self, g as gg};\n\nfn main() {\n    gg();\n    m::g();\n}\n",
	})

	for _, rel := range []string{"lib.rs", "main.rs"} {
		src, err := os.ReadFile(abs[rel])
		require.NoError(t, err)
		require.NoError(t, e.UpdateFile(abs[rel], src))
	}
	require.NoError(t, e.Resolve())

	libFile, err := e.Store().FileByPath(abs["lib.rs"])
	require.NoError(t, err)
	libSyms, err := e.Store().SymbolsByFile(libFile.ID)
	require.NoError(t, err)
	g := findSymbol(t, libSyms, "g", "function")

	mainFile, err := e.Store().FileByPath(abs["main.rs"])
	require.NoError(t, err)
	mainRefs, err := e.Store().ReferencesByFile(mainFile.ID)
	require.NoError(t, err)

	var ggCall, mgCall *store.Reference
	for _, r := range mainRefs {
		if r.Kind != "call" {
			continue
		}
		chain := receiverChain(t, r)
		switch {
		case r.Name == "gg" && len(chain) == 1:
			ggCall = r
		case r.Name == "g" && len(chain) == 2 && chain[0] == "m":
			mgCall = r
		}
	}
	require.NotNil(t, ggCall, "expected a gg() call among %+v", mainRefs)
	require.NotNil(t, mgCall, "expected an m::g() call among %+v", mainRefs)

	assert.Contains(t, resolvedTargets(t, e, ggCall), g.ID)
	assert.Contains(t, resolvedTargets(t, e, mgCall), g.ID)

	graph, err := e.CallGraph()
	require.NoError(t, err)
	callers, _ := graph.TransitiveCallers(g.ID, 10)
	assert.Len(t, callers, 1, "gg() and m::g() are the same caller function, so g has one distinct caller")
}

// Scenario seed 4 (spec §8.4): `from pkg import module` rebinds the local
// name "module" to the submodule pkg/module.py itself, not one of its
// members. A call through that rebound name must resolve cross-file to the
// submodule's own definition.
func TestScenario_PythonFromPackageImportModuleRebind(t *testing.T) {
	e := newTestEngine(t)
	_, abs := writeFiles(t, map[string]string{
		"pkg/__init__.py": "",
		"pkg/sub.py":      "def f():\n    pass\n",
		"main.py":         "from pkg import sub\n\nsub.f()\n",
	})

	for _, rel := range []string{"pkg/__init__.py", "pkg/sub.py", "main.py"} {
		src, err := os.ReadFile(abs[rel])
		require.NoError(t, err)
		require.NoError(t, e.UpdateFile(abs[rel], src))
	}
	require.NoError(t, e.Resolve())

	subFile, err := e.Store().FileByPath(abs["pkg/sub.py"])
	require.NoError(t, err)
	subSyms, err := e.Store().SymbolsByFile(subFile.ID)
	require.NoError(t, err)
	f := findSymbol(t, subSyms, "f", "function")

	mainFile, err := e.Store().FileByPath(abs["main.py"])
	require.NoError(t, err)
	mainRefs, err := e.Store().ReferencesByFile(mainFile.ID)
	require.NoError(t, err)
	fCall := findRef(t, mainRefs, "f")

	assert.Contains(t, resolvedTargets(t, e, fCall), f.ID)
}

// initialize(root_path, excluded_folders), §10: a folder named in
// excludedFolders is skipped even though it contains a supported file.
func TestInitialize_SkipsExcludedFolders(t *testing.T) {
	e := newTestEngine(t)
	root, _ := writeFiles(t, map[string]string{
		"src/a.ts":      "export function keep() {}\n",
		"vendor3p/b.ts": "export function drop() {}\n",
	})

	require.NoError(t, e.Initialize(root, []string{"vendor3p"}))
	require.NoError(t, e.Resolve())

	syms, err := e.Store().AllSymbols()
	require.NoError(t, err)
	var names []string
	for _, s := range syms {
		names = append(names, s.Name)
	}
	assert.Contains(t, names, "keep")
	assert.NotContains(t, names, "drop")
}

// SetLanguages, backing the CLI's --lang flag: restricting to "typescript"
// skips a Python file even though its extension is recognized.
func TestSetLanguages_RestrictsIndexedLanguages(t *testing.T) {
	e := newTestEngine(t)
	_, abs := writeFiles(t, map[string]string{
		"a.ts": "export function keep() {}\n",
		"a.py": "def drop():\n    pass\n",
	})

	e.SetLanguages([]string{"typescript"})
	for _, rel := range []string{"a.ts", "a.py"} {
		src, err := os.ReadFile(abs[rel])
		require.NoError(t, err)
		require.NoError(t, e.UpdateFile(abs[rel], src))
	}

	syms, err := e.Store().AllSymbols()
	require.NoError(t, err)
	var names []string
	for _, s := range syms {
		names = append(names, s.Name)
	}
	assert.Contains(t, names, "keep")
	assert.NotContains(t, names, "drop")
}

// P3/P4: re-indexing a file with unchanged content is a no-op (its fingerprint
// matches, so SymbolIds and blast radius are untouched), and removing a file
// deletes all rows keyed to it.
func TestUpdateFile_IdempotentOnUnchangedContent(t *testing.T) {
	e := newTestEngine(t)
	_, abs := writeFiles(t, map[string]string{
		"a.ts": "export function greet() { return 1; }\n",
	})
	src, err := os.ReadFile(abs["a.ts"])
	require.NoError(t, err)

	require.NoError(t, e.UpdateFile(abs["a.ts"], src))
	f1, err := e.Store().FileByPath(abs["a.ts"])
	require.NoError(t, err)
	syms1, err := e.Store().SymbolsByFile(f1.ID)
	require.NoError(t, err)
	require.Len(t, syms1, 1)
	firstID := syms1[0].ID

	require.NoError(t, e.UpdateFile(abs["a.ts"], src))
	f2, err := e.Store().FileByPath(abs["a.ts"])
	require.NoError(t, err)
	syms2, err := e.Store().SymbolsByFile(f2.ID)
	require.NoError(t, err)
	require.Len(t, syms2, 1)
	assert.Equal(t, firstID, syms2[0].ID)

	require.NoError(t, e.RemoveFile(abs["a.ts"]))
	gone, err := e.Store().FileByPath(abs["a.ts"])
	require.NoError(t, err)
	assert.Nil(t, gone)
}
