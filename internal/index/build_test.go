package index

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CRJFisher/ariadne-sub017/internal/lang"
)

func tsProfile(t *testing.T) lang.Profile {
	t.Helper()
	p, ok := lang.ForName("typescript")
	require.True(t, ok)
	return p
}

func defNamed(t *testing.T, fi *FileIndex, name string) Definition {
	t.Helper()
	for _, d := range fi.Defs {
		if d.Name == name {
			return d
		}
	}
	t.Fatalf("no definition named %q among %d defs", name, len(fi.Defs))
	return Definition{}
}

func TestBuild_SymbolIdEncodesPathQualifiedNameAndPosition(t *testing.T) {
	fi := Build("/proj/a.ts", "typescript", []byte("export class Foo {\n  bar() {}\n}\n"), tsProfile(t))
	require.False(t, fi.Partial)

	bar := defNamed(t, fi, "bar")
	assert.True(t, strings.HasPrefix(bar.SymbolID, "/proj/a.ts#Foo#bar@"))
	assert.Equal(t, 2, bar.Range.StartLine)
	assert.NotEmpty(t, bar.OwnerClassID)

	foo := defNamed(t, fi, "Foo")
	assert.Equal(t, foo.SymbolID, bar.OwnerClassID)
}

func TestBuild_ScopesNestByContainment(t *testing.T) {
	fi := Build("/proj/a.ts", "typescript", []byte("function outer() {\n  function inner() {}\n}\n"), tsProfile(t))
	require.False(t, fi.Partial)
	require.GreaterOrEqual(t, len(fi.Scopes), 3) // module, outer, inner

	root := fi.Scopes[0]
	assert.Equal(t, -1, root.ParentLocalID)
	assert.Equal(t, "module", root.Kind)

	var outerScope, innerScope *Scope
	for i := range fi.Scopes {
		switch fi.Scopes[i].Kind {
		case "function":
			if outerScope == nil {
				outerScope = &fi.Scopes[i]
			} else {
				innerScope = &fi.Scopes[i]
			}
		}
	}
	require.NotNil(t, outerScope)
	require.NotNil(t, innerScope)
	assert.Equal(t, outerScope.LocalID, innerScope.ParentLocalID)
}

func TestBuild_OversizedFileIsPartialWithDiagnostic(t *testing.T) {
	huge := strings.Repeat("a", MaxFileBytes+1)
	fi := Build("/proj/big.ts", "typescript", []byte("const "+huge+" = 1;\n"), tsProfile(t))
	require.True(t, fi.Partial)
	require.NotEmpty(t, fi.Diagnostics)
	assert.Equal(t, "partial_parse", fi.Diagnostics[0].Category)
}

func TestBuild_RefsAreDeduped(t *testing.T) {
	fi := Build("/proj/a.ts", "typescript", []byte("foo();\n"), tsProfile(t))
	require.False(t, fi.Partial)

	var count int
	for _, r := range fi.Refs {
		if r.Name == "foo" && r.Kind == "call" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestBuild_ExportBindsToLocalDefinition(t *testing.T) {
	fi := Build("/proj/a.ts", "typescript", []byte("function greet() {}\nexport { greet };\n"), tsProfile(t))
	require.False(t, fi.Partial)

	greet := defNamed(t, fi, "greet")
	require.Len(t, fi.Exports, 1)
	assert.Equal(t, "greet", fi.Exports[0].ExportedName)
	assert.Equal(t, greet.SymbolID, fi.Exports[0].LocalSymbolID)
	assert.True(t, greet.IsExported)
}
