package lang

import (
	"context"
	"testing"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func extractRust(t *testing.T, src string) []Event {
	t.Helper()
	profile, ok := ForName("rust")
	require.True(t, ok, "rust profile must be registered")

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(profile.Language())
	tree, err := parser.ParseCtx(context.Background(), nil, []byte(src))
	require.NoError(t, err)

	events, err := profile.Extract(tree, []byte(src))
	require.NoError(t, err)
	return events
}

func importsNamed(events []Event, localName string) []Event {
	var out []Event
	for _, e := range events {
		if e.Kind != EvImport {
			continue
		}
		for _, b := range e.Bindings {
			if b.LocalName == localName {
				out = append(out, e)
			}
		}
	}
	return out
}

// Scenario seed 3 (spec §8.3): a nested `use` tree with a brace group and an
// aliased leaf must flatten into one import event per leaf, each carrying the
// full dotted module path and its own local binding name.
func TestExtract_NestedUseTree(t *testing.T) {
	events := extractRust(t, "use crate::models::{User, Account as Acct};\n")

	userImports := importsNamed(events, "User")
	require.Len(t, userImports, 1)
	assert.Equal(t, "crate::models::User", userImports[0].Source)

	acctImports := importsNamed(events, "Acct")
	require.Len(t, acctImports, 1)
	assert.Equal(t, "crate::models::Account", acctImports[0].Source)
}

func TestExtract_UseWithSelfLeaf(t *testing.T) {
	events := extractRust(t, "use crate::models::repo::{self, Repo};\n")

	repoMod := importsNamed(events, "repo")
	require.Len(t, repoMod, 1)
	assert.Equal(t, "crate::models::repo", repoMod[0].Source)

	repoType := importsNamed(events, "Repo")
	require.Len(t, repoType, 1)
	assert.Equal(t, "crate::models::repo::Repo", repoType[0].Source)

	repoBinding := definitionsNamed(events, "repo")
	require.Len(t, repoBinding, 1)
	assert.True(t, repoBinding[0].IsNamespace, "a `self` leaf binds the module itself, a namespace handle")

	typeBinding := definitionsNamed(events, "Repo")
	require.Len(t, typeBinding, 1)
	assert.False(t, typeBinding[0].IsNamespace)
}

func TestExtract_UseWildcard(t *testing.T) {
	events := extractRust(t, "use crate::prelude::*;\n")

	var wildcard *Event
	for i := range events {
		if events[i].Kind == EvImport && events[i].ImportKind == "wildcard" {
			wildcard = &events[i]
		}
	}
	require.NotNil(t, wildcard)
	assert.Equal(t, "crate::prelude", wildcard.Source)
}

func TestExtract_FunctionAndStruct(t *testing.T) {
	events := extractRust(t, "pub struct Widget {\n    name: String,\n}\n\nimpl Widget {\n    pub fn render(&self) {}\n}\n")

	var fn, st *Event
	for i := range events {
		switch {
		case events[i].Kind == EvDefinition && events[i].DefKind == "struct":
			st = &events[i]
		case events[i].Kind == EvDefinition && events[i].DefKind == "method":
			fn = &events[i]
		}
	}
	require.NotNil(t, st)
	assert.Equal(t, "Widget", st.Name)
	assert.True(t, st.IsExported)

	require.NotNil(t, fn)
	assert.Equal(t, "render", fn.Name)
}
