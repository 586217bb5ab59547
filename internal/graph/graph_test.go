package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CRJFisher/ariadne-sub017/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.NewStore()
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return s
}

func insertFn(t *testing.T, s *store.Store, fileID int64, id, name string, line int) *store.Symbol {
	t.Helper()
	sym := &store.Symbol{
		ID: id, FileID: fileID, Name: name, Kind: "function", Visibility: "public",
		StartLine: line, StartCol: 0, EndLine: line, EndCol: 10,
	}
	require.NoError(t, s.InsertSymbol(sym))
	return sym
}

// Scenario seed 6 (spec §8.6): a direct call-graph cycle (A calls B, B calls
// A) must not loop tree-size computation forever, and each of A/B must only
// count the other once as a callee.
func TestTreeSize_HandlesDirectCycle(t *testing.T) {
	s := newTestStore(t)
	fileID, err := s.InsertFile(&store.File{Path: "a.ts", Language: "typescript", Hash: "h"})
	require.NoError(t, err)

	a := insertFn(t, s, fileID, "a.ts#a@1:0", "a", 1)
	b := insertFn(t, s, fileID, "a.ts#b@2:0", "b", 2)

	_, err = s.InsertCallEdge(&store.CallEdge{CallerSymbolID: a.ID, CalleeSymbolID: &b.ID, FileID: fileID, Line: 1, Col: 2})
	require.NoError(t, err)
	_, err = s.InsertCallEdge(&store.CallEdge{CallerSymbolID: b.ID, CalleeSymbolID: &a.ID, FileID: fileID, Line: 2, Col: 2})
	require.NoError(t, err)

	g, err := Build(s)
	require.NoError(t, err)

	assert.Equal(t, 1, g.TreeSize(a.ID))
	assert.Equal(t, 1, g.TreeSize(b.ID))

	callees, _ := g.TransitiveCallees(a.ID, 10)
	assert.Len(t, callees, 1)
	assert.Equal(t, b.ID, callees[0].Symbol.ID)
}

func TestEntryPoints_ExcludesCalledFunctions(t *testing.T) {
	s := newTestStore(t)
	fileID, err := s.InsertFile(&store.File{Path: "a.ts", Language: "typescript", Hash: "h"})
	require.NoError(t, err)

	main := insertFn(t, s, fileID, "a.ts#main@1:0", "main", 1)
	helper := insertFn(t, s, fileID, "a.ts#helper@2:0", "helper", 2)

	_, err = s.InsertCallEdge(&store.CallEdge{CallerSymbolID: main.ID, CalleeSymbolID: &helper.ID, FileID: fileID, Line: 1, Col: 2})
	require.NoError(t, err)

	g, err := Build(s)
	require.NoError(t, err)

	entries := g.EntryPoints()
	var names []string
	for _, n := range entries {
		names = append(names, n.Symbol.Name)
	}
	assert.Contains(t, names, "main")
	assert.NotContains(t, names, "helper")
}

// §4.7: an unresolved call is retained as a dangling edge (callee = None)
// with its own diagnostic, not silently dropped from the graph.
func TestBuild_DanglingEdgeHasNoCalleeNode(t *testing.T) {
	s := newTestStore(t)
	fileID, err := s.InsertFile(&store.File{Path: "a.ts", Language: "typescript", Hash: "h"})
	require.NoError(t, err)

	main := insertFn(t, s, fileID, "a.ts#main@1:0", "main", 1)

	refID, err := s.InsertReference(&store.Reference{FileID: fileID, Name: "missing", Kind: "call", StartLine: 1, StartCol: 5})
	require.NoError(t, err)
	_, err = s.InsertCallEdge(&store.CallEdge{CallerSymbolID: main.ID, CalleeSymbolID: nil, ReferenceID: &refID, FileID: fileID, Line: 1, Col: 5})
	require.NoError(t, err)

	g, err := Build(s)
	require.NoError(t, err)

	assert.Equal(t, 0, g.TreeSize(main.ID))
	callees, edges := g.TransitiveCallees(main.ID, 10)
	assert.Empty(t, callees)
	require.Len(t, edges, 1)
	assert.True(t, edges[0].Dangling())
}

func TestUnusedSymbols_ExcludesCalledFunctions(t *testing.T) {
	s := newTestStore(t)
	fileID, err := s.InsertFile(&store.File{Path: "a.ts", Language: "typescript", Hash: "h"})
	require.NoError(t, err)

	main := insertFn(t, s, fileID, "a.ts#main@1:0", "main", 1)
	helper := insertFn(t, s, fileID, "a.ts#helper@2:0", "helper", 2)
	insertFn(t, s, fileID, "a.ts#dead@3:0", "dead", 3)

	_, err = s.InsertCallEdge(&store.CallEdge{CallerSymbolID: main.ID, CalleeSymbolID: &helper.ID, FileID: fileID, Line: 1, Col: 2})
	require.NoError(t, err)

	g, err := Build(s)
	require.NoError(t, err)

	unused, err := UnusedSymbols(s, g)
	require.NoError(t, err)
	var names []string
	for _, sym := range unused {
		names = append(names, sym.Name)
	}
	assert.Contains(t, names, "dead")
	assert.NotContains(t, names, "helper")
}
