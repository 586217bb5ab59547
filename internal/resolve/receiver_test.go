package resolve

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CRJFisher/ariadne-sub017/internal/store"
)

func newReceiverTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.NewStore()
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return s
}

func chainJSON(t *testing.T, segs ...string) string {
	t.Helper()
	b, err := json.Marshal(segs)
	require.NoError(t, err)
	return string(b)
}

// Spec §4.6's own tie-break example: two separate impl blocks both define a
// method named "bar" on the same struct. foo.bar() must resolve to both,
// marked ambiguous, ordered file-path lexicographic then line -- not
// silently collapse to whichever was indexed last.
func TestResolveReceiverChain_AmbiguousMemberAcrossImplBlocks(t *testing.T) {
	s := newReceiverTestStore(t)

	fileID, err := s.InsertFile(&store.File{Path: "lib.rs", Language: "rust", Hash: "h"})
	require.NoError(t, err)

	fooID := "lib.rs#Foo@1:0"
	require.NoError(t, s.InsertSymbol(&store.Symbol{
		ID: fooID, FileID: fileID, Name: "Foo", Kind: "struct", Visibility: "public",
		StartLine: 1, StartCol: 0, EndLine: 1, EndCol: 10,
		HasEnclosing: true, EncStartLine: 1, EncStartCol: 0, EncEndLine: 20, EncEndCol: 1,
	}))

	// Indexed out of file-path/line order on purpose: the second impl block's
	// method is inserted first, so a last-write-wins index would pick it.
	barLate := "lib.rs#Foo#bar@10:0"
	require.NoError(t, s.InsertSymbol(&store.Symbol{
		ID: barLate, FileID: fileID, Name: "bar", Kind: "method", OwnerClass: fooID,
		Visibility: "public", StartLine: 10, StartCol: 0, EndLine: 10, EndCol: 20,
	}))
	barEarly := "lib.rs#Foo#bar@4:0"
	require.NoError(t, s.InsertSymbol(&store.Symbol{
		ID: barEarly, FileID: fileID, Name: "bar", Kind: "method", OwnerClass: fooID,
		Visibility: "public", StartLine: 4, StartCol: 0, EndLine: 4, EndCol: 20,
	}))

	refID, err := s.InsertReference(&store.Reference{
		FileID: fileID, Name: "bar", Kind: "call",
		StartLine: 15, StartCol: 4, EndLine: 15, EndCol: 10,
		ReceiverChain: chainJSON(t, "self", "bar"),
	})
	require.NoError(t, err)

	require.NoError(t, Project(s, nil))

	all, err := s.ResolvedReferencesByRef(refID)
	require.NoError(t, err)
	require.Len(t, all, 2, "both same-named members must resolve, not just the last-indexed one")

	for _, rr := range all {
		assert.True(t, rr.Ambiguous)
		assert.Equal(t, "ambiguous", rr.ResolutionKind)
		assert.InDelta(t, 0.5, rr.Confidence, 1e-9)
	}
	assert.ElementsMatch(t, []string{barEarly, barLate}, []string{all[0].TargetSymbolID, all[1].TargetSymbolID})
}
