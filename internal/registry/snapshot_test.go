package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CRJFisher/ariadne-sub017/internal/store"
)

func newSnapshotTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.NewStore()
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return s
}

// §4.6's tie-break: MemberIndex must hold every same-named member on a
// class, not collapse to the last one loaded, and expose them sorted
// file-path lexicographic then line number.
func TestLoad_MemberIndexKeepsAllSameNamedMembers(t *testing.T) {
	s := newSnapshotTestStore(t)

	fileA, err := s.InsertFile(&store.File{Path: "a.rs", Language: "rust", Hash: "h"})
	require.NoError(t, err)
	fileB, err := s.InsertFile(&store.File{Path: "b.rs", Language: "rust", Hash: "h"})
	require.NoError(t, err)

	fooID := "shared#Foo@1:0"
	require.NoError(t, s.InsertSymbol(&store.Symbol{
		ID: fooID, FileID: fileA, Name: "Foo", Kind: "struct", Visibility: "public",
		StartLine: 1, StartCol: 0, EndLine: 1, EndCol: 10,
	}))

	// Insert the file-b (lexicographically later) member first, so a
	// last-write-wins index would have picked it and only it.
	barInB := "b.rs#Foo#bar@2:0"
	require.NoError(t, s.InsertSymbol(&store.Symbol{
		ID: barInB, FileID: fileB, Name: "bar", Kind: "method", OwnerClass: fooID,
		Visibility: "public", StartLine: 2, StartCol: 0, EndLine: 2, EndCol: 10,
	}))
	barInA := "a.rs#Foo#bar@5:0"
	require.NoError(t, s.InsertSymbol(&store.Symbol{
		ID: barInA, FileID: fileA, Name: "bar", Kind: "method", OwnerClass: fooID,
		Visibility: "public", StartLine: 5, StartCol: 0, EndLine: 5, EndCol: 10,
	}))

	snap, err := Load(s)
	require.NoError(t, err)

	members := snap.MemberIndex[fooID]["bar"]
	require.Len(t, members, 2)
	assert.Equal(t, barInA, members[0].ID, "a.rs sorts before b.rs")
	assert.Equal(t, barInB, members[1].ID)
}

func TestMembersOf_OneRepresentativePerName(t *testing.T) {
	s := newSnapshotTestStore(t)
	fileID, err := s.InsertFile(&store.File{Path: "a.rs", Language: "rust", Hash: "h"})
	require.NoError(t, err)

	fooID := "a.rs#Foo@1:0"
	require.NoError(t, s.InsertSymbol(&store.Symbol{
		ID: fooID, FileID: fileID, Name: "Foo", Kind: "struct", Visibility: "public",
		StartLine: 1, StartCol: 0, EndLine: 1, EndCol: 10,
	}))
	require.NoError(t, s.InsertSymbol(&store.Symbol{
		ID: "a.rs#Foo#bar@3:0", FileID: fileID, Name: "bar", Kind: "method", OwnerClass: fooID,
		Visibility: "public", StartLine: 3, StartCol: 0, EndLine: 3, EndCol: 10,
	}))
	require.NoError(t, s.InsertSymbol(&store.Symbol{
		ID: "a.rs#Foo#bar@6:0", FileID: fileID, Name: "bar", Kind: "method", OwnerClass: fooID,
		Visibility: "public", StartLine: 6, StartCol: 0, EndLine: 6, EndCol: 10,
	}))
	require.NoError(t, s.InsertSymbol(&store.Symbol{
		ID: "a.rs#Foo#baz@9:0", FileID: fileID, Name: "baz", Kind: "method", OwnerClass: fooID,
		Visibility: "public", StartLine: 9, StartCol: 0, EndLine: 9, EndCol: 10,
	}))

	snap, err := Load(s)
	require.NoError(t, err)

	members := snap.MembersOf(fooID)
	require.Len(t, members, 2, "one representative per distinct name, not per definition")
	var names []string
	for _, m := range members {
		names = append(names, m.Name)
	}
	assert.ElementsMatch(t, []string{"bar", "baz"}, names)
}
