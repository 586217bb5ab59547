package resolve

import (
	"github.com/CRJFisher/ariadne-sub017/internal/registry"
	"github.com/CRJFisher/ariadne-sub017/internal/store"
)

// resolveReceiverChain implements C6: walk a flattened receiver chain
// (["self","db","query"], §4.6) segment by segment, resolving the head
// against self/this/cls/super or a normal name lookup, then following each
// intermediate segment's inferred type through the member index, finally
// looking the last segment up as a member of the type reached -- falling
// back to ancestor classes via the implementations table when not found
// directly on the type itself (§4.6 step 3).
func (r *resolver) resolveReceiverChain(path string, fileID int64, ref *store.Reference, chain []string) []Candidate {
	head := chain[0]
	rest := chain[1:]
	final := rest[len(rest)-1]
	middle := rest[:len(rest)-1]

	var currentClass string
	var namespacePath string
	isNamespace := false

	switch head {
	case "self", "this", "cls":
		if owner := r.snap.EnclosingDef(fileID, registry.ClassLikeKinds, ref.StartLine, ref.StartCol); owner != nil {
			currentClass = owner.ID
		}
	case "super":
		if owner := r.snap.EnclosingDef(fileID, registry.ClassLikeKinds, ref.StartLine, ref.StartCol); owner != nil {
			if parents := r.parentsOf(owner.ID); len(parents) > 0 {
				currentClass = parents[0]
			}
		}
	default:
		headCands := r.resolveSimpleName(path, ref.ScopeID, head)
		if len(headCands) == 0 {
			return nil
		}
		headSym := r.snap.Symbols[headCands[0].SymbolID]
		if headSym == nil {
			return nil
		}
		if headSym.Kind == "import_binding" {
			target, nsLike := r.snap.ResolveImportTarget(path, headSym)
			if target == "" {
				return nil
			}
			if nsLike {
				isNamespace = true
				namespacePath = target
			} else {
				exports := r.snap.ExportsOf(target)
				if ex, ok := exports[headSym.ImportedName]; ok && ex.LocalSymbolID != "" {
					if target := r.snap.Symbols[ex.LocalSymbolID]; target != nil {
						currentClass = classOf(target, r.snap)
					}
				}
			}
		} else {
			currentClass = classOf(headSym, r.snap)
		}
	}

	for _, seg := range middle {
		if isNamespace {
			exports := r.snap.ExportsOf(namespacePath)
			if ex, ok := exports[seg]; ok && ex.LocalSymbolID != "" {
				sym := r.snap.Symbols[ex.LocalSymbolID]
				if ns := r.snap.ModuleNamespaceOf(sym); ns != "" {
					namespacePath = ns
					continue // still walking nested `mod`s, not yet a class
				}
				if sym != nil {
					currentClass = classOf(sym, r.snap)
					isNamespace = false
					continue
				}
			}
			if sub := r.snap.ResolveModulePath(namespacePath, "./"+seg); sub != "" {
				namespacePath = sub
				continue
			}
			return nil
		}
		if currentClass == "" {
			return nil
		}
		members := r.memberWithAncestors(currentClass, seg)
		if len(members) == 0 {
			return nil
		}
		// An intermediate segment's type must be a single class to keep
		// navigating the chain; an overload ambiguity here only matters
		// for the final segment, so take the first (file-path, then line)
		// candidate and continue.
		currentClass = classOf(members[0], r.snap)
	}

	if isNamespace {
		exports := r.snap.ExportsOf(namespacePath)
		ex, ok := exports[final]
		if !ok || ex.LocalSymbolID == "" {
			return nil
		}
		return []Candidate{{SymbolID: ex.LocalSymbolID, Kind: "namespace_member"}}
	}
	if currentClass == "" {
		return nil
	}
	members := r.memberWithAncestors(currentClass, final)
	if len(members) == 0 {
		return nil
	}
	if len(members) == 1 {
		return []Candidate{{SymbolID: members[0].ID, Kind: "namespace_member"}}
	}
	cands := make([]Candidate, len(members))
	for i, m := range members {
		cands[i] = Candidate{SymbolID: m.ID, Kind: "ambiguous"}
	}
	return cands
}

// classOf returns the class-like SymbolId to continue a receiver-chain walk
// from sym: itself, if sym is already class-like (static member access), or
// the class named by its InferredType (instance member access via a
// constructor-assignment or declared-type hint, §4.6 step 2).
func classOf(sym *store.Symbol, snap *registry.Snapshot) string {
	if registry.ClassLikeKinds[sym.Kind] {
		return sym.ID
	}
	if sym.InferredType == "" {
		return ""
	}
	if classes := snap.ClassByName[sym.InferredType]; len(classes) > 0 {
		return classes[0].ID
	}
	return ""
}

// memberWithAncestors looks up every same-named member directly on classID,
// then BFS-walks the implementations table toward base types, cycle-safe via
// visited. Stops at the first level where name is found at all -- a subclass
// definition shadows its ancestors' rather than joining them -- but returns
// every member sharing name at that level, since §4.6's tie-break ("multiple
// member definitions share a name on the same class") must surface as
// ambiguous rather than picking whichever was indexed last.
func (r *resolver) memberWithAncestors(classID, name string) []*store.Symbol {
	visited := make(map[string]bool)
	queue := []string{classID}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		if members, ok := r.snap.MemberIndex[cur][name]; ok && len(members) > 0 {
			return members
		}
		queue = append(queue, r.parentsOf(cur)...)
	}
	return nil
}

func (r *resolver) parentsOf(classID string) []string {
	return r.implParents[classID]
}
