package store

import (
	"crypto/sha256"
	"fmt"
)

// ComputeSignatureHash hashes a symbol's semantic identity: name, kind,
// visibility, static-ness, exported-ness, owner class, and (for import
// bindings) source module, imported name and namespace flag -- everything that determines whether two captures of the "same"
// symbol across an edit are the same symbol for blast-radius purposes.
// Location never affects the hash.
func ComputeSignatureHash(sym *Symbol) string {
	h := sha256.New()
	fmt.Fprintf(h, "name:%s\n", sym.Name)
	fmt.Fprintf(h, "kind:%s\n", sym.Kind)
	fmt.Fprintf(h, "visibility:%s\n", sym.Visibility)
	fmt.Fprintf(h, "static:%v\n", sym.IsStatic)
	fmt.Fprintf(h, "exported:%v\n", sym.IsExported)
	fmt.Fprintf(h, "owner:%s\n", sym.OwnerClass)
	fmt.Fprintf(h, "source_module:%s\n", sym.SourceModule)
	fmt.Fprintf(h, "imported_name:%s\n", sym.ImportedName)
	fmt.Fprintf(h, "namespace:%v\n", sym.IsNamespace)
	return fmt.Sprintf("%x", h.Sum(nil))
}
