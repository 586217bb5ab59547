package store

import (
	"encoding/json"
	"strings"
)

// placeholderList returns "?,?,?" for n placeholders.
func placeholderList(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

func stringsToArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func int64sToArgs(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// repeatArgs repeats args n times (for queries with multiple IN clauses).
func repeatArgs(args []any, n int) []any {
	result := make([]any, 0, len(args)*n)
	for range n {
		result = append(result, args...)
	}
	return result
}

func marshalStrings(v []string) string {
	if len(v) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func unmarshalStrings(s string) []string {
	if s == "" || s == "null" {
		return nil
	}
	var v []string
	_ = json.Unmarshal([]byte(s), &v)
	return v
}

// bindingJSON mirrors ImportBinding without importing the lang package, to
// keep store free of a dependency on the extraction layer.
type bindingJSON struct {
	ImportedName string `json:"imported_name,omitempty"`
	LocalName    string `json:"local_name"`
	IsTypeOnly   bool   `json:"is_type_only,omitempty"`
}

func marshalBindings(v []bindingJSON) string {
	if len(v) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func unmarshalBindings(s string) []bindingJSON {
	if s == "" || s == "null" {
		return nil
	}
	var v []bindingJSON
	_ = json.Unmarshal([]byte(s), &v)
	return v
}
