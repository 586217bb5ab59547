package lang

import (
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// CaptureHandler turns one captured node into zero or more Events. It never
// inspects sibling capture names or node kinds outside its own subtree --
// that confinement is what keeps the pipeline language-agnostic.
type CaptureHandler func(node *sitter.Node, src []byte) []Event

// QuerySet is a profile's fixed, named set of tree-sitter patterns plus the
// capture-name -> handler table the spec's §4.1 describes. Running it is
// shared, language-agnostic pipeline code: it dispatches purely on capture
// names that every profile's handlers populate, never on node kinds.
type QuerySet struct {
	Lang     *sitter.Language
	Patterns []string
	Handlers map[string]CaptureHandler
}

// Run executes every pattern in the set over tree in a single traversal per
// pattern, dispatching each capture to its named handler.
func (qs *QuerySet) Run(tree *sitter.Tree, src []byte) ([]Event, error) {
	var events []Event
	for _, pattern := range qs.Patterns {
		q, err := sitter.NewQuery([]byte(pattern), qs.Lang)
		if err != nil {
			return nil, fmt.Errorf("compile query: %w", err)
		}
		cursor := sitter.NewQueryCursor()
		cursor.Exec(q, tree.RootNode())
		for {
			match, ok := cursor.NextMatch()
			if !ok {
				break
			}
			for _, capture := range match.Captures {
				name := q.CaptureNameForId(capture.Index)
				handler, ok := qs.Handlers[name]
				if !ok {
					continue
				}
				events = append(events, handler(capture.Node, src)...)
			}
		}
	}
	return events, nil
}
