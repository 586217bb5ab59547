package lang

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/rust"
)

type rustProfile struct {
	language *sitter.Language
}

func newRustProfile() *rustProfile {
	return &rustProfile{language: rust.GetLanguage()}
}

func init() {
	Register(newRustProfile())
}

func (p *rustProfile) Name() string              { return "rust" }
func (p *rustProfile) Extensions() []string       { return []string{".rs"} }
func (p *rustProfile) Language() *sitter.Language { return p.language }

func (p *rustProfile) IsTestFile(path string) bool {
	lower := strings.ToLower(path)
	return strings.Contains(lower, "/tests/") || strings.HasSuffix(lower, "_test.rs")
}

func (p *rustProfile) querySet() *QuerySet {
	patterns := []string{
		`(function_item) @definition.function`,
		`(struct_item) @definition.struct`,
		`(enum_item) @definition.enum`,
		`(trait_item) @definition.trait`,
		`(impl_item) @scope.impl`,
		`(mod_item) @scope.mod`,
		`(use_declaration) @import.use`,
		`(call_expression) @reference.call`,
	}
	return &QuerySet{
		Lang:     p.language,
		Patterns: patterns,
		Handlers: map[string]CaptureHandler{
			"definition.function": p.handleFunctionItem,
			"definition.struct":     p.handleStructItem,
			"definition.enum":       p.handleEnumItem,
			"definition.trait":      p.handleTraitItem,
			"scope.impl":            p.handleImplItem,
			"scope.mod":             p.handleModItem,
			"import.use":            p.handleUseDeclaration,
			"reference.call":        p.handleCall,
		},
	}
}

func (p *rustProfile) Extract(tree *sitter.Tree, src []byte) ([]Event, error) {
	qs := p.querySet()
	events, err := qs.Run(tree, src)
	if err != nil {
		return nil, err
	}
	root := Event{Kind: EvScope, Range: RangeOfNode(tree.RootNode()), ScopeKind: "module"}
	return append([]Event{root}, events...), nil
}

func (p *rustProfile) isPub(n *sitter.Node) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		if n.Child(i).Type() == "visibility_modifier" {
			return true
		}
	}
	return false
}

func (p *rustProfile) handleFunctionItem(n *sitter.Node, src []byte) []Event {
	nameNode := childByField(n, "name")
	if nameNode == nil {
		return nil
	}
	name := NodeText(nameNode, src)
	owner := enclosingImplOrTrait(n, src)
	kind := "function"
	visibility := "private"
	if p.isPub(n) {
		visibility = "public"
	}
	isStatic := true
	if paramsNode := childByField(n, "parameters"); paramsNode != nil && paramsNode.NamedChildCount() > 0 {
		firstParam := paramsNode.NamedChild(0)
		if firstParam.Type() == "self_parameter" {
			isStatic = false
		}
	}
	if owner != "" {
		kind = "method"
		if name == "new" {
			kind = "constructor"
		}
	}

	events := []Event{
		{Kind: EvScope, Range: RangeOfNode(n), ScopeKind: "function"},
		{
			Kind: EvDefinition, Range: RangeOfNode(nameNode),
			DefKind: kind, Name: name, QualifiedSuffix: qualifiedSuffix(owner, name),
			Visibility: visibility, IsStatic: isStatic, OwnerIsClass: owner != "",
			HasEnclosing: true, EnclosingRange: RangeOfNode(n),
		},
	}
	events = append(events, p.paramEvents(childByField(n, "parameters"), src)...)
	return events
}

func enclosingImplOrTrait(n *sitter.Node, src []byte) string {
	for cur := n.Parent(); cur != nil; cur = cur.Parent() {
		switch cur.Type() {
		case "impl_item":
			if typeNode := childByField(cur, "type"); typeNode != nil {
				return NodeText(typeNode, src)
			}
		case "trait_item":
			if nameNode := childByField(cur, "name"); nameNode != nil {
				return NodeText(nameNode, src)
			}
		case "declaration_list":
			continue
		default:
			return ""
		}
	}
	return ""
}

func (p *rustProfile) paramEvents(paramsNode *sitter.Node, src []byte) []Event {
	if paramsNode == nil {
		return nil
	}
	var events []Event
	for i := 0; i < int(paramsNode.NamedChildCount()); i++ {
		param := paramsNode.NamedChild(i)
		if param.Type() == "self_parameter" {
			continue
		}
		nameNode := childByField(param, "pattern")
		if nameNode == nil {
			continue
		}
		name := NodeText(nameNode, src)
		events = append(events, Event{
			Kind: EvDefinition, Range: RangeOfNode(nameNode),
			DefKind: "parameter", Name: name, QualifiedSuffix: name,
			Visibility: "public",
		})
	}
	return events
}

func (p *rustProfile) handleStructItem(n *sitter.Node, src []byte) []Event {
	nameNode := childByField(n, "name")
	if nameNode == nil {
		return nil
	}
	name := NodeText(nameNode, src)
	events := []Event{{
		Kind: EvDefinition, Range: RangeOfNode(nameNode),
		DefKind: "struct", Name: name, QualifiedSuffix: name,
		Visibility: visibilityOf(p.isPub(n)), IsExported: p.isPub(n),
		HasEnclosing: true, EnclosingRange: RangeOfNode(n),
	}}
	body := childByField(n, "body")
	if body != nil && body.Type() == "field_declaration_list" {
		for i := 0; i < int(body.NamedChildCount()); i++ {
			field := body.NamedChild(i)
			if field.Type() != "field_declaration" {
				continue
			}
			fieldNameNode := childByField(field, "name")
			if fieldNameNode == nil {
				continue
			}
			fieldName := NodeText(fieldNameNode, src)
			events = append(events, Event{
				Kind: EvDefinition, Range: RangeOfNode(fieldNameNode),
				DefKind: "property", Name: fieldName, QualifiedSuffix: fieldName,
				Visibility: visibilityOf(p.isPub(field)), OwnerIsClass: true,
			})
		}
	}
	return events
}

func visibilityOf(isPub bool) string {
	if isPub {
		return "public"
	}
	return "private"
}

func (p *rustProfile) handleEnumItem(n *sitter.Node, src []byte) []Event {
	nameNode := childByField(n, "name")
	if nameNode == nil {
		return nil
	}
	name := NodeText(nameNode, src)
	return []Event{{
		Kind: EvDefinition, Range: RangeOfNode(nameNode),
		DefKind: "enum", Name: name, QualifiedSuffix: name,
		Visibility: visibilityOf(p.isPub(n)), IsExported: p.isPub(n),
		HasEnclosing: true, EnclosingRange: RangeOfNode(n),
	}}
}

func (p *rustProfile) handleTraitItem(n *sitter.Node, src []byte) []Event {
	nameNode := childByField(n, "name")
	if nameNode == nil {
		return nil
	}
	name := NodeText(nameNode, src)
	return []Event{
		{Kind: EvScope, Range: RangeOfNode(n), ScopeKind: "trait"},
		{
			Kind: EvDefinition, Range: RangeOfNode(nameNode),
			DefKind: "trait", Name: name, QualifiedSuffix: name,
			Visibility: visibilityOf(p.isPub(n)), IsExported: p.isPub(n),
			HasEnclosing: true, EnclosingRange: RangeOfNode(n),
		},
	}
}

func (p *rustProfile) handleImplItem(n *sitter.Node, src []byte) []Event {
	typeNode := childByField(n, "type")
	traitNode := childByField(n, "trait")
	if typeNode == nil {
		return []Event{{Kind: EvScope, Range: RangeOfNode(n), ScopeKind: "impl"}}
	}
	typeName := NodeText(typeNode, src)
	events := []Event{{Kind: EvScope, Range: RangeOfNode(n), ScopeKind: "impl"}}
	if traitNode != nil {
		traitName := NodeText(traitNode, src)
		events = append(events, Event{
			Kind: EvReference, Range: RangeOfNode(traitNode),
			RefKind: "trait_impl", Name: traitName,
			ReceiverChain: []string{typeName}, InferredClass: typeName,
		})
	}
	return events
}

func (p *rustProfile) handleModItem(n *sitter.Node, src []byte) []Event {
	nameNode := childByField(n, "name")
	if nameNode == nil {
		return []Event{{Kind: EvScope, Range: RangeOfNode(n), ScopeKind: "module"}}
	}
	name := NodeText(nameNode, src)
	return []Event{
		{Kind: EvScope, Range: RangeOfNode(n), ScopeKind: "module"},
		{
			Kind: EvDefinition, Range: RangeOfNode(nameNode),
			DefKind: "module", Name: name, QualifiedSuffix: name,
			Visibility: visibilityOf(p.isPub(n)), IsExported: p.isPub(n), IsNamespace: true,
			HasEnclosing: true, EnclosingRange: RangeOfNode(n),
		},
	}
}

// handleUseDeclaration flattens nested `use` trees, including brace groups
// (`use a::b::{c, d as e}`) and glob imports (`use a::b::*`), into one
// import event per leaf plus a binding-definition event each.
func (p *rustProfile) handleUseDeclaration(n *sitter.Node, src []byte) []Event {
	argNode := childByField(n, "argument")
	if argNode == nil {
		return nil
	}
	var events []Event
	for _, leaf := range flattenUseTree(argNode, nil, src) {
		ev := Event{
			Kind: EvImport, Range: RangeOfNode(n),
			ImportKind: leaf.kind, Source: leaf.source,
			Bindings: []ImportBinding{{ImportedName: leaf.importedName, LocalName: leaf.localName}},
		}
		events = append(events, ev)
		if leaf.kind != "wildcard" {
			events = append(events, Event{
				Kind: EvDefinition, Range: RangeOfNode(n),
				DefKind: "import_binding", Name: leaf.localName, QualifiedSuffix: leaf.localName,
				Visibility: "public", SourceModule: leaf.source, ImportedName: leaf.importedName,
				IsNamespace: leaf.isModule,
			})
		}
	}
	return events
}

type useLeaf struct {
	kind         string
	source       string
	importedName string
	localName    string
	// isModule is true only for a `self` leaf (`use a::b::{self, ...}`),
	// which binds the enclosing module path itself rather than a specific
	// item defined in it -- the one case a Rust `use` leaf is a namespace
	// handle like a TS/Python namespace import (§4.6 "Namespace member
	// access").
	isModule bool
}

func flattenUseTree(n *sitter.Node, prefix []string, src []byte) []useLeaf {
	switch n.Type() {
	case "scoped_identifier":
		pathNode := childByField(n, "path")
		nameNode := childByField(n, "name")
		if pathNode == nil || nameNode == nil {
			return nil
		}
		segPrefix := append(append([]string{}, prefix...), pathText(pathNode, src)...)
		leafName := NodeText(nameNode, src)
		source := strings.Join(append(segPrefix, leafName), "::")
		return []useLeaf{{kind: "path", source: source, importedName: leafName, localName: leafName}}
	case "scoped_use_list":
		pathNode := childByField(n, "path")
		listNode := childByField(n, "list")
		var segPrefix []string
		if pathNode != nil {
			segPrefix = append(append([]string{}, prefix...), pathText(pathNode, src)...)
		} else {
			segPrefix = prefix
		}
		if listNode == nil {
			return nil
		}
		var out []useLeaf
		for i := 0; i < int(listNode.NamedChildCount()); i++ {
			out = append(out, flattenUseTree(listNode.NamedChild(i), segPrefix, src)...)
		}
		return out
	case "use_as_clause":
		pathNode := childByField(n, "path")
		aliasNode := childByField(n, "alias")
		if pathNode == nil || aliasNode == nil {
			return nil
		}
		imported := lastSegment(pathNode, src)
		source := strings.Join(append(append([]string{}, prefix...), pathText(pathNode, src)...), "::")
		return []useLeaf{{kind: "alias", source: source, importedName: imported, localName: NodeText(aliasNode, src)}}
	case "use_wildcard":
		pathNode := firstChildOfType(n, "scoped_identifier")
		if pathNode == nil {
			pathNode = firstChildOfType(n, "identifier")
		}
		source := strings.Join(append(append([]string{}, prefix...), pathTextAny(pathNode, src)...), "::")
		return []useLeaf{{kind: "wildcard", source: source}}
	case "self":
		// `use a::b::{self, ...}` binds the parent path's own last segment,
		// not the literal token "self".
		if len(prefix) == 0 {
			return nil
		}
		local := prefix[len(prefix)-1]
		source := strings.Join(prefix, "::")
		return []useLeaf{{kind: "path", source: source, importedName: local, localName: local, isModule: true}}
	case "identifier", "crate", "super":
		name := NodeText(n, src)
		source := strings.Join(append(append([]string{}, prefix...), name), "::")
		return []useLeaf{{kind: "path", source: source, importedName: name, localName: name}}
	default:
		return nil
	}
}

func pathText(n *sitter.Node, src []byte) []string {
	return pathTextAny(n, src)
}

func pathTextAny(n *sitter.Node, src []byte) []string {
	if n == nil {
		return nil
	}
	if n.Type() == "scoped_identifier" {
		pathNode := childByField(n, "path")
		nameNode := childByField(n, "name")
		var out []string
		if pathNode != nil {
			out = append(out, pathTextAny(pathNode, src)...)
		}
		if nameNode != nil {
			out = append(out, NodeText(nameNode, src))
		}
		return out
	}
	return []string{NodeText(n, src)}
}

func lastSegment(n *sitter.Node, src []byte) string {
	segs := pathTextAny(n, src)
	if len(segs) == 0 {
		return ""
	}
	return segs[len(segs)-1]
}

func (p *rustProfile) handleCall(n *sitter.Node, src []byte) []Event {
	fnNode := childByField(n, "function")
	if fnNode == nil {
		return nil
	}
	argsNode := childByField(n, "arguments")
	arity := 0
	if argsNode != nil {
		arity = int(argsNode.NamedChildCount())
	}
	name, chain, isSelf := p.receiverChainDetail(fnNode, src)
	if name == "" {
		return nil
	}
	isConstruction := name == "new" && len(chain) > 1

	ev := Event{
		Kind: EvReference, Range: RangeOfNode(fnNode),
		RefKind: "call", Name: name,
		ReceiverChain: chain, ReceiverIsSelf: isSelf,
		CallArity: arity, HasCallArity: true,
		IsConstruction: isConstruction,
	}
	events := []Event{ev}
	if argsNode != nil {
		idx := 0
		for i := 0; i < int(argsNode.NamedChildCount()); i++ {
			arg := argsNode.NamedChild(i)
			if arg.Type() == "closure_expression" {
				events = append(events, Event{
					Kind: EvCallbackArg, Range: RangeOfNode(arg),
					CallbackArgTo: name, CallArgIndex: idx, HasCallArgIndex: true,
				})
			}
			idx++
		}
	}
	return events
}

// ReceiverChain flattens field_expression / scoped_identifier chains, e.g.
// `self.inner.start()` and `Foo::new()`.
func (p *rustProfile) ReceiverChain(node *sitter.Node, src []byte) ([]string, bool) {
	_, chain, isSelf := p.receiverChainDetail(node, src)
	return chain, isSelf
}

func (p *rustProfile) receiverChainDetail(node *sitter.Node, src []byte) (string, []string, bool) {
	switch node.Type() {
	case "identifier", "self":
		name := NodeText(node, src)
		return name, []string{name}, name == "self"
	case "field_expression":
		obj := childByField(node, "value")
		field := childByField(node, "field")
		if obj == nil || field == nil {
			return "", nil, false
		}
		_, objChain, isSelf := p.receiverChainDetail(obj, src)
		name := NodeText(field, src)
		return name, append(objChain, name), isSelf
	case "scoped_identifier":
		pathNode := childByField(node, "path")
		nameNode := childByField(node, "name")
		if nameNode == nil {
			return "", nil, false
		}
		var chain []string
		if pathNode != nil {
			chain = pathTextAny(pathNode, src)
		}
		name := NodeText(nameNode, src)
		return name, append(chain, name), false
	default:
		return "", nil, false
	}
}

func (p *rustProfile) SignatureText(node *sitter.Node, src []byte) string {
	if node == nil {
		return ""
	}
	body := childByField(node, "body")
	if body == nil {
		return NodeText(node, src)
	}
	start := node.StartByte()
	end := body.StartByte()
	if end <= start {
		return NodeText(node, src)
	}
	return strings.TrimSpace(string(src[start:end]))
}

func (p *rustProfile) Docstring(node *sitter.Node, src []byte) string {
	prev := node.PrevSibling()
	var lines []string
	for prev != nil && prev.Type() == "line_comment" && strings.HasPrefix(NodeText(prev, src), "///") {
		lines = append([]string{strings.TrimSpace(strings.TrimPrefix(NodeText(prev, src), "///"))}, lines...)
		prev = prev.PrevSibling()
	}
	return strings.Join(lines, "\n")
}
