package lang

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

type pythonProfile struct {
	language *sitter.Language
}

func newPythonProfile() *pythonProfile {
	return &pythonProfile{language: python.GetLanguage()}
}

func init() {
	Register(newPythonProfile())
}

func (p *pythonProfile) Name() string              { return "python" }
func (p *pythonProfile) Extensions() []string       { return []string{".py", ".pyi"} }
func (p *pythonProfile) Language() *sitter.Language { return p.language }

func (p *pythonProfile) IsTestFile(path string) bool {
	lower := strings.ToLower(path)
	base := lower
	if idx := strings.LastIndex(lower, "/"); idx >= 0 {
		base = lower[idx+1:]
	}
	return strings.HasPrefix(base, "test_") || strings.HasSuffix(base, "_test.py") || strings.Contains(lower, "/tests/")
}

func (p *pythonProfile) querySet() *QuerySet {
	patterns := []string{
		`(function_definition) @definition.function`,
		`(class_definition) @definition.class`,
		`(import_statement) @import.plain`,
		`(import_from_statement) @import.from`,
		`(call) @reference.call`,
		`(assignment) @assignment.property`,
	}
	return &QuerySet{
		Lang:     p.language,
		Patterns: patterns,
		Handlers: map[string]CaptureHandler{
			"definition.function": p.handleFunctionDef,
			"definition.class":     p.handleClassDef,
			"import.plain":         p.handleImportPlain,
			"import.from":          p.handleImportFrom,
			"reference.call":       p.handleCall,
			"assignment.property":  p.handleAssignment,
		},
	}
}

func (p *pythonProfile) Extract(tree *sitter.Tree, src []byte) ([]Event, error) {
	qs := p.querySet()
	events, err := qs.Run(tree, src)
	if err != nil {
		return nil, err
	}
	root := Event{Kind: EvScope, Range: RangeOfNode(tree.RootNode()), ScopeKind: "module"}
	return append([]Event{root}, events...), nil
}

func (p *pythonProfile) handleFunctionDef(n *sitter.Node, src []byte) []Event {
	nameNode := childByField(n, "name")
	if nameNode == nil {
		return nil
	}
	name := NodeText(nameNode, src)
	owner := enclosingClass(n, src)
	kind := "function"
	visibility := "public"
	isStatic := false
	if owner != "" {
		kind = "method"
		if name == "__init__" {
			kind = "constructor"
		}
		if strings.HasPrefix(name, "_") {
			visibility = "private"
		}
		if hasDecorator(n, src, "staticmethod") || hasDecorator(n, src, "classmethod") {
			isStatic = true
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
	parent := n.Parent()
	if parent != nil && parent.Type() == "decorated_definition" {
		parent = parent.Parent()
	}
	atModule := parent != nil && parent.Type() == "module"
	if owner == "" && atModule && !strings.HasPrefix(name, "_") {
		events = append(events, Event{
			Kind: EvExport, Range: RangeOfNode(nameNode),
			ExportedName: name, LocalName: name,
		})
	}
	events = append(events, p.paramEvents(childByField(n, "parameters"), kind, src)...)
	if kind == "constructor" {
		events = append(events, p.selfAttributeAssigns(n, src)...)
	}
	return events
}

func qualifiedSuffix(owner, name string) string {
	if owner == "" {
		return name
	}
	return "#" + name
}

func enclosingClass(n *sitter.Node, src []byte) string {
	for cur := n.Parent(); cur != nil; cur = cur.Parent() {
		if cur.Type() == "class_definition" {
			if nameNode := childByField(cur, "name"); nameNode != nil {
				return NodeText(nameNode, src)
			}
		}
	}
	return ""
}

func hasDecorator(n *sitter.Node, src []byte, name string) bool {
	parent := n.Parent()
	if parent == nil || parent.Type() != "decorated_definition" {
		return false
	}
	for i := 0; i < int(parent.NamedChildCount()); i++ {
		child := parent.NamedChild(i)
		if child.Type() == "decorator" && strings.Contains(NodeText(child, src), name) {
			return true
		}
	}
	return false
}

func (p *pythonProfile) paramEvents(paramsNode *sitter.Node, funcKind string, src []byte) []Event {
	if paramsNode == nil {
		return nil
	}
	var events []Event
	first := true
	for i := 0; i < int(paramsNode.NamedChildCount()); i++ {
		param := paramsNode.NamedChild(i)
		nameNode := param
		switch param.Type() {
		case "typed_parameter", "default_parameter", "typed_default_parameter":
			if n := childByField(param, "name"); n != nil {
				nameNode = n
			} else if param.NamedChildCount() > 0 {
				nameNode = param.NamedChild(0)
			}
		case "list_splat_pattern", "dictionary_splat_pattern":
			if param.NamedChildCount() > 0 {
				nameNode = param.NamedChild(0)
			}
		}
		if nameNode.Type() != "identifier" {
			first = false
			continue
		}
		// `self`/`cls` as first param of a method is not a real binding
		// worth indexing as a definition in its own right.
		if first && (funcKind == "method" || funcKind == "constructor") {
			first = false
			continue
		}
		first = false
		name := NodeText(nameNode, src)
		events = append(events, Event{
			Kind: EvDefinition, Range: RangeOfNode(nameNode),
			DefKind: "parameter", Name: name, QualifiedSuffix: name,
			Visibility: "public",
		})
	}
	return events
}

// selfAttributeAssigns recovers `self.x = Foo()` property definitions from
// an __init__ body, the Python analogue of the ECMAScript profile's
// constructor-property walk.
func (p *pythonProfile) selfAttributeAssigns(ctor *sitter.Node, src []byte) []Event {
	body := childByField(ctor, "body")
	if body == nil {
		return nil
	}
	var events []Event
	walk(body, func(n *sitter.Node) {
		if n.Type() != "assignment" {
			return
		}
		left := childByField(n, "left")
		if left == nil || left.Type() != "attribute" {
			return
		}
		obj := childByField(left, "object")
		if obj == nil || NodeText(obj, src) != "self" {
			return
		}
		attrNode := childByField(left, "attribute")
		if attrNode == nil {
			return
		}
		name := NodeText(attrNode, src)
		right := childByField(n, "right")
		constructed := constructedClassNamePy(right, src)
		events = append(events, Event{
			Kind: EvDefinition, Range: RangeOfNode(attrNode),
			DefKind: "property", Name: name, QualifiedSuffix: name,
			Visibility: "public", OwnerIsClass: true, ConstructedClass: constructed,
		})
	})
	return events
}

func constructedClassNamePy(valueNode *sitter.Node, src []byte) string {
	if valueNode == nil || valueNode.Type() != "call" {
		return ""
	}
	fn := childByField(valueNode, "function")
	if fn != nil && fn.Type() == "identifier" {
		name := NodeText(fn, src)
		if len(name) > 0 && strings.ToUpper(name[:1]) == name[:1] {
			return name
		}
	}
	return ""
}

func (p *pythonProfile) handleClassDef(n *sitter.Node, src []byte) []Event {
	nameNode := childByField(n, "name")
	if nameNode == nil {
		return nil
	}
	name := NodeText(nameNode, src)
	exported := !strings.HasPrefix(name, "_")
	events := []Event{
		{Kind: EvScope, Range: RangeOfNode(n), ScopeKind: "class"},
		{
			Kind: EvDefinition, Range: RangeOfNode(nameNode),
			DefKind: "class", Name: name, QualifiedSuffix: name,
			Visibility: "public", IsExported: exported,
			HasEnclosing: true, EnclosingRange: RangeOfNode(n),
		},
	}
	if exported {
		events = append(events, Event{
			Kind: EvExport, Range: RangeOfNode(nameNode),
			ExportedName: name, LocalName: name,
		})
	}
	if argsNode := childByField(n, "superclasses"); argsNode != nil {
		for i := 0; i < int(argsNode.NamedChildCount()); i++ {
			baseNode := argsNode.NamedChild(i)
			if baseNode.Type() != "identifier" && baseNode.Type() != "attribute" {
				continue
			}
			baseName, chain, _ := p.receiverChainDetail(baseNode, src)
			events = append(events, Event{
				Kind: EvReference, Range: RangeOfNode(baseNode),
				RefKind: "base_class", Name: baseName, ReceiverChain: chain,
			})
		}
	}
	return events
}

func (p *pythonProfile) handleImportPlain(n *sitter.Node, src []byte) []Event {
	var events []Event
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		source := ""
		localName := ""
		switch child.Type() {
		case "dotted_name":
			source = NodeText(child, src)
			localName = strings.SplitN(source, ".", 2)[0]
		case "aliased_import":
			nameNode := childByField(child, "name")
			aliasNode := childByField(child, "alias")
			if nameNode == nil {
				continue
			}
			source = NodeText(nameNode, src)
			if aliasNode != nil {
				localName = NodeText(aliasNode, src)
			} else {
				localName = strings.SplitN(source, ".", 2)[0]
			}
		default:
			continue
		}
		binding := ImportBinding{ImportedName: source, LocalName: localName}
		events = append(events, Event{
			Kind: EvImport, Range: RangeOfNode(n),
			ImportKind: "module", Source: source, Bindings: []ImportBinding{binding},
		})
		events = append(events, Event{
			Kind: EvDefinition, Range: RangeOfNode(child),
			DefKind: "import_binding", Name: localName, QualifiedSuffix: localName,
			Visibility: "public", SourceModule: source, ImportedName: source,
			IsNamespace: true,
		})
	}
	return events
}

func (p *pythonProfile) handleImportFrom(n *sitter.Node, src []byte) []Event {
	moduleNode := childByField(n, "module_name")
	if moduleNode == nil {
		return nil
	}
	source := NodeText(moduleNode, src)

	if hasChildOfType(n, "wildcard_import") {
		return []Event{{
			Kind: EvImport, Range: RangeOfNode(n),
			ImportKind: "wildcard", Source: source,
		}}
	}

	var bindings []ImportBinding
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "dotted_name":
			if child == moduleNode {
				continue
			}
			name := NodeText(child, src)
			bindings = append(bindings, ImportBinding{ImportedName: name, LocalName: name})
		case "aliased_import":
			nameNode := childByField(child, "name")
			aliasNode := childByField(child, "alias")
			if nameNode == nil {
				continue
			}
			imported := NodeText(nameNode, src)
			local := imported
			if aliasNode != nil {
				local = NodeText(aliasNode, src)
			}
			bindings = append(bindings, ImportBinding{ImportedName: imported, LocalName: local})
		}
	}

	ev := Event{Kind: EvImport, Range: RangeOfNode(n), ImportKind: "from", Source: source, Bindings: bindings}
	events := []Event{ev}
	for _, b := range bindings {
		events = append(events, Event{
			Kind: EvDefinition, Range: RangeOfNode(n),
			DefKind: "import_binding", Name: b.LocalName, QualifiedSuffix: b.LocalName,
			Visibility: "public", SourceModule: source, ImportedName: b.ImportedName,
		})
	}
	return events
}

func (p *pythonProfile) handleCall(n *sitter.Node, src []byte) []Event {
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
	isConstruction := len(name) > 0 && strings.ToUpper(name[:1]) == name[:1] && fnNode.Type() != "call"

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
			if arg.Type() == "lambda" {
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

func (p *pythonProfile) handleAssignment(n *sitter.Node, src []byte) []Event {
	left := childByField(n, "left")
	if left == nil {
		return nil
	}
	if left.Type() == "identifier" {
		name := NodeText(left, src)
		right := childByField(n, "right")
		constructed := constructedClassNamePy(right, src)
		if constructed == "" {
			return nil
		}
		return []Event{{
			Kind: EvDefinition, Range: RangeOfNode(left),
			DefKind: "variable", Name: name, QualifiedSuffix: name,
			Visibility: "public", ConstructedClass: constructed,
		}}
	}
	return nil
}

// ReceiverChain flattens attribute chains (self.a.b, pkg.mod.fn) the same
// way the ECMAScript profile does for member expressions.
func (p *pythonProfile) ReceiverChain(node *sitter.Node, src []byte) ([]string, bool) {
	_, chain, isSelf := p.receiverChainDetail(node, src)
	return chain, isSelf
}

func (p *pythonProfile) receiverChainDetail(node *sitter.Node, src []byte) (string, []string, bool) {
	switch node.Type() {
	case "identifier":
		name := NodeText(node, src)
		return name, []string{name}, name == "self"
	case "attribute":
		obj := childByField(node, "object")
		attr := childByField(node, "attribute")
		if obj == nil || attr == nil {
			return "", nil, false
		}
		_, objChain, isSelf := p.receiverChainDetail(obj, src)
		name := NodeText(attr, src)
		return name, append(objChain, name), isSelf
	case "call":
		fn := childByField(node, "function")
		if fn == nil {
			return "", nil, false
		}
		return p.receiverChainDetail(fn, src)
	default:
		return "", nil, false
	}
}

func (p *pythonProfile) SignatureText(node *sitter.Node, src []byte) string {
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

func (p *pythonProfile) Docstring(node *sitter.Node, src []byte) string {
	body := childByField(node, "body")
	if body == nil || body.NamedChildCount() == 0 {
		return ""
	}
	first := body.NamedChild(0)
	if first.Type() != "expression_statement" || first.NamedChildCount() == 0 {
		return ""
	}
	strNode := first.NamedChild(0)
	if strNode.Type() != "string" {
		return ""
	}
	text := NodeText(strNode, src)
	text = strings.Trim(text, `"'`)
	return strings.TrimSpace(text)
}
