package lang

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	ts "github.com/smacker/go-tree-sitter/typescript/typescript"
)

// ecmaProfile implements Profile for TypeScript and JavaScript. The two are
// separate concrete Profile values (typeScriptProfile, javaScriptProfile)
// registered under distinct names/extensions; they share this struct and its
// handler table because the grammars and semantics genuinely coincide except
// for the TypeScript-only interface/type-alias declarations, gated by the
// isTypeScript field.
type ecmaProfile struct {
	name         string
	extensions   []string
	language     *sitter.Language
	isTypeScript bool
}

func newTypeScriptProfile() *ecmaProfile {
	return &ecmaProfile{
		name:         "typescript",
		extensions:   []string{".ts", ".tsx"},
		language:     ts.GetLanguage(),
		isTypeScript: true,
	}
}

func newJavaScriptProfile() *ecmaProfile {
	return &ecmaProfile{
		name:         "javascript",
		extensions:   []string{".js", ".jsx", ".mjs", ".cjs"},
		language:     javascript.GetLanguage(),
		isTypeScript: false,
	}
}

func init() {
	Register(newTypeScriptProfile())
	Register(newJavaScriptProfile())
}

func (p *ecmaProfile) Name() string             { return p.name }
func (p *ecmaProfile) Extensions() []string      { return p.extensions }
func (p *ecmaProfile) Language() *sitter.Language { return p.language }

func (p *ecmaProfile) IsTestFile(path string) bool {
	lower := strings.ToLower(path)
	for _, marker := range []string{".test.", ".spec.", "__tests__/"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// ecmaQuerySet is built lazily since it needs the profile's own Language().
func (p *ecmaProfile) querySet() *QuerySet {
	patterns := []string{
		`(function_declaration) @definition.function`,
		`(generator_function_declaration) @definition.function`,
		`(class_declaration) @definition.class`,
		`(method_definition) @definition.method`,
		`(public_field_definition) @definition.property`,
		`(lexical_declaration) @definition.variable`,
		`(variable_declaration) @definition.variable`,
		`(formal_parameters) @scope.params`,
		`(import_statement) @import.statement`,
		`(export_statement) @export.statement`,
		`(call_expression) @reference.call`,
		`(new_expression) @reference.call`,
		`(assignment_expression) @assignment.property`,
		`(statement_block) @scope.block`,
	}
	if p.isTypeScript {
		patterns = append(patterns,
			`(interface_declaration) @definition.interface`,
			`(type_alias_declaration) @definition.type_alias`,
		)
	}

	h := map[string]CaptureHandler{
		"definition.function":  p.handleFunctionDecl,
		"definition.class":     p.handleClassDecl,
		"definition.method":    p.handleMethodDef,
		"definition.property":  p.handleFieldDef,
		"definition.variable":  p.handleVariableDecl,
		"definition.interface": p.handleInterfaceDecl,
		"definition.type_alias": p.handleTypeAliasDecl,
		"scope.params":          p.handleParams,
		"import.statement":      p.handleImportStatement,
		"export.statement":      p.handleExportStatement,
		"reference.call":        p.handleCallOrNew,
		"assignment.property":   p.handlePropertyAssignment,
		"scope.block":           p.handleBlockScope,
	}
	return &QuerySet{Lang: p.language, Patterns: patterns, Handlers: h}
}

func (p *ecmaProfile) Extract(tree *sitter.Tree, src []byte) ([]Event, error) {
	qs := p.querySet()
	events, err := qs.Run(tree, src)
	if err != nil {
		return nil, err
	}
	// The module scope itself is never captured by a pattern: synthesize it
	// from the root node so every file has exactly one root scope.
	root := Event{Kind: EvScope, Range: RangeOfNode(tree.RootNode()), ScopeKind: "module"}
	return append([]Event{root}, events...), nil
}

// --- definitions ---

func childByField(n *sitter.Node, field string) *sitter.Node {
	if n == nil {
		return nil
	}
	return n.ChildByFieldName(field)
}

func (p *ecmaProfile) handleFunctionDecl(n *sitter.Node, src []byte) []Event {
	nameNode := childByField(n, "name")
	if nameNode == nil {
		return nil
	}
	name := NodeText(nameNode, src)
	events := []Event{
		{
			Kind: EvScope, Range: RangeOfNode(n), ScopeKind: "function",
		},
		{
			Kind: EvDefinition, Range: RangeOfNode(nameNode),
			DefKind: "function", Name: name, QualifiedSuffix: name,
			Visibility: "public", IsExported: isExportAncestor(n),
			HasEnclosing: true, EnclosingRange: RangeOfNode(n),
		},
	}
	events = append(events, p.paramEvents(childByField(n, "parameters"), src)...)
	return events
}

func (p *ecmaProfile) handleMethodDef(n *sitter.Node, src []byte) []Event {
	nameNode := childByField(n, "name")
	if nameNode == nil {
		return nil
	}
	name := NodeText(nameNode, src)
	kind := "method"
	if name == "constructor" {
		kind = "constructor"
	}
	isStatic := hasChildOfType(n, "static")
	vis := "public"
	if hasChildOfType(n, "private") || strings.HasPrefix(name, "#") {
		vis = "private"
	}
	events := []Event{
		{Kind: EvScope, Range: RangeOfNode(n), ScopeKind: "method"},
		{
			Kind: EvDefinition, Range: RangeOfNode(nameNode),
			DefKind: kind, Name: name, QualifiedSuffix: "#" + name,
			Visibility: vis, IsStatic: isStatic, OwnerIsClass: true,
			HasEnclosing: true, EnclosingRange: RangeOfNode(n),
		},
	}
	events = append(events, p.paramEvents(childByField(n, "parameters"), src)...)
	if kind == "constructor" {
		events = append(events, p.constructorPropertyAssigns(n, src)...)
	}
	return events
}

func (p *ecmaProfile) handleFieldDef(n *sitter.Node, src []byte) []Event {
	nameNode := childByField(n, "property")
	if nameNode == nil {
		nameNode = childByField(n, "name")
	}
	if nameNode == nil {
		return nil
	}
	name := NodeText(nameNode, src)
	valueNode := childByField(n, "value")
	constructed := constructedClassName(valueNode, src)
	return []Event{{
		Kind: EvDefinition, Range: RangeOfNode(nameNode),
		DefKind: "property", Name: name, QualifiedSuffix: name,
		Visibility: "public", IsStatic: hasChildOfType(n, "static"),
		OwnerIsClass: true, ConstructedClass: constructed,
	}}
}

func (p *ecmaProfile) handleClassDecl(n *sitter.Node, src []byte) []Event {
	nameNode := childByField(n, "name")
	if nameNode == nil {
		return nil
	}
	name := NodeText(nameNode, src)
	events := []Event{
		{Kind: EvScope, Range: RangeOfNode(n), ScopeKind: "class"},
		{
			Kind: EvDefinition, Range: RangeOfNode(nameNode),
			DefKind: "class", Name: name, QualifiedSuffix: name,
			Visibility: "public", IsExported: isExportAncestor(n),
			HasEnclosing: true, EnclosingRange: RangeOfNode(n),
		},
	}
	if heritage := firstChildOfType(n, "class_heritage"); heritage != nil {
		baseNode := childByField(heritage, "value")
		if baseNode == nil {
			if extends := firstChildOfType(heritage, "extends_clause"); extends != nil {
				baseNode = childByField(extends, "value")
			}
		}
		if baseNode != nil {
			baseName, chain, _ := p.receiverChainDetail(baseNode, src)
			events = append(events, Event{
				Kind: EvReference, Range: RangeOfNode(baseNode),
				RefKind: "base_class", Name: baseName, ReceiverChain: chain,
			})
		}
	}
	return events
}

func (p *ecmaProfile) handleInterfaceDecl(n *sitter.Node, src []byte) []Event {
	nameNode := childByField(n, "name")
	if nameNode == nil {
		return nil
	}
	name := NodeText(nameNode, src)
	return []Event{{
		Kind: EvDefinition, Range: RangeOfNode(nameNode),
		DefKind: "interface", Name: name, QualifiedSuffix: name,
		Visibility: "public", IsExported: isExportAncestor(n),
		HasEnclosing: true, EnclosingRange: RangeOfNode(n),
	}}
}

func (p *ecmaProfile) handleTypeAliasDecl(n *sitter.Node, src []byte) []Event {
	nameNode := childByField(n, "name")
	if nameNode == nil {
		return nil
	}
	name := NodeText(nameNode, src)
	return []Event{{
		Kind: EvDefinition, Range: RangeOfNode(nameNode),
		DefKind: "type_alias", Name: name, QualifiedSuffix: name,
		Visibility: "public", IsExported: isExportAncestor(n),
	}}
}

func (p *ecmaProfile) handleVariableDecl(n *sitter.Node, src []byte) []Event {
	var events []Event
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() != "variable_declarator" {
			continue
		}
		nameNode := childByField(child, "name")
		if nameNode == nil || nameNode.Type() != "identifier" {
			continue
		}
		name := NodeText(nameNode, src)
		valueNode := childByField(child, "value")
		constructed := constructedClassName(valueNode, src)
		events = append(events, Event{
			Kind: EvDefinition, Range: RangeOfNode(nameNode),
			DefKind: "variable", Name: name, QualifiedSuffix: name,
			Visibility: "public", IsExported: isExportAncestor(n),
			ConstructedClass: constructed,
		})
	}
	return events
}

func (p *ecmaProfile) paramEvents(paramsNode *sitter.Node, src []byte) []Event {
	if paramsNode == nil {
		return nil
	}
	var events []Event
	for i := 0; i < int(paramsNode.NamedChildCount()); i++ {
		param := paramsNode.NamedChild(i)
		nameNode := param
		if param.Type() == "required_parameter" || param.Type() == "optional_parameter" {
			if pat := childByField(param, "pattern"); pat != nil {
				nameNode = pat
			}
		}
		if nameNode.Type() != "identifier" {
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

// constructorPropertyAssigns walks a constructor body for `this.x = new Foo()`
// style assignments and emits property definitions on the enclosing class.
func (p *ecmaProfile) constructorPropertyAssigns(ctor *sitter.Node, src []byte) []Event {
	body := childByField(ctor, "body")
	if body == nil {
		return nil
	}
	var events []Event
	walk(body, func(n *sitter.Node) {
		if n.Type() != "assignment_expression" {
			return
		}
		left := childByField(n, "left")
		if left == nil || left.Type() != "member_expression" {
			return
		}
		obj := childByField(left, "object")
		if obj == nil || obj.Type() != "this" {
			return
		}
		propNode := childByField(left, "property")
		if propNode == nil {
			return
		}
		name := NodeText(propNode, src)
		valueNode := childByField(n, "right")
		constructed := constructedClassName(valueNode, src)
		events = append(events, Event{
			Kind: EvDefinition, Range: RangeOfNode(propNode),
			DefKind: "property", Name: name, QualifiedSuffix: name,
			Visibility: "public", OwnerIsClass: true, ConstructedClass: constructed,
		})
	})
	return events
}

func (p *ecmaProfile) handlePropertyAssignment(n *sitter.Node, src []byte) []Event {
	left := childByField(n, "left")
	if left == nil || left.Type() != "member_expression" {
		return nil
	}
	obj := childByField(left, "object")
	if obj == nil || obj.Type() != "this" {
		return nil
	}
	// Constructor bodies are handled via constructorPropertyAssigns to get
	// proper class ownership context; plain top-level this-assignments
	// outside a constructor are rare and left unhandled here.
	return nil
}

func (p *ecmaProfile) handleBlockScope(n *sitter.Node, src []byte) []Event {
	parent := n.Parent()
	if parent != nil {
		switch parent.Type() {
		case "function_declaration", "function", "arrow_function", "method_definition", "generator_function_declaration":
			// Already covered by the enclosing function/method scope event.
			return nil
		}
	}
	return []Event{{Kind: EvScope, Range: RangeOfNode(n), ScopeKind: "block"}}
}

func (p *ecmaProfile) handleParams(n *sitter.Node, src []byte) []Event { return nil }

// --- imports / exports ---

func (p *ecmaProfile) handleImportStatement(n *sitter.Node, src []byte) []Event {
	sourceNode := childByField(n, "source")
	source := strings.Trim(NodeText(sourceNode, src), `"'`)

	clause := firstChildOfType(n, "import_clause")
	if clause == nil {
		// Side-effect import: `import "./foo"`.
		return []Event{{
			Kind: EvImport, Range: RangeOfNode(n),
			ImportKind: "side_effect", Source: source,
		}}
	}

	var bindings []ImportBinding
	kind := "named"
	isNamespace := false
	for i := 0; i < int(clause.NamedChildCount()); i++ {
		c := clause.NamedChild(i)
		switch c.Type() {
		case "identifier":
			// default import
			kind = "default"
			bindings = append(bindings, ImportBinding{LocalName: NodeText(c, src)})
		case "namespace_import":
			isNamespace = true
			kind = "namespace"
			if id := firstChildOfType(c, "identifier"); id != nil {
				bindings = append(bindings, ImportBinding{LocalName: NodeText(id, src)})
			}
		case "named_imports":
			for j := 0; j < int(c.NamedChildCount()); j++ {
				spec := c.NamedChild(j)
				if spec.Type() != "import_specifier" {
					continue
				}
				nameNode := childByField(spec, "name")
				aliasNode := childByField(spec, "alias")
				b := ImportBinding{ImportedName: NodeText(nameNode, src)}
				if aliasNode != nil {
					b.LocalName = NodeText(aliasNode, src)
				} else {
					b.LocalName = b.ImportedName
				}
				b.IsTypeOnly = NodeText(spec, src) != "" && strings.HasPrefix(strings.TrimSpace(NodeText(spec, src)), "type ")
				bindings = append(bindings, b)
			}
		}
	}

	ev := Event{
		Kind: EvImport, Range: RangeOfNode(n),
		ImportKind: kind, Source: source, Bindings: bindings,
	}
	events := []Event{ev}
	for _, b := range bindings {
		events = append(events, Event{
			Kind: EvDefinition, Range: RangeOfNode(n),
			DefKind: "import_binding", Name: b.LocalName, QualifiedSuffix: b.LocalName,
			Visibility: "public", SourceModule: source, ImportedName: b.ImportedName,
			IsNamespace: isNamespace,
		})
	}
	return events
}

func (p *ecmaProfile) handleExportStatement(n *sitter.Node, src []byte) []Event {
	// export * from "mod" [as ns]
	if hasChildOfType(n, "*") {
		sourceNode := childByField(n, "source")
		source := strings.Trim(NodeText(sourceNode, src), `"'`)
		return []Event{{
			Kind: EvExport, Range: RangeOfNode(n),
			IsStar: true, ReexportSource: source,
		}}
	}

	sourceNode := childByField(n, "source")
	source := ""
	if sourceNode != nil {
		source = strings.Trim(NodeText(sourceNode, src), `"'`)
	}

	if clause := firstChildOfType(n, "export_clause"); clause != nil {
		var events []Event
		for i := 0; i < int(clause.NamedChildCount()); i++ {
			spec := clause.NamedChild(i)
			if spec.Type() != "export_specifier" {
				continue
			}
			nameNode := childByField(spec, "name")
			aliasNode := childByField(spec, "alias")
			localName := NodeText(nameNode, src)
			exported := localName
			if aliasNode != nil {
				exported = NodeText(aliasNode, src)
			}
			events = append(events, Event{
				Kind: EvExport, Range: RangeOfNode(spec),
				ExportedName: exported, LocalName: localName, ReexportSource: source,
			})
		}
		return events
	}

	// `export default <expr|decl>` or `export <declaration>`.
	if declNode := childByField(n, "declaration"); declNode != nil {
		name := declName(declNode, src)
		if hasChildOfType(n, "default") {
			if name == "" {
				name = "default"
			}
			return []Event{{
				Kind: EvExport, Range: RangeOfNode(n),
				ExportedName: "default", LocalName: name,
			}}
		}
		if name != "" {
			return []Event{{
				Kind: EvExport, Range: RangeOfNode(n),
				ExportedName: name, LocalName: name,
			}}
		}
	}
	return nil
}

func declName(n *sitter.Node, src []byte) string {
	switch n.Type() {
	case "function_declaration", "class_declaration", "generator_function_declaration",
		"interface_declaration", "type_alias_declaration":
		if nameNode := childByField(n, "name"); nameNode != nil {
			return NodeText(nameNode, src)
		}
	case "lexical_declaration", "variable_declaration":
		if n.NamedChildCount() > 0 {
			decl := n.NamedChild(0)
			if nameNode := childByField(decl, "name"); nameNode != nil {
				return NodeText(nameNode, src)
			}
		}
	}
	return ""
}

// --- references / calls ---

func (p *ecmaProfile) handleCallOrNew(n *sitter.Node, src []byte) []Event {
	isConstruction := n.Type() == "new_expression"
	fnField := "function"
	if isConstruction {
		fnField = "constructor"
	}
	calleeNode := childByField(n, fnField)
	if calleeNode == nil {
		return nil
	}
	argsNode := childByField(n, "arguments")
	arity := 0
	if argsNode != nil {
		arity = int(argsNode.NamedChildCount())
	}

	name, chain, isSelf := p.receiverChainDetail(calleeNode, src)
	if name == "" {
		return nil
	}

	ev := Event{
		Kind: EvReference, Range: RangeOfNode(calleeNode),
		RefKind: "call", Name: name,
		ReceiverChain: chain, ReceiverIsSelf: isSelf,
		CallArity: arity, HasCallArity: true,
		IsConstruction: isConstruction,
	}
	events := []Event{ev}
	events = append(events, p.callbackArgEvents(argsNode, name, src)...)
	return events
}

func (p *ecmaProfile) callbackArgEvents(argsNode *sitter.Node, callName string, src []byte) []Event {
	if argsNode == nil {
		return nil
	}
	var events []Event
	idx := 0
	for i := 0; i < int(argsNode.NamedChildCount()); i++ {
		arg := argsNode.NamedChild(i)
		if arg.Type() == "arrow_function" || arg.Type() == "function" {
			events = append(events, Event{
				Kind: EvCallbackArg, Range: RangeOfNode(arg),
				CallbackArgTo: callName, CallArgIndex: idx, HasCallArgIndex: true,
			})
		}
		idx++
	}
	return events
}

// ReceiverChain flattens a.b.c / this.b.c into an ordered identifier chain,
// returning (fullChain, headIsSelf). chain is the full ordered list
// including the head; its last identifier is the reference's own Name.
func (p *ecmaProfile) ReceiverChain(node *sitter.Node, src []byte) ([]string, bool) {
	_, chain, isSelf := p.receiverChainDetail(node, src)
	return chain, isSelf
}

func (p *ecmaProfile) receiverChainDetail(node *sitter.Node, src []byte) (string, []string, bool) {
	switch node.Type() {
	case "identifier":
		return NodeText(node, src), []string{NodeText(node, src)}, false
	case "this":
		return "this", []string{"this"}, true
	case "member_expression":
		obj := childByField(node, "object")
		prop := childByField(node, "property")
		if obj == nil || prop == nil {
			return "", nil, false
		}
		_, objChain, isSelf := p.receiverChainDetail(obj, src)
		propName := NodeText(prop, src)
		return propName, append(objChain, propName), isSelf
	case "new_expression":
		ctor := childByField(node, "constructor")
		if ctor == nil || ctor.Type() != "identifier" {
			return "", nil, false
		}
		name := NodeText(ctor, src)
		return name, []string{name}, false
	default:
		return "", nil, false
	}
}

func (p *ecmaProfile) SignatureText(node *sitter.Node, src []byte) string {
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

func (p *ecmaProfile) Docstring(node *sitter.Node, src []byte) string {
	if node == nil {
		return ""
	}
	prev := node.PrevSibling()
	if prev == nil || prev.Type() != "comment" {
		return ""
	}
	text := NodeText(prev, src)
	if strings.HasPrefix(text, "/**") {
		return cleanBlockComment(text)
	}
	return ""
}

func cleanBlockComment(text string) string {
	text = strings.TrimPrefix(text, "/**")
	text = strings.TrimSuffix(text, "*/")
	lines := strings.Split(text, "\n")
	var out []string
	for _, l := range lines {
		l = strings.TrimSpace(l)
		l = strings.TrimPrefix(l, "*")
		out = append(out, strings.TrimSpace(l))
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// --- shared small helpers ---

func hasChildOfType(n *sitter.Node, kind string) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		if n.Child(i).Type() == kind {
			return true
		}
	}
	return false
}

func firstChildOfType(n *sitter.Node, kind string) *sitter.Node {
	for i := 0; i < int(n.ChildCount()); i++ {
		if n.Child(i).Type() == kind {
			return n.Child(i)
		}
	}
	return nil
}

func isExportAncestor(n *sitter.Node) bool {
	parent := n.Parent()
	return parent != nil && parent.Type() == "export_statement"
}

// constructedClassName extracts "Foo" from `new Foo(...)` / `Foo(...)`
// initializer expressions, used for §4.6's constructor type inference.
func constructedClassName(valueNode *sitter.Node, src []byte) string {
	if valueNode == nil {
		return ""
	}
	switch valueNode.Type() {
	case "new_expression":
		ctor := childByField(valueNode, "constructor")
		if ctor != nil && ctor.Type() == "identifier" {
			return NodeText(ctor, src)
		}
	}
	return ""
}

// walk performs a simple pre-order traversal, invoking fn for every node.
func walk(n *sitter.Node, fn func(*sitter.Node)) {
	if n == nil {
		return
	}
	fn(n)
	for i := 0; i < int(n.NamedChildCount()); i++ {
		walk(n.NamedChild(i), fn)
	}
}
