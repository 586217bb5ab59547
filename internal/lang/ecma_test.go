package lang

import (
	"context"
	"testing"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func extractTS(t *testing.T, src string) []Event {
	t.Helper()
	profile, ok := ForName("typescript")
	require.True(t, ok, "typescript profile must be registered")

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(profile.Language())
	tree, err := parser.ParseCtx(context.Background(), nil, []byte(src))
	require.NoError(t, err)

	events, err := profile.Extract(tree, []byte(src))
	require.NoError(t, err)
	return events
}

func TestExtract_ExportedClassWithMethod(t *testing.T) {
	events := extractTS(t, "export class Foo {\n  bar() {}\n}\n")

	classes := definitionsNamed(events, "Foo")
	require.Len(t, classes, 1)
	assert.Equal(t, "class", classes[0].DefKind)
	assert.True(t, classes[0].IsExported)

	methods := definitionsNamed(events, "bar")
	require.Len(t, methods, 1)
	assert.Equal(t, "method", methods[0].DefKind)
	assert.True(t, methods[0].OwnerIsClass)
}

func TestExtract_NamedImport(t *testing.T) {
	events := extractTS(t, "import { Foo, Bar as Baz } from './a';\n")

	fooImports := importsNamed(events, "Foo")
	require.Len(t, fooImports, 1)
	assert.Equal(t, "./a", fooImports[0].Source)

	bazImports := importsNamed(events, "Baz")
	require.Len(t, bazImports, 1)
	assert.Equal(t, "./a", bazImports[0].Source)
}

func TestExtract_ConstructorPropertyAssignInfersType(t *testing.T) {
	events := extractTS(t, "class App {\n  constructor() {\n    this.widget = new Widget();\n  }\n}\n")

	props := definitionsNamed(events, "widget")
	require.Len(t, props, 1)
	assert.Equal(t, "Widget", props[0].ConstructedClass)
}

func TestExtract_InterfaceAndTypeAlias(t *testing.T) {
	events := extractTS(t, "export interface Shape {\n  area(): number;\n}\n\ntype Point = { x: number; y: number };\n")

	shapes := definitionsNamed(events, "Shape")
	require.Len(t, shapes, 1)
	assert.Equal(t, "interface", shapes[0].DefKind)

	points := definitionsNamed(events, "Point")
	require.Len(t, points, 1)
	assert.Equal(t, "type_alias", points[0].DefKind)
}

func TestExtract_CallWithReceiverChain(t *testing.T) {
	events := extractTS(t, "new Foo().bar();\n")

	var call *Event
	for i := range events {
		if events[i].Kind == EvReference && events[i].RefKind == "call" && events[i].Name == "bar" {
			call = &events[i]
		}
	}
	require.NotNil(t, call)
	assert.Equal(t, 0, call.CallArity)
}
