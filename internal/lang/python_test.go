package lang

import (
	"context"
	"testing"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func extractPython(t *testing.T, src string) []Event {
	t.Helper()
	profile, ok := ForName("python")
	require.True(t, ok, "python profile must be registered")

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(profile.Language())
	tree, err := parser.ParseCtx(context.Background(), nil, []byte(src))
	require.NoError(t, err)

	events, err := profile.Extract(tree, []byte(src))
	require.NoError(t, err)
	return events
}

func definitionsNamed(events []Event, name string) []Event {
	var out []Event
	for _, e := range events {
		if e.Kind == EvDefinition && e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// Scenario seed 4 (spec §8.4): `from pkg import module` rebinds the local
// name "module" to the submodule itself, distinct from a symbol imported out
// of it -- the import_binding definition's ImportedName must equal the
// submodule's own last path segment, not some member of it.
func TestExtract_FromPackageImportModuleRebind(t *testing.T) {
	events := extractPython(t, "from pkg import module\n")

	bindings := definitionsNamed(events, "module")
	require.Len(t, bindings, 1)
	assert.Equal(t, "import_binding", bindings[0].DefKind)
	assert.Equal(t, "module", bindings[0].ImportedName)
	assert.Equal(t, "pkg", bindings[0].SourceModule)
}

func TestExtract_ConstructorSelfAttributeInfersType(t *testing.T) {
	events := extractPython(t, "class App:\n    def __init__(self):\n        self.greeter = Greeter()\n")

	props := definitionsNamed(events, "greeter")
	require.Len(t, props, 1)
	assert.Equal(t, "property", props[0].DefKind)
	assert.Equal(t, "Greeter", props[0].ConstructedClass)
}

func TestExtract_ClassWithBaseClassReference(t *testing.T) {
	events := extractPython(t, "class Base:\n    pass\n\n\nclass Child(Base):\n    pass\n")

	var baseRef *Event
	for i := range events {
		if events[i].Kind == EvReference && events[i].RefKind == "base_class" {
			baseRef = &events[i]
		}
	}
	require.NotNil(t, baseRef)
	assert.Equal(t, "Base", baseRef.Name)
}

func TestExtract_StaticAndClassMethodsAreMarkedStatic(t *testing.T) {
	events := extractPython(t, "class Factory:\n    @staticmethod\n    def build():\n        pass\n\n    @classmethod\n    def make(cls):\n        pass\n\n    def instance_method(self):\n        pass\n")

	build := definitionsNamed(events, "build")
	require.Len(t, build, 1)
	assert.True(t, build[0].IsStatic)

	make_ := definitionsNamed(events, "make")
	require.Len(t, make_, 1)
	assert.True(t, make_[0].IsStatic)

	instance := definitionsNamed(events, "instance_method")
	require.Len(t, instance, 1)
	assert.False(t, instance[0].IsStatic)
}
