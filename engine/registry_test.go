package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRegistryRegisterAndResolve(t *testing.T) {
	r := NewRegistry(nil)

	d := &LanguageDescriptor{Name: "Python"}
	registered, replaced := r.Register(d)
	assert.True(t, registered)
	assert.False(t, replaced)

	got, err := r.Resolve("python")
	require.NoError(t, err)
	assert.Same(t, d, got)

	got, err = r.Resolve("PYTHON")
	require.NoError(t, err)
	assert.Same(t, d, got)
}

func TestRegistryResolveUnknown(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.Resolve("cobol")
	require.Error(t, err)

	var unknown *ErrUnknownLanguage
	assert.ErrorAs(t, err, &unknown)
	assert.Equal(t, "cobol", unknown.Key)
}

func TestRegistryReregisterReplacesAndWarnsOnce(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	logger := zap.New(core)
	r := NewRegistry(logger)

	first := &LanguageDescriptor{Name: "C"}
	second := &LanguageDescriptor{Name: "C"}

	_, replaced := r.Register(first)
	assert.False(t, replaced)
	assert.Equal(t, 0, logs.Len())

	_, replaced = r.Register(second)
	assert.True(t, replaced)
	require.Equal(t, 1, logs.Len())

	got, err := r.Resolve("c")
	require.NoError(t, err)
	assert.Same(t, second, got)
}

func TestRegistryKeysSorted(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(&LanguageDescriptor{Name: "Ruby"})
	r.Register(&LanguageDescriptor{Name: "Ada"})
	r.Register(&LanguageDescriptor{Name: "C"})

	assert.Equal(t, []string{"ada", "c", "ruby"}, r.Keys())
}

func TestRegistryPrograms(t *testing.T) {
	r := NewRegistry(nil)
	compiler := NewProgram("true")
	interpreter := NewProgram("cat")
	r.Register(&LanguageDescriptor{Name: "Pipelang", Compiler: compiler, Interpreter: interpreter})

	info, err := r.Programs("pipelang")
	require.NoError(t, err)
	assert.Contains(t, info, "true")
	assert.Contains(t, info, "cat")

	_, err = r.Programs("not-registered")
	require.Error(t, err)
}
