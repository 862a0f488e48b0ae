package catalog_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/durableflow/engine/catalog"
	"github.com/durableflow/engine/workflow"
)

func doc() workflow.Document {
	return workflow.Document{Namespace: "ns", Name: "greet", Version: "v1"}
}

func TestRegisterThenLookupFindsDocument(t *testing.T) {
	r := catalog.New()
	r.Register(doc())

	got, ok := r.Lookup("ns", "greet", "v1")
	require.True(t, ok)
	require.Equal(t, "greet", got.Name)
}

func TestLookupMissingReturnsFalse(t *testing.T) {
	r := catalog.New()
	_, ok := r.Lookup("ns", "missing", "v1")
	require.False(t, ok)
}

func TestResolveImplementsWorkflowResolver(t *testing.T) {
	r := catalog.New()
	r.Register(doc())

	got, err := r.Resolve(context.Background(), "ns", "greet", "v1")
	require.NoError(t, err)
	require.Equal(t, "greet", got.Name)

	_, err = r.Resolve(context.Background(), "ns", "missing", "v1")
	require.Error(t, err)
}

func TestRegisterOverwritesPriorVersion(t *testing.T) {
	r := catalog.New()
	d := doc()
	d.Do = []workflow.Entry{{Name: "a"}}
	r.Register(d)

	d2 := doc()
	d2.Do = []workflow.Entry{{Name: "a"}, {Name: "b"}}
	r.Register(d2)

	got, ok := r.Lookup("ns", "greet", "v1")
	require.True(t, ok)
	require.Len(t, got.Do, 2)
}
