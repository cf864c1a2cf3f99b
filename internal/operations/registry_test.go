package operations_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sidrapanel/internal/operations"
	"sidrapanel/internal/operations/testutil"
)

func TestRegistryRegister(t *testing.T) {
	registry := operations.NewRegistry()

	step1 := testutil.CreateSuccessfulStep("step1", "Step 1")
	step2 := testutil.CreateSuccessfulStep("step2", "Step 2")
	require.NoError(t, registry.Register(step1))
	require.NoError(t, registry.Register(step2))

	assert.Equal(t, 2, registry.Count())
	assert.True(t, registry.Has("step1"))
	assert.False(t, registry.Has("step3"))
	assert.Equal(t, []string{"step1", "step2"}, registry.ListIDs())

	got, err := registry.Get("step2")
	require.NoError(t, err)
	assert.Same(t, step2, got)

	_, err = registry.Get("missing")
	assert.ErrorContains(t, err, "not found")
}

func TestRegistryRegisterErrors(t *testing.T) {
	registry := operations.NewRegistry()

	assert.ErrorContains(t, registry.Register(nil), "nil Step")
	assert.ErrorContains(t, registry.Register(&testutil.MockStep{NameValue: "no id"}), "ID cannot be empty")

	dup := testutil.CreateSuccessfulStep("dup", "Duplicate")
	require.NoError(t, registry.Register(dup))
	assert.ErrorContains(t, registry.Register(dup), "already registered")
}

func TestRegistryDependencyOrder(t *testing.T) {
	tests := []struct {
		name  string
		steps []*testutil.MockStep
		want  []string
	}{
		{
			name: "independent steps keep registration order",
			steps: []*testutil.MockStep{
				testutil.CreateSuccessfulStep("b", "B"),
				testutil.CreateSuccessfulStep("a", "A"),
				testutil.CreateSuccessfulStep("c", "C"),
			},
			want: []string{"b", "a", "c"},
		},
		{
			name: "dependency registered after dependent",
			steps: []*testutil.MockStep{
				testutil.CreateSuccessfulStep("report", "Report", "load"),
				testutil.CreateSuccessfulStep("load", "Load"),
			},
			want: []string{"load", "report"},
		},
		{
			name: "diamond",
			steps: []*testutil.MockStep{
				testutil.CreateSuccessfulStep("fetch", "Fetch"),
				testutil.CreateSuccessfulStep("load", "Load"),
				testutil.CreateSuccessfulStep("join", "Join", "fetch", "load"),
				testutil.CreateSuccessfulStep("chart", "Chart", "join"),
				testutil.CreateSuccessfulStep("export", "Export", "join"),
			},
			want: []string{"fetch", "load", "join", "chart", "export"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := operations.NewRegistry()
			for _, s := range tt.steps {
				require.NoError(t, registry.Register(s))
			}

			ordered, err := registry.DependencyOrder()
			require.NoError(t, err)
			testutil.AssertStepOrder(t, ordered, tt.want...)
		})
	}
}

func TestRegistryDependencyErrors(t *testing.T) {
	t.Run("missing dependency", func(t *testing.T) {
		registry := operations.NewRegistry()
		require.NoError(t, registry.Register(testutil.CreateSuccessfulStep("a", "A", "ghost")))

		err := registry.ValidateDependencies()
		testutil.AssertErrorType(t, err, operations.ErrorTypeDependency)
		assert.ErrorContains(t, err, "not registered")
	})

	t.Run("cycle", func(t *testing.T) {
		registry := operations.NewRegistry()
		require.NoError(t, registry.Register(testutil.CreateSuccessfulStep("a", "A", "c")))
		require.NoError(t, registry.Register(testutil.CreateSuccessfulStep("b", "B", "a")))
		require.NoError(t, registry.Register(testutil.CreateSuccessfulStep("c", "C", "b")))

		_, err := registry.DependencyOrder()
		testutil.AssertErrorType(t, err, operations.ErrorTypeDependency)
		assert.ErrorContains(t, err, "cycle")
	})
}

func TestRegistryDependents(t *testing.T) {
	registry := operations.NewRegistry()
	require.NoError(t, registry.Register(testutil.CreateSuccessfulStep("a", "A")))
	require.NoError(t, registry.Register(testutil.CreateSuccessfulStep("b", "B", "a")))
	require.NoError(t, registry.Register(testutil.CreateSuccessfulStep("c", "C", "a", "b")))

	assert.Equal(t, []string{"b", "c"}, registry.Dependents("a"))
	assert.Equal(t, []string{"c"}, registry.Dependents("b"))
	assert.Empty(t, registry.Dependents("c"))
}
