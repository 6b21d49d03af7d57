package schema

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zero-day-ai/graphqa/internal/types"
)

func TestBuiltin(t *testing.T) {
	s, err := Builtin()
	require.NoError(t, err)

	assert.Len(t, s.Nodes, 6)
	assert.Len(t, s.Edges, 5)

	treats, ok := s.Edge("TREATS")
	require.True(t, ok)
	assert.Equal(t, "Practitioner", treats.Src)
	assert.Equal(t, "Patient", treats.Dst)

	patient, ok := s.Node("Patient")
	require.True(t, ok)
	assert.Equal(t, Property{Name: "patient_id", Type: "INT64"}, patient.Properties[0])

	assert.True(t, s.HasName("givenName"))
	assert.True(t, s.HasName("CAUSES"))
	assert.False(t, s.HasName("Medication"))
}

func TestGraphSchema_Validate(t *testing.T) {
	tests := []struct {
		name    string
		schema  GraphSchema
		wantErr string
	}{
		{name: "empty", schema: GraphSchema{}, wantErr: "no nodes"},
		{
			name:    "duplicate node",
			schema:  GraphSchema{Nodes: []Node{{Label: "A"}, {Label: "A"}}},
			wantErr: "duplicate node label",
		},
		{
			name: "dangling edge",
			schema: GraphSchema{
				Nodes: []Node{{Label: "A"}},
				Edges: []Edge{{Label: "R", Src: "A", Dst: "B"}},
			},
			wantErr: "undeclared nodes",
		},
		{
			name:    "duplicate property",
			schema:  GraphSchema{Nodes: []Node{{Label: "A", Properties: []Property{{Name: "x"}, {Name: "x"}}}}},
			wantErr: "twice",
		},
		{
			name: "valid",
			schema: GraphSchema{
				Nodes: []Node{{Label: "A"}, {Label: "B"}},
				Edges: []Edge{{Label: "R", Src: "A", Dst: "B"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.schema.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Equal(t, ErrCodeSchemaInvalid, types.CodeOf(err))
		})
	}
}

func TestGraphSchema_XML(t *testing.T) {
	s := GraphSchema{
		Nodes: []Node{
			{Label: "Practitioner", Properties: []Property{{Name: "surname", Type: "STRING"}}},
			{Label: "Patient", Properties: []Property{{Name: "patient_id", Type: "INT64"}}},
		},
		Edges: []Edge{{Label: "TREATS", Src: "Practitioner", Dst: "Patient"}},
	}

	want := `<structure>
  <rel label="TREATS" from="Practitioner" to="Patient" />
</structure>
<nodes>
  <node label="Practitioner">
    <property name="surname" type="STRING" />
  </node>
  <node label="Patient">
    <property name="patient_id" type="INT64" />
  </node>
</nodes>
<relationships>
  <rel label="TREATS" />
</relationships>`

	assert.Equal(t, want, s.XML())
	assert.Equal(t, s.XML(), s.XML())
}

func TestGraphSchema_XMLEdgeProperties(t *testing.T) {
	s := GraphSchema{
		Nodes: []Node{{Label: "A"}, {Label: "B"}},
		Edges: []Edge{{Label: "R", Src: "A", Dst: "B", Properties: []Property{{Name: "since", Type: "DATE"}}}},
	}
	assert.Contains(t, s.XML(), "  <rel label=\"R\">\n    <property name=\"since\" type=\"DATE\" />\n  </rel>")
}

func TestGraphSchema_Subset(t *testing.T) {
	full := MustBuiltin()

	t.Run("keeps known labels and properties", func(t *testing.T) {
		got, ok := full.Subset(GraphSchema{
			Nodes: []Node{
				{Label: "Practitioner", Properties: []Property{{Name: "surname"}, {Name: "salary"}}},
				{Label: "Patient", Properties: []Property{{Name: "givenName"}}},
				{Label: "Hospital"},
			},
			// Direction in the candidate is wrong on purpose.
			Edges: []Edge{{Label: "TREATS", Src: "Patient", Dst: "Practitioner"}, {Label: "WORKS_AT"}},
		})
		require.True(t, ok)

		require.Len(t, got.Nodes, 2)
		assert.Equal(t, []Property{{Name: "surname", Type: "STRING"}}, got.Nodes[0].Properties)
		require.Len(t, got.Edges, 1)
		assert.Equal(t, "Practitioner", got.Edges[0].Src)
		assert.Equal(t, "Patient", got.Edges[0].Dst)
	})

	t.Run("drops edges with pruned endpoints", func(t *testing.T) {
		got, ok := full.Subset(GraphSchema{
			Nodes: []Node{{Label: "Patient"}},
			Edges: []Edge{{Label: "LIVES_IN"}},
		})
		require.True(t, ok)
		assert.Empty(t, got.Edges)

		patient, _ := full.Node("Patient")
		assert.Equal(t, patient.Properties, got.Nodes[0].Properties)
	})

	t.Run("nothing valid", func(t *testing.T) {
		_, ok := full.Subset(GraphSchema{Nodes: []Node{{Label: "Hospital"}}})
		assert.False(t, ok)
	})
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	data, err := MustBuiltin().YAML()
	require.NoError(t, err)
	path := filepath.Join(dir, "schema.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, MustBuiltin(), loaded)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("nodes:\n  - label: A\n    colour: red\n"), 0o600))
	_, err = LoadFile(bad)
	assert.Equal(t, ErrCodeSchemaLoadFailed, types.CodeOf(err))

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "missing.yaml"))
}
