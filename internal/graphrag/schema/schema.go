package schema

import (
	"fmt"

	"github.com/zero-day-ai/graphqa/internal/types"
)

// Schema error codes
const (
	ErrCodeSchemaInvalid    types.ErrorCode = "SCHEMA_INVALID"
	ErrCodeSchemaLoadFailed types.ErrorCode = "SCHEMA_LOAD_FAILED"
)

// Property is a typed attribute of a node or edge.
type Property struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
}

// Node is a node label with its properties.
type Node struct {
	Label      string     `json:"label" yaml:"label"`
	Properties []Property `json:"properties" yaml:"properties"`
}

// Edge is a directed relationship label from Src to Dst.
type Edge struct {
	Label      string     `json:"label" yaml:"label"`
	Src        string     `json:"src" yaml:"src"`
	Dst        string     `json:"dst" yaml:"dst"`
	Properties []Property `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// GraphSchema is the ordered node and edge vocabulary of a graph.
type GraphSchema struct {
	Nodes []Node `json:"nodes" yaml:"nodes"`
	Edges []Edge `json:"edges" yaml:"edges"`
}

// Node returns the node with the given label.
func (s *GraphSchema) Node(label string) (Node, bool) {
	for _, n := range s.Nodes {
		if n.Label == label {
			return n, true
		}
	}
	return Node{}, false
}

// Edge returns the edge with the given label.
func (s *GraphSchema) Edge(label string) (Edge, bool) {
	for _, e := range s.Edges {
		if e.Label == label {
			return e, true
		}
	}
	return Edge{}, false
}

// IsEmpty reports whether the schema has no nodes.
func (s *GraphSchema) IsEmpty() bool {
	return len(s.Nodes) == 0
}

// HasName reports whether name is a node label, edge label, or property
// name anywhere in the schema. Extracted entity keys are checked against it.
func (s *GraphSchema) HasName(name string) bool {
	for _, n := range s.Nodes {
		if n.Label == name || hasProperty(n.Properties, name) {
			return true
		}
	}
	for _, e := range s.Edges {
		if e.Label == name || hasProperty(e.Properties, name) {
			return true
		}
	}
	return false
}

// Validate checks labels are unique and non-empty and that every edge
// connects declared nodes.
func (s *GraphSchema) Validate() error {
	if s.IsEmpty() {
		return types.NewError(ErrCodeSchemaInvalid, "schema has no nodes")
	}

	seen := make(map[string]bool, len(s.Nodes))
	for _, n := range s.Nodes {
		if n.Label == "" {
			return types.NewError(ErrCodeSchemaInvalid, "node label cannot be empty")
		}
		if seen[n.Label] {
			return types.NewError(ErrCodeSchemaInvalid, fmt.Sprintf("duplicate node label %q", n.Label))
		}
		seen[n.Label] = true
		if err := validateProperties(n.Label, n.Properties); err != nil {
			return err
		}
	}

	edges := make(map[string]bool, len(s.Edges))
	for _, e := range s.Edges {
		if e.Label == "" {
			return types.NewError(ErrCodeSchemaInvalid, "edge label cannot be empty")
		}
		if edges[e.Label] {
			return types.NewError(ErrCodeSchemaInvalid, fmt.Sprintf("duplicate edge label %q", e.Label))
		}
		edges[e.Label] = true
		if !seen[e.Src] || !seen[e.Dst] {
			return types.NewError(ErrCodeSchemaInvalid,
				fmt.Sprintf("edge %q connects undeclared nodes %q -> %q", e.Label, e.Src, e.Dst))
		}
		if err := validateProperties(e.Label, e.Properties); err != nil {
			return err
		}
	}
	return nil
}

// Subset restricts candidate to the parts of s it names. Unknown labels and
// properties are dropped, node properties default to the full list when the
// candidate names none, and edges are kept only when both endpoints survive.
// Edge direction and property types always come from s. The second return
// value is false when nothing valid remains.
func (s *GraphSchema) Subset(candidate GraphSchema) (GraphSchema, bool) {
	var out GraphSchema

	kept := make(map[string]bool)
	for _, cn := range candidate.Nodes {
		full, ok := s.Node(cn.Label)
		if !ok || kept[cn.Label] {
			continue
		}
		kept[cn.Label] = true
		out.Nodes = append(out.Nodes, Node{
			Label:      full.Label,
			Properties: pickProperties(full.Properties, cn.Properties),
		})
	}

	for _, ce := range candidate.Edges {
		full, ok := s.Edge(ce.Label)
		if !ok || !kept[full.Src] || !kept[full.Dst] {
			continue
		}
		if _, dup := out.Edge(full.Label); dup {
			continue
		}
		out.Edges = append(out.Edges, Edge{
			Label:      full.Label,
			Src:        full.Src,
			Dst:        full.Dst,
			Properties: pickProperties(full.Properties, ce.Properties),
		})
	}

	return out, len(out.Nodes) > 0
}

func pickProperties(full, wanted []Property) []Property {
	if len(wanted) == 0 {
		return append([]Property(nil), full...)
	}
	out := make([]Property, 0, len(wanted))
	for _, w := range wanted {
		for _, f := range full {
			if f.Name == w.Name && !hasProperty(out, f.Name) {
				out = append(out, f)
				break
			}
		}
	}
	if len(out) == 0 {
		return append([]Property(nil), full...)
	}
	return out
}

func hasProperty(props []Property, name string) bool {
	for _, p := range props {
		if p.Name == name {
			return true
		}
	}
	return false
}

func validateProperties(owner string, props []Property) error {
	seen := make(map[string]bool, len(props))
	for _, p := range props {
		if p.Name == "" {
			return types.NewError(ErrCodeSchemaInvalid, fmt.Sprintf("%s has a property without a name", owner))
		}
		if seen[p.Name] {
			return types.NewError(ErrCodeSchemaInvalid, fmt.Sprintf("%s declares property %q twice", owner, p.Name))
		}
		seen[p.Name] = true
	}
	return nil
}
