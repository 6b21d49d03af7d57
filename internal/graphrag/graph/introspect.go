package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/zero-day-ai/graphqa/internal/graphrag/schema"
	"github.com/zero-day-ai/graphqa/internal/types"
)

const (
	nodePropertiesQuery = "CALL db.schema.nodeTypeProperties() YIELD nodeLabels, propertyName, propertyTypes RETURN nodeLabels, propertyName, propertyTypes"
	relPropertiesQuery  = "CALL db.schema.relTypeProperties() YIELD relType, propertyName, propertyTypes RETURN relType, propertyName, propertyTypes"
	relStructureQuery   = "MATCH (a)-[r]->(b) WITH head(labels(a)) AS src, type(r) AS rel, head(labels(b)) AS dst RETURN DISTINCT src, rel, dst"
)

// Introspect reads the node and relationship vocabulary of a live graph
// through Neo4j's schema procedures. Labels and properties are sorted so the
// rendered schema is stable across restarts.
func Introspect(ctx context.Context, client GraphClient) (*schema.GraphSchema, error) {
	nodeRows, err := client.Query(ctx, nodePropertiesQuery, nil)
	if err != nil {
		return nil, types.WrapError(ErrCodeGraphIntrospectionFailed, "failed to read node properties", err)
	}
	relRows, err := client.Query(ctx, relPropertiesQuery, nil)
	if err != nil {
		return nil, types.WrapError(ErrCodeGraphIntrospectionFailed, "failed to read relationship properties", err)
	}
	structure, err := client.Query(ctx, relStructureQuery, nil)
	if err != nil {
		return nil, types.WrapError(ErrCodeGraphIntrospectionFailed, "failed to read relationship structure", err)
	}

	nodeProps := make(map[string][]schema.Property)
	for _, row := range nodeRows.Records {
		labels := stringList(row["nodeLabels"])
		if len(labels) == 0 {
			continue
		}
		label := labels[0]
		if _, ok := nodeProps[label]; !ok {
			nodeProps[label] = nil
		}
		if name, ok := row["propertyName"].(string); ok && name != "" {
			nodeProps[label] = append(nodeProps[label], schema.Property{
				Name: name,
				Type: mapPropertyType(stringList(row["propertyTypes"])),
			})
		}
	}

	relProps := make(map[string][]schema.Property)
	for _, row := range relRows.Records {
		relType, _ := row["relType"].(string)
		relType = strings.Trim(strings.TrimPrefix(relType, ":"), "`")
		if name, ok := row["propertyName"].(string); ok && name != "" && relType != "" {
			relProps[relType] = append(relProps[relType], schema.Property{
				Name: name,
				Type: mapPropertyType(stringList(row["propertyTypes"])),
			})
		}
	}

	var s schema.GraphSchema
	for _, label := range sortedKeys(nodeProps) {
		props := nodeProps[label]
		sort.Slice(props, func(i, j int) bool { return props[i].Name < props[j].Name })
		s.Nodes = append(s.Nodes, schema.Node{Label: label, Properties: props})
	}

	seen := make(map[string]bool)
	for _, row := range structure.Records {
		src, _ := row["src"].(string)
		rel, _ := row["rel"].(string)
		dst, _ := row["dst"].(string)
		if src == "" || rel == "" || dst == "" || seen[rel] {
			continue
		}
		seen[rel] = true
		s.Edges = append(s.Edges, schema.Edge{Label: rel, Src: src, Dst: dst, Properties: relProps[rel]})
	}
	sort.Slice(s.Edges, func(i, j int) bool { return s.Edges[i].Label < s.Edges[j].Label })

	if err := s.Validate(); err != nil {
		return nil, types.WrapError(ErrCodeGraphIntrospectionFailed,
			fmt.Sprintf("introspected schema is not usable (%d nodes, %d edges)", len(s.Nodes), len(s.Edges)), err)
	}
	return &s, nil
}

// mapPropertyType converts Neo4j property type names to the type names used
// in prompts.
func mapPropertyType(neoTypes []string) string {
	if len(neoTypes) == 0 {
		return "STRING"
	}
	switch neoTypes[0] {
	case "Long", "Integer":
		return "INT64"
	case "Double", "Float":
		return "DOUBLE"
	case "Boolean":
		return "BOOLEAN"
	case "Date":
		return "DATE"
	case "LocalDateTime", "DateTime":
		return "TIMESTAMP"
	case "StringArray":
		return "STRING[]"
	default:
		return "STRING"
	}
}

func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func sortedKeys(m map[string][]schema.Property) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
