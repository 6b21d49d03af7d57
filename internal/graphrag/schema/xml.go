package schema

import (
	"bytes"
	"encoding/xml"
	"strings"
)

// XML renders the schema in the structure/nodes/relationships layout used by
// every prompt. Output is deterministic for a given schema.
func (s *GraphSchema) XML() string {
	var b strings.Builder

	b.WriteString("<structure>\n")
	for _, e := range s.Edges {
		b.WriteString(`  <rel label="` + attr(e.Label) + `" from="` + attr(e.Src) + `" to="` + attr(e.Dst) + "\" />\n")
	}
	b.WriteString("</structure>\n")

	b.WriteString("<nodes>\n")
	for _, n := range s.Nodes {
		b.WriteString(`  <node label="` + attr(n.Label) + "\">\n")
		writeProperties(&b, n.Properties)
		b.WriteString("  </node>\n")
	}
	b.WriteString("</nodes>\n")

	b.WriteString("<relationships>\n")
	for _, e := range s.Edges {
		if len(e.Properties) == 0 {
			b.WriteString(`  <rel label="` + attr(e.Label) + "\" />\n")
			continue
		}
		b.WriteString(`  <rel label="` + attr(e.Label) + "\">\n")
		writeProperties(&b, e.Properties)
		b.WriteString("  </rel>\n")
	}
	b.WriteString("</relationships>")

	return b.String()
}

func writeProperties(b *strings.Builder, props []Property) {
	for _, p := range props {
		b.WriteString(`    <property name="` + attr(p.Name) + `" type="` + attr(p.Type) + "\" />\n")
	}
}

func attr(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
