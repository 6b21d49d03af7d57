package schema_test

import (
	"fmt"

	"github.com/zero-day-ai/graphqa/internal/graphrag/schema"
)

// ExampleGraphSchema_Subset shows pruning a schema down to what one question needs.
func ExampleGraphSchema_Subset() {
	full := schema.MustBuiltin()

	pruned, ok := full.Subset(schema.GraphSchema{
		Nodes: []schema.Node{
			{Label: "Practitioner", Properties: []schema.Property{{Name: "surname"}}},
			{Label: "Patient", Properties: []schema.Property{{Name: "surname"}}},
		},
		Edges: []schema.Edge{{Label: "TREATS"}},
	})

	fmt.Println(ok)
	fmt.Println(pruned.XML())

	// Output:
	// true
	// <structure>
	//   <rel label="TREATS" from="Practitioner" to="Patient" />
	// </structure>
	// <nodes>
	//   <node label="Practitioner">
	//     <property name="surname" type="STRING" />
	//   </node>
	//   <node label="Patient">
	//     <property name="surname" type="STRING" />
	//   </node>
	// </nodes>
	// <relationships>
	//   <rel label="TREATS" />
	// </relationships>
}
