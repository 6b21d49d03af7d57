// Package graph provides read-only graph database access for question answering.
//
// GraphClient is the narrow interface the executor depends on: connect,
// health, and parameterised read queries. Neo4jClient is the production
// implementation; MockGraphClient serves unit tests.
//
// # Usage
//
//	config := graph.DefaultConfig()
//	config.URI = "bolt://localhost:7687"
//
//	client, err := graph.NewNeo4jClient(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := client.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close(ctx)
//
//	result, err := client.Query(ctx,
//	    "MATCH (p:Patient) WHERE toLower(p.surname) CONTAINS $name RETURN p.givenName",
//	    map[string]any{"name": "klein"},
//	)
//
// # Connection Management
//
// The Neo4j client uses connection pooling with configurable limits:
//
//   - MaxConnectionPoolSize: Maximum connections in the pool (default: 50)
//   - ConnectionTimeout: Timeout for acquiring a connection (default: 30s)
//   - MaxTransactionRetryTime: Maximum retry time for transactions (default: 30s)
//   - QueryTimeout: Server-side transaction timeout per query (default: 15s)
//
// Connections are retried with exponential backoff on failure. Encryption
// is selected by URI scheme (bolt://, bolt+s://, bolt+ssc://, neo4j://,
// neo4j+s://).
//
// # Error Handling
//
// Query failures carry one of these codes:
//
//   - ErrCodeGraphInvalidQuery: syntax, unknown procedure or schema errors
//   - ErrCodeGraphQueryTimeout: the query or its context timed out
//   - ErrCodeGraphConnectionLost / ErrCodeGraphConnectionFailed: the store
//     is unreachable or refused the credentials (IsUnavailable reports true)
//   - ErrCodeGraphQueryFailed: anything else
//
// # Results
//
// Record values are converted to plain Go values: temporal types become
// ISO-8601 strings and nodes or relationships become property maps, so
// results format the same way regardless of driver version.
//
// # Schema Introspection
//
// Introspect builds a schema.GraphSchema from db.schema.nodeTypeProperties,
// db.schema.relTypeProperties and the distinct relationship endpoints found
// in the data.
package graph
