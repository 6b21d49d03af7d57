//go:build integration

package graphrag

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/zero-day-ai/graphqa/internal/graphrag/graph"
)

const seedFHIR = `
CREATE (p:Patient {id: 'p1', name: 'Vito Barton'})
CREATE (q:Patient {id: 'p2', name: 'Jane Roe'})
CREATE (d:Practitioner {id: 'd1', name: 'Josef Klein'})
CREATE (a:Allergy {id: 'a1', category: 'food'})
CREATE (s:Substance {id: 's1', name: 'seafood'})
CREATE (p)-[:EXPERIENCES]->(a)
CREATE (q)-[:EXPERIENCES]->(a)
CREATE (a)-[:CAUSES]->(s)
CREATE (d)-[:TREATS]->(p)`

// startNeo4j starts a Neo4j container seeded with a small FHIR graph and
// returns a connected client.
func startNeo4j(t *testing.T, ctx context.Context) *graph.Neo4jClient {
	t.Helper()

	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		t.Skip("Docker not available, skipping integration test")
	}
	if err := provider.Health(ctx); err != nil {
		t.Skip("Docker not running, skipping integration test")
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "neo4j:5",
			ExposedPorts: []string{"7687/tcp"},
			Env:          map[string]string{"NEO4J_AUTH": "none"},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("7687/tcp"),
				wait.ForLog("Started."),
			).WithDeadline(120 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "failed to start Neo4j container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "7687")
	require.NoError(t, err)
	uri := fmt.Sprintf("bolt://%s:%s", host, port.Port())

	// The client only opens read sessions, so seed through the driver.
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.NoAuth())
	require.NoError(t, err)
	_, err = neo4j.ExecuteQuery(ctx, driver, seedFHIR, nil, neo4j.EagerResultTransformer)
	require.NoError(t, err)
	require.NoError(t, driver.Close(ctx))

	cfg := graph.DefaultConfig()
	cfg.URI = uri
	cfg.Password = "ignored"
	client, err := graph.NewNeo4jClient(cfg)
	require.NoError(t, err)
	require.NoError(t, client.Connect(ctx))
	t.Cleanup(func() { _ = client.Close(context.Background()) })
	return client
}

func TestExecutor_Neo4j(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	client := startNeo4j(t, ctx)
	exec := NewExecutor(client)

	t.Run("count across directed edges", func(t *testing.T) {
		res, err := exec.Execute(ctx, "MATCH (p:Patient)-[:EXPERIENCES]->(:Allergy)-[:CAUSES]->(s:Substance) "+
			"WHERE toLower(s.name) CONTAINS 'seafood' RETURN count(DISTINCT p) AS patients LIMIT 10")
		require.NoError(t, err)
		require.False(t, res.Failed())
		require.Len(t, res.Rows, 1)
		assert.EqualValues(t, 2, res.Rows[0]["patients"])
		assert.Contains(t, res.Context(), "<RESULT>")
	})

	t.Run("scalar properties", func(t *testing.T) {
		res, err := exec.Execute(ctx, "MATCH (d:Practitioner)-[:TREATS]->(p:Patient) "+
			"WHERE toLower(p.name) CONTAINS 'vito barton' RETURN d.name AS practitioner LIMIT 10")
		require.NoError(t, err)
		require.Len(t, res.Rows, 1)
		assert.Equal(t, "Josef Klein", res.Rows[0]["practitioner"])
	})

	t.Run("reversed direction finds nothing", func(t *testing.T) {
		res, err := exec.Execute(ctx, "MATCH (p:Patient)-[:TREATS]->(d:Practitioner) RETURN d.name AS name LIMIT 10")
		require.NoError(t, err)
		assert.False(t, res.Failed())
		assert.False(t, res.HasContext())
		assert.Empty(t, res.Context())
	})

	t.Run("syntax error is captured", func(t *testing.T) {
		res, err := exec.Execute(ctx, "MATCH (p:Patient RETURN p.name")
		require.NoError(t, err)
		assert.True(t, res.Failed())
		assert.Empty(t, res.Context())
	})

	t.Run("write refused by read session", func(t *testing.T) {
		res, err := exec.Execute(ctx, "CREATE (:Patient {name: 'Mallory'})")
		require.NoError(t, err)
		assert.True(t, res.Failed())
	})

	t.Run("introspection", func(t *testing.T) {
		s, err := graph.Introspect(ctx, client)
		require.NoError(t, err)

		_, ok := s.Node("Patient")
		assert.True(t, ok)
		edge, ok := s.Edge("EXPERIENCES")
		require.True(t, ok)
		assert.Equal(t, "Patient", edge.Src)
		assert.Equal(t, "Allergy", edge.Dst)
		assert.Contains(t, s.XML(), `<rel label="TREATS" from="Practitioner" to="Patient" />`)
	})

	t.Run("closed client is unavailable", func(t *testing.T) {
		require.NoError(t, client.Close(ctx))
		_, err := exec.Execute(ctx, "MATCH (p:Patient) RETURN p.name AS name LIMIT 10")
		require.Error(t, err)
		assert.True(t, graph.IsUnavailable(err))
	})
}
