package graph

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/zero-day-ai/graphqa/internal/types"
)

// Neo4jClient implements GraphClient for Neo4j graph databases.
// It provides connection pooling, automatic retries, and health monitoring.
type Neo4jClient struct {
	config GraphClientConfig
	driver neo4j.DriverWithContext
}

// NewNeo4jClient creates a new Neo4j client with the given configuration.
// The client must be connected via Connect() before use.
func NewNeo4jClient(config GraphClientConfig) (*Neo4jClient, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Neo4jClient{
		config: config,
	}, nil
}

// Connect establishes a connection to the Neo4j database.
// Uses exponential backoff for connection retries.
func (c *Neo4jClient) Connect(ctx context.Context) error {
	auth := neo4j.BasicAuth(c.config.Username, c.config.Password, "")

	driverConfig := func(config *neo4j.Config) {
		if c.config.MaxConnectionPoolSize > 0 {
			config.MaxConnectionPoolSize = c.config.MaxConnectionPoolSize
		}
		config.ConnectionAcquisitionTimeout = c.config.ConnectionTimeout
		config.MaxTransactionRetryTime = c.config.MaxTransactionRetryTime
		// Encryption is controlled by URI scheme (bolt:// vs bolt+s://)
	}

	var lastErr error
	maxRetries := 5
	baseDelay := 100 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		driver, err := neo4j.NewDriverWithContext(c.config.URI, auth, driverConfig)
		if err == nil {
			err = driver.VerifyConnectivity(ctx)
			if err == nil {
				c.driver = driver
				return nil
			}
			_ = driver.Close(ctx)
		}

		lastErr = err

		if ctx.Err() != nil {
			return types.WrapError(ErrCodeGraphConnectionFailed,
				"connection attempt cancelled", ctx.Err())
		}

		// Calculate backoff delay: baseDelay * 2^attempt
		delay := baseDelay * time.Duration(math.Pow(2, float64(attempt)))
		if delay > c.config.ConnectionTimeout {
			delay = c.config.ConnectionTimeout
		}

		select {
		case <-time.After(delay):
			continue
		case <-ctx.Done():
			return types.WrapError(ErrCodeGraphConnectionFailed,
				"connection attempt cancelled", ctx.Err())
		}
	}

	return types.WrapError(ErrCodeGraphConnectionFailed,
		fmt.Sprintf("failed to connect after %d attempts", maxRetries), lastErr)
}

// Close releases all resources and closes the database connection.
func (c *Neo4jClient) Close(ctx context.Context) error {
	if c.driver == nil {
		return nil
	}

	if err := c.driver.Close(ctx); err != nil {
		return types.WrapError(ErrCodeGraphConnectionClosed,
			"failed to close driver", err)
	}

	c.driver = nil
	return nil
}

// Health returns the current health status of the Neo4j connection.
func (c *Neo4jClient) Health(ctx context.Context) types.HealthStatus {
	if c.driver == nil {
		return types.Unhealthy("driver not initialized")
	}

	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := c.driver.VerifyConnectivity(healthCtx); err != nil {
		return types.Unhealthy(fmt.Sprintf("connectivity check failed: %v", err))
	}

	return types.Healthy("connected to Neo4j")
}

// Query executes a Cypher query with the given parameters in a read
// transaction, so a write clause that slips past validation is refused by
// the server.
func (c *Neo4jClient) Query(ctx context.Context, cypher string, params map[string]any) (QueryResult, error) {
	if c.driver == nil {
		return QueryResult{}, types.NewError(ErrCodeGraphConnectionClosed,
			"driver not connected")
	}

	startTime := time.Now()

	session := c.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: c.config.Database,
		AccessMode:   neo4j.AccessModeRead,
	})
	defer session.Close(ctx)

	var txOpts []func(*neo4j.TransactionConfig)
	if c.config.QueryTimeout > 0 {
		txOpts = append(txOpts, neo4j.WithTxTimeout(c.config.QueryTimeout))
	}

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		neoResult, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}

		keys, err := neoResult.Keys()
		if err != nil {
			return nil, err
		}

		records, err := neoResult.Collect(ctx)
		if err != nil {
			return nil, err
		}

		return convertNeo4jResult(keys, records), nil
	}, txOpts...)

	if err != nil {
		return QueryResult{}, classifyQueryError(ctx, err)
	}

	queryResult := result.(QueryResult)
	queryResult.Summary.ExecutionTime = time.Since(startTime)

	return queryResult, nil
}

// classifyQueryError maps driver failures onto graph error codes. Statement,
// schema and procedure errors mean the query itself was bad; connectivity
// and security errors mean the store is unavailable.
func classifyQueryError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return types.WrapError(ErrCodeGraphQueryTimeout, "query cancelled", err)
	}

	if neo4j.IsConnectivityError(err) {
		return &types.Error{Code: ErrCodeGraphConnectionLost, Message: "lost connection to Neo4j", Retryable: true, Cause: err}
	}

	var neoErr *neo4j.Neo4jError
	if errors.As(err, &neoErr) {
		switch {
		case strings.HasPrefix(neoErr.Code, "Neo.ClientError.Statement."),
			strings.HasPrefix(neoErr.Code, "Neo.ClientError.Schema."),
			strings.HasPrefix(neoErr.Code, "Neo.ClientError.Procedure."):
			return types.WrapError(ErrCodeGraphInvalidQuery, neoErr.Msg, err)
		case strings.HasPrefix(neoErr.Code, "Neo.ClientError.Transaction.TransactionTimedOut"):
			return types.WrapError(ErrCodeGraphQueryTimeout, neoErr.Msg, err)
		case strings.HasPrefix(neoErr.Code, "Neo.ClientError.Security."):
			return types.WrapError(ErrCodeGraphConnectionFailed, neoErr.Msg, err)
		}
	}

	return types.WrapError(ErrCodeGraphQueryFailed, "query execution failed", err)
}

// convertNeo4jResult converts Neo4j records to our QueryResult format.
func convertNeo4jResult(keys []string, records []*neo4j.Record) QueryResult {
	result := QueryResult{
		Records: make([]map[string]any, 0, len(records)),
		Columns: keys,
	}

	for _, record := range records {
		recordMap := make(map[string]any, len(record.Keys))
		for i, key := range record.Keys {
			recordMap[key] = plainValue(record.Values[i])
		}
		result.Records = append(result.Records, recordMap)
	}

	return result
}

// plainValue converts driver-specific types into values that format and
// marshal predictably.
func plainValue(v any) any {
	switch val := v.(type) {
	case neo4j.Node:
		return plainMap(val.Props)
	case neo4j.Relationship:
		return plainMap(val.Props)
	case neo4j.Date:
		return val.Time().Format("2006-01-02")
	case neo4j.LocalDateTime:
		return val.Time().Format("2006-01-02T15:04:05")
	case neo4j.LocalTime:
		return val.Time().Format("15:04:05")
	case neo4j.Time:
		return val.Time().Format("15:04:05Z07:00")
	case neo4j.Duration:
		return val.String()
	case time.Time:
		return val.Format(time.RFC3339)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = plainValue(item)
		}
		return out
	case map[string]any:
		return plainMap(val)
	default:
		return v
	}
}

func plainMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = plainValue(v)
	}
	return out
}
