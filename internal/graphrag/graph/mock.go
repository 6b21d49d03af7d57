package graph

import (
	"context"
	"sync"

	"github.com/zero-day-ai/graphqa/internal/types"
)

// MockCall represents a recorded Query call on the mock graph client.
type MockCall struct {
	Cypher string
	Params map[string]any
}

// QueryFunc answers a query in a MockGraphClient.
type QueryFunc func(cypher string, params map[string]any) (QueryResult, error)

// MockGraphClient is a mock implementation of GraphClient for testing.
// Queries are answered by a QueryFunc when set, otherwise from a queue of
// canned results (the last one repeats).
type MockGraphClient struct {
	mu sync.RWMutex

	connected    bool
	healthStatus types.HealthStatus
	calls        []MockCall

	queryFunc    QueryFunc
	queryResults []QueryResult
	queryError   error
	connectError error
}

// NewMockGraphClient creates a new mock graph client for testing.
func NewMockGraphClient() *MockGraphClient {
	return &MockGraphClient{
		healthStatus: types.Healthy("mock graph client"),
		calls:        make([]MockCall, 0),
	}
}

// Connect simulates connection.
func (m *MockGraphClient) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connectError != nil {
		return m.connectError
	}
	m.connected = true
	return nil
}

// Close simulates disconnection.
func (m *MockGraphClient) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	return nil
}

// Health returns the configured health status.
func (m *MockGraphClient) Health(ctx context.Context) types.HealthStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.healthStatus
}

// Query records the call and returns the configured response.
func (m *MockGraphClient) Query(ctx context.Context, cypher string, params map[string]any) (QueryResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Cypher: cypher, Params: params})
	fn := m.queryFunc
	err := m.queryError

	var result QueryResult
	if fn == nil && err == nil && len(m.queryResults) > 0 {
		result = m.queryResults[0]
		if len(m.queryResults) > 1 {
			m.queryResults = m.queryResults[1:]
		}
	}
	m.mu.Unlock()

	if ctx.Err() != nil {
		return QueryResult{}, types.WrapError(ErrCodeGraphQueryTimeout, "query cancelled", ctx.Err())
	}
	if fn != nil {
		return fn(cypher, params)
	}
	if err != nil {
		return QueryResult{}, err
	}
	return result, nil
}

// SetQueryFunc answers every query with fn.
func (m *MockGraphClient) SetQueryFunc(fn QueryFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queryFunc = fn
}

// AddQueryResult queues a result for the next Query call.
func (m *MockGraphClient) AddQueryResult(result QueryResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queryResults = append(m.queryResults, result)
}

// SetQueryError makes every Query call fail with err.
func (m *MockGraphClient) SetQueryError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queryError = err
}

// SetConnectError makes Connect fail with err.
func (m *MockGraphClient) SetConnectError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectError = err
}

// SetHealthStatus configures what Health() returns.
func (m *MockGraphClient) SetHealthStatus(status types.HealthStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthStatus = status
}

// GetCalls returns all recorded Query calls.
func (m *MockGraphClient) GetCalls() []MockCall {
	m.mu.RLock()
	defer m.mu.RUnlock()

	calls := make([]MockCall, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// CallCount returns the number of Query calls.
func (m *MockGraphClient) CallCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.calls)
}

// IsConnected returns whether Connect has been called without a later Close.
func (m *MockGraphClient) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}
