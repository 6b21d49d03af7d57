package types

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// HealthState represents the health state of a system component
type HealthState string

const (
	HealthStateHealthy   HealthState = "healthy"
	HealthStateDegraded  HealthState = "degraded"
	HealthStateUnhealthy HealthState = "unhealthy"
)

// String returns the string representation of HealthState
func (s HealthState) String() string {
	return string(s)
}

// IsValid checks if the HealthState is a valid value
func (s HealthState) IsValid() bool {
	switch s {
	case HealthStateHealthy, HealthStateDegraded, HealthStateUnhealthy:
		return true
	default:
		return false
	}
}

func (s HealthState) rank() int {
	switch s {
	case HealthStateHealthy:
		return 0
	case HealthStateDegraded:
		return 1
	default:
		return 2
	}
}

// MarshalJSON implements json.Marshaler
func (s HealthState) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements json.Unmarshaler
func (s *HealthState) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	state := HealthState(str)
	if !state.IsValid() {
		return fmt.Errorf("invalid health state: %s", str)
	}

	*s = state
	return nil
}

// HealthStatus represents the health status of a system component with state,
// message, and timestamp information.
type HealthStatus struct {
	State     HealthState `json:"state"`
	Message   string      `json:"message,omitempty"`
	CheckedAt time.Time   `json:"checked_at"`
}

// NewHealthStatus creates a new HealthStatus with the given state and message.
// CheckedAt is automatically set to the current time.
func NewHealthStatus(state HealthState, message string) HealthStatus {
	return HealthStatus{
		State:     state,
		Message:   message,
		CheckedAt: time.Now(),
	}
}

// Healthy creates a new HealthStatus with HealthStateHealthy state.
func Healthy(message string) HealthStatus {
	return NewHealthStatus(HealthStateHealthy, message)
}

// Degraded creates a new HealthStatus with HealthStateDegraded state.
func Degraded(message string) HealthStatus {
	return NewHealthStatus(HealthStateDegraded, message)
}

// Unhealthy creates a new HealthStatus with HealthStateUnhealthy state.
func Unhealthy(message string) HealthStatus {
	return NewHealthStatus(HealthStateUnhealthy, message)
}

func (h HealthStatus) IsHealthy() bool {
	return h.State == HealthStateHealthy
}

func (h HealthStatus) IsDegraded() bool {
	return h.State == HealthStateDegraded
}

func (h HealthStatus) IsUnhealthy() bool {
	return h.State == HealthStateUnhealthy
}

// HealthReport is the combined health of several named components.
type HealthReport struct {
	State      HealthState             `json:"state"`
	Components map[string]HealthStatus `json:"components"`
	CheckedAt  time.Time               `json:"checked_at"`
}

// NewHealthReport aggregates component statuses. The overall state is the worst
// component state; a report with no components is healthy.
func NewHealthReport(components map[string]HealthStatus) HealthReport {
	report := HealthReport{
		State:      HealthStateHealthy,
		Components: components,
		CheckedAt:  time.Now(),
	}
	for _, status := range components {
		if status.State.rank() > report.State.rank() {
			report.State = status.State
		}
	}
	return report
}

// Failing returns the names of components that are not healthy, sorted.
func (r HealthReport) Failing() []string {
	var names []string
	for name, status := range r.Components {
		if !status.IsHealthy() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
