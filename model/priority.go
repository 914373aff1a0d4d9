package model

import "fmt"

// Priority is the class of an outbound request; it selects the request deadline.
type Priority string

const (
	PriorityLow  Priority = "low"
	PriorityHigh Priority = "high"
)

// ParsePriority maps an empty string to PriorityLow.
func ParsePriority(s string) (Priority, error) {
	switch Priority(s) {
	case "", PriorityLow:
		return PriorityLow, nil
	case PriorityHigh:
		return PriorityHigh, nil
	default:
		return "", fmt.Errorf("unknown priority %q", s)
	}
}
