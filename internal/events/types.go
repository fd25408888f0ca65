// Package events provides the in-process event bus that carries backtest progress and
// data-layer notifications to subscribers such as the SSE stream.
package events

import "time"

// EventType represents different event types
type EventType string

const (
	BacktestStarted   EventType = "BACKTEST_STARTED"
	BacktestProgress  EventType = "BACKTEST_PROGRESS"
	BacktestCompleted EventType = "BACKTEST_COMPLETED"
	BacktestFailed    EventType = "BACKTEST_FAILED"

	PriceHistoryRefreshed EventType = "PRICE_HISTORY_REFRESHED"
	RunArchived           EventType = "RUN_ARCHIVED"

	ErrorOccurred EventType = "ERROR_OCCURRED"
)

// AllEventTypes lists every type the system emits
var AllEventTypes = []EventType{
	BacktestStarted,
	BacktestProgress,
	BacktestCompleted,
	BacktestFailed,
	PriceHistoryRefreshed,
	RunArchived,
	ErrorOccurred,
}

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Module    string                 `json:"module"`
}
