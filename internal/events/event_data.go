package events

// EventData is the interface that all event data types must implement
// This allows for type-safe event data while maintaining flexibility
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// BacktestStartedData contains data for BacktestStarted events
type BacktestStartedData struct {
	RunID     string   `json:"run_id"`
	Tickers   []string `json:"tickers"`
	StartDate string   `json:"start_date"`
	EndDate   string   `json:"end_date"`
	Rebalance string   `json:"rebalance"`
}

// EventType returns the event type for BacktestStartedData
func (d *BacktestStartedData) EventType() EventType {
	return BacktestStarted
}

// BacktestProgressData contains data for BacktestProgress events
type BacktestProgressData struct {
	RunID   string  `json:"run_id"`
	Message string  `json:"message"`
	Percent float64 `json:"percent"`
}

// EventType returns the event type for BacktestProgressData
func (d *BacktestProgressData) EventType() EventType {
	return BacktestProgress
}

// BacktestCompletedData contains data for BacktestCompleted events
type BacktestCompletedData struct {
	RunID       string  `json:"run_id"`
	FinalValue  float64 `json:"final_value"`
	TotalReturn float64 `json:"total_return"`
	SharpeRatio float64 `json:"sharpe_ratio"`
	MaxDrawdown float64 `json:"max_drawdown"`
	Warnings    int     `json:"warnings"`
}

// EventType returns the event type for BacktestCompletedData
func (d *BacktestCompletedData) EventType() EventType {
	return BacktestCompleted
}

// BacktestFailedData contains data for BacktestFailed events
type BacktestFailedData struct {
	RunID string `json:"run_id"`
	Error string `json:"error"`
}

// EventType returns the event type for BacktestFailedData
func (d *BacktestFailedData) EventType() EventType {
	return BacktestFailed
}

// PriceHistoryRefreshedData contains data for PriceHistoryRefreshed events
type PriceHistoryRefreshedData struct {
	Refreshed  int   `json:"refreshed"`
	DurationMs int64 `json:"duration_ms"`
}

// EventType returns the event type for PriceHistoryRefreshedData
func (d *PriceHistoryRefreshedData) EventType() EventType {
	return PriceHistoryRefreshed
}

// RunArchivedData contains data for RunArchived events
type RunArchivedData struct {
	RunID    string `json:"run_id"`
	Location string `json:"location"`
}

// EventType returns the event type for RunArchivedData
func (d *RunArchivedData) EventType() EventType {
	return RunArchived
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}
