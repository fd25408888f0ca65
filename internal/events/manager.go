package events

import (
	"encoding/json"

	"github.com/rs/zerolog"
)

// Manager handles event emission and logging
type Manager struct {
	bus *Bus
	log zerolog.Logger
}

// NewManager creates a new event manager
func NewManager(bus *Bus, log zerolog.Logger) *Manager {
	return &Manager{
		bus: bus,
		log: log.With().Str("service", "events").Logger(),
	}
}

// Bus returns the underlying bus
func (m *Manager) Bus() *Bus {
	return m.bus
}

// EmitTyped emits an event with typed data to the bus and logs it. A nil Manager
// drops the event.
func (m *Manager) EmitTyped(module string, data EventData) {
	if m == nil || data == nil {
		return
	}
	dataMap := convertEventDataToMap(data)
	m.bus.Emit(data.EventType(), module, dataMap)

	// Progress is too chatty for info
	evt := m.log.Info()
	if data.EventType() == BacktestProgress {
		evt = m.log.Debug()
	}
	evt.Str("event_type", string(data.EventType())).
		Str("module", module).
		Msg("Event emitted")
}

// EmitError emits an error event
func (m *Manager) EmitError(module string, err error, context map[string]interface{}) {
	m.EmitTyped(module, &ErrorEventData{
		Error:   err.Error(),
		Context: context,
	})
}

// convertEventDataToMap converts typed EventData to the map carried by Event
func convertEventDataToMap(data EventData) map[string]interface{} {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return nil
	}

	var result map[string]interface{}
	if err := json.Unmarshal(jsonBytes, &result); err != nil {
		return nil
	}
	return result
}
