package events

import (
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_SubscribeEmitUnsubscribe(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var got []*Event
	unsubscribe := bus.Subscribe(BacktestStarted, func(e *Event) { got = append(got, e) })
	bus.Subscribe(BacktestFailed, func(e *Event) { t.Fatal("wrong type delivered") })

	bus.Emit(BacktestStarted, "backtest", map[string]interface{}{"run_id": "r1"})
	require.Len(t, got, 1)
	assert.Equal(t, BacktestStarted, got[0].Type)
	assert.Equal(t, "backtest", got[0].Module)
	assert.Equal(t, "r1", got[0].Data["run_id"])
	assert.False(t, got[0].Timestamp.IsZero())

	unsubscribe()
	assert.Equal(t, 0, bus.SubscriberCount(BacktestStarted))
	bus.Emit(BacktestStarted, "backtest", nil)
	assert.Len(t, got, 1)
}

func TestBus_UnsubscribeKeepsOthers(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	a, b := 0, 0
	unsubA := bus.Subscribe(BacktestProgress, func(*Event) { a++ })
	bus.Subscribe(BacktestProgress, func(*Event) { b++ })

	unsubA()
	unsubA()
	bus.Emit(BacktestProgress, "x", nil)

	assert.Equal(t, 0, a)
	assert.Equal(t, 1, b)
}

func TestBus_ConcurrentEmit(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	var mu sync.Mutex
	count := 0
	bus.Subscribe(BacktestProgress, func(*Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Emit(BacktestProgress, "x", nil)
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, count)
}

func TestManager_EmitTyped(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	m := NewManager(bus, zerolog.Nop())

	var got *Event
	bus.Subscribe(BacktestCompleted, func(e *Event) { got = e })
	m.EmitTyped("backtest", &BacktestCompletedData{RunID: "r2", FinalValue: 1234.5, Warnings: 2})

	require.NotNil(t, got)
	assert.Equal(t, "r2", got.Data["run_id"])
	assert.Equal(t, 1234.5, got.Data["final_value"])
	assert.Equal(t, float64(2), got.Data["warnings"])
}

func TestManager_EmitError(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	m := NewManager(bus, zerolog.Nop())

	var got *Event
	bus.Subscribe(ErrorOccurred, func(e *Event) { got = e })
	m.EmitError("scheduler", errors.New("boom"), map[string]interface{}{"job": "refresh"})

	require.NotNil(t, got)
	assert.Equal(t, "boom", got.Data["error"])
	assert.Equal(t, "refresh", got.Data["context"].(map[string]interface{})["job"])
}

func TestManager_NilIsNoop(t *testing.T) {
	var m *Manager
	assert.NotPanics(t, func() {
		m.EmitTyped("x", &BacktestFailedData{RunID: "r"})
	})
}
