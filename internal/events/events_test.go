package events

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nuha.dev/fleettrack/internal/store"
)

func TestEmitReachesRegisteredHandlers(t *testing.T) {
	eb, err := New()
	require.NoError(t, err)

	var mu sync.Mutex
	got := make(map[string]int)
	eb.OnLocationUpdated("first", func(v *store.Vehicle) {
		mu.Lock()
		got["first"]++
		mu.Unlock()
	})
	eb.OnLocationUpdated("second", func(v *store.Vehicle) {
		mu.Lock()
		got["second"]++
		mu.Unlock()
	})

	eb.EmitLocationUpdated(context.Background(), &store.Vehicle{Imei: "860738079276675"})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, got["first"])
	assert.Equal(t, 1, got["second"])
}

func TestDeregisteredHandlerStopsReceiving(t *testing.T) {
	eb, err := New()
	require.NoError(t, err)

	var mu sync.Mutex
	n := 0
	eb.OnLocationUpdated("counter", func(v *store.Vehicle) {
		mu.Lock()
		n++
		mu.Unlock()
	})

	eb.EmitLocationUpdated(context.Background(), &store.Vehicle{Imei: "860738079276675"})
	eb.Deregister("counter")
	eb.EmitLocationUpdated(context.Background(), &store.Vehicle{Imei: "860738079276675"})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, n)
}
