package hub

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nuha.dev/fleettrack/internal/store"
)

type fakeSub struct {
	mu     sync.Mutex
	name   string
	closed bool
	pushes [][]byte
}

func (f *fakeSub) Push(d []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushes = append(f.pushes, d)
	return nil
}

func (f *fakeSub) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeSub) Name() string { return f.name }

func (f *fakeSub) setClosed() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeSub) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pushes)
}

func testVehicle() *store.Vehicle {
	return &store.Vehicle{Id: 1, Imei: "860738079276675", Lat: 18.465794, Lng: 73.782791, Battery: 100, Timestamp: time.Now().UTC()}
}

func TestPublishFansOutToAllOpenSubscribers(t *testing.T) {
	h := New()
	subs := []*fakeSub{{name: "a"}, {name: "b"}, {name: "c"}}
	for _, s := range subs {
		h.Subscribe(s)
	}

	h.Publish(testVehicle())
	for _, s := range subs {
		assert.Equal(t, 1, s.count(), s.name)
	}
}

func TestPublishPayload(t *testing.T) {
	h := New()
	s := &fakeSub{name: "a"}
	h.Subscribe(s)
	h.Publish(testVehicle())

	require.Equal(t, 1, s.count())
	var ev struct {
		Type    string         `json:"type"`
		Payload *store.Vehicle `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(s.pushes[0], &ev))
	assert.Equal(t, "location_update", ev.Type)
	require.NotNil(t, ev.Payload)
	assert.Equal(t, "860738079276675", ev.Payload.Imei)
	assert.Equal(t, 18.465794, ev.Payload.Lat)
	assert.Equal(t, 73.782791, ev.Payload.Lng)
}

func TestPublishSkipsClosedWithoutRemoving(t *testing.T) {
	h := New()
	open := &fakeSub{name: "open"}
	gone := &fakeSub{name: "gone"}
	h.Subscribe(open)
	h.Subscribe(gone)
	gone.setClosed()

	h.Publish(testVehicle())
	assert.Equal(t, 1, open.count())
	assert.Equal(t, 0, gone.count())
	// removal only happens through Unsubscribe
	assert.Equal(t, 2, h.Count())

	h.Unsubscribe(gone)
	assert.Equal(t, 1, h.Count())
}

func TestUnsubscribedReceivesNothing(t *testing.T) {
	h := New()
	s := &fakeSub{name: "a"}
	h.Subscribe(s)
	h.Unsubscribe(s)
	h.Publish(testVehicle())
	assert.Equal(t, 0, s.count())
}

func TestPublishNoSubscribers(t *testing.T) {
	h := New()
	h.Publish(testVehicle())
	assert.Equal(t, 0, h.Count())
}
