package hub

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"nuha.dev/fleettrack/internal/store"
)

// Subscriber is one live observer connection. Push must not block, Closed
// reports whether the underlying transport is gone.
type Subscriber interface {
	Push(d []byte) error
	Closed() bool
	Name() string
}

type envelope struct {
	Type    string         `json:"type"`
	Payload *store.Vehicle `json:"payload"`
}

// EncodeLocationUpdate serializes the live update event pushed to
// subscribers and published on the broker bridge.
func EncodeLocationUpdate(v *store.Vehicle) ([]byte, error) {
	return json.Marshal(envelope{Type: "location_update", Payload: v})
}

// Hub fans one accepted report out to every open subscriber. Delivery is
// fire and forget, observers heal missed updates through the periodic
// full fleet refresh against the store.
type Hub struct {
	mu     sync.Mutex
	subs   map[Subscriber]bool
	logger zerolog.Logger
}

func New() *Hub {
	h := &Hub{}
	h.subs = make(map[Subscriber]bool)
	h.logger = log.With().Str("module", "hub").Logger()
	return h
}

func (h *Hub) Subscribe(sub Subscriber) {
	h.mu.Lock()
	h.subs[sub] = true
	h.mu.Unlock()
	h.logger.Debug().Str("subscriber", sub.Name()).Msg("subscribed")
}

func (h *Hub) Unsubscribe(sub Subscriber) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
	h.logger.Debug().Str("subscriber", sub.Name()).Msg("unsubscribed")
}

func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Publish sends v to every subscriber that is still open. Closed
// subscribers are skipped, removal happens through Unsubscribe when the
// transport reports the close.
func (h *Hub) Publish(v *store.Vehicle) {
	d, err := EncodeLocationUpdate(v)
	if err != nil {
		h.logger.Err(err).Str("imei", v.Imei).Msg("error encoding location update")
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		if sub.Closed() {
			continue
		}
		err := sub.Push(d)
		if err != nil {
			h.logger.Debug().Err(err).Str("subscriber", sub.Name()).Msg("push failed")
		}
	}
}
