package events

import (
	"context"

	"github.com/mustafaturan/bus/v3"
	"github.com/mustafaturan/monoton/v2"
	"github.com/mustafaturan/monoton/v2/sequencer"
	"github.com/phuslu/log"

	"nuha.dev/fleettrack/internal/store"
)

const TopicLocationUpdated = "vehicle.location_updated"

// Bus is the in-process event bus between the ingestion pipeline and the
// fanout sinks (websocket hub, nats bridge). Event ids are monotonic.
type Bus struct {
	b   *bus.Bus
	log log.Logger
}

func New() (*Bus, error) {
	node := uint64(1)
	m, err := monoton.New(sequencer.NewMillisecond(), node, 0)
	if err != nil {
		return nil, err
	}
	var idgen bus.Next = m.Next
	b, err := bus.NewBus(idgen)
	if err != nil {
		return nil, err
	}
	b.RegisterTopics(TopicLocationUpdated)
	eb := &Bus{b: b}
	eb.log = log.DefaultLogger
	eb.log.Context = log.NewContext(nil).Str("module", "events").Value()
	return eb, nil
}

func (eb *Bus) EmitLocationUpdated(ctx context.Context, v *store.Vehicle) {
	err := eb.b.Emit(ctx, TopicLocationUpdated, v)
	if err != nil {
		eb.log.Error().Err(err).Str("imei", v.Imei).Msg("error emitting location update")
	}
}

// OnLocationUpdated registers fn under key as a synchronous handler for
// location updates.
func (eb *Bus) OnLocationUpdated(key string, fn func(v *store.Vehicle)) {
	eb.b.RegisterHandler(key, bus.Handler{
		Matcher: TopicLocationUpdated,
		Handle: func(ctx context.Context, e bus.Event) {
			v, ok := e.Data.(*store.Vehicle)
			if ok {
				fn(v)
			}
		},
	})
}

func (eb *Bus) Deregister(key string) {
	eb.b.DeregisterHandler(key)
}
