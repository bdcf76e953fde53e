package broker

import (
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"nuha.dev/fleettrack/internal/hub"
	"nuha.dev/fleettrack/internal/store"
)

const SubjectLocationUpdated = "fleet.location_updated"

// Broker republishes accepted reports on a nats subject for observers
// living outside this process.
type Broker struct {
	nc     *nats.Conn
	logger zerolog.Logger
}

func NewBroker(url string) (*Broker, error) {
	br := &Broker{}
	br.logger = log.With().Str("module", "broker").Logger()
	nc, err := nats.Connect(url, nats.Name("fleettrack"))
	if err != nil {
		br.logger.Err(err).Str("url", url).Msg("unable to connect to nats")
		return nil, err
	}
	br.nc = nc
	br.logger.Info().Str("url", url).Msg("connected to nats")
	return br, nil
}

func (br *Broker) PublishLocation(v *store.Vehicle) {
	d, err := hub.EncodeLocationUpdate(v)
	if err != nil {
		br.logger.Err(err).Str("imei", v.Imei).Msg("error encoding location update")
		return
	}
	err = br.nc.Publish(SubjectLocationUpdated, d)
	if err != nil {
		br.logger.Err(err).Str("imei", v.Imei).Msg("error publishing location update")
	}
}

func (br *Broker) Close() {
	err := br.nc.Drain()
	if err != nil {
		br.logger.Err(err).Msg("error draining nats connection")
	}
}
