package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/phuslu/log"

	"nuha.dev/fleettrack/internal/events"
	"nuha.dev/fleettrack/internal/store"
)

// Telemetry defaults applied when the first report for an imei carries no
// telemetry fields.
const (
	DefaultSpeed    float64 = 0
	DefaultBattery  float64 = 100
	DefaultAltitude float64 = 0
)

var ErrIngestFailed = errors.New("ingest failed")

// Report is one accepted location report, from either the tcp or the http
// front door. Nil telemetry pointers mean "not supplied". A zero Timestamp
// defaults to ingestion time.
type Report struct {
	Imei      string
	Lat       float64
	Lng       float64
	Speed     *float64
	Battery   *float64
	Altitude  *float64
	Timestamp time.Time
}

type Service struct {
	store store.VehicleStore
	bus   *events.Bus
	log   log.Logger

	mu   sync.Mutex
	keys map[string]*sync.Mutex
}

func New(st store.VehicleStore, bus *events.Bus) *Service {
	s := &Service{}
	s.store = st
	s.bus = bus
	s.keys = make(map[string]*sync.Mutex)
	s.log = log.DefaultLogger
	s.log.Context = log.NewContext(nil).Str("module", "ingest").Value()
	return s
}

// keyLock serializes upserts per imei so two concurrent reports for the
// same never-seen device cannot both take the create path.
func (s *Service) keyLock(imei string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.keys[imei]
	if !ok {
		l = &sync.Mutex{}
		s.keys[imei] = l
	}
	return l
}

// Ingest reconciles one report against the last known state of its device:
// create on first contact, update in place afterwards. Omitted telemetry
// never resets stored values. Returns the canonical post-write record and
// emits it on the event bus.
func (s *Service) Ingest(ctx context.Context, r Report) (*store.Vehicle, error) {
	l := s.keyLock(r.Imei)
	l.Lock()
	defer l.Unlock()

	ts := r.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	v, err := s.store.GetByImei(ctx, r.Imei)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrIngestFailed, err)
	}
	if v == nil {
		v, err = s.create(ctx, r, ts)
	} else {
		v, err = s.update(ctx, r, ts)
	}
	if err != nil {
		return nil, err
	}
	s.log.Debug().Str("imei", v.Imei).Float64("lat", v.Lat).Float64("lng", v.Lng).Msg("report applied")
	s.bus.EmitLocationUpdated(ctx, v)
	return v, nil
}

func (s *Service) create(ctx context.Context, r Report, ts time.Time) (*store.Vehicle, error) {
	nv := &store.Vehicle{
		Imei:      r.Imei,
		Lat:       r.Lat,
		Lng:       r.Lng,
		Speed:     telemetryOr(r.Speed, DefaultSpeed),
		Battery:   telemetryOr(r.Battery, DefaultBattery),
		Altitude:  telemetryOr(r.Altitude, DefaultAltitude),
		Timestamp: ts,
	}
	v, err := s.store.Create(ctx, nv)
	if errors.Is(err, store.ErrDuplicate) {
		// lost a create race to another writer, apply as update instead
		return s.update(ctx, r, ts)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIngestFailed, err)
	}
	s.log.Info().Str("event", "vehicle_created").Str("imei", v.Imei).Msg("")
	return v, nil
}

func (s *Service) update(ctx context.Context, r Report, ts time.Time) (*store.Vehicle, error) {
	upd := &store.VehicleUpdate{
		Lat:       r.Lat,
		Lng:       r.Lng,
		Speed:     r.Speed,
		Battery:   r.Battery,
		Altitude:  r.Altitude,
		Timestamp: ts,
	}
	v, err := s.store.UpdateByImei(ctx, r.Imei, upd)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIngestFailed, err)
	}
	return v, nil
}

func telemetryOr(p *float64, def float64) float64 {
	if p != nil {
		return *p
	}
	return def
}
