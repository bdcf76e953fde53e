package memstore

import (
	"context"
	"sort"
	"sync"

	"nuha.dev/fleettrack/internal/store"
)

// Store keeps the fleet in memory with the same semantics as pgstore.
// Used for development without a database and by package tests.
type Store struct {
	mu      sync.Mutex
	next_id uint64
	list    map[string]*store.Vehicle
}

func NewStore() *Store {
	st := &Store{}
	st.list = make(map[string]*store.Vehicle)
	st.next_id = 1
	return st
}

func clone(v *store.Vehicle) *store.Vehicle {
	c := *v
	return &c
}

func (st *Store) ListAll(ctx context.Context) ([]*store.Vehicle, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	vehicles := make([]*store.Vehicle, 0, len(st.list))
	for _, v := range st.list {
		vehicles = append(vehicles, clone(v))
	}
	sort.Slice(vehicles, func(i, j int) bool { return vehicles[i].Id < vehicles[j].Id })
	return vehicles, nil
}

func (st *Store) GetByImei(ctx context.Context, imei string) (*store.Vehicle, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	v, ok := st.list[imei]
	if !ok {
		return nil, store.ErrNotFound
	}
	return clone(v), nil
}

func (st *Store) Create(ctx context.Context, v *store.Vehicle) (*store.Vehicle, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.list[v.Imei]; ok {
		return nil, store.ErrDuplicate
	}
	created := clone(v)
	created.Id = st.next_id
	st.next_id++
	st.list[v.Imei] = created
	return clone(created), nil
}

func (st *Store) UpdateByImei(ctx context.Context, imei string, upd *store.VehicleUpdate) (*store.Vehicle, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	v, ok := st.list[imei]
	if !ok {
		return nil, store.ErrNotFound
	}
	v.Lat = upd.Lat
	v.Lng = upd.Lng
	v.Timestamp = upd.Timestamp
	if upd.Speed != nil {
		v.Speed = *upd.Speed
	}
	if upd.Battery != nil {
		v.Battery = *upd.Battery
	}
	if upd.Altitude != nil {
		v.Altitude = *upd.Altitude
	}
	return clone(v), nil
}
