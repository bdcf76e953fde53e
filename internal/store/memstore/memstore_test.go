package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nuha.dev/fleettrack/internal/store"
)

func testVehicle(imei string) *store.Vehicle {
	return &store.Vehicle{
		Imei:      imei,
		Lat:       18.465794,
		Lng:       73.782791,
		Speed:     0,
		Battery:   100,
		Altitude:  0,
		Timestamp: time.Now().UTC(),
	}
}

func TestCreateAndGet(t *testing.T) {
	st := NewStore()
	created, err := st.Create(context.Background(), testVehicle("860738079276675"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), created.Id)

	got, err := st.GetByImei(context.Background(), "860738079276675")
	require.NoError(t, err)
	assert.Equal(t, created.Id, got.Id)
	assert.Equal(t, 18.465794, got.Lat)
}

func TestGetMissing(t *testing.T) {
	st := NewStore()
	_, err := st.GetByImei(context.Background(), "000000000000000")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreateDuplicate(t *testing.T) {
	st := NewStore()
	_, err := st.Create(context.Background(), testVehicle("860738079276675"))
	require.NoError(t, err)
	_, err = st.Create(context.Background(), testVehicle("860738079276675"))
	assert.ErrorIs(t, err, store.ErrDuplicate)
}

func TestUpdatePreservesTelemetry(t *testing.T) {
	st := NewStore()
	v := testVehicle("860738079276675")
	v.Battery = 90
	v.Speed = 45
	_, err := st.Create(context.Background(), v)
	require.NoError(t, err)

	ts := time.Now().UTC()
	updated, err := st.UpdateByImei(context.Background(), "860738079276675", &store.VehicleUpdate{
		Lat: 19.0, Lng: 74.0, Timestamp: ts,
	})
	require.NoError(t, err)
	assert.Equal(t, 19.0, updated.Lat)
	assert.Equal(t, 74.0, updated.Lng)
	assert.Equal(t, 90.0, updated.Battery)
	assert.Equal(t, 45.0, updated.Speed)
	assert.Equal(t, ts, updated.Timestamp)
}

func TestUpdateSuppliedTelemetry(t *testing.T) {
	st := NewStore()
	_, err := st.Create(context.Background(), testVehicle("860738079276675"))
	require.NoError(t, err)

	speed := 60.0
	updated, err := st.UpdateByImei(context.Background(), "860738079276675", &store.VehicleUpdate{
		Lat: 19.0, Lng: 74.0, Speed: &speed, Timestamp: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, 60.0, updated.Speed)
}

func TestUpdateMissing(t *testing.T) {
	st := NewStore()
	_, err := st.UpdateByImei(context.Background(), "000000000000000", &store.VehicleUpdate{Lat: 1, Lng: 2, Timestamp: time.Now()})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestListAllOrdered(t *testing.T) {
	st := NewStore()
	_, err := st.Create(context.Background(), testVehicle("860738079276675"))
	require.NoError(t, err)
	_, err = st.Create(context.Background(), testVehicle("860738079276676"))
	require.NoError(t, err)

	vehicles, err := st.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, vehicles, 2)
	assert.Equal(t, uint64(1), vehicles[0].Id)
	assert.Equal(t, uint64(2), vehicles[1].Id)
}

func TestReturnedVehicleIsACopy(t *testing.T) {
	st := NewStore()
	created, err := st.Create(context.Background(), testVehicle("860738079276675"))
	require.NoError(t, err)
	created.Lat = 99

	got, err := st.GetByImei(context.Background(), "860738079276675")
	require.NoError(t, err)
	assert.Equal(t, 18.465794, got.Lat)
}
