package store

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("vehicle not found")
var ErrDuplicate = errors.New("duplicate imei")

type Vehicle struct {
	Id        uint64    `json:"id"`
	PublicId  string    `json:"public_id,omitempty"`
	Imei      string    `json:"imei"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Speed     float64   `json:"speed"`
	Battery   float64   `json:"battery"`
	Altitude  float64   `json:"altitude"`
	Timestamp time.Time `json:"timestamp"`
}

// VehicleUpdate carries the fields an accepted report may change.
// Coordinates and timestamp are always written, nil telemetry pointers
// preserve the previously stored values.
type VehicleUpdate struct {
	Lat       float64
	Lng       float64
	Speed     *float64
	Battery   *float64
	Altitude  *float64
	Timestamp time.Time
}

type VehicleStore interface {
	ListAll(ctx context.Context) ([]*Vehicle, error)
	GetByImei(ctx context.Context, imei string) (*Vehicle, error)
	Create(ctx context.Context, v *Vehicle) (*Vehicle, error)
	UpdateByImei(ctx context.Context, imei string, upd *VehicleUpdate) (*Vehicle, error)
}
