package pgstore

import (
	"context"
	"errors"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/phuslu/log"

	"nuha.dev/fleettrack/internal/store"
)

const vehicleCols = `id,imei,lat,lng,speed,battery,altitude,"timestamp"`

type Store struct {
	db  *pgxpool.Pool
	log log.Logger
}

func NewStore(db *pgxpool.Pool) *Store {
	st := &Store{}
	st.db = db
	st.log = log.DefaultLogger
	st.log.Context = log.NewContext(nil).Str("module", "pgstore").Value()
	return st
}

func scanVehicle(row pgx.Row) (*store.Vehicle, error) {
	v := &store.Vehicle{}
	err := row.Scan(&v.Id, &v.Imei, &v.Lat, &v.Lng, &v.Speed, &v.Battery, &v.Altitude, &v.Timestamp)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (st *Store) ListAll(ctx context.Context) ([]*store.Vehicle, error) {
	rows, err := st.db.Query(ctx, `SELECT `+vehicleCols+` FROM vehicles ORDER BY id`)
	if err != nil {
		st.log.Error().Err(err).Msg("error listing vehicles")
		return nil, err
	}
	defer rows.Close()
	vehicles := make([]*store.Vehicle, 0)
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, rows.Err()
}

func (st *Store) GetByImei(ctx context.Context, imei string) (*store.Vehicle, error) {
	row := st.db.QueryRow(ctx, `SELECT `+vehicleCols+` FROM vehicles WHERE imei = $1`, imei)
	v, err := scanVehicle(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		st.log.Error().Err(err).Str("imei", imei).Msg("error querying vehicle by imei")
		return nil, err
	}
	return v, nil
}

func (st *Store) Create(ctx context.Context, v *store.Vehicle) (*store.Vehicle, error) {
	insertSql := `INSERT INTO vehicles (imei,lat,lng,speed,battery,altitude,"timestamp")
		VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING ` + vehicleCols
	row := st.db.QueryRow(ctx, insertSql, v.Imei, v.Lat, v.Lng, v.Speed, v.Battery, v.Altitude, v.Timestamp)
	created, err := scanVehicle(row)
	if err != nil {
		var pgerr *pgconn.PgError
		if errors.As(err, &pgerr) && pgerr.Code == pgerrcode.UniqueViolation {
			return nil, store.ErrDuplicate
		}
		st.log.Error().Err(err).Str("imei", v.Imei).Msg("error inserting vehicle")
		return nil, err
	}
	return created, nil
}

func (st *Store) UpdateByImei(ctx context.Context, imei string, upd *store.VehicleUpdate) (*store.Vehicle, error) {
	// nil telemetry arguments become SQL NULL, COALESCE keeps the stored value
	updateSql := `UPDATE vehicles SET lat = $2, lng = $3,
		speed = COALESCE($4, speed),
		battery = COALESCE($5, battery),
		altitude = COALESCE($6, altitude),
		"timestamp" = $7
		WHERE imei = $1 RETURNING ` + vehicleCols
	row := st.db.QueryRow(ctx, updateSql, imei, upd.Lat, upd.Lng, upd.Speed, upd.Battery, upd.Altitude, upd.Timestamp)
	updated, err := scanVehicle(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		st.log.Error().Err(err).Str("imei", imei).Msg("error updating vehicle")
		return nil, err
	}
	return updated, nil
}
