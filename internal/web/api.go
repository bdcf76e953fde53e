package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	hashids "github.com/speps/go-hashids/v2"

	"nuha.dev/fleettrack/internal/hub"
	"nuha.dev/fleettrack/internal/ingest"
	"nuha.dev/fleettrack/internal/store"
	"nuha.dev/fleettrack/internal/util"
	"nuha.dev/fleettrack/internal/web/webstream"
)

type ApiConfig struct {
	ListenAddr string
	HashidSalt string
}

type Api struct {
	r        chi.Router
	s        *http.Server
	config   *ApiConfig
	log      zerolog.Logger
	store    store.VehicleStore
	svc      *ingest.Service
	hid      *hashids.HashID
	validate *validator.Validate
}

type ErrorResponse struct {
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type UpdateLocationRequest struct {
	Lat       *float64   `json:"lat" validate:"required,gte=-90,lte=90"`
	Lng       *float64   `json:"lng" validate:"required,gte=-180,lte=180"`
	Speed     *float64   `json:"speed" validate:"omitempty,gte=0"`
	Battery   *float64   `json:"battery" validate:"omitempty,gte=0,lte=100"`
	Altitude  *float64   `json:"altitude"`
	Timestamp *time.Time `json:"timestamp"`
}

func NewApi(st store.VehicleStore, svc *ingest.Service, h *hub.Hub, config *ApiConfig) *Api {
	api := &Api{config: config}
	api.log = log.With().Str("module", "api").Logger()
	api.store = st
	api.svc = svc
	api.validate = validator.New()

	hd := hashids.NewData()
	hd.Salt = config.HashidSalt
	hd.MinLength = 8
	hid, err := hashids.NewWithData(hd)
	if err != nil {
		panic(err)
	}
	api.hid = hid

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.Recoverer)
	r.Get("/api/vehicles", api.listVehicles)
	r.Put("/api/vehicles/{imei}/location", api.updateLocation)
	r.Get("/ws", webstream.NewHandler(h).ServeHTTP)
	api.r = r

	api.s = &http.Server{
		Addr:           config.ListenAddr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	return api
}

// Router exposes the handler tree for tests.
func (api *Api) Router() http.Handler {
	return api.r
}

func (api *Api) Run() {
	err := api.s.ListenAndServe()
	if err != nil {
		panic(err)
	}
}

// publicId obfuscates the store surrogate id, the frontend only uses it
// for existence and equality.
func (api *Api) publicId(id uint64) string {
	s, err := api.hid.EncodeInt64([]int64{int64(id)})
	if err != nil {
		return ""
	}
	return s
}

func (api *Api) listVehicles(w http.ResponseWriter, r *http.Request) {
	vehicles, err := api.store.ListAll(r.Context())
	if err != nil {
		api.log.Err(err).Msg("error listing vehicles")
		writeError(w, http.StatusInternalServerError, "internal server error", "")
		return
	}
	for _, v := range vehicles {
		v.PublicId = api.publicId(v.Id)
	}
	util.JsonWrite(w, vehicles)
}

func (api *Api) updateLocation(w http.ResponseWriter, r *http.Request) {
	imei := chi.URLParam(r, "imei")
	req := UpdateLocationRequest{}
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body", "")
		return
	}
	err = api.validate.Struct(&req)
	if err != nil {
		var verrs validator.ValidationErrors
		msg, field := "validation failed", ""
		if errors.As(err, &verrs) && len(verrs) > 0 {
			field = strings.ToLower(verrs[0].Field())
			msg = "invalid value for " + field
		}
		writeError(w, http.StatusBadRequest, msg, field)
		return
	}

	rep := ingest.Report{
		Imei:     imei,
		Lat:      *req.Lat,
		Lng:      *req.Lng,
		Speed:    req.Speed,
		Battery:  req.Battery,
		Altitude: req.Altitude,
	}
	if req.Timestamp != nil {
		rep.Timestamp = *req.Timestamp
	}
	v, err := api.svc.Ingest(r.Context(), rep)
	if err != nil {
		api.log.Err(err).Str("imei", imei).Msg("error ingesting location update")
		writeError(w, http.StatusInternalServerError, "internal server error", "")
		return
	}
	v.PublicId = api.publicId(v.Id)
	util.JsonWrite(w, v)
}

func writeError(w http.ResponseWriter, code int, message, field string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Message: message, Field: field})
}
