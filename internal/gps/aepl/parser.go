package aepl

import (
	"errors"
	"strconv"
	"strings"
)

// Comma-delimited ASCII tracker records, e.g.
// $1,AEPL,0.0.1,NR,2,H,860738079276675,X,18.465794,N,73.782791,E,X
// The imei sits at a fixed offset in the known firmware layout but the
// preamble length drifts across variants, so coordinates are anchored on
// the N/S and E/W hemisphere markers instead of field positions.

const imeiField = 6

var ErrBadFrame = errors.New("bad frame")

type LocationMessage struct {
	IMEI      string
	Latitude  float64
	Longitude float64
}

// Parse extracts identity and coordinates from one record. Extraction is
// all or nothing: a missing imei or a missing hemisphere marker rejects
// the whole record. The first marker of each axis wins.
func Parse(msg string) (*LocationMessage, error) {
	parts := strings.Split(msg, ",")

	imei := ""
	if len(parts) > imeiField && isImei(parts[imeiField]) {
		imei = parts[imeiField]
	} else {
		for _, p := range parts {
			if isImei(p) {
				imei = p
				break
			}
		}
	}
	if imei == "" {
		return nil, ErrBadFrame
	}

	var lat, lon float64
	var hasLat, hasLon bool
	for i := 1; i < len(parts); i++ {
		switch parts[i] {
		case "N", "S":
			if hasLat {
				continue
			}
			v, err := strconv.ParseFloat(parts[i-1], 64)
			if err != nil {
				return nil, ErrBadFrame
			}
			if parts[i] == "S" {
				v = -v
			}
			lat = v
			hasLat = true
		case "E", "W":
			if hasLon {
				continue
			}
			v, err := strconv.ParseFloat(parts[i-1], 64)
			if err != nil {
				return nil, ErrBadFrame
			}
			if parts[i] == "W" {
				v = -v
			}
			lon = v
			hasLon = true
		}
	}
	if !hasLat || !hasLon {
		return nil, ErrBadFrame
	}
	return &LocationMessage{IMEI: imei, Latitude: lat, Longitude: lon}, nil
}

func isImei(s string) bool {
	if len(s) != 15 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
