// Package geo provides the temporal and geospatial helpers used by the location checks.
package geo

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/Veraticus/the-proof-must-flow/internal/model"
)

// EarthRadiusMeters is the fixed sphere radius used for great-circle distance.
const EarthRadiusMeters = 6371000.0

const geoMarker = "geo:"

// ParseTime parses a free-form timestamp. It returns nil for empty or
// unparseable input; callers must treat nil as "skip", never as zero.
func ParseTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return nil
	}
	return &t
}

// Haversine returns the great-circle distance in meters.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180.0
	phi2 := lat2 * math.Pi / 180.0
	dPhi := phi2 - phi1
	dLambda := (lon2 - lon1) * math.Pi / 180.0

	sinPhi := math.Sin(dPhi / 2)
	sinLambda := math.Sin(dLambda / 2)
	a := sinPhi*sinPhi + math.Cos(phi1)*math.Cos(phi2)*sinLambda*sinLambda
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMeters * c
}

// Distance is Haversine over two points.
func Distance(a, b model.GeoPoint) float64 {
	return Haversine(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
}

// CalcSpeed returns meters per second. It is 0 when either time is absent or
// the elapsed time is not positive.
func CalcSpeed(distanceMeters float64, t1, t2 *time.Time) float64 {
	if t1 == nil || t2 == nil {
		return 0
	}
	dt := t2.Sub(*t1).Seconds()
	if dt <= 0 {
		return 0
	}
	return distanceMeters / dt
}

// ParseGeoString decodes "geo:<lat>,<lon>". Anything else yields nil.
func ParseGeoString(s string) *model.GeoPoint {
	idx := strings.Index(s, geoMarker)
	if idx < 0 {
		return nil
	}
	coords := s[idx+len(geoMarker):]
	if strings.Contains(coords, geoMarker) {
		coords = coords[:strings.Index(coords, geoMarker)]
	}
	parts := strings.Split(coords, ",")
	if len(parts) != 2 {
		return nil
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return nil
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return nil
	}
	return &model.GeoPoint{Latitude: lat, Longitude: lon}
}

// FromE7 decodes fixed-point E7 coordinates, rejecting out-of-range values.
func FromE7(latE7, lngE7 float64) *model.GeoPoint {
	lat := latE7 / 1e7
	lng := lngE7 / 1e7
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return nil
	}
	return &model.GeoPoint{Latitude: lat, Longitude: lng}
}
