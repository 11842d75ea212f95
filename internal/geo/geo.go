// Package geo parses the coordinates and units used by the tour search
// endpoints and converts distances for MongoDB's spherical operators.
package geo

import (
	"math"
	"strconv"
	"strings"

	"github.com/arzan03/natours/internal/apperror"
)

const (
	earthRadiusMi = 3963.2
	earthRadiusKm = 6378.1

	metersToMiles = 0.000621371
	metersToKm    = 0.001
)

type Unit string

const (
	Miles      Unit = "mi"
	Kilometers Unit = "km"
)

// ParseUnit accepts "mi"; anything else is treated as kilometres.
func ParseUnit(raw string) Unit {
	if strings.EqualFold(raw, string(Miles)) {
		return Miles
	}
	return Kilometers
}

// Point is a GeoJSON position in [lng, lat] order.
type Point struct {
	Lat float64
	Lng float64
}

func (p Point) Coordinates() []float64 { return []float64{p.Lng, p.Lat} }

var errLatLng = apperror.BadRequest("Please provide latitude and longitude in the format lat,lng.")

// ParseLatLng reads "lat,lng".
func ParseLatLng(raw string) (Point, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return Point{}, errLatLng
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Point{}, errLatLng
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Point{}, errLatLng
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return Point{}, errLatLng
	}
	return Point{Lat: lat, Lng: lng}, nil
}

// RadiusRadians converts a distance into the radian radius $centerSphere expects.
func RadiusRadians(distance float64, unit Unit) float64 {
	if unit == Miles {
		return distance / earthRadiusMi
	}
	return distance / earthRadiusKm
}

// DistanceMultiplier converts $geoNear metres into the requested unit.
func DistanceMultiplier(unit Unit) float64 {
	if unit == Miles {
		return metersToMiles
	}
	return metersToKm
}

// AngularDistance returns the central angle between two points in radians.
func AngularDistance(a, b Point) float64 {
	lat1, lat2 := radians(a.Lat), radians(b.Lat)
	dLat := lat2 - lat1
	dLng := radians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Within mirrors $centerSphere: p is inside when its angular distance from
// center does not exceed radius.
func Within(center, p Point, radius float64) bool {
	return AngularDistance(center, p) <= radius
}

func radians(d float64) float64 { return d * math.Pi / 180 }
