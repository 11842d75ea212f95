package geo

import (
	"math"
	"testing"
)

func TestParseLatLng(t *testing.T) {
	p, err := ParseLatLng("34.111745,-118.113491")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Lat != 34.111745 || p.Lng != -118.113491 {
		t.Fatalf("got %+v", p)
	}
	if c := p.Coordinates(); c[0] != p.Lng || c[1] != p.Lat {
		t.Fatalf("coordinates must be [lng, lat], got %v", c)
	}

	for _, raw := range []string{"", "34.1", "a,b", "34.1,", "100,10", "10,200"} {
		if _, err := ParseLatLng(raw); err == nil {
			t.Errorf("%q: expected error", raw)
		}
	}
}

func TestRadiusAndMultiplier(t *testing.T) {
	if got := RadiusRadians(3963.2, Miles); got != 1 {
		t.Fatalf("mi radius: got %v", got)
	}
	if got := RadiusRadians(6378.1, ParseUnit("km")); got != 1 {
		t.Fatalf("km radius: got %v", got)
	}
	if ParseUnit("MI") != Miles || ParseUnit("furlong") != Kilometers {
		t.Fatal("unit parsing")
	}
	if DistanceMultiplier(Miles) != 0.000621371 || DistanceMultiplier(Kilometers) != 0.001 {
		t.Fatal("multipliers")
	}
}

func TestWithin(t *testing.T) {
	center := Point{Lat: 34.111745, Lng: -118.113491}
	radius := RadiusRadians(100, Miles)

	if !Within(center, center, radius) {
		t.Fatal("the center itself must be inside any positive radius")
	}

	// one degree of latitude is ~69 miles
	near := Point{Lat: center.Lat + 1, Lng: center.Lng}
	far := Point{Lat: center.Lat + 2, Lng: center.Lng}
	if !Within(center, near, radius) {
		t.Fatal("a point ~69mi away should be within 100mi")
	}
	if Within(center, far, radius) {
		t.Fatal("a point ~138mi away should be outside 100mi")
	}
}

func TestAngularDistanceSymmetric(t *testing.T) {
	a := Point{Lat: 51.5, Lng: -0.12}
	b := Point{Lat: 40.7, Lng: -74.0}
	if math.Abs(AngularDistance(a, b)-AngularDistance(b, a)) > 1e-12 {
		t.Fatal("distance should be symmetric")
	}
	km := AngularDistance(a, b) * earthRadiusKm
	if km < 5500 || km > 5650 {
		t.Fatalf("London-New York should be ~5570km, got %.0f", km)
	}
}
