package geo

import (
	"math"
	"testing"

	"github.com/shiva/shiptrack/internal/model"
)

func TestHaversineKm_SamePoint(t *testing.T) {
	loc := model.Location{Lat: 48.8566, Lng: 2.3522}
	got := HaversineKm(loc, loc)
	if got != 0 {
		t.Errorf("HaversineKm(same point) = %v, want 0", got)
	}
}

func TestHaversineKm_KnownDistance(t *testing.T) {
	// Paris to Berlin (~878 km)
	paris := model.Location{Lat: 48.8566, Lng: 2.3522}
	berlin := model.Location{Lat: 52.5200, Lng: 13.4050}
	got := HaversineKm(paris, berlin)
	wantMin, wantMax := 870.0, 885.0
	if got < wantMin || got > wantMax {
		t.Errorf("HaversineKm(Paris→Berlin) = %.2f km, want between %.1f and %.1f", got, wantMin, wantMax)
	}
}

func TestHaversineKm_Symmetric(t *testing.T) {
	a := model.Location{Lat: 40.7128, Lng: -74.0060}
	b := model.Location{Lat: 51.5074, Lng: -0.1278}
	if math.Abs(HaversineKm(a, b)-HaversineKm(b, a)) > 1e-9 {
		t.Errorf("HaversineKm is not symmetric")
	}
}

func TestInterpolate_Midpoint(t *testing.T) {
	got := Interpolate(model.Location{Lat: 0, Lng: 0}, model.Location{Lat: 10, Lng: 10}, 0.5)
	want := model.Location{Lat: 5, Lng: 5}
	if got != want {
		t.Errorf("Interpolate(0.5) = %+v, want %+v", got, want)
	}
}

func TestInterpolate_Endpoints(t *testing.T) {
	o := model.Location{Lat: 48.8566, Lng: 2.3522}
	d := model.Location{Lat: 52.5200, Lng: 13.4050}
	if got := Interpolate(o, d, 0); got != o {
		t.Errorf("Interpolate(0) = %+v, want origin %+v", got, o)
	}
	if got := Interpolate(o, d, 1); got != d {
		t.Errorf("Interpolate(1) = %+v, want destination %+v", got, d)
	}
}

func TestInterpolate_StaysOnSegment(t *testing.T) {
	o := model.Location{Lat: -10, Lng: 20}
	d := model.Location{Lat: 30, Lng: -40}
	for i := 0; i <= 20; i++ {
		p := float64(i) / 20
		got := Interpolate(o, d, p)
		// Collinearity: cross product of (d-o) and (got-o) is zero.
		cross := (d.Lat-o.Lat)*(got.Lng-o.Lng) - (d.Lng-o.Lng)*(got.Lat-o.Lat)
		if math.Abs(cross) > 1e-9 {
			t.Errorf("p=%.2f: %+v is off the segment (cross=%v)", p, got, cross)
		}
		if got.Lat < math.Min(o.Lat, d.Lat) || got.Lat > math.Max(o.Lat, d.Lat) {
			t.Errorf("p=%.2f: lat %v outside segment bounds", p, got.Lat)
		}
	}
}

func TestInterpolate_ClampsProgress(t *testing.T) {
	o := model.Location{Lat: 0, Lng: 0}
	d := model.Location{Lat: 10, Lng: 10}
	if got := Interpolate(o, d, 1.7); got != d {
		t.Errorf("Interpolate(1.7) = %+v, want %+v", got, d)
	}
	if got := Interpolate(o, d, -3); got != o {
		t.Errorf("Interpolate(-3) = %+v, want %+v", got, o)
	}
}

func TestPositionAlong_MissingEndpoints(t *testing.T) {
	o := &model.Location{Lat: 1, Lng: 2}
	d := &model.Location{Lat: 3, Lng: 4}
	if got := PositionAlong(o, nil, 0.5); got != *o {
		t.Errorf("PositionAlong(origin only) = %+v, want %+v", got, *o)
	}
	if got := PositionAlong(nil, d, 0.5); got != *d {
		t.Errorf("PositionAlong(dest only) = %+v, want %+v", got, *d)
	}
	if got := PositionAlong(nil, nil, 0.5); got != WorldCenter {
		t.Errorf("PositionAlong(none) = %+v, want %+v", got, WorldCenter)
	}
}

func TestClamp01(t *testing.T) {
	cases := map[float64]float64{-1: 0, 0: 0, 0.25: 0.25, 1: 1, 2: 1}
	for in, want := range cases {
		if got := Clamp01(in); got != want {
			t.Errorf("Clamp01(%v) = %v, want %v", in, got, want)
		}
	}
	if got := Clamp01(math.NaN()); got != 0 {
		t.Errorf("Clamp01(NaN) = %v, want 0", got)
	}
}

func TestValid(t *testing.T) {
	if !Valid(model.Location{Lat: 45, Lng: 170}) {
		t.Errorf("Valid(45,170) = false, want true")
	}
	if Valid(model.Location{Lat: 91, Lng: 0}) {
		t.Errorf("Valid(91,0) = true, want false")
	}
	if Valid(model.Location{Lat: math.NaN(), Lng: 0}) {
		t.Errorf("Valid(NaN,0) = true, want false")
	}
}

func TestCityDirectory_Lookup(t *testing.T) {
	dir := NewCityDirectory(DefaultCities)

	loc, ok := dir.Lookup("berlin, de")
	if !ok || loc.Lat != 52.5200 {
		t.Errorf("Lookup(berlin, de) = %+v, %v", loc, ok)
	}
	if _, ok := dir.Lookup("Paris, FR"); !ok {
		t.Errorf("Lookup(Paris, FR) not found")
	}
	// Unknown country suffix still resolves by name.
	if _, ok := dir.Lookup("London, GB"); !ok {
		t.Errorf("Lookup(London, GB) should fall back to name")
	}
	if _, ok := dir.Lookup("Atlantis"); ok {
		t.Errorf("Lookup(Atlantis) found, want miss")
	}
}
