package geo

import (
	"strings"

	"github.com/shiva/shiptrack/internal/model"
)

// City is one entry of the built-in city directory.
type City struct {
	Name    string
	Country string
	Loc     model.Location
}

// Label returns the "Name, CC" form used by the admin form.
func (c City) Label() string {
	return c.Name + ", " + c.Country
}

// DefaultCities is deliberately small; deployments needing more should plug
// in their own CityDirectory.
var DefaultCities = []City{
	{Name: "New York City", Country: "US", Loc: model.Location{Lat: 40.7128, Lng: -74.0060}},
	{Name: "Los Angeles", Country: "US", Loc: model.Location{Lat: 34.0522, Lng: -118.2437}},
	{Name: "Houston", Country: "US", Loc: model.Location{Lat: 29.7604, Lng: -95.3698}},
	{Name: "Chicago", Country: "US", Loc: model.Location{Lat: 41.8781, Lng: -87.6298}},
	{Name: "Dallas", Country: "US", Loc: model.Location{Lat: 32.7767, Lng: -96.7970}},
	{Name: "London", Country: "UK", Loc: model.Location{Lat: 51.5074, Lng: -0.1278}},
	{Name: "Manchester", Country: "UK", Loc: model.Location{Lat: 53.4808, Lng: -2.2426}},
	{Name: "Birmingham", Country: "UK", Loc: model.Location{Lat: 52.4862, Lng: -1.8904}},
	{Name: "Berlin", Country: "DE", Loc: model.Location{Lat: 52.5200, Lng: 13.4050}},
	{Name: "Munich", Country: "DE", Loc: model.Location{Lat: 48.1351, Lng: 11.5820}},
	{Name: "Hamburg", Country: "DE", Loc: model.Location{Lat: 53.5511, Lng: 9.9937}},
	{Name: "Paris", Country: "FR", Loc: model.Location{Lat: 48.8566, Lng: 2.3522}},
}

// CityDirectory resolves "City" or "City, CC" labels to coordinates.
type CityDirectory struct {
	byLabel map[string]City
	byName  map[string]City
}

// NewCityDirectory indexes the given cities. Lookups are case-insensitive.
func NewCityDirectory(cities []City) *CityDirectory {
	d := &CityDirectory{
		byLabel: make(map[string]City, len(cities)),
		byName:  make(map[string]City, len(cities)),
	}
	for _, c := range cities {
		d.byLabel[strings.ToLower(c.Label())] = c
		if _, dup := d.byName[strings.ToLower(c.Name)]; !dup {
			d.byName[strings.ToLower(c.Name)] = c
		}
	}
	return d
}

// Lookup returns the coordinates of label, trying the full "Name, CC" form
// first and then the bare name.
func (d *CityDirectory) Lookup(label string) (model.Location, bool) {
	key := strings.ToLower(strings.TrimSpace(label))
	if key == "" {
		return model.Location{}, false
	}
	if c, ok := d.byLabel[key]; ok {
		return c.Loc, true
	}
	if idx := strings.LastIndex(key, ", "); idx >= 0 {
		key = key[:idx]
	}
	c, ok := d.byName[key]
	return c.Loc, ok
}
