package geo

import "math"

// EarthRadiusMeters is the mean Earth radius used for great-circle distances.
const EarthRadiusMeters = 6371000.0

// MetersPerMile converts meters to statute miles for display.
const MetersPerMile = 1609.34

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Haversine distance in meters
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMeters * c
}

// Tracker accumulates the travelled distance over a stream of position samples.
// The zero value is ready to use. Fields are exported so a tracker can be stored
// alongside the trip session it belongs to.
type Tracker struct {
	TotalMeters float64 `json:"total_meters"`
	Last        *Point  `json:"last,omitempty"`
}

// AddSample records a position and returns the meters added by it.
// The first sample after construction or Reset only anchors the tracker.
func (t *Tracker) AddSample(lat, lon float64) float64 {
	p := Point{Lat: lat, Lon: lon}
	if t.Last == nil {
		t.Last = &p
		return 0
	}

	added := Haversine(t.Last.Lat, t.Last.Lon, lat, lon)
	t.TotalMeters += added
	t.Last = &p
	return added
}

// Reset clears the accumulated distance and the anchored position.
func (t *Tracker) Reset() {
	t.TotalMeters = 0
	t.Last = nil
}

// Miles returns the accumulated distance in miles.
func (t *Tracker) Miles() float64 {
	return t.TotalMeters / MetersPerMile
}
