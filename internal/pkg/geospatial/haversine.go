package geospatial

import "math"

const earthRadiusKm = 6371.0

// Haversine calculates the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c * 1000 // meters
}

// Cumulative returns the running great-circle distance along a polyline
// given as parallel latitude and longitude slices. The first entry is 0.
func Cumulative(lats, lons []float64) []float64 {
	n := min(len(lats), len(lons))
	out := make([]float64, n)
	for i := 1; i < n; i++ {
		out[i] = out[i-1] + Haversine(lats[i-1], lons[i-1], lats[i], lons[i])
	}
	return out
}

// SemicirclesToDegrees converts a FIT semicircle angle to degrees.
func SemicirclesToDegrees(s int32) float64 {
	return float64(s) * (180.0 / (math.MaxInt32 + 1.0))
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
