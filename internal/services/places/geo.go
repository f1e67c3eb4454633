package places

import (
	"math"

	"github.com/ternarybob/culefilo/internal/models"
)

const earthRadiusMeters = 6371000.0

// RectangleAround returns the viewport centred on center whose sides are
// radiusKm away from it, clamped to valid coordinates.
func RectangleAround(center models.Coordinates, radiusKm float64) Rectangle {
	angular := radiusKm * 1000 / earthRadiusMeters

	lat := center.Latitude * math.Pi / 180
	dLat := angular * 180 / math.Pi
	dLng := dLat
	if c := math.Cos(lat); c > 1e-9 {
		dLng = dLat / c
	}

	return Rectangle{
		Low: LatLng{
			Latitude:  clamp(center.Latitude-dLat, -90, 90),
			Longitude: clamp(center.Longitude-dLng, -180, 180),
		},
		High: LatLng{
			Latitude:  clamp(center.Latitude+dLat, -90, 90),
			Longitude: clamp(center.Longitude+dLng, -180, 180),
		},
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
