package routes

import (
	"math"

	"github.com/mobitrack/fleet-monitor/internal/types"
)

const earthRadiusKM = 6371.0

// ComputeStats derives distance, speed extremes, and duration from an
// ordered point sequence. Fewer than two points yields zero values.
func ComputeStats(points []types.RoutePoint) types.RouteStats {
	var stats types.RouteStats
	if len(points) == 0 {
		return stats
	}

	var speedSum float64
	for i, p := range points {
		if p.Speed > stats.MaxSpeed {
			stats.MaxSpeed = p.Speed
		}
		speedSum += p.Speed
		if i > 0 {
			prev := points[i-1]
			stats.DistanceKM += haversineKM(prev.Lat, prev.Lng, p.Lat, p.Lng)
		}
	}
	stats.AvgSpeed = speedSum / float64(len(points))

	if len(points) > 1 {
		stats.DurationSeconds = int64(points[len(points)-1].Timestamp.Sub(points[0].Timestamp).Seconds())
	}
	return stats
}

// haversineKM is the great-circle distance between two coordinates.
func haversineKM(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLng := toRadians(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKM * c
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
