package geo

import (
	"fmt"
	"math"
	"net/url"
)

const earthRadiusKm = 6371.0

// Distance returns the great-circle distance in kilometres.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLon := radians(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// FormatDistance renders whole metres under 1 km, else kilometres to one decimal.
func FormatDistance(km float64) string {
	if km < 1 {
		return fmt.Sprintf("%dm", int(math.Round(km*1000)))
	}
	return fmt.Sprintf("%.1fkm", km)
}

func FormatCoordinates(lat, lon float64) string {
	return fmt.Sprintf("%.6f, %.6f", lat, lon)
}

// MapsLink is a shareable Google Maps link for the point.
func MapsLink(lat, lon float64) string {
	return fmt.Sprintf("https://www.google.com/maps?q=%.6f,%.6f", lat, lon)
}

// EmbedURL is an OpenStreetMap embed URL centred on the point with a marker.
// Zoom follows slippy-map levels; values outside 1..19 are clamped.
func EmbedURL(lat, lon float64, zoom int) string {
	zoom = max(1, min(zoom, 19))
	// Half-width of the bounding box in degrees for the zoom level.
	span := 360 / math.Pow(2, float64(zoom)) / 2
	q := url.Values{}
	q.Set("bbox", fmt.Sprintf("%.6f,%.6f,%.6f,%.6f", lon-span, lat-span/2, lon+span, lat+span/2))
	q.Set("layer", "mapnik")
	q.Set("marker", fmt.Sprintf("%.6f,%.6f", lat, lon))
	return "https://www.openstreetmap.org/export/embed.html?" + q.Encode()
}
