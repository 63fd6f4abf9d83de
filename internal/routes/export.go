package routes

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strconv"
	"time"

	"github.com/mobitrack/fleet-monitor/internal/types"
)

// Supported export formats.
const (
	FormatGPX  = "gpx"
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// Export serializes a historical route in the requested format. Unknown
// formats are an error.
func Export(route types.HistoricalRoute, format string) ([]byte, error) {
	switch format {
	case FormatGPX:
		return exportGPX(route)
	case FormatCSV:
		return exportCSV(route)
	case FormatJSON:
		return json.MarshalIndent(route, "", "  ")
	default:
		return nil, fmt.Errorf("unknown export format %q", format)
	}
}

type gpxTrackPoint struct {
	XMLName xml.Name `xml:"trkpt"`
	Lat     float64  `xml:"lat,attr"`
	Lon     float64  `xml:"lon,attr"`
	Time    string   `xml:"time"`
	Speed   float64  `xml:"extensions>speed"`
}

type gpxTrackSegment struct {
	Points []gpxTrackPoint `xml:"trkpt"`
}

type gpxTrack struct {
	Name    string          `xml:"name"`
	Segment gpxTrackSegment `xml:"trkseg"`
}

type gpxDocument struct {
	XMLName xml.Name `xml:"gpx"`
	Version string   `xml:"version,attr"`
	Creator string   `xml:"creator,attr"`
	Track   gpxTrack `xml:"trk"`
}

func exportGPX(route types.HistoricalRoute) ([]byte, error) {
	doc := gpxDocument{
		Version: "1.1",
		Creator: "fleet-monitor",
		Track: gpxTrack{
			Name: route.VehiclePlate,
		},
	}
	for _, p := range route.Points {
		doc.Track.Segment.Points = append(doc.Track.Segment.Points, gpxTrackPoint{
			Lat:   p.Lat,
			Lon:   p.Lng,
			Time:  p.Timestamp.UTC().Format(time.RFC3339),
			Speed: p.Speed,
		})
	}

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal GPX: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}

func exportCSV(route types.HistoricalRoute) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"timestamp", "lat", "lng", "speed", "heading"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, p := range route.Points {
		row := []string{
			p.Timestamp.UTC().Format(time.RFC3339),
			strconv.FormatFloat(p.Lat, 'f', 6, 64),
			strconv.FormatFloat(p.Lng, 'f', 6, 64),
			strconv.FormatFloat(p.Speed, 'f', 1, 64),
			strconv.Itoa(p.Heading),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV: %w", err)
	}
	return buf.Bytes(), nil
}
