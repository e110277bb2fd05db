package catalog

import (
	"encoding/json"
	"time"
)

// BBox is [west, south, east, north] in WGS84 degrees.
type BBox [4]float64

// DefaultBBox covers the Barcelona metropolitan area, used when a
// request carries no usable coordinates.
var DefaultBBox = BBox{2.1, 41.3, 2.3, 41.5}

// BBoxFromCoordinates converts a polygon of [lat, lng] points into a
// bounding box. Fewer than three points cannot enclose an area and
// fall back to the default.
func BBoxFromCoordinates(points [][2]float64) BBox {
	if len(points) < 3 {
		return DefaultBBox
	}

	box := BBox{points[0][1], points[0][0], points[0][1], points[0][0]}
	for _, p := range points[1:] {
		lat, lng := p[0], p[1]
		if lng < box[0] {
			box[0] = lng
		}
		if lat < box[1] {
			box[1] = lat
		}
		if lng > box[2] {
			box[2] = lng
		}
		if lat > box[3] {
			box[3] = lat
		}
	}
	return box
}

// ParseCoordinates accepts either a JSON array of [lat, lng] points or
// a JSON string wrapping one. Anything unparseable yields the default
// bounding box.
func ParseCoordinates(raw json.RawMessage) BBox {
	if len(raw) == 0 {
		return DefaultBBox
	}

	var wrapped string
	if err := json.Unmarshal(raw, &wrapped); err == nil {
		raw = json.RawMessage(wrapped)
	}

	var points [][2]float64
	if err := json.Unmarshal(raw, &points); err != nil {
		return DefaultBBox
	}
	return BBoxFromCoordinates(points)
}

const dateLayout = "2006-01-02"

// expandWindow widens a [start, end] date pair by whole days on each
// side and renders the STAC datetime interval. Unparseable dates keep
// the inputs untouched.
func expandWindow(startDate, endDate string, daysBefore, daysAfter int) (string, string, string) {
	start, errStart := time.Parse(dateLayout, startDate)
	end, errEnd := time.Parse(dateLayout, endDate)
	if errStart != nil || errEnd != nil {
		return startDate, endDate, startDate + "T00:00:00Z/" + endDate + "T23:59:59Z"
	}

	start = start.AddDate(0, 0, -daysBefore)
	end = end.AddDate(0, 0, daysAfter)

	startStr := start.Format(dateLayout)
	endStr := end.Format(dateLayout)
	return startStr, endStr, startStr + "T00:00:00Z/" + endStr + "T23:59:59Z"
}
