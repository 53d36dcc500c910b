package mapping

import (
	"fmt"
	"strconv"
	"strings"

	gterrors "github.com/gridtext/gridtext/internal/errors"
)

// DefaultGeoPointMaxLevels is the default geohash precision for geo_point
// fields.
const DefaultGeoPointMaxLevels = 11

// GeoShape is a parsed shape in a minimal WKT subset: POINT, LINESTRING and
// single-ring POLYGON. Coordinates are longitude/latitude pairs.
type GeoShape struct {
	Type   string
	Points [][2]float64
}

// GeoTransform is one step of a geo_shape transformation chain, applied in
// declaration order before indexing.
type GeoTransform struct {
	// Type is one of "bbox", "centroid" or "buffer".
	Type string `json:"type" yaml:"type"`

	// MinDistance and MaxDistance apply to buffer transforms, in degrees.
	MinDistance float64 `json:"min_distance,omitempty" yaml:"min_distance,omitempty"`
	MaxDistance float64 `json:"max_distance,omitempty" yaml:"max_distance,omitempty"`
}

// validate rejects unknown transform types at compile time.
func (t GeoTransform) validate() error {
	switch t.Type {
	case "bbox", "centroid", "buffer":
		return nil
	default:
		return gterrors.NewConfigError(gterrors.CodeBadOption,
			"unknown geo transformation %q", t.Type)
	}
}

// ParseWKT parses the supported WKT subset.
func ParseWKT(s string) (*GeoShape, error) {
	s = strings.TrimSpace(s)
	upper := strings.ToUpper(s)
	switch {
	case strings.HasPrefix(upper, "POINT"):
		pts, err := parseCoords(inner(s, "POINT"))
		if err != nil || len(pts) != 1 {
			return nil, fmt.Errorf("invalid POINT: %q", s)
		}
		return &GeoShape{Type: "POINT", Points: pts}, nil
	case strings.HasPrefix(upper, "LINESTRING"):
		pts, err := parseCoords(inner(s, "LINESTRING"))
		if err != nil || len(pts) < 2 {
			return nil, fmt.Errorf("invalid LINESTRING: %q", s)
		}
		return &GeoShape{Type: "LINESTRING", Points: pts}, nil
	case strings.HasPrefix(upper, "POLYGON"):
		body := strings.TrimSpace(inner(s, "POLYGON"))
		body = strings.TrimPrefix(body, "(")
		body = strings.TrimSuffix(body, ")")
		pts, err := parseCoords(body)
		if err != nil || len(pts) < 4 {
			return nil, fmt.Errorf("invalid POLYGON: %q", s)
		}
		return &GeoShape{Type: "POLYGON", Points: pts}, nil
	}
	return nil, fmt.Errorf("unsupported WKT shape: %q", s)
}

func inner(s, keyword string) string {
	s = strings.TrimSpace(s[len(keyword):])
	s = strings.TrimPrefix(s, "(")
	s = strings.TrimSuffix(s, ")")
	return s
}

func parseCoords(body string) ([][2]float64, error) {
	var pts [][2]float64
	for _, pair := range strings.Split(body, ",") {
		fields := strings.Fields(strings.TrimSpace(pair))
		if len(fields) != 2 {
			return nil, fmt.Errorf("bad coordinate pair %q", pair)
		}
		lon, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, err
		}
		lat, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, err
		}
		pts = append(pts, [2]float64{lon, lat})
	}
	return pts, nil
}

// WKT renders the shape back to its WKT form.
func (s *GeoShape) WKT() string {
	var coords []string
	for _, p := range s.Points {
		coords = append(coords, fmt.Sprintf("%g %g", p[0], p[1]))
	}
	joined := strings.Join(coords, ", ")
	switch s.Type {
	case "POINT":
		return fmt.Sprintf("POINT (%s)", joined)
	case "LINESTRING":
		return fmt.Sprintf("LINESTRING (%s)", joined)
	default:
		return fmt.Sprintf("POLYGON ((%s))", joined)
	}
}

// bounds returns minLon, minLat, maxLon, maxLat.
func (s *GeoShape) bounds() (float64, float64, float64, float64) {
	minLon, minLat := s.Points[0][0], s.Points[0][1]
	maxLon, maxLat := minLon, minLat
	for _, p := range s.Points[1:] {
		if p[0] < minLon {
			minLon = p[0]
		}
		if p[0] > maxLon {
			maxLon = p[0]
		}
		if p[1] < minLat {
			minLat = p[1]
		}
		if p[1] > maxLat {
			maxLat = p[1]
		}
	}
	return minLon, minLat, maxLon, maxLat
}

// applyTransforms runs the transformation chain over the shape.
func applyTransforms(shape *GeoShape, transforms []GeoTransform) *GeoShape {
	for _, t := range transforms {
		switch t.Type {
		case "bbox":
			shape = shape.bbox(0)
		case "centroid":
			shape = shape.centroid()
		case "buffer":
			shape = shape.bbox(t.MaxDistance)
		}
	}
	return shape
}

// bbox returns the shape's bounding box grown by pad degrees on every side.
func (s *GeoShape) bbox(pad float64) *GeoShape {
	minLon, minLat, maxLon, maxLat := s.bounds()
	minLon, minLat = clampLon(minLon-pad), clampLat(minLat-pad)
	maxLon, maxLat = clampLon(maxLon+pad), clampLat(maxLat+pad)
	return &GeoShape{
		Type: "POLYGON",
		Points: [][2]float64{
			{minLon, minLat}, {maxLon, minLat}, {maxLon, maxLat}, {minLon, maxLat}, {minLon, minLat},
		},
	}
}

// centroid returns the arithmetic center of the shape's vertices.
func (s *GeoShape) centroid() *GeoShape {
	var lon, lat float64
	n := len(s.Points)
	if s.Type == "POLYGON" && n > 1 {
		n-- // closing vertex repeats the first
	}
	for _, p := range s.Points[:n] {
		lon += p[0]
		lat += p[1]
	}
	return &GeoShape{Type: "POINT", Points: [][2]float64{{lon / float64(n), lat / float64(n)}}}
}

func clampLat(v float64) float64 {
	if v < -90 {
		return -90
	}
	if v > 90 {
		return 90
	}
	return v
}

func clampLon(v float64) float64 {
	if v < -180 {
		return -180
	}
	if v > 180 {
		return 180
	}
	return v
}
