package geo

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/trackguard/extension/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// Distance returns the Euclidean distance between two positions.
func Distance(a, b core.Position3D) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	dz := a.Z - b.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Overlapping reports whether a and b are closer than tolerance, along with
// the distance between them.
func Overlapping(a, b core.Position3D, tolerance float64) (bool, float64) {
	distance := Distance(a, b)
	return distance < tolerance, distance
}

// Position3DFromString parses a "x,y" or "x,y,z" string into a core.Position3D.
func Position3DFromString(coords string) (core.Position3D, error) {
	coordsSplit := strings.Split(strings.Trim(coords, "[]() "), ",")
	if len(coordsSplit) < 2 {
		return core.Position3D{}, ErrInvalidCoordinates
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[0]), 64)
	if err != nil {
		return core.Position3D{}, ErrInvalidCoordinates
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[1]), 64)
	if err != nil {
		return core.Position3D{}, ErrInvalidCoordinates
	}
	var z float64
	if len(coordsSplit) > 2 {
		z, err = strconv.ParseFloat(strings.TrimSpace(coordsSplit[2]), 64)
		if err != nil {
			return core.Position3D{}, ErrInvalidCoordinates
		}
	}
	return core.Position3D{X: x, Y: y, Z: z}, nil
}

// PointZ converts a world position into an XYZ point for storage.
func PointZ(p core.Position3D) geom.Point {
	return geom.NewPoint(
		geom.Coordinates{
			XY:   geom.XY{X: p.X, Y: p.Y},
			Z:    p.Z,
			Type: geom.CoordinatesType(geom.DimXYZ),
		},
	)
}

// Georef anchors the world origin to a WGS84 longitude/latitude.
type Georef struct {
	Longitude float64
	Latitude  float64
}

// WorldToMercator places a world position (X east, Y north, metres) on
// EPSG:3857 relative to the georeferenced origin.
func WorldToMercator(ref Georef, p core.Position3D) geom.Point {
	f := wgs84.EPSG().Transform(4326, 3857)
	x0, y0, _ := f(ref.Longitude, ref.Latitude, 0)

	// web mercator stretches ground distances by sec(lat)
	scale := 1 / math.Cos(ref.Latitude*math.Pi/180)

	return geom.NewPoint(
		geom.Coordinates{
			XY:   geom.XY{X: x0 + p.X*scale, Y: y0 + p.Y*scale},
			Z:    p.Z,
			Type: geom.CoordinatesType(geom.DimXYZ),
		},
	)
}
