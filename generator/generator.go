// Package generator seeds the faces of a new world.
package generator

import (
	"strings"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/jaws/models"
	"github.com/aukilabs/jaws/quadtree"
)

const (
	ErrTypeInvalidTopology = "generator_invalid_topology"
	ErrTypeInvalidOptions  = "generator_invalid_options"
)

// Topology is the arrangement of the root faces.
type Topology string

const (
	// Six faces wrapped into a cube.
	TopologyCube Topology = "cube"

	// Two faces where every side of one is the other.
	TopologyDouble Topology = "double"

	// A single face wrapping onto itself.
	TopologySingle Topology = "single"
)

const (
	// Surface of the earth in square kilometers.
	EarthSurface = 510072000

	DefaultFaceArea    = EarthSurface / 6
	DefaultLayers      = 1
	DefaultTemperature = 288.15
	DefaultHumidity    = 0
	DefaultPressure    = 1035
)

type Options struct {
	Topology Topology

	// Area of each root face in square kilometers.
	FaceArea float64

	// Number of atmospheric layers per cell.
	Layers int

	// Initial weather of every layer. Nil uses the default value.
	Temperature *float32
	Humidity    *float32
	Pressure    *float32

	TreeOptions []quadtree.Option
}

func (o Options) withDefaults() Options {
	if o.Topology == "" {
		o.Topology = TopologyCube
	}
	if o.FaceArea == 0 {
		o.FaceArea = DefaultFaceArea
	}
	if o.Layers == 0 {
		o.Layers = DefaultLayers
	}
	if o.Temperature == nil {
		o.Temperature = Float(DefaultTemperature)
	}
	if o.Humidity == nil {
		o.Humidity = Float(DefaultHumidity)
	}
	if o.Pressure == nil {
		o.Pressure = Float(DefaultPressure)
	}
	return o
}

// Float returns a pointer to v, for the weather fields of Options.
func Float(v float32) *float32 {
	return &v
}

// ParseTopology parses a topology name.
func ParseTopology(s string) (Topology, error) {
	switch t := Topology(strings.ToLower(strings.TrimSpace(s))); t {
	case TopologyCube, TopologyDouble, TopologySingle:
		return t, nil

	default:
		return "", errors.New("unknown topology").
			WithType(ErrTypeInvalidTopology).
			WithTag("topology", s)
	}
}

// Generate returns a tree whose roots are uniform cells arranged in the
// requested topology.
func Generate(opts Options) (*quadtree.Tree[*models.Cell], error) {
	opts = opts.withDefaults()

	if opts.FaceArea < 0 || opts.Layers < 0 {
		return nil, errors.New("negative face area or layer count").
			WithType(ErrTypeInvalidOptions).
			WithTag("face_area", opts.FaceArea).
			WithTag("layers", opts.Layers)
	}

	switch opts.Topology {
	case TopologyCube:
		var faces [6]*models.Cell
		for i := range faces {
			faces[i] = newFace(opts)
		}
		return quadtree.NewCube(faces, opts.TreeOptions...)

	case TopologyDouble:
		return quadtree.NewDoubleFace(newFace(opts), newFace(opts), opts.TreeOptions...)

	case TopologySingle:
		return quadtree.NewSingleFace(newFace(opts), opts.TreeOptions...)

	default:
		return nil, errors.New("unknown topology").
			WithType(ErrTypeInvalidTopology).
			WithTag("topology", opts.Topology)
	}
}

func newFace(opts Options) *models.Cell {
	layers := make([]models.Layer, opts.Layers)
	for i := range layers {
		layers[i] = models.Layer{
			Temperature: *opts.Temperature,
			Humidity:    *opts.Humidity,
			Pressure:    *opts.Pressure,
		}
	}
	return models.NewCell(opts.FaceArea, layers...)
}
