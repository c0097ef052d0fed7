package models

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/google/uuid"
)

const (
	ErrTypeCellNotSplittable = "cell_not_splittable"
	ErrTypeCellMismatch      = "cell_mismatch"
)

// Cell is the weather payload stored in the leaves of a world quadtree. Cells
// are identified by pointer in the tree and by ID everywhere else.
type Cell struct {
	ID string `json:"id"`

	// Surface covered by the cell in square kilometers.
	Area float64 `json:"area"`

	Layers []Layer `json:"layers"`
}

func NewCell(area float64, layers ...Layer) *Cell {
	return &Cell{
		ID:     uuid.NewString(),
		Area:   area,
		Layers: layers,
	}
}

// Split returns four copies of the cell, each covering a quarter of its area.
func (c *Cell) Split() ([4]*Cell, error) {
	if c.Area <= 0 {
		return [4]*Cell{}, errors.New("cell has no area to split").
			WithType(ErrTypeCellNotSplittable).
			WithTag("cell_id", c.ID).
			WithTag("area", c.Area)
	}

	var children [4]*Cell
	for i := range children {
		children[i] = c.Clone()
		children[i].Area = c.Area / 4
	}
	return children, nil
}

// Clone returns a deep copy of the cell with a new ID.
func (c *Cell) Clone() *Cell {
	layers := make([]Layer, len(c.Layers))
	copy(layers, c.Layers)
	return NewCell(c.Area, layers...)
}

// Equal reports whether both cells hold the same values, IDs aside.
func (c *Cell) Equal(o *Cell) bool {
	if c == nil || o == nil {
		return c == o
	}
	if c.Area != o.Area || len(c.Layers) != len(o.Layers) {
		return false
	}

	for i := range c.Layers {
		if !c.Layers[i].Equal(o.Layers[i]) {
			return false
		}
	}
	return true
}

// Coalesce merges cells into a new one covering their summed area. Layer
// values are averaged weighted by area and precipitation kinds are combined.
// All cells must have the same number of layers.
func Coalesce(cells ...*Cell) (*Cell, error) {
	if len(cells) == 0 {
		return nil, errors.New("no cell to coalesce").
			WithType(ErrTypeCellMismatch)
	}

	layerCount := len(cells[0].Layers)
	var area float64
	for _, c := range cells {
		if len(c.Layers) != layerCount {
			return nil, errors.New("cells have different layer counts").
				WithType(ErrTypeCellMismatch).
				WithTag("cell_id", c.ID).
				WithTag("layer_count", len(c.Layers)).
				WithTag("expected_layer_count", layerCount)
		}
		area += c.Area
	}

	layers := make([]Layer, layerCount)
	for i := range layers {
		var temperature, humidity, pressure float64
		var precipitation Precipitation

		for _, c := range cells {
			weight := 1 / float64(len(cells))
			if area > 0 {
				weight = c.Area / area
			}

			l := c.Layers[i]
			temperature += float64(l.Temperature) * weight
			humidity += float64(l.Humidity) * weight
			pressure += float64(l.Pressure) * weight
			precipitation |= l.Precipitation
		}

		layers[i] = Layer{
			Temperature:   float32(temperature),
			Humidity:      float32(humidity),
			Pressure:      float32(pressure),
			Precipitation: precipitation,
		}
	}
	return NewCell(area, layers...), nil
}
