package models

// Layer is one atmospheric layer above a cell.
type Layer struct {
	// Temperature in Kelvin.
	Temperature float32 `json:"temperature"`

	// Humidity in saturation percentage.
	Humidity float32 `json:"humidity"`

	// Air pressure in hectopascal.
	Pressure float32 `json:"pressure"`

	Precipitation Precipitation `json:"precipitation"`
}

func (l Layer) Equal(o Layer) bool {
	return l == o
}
