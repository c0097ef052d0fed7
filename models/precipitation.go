package models

import (
	"strings"

	"github.com/aukilabs/go-tooling/pkg/errors"
)

// Precipitation is a set of precipitation kinds falling from a layer.
type Precipitation uint8

const (
	PrecipitationDrizzle Precipitation = 1 << iota
	PrecipitationRain
	PrecipitationHail
	PrecipitationSnow

	// Modifiers.
	PrecipitationFreezingDrizzle
	PrecipitationFreezingRain

	// Rare.
	PrecipitationSnowPellets
	PrecipitationIcePellets

	PrecipitationNone Precipitation = 0
)

const ErrTypeInvalidPrecipitation = "invalid_precipitation"

var precipitationNames = []struct {
	flag Precipitation
	name string
}{
	{PrecipitationDrizzle, "drizzle"},
	{PrecipitationRain, "rain"},
	{PrecipitationHail, "hail"},
	{PrecipitationSnow, "snow"},
	{PrecipitationFreezingDrizzle, "freezing_drizzle"},
	{PrecipitationFreezingRain, "freezing_rain"},
	{PrecipitationSnowPellets, "snow_pellets"},
	{PrecipitationIcePellets, "ice_pellets"},
}

// ParsePrecipitation parses names joined by "|", such as "rain|hail".
func ParsePrecipitation(s string) (Precipitation, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "none" {
		return PrecipitationNone, nil
	}

	var p Precipitation
	for _, part := range strings.Split(s, "|") {
		flag, ok := precipitationFlag(strings.TrimSpace(part))
		if !ok {
			return PrecipitationNone, errors.New("unknown precipitation").
				WithType(ErrTypeInvalidPrecipitation).
				WithTag("precipitation", part)
		}
		p |= flag
	}
	return p, nil
}

func precipitationFlag(name string) (Precipitation, bool) {
	for _, p := range precipitationNames {
		if p.name == name {
			return p.flag, true
		}
	}
	return PrecipitationNone, false
}

func (p Precipitation) Has(flag Precipitation) bool {
	return p&flag == flag
}

func (p Precipitation) String() string {
	if p == PrecipitationNone {
		return "none"
	}

	var names []string
	for _, n := range precipitationNames {
		if p.Has(n.flag) {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, "|")
}

func (p Precipitation) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Precipitation) UnmarshalText(b []byte) error {
	parsed, err := ParsePrecipitation(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
