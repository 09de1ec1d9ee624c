// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensor

import (
	"math"

	"periph.io/x/conn/v3/physic"
)

// RawReading is a single CO2/temperature pair as produced by a transport.
// It is converted into a sample.Sample and then dropped.
type RawReading struct {
	CO2         int                `json:"co2"` // ppm
	Temperature physic.Temperature `json:"temperature"`
}

// Celsius returns the ambient temperature in °C.
func (r RawReading) Celsius() float64 {
	return r.Temperature.Celsius()
}

// FromCelsius converts a °C value into a physic.Temperature, rounded to the
// nearest nano-kelvin so Celsius gives back the same decimal value.
func FromCelsius(c float64) physic.Temperature {
	return physic.ZeroCelsius + physic.Temperature(math.Round(c*float64(physic.Celsius)))
}
