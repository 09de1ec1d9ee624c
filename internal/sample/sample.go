// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sample

import (
	"fmt"
	"time"

	"github.com/relabs-tech/coot/internal/sensor"
)

// DefaultMinCO2 is the lowest plausible CO2 concentration in ppm. Outdoor air
// sits around 400; anything below 300 is a sensor fault.
const DefaultMinCO2 = 300

// Sample is a validated, timestamped measurement. Field order matches the
// JSON record emitted locally.
type Sample struct {
	Temperature float64 `json:"temperature"` // °C
	CO2         int     `json:"co2"`         // ppm
	Timestamp   int64   `json:"timestamp"`   // unix seconds
}

// ValidationError reports a reading outside the sanity envelope.
type ValidationError struct {
	Field string
	Value float64
	Min   float64
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s out of sane range, was %v (min %v)", e.Field, e.Value, e.Min)
}

// Validator turns raw readings into Samples. It has no state besides its
// limits and is safe to share.
type Validator struct {
	MinCO2 int
}

func NewValidator(minCO2 int) Validator {
	if minCO2 <= 0 {
		minCO2 = DefaultMinCO2
	}
	return Validator{MinCO2: minCO2}
}

// Validate stamps an accepted reading with now. There is no upper bound on
// either value. Temperature is not checked: a NaN given to
// sensor.FromCelsius is not detected, and no transport produces one.
func (v Validator) Validate(r sensor.RawReading, now time.Time) (Sample, error) {
	if r.CO2 < v.MinCO2 {
		return Sample{}, &ValidationError{Field: "co2", Value: float64(r.CO2), Min: float64(v.MinCO2)}
	}
	return Sample{
		Temperature: r.Celsius(),
		CO2:         r.CO2,
		Timestamp:   now.Unix(),
	}, nil
}
