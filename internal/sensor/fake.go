// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensor

import (
	"math"
	"time"
)

// Fake is a Transport that produces smoothly changing readings, for running
// the producer without hardware.
type Fake struct {
	start time.Time
}

func NewFake() *Fake {
	return &Fake{start: time.Now()}
}

func (f *Fake) String() string { return "fake" }

func (f *Fake) Open() (Handle, error) {
	return &fakeHandle{start: f.start}, nil
}

type fakeHandle struct {
	start time.Time
}

func (h *fakeHandle) Read() (RawReading, error) {
	elapsed := time.Since(h.start).Seconds()
	return RawReading{
		CO2:         600 + int(200*math.Sin(elapsed/60)),
		Temperature: FromCelsius(21 + 1.5*math.Cos(elapsed/90)),
	}, nil
}

func (h *fakeHandle) Close() error { return nil }
