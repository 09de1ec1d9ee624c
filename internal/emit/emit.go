// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package emit mirrors accepted samples to local sinks: stdout, MQTT and
// the monitor server.
package emit

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"go.uber.org/multierr"

	"github.com/relabs-tech/coot/internal/sample"
)

// Emitter receives every accepted sample.
type Emitter interface {
	Emit(s sample.Sample) error
}

// Func adapts a plain function to Emitter.
type Func func(s sample.Sample) error

func (f Func) Emit(s sample.Sample) error { return f(s) }

// Multi fans a sample out to every emitter in order. A failing emitter does
// not stop the ones after it; all errors are returned combined.
type Multi []Emitter

func (m Multi) Emit(s sample.Sample) error {
	var err error
	for _, e := range m {
		if e == nil {
			continue
		}
		err = multierr.Append(err, e.Emit(s))
	}
	return err
}

// JSONLines writes one JSON object per line.
type JSONLines struct {
	mu sync.Mutex
	w  io.Writer
}

func NewJSONLines(w io.Writer) *JSONLines {
	return &JSONLines{w: w}
}

func (j *JSONLines) Emit(s sample.Sample) error {
	line, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal sample: %w", err)
	}
	line = append(line, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()
	if _, err := j.w.Write(line); err != nil {
		return fmt.Errorf("write sample: %w", err)
	}
	return nil
}
