// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensor

import "fmt"

// Op identifies the step of acquisition that failed.
type Op string

const (
	OpOpen Op = "open"
	OpRead Op = "read"
)

// AcquisitionError is returned by Manager.Read when the device could not be
// opened or a read on an open device failed. Both are recoverable: the next
// call starts from a fresh open.
type AcquisitionError struct {
	Op        Op
	Transport string
	Err       error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("sensor %s %s failed: %v", e.Transport, e.Op, e.Err)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }
