// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

//go:build !linux

package sensor

import "errors"

func openHIDRaw(string, [8]byte) (hidDevice, error) {
	return nil, errors.New("co2mon: hidraw transport is only supported on linux")
}
