// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensor

// Transport opens the physical device. Every call to Open must return a fresh
// Handle; the caller owns it and must Close it.
type Transport interface {
	Open() (Handle, error)
	String() string
}

// Handle is an open sensor device.
type Handle interface {
	// Read blocks until one complete reading is available or the transport
	// gives up.
	Read() (RawReading, error)
	Close() error
}
