// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensor

import (
	"log/slog"
	"sync/atomic"
)

// Manager owns at most one open Handle and hides acquisition behind Read.
//
// The handle is opened lazily on the first Read and after any failed Read.
// A failed Read closes and forgets the handle before the error is returned,
// so a broken device is never read twice.
//
// Manager is not safe for concurrent use; one scheduling loop owns it.
type Manager struct {
	transport Transport
	logger    *slog.Logger

	handle Handle // nil while closed
	opens  atomic.Uint64
}

// NewManager returns a Manager with no open handle.
func NewManager(transport Transport, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		transport: transport,
		logger:    logger.With("transport", transport.String()),
	}
}

// Read performs at most one open and exactly one read.
func (m *Manager) Read() (RawReading, error) {
	if m.handle == nil {
		h, err := m.transport.Open()
		if err != nil {
			return RawReading{}, &AcquisitionError{Op: OpOpen, Transport: m.transport.String(), Err: err}
		}
		m.opens.Add(1)
		m.handle = h
		m.logger.Info("sensor opened")
	}

	r, err := m.handle.Read()
	if err != nil {
		m.discard()
		return RawReading{}, &AcquisitionError{Op: OpRead, Transport: m.transport.String(), Err: err}
	}
	return r, nil
}

// IsOpen reports whether a handle is currently held.
func (m *Manager) IsOpen() bool {
	return m.handle != nil
}

// Opens returns how many times the device has been opened successfully.
// Safe to call from other goroutines (metrics scrapes).
func (m *Manager) Opens() uint64 {
	return m.opens.Load()
}

// Close releases the handle, if any.
func (m *Manager) Close() error {
	if m.handle == nil {
		return nil
	}
	err := m.handle.Close()
	m.handle = nil
	return err
}

func (m *Manager) discard() {
	if err := m.Close(); err != nil {
		m.logger.Debug("closing failed sensor handle", "error", err)
	}
}
