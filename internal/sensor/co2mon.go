// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensor

import (
	"errors"
	"fmt"
	"io"
	"time"

	"periph.io/x/conn/v3/physic"
)

// USB identifiers of the Holtek/ZyAura CO2 monitor (sold as CO2Mini, AirCO2ntrol, ...).
const (
	CO2MonVendorID  = 0x04d9
	CO2MonProductID = 0xa052
)

const (
	co2monReportSize = 8
	co2monOpCO2      = 0x50 // ppm
	co2monOpTemp     = 0x42 // 1/16 K
	co2monEndMarker  = 0x0d
)

var errCO2MonInvalidReport = errors.New("co2mon: invalid report")

// CO2MonOptions configures the USB HID transport.
type CO2MonOptions struct {
	// Path of the hidraw node. Empty means scan /dev/hidraw* for the device.
	Path string
	// Key sent to the device on open. Readings are scrambled with it; the zero
	// key is what most tools use.
	Key [8]byte
	// Timeout bounds one Read: how long to wait for both a CO2 and a
	// temperature report.
	Timeout time.Duration
}

// hidDevice is what openHIDRaw returns; *os.File satisfies it.
type hidDevice interface {
	io.ReadCloser
	SetReadDeadline(t time.Time) error
}

// CO2Mon is the Transport for the USB CO2 monitor on Linux hidraw.
type CO2Mon struct {
	opts CO2MonOptions
	open func(path string, key [8]byte) (hidDevice, error)
}

func NewCO2Mon(opts CO2MonOptions) *CO2Mon {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	return &CO2Mon{opts: opts, open: openHIDRaw}
}

func (t *CO2Mon) String() string {
	if t.opts.Path == "" {
		return "co2mon"
	}
	return "co2mon:" + t.opts.Path
}

func (t *CO2Mon) Open() (Handle, error) {
	dev, err := t.open(t.opts.Path, t.opts.Key)
	if err != nil {
		return nil, err
	}
	return &co2monHandle{dev: dev, key: t.opts.Key, timeout: t.opts.Timeout}, nil
}

type co2monHandle struct {
	dev     hidDevice
	key     [8]byte
	timeout time.Duration
}

// Read consumes reports until both a CO2 and a temperature value were seen.
// Reports with other opcodes (humidity on some models, unknown ones) are skipped.
func (h *co2monHandle) Read() (RawReading, error) {
	deadline := time.Now().Add(h.timeout)
	// Not every hidraw node is pollable. Without a deadline a silent device
	// blocks in ReadFull; the loop check only bounds a stream of skipped
	// or partial-pair reports.
	_ = h.dev.SetReadDeadline(deadline)

	var (
		r                 RawReading
		haveCO2, haveTemp bool
		buf               = make([]byte, co2monReportSize)
	)
	for !haveCO2 || !haveTemp {
		if time.Now().After(deadline) {
			return RawReading{}, fmt.Errorf("co2mon: no complete reading within %s", h.timeout)
		}
		n, err := io.ReadFull(h.dev, buf)
		if err != nil {
			return RawReading{}, fmt.Errorf("co2mon: read report: %w", err)
		}
		if n != co2monReportSize {
			return RawReading{}, fmt.Errorf("co2mon: short report (%d bytes)", n)
		}

		op, value, err := decodeCO2MonReport([co2monReportSize]byte(buf), h.key)
		if err != nil {
			return RawReading{}, err
		}
		switch op {
		case co2monOpCO2:
			r.CO2 = int(value)
			haveCO2 = true
		case co2monOpTemp:
			r.Temperature = physic.Temperature(value) * physic.Kelvin / 16
			haveTemp = true
		}
	}
	return r, nil
}

func (h *co2monHandle) Close() error {
	return h.dev.Close()
}

// decodeCO2MonReport returns the opcode and 16-bit value carried by one report.
// Older firmware scrambles reports; newer firmware sends them in the clear,
// which shows as the end marker already sitting in byte 4.
func decodeCO2MonReport(report [co2monReportSize]byte, key [8]byte) (byte, uint16, error) {
	data := report
	if data[4] != co2monEndMarker {
		data = co2monDecrypt(data, key)
	}
	if data[4] != co2monEndMarker {
		return 0, 0, fmt.Errorf("%w: end marker 0x%02x", errCO2MonInvalidReport, data[4])
	}
	if sum := data[0] + data[1] + data[2]; sum != data[3] {
		return 0, 0, fmt.Errorf("%w: checksum 0x%02x != 0x%02x", errCO2MonInvalidReport, sum, data[3])
	}
	return data[0], uint16(data[1])<<8 | uint16(data[2]), nil
}

var co2monMask = [8]byte{'H', 't', 'e', 'm', 'p', '9', '9', 'e'}

func co2monDecrypt(data, key [8]byte) [8]byte {
	data[0], data[2] = data[2], data[0]
	data[1], data[4] = data[4], data[1]
	data[3], data[7] = data[7], data[3]
	data[5], data[6] = data[6], data[5]

	for i := range data {
		data[i] ^= key[i]
	}

	var out [8]byte
	for i := range data {
		out[i] = data[(i+7)%8]<<5 | data[i]>>3
	}

	for i, m := range co2monMask {
		out[i] -= m<<4 | m>>4
	}
	return out
}
