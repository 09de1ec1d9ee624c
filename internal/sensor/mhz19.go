// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensor

import (
	"errors"
	"fmt"
	"io"
	"time"

	serial "github.com/jacobsa/go-serial/serial"
)

const mhz19FrameSize = 9

// mhz19ReadCmd asks the sensor for its gas concentration (command 0x86).
var mhz19ReadCmd = []byte{0xFF, 0x01, 0x86, 0x00, 0x00, 0x00, 0x00, 0x00, 0x79}

// MHZ19Options configures the UART transport for Winsen MH-Z19 sensors.
type MHZ19Options struct {
	Port     string // e.g. /dev/serial0, /dev/ttyAMA0, /dev/ttyUSB0
	BaudRate uint
	Timeout  time.Duration
}

// MHZ19 is the Transport for an MH-Z19 on a serial port.
type MHZ19 struct {
	opts MHZ19Options
	open func(serial.OpenOptions) (io.ReadWriteCloser, error)
}

func NewMHZ19(opts MHZ19Options) *MHZ19 {
	if opts.Port == "" {
		opts.Port = "/dev/serial0"
	}
	if opts.BaudRate == 0 {
		opts.BaudRate = 9600
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	return &MHZ19{opts: opts, open: serial.Open}
}

func (t *MHZ19) String() string { return "mhz19:" + t.opts.Port }

func (t *MHZ19) Open() (Handle, error) {
	port, err := t.open(serial.OpenOptions{
		PortName:   t.opts.Port,
		BaudRate:   t.opts.BaudRate,
		DataBits:   8,
		StopBits:   1,
		ParityMode: serial.PARITY_NONE,
		// Return after 100ms without data so Read can honour its timeout.
		MinimumReadSize:       0,
		InterCharacterTimeout: 100,
	})
	if err != nil {
		return nil, fmt.Errorf("mhz19: open %s: %w", t.opts.Port, err)
	}
	return &mhz19Handle{port: port, timeout: t.opts.Timeout}, nil
}

type mhz19Handle struct {
	port    io.ReadWriteCloser
	timeout time.Duration
}

func (h *mhz19Handle) Read() (RawReading, error) {
	if _, err := h.port.Write(mhz19ReadCmd); err != nil {
		return RawReading{}, fmt.Errorf("mhz19: write command: %w", err)
	}

	frame := make([]byte, 0, mhz19FrameSize)
	buf := make([]byte, mhz19FrameSize)
	deadline := time.Now().Add(h.timeout)
	for len(frame) < mhz19FrameSize {
		if time.Now().After(deadline) {
			return RawReading{}, fmt.Errorf("mhz19: got %d of %d bytes within %s", len(frame), mhz19FrameSize, h.timeout)
		}
		n, err := h.port.Read(buf[:mhz19FrameSize-len(frame)])
		frame = append(frame, buf[:n]...)
		// io.EOF is how the port reports an inter-character timeout.
		if err != nil && !errors.Is(err, io.EOF) {
			return RawReading{}, fmt.Errorf("mhz19: read: %w", err)
		}
	}
	return parseMHZ19Frame(frame)
}

func (h *mhz19Handle) Close() error {
	return h.port.Close()
}

func parseMHZ19Frame(frame []byte) (RawReading, error) {
	if len(frame) != mhz19FrameSize {
		return RawReading{}, fmt.Errorf("mhz19: frame is %d bytes", len(frame))
	}
	if frame[0] != 0xFF || frame[1] != 0x86 {
		return RawReading{}, fmt.Errorf("mhz19: unexpected frame header % x", frame[:2])
	}
	if cs := mhz19Checksum(frame); cs != frame[8] {
		return RawReading{}, fmt.Errorf("mhz19: checksum 0x%02x != 0x%02x", cs, frame[8])
	}
	return RawReading{
		CO2:         int(frame[2])<<8 | int(frame[3]),
		Temperature: FromCelsius(float64(int(frame[4]) - 40)),
	}, nil
}

func mhz19Checksum(frame []byte) byte {
	var sum byte
	for _, b := range frame[1:8] {
		sum += b
	}
	return 0xFF - sum + 1
}
