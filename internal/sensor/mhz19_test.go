package sensor

import (
	"bytes"
	"io"
	"testing"
	"time"

	serial "github.com/jacobsa/go-serial/serial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mhz19Response(co2 int, tempRaw byte) []byte {
	frame := []byte{0xFF, 0x86, byte(co2 >> 8), byte(co2), tempRaw, 0x00, 0x00, 0x00, 0x00}
	frame[8] = mhz19Checksum(frame)
	return frame
}

// fakePort hands out its response in small chunks to mimic a slow UART.
type fakePort struct {
	written bytes.Buffer
	resp    []byte
	chunk   int
	closed  bool
}

func (p *fakePort) Write(b []byte) (int, error) { return p.written.Write(b) }

func (p *fakePort) Read(b []byte) (int, error) {
	if len(p.resp) == 0 {
		return 0, io.EOF
	}
	n := min(p.chunk, len(b), len(p.resp))
	copy(b, p.resp[:n])
	p.resp = p.resp[n:]
	return n, nil
}

func (p *fakePort) Close() error { p.closed = true; return nil }

func TestMHZ19Read(t *testing.T) {
	port := &fakePort{resp: mhz19Response(1015, 63), chunk: 4}
	tr := NewMHZ19(MHZ19Options{Port: "/dev/ttyUSB0"})
	tr.open = func(opts serial.OpenOptions) (io.ReadWriteCloser, error) {
		assert.Equal(t, "/dev/ttyUSB0", opts.PortName)
		assert.EqualValues(t, 9600, opts.BaudRate)
		return port, nil
	}

	h, err := tr.Open()
	require.NoError(t, err)
	r, err := h.Read()
	require.NoError(t, err)

	assert.Equal(t, mhz19ReadCmd, port.written.Bytes())
	assert.Equal(t, 1015, r.CO2)
	assert.InDelta(t, 23.0, r.Celsius(), 1e-9)

	require.NoError(t, h.Close())
	assert.True(t, port.closed)
}

func TestMHZ19ReadTimesOut(t *testing.T) {
	port := &fakePort{resp: mhz19Response(400, 60)[:5], chunk: 9}
	tr := NewMHZ19(MHZ19Options{Timeout: 20 * time.Millisecond})
	tr.open = func(serial.OpenOptions) (io.ReadWriteCloser, error) { return port, nil }

	h, err := tr.Open()
	require.NoError(t, err)
	_, err = h.Read()
	assert.ErrorContains(t, err, "got 5 of 9 bytes")
}

func TestParseMHZ19Frame(t *testing.T) {
	good := mhz19Response(400, 61)

	badChecksum := append([]byte(nil), good...)
	badChecksum[8]++

	badHeader := append([]byte(nil), good...)
	badHeader[1] = 0x87

	tests := []struct {
		name    string
		frame   []byte
		wantCO2 int
		wantErr string
	}{
		{name: "valid", frame: good, wantCO2: 400},
		{name: "checksum", frame: badChecksum, wantErr: "checksum"},
		{name: "header", frame: badHeader, wantErr: "header"},
		{name: "short", frame: good[:8], wantErr: "8 bytes"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r, err := parseMHZ19Frame(tc.frame)
			if tc.wantErr != "" {
				assert.ErrorContains(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantCO2, r.CO2)
		})
	}
}
