// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package influx

import (
	"strconv"
	"strings"

	"github.com/relabs-tech/coot/internal/sample"
)

var measurementEscaper = strings.NewReplacer(",", `\,`, " ", `\ `)

// Line encodes one sample as an InfluxDB line-protocol record:
//
//	<measurement> c=<co2>,t=<temperature> <timestamp>
//
// Fields are written as floats (no "i" suffix) so existing buckets keep their
// field types.
func Line(measurement string, s sample.Sample) string {
	var b strings.Builder
	b.WriteString(measurementEscaper.Replace(measurement))
	b.WriteString(" c=")
	b.WriteString(strconv.Itoa(s.CO2))
	b.WriteString(",t=")
	b.WriteString(strconv.FormatFloat(s.Temperature, 'f', -1, 64))
	b.WriteByte(' ')
	b.WriteString(strconv.FormatInt(s.Timestamp, 10))
	return b.String()
}
