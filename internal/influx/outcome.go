// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package influx

import (
	"fmt"
	"time"
)

// Kind classifies one delivery attempt.
type Kind int

const (
	// Delivered means the endpoint answered 2xx.
	Delivered Kind = iota
	// Rejected means the endpoint was reached but answered with an error status.
	Rejected
	// TransportFailed means no response was received (DNS, TLS, refused, timeout).
	TransportFailed
)

func (k Kind) String() string {
	switch k {
	case Delivered:
		return "delivered"
	case Rejected:
		return "rejected"
	case TransportFailed:
		return "transport_failed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Outcome is the result of Client.Send. It is a value, not an error: the
// caller logs it and moves on.
type Outcome struct {
	Kind       Kind
	StatusCode int // zero for TransportFailed
	Err        error
	Duration   time.Duration
}

func (o Outcome) String() string {
	if o.Err == nil {
		return o.Kind.String()
	}
	return fmt.Sprintf("%s: %v", o.Kind, o.Err)
}
