// Package timeunit provides integer time unit conversion with the semantics
// of java.util.concurrent.TimeUnit: conversions from finer to coarser
// granularities truncate toward zero, conversions from coarser to finer
// granularities saturate at the int64 range boundaries on overflow.
package timeunit

import (
	"fmt"
	"math"
	"strings"
)

// Unit is a time granularity used for event timestamps on the wire.
// The zero value is not a valid unit, so configuration layers can treat it
// as "unset" and apply their default.
type Unit int

const (
	Nanoseconds Unit = iota + 1
	Microseconds
	Milliseconds
	Seconds
	Minutes
	Hours
	Days
)

// nanosPer holds the length of one unit expressed in nanoseconds, indexed by Unit.
var nanosPer = [...]int64{
	Nanoseconds:  1,
	Microseconds: 1_000,
	Milliseconds: 1_000_000,
	Seconds:      1_000_000_000,
	Minutes:      60_000_000_000,
	Hours:        3_600_000_000_000,
	Days:         86_400_000_000_000,
}

var names = [...]string{
	Nanoseconds:  "nanoseconds",
	Microseconds: "microseconds",
	Milliseconds: "milliseconds",
	Seconds:      "seconds",
	Minutes:      "minutes",
	Hours:        "hours",
	Days:         "days",
}

// Convert converts duration d expressed in the from unit into this unit.
// Downscaling truncates toward zero, so converting 999 milliseconds to
// seconds yields 0. Upscaling multiplies exactly and saturates to
// math.MaxInt64 or math.MinInt64 on overflow.
func (u Unit) Convert(d int64, from Unit) int64 {
	src := nanosPer[from]
	dst := nanosPer[u]
	switch {
	case src == dst:
		return d
	case src < dst:
		return d / (dst / src)
	default:
		magnitude := src / dst
		overflow := math.MaxInt64 / magnitude
		if d > overflow {
			return math.MaxInt64
		}
		if d < -overflow {
			return math.MinInt64
		}
		return d * magnitude
	}
}

// Valid reports whether u is one of the defined units.
func (u Unit) Valid() bool {
	return u >= Nanoseconds && u <= Days
}

func (u Unit) String() string {
	if !u.Valid() {
		return fmt.Sprintf("Unit(%d)", int(u))
	}
	return names[u]
}

// Parse returns the Unit named by s. Names are case-insensitive and match
// the String form ("milliseconds", "seconds", ...).
func Parse(s string) (Unit, error) {
	for u := Nanoseconds; u <= Days; u++ {
		if strings.EqualFold(s, names[u]) {
			return u, nil
		}
	}
	return 0, fmt.Errorf("unknown time unit %q", s)
}
