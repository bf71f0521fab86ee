// Package nnduration provides JSON-compatible non-negative duration types.
package nnduration

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

type valuer interface {
	value() uint64
	unit() time.Duration
}

func toJSON(d valuer) ([]byte, error) {
	return json.Marshal(d.value())
}

func fromJSON(p []byte, unit time.Duration) (value uint64, e error) {
	input := strings.Trim(string(p), `"`)
	if d, e := time.ParseDuration(input); e == nil {
		return uint64(d / unit), nil
	}
	return strconv.ParseUint(input, 10, 64)
}

// Milliseconds is a duration in milliseconds unit.
type Milliseconds uint64

var _ interface {
	json.Marshaler
	json.Unmarshaler
} = (*Milliseconds)(nil)

func (d Milliseconds) value() uint64 {
	return uint64(d)
}

func (Milliseconds) unit() time.Duration {
	return time.Millisecond
}

// MarshalJSON implements json.Marshaler interface.
func (d Milliseconds) MarshalJSON() ([]byte, error) {
	return toJSON(d)
}

// UnmarshalJSON implements json.Unmarshaler interface.
// It accepts either an integer in milliseconds, or a duration string recognized by time.ParseDuration.
func (d *Milliseconds) UnmarshalJSON(p []byte) (e error) {
	value, e := fromJSON(p, d.unit())
	*d = Milliseconds(value)
	return e
}

// Duration converts this to time.Duration.
func (d Milliseconds) Duration() time.Duration {
	return time.Duration(d) * d.unit()
}

// DurationOr converts this to time.Duration, but returns dflt if this is zero.
func (d Milliseconds) DurationOr(dflt Milliseconds) time.Duration {
	if d == 0 {
		return dflt.Duration()
	}
	return d.Duration()
}

// Nanoseconds is a duration in nanoseconds unit.
type Nanoseconds uint64

var _ interface {
	json.Marshaler
	json.Unmarshaler
} = (*Nanoseconds)(nil)

func (d Nanoseconds) value() uint64 {
	return uint64(d)
}

func (Nanoseconds) unit() time.Duration {
	return time.Nanosecond
}

// MarshalJSON implements json.Marshaler interface.
func (d Nanoseconds) MarshalJSON() ([]byte, error) {
	return toJSON(d)
}

// UnmarshalJSON implements json.Unmarshaler interface.
// It accepts either an integer in nanoseconds, or a duration string recognized by time.ParseDuration.
func (d *Nanoseconds) UnmarshalJSON(p []byte) (e error) {
	value, e := fromJSON(p, d.unit())
	*d = Nanoseconds(value)
	return e
}

// Duration converts this to time.Duration.
func (d Nanoseconds) Duration() time.Duration {
	return time.Duration(d) * d.unit()
}
