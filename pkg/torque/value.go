package torque

import (
	"errors"
	"fmt"
	"math"
)

// MaxNm is the largest torque magnitude any racing wheel is expected to produce.
const MaxNm = 50.0

// ErrInvalidTorque is returned when a torque value is non-finite or out of range.
var ErrInvalidTorque = errors.New("invalid torque value")

// Value is an immutable, validated torque in Newton-meters.
type Value struct {
	nm float64
}

// Zero is the zero torque value.
var Zero = Value{}

// New creates a torque value. The value must be finite and |nm| <= MaxNm.
func New(nm float64) (Value, error) {
	if math.IsNaN(nm) || math.IsInf(nm, 0) || math.Abs(nm) > MaxNm {
		return Value{}, fmt.Errorf("%w: %v Nm (limit ±%v Nm)", ErrInvalidTorque, nm, MaxNm)
	}
	return Value{nm: nm}, nil
}

// MustNew is like New but panics on invalid input. Intended for constants
// and tests.
func MustNew(nm float64) Value {
	v, err := New(nm)
	if err != nil {
		panic(err)
	}
	return v
}

// FromCentiNm converts a torque expressed in centi-Newton-meters, the unit
// used in HID torque reports.
func FromCentiNm(cnm int16) (Value, error) {
	return New(float64(cnm) / 100)
}

// Nm returns the torque in Newton-meters.
func (v Value) Nm() float64 {
	return v.nm
}

// Abs returns the magnitude of the torque.
func (v Value) Abs() Value {
	return Value{nm: math.Abs(v.nm)}
}

// CentiNm returns the torque rounded to centi-Newton-meters.
func (v Value) CentiNm() int16 {
	return int16(math.Round(v.nm * 100))
}

// Less reports whether v is strictly smaller than o.
func (v Value) Less(o Value) bool {
	return v.nm < o.nm
}

// Min returns the smaller of v and o.
func (v Value) Min(o Value) Value {
	if o.nm < v.nm {
		return o
	}
	return v
}

// IsZero reports whether the torque is exactly zero.
func (v Value) IsZero() bool {
	return v.nm == 0
}

// String returns the torque formatted with its unit.
func (v Value) String() string {
	return fmt.Sprintf("%.2f Nm", v.nm)
}
