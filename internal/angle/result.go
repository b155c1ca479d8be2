// Package angle derives joint angles from pose landmarks.
//
// Every operation is a pure function of its inputs. Missing or degenerate
// input never produces an error; it yields an undefined Result that callers
// must check before use.
package angle

import (
	"encoding/json"
	"math"
	"strconv"
)

// Result is an angle in degrees or an explicit undefined value.
// The zero value is undefined.
type Result struct {
	degrees float64
	defined bool
}

// Undefined returns the undefined Result.
func Undefined() Result {
	return Result{}
}

// Degrees returns a defined Result, or undefined when d is NaN or infinite.
func Degrees(d float64) Result {
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return Result{}
	}
	return Result{degrees: d, defined: true}
}

// Value returns the angle and whether it is defined.
func (r Result) Value() (float64, bool) {
	return r.degrees, r.defined
}

// Defined reports whether the result holds an angle.
func (r Result) Defined() bool {
	return r.defined
}

// Or returns the angle, or fallback when undefined.
func (r Result) Or(fallback float64) float64 {
	if !r.defined {
		return fallback
	}
	return r.degrees
}

func (r Result) String() string {
	if !r.defined {
		return "undefined"
	}
	return strconv.FormatFloat(r.degrees, 'f', 1, 64) + "°"
}

// MarshalJSON encodes an undefined result as null.
func (r Result) MarshalJSON() ([]byte, error) {
	if !r.defined {
		return []byte("null"), nil
	}
	return json.Marshal(r.degrees)
}

// UnmarshalJSON decodes null as undefined.
func (r *Result) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = Result{}
		return nil
	}
	var d float64
	if err := json.Unmarshal(data, &d); err != nil {
		return err
	}
	*r = Degrees(d)
	return nil
}

// Defineds returns the defined values of rs in order.
func Defineds(rs []Result) []float64 {
	out := make([]float64, 0, len(rs))
	for _, r := range rs {
		if r.defined {
			out = append(out, r.degrees)
		}
	}
	return out
}
