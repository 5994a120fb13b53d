package metrics

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/pkg/errors"
)

// Value is a scalar whose JSON form spells non-finite numbers as the strings
// "NaN", "+Inf" and "-Inf".
type Value float64

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	f := float64(v)
	switch {
	case math.IsNaN(f):
		return []byte(`"NaN"`), nil
	case math.IsInf(f, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(f, -1):
		return []byte(`"-Inf"`), nil
	}
	return json.Marshal(f)
}

// UnmarshalJSON accepts numbers and the strings written by MarshalJSON.
func (v *Value) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		switch s {
		case "NaN", "+Inf", "-Inf":
			f, _ := strconv.ParseFloat(s, 64)
			*v = Value(f)
			return nil
		}
		return errors.Errorf("metrics: invalid value %q", s)
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*v = Value(f)
	return nil
}

// Values converts a series for encoding.
func Values(series []float64) []Value {
	out := make([]Value, len(series))
	for i, f := range series {
		out[i] = Value(f)
	}
	return out
}
