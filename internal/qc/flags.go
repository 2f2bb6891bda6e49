// Package qc runs a first-pass quality check over gateway datasets.
//
// Matched variables are normalized to the catalog's canonical units and
// put through a QARTOD gross range test. Each checked variable gains a
// sibling "<name>_qc" variable of flags with the same shape.
package qc

import (
	"math"

	"oceangateway/internal/catalog"
)

// Flag is a QARTOD flag value.
type Flag uint8

// QARTOD flag vocabulary.
const (
	FlagGood         Flag = 1
	FlagNotEvaluated Flag = 2
	FlagSuspect      Flag = 3
	FlagFail         Flag = 4
	FlagMissing      Flag = 9
)

func (f Flag) String() string {
	switch f {
	case FlagGood:
		return "GOOD"
	case FlagNotEvaluated:
		return "UNKNOWN"
	case FlagSuspect:
		return "SUSPECT"
	case FlagFail:
		return "FAIL"
	case FlagMissing:
		return "MISSING"
	default:
		return "INVALID"
	}
}

// Attributes written on every flag variable.
const (
	flagValues   = "1 2 3 4 9"
	flagMeanings = "GOOD UNKNOWN SUSPECT FAIL MISSING"
)

// GrossRange classifies each value against the nested spans. Bounds are
// inclusive: a value equal to a bound is inside the span.
func GrossRange(values []float64, fail, suspect catalog.Span) []Flag {
	flags := make([]Flag, len(values))
	for i, v := range values {
		switch {
		case math.IsNaN(v) || math.IsInf(v, 0):
			flags[i] = FlagMissing
		case !fail.Contains(v):
			flags[i] = FlagFail
		case !suspect.Contains(v):
			flags[i] = FlagSuspect
		default:
			flags[i] = FlagGood
		}
	}
	return flags
}

// Floats widens flags for storage in a dataset variable.
func Floats(flags []Flag) []float64 {
	out := make([]float64, len(flags))
	for i, f := range flags {
		out[i] = float64(f)
	}
	return out
}
