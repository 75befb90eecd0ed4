package domain

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// ReferenceDiameterIn is the internal diameter every run is normalized to
// before summation (NPS 3, schedule 40).
const ReferenceDiameterIn = 3.068

// Limits on the optional per-run slots.
const (
	MaxKnockouts       = 3
	MaxSpecialtyValves = 3
)

const (
	valveCoefficient    = 100 * 891
	inchesPerFoot       = 12.0
	contractionLossCoef = 0.5
)

// ErrInvalidDiameter is returned for a non-positive internal diameter.
var ErrInvalidDiameter = errors.New("internal diameter must be positive")

// ErrUnknownNominalSize is returned for a nominal label outside the pipe table.
var ErrUnknownNominalSize = errors.New("unknown nominal pipe size")

// ErrNonFiniteResult is returned when inputs drive a length, capacity or
// inflow outside the range of a float64.
var ErrNonFiniteResult = errors.New("input produces a non-finite result")

// NominalSize pairs an NPS label with its schedule 40 internal diameter.
type NominalSize struct {
	Label              string  `json:"label"`
	InternalDiameterIn float64 `json:"internal_diameter_in"`
}

var nominalSizes = []NominalSize{
	{`1.5"`, 1.338},
	{`2"`, 2.067},
	{`3"`, 3.068},
	{`4"`, 4.026},
	{`6"`, 6.070},
	{`8"`, 7.981},
	{`10"`, 10.020},
	{`12"`, 11.938},
}

// NominalSizes returns the pipe table in ascending order.
func NominalSizes() []NominalSize {
	out := make([]NominalSize, len(nominalSizes))
	copy(out, nominalSizes)
	return out
}

// LookupNominalSize resolves a label such as `3"` to its internal diameter.
// The trailing inch mark is optional.
func LookupNominalSize(label string) (NominalSize, error) {
	for _, s := range nominalSizes {
		if s.Label == label || s.Label == label+`"` {
			return s, nil
		}
	}
	return NominalSize{}, fmt.Errorf("%w: %q", ErrUnknownNominalSize, label)
}

// PipeRun is one nominal size of pipe within a header.
type PipeRun struct {
	NominalLabel        string              `json:"nominal_label"`
	InternalDiameterIn  float64             `json:"internal_diameter_in"`
	DevelopedLengthFt   float64             `json:"developed_length_ft"`
	Fittings            map[FittingType]int `json:"fittings,omitempty"`
	KnockoutDiametersIn []float64           `json:"knockout_diameters_in,omitempty"`
	SpecialtyValveCv    []float64           `json:"specialty_valve_cv,omitempty"`
}

// RunLength is the equivalent-length breakdown of one pipe run.
type RunLength struct {
	NominalLabel       string  `json:"nominal_label"`
	InternalDiameterIn float64 `json:"internal_diameter_in"`
	DevelopedLengthFt  float64 `json:"developed_length_ft"`
	FittingLengthFt    float64 `json:"fitting_length_ft"`
	KnockoutLengthFt   float64 `json:"knockout_length_ft"`
	ValveLengthFt      float64 `json:"valve_length_ft"`
	EquivalentLengthFt float64 `json:"equivalent_length_ft"`
	NormalizedLengthFt float64 `json:"normalized_length_ft"`
}

// SpitzglassFactor returns 1 + 3.6/D + 0.03·D for an internal diameter in inches.
func SpitzglassFactor(d float64) float64 {
	return 1 + 3.6/d + 0.03*d
}

// EquivalentLength computes the total equivalent length of a run and its
// length normalized to ReferenceDiameterIn.
//
// Knockout diameters larger than the run bore are sudden expansions,
// (ID/12)·(1 − ID²/d²)²; smaller or equal are sudden contractions,
// (ID/12)·0.5·(1 − d²/ID²). A zero diameter or zero Cv marks an unused slot.
func EquivalentLength(run PipeRun) (RunLength, error) {
	id := run.InternalDiameterIn
	if id <= 0 || math.IsNaN(id) || math.IsInf(id, 0) {
		return RunLength{}, fmt.Errorf("run %s: %w (got %g)", run.NominalLabel, ErrInvalidDiameter, id)
	}

	fittings, err := runFittingLength(id, run.Fittings)
	if err != nil {
		return RunLength{}, fmt.Errorf("run %s: %w", run.NominalLabel, err)
	}

	knockouts := make([]float64, 0, len(run.KnockoutDiametersIn))
	for _, d := range run.KnockoutDiametersIn {
		knockouts = append(knockouts, knockoutLength(id, d))
	}

	valves := make([]float64, 0, len(run.SpecialtyValveCv))
	for _, cv := range run.SpecialtyValveCv {
		valves = append(valves, valveLength(id, cv))
	}

	rl := RunLength{
		NominalLabel:       run.NominalLabel,
		InternalDiameterIn: id,
		DevelopedLengthFt:  run.DevelopedLengthFt,
		FittingLengthFt:    fittings,
		KnockoutLengthFt:   floats.Sum(knockouts),
		ValveLengthFt:      floats.Sum(valves),
	}
	rl.EquivalentLengthFt = rl.DevelopedLengthFt + rl.FittingLengthFt + rl.KnockoutLengthFt + rl.ValveLengthFt

	rl.NormalizedLengthFt, err = NormalizeLength(rl.EquivalentLengthFt, id)
	if err != nil {
		return RunLength{}, fmt.Errorf("run %s: %w", run.NominalLabel, err)
	}
	if !finite(rl.EquivalentLengthFt) || !finite(rl.NormalizedLengthFt) {
		return RunLength{}, fmt.Errorf("run %s: %w (equivalent %g ft, normalized %g ft)",
			run.NominalLabel, ErrNonFiniteResult, rl.EquivalentLengthFt, rl.NormalizedLengthFt)
	}
	return rl, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// runFittingLength sums fitting contributions in a fixed key order so the
// floating-point result does not depend on map iteration.
func runFittingLength(id float64, counts map[FittingType]int) (float64, error) {
	if len(counts) == 0 {
		return 0, nil
	}
	types := make([]string, 0, len(counts))
	for ft := range counts {
		types = append(types, string(ft))
	}
	sort.Strings(types)

	parts := make([]float64, 0, len(types))
	for _, ft := range types {
		m, err := FittingMultiplier(FittingType(ft))
		if err != nil {
			return 0, err
		}
		parts = append(parts, fittingLength(counts[FittingType(ft)], id, m))
	}
	return floats.Sum(parts), nil
}

func knockoutLength(id, d float64) float64 {
	if d == 0 {
		return 0
	}
	scale := id / inchesPerFoot
	if d > id {
		r := 1 - (id*id)/(d*d)
		return scale * r * r
	}
	return scale * contractionLossCoef * (1 - (d*d)/(id*id))
}

func valveLength(id, cv float64) float64 {
	if cv == 0 {
		return 0
	}
	return (valveCoefficient * math.Pow(id, 5)) / (inchesPerFoot * SpitzglassFactor(id) * cv * cv)
}

// NormalizeLength rescales an equivalent length at internal diameter id to
// the length of reference-bore pipe with the same frictional loss.
func NormalizeLength(equivalentLengthFt, id float64) (float64, error) {
	if id <= 0 {
		return 0, fmt.Errorf("%w (got %g)", ErrInvalidDiameter, id)
	}
	if id == ReferenceDiameterIn {
		return equivalentLengthFt, nil
	}
	return equivalentLengthFt * SpitzglassFactor(id) * math.Pow(ReferenceDiameterIn, 5) /
		(math.Pow(id, 5) * SpitzglassFactor(ReferenceDiameterIn)), nil
}
