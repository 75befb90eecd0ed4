package domain

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Header is one vent or flare path: the pipe runs that make it up and an
// optional control device in series with them.
type Header struct {
	Name   string         `json:"name"`
	Runs   []PipeRun      `json:"runs,omitempty"`
	Device *ControlDevice `json:"device,omitempty"`
}

// ControlDevice is a flare or combustor with a rated capacity. The on/off
// setpoints are carried for reporting only.
type ControlDevice struct {
	Name              string  `json:"name,omitempty"`
	RatedCapacity     float64 `json:"rated_capacity"` // MMSCFD/√psi
	TurnOnPressureOz  float64 `json:"turn_on_pressure_oz,omitempty"`
	TurnOffPressureOz float64 `json:"turn_off_pressure_oz,omitempty"`
}

// DeviceResult is the effect of a control device on its header.
type DeviceResult struct {
	Name               string   `json:"name,omitempty"`
	RatedCapacity      float64  `json:"rated_capacity"`
	EquivalentLengthFt float64  `json:"equivalent_length_ft"`
	ReducedCapacity    Capacity `json:"reduced_capacity"`
	TurnOnPressureOz   float64  `json:"turn_on_pressure_oz,omitempty"`
	TurnOffPressureOz  float64  `json:"turn_off_pressure_oz,omitempty"`
}

// HeaderResult is the evaluated capacity of one header. EffectiveCapacity is
// the de-rated capacity when a device is present, otherwise the piping
// capacity.
type HeaderResult struct {
	Name                    string        `json:"name"`
	Runs                    []RunLength   `json:"runs"`
	TotalNormalizedLengthFt float64       `json:"total_normalized_length_ft"`
	PipingCapacity          Capacity      `json:"piping_capacity"`
	Device                  *DeviceResult `json:"device,omitempty"`
	EffectiveCapacity       Capacity      `json:"effective_capacity"`
}

// EvaluateHeader computes every run's equivalent and normalized length,
// sums them at the reference bore and applies the capacity relation.
// A configuration error in any run fails the whole header.
func EvaluateHeader(h Header) (HeaderResult, error) {
	res := HeaderResult{
		Name: h.Name,
		Runs: make([]RunLength, 0, len(h.Runs)),
	}

	normalized := make([]float64, 0, len(h.Runs))
	for _, run := range h.Runs {
		rl, err := EquivalentLength(run)
		if err != nil {
			return HeaderResult{}, fmt.Errorf("header %q: %w", h.Name, err)
		}
		res.Runs = append(res.Runs, rl)
		normalized = append(normalized, rl.NormalizedLengthFt)
	}

	res.TotalNormalizedLengthFt = floats.Sum(normalized)
	if !finite(res.TotalNormalizedLengthFt) {
		return HeaderResult{}, fmt.Errorf("header %q: total normalized length: %w", h.Name, ErrNonFiniteResult)
	}
	res.PipingCapacity = CapacityForLength(res.TotalNormalizedLengthFt)
	res.EffectiveCapacity = res.PipingCapacity

	if h.Device != nil {
		dr := DerateCapacity(*h.Device, res.TotalNormalizedLengthFt)
		if !finite(dr.EquivalentLengthFt) || !finite(res.TotalNormalizedLengthFt+dr.EquivalentLengthFt) {
			return HeaderResult{}, fmt.Errorf("header %q: device %q rated %g: %w",
				h.Name, dr.Name, dr.RatedCapacity, ErrNonFiniteResult)
		}
		// A device with no piping upstream of it is not a venting path.
		if !res.PipingCapacity.Configured() {
			dr.ReducedCapacity = UnconfiguredCapacity()
		}
		res.Device = &dr
		res.EffectiveCapacity = dr.ReducedCapacity
	}
	return res, nil
}

// DeviceEquivalentLength converts a rated device capacity into the length of
// reference-bore pipe with the same capacity. A zero rating contributes no
// length.
func DeviceEquivalentLength(ratedCapacity float64) float64 {
	if ratedCapacity <= 0 {
		return 0
	}
	return spitzglassCoefficient * math.Pow(ReferenceDiameterIn, 5) /
		(ratedCapacity * ratedCapacity * SpitzglassFactor(ReferenceDiameterIn))
}

// DerateCapacity places the device in series with piping of the given total
// normalized length and returns the reduced capacity of the combination.
func DerateCapacity(dev ControlDevice, totalNormalizedLengthFt float64) DeviceResult {
	le := DeviceEquivalentLength(dev.RatedCapacity)
	return DeviceResult{
		Name:               dev.Name,
		RatedCapacity:      dev.RatedCapacity,
		EquivalentLengthFt: le,
		ReducedCapacity:    CapacityForLength(totalNormalizedLengthFt + le),
		TurnOnPressureOz:   dev.TurnOnPressureOz,
		TurnOffPressureOz:  dev.TurnOffPressureOz,
	}
}
