package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// ErrUnknownFluid is returned for a tank or stream fluid other than oil or water.
var ErrUnknownFluid = errors.New("unknown fluid")

const (
	airMolecularWeight = 28.97
	bblPerDayPerGpm    = 34.2
	hoursPerDay        = 24
	scfPerMMSCF        = 1_000_000
	bubblePointFlash   = 1.5
)

// Fluid is the stored or produced liquid.
type Fluid string

const (
	FluidOil   Fluid = "oil"
	FluidWater Fluid = "water"
)

// thermalSCFHPerBbl is the breathing rate per bbl of tank size.
var thermalSCFHPerBbl = map[Fluid]float64{
	FluidOil:   1.0,
	FluidWater: 0.6,
}

// TankSizesBbl is the discrete set of standard tank sizes.
var TankSizesBbl = []float64{210, 300, 400, 500, 750, 1000}

// TankGroup is a set of identical tanks.
type TankGroup struct {
	Fluid              Fluid   `json:"fluid"`
	Quantity           int     `json:"quantity"`
	SizeBbl            float64 `json:"size_bbl"`
	DesignPressureOsig float64 `json:"design_pressure_osig,omitempty"`
}

// ThermalResult is the breathing inflow of the tank inventory.
type ThermalResult struct {
	OilSCFH   float64 `json:"oil_scfh"`
	WaterSCFH float64 `json:"water_scfh"`
	PPIVFR    float64 `json:"ppivfr_mmscfd"`
}

// ThermalBreathing sums SCFH across oil and water tanks and converts the
// total to MMSCFD.
func ThermalBreathing(tanks []TankGroup) (ThermalResult, error) {
	var oil, water []float64
	for _, t := range tanks {
		factor, ok := thermalSCFHPerBbl[t.Fluid]
		if !ok {
			return ThermalResult{}, fmt.Errorf("tank group: %w: %q", ErrUnknownFluid, t.Fluid)
		}
		scfh := float64(t.Quantity) * t.SizeBbl * factor
		if t.Fluid == FluidOil {
			oil = append(oil, scfh)
		} else {
			water = append(water, scfh)
		}
	}

	res := ThermalResult{
		OilSCFH:   floats.Sum(oil),
		WaterSCFH: floats.Sum(water),
	}
	res.PPIVFR = (res.OilSCFH + res.WaterSCFH) * hoursPerDay / scfPerMMSCF
	return res, nil
}

// FlashEstimateSource labels which flash formula applies to a stream.
type FlashEstimateSource string

const (
	FlashMeasured FlashEstimateSource = "measured"
	FlashFallback FlashEstimateSource = "fallback"
)

// FlashEstimate is either a lab measurement (flash factor and vapor
// molecular weight) or the fallback marker. The zero value is the fallback.
type FlashEstimate struct {
	measured        bool
	flash           float64
	molecularWeight float64
}

// MeasuredFlash returns a lab-measured estimate. Values that could not be
// used in the measured formula yield the fallback instead.
func MeasuredFlash(flash, molecularWeight float64) FlashEstimate {
	if !validLabValue(flash) || flash < 0 || !validLabValue(molecularWeight) || molecularWeight <= 0 {
		return FallbackFlash()
	}
	return FlashEstimate{measured: true, flash: flash, molecularWeight: molecularWeight}
}

// FallbackFlash returns the pressure-correlated estimate marker.
func FallbackFlash() FlashEstimate { return FlashEstimate{} }

// ResolveFlashEstimate turns the optional free-text lab fields into an
// estimate. Both fields must parse; a missing or malformed value in either
// routes the whole stream to the fallback.
func ResolveFlashEstimate(labFlash, labMolecularWeight string) FlashEstimate {
	flash, ok := parseLabField(labFlash)
	if !ok {
		return FallbackFlash()
	}
	mw, ok := parseLabField(labMolecularWeight)
	if !ok {
		return FallbackFlash()
	}
	return MeasuredFlash(flash, mw)
}

func parseLabField(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || !validLabValue(v) {
		return 0, false
	}
	return v, true
}

func validLabValue(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Source returns which formula the estimate selects.
func (e FlashEstimate) Source() FlashEstimateSource {
	if e.measured {
		return FlashMeasured
	}
	return FlashFallback
}

// Measured returns the lab values when the estimate is a measurement.
func (e FlashEstimate) Measured() (flash, molecularWeight float64, ok bool) {
	return e.flash, e.molecularWeight, e.measured
}

type flashEstimateJSON struct {
	Source          FlashEstimateSource `json:"source"`
	Flash           *float64            `json:"flash,omitempty"`
	MolecularWeight *float64            `json:"molecular_weight,omitempty"`
}

func (e FlashEstimate) MarshalJSON() ([]byte, error) {
	out := flashEstimateJSON{Source: e.Source()}
	if e.measured {
		f, mw := e.flash, e.molecularWeight
		out.Flash, out.MolecularWeight = &f, &mw
	}
	return json.Marshal(out)
}

func (e *FlashEstimate) UnmarshalJSON(data []byte) error {
	var in flashEstimateJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if in.Source == FlashMeasured && in.Flash != nil && in.MolecularWeight != nil {
		*e = MeasuredFlash(*in.Flash, *in.MolecularWeight)
		return nil
	}
	*e = FallbackFlash()
	return nil
}

// FlashProfile holds the per-fluid constants of the flash correlations:
//
//	measured: (Base + labFlash) × √(labMW / 28.97)
//	fallback: (Base + pressure × PressureCoefficient + Carryover) × √(FallbackMW / 28.97)
type FlashProfile struct {
	BaseFlashSCFPerBbl      float64 `json:"base_flash_scf_per_bbl"`
	PressureCoefficient     float64 `json:"pressure_coefficient"`
	CarryoverFlashSCFPerBbl float64 `json:"carryover_flash_scf_per_bbl"`
	FallbackMolecularWeight float64 `json:"fallback_molecular_weight"`
}

// FlashProfiles selects a profile per fluid.
type FlashProfiles struct {
	Oil   FlashProfile `json:"oil"`
	Water FlashProfile `json:"water"`
}

// DefaultFlashProfiles returns the field correlation constants: oil flashes
// 12 SCF/bbl plus 1.15 × 1.5 SCF/bbl per psig of last-stage pressure; water
// flashes a fixed base plus carryover. Both fall back to a 46 lb/lbmol vapor.
func DefaultFlashProfiles() FlashProfiles {
	return FlashProfiles{
		Oil: FlashProfile{
			BaseFlashSCFPerBbl:      12,
			PressureCoefficient:     1.15 * 1.5,
			FallbackMolecularWeight: 46,
		},
		Water: FlashProfile{
			BaseFlashSCFPerBbl:      1,
			CarryoverFlashSCFPerBbl: 3,
			FallbackMolecularWeight: 46,
		},
	}
}

// For returns the profile of a fluid.
func (p FlashProfiles) For(f Fluid) (FlashProfile, error) {
	switch f {
	case FluidOil:
		return p.Oil, nil
	case FluidWater:
		return p.Water, nil
	default:
		return FlashProfile{}, fmt.Errorf("%w: %q", ErrUnknownFluid, f)
	}
}

// FlashFactor resolves the flash factor (SCF/bbl, gravity-corrected) for a
// stream at the given last-stage pressure.
func (p FlashProfile) FlashFactor(est FlashEstimate, pressurePsig float64) float64 {
	if flash, mw, ok := est.Measured(); ok {
		return (p.BaseFlashSCFPerBbl + flash) * math.Sqrt(mw/airMolecularWeight)
	}
	return (p.BaseFlashSCFPerBbl + pressurePsig*p.PressureCoefficient + p.CarryoverFlashSCFPerBbl) *
		math.Sqrt(p.FallbackMolecularWeight/airMolecularWeight)
}

// FlashStream is an oil or water production stream dumping to the tanks.
type FlashStream struct {
	Fluid                   Fluid         `json:"fluid"`
	ProductionRateBblPerDay float64       `json:"production_rate_bbl_per_day"`
	LastStagePressurePsig   float64       `json:"last_stage_pressure_psig"`
	SurgePercent            float64       `json:"surge_percent"`
	Estimate                FlashEstimate `json:"estimate"`
}

// StreamInflow is the flash inflow of one stream.
type StreamInflow struct {
	Fluid                       Fluid               `json:"fluid"`
	EstimateSource              FlashEstimateSource `json:"estimate_source"`
	FlowrateGpmEquivalent       float64             `json:"flowrate_gpm_equivalent"`
	AdjustedThroughputBblPerDay float64             `json:"adjusted_throughput_bbl_per_day"`
	FlashFactor                 float64             `json:"flash_factor"`
	PPIVFR                      float64             `json:"ppivfr_mmscfd"`
}

// FlashInflow computes a stream's surge-adjusted throughput and its flash
// vapor in MMSCFD.
func FlashInflow(s FlashStream, p FlashProfile) StreamInflow {
	gpm := s.ProductionRateBblPerDay / bblPerDayPerGpm
	adjusted := (gpm*s.SurgePercent/100 + gpm) * bblPerDayPerGpm
	factor := p.FlashFactor(s.Estimate, s.LastStagePressurePsig)
	return StreamInflow{
		Fluid:                       s.Fluid,
		EstimateSource:              s.Estimate.Source(),
		FlowrateGpmEquivalent:       gpm,
		AdjustedThroughputBblPerDay: adjusted,
		FlashFactor:                 factor,
		PPIVFR:                      factor * adjusted / scfPerMMSCF,
	}
}

// ManualSource is an operator-entered vapor source. Its contribution is
// bubble-point flash times liquid rate, in the units entered; it is not
// scaled to MMSCFD like the other sources.
type ManualSource struct {
	Name                    string  `json:"name,omitempty"`
	BubblePointPressurePsig float64 `json:"bubble_point_pressure_psig"`
	LiquidFlowrateGpm       float64 `json:"liquid_flowrate_gpm"`
	FromTank                bool    `json:"from_tank"`
}

// ManualInflow is the contribution of one manual source.
type ManualInflow struct {
	Name         string  `json:"name,omitempty"`
	Flash        float64 `json:"flash"`
	Contribution float64 `json:"contribution"`
}

// ManualSourceInflow evaluates a manual source. Only sources drawing from a
// tank flash; others contribute zero.
func ManualSourceInflow(m ManualSource) ManualInflow {
	var flash float64
	if m.FromTank {
		flash = m.BubblePointPressurePsig * bubblePointFlash
	}
	return ManualInflow{
		Name:         m.Name,
		Flash:        flash,
		Contribution: flash * m.LiquidFlowrateGpm,
	}
}

// InflowResult is the total required venting capacity and its parts.
type InflowResult struct {
	Thermal     ThermalResult  `json:"thermal"`
	Streams     []StreamInflow `json:"streams"`
	Manual      []ManualInflow `json:"manual"`
	TotalMMSCFD float64        `json:"total_mmscfd"`
}

// AggregateInflow evaluates every vapor source and sums the contributions.
func AggregateInflow(tanks []TankGroup, streams []FlashStream, manual []ManualSource, profiles FlashProfiles) (InflowResult, error) {
	thermal, err := ThermalBreathing(tanks)
	if err != nil {
		return InflowResult{}, err
	}

	res := InflowResult{
		Thermal: thermal,
		Streams: make([]StreamInflow, 0, len(streams)),
		Manual:  make([]ManualInflow, 0, len(manual)),
	}
	parts := []float64{thermal.PPIVFR}

	for i, s := range streams {
		profile, err := profiles.For(s.Fluid)
		if err != nil {
			return InflowResult{}, fmt.Errorf("flash stream %d: %w", i, err)
		}
		si := FlashInflow(s, profile)
		res.Streams = append(res.Streams, si)
		parts = append(parts, si.PPIVFR)
	}

	for _, m := range manual {
		mi := ManualSourceInflow(m)
		res.Manual = append(res.Manual, mi)
		parts = append(parts, mi.Contribution)
	}

	res.TotalMMSCFD = floats.Sum(parts)
	return res, nil
}
