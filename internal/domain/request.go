package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/hashicorp/go-multierror"
)

// ErrInvalidRequest wraps every boundary validation failure of a request.
var ErrInvalidRequest = errors.New("invalid assessment request")

// RawRequest is an unprocessed assessment request from the source topic or
// the HTTP API.
type RawRequest struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// OutputMessage is the serialized form of an assessment destined for the sink.
type OutputMessage struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// AssessmentRequest is the wire form of a site as entered by operators.
// Lab values arrive as free text and are resolved, not validated.
type AssessmentRequest struct {
	Site          string          `json:"site" yaml:"site" toml:"site"`
	Assumptions   string          `json:"assumptions" yaml:"assumptions" toml:"assumptions"`
	Tanks         []RequestTank   `json:"tanks" yaml:"tanks" toml:"tanks"`
	Headers       []RequestHeader `json:"headers" yaml:"headers" toml:"headers"`
	FlashStreams  []RequestStream `json:"flash_streams" yaml:"flash_streams" toml:"flash_streams"`
	ManualSources []RequestManual `json:"manual_sources" yaml:"manual_sources" toml:"manual_sources"`
}

type RequestTank struct {
	Fluid              string  `json:"fluid" yaml:"fluid" toml:"fluid"`
	Quantity           int     `json:"quantity" yaml:"quantity" toml:"quantity"`
	SizeBbl            float64 `json:"size_bbl" yaml:"size_bbl" toml:"size_bbl"`
	DesignPressureOsig float64 `json:"design_pressure_osig" yaml:"design_pressure_osig" toml:"design_pressure_osig"`
}

type RequestHeader struct {
	Name   string         `json:"name" yaml:"name" toml:"name"`
	Runs   []RequestRun   `json:"runs" yaml:"runs" toml:"runs"`
	Device *RequestDevice `json:"device,omitempty" yaml:"device,omitempty" toml:"device,omitempty"`
}

type RequestRun struct {
	Nominal             string         `json:"nominal" yaml:"nominal" toml:"nominal"`
	InternalDiameterIn  *float64       `json:"internal_diameter_in,omitempty" yaml:"internal_diameter_in,omitempty" toml:"internal_diameter_in,omitempty"`
	DevelopedLengthFt   float64        `json:"developed_length_ft" yaml:"developed_length_ft" toml:"developed_length_ft"`
	Fittings            map[string]int `json:"fittings,omitempty" yaml:"fittings,omitempty" toml:"fittings,omitempty"`
	KnockoutDiametersIn []float64      `json:"knockout_diameters_in,omitempty" yaml:"knockout_diameters_in,omitempty" toml:"knockout_diameters_in,omitempty"`
	SpecialtyValveCv    []float64      `json:"specialty_valve_cv,omitempty" yaml:"specialty_valve_cv,omitempty" toml:"specialty_valve_cv,omitempty"`
}

type RequestDevice struct {
	Name              string  `json:"name" yaml:"name" toml:"name"`
	RatedCapacity     float64 `json:"rated_capacity" yaml:"rated_capacity" toml:"rated_capacity"`
	TurnOnPressureOz  float64 `json:"turn_on_pressure_oz" yaml:"turn_on_pressure_oz" toml:"turn_on_pressure_oz"`
	TurnOffPressureOz float64 `json:"turn_off_pressure_oz" yaml:"turn_off_pressure_oz" toml:"turn_off_pressure_oz"`
}

type RequestStream struct {
	Fluid                   string  `json:"fluid" yaml:"fluid" toml:"fluid"`
	ProductionRateBblPerDay float64 `json:"production_rate_bbl_per_day" yaml:"production_rate_bbl_per_day" toml:"production_rate_bbl_per_day"`
	LastStagePressurePsig   float64 `json:"last_stage_pressure_psig" yaml:"last_stage_pressure_psig" toml:"last_stage_pressure_psig"`
	SurgePercent            float64 `json:"surge_percent" yaml:"surge_percent" toml:"surge_percent"`
	LabFlash                string  `json:"lab_flash" yaml:"lab_flash" toml:"lab_flash"`
	LabMolecularWeight      string  `json:"lab_molecular_weight" yaml:"lab_molecular_weight" toml:"lab_molecular_weight"`
}

type RequestManual struct {
	Name                    string  `json:"name" yaml:"name" toml:"name"`
	BubblePointPressurePsig float64 `json:"bubble_point_pressure_psig" yaml:"bubble_point_pressure_psig" toml:"bubble_point_pressure_psig"`
	LiquidFlowrateGpm       float64 `json:"liquid_flowrate_gpm" yaml:"liquid_flowrate_gpm" toml:"liquid_flowrate_gpm"`
	FromTank                bool    `json:"from_tank" yaml:"from_tank" toml:"from_tank"`
}

// ParseRawRequest deserializes a RawRequest's value and converts it to a Site.
func ParseRawRequest(raw RawRequest) (Site, error) {
	var req AssessmentRequest
	if err := json.Unmarshal(raw.Value, &req); err != nil {
		return Site{}, fmt.Errorf("%w: parse assessment request: %w", ErrInvalidRequest, err)
	}
	return req.ToSite()
}

// IsConfigurationError reports whether err stems from the request content
// rather than from the service.
func IsConfigurationError(err error) bool {
	for _, target := range []error{ErrInvalidRequest, ErrInvalidDiameter, ErrUnknownFitting, ErrUnknownNominalSize, ErrUnknownFluid, ErrNonFiniteResult} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// ToSite validates the request and resolves it into engine inputs. All
// boundary violations are collected and returned together, wrapped in
// ErrInvalidRequest.
func (r AssessmentRequest) ToSite() (Site, error) {
	var errs *multierror.Error

	site := Site{
		Name:        r.Site,
		Assumptions: r.Assumptions,
	}

	for i, t := range r.Tanks {
		tank, err := t.toTankGroup()
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("tanks[%d]: %w", i, err))
			continue
		}
		site.Tanks = append(site.Tanks, tank)
	}

	for i, h := range r.Headers {
		header, err := h.toHeader(i)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		site.Headers = append(site.Headers, header)
	}

	for i, s := range r.FlashStreams {
		stream, err := s.toFlashStream()
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("flash_streams[%d]: %w", i, err))
			continue
		}
		site.FlashStreams = append(site.FlashStreams, stream)
	}

	for i, m := range r.ManualSources {
		if !nonNegative(m.BubblePointPressurePsig) || !nonNegative(m.LiquidFlowrateGpm) {
			errs = multierror.Append(errs, fmt.Errorf("manual_sources[%d]: pressure and flowrate must be finite and not negative", i))
			continue
		}
		site.ManualSources = append(site.ManualSources, ManualSource(m))
	}

	if err := errs.ErrorOrNil(); err != nil {
		return Site{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return site, nil
}

func parseFluid(s string) (Fluid, error) {
	switch f := Fluid(s); f {
	case FluidOil, FluidWater:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFluid, s)
	}
}

func (t RequestTank) toTankGroup() (TankGroup, error) {
	fluid, err := parseFluid(t.Fluid)
	if err != nil {
		return TankGroup{}, err
	}
	if t.Quantity < 0 {
		return TankGroup{}, fmt.Errorf("quantity must not be negative (got %d)", t.Quantity)
	}
	if !slices.Contains(TankSizesBbl, t.SizeBbl) {
		return TankGroup{}, fmt.Errorf("size %g bbl is not a standard tank size %v", t.SizeBbl, TankSizesBbl)
	}
	if !nonNegative(t.DesignPressureOsig) {
		return TankGroup{}, fmt.Errorf("design pressure must be finite and not negative (got %g)", t.DesignPressureOsig)
	}
	return TankGroup{
		Fluid:              fluid,
		Quantity:           t.Quantity,
		SizeBbl:            t.SizeBbl,
		DesignPressureOsig: t.DesignPressureOsig,
	}, nil
}

func (h RequestHeader) toHeader(idx int) (Header, error) {
	var errs *multierror.Error
	name := h.Name
	if name == "" {
		name = fmt.Sprintf("header-%d", idx+1)
	}

	header := Header{Name: name}
	for j, r := range h.Runs {
		run, err := r.toPipeRun()
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("headers[%d].runs[%d]: %w", idx, j, err))
			continue
		}
		header.Runs = append(header.Runs, run)
	}

	if d := h.Device; d != nil {
		if !nonNegative(d.RatedCapacity) {
			errs = multierror.Append(errs, fmt.Errorf("headers[%d].device: rated capacity must be finite and not negative (got %g)", idx, d.RatedCapacity))
		}
		if !finite(d.TurnOnPressureOz) || !finite(d.TurnOffPressureOz) {
			errs = multierror.Append(errs, fmt.Errorf("headers[%d].device: turn-on and turn-off pressures must be finite", idx))
		}
		if d.TurnOnPressureOz > 0 && d.TurnOffPressureOz > d.TurnOnPressureOz {
			errs = multierror.Append(errs, fmt.Errorf("headers[%d].device: turn-off pressure %g oz exceeds turn-on pressure %g oz",
				idx, d.TurnOffPressureOz, d.TurnOnPressureOz))
		}
		header.Device = &ControlDevice{
			Name:              d.Name,
			RatedCapacity:     d.RatedCapacity,
			TurnOnPressureOz:  d.TurnOnPressureOz,
			TurnOffPressureOz: d.TurnOffPressureOz,
		}
	}

	if err := errs.ErrorOrNil(); err != nil {
		return Header{}, err
	}
	return header, nil
}

func (r RequestRun) toPipeRun() (PipeRun, error) {
	var errs *multierror.Error

	run := PipeRun{
		NominalLabel:      r.Nominal,
		DevelopedLengthFt: r.DevelopedLengthFt,
	}

	switch {
	case r.InternalDiameterIn != nil:
		if d := *r.InternalDiameterIn; d <= 0 || !finite(d) {
			errs = multierror.Append(errs, fmt.Errorf("%w (got %g)", ErrInvalidDiameter, *r.InternalDiameterIn))
		}
		run.InternalDiameterIn = *r.InternalDiameterIn
	default:
		size, err := LookupNominalSize(r.Nominal)
		if err != nil {
			errs = multierror.Append(errs, err)
		}
		run.NominalLabel = size.Label
		run.InternalDiameterIn = size.InternalDiameterIn
	}

	if !nonNegative(r.DevelopedLengthFt) {
		errs = multierror.Append(errs, fmt.Errorf("developed length must be finite and not negative (got %g)", r.DevelopedLengthFt))
	}

	if len(r.Fittings) > 0 {
		run.Fittings = make(map[FittingType]int, len(r.Fittings))
		for name, count := range r.Fittings {
			ft := FittingType(name)
			if _, err := FittingMultiplier(ft); err != nil {
				errs = multierror.Append(errs, err)
				continue
			}
			if count < 0 {
				errs = multierror.Append(errs, fmt.Errorf("fitting %s: count must not be negative (got %d)", name, count))
				continue
			}
			if count > 0 {
				run.Fittings[ft] = count
			}
		}
	}

	if len(r.KnockoutDiametersIn) > MaxKnockouts {
		errs = multierror.Append(errs, fmt.Errorf("at most %d knockouts per run (got %d)", MaxKnockouts, len(r.KnockoutDiametersIn)))
	}
	if slices.ContainsFunc(r.KnockoutDiametersIn, func(d float64) bool { return !nonNegative(d) }) {
		errs = multierror.Append(errs, errors.New("knockout diameters must be finite and not negative"))
	}
	run.KnockoutDiametersIn = r.KnockoutDiametersIn

	if len(r.SpecialtyValveCv) > MaxSpecialtyValves {
		errs = multierror.Append(errs, fmt.Errorf("at most %d specialty valves per run (got %d)", MaxSpecialtyValves, len(r.SpecialtyValveCv)))
	}
	if slices.ContainsFunc(r.SpecialtyValveCv, func(cv float64) bool { return !nonNegative(cv) }) {
		errs = multierror.Append(errs, errors.New("specialty valve Cv must be finite and not negative"))
	}
	run.SpecialtyValveCv = r.SpecialtyValveCv

	if err := errs.ErrorOrNil(); err != nil {
		return PipeRun{}, err
	}
	return run, nil
}

func (s RequestStream) toFlashStream() (FlashStream, error) {
	fluid, err := parseFluid(s.Fluid)
	if err != nil {
		return FlashStream{}, err
	}
	if !nonNegative(s.ProductionRateBblPerDay) {
		return FlashStream{}, fmt.Errorf("production rate must be finite and not negative (got %g)", s.ProductionRateBblPerDay)
	}
	if !nonNegative(s.SurgePercent) {
		return FlashStream{}, fmt.Errorf("surge percent must be finite and not negative (got %g)", s.SurgePercent)
	}
	if !finite(s.LastStagePressurePsig) {
		return FlashStream{}, fmt.Errorf("last stage pressure must be finite (got %g)", s.LastStagePressurePsig)
	}
	return FlashStream{
		Fluid:                   fluid,
		ProductionRateBblPerDay: s.ProductionRateBblPerDay,
		LastStagePressurePsig:   s.LastStagePressurePsig,
		SurgePercent:            s.SurgePercent,
		Estimate:                ResolveFlashEstimate(s.LabFlash, s.LabMolecularWeight),
	}, nil
}

// nonNegative is false for negatives, NaN and infinities.
func nonNegative(v float64) bool {
	return v >= 0 && finite(v)
}

// SerializeAssessment marshals an assessment into an output message keyed by
// its fingerprint.
func SerializeAssessment(a Assessment) (OutputMessage, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return OutputMessage{}, fmt.Errorf("serialize assessment: %w", err)
	}
	return OutputMessage{
		Key:   []byte(a.ID),
		Value: data,
		Headers: map[string]string{
			"margin_status": string(a.Margin.Status),
			"assessed_at":   a.AssessedAt.Format(time.RFC3339),
		},
	}, nil
}
