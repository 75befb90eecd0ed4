package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// vaporSpaceFraction is the share of tank volume assumed to be vapor space.
const vaporSpaceFraction = 0.25

// Site is the full set of engine inputs for one relief scope.
type Site struct {
	Name          string         `json:"name,omitempty"`
	Assumptions   string         `json:"assumptions,omitempty"`
	Tanks         []TankGroup    `json:"tanks,omitempty"`
	Headers       []Header       `json:"headers,omitempty"`
	FlashStreams  []FlashStream  `json:"flash_streams,omitempty"`
	ManualSources []ManualSource `json:"manual_sources,omitempty"`
}

// InventorySummary describes the tank battery.
type InventorySummary struct {
	Tanks                  []TankGroup `json:"tanks,omitempty"`
	OilTanks               int         `json:"oil_tanks"`
	WaterTanks             int         `json:"water_tanks"`
	TotalTankVolumeBbl     float64     `json:"total_tank_volume_bbl"`
	EstimatedVaporSpaceBbl float64     `json:"estimated_vapor_space_bbl"`
}

// Assessment is the derived comparison of venting capacity against vapor
// inflow. It is never stored by the engine.
type Assessment struct {
	ID            string           `json:"id"`
	Site          string           `json:"site,omitempty"`
	Assumptions   string           `json:"assumptions,omitempty"`
	Inventory     InventorySummary `json:"inventory"`
	Headers       []HeaderResult   `json:"headers"`
	Inflow        InflowResult     `json:"inflow"`
	TotalCapacity Capacity         `json:"total_capacity"`
	Margin        Margin           `json:"margin"`
	AssessedAt    time.Time        `json:"assessed_at"`
}

// Assessor evaluates a site.
type Assessor interface {
	Assess(site Site) (Assessment, error)
}

// Engine is the stateless assessment engine. It is safe for concurrent use.
type Engine struct {
	profiles FlashProfiles
}

// NewEngine creates an engine with the given flash correlation profiles.
func NewEngine(profiles FlashProfiles) *Engine {
	return &Engine{profiles: profiles}
}

// Profiles returns the flash profiles the engine was built with.
func (e *Engine) Profiles() FlashProfiles { return e.profiles }

// Assess evaluates every header and vapor source of a site and checks the
// margin. Configuration errors (bad diameters, unknown fittings or fluids)
// fail the assessment; everything else is reported in the result.
func (e *Engine) Assess(site Site) (Assessment, error) {
	id, err := Fingerprint(site)
	if err != nil {
		return Assessment{}, err
	}

	headers := make([]HeaderResult, 0, len(site.Headers))
	caps := make([]Capacity, 0, len(site.Headers))
	for _, h := range site.Headers {
		hr, err := EvaluateHeader(h)
		if err != nil {
			return Assessment{}, err
		}
		headers = append(headers, hr)
		caps = append(caps, hr.EffectiveCapacity)
	}

	inflow, err := AggregateInflow(site.Tanks, site.FlashStreams, site.ManualSources, e.profiles)
	if err != nil {
		return Assessment{}, err
	}
	if !finite(inflow.TotalMMSCFD) {
		return Assessment{}, fmt.Errorf("total inflow: %w", ErrNonFiniteResult)
	}

	total := SumCapacities(caps...)
	if v, ok := total.Value(); ok && !finite(v) {
		return Assessment{}, fmt.Errorf("total capacity: %w", ErrNonFiniteResult)
	}
	margin := CheckMargin(inflow.TotalMMSCFD, total)
	if margin.Ratio != nil && !finite(*margin.Ratio) {
		return Assessment{}, fmt.Errorf("margin ratio %g / %s: %w", inflow.TotalMMSCFD, total, ErrNonFiniteResult)
	}

	return Assessment{
		ID:            id,
		Site:          site.Name,
		Assumptions:   site.Assumptions,
		Inventory:     SummarizeInventory(site.Tanks),
		Headers:       headers,
		Inflow:        inflow,
		TotalCapacity: total,
		Margin:        margin,
		AssessedAt:    clock.Now().UTC(),
	}, nil
}

// SummarizeInventory counts tanks and estimates vapor space.
func SummarizeInventory(tanks []TankGroup) InventorySummary {
	s := InventorySummary{Tanks: tanks}
	for _, t := range tanks {
		switch t.Fluid {
		case FluidOil:
			s.OilTanks += t.Quantity
		case FluidWater:
			s.WaterTanks += t.Quantity
		}
		s.TotalTankVolumeBbl += float64(t.Quantity) * t.SizeBbl
	}
	s.EstimatedVaporSpaceBbl = s.TotalTankVolumeBbl * vaporSpaceFraction
	return s
}

// Fingerprint produces a deterministic ID from the canonical JSON of a site.
// encoding/json sorts map keys, so fitting maps hash stably.
func Fingerprint(site Site) (string, error) {
	data, err := json.Marshal(site)
	if err != nil {
		return "", fmt.Errorf("fingerprint site: %w", err)
	}
	hash := sha256.Sum256(data)
	return "assessment-" + hex.EncodeToString(hash[:12]), nil
}
