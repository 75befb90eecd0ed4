// Package export flattens an assessment into a tabular snapshot.
package export

import (
	"fmt"
	"io"
	"strconv"

	"github.com/couchcryptid/vent-capacity-service/internal/domain"
	"github.com/gocarina/gocsv"
)

// Row sections.
const (
	SectionInventory = "inventory"
	SectionRun       = "run"
	SectionDevice    = "device"
	SectionHeader    = "header"
	SectionSource    = "source"
	SectionSummary   = "summary"
)

// Row is one line of the snapshot. Columns that do not apply to a section
// are left blank, as is any capacity that is unconfigured.
type Row struct {
	Section            string `csv:"section"`
	Header             string `csv:"header"`
	Item               string `csv:"item"`
	Detail             string `csv:"detail"`
	EquivalentLengthFt string `csv:"equivalent_length_ft"`
	NormalizedLengthFt string `csv:"normalized_length_ft"`
	Capacity           string `csv:"capacity_mmscfd_per_sqrt_psi"`
	InflowMMSCFD       string `csv:"inflow_mmscfd"`
	Status             string `csv:"status"`
	TankVolumeBbl      string `csv:"tank_volume_bbl"`
	VaporSpaceBbl      string `csv:"vapor_space_bbl"`
	Assumptions        string `csv:"assumptions"`
}

// Rows flattens an assessment: each tank group and the inventory total,
// every pipe run and device, each header's total, each vapor source, then a
// single summary row carrying the assumptions note.
func Rows(a domain.Assessment) []Row {
	inv := a.Inventory
	var rows []Row
	for _, t := range inv.Tanks {
		rows = append(rows, Row{
			Section:       SectionInventory,
			Item:          string(t.Fluid) + "_tanks",
			Detail:        fmt.Sprintf("%d x %s bbl, design %s osig", t.Quantity, num(t.SizeBbl), num(t.DesignPressureOsig)),
			TankVolumeBbl: num(float64(t.Quantity) * t.SizeBbl),
		})
	}
	rows = append(rows, Row{
		Section:       SectionInventory,
		Item:          "total",
		Detail:        fmt.Sprintf("oil %d, water %d", inv.OilTanks, inv.WaterTanks),
		TankVolumeBbl: num(inv.TotalTankVolumeBbl),
		VaporSpaceBbl: num(inv.EstimatedVaporSpaceBbl),
	})

	for _, h := range a.Headers {
		for _, r := range h.Runs {
			rows = append(rows, Row{
				Section:            SectionRun,
				Header:             h.Name,
				Item:               r.NominalLabel,
				Detail:             "id " + num(r.InternalDiameterIn) + " in",
				EquivalentLengthFt: num(r.EquivalentLengthFt),
				NormalizedLengthFt: num(r.NormalizedLengthFt),
			})
		}
		if d := h.Device; d != nil {
			rows = append(rows, Row{
				Section:            SectionDevice,
				Header:             h.Name,
				Item:               d.Name,
				Detail:             "rated " + num(d.RatedCapacity),
				EquivalentLengthFt: num(d.EquivalentLengthFt),
				Capacity:           capacity(d.ReducedCapacity),
			})
		}
		rows = append(rows, Row{
			Section:            SectionHeader,
			Header:             h.Name,
			NormalizedLengthFt: num(h.TotalNormalizedLengthFt),
			Capacity:           capacity(h.EffectiveCapacity),
			Status:             string(h.EffectiveCapacity.State()),
		})
	}

	rows = append(rows, Row{
		Section:      SectionSource,
		Item:         "thermal_breathing",
		Detail:       fmt.Sprintf("oil %s scfh, water %s scfh", num(a.Inflow.Thermal.OilSCFH), num(a.Inflow.Thermal.WaterSCFH)),
		InflowMMSCFD: num(a.Inflow.Thermal.PPIVFR),
	})
	for _, s := range a.Inflow.Streams {
		rows = append(rows, Row{
			Section:      SectionSource,
			Item:         "flash_" + string(s.Fluid),
			Detail:       string(s.EstimateSource),
			InflowMMSCFD: num(s.PPIVFR),
		})
	}
	for _, m := range a.Inflow.Manual {
		rows = append(rows, Row{
			Section:      SectionSource,
			Item:         "manual",
			Detail:       m.Name,
			InflowMMSCFD: num(m.Contribution),
		})
	}

	summary := Row{
		Section:      SectionSummary,
		Item:         a.Site,
		Detail:       a.ID,
		Capacity:     capacity(a.TotalCapacity),
		InflowMMSCFD: num(a.Inflow.TotalMMSCFD),
		Status:       string(a.Margin.Status),
		Assumptions:  a.Assumptions,
	}
	if a.Margin.Ratio != nil {
		summary.Detail += " ratio " + num(*a.Margin.Ratio)
	}
	return append(rows, summary)
}

// WriteCSV writes the snapshot of an assessment as CSV with a header line.
func WriteCSV(w io.Writer, a domain.Assessment) error {
	if err := gocsv.Marshal(Rows(a), w); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'g', 10, 64)
}

func capacity(c domain.Capacity) string {
	v, ok := c.Value()
	if !ok {
		return ""
	}
	return num(v)
}
