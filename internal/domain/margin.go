package domain

// MarginStatus is the outcome of comparing capacity against inflow.
type MarginStatus string

const (
	MarginPass              MarginStatus = "pass"
	MarginUnderCapacity     MarginStatus = "under_capacity"
	MarginNoInflow          MarginStatus = "no_inflow"
	MarginCapacityUndefined MarginStatus = "capacity_undefined"
)

// Margin reports whether total venting capacity covers total inflow.
// Ratio is nil whenever no numeric ratio exists.
type Margin struct {
	Status        MarginStatus `json:"status"`
	Ratio         *float64     `json:"ratio,omitempty"`
	TotalInflow   float64      `json:"total_inflow_mmscfd"`
	TotalCapacity Capacity     `json:"total_capacity"`
}

// Passed reports whether capacity meets or exceeds inflow. A site with no
// inflow passes trivially when it has a configured venting path.
func (m Margin) Passed() bool {
	return m.Status == MarginPass || m.Status == MarginNoInflow
}

// CheckMargin compares total inflow with total capacity. An undefined
// capacity is reported before a zero inflow; neither produces a ratio.
func CheckMargin(totalInflowMMSCFD float64, totalCapacity Capacity) Margin {
	m := Margin{
		TotalInflow:   totalInflowMMSCFD,
		TotalCapacity: totalCapacity,
	}

	capacity, ok := totalCapacity.Value()
	switch {
	case !ok:
		m.Status = MarginCapacityUndefined
		return m
	case totalInflowMMSCFD == 0:
		m.Status = MarginNoInflow
		return m
	}

	ratio := capacity / totalInflowMMSCFD
	m.Ratio = &ratio
	if ratio >= 1.0 {
		m.Status = MarginPass
	} else {
		m.Status = MarginUnderCapacity
	}
	return m
}
