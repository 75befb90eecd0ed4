package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// spitzglassCoefficient is the low-pressure gas constant for capacity in
// MMSCFD per √psi with lengths in feet and diameters in inches.
const spitzglassCoefficient = 0.22437

// CapacityState distinguishes a computed capacity from a header with no
// venting path configured.
type CapacityState string

const (
	CapacityConfigured   CapacityState = "configured"
	CapacityUnconfigured CapacityState = "unconfigured"
)

// Capacity is a venting capacity that may be undefined. The zero value is
// unconfigured, which is never the same thing as a configured zero.
type Capacity struct {
	value      float64
	configured bool
}

// ConfiguredCapacity wraps a computed capacity in MMSCFD/√psi.
func ConfiguredCapacity(v float64) Capacity {
	return Capacity{value: v, configured: true}
}

// UnconfiguredCapacity is the capacity of a header with no piping.
func UnconfiguredCapacity() Capacity {
	return Capacity{}
}

// Value returns the capacity and whether it is defined.
func (c Capacity) Value() (float64, bool) {
	return c.value, c.configured
}

// Configured reports whether the capacity is defined.
func (c Capacity) Configured() bool { return c.configured }

// State returns the capacity state label.
func (c Capacity) State() CapacityState {
	if c.configured {
		return CapacityConfigured
	}
	return CapacityUnconfigured
}

func (c Capacity) String() string {
	if !c.configured {
		return string(CapacityUnconfigured)
	}
	return fmt.Sprintf("%.6g", c.value)
}

type capacityJSON struct {
	State CapacityState `json:"state"`
	Value *float64      `json:"mmscfd_per_sqrt_psi,omitempty"`
}

// MarshalJSON encodes the capacity as {"state": ..., "mmscfd_per_sqrt_psi": ...}.
// Unconfigured capacities omit the value rather than reporting zero.
func (c Capacity) MarshalJSON() ([]byte, error) {
	out := capacityJSON{State: c.State()}
	if c.configured {
		v := c.value
		out.Value = &v
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the form written by MarshalJSON.
func (c *Capacity) UnmarshalJSON(data []byte) error {
	var in capacityJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	switch in.State {
	case CapacityConfigured:
		if in.Value == nil {
			return errors.New("configured capacity without value")
		}
		*c = ConfiguredCapacity(*in.Value)
	case CapacityUnconfigured, "":
		*c = UnconfiguredCapacity()
	default:
		return fmt.Errorf("unknown capacity state %q", in.State)
	}
	return nil
}

// CapacityForLength applies the Spitzglass capacity relation at the
// reference bore to a total normalized length. A zero length means no
// venting path and yields an unconfigured capacity.
func CapacityForLength(totalNormalizedLengthFt float64) Capacity {
	if totalNormalizedLengthFt <= 0 {
		return UnconfiguredCapacity()
	}
	return ConfiguredCapacity(math.Sqrt(spitzglassCoefficient * math.Pow(ReferenceDiameterIn, 5) /
		(totalNormalizedLengthFt * SpitzglassFactor(ReferenceDiameterIn))))
}

// SumCapacities adds capacities of parallel venting paths. Unconfigured
// paths are skipped; the sum is unconfigured only when every path is.
func SumCapacities(caps ...Capacity) Capacity {
	var total float64
	var found bool
	for _, c := range caps {
		if v, ok := c.Value(); ok {
			total += v
			found = true
		}
	}
	if !found {
		return UnconfiguredCapacity()
	}
	return ConfiguredCapacity(total)
}
