package domain

import (
	"errors"
	"fmt"
)

// ErrUnknownFitting is returned when a pipe run names a fitting type that is
// not in the loss library.
var ErrUnknownFitting = errors.New("unknown fitting type")

// FittingType identifies an entry in the fitting loss library.
type FittingType string

const (
	FittingTeeRun            FittingType = "tee_run"
	FittingTeeBranch         FittingType = "tee_branch"
	FittingElbow90Threaded   FittingType = "elbow_90_threaded"
	FittingElbow45Threaded   FittingType = "elbow_45_threaded"
	FittingElbow90LongRadius FittingType = "elbow_90_long_radius"
	FittingElbow45LongRadius FittingType = "elbow_45_long_radius"
	FittingGateValve         FittingType = "gate_valve"
	FittingGlobeValve        FittingType = "globe_valve"
	FittingBallValve         FittingType = "ball_valve"
	FittingButterflyValve    FittingType = "butterfly_valve"
	FittingCheckValve        FittingType = "check_valve"
	FittingEntranceExit      FittingType = "entrance_exit"
)

// Fitting is one row of the loss library: equivalent pipe diameters per fitting.
type Fitting struct {
	Type       FittingType `json:"type"`
	Name       string      `json:"name"`
	Multiplier float64     `json:"multiplier"`
}

// fittingLibrary is ordered for display; lookups go through fittingIndex.
var fittingLibrary = []Fitting{
	{FittingTeeRun, "Tee (run)", 20},
	{FittingTeeBranch, "Tee (branch)", 60},
	{FittingElbow90Threaded, "90° threaded elbow", 30},
	{FittingElbow45Threaded, "45° threaded elbow", 16},
	{FittingElbow90LongRadius, "90° long-radius elbow", 14},
	{FittingElbow45LongRadius, "45° long-radius elbow", 9.9},
	{FittingGateValve, "Gate valve", 8},
	{FittingGlobeValve, "Globe valve", 340},
	{FittingBallValve, "Ball valve", 3},
	{FittingButterflyValve, "Butterfly valve", 45},
	{FittingCheckValve, "Check valve", 100},
	{FittingEntranceExit, "Entrance/exit", 1},
}

var fittingIndex = func() map[FittingType]float64 {
	m := make(map[FittingType]float64, len(fittingLibrary))
	for _, f := range fittingLibrary {
		m[f.Type] = f.Multiplier
	}
	return m
}()

// Fittings returns a copy of the loss library in display order.
func Fittings() []Fitting {
	out := make([]Fitting, len(fittingLibrary))
	copy(out, fittingLibrary)
	return out
}

// FittingMultiplier returns the equivalent-length multiplier for a fitting type.
func FittingMultiplier(ft FittingType) (float64, error) {
	m, ok := fittingIndex[ft]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownFitting, ft)
	}
	return m, nil
}

// fittingLength is the equivalent length in feet of count fittings of one
// type in a run of internal diameter id inches.
func fittingLength(count int, id, multiplier float64) float64 {
	return float64(count) * (id / 12) * multiplier
}
