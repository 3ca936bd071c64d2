package propagation

import "fmt"

// PatternMap maps a position to the probability of each TPC channel seeing a
// photon. Positions outside the calibrated domain yield NaN entries.
type PatternMap interface {
	NChannels() int
	Pattern(x, y float64, dst []float64) []float64
}

// Map2D is a scalar function of two coordinates, e.g. (x, y) or (r, z).
type Map2D interface {
	Evaluate(a, b float64) float64
}

// QuantileSpline maps a uniform quantile to a delay in ns.
type QuantileSpline interface {
	Evaluate(u float64) float64
}

// LuminescenceTables holds the inverse CDFs of the electroluminescence
// emission time, one per simulated gas gap. GasGaps is evenly spaced and
// every table has the same length.
type LuminescenceTables struct {
	GasGaps      []float64   `json:"gas_gap"`
	TimingInvCDF [][]float64 `json:"timing_inv_cdf"`
}

func (l *LuminescenceTables) Validate() error {
	if len(l.GasGaps) < 2 {
		return fmt.Errorf("luminescence tables need at least 2 gas gaps, got %d", len(l.GasGaps))
	}
	if len(l.TimingInvCDF) != len(l.GasGaps) {
		return fmt.Errorf("%w: %d gas gaps, %d inverse CDFs", ErrLengthMismatch, len(l.GasGaps), len(l.TimingInvCDF))
	}
	n := len(l.TimingInvCDF[0])
	if n < 3 {
		return fmt.Errorf("inverse CDF tables need at least 3 entries, got %d", n)
	}
	for i, table := range l.TimingInvCDF {
		if len(table) != n {
			return fmt.Errorf("%w: inverse CDF %d has %d entries, expected %d", ErrLengthMismatch, i, len(table), n)
		}
	}
	return nil
}

// DetectorCalibration bundles every calibration resource of the engine. It is
// built once and never mutated, so it can be shared by reference.
type DetectorCalibration struct {
	NTopPmts  int
	NTpcPmts  int
	TpcRadius float64

	Pattern PatternMap
	Gains   *GainCalibrationTable

	OpticalTop    QuantileSpline
	OpticalBottom QuantileSpline

	// GasGapMap gives the gas gap length in cm at (x, y). Used as the
	// continuous gas gap of the Garfield tables and for gas gap warping.
	GasGapMap    Map2D
	Luminescence *LuminescenceTables

	// Diffusion constants in cm²/s at (r, z).
	DiffusionRadialMap    Map2D
	DiffusionAzimuthalMap Map2D
}

// IsTop reports whether a channel belongs to the top array. The invalid
// channel is treated as top.
func (c *DetectorCalibration) IsTop(channel int16) bool {
	return int(channel) < c.NTopPmts
}

func (c *DetectorCalibration) IsDead(channel int) bool {
	return c.Gains.StaticGain(channel) == 0
}

// Validate checks that the resources needed by the given configuration are
// present and consistent.
func (c *DetectorCalibration) Validate(config Configuration) error {
	if c.NTpcPmts <= 0 || c.NTopPmts < 0 || c.NTopPmts > c.NTpcPmts {
		return fmt.Errorf("invalid PMT counts: top %d, tpc %d", c.NTopPmts, c.NTpcPmts)
	}
	if c.Pattern == nil {
		return fmt.Errorf("calibration has no pattern map")
	}
	if n := c.Pattern.NChannels(); n != c.NTpcPmts && n != c.NTopPmts {
		return fmt.Errorf("%w: map has %d channels, detector has %d", ErrPatternDimension, n, c.NTpcPmts)
	}
	if c.Gains == nil {
		return fmt.Errorf("calibration has no gain table")
	}
	if c.Gains.NChannels() != c.NTpcPmts {
		return fmt.Errorf("%w: gain table has %d channels, detector has %d", ErrLengthMismatch, c.Gains.NChannels(), c.NTpcPmts)
	}
	if c.OpticalTop == nil || c.OpticalBottom == nil {
		return fmt.Errorf("calibration has no optical propagation splines")
	}
	switch config.LuminescenceModel {
	case GARFIELD_GAS_GAP:
		if c.Luminescence == nil || c.GasGapMap == nil {
			return fmt.Errorf("%v model needs luminescence tables and a gas gap map", config.LuminescenceModel)
		}
		if err := c.Luminescence.Validate(); err != nil {
			return err
		}
	case DRIFT_FIELD:
		if config.EnableGasGapWarping && c.GasGapMap == nil {
			return fmt.Errorf("gas gap warping needs a gas gap map")
		}
	}
	if config.DiffusionConstantTransverse > 0 && config.EnableDiffusionTransverseMap {
		if c.DiffusionRadialMap == nil || c.DiffusionAzimuthalMap == nil {
			return fmt.Errorf("diffusion transverse map enabled without field dependency maps")
		}
	}
	return nil
}
