package propagation

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// TimingModel computes the emission time offset of every photon relative to
// its electron's arrival at the gas gap. positions and nPhotons are per
// cluster; channels is per photon, grouped by cluster in the same order.
type TimingModel interface {
	Name() string
	SampleTimings(cal *DetectorCalibration, positions []Position, nPhotons []int64,
		channels []int16, rng *RandomSource) ([]int64, error)
}

// EmissionDelays holds the excimer decay parameters shared by all models.
type EmissionDelays struct {
	Phase                 Phase
	SingletFraction       float64
	SingletLifetimeGas    float64
	TripletLifetimeGas    float64
	SingletLifetimeLiquid float64
	TripletLifetimeLiquid float64
}

func EmissionDelaysFromConfig(config Configuration) EmissionDelays {
	return EmissionDelays{
		Phase:                 config.PhaseS2,
		SingletFraction:       config.SingletFractionGas,
		SingletLifetimeGas:    config.SingletLifetimeGas,
		TripletLifetimeGas:    config.TripletLifetimeGas,
		SingletLifetimeLiquid: config.SingletLifetimeLiquid,
		TripletLifetimeLiquid: config.TripletLifetimeLiquid,
	}
}

func (d EmissionDelays) lifetimes() (float64, float64) {
	switch d.Phase {
	case PHASE_GAS:
		return d.SingletLifetimeGas, d.TripletLifetimeGas
	case PHASE_LIQUID:
		return d.SingletLifetimeLiquid, d.TripletLifetimeLiquid
	default:
		return 0, 0
	}
}

// SingletTripletDelays draws the excimer decay delay of n photons. The
// lifetime of every photon is chosen first, then every exponential.
func SingletTripletDelays(d EmissionDelays, n int, rng *RandomSource) []int64 {
	t1, t3 := d.lifetimes()

	singlet := distuv.Bernoulli{P: d.SingletFraction, Src: rng.Source()}
	lifetime := make([]float64, n)
	for i := range lifetime {
		if singlet.Rand() == 1 {
			lifetime[i] = t1
		} else {
			lifetime[i] = t3
		}
	}

	exp := distuv.Exponential{Rate: 1, Src: rng.Source()}
	delays := make([]int64, n)
	for i := range delays {
		delays[i] = int64(exp.Rand() * lifetime[i])
	}
	return delays
}

// OpticalPropagationDelays draws the photon travel time from the emission
// point to the PMT, from the top or bottom spline depending on the channel.
func OpticalPropagationDelays(cal *DetectorCalibration, channels []int16, rng *RandomSource) []int64 {
	uniform := distuv.Uniform{Min: 0, Max: 1, Src: rng.Source()}
	u := make([]float64, len(channels))
	for i := range u {
		u[i] = uniform.Rand()
	}

	delays := make([]int64, len(channels))
	for i, ch := range channels {
		if cal.IsTop(ch) {
			delays[i] = int64(cal.OpticalTop.Evaluate(u[i]))
		} else {
			delays[i] = int64(cal.OpticalBottom.Evaluate(u[i]))
		}
	}
	return delays
}

// addDelays adds the emission and optical delays to the luminescence
// offsets, in that draw order.
func addDelays(cal *DetectorCalibration, delays EmissionDelays, luminescence []int64, channels []int16, rng *RandomSource) ([]int64, error) {
	if len(luminescence) != len(channels) {
		return nil, fmt.Errorf("%w: %d timings, %d channels", ErrLengthMismatch, len(luminescence), len(channels))
	}
	emission := SingletTripletDelays(delays, len(luminescence), rng)
	optical := OpticalPropagationDelays(cal, channels, rng)
	for i := range luminescence {
		luminescence[i] += emission[i] + optical[i]
	}
	return luminescence, nil
}

func checkTimingInput(positions []Position, nPhotons []int64, channels []int16) error {
	if len(positions) != len(nPhotons) {
		return fmt.Errorf("%w: %d positions, %d photon counts", ErrLengthMismatch, len(positions), len(nPhotons))
	}
	var total int64
	for _, n := range nPhotons {
		total += n
	}
	if total != int64(len(channels)) {
		return fmt.Errorf("%w: %d photons, %d channels", ErrLengthMismatch, total, len(channels))
	}
	return nil
}

// NewTimingModel returns the luminescence model selected by the configuration.
func NewTimingModel(config Configuration) (TimingModel, error) {
	delays := EmissionDelaysFromConfig(config)
	switch config.LuminescenceModel {
	case GARFIELD_GAS_GAP:
		return &GasGapTiming{Delays: delays}, nil
	case DRIFT_FIELD:
		return NewDriftFieldTiming(config), nil
	default:
		return nil, fmt.Errorf("unknown luminescence model %v", config.LuminescenceModel)
	}
}

// interpolate evaluates the piecewise linear function through (xp, fp) at x,
// clamping to the end values. xp must be non-decreasing. A NaN x or NaN
// knots give NaN.
func interpolate(x float64, xp, fp []float64) float64 {
	n := len(xp)
	if n == 0 || math.IsNaN(x) {
		return math.NaN()
	}
	if x <= xp[0] {
		return fp[0]
	}
	if x >= xp[n-1] {
		return fp[n-1]
	}
	j := sort.Search(n, func(i int) bool { return xp[i] > x })
	if j == 0 || j == n {
		return math.NaN()
	}
	x0, x1 := xp[j-1], xp[j]
	if x1 == x0 {
		return fp[j]
	}
	return fp[j-1] + (fp[j]-fp[j-1])*(x-x0)/(x1-x0)
}
