package propagation

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// GasGapTiming draws luminescence times from Garfield simulated emission
// time distributions, interpolated between the two tabulated gas gaps
// around the local gas gap.
type GasGapTiming struct {
	Delays EmissionDelays
}

func (m *GasGapTiming) Name() string {
	return GARFIELD_GAS_GAP.String()
}

func (m *GasGapTiming) SampleTimings(cal *DetectorCalibration, positions []Position, nPhotons []int64,
	channels []int16, rng *RandomSource) ([]int64, error) {

	if err := checkTimingInput(positions, nPhotons, channels); err != nil {
		return nil, err
	}
	timings := m.luminescenceTimings(cal, positions, nPhotons, rng)
	return addDelays(cal, m.Delays, timings, channels, rng)
}

func (m *GasGapTiming) luminescenceTimings(cal *DetectorCalibration, positions []Position, nPhotons []int64, rng *RandomSource) []int64 {
	tables := cal.Luminescence
	gaps := tables.GasGaps
	dGap := gaps[1] - gaps[0]
	nTables := len(tables.TimingInvCDF)
	tableLen := len(tables.TimingInvCDF[0])

	var total int64
	for _, n := range nPhotons {
		total += n
	}
	timings := make([]int64, 0, total)
	blended := make([]float64, tableLen)
	samples := make([]float64, 0)
	uniform := distuv.Uniform{Min: 0, Max: float64(tableLen - 2), Src: rng.Source()}

	for i, pos := range positions {
		gap := cal.GasGapMap.Evaluate(pos.X, pos.Y)

		// index of the tabulated gap just below the continuous one
		lower := sort.Search(len(gaps), func(k int) bool { return gaps[k] > gap }) - 1
		if lower < 0 {
			lower = 0
		}
		if lower > nTables-1 {
			lower = nTables - 1
		}
		upper := lower + 1
		if upper > nTables-1 {
			upper = nTables - 1
		}
		weight := (gap - gaps[lower]) / dGap
		if math.IsNaN(weight) {
			weight = 0
		}
		weight = math.Min(math.Max(weight, 0), 1)

		low := tables.TimingInvCDF[lower]
		high := tables.TimingInvCDF[upper]
		for k := range blended {
			blended[k] = (high[k]-low[k])*weight + low[k]
		}

		n := int(nPhotons[i])
		samples = samples[:0]
		mean := 0.0
		for k := 0; k < n; k++ {
			s := uniform.Rand()
			f := math.Floor(s)
			c := math.Ceil(s)
			t1 := blended[int(f)]
			t2 := blended[int(c)]
			t := (t2-t1)*(s-f) + t1
			samples = append(samples, t)
			mean += t
		}
		if n > 0 {
			mean /= float64(n)
		}
		for _, t := range samples {
			timings = append(timings, int64(t-mean))
		}
	}
	return timings
}
