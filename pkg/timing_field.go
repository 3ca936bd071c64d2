package propagation

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
	"gonum.org/v1/gonum/unit/constant"
)

const (
	RADIAL_STEP        = 1e-4   // cm
	REFERENCE_FIELD    = 1000.0 // V/cm
	PRESSURE_SCALE     = 1e1
	YIELD_PRESSURE_COF = 0.8 // arXiv:physics/0702142
)

// DriftFieldTiming computes luminescence times from the drift of an electron
// through the field between the liquid surface and an anode wire.
type DriftFieldTiming struct {
	Delays EmissionDelays

	Pressure                     float64 // bar
	Temperature                  float64 // K
	GasDriftVelocitySlope        float64
	EnableGasGapWarping          bool
	ElrGasGapLength              float64 // cm
	AnodeFieldDominationDistance float64 // cm
	AnodeWireRadius              float64 // cm
	GateToAnodeDistance          float64 // cm
	AnodeVoltage                 float64 // V
	LxeDielectricConstant        float64
}

func NewDriftFieldTiming(config Configuration) *DriftFieldTiming {
	return &DriftFieldTiming{
		Delays:                       EmissionDelaysFromConfig(config),
		Pressure:                     config.Pressure,
		Temperature:                  config.Temperature,
		GasDriftVelocitySlope:        config.GasDriftVelocitySlope,
		EnableGasGapWarping:          config.EnableGasGapWarping,
		ElrGasGapLength:              config.ElrGasGapLength,
		AnodeFieldDominationDistance: config.AnodeFieldDominationDistance,
		AnodeWireRadius:              config.AnodeWireRadius,
		GateToAnodeDistance:          config.GateToAnodeDistance,
		AnodeVoltage:                 config.AnodeVoltage,
		LxeDielectricConstant:        config.LxeDielectricConstant,
	}
}

func (m *DriftFieldTiming) Name() string {
	return DRIFT_FIELD.String()
}

func (m *DriftFieldTiming) SampleTimings(cal *DetectorCalibration, positions []Position, nPhotons []int64,
	channels []int16, rng *RandomSource) ([]int64, error) {

	if err := checkTimingInput(positions, nPhotons, channels); err != nil {
		return nil, err
	}
	timings := m.luminescenceTimings(cal, positions, nPhotons, rng)
	return addDelays(cal, m.Delays, timings, channels, rng)
}

// gasGaps returns the gas gap length at every position.
func (m *DriftFieldTiming) gasGaps(cal *DetectorCalibration, positions []Position) []float64 {
	dG := make([]float64, len(positions))
	for i, pos := range positions {
		if m.EnableGasGapWarping {
			dG[i] = cal.GasGapMap.Evaluate(pos.X, pos.Y)
		} else {
			dG[i] = m.ElrGasGapLength
		}
	}
	return dG
}

func (m *DriftFieldTiming) luminescenceTimings(cal *DetectorCalibration, positions []Position, nPhotons []int64, rng *RandomSource) []int64 {
	var total int64
	for _, n := range nPhotons {
		total += n
	}
	timings := make([]int64, 0, total)
	if len(positions) == 0 {
		return timings
	}

	numberDensity := m.Pressure / (float64(constant.Boltzmann) / float64(constant.ElementaryCharge) * m.Temperature)
	alpha := m.GasDriftVelocitySlope / numberDensity
	pressure := m.Pressure * float64(constant.ElementaryCharge) * PRESSURE_SCALE

	dG := m.gasGaps(cal, positions)
	rA := m.AnodeFieldDominationDistance
	rW := m.AnodeWireRadius

	// radius grid from the largest gas gap down to the wire. Positions
	// outside the gas gap map have no gap and get zero offsets.
	rMax := math.Inf(-1)
	for _, g := range dG {
		if !math.IsNaN(g) {
			rMax = math.Max(rMax, g)
		}
	}
	nSteps := 0
	if rMax > rW {
		nSteps = int(math.Ceil((rMax - rW) / RADIAL_STEP))
	}
	r := make([]float64, 0, nSteps)
	for k := 0; k < nSteps+1; k++ {
		v := rMax - float64(k)*RADIAL_STEP
		if v <= rW {
			break
		}
		r = append(r, v)
	}
	inverseR := make([]float64, len(r))
	for k, v := range r {
		inverseR[k] = math.Min(math.Max(1/v, 1/rA), 1/rW)
	}

	dt := make([]float64, len(r))
	dy := make([]float64, len(r))
	cumT := make([]float64, len(r))
	uniform := distuv.Uniform{Min: 0, Max: 1, Src: rng.Source()}

	for i := range positions {
		if math.IsNaN(dG[i]) {
			for k := int64(0); k < nPhotons[i]; k++ {
				uniform.Rand()
				timings = append(timings, 0)
			}
			continue
		}
		dL := m.GateToAnodeDistance - dG[i]
		vG := m.AnodeVoltage / (1 + dL/dG[i]/m.LxeDielectricConstant)
		e0 := vG / ((dG[i]-rA)/rA + math.Log(rA/rW))

		for k, rr := range inverseR {
			dt[k] = RADIAL_STEP / (alpha * e0 * rr)
			dy[k] = e0*rr/REFERENCE_FIELD - YIELD_PRESSURE_COF*pressure
		}
		floats.CumSum(cumT, dt)
		avgt := floats.Dot(cumT, dy) / floats.Sum(dy)

		j := 0
		for j < len(r) && r[j] > dG[i] {
			j++
		}
		if j == len(r) {
			j = 0
		}
		t := make([]float64, len(r)-j)
		y := make([]float64, len(r)-j)
		floats.CumSum(t, dt[j:])
		floats.AddConst(-avgt, t)
		floats.CumSum(y, dy[j:])
		if len(y) > 0 {
			floats.Scale(1/y[len(y)-1], y)
		}

		for k := int64(0); k < nPhotons[i]; k++ {
			u := uniform.Rand()
			if len(y) == 0 {
				timings = append(timings, 0)
				continue
			}
			v := interpolate(u, y, t)
			if math.IsNaN(v) {
				v = 0
			}
			timings = append(timings, int64(v))
		}
	}
	return timings
}
