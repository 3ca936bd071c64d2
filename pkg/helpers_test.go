package propagation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type constantSpline float64

func (c constantSpline) Evaluate(float64) float64 {
	return float64(c)
}

// uniformPattern returns an nChan channel map with equal weights on a
// [-10, 10] x [-10, 10] grid.
func uniformPattern(t *testing.T, nChan int) *GridPatternMap {
	t.Helper()
	node := make([]float64, nChan)
	for i := range node {
		node[i] = 1
	}
	values := [][][]float64{{node, node}, {node, node}}
	axis := GridAxis{Min: -10, Max: 10, N: 2}
	m, err := NewGridPatternMap(axis, axis, values)
	require.NoError(t, err)
	return m
}

// flatSpectra gives every channel a relative gain of exactly 1.
func flatSpectra(nChan int) *ChargeSpectra {
	spectra := &ChargeSpectra{Charge: []float64{0.5, 1, 1.5}}
	for i := 0; i < nChan; i++ {
		spectra.Channels = append(spectra.Channels, []float64{0, 1, 0})
	}
	return spectra
}

// testConfiguration is a 2 top + 2 bottom PMT detector where every delay
// is zero, so photon times equal electron times.
func testConfiguration() Configuration {
	config := DefaultConfiguration()
	config.RunID = "test"
	config.NTopPmts = 2
	config.NTpcPmts = 4
	config.TpcRadius = 10
	config.ToPE = []float64{1, 1, 1, 1}
	config.PhaseS2 = PHASE_NONE
	config.DiffusionConstantTransverse = 0
	config.PmtTransitTimeSpread = 0
	config.PDoublePeEmission = 0
	config.MinElectronGapLength = 1000
	return config
}

func testCalibration(t *testing.T, config Configuration) *DetectorCalibration {
	t.Helper()
	gains, err := NewGainCalibrationTable(config.ToPE, config.DigitizerVoltageRange,
		config.DigitizerBits, config.PmtCircuitLoadResistor, flatSpectra(len(config.ToPE)))
	require.NoError(t, err)

	return &DetectorCalibration{
		NTopPmts:      config.NTopPmts,
		NTpcPmts:      config.NTpcPmts,
		TpcRadius:     config.TpcRadius,
		Pattern:       uniformPattern(t, config.NTpcPmts),
		Gains:         gains,
		OpticalTop:    constantSpline(0),
		OpticalBottom: constantSpline(0),
		GasGapMap:     ConstantMap(0.45),
		Luminescence: &LuminescenceTables{
			GasGaps:      []float64{0.4, 0.5},
			TimingInvCDF: [][]float64{{0, 0, 0, 0}, {0, 0, 0, 0}},
		},
	}
}

func cluster(x, y, z float64, nElectrons int64) EnergyDepositCluster {
	return EnergyDepositCluster{
		XObs:               x,
		YObs:               y,
		ZObs:               z,
		NElectronExtracted: nElectrons,
		DriftTimeMean:      100000,
	}
}
