package propagation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticGains(t *testing.T) {
	adc := 2.25 / math.Pow(2, 14) / 50
	gains := StaticGains([]float64{1, 0, 0.5}, 2.25, 14, 50)
	assert.InDelta(t, adc, gains[0], 1e-18)
	assert.Equal(t, 0.0, gains[1])
	assert.InDelta(t, 2*adc, gains[2], 1e-18)
}

func TestSPEScalingGrid(t *testing.T) {
	t.Run("empty histogram", func(t *testing.T) {
		grid := SPEScalingGrid([]float64{1, 2}, []float64{0, 0})
		require.Len(t, grid, SPE_GRID_SIZE)
		for _, v := range grid {
			assert.Equal(t, 0.0, v)
		}
	})
	t.Run("two bins", func(t *testing.T) {
		grid := SPEScalingGrid([]float64{1, 2}, []float64{3, 3})
		assert.Equal(t, 1.0, grid[0])
		assert.Equal(t, 1.0, grid[1000])
		assert.Equal(t, 2.0, grid[1001])
		assert.Equal(t, 2.0, grid[SPE_GRID_SIZE-1])
	})
	t.Run("grid is non decreasing", func(t *testing.T) {
		grid := SPEScalingGrid([]float64{0.2, 0.6, 1.0, 1.4, 1.8}, []float64{1, 4, 10, 4, 1})
		for i := 1; i < len(grid); i++ {
			assert.GreaterOrEqual(t, grid[i], grid[i-1])
		}
	})
}

func TestNewGainCalibrationTable_LengthMismatch(t *testing.T) {
	_, err := NewGainCalibrationTable([]float64{1, 1}, 2.25, 14, 50, flatSpectra(3))
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestApplyPMTResponse(t *testing.T) {
	config := testConfiguration()
	cal := testCalibration(t, config)
	static := cal.Gains.StaticGain(0)
	channels := []int16{0, 1, 2, 3, InvalidChannel}
	timings := []int64{10, 20, 30, 40, 50}

	tests := []struct {
		name     string
		pDPE     float64
		wantDPE  bool
		wantGain float64
	}{
		{"no double photoelectron", 0, false, static},
		{"always double photoelectron", 1, true, 2 * static},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			response := PMTResponse{PDoublePE: tt.pDPE}
			photons, err := ApplyPMTResponse(cal.Gains, response, channels, timings, NewRandomSource(1, 2))
			require.NoError(t, err)
			require.Len(t, photons, len(channels))
			for i, p := range photons {
				assert.Equal(t, channels[i], p.Channel)
				assert.Equal(t, timings[i], p.Time)
				assert.Equal(t, p.Time, p.EndTime)
				assert.Equal(t, tt.wantDPE, p.DPE)
				if p.Channel == InvalidChannel {
					assert.Equal(t, 0.0, p.PhotonGain)
				} else {
					assert.InDelta(t, tt.wantGain, p.PhotonGain, 1e-15)
				}
			}
		})
	}
}

func TestApplyPMTResponse_TwoLevelSpectrum(t *testing.T) {
	config := testConfiguration()
	// half of the grid scales by one and the other half by two
	spectra := &ChargeSpectra{Charge: []float64{1, 2}}
	for range config.ToPE {
		spectra.Channels = append(spectra.Channels, []float64{1, 1})
	}
	table, err := NewGainCalibrationTable(config.ToPE, config.DigitizerVoltageRange,
		config.DigitizerBits, config.PmtCircuitLoadResistor, spectra)
	require.NoError(t, err)
	static := table.StaticGain(0)

	n := 400
	channels := make([]int16, n)
	timings := make([]int64, n)

	tests := []struct {
		name   string
		pDPE   float64
		scales []float64
	}{
		{"no double photoelectron", 0, []float64{1, 2}},
		// a mixed 1 + 2 sum only shows up when both gains are drawn separately
		{"always double photoelectron", 1, []float64{2, 3, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			photons, err := ApplyPMTResponse(table, PMTResponse{PDoublePE: tt.pDPE}, channels, timings, NewRandomSource(8, 9))
			require.NoError(t, err)

			seen := make(map[float64]int)
			for _, p := range photons {
				scale := math.Round(p.PhotonGain / static)
				assert.InDelta(t, scale*static, p.PhotonGain, 1e-15)
				seen[scale]++
			}
			for _, scale := range tt.scales {
				assert.Greater(t, seen[scale], 0, "gain %v x static", scale)
			}
			assert.Len(t, seen, len(tt.scales))
		})
	}
}

func TestApplyPMTResponse_TransitTimeSpread(t *testing.T) {
	config := testConfiguration()
	cal := testCalibration(t, config)
	n := 20000
	channels := make([]int16, n)
	timings := make([]int64, n)
	response := PMTResponse{TransitTimeMean: 50, TransitTimeSpread: 2.35482 * 10}

	photons, err := ApplyPMTResponse(cal.Gains, response, channels, timings, NewRandomSource(3, 4))
	require.NoError(t, err)
	sum := 0.0
	for _, p := range photons {
		sum += float64(p.Time)
	}
	// truncation towards zero removes half a ns on average
	assert.InDelta(t, 49.5, sum/float64(n), 0.3)
}

func TestApplyPMTResponse_LengthMismatch(t *testing.T) {
	config := testConfiguration()
	cal := testCalibration(t, config)
	_, err := ApplyPMTResponse(cal.Gains, PMTResponse{}, []int16{0}, []int64{}, NewRandomSource(1, 1))
	assert.ErrorIs(t, err, ErrLengthMismatch)
}
