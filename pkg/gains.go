package propagation

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

const SPE_GRID_SIZE = 2001

// GainCalibrationTable holds the static gain of every channel and the grid
// turning a uniform draw into a single photoelectron scale factor.
type GainCalibrationTable struct {
	static []float64
	grids  [][]float64
}

// StaticGains converts the to_pe gain model into charge per ADC count.
// Channels with to_pe == 0 are dead and get gain 0.
func StaticGains(toPE []float64, voltageRange float64, bits int, loadResistor float64) []float64 {
	adcToCurrent := voltageRange / math.Pow(2, float64(bits)) / loadResistor
	gains := make([]float64, len(toPE))
	for i, v := range toPE {
		if v != 0 {
			gains[i] = adcToCurrent / v
		}
	}
	return gains
}

// SPEScalingGrid samples the inverse CDF of a charge histogram on
// SPE_GRID_SIZE evenly spaced quantiles. An empty histogram yields zeros.
func SPEScalingGrid(charge, histogram []float64) []float64 {
	grid := make([]float64, SPE_GRID_SIZE)
	total := floats.Sum(histogram)
	if total <= 0 || len(charge) == 0 {
		return grid
	}
	cdf := make([]float64, len(histogram))
	floats.CumSum(cdf, histogram)
	floats.Scale(1/total, cdf)

	last := len(cdf) - 1
	for i := range grid {
		g := float64(i) / float64(SPE_GRID_SIZE-1)
		j := sort.SearchFloat64s(cdf, g)
		if j > last {
			j = last
		}
		grid[i] = charge[j]
	}
	return grid
}

func NewGainCalibrationTable(toPE []float64, voltageRange float64, bits int, loadResistor float64, spectra *ChargeSpectra) (*GainCalibrationTable, error) {
	if spectra == nil {
		return nil, fmt.Errorf("no photon area distribution")
	}
	if len(spectra.Channels) != len(toPE) {
		return nil, fmt.Errorf("%w: %d charge spectra for %d channels", ErrLengthMismatch, len(spectra.Channels), len(toPE))
	}
	table := &GainCalibrationTable{
		static: StaticGains(toPE, voltageRange, bits, loadResistor),
		grids:  make([][]float64, len(toPE)),
	}
	for ch, histogram := range spectra.Channels {
		table.grids[ch] = SPEScalingGrid(spectra.Charge, histogram)
	}
	return table, nil
}

func (g *GainCalibrationTable) NChannels() int {
	return len(g.static)
}

// StaticGain returns 0 for channels outside the table.
func (g *GainCalibrationTable) StaticGain(channel int) float64 {
	if channel < 0 || channel >= len(g.static) {
		return 0
	}
	return g.static[channel]
}

// SampleGain maps a uniform draw u in [0, 1) to the gain of one
// photoelectron on the channel.
func (g *GainCalibrationTable) SampleGain(channel int, u float64) float64 {
	if channel < 0 || channel >= len(g.static) {
		return 0
	}
	idx := int(u*float64(SPE_GRID_SIZE-1)) + 1
	if idx >= SPE_GRID_SIZE {
		idx = SPE_GRID_SIZE - 1
	}
	return g.static[channel] * g.grids[channel][idx]
}

// PMTResponse are the photomultiplier parameters applied to every photon.
type PMTResponse struct {
	TransitTimeMean   float64
	TransitTimeSpread float64 // FWHM
	PDoublePE         float64
}

func PMTResponseFromConfig(config Configuration) PMTResponse {
	return PMTResponse{
		TransitTimeMean:   config.PmtTransitTimeMean,
		TransitTimeSpread: config.PmtTransitTimeSpread,
		PDoublePE:         config.PDoublePeEmission,
	}
}

// ApplyPMTResponse adds transit time jitter, flags double photoelectron
// emission and samples the gain of every photon. Draws are taken batch-wise
// in that order, then one extra gain draw per double photoelectron photon.
func ApplyPMTResponse(table *GainCalibrationTable, response PMTResponse, channels []int16, timings []int64, rng *RandomSource) ([]PhotonRecord, error) {
	if len(channels) != len(timings) {
		return nil, fmt.Errorf("%w: %d channels, %d timings", ErrLengthMismatch, len(channels), len(timings))
	}
	n := len(channels)
	photons := make([]PhotonRecord, n)

	tts := distuv.Normal{Mu: response.TransitTimeMean, Sigma: response.TransitTimeSpread / 2.35482, Src: rng.Source()}
	for i := range photons {
		photons[i].Channel = channels[i]
		photons[i].Time = timings[i] + int64(tts.Rand())
	}

	dpe := distuv.Bernoulli{P: response.PDoublePE, Src: rng.Source()}
	var dpeIndex []int
	for i := range photons {
		if dpe.Rand() == 1 {
			photons[i].DPE = true
			dpeIndex = append(dpeIndex, i)
		}
	}

	uniform := distuv.Uniform{Min: 0, Max: 1, Src: rng.Source()}
	for i := range photons {
		photons[i].PhotonGain = table.SampleGain(int(channels[i]), uniform.Rand())
	}
	for _, i := range dpeIndex {
		photons[i].PhotonGain += table.SampleGain(int(channels[i]), uniform.Rand())
	}

	for i := range photons {
		photons[i].EndTime = photons[i].Time
	}
	return photons, nil
}
