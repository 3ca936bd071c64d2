package propagation

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// PatternSettings controls how channel patterns are built and smeared.
type PatternSettings struct {
	DiffusionConstantTransverse  float64 // cm²/ns
	EnableDiffusionTransverseMap bool
	AftSigma                     float64
	AftSkewness                  float64
}

func PatternSettingsFromConfig(config Configuration) PatternSettings {
	return PatternSettings{
		DiffusionConstantTransverse:  config.DiffusionConstantTransverse,
		EnableDiffusionTransverseMap: config.EnableDiffusionTransverseMap,
		AftSigma:                     config.S2AftSigma,
		AftSkewness:                  config.S2AftSkewness,
	}
}

// SamplePhotonChannels assigns a channel to each of the nPhotons[i] photons
// of every cluster. The result is grouped by cluster, in cluster order.
// Clusters whose pattern is degenerate get InvalidChannel for every photon.
func SamplePhotonChannels(cal *DetectorCalibration, settings PatternSettings,
	clusters []EnergyDepositCluster, nPhotons []int64, rng *RandomSource) ([]int16, error) {

	if len(clusters) != len(nPhotons) {
		return nil, fmt.Errorf("%w: %d clusters, %d photon counts", ErrLengthMismatch, len(clusters), len(nPhotons))
	}

	var patterns [][]float64
	var err error
	if settings.DiffusionConstantTransverse > 0 {
		patterns, err = diffusedPatterns(cal, settings, clusters, rng)
	} else {
		patterns, err = directPatterns(cal, clusters)
	}
	if err != nil {
		return nil, err
	}

	var total int64
	for _, n := range nPhotons {
		total += n
	}
	channels := make([]int16, 0, total)

	for i, pattern := range patterns {
		if settings.AftSigma != 0 {
			smearAreaFractionTop(pattern, cal.NTopPmts, settings, rng)
		}

		if isDegenerate(pattern) {
			for k := int64(0); k < nPhotons[i]; k++ {
				channels = append(channels, InvalidChannel)
			}
			continue
		}
		categorical := distuv.NewCategorical(pattern, rng.Source())
		for k := int64(0); k < nPhotons[i]; k++ {
			channels = append(channels, int16(categorical.Rand()))
		}
	}
	return channels, nil
}

// directPatterns evaluates the map at every cluster position.
func directPatterns(cal *DetectorCalibration, clusters []EnergyDepositCluster) ([][]float64, error) {
	patterns := make([][]float64, len(clusters))
	for i, c := range clusters {
		raw := cal.Pattern.Pattern(c.XObs, c.YObs, nil)
		pattern, err := finishPattern(cal, raw)
		if err != nil {
			return nil, err
		}
		patterns[i] = pattern
	}
	return patterns, nil
}

// diffusedPatterns averages the map over the transversely diffused position
// of every extracted electron of a cluster. Electrons diffused outside the
// TPC radius are dropped.
func diffusedPatterns(cal *DetectorCalibration, settings PatternSettings, clusters []EnergyDepositCluster, rng *RandomSource) ([][]float64, error) {
	var nElectrons int64
	for _, c := range clusters {
		if c.ZObs >= 0 {
			return nil, fmt.Errorf("%w: S2 cluster at z = %v is not below the liquid surface", ErrGeometry, c.ZObs)
		}
		nElectrons += c.NElectronExtracted
	}

	stdRadial := make([]float64, len(clusters))
	stdAzimuthal := make([]float64, len(clusters))
	for i, c := range clusters {
		dRadial := settings.DiffusionConstantTransverse
		dAzimuthal := settings.DiffusionConstantTransverse
		if settings.EnableDiffusionTransverseMap {
			r := math.Hypot(c.XObs, c.YObs)
			dRadial = cal.DiffusionRadialMap.Evaluate(r, c.ZObs) * 1e-9
			dAzimuthal = cal.DiffusionAzimuthalMap.Evaluate(r, c.ZObs) * 1e-9
		}
		stdRadial[i] = math.Sqrt(2 * dRadial * float64(c.DriftTimeMean))
		stdAzimuthal[i] = math.Sqrt(2 * dAzimuthal * float64(c.DriftTimeMean))
	}

	unit := distuv.Normal{Mu: 0, Sigma: 1, Src: rng.Source()}
	radial := make([]float64, nElectrons)
	for k := range radial {
		radial[k] = unit.Rand()
	}
	azimuthal := make([]float64, nElectrons)
	for k := range azimuthal {
		azimuthal[k] = unit.Rand()
	}

	nMap := cal.Pattern.NChannels()
	radius2 := cal.TpcRadius * cal.TpcRadius
	buffer := make([]float64, nMap)
	patterns := make([][]float64, len(clusters))

	var offset int64
	for i, c := range clusters {
		theta := math.Atan2(c.YObs, c.XObs)
		sin, cos := math.Sincos(theta)

		sum := make([]float64, nMap)
		survivors := 0
		for k := offset; k < offset+c.NElectronExtracted; k++ {
			r := radial[k] * stdRadial[i]
			a := azimuthal[k] * stdAzimuthal[i]
			x := c.XObs + cos*r - sin*a
			y := c.YObs + sin*r + cos*a
			if x*x+y*y > radius2 {
				continue
			}
			buffer = cal.Pattern.Pattern(x, y, buffer)
			floats.Add(sum, buffer)
			survivors++
		}
		offset += c.NElectronExtracted

		if survivors == 0 {
			for ch := range sum {
				sum[ch] = math.NaN()
			}
		} else {
			floats.Scale(1/float64(survivors), sum)
		}

		pattern, err := finishPattern(cal, sum)
		if err != nil {
			return nil, err
		}
		patterns[i] = pattern
	}
	return patterns, nil
}

// finishPattern pads a top-only map, zeroes dead channels and normalizes.
func finishPattern(cal *DetectorCalibration, raw []float64) ([]float64, error) {
	var pattern []float64
	switch len(raw) {
	case cal.NTpcPmts:
		pattern = raw
	case cal.NTopPmts:
		pattern = make([]float64, cal.NTpcPmts)
		copy(pattern, raw)
		for ch := cal.NTopPmts; ch < cal.NTpcPmts; ch++ {
			pattern[ch] = 1
		}
	default:
		return nil, fmt.Errorf("%w: map gives %d channels, detector has %d", ErrPatternDimension, len(raw), cal.NTpcPmts)
	}

	for ch := range pattern {
		if cal.IsDead(ch) {
			pattern[ch] = 0
		}
	}
	normalize(pattern)
	return pattern, nil
}

// normalize scales p to unit sum. A zero sum leaves zeros, NaN propagates.
func normalize(p []float64) {
	sum := floats.Sum(p)
	if sum == 0 {
		return
	}
	floats.Scale(1/sum, p)
}

func smearAreaFractionTop(pattern []float64, nTop int, settings PatternSettings, rng *RandomSource) {
	factor := rng.SkewNormal(1, settings.AftSigma, settings.AftSkewness)

	top := floats.Sum(pattern[:nTop])
	total := floats.Sum(pattern)
	current := top / total
	if math.IsNaN(current) || current <= 0 || current >= 1 {
		return
	}
	target := math.Min(math.Max(current*factor, 0), 1)

	floats.Scale(target/current, pattern[:nTop])
	floats.Scale((1-target)/(1-current), pattern[nTop:])
	normalize(pattern)
}

func isDegenerate(pattern []float64) bool {
	sum := 0.0
	for _, v := range pattern {
		if math.IsNaN(v) || v < 0 {
			return true
		}
		sum += v
	}
	return sum <= 0
}
