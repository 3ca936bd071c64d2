package propagation

import "fmt"

// Bytes per stored photon row: time, endtime, photon_gain, channel, dpe.
const N_BYTES_PER_PHOTON = 23

// ElectronTimeGaps returns the gap from each electron to the next one. The
// last electron gets a gap of 0.
func ElectronTimeGaps(electrons []ElectronRecord) []int64 {
	gaps := make([]int64, len(electrons))
	for i := 0; i+1 < len(electrons); i++ {
		gaps[i] = electrons[i+1].Time - electrons[i].Time
	}
	return gaps
}

// FindElectronSplitIndex returns the indices of the electrons after which the
// stream is cut. The estimated output size uses meanPhotonsPerElectron, not
// the photon count of each electron. Once the size target is reached, the cut
// is deferred until a gap of at least minGapLength follows, so dense bursts
// are never split even if the target is exceeded.
func FindElectronSplitIndex(electrons []ElectronRecord, gaps []int64,
	fileSizeLimitMB float64, minGapLength float64, meanPhotonsPerElectron float64) ([]int, error) {
	if len(gaps) != len(electrons) {
		return nil, fmt.Errorf("%w: %d electrons, %d gaps", ErrLengthMismatch, len(electrons), len(gaps))
	}

	sizePerElectron := N_BYTES_PER_PHOTON * meanPhotonsPerElectron / 1e6
	dataSizeMB := 0.0
	splitIndex := make([]int, 0)

	for i := range electrons {
		dataSizeMB += sizePerElectron
		if dataSizeMB < fileSizeLimitMB {
			continue
		}
		// the last electron has nothing to split from
		if i == len(electrons)-1 {
			break
		}
		if float64(gaps[i]) >= minGapLength {
			dataSizeMB = 0
			splitIndex = append(splitIndex, i)
		}
	}
	return splitIndex, nil
}

// splitElectrons partitions electrons after every split index.
func splitElectrons(electrons []ElectronRecord, splitIndex []int) [][]ElectronRecord {
	groups := make([][]ElectronRecord, 0, len(splitIndex)+1)
	start := 0
	for _, idx := range splitIndex {
		groups = append(groups, electrons[start:idx+1])
		start = idx + 1
	}
	groups = append(groups, electrons[start:])
	return groups
}
