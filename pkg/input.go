package propagation

import "fmt"

// Input is one invocation of the engine: the clusters and electrons of a
// time window.
type Input struct {
	Start     int64                  `json:"start"`
	End       int64                  `json:"end"`
	Clusters  []EnergyDepositCluster `json:"interactions_in_roi"`
	Electrons []ElectronRecord       `json:"individual_electrons"`
}

// ReadInput loads an input file, JSON or gzipped JSON.
func ReadInput(filename string) (*Input, error) {
	var input Input
	if err := decodeResource(filename, &input); err != nil {
		return nil, err
	}
	if input.End < input.Start {
		return nil, fmt.Errorf("%w: input %s ends at %d before its start %d", ErrChunkWindow, filename, input.End, input.Start)
	}
	for i := 1; i < len(input.Electrons); i++ {
		if input.Electrons[i].Time < input.Electrons[i-1].Time {
			return nil, fmt.Errorf("input %s: electron %d is not time ordered", filename, i)
		}
	}
	return &input, nil
}
