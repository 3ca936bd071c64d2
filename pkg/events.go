package propagation

// EnergyDepositCluster is a merged energy deposit feeding electrons into the
// gas gap. Positions are in cm, times in ns.
type EnergyDepositCluster struct {
	XObs               float64 `json:"x_obs"`
	YObs               float64 `json:"y_obs"`
	ZObs               float64 `json:"z_obs"`
	NElectronExtracted int64   `json:"n_electron_extracted"`
	DriftTimeMean      int64   `json:"drift_time_mean"`
	SumS2Photons       int64   `json:"sum_s2_photons"`
	OrderIndex         int64   `json:"order_index"`
	Time               int64   `json:"time"`
	EndTime            int64   `json:"endtime"`
}

// ElectronRecord is a single extracted electron. OrderIndex refers to the
// owning cluster among the clusters with at least one extracted electron.
type ElectronRecord struct {
	Time       int64 `json:"time"`
	EndTime    int64 `json:"endtime"`
	NS2Photons int64 `json:"n_s2_photons"`
	OrderIndex int64 `json:"order_index"`
}

type PhotonRecord struct {
	Channel    int16   `json:"channel"`
	DPE        bool    `json:"dpe"`
	PhotonGain float64 `json:"photon_gain"`
	Time       int64   `json:"time"`
	EndTime    int64   `json:"endtime"`
}

// Chunk holds the photons of the half-open window [Start, End).
type Chunk struct {
	Start   int64
	End     int64
	Photons []PhotonRecord
}

func (c Chunk) Len() int {
	return len(c.Photons)
}

// Contains reports whether t lies inside the chunk window.
func (c Chunk) Contains(t int64) bool {
	return t >= c.Start && t < c.End
}

type Position struct {
	X float64
	Y float64
}

const InvalidChannel int16 = -1
