package propagation

import (
	"cmp"
	"fmt"

	"golang.org/x/exp/slices"
)

type EmitterState int

const (
	IDLE EmitterState = iota
	EMITTING
	DONE
)

var emitterStateStrings = []string{"idle", "emitting", "done"}

func (s EmitterState) String() string {
	if s < IDLE || s > DONE {
		return "UNKNOWN"
	}
	return emitterStateStrings[s]
}

// CHUNK_END_GAP_FRACTION of the minimum electron gap is left after the last
// photon of a non-final chunk.
const CHUNK_END_GAP_FRACTION = 0.9

// Engine turns clusters and extracted electrons into time-ordered chunks of
// photon records. An engine owns its random source and is not safe for
// concurrent use. Run one engine per goroutine.
type Engine struct {
	config      Configuration
	calibration *DetectorCalibration
	timing      TimingModel
	pattern     PatternSettings
	response    PMTResponse
	rng         *RandomSource
}

// NewEngine validates the configuration against the calibration. If rng is
// nil the random source is seeded from the configuration.
func NewEngine(config Configuration, cal *DetectorCalibration, rng *RandomSource) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if cal == nil {
		return nil, fmt.Errorf("engine needs a detector calibration")
	}
	if err := cal.Validate(config); err != nil {
		return nil, fmt.Errorf("invalid calibration: %w", err)
	}
	timing, err := NewTimingModel(config)
	if err != nil {
		return nil, err
	}

	if rng == nil {
		if config.DeterministicSeed {
			rng, err = NewDeterministicRandomSource(config.RunID, config)
			if err != nil {
				return nil, err
			}
		} else {
			rng = NewEntropyRandomSource()
		}
	}
	if config.Verbosity > 0 {
		seed := rng.Seed()
		logger.Info(fmt.Sprintf("Using %s luminescence timing, seed (%d, %d)", timing.Name(), seed[0], seed[1]), "ENGINE")
	}

	return &Engine{
		config:      config,
		calibration: cal,
		timing:      timing,
		pattern:     PatternSettingsFromConfig(config),
		response:    PMTResponseFromConfig(config),
		rng:         rng,
	}, nil
}

// Emit prepares the chunks of the window [start, end). Electrons must be
// ordered by time. Chunks are computed one at a time as the iterator is
// advanced; the last one always ends at end.
func (e *Engine) Emit(clusters []EnergyDepositCluster, electrons []ElectronRecord, start, end int64) (*ChunkIterator, error) {
	if end < start {
		return nil, fmt.Errorf("%w: window end %d before start %d", ErrChunkWindow, end, start)
	}
	it := &ChunkIterator{
		engine:    e,
		lastStart: start,
		end:       end,
		state:     IDLE,
	}
	if len(electrons) == 0 {
		it.batches = [][]ElectronRecord{nil}
		return it, nil
	}

	active := make([]EnergyDepositCluster, 0, len(clusters))
	for _, c := range clusters {
		if c.NElectronExtracted > 0 {
			active = append(active, c)
		}
	}
	for i, el := range electrons {
		if el.OrderIndex < 0 || el.OrderIndex >= int64(len(active)) {
			return nil, fmt.Errorf("%w: electron %d points to cluster %d of %d", ErrOrderIndex, i, el.OrderIndex, len(active))
		}
	}

	gaps := ElectronTimeGaps(electrons)
	splitIndex, err := FindElectronSplitIndex(electrons, gaps, e.config.FileSizeTargetMB,
		e.config.MinElectronGapLength, e.config.S2SecondaryScGain)
	if err != nil {
		return nil, err
	}
	it.active = active
	it.batches = splitElectrons(electrons, splitIndex)

	if len(it.batches) > 1 && e.config.Verbosity > 0 {
		logger.Info("Chunk size exceeding file size target.", "ENGINE")
		logger.Info(fmt.Sprintf("Downchunking to %d chunks", len(it.batches)), "ENGINE")
	}
	return it, nil
}

// ChunkIterator yields the chunks of one Emit call in time order.
type ChunkIterator struct {
	engine    *Engine
	active    []EnergyDepositCluster
	batches   [][]ElectronRecord
	next      int
	lastStart int64
	end       int64

	chunk Chunk
	err   error
	state EmitterState
}

// Next computes the next chunk. It returns false when all chunks have been
// produced or an error occurred; check Err afterwards.
func (it *ChunkIterator) Next() bool {
	if it.state == DONE {
		return false
	}
	if it.next >= len(it.batches) {
		it.state = DONE
		it.chunk = Chunk{}
		return false
	}
	it.state = EMITTING

	final := it.next == len(it.batches)-1
	chunk, err := it.engine.buildChunk(it.active, it.batches[it.next], it.lastStart, it.end, final)
	if err != nil {
		it.err = err
		it.state = DONE
		it.chunk = Chunk{}
		return false
	}
	it.chunk = chunk
	it.lastStart = chunk.End
	it.next++
	return true
}

func (it *ChunkIterator) Chunk() Chunk {
	return it.chunk
}

func (it *ChunkIterator) Err() error {
	return it.err
}

func (it *ChunkIterator) State() EmitterState {
	return it.state
}

// Collect drains the iterator.
func (it *ChunkIterator) Collect() ([]Chunk, error) {
	if it.state == DONE {
		return nil, ErrIteratorDone
	}
	var chunks []Chunk
	for it.Next() {
		chunks = append(chunks, it.Chunk())
	}
	return chunks, it.Err()
}

func (e *Engine) chunkEndPadding() int64 {
	pad := int64(e.config.MinElectronGapLength * CHUNK_END_GAP_FRACTION)
	if pad < 1 {
		pad = 1
	}
	return pad
}

// buildChunk runs the full propagation of one electron sub-batch.
func (e *Engine) buildChunk(active []EnergyDepositCluster, batch []ElectronRecord, start, end int64, final bool) (Chunk, error) {
	chunk := Chunk{Start: start, End: end}
	if len(batch) == 0 {
		chunk.Photons = []PhotonRecord{}
		return chunk, nil
	}

	owners := make([]int64, len(batch))
	for i, el := range batch {
		owners[i] = el.OrderIndex
	}
	slices.Sort(owners)
	owners = slices.Compact(owners)

	slot := make(map[int64]int, len(owners))
	for i, o := range owners {
		slot[o] = i
	}
	byOwner := make([][]int, len(owners))
	nPhotons := make([]int64, len(owners))
	for i, el := range batch {
		s := slot[el.OrderIndex]
		byOwner[s] = append(byOwner[s], i)
		nPhotons[s] += el.NS2Photons
	}

	clusters := make([]EnergyDepositCluster, len(owners))
	positions := make([]Position, len(owners))
	for i, o := range owners {
		clusters[i] = active[o]
		positions[i] = Position{X: active[o].XObs, Y: active[o].YObs}
	}

	if e.config.Verbosity > 1 {
		times := make([]int64, len(batch))
		for i, el := range batch {
			times[i] = el.Time
		}
		bursts := CountClusters(ClusterByTimeProximity(times, int64(e.config.MinElectronGapLength), 1))
		logger.Info(fmt.Sprintf("Sub-batch of %d electrons in %d bursts from %d clusters", len(batch), bursts, len(owners)), "ENGINE")
	}

	channels, err := SamplePhotonChannels(e.calibration, e.pattern, clusters, nPhotons, e.rng)
	if err != nil {
		return Chunk{}, err
	}
	timings, err := e.timing.SampleTimings(e.calibration, positions, nPhotons, channels, e.rng)
	if err != nil {
		return Chunk{}, err
	}

	// electron arrival times, grouped like the channels
	k := 0
	for s := range owners {
		for _, i := range byOwner[s] {
			for n := int64(0); n < batch[i].NS2Photons; n++ {
				timings[k] += batch[i].Time
				k++
			}
		}
	}

	photons, err := ApplyPMTResponse(e.calibration.Gains, e.response, channels, timings, e.rng)
	if err != nil {
		return Chunk{}, err
	}
	slices.SortStableFunc(photons, func(a, b PhotonRecord) int {
		return cmp.Compare(a.Time, b.Time)
	})

	if !final {
		var last int64
		if len(photons) > 0 {
			last = photons[len(photons)-1].EndTime
		} else {
			last = batch[len(batch)-1].Time
		}
		chunk.End = last + e.chunkEndPadding()
	}

	for _, p := range photons {
		if !chunk.Contains(p.Time) {
			return Chunk{}, fmt.Errorf("%w: photon at %d, chunk [%d, %d)", ErrChunkWindow, p.Time, chunk.Start, chunk.End)
		}
	}
	chunk.Photons = photons

	if e.config.Verbosity > 1 {
		logger.Info(fmt.Sprintf("Chunk [%d, %d) with %d photons", chunk.Start, chunk.End, chunk.Len()), "ENGINE")
	}
	return chunk, nil
}
