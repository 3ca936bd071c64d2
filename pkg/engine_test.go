package propagation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, config Configuration, seed uint64) *Engine {
	t.Helper()
	engine, err := NewEngine(config, testCalibration(t, config), NewRandomSource(seed, seed))
	require.NoError(t, err)
	return engine
}

// burstInput has two active clusters and electrons in three bursts
// separated by gaps above the 1000 ns minimum.
func burstInput() ([]EnergyDepositCluster, []ElectronRecord) {
	clusters := []EnergyDepositCluster{
		cluster(0, 0, -10, 3),
		cluster(5, 5, -20, 0),
		cluster(-2, 3, -30, 2),
	}
	electrons := []ElectronRecord{
		{Time: 0, EndTime: 0, NS2Photons: 20, OrderIndex: 0},
		{Time: 10, EndTime: 10, NS2Photons: 25, OrderIndex: 1},
		{Time: 5000, EndTime: 5000, NS2Photons: 30, OrderIndex: 0},
		{Time: 5010, EndTime: 5010, NS2Photons: 15, OrderIndex: 0},
		{Time: 20000, EndTime: 20000, NS2Photons: 10, OrderIndex: 1},
	}
	return clusters, electrons
}

func TestEngine_EmptyElectrons(t *testing.T) {
	engine := newTestEngine(t, testConfiguration(), 1)
	it, err := engine.Emit(nil, nil, 100, 500)
	require.NoError(t, err)
	assert.Equal(t, IDLE, it.State())

	require.True(t, it.Next())
	assert.Equal(t, EMITTING, it.State())
	chunk := it.Chunk()
	assert.Equal(t, int64(100), chunk.Start)
	assert.Equal(t, int64(500), chunk.End)
	assert.Equal(t, 0, chunk.Len())

	assert.False(t, it.Next())
	assert.Equal(t, DONE, it.State())
	assert.NoError(t, it.Err())
	assert.False(t, it.Next())
}

func TestEngine_SingleChunk(t *testing.T) {
	config := testConfiguration()
	engine := newTestEngine(t, config, 2)
	clusters, electrons := burstInput()

	chunks, err := mustEmit(t, engine, clusters, electrons, 0, 30000)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, int64(0), chunks[0].Start)
	assert.Equal(t, int64(30000), chunks[0].End)
	assert.Equal(t, 100, chunks[0].Len())
}

func TestEngine_ChunksTileTheWindow(t *testing.T) {
	config := testConfiguration()
	config.FileSizeTargetMB = 1e-9
	engine := newTestEngine(t, config, 3)
	clusters, electrons := burstInput()

	chunks, err := mustEmit(t, engine, clusters, electrons, -50, 30000)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, int64(-50), chunks[0].Start)
	assert.Equal(t, int64(10+900), chunks[0].End)
	assert.Equal(t, int64(5010+900), chunks[1].End)
	assert.Equal(t, int64(30000), chunks[2].End)
	for i := 1; i < len(chunks); i++ {
		assert.Equal(t, chunks[i-1].End, chunks[i].Start)
	}

	assert.Equal(t, 45, chunks[0].Len())
	assert.Equal(t, 45, chunks[1].Len())
	assert.Equal(t, 10, chunks[2].Len())

	for _, chunk := range chunks {
		for i, p := range chunk.Photons {
			assert.True(t, chunk.Contains(p.Time))
			assert.Equal(t, p.Time, p.EndTime)
			if i > 0 {
				assert.LessOrEqual(t, chunk.Photons[i-1].Time, p.Time)
			}
		}
	}
}

func TestEngine_PhotonConservation(t *testing.T) {
	config := testConfiguration()
	config.FileSizeTargetMB = 1e-9
	engine := newTestEngine(t, config, 4)
	clusters, electrons := burstInput()

	chunks, err := mustEmit(t, engine, clusters, electrons, 0, 30000)
	require.NoError(t, err)

	perTime := make(map[int64]int)
	total := 0
	for _, chunk := range chunks {
		for _, p := range chunk.Photons {
			perTime[p.Time]++
			assert.True(t, p.Channel >= 0 && p.Channel < int16(config.NTpcPmts))
		}
		total += chunk.Len()
	}
	assert.Equal(t, 100, total)
	// every delay is zero, so each photon sits at its electron time
	for _, el := range electrons {
		assert.Equal(t, int(el.NS2Photons), perTime[el.Time], "electron at %d", el.Time)
	}
}

func TestEngine_Deterministic(t *testing.T) {
	config := testConfiguration()
	config.FileSizeTargetMB = 1e-9
	config.PhaseS2 = PHASE_GAS
	config.PmtTransitTimeSpread = 3
	config.PDoublePeEmission = 0.2
	clusters, electrons := burstInput()

	first, err := mustEmit(t, newTestEngine(t, config, 5), clusters, electrons, -1000, 40000)
	require.NoError(t, err)
	second, err := mustEmit(t, newTestEngine(t, config, 5), clusters, electrons, -1000, 40000)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	seeded, err := NewEngine(config, testCalibration(t, config), nil)
	require.NoError(t, err)
	reseeded, err := NewEngine(config, testCalibration(t, config), nil)
	require.NoError(t, err)
	a, err := mustEmit(t, seeded, clusters, electrons, -1000, 40000)
	require.NoError(t, err)
	b, err := mustEmit(t, reseeded, clusters, electrons, -1000, 40000)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	config.DeterministicSeed = false
	entropy, err := NewEngine(config, testCalibration(t, config), nil)
	require.NoError(t, err)
	other, err := NewEngine(config, testCalibration(t, config), nil)
	require.NoError(t, err)
	c, err := mustEmit(t, entropy, clusters, electrons, -1000, 40000)
	require.NoError(t, err)
	d, err := mustEmit(t, other, clusters, electrons, -1000, 40000)
	require.NoError(t, err)
	assert.NotEqual(t, c, d)
}

func TestEngine_Errors(t *testing.T) {
	config := testConfiguration()
	clusters, electrons := burstInput()

	t.Run("order index out of range", func(t *testing.T) {
		engine := newTestEngine(t, config, 6)
		bad := append([]ElectronRecord{}, electrons...)
		bad[2].OrderIndex = 2
		_, err := engine.Emit(clusters, bad, 0, 30000)
		assert.ErrorIs(t, err, ErrOrderIndex)
	})
	t.Run("window ends before start", func(t *testing.T) {
		engine := newTestEngine(t, config, 6)
		_, err := engine.Emit(clusters, electrons, 10, 0)
		assert.ErrorIs(t, err, ErrChunkWindow)
	})
	t.Run("photon before window", func(t *testing.T) {
		engine := newTestEngine(t, config, 6)
		it, err := engine.Emit(clusters, electrons, 100, 30000)
		require.NoError(t, err)
		assert.False(t, it.Next())
		assert.ErrorIs(t, it.Err(), ErrChunkWindow)
		assert.Equal(t, DONE, it.State())
		assert.Equal(t, 0, it.Chunk().Len())
	})
	t.Run("failure stops later chunks", func(t *testing.T) {
		split := config
		split.FileSizeTargetMB = 1e-9
		split.DiffusionConstantTransverse = 1e-8
		above := append([]EnergyDepositCluster{}, clusters...)
		above[2].ZObs = 1
		// only the last burst belongs to the cluster above the surface
		late := append([]ElectronRecord{}, electrons...)
		late[1].OrderIndex = 0
		engine := newTestEngine(t, split, 7)
		it, err := engine.Emit(above, late, 0, 30000)
		require.NoError(t, err)
		require.True(t, it.Next())
		require.True(t, it.Next())
		assert.False(t, it.Next())
		assert.ErrorIs(t, it.Err(), ErrGeometry)
		assert.False(t, it.Next())
	})
}

func TestNewEngine_InvalidCalibration(t *testing.T) {
	config := testConfiguration()
	cal := testCalibration(t, config)
	cal.Pattern = uniformPattern(t, 3)
	_, err := NewEngine(config, cal, nil)
	assert.ErrorIs(t, err, ErrPatternDimension)

	_, err = NewEngine(config, nil, nil)
	assert.Error(t, err)
}

func TestChunkIterator_Collect(t *testing.T) {
	engine := newTestEngine(t, testConfiguration(), 8)
	it, err := engine.Emit(nil, nil, 0, 10)
	require.NoError(t, err)
	chunks, err := it.Collect()
	require.NoError(t, err)
	assert.Len(t, chunks, 1)

	_, err = it.Collect()
	assert.ErrorIs(t, err, ErrIteratorDone)
}

func TestEmitterState_String(t *testing.T) {
	assert.Equal(t, "idle", IDLE.String())
	assert.Equal(t, "emitting", EMITTING.String())
	assert.Equal(t, "done", DONE.String())
	assert.Equal(t, "UNKNOWN", EmitterState(9).String())
}

func mustEmit(t *testing.T, engine *Engine, clusters []EnergyDepositCluster, electrons []ElectronRecord, start, end int64) ([]Chunk, error) {
	t.Helper()
	it, err := engine.Emit(clusters, electrons, start, end)
	require.NoError(t, err)
	return it.Collect()
}

type recordingLogger struct {
	messages []string
}

func (l *recordingLogger) Info(message string, module string) {
	l.messages = append(l.messages, module+": "+message)
}

func (l *recordingLogger) Error(message string) {
	l.messages = append(l.messages, "error: "+message)
}

func TestEngine_VerboseDiagnostics(t *testing.T) {
	rec := &recordingLogger{}
	SetLogger(rec)
	t.Cleanup(func() { SetLogger(nil) })

	config := testConfiguration()
	config.Verbosity = 2
	config.FileSizeTargetMB = 1e-9
	clusters, electrons := burstInput()
	_, err := mustEmit(t, newTestEngine(t, config, 9), clusters, electrons, 0, 30000)
	require.NoError(t, err)

	assert.Contains(t, rec.messages, "ENGINE: Downchunking to 3 chunks")
	assert.Contains(t, rec.messages, "ENGINE: Sub-batch of 2 electrons in 1 bursts from 2 clusters")
	assert.Contains(t, rec.messages, "ENGINE: Sub-batch of 1 electrons in 1 bursts from 1 clusters")
}
