package propagation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectorCalibration_Channels(t *testing.T) {
	config := testConfiguration()
	config.ToPE = []float64{1, 0, 1, 1}
	cal := testCalibration(t, config)

	assert.True(t, cal.IsTop(InvalidChannel))
	assert.True(t, cal.IsTop(1))
	assert.False(t, cal.IsTop(2))

	assert.True(t, cal.IsDead(1))
	assert.False(t, cal.IsDead(0))
	assert.True(t, cal.IsDead(4))
}

func TestDetectorCalibration_Validate(t *testing.T) {
	tests := []struct {
		name   string
		config func(*Configuration)
		cal    func(*testing.T, *DetectorCalibration)
		errMsg string
	}{
		{
			name:   "valid",
			config: func(*Configuration) {},
			cal:    func(*testing.T, *DetectorCalibration) {},
		},
		{
			name:   "top only pattern",
			config: func(*Configuration) {},
			cal:    func(t *testing.T, c *DetectorCalibration) { c.Pattern = uniformPattern(t, 2) },
		},
		{
			name:   "pattern dimension",
			config: func(*Configuration) {},
			cal:    func(t *testing.T, c *DetectorCalibration) { c.Pattern = uniformPattern(t, 3) },
			errMsg: ErrPatternDimension.Error(),
		},
		{
			name:   "missing splines",
			config: func(*Configuration) {},
			cal:    func(_ *testing.T, c *DetectorCalibration) { c.OpticalBottom = nil },
			errMsg: "optical propagation splines",
		},
		{
			name:   "missing luminescence tables",
			config: func(*Configuration) {},
			cal:    func(_ *testing.T, c *DetectorCalibration) { c.Luminescence = nil },
			errMsg: "luminescence tables",
		},
		{
			name: "drift field without tables",
			config: func(c *Configuration) {
				c.LuminescenceModel = DRIFT_FIELD
			},
			cal: func(_ *testing.T, c *DetectorCalibration) {
				c.Luminescence = nil
				c.GasGapMap = nil
			},
		},
		{
			name: "gas gap warping without map",
			config: func(c *Configuration) {
				c.LuminescenceModel = DRIFT_FIELD
				c.EnableGasGapWarping = true
			},
			cal:    func(_ *testing.T, c *DetectorCalibration) { c.GasGapMap = nil },
			errMsg: "gas gap warping",
		},
		{
			name: "diffusion map missing",
			config: func(c *Configuration) {
				c.DiffusionConstantTransverse = 1e-8
				c.EnableDiffusionTransverseMap = true
			},
			cal:    func(*testing.T, *DetectorCalibration) {},
			errMsg: "field dependency maps",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := testConfiguration()
			tt.config(&config)
			cal := testCalibration(t, config)
			tt.cal(t, cal)
			err := cal.Validate(config)
			if tt.errMsg == "" {
				require.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.errMsg)
			}
		})
	}
}

func TestLuminescenceTables_Validate(t *testing.T) {
	tests := []struct {
		name   string
		tables LuminescenceTables
		errMsg string
	}{
		{"valid", LuminescenceTables{GasGaps: []float64{0.4, 0.5}, TimingInvCDF: [][]float64{{0, 1, 2}, {0, 1, 2}}}, ""},
		{"one gap", LuminescenceTables{GasGaps: []float64{0.4}, TimingInvCDF: [][]float64{{0, 1, 2}}}, "at least 2 gas gaps"},
		{"short table", LuminescenceTables{GasGaps: []float64{0.4, 0.5}, TimingInvCDF: [][]float64{{0, 1}, {0, 1}}}, "at least 3 entries"},
		{"ragged", LuminescenceTables{GasGaps: []float64{0.4, 0.5}, TimingInvCDF: [][]float64{{0, 1, 2}, {0, 1}}}, ErrLengthMismatch.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tables.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.errMsg)
			}
		})
	}
}
