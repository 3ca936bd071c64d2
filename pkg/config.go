package propagation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type Configuration struct {
	Verbosity         int    `json:"verbosity" yaml:"verbosity"`
	RunID             string `json:"run_id" yaml:"run_id"`
	RunNumber         int    `json:"run_number" yaml:"run_number"`
	DeterministicSeed bool   `json:"deterministic_seed" yaml:"deterministic_seed"`
	NumWorkers        int    `json:"num_workers" yaml:"num_workers"`

	// Chunking
	FileSizeTargetMB     float64 `json:"file_size_target_mb" yaml:"file_size_target_mb"`
	MinElectronGapLength float64 `json:"min_electron_gap_length" yaml:"min_electron_gap_length"`
	S2SecondaryScGain    float64 `json:"s2_secondary_sc_gain" yaml:"s2_secondary_sc_gain"`

	// Detector
	NTopPmts  int       `json:"n_top_pmts" yaml:"n_top_pmts"`
	NTpcPmts  int       `json:"n_tpc_pmts" yaml:"n_tpc_pmts"`
	TpcRadius float64   `json:"tpc_radius" yaml:"tpc_radius"`
	TpcLength float64   `json:"tpc_length" yaml:"tpc_length"`
	PhaseS2   Phase     `json:"phase_s2" yaml:"phase_s2"`
	ToPE      []float64 `json:"to_pe" yaml:"to_pe"`

	// Pattern
	DiffusionConstantTransverse  float64 `json:"diffusion_constant_transverse" yaml:"diffusion_constant_transverse"`
	EnableDiffusionTransverseMap bool    `json:"enable_diffusion_transverse_map" yaml:"enable_diffusion_transverse_map"`
	S2AftSigma                   float64 `json:"s2_aft_sigma" yaml:"s2_aft_sigma"`
	S2AftSkewness                float64 `json:"s2_aft_skewness" yaml:"s2_aft_skewness"`
	S2MeanAreaFractionTop        float64 `json:"s2_mean_area_fraction_top" yaml:"s2_mean_area_fraction_top"`

	// Timing
	LuminescenceModel     LuminescenceModel `json:"luminescence_model" yaml:"luminescence_model"`
	SingletFractionGas    float64           `json:"singlet_fraction_gas" yaml:"singlet_fraction_gas"`
	SingletLifetimeGas    float64           `json:"singlet_lifetime_gas" yaml:"singlet_lifetime_gas"`
	TripletLifetimeGas    float64           `json:"triplet_lifetime_gas" yaml:"triplet_lifetime_gas"`
	SingletLifetimeLiquid float64           `json:"singlet_lifetime_liquid" yaml:"singlet_lifetime_liquid"`
	TripletLifetimeLiquid float64           `json:"triplet_lifetime_liquid" yaml:"triplet_lifetime_liquid"`

	// Drift field luminescence model
	Pressure                     float64 `json:"pressure" yaml:"pressure"`
	Temperature                  float64 `json:"temperature" yaml:"temperature"`
	GasDriftVelocitySlope        float64 `json:"gas_drift_velocity_slope" yaml:"gas_drift_velocity_slope"`
	EnableGasGapWarping          bool    `json:"enable_gas_gap_warping" yaml:"enable_gas_gap_warping"`
	ElrGasGapLength              float64 `json:"elr_gas_gap_length" yaml:"elr_gas_gap_length"`
	AnodeFieldDominationDistance float64 `json:"anode_field_domination_distance" yaml:"anode_field_domination_distance"`
	AnodeWireRadius              float64 `json:"anode_wire_radius" yaml:"anode_wire_radius"`
	GateToAnodeDistance          float64 `json:"gate_to_anode_distance" yaml:"gate_to_anode_distance"`
	AnodeVoltage                 float64 `json:"anode_voltage" yaml:"anode_voltage"`
	LxeDielectricConstant        float64 `json:"lxe_dielectric_constant" yaml:"lxe_dielectric_constant"`

	// PMT response
	PmtTransitTimeMean     float64 `json:"pmt_transit_time_mean" yaml:"pmt_transit_time_mean"`
	PmtTransitTimeSpread   float64 `json:"pmt_transit_time_spread" yaml:"pmt_transit_time_spread"`
	PDoublePeEmission      float64 `json:"p_double_pe_emision" yaml:"p_double_pe_emision"`
	DigitizerBits          int     `json:"digitizer_bits" yaml:"digitizer_bits"`
	DigitizerVoltageRange  float64 `json:"digitizer_voltage_range" yaml:"digitizer_voltage_range"`
	PmtCircuitLoadResistor float64 `json:"pmt_circuit_load_resistor" yaml:"pmt_circuit_load_resistor"`

	// Calibration resources
	PatternMapFile             string `json:"s2_pattern_map" yaml:"s2_pattern_map"`
	OpticalSplineFile          string `json:"s2_time_spline" yaml:"s2_time_spline"`
	GasGapMapFile              string `json:"gas_gap_map" yaml:"gas_gap_map"`
	LuminescenceFile           string `json:"s2_luminescence_gg" yaml:"s2_luminescence_gg"`
	FieldDependenciesFile      string `json:"field_dependencies_map" yaml:"field_dependencies_map"`
	PhotonAreaDistributionFile string `json:"photon_area_distribution" yaml:"photon_area_distribution"`

	// Conditions database
	NoDB   bool   `json:"no_db" yaml:"no_db"`
	Host   string `json:"host" yaml:"host"`
	User   string `json:"user" yaml:"user"`
	Passwd string `json:"pass" yaml:"pass"`
	DBName string `json:"dbname" yaml:"dbname"`

	// Output
	FileOut          string `json:"file_out" yaml:"file_out"`
	CompressionLevel int    `json:"compression_level" yaml:"compression_level"`
}

// DefaultConfiguration returns the XENONnT-like defaults used when a key is
// absent from the configuration file.
func DefaultConfiguration() Configuration {
	var config Configuration

	config.Verbosity = 0
	config.DeterministicSeed = true
	config.NumWorkers = 1

	config.FileSizeTargetMB = 500
	config.MinElectronGapLength = 1e5
	config.S2SecondaryScGain = 31.2

	config.NTopPmts = 253
	config.NTpcPmts = 494
	config.TpcRadius = 66.4
	config.TpcLength = 148.6515
	config.PhaseS2 = PHASE_GAS

	config.DiffusionConstantTransverse = 4.55e-8
	config.S2AftSigma = 0.0
	config.S2AftSkewness = 0.0

	config.LuminescenceModel = GARFIELD_GAS_GAP
	config.SingletFractionGas = 0.7
	config.SingletLifetimeGas = 5.88
	config.TripletLifetimeGas = 115.67
	config.SingletLifetimeLiquid = 3.1
	config.TripletLifetimeLiquid = 24

	config.Pressure = 1.94
	config.Temperature = 173
	config.GasDriftVelocitySlope = 1.3e-5
	config.ElrGasGapLength = 0.4
	config.AnodeFieldDominationDistance = 0.0375
	config.AnodeWireRadius = 0.0108
	config.GateToAnodeDistance = 0.8
	config.AnodeVoltage = 4.88e3
	config.LxeDielectricConstant = 1.96

	config.PmtTransitTimeMean = 0
	config.PmtTransitTimeSpread = 3
	config.PDoublePeEmission = 0.219
	config.DigitizerBits = 14
	config.DigitizerVoltageRange = 2.25
	config.PmtCircuitLoadResistor = 50

	config.NoDB = true
	config.Host = "localhost"
	config.User = "reader"
	config.DBName = "XENONNT"

	config.CompressionLevel = 4
	return config
}

// LoadConfiguration reads a JSON or YAML file on top of the defaults.
func LoadConfiguration(filename string) (Configuration, error) {
	config := DefaultConfiguration()

	data, err := os.ReadFile(filename)
	if err != nil {
		return config, &ErrOpenFile{Filename: filename, Err: err}
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &config)
	default:
		err = json.Unmarshal(data, &config)
	}
	if err != nil {
		return config, fmt.Errorf("error parsing configuration file %s: %w", filename, err)
	}
	return config, nil
}

func (c Configuration) Validate() error {
	var errs []string
	if c.FileSizeTargetMB <= 0 {
		errs = append(errs, "file_size_target_mb must be positive")
	}
	if c.MinElectronGapLength < 0 {
		errs = append(errs, "min_electron_gap_length must not be negative")
	}
	if c.NTopPmts < 0 || c.NTpcPmts <= 0 || c.NTopPmts > c.NTpcPmts {
		errs = append(errs, fmt.Sprintf("invalid PMT counts: top %d, tpc %d", c.NTopPmts, c.NTpcPmts))
	}
	if c.SingletFractionGas < 0 || c.SingletFractionGas > 1 {
		errs = append(errs, "singlet_fraction_gas must be in [0, 1]")
	}
	if c.PDoublePeEmission < 0 || c.PDoublePeEmission > 1 {
		errs = append(errs, "p_double_pe_emision must be in [0, 1]")
	}
	if c.DigitizerBits <= 0 || c.PmtCircuitLoadResistor <= 0 {
		errs = append(errs, "digitizer bits and load resistor must be positive")
	}
	if c.S2AftSigma < 0 {
		errs = append(errs, "s2_aft_sigma must not be negative")
	}
	if c.DiffusionConstantTransverse < 0 {
		errs = append(errs, "diffusion_constant_transverse must not be negative")
	}
	if c.TpcRadius <= 0 {
		errs = append(errs, "tpc_radius must be positive")
	}
	if len(c.ToPE) > 0 && len(c.ToPE) != c.NTpcPmts {
		errs = append(errs, fmt.Sprintf("to_pe has %d entries, expected %d", len(c.ToPE), c.NTpcPmts))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return nil
}
