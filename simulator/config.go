package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	propagation "github.com/next-exp/s2photons_go/pkg"
)

// loadConfiguration reads the configuration file and lets S2SIM_DB_*
// variables, from the environment or a .env file, override the database
// credentials.
func loadConfiguration(filename string, envFile string) (propagation.Configuration, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return propagation.Configuration{}, fmt.Errorf("error loading env file %s: %w", envFile, err)
		}
	}

	config, err := propagation.LoadConfiguration(filename)
	if err != nil {
		return config, err
	}

	if v, ok := os.LookupEnv("S2SIM_DB_HOST"); ok {
		config.Host = v
	}
	if v, ok := os.LookupEnv("S2SIM_DB_USER"); ok {
		config.User = v
	}
	if v, ok := os.LookupEnv("S2SIM_DB_PASS"); ok {
		config.Passwd = v
	}
	if v, ok := os.LookupEnv("S2SIM_DB_NAME"); ok {
		config.DBName = v
	}
	return config, nil
}

func printConfiguration(config propagation.Configuration, logger Logger) {
	logger.Info(fmt.Sprintf("Run number: %d", config.RunNumber), "config")
	logger.Info(fmt.Sprintf("Run id: %s", config.RunID), "config")
	logger.Info(fmt.Sprintf("Deterministic seed: %t", config.DeterministicSeed), "config")
	logger.Info(fmt.Sprintf("Number of workers: %d", config.NumWorkers), "config")
	logger.Info(fmt.Sprintf("Verbosity: %d", config.Verbosity), "config")
	logger.Info(fmt.Sprintf("File size target: %.1f MB", config.FileSizeTargetMB), "config")
	logger.Info(fmt.Sprintf("Min electron gap length: %.0f ns", config.MinElectronGapLength), "config")
	logger.Info(fmt.Sprintf("S2 secondary scintillation gain: %.2f", config.S2SecondaryScGain), "config")
	logger.Info(fmt.Sprintf("PMTs: %d top, %d total", config.NTopPmts, config.NTpcPmts), "config")
	logger.Info(fmt.Sprintf("TPC radius: %.2f cm, length: %.2f cm", config.TpcRadius, config.TpcLength), "config")
	logger.Info(fmt.Sprintf("S2 phase: %v", config.PhaseS2), "config")
	logger.Info(fmt.Sprintf("Transverse diffusion: %g (map %t)", config.DiffusionConstantTransverse, config.EnableDiffusionTransverseMap), "config")
	logger.Info(fmt.Sprintf("AFT smearing: sigma %g, skewness %g", config.S2AftSigma, config.S2AftSkewness), "config")
	logger.Info(fmt.Sprintf("Mean AFT: %g", config.S2MeanAreaFractionTop), "config")
	logger.Info(fmt.Sprintf("Luminescence model: %v", config.LuminescenceModel), "config")
	logger.Info(fmt.Sprintf("Singlet fraction: %g", config.SingletFractionGas), "config")
	logger.Info(fmt.Sprintf("Gas gap warping: %t", config.EnableGasGapWarping), "config")
	logger.Info(fmt.Sprintf("PMT transit time: mean %g, spread %g", config.PmtTransitTimeMean, config.PmtTransitTimeSpread), "config")
	logger.Info(fmt.Sprintf("Double PE probability: %g", config.PDoublePeEmission), "config")
	logger.Info(fmt.Sprintf("Digitizer: %d bits, %g V, %g Ohm", config.DigitizerBits, config.DigitizerVoltageRange, config.PmtCircuitLoadResistor), "config")
	logger.Info(fmt.Sprintf("Pattern map: %s", config.PatternMapFile), "config")
	logger.Info(fmt.Sprintf("Optical spline: %s", config.OpticalSplineFile), "config")
	logger.Info(fmt.Sprintf("Gas gap map: %s", config.GasGapMapFile), "config")
	logger.Info(fmt.Sprintf("Luminescence tables: %s", config.LuminescenceFile), "config")
	logger.Info(fmt.Sprintf("Field dependencies: %s", config.FieldDependenciesFile), "config")
	logger.Info(fmt.Sprintf("Photon area distribution: %s", config.PhotonAreaDistributionFile), "config")
	logger.Info(fmt.Sprintf("No DB: %t", config.NoDB), "config")
	logger.Info(fmt.Sprintf("Host: %s", config.Host), "config")
	logger.Info(fmt.Sprintf("DB name: %s", config.DBName), "config")
	logger.Info(fmt.Sprintf("File out: %s", config.FileOut), "config")
	logger.Info(fmt.Sprintf("Compression level: %d", config.CompressionLevel), "config")
}
