package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	propagation "github.com/next-exp/s2photons_go/pkg"
)

var logger Logger

var (
	configFilename string
	envFilename    string
	fileOut        string
	numWorkers     int
	verbosity      int
	outputFormat   string
)

func init() {
	opts := &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}
	handlerStdOut := NewHandler(os.Stdout, opts)
	handlerStdErr := slog.NewJSONHandler(os.Stderr, opts)
	logger = Logger{
		InfoLog:  slog.New(handlerStdOut),
		ErrorLog: slog.New(handlerStdErr),
	}
}

var rootCmd = &cobra.Command{
	Use:   "simulator",
	Short: "S2 photon propagation for clustered energy deposits",
}

var runCmd = &cobra.Command{
	Use:   "run [input files]",
	Short: "Propagate the S2 photons of the input files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := effectiveConfiguration(cmd)
		if err != nil {
			return err
		}
		return run(config, args)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := effectiveConfiguration(cmd)
		if err != nil {
			return err
		}
		var out []byte
		switch outputFormat {
		case "yaml":
			out, err = yaml.Marshal(config)
		default:
			out, err = json.MarshalIndent(config, "", "  ")
		}
		if err != nil {
			return fmt.Errorf("error encoding configuration: %w", err)
		}
		fmt.Println(string(out))
		return nil
	},
}

func effectiveConfiguration(cmd *cobra.Command) (propagation.Configuration, error) {
	var config propagation.Configuration
	var err error
	if configFilename != "" {
		config, err = loadConfiguration(configFilename, envFilename)
		if err != nil {
			return config, fmt.Errorf("error reading configuration file: %w", err)
		}
	} else {
		config = propagation.DefaultConfiguration()
	}

	if cmd.Flags().Changed("out") {
		config.FileOut = fileOut
	}
	if cmd.Flags().Changed("workers") {
		config.NumWorkers = numWorkers
	}
	if cmd.Flags().Changed("verbosity") {
		config.Verbosity = verbosity
	}
	if config.RunID == "" {
		config.RunID = uuid.New().String()
	}
	return config, nil
}

func run(config propagation.Configuration, inputs []string) error {
	start := time.Now()
	propagation.SetLogger(logger)

	if config.Verbosity > 0 {
		logger.Info(fmt.Sprintf("Reading configuration file: %s", configFilename), "main")
		printConfiguration(config, logger)
	}
	if err := config.Validate(); err != nil {
		return err
	}
	if config.FileOut == "" {
		return fmt.Errorf("no output file configured")
	}

	toPE, err := propagation.ResolveGainModel(config)
	if err != nil {
		return fmt.Errorf("error loading gain model: %w", err)
	}
	cal, err := propagation.BuildCalibration(config, toPE)
	if err != nil {
		return fmt.Errorf("error building calibration: %w", err)
	}

	writer, err := NewWriter(config.FileOut, config.CompressionLevel)
	if err != nil {
		return err
	}
	if err := writer.WriteRunInfo(config.RunNumber, config.RunID, config.LuminescenceModel); err != nil {
		return errors.Join(fmt.Errorf("error writing run info: %w", err), writer.Close())
	}

	nWorkers := config.NumWorkers
	if nWorkers < 1 {
		nWorkers = 1
	}
	jobs := make(chan WorkerData, len(inputs))
	results := make(chan WorkerResult, len(inputs))
	for w := 0; w < nWorkers; w++ {
		go worker(w, config, cal, jobs, results)
	}
	go sendInputsToWorkers(inputs, jobs)

	failed := processWorkerResults(results, writer, len(inputs))
	if err := writer.Close(); err != nil {
		return err
	}

	duration := time.Since(start)
	logger.Info(fmt.Sprintf("Processed %d inputs in %d ms", len(inputs), duration.Milliseconds()), "main")
	if failed > 0 {
		return fmt.Errorf("%d of %d inputs failed", failed, len(inputs))
	}
	return nil
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configFilename, "config", "", "Configuration file path (JSON or YAML)")
	rootCmd.PersistentFlags().StringVar(&envFilename, "env", ".env", "Env file with S2SIM_DB_* credentials")
	rootCmd.PersistentFlags().IntVar(&verbosity, "verbosity", 0, "Verbosity level")

	runCmd.Flags().StringVar(&fileOut, "out", "", "Output HDF5 file")
	runCmd.Flags().IntVar(&numWorkers, "workers", 1, "Number of worker goroutines")

	configCmd.Flags().StringVar(&outputFormat, "format", "json", "Output format (json, yaml)")

	benchCmd.Flags().StringVar(&fileOut, "out", "", "Output HDF5 file, overwritten at every level")
	benchCmd.Flags().IntVar(&benchMinLevel, "min-level", 0, "Lowest deflate level")
	benchCmd.Flags().IntVar(&benchMaxLevel, "max-level", 9, "Highest deflate level")
	benchCmd.Flags().IntVar(&benchRepeat, "repeat", 3, "Writes per level")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(benchCmd)

	if err := rootCmd.Execute(); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
}
