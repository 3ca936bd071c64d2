package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	propagation "github.com/next-exp/s2photons_go/pkg"
)

var (
	benchMinLevel int
	benchMaxLevel int
	benchRepeat   int
)

var benchCmd = &cobra.Command{
	Use:   "bench [input files]",
	Short: "Measure output write time and size for each compression level",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := effectiveConfiguration(cmd)
		if err != nil {
			return err
		}
		return bench(config, args)
	},
}

func bench(config propagation.Configuration, inputs []string) error {
	start := time.Now()
	propagation.SetLogger(logger)
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

	// Simulate once, then write the same results at every level
	simulated := make([]WorkerResult, 0, len(inputs))
	for i, filename := range inputs {
		result := processInput(WorkerData{InputID: i, Filename: filename}, config, cal)
		if result.Err != nil {
			return fmt.Errorf("error processing %s: %w", filename, result.Err)
		}
		simulated = append(simulated, result)
	}
	logger.Info(fmt.Sprintf("Simulated %d inputs in %d ms", len(inputs), time.Since(start).Milliseconds()), "bench")

	for level := benchMinLevel; level <= benchMaxLevel; level++ {
		for i := 0; i < benchRepeat; i++ {
			duration, size, err := writeResults(config, level, simulated)
			if err != nil {
				return err
			}
			fmt.Printf("(hdf5, comp %d) Time: %d ms, size %d bytes\n", level, duration.Milliseconds(), size)
		}
	}

	fmt.Printf("Total time: %d ms\n", time.Since(start).Milliseconds())
	return nil
}

func writeResults(config propagation.Configuration, level int, simulated []WorkerResult) (time.Duration, int64, error) {
	start := time.Now()
	writer, err := NewWriter(config.FileOut, level)
	if err != nil {
		return 0, 0, err
	}
	if err := writer.WriteRunInfo(config.RunNumber, config.RunID, config.LuminescenceModel); err != nil {
		writer.Close()
		return 0, 0, fmt.Errorf("error writing run info: %w", err)
	}

	results := make(chan WorkerResult, len(simulated))
	for _, result := range simulated {
		results <- result
	}
	close(results)
	failed := processWorkerResults(results, writer, len(simulated))
	if err := writer.Close(); err != nil {
		return 0, 0, err
	}
	if failed > 0 {
		return 0, 0, fmt.Errorf("%d inputs failed to write", failed)
	}
	duration := time.Since(start)

	fileInfo, err := os.Stat(config.FileOut)
	if err != nil {
		return 0, 0, fmt.Errorf("error getting file info: %w", err)
	}
	return duration, fileInfo.Size(), nil
}
