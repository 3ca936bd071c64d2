package main

import (
	"fmt"
	"path/filepath"

	propagation "github.com/next-exp/s2photons_go/pkg"
)

type WorkerData struct {
	InputID  int
	Filename string
}

type WorkerResult struct {
	InputID  int
	Filename string
	Input    *propagation.Input
	Chunks   []propagation.Chunk
	Err      error
}

// worker runs one engine per input file. Each engine is seeded from the run
// id and the input name so results do not depend on scheduling.
func worker(id int, config propagation.Configuration, cal *propagation.DetectorCalibration,
	jobs <-chan WorkerData, results chan<- WorkerResult) {
	for job := range jobs {
		if config.Verbosity > 0 {
			logger.Info(fmt.Sprintf("Worker %d processing %s", id, job.Filename), "worker")
		}
		results <- processInput(job, config, cal)
	}
}

func processInput(job WorkerData, config propagation.Configuration, cal *propagation.DetectorCalibration) (result WorkerResult) {
	result = WorkerResult{InputID: job.InputID, Filename: job.Filename}
	defer func() {
		if r := recover(); r != nil {
			result.Err = fmt.Errorf("recovered from panic on %s: %v", job.Filename, r)
		}
	}()

	input, err := propagation.ReadInput(job.Filename)
	if err != nil {
		result.Err = err
		return result
	}
	result.Input = input

	var rng *propagation.RandomSource
	if config.DeterministicSeed {
		rng, err = propagation.NewDeterministicRandomSource(config.RunID+"/"+filepath.Base(job.Filename), config)
		if err != nil {
			result.Err = err
			return result
		}
	}
	engine, err := propagation.NewEngine(config, cal, rng)
	if err != nil {
		result.Err = err
		return result
	}
	it, err := engine.Emit(input.Clusters, input.Electrons, input.Start, input.End)
	if err != nil {
		result.Err = fmt.Errorf("error emitting %s: %w", job.Filename, err)
		return result
	}
	result.Chunks, result.Err = it.Collect()
	return result
}

func sendInputsToWorkers(filenames []string, jobs chan<- WorkerData) {
	for i, filename := range filenames {
		jobs <- WorkerData{InputID: i, Filename: filename}
	}
	close(jobs)
}

// processWorkerResults writes every successful result and returns the
// number of failed inputs.
func processWorkerResults(results <-chan WorkerResult, writer *Writer, nInputs int) int {
	failed := 0
	for i := 0; i < nInputs; i++ {
		result := <-results
		if result.Err != nil {
			logger.Error(fmt.Sprintf("error processing %s: %v", result.Filename, result.Err))
			failed++
			continue
		}
		if err := writer.WriteInput(result.InputID, result.Filename, result.Input); err != nil {
			logger.Error(err.Error())
			failed++
			continue
		}
		nPhotons := 0
		for chunkID, chunk := range result.Chunks {
			if err := writer.WriteChunk(result.InputID, chunkID, chunk); err != nil {
				logger.Error(err.Error())
				failed++
				break
			}
			nPhotons += chunk.Len()
		}
		logger.Info(fmt.Sprintf("%s: %d chunks, %d photons", result.Filename, len(result.Chunks), nPhotons), "main")
	}
	return failed
}
