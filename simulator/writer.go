package main

import (
	"errors"
	"fmt"

	"github.com/jmbenlloch/go-hdf5"

	propagation "github.com/next-exp/s2photons_go/pkg"
)

// Writer stores the photon chunks of a run in one HDF5 file. It is used from
// a single goroutine.
type Writer struct {
	File             *hdf5.File
	Filename         string
	CompressionLevel int
	RunGroup         *hdf5.Group
	S2Group          *hdf5.Group
	RunInfoTable     *hdf5.Dataset
	InputTable       *hdf5.Dataset
	ChunkTable       *hdf5.Dataset
	PhotonTable      *hdf5.Dataset
	InputCounter     int
	ChunkCounter     int
	PhotonCounter    int
}

func NewWriter(filename string, compressionLevel int) (*Writer, error) {
	var err error
	writer := &Writer{Filename: filename, CompressionLevel: compressionLevel}
	logger.Info(fmt.Sprintf("Creating file: %s", filename), "writer")

	if writer.File, err = openFile(filename); err != nil {
		return nil, err
	}
	if writer.RunGroup, err = createGroup(writer.File, "Run"); err != nil {
		return nil, errors.Join(err, writer.Close())
	}
	if writer.S2Group, err = createGroup(writer.File, "S2"); err != nil {
		return nil, errors.Join(err, writer.Close())
	}
	if writer.RunInfoTable, err = createTable(writer.RunGroup, "runInfo", RunInfoHDF5{}, compressionLevel); err != nil {
		return nil, errors.Join(err, writer.Close())
	}
	if writer.InputTable, err = createTable(writer.RunGroup, "inputs", InputHDF5{}, compressionLevel); err != nil {
		return nil, errors.Join(err, writer.Close())
	}
	if writer.ChunkTable, err = createTable(writer.S2Group, "chunks", ChunkHDF5{}, compressionLevel); err != nil {
		return nil, errors.Join(err, writer.Close())
	}
	if writer.PhotonTable, err = createTable(writer.S2Group, "photons", PhotonHDF5{}, compressionLevel); err != nil {
		return nil, errors.Join(err, writer.Close())
	}
	return writer, nil
}

func (w *Writer) WriteRunInfo(runNumber int, runID string, model propagation.LuminescenceModel) error {
	return writeEntryToTable(w.RunInfoTable, RunInfoHDF5{
		run_number: int32(runNumber),
		run_id:     convertToHdf5String(runID),
		model:      convertToHdf5String(model.String()),
	}, 0)
}

func (w *Writer) WriteInput(inputID int, filename string, input *propagation.Input) error {
	entry := InputHDF5{
		input_id:    int32(inputID),
		filename:    convertToHdf5String(filename),
		n_clusters:  int64(len(input.Clusters)),
		n_electrons: int64(len(input.Electrons)),
	}
	if err := writeEntryToTable(w.InputTable, entry, w.InputCounter); err != nil {
		return fmt.Errorf("error writing input %d: %w", inputID, err)
	}
	w.InputCounter++
	return nil
}

// WriteChunk appends the chunk window and its photons.
func (w *Writer) WriteChunk(inputID int, chunkID int, chunk propagation.Chunk) error {
	entry := ChunkHDF5{
		input_id:  int32(inputID),
		chunk_id:  int32(chunkID),
		start:     chunk.Start,
		end:       chunk.End,
		n_photons: int64(chunk.Len()),
	}
	if err := writeEntryToTable(w.ChunkTable, entry, w.ChunkCounter); err != nil {
		return fmt.Errorf("error writing chunk %d of input %d: %w", chunkID, inputID, err)
	}
	w.ChunkCounter++

	// The array MUST be allocated at creation, appends will make HDF5 panic
	photons := make([]PhotonHDF5, chunk.Len())
	for i, p := range chunk.Photons {
		photons[i] = PhotonHDF5{
			input_id:    int32(inputID),
			chunk_id:    int32(chunkID),
			time:        p.Time,
			endtime:     p.EndTime,
			photon_gain: p.PhotonGain,
			channel:     p.Channel,
		}
		if p.DPE {
			photons[i].dpe = 1
		}
	}
	if err := writeArrayToTable(w.PhotonTable, &photons, w.PhotonCounter); err != nil {
		return fmt.Errorf("error writing photons of chunk %d of input %d: %w", chunkID, inputID, err)
	}
	w.PhotonCounter += len(photons)
	return nil
}

func (w *Writer) Close() error {
	logger.Info(fmt.Sprintf("Closing file %s", w.Filename), "writer")
	var errs []error

	datasets := []struct {
		name string
		dset *hdf5.Dataset
	}{
		{"run info table", w.RunInfoTable},
		{"input table", w.InputTable},
		{"chunk table", w.ChunkTable},
		{"photon table", w.PhotonTable},
	}
	for _, d := range datasets {
		if d.dset == nil {
			continue
		}
		if err := d.dset.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing %s: %w", d.name, err))
		}
	}
	if w.RunGroup != nil {
		if err := w.RunGroup.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing run group: %w", err))
		}
	}
	if w.S2Group != nil {
		if err := w.S2Group.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing S2 group: %w", err))
		}
	}
	if w.File != nil {
		if err := w.File.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing file: %w", err))
		}
	}
	return errors.Join(errs...)
}
