package propagation

import (
	"errors"
	"fmt"
)

var (
	// ErrLengthMismatch is returned when parallel input arrays disagree in length.
	ErrLengthMismatch = errors.New("input length mismatch")
	// ErrGeometry is returned when a position violates the detector geometry,
	// e.g. an S2 cluster above the liquid surface.
	ErrGeometry = errors.New("geometry assumption violated")
	// ErrPatternDimension is returned when a pattern map does not provide
	// one probability per TPC channel.
	ErrPatternDimension = errors.New("pattern map channel dimension mismatch")
	// ErrOrderIndex is returned when an electron points to a cluster that
	// does not exist.
	ErrOrderIndex = errors.New("electron order index out of range")
	// ErrChunkWindow is returned when photons fall outside the window of the
	// chunk being built.
	ErrChunkWindow = errors.New("photon outside chunk window")
	ErrIteratorDone = errors.New("chunk iterator already exhausted")
)

// ErrOpenFile represents an error when opening a file.
type ErrOpenFile struct {
	Filename string
	Err      error
}

func (e *ErrOpenFile) Error() string {
	return fmt.Sprintf("error opening file %q: %v", e.Filename, e.Err)
}

func (e *ErrOpenFile) Unwrap() error { return e.Err }

// ErrCreateGroup represents an error when creating a group.
type ErrCreateGroup struct {
	GroupName string
	Err       error
}

func (e *ErrCreateGroup) Error() string {
	return fmt.Sprintf("error creating group %q: %v", e.GroupName, e.Err)
}

func (e *ErrCreateGroup) Unwrap() error { return e.Err }

// ErrCreateTable represents an error when creating a table.
type ErrCreateTable struct {
	TableName string
	Err       error
}

func (e *ErrCreateTable) Error() string {
	return fmt.Sprintf("error creating table %q: %v", e.TableName, e.Err)
}

func (e *ErrCreateTable) Unwrap() error { return e.Err }

// ErrResource represents an error loading a calibration resource.
type ErrResource struct {
	Name string
	Err  error
}

func (e *ErrResource) Error() string {
	return fmt.Sprintf("error loading resource %q: %v", e.Name, e.Err)
}

func (e *ErrResource) Unwrap() error { return e.Err }
