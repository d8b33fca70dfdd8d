package models

import (
	"fmt"

	"github.com/rotisserie/eris"
)

var (
	// ErrEmptyInput is returned when a run needs at least one demand point.
	ErrEmptyInput = eris.New("no demand points")
	// ErrDegenerateGeometry is returned when a shape is requested for zero points.
	ErrDegenerateGeometry = eris.New("degenerate geometry: no points")
	// ErrCapacityExhausted is matched by every *CapacityExhaustedError.
	ErrCapacityExhausted = eris.New("capacity exhausted")
	// ErrIndexBuild is returned when a facility index is built from nothing.
	ErrIndexBuild = eris.New("facility index: no facilities")
)

// CapacityExhaustedError reports the bubble for which no facility with spare
// capacity was left.
type CapacityExhaustedError struct {
	BubbleIndex int
	Capacity    int
	Facilities  int
}

func (e *CapacityExhaustedError) Error() string {
	return fmt.Sprintf("capacity exhausted at bubble %d (capacity %d, %d facilities)",
		e.BubbleIndex, e.Capacity, e.Facilities)
}

// Is lets eris.Is and errors.Is match ErrCapacityExhausted.
func (e *CapacityExhaustedError) Is(target error) bool {
	return target == ErrCapacityExhausted
}
