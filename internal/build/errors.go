package build

import "errors"

var (
	// ErrLoopDataNotFound is returned when a loop's data path does not address a sequence.
	ErrLoopDataNotFound = errors.New("loop data not found")
	// ErrAbstractTarget is returned when an abstract target is requested directly.
	ErrAbstractTarget = errors.New("target is abstract")
	// ErrHookCycle is returned when prebuild/postbuild hooks reach a target already being built.
	ErrHookCycle = errors.New("prebuild/postbuild cycle")
)
