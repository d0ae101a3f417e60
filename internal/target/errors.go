package target

import "errors"

var (
	ErrTargetNotFound   = errors.New("target not found")
	ErrNoTargetsDefined = errors.New("no targets defined")
	ErrInheritanceCycle = errors.New("inheritance cycle")
	ErrInvalidVar       = errors.New("invalid variable override")
)
