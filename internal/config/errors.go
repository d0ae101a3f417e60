package config

import "errors"

// Sentinel errors for configuration loading. They are wrapped in classified
// errors; match them with errors.Is.
var (
	ErrConfigNotFound     = errors.New("configuration not found")
	ErrConfigParse        = errors.New("configuration parse error")
	ErrImportNotFound     = errors.New("import not found")
	ErrTargetRedefinition = errors.New("target redefined")
	ErrUnknownFactory     = errors.New("unknown target factory")
	ErrFactoryFailed      = errors.New("target factory failed")
	ErrVersionConstraint  = errors.New("required_version not satisfied")
	ErrInvalidTarget      = errors.New("invalid target definition")
)
