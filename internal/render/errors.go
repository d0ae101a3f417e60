package render

import "errors"

// ErrTemplateNotFound is returned when a configured template cannot be located.
var ErrTemplateNotFound = errors.New("template not found")
