package meld

import "errors"

// ErrDataFileMissing marks a data source that could not be read or parsed.
// It is reported as a warning; the source contributes an empty value.
var ErrDataFileMissing = errors.New("data source unavailable")
