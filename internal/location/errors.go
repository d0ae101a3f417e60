package location

import "errors"

var errNoFetcher = errors.New("remote documents are not enabled")
