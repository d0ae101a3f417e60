package command

import "errors"

// ErrUnresolvedPlaceholder is returned when placeholder expansion leaves a
// {name} token behind or fails to settle within MaxExpansionPasses.
var ErrUnresolvedPlaceholder = errors.New("unresolved command placeholder")
