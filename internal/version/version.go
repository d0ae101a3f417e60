package version

import (
	"errors"
	"fmt"

	goversion "github.com/hashicorp/go-version"
)

// Version contains the application version information.
// This should be set via build-time ldflags in production:
// go build -ldflags "-X git.home.luguber.info/inful/docmeld/internal/version.Version=v0.4.0".
var Version = "unknown"

// BuildInfo contains additional build metadata.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// ErrUnsatisfied is returned when the running version does not meet a constraint.
var ErrUnsatisfied = errors.New("version constraint not satisfied")

// ErrUnknownVersion is returned when the running version is not a release version.
var ErrUnknownVersion = errors.New("running version is not a release version")

// Check verifies that current satisfies constraint, e.g. ">= 0.3, < 1.0".
func Check(constraint, current string) error {
	cs, err := goversion.NewConstraint(constraint)
	if err != nil {
		return fmt.Errorf("invalid version constraint %q: %w", constraint, err)
	}
	v, err := goversion.NewVersion(current)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrUnknownVersion, current)
	}
	if !cs.Check(v) {
		return fmt.Errorf("%w: docmeld %s does not satisfy %q", ErrUnsatisfied, current, constraint)
	}
	return nil
}
