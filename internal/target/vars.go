package target

import (
	"fmt"
	"strings"

	ferrors "git.home.luguber.info/inful/docmeld/internal/foundation/errors"
)

// Var is one command-line parameter override.
type Var struct {
	Key   string
	Value string
}

// ParseVars parses "key=value" pairs. The value may itself contain "=".
func ParseVars(pairs []string) ([]Var, error) {
	vars := make([]Var, 0, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, ferrors.WrapError(ErrInvalidVar, ferrors.CategoryValidation,
				fmt.Sprintf("variable %q must have the form key=value", p)).
				Build()
		}
		vars = append(vars, Var{Key: key, Value: value})
	}
	return vars, nil
}
