package config

import (
	"fmt"

	"git.home.luguber.info/inful/docmeld/internal/cfgtree"
	ferrors "git.home.luguber.info/inful/docmeld/internal/foundation/errors"
)

// DeepMerge merges new over old with cfgtree.Merge. When checkTargets is set,
// a target name defined by both trees is an error naming both definitions.
func DeepMerge(old, new cfgtree.Value, checkTargets bool) (cfgtree.Value, error) {
	if checkTargets {
		if err := checkRedefinition(old, new); err != nil {
			return cfgtree.Value{}, err
		}
	}
	return cfgtree.Merge(old, new), nil
}

func checkRedefinition(old, new cfgtree.Value) error {
	oldTargets := targetsOf(old)
	newTargets := targetsOf(new)
	if oldTargets.Len() == 0 || newTargets.Len() == 0 {
		return nil
	}
	var err error
	newTargets.Range(func(name string, nv cfgtree.Value) bool {
		ov, exists := oldTargets.Get(name)
		if !exists {
			return true
		}
		first := ov.Map().GetString(KeyDefPath)
		second := nv.Map().GetString(KeyDefPath)
		err = ferrors.WrapError(ErrTargetRedefinition, ferrors.CategoryConfig,
			fmt.Sprintf("target %q is defined in both %s and %s", name, first, second)).
			WithContext("target", name).
			WithContext("first", first).
			WithContext("second", second).
			Fatal().
			Build()
		return false
	})
	return err
}

func targetsOf(v cfgtree.Value) *cfgtree.Map {
	t, _ := v.Map().Get(KeyTargets)
	return t.Map()
}
