package config

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"git.home.luguber.info/inful/docmeld/internal/cfgtree"
	"git.home.luguber.info/inful/docmeld/internal/location"
)

type globArgs struct {
	Path        string   `mapstructure:"path"`
	NameLevels  int      `mapstructure:"name_levels"`
	InheritFrom []string `mapstructure:"inherit_from"`
}

// GlobFactory creates one target per file matching args.path, relative to the
// configuration file. The target name is the file stem, prefixed with
// name_levels-1 parent directory names joined by "/". Each target renders the
// file as its "content" source into "<name>.pdf". glob_variables are merged
// into every produced target.
func GlobFactory(_ context.Context, in FactoryInput) (*cfgtree.Map, error) {
	var args globArgs
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &args,
	})
	if err != nil {
		return nil, err
	}
	argMap := in.Args.Map()
	raw := argMap.Interface()
	delete(raw, "glob_variables")
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("glob factory arguments: %w", err)
	}
	if args.Path == "" {
		return nil, fmt.Errorf("glob factory requires a path argument")
	}
	vars, _ := argMap.Get("glob_variables")

	pattern := location.Resolve(args.Path, in.Tree.Path)
	files, err := location.Glob(in.FS, pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}

	targets := cfgtree.NewMap()
	for _, file := range files {
		name := globTargetName(file, args.NameLevels)

		mdFiles := cfgtree.NewMap()
		mdFiles.Set("content", cfgtree.Scalar(file))
		data := cfgtree.NewMap()
		data.Set("md_files", cfgtree.Mapping(mdFiles))

		spec := cfgtree.NewMap()
		if len(args.InheritFrom) > 0 {
			parents := make([]cfgtree.Value, len(args.InheritFrom))
			for i, p := range args.InheritFrom {
				parents[i] = cfgtree.Scalar(p)
			}
			spec.Set(KeyInheritFrom, cfgtree.Sequence(parents...))
		}
		spec.Set(KeyOutputFile, cfgtree.Scalar(name+".pdf"))
		spec.Set(KeyData, cfgtree.Mapping(data))

		target := cfgtree.Mapping(spec)
		if vars.IsMapping() {
			target = cfgtree.Merge(target, vars)
		}
		targets.Set(name, target)
	}
	return targets, nil
}

func globTargetName(file string, levels int) string {
	parts := strings.Split(filepath.ToSlash(file), "/")
	name := []string{location.Stem(file)}
	for lvl := 1; lvl < levels && lvl < len(parts)-1; lvl++ {
		name = append([]string{parts[len(parts)-1-lvl]}, name...)
	}
	return strings.Join(name, "/")
}
