package meld

import (
	"strconv"
	"strings"

	"github.com/mitchellh/copystructure"
)

// Reserved render context keys.
const (
	KeyRaw               = "_raw"
	KeyYAML              = "_yaml"
	KeyMarkdown          = "_md"
	KeyLocalFrontmatter  = "_local_frontmatter"
	KeyGlobalFrontmatter = "_global_frontmatter"
	KeyGlobalVars        = "_global_vars"
	KeyGit               = "_git"
)

// Context is the data a template is rendered against.
type Context map[string]any

// Clone returns a deep copy that shares nothing with c.
func (c Context) Clone() (Context, error) {
	out, err := copystructure.Copy(map[string]any(c))
	if err != nil {
		return nil, err
	}
	return Context(out.(map[string]any)), nil
}

// Lookup resolves a dot-separated path through nested maps and slices.
func (c Context) Lookup(path string) (any, bool) {
	var cur any = map[string]any(c)
	for _, part := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[part]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	return cur, true
}
