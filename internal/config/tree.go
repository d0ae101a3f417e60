package config

import "git.home.luguber.info/inful/docmeld/internal/cfgtree"

// Tree is a fully loaded configuration: imports merged and factories run.
// It is never modified after Load returns.
type Tree struct {
	// Path is the absolute path of the root document.
	Path string
	// Root is the merged document, always a mapping.
	Root cfgtree.Value
}

// NewTree wraps an already merged root mapping.
func NewTree(path string, root *cfgtree.Map) *Tree {
	return &Tree{Path: path, Root: cfgtree.Mapping(root)}
}

// HasTargets reports whether the document declares a targets mapping at all.
func (t *Tree) HasTargets() bool {
	v, ok := t.Root.Map().Get(KeyTargets)
	return ok && v.IsMapping()
}

// Targets returns the targets mapping, or nil.
func (t *Tree) Targets() *cfgtree.Map {
	v, _ := t.Root.Map().Get(KeyTargets)
	return v.Map()
}

// Target returns the raw, unresolved spec of one target.
func (t *Tree) Target(name string) (*cfgtree.Map, bool) {
	v, ok := t.Targets().Get(name)
	if !ok {
		return nil, false
	}
	if v.IsNull() {
		return cfgtree.NewMap(), true
	}
	return v.Map(), v.IsMapping()
}

// Buildable returns the names of non-abstract targets in declaration order.
func (t *Tree) Buildable() []string {
	var names []string
	t.Targets().Range(func(name string, v cfgtree.Value) bool {
		if !v.Map().Has(KeyAbstract) {
			names = append(names, name)
		}
		return true
	})
	return names
}
