package frontmatter

import "git.home.luguber.info/inful/docmeld/internal/cfgtree"

// Fence renders meta as a `---` delimited YAML block ready to prepend to a
// document. Empty metadata renders as the empty string.
func Fence(meta *cfgtree.Map) (string, error) {
	if meta.Len() == 0 {
		return "", nil
	}
	yml, err := cfgtree.Dump(cfgtree.Mapping(meta))
	if err != nil {
		return "", err
	}
	return "---\n" + yml + "---\n", nil
}
