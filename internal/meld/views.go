package meld

import (
	"git.home.luguber.info/inful/docmeld/internal/cfgtree"
	"git.home.luguber.info/inful/docmeld/internal/frontmatter"
)

// frontmatterViews renders metadata as the three equivalent template views.
func frontmatterViews(meta *cfgtree.Map) (map[string]any, error) {
	yml, err := cfgtree.Dump(cfgtree.Mapping(meta))
	if err != nil {
		return nil, err
	}
	fenced, err := frontmatter.Fence(meta)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"dict":   meta.Interface(),
		"yaml":   yml,
		"fenced": fenced,
	}, nil
}
