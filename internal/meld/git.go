package meld

import (
	"fmt"

	"github.com/go-git/go-git/v5"
)

// gitInfo describes the HEAD of the repository containing dir.
func gitInfo(dir string) (map[string]any, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open repository at %s: %w", dir, err)
	}
	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolve HEAD: %w", err)
	}

	commit := head.Hash().String()
	info := map[string]any{
		"commit":       commit,
		"short_commit": commit[:7],
		"branch":       "",
	}
	if head.Name().IsBranch() {
		info["branch"] = head.Name().Short()
	}
	return info, nil
}
