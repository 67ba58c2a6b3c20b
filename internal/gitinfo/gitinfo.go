// Package gitinfo reads repository state used to build source links.
package gitinfo

import (
	"fmt"

	"github.com/go-git/go-git/v5"
)

// HeadCommit returns the HEAD commit hash of the repository containing dir.
// dir may be any path inside the working tree.
func HeadCommit(dir string) (string, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", fmt.Errorf("open repository at %s: %w", dir, err)
	}
	ref, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}
	return ref.Hash().String(), nil
}
