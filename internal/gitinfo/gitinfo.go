package gitinfo

import (
	"github.com/go-git/go-git/v5"
)

// HeadCommit returns the HEAD commit hash of the repository containing dir,
// or "" when dir is not inside a git repository. Documentation runs record
// this in the manifest so a generated docs tree can be traced back to the
// source revision it was built from.
func HeadCommit(dir string) string {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return ""
	}
	head, err := repo.Head()
	if err != nil {
		return ""
	}
	return head.Hash().String()
}
