package git

import (
	"errors"
	"fmt"

	ggit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Head describes the checked-out revision of a repository.
type Head struct {
	Commit string
	Branch string
	Dirty  bool
}

// Short returns the abbreviated commit hash.
func (h Head) Short() string {
	if len(h.Commit) > 12 {
		return h.Commit[:12]
	}
	return h.Commit
}

// ReadHead opens the repository containing dir and returns its HEAD.
// It returns an empty Head and nil error when dir is not inside a repository.
func ReadHead(dir string) (Head, error) {
	repo, err := ggit.PlainOpenWithOptions(dir, &ggit.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, ggit.ErrRepositoryNotExists) {
		return Head{}, nil
	}
	if err != nil {
		return Head{}, fmt.Errorf("open repository: %w", err)
	}

	ref, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		// Fresh repository without commits.
		return Head{}, nil
	}
	if err != nil {
		return Head{}, fmt.Errorf("resolve HEAD: %w", err)
	}

	head := Head{Commit: ref.Hash().String()}
	if ref.Name().IsBranch() {
		head.Branch = ref.Name().Short()
	}

	wt, err := repo.Worktree()
	if err != nil {
		return head, nil
	}
	status, err := wt.Status()
	if err == nil {
		head.Dirty = !status.IsClean()
	}
	return head, nil
}
